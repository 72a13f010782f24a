package agent

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const maxProjectDocBytes = 32 * 1024

// BuildSystemPrompt assembles the system prompt: identity, guidelines,
// environment context, and any project instruction files found under
// the working directory.
func BuildSystemPrompt(env Environment, model string) string {
	var sb strings.Builder

	sb.WriteString(`You are HomeCode, a coding assistant operating in a terminal session.
You help with software engineering tasks: reading and editing code, running
commands, searching codebases, fixing bugs, and writing new functionality.

Guidelines:
- Gather context with read_file, grep, and glob before making changes.
- Prefer edit_file for small targeted changes; use write_file only for new
  files or full rewrites.
- After making changes, verify them when possible (run tests, build, or at
  least re-read the edited region).
- Keep answers concise. When a task is done, summarize what changed and why.
- Never invent file contents. If you have not read a file, read it first.
- If a command fails, read the error output before retrying.`)

	sb.WriteString("\n\n")
	sb.WriteString(buildEnvironmentContext(env, model))

	if docs := discoverProjectDocs(env.WorkingDir()); docs != "" {
		sb.WriteString("\n\nProject instructions:\n\n")
		sb.WriteString(docs)
	}

	return sb.String()
}

// buildEnvironmentContext generates the structured environment block.
func buildEnvironmentContext(env Environment, model string) string {
	workingDir := env.WorkingDir()
	isGitRepo := isGitRepository(workingDir)

	var sb strings.Builder
	sb.WriteString("<environment>\n")
	fmt.Fprintf(&sb, "Working directory: %s\n", workingDir)
	fmt.Fprintf(&sb, "Is git repository: %v\n", isGitRepo)
	if isGitRepo {
		if branch := getGitBranch(workingDir); branch != "" {
			fmt.Fprintf(&sb, "Git branch: %s\n", branch)
		}
	}
	fmt.Fprintf(&sb, "Platform: %s\n", env.Platform())
	fmt.Fprintf(&sb, "Today's date: %s\n", time.Now().Format("2006-01-02"))
	if model != "" {
		fmt.Fprintf(&sb, "Model: %s\n", model)
	}
	sb.WriteString("</environment>")
	return sb.String()
}

// discoverProjectDocs loads recognized project instruction files from
// the working directory, bounded to keep the prompt small.
func discoverProjectDocs(workingDir string) string {
	recognized := []string{"AGENTS.md", "HOMECODE.md"}

	var docs []string
	totalBytes := 0
	for _, fileName := range recognized {
		content, err := os.ReadFile(filepath.Join(workingDir, fileName))
		if err != nil {
			continue
		}
		remaining := maxProjectDocBytes - totalBytes
		if remaining <= 0 {
			break
		}
		text := string(content)
		if len(text) > remaining {
			text = text[:remaining] + "\n[Project instructions truncated at 32KB]"
		}
		docs = append(docs, "# "+fileName+"\n\n"+text)
		totalBytes += len(text)
	}
	return strings.Join(docs, "\n\n---\n\n")
}

func isGitRepository(dir string) bool {
	cmd := exec.Command("git", "rev-parse", "--is-inside-work-tree")
	cmd.Dir = dir
	out, err := cmd.Output()
	return err == nil && strings.TrimSpace(string(out)) == "true"
}

func getGitBranch(dir string) string {
	cmd := exec.Command("git", "rev-parse", "--abbrev-ref", "HEAD")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
