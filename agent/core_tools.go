package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Yteria17/HomeCode/llm"
)

// RegisterCoreTools registers the built-in coding tools on a registry.
// The tools delegate to the provided Environment at call time.
func RegisterCoreTools(reg *ToolRegistry, defaultBashTimeout, maxBashTimeout time.Duration) {
	registerReadFile(reg)
	registerWriteFile(reg)
	registerEditFile(reg)
	registerRunBash(reg, defaultBashTimeout, maxBashTimeout)
	registerGrep(reg)
	registerGlob(reg)
}

func registerReadFile(reg *ToolRegistry) {
	reg.Register(RegisteredTool{
		Definition: llm.ToolDefinition{
			Name:        "read_file",
			Description: "Read a file from the filesystem. Returns line-numbered content.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path": map[string]any{
						"type":        "string",
						"description": "Path to the file, relative to the working directory.",
					},
					"offset": map[string]any{
						"type":        "integer",
						"description": "1-based line number to start reading from.",
					},
					"limit": map[string]any{
						"type":        "integer",
						"description": "Maximum number of lines to read. Default: 2000.",
					},
				},
				"required": []string{"path"},
			},
		},
		Run: func(_ context.Context, arguments json.RawMessage, env Environment) (string, error) {
			args, err := ParseToolArguments(arguments)
			if err != nil {
				return "", err
			}
			path, ok := GetStringArg(args, "path")
			if !ok || path == "" {
				return "", fmt.Errorf("path is required")
			}
			offset, _ := GetIntArg(args, "offset")
			limit, _ := GetIntArg(args, "limit")
			if limit == 0 {
				limit = 2000
			}
			return env.ReadFile(path, offset, limit)
		},
	})
}

func registerWriteFile(reg *ToolRegistry) {
	reg.Register(RegisteredTool{
		Definition: llm.ToolDefinition{
			Name:        "write_file",
			Description: "Write content to a file, replacing anything already there. Creates the file and parent directories if needed.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path": map[string]any{
						"type":        "string",
						"description": "Path to write to, relative to the working directory.",
					},
					"content": map[string]any{
						"type":        "string",
						"description": "The full file content to write.",
					},
				},
				"required": []string{"path", "content"},
			},
		},
		Run: func(_ context.Context, arguments json.RawMessage, env Environment) (string, error) {
			args, err := ParseToolArguments(arguments)
			if err != nil {
				return "", err
			}
			path, ok := GetStringArg(args, "path")
			if !ok || path == "" {
				return "", fmt.Errorf("path is required")
			}
			content, ok := GetStringArg(args, "content")
			if !ok {
				return "", fmt.Errorf("content is required")
			}
			if err := env.WriteFile(path, content); err != nil {
				return "", err
			}
			return fmt.Sprintf("Wrote %d bytes to %s", len(content), path), nil
		},
	})
}

func registerEditFile(reg *ToolRegistry) {
	reg.Register(RegisteredTool{
		Definition: llm.ToolDefinition{
			Name: "edit_file",
			Description: "Replace an exact string occurrence in a file. " +
				"The old_string must appear exactly once unless replace_all is true. " +
				"The file is left untouched when the edit cannot be applied.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path": map[string]any{
						"type":        "string",
						"description": "Path to the file to edit.",
					},
					"old_string": map[string]any{
						"type":        "string",
						"description": "Exact text to find in the file.",
					},
					"new_string": map[string]any{
						"type":        "string",
						"description": "Replacement text.",
					},
					"replace_all": map[string]any{
						"type":        "boolean",
						"description": "Replace all occurrences. Default: false.",
					},
				},
				"required": []string{"path", "old_string", "new_string"},
			},
		},
		Run: func(_ context.Context, arguments json.RawMessage, env Environment) (string, error) {
			args, err := ParseToolArguments(arguments)
			if err != nil {
				return "", err
			}
			path, ok := GetStringArg(args, "path")
			if !ok || path == "" {
				return "", fmt.Errorf("path is required")
			}
			oldString, ok := GetStringArg(args, "old_string")
			if !ok || oldString == "" {
				return "", fmt.Errorf("old_string is required")
			}
			newString, _ := GetStringArg(args, "new_string")
			if oldString == newString {
				return "", fmt.Errorf("old_string and new_string are identical")
			}
			replaceAll, _ := GetBoolArg(args, "replace_all")

			content, err := env.ReadRaw(path)
			if err != nil {
				return "", err
			}

			count := strings.Count(content, oldString)
			if count == 0 {
				return "", fmt.Errorf("old_string not found in %s", path)
			}
			if count > 1 && !replaceAll {
				return "", fmt.Errorf("old_string found %d times in %s. Provide more surrounding context to make it unique, or set replace_all=true", count, path)
			}

			var newContent string
			replacements := 1
			if replaceAll {
				newContent = strings.ReplaceAll(content, oldString, newString)
				replacements = count
			} else {
				newContent = strings.Replace(content, oldString, newString, 1)
			}

			if err := env.WriteFile(path, newContent); err != nil {
				return "", err
			}
			return fmt.Sprintf("Replaced %d occurrence(s) in %s", replacements, path), nil
		},
	})
}

func registerRunBash(reg *ToolRegistry, defaultTimeout, maxTimeout time.Duration) {
	reg.Register(RegisteredTool{
		Definition: llm.ToolDefinition{
			Name:        "run_bash",
			Description: "Execute a bash command in the working directory. Returns combined stdout and stderr, plus the exit code when non-zero.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"command": map[string]any{
						"type":        "string",
						"description": "The command to run.",
					},
					"timeout_seconds": map[string]any{
						"type":        "integer",
						"description": "Override the default command timeout in seconds.",
					},
				},
				"required": []string{"command"},
			},
		},
		Run: func(ctx context.Context, arguments json.RawMessage, env Environment) (string, error) {
			args, err := ParseToolArguments(arguments)
			if err != nil {
				return "", err
			}
			command, ok := GetStringArg(args, "command")
			if !ok || command == "" {
				return "", fmt.Errorf("command is required")
			}
			timeout := defaultTimeout
			if secs, ok := GetIntArg(args, "timeout_seconds"); ok && secs > 0 {
				timeout = time.Duration(secs) * time.Second
			}
			if maxTimeout > 0 && timeout > maxTimeout {
				timeout = maxTimeout
			}

			result, err := env.Exec(ctx, command, timeout)
			if err != nil {
				return "", err
			}

			if result.TimedOut {
				if output := result.Output(); output != "" {
					return "", fmt.Errorf("command timed out after %s. You can retry with a longer "+
						"timeout via timeout_seconds. Partial output:\n%s", timeout, output)
				}
				return "", fmt.Errorf("command timed out after %s with no output. "+
					"You can retry with a longer timeout via timeout_seconds.", timeout)
			}

			var sb strings.Builder
			sb.WriteString(result.Output())
			if result.ExitCode != 0 {
				fmt.Fprintf(&sb, "\n\n[Exit code: %d]", result.ExitCode)
			}

			return sb.String(), nil
		},
	})
}

func registerGrep(reg *ToolRegistry) {
	reg.Register(RegisteredTool{
		Definition: llm.ToolDefinition{
			Name:        "grep",
			Description: "Search file contents with a regular expression. Returns matching lines with file paths and line numbers.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"pattern": map[string]any{
						"type":        "string",
						"description": "Regex pattern to search for.",
					},
					"path": map[string]any{
						"type":        "string",
						"description": "Directory or file to search. Default: working directory.",
					},
					"glob_filter": map[string]any{
						"type":        "string",
						"description": "File name filter (e.g. \"*.go\").",
					},
					"context": map[string]any{
						"type":        "integer",
						"description": "Lines of context around each match. Default: 0.",
					},
					"max_results": map[string]any{
						"type":        "integer",
						"description": "Maximum number of matches. Default: 100.",
					},
				},
				"required": []string{"pattern"},
			},
		},
		Run: func(ctx context.Context, arguments json.RawMessage, env Environment) (string, error) {
			args, err := ParseToolArguments(arguments)
			if err != nil {
				return "", err
			}
			pattern, ok := GetStringArg(args, "pattern")
			if !ok || pattern == "" {
				return "", fmt.Errorf("pattern is required")
			}
			path, _ := GetStringArg(args, "path")
			globFilter, _ := GetStringArg(args, "glob_filter")
			contextLines, _ := GetIntArg(args, "context")
			maxResults, _ := GetIntArg(args, "max_results")

			return env.Grep(ctx, pattern, path, GrepOptions{
				GlobFilter: globFilter,
				Context:    contextLines,
				MaxResults: maxResults,
			})
		},
	})
}

func registerGlob(reg *ToolRegistry) {
	reg.Register(RegisteredTool{
		Definition: llm.ToolDefinition{
			Name:        "glob",
			Description: "Find files matching a glob pattern. Supports ** for recursive matching.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"pattern": map[string]any{
						"type":        "string",
						"description": "Glob pattern (e.g. \"**/*.go\").",
					},
					"path": map[string]any{
						"type":        "string",
						"description": "Base directory. Default: working directory.",
					},
				},
				"required": []string{"pattern"},
			},
		},
		Run: func(_ context.Context, arguments json.RawMessage, env Environment) (string, error) {
			args, err := ParseToolArguments(arguments)
			if err != nil {
				return "", err
			}
			pattern, ok := GetStringArg(args, "pattern")
			if !ok || pattern == "" {
				return "", fmt.Errorf("pattern is required")
			}
			path, _ := GetStringArg(args, "path")

			matches, err := env.Glob(pattern, path)
			if err != nil {
				return "", err
			}
			if len(matches) == 0 {
				return "No files matched the pattern.", nil
			}
			return strings.Join(matches, "\n"), nil
		},
	})
}
