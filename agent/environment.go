package agent

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"syscall"
	"time"
)

// ExecResult holds the result of a shell command execution.
type ExecResult struct {
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exit_code"`
	TimedOut bool          `json:"timed_out"`
	Duration time.Duration `json:"duration"`
}

// Output returns combined stdout and stderr.
func (r ExecResult) Output() string {
	if r.Stderr == "" {
		return r.Stdout
	}
	if r.Stdout == "" {
		return r.Stderr
	}
	return r.Stdout + "\n" + r.Stderr
}

// GrepOptions configures grep behavior.
type GrepOptions struct {
	GlobFilter string // file pattern filter, e.g. "*.go"
	Context    int    // lines of context before/after each match
	MaxResults int    // maximum matches; 0 means the default bound
}

// Environment abstracts where tool operations run. All paths resolve
// against the working directory; paths that escape it are rejected.
type Environment interface {
	ReadFile(path string, offset, limit int) (string, error)
	ReadRaw(path string) (string, error)
	WriteFile(path, content string) error
	Exec(ctx context.Context, command string, timeout time.Duration) (*ExecResult, error)
	Grep(ctx context.Context, pattern, path string, opts GrepOptions) (string, error)
	Glob(pattern, path string) ([]string, error)
	WorkingDir() string
	Platform() string
}

const (
	defaultGrepResults = 100
	maxGlobResults     = 1000
)

// Extensions skipped by grep: binary or generated files that are
// unlikely to contain useful matches.
var grepSkipExts = map[string]bool{
	".pyc": true, ".so": true, ".o": true, ".a": true,
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".pdf": true, ".zip": true, ".tar": true, ".gz": true,
	".exe": true, ".bin": true, ".whl": true, ".wasm": true,
}

// sensitiveEnvSuffixes are case-insensitive suffixes for environment
// variables excluded from tool subprocesses.
var sensitiveEnvSuffixes = []string{
	"_API_KEY",
	"_SECRET",
	"_TOKEN",
	"_PASSWORD",
	"_CREDENTIAL",
}

// safeEnvVars are always passed through regardless of filtering.
var safeEnvVars = map[string]bool{
	"PATH": true, "HOME": true, "USER": true, "SHELL": true,
	"LANG": true, "TERM": true, "TMPDIR": true,
	"GOPATH": true, "GOROOT": true, "CARGO_HOME": true,
}

func isSensitiveEnvVar(name string) bool {
	upper := strings.ToUpper(name)
	for _, suffix := range sensitiveEnvSuffixes {
		if strings.HasSuffix(upper, suffix) {
			return true
		}
	}
	return false
}

func filterEnvironment() []string {
	var filtered []string
	for _, env := range os.Environ() {
		parts := strings.SplitN(env, "=", 2)
		if len(parts) != 2 {
			continue
		}
		if safeEnvVars[parts[0]] || !isSensitiveEnvVar(parts[0]) {
			filtered = append(filtered, env)
		}
	}
	return filtered
}

// LocalEnvironment runs tools on the local machine, rooted at a working
// directory.
type LocalEnvironment struct {
	root string
}

// NewLocalEnvironment creates a local environment rooted at workingDir.
// An empty workingDir defaults to the process working directory.
func NewLocalEnvironment(workingDir string) *LocalEnvironment {
	if workingDir == "" {
		workingDir, _ = os.Getwd()
	}
	abs, err := filepath.Abs(workingDir)
	if err == nil {
		workingDir = abs
	}
	return &LocalEnvironment{root: workingDir}
}

func (e *LocalEnvironment) WorkingDir() string { return e.root }

func (e *LocalEnvironment) Platform() string {
	return runtime.GOOS + "/" + runtime.GOARCH
}

// resolvePath turns a tool-supplied path into an absolute path inside
// the working directory. Paths that escape the root are rejected.
func (e *LocalEnvironment) resolvePath(p string) (string, error) {
	resolved := p
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(e.root, resolved)
	}
	resolved = filepath.Clean(resolved)

	rel, err := filepath.Rel(e.root, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path outside working directory: %s", p)
	}
	return resolved, nil
}

// ReadFile returns file contents with 1-based line numbers. offset and
// limit select a line range; zero values mean "from the start" and "all
// lines".
func (e *LocalEnvironment) ReadFile(p string, offset, limit int) (string, error) {
	resolved, err := e.resolvePath(p)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("file not found: %s", resolved)
		}
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("is a directory: %s", resolved)
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return "", err
	}

	lines := strings.Split(string(data), "\n")
	start := 0
	if offset > 0 {
		start = offset - 1
	}
	if start >= len(lines) {
		return fmt.Sprintf("File: %s (%d lines total) [offset past end of file]", resolved, len(lines)), nil
	}
	end := len(lines)
	if limit > 0 && start+limit < end {
		end = start + limit
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "File: %s (%d lines total)", resolved, len(lines))
	if offset > 0 || limit > 0 {
		fmt.Fprintf(&sb, " [showing lines %d-%d]", start+1, end)
	}
	sb.WriteByte('\n')
	for i := start; i < end; i++ {
		fmt.Fprintf(&sb, "%6d→ %s\n", i+1, strings.TrimRight(lines[i], "\r"))
	}
	return sb.String(), nil
}

// ReadRaw returns file contents without line numbering, for editing.
func (e *LocalEnvironment) ReadRaw(p string) (string, error) {
	resolved, err := e.resolvePath(p)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("file not found: %s", resolved)
		}
		return "", err
	}
	return string(data), nil
}

// WriteFile writes content, creating parent directories as needed.
func (e *LocalEnvironment) WriteFile(p, content string) error {
	resolved, err := e.resolvePath(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return os.WriteFile(resolved, []byte(content), 0o644)
}

// Exec runs a shell command in the working directory with a bounded
// execution time. The subprocess gets its own process group and the
// whole group is killed on timeout or cancellation, so nothing is
// leaked past a cancelled turn.
func (e *LocalEnvironment) Exec(ctx context.Context, command string, timeout time.Duration) (*ExecResult, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "/bin/bash", "-c", command)
	cmd.Dir = e.root
	cmd.Env = filterEnvironment()
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process != nil {
			return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		}
		return nil
	}
	cmd.WaitDelay = 2 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()

	result := &ExecResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if err != nil {
		switch {
		case ctx.Err() == context.DeadlineExceeded:
			result.TimedOut = true
			result.ExitCode = -1
		case ctx.Err() == context.Canceled:
			result.ExitCode = -1
			return result, ctx.Err()
		default:
			exitErr, ok := err.(*exec.ExitError)
			if !ok {
				return nil, fmt.Errorf("exec: %w", err)
			}
			result.ExitCode = exitErr.ExitCode()
		}
	}

	return result, nil
}

// Grep searches file contents with a regular expression and returns
// matching lines as path:line references, with optional context lines.
// An empty result is success, not an error.
func (e *LocalEnvironment) Grep(ctx context.Context, pattern, searchPath string, opts GrepOptions) (string, error) {
	if searchPath == "" {
		searchPath = "."
	}
	resolved, err := e.resolvePath(searchPath)
	if err != nil {
		return "", err
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", fmt.Errorf("invalid regex pattern: %w", err)
	}

	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = defaultGrepResults
	}

	files, err := e.collectFiles(resolved, opts.GlobFilter)
	if err != nil {
		return "", err
	}

	var results []string
	matchCount := 0

scan:
	for _, fp := range files {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		data, err := os.ReadFile(fp)
		if err != nil {
			continue
		}
		lines := strings.Split(string(data), "\n")
		for i, line := range lines {
			if !re.MatchString(line) {
				continue
			}
			matchCount++
			lo := i - opts.Context
			if lo < 0 {
				lo = 0
			}
			hi := i + opts.Context + 1
			if hi > len(lines) {
				hi = len(lines)
			}
			for j := lo; j < hi; j++ {
				marker := " "
				if j == i {
					marker = ">"
				}
				results = append(results, fmt.Sprintf("%s:%d%s %s", e.displayPath(fp), j+1, marker, strings.TrimRight(lines[j], "\r")))
			}
			if opts.Context > 0 {
				results = append(results, "--")
			}
			if matchCount >= maxResults {
				results = append(results, fmt.Sprintf("[stopped after %d matches]", maxResults))
				break scan
			}
		}
	}

	if matchCount == 0 {
		return fmt.Sprintf("No matches for pattern /%s/", pattern), nil
	}
	return fmt.Sprintf("Found %d match(es) for /%s/\n%s", matchCount, pattern, strings.Join(results, "\n")), nil
}

// collectFiles walks the search root, skipping hidden directories and
// binary extensions, optionally filtering by a glob on the base name.
func (e *LocalEnvironment) collectFiles(root, globFilter string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("path not found: %s", root)
		}
		return nil, err
	}
	if !info.IsDir() {
		return []string{root}, nil
	}

	var files []string
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		if d.IsDir() {
			if p != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if grepSkipExts[strings.ToLower(filepath.Ext(p))] {
			return nil
		}
		if globFilter != "" {
			ok, matchErr := path.Match(globFilter, d.Name())
			if matchErr != nil || !ok {
				return nil
			}
		}
		files = append(files, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// Glob finds files matching a glob pattern rooted at basePath. The
// pattern supports ** for recursive matching. An empty result is
// success.
func (e *LocalEnvironment) Glob(pattern, basePath string) ([]string, error) {
	if basePath == "" {
		basePath = "."
	}
	resolved, err := e.resolvePath(basePath)
	if err != nil {
		return nil, err
	}

	re, err := globToRegexp(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid glob pattern: %w", err)
	}

	var matches []string
	err = filepath.WalkDir(resolved, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if d.IsDir() {
			if p != resolved && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(resolved, p)
		if relErr != nil {
			return nil
		}
		if re.MatchString(filepath.ToSlash(rel)) {
			matches = append(matches, e.displayPath(p))
		}
		if len(matches) >= maxGlobResults {
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

// displayPath shows a path relative to the working directory when
// possible, for readability.
func (e *LocalEnvironment) displayPath(p string) string {
	rel, err := filepath.Rel(e.root, p)
	if err != nil || strings.HasPrefix(rel, "..") {
		return p
	}
	return rel
}

// globToRegexp translates a glob pattern into an anchored regexp.
// "**" matches across path separators, "*" within one segment.
func globToRegexp(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	for i := 0; i < len(pattern); {
		c := pattern[i]
		switch c {
		case '*':
			if i+1 < len(pattern) && pattern[i+1] == '*' {
				if i+2 < len(pattern) && pattern[i+2] == '/' {
					b.WriteString(`(?:[^/]+/)*`)
					i += 3
				} else {
					b.WriteString(`.*`)
					i += 2
				}
				continue
			}
			b.WriteString(`[^/]*`)
			i++
		case '?':
			b.WriteString(`[^/]`)
			i++
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
			i++
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}
