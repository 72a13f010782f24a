package agent

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadFileLineNumbers(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "main.go", "package main\n\nfunc main() {}\n")
	env := NewLocalEnvironment(dir)

	out, err := env.ReadFile("main.go", 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "1→ package main") {
		t.Errorf("missing line numbers:\n%s", out)
	}
	if !strings.Contains(out, "3→ func main() {}") {
		t.Errorf("missing line 3:\n%s", out)
	}
}

func TestReadFileOffsetLimit(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "nums.txt", "one\ntwo\nthree\nfour\nfive\n")
	env := NewLocalEnvironment(dir)

	out, err := env.ReadFile("nums.txt", 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "one") || strings.Contains(out, "four") {
		t.Errorf("range not applied:\n%s", out)
	}
	if !strings.Contains(out, "two") || !strings.Contains(out, "three") {
		t.Errorf("range content missing:\n%s", out)
	}
}

func TestReadFileNotFound(t *testing.T) {
	env := NewLocalEnvironment(t.TempDir())
	_, err := env.ReadFile("missing.txt", 0, 0)
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("unhelpful error: %v", err)
	}
}

func TestResolvePathRejectsEscape(t *testing.T) {
	env := NewLocalEnvironment(t.TempDir())

	for _, p := range []string{"../outside.txt", "a/../../outside.txt", "/etc/passwd"} {
		if _, err := env.ReadFile(p, 0, 0); err == nil {
			t.Errorf("path %q escaped the working directory", p)
		}
		if err := env.WriteFile(p, "x"); err == nil {
			t.Errorf("write to %q escaped the working directory", p)
		}
	}
}

func TestWriteFileCreatesParents(t *testing.T) {
	dir := t.TempDir()
	env := NewLocalEnvironment(dir)

	if err := env.WriteFile("deep/nested/file.txt", "hello"); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "deep", "nested", "file.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello" {
		t.Errorf("got %q", data)
	}
}

func TestReadRawRoundTrip(t *testing.T) {
	dir := t.TempDir()
	content := "no line numbers here\nsecond line"
	writeTestFile(t, dir, "raw.txt", content)
	env := NewLocalEnvironment(dir)

	got, err := env.ReadRaw("raw.txt")
	if err != nil {
		t.Fatal(err)
	}
	if got != content {
		t.Errorf("raw read altered content: %q", got)
	}
}

func TestExecCapturesOutputAndExitCode(t *testing.T) {
	env := NewLocalEnvironment(t.TempDir())

	result, err := env.Exec(context.Background(), "echo out; echo err >&2; exit 3", 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(result.Stdout, "out") {
		t.Errorf("stdout = %q", result.Stdout)
	}
	if !strings.Contains(result.Stderr, "err") {
		t.Errorf("stderr = %q", result.Stderr)
	}
	if result.ExitCode != 3 {
		t.Errorf("exit code = %d", result.ExitCode)
	}
}

func TestExecTimeoutKillsSubprocess(t *testing.T) {
	env := NewLocalEnvironment(t.TempDir())

	start := time.Now()
	result, err := env.Exec(context.Background(), "sleep 30", 200*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if !result.TimedOut {
		t.Fatal("expected TimedOut")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("timeout did not kill the subprocess promptly: %v", elapsed)
	}
}

func TestExecRunsInWorkingDir(t *testing.T) {
	dir := t.TempDir()
	env := NewLocalEnvironment(dir)

	result, err := env.Exec(context.Background(), "pwd", 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	got, _ := filepath.EvalSymlinks(strings.TrimSpace(result.Stdout))
	want, _ := filepath.EvalSymlinks(dir)
	if got != want {
		t.Errorf("ran in %q, want %q", got, want)
	}
}

func TestGrepFindsMatches(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "a.go", "package a\nfunc Hello() {}\n")
	writeTestFile(t, dir, "sub/b.go", "package b\nfunc Hello() {}\n")
	writeTestFile(t, dir, "c.txt", "Hello text\n")
	env := NewLocalEnvironment(dir)

	out, err := env.Grep(context.Background(), `func Hello`, "", GrepOptions{GlobFilter: "*.go"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "a.go:2") || !strings.Contains(out, filepath.Join("sub", "b.go")+":2") {
		t.Errorf("matches missing:\n%s", out)
	}
	if strings.Contains(out, "c.txt") {
		t.Errorf("glob filter ignored:\n%s", out)
	}
}

func TestGrepNoMatchesIsSuccess(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "a.txt", "nothing here\n")
	env := NewLocalEnvironment(dir)

	out, err := env.Grep(context.Background(), "absent_pattern", "", GrepOptions{})
	if err != nil {
		t.Fatalf("empty result must not be an error: %v", err)
	}
	if !strings.Contains(out, "No matches") {
		t.Errorf("got %q", out)
	}
}

func TestGrepInvalidPattern(t *testing.T) {
	env := NewLocalEnvironment(t.TempDir())
	if _, err := env.Grep(context.Background(), "[unclosed", "", GrepOptions{}); err == nil {
		t.Fatal("expected error for invalid regex")
	}
}

func TestGlobRecursive(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "main.go", "")
	writeTestFile(t, dir, "pkg/util.go", "")
	writeTestFile(t, dir, "pkg/deep/deeper.go", "")
	writeTestFile(t, dir, "README.md", "")
	env := NewLocalEnvironment(dir)

	matches, err := env.Glob("**/*.go", "")
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]bool{
		"main.go":                              true,
		filepath.Join("pkg", "util.go"):        true,
		filepath.Join("pkg", "deep", "deeper.go"): true,
	}
	if len(matches) != len(want) {
		t.Fatalf("got %v", matches)
	}
	for _, m := range matches {
		if !want[m] {
			t.Errorf("unexpected match %q", m)
		}
	}
}

func TestGlobSingleSegment(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "main.go", "")
	writeTestFile(t, dir, "pkg/util.go", "")
	env := NewLocalEnvironment(dir)

	matches, err := env.Glob("*.go", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 || matches[0] != "main.go" {
		t.Errorf("* crossed a path separator: %v", matches)
	}
}

func TestGlobSkipsHiddenDirs(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, ".git/config.go", "")
	writeTestFile(t, dir, "visible.go", "")
	env := NewLocalEnvironment(dir)

	matches, err := env.Glob("**/*.go", "")
	if err != nil {
		t.Fatal(err)
	}
	for _, m := range matches {
		if strings.Contains(m, ".git") {
			t.Errorf("hidden directory not skipped: %v", matches)
		}
	}
}
