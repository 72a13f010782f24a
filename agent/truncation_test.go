package agent

import (
	"strings"
	"testing"
)

func TestTruncateOutputUnderLimit(t *testing.T) {
	out := TruncateOutput("short", 100, TruncateHeadTail)
	if out != "short" {
		t.Errorf("under-limit output altered: %q", out)
	}
}

func TestTruncateOutputHeadTail(t *testing.T) {
	input := strings.Repeat("a", 500) + strings.Repeat("z", 500)
	out := TruncateOutput(input, 200, TruncateHeadTail)

	if !strings.HasPrefix(out, strings.Repeat("a", 100)) {
		t.Error("head lost")
	}
	if !strings.HasSuffix(out, strings.Repeat("z", 100)) {
		t.Error("tail lost")
	}
	if !strings.Contains(out, "truncated") {
		t.Error("missing truncation marker")
	}
}

func TestTruncateOutputTail(t *testing.T) {
	input := strings.Repeat("a", 500) + strings.Repeat("z", 100)
	out := TruncateOutput(input, 100, TruncateTail)

	if !strings.HasSuffix(out, strings.Repeat("z", 100)) {
		t.Error("tail mode must keep the end")
	}
	if strings.Contains(out[len(out)-100:], "a") {
		t.Error("tail mode kept head content")
	}
}

func TestTruncateLines(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 100; i++ {
		sb.WriteString("line\n")
	}
	out := TruncateLines(sb.String(), 10)

	if got := strings.Count(out, "\n"); got > 12 {
		t.Errorf("too many lines survive: %d", got)
	}
	if !strings.Contains(out, "lines omitted") {
		t.Error("missing omission marker")
	}
}

func TestTruncateToolOutputPerToolLimits(t *testing.T) {
	big := strings.Repeat("x", 5000)

	// write_file has a tight 1000-char limit.
	out := TruncateToolOutput(big, "write_file", nil, nil)
	if len(out) >= 5000 {
		t.Errorf("write_file output not truncated: %d chars", len(out))
	}

	// read_file allows far more.
	out = TruncateToolOutput(big, "read_file", nil, nil)
	if out != big {
		t.Error("read_file output should survive at 5000 chars")
	}
}

func TestTruncateToolOutputCustomLimits(t *testing.T) {
	big := strings.Repeat("x", 500)
	out := TruncateToolOutput(big, "read_file", map[string]int{"read_file": 100}, nil)
	if len(out) >= 500 {
		t.Error("custom limit ignored")
	}
}

func TestTruncateToolOutputLineLimit(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 1000; i++ {
		sb.WriteString("ln\n")
	}
	out := TruncateToolOutput(sb.String(), "run_bash", nil, nil)
	if got := strings.Count(out, "\n"); got > 260 {
		t.Errorf("run_bash line limit not applied: %d lines", got)
	}
}
