package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/Yteria17/HomeCode/agent"
)

var (
	bannerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true)
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))
	toolStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))
	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")).
			Bold(true)
)

// display renders assistant output and the event stream to the
// terminal.
type display struct {
	out      io.Writer
	renderer *glamour.TermRenderer
}

func newDisplay(out io.Writer) *display {
	renderer, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	return &display{out: out, renderer: renderer}
}

// answer renders a final model answer as markdown, falling back to
// plain text when rendering fails.
func (d *display) answer(text string) {
	if d.renderer != nil {
		if rendered, err := d.renderer.Render(text); err == nil {
			fmt.Fprint(d.out, rendered)
			return
		}
	}
	fmt.Fprintln(d.out, text)
}

func (d *display) banner(model, host, workDir string) {
	fmt.Fprintln(d.out, bannerStyle.Render("homecode"))
	fmt.Fprintln(d.out, dimStyle.Render("  model:   "+model))
	fmt.Fprintln(d.out, dimStyle.Render("  host:    "+host))
	fmt.Fprintln(d.out, dimStyle.Render("  workdir: "+workDir))
	fmt.Fprintln(d.out, dimStyle.Render("  type /help for commands, /exit to quit"))
	fmt.Fprintln(d.out)
}

func (d *display) prompt() {
	fmt.Fprint(d.out, promptStyle.Render("> "))
}

func (d *display) info(msg string) {
	fmt.Fprintln(d.out, dimStyle.Render(msg))
}

func (d *display) error(err error) {
	fmt.Fprintln(d.out, errorStyle.Render("error: "+err.Error()))
}

// consumeEvents renders tool activity from the loop's event stream.
// Runs on its own goroutine until the channel closes.
func (d *display) consumeEvents(events <-chan agent.Event) {
	for ev := range events {
		switch ev.Kind {
		case agent.EventToolCallStart:
			name, _ := ev.Data["tool_name"].(string)
			fmt.Fprintln(d.out, toolStyle.Render("  ⚒ "+name))
		case agent.EventToolCallEnd:
			if msg, ok := ev.Data["error"].(string); ok {
				fmt.Fprintln(d.out, errorStyle.Render("    ✗ "+firstLine(msg)))
			} else if output, ok := ev.Data["output"].(string); ok {
				fmt.Fprintln(d.out, dimStyle.Render("    "+firstLine(output)))
			}
		case agent.EventModelRetry:
			msg, _ := ev.Data["error"].(string)
			fmt.Fprintln(d.out, dimStyle.Render("  retrying: "+firstLine(msg)))
		case agent.EventLoopDetection:
			fmt.Fprintln(d.out, errorStyle.Render("  repeating tool calls detected, steering the model"))
		case agent.EventCompaction:
			fmt.Fprintln(d.out, dimStyle.Render(fmt.Sprintf("  compacted history: dropped %v turns", ev.Data["dropped_turns"])))
		case agent.EventTurnLimit:
			fmt.Fprintln(d.out, errorStyle.Render("  iteration limit reached"))
		case agent.EventWarning:
			msg, _ := ev.Data["message"].(string)
			fmt.Fprintln(d.out, dimStyle.Render("  "+firstLine(msg)))
		}
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i] + " …"
	}
	if len(s) > 120 {
		s = s[:120] + "…"
	}
	return s
}
