package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/Yteria17/HomeCode/agent"
	"github.com/Yteria17/HomeCode/config"
)

// repl is the interactive read-eval-print loop around the agent.
type repl struct {
	loop    *agent.Loop
	display *display
	cfg     *config.Config
}

func (r *repl) run() error {
	r.display.banner(r.cfg.Model, r.cfg.Host, r.loopWorkDir())

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		r.display.prompt()
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if quit := r.handleCommand(input); quit {
				return nil
			}
			continue
		}

		r.submit(input)
	}
}

// submit runs one user input with a per-turn interrupt context, so
// Ctrl-C cancels the in-flight model call and any running subprocess
// without ending the session.
func (r *repl) submit(input string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	answer, err := r.loop.Run(ctx, input)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			r.display.info("interrupted")
			return
		}
		r.display.error(err)
		return
	}
	r.display.answer(answer)
}

// handleCommand processes a slash command and reports whether the REPL
// should exit.
func (r *repl) handleCommand(input string) bool {
	fields := strings.Fields(input)
	switch fields[0] {
	case "/exit", "/quit":
		r.display.info("bye")
		return true
	case "/help":
		r.display.info(strings.Join([]string{
			"/help          show this help",
			"/model [name]  show or switch the model",
			"/reset         clear the conversation",
			"/exit, /quit   leave",
		}, "\n"))
	case "/model":
		if len(fields) > 1 {
			r.loop.SetModel(fields[1])
			r.display.info("model set to " + fields[1])
		} else {
			r.display.info("model: " + r.loop.Model())
		}
	case "/reset":
		r.loop.Reset()
		r.display.info("conversation cleared")
	default:
		r.display.info("unknown command " + fields[0] + ", try /help")
	}
	return false
}

func (r *repl) loopWorkDir() string {
	if r.cfg.WorkDir != "" {
		return r.cfg.WorkDir
	}
	wd, _ := os.Getwd()
	return wd
}
