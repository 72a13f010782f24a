// Command homecode is a terminal coding assistant. It runs an agentic
// loop against an OpenAI-compatible chat completions API, with local
// tools for reading, editing, searching and running code.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Yteria17/HomeCode/agent"
	"github.com/Yteria17/HomeCode/config"
	"github.com/Yteria17/HomeCode/llm"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		flagModel    string
		flagHost     string
		flagProvider string
		flagWorkDir  string
		flagLogLevel string
	)

	cmd := &cobra.Command{
		Use:           "homecode",
		Short:         "A coding assistant for your terminal",
		Long:          "homecode runs an agentic coding loop in your terminal:\nit reads, edits and searches your code, and runs commands,\ndriven by the model of your choice.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if flagModel != "" {
				cfg.Model = flagModel
			}
			if flagHost != "" {
				cfg.Host = strings.TrimRight(flagHost, "/")
			}
			if flagProvider != "" {
				cfg.Provider = strings.ToLower(flagProvider)
			}
			if flagWorkDir != "" {
				cfg.WorkDir = flagWorkDir
			}
			if flagLogLevel != "" {
				cfg.LogLevel = strings.ToLower(flagLogLevel)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cfg)
		},
	}

	cmd.Flags().StringVarP(&flagModel, "model", "m", "", "model identifier (overrides HOMECODE_MODEL)")
	cmd.Flags().StringVar(&flagHost, "host", "", "API base URL (overrides HOMECODE_HOST)")
	cmd.Flags().StringVar(&flagProvider, "provider", "", "provider: openrouter, openai or anthropic")
	cmd.Flags().StringVarP(&flagWorkDir, "workdir", "w", "", "working directory (default: current directory)")
	cmd.Flags().StringVar(&flagLogLevel, "log-level", "", "log level: trace, debug, info, warn, error")

	return cmd
}

func run(cfg *config.Config) error {
	logger := newLogger(cfg.LogLevel)

	env := agent.NewLocalEnvironment(cfg.WorkDir)

	registry := agent.NewToolRegistry()
	agent.RegisterCoreTools(registry, cfg.BashTimeout, config.MaxBashTimeout)

	client := llm.NewClient()
	switch cfg.Provider {
	case "openai", "anthropic":
		adapter, err := llm.NewGollmAdapter(cfg.Provider, cfg.APIKey, cfg.Model)
		if err != nil {
			return err
		}
		client.RegisterProvider(adapter)
	default:
		client.RegisterProvider(llm.NewHTTPAdapter(cfg.Provider, cfg.Host, cfg.APIKey))
	}

	loop := agent.NewLoop(client, registry, env, agent.Config{
		Model:         cfg.Model,
		Provider:      cfg.Provider,
		MaxIterations: cfg.MaxIterations,
		HistoryBudget: cfg.HistoryBudget,
		RetryPolicy:   llm.DefaultRetryPolicy(),
		LoopDetection: true,
	}, logger)
	defer loop.Close()

	display := newDisplay(os.Stdout)
	go display.consumeEvents(loop.Events())

	repl := &repl{
		loop:    loop,
		display: display,
		cfg:     cfg,
	}
	return repl.run()
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.WarnLevel
	}
	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	return zerolog.New(writer).Level(lvl).With().Timestamp().Logger()
}
