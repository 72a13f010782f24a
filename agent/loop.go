package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Yteria17/HomeCode/llm"
)

// State describes what the loop is currently doing.
type State string

const (
	StateAwaitingUser State = "awaiting_user"
	StateCallingModel State = "calling_model"
	StateRunningTools State = "running_tools"
	StateDone         State = "done"
	StateFailed       State = "failed"
)

// ErrIterationBudget is returned when a single user input exhausts the
// configured number of model calls without producing a final answer.
var ErrIterationBudget = errors.New("tool-call budget exceeded")

// Config controls loop behavior. Zero values get sensible defaults.
type Config struct {
	Model         string
	Provider      string
	SystemPrompt  string // overrides the generated prompt when set
	MaxIterations int    // model calls per user input; default 20
	HistoryBudget int    // serialized history bytes; 0 disables compaction
	RetryPolicy   llm.RetryPolicy
	LoopDetection bool
	LoopWindow    int // tool-call signatures examined; default 6
	EventBuffer   int
}

func (c *Config) applyDefaults() {
	if c.MaxIterations <= 0 {
		c.MaxIterations = 20
	}
	if c.LoopWindow <= 0 {
		c.LoopWindow = 6
	}
}

// Loop drives one conversation: it alternates model calls and tool
// rounds until the model answers in plain text. All mutation of the
// conversation goes through the ConversationStore, which enforces the
// pairing invariant.
type Loop struct {
	id       string
	config   Config
	client   *llm.Client
	store    *ConversationStore
	registry *ToolRegistry
	executor *Executor
	env      Environment
	emitter  *EventEmitter
	logger   zerolog.Logger

	mu    sync.Mutex
	state State
}

// NewLoop assembles a loop over a client, registry and environment.
func NewLoop(client *llm.Client, registry *ToolRegistry, env Environment, config Config, logger zerolog.Logger) *Loop {
	config.applyDefaults()
	id := uuid.NewString()
	emitter := NewEventEmitter(id, config.EventBuffer)
	emitter.Emit(EventSessionStart, map[string]any{
		"model":    config.Model,
		"provider": config.Provider,
	})
	logger = logger.With().Str("session_id", id).Logger()
	return &Loop{
		id:       id,
		config:   config,
		client:   client,
		store:    NewConversationStore(),
		registry: registry,
		executor: NewExecutor(registry, env, logger, emitter),
		env:      env,
		emitter:  emitter,
		logger:   logger,
	}
}

// ID returns the session identifier.
func (l *Loop) ID() string { return l.id }

// State returns the current loop state.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// History returns a copy of the conversation history.
func (l *Loop) History() []Turn {
	return l.store.Snapshot()
}

// Events returns the event channel for the host application.
func (l *Loop) Events() <-chan Event {
	return l.emitter.Events()
}

// SetModel changes the model used for subsequent calls.
func (l *Loop) SetModel(model string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.config.Model = model
}

// Model returns the model used for calls.
func (l *Loop) Model() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.config.Model
}

// Reset clears the conversation. Safe to call at any time between Run
// calls, and idempotent.
func (l *Loop) Reset() {
	l.store.Reset()
	l.mu.Lock()
	l.state = StateAwaitingUser
	l.mu.Unlock()
	l.logger.Info().Msg("conversation reset")
}

// Close releases the event channel. The loop is not usable afterwards.
func (l *Loop) Close() {
	l.emitter.Emit(EventSessionEnd, nil)
	l.emitter.Close()
}

func (l *Loop) setState(s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
}

// Run processes one user input through the agentic loop and returns the
// model's final text answer. A failed turn leaves the session usable;
// the user turn stays in history and the input may be resubmitted.
func (l *Loop) Run(ctx context.Context, input string) (string, error) {
	if err := l.store.Append(NewUserTurn(input)); err != nil {
		l.setState(StateFailed)
		return "", err
	}
	l.emitter.Emit(EventUserInput, map[string]any{"content": input})

	l.mu.Lock()
	cfg := l.config
	l.mu.Unlock()

	systemPrompt := cfg.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = BuildSystemPrompt(l.env, cfg.Model)
	}
	toolDefs := l.registry.Definitions()

	for iteration := 0; ; iteration++ {
		if iteration >= cfg.MaxIterations {
			l.emitter.Emit(EventTurnLimit, map[string]any{"iterations": iteration})
			l.logger.Warn().Int("iterations", iteration).Msg("iteration budget exhausted")
			l.setState(StateFailed)
			return "", fmt.Errorf("%w after %d model calls", ErrIterationBudget, iteration)
		}

		request := llm.Request{
			Model:    cfg.Model,
			Provider: cfg.Provider,
			Messages: append([]llm.Message{llm.SystemMessage(systemPrompt)}, ToMessages(l.store.Snapshot())...),
			Tools:    toolDefs,
		}

		l.setState(StateCallingModel)
		l.emitter.Emit(EventModelStart, map[string]any{"iteration": iteration})
		callStart := time.Now()

		policy := cfg.RetryPolicy
		policy.OnRetry = func(err error, attempt int, delay time.Duration) {
			l.emitter.Emit(EventModelRetry, map[string]any{
				"attempt": attempt,
				"error":   err.Error(),
			})
			l.logger.Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("retrying model call")
		}

		response, err := llm.Retry(ctx, policy, func(ctx context.Context) (*llm.Response, error) {
			return l.client.Complete(ctx, request)
		})
		if err != nil {
			l.setState(StateFailed)
			l.emitter.Emit(EventError, map[string]any{"error": err.Error()})
			l.logger.Error().Err(err).Msg("model call failed")
			return "", fmt.Errorf("model call failed: %w", err)
		}

		l.emitter.Emit(EventModelEnd, map[string]any{
			"iteration":     iteration,
			"input_tokens":  response.Usage.InputTokens,
			"output_tokens": response.Usage.OutputTokens,
		})
		l.logger.Debug().
			Int("iteration", iteration).
			Dur("duration", time.Since(callStart)).
			Int("input_tokens", response.Usage.InputTokens).
			Int("output_tokens", response.Usage.OutputTokens).
			Msg("model call complete")

		outcome := response.Outcome()
		if err := l.store.Append(NewAssistantTurn(outcome.Text, outcome.ToolCalls, response.Usage)); err != nil {
			l.setState(StateFailed)
			return "", err
		}

		if outcome.Kind == llm.OutcomeFinal {
			l.compact()
			l.setState(StateDone)
			return outcome.Text, nil
		}

		l.setState(StateRunningTools)
		if err := l.runToolRound(ctx, outcome.ToolCalls); err != nil {
			l.setState(StateFailed)
			l.emitter.Emit(EventError, map[string]any{"error": err.Error()})
			return "", err
		}

		l.compact()

		if cfg.LoopDetection && DetectLoop(l.store.Snapshot(), cfg.LoopWindow) {
			warning := fmt.Sprintf("The last %d tool calls follow a repeating pattern. Step back and try a different approach.", cfg.LoopWindow)
			l.emitter.Emit(EventLoopDetection, map[string]any{"message": warning})
			l.logger.Warn().Msg("repeating tool-call pattern detected")
			if err := l.store.Append(NewUserTurn(warning)); err != nil {
				l.setState(StateFailed)
				return "", err
			}
		}
	}
}

// runToolRound executes a batch of tool calls strictly sequentially in
// issued order, appending each result as it arrives. On cancellation
// mid-batch the remaining calls get synthesized error results so every
// call is still answered before the error surfaces.
func (l *Loop) runToolRound(ctx context.Context, calls []llm.ToolCall) error {
	for i, tc := range calls {
		if ctx.Err() != nil {
			l.emitter.Emit(EventWarning, map[string]any{
				"message": fmt.Sprintf("interrupted with %d tool call(s) unexecuted", len(calls)-i),
			})
			for _, rest := range calls[i:] {
				interrupted := llm.ToolResult{
					ToolCallID: rest.ID,
					Content:    "Tool call was interrupted before it ran.",
					IsError:    true,
				}
				if err := l.store.Append(NewToolTurn(interrupted)); err != nil {
					return err
				}
			}
			return ctx.Err()
		}
		result := l.executor.Execute(ctx, tc)
		if err := l.store.Append(NewToolTurn(result)); err != nil {
			return err
		}
	}
	return ctx.Err()
}

// compact trims the history against the configured budget and logs what
// was dropped.
func (l *Loop) compact() {
	report := l.store.Compact(l.config.HistoryBudget)
	if !report.Compacted() {
		return
	}
	l.emitter.Emit(EventCompaction, map[string]any{
		"dropped_turns":  report.DroppedTurns,
		"dropped_groups": report.DroppedGroups,
		"dropped_bytes":  report.DroppedBytes,
		"size":           report.Size,
	})
	l.logger.Info().
		Int("dropped_turns", report.DroppedTurns).
		Int("dropped_groups", report.DroppedGroups).
		Int("dropped_bytes", report.DroppedBytes).
		Int("size", report.Size).
		Msg("history compacted")
}
