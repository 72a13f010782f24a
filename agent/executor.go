package agent

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"

	"github.com/Yteria17/HomeCode/llm"
)

// ExecutorLimits overrides the default per-tool output bounds.
type ExecutorLimits struct {
	CharLimits map[string]int
	LineLimits map[string]int
}

// Executor runs tool calls against an environment. A tool failure is a
// conversation fact, not a program fault: every call produces a
// ToolResult, and errors travel back to the model as IsError results.
type Executor struct {
	registry *ToolRegistry
	env      Environment
	limits   ExecutorLimits
	logger   zerolog.Logger
	emitter  *EventEmitter
}

// NewExecutor creates an Executor over a registry and environment.
func NewExecutor(registry *ToolRegistry, env Environment, logger zerolog.Logger, emitter *EventEmitter) *Executor {
	return &Executor{
		registry: registry,
		env:      env,
		logger:   logger.With().Str("component", "executor").Logger(),
		emitter:  emitter,
	}
}

// SetLimits overrides the default truncation limits.
func (x *Executor) SetLimits(limits ExecutorLimits) {
	x.limits = limits
}

// Execute handles the full pipeline for one tool call:
// lookup, argument validation, run, truncate, emit.
func (x *Executor) Execute(ctx context.Context, toolCall llm.ToolCall) llm.ToolResult {
	start := time.Now()
	x.emitter.Emit(EventToolCallStart, map[string]any{
		"tool_name": toolCall.Name,
		"call_id":   toolCall.ID,
	})
	x.logger.Debug().
		Str("tool", toolCall.Name).
		Str("call_id", toolCall.ID).
		RawJSON("arguments", normalizeRawArgs(toolCall.Arguments)).
		Msg("tool call start")

	registered := x.registry.Get(toolCall.Name)
	if registered == nil {
		return x.errorResult(toolCall, start, fmt.Sprintf("Unknown tool: %s. Available tools: %s",
			toolCall.Name, strings.Join(x.registry.Names(), ", ")))
	}

	if msg := validateArguments(registered.Definition, toolCall.Arguments); msg != "" {
		return x.errorResult(toolCall, start, fmt.Sprintf("Invalid arguments for %s: %s", toolCall.Name, msg))
	}

	rawOutput, err := x.runContained(ctx, registered, toolCall)
	if err != nil {
		return x.errorResult(toolCall, start, fmt.Sprintf("Tool error (%s): %v", toolCall.Name, err))
	}
	if rawOutput == "" {
		rawOutput = "(no output)"
	}

	truncated := TruncateToolOutput(rawOutput, toolCall.Name, x.limits.CharLimits, x.limits.LineLimits)

	// The event stream carries the full output; only the conversation
	// sees the truncated version.
	x.emitter.Emit(EventToolCallEnd, map[string]any{
		"call_id":   toolCall.ID,
		"tool_name": toolCall.Name,
		"output":    rawOutput,
	})
	x.logger.Debug().
		Str("tool", toolCall.Name).
		Str("call_id", toolCall.ID).
		Dur("duration", time.Since(start)).
		Int("output_bytes", len(rawOutput)).
		Msg("tool call end")

	return llm.ToolResult{
		ToolCallID: toolCall.ID,
		Content:    truncated,
	}
}

// runContained invokes the tool function with panic containment. A
// panicking tool must not take down the loop.
func (x *Executor) runContained(ctx context.Context, registered *RegisteredTool, toolCall llm.ToolCall) (output string, err error) {
	defer func() {
		if r := recover(); r != nil {
			x.logger.Error().
				Str("tool", toolCall.Name).
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("tool panicked")
			err = fmt.Errorf("tool panicked: %v", r)
		}
	}()
	return registered.Run(ctx, toolCall.Arguments, x.env)
}

func (x *Executor) errorResult(toolCall llm.ToolCall, start time.Time, msg string) llm.ToolResult {
	x.emitter.Emit(EventToolCallEnd, map[string]any{
		"call_id":   toolCall.ID,
		"tool_name": toolCall.Name,
		"error":     msg,
	})
	x.logger.Warn().
		Str("tool", toolCall.Name).
		Str("call_id", toolCall.ID).
		Dur("duration", time.Since(start)).
		Msg(msg)
	return llm.ToolResult{
		ToolCallID: toolCall.ID,
		Content:    msg,
		IsError:    true,
	}
}

// validateArguments checks tool arguments against the tool's parameter
// schema. Returns an empty string when valid, otherwise a message
// describing every violation.
func validateArguments(def llm.ToolDefinition, args []byte) string {
	if len(def.Parameters) == 0 {
		return ""
	}
	schemaLoader := gojsonschema.NewGoLoader(def.Parameters)
	docLoader := gojsonschema.NewBytesLoader(normalizeRawArgs(args))

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return err.Error()
	}
	if result.Valid() {
		return ""
	}
	var msgs []string
	for _, desc := range result.Errors() {
		msgs = append(msgs, desc.String())
	}
	return strings.Join(msgs, "; ")
}

// normalizeRawArgs maps absent arguments to an empty JSON object so
// validation and logging always see well-formed JSON.
func normalizeRawArgs(args []byte) []byte {
	trimmed := strings.TrimSpace(string(args))
	if trimmed == "" {
		return []byte("{}")
	}
	return []byte(trimmed)
}
