package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/teilomillet/gollm"
)

// GollmAdapter wraps a gollm.LLM instance and implements ProviderAdapter.
// It serves providers with native SDK paths ("openai", "anthropic") as an
// alternative to the raw chat-completions transport.
type GollmAdapter struct {
	provider string
	llm      gollm.LLM
	model    string
}

// GollmOption configures a GollmAdapter.
type GollmOption func(*gollmConfig)

type gollmConfig struct {
	maxTokens   int
	temperature float64
	extraOpts   []gollm.ConfigOption
}

// WithMaxTokens sets the default max tokens.
func WithMaxTokens(n int) GollmOption {
	return func(c *gollmConfig) { c.maxTokens = n }
}

// WithTemperature sets the default temperature.
func WithTemperature(t float64) GollmOption {
	return func(c *gollmConfig) { c.temperature = t }
}

// WithGollmOptions adds extra gollm configuration options.
func WithGollmOptions(opts ...gollm.ConfigOption) GollmOption {
	return func(c *gollmConfig) { c.extraOpts = append(c.extraOpts, opts...) }
}

// NewGollmAdapter creates an adapter for the given provider and model.
// If apiKey is empty, gollm reads it from the provider's environment
// variable.
func NewGollmAdapter(provider, apiKey, model string, opts ...GollmOption) (*GollmAdapter, error) {
	cfg := &gollmConfig{
		maxTokens:   4096,
		temperature: 0.6,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	gollmOpts := []gollm.ConfigOption{
		gollm.SetProvider(provider),
		gollm.SetModel(model),
		gollm.SetMaxTokens(cfg.maxTokens),
		gollm.SetTemperature(cfg.temperature),
		gollm.SetMaxRetries(0), // retry is the caller's job
		gollm.SetLogLevel(gollm.LogLevelWarn),
	}
	if apiKey != "" {
		gollmOpts = append(gollmOpts, gollm.SetAPIKey(apiKey))
	}
	gollmOpts = append(gollmOpts, cfg.extraOpts...)

	inner, err := gollm.NewLLM(gollmOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gollm LLM for provider %s: %w", provider, err)
	}

	return &GollmAdapter{provider: provider, llm: inner, model: model}, nil
}

// NewGollmAdapterFromLLM wraps an existing gollm.LLM instance.
func NewGollmAdapterFromLLM(provider string, inner gollm.LLM) *GollmAdapter {
	return &GollmAdapter{provider: provider, llm: inner}
}

// Name returns the provider identifier.
func (a *GollmAdapter) Name() string { return a.provider }

// Complete sends a blocking request and returns the full response.
func (a *GollmAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	prompt := a.translateRequest(req)

	if req.Model != "" {
		a.llm.SetOption("model", req.Model)
	}
	if req.Temperature != nil {
		a.llm.SetOption("temperature", *req.Temperature)
	}
	if req.MaxTokens != nil {
		a.llm.SetOption("max_tokens", *req.MaxTokens)
	}

	text, err := a.llm.Generate(ctx, prompt)
	if err != nil {
		return nil, a.translateError(err)
	}

	return a.buildResponse(req, text), nil
}

// translateRequest converts a Request into a gollm Prompt. gollm takes a
// single prompt string, so the conversation is flattened with role
// markers and tool results become inline context.
func (a *GollmAdapter) translateRequest(req Request) *gollm.Prompt {
	var systemPrompt string
	var parts []string

	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			systemPrompt += msg.Content + "\n"
		case RoleUser:
			parts = append(parts, msg.Content)
		case RoleAssistant:
			if msg.Content != "" {
				parts = append(parts, "[Assistant]: "+msg.Content)
			}
			for _, tc := range msg.ToolCalls {
				parts = append(parts, fmt.Sprintf("[Tool Call %s]: %s(%s)", tc.ID, tc.Name, string(tc.Arguments)))
			}
		case RoleTool:
			parts = append(parts, fmt.Sprintf("[Tool Result %s]: %s", msg.ToolCallID, msg.Content))
		}
	}

	promptText := strings.Join(parts, "\n")
	if promptText == "" {
		promptText = "Hello"
	}

	promptOpts := []gollm.PromptOption{}
	if systemPrompt != "" {
		promptOpts = append(promptOpts, gollm.WithSystemPrompt(strings.TrimSpace(systemPrompt), gollm.CacheTypeEphemeral))
	}
	if req.MaxTokens != nil {
		promptOpts = append(promptOpts, gollm.WithMaxLength(*req.MaxTokens))
	}

	if len(req.Tools) > 0 {
		tools := make([]gollm.Tool, 0, len(req.Tools))
		for _, t := range req.Tools {
			tools = append(tools, gollm.Tool{
				Type: "function",
				Function: gollm.Function{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.Parameters,
				},
			})
		}
		promptOpts = append(promptOpts, gollm.WithTools(tools))
		promptOpts = append(promptOpts, gollm.WithToolChoice("auto"))
	}

	return gollm.NewPrompt(promptText, promptOpts...)
}

// buildResponse constructs a Response from generated text, extracting
// tool calls that gollm returns embedded as JSON.
func (a *GollmAdapter) buildResponse(req Request, text string) *Response {
	model := req.Model
	if model == "" {
		model = a.model
	}

	toolCalls := a.parseToolCalls(text)
	content := text
	if len(toolCalls) > 0 {
		content = a.stripToolCallJSON(text)
	}

	return &Response{
		ID:       "resp_" + uuid.New().String()[:8],
		Model:    model,
		Provider: a.provider,
		Message: Message{
			Role:      RoleAssistant,
			Content:   content,
			ToolCalls: toolCalls,
		},
		FinishReason: finishReasonFor(toolCalls),
	}
}

func finishReasonFor(toolCalls []ToolCall) string {
	if len(toolCalls) > 0 {
		return "tool_calls"
	}
	return "stop"
}

// parseToolCalls extracts tool calls that appear as a JSON array in the
// response text.
func (a *GollmAdapter) parseToolCalls(text string) []ToolCall {
	start := strings.Index(text, `[{"name"`)
	if start == -1 {
		return nil
	}

	var rawCalls []struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal([]byte(text[start:]), &rawCalls); err != nil {
		return nil
	}

	calls := make([]ToolCall, 0, len(rawCalls))
	for _, rc := range rawCalls {
		args := rc.Arguments
		if len(args) == 0 {
			args = json.RawMessage("{}")
		}
		calls = append(calls, ToolCall{
			ID:        "call_" + uuid.New().String()[:8],
			Name:      rc.Name,
			Arguments: args,
		})
	}
	return calls
}

// stripToolCallJSON removes the parsed tool-call JSON from the text so
// only the informational prose remains.
func (a *GollmAdapter) stripToolCallJSON(text string) string {
	if idx := strings.Index(text, `[{"name"`); idx != -1 {
		return strings.TrimSpace(text[:idx])
	}
	return text
}

// translateError converts a gollm error into the transport taxonomy.
// gollm flattens provider errors into strings, so classification is by
// message content.
func (a *GollmAdapter) translateError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	lower := strings.ToLower(msg)

	pe := func(status int, retryable bool) ProviderError {
		return ProviderError{
			APIError:   APIError{Message: msg, Cause: err},
			Provider:   a.provider,
			StatusCode: status,
			Retryable:  retryable,
		}
	}

	switch {
	case strings.Contains(lower, "401") || strings.Contains(lower, "unauthorized") || strings.Contains(lower, "invalid api key"):
		return &AuthenticationError{ProviderError: pe(401, false)}
	case strings.Contains(lower, "403") || strings.Contains(lower, "forbidden"):
		return &AccessDeniedError{ProviderError: pe(403, false)}
	case strings.Contains(lower, "404") || strings.Contains(lower, "not found"):
		return &NotFoundError{ProviderError: pe(404, false)}
	case strings.Contains(lower, "429") || strings.Contains(lower, "rate limit"):
		return &RateLimitError{ProviderError: pe(429, true)}
	case strings.Contains(lower, "context length") || strings.Contains(lower, "too many tokens"):
		return &ContextLengthError{ProviderError: pe(413, false)}
	case strings.Contains(lower, "500") || strings.Contains(lower, "internal server"):
		return &ServerError{ProviderError: pe(500, true)}
	case strings.Contains(lower, "timeout"):
		return &RequestTimeoutError{APIError: APIError{Message: msg, Cause: err}}
	default:
		p := pe(0, true)
		return &p
	}
}
