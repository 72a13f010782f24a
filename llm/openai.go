package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// HTTPAdapter speaks the OpenAI chat-completions wire format against any
// compatible base URL: OpenRouter, Ollama's OpenAI endpoint, or OpenAI
// itself. It does request/response marshalling only; retry belongs to
// the caller.
type HTTPAdapter struct {
	name    string
	baseURL string
	apiKey  string
	client  *http.Client
}

// HTTPAdapterOption configures an HTTPAdapter.
type HTTPAdapterOption func(*HTTPAdapter)

// WithHTTPClient overrides the underlying http.Client.
func WithHTTPClient(c *http.Client) HTTPAdapterOption {
	return func(a *HTTPAdapter) { a.client = c }
}

// NewHTTPAdapter creates an adapter for an OpenAI-compatible endpoint.
// baseURL is the API root without the /chat/completions suffix.
func NewHTTPAdapter(name, baseURL, apiKey string, opts ...HTTPAdapterOption) *HTTPAdapter {
	a := &HTTPAdapter{
		name:    name,
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 5 * time.Minute},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name returns the provider identifier.
func (a *HTTPAdapter) Name() string { return a.name }

// Wire types for the chat-completions request body.

type wireFunctionDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type wireToolDef struct {
	Type     string          `json:"type"`
	Function wireFunctionDef `json:"function"`
}

type wireFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type wireToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function wireFunctionCall `json:"function"`
}

type wireMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type wireRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Tools       []wireToolDef `json:"tools,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
}

type wireUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type wireResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      wireMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage wireUsage `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete sends one chat-completions request and decodes the response.
func (a *HTTPAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	body, err := json.Marshal(a.translateRequest(req))
	if err != nil {
		return nil, &APIError{Message: "failed to marshal request", Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, &APIError{Message: "failed to build request", Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if a.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, &CancelledError{APIError: APIError{Message: "request cancelled", Cause: err}}
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &RequestTimeoutError{APIError: APIError{Message: "request timed out", Cause: err}}
		}
		return nil, &NetworkError{APIError: APIError{Message: "request failed", Cause: err}}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{APIError: APIError{Message: "failed to read response body", Cause: err}}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, a.errorFromResponse(resp, raw)
	}

	var wire wireResponse
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, &MalformedResponseError{APIError: APIError{Message: "failed to decode response", Cause: err}}
	}
	if wire.Error != nil {
		// Some compatible hosts report errors in a 200 body.
		return nil, &ProviderError{
			APIError:  APIError{Message: wire.Error.Message},
			Provider:  a.name,
			Retryable: true,
		}
	}
	if len(wire.Choices) == 0 {
		return nil, &MalformedResponseError{APIError: APIError{Message: "response contains no choices"}}
	}

	return a.translateResponse(wire), nil
}

// translateRequest converts a Request into the chat-completions body.
func (a *HTTPAdapter) translateRequest(req Request) wireRequest {
	out := wireRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	for _, msg := range req.Messages {
		wm := wireMessage{
			Role:       string(msg.Role),
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
		for _, tc := range msg.ToolCalls {
			wm.ToolCalls = append(wm.ToolCalls, wireToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: wireFunctionCall{
					Name:      tc.Name,
					Arguments: string(tc.Arguments),
				},
			})
		}
		out.Messages = append(out.Messages, wm)
	}
	for _, tool := range req.Tools {
		out.Tools = append(out.Tools, wireToolDef{
			Type: "function",
			Function: wireFunctionDef{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}
	return out
}

// translateResponse converts the wire response into the unified shape.
func (a *HTTPAdapter) translateResponse(wire wireResponse) *Response {
	choice := wire.Choices[0]

	msg := Message{
		Role:    RoleAssistant,
		Content: choice.Message.Content,
	}
	for _, wtc := range choice.Message.ToolCalls {
		id := wtc.ID
		if id == "" {
			id = "call_" + uuid.New().String()[:8]
		}
		args := wtc.Function.Arguments
		if args == "" || !json.Valid([]byte(args)) {
			args = "{}"
		}
		msg.ToolCalls = append(msg.ToolCalls, ToolCall{
			ID:        id,
			Name:      wtc.Function.Name,
			Arguments: json.RawMessage(args),
		})
	}

	return &Response{
		ID:           wire.ID,
		Model:        wire.Model,
		Provider:     a.name,
		Message:      msg,
		FinishReason: choice.FinishReason,
		Usage: Usage{
			InputTokens:  wire.Usage.PromptTokens,
			OutputTokens: wire.Usage.CompletionTokens,
			TotalTokens:  wire.Usage.TotalTokens,
		},
	}
}

// errorFromResponse maps a non-2xx response to the error taxonomy.
func (a *HTTPAdapter) errorFromResponse(resp *http.Response, raw []byte) error {
	message := fmt.Sprintf("request failed with status %d", resp.StatusCode)
	var errBody struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &errBody); err == nil && errBody.Error.Message != "" {
		message = errBody.Error.Message
	}

	var retryAfter *float64
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil {
			retryAfter = &secs
		}
	}

	return ErrorFromStatusCode(resp.StatusCode, message, a.name, retryAfter)
}
