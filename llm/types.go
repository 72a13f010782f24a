package llm

import "encoding/json"

// Role identifies who produced a message in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry in the conversation sent over the wire.
// ToolCalls is populated only on assistant messages that request tools;
// ToolCallID only on tool messages, linking a result back to its request.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// SystemMessage creates a system Message.
func SystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: text}
}

// UserMessage creates a user Message.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// AssistantMessage creates an assistant Message carrying text and any
// tool calls the model issued alongside it.
func AssistantMessage(text string, toolCalls []ToolCall) Message {
	return Message{Role: RoleAssistant, Content: text, ToolCalls: toolCalls}
}

// ToolResultMessage creates a tool Message from an executed result.
func ToolResultMessage(result ToolResult) Message {
	return Message{Role: RoleTool, Content: result.Content, ToolCallID: result.ToolCallID}
}

// ToolCall is a model-issued request to invoke a named tool.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolResult is produced by executing a tool call. Content may carry an
// explicit truncation marker when the raw output exceeded the limit.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error"`
}

// ToolDefinition describes a callable tool to the model: name,
// human-readable description, and a JSON Schema for its arguments.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request is the input to Client.Complete.
type Request struct {
	Model       string           `json:"model"`
	Messages    []Message        `json:"messages"`
	Tools       []ToolDefinition `json:"tools,omitempty"`
	Provider    string           `json:"provider,omitempty"`
	Temperature *float64         `json:"temperature,omitempty"`
	MaxTokens   *int             `json:"max_tokens,omitempty"`
}

// Usage tracks token consumption reported by the provider.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Response is the output of Client.Complete.
type Response struct {
	ID           string  `json:"id"`
	Model        string  `json:"model"`
	Provider     string  `json:"provider"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason,omitempty"`
	Usage        Usage   `json:"usage"`
}

// OutcomeKind discriminates the two terminal shapes of a model response.
type OutcomeKind string

const (
	OutcomeFinal     OutcomeKind = "final"
	OutcomeToolCalls OutcomeKind = "tool_calls"
)

// Outcome is the tagged decoding of a Response: either a final textual
// answer, or a batch of tool calls. When the model emits text alongside
// tool calls, the text is kept as informational content and the outcome
// is still the tool-call branch.
type Outcome struct {
	Kind      OutcomeKind
	Text      string
	ToolCalls []ToolCall
}

// Outcome decodes the response into its tagged variant.
func (r *Response) Outcome() Outcome {
	if len(r.Message.ToolCalls) > 0 {
		return Outcome{
			Kind:      OutcomeToolCalls,
			Text:      r.Message.Content,
			ToolCalls: r.Message.ToolCalls,
		}
	}
	return Outcome{Kind: OutcomeFinal, Text: r.Message.Content}
}
