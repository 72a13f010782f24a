package agent

import (
	"time"

	"github.com/Yteria17/HomeCode/llm"
)

// TurnKind discriminates between turn types.
type TurnKind string

const (
	TurnUser      TurnKind = "user"
	TurnAssistant TurnKind = "assistant"
	TurnTool      TurnKind = "tool"
)

// Turn is a single entry in the conversation history. Exactly one of
// the payload pointers is set, matching Kind.
type Turn struct {
	Kind      TurnKind       `json:"kind"`
	Timestamp time.Time      `json:"timestamp"`
	User      *UserTurn      `json:"user,omitempty"`
	Assistant *AssistantTurn `json:"assistant,omitempty"`
	Tool      *ToolTurn      `json:"tool,omitempty"`
}

// UserTurn holds user input.
type UserTurn struct {
	Content string `json:"content"`
}

// AssistantTurn holds the model's response: final text, or text plus the
// tool calls it requested.
type AssistantTurn struct {
	Content   string         `json:"content"`
	ToolCalls []llm.ToolCall `json:"tool_calls,omitempty"`
	Usage     llm.Usage      `json:"usage"`
}

// ToolTurn holds exactly one tool execution result, keyed back to its
// request by ToolCallID.
type ToolTurn struct {
	Result llm.ToolResult `json:"result"`
}

// NewUserTurn creates a Turn wrapping user input.
func NewUserTurn(content string) Turn {
	return Turn{
		Kind:      TurnUser,
		Timestamp: time.Now(),
		User:      &UserTurn{Content: content},
	}
}

// NewAssistantTurn creates a Turn wrapping an assistant response.
func NewAssistantTurn(content string, toolCalls []llm.ToolCall, usage llm.Usage) Turn {
	return Turn{
		Kind:      TurnAssistant,
		Timestamp: time.Now(),
		Assistant: &AssistantTurn{Content: content, ToolCalls: toolCalls, Usage: usage},
	}
}

// NewToolTurn creates a Turn wrapping one tool result.
func NewToolTurn(result llm.ToolResult) Turn {
	return Turn{
		Kind:      TurnTool,
		Timestamp: time.Now(),
		Tool:      &ToolTurn{Result: result},
	}
}

// ToolCalls returns the tool calls requested by an assistant turn, or
// nil for other kinds.
func (t Turn) ToolCalls() []llm.ToolCall {
	if t.Kind == TurnAssistant && t.Assistant != nil {
		return t.Assistant.ToolCalls
	}
	return nil
}

// ToMessages converts the turn history into the wire-level message list
// sent to the model.
func ToMessages(history []Turn) []llm.Message {
	messages := make([]llm.Message, 0, len(history))
	for _, turn := range history {
		switch turn.Kind {
		case TurnUser:
			if turn.User != nil {
				messages = append(messages, llm.UserMessage(turn.User.Content))
			}
		case TurnAssistant:
			if turn.Assistant != nil {
				messages = append(messages, llm.AssistantMessage(turn.Assistant.Content, turn.Assistant.ToolCalls))
			}
		case TurnTool:
			if turn.Tool != nil {
				messages = append(messages, llm.ToolResultMessage(turn.Tool.Result))
			}
		}
	}
	return messages
}
