package agent

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/Yteria17/HomeCode/llm"
)

func call(id, name string) llm.ToolCall {
	return llm.ToolCall{ID: id, Name: name, Arguments: json.RawMessage(`{}`)}
}

func result(id string) llm.ToolResult {
	return llm.ToolResult{ToolCallID: id, Content: "ok"}
}

func mustAppend(t *testing.T, s *ConversationStore, turn Turn) {
	t.Helper()
	if err := s.Append(turn); err != nil {
		t.Fatalf("append failed: %v", err)
	}
}

func TestAppendRejectsUserWhileCallsPending(t *testing.T) {
	s := NewConversationStore()
	mustAppend(t, s, NewUserTurn("hi"))
	mustAppend(t, s, NewAssistantTurn("", []llm.ToolCall{call("c1", "glob")}, llm.Usage{}))

	err := s.Append(NewUserTurn("another"))
	var violation *InvariantViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected InvariantViolationError, got %v", err)
	}

	// The store is unchanged after the rejected append.
	if s.Len() != 2 {
		t.Errorf("rejected turn was recorded, len=%d", s.Len())
	}
	if got := s.PendingCalls(); len(got) != 1 || got[0] != "c1" {
		t.Errorf("pending calls corrupted: %v", got)
	}
}

func TestAppendRejectsAssistantWhileCallsPending(t *testing.T) {
	s := NewConversationStore()
	mustAppend(t, s, NewUserTurn("hi"))
	mustAppend(t, s, NewAssistantTurn("", []llm.ToolCall{call("c1", "glob")}, llm.Usage{}))

	err := s.Append(NewAssistantTurn("done", nil, llm.Usage{}))
	var violation *InvariantViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected InvariantViolationError, got %v", err)
	}
}

func TestAppendRejectsUnpairedToolResult(t *testing.T) {
	s := NewConversationStore()
	mustAppend(t, s, NewUserTurn("hi"))

	err := s.Append(NewToolTurn(result("ghost")))
	var violation *InvariantViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected InvariantViolationError, got %v", err)
	}
}

func TestAppendRejectsDuplicateCallIDs(t *testing.T) {
	s := NewConversationStore()
	mustAppend(t, s, NewUserTurn("hi"))
	mustAppend(t, s, NewAssistantTurn("", []llm.ToolCall{call("c1", "glob")}, llm.Usage{}))
	mustAppend(t, s, NewToolTurn(result("c1")))

	err := s.Append(NewAssistantTurn("", []llm.ToolCall{call("c1", "grep")}, llm.Usage{}))
	var violation *InvariantViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected duplicate ID to be rejected, got %v", err)
	}
	if !strings.Contains(violation.Reason, "c1") {
		t.Errorf("reason should name the duplicate: %s", violation.Reason)
	}
}

func TestAppendRejectsEmptyCallID(t *testing.T) {
	s := NewConversationStore()
	mustAppend(t, s, NewUserTurn("hi"))

	err := s.Append(NewAssistantTurn("", []llm.ToolCall{call("", "glob")}, llm.Usage{}))
	var violation *InvariantViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected empty ID to be rejected, got %v", err)
	}
}

func TestPairingAcrossFullRound(t *testing.T) {
	s := NewConversationStore()
	mustAppend(t, s, NewUserTurn("list and read"))
	mustAppend(t, s, NewAssistantTurn("", []llm.ToolCall{call("c1", "glob"), call("c2", "read_file")}, llm.Usage{}))

	if got := s.PendingCalls(); len(got) != 2 {
		t.Fatalf("expected 2 pending calls, got %v", got)
	}

	mustAppend(t, s, NewToolTurn(result("c1")))
	mustAppend(t, s, NewToolTurn(result("c2")))

	if got := s.PendingCalls(); len(got) != 0 {
		t.Fatalf("expected no pending calls, got %v", got)
	}

	// Next assistant turn is allowed again.
	mustAppend(t, s, NewAssistantTurn("all done", nil, llm.Usage{}))
}

func TestResetIsIdempotent(t *testing.T) {
	s := NewConversationStore()
	mustAppend(t, s, NewUserTurn("hi"))
	mustAppend(t, s, NewAssistantTurn("", []llm.ToolCall{call("c1", "glob")}, llm.Usage{}))

	s.Reset()
	s.Reset()

	if s.Len() != 0 {
		t.Errorf("expected empty store, len=%d", s.Len())
	}
	if len(s.PendingCalls()) != 0 {
		t.Error("expected no pending calls after reset")
	}

	// Previously seen IDs are usable again after reset.
	mustAppend(t, s, NewUserTurn("hi"))
	mustAppend(t, s, NewAssistantTurn("", []llm.ToolCall{call("c1", "glob")}, llm.Usage{}))
}

func completeGroup(t *testing.T, s *ConversationStore, input, callID string) {
	t.Helper()
	mustAppend(t, s, NewUserTurn(input))
	mustAppend(t, s, NewAssistantTurn("", []llm.ToolCall{call(callID, "run_bash")}, llm.Usage{}))
	mustAppend(t, s, NewToolTurn(llm.ToolResult{ToolCallID: callID, Content: strings.Repeat("x", 512)}))
	mustAppend(t, s, NewAssistantTurn("done with "+input, nil, llm.Usage{}))
}

func TestCompactDropsOldestGroups(t *testing.T) {
	s := NewConversationStore()
	completeGroup(t, s, "first task", "c1")
	completeGroup(t, s, "second task", "c2")
	completeGroup(t, s, "third task", "c3")

	budget := s.SerializedSize() / 2
	report := s.Compact(budget)

	if !report.Compacted() {
		t.Fatal("expected compaction to drop something")
	}
	if s.SerializedSize() > budget {
		t.Errorf("size %d still over budget %d", s.SerializedSize(), budget)
	}

	// The oldest group goes first; the most recent user turn survives.
	turns := s.Snapshot()
	var userInputs []string
	for _, turn := range turns {
		if turn.Kind == TurnUser {
			userInputs = append(userInputs, turn.User.Content)
		}
	}
	if len(userInputs) == 0 {
		t.Fatal("compaction removed every user turn")
	}
	if userInputs[len(userInputs)-1] != "third task" {
		t.Errorf("most recent user turn dropped, last is %q", userInputs[len(userInputs)-1])
	}
	for _, input := range userInputs {
		if input == "first task" {
			t.Error("oldest group should have been dropped first")
		}
	}
}

func TestCompactNeverDropsLastGroup(t *testing.T) {
	s := NewConversationStore()
	completeGroup(t, s, "only task", "c1")

	report := s.Compact(1) // impossible budget
	if report.DroppedTurns != 0 {
		t.Errorf("dropped %d turns from the only group", report.DroppedTurns)
	}
	if s.Len() == 0 {
		t.Fatal("store emptied by compaction")
	}
}

func TestCompactZeroBudgetDisabled(t *testing.T) {
	s := NewConversationStore()
	completeGroup(t, s, "task", "c1")

	before := s.Len()
	report := s.Compact(0)
	if report.Compacted() || s.Len() != before {
		t.Error("budget 0 should disable compaction")
	}
}

func TestCompactSkipsGroupWithUnansweredCalls(t *testing.T) {
	s := NewConversationStore()
	mustAppend(t, s, NewUserTurn("task"))
	mustAppend(t, s, NewAssistantTurn("", []llm.ToolCall{call("c1", "glob")}, llm.Usage{}))

	// c1 is still pending; a second group cannot even start, so the
	// single in-flight group must survive any budget.
	report := s.Compact(1)
	if report.DroppedTurns != 0 {
		t.Errorf("dropped %d turns with calls in flight", report.DroppedTurns)
	}
	if got := s.PendingCalls(); len(got) != 1 {
		t.Errorf("pending calls corrupted: %v", got)
	}
}

func TestToMessagesShape(t *testing.T) {
	s := NewConversationStore()
	mustAppend(t, s, NewUserTurn("hi"))
	mustAppend(t, s, NewAssistantTurn("checking", []llm.ToolCall{call("c1", "glob")}, llm.Usage{}))
	mustAppend(t, s, NewToolTurn(result("c1")))
	mustAppend(t, s, NewAssistantTurn("done", nil, llm.Usage{}))

	msgs := ToMessages(s.Snapshot())
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(msgs))
	}
	if msgs[0].Role != llm.RoleUser {
		t.Errorf("message 0 role = %s", msgs[0].Role)
	}
	if msgs[1].Role != llm.RoleAssistant || len(msgs[1].ToolCalls) != 1 {
		t.Errorf("message 1 should carry the tool call: %+v", msgs[1])
	}
	if msgs[2].Role != llm.RoleTool || msgs[2].ToolCallID != "c1" {
		t.Errorf("message 2 should be the tool result: %+v", msgs[2])
	}
	if msgs[3].Role != llm.RoleAssistant || msgs[3].Content != "done" {
		t.Errorf("message 3 malformed: %+v", msgs[3])
	}
}
