package agent

import (
	"encoding/json"
	"fmt"
	"sync"
)

// InvariantViolationError reports a session-integrity error: a tool
// result that answers no pending request, a duplicate call ID, or a turn
// appended while requested tool calls are still unanswered. These are
// programming errors, never swallowed.
type InvariantViolationError struct {
	Reason string
}

func (e *InvariantViolationError) Error() string {
	return "history invariant violated: " + e.Reason
}

// CompactReport describes what a Compact call removed. Compaction is
// lossy and irreversible, so the caller is expected to log this.
type CompactReport struct {
	DroppedTurns  int
	DroppedGroups int
	DroppedBytes  int
	Size          int // serialized size after compaction
}

// Compacted reports whether anything was removed.
func (r CompactReport) Compacted() bool { return r.DroppedTurns > 0 }

// ConversationStore owns the ordered, append-only turn sequence for one
// session. No other component mutates the sequence directly. Every
// append re-checks the tool-call pairing invariant: a tool turn must
// answer a pending request, and every pending request must be answered
// before the next user or assistant turn.
type ConversationStore struct {
	mu      sync.Mutex
	turns   []Turn
	pending []string        // unanswered tool-call IDs, in issued order
	seen    map[string]bool // every call ID issued this session
}

// NewConversationStore creates an empty store.
func NewConversationStore() *ConversationStore {
	return &ConversationStore{seen: make(map[string]bool)}
}

// Append adds a turn, enforcing the pairing invariant.
func (s *ConversationStore) Append(turn Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch turn.Kind {
	case TurnUser, TurnAssistant:
		if len(s.pending) > 0 {
			return &InvariantViolationError{
				Reason: fmt.Sprintf("%d tool call(s) still unanswered (next: %s)", len(s.pending), s.pending[0]),
			}
		}
		for _, tc := range turn.ToolCalls() {
			if tc.ID == "" {
				return &InvariantViolationError{Reason: "tool call with empty ID"}
			}
			if s.seen[tc.ID] {
				return &InvariantViolationError{Reason: "duplicate tool call ID " + tc.ID}
			}
		}
		for _, tc := range turn.ToolCalls() {
			s.seen[tc.ID] = true
			s.pending = append(s.pending, tc.ID)
		}

	case TurnTool:
		if turn.Tool == nil {
			return &InvariantViolationError{Reason: "tool turn without result"}
		}
		id := turn.Tool.Result.ToolCallID
		idx := -1
		for i, p := range s.pending {
			if p == id {
				idx = i
				break
			}
		}
		if idx == -1 {
			return &InvariantViolationError{Reason: "tool result answers no pending request: " + id}
		}
		s.pending = append(s.pending[:idx], s.pending[idx+1:]...)

	default:
		return &InvariantViolationError{Reason: "unknown turn kind " + string(turn.Kind)}
	}

	s.turns = append(s.turns, turn)
	return nil
}

// Snapshot returns a copy of the turn sequence for transmission to the
// model. The caller may not mutate past turns through it.
func (s *ConversationStore) Snapshot() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Len returns the number of turns.
func (s *ConversationStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

// PendingCalls returns the unanswered tool-call IDs in issued order.
func (s *ConversationStore) PendingCalls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.pending))
	copy(out, s.pending)
	return out
}

// Reset clears all turns. Idempotent.
func (s *ConversationStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = nil
	s.pending = nil
	s.seen = make(map[string]bool)
}

// SerializedSize returns the byte size of the snapshot in wire form.
func (s *ConversationStore) SerializedSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return serializedSize(s.turns)
}

func serializedSize(turns []Turn) int {
	data, err := json.Marshal(ToMessages(turns))
	if err != nil {
		return 0
	}
	return len(data)
}

// Compact drops the oldest complete turn groups until the serialized
// snapshot fits the byte budget. A group is a user turn plus everything
// up to the next user turn. The most recent user turn and any group with
// unanswered tool calls are never dropped, so compaction can leave the
// history over budget when only one group remains. budget <= 0 disables
// compaction.
func (s *ConversationStore) Compact(budget int) CompactReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := CompactReport{Size: serializedSize(s.turns)}
	if budget <= 0 || report.Size <= budget {
		return report
	}

	for report.Size > budget {
		groups := groupBoundaries(s.turns)
		if len(groups) < 2 {
			break // never drop the most recent user turn
		}
		first := s.turns[groups[0]:groups[1]]
		if hasUnanswered(first, s.pending) {
			break
		}
		before := report.Size
		report.DroppedTurns += len(first)
		report.DroppedGroups++
		s.turns = s.turns[groups[1]:]
		report.Size = serializedSize(s.turns)
		report.DroppedBytes += before - report.Size
	}

	return report
}

// groupBoundaries returns the indexes at which turn groups start. Turns
// before the first user turn form a leading group of their own.
func groupBoundaries(turns []Turn) []int {
	var bounds []int
	for i, t := range turns {
		if i == 0 || t.Kind == TurnUser {
			bounds = append(bounds, i)
		}
	}
	return bounds
}

func hasUnanswered(turns []Turn, pending []string) bool {
	if len(pending) == 0 {
		return false
	}
	pendingSet := make(map[string]bool, len(pending))
	for _, id := range pending {
		pendingSet[id] = true
	}
	for _, t := range turns {
		for _, tc := range t.ToolCalls() {
			if pendingSet[tc.ID] {
				return true
			}
		}
	}
	return false
}
