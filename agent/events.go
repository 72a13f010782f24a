package agent

import (
	"sync"
	"time"
)

// EventKind identifies the type of loop event.
type EventKind string

const (
	EventSessionStart  EventKind = "session_start"
	EventSessionEnd    EventKind = "session_end"
	EventUserInput     EventKind = "user_input"
	EventModelStart    EventKind = "model_call_start"
	EventModelEnd      EventKind = "model_call_end"
	EventModelRetry    EventKind = "model_call_retry"
	EventToolCallStart EventKind = "tool_call_start"
	EventToolCallEnd   EventKind = "tool_call_end"
	EventCompaction    EventKind = "history_compaction"
	EventTurnLimit     EventKind = "turn_limit"
	EventLoopDetection EventKind = "loop_detection"
	EventWarning       EventKind = "warning"
	EventError         EventKind = "error"
)

// Event is a typed event emitted by the agent loop.
type Event struct {
	Kind      EventKind      `json:"kind"`
	Timestamp time.Time      `json:"timestamp"`
	SessionID string         `json:"session_id"`
	Data      map[string]any `json:"data,omitempty"`
}

// EventEmitter delivers typed events to the host application via a
// channel. The loop never blocks on a slow consumer.
type EventEmitter struct {
	sessionID string
	ch        chan Event
	closed    bool
	mu        sync.Mutex
}

// NewEventEmitter creates an EventEmitter with a buffered channel.
func NewEventEmitter(sessionID string, bufferSize int) *EventEmitter {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &EventEmitter{
		sessionID: sessionID,
		ch:        make(chan Event, bufferSize),
	}
}

// Emit sends an event to the channel. Events are silently dropped when
// the emitter is closed or the buffer is full.
func (e *EventEmitter) Emit(kind EventKind, data map[string]any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	event := Event{
		Kind:      kind,
		Timestamp: time.Now(),
		SessionID: e.sessionID,
		Data:      data,
	}
	select {
	case e.ch <- event:
	default:
		// Channel full; drop rather than block the loop.
	}
}

// Events returns the read-only event channel.
func (e *EventEmitter) Events() <-chan Event {
	return e.ch
}

// Close closes the event channel. Safe to call multiple times.
func (e *EventEmitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		close(e.ch)
	}
}
