package agentloop

import (
	"sync"
	"time"
)

// EventKind identifies the type of session event.
type EventKind string

const (
	EventSessionStart    EventKind = "session_start"
	EventSessionEnd      EventKind = "session_end"
	EventModelCall       EventKind = "model_call"
	EventInvocationStart EventKind = "invocation_start"
	EventInvocationEnd   EventKind = "invocation_end"
	EventTurnLimit       EventKind = "turn_limit"
	EventWarning         EventKind = "warning"
	EventError           EventKind = "error"
)

// SessionEvent is a typed event emitted by the agent loop.
type SessionEvent struct {
	Kind      EventKind      `json:"kind"`
	Timestamp time.Time      `json:"timestamp"`
	SessionID string         `json:"session_id"`
	Data      map[string]any `json:"data,omitempty"`
}

// EventEmitter delivers session events to the host over a buffered channel.
// Emission never blocks the loop: when the buffer is full or the emitter has
// been closed, the event is dropped.
type EventEmitter struct {
	sessionID string

	mu     sync.Mutex
	ch     chan SessionEvent
	closed bool
}

// NewEventEmitter creates an emitter with the given channel buffer size.
func NewEventEmitter(sessionID string, bufferSize int) *EventEmitter {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &EventEmitter{
		sessionID: sessionID,
		ch:        make(chan SessionEvent, bufferSize),
	}
}

// Emit queues an event for delivery.
func (e *EventEmitter) Emit(kind EventKind, data map[string]any) {
	ev := SessionEvent{
		Kind:      kind,
		Timestamp: time.Now(),
		SessionID: e.sessionID,
		Data:      data,
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	select {
	case e.ch <- ev:
	default:
	}
}

// Events returns the read-only event channel. The channel is closed when the
// session finishes.
func (e *EventEmitter) Events() <-chan SessionEvent {
	return e.ch
}

// Close closes the event channel. Safe to call multiple times.
func (e *EventEmitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	close(e.ch)
}
