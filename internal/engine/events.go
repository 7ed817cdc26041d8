package engine

import "time"

// EventType identifies a core lifecycle event.
type EventType string

const (
	EventUserConnected    EventType = "user-connected"
	EventUserDisconnected EventType = "user-disconnected"
	EventSessionStarted   EventType = "session-started"
	EventSessionEnded     EventType = "session-ended"
	EventSearchTimeout    EventType = "search-timeout"
)

// Event is the payload handed to the Sink for every lifecycle transition.
// External collaborators (call history, economy, presence) consume these;
// they never mutate core state.
type Event struct {
	Type       EventType `json:"type"`
	UserID     string    `json:"user_id,omitempty"` // connect/disconnect/timeout events
	UserA      string    `json:"user_a,omitempty"`  // session events
	UserB      string    `json:"user_b,omitempty"`
	Reason     string    `json:"reason,omitempty"` // session-ended only
	At         time.Time `json:"at"`
	StartedAt  time.Time `json:"started_at,omitempty"` // session-ended only
	DurationMs int64     `json:"duration_ms,omitempty"`
}

// Sink receives lifecycle events. Publish is called with the Engine mutex
// held and therefore must not block; implementations hand the event off to
// a buffered channel or an async client.
type Sink interface {
	Publish(Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

// Publish calls f(ev).
func (f SinkFunc) Publish(ev Event) { f(ev) }

// MultiSink fans one event out to several sinks in order.
type MultiSink []Sink

// Publish delivers the event to every member sink.
func (m MultiSink) Publish(ev Event) {
	for _, s := range m {
		s.Publish(ev)
	}
}

func (e *Engine) emit(ev Event) {
	if e.sink != nil {
		e.sink.Publish(ev)
	}
}
