// Package engine implements the session lifecycle core: the connection
// registry, per-user session state, the matchmaking queue set, the atomic
// bind/unbind of pairs, the signaling/chat relay decision, and the
// housekeeping sweep. The whole core is a single in-process owning structure
// guarded by one mutex — no operation here performs I/O or blocks, so every
// public method is an atomic critical section and the documented invariants
// hold after each one.
package engine

import (
	"log"
	"sync"
	"time"
)

// Config holds tunable engine parameters.
type Config struct {
	MaxSearchWait time.Duration // searching sessions past this are timed out by Sweep
	MaxChatRunes  int           // chat text is truncated to this many runes
	MaxChatBytes  int           // hard byte cap applied before the rune cap
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		MaxSearchWait: 2 * time.Minute,
		MaxChatRunes:  2000,
		MaxChatBytes:  4096,
	}
}

// Stats is the read-only counter snapshot served to clients and the HTTP
// stats endpoint.
type Stats struct {
	OnlineCount        int `json:"online_count"`
	SearchingCount     int `json:"searching_count"`
	ActiveSessionCount int `json:"active_session_count"`
}

// Engine owns all shared mutable matchmaking state. Construct one per
// process (or per test) with New; there is no package-level instance.
type Engine struct {
	mu       sync.Mutex
	cfg      Config
	registry *registry
	sessions map[string]*Session
	queues   *queueSet
	bound    int // number of bound pairs
	sink     Sink
}

// New creates an empty engine. The sink may be nil; when set, it receives
// lifecycle events and must not block (it is invoked under the engine mutex).
func New(cfg Config, sink Sink) *Engine {
	if cfg.MaxSearchWait <= 0 {
		cfg.MaxSearchWait = DefaultConfig().MaxSearchWait
	}
	if cfg.MaxChatRunes <= 0 {
		cfg.MaxChatRunes = DefaultConfig().MaxChatRunes
	}
	if cfg.MaxChatBytes <= 0 {
		cfg.MaxChatBytes = DefaultConfig().MaxChatBytes
	}
	return &Engine{
		cfg:      cfg,
		registry: newRegistry(),
		sessions: make(map[string]*Session),
		queues:   newQueueSet(),
		sink:     sink,
	}
}

// Connect registers a live connection and creates its idle session.
// Idempotent: reconnecting an already-known ID leaves existing state alone.
func (e *Engine) Connect(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.registry.register(id)
	if _, ok := e.sessions[id]; ok {
		return
	}
	now := time.Now()
	e.sessions[id] = newSession(id, now)
	e.emit(Event{Type: EventUserConnected, UserID: id, At: now})
}

// Disconnect is the single teardown cascade: it unbinds any partner, removes
// the session from its queue, unregisters the connection, and deletes the
// session record. It returns the former partner's ID (empty if none) so the
// caller can notify that connection. Unknown IDs are a no-op.
func (e *Engine) Disconnect(id string, reason string) (formerPartner string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.sessions[id]
	if !ok {
		e.registry.unregister(id)
		return ""
	}
	if reason == "" {
		reason = ReasonDisconnected
	}
	formerPartner = e.unbindLocked(s, reason)
	e.queues.remove(id)
	s.State = StateIdle
	e.registry.unregister(id)
	delete(e.sessions, id)
	e.emit(Event{Type: EventUserDisconnected, UserID: id, At: time.Now()})
	return formerPartner
}

// UpdatePreferences applies a client preference patch to the session.
// Unknown keys and invalid enum values are ignored field by field; unknown
// session IDs are a no-op.
func (e *Engine) UpdatePreferences(id string, patch map[string]string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if s, ok := e.sessions[id]; ok {
		s.applyPreferences(patch)
	}
}

// Block records that id never wants to be paired with target again. The
// block takes effect at the next match attempt; an existing bound pair is
// left to the usual end/skip paths.
func (e *Engine) Block(id, target string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if s, ok := e.sessions[id]; ok {
		s.block(target)
	}
}

// Session returns a copy of the session record, for read-only inspection by
// handlers (queue position displays, partner profile lookups).
func (e *Engine) Session(id string) (Session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.sessions[id]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// Stats returns the current counter snapshot.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	return Stats{
		OnlineCount:        e.registry.count(),
		SearchingCount:     e.queues.size(),
		ActiveSessionCount: e.bound,
	}
}

// logGuard records an invariant-violation guard rejection. These are logged
// but never surfaced to users.
func logGuard(op, detail string) {
	log.Printf("engine: %s rejected: %s", op, detail)
}
