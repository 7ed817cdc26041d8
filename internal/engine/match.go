package engine

import "time"

// Match describes a freshly bound pair from the requester's point of view.
// The requester — the side whose find-match completed the pair — is always
// the negotiation initiator; the side that was already waiting in a queue is
// not. This asymmetry is deterministic so clients know who sends the first
// negotiation offer.
type Match struct {
	RequesterID      string
	PartnerID        string
	RequesterProfile Profile // sent to the partner
	PartnerProfile   Profile // sent to the requester
	StartedAt        time.Time
	PartnerWaited    time.Duration // how long the queued side waited
}

// FindMatch applies the optional preference patch, then either binds the
// requester to the earliest compatible waiting candidate or enqueues the
// requester. It returns a non-nil Match on an immediate bind, otherwise the
// requester's 1-based position in its queue. Unknown and already-bound
// sessions are silent no-ops returning (nil, 0).
func (e *Engine) FindMatch(id string, patch map[string]string) (*Match, int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.sessions[id]
	if !ok {
		return nil, 0
	}
	if s.State == StateBound {
		logGuard("find-match", "session "+id+" is already bound")
		return nil, 0
	}
	if patch != nil {
		s.applyPreferences(patch)
	}

	if c := e.findCandidateLocked(s); c != nil {
		waited := time.Since(c.SearchStartedAt)
		if e.bindLocked(s, c) {
			return &Match{
				RequesterID:      s.ID,
				PartnerID:        c.ID,
				RequesterProfile: s.Profile,
				PartnerProfile:   c.Profile,
				StartedAt:        s.CallStartedAt,
				PartnerWaited:    waited,
			}, 0
		}
	}

	return nil, e.enqueueLocked(s)
}

// CancelSearch removes a searching session from its queue and resets it to
// idle. Returns false (no-op) if the session is unknown or not searching.
func (e *Engine) CancelSearch(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.sessions[id]
	if !ok || s.State != StateSearching {
		return false
	}
	e.resetSearchLocked(s)
	return true
}

// enqueueLocked places the session at the back of its preference queue,
// marks it searching, and stamps the search start. Returns the 1-based
// queue position.
func (e *Engine) enqueueLocked(s *Session) int {
	key := queueKeyFor(s.Filters)
	pos := e.queues.add(key, s.ID)
	s.queueKey = key
	s.State = StateSearching
	s.SearchStartedAt = time.Now()
	return pos
}

// resetSearchLocked is the single dequeue-and-idle path shared by explicit
// cancellation, disconnect, and the sweep timeout.
func (e *Engine) resetSearchLocked(s *Session) {
	e.queues.remove(s.ID)
	s.queueKey = ""
	s.State = StateIdle
	s.SearchStartedAt = time.Time{}
}

// findCandidateLocked scans the requester's preferred queue front-to-back,
// then the unfiltered queue, and returns the earliest-arrived compatible
// candidate, or nil. Stale entries (vanished connections, sessions no longer
// searching) are skipped and opportunistically dequeued, never matched.
func (e *Engine) findCandidateLocked(s *Session) *Session {
	preferred := queueKeyFor(s.Filters)
	if c := e.scanQueueLocked(preferred, s); c != nil {
		return c
	}
	if preferred != QueueAny {
		if c := e.scanQueueLocked(QueueAny, s); c != nil {
			return c
		}
	}
	return nil
}

func (e *Engine) scanQueueLocked(key string, s *Session) *Session {
	for _, id := range e.queues.entries(key) {
		if id == s.ID {
			continue
		}
		c, ok := e.sessions[id]
		if !ok || !e.registry.isLive(id) || c.State != StateSearching {
			e.queues.remove(id) // stale entry
			continue
		}
		if compatible(s, c) {
			return c
		}
	}
	return nil
}

// compatible is the bidirectional filter check: each side's stated profile
// must satisfy the other side's filters, and neither may have blocked the
// other.
func compatible(a, b *Session) bool {
	if a.HasBlocked(b.ID) || b.HasBlocked(a.ID) {
		return false
	}
	return satisfies(a.Filters, b.Profile) && satisfies(b.Filters, a.Profile)
}

// satisfies checks one direction. A wildcard filter always passes; a
// specific filter requires the candidate to have stated a matching value —
// an unstated field cannot satisfy a specific filter.
func satisfies(f Filters, p Profile) bool {
	if f.Gender != FilterAny && f.Gender != p.Gender {
		return false
	}
	if f.Region != FilterAny && f.Region != p.Region {
		return false
	}
	if f.Language != FilterAny && f.Language != p.Language {
		return false
	}
	return true
}
