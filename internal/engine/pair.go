package engine

import "time"

// Reasons attached to session-ended events and partner-left notifications.
const (
	ReasonSkipped      = "skipped"
	ReasonEnded        = "ended"
	ReasonDisconnected = "disconnected"
	ReasonTimeout      = "timeout"
)

// bindLocked atomically forms a pair: both sessions leave every queue, link
// to each other, transition to bound, and share a call start timestamp. It
// re-validates existence, state, and the mutual block list at bind time —
// a block may have landed between match-find and bind. Returns false with
// no state change if any guard fails.
func (e *Engine) bindLocked(a, b *Session) bool {
	switch {
	case a == nil || b == nil || a.ID == b.ID:
		logGuard("bind", "invalid pair")
		return false
	case a.State == StateBound:
		logGuard("bind", "session "+a.ID+" is already bound")
		return false
	case b.State == StateBound:
		logGuard("bind", "session "+b.ID+" is already bound")
		return false
	case a.HasBlocked(b.ID) || b.HasBlocked(a.ID):
		logGuard("bind", "pair "+a.ID+"/"+b.ID+" is blocked")
		return false
	}

	e.queues.remove(a.ID)
	e.queues.remove(b.ID)
	now := time.Now()
	for _, s := range []*Session{a, b} {
		s.queueKey = ""
		s.SearchStartedAt = time.Time{}
		s.State = StateBound
		s.CallStartedAt = now
	}
	a.PartnerID = b.ID
	b.PartnerID = a.ID
	e.bound++

	e.emit(Event{Type: EventSessionStarted, UserA: a.ID, UserB: b.ID, At: now})
	return true
}

// EndCall dissolves the caller's pair. Returns the former partner's ID so
// the caller can notify that connection; empty if the session was not bound.
func (e *Engine) EndCall(id string) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.sessions[id]
	if !ok {
		return ""
	}
	return e.unbindLocked(s, ReasonEnded)
}

// Skip dissolves the caller's pair and immediately re-runs the caller's
// search: an instant rebind if a compatible candidate is waiting, otherwise
// re-enqueued. The skipped partner is left idle and is NOT re-enqueued.
// A skip from an unbound session is a no-op.
func (e *Engine) Skip(id string) (formerPartner string, m *Match, queuePos int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.sessions[id]
	if !ok {
		return "", nil, 0
	}
	formerPartner = e.unbindLocked(s, ReasonSkipped)
	if formerPartner == "" {
		return "", nil, 0
	}

	if c := e.findCandidateLocked(s); c != nil {
		waited := time.Since(c.SearchStartedAt)
		if e.bindLocked(s, c) {
			return formerPartner, &Match{
				RequesterID:      s.ID,
				PartnerID:        c.ID,
				RequesterProfile: s.Profile,
				PartnerProfile:   c.Profile,
				StartedAt:        s.CallStartedAt,
				PartnerWaited:    waited,
			}, 0
		}
	}
	return formerPartner, nil, e.enqueueLocked(s)
}

// unbindLocked is the single dissolution path used by skip, explicit end,
// and disconnect. It clears the partner link on BOTH sides, resets both to
// idle, and emits one session-ended event with the call duration. Safe to
// call on an unbound session (no-op returning ""), so double teardown is
// harmless.
func (e *Engine) unbindLocked(s *Session, reason string) string {
	if s.State != StateBound || s.PartnerID == "" {
		return ""
	}
	partnerID := s.PartnerID
	now := time.Now()
	startedAt := s.CallStartedAt

	s.PartnerID = ""
	s.State = StateIdle
	s.CallStartedAt = time.Time{}

	if p, ok := e.sessions[partnerID]; ok {
		p.PartnerID = ""
		p.State = StateIdle
		p.CallStartedAt = time.Time{}
	}
	if e.bound > 0 {
		e.bound--
	}

	e.emit(Event{
		Type:       EventSessionEnded,
		UserA:      s.ID,
		UserB:      partnerID,
		Reason:     reason,
		At:         now,
		StartedAt:  startedAt,
		DurationMs: now.Sub(startedAt).Milliseconds(),
	})
	return partnerID
}
