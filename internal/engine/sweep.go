package engine

import (
	"context"
	"log"
	"time"
)

// Sweep reconciles registry vs. queues vs. sessions. Queue entries whose
// connection vanished are evicted (belt-and-suspenders for the lazy skip in
// the match scan), and searching sessions past the configured max wait are
// dequeued, reset to idle, and reported back so the caller can notify them.
// Bound sessions are never touched. now is passed in so tests can drive the
// clock.
func (e *Engine) Sweep(now time.Time) (timedOut []string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, id := range e.queues.all() {
		s, ok := e.sessions[id]
		if !ok || !e.registry.isLive(id) {
			e.queues.remove(id)
			continue
		}
		if s.State != StateSearching {
			// Queue entry out of step with the session record; the queue
			// entry is the stale side, evict it.
			e.queues.remove(id)
			s.queueKey = ""
			continue
		}
		if now.Sub(s.SearchStartedAt) >= e.cfg.MaxSearchWait {
			e.resetSearchLocked(s)
			e.emit(Event{Type: EventSearchTimeout, UserID: id, At: now})
			timedOut = append(timedOut, id)
		}
	}
	return timedOut
}

// RunSweeper runs Sweep on a fixed interval until the context is cancelled.
// onTimeout is invoked (outside the engine mutex) with the sessions evicted
// for exceeding the max search wait, so the transport can send them a
// search-timeout notification.
func (e *Engine) RunSweeper(ctx context.Context, interval time.Duration, onTimeout func(ids []string)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("engine: sweeper stopped")
			return
		case <-ticker.C:
			if ids := e.Sweep(time.Now()); len(ids) > 0 {
				log.Printf("engine: sweep timed out %d searcher(s)", len(ids))
				if onTimeout != nil {
					onTimeout(ids)
				}
			}
		}
	}
}
