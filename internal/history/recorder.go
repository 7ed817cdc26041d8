package history

import (
	"context"
	"log"

	"github.com/drift/meet-app/internal/engine"
)

// recorderBuffer bounds the event backlog; beyond it events are dropped
// rather than stalling the engine.
const recorderBuffer = 1024

// Recorder adapts the Store to the engine.Sink interface. Publish is called
// under the engine mutex, so it only enqueues onto a buffered channel; a
// background worker performs the actual inserts.
type Recorder struct {
	store *Store
	ch    chan engine.Event
}

// NewRecorder creates a recorder around the store. Call Run to start the
// worker.
func NewRecorder(store *Store) *Recorder {
	return &Recorder{
		store: store,
		ch:    make(chan engine.Event, recorderBuffer),
	}
}

// Publish implements engine.Sink. Only session events are recorded; when the
// buffer is full the event is dropped and logged — call history is
// best-effort by design.
func (r *Recorder) Publish(ev engine.Event) {
	switch ev.Type {
	case engine.EventSessionStarted, engine.EventSessionEnded:
	default:
		return
	}

	select {
	case r.ch <- ev:
	default:
		log.Printf("[history] buffer full, dropping %s event", ev.Type)
	}
}

// Run consumes buffered events until the context is cancelled. Insert
// failures are logged and skipped.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			log.Println("[history] recorder stopped")
			return
		case ev := <-r.ch:
			r.record(ctx, ev)
		}
	}
}

func (r *Recorder) record(ctx context.Context, ev engine.Event) {
	var err error
	switch ev.Type {
	case engine.EventSessionStarted:
		err = r.store.RecordStart(ctx, ev.UserA, ev.UserB, ev.At)
	case engine.EventSessionEnded:
		err = r.store.RecordEnd(ctx, ev.UserA, ev.UserB, ev.Reason, ev.At, ev.DurationMs)
	}
	if err != nil {
		log.Printf("[history] %s: %v", ev.Type, err)
	}
}
