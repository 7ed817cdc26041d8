package engine

// registry tracks which connection IDs are currently live. It owns nothing
// but liveness; session state lives in Engine.sessions. Guarded by the
// Engine mutex.
type registry struct {
	live map[string]struct{}
}

func newRegistry() *registry {
	return &registry{live: make(map[string]struct{})}
}

// register marks an ID live. Idempotent.
func (r *registry) register(id string) {
	r.live[id] = struct{}{}
}

// unregister removes an ID. Unknown IDs are a no-op.
func (r *registry) unregister(id string) {
	delete(r.live, id)
}

func (r *registry) isLive(id string) bool {
	_, ok := r.live[id]
	return ok
}

func (r *registry) count() int {
	return len(r.live)
}
