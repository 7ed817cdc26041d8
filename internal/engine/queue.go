package engine

import "strings"

// QueueAny is the unfiltered queue every search falls back to.
const QueueAny = "any"

// queueSet holds the named waiting lists of searching sessions. Each queue
// preserves arrival order (FIFO). A session is a member of at most one queue
// at a time; add enforces that by removing any prior membership first.
// Guarded by the Engine mutex.
type queueSet struct {
	queues map[string][]string // queue key -> ordered session IDs
	member map[string]string   // session ID -> queue key
}

func newQueueSet() *queueSet {
	return &queueSet{
		queues: make(map[string][]string),
		member: make(map[string]string),
	}
}

// queueKeyFor computes the queue category for a filter set. Only non-wildcard
// fields contribute, so identically-filtered searchers pool together; a fully
// unfiltered search lands in the "any" queue.
func queueKeyFor(f Filters) string {
	var parts []string
	if f.Gender != FilterAny {
		parts = append(parts, "g="+f.Gender)
	}
	if f.Region != FilterAny {
		parts = append(parts, "r="+f.Region)
	}
	if f.Language != FilterAny {
		parts = append(parts, "l="+f.Language)
	}
	if len(parts) == 0 {
		return QueueAny
	}
	return strings.Join(parts, "|")
}

// add appends the ID to the named queue, removing it from any queue it was
// already in. Returns the 1-based position in the target queue.
func (q *queueSet) add(key, id string) int {
	q.remove(id)
	q.queues[key] = append(q.queues[key], id)
	q.member[id] = key
	return len(q.queues[key])
}

// remove drops the ID from whichever queue contains it. No-op if absent.
func (q *queueSet) remove(id string) bool {
	key, ok := q.member[id]
	if !ok {
		return false
	}
	delete(q.member, id)

	entries := q.queues[key]
	for i, e := range entries {
		if e == id {
			q.queues[key] = append(entries[:i], entries[i+1:]...)
			break
		}
	}
	if len(q.queues[key]) == 0 {
		delete(q.queues, key)
	}
	return true
}

// membership returns the key of the queue holding the ID, if any.
func (q *queueSet) membership(id string) (string, bool) {
	key, ok := q.member[id]
	return key, ok
}

// entries returns a snapshot of the named queue in arrival order.
func (q *queueSet) entries(key string) []string {
	src := q.queues[key]
	out := make([]string, len(src))
	copy(out, src)
	return out
}

// all returns a snapshot of every queued session ID across all queues.
func (q *queueSet) all() []string {
	out := make([]string, 0, len(q.member))
	for _, entries := range q.queues {
		out = append(out, entries...)
	}
	return out
}

// size returns the total number of queued sessions.
func (q *queueSet) size() int {
	return len(q.member)
}
