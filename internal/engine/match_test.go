package engine

import (
	"fmt"
	"testing"
)

// findMatch runs FindMatch and fails the test on an unexpected nil/non-nil
// result.
func findMatch(t *testing.T, e *Engine, id string, prefs map[string]string, wantMatch bool) *Match {
	t.Helper()
	m, pos := e.FindMatch(id, prefs)
	if wantMatch && m == nil {
		t.Fatalf("expected %s to match, got queued at pos=%d", id, pos)
	}
	if !wantMatch && m != nil {
		t.Fatalf("expected %s to be queued, got match with %s", id, m.PartnerID)
	}
	return m
}

// ---------- FindMatch tests ----------

func TestFindMatch_TwoUnfilteredUsersBind(t *testing.T) {
	e, col := newTestEngine(t)

	connect(t, e, "alice")
	connect(t, e, "bob")

	findMatch(t, e, "alice", nil, false)
	m := findMatch(t, e, "bob", nil, true)

	if m.RequesterID != "bob" || m.PartnerID != "alice" {
		t.Errorf("expected bob matched with alice, got %s/%s", m.RequesterID, m.PartnerID)
	}

	for _, id := range []string{"alice", "bob"} {
		s, _ := e.Session(id)
		if s.State != StateBound {
			t.Errorf("expected %s bound, got %s", id, s.State)
		}
	}
	if got := len(col.byType(EventSessionStarted)); got != 1 {
		t.Errorf("expected 1 session-started event, got %d", got)
	}
	checkInvariants(t, e)
}

func TestFindMatch_EarliestWaiterWins(t *testing.T) {
	e, _ := newTestEngine(t)

	connect(t, e, "first")
	connect(t, e, "second")
	connect(t, e, "requester")

	findMatch(t, e, "first", nil, false)
	findMatch(t, e, "second", nil, false)

	m := findMatch(t, e, "requester", nil, true)
	if m.PartnerID != "first" {
		t.Errorf("expected earliest waiter 'first', got %s", m.PartnerID)
	}
	checkInvariants(t, e)
}

func TestFindMatch_QueuePositionIsOneBased(t *testing.T) {
	e, _ := newTestEngine(t)

	connect(t, e, "a")
	connect(t, e, "b")

	// Different filters so they don't match each other.
	if _, pos := e.FindMatch("a", map[string]string{"gender_interest": "female"}); pos != 1 {
		t.Errorf("expected pos 1, got %d", pos)
	}
	if _, pos := e.FindMatch("b", map[string]string{"gender_interest": "female"}); pos != 2 {
		t.Errorf("expected pos 2, got %d", pos)
	}
	checkInvariants(t, e)
}

func TestFindMatch_SpecificFilterRejectsUnstatedProfile(t *testing.T) {
	e, _ := newTestEngine(t)

	connect(t, e, "picky")
	connect(t, e, "anon")

	// anon never stated a gender, so a female-only search must not take them.
	findMatch(t, e, "anon", nil, false)
	findMatch(t, e, "picky", map[string]string{"gender_interest": "female"}, false)
	checkInvariants(t, e)
}

func TestFindMatch_FilterIsBidirectional(t *testing.T) {
	e, _ := newTestEngine(t)

	connect(t, e, "alice")
	connect(t, e, "bob")

	// alice: female, wants anyone. bob: unstated gender, wants female.
	// bob's filter passes against alice, but alice would also accept bob,
	// so the pair forms only because BOTH directions pass.
	findMatch(t, e, "alice", map[string]string{"gender": "female"}, false)
	findMatch(t, e, "bob", map[string]string{"gender_interest": "female"}, true)
	checkInvariants(t, e)
}

func TestFindMatch_FilterRejectionIsSymmetric(t *testing.T) {
	e, _ := newTestEngine(t)

	connect(t, e, "alice")
	connect(t, e, "bob")

	// alice: female, wants female. bob: male, wants anyone. alice's side
	// fails, so no pair regardless of who searches second.
	findMatch(t, e, "alice", map[string]string{
		"gender": "female", "gender_interest": "female",
	}, false)
	findMatch(t, e, "bob", map[string]string{"gender": "male"}, false)
	checkInvariants(t, e)
}

func TestFindMatch_FallsBackToUnfilteredQueue(t *testing.T) {
	e, _ := newTestEngine(t)

	connect(t, e, "waiting")
	connect(t, e, "picky")

	// waiting is in the "any" queue; picky searches a filtered queue that is
	// empty but must still scan "any".
	findMatch(t, e, "waiting", map[string]string{"gender": "female"}, false)
	m := findMatch(t, e, "picky", map[string]string{"gender_interest": "female"}, true)
	if m.PartnerID != "waiting" {
		t.Errorf("expected fallback to the unfiltered queue, got %s", m.PartnerID)
	}
	checkInvariants(t, e)
}

func TestFindMatch_MatchesWithinFilteredQueue(t *testing.T) {
	e, _ := newTestEngine(t)

	connect(t, e, "a")
	connect(t, e, "b")

	prefs := map[string]string{
		"gender": "female", "gender_interest": "female",
		"language": "en", "language_interest": "en",
	}
	findMatch(t, e, "a", prefs, false)
	m := findMatch(t, e, "b", prefs, true)
	if m.PartnerID != "a" {
		t.Errorf("expected a, got %s", m.PartnerID)
	}
	checkInvariants(t, e)
}

func TestFindMatch_AlreadyBoundIsNoOp(t *testing.T) {
	e, _ := newTestEngine(t)

	connect(t, e, "alice")
	connect(t, e, "bob")
	findMatch(t, e, "alice", nil, false)
	findMatch(t, e, "bob", nil, true)

	m, pos := e.FindMatch("alice", nil)
	if m != nil || pos != 0 {
		t.Errorf("expected no-op for bound session, got match=%v pos=%d", m, pos)
	}

	s, _ := e.Session("alice")
	if s.State != StateBound || s.PartnerID != "bob" {
		t.Errorf("bound session disturbed by duplicate find: state=%s partner=%s", s.State, s.PartnerID)
	}
	checkInvariants(t, e)
}

func TestFindMatch_UnknownSessionIsNoOp(t *testing.T) {
	e, _ := newTestEngine(t)

	m, pos := e.FindMatch("ghost", nil)
	if m != nil || pos != 0 {
		t.Errorf("expected (nil, 0) for unknown session, got (%v, %d)", m, pos)
	}
}

func TestFindMatch_RepeatSearchKeepsSingleQueueEntry(t *testing.T) {
	e, _ := newTestEngine(t)

	connect(t, e, "alice")
	findMatch(t, e, "alice", nil, false)
	if _, pos := e.FindMatch("alice", nil); pos != 1 {
		t.Errorf("expected re-search to stay at pos 1, got %d", pos)
	}
	if st := e.Stats(); st.SearchingCount != 1 {
		t.Errorf("expected 1 queued entry after repeat search, got %d", st.SearchingCount)
	}
	checkInvariants(t, e)
}

func TestFindMatch_PreferencePatchAppliedBeforeMatching(t *testing.T) {
	e, _ := newTestEngine(t)

	connect(t, e, "alice")
	connect(t, e, "bob")

	findMatch(t, e, "bob", map[string]string{"gender": "male"}, false)

	// The patch in the same call narrows alice to female partners, so bob
	// must be passed over even though he was already waiting.
	findMatch(t, e, "alice", map[string]string{"gender_interest": "female"}, false)
	checkInvariants(t, e)
}

func TestFindMatch_RequesterIsInitiator(t *testing.T) {
	e, _ := newTestEngine(t)

	connect(t, e, "waiter")
	connect(t, e, "requester")

	findMatch(t, e, "waiter", nil, false)
	m := findMatch(t, e, "requester", nil, true)

	if m.RequesterID != "requester" {
		t.Errorf("expected the second searcher as requester, got %s", m.RequesterID)
	}
	if m.PartnerWaited < 0 {
		t.Errorf("expected non-negative partner wait, got %v", m.PartnerWaited)
	}
}

func TestFindMatch_ManyUsersAllPairOff(t *testing.T) {
	e, _ := newTestEngine(t)

	for i := 0; i < 10; i++ {
		connect(t, e, fmt.Sprintf("user-%d", i))
	}
	matched := 0
	for i := 0; i < 10; i++ {
		if m, _ := e.FindMatch(fmt.Sprintf("user-%d", i), nil); m != nil {
			matched++
		}
	}
	if matched != 5 {
		t.Errorf("expected 5 pairs from 10 users, got %d", matched)
	}
	st := e.Stats()
	if st.ActiveSessionCount != 5 || st.SearchingCount != 0 {
		t.Errorf("expected 5 active sessions and empty queues, got %+v", st)
	}
	checkInvariants(t, e)
}

// ---------- CancelSearch tests ----------

func TestCancelSearch_RemovesFromQueue(t *testing.T) {
	e, _ := newTestEngine(t)

	connect(t, e, "alice")
	findMatch(t, e, "alice", nil, false)

	if !e.CancelSearch("alice") {
		t.Fatal("expected CancelSearch to succeed")
	}

	s, _ := e.Session("alice")
	if s.State != StateIdle {
		t.Errorf("expected idle after cancel, got %s", s.State)
	}
	if st := e.Stats(); st.SearchingCount != 0 {
		t.Errorf("expected empty queues, got %d searching", st.SearchingCount)
	}
	checkInvariants(t, e)
}

func TestCancelSearch_NotSearchingIsNoOp(t *testing.T) {
	e, _ := newTestEngine(t)

	connect(t, e, "alice")
	if e.CancelSearch("alice") {
		t.Error("expected false for idle session")
	}
	if e.CancelSearch("ghost") {
		t.Error("expected false for unknown session")
	}
}

func TestFindMatch_SkipsStaleQueueEntry(t *testing.T) {
	e, _ := newTestEngine(t)

	connect(t, e, "stale")
	connect(t, e, "fresh")
	connect(t, e, "requester")

	findMatch(t, e, "stale", nil, false)
	findMatch(t, e, "fresh", nil, false)

	// Force the stale entry out of step: session gone but queue entry left
	// behind (simulates a lost teardown).
	e.mu.Lock()
	e.registry.unregister("stale")
	delete(e.sessions, "stale")
	e.mu.Unlock()

	m := findMatch(t, e, "requester", nil, true)
	if m.PartnerID != "fresh" {
		t.Errorf("expected the stale entry skipped, got %s", m.PartnerID)
	}
	checkInvariants(t, e)
}
