package engine

import (
	"strings"
	"testing"
)

// ---------- PartnerFor tests ----------

func TestPartnerFor_ResolvesBothDirections(t *testing.T) {
	e, _ := newTestEngine(t)
	bindPair(t, e, "alice", "bob")

	if to, ok := e.PartnerFor("alice"); !ok || to != "bob" {
		t.Errorf("expected (bob, true), got (%q, %v)", to, ok)
	}
	if to, ok := e.PartnerFor("bob"); !ok || to != "alice" {
		t.Errorf("expected (alice, true), got (%q, %v)", to, ok)
	}
}

func TestPartnerFor_UnboundSenderDrops(t *testing.T) {
	e, _ := newTestEngine(t)

	connect(t, e, "alice")
	if _, ok := e.PartnerFor("alice"); ok {
		t.Error("expected no relay target for idle session")
	}
	if _, ok := e.PartnerFor("ghost"); ok {
		t.Error("expected no relay target for unknown session")
	}
}

func TestPartnerFor_DropsAfterUnbind(t *testing.T) {
	e, _ := newTestEngine(t)
	bindPair(t, e, "alice", "bob")

	e.EndCall("alice")
	if _, ok := e.PartnerFor("bob"); ok {
		t.Error("expected relay to drop after the pair dissolved")
	}
}

// ---------- RelayChat tests ----------

func TestRelayChat_ForwardsToPartner(t *testing.T) {
	e, _ := newTestEngine(t)
	bindPair(t, e, "alice", "bob")

	to, clean, ok := e.RelayChat("alice", "hello there")
	if !ok {
		t.Fatal("expected relay to succeed")
	}
	if to != "bob" {
		t.Errorf("expected target bob, got %s", to)
	}
	if clean != "hello there" {
		t.Errorf("expected text unchanged, got %q", clean)
	}
}

func TestRelayChat_TrimsWhitespace(t *testing.T) {
	e, _ := newTestEngine(t)
	bindPair(t, e, "alice", "bob")

	_, clean, ok := e.RelayChat("alice", "  hi \n")
	if !ok || clean != "hi" {
		t.Errorf("expected trimmed %q, got (%q, %v)", "hi", clean, ok)
	}
}

func TestRelayChat_DropsEmptyAndWhitespaceOnly(t *testing.T) {
	e, _ := newTestEngine(t)
	bindPair(t, e, "alice", "bob")

	for _, text := range []string{"", "   ", "\n\t "} {
		if _, _, ok := e.RelayChat("alice", text); ok {
			t.Errorf("expected drop for %q", text)
		}
	}
}

func TestRelayChat_DropsInvalidUTF8(t *testing.T) {
	e, _ := newTestEngine(t)
	bindPair(t, e, "alice", "bob")

	if _, _, ok := e.RelayChat("alice", "bad \xff\xfe bytes"); ok {
		t.Error("expected drop for invalid UTF-8")
	}
}

func TestRelayChat_DropsWhenUnbound(t *testing.T) {
	e, _ := newTestEngine(t)

	connect(t, e, "alice")
	if _, _, ok := e.RelayChat("alice", "hello"); ok {
		t.Error("expected drop for unbound sender")
	}
}

func TestRelayChat_TruncatesToRuneCap(t *testing.T) {
	e, _ := newTestEngine(t) // MaxChatRunes=100 in the test config
	bindPair(t, e, "alice", "bob")

	_, clean, ok := e.RelayChat("alice", strings.Repeat("x", 500))
	if !ok {
		t.Fatal("expected relay to succeed")
	}
	if len(clean) != 100 {
		t.Errorf("expected 100 runes, got %d", len(clean))
	}
}

func TestRelayChat_ByteCapNeverSplitsARune(t *testing.T) {
	e, _ := newTestEngine(t) // MaxChatBytes=400 in the test config

	bindPair(t, e, "alice", "bob")

	// 3-byte runes; 400 bytes is not a multiple of 3, so a naive byte slice
	// would split one.
	_, clean, ok := e.RelayChat("alice", strings.Repeat("語", 200))
	if !ok {
		t.Fatal("expected relay to succeed")
	}
	if len(clean) > 400 {
		t.Errorf("expected at most 400 bytes, got %d", len(clean))
	}
	for _, r := range clean {
		if r != '語' {
			t.Fatalf("truncation corrupted a rune: %q", r)
		}
	}
}

// ---------- sanitizeChat unit tests ----------

func TestSanitizeChat_TruncationThenTrim(t *testing.T) {
	// A space landing exactly at the cut must not survive as trailing
	// whitespace.
	got := sanitizeChat("ab ", 400, 3)
	if got != "ab" {
		t.Errorf("expected %q, got %q", "ab", got)
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := truncateRunes("héllo", 2); got != "h" {
		t.Errorf("expected %q, got %q", "h", got)
	}
	if got := truncateRunes("abc", 10); got != "abc" {
		t.Errorf("expected %q, got %q", "abc", got)
	}
}
