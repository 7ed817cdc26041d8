package engine

import (
	"strings"
	"unicode/utf8"
)

// PartnerFor resolves the relay target for an opaque negotiation payload:
// the sender's current partner, or ok=false when the sender is not bound.
// The not-bound case is expected (the sender may have been unbound a moment
// earlier) and is a silent drop, never an error.
func (e *Engine) PartnerFor(from string) (to string, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, found := e.sessions[from]
	if !found || s.State != StateBound || s.PartnerID == "" {
		return "", false
	}
	return s.PartnerID, true
}

// RelayChat resolves the relay target for a chat message and sanitizes the
// text: surrounding whitespace is trimmed and the result truncated to the
// configured byte and rune caps. Messages that are empty after trimming, or
// not valid UTF-8, are dropped (ok=false) along with anything sent by an
// unbound session.
func (e *Engine) RelayChat(from, text string) (to, clean string, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, found := e.sessions[from]
	if !found || s.State != StateBound || s.PartnerID == "" {
		return "", "", false
	}
	clean = sanitizeChat(text, e.cfg.MaxChatBytes, e.cfg.MaxChatRunes)
	if clean == "" {
		return "", "", false
	}
	return s.PartnerID, clean, true
}

func sanitizeChat(text string, maxBytes, maxRunes int) string {
	text = strings.TrimSpace(text)
	if text == "" || !utf8.ValidString(text) {
		return ""
	}
	if len(text) > maxBytes {
		text = truncateRunes(text, maxBytes) // byte cap, rune-aligned
	}
	if utf8.RuneCountInString(text) > maxRunes {
		out := make([]rune, 0, maxRunes)
		for _, r := range text {
			out = append(out, r)
			if len(out) == maxRunes {
				break
			}
		}
		text = string(out)
	}
	return strings.TrimSpace(text)
}

// truncateRunes cuts the string to at most max bytes without splitting a
// multi-byte rune.
func truncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
