package engine

import (
	"strings"
	"testing"
	"time"
)

// ---------- applyPreferences tests ----------

func TestApplyPreferences_ValidPatch(t *testing.T) {
	s := newSession("alice", time.Now())

	s.applyPreferences(map[string]string{
		"gender":            "female",
		"region":            "eu",
		"language":          "en",
		"gender_interest":   "male",
		"region_interest":   "eu",
		"language_interest": "en",
	})

	if s.Profile.Gender != "female" || s.Profile.Region != "eu" || s.Profile.Language != "en" {
		t.Errorf("profile not applied: %+v", s.Profile)
	}
	if s.Filters.Gender != "male" || s.Filters.Region != "eu" || s.Filters.Language != "en" {
		t.Errorf("filters not applied: %+v", s.Filters)
	}
}

func TestApplyPreferences_InvalidValuesIgnoredFieldByField(t *testing.T) {
	s := newSession("alice", time.Now())

	s.applyPreferences(map[string]string{
		"gender":          "attack-helicopter", // invalid enum
		"region":          "EU",                // uppercase rejected
		"language":        "en",                // valid
		"gender_interest": "robots",            // invalid enum
		"unknown_key":     "whatever",
	})

	if s.Profile.Gender != "" {
		t.Errorf("invalid gender applied: %q", s.Profile.Gender)
	}
	if s.Profile.Region != "" {
		t.Errorf("invalid region applied: %q", s.Profile.Region)
	}
	if s.Profile.Language != "en" {
		t.Errorf("valid language dropped alongside invalid fields: %q", s.Profile.Language)
	}
	if s.Filters.Gender != FilterAny {
		t.Errorf("invalid gender_interest applied: %q", s.Filters.Gender)
	}
}

func TestApplyPreferences_EmptyClearsProfileAndResetsFilter(t *testing.T) {
	s := newSession("alice", time.Now())

	s.applyPreferences(map[string]string{"gender": "female", "gender_interest": "male"})
	s.applyPreferences(map[string]string{"gender": "", "gender_interest": "any"})

	if s.Profile.Gender != "" {
		t.Errorf("expected gender cleared, got %q", s.Profile.Gender)
	}
	if s.Filters.Gender != FilterAny {
		t.Errorf("expected filter reset to wildcard, got %q", s.Filters.Gender)
	}
}

func TestApplyPreferences_EmptyFilterValueMeansWildcard(t *testing.T) {
	s := newSession("alice", time.Now())

	s.applyPreferences(map[string]string{"region_interest": "eu"})
	s.applyPreferences(map[string]string{"region_interest": ""})

	if s.Filters.Region != FilterAny {
		t.Errorf("expected wildcard, got %q", s.Filters.Region)
	}
}

// ---------- normalizeToken tests ----------

func TestNormalizeToken(t *testing.T) {
	cases := []struct {
		in    string
		want  string
		valid bool
	}{
		{"en", "en", true},
		{"pt-br", "pt-br", true},
		{"region_1", "region_1", true},
		{"", "", true},
		{"EN", "", false},
		{"with space", "", false},
		{"émoji", "", false},
		{strings.Repeat("a", 33), "", false},
		{strings.Repeat("a", 32), strings.Repeat("a", 32), true},
	}
	for _, c := range cases {
		got, ok := normalizeToken(c.in)
		if ok != c.valid || got != c.want {
			t.Errorf("normalizeToken(%q) = (%q, %v), want (%q, %v)", c.in, got, ok, c.want, c.valid)
		}
	}
}

// ---------- block list tests ----------

func TestBlock_IgnoresSelfAndEmpty(t *testing.T) {
	s := newSession("alice", time.Now())

	s.block("alice")
	s.block("")
	s.block("bob")

	if s.HasBlocked("alice") {
		t.Error("session blocked itself")
	}
	if s.HasBlocked("") {
		t.Error("session blocked the empty ID")
	}
	if !s.HasBlocked("bob") {
		t.Error("legitimate block not recorded")
	}
}
