package engine

import (
	"time"
)

// Status constants for the session state machine.
const (
	StateIdle      = "idle"
	StateSearching = "searching"
	StateBound     = "bound"
)

// FilterAny is the wildcard value accepted by every preference filter.
const FilterAny = "any"

// Profile holds the attributes a user states about themselves. All fields
// are optional; an empty field means "not stated".
type Profile struct {
	Gender   string `json:"gender,omitempty"`
	Region   string `json:"region,omitempty"`
	Language string `json:"language,omitempty"`
}

// Filters holds what a user wants in a partner. Every field defaults to
// FilterAny.
type Filters struct {
	Gender   string
	Region   string
	Language string
}

func defaultFilters() Filters {
	return Filters{Gender: FilterAny, Region: FilterAny, Language: FilterAny}
}

// Session is the per-connection mutable record tracking lifecycle state and
// the partner link. It is owned exclusively by the Engine; all fields are
// guarded by the Engine mutex.
type Session struct {
	ID              string
	Profile         Profile
	Filters         Filters
	State           string
	PartnerID       string
	ConnectedAt     time.Time
	SearchStartedAt time.Time
	CallStartedAt   time.Time

	blocked  map[string]struct{}
	queueKey string // key of the queue currently holding this session, "" if none
}

func newSession(id string, now time.Time) *Session {
	return &Session{
		ID:          id,
		Filters:     defaultFilters(),
		State:       StateIdle,
		ConnectedAt: now,
		blocked:     make(map[string]struct{}),
	}
}

// HasBlocked reports whether this session has blocked the given ID.
func (s *Session) HasBlocked(id string) bool {
	_, ok := s.blocked[id]
	return ok
}

func (s *Session) block(id string) {
	if id != "" && id != s.ID {
		s.blocked[id] = struct{}{}
	}
}

// Preference keys accepted by applyPreferences. Anything else in a patch is
// silently ignored.
const (
	prefGender           = "gender"
	prefRegion           = "region"
	prefLanguage         = "language"
	prefGenderInterest   = "gender_interest"
	prefRegionInterest   = "region_interest"
	prefLanguageInterest = "language_interest"
)

// applyPreferences merges a client-supplied patch into the session. Unknown
// keys and invalid values are ignored field by field; valid values overwrite.
func (s *Session) applyPreferences(patch map[string]string) {
	for key, value := range patch {
		switch key {
		case prefGender:
			if value == "male" || value == "female" || value == "" {
				s.Profile.Gender = value
			}
		case prefRegion:
			if v, ok := normalizeToken(value); ok {
				s.Profile.Region = v
			}
		case prefLanguage:
			if v, ok := normalizeToken(value); ok {
				s.Profile.Language = v
			}
		case prefGenderInterest:
			if value == "male" || value == "female" || value == FilterAny {
				s.Filters.Gender = value
			}
		case prefRegionInterest:
			if v, ok := normalizeFilter(value); ok {
				s.Filters.Region = v
			}
		case prefLanguageInterest:
			if v, ok := normalizeFilter(value); ok {
				s.Filters.Language = v
			}
		}
	}
}

const maxTokenLen = 32

// normalizeToken validates a free-form profile value (region or language
// code): lowercase letters, digits, '-' and '_', at most 32 chars. The empty
// string is valid and clears the field.
func normalizeToken(v string) (string, bool) {
	if v == "" {
		return "", true
	}
	if len(v) > maxTokenLen {
		return "", false
	}
	for _, r := range v {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return "", false
		}
	}
	return v, true
}

// normalizeFilter validates a free-form filter value. Empty maps to the
// wildcard so clients can reset a filter by sending "".
func normalizeFilter(v string) (string, bool) {
	if v == "" || v == FilterAny {
		return FilterAny, true
	}
	return normalizeToken(v)
}
