// Package protocol defines the WebSocket message types and structures used
// for communication between the client and server. All messages are
// serialized as JSON and follow a consistent envelope format with a type
// discriminator. Negotiation payloads (offer/answer/ICE candidate) are
// carried as raw JSON and never inspected.
package protocol

import (
	"encoding/json"
	"fmt"
)

// ---------------------------------------------------------------------------
// Message type constants
// ---------------------------------------------------------------------------

// Client -> Server message types.
const (
	TypeFindMatch    = "find_match"
	TypeCancelSearch = "cancel_search"
	TypeSkip         = "skip"
	TypeEndCall      = "end_call"
	TypeOffer        = "offer"
	TypeAnswer       = "answer"
	TypeICECandidate = "ice_candidate"
	TypeChatMessage  = "chat_message"
	TypeBlockPartner = "block_partner"
	TypePing         = "ping"
)

// Server -> Client message types.
const (
	TypeSessionCreated = "session_created"
	TypeSearching      = "searching"
	TypeMatchFound     = "match_found"
	TypePartnerLeft    = "partner_left"
	TypeSearchTimeout  = "search_timeout"
	TypeStats          = "stats"
	TypeError          = "error"
	TypePong           = "pong"
)

// ---------------------------------------------------------------------------
// Envelope — used for initial JSON parsing to extract the type discriminator.
// ---------------------------------------------------------------------------

// Envelope holds the message type and the raw JSON payload for deferred
// parsing into a concrete struct.
type Envelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// UnmarshalJSON captures the full raw bytes and extracts only the "type"
// field so that the rest of the payload can be decoded later into the
// appropriate concrete struct.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	e.Raw = make(json.RawMessage, len(data))
	copy(e.Raw, data)

	var partial struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &partial); err != nil {
		return fmt.Errorf("protocol: failed to unmarshal envelope: %w", err)
	}
	if partial.Type == "" {
		return fmt.Errorf("protocol: missing or empty \"type\" field")
	}
	e.Type = partial.Type
	return nil
}

// ---------------------------------------------------------------------------
// Client -> Server message structs
// ---------------------------------------------------------------------------

// FindMatchMsg is sent by the client to start searching. Preferences is an
// optional key/value patch (gender, gender_interest, region, language,
// region_interest, language_interest); unknown keys and invalid values are
// ignored server-side, field by field.
type FindMatchMsg struct {
	Type        string            `json:"type"`
	Preferences map[string]string `json:"preferences,omitempty"`
}

// CancelSearchMsg is sent by the client to leave the matchmaking queue.
type CancelSearchMsg struct {
	Type string `json:"type"`
}

// SkipMsg ends the current pair and immediately searches for the next one.
type SkipMsg struct {
	Type string `json:"type"`
}

// EndCallMsg ends the current pair without re-searching.
type EndCallMsg struct {
	Type string `json:"type"`
}

// SignalMsg carries an opaque negotiation blob (offer, answer, or ICE
// candidate) to be relayed verbatim to the current partner.
type SignalMsg struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ChatMsg is a text message to be sanitized and relayed to the partner.
type ChatMsg struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// BlockPartnerMsg asks the server to never pair the sender with the current
// partner again.
type BlockPartnerMsg struct {
	Type string `json:"type"`
}

// PingMsg is a client-initiated keepalive ping.
type PingMsg struct {
	Type string `json:"type"`
}

// ---------------------------------------------------------------------------
// Server -> Client message structs
// ---------------------------------------------------------------------------

// SessionCreatedMsg is sent by the server when a new session is established.
type SessionCreatedMsg struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

// SearchingMsg confirms the client entered the queue, with its position.
type SearchingMsg struct {
	Type          string `json:"type"`
	QueuePosition int    `json:"queue_position"`
}

// PartnerProfile is the public subset of the partner's stated attributes
// shared on match.
type PartnerProfile struct {
	Gender   string `json:"gender,omitempty"`
	Region   string `json:"region,omitempty"`
	Language string `json:"language,omitempty"`
}

// MatchFoundMsg is sent to both sides of a new pair. Exactly one side
// receives IsInitiator=true (the one whose search completed the pair) and
// originates the negotiation handshake.
type MatchFoundMsg struct {
	Type           string         `json:"type"`
	PartnerID      string         `json:"partner_id"`
	PartnerProfile PartnerProfile `json:"partner_profile"`
	IsInitiator    bool           `json:"is_initiator"`
}

// PartnerLeftMsg tells a client its pair dissolved and why:
// "skipped", "ended", "disconnected", or "timeout".
type PartnerLeftMsg struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// SearchTimeoutMsg tells a client its search exceeded the max wait and it
// was removed from the queue.
type SearchTimeoutMsg struct {
	Type string `json:"type"`
}

// ServerSignalMsg relays an opaque negotiation blob from the partner.
type ServerSignalMsg struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ServerChatMsg is a sanitized text message relayed from the partner.
type ServerChatMsg struct {
	Type string `json:"type"`
	Text string `json:"text"`
	Ts   int64  `json:"ts"`
}

// StatsMsg is the periodic counter broadcast.
type StatsMsg struct {
	Type               string `json:"type"`
	OnlineCount        int    `json:"online_count"`
	SearchingCount     int    `json:"searching_count"`
	ActiveSessionCount int    `json:"active_session_count"`
}

// ErrorMsg is sent by the server to communicate an error condition.
type ErrorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PongMsg is the server's response to a client ping.
type PongMsg struct {
	Type string `json:"type"`
}

// ---------------------------------------------------------------------------
// Helper functions
// ---------------------------------------------------------------------------

// ParseClientMessage parses raw WebSocket bytes into a typed client message.
// It returns the message type string, the decoded struct, and any error
// encountered during parsing. An error is returned for unknown or
// server-only message types.
func ParseClientMessage(data []byte) (string, interface{}, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("protocol: failed to parse message: %w", err)
	}

	var (
		msg interface{}
		err error
	)

	switch env.Type {
	case TypeFindMatch:
		var m FindMatchMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeCancelSearch:
		var m CancelSearchMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeSkip:
		var m SkipMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeEndCall:
		var m EndCallMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeOffer, TypeAnswer, TypeICECandidate:
		var m SignalMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeChatMessage:
		var m ChatMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeBlockPartner:
		var m BlockPartnerMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypePing:
		var m PingMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	default:
		return env.Type, nil, fmt.Errorf("protocol: unknown client message type: %q", env.Type)
	}

	if err != nil {
		return env.Type, nil, fmt.Errorf("protocol: failed to decode %q payload: %w", env.Type, err)
	}
	return env.Type, msg, nil
}

// NewServerMessage creates a JSON-encoded byte slice for a server message.
// The msgType is injected into the payload under the "type" key. Only the
// top level is re-keyed; nested values keep their original bytes, so relayed
// negotiation blobs pass through untouched (no float64 round-trip that would
// corrupt integers beyond 2^53).
func NewServerMessage(msgType string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal payload: %w", err)
	}

	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("protocol: failed to unmarshal payload into map: %w", err)
	}

	typ, err := json.Marshal(msgType)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal message type: %w", err)
	}
	m["type"] = typ

	out, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal server message: %w", err)
	}
	return out, nil
}
