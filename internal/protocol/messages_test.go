package protocol

import (
	"encoding/json"
	"testing"
)

// ---------------------------------------------------------------------------
// Test: Parsing a valid find_match message
// ---------------------------------------------------------------------------

func TestParseClientMessage_FindMatch(t *testing.T) {
	input := []byte(`{"type":"find_match","preferences":{"gender":"female","gender_interest":"male"}}`)

	msgType, msg, err := ParseClientMessage(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgType != TypeFindMatch {
		t.Fatalf("expected type %q, got %q", TypeFindMatch, msgType)
	}

	fm, ok := msg.(FindMatchMsg)
	if !ok {
		t.Fatalf("expected FindMatchMsg, got %T", msg)
	}
	if fm.Preferences["gender"] != "female" {
		t.Errorf("expected gender %q, got %q", "female", fm.Preferences["gender"])
	}
	if fm.Preferences["gender_interest"] != "male" {
		t.Errorf("expected gender_interest %q, got %q", "male", fm.Preferences["gender_interest"])
	}
}

func TestParseClientMessage_FindMatchWithoutPreferences(t *testing.T) {
	input := []byte(`{"type":"find_match"}`)

	_, msg, err := ParseClientMessage(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fm := msg.(FindMatchMsg)
	if fm.Preferences != nil {
		t.Errorf("expected nil preferences, got %v", fm.Preferences)
	}
}

// ---------------------------------------------------------------------------
// Test: Parsing a chat_message
// ---------------------------------------------------------------------------

func TestParseClientMessage_ChatMessage(t *testing.T) {
	input := []byte(`{"type":"chat_message","text":"Hello!"}`)

	msgType, msg, err := ParseClientMessage(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgType != TypeChatMessage {
		t.Fatalf("expected type %q, got %q", TypeChatMessage, msgType)
	}

	cm, ok := msg.(ChatMsg)
	if !ok {
		t.Fatalf("expected ChatMsg, got %T", msg)
	}
	if cm.Text != "Hello!" {
		t.Errorf("expected text %q, got %q", "Hello!", cm.Text)
	}
}

// ---------------------------------------------------------------------------
// Test: Negotiation payloads decode as SignalMsg and stay opaque
// ---------------------------------------------------------------------------

func TestParseClientMessage_SignalTypes(t *testing.T) {
	const blob = `{"sdp":"v=0...","custom":9007199254740993}`

	for _, typ := range []string{TypeOffer, TypeAnswer, TypeICECandidate} {
		input := []byte(`{"type":"` + typ + `","payload":` + blob + `}`)

		msgType, msg, err := ParseClientMessage(input)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", typ, err)
		}
		if msgType != typ {
			t.Fatalf("expected type %q, got %q", typ, msgType)
		}

		sm, ok := msg.(SignalMsg)
		if !ok {
			t.Fatalf("%s: expected SignalMsg, got %T", typ, msg)
		}

		// The payload must survive byte-for-byte; the server never
		// interprets it.
		if string(sm.Payload) != blob {
			t.Errorf("%s: payload mutated:\n sent: %s\n got:  %s", typ, blob, sm.Payload)
		}
	}
}

// ---------------------------------------------------------------------------
// Test: Argument-free client messages
// ---------------------------------------------------------------------------

func TestParseClientMessage_BareTypes(t *testing.T) {
	for _, typ := range []string{TypeCancelSearch, TypeSkip, TypeEndCall, TypeBlockPartner, TypePing} {
		input := []byte(`{"type":"` + typ + `"}`)
		msgType, _, err := ParseClientMessage(input)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", typ, err)
		}
		if msgType != typ {
			t.Errorf("expected type %q, got %q", typ, msgType)
		}
	}
}

// ---------------------------------------------------------------------------
// Test: Malformed input
// ---------------------------------------------------------------------------

func TestParseClientMessage_UnknownType(t *testing.T) {
	if _, _, err := ParseClientMessage([]byte(`{"type":"self_destruct"}`)); err == nil {
		t.Fatal("expected error for unknown type")
	}
}

func TestParseClientMessage_ServerOnlyTypeRejected(t *testing.T) {
	if _, _, err := ParseClientMessage([]byte(`{"type":"match_found"}`)); err == nil {
		t.Fatal("expected error for server-only type from a client")
	}
}

func TestParseClientMessage_MissingType(t *testing.T) {
	if _, _, err := ParseClientMessage([]byte(`{"text":"no type"}`)); err == nil {
		t.Fatal("expected error for missing type")
	}
}

func TestParseClientMessage_InvalidJSON(t *testing.T) {
	if _, _, err := ParseClientMessage([]byte(`{not json`)); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

// ---------------------------------------------------------------------------
// Test: Creating server messages
// ---------------------------------------------------------------------------

func TestNewServerMessage_MatchFound(t *testing.T) {
	payload := MatchFoundMsg{
		PartnerID:      "uuid-456",
		PartnerProfile: PartnerProfile{Gender: "female", Language: "en"},
		IsInitiator:    true,
	}

	data, err := NewServerMessage(TypeMatchFound, payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}

	if result["type"] != TypeMatchFound {
		t.Errorf("expected type %q, got %v", TypeMatchFound, result["type"])
	}
	if result["partner_id"] != "uuid-456" {
		t.Errorf("expected partner_id %q, got %v", "uuid-456", result["partner_id"])
	}
	if result["is_initiator"] != true {
		t.Errorf("expected is_initiator=true, got %v", result["is_initiator"])
	}

	profile, ok := result["partner_profile"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected partner_profile object, got %T", result["partner_profile"])
	}
	if profile["gender"] != "female" {
		t.Errorf("expected gender %q, got %v", "female", profile["gender"])
	}
	if _, present := profile["region"]; present {
		t.Error("unstated region should be omitted from the profile")
	}
}

func TestNewServerMessage_SignalPayloadByteForByte(t *testing.T) {
	// 9007199254740993 is not representable as a float64; any float round-trip
	// of the blob would silently turn it into ...992.
	blob := `{"id":9007199254740993,"sdp":"v=0...","nested":{"z":1,"a":2}}`

	data, err := NewServerMessage(TypeOffer, ServerSignalMsg{Payload: json.RawMessage(blob)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result map[string]json.RawMessage
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}
	if string(result["payload"]) != blob {
		t.Errorf("payload mutated in transit:\n sent: %s\n got:  %s", blob, result["payload"])
	}

	var typ string
	if err := json.Unmarshal(result["type"], &typ); err != nil || typ != TypeOffer {
		t.Errorf("expected type %q, got %s", TypeOffer, result["type"])
	}
}

func TestNewServerMessage_TypeFieldOverridesPayload(t *testing.T) {
	data, err := NewServerMessage(TypePartnerLeft, PartnerLeftMsg{Type: "wrong", Reason: "skipped"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}
	if result["type"] != TypePartnerLeft {
		t.Errorf("expected type %q, got %v", TypePartnerLeft, result["type"])
	}
	if result["reason"] != "skipped" {
		t.Errorf("expected reason %q, got %v", "skipped", result["reason"])
	}
}
