package reader

import (
	"bytes"
	"encoding/json"
)

// PayloadPrefix marks the NDEF text record written by the tag assignment flow.
const PayloadPrefix = "checkin:"

// PayloadType mirrors the entity kind recorded on the tag.
type PayloadType string

const (
	PayloadTypeMainGuest PayloadType = "mainGuest"
	PayloadTypePlusOne   PayloadType = "plusOne"
)

// TagPayload is the optional data record stored on a tag. The registry is the
// source of truth; the payload is only a hint for display before resolution.
type TagPayload struct {
	GuestID     string      `json:"guestId,omitempty"`
	CheckInTime string      `json:"checkInTime,omitempty"`
	Type        PayloadType `json:"type"`
}

// DecodePayload parses a "checkin:{json}" record. Missing or malformed
// payloads decode to a main-guest hint with no guest id.
func DecodePayload(raw []byte) TagPayload {
	fallback := TagPayload{Type: PayloadTypeMainGuest}

	idx := bytes.Index(raw, []byte(PayloadPrefix))
	if idx < 0 {
		return fallback
	}
	var p TagPayload
	if err := json.Unmarshal(raw[idx+len(PayloadPrefix):], &p); err != nil {
		return fallback
	}
	if p.Type != PayloadTypePlusOne {
		p.Type = PayloadTypeMainGuest
	}
	return p
}

// EncodePayload renders the record a writer device stores on a tag.
func EncodePayload(p TagPayload) []byte {
	if p.Type == "" {
		p.Type = PayloadTypeMainGuest
	}
	body, _ := json.Marshal(p)
	return append([]byte(PayloadPrefix), body...)
}
