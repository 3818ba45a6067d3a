// Package domain holds the primitive identifiers shared by every layer.
//
// Entity ids are opaque strings owned by the guest import (e.g. "guest-002",
// "plusone-1"); tag serials are whatever the reader reports. Both are parsed at
// trust boundaries so the rest of the code can assume they are well formed.
package domain

import (
	"strings"
	"unicode"

	"github.com/google/uuid"

	dErrors "checkin/pkg/domain-errors"
)

const maxIdentifierLength = 128

// EntityID identifies a guest or a plus-one.
type EntityID string

// TagSerial is the unique serial reported by an NFC tag.
type TagSerial string

// SessionID identifies one ScanSession activation owner.
type SessionID uuid.UUID

// DeviceID identifies the staff device driving a scan session.
type DeviceID string

func (id EntityID) String() string  { return string(id) }
func (s TagSerial) String() string  { return string(s) }
func (id DeviceID) String() string  { return string(id) }
func (id SessionID) String() string { return uuid.UUID(id).String() }

// IsNil reports whether the session id is the zero UUID.
func (id SessionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id SessionID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *SessionID) UnmarshalText(b []byte) error {
	parsed, err := ParseSessionID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// NewSessionID returns a random session id.
func NewSessionID() SessionID { return SessionID(uuid.New()) }

// ParseEntityID trims and validates an opaque entity identifier.
func ParseEntityID(s string) (EntityID, error) {
	v, err := parseIdentifier(s, "entity id")
	return EntityID(v), err
}

// ParseTagSerial trims and validates a tag serial. Case is preserved: hardware
// serials are reported upper-case hex while simulated ones are base-36.
func ParseTagSerial(s string) (TagSerial, error) {
	v, err := parseIdentifier(s, "tag serial")
	return TagSerial(v), err
}

// ParseDeviceID trims and validates a staff device identifier.
func ParseDeviceID(s string) (DeviceID, error) {
	v, err := parseIdentifier(s, "device id")
	return DeviceID(v), err
}

// ParseSessionID parses a non-nil UUID session id.
func ParseSessionID(s string) (SessionID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return SessionID{}, dErrors.New(dErrors.CodeInvalidInput, "invalid session id")
	}
	if u == uuid.Nil {
		return SessionID{}, dErrors.New(dErrors.CodeInvalidInput, "session id must not be nil")
	}
	return SessionID(u), nil
}

func parseIdentifier(s, what string) (string, error) {
	v := strings.TrimSpace(s)
	if v == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, what+" is required")
	}
	if len(v) > maxIdentifierLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, what+" is too long")
	}
	for _, r := range v {
		if unicode.IsControl(r) || unicode.IsSpace(r) || r == '\u200b' {
			return "", dErrors.New(dErrors.CodeInvalidInput, what+" contains invalid characters")
		}
	}
	return v, nil
}
