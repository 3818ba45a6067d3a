package models

import (
	"time"

	id "checkin/pkg/domain"
	dErrors "checkin/pkg/domain-errors"
)

// EntityKind distinguishes main guests from plus-ones. Both can be checked in.
type EntityKind string

const (
	EntityKindGuest   EntityKind = "guest"
	EntityKindPlusOne EntityKind = "plus_one"
)

// IsValid checks if the kind is one of the supported enum values.
func (k EntityKind) IsValid() bool {
	return k == EntityKindGuest || k == EntityKindPlusOne
}

// RSVPSource records where the guest confirmed attendance.
type RSVPSource string

const (
	RSVPSourceOnline RSVPSource = "online"
	RSVPSourceOnsite RSVPSource = "onsite"
)

// ParseRSVPSource validates an RSVP source, defaulting empty input to onsite.
func ParseRSVPSource(s string) (RSVPSource, error) {
	switch RSVPSource(s) {
	case "":
		return RSVPSourceOnsite, nil
	case RSVPSourceOnline, RSVPSourceOnsite:
		return RSVPSource(s), nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "invalid rsvp source: must be 'online' or 'onsite'")
}

// Entity is the unit that can be checked in: a guest or a guest's plus-one.
// OwnerID is a lookup-only back reference from a plus-one to its guest.
type Entity struct {
	ID                  id.EntityID   `json:"id"`
	Kind                EntityKind    `json:"kind"`
	DisplayName         string        `json:"display_name"`
	OwnerID             *id.EntityID  `json:"owner_id,omitempty"`
	TableNumber         string        `json:"table_number,omitempty"`
	DietaryRestrictions string        `json:"dietary_restrictions,omitempty"`
	PlusOneAllowed      bool          `json:"plus_one_allowed"`
	RSVPSource          RSVPSource    `json:"rsvp_source"`
	CheckedIn           bool          `json:"checked_in"`
	CheckedInAt         *time.Time    `json:"checked_in_at,omitempty"`
	SouvenirReceived    bool          `json:"souvenir_received"`
	BoundTagSerial      *id.TagSerial `json:"bound_tag_serial,omitempty"`
}

// MarkCheckedIn applies a check-in at the given time. Check-in is one-way and
// the first timestamp wins; a repeated call reports wasAlready and leaves the
// record untouched.
func (e *Entity) MarkCheckedIn(at time.Time) (wasAlready bool) {
	if e.CheckedIn {
		return true
	}
	t := at
	e.CheckedIn = true
	e.CheckedInAt = &t
	return false
}

// MarkSouvenirGiven records souvenir distribution. Idempotent.
func (e *Entity) MarkSouvenirGiven() (wasAlready bool) {
	if e.SouvenirReceived {
		return true
	}
	e.SouvenirReceived = true
	return false
}

// Validate checks the structural invariants of an imported entity.
func (e *Entity) Validate() error {
	if e.ID == "" {
		return dErrors.New(dErrors.CodeValidation, "entity id is required")
	}
	if !e.Kind.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "invalid entity kind")
	}
	if e.Kind == EntityKindPlusOne && e.OwnerID == nil {
		return dErrors.New(dErrors.CodeValidation, "plus-one requires an owner")
	}
	if e.CheckedIn != (e.CheckedInAt != nil) {
		return dErrors.New(dErrors.CodeInvariantViolation, "checked_in and checked_in_at must be set together")
	}
	return nil
}

// Clone returns a deep copy so stores never hand out their internal pointers.
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	c := *e
	if e.OwnerID != nil {
		v := *e.OwnerID
		c.OwnerID = &v
	}
	if e.CheckedInAt != nil {
		v := *e.CheckedInAt
		c.CheckedInAt = &v
	}
	if e.BoundTagSerial != nil {
		v := *e.BoundTagSerial
		c.BoundTagSerial = &v
	}
	return &c
}

// CheckInResult is returned by the ledger for every check-in attempt.
type CheckInResult struct {
	EntityID            id.EntityID `json:"entity_id"`
	WasAlreadyCheckedIn bool        `json:"was_already_checked_in"`
	CheckedInAt         time.Time   `json:"checked_in_at"`
}

// SouvenirResult is returned by the ledger for souvenir distribution.
type SouvenirResult struct {
	EntityID        id.EntityID `json:"entity_id"`
	WasAlreadyGiven bool        `json:"was_already_given"`
}
