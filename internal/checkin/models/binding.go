package models

import (
	"fmt"
	"time"

	id "checkin/pkg/domain"
	"checkin/pkg/platform/sentinel"
)

// TagBinding associates a tag serial with the entity it identifies.
type TagBinding struct {
	Serial   id.TagSerial `json:"serial"`
	EntityID id.EntityID  `json:"entity_id"`
	BoundAt  time.Time    `json:"bound_at"`
}

// BindResult describes what a successful Bind changed.
type BindResult struct {
	Binding TagBinding `json:"binding"`
	// AlreadyBound is true when the serial already pointed at the same entity.
	AlreadyBound bool `json:"already_bound"`
	// ReleasedSerial is the entity's previous serial, released by this bind.
	ReleasedSerial *id.TagSerial `json:"released_serial,omitempty"`
}

// BindConflictError reports that a serial is held by a different entity.
// The registry is left unchanged; the caller must unbind explicitly.
type BindConflictError struct {
	Serial           id.TagSerial
	ExistingEntityID id.EntityID
}

func (e *BindConflictError) Error() string {
	return fmt.Sprintf("tag %s already bound to %s", e.Serial, e.ExistingEntityID)
}

func (e *BindConflictError) Unwrap() error { return sentinel.ErrConflict }
