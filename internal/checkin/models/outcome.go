package models

import (
	"time"

	id "checkin/pkg/domain"
)

// OutcomeKind tags the terminal result of one scan attempt.
type OutcomeKind string

const (
	OutcomeSuccess     OutcomeKind = "success"
	OutcomeUnknownTag  OutcomeKind = "unknown_tag"
	OutcomeReaderError OutcomeKind = "reader_error"
	OutcomeCancelled   OutcomeKind = "cancelled"
	OutcomeTimedOut    OutcomeKind = "timed_out"

	// OutcomeIntegrityError surfaces a registry binding that points at an
	// entity the ledger does not know.
	OutcomeIntegrityError OutcomeKind = "integrity_error"
)

// Outcome is produced exactly once per scan attempt and never revised.
// Fields beyond Kind are populated according to the variant:
//
//	success          EntityID, Serial, AlreadyCheckedIn
//	unknown_tag      Serial
//	reader_error     Reason
//	integrity_error  Serial, EntityID, Reason
//	cancelled        Serial, EntityID, Reason when stopped after a tag was read
type Outcome struct {
	ID               string       `json:"id"`
	SessionID        id.SessionID `json:"session_id"`
	Kind             OutcomeKind  `json:"kind"`
	Serial           id.TagSerial `json:"serial,omitempty"`
	EntityID         id.EntityID  `json:"entity_id,omitempty"`
	AlreadyCheckedIn bool         `json:"already_checked_in,omitempty"`
	Reason           string       `json:"reason,omitempty"`
	At               time.Time    `json:"at"`
}

func SuccessOutcome(serial id.TagSerial, entityID id.EntityID, alreadyCheckedIn bool) Outcome {
	return Outcome{Kind: OutcomeSuccess, Serial: serial, EntityID: entityID, AlreadyCheckedIn: alreadyCheckedIn}
}

func UnknownTagOutcome(serial id.TagSerial) Outcome {
	return Outcome{Kind: OutcomeUnknownTag, Serial: serial}
}

func ReaderErrorOutcome(reason string) Outcome {
	return Outcome{Kind: OutcomeReaderError, Reason: reason}
}

func CancelledOutcome() Outcome {
	return Outcome{Kind: OutcomeCancelled}
}

// StoppedOutcome is the cancelled outcome for a scan stopped after decided
// was reached. The tag and entity are kept so a caller can see a check-in
// that was recorded before the stop took effect.
func StoppedOutcome(decided Outcome) Outcome {
	o := Outcome{Kind: OutcomeCancelled, Serial: decided.Serial, EntityID: decided.EntityID}
	if decided.Kind == OutcomeSuccess {
		o.AlreadyCheckedIn = decided.AlreadyCheckedIn
		o.Reason = "stopped after the check-in was recorded"
	}
	return o
}

func TimedOutOutcome() Outcome {
	return Outcome{Kind: OutcomeTimedOut}
}

func IntegrityErrorOutcome(serial id.TagSerial, entityID id.EntityID, reason string) Outcome {
	return Outcome{Kind: OutcomeIntegrityError, Serial: serial, EntityID: entityID, Reason: reason}
}

// RawTagEvent is what a reader reports for a detected tag.
type RawTagEvent struct {
	Serial  id.TagSerial
	Payload []byte
}

// ReaderEvent carries either a detected tag or a reader failure.
type ReaderEvent struct {
	Tag *RawTagEvent
	Err error
}
