package audit

import (
	"time"

	id "checkin/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies and routing.
type EventCategory string

const (
	// CategoryAttendance covers state changes on guest records: check-ins and
	// souvenir distribution. These are the event-day source of truth.
	CategoryAttendance EventCategory = "attendance"

	// CategoryBinding covers tag assignment changes and conflicts.
	CategoryBinding EventCategory = "binding"

	// CategoryIntegrity covers registry/ledger inconsistencies found at scan time.
	CategoryIntegrity EventCategory = "integrity"

	// CategoryOperations covers routine scan lifecycle activity.
	CategoryOperations EventCategory = "operations"
)

// Severity levels used for alert routing.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory `json:"category"`
	Timestamp time.Time     `json:"timestamp"`
	Action    string        `json:"action"`
	// Subject is the primary thing acted on: an entity id, or a serial when
	// no entity is known.
	Subject   string       `json:"subject"`
	EntityID  id.EntityID  `json:"entity_id,omitempty"`
	Serial    id.TagSerial `json:"serial,omitempty"`
	DeviceID  id.DeviceID  `json:"device_id,omitempty"`
	SessionID string       `json:"session_id,omitempty"`
	Reason    string       `json:"reason,omitempty"`
	RequestID string       `json:"request_id,omitempty"`
	// ActorID is the staff member behind the device, when authenticated.
	ActorID  string   `json:"actor_id,omitempty"`
	Severity Severity `json:"severity,omitempty"`
}

type AuditEvent string

const (
	// Attendance events
	EventGuestCheckedIn       AuditEvent = "guest_checked_in"
	EventGuestCheckInRepeated AuditEvent = "guest_check_in_repeated"
	EventSouvenirGiven        AuditEvent = "souvenir_given"
	EventGuestsImported       AuditEvent = "guests_imported"

	// Binding events
	EventTagBound        AuditEvent = "tag_bound"
	EventTagUnbound      AuditEvent = "tag_unbound"
	EventTagReleased     AuditEvent = "tag_released"
	EventTagBindConflict AuditEvent = "tag_bind_conflict"

	// Integrity events
	EventEntityNotFound AuditEvent = "entity_not_found"

	// Scan lifecycle events
	EventScanStarted   AuditEvent = "scan_started"
	EventScanStopped   AuditEvent = "scan_stopped"
	EventScanCompleted AuditEvent = "scan_completed"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventGuestCheckedIn:       CategoryAttendance,
	EventGuestCheckInRepeated: CategoryAttendance,
	EventSouvenirGiven:        CategoryAttendance,
	EventGuestsImported:       CategoryAttendance,

	EventTagBound:        CategoryBinding,
	EventTagUnbound:      CategoryBinding,
	EventTagReleased:     CategoryBinding,
	EventTagBindConflict: CategoryBinding,

	EventEntityNotFound: CategoryIntegrity,

	EventScanStarted:   CategoryOperations,
	EventScanStopped:   CategoryOperations,
	EventScanCompleted: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// DefaultSeverity is the severity used when an event does not set one.
func (e AuditEvent) DefaultSeverity() Severity {
	switch e {
	case EventEntityNotFound:
		return SeverityCritical
	case EventTagBindConflict:
		return SeverityWarning
	}
	return SeverityInfo
}
