package handler

import (
	"time"

	"checkin/internal/checkin/models"
	"checkin/internal/checkin/reader"
	"checkin/internal/checkin/service/session"
	id "checkin/pkg/domain"
)

type ScanStartedResponse struct {
	ScanID   id.SessionID  `json:"scan_id"`
	DeviceID id.DeviceID   `json:"device_id"`
	Mode     reader.Mode   `json:"mode"`
	State    session.State `json:"state"`
}

type ScanSessionsResponse struct {
	Sessions []session.Status `json:"sessions"`
}

type EntitiesResponse struct {
	Entities []*models.Entity `json:"entities"`
}

// ResolveTagResponse reports what a serial is bound to. Bound is false for an
// unknown serial; that is not an error.
type ResolveTagResponse struct {
	Serial   id.TagSerial `json:"serial"`
	Bound    bool         `json:"bound"`
	EntityID id.EntityID  `json:"entity_id,omitempty"`
	BoundAt  *time.Time   `json:"bound_at,omitempty"`
}

type TagsResponse struct {
	Bindings []models.TagBinding `json:"bindings"`
}

type BindTagResponse struct {
	models.BindResult
	// TagRecord is the NDEF text record a writer device should store on the tag.
	TagRecord string `json:"tag_record,omitempty"`
}

type UnbindTagResponse struct {
	Serial id.TagSerial `json:"serial"`
}

type conflictResponse struct {
	Error            string      `json:"error"`
	ErrorDescription string      `json:"error_description"`
	ExistingEntityID id.EntityID `json:"existing_entity_id"`
}

func fromBinding(serial id.TagSerial, b *models.TagBinding) ResolveTagResponse {
	resp := ResolveTagResponse{Serial: serial}
	if b != nil {
		boundAt := b.BoundAt
		resp.Bound = true
		resp.EntityID = b.EntityID
		resp.BoundAt = &boundAt
	}
	return resp
}

func tagRecordFor(e *models.Entity, boundAt time.Time) string {
	if e == nil {
		return ""
	}
	payload := reader.TagPayload{GuestID: e.ID.String(), Type: reader.PayloadTypeMainGuest}
	if e.Kind == models.EntityKindPlusOne {
		payload.Type = reader.PayloadTypePlusOne
	}
	if e.CheckedInAt != nil {
		payload.CheckInTime = e.CheckedInAt.UTC().Format(time.RFC3339)
	} else {
		payload.CheckInTime = boundAt.UTC().Format(time.RFC3339)
	}
	return string(reader.EncodePayload(payload))
}
