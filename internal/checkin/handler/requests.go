package handler

import (
	"strings"
	"time"

	"checkin/internal/checkin/models"
	"checkin/internal/checkin/reader"
	id "checkin/pkg/domain"
	dErrors "checkin/pkg/domain-errors"
)

// maxScanTimeout bounds how long a single scan may hold a reader.
const maxScanTimeout = 10 * time.Minute

// maxImportGuests bounds one import request.
const maxImportGuests = 5000

// StartScanRequest is the HTTP request body for POST /scan/start.
// An empty mode uses the server default; timeout_ms 0 waits until stopped.
type StartScanRequest struct {
	Mode      string `json:"mode"`
	TimeoutMS int64  `json:"timeout_ms"`

	parsedMode reader.Mode
}

// Validate implements httputil.Validatable.
func (r *StartScanRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.TimeoutMS < 0 {
		return dErrors.New(dErrors.CodeValidation, "timeout_ms must not be negative")
	}
	if time.Duration(r.TimeoutMS)*time.Millisecond > maxScanTimeout {
		return dErrors.New(dErrors.CodeValidation, "timeout_ms must be at most 600000")
	}
	r.Mode = strings.TrimSpace(r.Mode)
	if r.Mode == "" {
		return nil
	}
	mode, err := reader.ParseMode(r.Mode)
	if err != nil {
		return err
	}
	r.parsedMode = mode
	return nil
}

// ParsedMode returns the validated mode, or fallback when none was given.
func (r *StartScanRequest) ParsedMode(fallback reader.Mode) reader.Mode {
	if r.parsedMode == "" {
		return fallback
	}
	return r.parsedMode
}

// Timeout returns the scan timeout as a duration.
func (r *StartScanRequest) Timeout() time.Duration {
	return time.Duration(r.TimeoutMS) * time.Millisecond
}

// BindTagRequest is the HTTP request body for POST /tags/bind.
type BindTagRequest struct {
	Serial   string `json:"serial"`
	EntityID string `json:"entity_id"`

	parsedSerial   id.TagSerial
	parsedEntityID id.EntityID
}

func (r *BindTagRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	serial, err := id.ParseTagSerial(r.Serial)
	if err != nil {
		return err
	}
	entityID, err := id.ParseEntityID(r.EntityID)
	if err != nil {
		return err
	}
	r.parsedSerial = serial
	r.parsedEntityID = entityID
	return nil
}

// UnbindTagRequest is the HTTP request body for POST /tags/unbind.
type UnbindTagRequest struct {
	Serial string `json:"serial"`

	parsedSerial id.TagSerial
}

func (r *UnbindTagRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	serial, err := id.ParseTagSerial(r.Serial)
	if err != nil {
		return err
	}
	r.parsedSerial = serial
	return nil
}

// ImportGuestsRequest is the HTTP request body for POST /guests/import.
type ImportGuestsRequest struct {
	Guests []models.GuestImport `json:"guests"`
}

func (r *ImportGuestsRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.Guests) == 0 {
		return dErrors.New(dErrors.CodeValidation, "guests must not be empty")
	}
	if len(r.Guests) > maxImportGuests {
		return dErrors.New(dErrors.CodeValidation, "too many guests in one import")
	}
	return nil
}
