package handler

import (
	"net/http"
	"strings"
	"time"

	id "checkin/pkg/domain"
	dErrors "checkin/pkg/domain-errors"
	"checkin/pkg/platform/httputil"
	"checkin/pkg/requestcontext"
)

const defaultDeviceTokenTTL = 12 * time.Hour

// TokenIssuer mints bearer tokens for enrolled staff devices.
type TokenIssuer interface {
	GenerateAccessToken(staffID string, deviceID id.DeviceID, ttl time.Duration) (string, error)
}

// WithTokenIssuer enables POST /devices/token on the admin routes.
func WithTokenIssuer(issuer TokenIssuer) Option {
	return func(h *Handler) {
		h.tokens = issuer
	}
}

// IssueDeviceTokenRequest is the HTTP request body for POST /devices/token.
// A zero ttl_seconds issues a token for one 12h event shift.
type IssueDeviceTokenRequest struct {
	StaffID    string `json:"staff_id"`
	DeviceID   string `json:"device_id"`
	TTLSeconds int64  `json:"ttl_seconds"`

	parsedDeviceID id.DeviceID
}

func (r *IssueDeviceTokenRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.StaffID = strings.TrimSpace(r.StaffID)
	if r.StaffID == "" {
		return dErrors.New(dErrors.CodeValidation, "staff_id is required")
	}
	if r.TTLSeconds < 0 {
		return dErrors.New(dErrors.CodeValidation, "ttl_seconds must not be negative")
	}
	deviceID, err := id.ParseDeviceID(r.DeviceID)
	if err != nil {
		return err
	}
	r.parsedDeviceID = deviceID
	return nil
}

func (r *IssueDeviceTokenRequest) ttl() time.Duration {
	if r.TTLSeconds == 0 {
		return defaultDeviceTokenTTL
	}
	return time.Duration(r.TTLSeconds) * time.Second
}

type DeviceTokenResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresIn   int64       `json:"expires_in"`
	DeviceID    id.DeviceID `json:"device_id"`
}

// HandleIssueDeviceToken handles POST /devices/token.
func (h *Handler) HandleIssueDeviceToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[IssueDeviceTokenRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	ttl := req.ttl()
	token, err := h.tokens.GenerateAccessToken(req.StaffID, req.parsedDeviceID, ttl)
	if err != nil {
		h.logger.WarnContext(ctx, "device token not issued",
			"request_id", requestID,
			"device_id", req.parsedDeviceID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "device token issued",
		"request_id", requestID,
		"staff_id", req.StaffID,
		"device_id", req.parsedDeviceID,
		"ttl", ttl.String(),
	)
	httputil.WriteJSON(w, http.StatusCreated, DeviceTokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(ttl.Seconds()),
		DeviceID:    req.parsedDeviceID,
	})
}
