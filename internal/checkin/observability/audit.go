// Package observability provides audit logging helpers for the check-in services.
package observability

import (
	"context"
	"log/slog"

	"checkin/pkg/attrs"
	id "checkin/pkg/domain"
	"checkin/pkg/platform/audit"
	"checkin/pkg/requestcontext"
)

// AuditPublisher is the emit side of the audit pipeline.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// LogAudit logs audit events to both the structured logger and the audit publisher.
// It enriches events with request and device identity from the context and
// pulls well-known keys out of attrList into the event fields.
func LogAudit(ctx context.Context, logger *slog.Logger, publisher AuditPublisher, event audit.AuditEvent, attrList ...any) {
	requestID := requestcontext.RequestID(ctx)
	if requestID != "" {
		attrList = append(attrList, "request_id", requestID)
	}
	if name := requestcontext.DeviceName(ctx); name != "" {
		attrList = append(attrList, "device_name", name)
	}
	if ip := requestcontext.ClientIP(ctx); ip != "" {
		attrList = append(attrList, "client_ip", ip)
	}

	action := string(event)
	args := append(attrList, "event", action, "log_type", "audit")

	if logger != nil {
		if event.DefaultSeverity() == audit.SeverityCritical {
			logger.ErrorContext(ctx, action, args...)
		} else {
			logger.InfoContext(ctx, action, args...)
		}
	}

	if publisher == nil {
		return
	}

	deviceID := id.DeviceID(attrs.String(attrList, "device_id"))
	if deviceID == "" {
		deviceID = requestcontext.DeviceID(ctx)
	}
	err := publisher.Emit(ctx, audit.Event{
		Action:    action,
		Subject:   extractSubject(attrList),
		EntityID:  id.EntityID(attrs.String(attrList, "entity_id")),
		Serial:    id.TagSerial(attrs.String(attrList, "serial")),
		SessionID: attrs.String(attrList, "session_id"),
		DeviceID:  deviceID,
		ActorID:   requestcontext.StaffID(ctx),
		RequestID: requestID,
		Reason:    attrs.String(attrList, "reason"),
	})
	if err != nil && logger != nil {
		logger.WarnContext(ctx, "failed to emit audit event", "event", action, "error", err)
	}
}

// extractSubject picks the most specific identifier the event carries.
func extractSubject(attrList []any) string {
	return attrs.First(attrList, "entity_id", "serial", "session_id", "device_id")
}
