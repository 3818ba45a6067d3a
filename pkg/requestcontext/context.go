// Package requestcontext carries request-scoped values from HTTP middleware to
// services and scan sessions without those packages importing net/http.
//
// Middleware writes with the With* functions; everything else reads:
//
//	deviceID := requestcontext.DeviceID(ctx)
//	now := requestcontext.Now(ctx)
//
// Tests inject values the same way:
//
//	ctx = requestcontext.WithStaff(ctx, "staff-7", "door-tablet-1")
package requestcontext

import (
	"context"
	"time"

	id "checkin/pkg/domain"
)

type key int

const (
	keyStaffID key = iota
	keyDeviceID
	keyClientIP
	keyUserAgent
	keyDeviceName
	keyRequestID
	keyRequestTime
)

// value returns the value stored under k, or the zero value of T.
func value[T any](ctx context.Context, k key) T {
	v, _ := ctx.Value(k).(T)
	return v
}

// StaffID is the authenticated staff member, empty for anonymous requests.
func StaffID(ctx context.Context) string { return value[string](ctx, keyStaffID) }

// DeviceID is the staff device that issued the request. Each device owns at
// most one scan session.
func DeviceID(ctx context.Context) id.DeviceID { return value[id.DeviceID](ctx, keyDeviceID) }

func WithStaff(ctx context.Context, staffID string, deviceID id.DeviceID) context.Context {
	ctx = context.WithValue(ctx, keyStaffID, staffID)
	return context.WithValue(ctx, keyDeviceID, deviceID)
}

func ClientIP(ctx context.Context) string  { return value[string](ctx, keyClientIP) }
func UserAgent(ctx context.Context) string { return value[string](ctx, keyUserAgent) }

func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, keyClientIP, clientIP)
	return context.WithValue(ctx, keyUserAgent, userAgent)
}

// DeviceName is the readable device label, e.g. "Scanner app 2.3 on Android 14".
func DeviceName(ctx context.Context) string { return value[string](ctx, keyDeviceName) }

func WithDeviceName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, keyDeviceName, name)
}

func RequestID(ctx context.Context) string { return value[string](ctx, keyRequestID) }

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, keyRequestID, requestID)
}

// Now is the time pinned for this request. Outside a request (scan sessions,
// background work) it is the wall clock.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(keyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, keyRequestTime, t)
}
