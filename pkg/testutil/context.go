package testutil

import (
	"net/http"

	id "checkin/pkg/domain"
	"checkin/pkg/requestcontext"
)

// WithStaffDevice marks the request as coming from an authenticated staff
// device, as the auth middleware would.
func WithStaffDevice(req *http.Request, staffID string, deviceID id.DeviceID) *http.Request {
	return req.WithContext(requestcontext.WithStaff(req.Context(), staffID, deviceID))
}

// StaffDevice is middleware that authenticates every request as the given
// device. Router-level tests use it in place of bearer token auth.
func StaffDevice(staffID string, deviceID id.DeviceID) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, WithStaffDevice(r, staffID, deviceID))
		})
	}
}
