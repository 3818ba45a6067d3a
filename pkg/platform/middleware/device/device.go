// Package device labels the staff device behind a request with a readable name
// derived from its User-Agent, for logs and audit trails.
package device

import (
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"checkin/pkg/requestcontext"
)

const (
	unknownDevice = "Unknown Device"
	// scannerAppProduct is the product token sent by the door tablet app.
	scannerAppProduct = "CheckinScanner"
)

// Middleware stores the parsed device name in the request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithDeviceName(r.Context(), ParseUserAgent(r.Header.Get("User-Agent")))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ParseUserAgent renders a User-Agent as "<client> on <os>". The scanner app
// is named with its version so audit trails show which build handled a scan.
func ParseUserAgent(userAgent string) string {
	if strings.TrimSpace(userAgent) == "" {
		return unknownDevice
	}
	ua := useragent.New(userAgent)

	client := scannerApp(userAgent)
	if client == "" {
		client, _ = ua.Browser()
	}
	if client == "" {
		client = "Unknown Browser"
	}

	os := ua.OS()
	if os == "" {
		os = ua.Platform()
	}
	if os == "" {
		os = "Unknown OS"
	}
	return strings.Join(strings.Fields(client+" on "+os), " ")
}

func scannerApp(userAgent string) string {
	for _, token := range strings.Fields(userAgent) {
		product, version, _ := strings.Cut(token, "/")
		if product == scannerAppProduct {
			if version == "" {
				return "Scanner app"
			}
			return "Scanner app " + version
		}
	}
	return ""
}
