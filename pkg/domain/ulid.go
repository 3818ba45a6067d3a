package domain

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewOutcomeID returns a ULID for a scan outcome. Outcome ids sort by the time
// the outcome was produced.
func NewOutcomeID(now time.Time) (string, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	v, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}
