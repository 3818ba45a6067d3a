// Package seed carries the demo guest list loaded when CHECKIN_SEED_DEMO is set.
package seed

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"checkin/internal/checkin/models"
)

//go:embed demo_guests.json
var demoGuests []byte

// DemoGuests returns the demo guest list in import format.
func DemoGuests() ([]models.GuestImport, error) {
	var guests []models.GuestImport
	if err := json.Unmarshal(demoGuests, &guests); err != nil {
		return nil, fmt.Errorf("decode demo guests: %w", err)
	}
	return guests, nil
}
