package models

import (
	"strings"
	"time"

	id "checkin/pkg/domain"
	dErrors "checkin/pkg/domain-errors"
)

// GuestImport is the guest-list record format accepted by the importer. It
// mirrors the event planner's export: guests with nested plus-ones.
type GuestImport struct {
	ID                  string          `json:"id"`
	FirstName           string          `json:"first_name"`
	LastName            string          `json:"last_name"`
	TableNumber         string          `json:"table_number"`
	DietaryRestrictions string          `json:"dietary_restrictions,omitempty"`
	PlusOne             bool            `json:"plus_one"`
	PlusOnes            []PlusOneImport `json:"plus_ones,omitempty"`
	CheckedIn           bool            `json:"checked_in"`
	SouvenirReceived    bool            `json:"souvenir_received"`
	RSVPSource          string          `json:"rsvp_source"`
	NFCTag              string          `json:"nfc_tag,omitempty"`
}

// PlusOneImport is a plus-one nested under its guest.
type PlusOneImport struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CheckedIn bool   `json:"checked_in"`
	NFCTag    string `json:"nfc_tag,omitempty"`
}

// ImportBatch is the flattened form of a guest list: entities plus the tag
// bindings that came with them.
type ImportBatch struct {
	Entities []*Entity
	Bindings []TagBinding
}

// FlattenGuests converts imported guests into entities and bindings. Records
// imported as already checked in get importedAt as their check-in time.
func FlattenGuests(guests []GuestImport, importedAt time.Time) (*ImportBatch, error) {
	batch := &ImportBatch{}
	seen := make(map[id.EntityID]struct{})
	serials := make(map[id.TagSerial]id.EntityID)

	add := func(e *Entity, tag string) error {
		if _, dup := seen[e.ID]; dup {
			return dErrors.New(dErrors.CodeValidation, "duplicate entity id: "+e.ID.String())
		}
		seen[e.ID] = struct{}{}
		if e.CheckedIn {
			t := importedAt
			e.CheckedInAt = &t
		}
		if strings.TrimSpace(tag) != "" {
			serial, err := id.ParseTagSerial(tag)
			if err != nil {
				return err
			}
			if owner, taken := serials[serial]; taken {
				return dErrors.New(dErrors.CodeConflict, "tag "+serial.String()+" assigned to both "+owner.String()+" and "+e.ID.String())
			}
			serials[serial] = e.ID
			e.BoundTagSerial = &serial
			batch.Bindings = append(batch.Bindings, TagBinding{Serial: serial, EntityID: e.ID, BoundAt: importedAt})
		}
		if err := e.Validate(); err != nil {
			return err
		}
		batch.Entities = append(batch.Entities, e)
		return nil
	}

	for _, g := range guests {
		guestID, err := id.ParseEntityID(g.ID)
		if err != nil {
			return nil, err
		}
		rsvp, err := ParseRSVPSource(g.RSVPSource)
		if err != nil {
			return nil, err
		}
		guest := &Entity{
			ID:                  guestID,
			Kind:                EntityKindGuest,
			DisplayName:         strings.TrimSpace(g.FirstName + " " + g.LastName),
			TableNumber:         g.TableNumber,
			DietaryRestrictions: g.DietaryRestrictions,
			PlusOneAllowed:      g.PlusOne,
			RSVPSource:          rsvp,
			CheckedIn:           g.CheckedIn,
			SouvenirReceived:    g.SouvenirReceived,
		}
		if err := add(guest, g.NFCTag); err != nil {
			return nil, err
		}

		for _, p := range g.PlusOnes {
			plusOneID, err := id.ParseEntityID(p.ID)
			if err != nil {
				return nil, err
			}
			owner := guestID
			plusOne := &Entity{
				ID:          plusOneID,
				Kind:        EntityKindPlusOne,
				DisplayName: strings.TrimSpace(p.Name),
				OwnerID:     &owner,
				TableNumber: g.TableNumber,
				RSVPSource:  rsvp,
				CheckedIn:   p.CheckedIn,
			}
			if err := add(plusOne, p.NFCTag); err != nil {
				return nil, err
			}
		}
	}
	return batch, nil
}
