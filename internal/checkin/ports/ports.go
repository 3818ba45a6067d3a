// Package ports defines the interfaces shared by the check-in services.
// Interfaces live here when more than one service consumes them.
package ports

import (
	"context"
	"time"

	"checkin/internal/checkin/models"
	id "checkin/pkg/domain"
	"checkin/pkg/platform/audit"
)

//go:generate mockgen -source=ports.go -destination=mocks/ports_mocks.go -package=mocks

// AuditPublisher emits audit events for check-in and binding operations.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// RegistryStore persists tag bindings. Implementations must make Bind and
// Unbind atomic with respect to concurrent callers.
type RegistryStore interface {
	// FindBySerial returns sentinel.ErrNotFound when the serial is unbound.
	FindBySerial(ctx context.Context, serial id.TagSerial) (*models.TagBinding, error)

	// FindByEntity returns sentinel.ErrNotFound when the entity has no tag.
	FindByEntity(ctx context.Context, entityID id.EntityID) (*models.TagBinding, error)

	// Bind associates binding.Serial with binding.EntityID. A serial held by
	// another entity yields *models.BindConflictError and no change. The
	// entity's previous serial, if any, is released.
	Bind(ctx context.Context, binding models.TagBinding) (models.BindResult, error)

	// Unbind removes the binding for serial and returns it, or nil when the
	// serial was not bound.
	Unbind(ctx context.Context, serial id.TagSerial) (*models.TagBinding, error)

	List(ctx context.Context) ([]models.TagBinding, error)

	// Import loads bindings in one step. Any conflict with existing state
	// rejects the whole batch.
	Import(ctx context.Context, bindings []models.TagBinding) error
}

// EntityStore persists guests and plus-ones. CheckIn and GiveSouvenir must
// be atomic per entity.
type EntityStore interface {
	// Get returns sentinel.ErrNotFound for unknown ids.
	Get(ctx context.Context, entityID id.EntityID) (*models.Entity, error)

	List(ctx context.Context) ([]*models.Entity, error)

	// CheckIn marks the entity checked in at the given time unless it already
	// is, in which case the stored time is returned unchanged.
	CheckIn(ctx context.Context, entityID id.EntityID, at time.Time) (models.CheckInResult, error)

	GiveSouvenir(ctx context.Context, entityID id.EntityID) (models.SouvenirResult, error)

	// SetBoundTag mirrors the registry onto the entity record. A nil serial
	// clears it.
	SetBoundTag(ctx context.Context, entityID id.EntityID, serial *id.TagSerial) error

	// Import inserts new entities. Existing ids reject the whole batch with
	// sentinel.ErrConflict.
	Import(ctx context.Context, entities []*models.Entity) error

	Stats(ctx context.Context) (models.Stats, error)
}

// TagResolver is the registry view a scan session needs.
type TagResolver interface {
	Resolve(ctx context.Context, serial id.TagSerial) (*models.TagBinding, error)
}

// CheckInRecorder is the ledger view a scan session needs.
type CheckInRecorder interface {
	CheckIn(ctx context.Context, entityID id.EntityID, at time.Time) (models.CheckInResult, error)
}
