// Package registry implements the tag registry: the serial to entity mapping
// consulted by every scan.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"checkin/internal/checkin/metrics"
	"checkin/internal/checkin/models"
	"checkin/internal/checkin/observability"
	"checkin/internal/checkin/ports"
	id "checkin/pkg/domain"
	dErrors "checkin/pkg/domain-errors"
	"checkin/pkg/platform/audit"
	"checkin/pkg/platform/sentinel"
	"checkin/pkg/requestcontext"
)

type (
	Store          = ports.RegistryStore
	AuditPublisher = ports.AuditPublisher
)

// EntityLookup is the slice of the entity store the registry needs: bind
// targets must exist and the entity record mirrors its bound serial.
type EntityLookup interface {
	Get(ctx context.Context, entityID id.EntityID) (*models.Entity, error)
	SetBoundTag(ctx context.Context, entityID id.EntityID, serial *id.TagSerial) error
}

type Service struct {
	store          Store
	entities       EntityLookup
	auditPublisher AuditPublisher
	logger         *slog.Logger
	metrics        *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(store Store, entities EntityLookup, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("registry store is required")
	}
	if entities == nil {
		return nil, errors.New("entity lookup is required")
	}
	svc := &Service{store: store, entities: entities}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Resolve looks a serial up. An unbound serial yields (nil, nil).
func (s *Service) Resolve(ctx context.Context, serial id.TagSerial) (*models.TagBinding, error) {
	binding, err := s.store.FindBySerial(ctx, serial)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve tag")
	}
	return binding, nil
}

// BindingForEntity returns the entity's current binding, or nil.
func (s *Service) BindingForEntity(ctx context.Context, entityID id.EntityID) (*models.TagBinding, error) {
	binding, err := s.store.FindByEntity(ctx, entityID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up binding")
	}
	return binding, nil
}

func (s *Service) List(ctx context.Context) ([]models.TagBinding, error) {
	bindings, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list bindings")
	}
	return bindings, nil
}

// Bind assigns serial to entityID. Re-binding the same pair succeeds with
// AlreadyBound set. A serial held by another entity fails with CodeConflict
// wrapping *models.BindConflictError; it must be unbound first.
func (s *Service) Bind(ctx context.Context, serial id.TagSerial, entityID id.EntityID) (models.BindResult, error) {
	if serial == "" || entityID == "" {
		return models.BindResult{}, dErrors.New(dErrors.CodeValidation, "serial and entity id are required")
	}

	if _, err := s.entities.Get(ctx, entityID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.BindResult{}, dErrors.Wrap(err, dErrors.CodeNotFound, "entity not found")
		}
		return models.BindResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load entity")
	}

	result, err := s.store.Bind(ctx, models.TagBinding{
		Serial:   serial,
		EntityID: entityID,
		BoundAt:  requestcontext.Now(ctx),
	})
	if err != nil {
		var conflict *models.BindConflictError
		if errors.As(err, &conflict) {
			if s.metrics != nil {
				s.metrics.IncrementBindConflicts()
			}
			observability.LogAudit(ctx, s.logger, s.auditPublisher, audit.EventTagBindConflict,
				"serial", serial.String(),
				"entity_id", entityID.String(),
				"reason", "held by "+conflict.ExistingEntityID.String(),
			)
			return models.BindResult{}, dErrors.Wrap(err, dErrors.CodeConflict, conflict.Error())
		}
		return models.BindResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to bind tag")
	}
	if result.AlreadyBound {
		return result, nil
	}

	if result.ReleasedSerial != nil {
		s.recordChange("release")
		observability.LogAudit(ctx, s.logger, s.auditPublisher, audit.EventTagReleased,
			"serial", result.ReleasedSerial.String(),
			"entity_id", entityID.String(),
		)
	}
	if err := s.mirror(ctx, entityID); err != nil {
		return models.BindResult{}, err
	}
	s.recordChange("bind")
	observability.LogAudit(ctx, s.logger, s.auditPublisher, audit.EventTagBound,
		"entity_id", entityID.String(),
		"serial", serial.String(),
	)
	return result, nil
}

// Unbind releases serial. Unbinding an unbound serial is a no-op.
func (s *Service) Unbind(ctx context.Context, serial id.TagSerial) error {
	if serial == "" {
		return dErrors.New(dErrors.CodeValidation, "serial is required")
	}
	removed, err := s.store.Unbind(ctx, serial)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to unbind tag")
	}
	if removed == nil {
		return nil
	}
	if err := s.mirror(ctx, removed.EntityID); err != nil {
		return err
	}
	s.recordChange("unbind")
	observability.LogAudit(ctx, s.logger, s.auditPublisher, audit.EventTagUnbound,
		"serial", serial.String(),
		"entity_id", removed.EntityID.String(),
	)
	return nil
}

// Import loads a batch of bindings. Any overlap with a binding held by a
// different entity rejects the whole batch.
func (s *Service) Import(ctx context.Context, bindings []models.TagBinding) error {
	if err := s.store.Import(ctx, bindings); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.Wrap(err, dErrors.CodeConflict, "binding import conflicts with existing tags")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to import bindings")
	}
	return nil
}

// Release undoes an import: each binding is removed only while its serial is
// still held by the same entity, so a tag rebound since is left alone.
func (s *Service) Release(ctx context.Context, bindings []models.TagBinding) error {
	var errs []error
	for _, b := range bindings {
		current, err := s.store.FindBySerial(ctx, b.Serial)
		if errors.Is(err, sentinel.ErrNotFound) {
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("find %s: %w", b.Serial, err))
			continue
		}
		if current.EntityID != b.EntityID {
			continue
		}
		if _, err := s.store.Unbind(ctx, b.Serial); err != nil {
			errs = append(errs, fmt.Errorf("unbind %s: %w", b.Serial, err))
			continue
		}
		s.recordChange("unbind")
	}
	if err := errors.Join(errs...); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to release imported bindings")
	}
	return nil
}

// mirror copies the registry's current view of entityID onto the entity
// record. Reading back from the registry keeps concurrent rebinds of the
// same entity converging on the stored binding.
func (s *Service) mirror(ctx context.Context, entityID id.EntityID) error {
	var serial *id.TagSerial
	current, err := s.store.FindByEntity(ctx, entityID)
	switch {
	case err == nil:
		serial = &current.Serial
	case !errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read binding")
	}

	if err := s.entities.SetBoundTag(ctx, entityID, serial); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			// Bindings can outlive their entity; the scan path reports that.
			if s.logger != nil {
				s.logger.WarnContext(ctx, "bound entity missing from ledger", "entity_id", entityID.String())
			}
			return nil
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update entity tag")
	}
	return nil
}

func (s *Service) recordChange(op string) {
	if s.metrics != nil {
		s.metrics.IncrementBindingChange(op)
	}
}
