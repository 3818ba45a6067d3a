// Package ledger records attendance. Check-in is a one-way transition: there
// is no check-out, and the first recorded time is never moved.
package ledger

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

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
	Store          = ports.EntityStore
	AuditPublisher = ports.AuditPublisher
)

// BindingImporter receives the tag bindings that arrive with a guest list.
// Release takes back bindings of an import whose entities failed to load.
type BindingImporter interface {
	Resolve(ctx context.Context, serial id.TagSerial) (*models.TagBinding, error)
	Import(ctx context.Context, bindings []models.TagBinding) error
	Release(ctx context.Context, bindings []models.TagBinding) error
}

type Service struct {
	store          Store
	bindings       BindingImporter
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

// WithBindingImporter routes tags found in imported guest lists to the registry.
func WithBindingImporter(importer BindingImporter) Option {
	return func(s *Service) {
		s.bindings = importer
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("entity store is required")
	}
	svc := &Service{store: store}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// CheckIn marks entityID as present at the given time. Repeated calls report
// WasAlreadyCheckedIn and return the original time.
func (s *Service) CheckIn(ctx context.Context, entityID id.EntityID, at time.Time) (models.CheckInResult, error) {
	if entityID == "" {
		return models.CheckInResult{}, dErrors.New(dErrors.CodeValidation, "entity id is required")
	}

	result, err := s.store.CheckIn(ctx, entityID, at)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			observability.LogAudit(ctx, s.logger, s.auditPublisher, audit.EventEntityNotFound,
				"entity_id", entityID.String(),
				"reason", "check-in for unknown entity",
			)
			return models.CheckInResult{}, dErrors.Wrap(err, dErrors.CodeNotFound, "entity not found")
		}
		return models.CheckInResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record check-in")
	}

	if s.metrics != nil {
		s.metrics.IncrementCheckIns(result.WasAlreadyCheckedIn)
	}
	event := audit.EventGuestCheckedIn
	if result.WasAlreadyCheckedIn {
		event = audit.EventGuestCheckInRepeated
	}
	observability.LogAudit(ctx, s.logger, s.auditPublisher, event,
		"entity_id", entityID.String(),
		"checked_in_at", result.CheckedInAt,
	)
	return result, nil
}

func (s *Service) GiveSouvenir(ctx context.Context, entityID id.EntityID) (models.SouvenirResult, error) {
	result, err := s.store.GiveSouvenir(ctx, entityID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.SouvenirResult{}, dErrors.Wrap(err, dErrors.CodeNotFound, "entity not found")
		}
		return models.SouvenirResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record souvenir")
	}
	if !result.WasAlreadyGiven {
		if s.metrics != nil {
			s.metrics.IncrementSouvenirs()
		}
		observability.LogAudit(ctx, s.logger, s.auditPublisher, audit.EventSouvenirGiven,
			"entity_id", entityID.String(),
		)
	}
	return result, nil
}

func (s *Service) Entity(ctx context.Context, entityID id.EntityID) (*models.Entity, error) {
	e, err := s.store.Get(ctx, entityID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "entity not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load entity")
	}
	return e, nil
}

func (s *Service) List(ctx context.Context) ([]*models.Entity, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list entities")
	}
	return all, nil
}

// Stats is computed from current entity state on every call.
func (s *Service) Stats(ctx context.Context) (models.Stats, error) {
	st, err := s.store.Stats(ctx)
	if err != nil {
		return models.Stats{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to compute stats")
	}
	return st, nil
}

// ImportSummary reports what an import added.
type ImportSummary struct {
	Entities int `json:"entities"`
	Bindings int `json:"bindings"`
}

// ImportGuests flattens a guest list and loads it. Ids already in the ledger
// reject the batch before anything is written. Bindings are loaded before
// entities so a scan never sees an entity whose tag is missing; if the
// entities then fail to load, the bindings this import added are released.
func (s *Service) ImportGuests(ctx context.Context, guests []models.GuestImport) (ImportSummary, error) {
	batch, err := models.FlattenGuests(guests, requestcontext.Now(ctx))
	if err != nil {
		return ImportSummary{}, err
	}
	if len(batch.Bindings) > 0 && s.bindings == nil {
		return ImportSummary{}, dErrors.New(dErrors.CodeUnavailable, "guest list carries tags but no registry is configured")
	}

	for _, e := range batch.Entities {
		_, err := s.store.Get(ctx, e.ID)
		if err == nil {
			return ImportSummary{}, dErrors.New(dErrors.CodeConflict, "entity already exists: "+e.ID.String())
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return ImportSummary{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check existing entities")
		}
	}

	var added []models.TagBinding
	if len(batch.Bindings) > 0 {
		added, err = s.newBindings(ctx, batch.Bindings)
		if err != nil {
			return ImportSummary{}, err
		}
		if err := s.bindings.Import(ctx, batch.Bindings); err != nil {
			var coded *dErrors.Error
			if errors.As(err, &coded) {
				return ImportSummary{}, err
			}
			if errors.Is(err, sentinel.ErrConflict) {
				return ImportSummary{}, dErrors.Wrap(err, dErrors.CodeConflict, "guest list tags conflict with existing bindings")
			}
			return ImportSummary{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to import bindings")
		}
	}
	if err := s.store.Import(ctx, batch.Entities); err != nil {
		s.releaseBindings(ctx, added)
		if errors.Is(err, sentinel.ErrConflict) {
			return ImportSummary{}, dErrors.Wrap(err, dErrors.CodeConflict, "entity already exists")
		}
		return ImportSummary{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to import entities")
	}

	summary := ImportSummary{Entities: len(batch.Entities), Bindings: len(batch.Bindings)}
	observability.LogAudit(ctx, s.logger, s.auditPublisher, audit.EventGuestsImported,
		"entities", strconv.Itoa(summary.Entities),
		"bindings", strconv.Itoa(summary.Bindings),
	)
	return summary, nil
}

// newBindings returns the bindings the registry does not already hold.
func (s *Service) newBindings(ctx context.Context, bindings []models.TagBinding) ([]models.TagBinding, error) {
	added := make([]models.TagBinding, 0, len(bindings))
	for _, b := range bindings {
		current, err := s.bindings.Resolve(ctx, b.Serial)
		if err != nil {
			return nil, err
		}
		if current == nil || current.EntityID != b.EntityID {
			added = append(added, b)
		}
	}
	return added, nil
}

func (s *Service) releaseBindings(ctx context.Context, added []models.TagBinding) {
	if len(added) == 0 {
		return
	}
	if err := s.bindings.Release(ctx, added); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "failed to release bindings of a failed import",
			"bindings", len(added),
			"error", err,
		)
	}
}
