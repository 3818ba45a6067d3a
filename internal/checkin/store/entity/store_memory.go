package entity

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"checkin/internal/checkin/models"
	id "checkin/pkg/domain"
	"checkin/pkg/platform/sentinel"
)

// InMemory is the in-process entity ledger. Entities are cloned on the way in
// and out so callers never share state with the store.
type InMemory struct {
	mu       sync.RWMutex
	entities map[id.EntityID]*models.Entity
}

func NewInMemory() *InMemory {
	return &InMemory{entities: make(map[id.EntityID]*models.Entity)}
}

func (s *InMemory) Get(_ context.Context, entityID id.EntityID) (*models.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entities[entityID]
	if !ok {
		return nil, fmt.Errorf("entity %s: %w", entityID, sentinel.ErrNotFound)
	}
	return e.Clone(), nil
}

// List returns entities ordered by id.
func (s *InMemory) List(_ context.Context) ([]*models.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Entity, 0, len(s.entities))
	for _, e := range s.entities {
		out = append(out, e.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemory) CheckIn(_ context.Context, entityID id.EntityID, at time.Time) (models.CheckInResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entities[entityID]
	if !ok {
		return models.CheckInResult{}, fmt.Errorf("entity %s: %w", entityID, sentinel.ErrNotFound)
	}
	wasAlready := e.MarkCheckedIn(at)
	return models.CheckInResult{
		EntityID:            entityID,
		WasAlreadyCheckedIn: wasAlready,
		CheckedInAt:         *e.CheckedInAt,
	}, nil
}

func (s *InMemory) GiveSouvenir(_ context.Context, entityID id.EntityID) (models.SouvenirResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entities[entityID]
	if !ok {
		return models.SouvenirResult{}, fmt.Errorf("entity %s: %w", entityID, sentinel.ErrNotFound)
	}
	return models.SouvenirResult{EntityID: entityID, WasAlreadyGiven: e.MarkSouvenirGiven()}, nil
}

func (s *InMemory) SetBoundTag(_ context.Context, entityID id.EntityID, serial *id.TagSerial) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entities[entityID]
	if !ok {
		return fmt.Errorf("entity %s: %w", entityID, sentinel.ErrNotFound)
	}
	if serial == nil {
		e.BoundTagSerial = nil
		return nil
	}
	v := *serial
	e.BoundTagSerial = &v
	return nil
}

// Import inserts all entities or none.
func (s *InMemory) Import(_ context.Context, entities []*models.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range entities {
		if _, exists := s.entities[e.ID]; exists {
			return fmt.Errorf("entity %s: %w", e.ID, sentinel.ErrConflict)
		}
	}
	for _, e := range entities {
		s.entities[e.ID] = e.Clone()
	}
	return nil
}

func (s *InMemory) Stats(_ context.Context) (models.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*models.Entity, 0, len(s.entities))
	for _, e := range s.entities {
		all = append(all, e)
	}
	return models.ComputeStats(all), nil
}
