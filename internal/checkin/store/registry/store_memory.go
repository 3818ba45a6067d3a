package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"checkin/internal/checkin/models"
	id "checkin/pkg/domain"
	"checkin/pkg/platform/sentinel"
)

// InMemory keeps bindings in two maps guarded by one lock so both directions
// of the serial/entity relation change together.
type InMemory struct {
	mu       sync.RWMutex
	bySerial map[id.TagSerial]models.TagBinding
	byEntity map[id.EntityID]id.TagSerial
}

func NewInMemory() *InMemory {
	return &InMemory{
		bySerial: make(map[id.TagSerial]models.TagBinding),
		byEntity: make(map[id.EntityID]id.TagSerial),
	}
}

func (s *InMemory) FindBySerial(_ context.Context, serial id.TagSerial) (*models.TagBinding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bySerial[serial]
	if !ok {
		return nil, fmt.Errorf("tag %s: %w", serial, sentinel.ErrNotFound)
	}
	return &b, nil
}

func (s *InMemory) FindByEntity(_ context.Context, entityID id.EntityID) (*models.TagBinding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	serial, ok := s.byEntity[entityID]
	if !ok {
		return nil, fmt.Errorf("binding for %s: %w", entityID, sentinel.ErrNotFound)
	}
	b := s.bySerial[serial]
	return &b, nil
}

func (s *InMemory) Bind(_ context.Context, binding models.TagBinding) (models.BindResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bindLocked(binding)
}

func (s *InMemory) bindLocked(binding models.TagBinding) (models.BindResult, error) {
	if existing, ok := s.bySerial[binding.Serial]; ok {
		if existing.EntityID == binding.EntityID {
			return models.BindResult{Binding: existing, AlreadyBound: true}, nil
		}
		return models.BindResult{}, &models.BindConflictError{Serial: binding.Serial, ExistingEntityID: existing.EntityID}
	}

	var result models.BindResult
	if prev, ok := s.byEntity[binding.EntityID]; ok {
		delete(s.bySerial, prev)
		result.ReleasedSerial = &prev
	}
	s.bySerial[binding.Serial] = binding
	s.byEntity[binding.EntityID] = binding.Serial
	result.Binding = binding
	return result, nil
}

func (s *InMemory) Unbind(_ context.Context, serial id.TagSerial) (*models.TagBinding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bySerial[serial]
	if !ok {
		return nil, nil
	}
	delete(s.bySerial, serial)
	if s.byEntity[b.EntityID] == serial {
		delete(s.byEntity, b.EntityID)
	}
	return &b, nil
}

// List returns bindings ordered by serial.
func (s *InMemory) List(_ context.Context) ([]models.TagBinding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.TagBinding, 0, len(s.bySerial))
	for _, b := range s.bySerial {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Serial < out[j].Serial })
	return out, nil
}

// Import applies bindings on a scratch copy and swaps it in only when every
// binding succeeds.
func (s *InMemory) Import(_ context.Context, bindings []models.TagBinding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	scratch := &InMemory{
		bySerial: make(map[id.TagSerial]models.TagBinding, len(s.bySerial)+len(bindings)),
		byEntity: make(map[id.EntityID]id.TagSerial, len(s.byEntity)+len(bindings)),
	}
	for k, v := range s.bySerial {
		scratch.bySerial[k] = v
	}
	for k, v := range s.byEntity {
		scratch.byEntity[k] = v
	}
	for _, b := range bindings {
		if _, ok := scratch.byEntity[b.EntityID]; ok {
			if scratch.byEntity[b.EntityID] != b.Serial {
				return fmt.Errorf("entity %s already has a tag: %w", b.EntityID, sentinel.ErrConflict)
			}
		}
		if _, err := scratch.bindLocked(b); err != nil {
			return err
		}
	}
	s.bySerial = scratch.bySerial
	s.byEntity = scratch.byEntity
	return nil
}
