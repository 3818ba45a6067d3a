package session

import (
	"errors"
	"sort"
	"sync"

	id "checkin/pkg/domain"
	dErrors "checkin/pkg/domain-errors"
)

// Factory builds the session for a staff device. Each session needs its own
// reader set: a reader activated by one device must not hand its stream to
// another.
type Factory func(deviceID id.DeviceID) (*Session, error)

// Manager keeps one session per staff device. Sessions share the registry and
// ledger passed to the factory and otherwise run independently.
type Manager struct {
	factory Factory

	mu       sync.Mutex
	sessions map[id.DeviceID]*Session
}

func NewManager(factory Factory) (*Manager, error) {
	if factory == nil {
		return nil, errors.New("session factory is required")
	}
	return &Manager{
		factory:  factory,
		sessions: make(map[id.DeviceID]*Session),
	}, nil
}

// Session returns the device's session, creating it on first use.
func (m *Manager) Session(deviceID id.DeviceID) (*Session, error) {
	if deviceID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "device id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[deviceID]; ok {
		return s, nil
	}
	s, err := m.factory(deviceID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create scan session")
	}
	m.sessions[deviceID] = s
	return s, nil
}

// Lookup returns an existing session without creating one.
func (m *Manager) Lookup(deviceID id.DeviceID) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[deviceID]
	return s, ok
}

// Statuses reports every known session, ordered by device.
func (m *Manager) Statuses() []Status {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	out := make([]Status, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Status())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out
}

// StopAll stops every session and waits until all are idle.
func (m *Manager) StopAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Go(s.Stop)
	}
	wg.Wait()
}
