package reader

import (
	"context"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"checkin/internal/checkin/models"
	id "checkin/pkg/domain"
)

// DefaultSimulatedDelay is how long the simulated reader waits before
// producing its tag.
const DefaultSimulatedDelay = 2 * time.Second

const (
	simulatedSerialPrefix = "SIM:"
	simulatedSerialLength = 9
	base36Alphabet        = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// Simulated synthesizes exactly one tag per activation after a fixed delay.
type Simulated struct {
	delay   time.Duration
	serials func() id.TagSerial
	payload []byte

	mu          sync.Mutex
	active      bool
	events      chan models.ReaderEvent
	stop        chan struct{}
	done        chan struct{}
	activations int
}

// SimulatedOption configures a Simulated reader.
type SimulatedOption func(*Simulated)

// WithDelay overrides the emission delay. Non-positive values are ignored.
func WithDelay(d time.Duration) SimulatedOption {
	return func(s *Simulated) {
		if d > 0 {
			s.delay = d
		}
	}
}

// WithSerialSource replaces the pseudo-random serial generator.
func WithSerialSource(fn func() id.TagSerial) SimulatedOption {
	return func(s *Simulated) {
		if fn != nil {
			s.serials = fn
		}
	}
}

// NewSimulated constructs a simulated reader.
func NewSimulated(opts ...SimulatedOption) *Simulated {
	s := &Simulated{
		delay:   DefaultSimulatedDelay,
		serials: RandomSerial,
		payload: EncodePayload(TagPayload{Type: PayloadTypeMainGuest}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Simulated) Mode() Mode { return ModeSimulated }

// Activate starts the emission timer, or returns the running stream.
func (s *Simulated) Activate(_ context.Context) (<-chan models.ReaderEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		return s.events, nil
	}

	s.active = true
	s.activations++
	s.events = make(chan models.ReaderEvent, 1)
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go s.emit(s.events, s.stop, s.done)
	return s.events, nil
}

func (s *Simulated) emit(events chan<- models.ReaderEvent, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer close(events)

	timer := time.NewTimer(s.delay)
	defer timer.Stop()

	select {
	case <-stop:
	case <-timer.C:
		// Buffered for exactly this one event, so the send never blocks.
		events <- models.ReaderEvent{Tag: &models.RawTagEvent{Serial: s.serials(), Payload: s.payload}}
	}
}

// Deactivate cancels a pending emission.
func (s *Simulated) Deactivate() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	close(s.stop)
	done := s.done
	s.mu.Unlock()

	<-done
}

func (s *Simulated) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Activations counts emission sources started since construction.
func (s *Simulated) Activations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activations
}

// RandomSerial returns "SIM:" followed by nine random base-36 characters.
func RandomSerial() id.TagSerial {
	var b strings.Builder
	b.Grow(len(simulatedSerialPrefix) + simulatedSerialLength)
	b.WriteString(simulatedSerialPrefix)
	for range simulatedSerialLength {
		b.WriteByte(base36Alphabet[rand.IntN(len(base36Alphabet))]) //nolint:gosec // demo serials need no crypto rand
	}
	return id.TagSerial(b.String())
}
