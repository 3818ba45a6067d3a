package reader

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"checkin/internal/checkin/models"
)

// Driver is the platform NFC capability. Listen blocks, calling emit for every
// detected tag, until ctx is cancelled (return nil) or the device fails.
type Driver interface {
	Supported(ctx context.Context) (bool, error)
	Listen(ctx context.Context, emit func(models.RawTagEvent)) error
}

// Hardware adapts a Driver to the Reader contract.
type Hardware struct {
	driver Driver
	logger *slog.Logger

	mu     sync.Mutex
	active bool
	events chan models.ReaderEvent
	cancel context.CancelFunc
	done   chan struct{}
}

// HardwareOption configures a Hardware reader.
type HardwareOption func(*Hardware)

func WithHardwareLogger(logger *slog.Logger) HardwareOption {
	return func(h *Hardware) {
		h.logger = logger
	}
}

// NewHardware wraps driver. A nil driver behaves as an absent capability.
func NewHardware(driver Driver, opts ...HardwareOption) *Hardware {
	if driver == nil {
		driver = UnsupportedDriver{}
	}
	h := &Hardware{driver: driver}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Hardware) Mode() Mode { return ModeHardware }

// Activate checks the capability, then starts the driver in the background.
// The capability is queried on every activation attempt.
func (h *Hardware) Activate(ctx context.Context) (<-chan models.ReaderEvent, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.active {
		return h.events, nil
	}

	supported, err := h.driver.Supported(ctx)
	if err != nil {
		return nil, fmt.Errorf("check nfc capability: %w", err)
	}
	if !supported {
		return nil, ErrUnsupported
	}

	// The listener outlives the activating call; only Deactivate stops it.
	listenCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	h.active = true
	h.events = make(chan models.ReaderEvent, 1)
	h.cancel = cancel
	h.done = make(chan struct{})

	go h.listen(listenCtx, h.events, h.done)
	return h.events, nil
}

func (h *Hardware) listen(ctx context.Context, events chan<- models.ReaderEvent, done chan<- struct{}) {
	defer close(done)
	defer close(events)

	emit := func(tag models.RawTagEvent) {
		select {
		case events <- models.ReaderEvent{Tag: &tag}:
		case <-ctx.Done():
		}
	}

	err := h.driver.Listen(ctx, emit)
	if err == nil || ctx.Err() != nil {
		return
	}
	if h.logger != nil {
		h.logger.WarnContext(ctx, "nfc driver failed", "error", err)
	}
	select {
	case events <- models.ReaderEvent{Err: err}:
	case <-ctx.Done():
	}
}

// Deactivate stops the driver and waits for the listener to exit.
func (h *Hardware) Deactivate() {
	h.mu.Lock()
	if !h.active {
		h.mu.Unlock()
		return
	}
	h.active = false
	h.cancel()
	done := h.done
	h.mu.Unlock()

	<-done
}

func (h *Hardware) Active() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active
}

// UnsupportedDriver reports the capability as absent.
type UnsupportedDriver struct{}

func (UnsupportedDriver) Supported(context.Context) (bool, error) { return false, nil }

func (UnsupportedDriver) Listen(context.Context, func(models.RawTagEvent)) error {
	return ErrUnsupported
}
