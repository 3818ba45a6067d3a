// Package reader abstracts the NFC reading device behind one contract with two
// interchangeable implementations: a hardware reader wrapping a platform
// driver and a simulated reader for environments without one.
//
// The active mode is always chosen by the caller. Nothing in this package
// probes the platform and silently switches modes.
package reader

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"checkin/internal/checkin/models"
	dErrors "checkin/pkg/domain-errors"
)

// Mode selects a reader implementation.
type Mode string

const (
	ModeHardware  Mode = "hardware"
	ModeSimulated Mode = "simulated"
)

// ErrUnsupported is returned by Activate when the hardware capability is absent.
// Falling back to simulated mode is the caller's decision.
var ErrUnsupported = errors.New("nfc reader not supported on this device")

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeHardware, ModeSimulated:
		return m, nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "invalid reader mode: must be 'hardware' or 'simulated'")
}

func (m Mode) String() string { return string(m) }

// Reader is the TagReader contract.
//
// Activate returns immediately with a stream of reader events. Calling it
// while active returns the existing stream rather than starting a second
// source. Deactivate stops emission, waits until no further event can be
// produced, and is a no-op when the reader is inactive.
type Reader interface {
	Mode() Mode
	Activate(ctx context.Context) (<-chan models.ReaderEvent, error)
	Deactivate()
	Active() bool
}

// Set maps each configured mode to its reader.
type Set struct {
	readers map[Mode]Reader
}

// NewSet builds a Set. Later readers replace earlier ones of the same mode.
func NewSet(readers ...Reader) *Set {
	s := &Set{readers: make(map[Mode]Reader, len(readers))}
	for _, r := range readers {
		if r != nil {
			s.readers[r.Mode()] = r
		}
	}
	return s
}

// Get returns the reader for mode.
func (s *Set) Get(mode Mode) (Reader, error) {
	r, ok := s.readers[mode]
	if !ok {
		return nil, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("no reader configured for mode %q", mode))
	}
	return r, nil
}

// Modes lists the configured modes.
func (s *Set) Modes() []Mode {
	out := make([]Mode, 0, len(s.readers))
	for _, m := range []Mode{ModeHardware, ModeSimulated} {
		if _, ok := s.readers[m]; ok {
			out = append(out, m)
		}
	}
	return out
}
