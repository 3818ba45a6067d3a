package reader

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"checkin/internal/checkin/models"
	id "checkin/pkg/domain"
)

// LineDriver reads tag serials from a character device, one per line. This is
// how USB keyboard-wedge NFC readers and serial-attached readers present
// themselves (e.g. /dev/hidraw0 bridged through a line discipline, or
// /dev/ttyUSB0).
type LineDriver struct {
	path string
	open func(path string) (io.ReadCloser, error)
}

// NewLineDriver returns a driver for the device at path.
func NewLineDriver(path string) *LineDriver {
	return &LineDriver{
		path: path,
		open: func(p string) (io.ReadCloser, error) { return os.Open(p) },
	}
}

// Supported reports whether the device node exists.
func (d *LineDriver) Supported(_ context.Context) (bool, error) {
	if d.path == "" {
		return false, nil
	}
	_, err := os.Stat(d.path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat nfc device: %w", err)
	}
	return true, nil
}

// Listen emits one RawTagEvent per non-empty line until ctx is done.
func (d *LineDriver) Listen(ctx context.Context, emit func(models.RawTagEvent)) error {
	rc, err := d.open(d.path)
	if err != nil {
		return fmt.Errorf("open nfc device: %w", err)
	}

	var closeOnce sync.Once
	closeDevice := func() { closeOnce.Do(func() { _ = rc.Close() }) }
	defer closeDevice()

	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		select {
		case <-ctx.Done():
			// Unblocks the pending read.
			closeDevice()
		case <-stopped:
		}
	}()

	scanner := bufio.NewScanner(rc)
	for scanner.Scan() {
		serial, err := id.ParseTagSerial(scanner.Text())
		if err != nil {
			continue
		}
		emit(models.RawTagEvent{Serial: serial})
	}
	if ctx.Err() != nil {
		return nil
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read nfc device: %w", err)
	}
	return io.ErrUnexpectedEOF
}
