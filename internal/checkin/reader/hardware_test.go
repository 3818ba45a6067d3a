package reader

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkin/internal/checkin/models"
	id "checkin/pkg/domain"
)

type fakeDriver struct {
	supported  bool
	supportErr error
	serials    []id.TagSerial
	failWith   error
	checks     atomic.Int32
	listens    atomic.Int32
	exited     atomic.Int32
}

func (d *fakeDriver) Supported(context.Context) (bool, error) {
	d.checks.Add(1)
	return d.supported, d.supportErr
}

func (d *fakeDriver) Listen(ctx context.Context, emit func(models.RawTagEvent)) error {
	d.listens.Add(1)
	defer d.exited.Add(1)
	for _, s := range d.serials {
		emit(models.RawTagEvent{Serial: s})
	}
	if d.failWith != nil {
		return d.failWith
	}
	<-ctx.Done()
	return nil
}

func TestHardware_UnsupportedCapability(t *testing.T) {
	driver := &fakeDriver{supported: false}
	r := NewHardware(driver)

	_, err := r.Activate(context.Background())
	require.ErrorIs(t, err, ErrUnsupported)
	assert.False(t, r.Active())

	_, err = r.Activate(context.Background())
	require.ErrorIs(t, err, ErrUnsupported)
	assert.Equal(t, int32(2), driver.checks.Load(), "capability is checked per activation attempt")
	assert.Equal(t, int32(0), driver.listens.Load())
}

func TestHardware_NilDriverIsUnsupported(t *testing.T) {
	_, err := NewHardware(nil).Activate(context.Background())
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestHardware_CapabilityCheckError(t *testing.T) {
	r := NewHardware(&fakeDriver{supportErr: errors.New("permission denied")})
	_, err := r.Activate(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnsupported)
}

func TestHardware_EmitsTagsAndStopsOnDeactivate(t *testing.T) {
	driver := &fakeDriver{supported: true, serials: []id.TagSerial{"04:A1:B2:C3:D4"}}
	r := NewHardware(driver)

	events, err := r.Activate(context.Background())
	require.NoError(t, err)

	again, err := r.Activate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, events, again)

	ev := <-events
	require.NotNil(t, ev.Tag)
	assert.Equal(t, id.TagSerial("04:A1:B2:C3:D4"), ev.Tag.Serial)

	r.Deactivate()
	assert.False(t, r.Active())
	assert.Equal(t, int32(1), driver.listens.Load())
	assert.Equal(t, int32(1), driver.exited.Load(), "listener has exited when Deactivate returns")

	r.Deactivate()
}

func TestHardware_DriverFailureSurfacesAsEvent(t *testing.T) {
	r := NewHardware(&fakeDriver{supported: true, failWith: errors.New("antenna fault")})
	defer r.Deactivate()

	events, err := r.Activate(context.Background())
	require.NoError(t, err)

	select {
	case ev := <-events:
		require.Error(t, ev.Err)
		assert.Contains(t, ev.Err.Error(), "antenna fault")
	case <-time.After(time.Second):
		t.Fatal("expected a reader error event")
	}
}

func TestHardware_ActivationSurvivesCallerContext(t *testing.T) {
	driver := &fakeDriver{supported: true}
	r := NewHardware(driver)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := r.Activate(ctx)
	require.NoError(t, err)
	cancel()

	time.Sleep(10 * time.Millisecond)
	assert.True(t, r.Active())
	assert.Equal(t, int32(0), driver.exited.Load())

	r.Deactivate()
	assert.Equal(t, int32(1), driver.exited.Load())
}

func TestLineDriver_ReadsSerialLines(t *testing.T) {
	pr, pw := io.Pipe()
	d := NewLineDriver("/dev/null")
	d.open = func(string) (io.ReadCloser, error) { return pr, nil }

	got := make(chan id.TagSerial, 4)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- d.Listen(ctx, func(ev models.RawTagEvent) { got <- ev.Serial })
	}()

	_, err := io.Copy(pw, strings.NewReader("04:A1:B2:C3:D4\n\n   \n04:E5:F6:G7:H8\n"))
	require.NoError(t, err)

	assert.Equal(t, id.TagSerial("04:A1:B2:C3:D4"), <-got)
	assert.Equal(t, id.TagSerial("04:E5:F6:G7:H8"), <-got)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("listen did not stop after cancellation")
	}
}

func TestLineDriver_UnexpectedEOF(t *testing.T) {
	d := NewLineDriver("/dev/null")
	d.open = func(string) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader("04:A1:B2:C3:D4\n")), nil
	}

	var count int
	err := d.Listen(context.Background(), func(models.RawTagEvent) { count++ })
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, 1, count)
}

func TestLineDriver_Supported(t *testing.T) {
	ok, err := NewLineDriver("").Supported(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = NewLineDriver("/definitely/not/a/device").Supported(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = NewLineDriver(t.TempDir()).Supported(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}
