package publisher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "checkin/pkg/platform/audit"
	"checkin/pkg/platform/audit/store/memory"
)

func TestPublisher_SyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	err := pub.Emit(context.Background(), audit.Event{
		Subject: "guest-001",
		Action:  string(audit.EventGuestCheckedIn),
	})
	require.NoError(t, err)

	events, err := pub.List(context.Background(), "guest-001")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.EventGuestCheckedIn), events[0].Action)
	assert.Equal(t, audit.CategoryAttendance, events[0].Category)
	assert.Equal(t, audit.SeverityInfo, events[0].Severity)
}

func TestPublisher_AsyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(10))
	defer pub.Close()

	err := pub.Emit(context.Background(), audit.Event{
		Subject: "04:A1:B2:C3:D4",
		Action:  string(audit.EventTagBound),
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		events, _ := pub.List(context.Background(), "04:A1:B2:C3:D4")
		return len(events) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(100))

	for range 10 {
		err := pub.Emit(context.Background(), audit.Event{
			Subject: "guest-002",
			Action:  string(audit.EventGuestCheckInRepeated),
		})
		require.NoError(t, err)
	}

	pub.Close()

	events, err := store.ListBySubject(context.Background(), "guest-002")
	require.NoError(t, err)
	assert.Len(t, events, 10, "all events should be drained on close")
}

func TestPublisher_BufferFull_DropsEvent(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(1))
	defer pub.Close()

	var wg sync.WaitGroup
	for range 10 {
		wg.Go(func() {
			err := pub.Emit(context.Background(), audit.Event{Action: string(audit.EventScanStarted)})
			if err != nil {
				assert.ErrorIs(t, err, ErrBufferFull)
			}
		})
	}
	wg.Wait()
}

func TestPublisher_EmitAfterClose(t *testing.T) {
	pub := NewPublisher(memory.NewInMemoryStore(), WithAsyncBuffer(1))
	pub.Close()
	pub.Close()

	err := pub.Emit(context.Background(), audit.Event{Action: string(audit.EventScanStarted)})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPublisher_SetsTimestamp(t *testing.T) {
	pub := NewPublisher(memory.NewInMemoryStore())

	before := time.Now()
	require.NoError(t, pub.Emit(context.Background(), audit.Event{Subject: "guest-003", Action: string(audit.EventSouvenirGiven)}))
	after := time.Now()

	events, err := pub.List(context.Background(), "guest-003")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.False(t, events[0].Timestamp.Before(before))
	assert.False(t, events[0].Timestamp.After(after))
}

func TestPublisher_PreservesExistingFields(t *testing.T) {
	pub := NewPublisher(memory.NewInMemoryStore())

	custom := time.Date(2026, 6, 14, 17, 30, 0, 0, time.UTC)
	require.NoError(t, pub.Emit(context.Background(), audit.Event{
		Subject:   "guest-001",
		Action:    string(audit.EventEntityNotFound),
		Timestamp: custom,
		Severity:  audit.SeverityWarning,
	}))

	events, err := pub.List(context.Background(), "guest-001")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, custom, events[0].Timestamp)
	assert.Equal(t, audit.SeverityWarning, events[0].Severity)
	assert.Equal(t, audit.CategoryIntegrity, events[0].Category)
}

func TestPublisher_CancelledContextInAsyncMode(t *testing.T) {
	pub := NewPublisher(memory.NewInMemoryStore(), WithAsyncBuffer(1))
	defer pub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := pub.Emit(ctx, audit.Event{Action: string(audit.EventScanStopped)})
	assert.ErrorIs(t, err, context.Canceled)
}
