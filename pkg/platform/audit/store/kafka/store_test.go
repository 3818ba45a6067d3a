package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "checkin/pkg/platform/audit"
	"checkin/pkg/platform/audit/store/memory"
	"checkin/pkg/platform/circuit"
)

type fakeProducer struct {
	mu      sync.Mutex
	records []*kgo.Record
	failing bool
}

func (p *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	p.mu.Lock()
	defer p.mu.Unlock()

	var results kgo.ProduceResults
	for _, r := range rs {
		if p.failing {
			results = append(results, kgo.ProduceResult{Record: r, Err: errors.New("broker unreachable")})
			continue
		}
		p.records = append(p.records, r)
		results = append(results, kgo.ProduceResult{Record: r})
	}
	return results
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, "checkin.audit")
	assert.Error(t, err)

	_, err = New(&fakeProducer{}, "")
	assert.Error(t, err)
}

func TestAppend_ProducesKeyedRecord(t *testing.T) {
	producer := &fakeProducer{}
	store, err := New(producer, "checkin.audit")
	require.NoError(t, err)

	event := audit.Event{
		Category: audit.CategoryAttendance,
		Action:   string(audit.EventGuestCheckedIn),
		Subject:  "guest-002",
		EntityID: "guest-002",
		Serial:   "04:A1:B2:C3:D4",
	}
	require.NoError(t, store.Append(context.Background(), event))

	require.Len(t, producer.records, 1)
	rec := producer.records[0]
	assert.Equal(t, "checkin.audit", rec.Topic)
	assert.Equal(t, []byte("guest-002"), rec.Key)

	var decoded audit.Event
	require.NoError(t, json.Unmarshal(rec.Value, &decoded))
	assert.Equal(t, event.Serial, decoded.Serial)
	assert.Equal(t, event.Action, decoded.Action)
}

func TestAppend_ReturnsErrorWithoutBreaker(t *testing.T) {
	store, err := New(&fakeProducer{failing: true}, "checkin.audit")
	require.NoError(t, err)

	err = store.Append(context.Background(), audit.Event{Action: string(audit.EventTagBound)})
	assert.ErrorContains(t, err, "broker unreachable")
}

func TestAppend_DivertsToFallbackWhenOpen(t *testing.T) {
	producer := &fakeProducer{failing: true}
	fallback := memory.NewInMemoryStore()
	breaker := circuit.New("kafka-audit", circuit.WithFailureThreshold(2), circuit.WithSuccessThreshold(1))

	store, err := New(producer, "checkin.audit", WithFallback(fallback, breaker))
	require.NoError(t, err)
	ctx := context.Background()

	// Below threshold the error surfaces.
	err = store.Append(ctx, audit.Event{Subject: "a", Action: string(audit.EventTagBound)})
	require.Error(t, err)

	// Threshold reached: circuit opens and the event lands in the fallback.
	require.NoError(t, store.Append(ctx, audit.Event{Subject: "b", Action: string(audit.EventTagBound)}))
	assert.True(t, breaker.IsOpen())

	all, err := fallback.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "b", all[0].Subject)

	// Broker back: first success closes the circuit.
	producer.failing = false
	require.NoError(t, store.Append(ctx, audit.Event{Subject: "c", Action: string(audit.EventTagBound)}))
	assert.False(t, breaker.IsOpen())
	assert.Len(t, producer.records, 1)
}
