// Package kafka ships audit events to a Kafka topic so downstream consumers
// (dashboards, the planner's CRM sync) can follow attendance live.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "checkin/pkg/platform/audit"
	"checkin/pkg/platform/circuit"
)

// Producer is the subset of *kgo.Client the store uses.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Store implements audit.Store by producing one record per event, keyed by
// subject so a guest's events stay ordered within a partition.
type Store struct {
	producer Producer
	topic    string
	logger   *slog.Logger

	breaker  *circuit.Breaker
	fallback audit.Store
}

type Option func(*Store)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithFallback diverts events to store while the breaker is open.
func WithFallback(store audit.Store, breaker *circuit.Breaker) Option {
	return func(s *Store) {
		s.fallback = store
		s.breaker = breaker
	}
}

func New(producer Producer, topic string, opts ...Option) (*Store, error) {
	if producer == nil {
		return nil, errors.New("kafka producer is required")
	}
	if topic == "" {
		return nil, errors.New("kafka topic is required")
	}
	s := &Store{producer: producer, topic: topic}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewClient builds a franz-go client for the given seed brokers.
func NewClient(brokers []string, clientID string) (*kgo.Client, error) {
	cl, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ClientID(clientID),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return cl, nil
}

// EnsureTopic creates topic if it does not exist yet.
func EnsureTopic(ctx context.Context, cl *kgo.Client, topic string, partitions int32, replication int16) error {
	adm := kadm.NewClient(cl)
	resp, err := adm.CreateTopics(ctx, partitions, replication, nil, topic)
	if err != nil {
		return fmt.Errorf("create audit topic: %w", err)
	}
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create audit topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.Subject),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "category", Value: []byte(event.Category)},
			{Key: "action", Value: []byte(event.Action)},
		},
	}

	err = s.producer.ProduceSync(ctx, record).FirstErr()
	if s.breaker == nil {
		if err != nil {
			return fmt.Errorf("produce audit event: %w", err)
		}
		return nil
	}

	if err == nil {
		if _, change := s.breaker.RecordSuccess(); change.Closed && s.logger != nil {
			s.logger.InfoContext(ctx, "kafka audit sink recovered", "topic", s.topic)
		}
		return nil
	}

	useFallback, change := s.breaker.RecordFailure()
	if change.Opened && s.logger != nil {
		s.logger.WarnContext(ctx, "kafka audit sink unavailable, diverting to fallback",
			"topic", s.topic,
			"error", err,
		)
	}
	if useFallback && s.fallback != nil {
		return s.fallback.Append(ctx, event)
	}
	return fmt.Errorf("produce audit event: %w", err)
}
