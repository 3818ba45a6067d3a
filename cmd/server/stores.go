package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/twmb/franz-go/pkg/kgo"

	"checkin/internal/checkin/ports"
	entitystore "checkin/internal/checkin/store/entity"
	registrystore "checkin/internal/checkin/store/registry"
	"checkin/internal/platform/config"
	"checkin/internal/platform/postgres"
	platformredis "checkin/internal/platform/redis"
	httptransport "checkin/internal/transport/http"
	"checkin/pkg/platform/audit"
	auditkafka "checkin/pkg/platform/audit/store/kafka"
	auditmemory "checkin/pkg/platform/audit/store/memory"
	auditpostgres "checkin/pkg/platform/audit/store/postgres"
	"checkin/pkg/platform/circuit"
)

const (
	auditTopicPartitions  = 3
	auditTopicReplication = 1
)

type stores struct {
	registry ports.RegistryStore
	entities ports.EntityStore
	audit    audit.Store
}

// infra owns the connections opened for the selected backends. Each is opened
// on first use, so an all-memory configuration needs no external services.
type infra struct {
	log *slog.Logger

	pool  *pgxpool.Pool
	db    *sql.DB
	redis *platformredis.Client
	kafka *kgo.Client
}

func newInfra(log *slog.Logger) *infra {
	return &infra{log: log}
}

func (i *infra) buildStores(ctx context.Context, cfg config.Config) (*stores, error) {
	var (
		s   stores
		err error
	)
	if s.entities, err = i.entityStore(ctx, cfg); err != nil {
		return nil, err
	}
	if s.registry, err = i.registryStore(ctx, cfg); err != nil {
		return nil, err
	}
	if s.audit, err = i.auditStore(ctx, cfg); err != nil {
		return nil, err
	}
	return &s, nil
}

func (i *infra) entityStore(ctx context.Context, cfg config.Config) (ports.EntityStore, error) {
	switch cfg.Stores.Entities {
	case config.BackendMemory:
		return entitystore.NewInMemory(), nil
	case config.BackendPostgres:
		pool, err := i.pgxPool(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		store, err := entitystore.NewPostgres(pool, entitystore.WithSchema(cfg.Postgres.Schema))
		if err != nil {
			return nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("CHECKIN_ENTITY_STORE: unsupported backend %q", cfg.Stores.Entities)
	}
}

func (i *infra) registryStore(ctx context.Context, cfg config.Config) (ports.RegistryStore, error) {
	switch cfg.Stores.Registry {
	case config.BackendMemory:
		return registrystore.NewInMemory(), nil
	case config.BackendPostgres:
		db, err := i.sqlDB(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		store := registrystore.NewPostgres(db)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return store, nil
	case config.BackendRedis:
		client, err := i.redisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return registrystore.NewRedis(client.Client, registrystore.WithKeyPrefix(cfg.Redis.KeyPrefix)), nil
	default:
		return nil, fmt.Errorf("CHECKIN_REGISTRY_STORE: unsupported backend %q", cfg.Stores.Registry)
	}
}

func (i *infra) auditStore(ctx context.Context, cfg config.Config) (audit.Store, error) {
	switch cfg.Stores.Audit {
	case config.BackendMemory:
		return auditmemory.NewInMemoryStore(), nil
	case config.BackendPostgres:
		db, err := i.sqlDB(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		store := auditpostgres.New(db)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return store, nil
	case config.BackendKafka:
		if len(cfg.Kafka.Brokers) == 0 {
			return nil, fmt.Errorf("CHECKIN_KAFKA_BROKERS is required for the kafka audit store")
		}
		cl, err := auditkafka.NewClient(cfg.Kafka.Brokers, cfg.Kafka.ClientID)
		if err != nil {
			return nil, err
		}
		i.kafka = cl
		if err := auditkafka.EnsureTopic(ctx, cl, cfg.Kafka.Topic, auditTopicPartitions, auditTopicReplication); err != nil {
			// The broker may forbid topic creation; producing still works
			// when the topic was provisioned out of band.
			i.log.Warn("audit topic not ensured", "topic", cfg.Kafka.Topic, "error", err)
		}
		return auditkafka.New(cl, cfg.Kafka.Topic,
			auditkafka.WithLogger(i.log),
			auditkafka.WithFallback(auditmemory.NewInMemoryStore(), circuit.New("audit-kafka")),
		)
	default:
		return nil, fmt.Errorf("CHECKIN_AUDIT_STORE: unsupported backend %q", cfg.Stores.Audit)
	}
}

func (i *infra) pgxPool(ctx context.Context, cfg config.Postgres) (*pgxpool.Pool, error) {
	if i.pool != nil {
		return i.pool, nil
	}
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	i.pool = pool
	return pool, nil
}

func (i *infra) sqlDB(ctx context.Context, cfg config.Postgres) (*sql.DB, error) {
	if i.db != nil {
		return i.db, nil
	}
	db, err := postgres.NewDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	i.db = db
	return db, nil
}

func (i *infra) redisClient(ctx context.Context, cfg config.RedisConfig) (*platformredis.Client, error) {
	if i.redis != nil {
		return i.redis, nil
	}
	client, err := platformredis.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, fmt.Errorf("CHECKIN_REDIS_URL is required for the redis registry store")
	}
	i.redis = client
	return client, nil
}

func (i *infra) healthChecks() map[string]httptransport.HealthCheck {
	checks := make(map[string]httptransport.HealthCheck)
	if i.pool != nil {
		checks["postgres_pgx"] = i.pool.Ping
	}
	if i.db != nil {
		checks["postgres"] = i.db.PingContext
	}
	if i.redis != nil {
		checks["redis"] = i.redis.Health
	}
	if i.kafka != nil {
		checks["kafka"] = i.kafka.Ping
	}
	return checks
}

func (i *infra) close() {
	if i.kafka != nil {
		i.kafka.Close()
	}
	if i.redis != nil {
		if err := i.redis.Close(); err != nil {
			i.log.Warn("redis close failed", "error", err)
		}
	}
	if i.db != nil {
		if err := i.db.Close(); err != nil {
			i.log.Warn("postgres close failed", "error", err)
		}
	}
	if i.pool != nil {
		i.pool.Close()
	}
}
