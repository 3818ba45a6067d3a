//go:build integration

package containers

import (
	"context"
	"database/sql"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"checkin/internal/platform/config"
	platformpostgres "checkin/internal/platform/postgres"
)

// PostgresContainer wraps a testcontainers Postgres instance with both
// connection flavours the stores use.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	DB        *sql.DB
	Pool      *pgxpool.Pool
}

// NewPostgresContainer starts Postgres and opens both connection flavours
// through internal/platform/postgres, as the server does.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("checkin"),
		tcpostgres.WithUsername("checkin"),
		tcpostgres.WithPassword("checkin"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err, "start postgres container")

	fail := func(err error, msg string) {
		if err != nil {
			_ = container.Terminate(ctx)
		}
		require.NoError(t, err, msg)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	fail(err, "postgres connection string")

	cfg := config.Postgres{URL: dsn, MaxConns: 4}
	db, err := platformpostgres.NewDB(ctx, cfg)
	fail(err, "open database/sql handle")

	pool, err := platformpostgres.NewPool(ctx, cfg)
	if err != nil {
		_ = db.Close()
	}
	fail(err, "open pgx pool")

	return &PostgresContainer{
		Container: container,
		DSN:       dsn,
		DB:        db,
		Pool:      pool,
	}
}

// Truncate empties the given tables. Use between tests to ensure isolation.
func (p *PostgresContainer) Truncate(ctx context.Context, tables ...string) error {
	for _, table := range tables {
		if _, err := p.DB.ExecContext(ctx, "TRUNCATE TABLE "+table); err != nil {
			return err
		}
	}
	return nil
}
