package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"checkin/internal/checkin/models"
	id "checkin/pkg/domain"
	"checkin/pkg/platform/sentinel"
)

// Schema creates the tag_bindings table. The two unique keys carry the
// one-serial-per-entity and one-entity-per-serial invariants.
const Schema = `
CREATE TABLE IF NOT EXISTS tag_bindings (
	serial    TEXT PRIMARY KEY,
	entity_id TEXT NOT NULL UNIQUE,
	bound_at  TIMESTAMPTZ NOT NULL
);
`

// PostgresStore persists tag bindings in PostgreSQL.
// Bind and Unbind run in a transaction holding advisory locks on the serial
// and then the entity, so concurrent binds of either side serialize.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure tag_bindings schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindBySerial(ctx context.Context, serial id.TagSerial) (*models.TagBinding, error) {
	query := `SELECT serial, entity_id, bound_at FROM tag_bindings WHERE serial = $1`
	b, err := scanBinding(s.db.QueryRowContext(ctx, query, string(serial)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("tag %s: %w", serial, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find binding by serial: %w", err)
	}
	return b, nil
}

func (s *PostgresStore) FindByEntity(ctx context.Context, entityID id.EntityID) (*models.TagBinding, error) {
	query := `SELECT serial, entity_id, bound_at FROM tag_bindings WHERE entity_id = $1`
	b, err := scanBinding(s.db.QueryRowContext(ctx, query, string(entityID)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("binding for %s: %w", entityID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find binding by entity: %w", err)
	}
	return b, nil
}

func (s *PostgresStore) Bind(ctx context.Context, binding models.TagBinding) (models.BindResult, error) {
	var result models.BindResult
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.BindResult{}, fmt.Errorf("begin bind: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := lockKeys(ctx, tx, "serial:"+string(binding.Serial), "entity:"+string(binding.EntityID)); err != nil {
		return models.BindResult{}, err
	}

	existing, err := scanBinding(tx.QueryRowContext(ctx,
		`SELECT serial, entity_id, bound_at FROM tag_bindings WHERE serial = $1`, string(binding.Serial)))
	switch {
	case err == nil:
		if existing.EntityID == binding.EntityID {
			return models.BindResult{Binding: *existing, AlreadyBound: true}, tx.Commit()
		}
		return models.BindResult{}, &models.BindConflictError{Serial: binding.Serial, ExistingEntityID: existing.EntityID}
	case !errors.Is(err, sql.ErrNoRows):
		return models.BindResult{}, fmt.Errorf("read binding: %w", err)
	}

	var released sql.NullString
	err = tx.QueryRowContext(ctx,
		`DELETE FROM tag_bindings WHERE entity_id = $1 RETURNING serial`, string(binding.EntityID)).Scan(&released)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return models.BindResult{}, fmt.Errorf("release previous binding: %w", err)
	}
	if released.Valid {
		prev := id.TagSerial(released.String)
		result.ReleasedSerial = &prev
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO tag_bindings (serial, entity_id, bound_at) VALUES ($1, $2, $3)`,
		string(binding.Serial), string(binding.EntityID), binding.BoundAt,
	); err != nil {
		return models.BindResult{}, fmt.Errorf("insert binding: %w", mapPQError(err))
	}
	if err := tx.Commit(); err != nil {
		return models.BindResult{}, fmt.Errorf("commit bind: %w", err)
	}
	result.Binding = binding
	return result, nil
}

func (s *PostgresStore) Unbind(ctx context.Context, serial id.TagSerial) (*models.TagBinding, error) {
	b, err := scanBinding(s.db.QueryRowContext(ctx,
		`DELETE FROM tag_bindings WHERE serial = $1 RETURNING serial, entity_id, bound_at`, string(serial)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("unbind: %w", err)
	}
	return b, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]models.TagBinding, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT serial, entity_id, bound_at FROM tag_bindings ORDER BY serial`)
	if err != nil {
		return nil, fmt.Errorf("list bindings: %w", err)
	}
	defer rows.Close()

	var out []models.TagBinding
	for rows.Next() {
		b, err := scanBinding(rows)
		if err != nil {
			return nil, fmt.Errorf("scan binding: %w", err)
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bindings: %w", err)
	}
	return out, nil
}

// Import inserts bindings with one array-parameter statement. Rows already
// present with the same pair are accepted; any other overlap rejects the batch.
func (s *PostgresStore) Import(ctx context.Context, bindings []models.TagBinding) error {
	if len(bindings) == 0 {
		return nil
	}
	serials := make([]string, len(bindings))
	entities := make([]string, len(bindings))
	boundAt := make([]string, len(bindings))
	for i, b := range bindings {
		serials[i] = string(b.Serial)
		entities[i] = string(b.EntityID)
		boundAt[i] = b.BoundAt.UTC().Format(time.RFC3339Nano)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `LOCK TABLE tag_bindings IN SHARE ROW EXCLUSIVE MODE`); err != nil {
		return fmt.Errorf("lock tag_bindings: %w", err)
	}

	var conflicts int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM tag_bindings t
		JOIN unnest($1::text[], $2::text[]) AS n(serial, entity_id)
		  ON t.serial = n.serial OR t.entity_id = n.entity_id
		WHERE t.serial <> n.serial OR t.entity_id <> n.entity_id
	`, pq.Array(serials), pq.Array(entities)).Scan(&conflicts)
	if err != nil {
		return fmt.Errorf("check import conflicts: %w", err)
	}
	if conflicts > 0 {
		return fmt.Errorf("%d bindings overlap existing tags: %w", conflicts, sentinel.ErrConflict)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tag_bindings (serial, entity_id, bound_at)
		SELECT * FROM unnest($1::text[], $2::text[], $3::timestamptz[])
		ON CONFLICT (serial) DO NOTHING
	`, pq.Array(serials), pq.Array(entities), pq.Array(boundAt))
	if err != nil {
		return fmt.Errorf("import bindings: %w", mapPQError(err))
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}
	return nil
}

// lockKeys takes transaction-scoped advisory locks in argument order.
func lockKeys(ctx context.Context, tx *sql.Tx, keys ...string) error {
	for _, k := range keys {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, k); err != nil {
			return fmt.Errorf("advisory lock %s: %w", k, err)
		}
	}
	return nil
}

// mapPQError turns unique violations into sentinel.ErrConflict.
func mapPQError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("%s: %w", pqErr.Message, sentinel.ErrConflict)
	}
	return err
}

type bindingRow interface {
	Scan(dest ...any) error
}

func scanBinding(row bindingRow) (*models.TagBinding, error) {
	var serial, entityID string
	var b models.TagBinding
	if err := row.Scan(&serial, &entityID, &b.BoundAt); err != nil {
		return nil, err
	}
	b.Serial = id.TagSerial(serial)
	b.EntityID = id.EntityID(entityID)
	return &b, nil
}
