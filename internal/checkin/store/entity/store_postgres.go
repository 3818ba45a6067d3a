package entity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"checkin/internal/checkin/models"
	id "checkin/pkg/domain"
	"checkin/pkg/platform/sentinel"
)

// PostgresStore persists entities through a pgx pool. The pool is owned by
// the caller and never closed here.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema holding the entities table (default "public").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("entity store: invalid schema identifier %q", schema)
		}
		s.schema = schema
		return nil
	}
}

func NewPostgres(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{pool: pool, schema: "public"}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, errors.New("entity store: nil pool")
	}
	return st, nil
}

func (s *PostgresStore) table() string {
	return pgx.Identifier{s.schema, "entities"}.Sanitize()
}

// EnsureSchema creates the entities table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	schema := pgx.Identifier{s.schema}.Sanitize()
	if _, err := s.pool.Exec(ctx, `CREATE SCHEMA IF NOT EXISTS `+schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+s.table()+` (
			id                   TEXT PRIMARY KEY,
			kind                 TEXT NOT NULL CHECK (kind IN ('guest', 'plus_one')),
			display_name         TEXT NOT NULL DEFAULT '',
			owner_id             TEXT,
			table_number         TEXT NOT NULL DEFAULT '',
			dietary_restrictions TEXT NOT NULL DEFAULT '',
			plus_one_allowed     BOOLEAN NOT NULL DEFAULT FALSE,
			rsvp_source          TEXT NOT NULL DEFAULT 'onsite',
			checked_in           BOOLEAN NOT NULL DEFAULT FALSE,
			checked_in_at        TIMESTAMPTZ,
			souvenir_received    BOOLEAN NOT NULL DEFAULT FALSE,
			bound_tag_serial     TEXT,
			CHECK (checked_in = (checked_in_at IS NOT NULL))
		)`)
	if err != nil {
		return fmt.Errorf("create entities table: %w", err)
	}
	return nil
}

const entityColumns = `id, kind, display_name, owner_id, table_number, dietary_restrictions,
	plus_one_allowed, rsvp_source, checked_in, checked_in_at, souvenir_received, bound_tag_serial`

func (s *PostgresStore) Get(ctx context.Context, entityID id.EntityID) (*models.Entity, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+entityColumns+` FROM `+s.table()+` WHERE id = $1`, string(entityID))
	e, err := scanEntity(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("entity %s: %w", entityID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get entity: %w", err)
	}
	return e, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.Entity, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+entityColumns+` FROM `+s.table()+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()

	var out []*models.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entities: %w", err)
	}
	return out, nil
}

// CheckIn relies on the row lock taken by UPDATE: a concurrent second caller
// re-evaluates NOT checked_in after the first commits and falls through to
// the read of the stored time.
func (s *PostgresStore) CheckIn(ctx context.Context, entityID id.EntityID, at time.Time) (models.CheckInResult, error) {
	result := models.CheckInResult{EntityID: entityID}

	var stored time.Time
	err := s.pool.QueryRow(ctx,
		`UPDATE `+s.table()+` SET checked_in = TRUE, checked_in_at = $2
		  WHERE id = $1 AND NOT checked_in
		  RETURNING checked_in_at`,
		string(entityID), at.UTC(),
	).Scan(&stored)
	if err == nil {
		result.CheckedInAt = stored
		return result, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return models.CheckInResult{}, fmt.Errorf("check in entity: %w", err)
	}

	var existing *time.Time
	err = s.pool.QueryRow(ctx, `SELECT checked_in_at FROM `+s.table()+` WHERE id = $1`, string(entityID)).Scan(&existing)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.CheckInResult{}, fmt.Errorf("entity %s: %w", entityID, sentinel.ErrNotFound)
	}
	if err != nil {
		return models.CheckInResult{}, fmt.Errorf("read check-in time: %w", err)
	}
	if existing == nil {
		return models.CheckInResult{}, fmt.Errorf("entity %s checked in without a time: %w", entityID, sentinel.ErrInvalidState)
	}
	result.WasAlreadyCheckedIn = true
	result.CheckedInAt = *existing
	return result, nil
}

func (s *PostgresStore) GiveSouvenir(ctx context.Context, entityID id.EntityID) (models.SouvenirResult, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE `+s.table()+` SET souvenir_received = TRUE WHERE id = $1 AND NOT souvenir_received`,
		string(entityID))
	if err != nil {
		return models.SouvenirResult{}, fmt.Errorf("give souvenir: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return models.SouvenirResult{EntityID: entityID}, nil
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM `+s.table()+` WHERE id = $1)`, string(entityID)).Scan(&exists); err != nil {
		return models.SouvenirResult{}, fmt.Errorf("check entity: %w", err)
	}
	if !exists {
		return models.SouvenirResult{}, fmt.Errorf("entity %s: %w", entityID, sentinel.ErrNotFound)
	}
	return models.SouvenirResult{EntityID: entityID, WasAlreadyGiven: true}, nil
}

func (s *PostgresStore) SetBoundTag(ctx context.Context, entityID id.EntityID, serial *id.TagSerial) error {
	var value *string
	if serial != nil {
		v := serial.String()
		value = &v
	}
	tag, err := s.pool.Exec(ctx, `UPDATE `+s.table()+` SET bound_tag_serial = $2 WHERE id = $1`, string(entityID), value)
	if err != nil {
		return fmt.Errorf("set bound tag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("entity %s: %w", entityID, sentinel.ErrNotFound)
	}
	return nil
}

// Import copies the batch in one transaction; a duplicate id aborts it.
func (s *PostgresStore) Import(ctx context.Context, entities []*models.Entity) error {
	if len(entities) == 0 {
		return nil
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadWrite})
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows := make([][]any, 0, len(entities))
	for _, e := range entities {
		rows = append(rows, []any{
			string(e.ID), string(e.Kind), e.DisplayName, entityIDPtr(e.OwnerID), e.TableNumber,
			e.DietaryRestrictions, e.PlusOneAllowed, string(e.RSVPSource), e.CheckedIn,
			e.CheckedInAt, e.SouvenirReceived, serialPtr(e.BoundTagSerial),
		})
	}
	columns := []string{
		"id", "kind", "display_name", "owner_id", "table_number", "dietary_restrictions",
		"plus_one_allowed", "rsvp_source", "checked_in", "checked_in_at", "souvenir_received", "bound_tag_serial",
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{s.schema, "entities"}, columns, pgx.CopyFromRows(rows)); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("import entities: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("import entities: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("import entities: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("commit import: %w", err)
	}
	return nil
}

func (s *PostgresStore) Stats(ctx context.Context) (models.Stats, error) {
	var st models.Stats
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE kind = 'guest'),
		       COUNT(*) FILTER (WHERE kind = 'plus_one'),
		       COUNT(*) FILTER (WHERE kind = 'guest' AND plus_one_allowed),
		       COUNT(*) FILTER (WHERE checked_in),
		       COUNT(*) FILTER (WHERE rsvp_source = 'online'),
		       COUNT(*) FILTER (WHERE souvenir_received)
		  FROM `+s.table()).Scan(
		&st.TotalEntities, &st.GuestCount, &st.PlusOneCount, &st.PlusOneAllowedCount,
		&st.CheckedInCount, &st.OnlineRSVPCount, &st.SouvenirGivenCount,
	)
	if err != nil {
		return models.Stats{}, fmt.Errorf("compute stats: %w", err)
	}
	st.SouvenirRemaining = st.TotalEntities - st.SouvenirGivenCount
	return st, nil
}

func scanEntity(row pgx.Row) (*models.Entity, error) {
	var (
		e               models.Entity
		entityID, kind  string
		rsvp            string
		ownerID, serial *string
		checkedInAt     *time.Time
	)
	if err := row.Scan(
		&entityID, &kind, &e.DisplayName, &ownerID, &e.TableNumber, &e.DietaryRestrictions,
		&e.PlusOneAllowed, &rsvp, &e.CheckedIn, &checkedInAt, &e.SouvenirReceived, &serial,
	); err != nil {
		return nil, err
	}
	e.ID = id.EntityID(entityID)
	e.Kind = models.EntityKind(kind)
	e.RSVPSource = models.RSVPSource(rsvp)
	if ownerID != nil {
		owner := id.EntityID(*ownerID)
		e.OwnerID = &owner
	}
	if checkedInAt != nil {
		t := checkedInAt.UTC()
		e.CheckedInAt = &t
	}
	if serial != nil {
		sv := id.TagSerial(*serial)
		e.BoundTagSerial = &sv
	}
	return &e, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func entityIDPtr(v *id.EntityID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func serialPtr(v *id.TagSerial) *string {
	if v == nil {
		return nil
	}
	s := v.String()
	return &s
}
