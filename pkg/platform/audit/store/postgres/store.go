package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	id "checkin/pkg/domain"
	audit "checkin/pkg/platform/audit"
)

// Schema creates the audit_events table. Applied by EnsureSchema.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_events (
	id          UUID PRIMARY KEY,
	category    TEXT NOT NULL,
	action      TEXT NOT NULL,
	subject     TEXT NOT NULL,
	entity_id   TEXT NOT NULL DEFAULT '',
	serial      TEXT NOT NULL DEFAULT '',
	device_id   TEXT NOT NULL DEFAULT '',
	session_id  TEXT NOT NULL DEFAULT '',
	reason      TEXT NOT NULL DEFAULT '',
	request_id  TEXT NOT NULL DEFAULT '',
	actor_id    TEXT NOT NULL DEFAULT '',
	severity    TEXT NOT NULL DEFAULT '',
	occurred_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS audit_events_subject_idx ON audit_events (subject, occurred_at);
`

// Store implements audit.Store and audit.Reader on PostgreSQL.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure audit schema: %w", err)
	}
	return nil
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	query := `
		INSERT INTO audit_events (
			id, category, action, subject, entity_id, serial, device_id,
			session_id, reason, request_id, actor_id, severity, occurred_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.New(),
		string(event.Category),
		event.Action,
		event.Subject,
		string(event.EntityID),
		string(event.Serial),
		string(event.DeviceID),
		event.SessionID,
		event.Reason,
		event.RequestID,
		event.ActorID,
		string(event.Severity),
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *Store) ListBySubject(ctx context.Context, subject string) ([]audit.Event, error) {
	query := selectColumns + ` WHERE subject = $1 ORDER BY occurred_at ASC`
	rows, err := s.db.QueryContext(ctx, query, subject)
	if err != nil {
		return nil, fmt.Errorf("list audit events by subject: %w", err)
	}
	return scanEvents(rows)
}

// ListRecent returns the last limit events, oldest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	query := `SELECT * FROM (` + selectColumns + ` ORDER BY occurred_at DESC LIMIT $1) recent ORDER BY occurred_at ASC`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent audit events: %w", err)
	}
	return scanEvents(rows)
}

const selectColumns = `
	SELECT category, action, subject, entity_id, serial, device_id,
		session_id, reason, request_id, actor_id, severity, occurred_at
	FROM audit_events`

func scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			e                          audit.Event
			category, severity         string
			entityID, serial, deviceID string
		)
		if err := rows.Scan(&category, &e.Action, &e.Subject, &entityID, &serial, &deviceID,
			&e.SessionID, &e.Reason, &e.RequestID, &e.ActorID, &severity, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Category = audit.EventCategory(category)
		e.Severity = audit.Severity(severity)
		e.EntityID = id.EntityID(entityID)
		e.Serial = id.TagSerial(serial)
		e.DeviceID = id.DeviceID(deviceID)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
