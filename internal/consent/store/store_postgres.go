package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"consentwindow/internal/consent/models"
	"consentwindow/pkg/platform/sentinel"
	txcontext "consentwindow/pkg/platform/tx"
)

//go:embed schema.sql
var schemaSQL string

// uniqueViolation is the PostgreSQL SQLSTATE for unique constraint violations.
const uniqueViolation = "23505"

// PostgresStore persists consent windows in PostgreSQL, one row per window.
// Methods join the transaction carried in ctx (see PostgresTx) when one is open.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the consent tables when they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply consent schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) History(ctx context.Context, key models.Key) ([]models.Window, error) {
	query := `
		SELECT starts_at, expires_at
		FROM consent_windows
		WHERE owner_id = $1 AND fingerprint = $2
		ORDER BY idx
	`
	rows, err := txcontext.ExecutorFrom(ctx, s.db).QueryContext(ctx, query, uuid.UUID(key.Owner), key.Fingerprint.Bytes())
	if err != nil {
		return nil, fmt.Errorf("query consent windows: %w", err)
	}
	defer rows.Close()

	var history []models.Window
	for rows.Next() {
		var w models.Window
		if err := rows.Scan(&w.StartsAt, &w.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan consent window: %w", err)
		}
		w.StartsAt = w.StartsAt.UTC()
		w.ExpiresAt = w.ExpiresAt.UTC()
		history = append(history, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate consent windows: %w", err)
	}
	return history, nil
}

func (s *PostgresStore) Append(ctx context.Context, key models.Key, window models.Window) error {
	query := `
		INSERT INTO consent_windows (owner_id, fingerprint, idx, starts_at, expires_at)
		SELECT $1::uuid, $2::bytea, COALESCE(MAX(idx) + 1, 0), $3::timestamptz, $4::timestamptz
		FROM consent_windows
		WHERE owner_id = $1 AND fingerprint = $2
	`
	_, err := txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(key.Owner),
		key.Fingerprint.Bytes(),
		window.StartsAt.UTC(),
		window.ExpiresAt.UTC(),
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("append consent window: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("append consent window: %w", err)
	}
	return nil
}

func (s *PostgresStore) ReplaceLast(ctx context.Context, key models.Key, window models.Window) error {
	query := `
		UPDATE consent_windows
		SET starts_at = $3, expires_at = $4
		WHERE owner_id = $1 AND fingerprint = $2
		  AND idx = (SELECT MAX(idx) FROM consent_windows WHERE owner_id = $1 AND fingerprint = $2)
	`
	res, err := txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(key.Owner),
		key.Fingerprint.Bytes(),
		window.StartsAt.UTC(),
		window.ExpiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("replace last consent window: %w", err)
	}
	return requireOneRow(res)
}

func (s *PostgresStore) RemoveLast(ctx context.Context, key models.Key) error {
	query := `
		DELETE FROM consent_windows
		WHERE owner_id = $1 AND fingerprint = $2
		  AND idx = (SELECT MAX(idx) FROM consent_windows WHERE owner_id = $1 AND fingerprint = $2)
	`
	res, err := txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, query, uuid.UUID(key.Owner), key.Fingerprint.Bytes())
	if err != nil {
		return fmt.Errorf("remove last consent window: %w", err)
	}
	return requireOneRow(res)
}

// Health pings the database.
func (s *PostgresStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNoEntry
	}
	return nil
}
