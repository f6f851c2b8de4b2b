package store

import (
	"context"
	"database/sql"
	"time"

	"consentwindow/internal/consent/models"
	dErrors "consentwindow/pkg/domain-errors"
	txcontext "consentwindow/pkg/platform/tx"
)

// PostgresTx runs consent transactions inside a database transaction. A transaction-scoped
// advisory lock on the key serializes writers of the same history across processes.
type PostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

// NewPostgresTx builds a runner; a zero timeout uses the default.
func NewPostgresTx(db *sql.DB, timeout time.Duration) *PostgresTx {
	return &PostgresTx{db: db, timeout: timeout}
}

func (t *PostgresTx) RunInTx(ctx context.Context, key models.Key, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, open := txcontext.From(ctx); open {
		return fn(ctx)
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultConsentTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key.String()); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to lock consent history")
	}

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	return nil
}
