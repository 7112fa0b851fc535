package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rs/zerolog/log"
)

// WithTx borrows a connection from p, runs fn inside a transaction on it and
// commits when fn succeeds. Any error or panic from fn rolls the transaction
// back. The connection is handed back to the pool exactly once on every exit
// path, including cancellation of ctx.
func WithTx[T any](ctx context.Context, p *Pool, fn func(ctx context.Context, tx *Tx) (T, error)) (T, error) {
	var zero T

	db, release, err := p.acquire(ctx)
	if err != nil {
		return zero, err
	}
	defer release()

	conn, err := db.Conn(ctx)
	if err != nil {
		return zero, Classify("failed to acquire database connection", err)
	}
	defer func() {
		if err := conn.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
			log.Warn().Err(err).Msg("Failed to return connection to pool")
		}
	}()

	sqlTx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return zero, Classify("failed to begin transaction", err)
	}

	done := false
	defer func() {
		if done {
			return
		}
		// database/sql rolls back on its own once ctx is cancelled, which
		// surfaces here as ErrTxDone.
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.Error().Err(rbErr).Msg("Failed to rollback transaction")
		}
	}()

	result, err := fn(ctx, &Tx{tx: sqlTx, dialect: p.dialect})
	if err != nil {
		return zero, err
	}

	done = true
	if err := sqlTx.Commit(); err != nil {
		return zero, Classify("failed to commit transaction", err)
	}

	return result, nil
}
