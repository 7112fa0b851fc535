package database

import (
	"context"
	"database/sql"
)

// Tx is a transaction bound to a single borrowed connection. Queries use ?
// placeholders and are rebound for the pool's dialect.
type Tx struct {
	tx      *sql.Tx
	dialect Dialect
}

func (t *Tx) Dialect() Dialect {
	return t.dialect
}

func (t *Tx) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, t.dialect.Rebind(query), args...)
}

func (t *Tx) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, t.dialect.Rebind(query), args...)
}

func (t *Tx) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, t.dialect.Rebind(query), args...)
}

// Exec runs a single statement outside of a transaction on a borrowed connection.
// Use it for statements that cannot run inside a transaction, such as VACUUM.
func (p *Pool) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	db, release, err := p.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	result, err := db.ExecContext(ctx, p.dialect.Rebind(query), args...)
	if err != nil {
		return nil, Classify("failed to execute statement", err)
	}
	return result, nil
}
