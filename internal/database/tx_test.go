package database

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupItems(t *testing.T, p *Pool) {
	t.Helper()
	_, err := p.Exec(context.Background(), "CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT NOT NULL UNIQUE)")
	require.NoError(t, err)
}

func countItems(t *testing.T, p *Pool) int {
	t.Helper()
	n, err := WithTx(context.Background(), p, func(ctx context.Context, tx *Tx) (int, error) {
		var n int
		err := tx.QueryRow(ctx, "SELECT COUNT(*) FROM items").Scan(&n)
		return n, err
	})
	require.NoError(t, err)
	return n
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	p := newTestPool(t)
	setupItems(t, p)

	_, err := WithTx(context.Background(), p, func(ctx context.Context, tx *Tx) (struct{}, error) {
		_, err := tx.Exec(ctx, "INSERT INTO items (name) VALUES (?)", "a")
		return struct{}{}, err
	})
	require.NoError(t, err)

	assert.Equal(t, 1, countItems(t, p))
	assert.Equal(t, p.MaxConns(), p.Available())
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	p := newTestPool(t)
	setupItems(t, p)
	boom := errors.New("boom")

	_, err := WithTx(context.Background(), p, func(ctx context.Context, tx *Tx) (struct{}, error) {
		if _, err := tx.Exec(ctx, "INSERT INTO items (name) VALUES (?)", "a"); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, boom
	})
	require.ErrorIs(t, err, boom)

	assert.Equal(t, 0, countItems(t, p))
	assert.Equal(t, p.MaxConns(), p.Available())
}

func TestWithTx_RollsBackAndReleasesOnPanic(t *testing.T) {
	p := newTestPool(t)
	setupItems(t, p)

	assert.Panics(t, func() {
		_, _ = WithTx(context.Background(), p, func(ctx context.Context, tx *Tx) (struct{}, error) {
			if _, err := tx.Exec(ctx, "INSERT INTO items (name) VALUES (?)", "a"); err != nil {
				return struct{}{}, err
			}
			panic("handler bug")
		})
	})

	assert.Equal(t, 0, countItems(t, p))
	assert.Equal(t, p.MaxConns(), p.Available())
}

func TestWithTx_ReleasesOnCancellation(t *testing.T) {
	p := newTestPool(t)
	setupItems(t, p)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := WithTx(ctx, p, func(ctx context.Context, tx *Tx) (struct{}, error) {
		if _, err := tx.Exec(ctx, "INSERT INTO items (name) VALUES (?)", "a"); err != nil {
			return struct{}{}, err
		}
		cancel()
		_, err := tx.Exec(ctx, "INSERT INTO items (name) VALUES (?)", "b")
		return struct{}{}, err
	})
	require.Error(t, err)

	assert.Equal(t, 0, countItems(t, p))
	assert.Equal(t, p.MaxConns(), p.Available())
}

func TestWithTx_ConstraintViolationIsConflict(t *testing.T) {
	p := newTestPool(t)
	setupItems(t, p)

	insert := func() error {
		_, err := WithTx(context.Background(), p, func(ctx context.Context, tx *Tx) (struct{}, error) {
			_, err := tx.Exec(ctx, "INSERT INTO items (name) VALUES (?)", "dup")
			return struct{}{}, Classify("insert item", err)
		})
		return err
	}

	require.NoError(t, insert())
	err := insert()
	require.Error(t, err)
	assert.True(t, IsConstraintViolation(err))
	assert.False(t, IsTransient(err))
	assert.Equal(t, p.MaxConns(), p.Available())
}

func TestWithTx_BoundsConcurrentBorrows(t *testing.T) {
	p := newTestPool(t)
	setupItems(t, p)

	hold := make(chan struct{})
	var started sync.WaitGroup
	var finished sync.WaitGroup
	for range p.MaxConns() {
		started.Add(1)
		finished.Add(1)
		go func() {
			defer finished.Done()
			_, err := WithTx(context.Background(), p, func(ctx context.Context, tx *Tx) (struct{}, error) {
				started.Done()
				<-hold
				return struct{}{}, nil
			})
			assert.NoError(t, err)
		}()
	}
	started.Wait()
	assert.Equal(t, 0, p.Available())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := WithTx(ctx, p, func(context.Context, *Tx) (struct{}, error) {
		t.Fatal("borrow beyond the bound must block")
		return struct{}{}, nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(hold)
	finished.Wait()
	assert.Equal(t, p.MaxConns(), p.Available())
}
