package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sunnyio/attendanceManager/internal/apperror"
	"github.com/Sunnyio/attendanceManager/internal/retry"
)

func newTestPool(t *testing.T) *Pool {
	t.Helper()

	p, err := New(Options{DSN: filepath.Join(t.TempDir(), "attendance.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func noSleep(waits *[]time.Duration) retry.SleepFunc {
	return func(_ context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return nil
	}
}

func TestNew_RequiresDSN(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
}

func TestNew_Defaults(t *testing.T) {
	p := newTestPool(t)

	assert.Equal(t, DefaultMaxConns, p.MaxConns())
	assert.Equal(t, DefaultMaxConns, p.Available())
	assert.Equal(t, DialectSQLite, p.Dialect())
	assert.False(t, p.Created(), "pool must be created lazily")
}

func TestConnect_IsReentrant(t *testing.T) {
	p := newTestPool(t)

	first, err := p.Connect(context.Background())
	require.NoError(t, err)
	second, err := p.Connect(context.Background())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.True(t, p.Created())
	assert.GreaterOrEqual(t, p.Stats().OpenConnections, DefaultMinConns)
}

func TestConnect_ConcurrentFirstUseCreatesOnce(t *testing.T) {
	p := newTestPool(t)

	var mu sync.Mutex
	opens := 0
	open := p.open
	p.open = func(ctx context.Context) (*sql.DB, error) {
		mu.Lock()
		opens++
		mu.Unlock()
		return open(ctx)
	}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Connect(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, opens)
}

func TestConnect_RetriesCreation(t *testing.T) {
	var waits []time.Duration
	p, err := New(Options{
		DSN: filepath.Join(t.TempDir(), "attendance.db"),
		Retry: retry.Policy{
			Attempts: 3,
			MinDelay: 4 * time.Second,
			MaxDelay: 10 * time.Second,
			Sleep:    noSleep(&waits),
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	calls := 0
	open := p.open
	p.open = func(ctx context.Context) (*sql.DB, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("dial tcp: connection refused")
		}
		return open(ctx)
	}

	_, err = p.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{4 * time.Second, 8 * time.Second}, waits)
}

func TestConnect_ExhaustedBudgetIsPoolCreationError(t *testing.T) {
	var waits []time.Duration
	p, err := New(Options{
		DSN:   filepath.Join(t.TempDir(), "attendance.db"),
		Retry: retry.Policy{Attempts: 3, MinDelay: time.Second, MaxDelay: time.Second, Sleep: noSleep(&waits)},
	})
	require.NoError(t, err)

	calls := 0
	p.open = func(context.Context) (*sql.DB, error) {
		calls++
		return nil, errors.New("dial tcp: connection refused")
	}

	_, err = WithTx(context.Background(), p, func(context.Context, *Tx) (int, error) {
		t.Fatal("operation must not run without a pool")
		return 0, nil
	})

	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindPoolCreation))
	assert.Equal(t, 3, calls)
	assert.False(t, p.Created())
	assert.Equal(t, p.MaxConns(), p.Available())
}

func TestClose_RejectsFurtherUse(t *testing.T) {
	p := newTestPool(t)
	_, err := p.Connect(context.Background())
	require.NoError(t, err)

	require.NoError(t, p.Close())
	_, err = p.Connect(context.Background())
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestConnect_WaitersHonorTheirOwnDeadline(t *testing.T) {
	sleeping := make(chan struct{})
	resume := make(chan struct{})
	var once sync.Once

	p, err := New(Options{
		DSN: filepath.Join(t.TempDir(), "attendance.db"),
		Retry: retry.Policy{
			Attempts: 2,
			MinDelay: 4 * time.Second,
			MaxDelay: 10 * time.Second,
			Sleep: func(context.Context, time.Duration) error {
				once.Do(func() { close(sleeping) })
				<-resume
				return nil
			},
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	calls := 0
	open := p.open
	p.open = func(ctx context.Context) (*sql.DB, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("dial tcp: connection refused")
		}
		return open(ctx)
	}

	firstDone := make(chan error, 1)
	go func() {
		_, err := p.Connect(context.Background())
		firstDone <- err
	}()
	<-sleeping

	assert.False(t, p.Created())
	assert.Equal(t, sql.DBStats{}, p.Stats())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = WithTx(ctx, p, func(context.Context, *Tx) (int, error) {
		t.Fatal("operation must not run without a pool")
		return 0, nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, p.MaxConns(), p.Available())

	close(resume)
	require.NoError(t, <-firstDone)
	assert.True(t, p.Created())
	assert.Equal(t, 2, calls)
}
