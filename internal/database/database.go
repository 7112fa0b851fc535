package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
	_ "modernc.org/sqlite"

	"github.com/Sunnyio/attendanceManager/internal/apperror"
	"github.com/Sunnyio/attendanceManager/internal/retry"
)

const (
	DefaultMinConns = 1
	DefaultMaxConns = 10
)

// ErrPoolClosed is returned when a closed pool is used.
var ErrPoolClosed = errors.New("database pool is closed")

// Options configures a Pool.
type Options struct {
	DSN      string
	MinConns int
	MaxConns int
	// Retry governs pool creation. Every creation error is retried.
	Retry retry.Policy
}

// Pool owns shared access to the backing store. The underlying connection
// pool is created lazily on first use and kept for the Pool's lifetime.
// At most MaxConns borrows are in flight; further callers block.
type Pool struct {
	opts    Options
	dialect Dialect
	open    func(ctx context.Context) (*sql.DB, error)

	mu     sync.Mutex
	db     *sql.DB
	closed bool

	// create collapses concurrent first-use callers into one creation.
	create singleflight.Group

	slots chan struct{}
}

// New creates a Pool without connecting.
func New(opts Options) (*Pool, error) {
	if opts.DSN == "" {
		return nil, fmt.Errorf("database DSN is required")
	}
	if opts.MinConns <= 0 {
		opts.MinConns = DefaultMinConns
	}
	if opts.MaxConns <= 0 {
		opts.MaxConns = DefaultMaxConns
	}
	if opts.MinConns > opts.MaxConns {
		opts.MinConns = opts.MaxConns
	}

	p := &Pool{
		opts:    opts,
		dialect: DialectFor(opts.DSN),
		slots:   make(chan struct{}, opts.MaxConns),
	}
	p.open = p.openDB
	return p, nil
}

// Dialect returns the SQL dialect of the backing store.
func (p *Pool) Dialect() Dialect {
	return p.dialect
}

// MaxConns returns the borrow bound.
func (p *Pool) MaxConns() int {
	return cap(p.slots)
}

// Available returns the number of connections that can be borrowed without blocking.
func (p *Pool) Available() int {
	return cap(p.slots) - len(p.slots)
}

// Created reports whether the underlying connection pool exists.
func (p *Pool) Created() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.db != nil
}

// Stats returns the underlying database/sql statistics.
func (p *Pool) Stats() sql.DBStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db == nil {
		return sql.DBStats{}
	}
	return p.db.Stats()
}

// Connect creates the underlying connection pool if it does not exist yet.
// Creation is retried per Options.Retry; once created, Connect is a no-op.
// Callers waiting on an in-progress creation return as soon as their own
// ctx is done; the creation itself keeps going for the remaining waiters.
func (p *Pool) Connect(ctx context.Context) (*sql.DB, error) {
	if db, err := p.current(); db != nil || err != nil {
		return db, err
	}

	ch := p.create.DoChan("create", func() (any, error) {
		return p.createDB(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*sql.DB), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Pool) current() (*sql.DB, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrPoolClosed
	}
	return p.db, nil
}

func (p *Pool) createDB(ctx context.Context) (*sql.DB, error) {
	if db, err := p.current(); db != nil || err != nil {
		return db, err
	}

	db, err := retry.Do(ctx, p.opts.Retry, "create connection pool", p.open)
	if err != nil {
		log.Error().Err(err).Str("dialect", p.dialect.String()).Msg("Failed to create database connection pool")
		return nil, apperror.Wrap(apperror.KindPoolCreation, "failed to create database connection pool", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		_ = db.Close()
		return nil, ErrPoolClosed
	}
	p.db = db

	log.Info().
		Str("dialect", p.dialect.String()).
		Int("min_conns", p.opts.MinConns).
		Int("max_conns", p.opts.MaxConns).
		Msg("Database connection pool created")
	return db, nil
}

func (p *Pool) openDB(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open(p.dialect.DriverName(), p.dialect.DataSource(p.opts.DSN))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(p.opts.MaxConns)
	db.SetMaxIdleConns(p.opts.MaxConns)

	// Ping leaves one established connection idle in the pool.
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// acquire borrows a slot, creating the pool first if needed.
// The returned release func is safe to call more than once.
func (p *Pool) acquire(ctx context.Context) (*sql.DB, func(), error) {
	db, err := p.Connect(ctx)
	if err != nil {
		return nil, nil, err
	}

	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}

	var once sync.Once
	release := func() {
		once.Do(func() { <-p.slots })
	}
	return db, release, nil
}

// Close closes the underlying connection pool. A closed Pool cannot be reused.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	return err
}
