package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

var (
	// ErrNotInitialized is returned by Get before Initialize succeeded or after Close.
	ErrNotInitialized = errors.New("database: session factory not initialized")
	// ErrAlreadyInitialized is returned by Initialize when a pool is already held.
	ErrAlreadyInitialized = errors.New("database: session factory already initialized")
)

// Opener creates the pool held by a Factory.
type Opener func(ctx context.Context) (*Database, error)

// Factory owns the process-wide pool. It is the only component allowed to
// close it; Close takes the handle out atomically so concurrent or repeated
// calls release the pool exactly once.
type Factory struct {
	open Opener
	db   atomic.Pointer[Database]
}

// NewFactory returns a Factory that opens its pool with open on Initialize.
func NewFactory(open Opener) *Factory {
	return &Factory{open: open}
}

// Initialize opens the pool.
func (f *Factory) Initialize(ctx context.Context) error {
	if f.db.Load() != nil {
		return ErrAlreadyInitialized
	}
	db, err := f.open(ctx)
	if err != nil {
		return fmt.Errorf("database: initialize: %w", err)
	}
	if !f.db.CompareAndSwap(nil, db) {
		_ = db.Close()
		return ErrAlreadyInitialized
	}
	return nil
}

// Get returns the held pool.
func (f *Factory) Get() (*Database, error) {
	if db := f.db.Load(); db != nil {
		return db, nil
	}
	return nil, ErrNotInitialized
}

// Ping checks the held pool; it fails when the factory holds nothing.
func (f *Factory) Ping(ctx context.Context) error {
	db, err := f.Get()
	if err != nil {
		return err
	}
	return db.Ping(ctx)
}

// Close releases the pool. It is a no-op when nothing is held.
func (f *Factory) Close() error {
	db := f.db.Swap(nil)
	if db == nil {
		return nil
	}
	return db.Close()
}

// Scope holds the current session of one unit of work (process startup, a
// background run): the first lookup reserves a dedicated connection and later
// lookups reuse it until CloseCurrentSessions returns it to the pool.
type Scope struct {
	f    *Factory
	mu   sync.Mutex
	conn *sql.Conn
}

// NewScope returns an empty Scope bound to f.
func (f *Factory) NewScope() *Scope {
	return &Scope{f: f}
}

// Conn returns the scope's connection, reserving one on first use.
func (s *Scope) Conn(ctx context.Context) (*sql.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return s.conn, nil
	}
	db, err := s.f.Get()
	if err != nil {
		return nil, err
	}
	conn, err := db.DB().Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("database: reserve conn: %w", err)
	}
	s.conn = conn
	return conn, nil
}

// Open reports how many connections the scope currently holds.
func (s *Scope) Open() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return 0
	}
	return 1
}

// CloseCurrentSessions returns the scope's connection to the pool. The scope
// may be used again afterwards.
func (s *Scope) CloseCurrentSessions() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn == nil {
		return nil
	}
	if err := conn.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("database: release conn: %w", err)
	}
	return nil
}

type scopeKey struct{}

// WithScope attaches s to ctx.
func WithScope(ctx context.Context, s *Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// Detach returns a context for a task that outlives ctx. It keeps the values
// of ctx (trace, request tags) but neither its cancellation nor its scope, so
// the task's queries go to the pool rather than a released startup session.
func Detach(ctx context.Context) context.Context {
	return WithScope(context.WithoutCancel(ctx), nil)
}

// ScopeFromCtx returns the scope attached to ctx, or nil.
func ScopeFromCtx(ctx context.Context) *Scope {
	s, _ := ctx.Value(scopeKey{}).(*Scope)
	return s
}

// QuerierFromCtx returns a connection reserved in the scope carried by ctx,
// falling back to the pool itself when ctx carries no scope.
func (f *Factory) QuerierFromCtx(ctx context.Context) (Querier, error) {
	if s := ScopeFromCtx(ctx); s != nil {
		return s.Conn(ctx)
	}
	db, err := f.Get()
	if err != nil {
		return nil, err
	}
	return db.DB(), nil
}
