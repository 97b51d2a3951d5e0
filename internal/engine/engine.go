package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/emdb/internal/store"
)

// Version is the engine version reported by the version method.
const Version = "0.1.0"

// VersionString is the value returned by the version method.
func VersionString() string {
	return "emdb-" + Version
}

// Engine is one connected database.
//
// Thread-safety: all methods are safe for concurrent use. See the package
// documentation for the locking discipline.
type Engine struct {
	store    *store.Store
	endpoint Endpoint
	opts     Options
	ids      IDGenerator
	clock    Clock

	state    sync.RWMutex
	sessions map[uuid.UUID]*Session

	txMu sync.Mutex
	txns map[uuid.UUID]*txn

	// SQLite allows one writer. writeGate is held shared by short writes
	// and exclusively while an open transaction claims writeOwner. A
	// transaction keeps the claim from its first write until it ends.
	writeGate  sync.RWMutex
	writeOwner *txn

	disposeOnce sync.Once
	disposeErr  error
}

// Option configures an Engine.
type Option func(*Engine)

// WithIDGenerator replaces the transaction id and record key source.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithClock replaces the clock read by time::now.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// Connect parses endpoint, opens its store and returns a ready engine.
func Connect(endpoint string, options Options, opts ...Option) (*Engine, error) {
	ep, err := ParseEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	s, err := ep.Open()
	if err != nil {
		return nil, err
	}
	e := New(s, options, opts...)
	e.endpoint = ep
	slog.Debug("engine connected", "endpoint", ep.String(), "strict", options.Strict)
	return e, nil
}

// New wraps an open store. The engine owns the store from here on and
// closes it on Dispose.
func New(s *store.Store, options Options, opts ...Option) *Engine {
	e := &Engine{
		store:    s,
		opts:     options,
		ids:      RandomIDs{},
		clock:    SystemClock{},
		sessions: map[uuid.UUID]*Session{uuid.Nil: {}},
		txns:     make(map[uuid.UUID]*txn),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Options returns the options the engine was connected with.
func (e *Engine) Options() Options {
	return e.opts
}

// Endpoint returns the parsed endpoint. It is the zero value for engines
// built with New.
func (e *Engine) Endpoint() Endpoint {
	return e.endpoint
}

// Store returns the engine's storage.
func (e *Engine) Store() *store.Store {
	return e.store
}

// Dispose rolls back every open transaction and closes the store. An
// in-memory engine's files are removed. Calling Dispose again returns the
// first result.
func (e *Engine) Dispose() error {
	e.disposeOnce.Do(func() {
		e.txMu.Lock()
		open := e.txns
		e.txns = make(map[uuid.UUID]*txn)
		e.txMu.Unlock()

		for id, t := range open {
			if err := t.rollback(); err != nil {
				slog.Warn("rollback on dispose failed", "txn", id, "error", err)
			}
			e.releaseWriter(t)
		}
		if len(open) > 0 {
			slog.Debug("cancelled open transactions", "count", len(open))
		}
		if err := e.store.Close(); err != nil {
			e.disposeErr = fmt.Errorf("close store: %w", err)
		}
	})
	return e.disposeErr
}

// Call carries the per-call context from the request envelope.
type Call struct {
	// Session selects the session. uuid.Nil is the default session.
	Session uuid.UUID
	// Txn names an open transaction to run storage work in.
	Txn uuid.NullUUID
}

// write runs fn in the call's transaction, or in a short transaction of
// its own when the call names none.
func (e *Engine) write(ctx context.Context, c Call, fn func(store.Querier) error) error {
	if c.Txn.Valid {
		return e.inTxn(c.Txn.UUID, true, fn)
	}
	return e.update(ctx, fn)
}

// update runs fn in a short transaction of its own. It fails at once with
// ErrTransactionConflict while an open transaction holds the write lock.
func (e *Engine) update(ctx context.Context, fn func(store.Querier) error) error {
	e.writeGate.RLock()
	defer e.writeGate.RUnlock()
	if e.writeOwner != nil {
		return ErrTransactionConflict
	}
	return e.store.Update(ctx, nil, fn)
}

// conn is update for statements that commit one by one on a single
// connection.
func (e *Engine) conn(ctx context.Context, fn func(store.Querier) error) error {
	e.writeGate.RLock()
	defer e.writeGate.RUnlock()
	if e.writeOwner != nil {
		return ErrTransactionConflict
	}
	return e.store.Conn(ctx, fn)
}

// read runs fn in the call's transaction or directly on the database.
func (e *Engine) read(c Call, fn func(store.Querier) error) error {
	if c.Txn.Valid {
		return e.inTxn(c.Txn.UUID, false, fn)
	}
	return e.store.View(nil, fn)
}
