package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/emdb/internal/store"
)

// txn is an open transaction. mu serializes the statements sent to it.
type txn struct {
	mu sync.Mutex
	tx *sql.Tx
}

func (t *txn) commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tx.Commit()
}

func (t *txn) rollback() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tx.Rollback()
}

// Begin opens a transaction and returns its id. The transaction reads from
// a snapshot and only takes the engine's write lock on its first write, so
// any number may be open at once.
func (e *Engine) Begin(ctx context.Context) (uuid.UUID, error) {
	// The transaction outlives the call that opened it.
	tx, err := e.store.Begin(context.WithoutCancel(ctx))
	if err != nil {
		return uuid.Nil, err
	}
	id := e.ids.TransactionID()

	e.txMu.Lock()
	e.txns[id] = &txn{tx: tx}
	e.txMu.Unlock()

	slog.Debug("transaction started", "txn", id)
	return id, nil
}

// Commit commits and forgets the transaction. The id is invalid afterwards
// whether or not the commit succeeds.
func (e *Engine) Commit(id uuid.UUID) error {
	t, err := e.takeTxn(id)
	if err != nil {
		return err
	}
	err = t.commit()
	e.releaseWriter(t)
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	slog.Debug("transaction committed", "txn", id)
	return nil
}

// Cancel rolls back and forgets the transaction.
func (e *Engine) Cancel(id uuid.UUID) error {
	t, err := e.takeTxn(id)
	if err != nil {
		return err
	}
	err = t.rollback()
	e.releaseWriter(t)
	if err != nil {
		return fmt.Errorf("cancel: %w", err)
	}
	slog.Debug("transaction cancelled", "txn", id)
	return nil
}

// OpenTransactions returns how many transactions are open.
func (e *Engine) OpenTransactions() int {
	e.txMu.Lock()
	defer e.txMu.Unlock()
	return len(e.txns)
}

func (e *Engine) takeTxn(id uuid.UUID) (*txn, error) {
	e.txMu.Lock()
	defer e.txMu.Unlock()
	t, ok := e.txns[id]
	if !ok {
		return nil, ErrTransactionNotFound
	}
	delete(e.txns, id)
	return t, nil
}

// inTxn runs fn inside the open transaction id. write claims the engine's
// write lock for the transaction first.
func (e *Engine) inTxn(id uuid.UUID, write bool, fn func(store.Querier) error) error {
	e.txMu.Lock()
	t, ok := e.txns[id]
	e.txMu.Unlock()
	if !ok {
		return ErrTransactionNotFound
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if write {
		if err := e.claimWriter(t); err != nil {
			return err
		}
	}
	return fn(t.tx)
}

// claimWriter makes t the engine's writer. It waits for short writes in
// flight but fails at once if another transaction is the writer.
func (e *Engine) claimWriter(t *txn) error {
	e.writeGate.Lock()
	defer e.writeGate.Unlock()
	switch e.writeOwner {
	case nil:
		e.writeOwner = t
		return nil
	case t:
		return nil
	default:
		return ErrTransactionConflict
	}
}

func (e *Engine) releaseWriter(t *txn) {
	e.writeGate.Lock()
	if e.writeOwner == t {
		e.writeOwner = nil
	}
	e.writeGate.Unlock()
}
