package engine

import (
	"crypto/rand"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// IDGenerator produces transaction ids and generated record keys.
// Implemented by RandomIDs (production) and FixedIDs (tests).
type IDGenerator interface {
	// TransactionID returns a time-ordered UUID.
	TransactionID() uuid.UUID
	// RecordKey returns a key for a record created without one.
	RecordKey() string
}

// RandomIDs generates UUIDv7 transaction ids and lowercase ULID record keys.
// Safe for concurrent use.
type RandomIDs struct{}

func (RandomIDs) TransactionID() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

func (RandomIDs) RecordKey() string {
	return NewULID()
}

// NewULID returns a new lowercase ULID.
func NewULID() string {
	return strings.ToLower(ulid.MustNew(ulid.Now(), rand.Reader).String())
}

// FixedIDs hands out predetermined ids for deterministic tests. It panics
// when a list runs out, which surfaces a test that made more calls than it
// expected.
type FixedIDs struct {
	mu   sync.Mutex
	txns []uuid.UUID
	keys []string
}

// NewFixedIDs creates a generator that returns keys in order.
func NewFixedIDs(keys ...string) *FixedIDs {
	return &FixedIDs{keys: keys}
}

// WithTransactions queues transaction ids.
func (g *FixedIDs) WithTransactions(ids ...uuid.UUID) *FixedIDs {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.txns = append(g.txns, ids...)
	return g
}

func (g *FixedIDs) TransactionID() uuid.UUID {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.txns) == 0 {
		panic("FixedIDs: all transaction ids exhausted")
	}
	id := g.txns[0]
	g.txns = g.txns[1:]
	return id
}

func (g *FixedIDs) RecordKey() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.keys) == 0 {
		panic("FixedIDs: all record keys exhausted")
	}
	k := g.keys[0]
	g.keys = g.keys[1:]
	return k
}
