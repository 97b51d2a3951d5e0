package testutil

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// SequentialIDs generates predictable ids without limit: record keys
// "<prefix>1", "<prefix>2", ... and transaction UUIDs whose last eight bytes
// hold a counter. Two runs with the same calls produce the same ids, which
// keeps golden traces stable.
//
// It satisfies engine.IDGenerator. Safe for concurrent use.
type SequentialIDs struct {
	mu     sync.Mutex
	prefix string
	keys   uint64
	txns   uint64
}

// NewSequentialIDs creates a generator. An empty prefix uses "k".
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "k"
	}
	return &SequentialIDs{prefix: prefix}
}

func (g *SequentialIDs) RecordKey() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.keys++
	return fmt.Sprintf("%s%d", g.prefix, g.keys)
}

func (g *SequentialIDs) TransactionID() uuid.UUID {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.txns++
	var id uuid.UUID
	binary.BigEndian.PutUint64(id[8:], g.txns)
	// Version 7, RFC 4122 variant.
	id[6] = 0x70
	id[8] = (id[8] & 0x3f) | 0x80
	return id
}
