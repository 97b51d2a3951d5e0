package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/emdb/internal/value"
)

var testScope = Scope{NS: "test", DB: "test"}

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// insertTestRecord stores a record whose id field matches its key.
func insertTestRecord(t *testing.T, s *Store, sc Scope, tb string, key value.Value, fields value.Object) value.Object {
	t.Helper()
	doc := fields.Clone()
	if doc == nil {
		doc = value.Object{}
	}
	doc["id"] = value.NewRecordID(tb, key)

	ctx := context.Background()
	err := s.Update(ctx, nil, func(q Querier) error {
		if err := DefineTable(ctx, q, sc, tb, false); err != nil {
			return err
		}
		return InsertRecord(ctx, q, sc, tb, key, doc)
	})
	if err != nil {
		t.Fatalf("insert %s: %v", tb, err)
	}
	return doc
}
