package engine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/emdb/internal/store"
	"github.com/roach88/emdb/internal/value"
)

var defaultCall = Call{}

// newTestEngine creates a file-backed engine that is disposed on cleanup.
func newTestEngine(t *testing.T, options Options, opts ...Option) *Engine {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "engine.db"))
	require.NoError(t, err)
	e := New(s, options, opts...)
	t.Cleanup(func() { e.Dispose() })
	return e
}

// newScopedEngine is newTestEngine with namespace and database "test"
// selected on the default session.
func newScopedEngine(t *testing.T, options Options, opts ...Option) *Engine {
	t.Helper()
	e := newTestEngine(t, options, opts...)
	require.NoError(t, e.Use(defaultCall, value.String("test"), value.String("test")))
	return e
}

func rid(tb string, key value.Value) value.RecordID {
	return value.NewRecordID(tb, key)
}

func mustCreate(t *testing.T, e *Engine, c Call, what value.Value, data value.Object) value.Object {
	t.Helper()
	doc, err := e.Create(context.Background(), c, what, data)
	require.NoError(t, err)
	return doc.(value.Object)
}
