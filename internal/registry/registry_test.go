package registry

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/emdb/internal/engine"
	"github.com/roach88/emdb/internal/store"
)

func newEngine(t *testing.T) *engine.Engine {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "r.db"))
	require.NoError(t, err)
	e := engine.New(s, engine.Options{})
	t.Cleanup(func() { e.Dispose() })
	return e
}

func TestRegistry_InsertLookupRemove(t *testing.T) {
	r := New()
	a, b := newEngine(t), newEngine(t)

	_, err := r.Lookup(7)
	assert.ErrorIs(t, err, engine.ErrEngineNotFound)
	assert.EqualError(t, err, "engine not found")

	assert.Nil(t, r.Insert(7, a))
	got, err := r.Lookup(7)
	require.NoError(t, err)
	assert.Same(t, a, got)

	// Reconnecting under the same id hands back the old engine.
	assert.Same(t, a, r.Insert(7, b))
	got, _ = r.Lookup(7)
	assert.Same(t, b, got)

	assert.Same(t, b, r.Remove(7))
	assert.Nil(t, r.Remove(7))
	_, err = r.Lookup(7)
	assert.ErrorIs(t, err, engine.ErrEngineNotFound)
}

func TestRegistry_IDsAndDrain(t *testing.T) {
	r := New()
	e := newEngine(t)
	r.Insert(3, e)
	r.Insert(-1, e)
	r.Insert(10, e)

	assert.Equal(t, 3, r.Len())
	assert.Equal(t, []int32{-1, 3, 10}, r.IDs())

	drained := r.Drain()
	assert.Len(t, drained, 3)
	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.IDs())
}

func TestRegistry_Concurrent(t *testing.T) {
	r := New()
	e := newEngine(t)

	var wg sync.WaitGroup
	for i := int32(0); i < 32; i++ {
		wg.Add(1)
		go func(id int32) {
			defer wg.Done()
			r.Insert(id, e)
			_, err := r.Lookup(id)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 32, r.Len())
}
