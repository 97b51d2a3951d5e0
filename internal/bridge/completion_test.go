package bridge

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/emdb/internal/codec"
	"github.com/roach88/emdb/internal/value"
)

// recorder captures what the foreign side would observe.
type recorder struct {
	mu        sync.Mutex
	alloc     *HeapAllocator
	successes [][]byte
	failures  []string
	released  map[uintptr]int
}

func newRecorder() *recorder {
	return &recorder{alloc: NewHeapAllocator(), released: map[uintptr]int{}}
}

func (r *recorder) completion(t *testing.T) *Completion {
	t.Helper()
	release := func(token uintptr) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.released[token]++
	}
	success := NewAction(1, func(_ uintptr, buf BufferHandle) {
		b, err := r.alloc.Bytes(buf)
		require.NoError(t, err)
		r.mu.Lock()
		r.successes = append(r.successes, append([]byte(nil), b...))
		r.mu.Unlock()
		require.NoError(t, r.alloc.Free(buf))
	}, release)
	failure := NewAction(2, func(_ uintptr, buf BufferHandle) {
		b, err := r.alloc.Bytes(buf)
		require.NoError(t, err)
		v, err := codec.Decode(b)
		require.NoError(t, err)
		r.mu.Lock()
		r.failures = append(r.failures, string(v.(value.String)))
		r.mu.Unlock()
		require.NoError(t, r.alloc.Free(buf))
	}, release)
	return NewCompletion(r.alloc, success, failure)
}

func (r *recorder) assertOneOutcome(t *testing.T) {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	assert.Equal(t, 1, len(r.successes)+len(r.failures))
	assert.Equal(t, map[uintptr]int{1: 1, 2: 1}, r.released)
	assert.Zero(t, r.alloc.Outstanding())
}

func TestRunSuccess(t *testing.T) {
	r := newRecorder()
	c := r.completion(t)

	c.Run(func() ([]byte, error) { return []byte{0xf6}, nil })

	r.assertOneOutcome(t)
	assert.Equal(t, [][]byte{{0xf6}}, r.successes)
}

func TestRunFailure(t *testing.T) {
	r := newRecorder()
	c := r.completion(t)

	c.Run(func() ([]byte, error) { return nil, errors.New("engine not found") })

	r.assertOneOutcome(t)
	assert.Equal(t, []string{"engine not found"}, r.failures)
}

func TestRunRecoversPanic(t *testing.T) {
	r := newRecorder()
	c := r.completion(t)

	assert.NotPanics(t, func() {
		c.Run(func() ([]byte, error) { panic("boom") })
	})

	r.assertOneOutcome(t)
	require.Len(t, r.failures, 1)
	assert.Contains(t, r.failures[0], "boom")
}

func TestSecondOutcomeIgnored(t *testing.T) {
	r := newRecorder()
	c := r.completion(t)

	assert.True(t, c.Succeed([]byte{1}))
	assert.False(t, c.Fail("late"))
	assert.False(t, c.Succeed([]byte{2}))
	c.Release()
	c.Release()

	r.assertOneOutcome(t)
	assert.True(t, c.Fired())
}

func TestConcurrentResolveFiresOnce(t *testing.T) {
	r := newRecorder()
	c := r.completion(t)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var err error
			if i%2 == 0 {
				err = errors.New("x")
			}
			if c.Resolve([]byte{byte(i)}, err) {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	c.Release()

	assert.Equal(t, int32(1), wins.Load())
	r.assertOneOutcome(t)
}

type failingAllocator struct{ *HeapAllocator }

func (failingAllocator) Alloc([]byte) (BufferHandle, error) {
	return BufferHandle{}, errors.New("out of memory")
}

func TestDeliveryErrorStillReleases(t *testing.T) {
	released := 0
	release := func(uintptr) { released++ }
	deliver := func(uintptr, BufferHandle) { t.Fatal("nothing should be delivered") }

	c := NewCompletion(failingAllocator{NewHeapAllocator()},
		NewAction(1, deliver, release), NewAction(2, deliver, release))
	c.Run(func() ([]byte, error) { return []byte{1}, nil })

	assert.Equal(t, 2, released)
	assert.True(t, c.Fired())
}

func TestHeapAllocatorDoubleFree(t *testing.T) {
	a := NewHeapAllocator()
	h, err := a.Alloc([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, h.Len)
	assert.Equal(t, 1, a.Outstanding())

	b, err := a.Bytes(h)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), b)

	require.NoError(t, a.Free(h))
	assert.ErrorIs(t, a.Free(h), ErrUnknownBuffer)
	_, err = a.Bytes(h)
	assert.ErrorIs(t, err, ErrUnknownBuffer)
}

func TestHandleNilRelease(t *testing.T) {
	h := NewHandle(9, nil)
	assert.Equal(t, uintptr(9), h.Token())
	assert.NotPanics(t, h.Release)

	var nilHandle *Handle
	assert.NotPanics(t, nilHandle.Release)
}
