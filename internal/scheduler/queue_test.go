package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskQueue_FIFO(t *testing.T) {
	q := newTaskQueue()

	var order []int
	for i := 1; i <= 3; i++ {
		require.True(t, q.Enqueue(func() { order = append(order, i) }))
	}

	for range 3 {
		task, ok := q.TryDequeue()
		require.True(t, ok)
		task()
	}
	assert.Equal(t, []int{1, 2, 3}, order)

	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty queue should return false")
}

func TestTaskQueue_ResignalsWhileNonEmpty(t *testing.T) {
	q := newTaskQueue()
	q.Enqueue(func() {})
	q.Enqueue(func() {})

	<-q.Wait() // consume the coalesced signal
	_, ok := q.TryDequeue()
	require.True(t, ok)

	select {
	case <-q.Wait():
	case <-time.After(time.Second):
		t.Fatal("expected a signal for the remaining task")
	}
}

func TestTaskQueue_CloseKeepsQueuedTasks(t *testing.T) {
	q := newTaskQueue()
	q.Enqueue(func() {})
	q.Close()
	q.Close() // idempotent

	assert.False(t, q.Enqueue(func() {}), "enqueue after close should fail")
	assert.False(t, q.Drained())
	assert.Equal(t, 1, q.Len())

	_, ok := q.TryDequeue()
	require.True(t, ok)
	assert.True(t, q.Drained())

	select {
	case <-q.Wait():
	default:
		t.Fatal("wait channel should be closed")
	}
}
