package bridge

import (
	"errors"
	"fmt"
	"sync"
)

// ErrUnknownBuffer is returned when freeing a buffer that is not outstanding,
// including a buffer that was already freed.
var ErrUnknownBuffer = errors.New("unknown buffer")

// BufferHandle identifies a delivered buffer. For the C heap allocator Ptr
// is the address of the data; for HeapAllocator it is an opaque id.
type BufferHandle struct {
	Ptr uintptr
	Len int
	Cap int
}

// Allocator produces buffers that outlive the call that created them.
type Allocator interface {
	Alloc(data []byte) (BufferHandle, error)
	Free(h BufferHandle) error
}

// HeapAllocator keeps buffers on the Go heap, keyed by an opaque id. It
// serves Go hosts and tests.
type HeapAllocator struct {
	mu   sync.Mutex
	next uintptr
	bufs map[uintptr][]byte
}

// NewHeapAllocator returns an empty allocator.
func NewHeapAllocator() *HeapAllocator {
	return &HeapAllocator{bufs: make(map[uintptr][]byte)}
}

// Alloc copies data into a new buffer.
func (a *HeapAllocator) Alloc(data []byte) (BufferHandle, error) {
	buf := make([]byte, len(data))
	copy(buf, data)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.next++
	a.bufs[a.next] = buf
	return BufferHandle{Ptr: a.next, Len: len(buf), Cap: cap(buf)}, nil
}

// Bytes returns the contents of an outstanding buffer.
func (a *HeapAllocator) Bytes(h BufferHandle) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	buf, ok := a.bufs[h.Ptr]
	if !ok {
		return nil, fmt.Errorf("buffer %d: %w", h.Ptr, ErrUnknownBuffer)
	}
	return buf, nil
}

// Free releases a buffer. Freeing twice is an error.
func (a *HeapAllocator) Free(h BufferHandle) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.bufs[h.Ptr]; !ok {
		return fmt.Errorf("buffer %d: %w", h.Ptr, ErrUnknownBuffer)
	}
	delete(a.bufs, h.Ptr)
	return nil
}

// Outstanding reports how many buffers have been allocated and not freed.
func (a *HeapAllocator) Outstanding() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.bufs)
}
