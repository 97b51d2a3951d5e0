package main

/*
#include <stdlib.h>
#include "emdb.h"
*/
import "C"

import (
	"unsafe"

	"github.com/roach88/emdb/internal/bridge"
)

// cAllocator places delivered payloads on the C heap so they outlive the
// call and can be released by the host through free_u8_buffer.
type cAllocator struct{}

func (cAllocator) Alloc(data []byte) (bridge.BufferHandle, error) {
	size := len(data)
	if size == 0 {
		size = 1
	}
	// cgo's C.malloc aborts rather than returning nil.
	p := C.malloc(C.size_t(size))
	copy(unsafe.Slice((*byte)(p), size), data)
	return bridge.BufferHandle{Ptr: uintptr(p), Len: len(data), Cap: size}, nil
}

func (cAllocator) Free(h bridge.BufferHandle) error {
	C.free(unsafe.Pointer(h.Ptr))
	return nil
}

// newByteBuffer wraps a delivered handle in a C ByteBuffer the host frees
// with free_u8_buffer.
func newByteBuffer(h bridge.BufferHandle) *C.ByteBuffer {
	bb := (*C.ByteBuffer)(C.malloc(C.size_t(unsafe.Sizeof(C.ByteBuffer{}))))
	bb.ptr = (*C.uint8_t)(unsafe.Pointer(h.Ptr))
	bb.length = C.int32_t(h.Len)
	bb.capacity = C.int32_t(h.Cap)
	return bb
}

func handleOf(bb *C.ByteBuffer) bridge.BufferHandle {
	return bridge.BufferHandle{
		Ptr: uintptr(unsafe.Pointer(bb.ptr)),
		Len: int(bb.length),
		Cap: int(bb.capacity),
	}
}

// goBytes copies a foreign byte range. Non-positive lengths give nil.
func goBytes(p *C.uint8_t, n C.int32_t) []byte {
	if p == nil || n <= 0 {
		return nil
	}
	return C.GoBytes(unsafe.Pointer(p), C.int(n))
}
