// Command libemdb builds emdb as a C shared library:
//
//	go build -buildmode=c-shared -o libemdb.so ./cmd/libemdb
//
// Every call returns at once. Its outcome arrives later through exactly
// one of the two actions passed with it, on a runtime worker thread. The
// delivered ByteBuffer belongs to the caller, who returns it with
// free_u8_buffer. Both action handles are dropped once the call settles.
package main

/*
#include <stdlib.h>
#include "emdb.h"
*/
import "C"

import (
	"log/slog"
	"os"
	"sync"
	"unicode/utf16"
	"unsafe"

	"github.com/roach88/emdb/internal/bridge"
	"github.com/roach88/emdb/internal/config"
	"github.com/roach88/emdb/internal/host"
)

// envConfig names an optional CUE config file read on first use.
const envConfig = "EMDB_CONFIG"

var runtimeOnce = sync.OnceValue(func() *host.Runtime {
	cfg, err := config.Load(os.Getenv(envConfig))
	logger := config.NewLogger(os.Stderr, cfg.LogLevel)
	if err != nil {
		logger.Warn("config ignored", "error", err)
		cfg = config.Default()
	}
	return host.Init(host.Config{
		Workers:   cfg.Workers,
		Allocator: cAllocator{},
		Logger:    logger,
	})
})

func main() {}

func successAction(a C.SuccessAction) bridge.Action {
	return action(a.handle, a.callback)
}

func failureAction(a C.FailureAction) bridge.Action {
	return action(a.handle, a.callback)
}

func action(h C.ForeignHandle, deliver C.DeliverCallback) bridge.Action {
	drop := h.drop_callback
	return bridge.NewAction(uintptr(h.ptr),
		func(token uintptr, buf bridge.BufferHandle) {
			C.emdb_invoke_deliver(deliver, C.intptr_t(token), newByteBuffer(buf))
		},
		func(token uintptr) {
			C.emdb_invoke_drop(drop, C.intptr_t(token))
		},
	)
}

func completion(rt *host.Runtime, success C.SuccessAction, failure C.FailureAction) *bridge.Completion {
	return rt.NewCompletion(successAction(success), failureAction(failure))
}

// utf16String decodes n UTF-16 code units. Unpaired surrogates become U+FFFD.
func utf16String(p *C.uint16_t, n C.int32_t) string {
	if p == nil || n <= 0 {
		return ""
	}
	units := unsafe.Slice((*uint16)(unsafe.Pointer(p)), int(n))
	return string(utf16.Decode(units))
}

// uuidBytes copies an optional 16-byte id. Any other length means absent.
func uuidBytes(p *C.uint8_t, n C.int32_t) []byte {
	if n != 16 {
		return nil
	}
	return goBytes(p, n)
}

//export apply_connect
func apply_connect(id C.int32_t, endpoint *C.uint16_t, endpointLen C.int32_t, options *C.uint8_t, optionsLen C.int32_t, success C.SuccessAction, failure C.FailureAction) {
	rt := runtimeOnce()
	rt.Connect(int32(id), utf16String(endpoint, endpointLen), goBytes(options, optionsLen), completion(rt, success, failure))
}

//export execute
func execute(id C.int32_t, method C.int32_t, session *C.uint8_t, sessionLen C.int32_t, txn *C.uint8_t, txnLen C.int32_t, params *C.uint8_t, paramsLen C.int32_t, success C.SuccessAction, failure C.FailureAction) {
	rt := runtimeOnce()
	rt.Execute(int32(id), int32(method),
		uuidBytes(session, sessionLen),
		uuidBytes(txn, txnLen),
		goBytes(params, paramsLen),
		completion(rt, success, failure))
}

// import is a Go keyword, so the dump loader is exported as import_dump.
//
//export import_dump
func import_dump(id C.int32_t, dump *C.uint16_t, dumpLen C.int32_t, success C.SuccessAction, failure C.FailureAction) {
	rt := runtimeOnce()
	rt.Import(int32(id), utf16String(dump, dumpLen), completion(rt, success, failure))
}

//export export
func export(id C.int32_t, cfg *C.uint8_t, cfgLen C.int32_t, success C.SuccessAction, failure C.FailureAction) {
	rt := runtimeOnce()
	rt.Export(int32(id), goBytes(cfg, cfgLen), completion(rt, success, failure))
}

//export dispose
func dispose(id C.int32_t) {
	runtimeOnce().Dispose(int32(id))
}

// free_u8_buffer releases a buffer delivered through any action.
//
//export free_u8_buffer
func free_u8_buffer(buf *C.ByteBuffer) {
	if buf == nil {
		return
	}
	if err := runtimeOnce().Free(handleOf(buf)); err != nil {
		slog.Default().Warn("free buffer", "error", err)
	}
	C.free(unsafe.Pointer(buf))
}
