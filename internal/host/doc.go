// Package host is the process-wide runtime behind the boundary entry
// points.
//
// A Runtime owns the worker pool, the engine registry and the buffer
// allocator. Every boundary call (Connect, Execute, Import, Export) queues
// one task and returns at once; the outcome is delivered on a worker
// through the call's bridge.Completion. Dispose is fire-and-forget.
//
// Init creates the process runtime once. Default returns it and panics if
// Init has not run. Go callers that want a blocking API use Client.
package host
