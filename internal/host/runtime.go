package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/emdb/internal/bridge"
	"github.com/roach88/emdb/internal/engine"
	"github.com/roach88/emdb/internal/metrics"
	"github.com/roach88/emdb/internal/registry"
	"github.com/roach88/emdb/internal/scheduler"
)

var (
	// ErrConnect prefixes every connect failure.
	ErrConnect = errors.New("cannot connect to db")

	// ErrShutdown is delivered to calls made after Shutdown.
	ErrShutdown = errors.New("runtime is shut down")
)

// Config configures a Runtime.
type Config struct {
	// Workers is the pool size. Zero uses GOMAXPROCS.
	Workers int

	// Allocator produces delivered buffers. Defaults to a HeapAllocator.
	Allocator bridge.Allocator

	// Registerer receives the runtime metrics. Nil leaves them unregistered.
	Registerer prometheus.Registerer

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// EngineOptions are applied to every engine this runtime connects.
	EngineOptions []engine.Option
}

// Runtime hosts engines and runs boundary calls on a worker pool.
type Runtime struct {
	sched      *scheduler.Scheduler
	engines    *registry.Registry
	alloc      bridge.Allocator
	local      *bridge.HeapAllocator
	metrics    *metrics.Metrics
	logger     *slog.Logger
	engineOpts []engine.Option

	shutdownOnce sync.Once
	shutdownErr  error
}

var (
	initOnce       sync.Once
	defaultRuntime atomic.Pointer[Runtime]
)

// Init creates the process runtime. Later calls return the existing
// runtime and ignore cfg.
func Init(cfg Config) *Runtime {
	initOnce.Do(func() {
		defaultRuntime.Store(New(cfg))
	})
	return defaultRuntime.Load()
}

// Default returns the process runtime. It panics if Init has not run.
func Default() *Runtime {
	r := defaultRuntime.Load()
	if r == nil {
		panic("host: Default called before Init")
	}
	return r
}

// New creates a standalone runtime. Most callers want Init.
func New(cfg Config) *Runtime {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	local := bridge.NewHeapAllocator()
	alloc := cfg.Allocator
	if alloc == nil {
		alloc = local
	}
	r := &Runtime{
		sched:      scheduler.New(cfg.Workers, scheduler.WithLogger(logger)),
		engines:    registry.New(),
		alloc:      alloc,
		local:      local,
		metrics:    metrics.New(cfg.Registerer),
		logger:     logger,
		engineOpts: cfg.EngineOptions,
	}
	r.metrics.RegisterQueue(cfg.Registerer, r.sched.Pending)
	logger.Info("runtime started", "workers", r.sched.Workers())
	return r
}

// Allocator returns the allocator used for delivered buffers.
func (r *Runtime) Allocator() bridge.Allocator {
	return r.alloc
}

// Engines returns the ids of the connected engines in ascending order.
func (r *Runtime) Engines() []int32 {
	return r.engines.IDs()
}

// Metrics returns the runtime's collectors.
func (r *Runtime) Metrics() *metrics.Metrics {
	return r.metrics
}

// Pending returns the number of queued calls.
func (r *Runtime) Pending() int {
	return r.sched.Pending()
}

// NewCompletion builds a Completion that delivers through the runtime's
// allocator.
func (r *Runtime) NewCompletion(success, failure bridge.Action) *bridge.Completion {
	return bridge.NewCompletion(r.alloc, success, failure, bridge.WithLogger(r.logger))
}

// submit queues fn and delivers its outcome through done.
func (r *Runtime) submit(op, method string, done *bridge.Completion, fn func(ctx context.Context) ([]byte, error), attrs ...any) {
	callID := ulid.Make().String()
	logger := r.logger.With(append([]any{"call_id", callID, "op", op}, attrs...)...)

	task := func() {
		start := time.Now()
		done.Run(func() ([]byte, error) {
			payload, err := fn(context.Background())
			elapsed := time.Since(start)
			r.metrics.ObserveCall(op, method, err, elapsed)
			if err != nil {
				logger.Debug("call failed", "method", method, "error", err, "elapsed", elapsed)
			} else {
				logger.Debug("call done", "method", method, "elapsed", elapsed)
			}
			return payload, err
		})
	}
	if !r.sched.Submit(task) {
		logger.Warn("call rejected", "error", ErrShutdown)
		done.Run(func() ([]byte, error) { return nil, ErrShutdown })
	}
}

// Shutdown stops intake, waits for queued calls, then disposes every
// engine. It runs once; later calls return the first result.
func (r *Runtime) Shutdown(ctx context.Context) error {
	r.shutdownOnce.Do(func() {
		err := r.sched.Shutdown(ctx)
		for _, e := range r.engines.Drain() {
			if derr := e.Dispose(); derr != nil {
				r.logger.Warn("dispose on shutdown failed", "endpoint", e.Endpoint().String(), "error", derr)
			}
		}
		r.metrics.Engines.Set(0)
		r.shutdownErr = err
		r.logger.Info("runtime stopped")
	})
	return r.shutdownErr
}

func (r *Runtime) lookup(id int32) (*engine.Engine, error) {
	return r.engines.Lookup(id)
}

func (r *Runtime) disposeEngine(id int32, e *engine.Engine, reason string) {
	if err := e.Dispose(); err != nil {
		r.logger.Warn("dispose failed", "engine_id", id, "reason", reason, "error", err)
		return
	}
	r.logger.Debug("engine disposed", "engine_id", id, "reason", reason)
}

func connectError(err error) error {
	return fmt.Errorf("%w: %w", ErrConnect, err)
}
