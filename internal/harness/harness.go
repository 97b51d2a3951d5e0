package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/emdb/internal/engine"
	"github.com/roach88/emdb/internal/host"
	"github.com/roach88/emdb/internal/rpc"
	"github.com/roach88/emdb/internal/testutil"
	"github.com/roach88/emdb/internal/value"
)

// Epoch is what time::now returns during a scenario.
var Epoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

const engineID int32 = 1

// Harness executes one scenario against a private runtime.
type Harness struct {
	rt     *host.Runtime
	client *host.Client
	seq    *testutil.Sequence
	conv   converter
	logger *slog.Logger
}

// Run executes a scenario and returns its result. An error means the
// scenario could not be executed (connect or setup failed, a parameter did
// not convert); failed expectations are reported in the Result.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a context bounding every call.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rt := host.New(host.Config{
		Workers: 2,
		Logger:  logger,
		EngineOptions: []engine.Option{
			engine.WithIDGenerator(testutil.NewSequentialIDs("")),
			engine.WithClock(engine.NewFixedClock(Epoch)),
		},
	})
	defer func() {
		if err := rt.Shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("runtime shutdown failed", "error", err)
		}
	}()

	h := &Harness{
		rt:     rt,
		client: rt.Client(engineID),
		seq:    testutil.NewSequence(),
		logger: logger,
	}
	return h.run(ctx, scenario)
}

func (h *Harness) run(ctx context.Context, scenario *Scenario) (*Result, error) {
	endpoint := scenario.Endpoint
	if endpoint == "" {
		endpoint = "memory"
	}
	var options value.Value = value.None{}
	if scenario.Options != nil {
		var err error
		if options, err = h.conv.convert(scenario.Options); err != nil {
			return nil, fmt.Errorf("options: %w", err)
		}
	}
	if err := h.client.Connect(ctx, endpoint, options); err != nil {
		return nil, err
	}

	result := NewResult()
	for i, step := range scenario.Setup {
		ev, err := h.step(ctx, step)
		if err != nil {
			return nil, fmt.Errorf("setup step %d: %w", i, err)
		}
		result.Trace = append(result.Trace, ev)
		if ev.Status == StatusError {
			return nil, fmt.Errorf("setup step %d (%s) failed: %s", i, step.Method, ev.Error)
		}
	}

	for i, step := range scenario.Flow {
		ev, err := h.step(ctx, step)
		if err != nil {
			return nil, fmt.Errorf("flow step %d: %w", i, err)
		}
		result.Trace = append(result.Trace, ev)
		for _, msg := range checkExpect(step, ev) {
			result.AddError(fmt.Sprintf("flow[%d] %s: %s", i, step.Method, msg))
		}
		h.logger.Debug("flow step completed", "step", i, "method", step.Method, "status", ev.Status)
	}

	actx := &AssertionContext{Ctx: ctx, Client: h.client, conv: &h.conv}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

// step runs one call and records it.
func (h *Harness) step(ctx context.Context, step Step) (TraceEvent, error) {
	m, err := rpc.ParseMethod(step.Method)
	if err != nil {
		return TraceEvent{}, err
	}
	params, err := h.conv.params(step.Params)
	if err != nil {
		return TraceEvent{}, err
	}
	var txn uuid.NullUUID
	if step.Txn {
		if !h.conv.txn.Valid {
			return TraceEvent{}, fmt.Errorf("txn: no transaction has been begun")
		}
		txn = h.conv.txn
	}

	ev := TraceEvent{
		Seq:     h.seq.Next(),
		Method:  m.String(),
		Session: step.Session,
		Params:  params,
	}
	v, err := h.client.CallIn(ctx, sessionID(step.Session), txn, m, params...)
	if err != nil {
		ev.Status = StatusError
		ev.Error = err.Error()
		return ev, nil
	}
	ev.Status = StatusOK
	ev.Result = normalize(m, v)
	if id, ok := v.(value.UUID); ok && m == rpc.Begin {
		h.conv.txn = uuid.NullUUID{UUID: uuid.UUID(id), Valid: true}
	}
	return ev, nil
}

// normalize drops the per-statement timings from query results.
func normalize(m rpc.Method, v value.Value) value.Value {
	if m != rpc.Query {
		return v
	}
	entries, ok := v.(value.Array)
	if !ok {
		return v
	}
	out := make(value.Array, len(entries))
	for i, e := range entries {
		if obj, ok := e.(value.Object); ok {
			obj = obj.Clone()
			delete(obj, "time")
			out[i] = obj
			continue
		}
		out[i] = e
	}
	return out
}

func checkExpect(step Step, ev TraceEvent) []string {
	exp := step.Expect
	if exp == nil {
		if ev.Status == StatusError {
			return []string{fmt.Sprintf("unexpected error: %s", ev.Error)}
		}
		return nil
	}
	if exp.Error != "" {
		if ev.Status != StatusError {
			return []string{fmt.Sprintf("expected error containing %q, got success", exp.Error)}
		}
		if !containsFold(ev.Error, exp.Error) {
			return []string{fmt.Sprintf("expected error containing %q, got %q", exp.Error, ev.Error)}
		}
		return nil
	}
	if ev.Status == StatusError {
		return []string{fmt.Sprintf("unexpected error: %s", ev.Error)}
	}

	var msgs []string
	if exp.Count != nil {
		arr, ok := ev.Result.(value.Array)
		switch {
		case !ok:
			msgs = append(msgs, fmt.Sprintf("expected an array of %d, got %s", *exp.Count, ev.Result.Kind()))
		case len(arr) != *exp.Count:
			msgs = append(msgs, fmt.Sprintf("expected %d results, got %d", *exp.Count, len(arr)))
		}
	}
	if exp.Result != nil {
		var conv converter
		want, err := conv.convert(exp.Result)
		if err != nil {
			return append(msgs, fmt.Sprintf("expect.result: %v", err))
		}
		if !matchSubset(want, ev.Result) {
			msgs = append(msgs, fmt.Sprintf("result mismatch: expected %s, got %s", render(want), render(ev.Result)))
		}
	}
	return msgs
}
