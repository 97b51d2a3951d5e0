package harness

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/roach88/emdb/internal/host"
	"github.com/roach88/emdb/internal/rpc"
	"github.com/roach88/emdb/internal/value"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s\n", event.Seq, event.Method, event.Status)
		}
	}
	return buf.String()
}

// AssertionContext gives final_state assertions access to the engine.
type AssertionContext struct {
	Ctx    context.Context
	Client *host.Client
	conv   *converter
}

// EvaluateAssertions checks every assertion and returns the failures.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertFinalState:
			if actx == nil || actx.Client == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires an engine", i)
			} else {
				err = assertFinalState(actx, a)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, ev := range trace {
		if ev.Method == a.Method && (a.Status == "" || ev.Status == a.Status) {
			return nil
		}
	}
	want := a.Method
	if a.Status != "" {
		want += " with status " + a.Status
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: want,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the first occurrences of the methods appear
// in the listed order. Other calls may come in between.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	for i, ev := range trace {
		if _, seen := positions[ev.Method]; !seen {
			positions[ev.Method] = i + 1
		}
	}
	for _, m := range a.Methods {
		if positions[m] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all methods present: %v", a.Methods),
				Actual:   fmt.Sprintf("missing method: %s", m),
				Trace:    trace,
			}
		}
	}
	for i := 1; i < len(a.Methods); i++ {
		prev, curr := a.Methods[i-1], a.Methods[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("methods in order: %v", a.Methods),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if ev.Method == a.Method {
			count++
		}
	}
	if count != *a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", *a.Count, a.Method),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState selects the table on the default session and checks the
// record count and that each expected object matches some record.
func assertFinalState(actx *AssertionContext, a Assertion) error {
	v, err := actx.Client.Call(actx.Ctx, rpc.Select, value.Table(a.Table))
	if err != nil {
		return fmt.Errorf("final_state %s: %w", a.Table, err)
	}
	records, ok := v.(value.Array)
	if !ok {
		return fmt.Errorf("final_state %s: select returned %s", a.Table, v.Kind())
	}
	if a.Count != nil && len(records) != *a.Count {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%d records in %s", *a.Count, a.Table),
			Actual:   fmt.Sprintf("%d records", len(records)),
		}
	}
	for _, raw := range a.Expect {
		want, err := actx.conv.convert(raw)
		if err != nil {
			return fmt.Errorf("final_state %s: %w", a.Table, err)
		}
		if !containsMatch(records, want) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("a record in %s matching %s", a.Table, render(want)),
				Actual:   render(records),
			}
		}
	}
	return nil
}

func containsMatch(records value.Array, want value.Value) bool {
	for _, r := range records {
		if matchSubset(want, r) {
			return true
		}
	}
	return false
}

// matchSubset reports whether actual has everything expected has. Objects
// may carry extra keys; arrays must have the same length. Scalars of
// different kinds match when their canonical JSON forms agree, so a YAML
// string "person:tobie" matches the record id person:tobie.
func matchSubset(expected, actual value.Value) bool {
	switch exp := expected.(type) {
	case value.Object:
		act, ok := actual.(value.Object)
		if !ok {
			return false
		}
		for k, ev := range exp {
			av, exists := act[k]
			if !exists || !matchSubset(ev, av) {
				return false
			}
		}
		return true
	case value.Array:
		act, ok := actual.(value.Array)
		if !ok || len(act) != len(exp) {
			return false
		}
		for i := range exp {
			if !matchSubset(exp[i], act[i]) {
				return false
			}
		}
		return true
	default:
		if value.Equal(expected, actual) {
			return true
		}
		a, errA := value.MarshalCanonical(expected)
		b, errB := value.MarshalCanonical(actual)
		return errA == nil && errB == nil && bytes.Equal(a, b)
	}
}

func render(v value.Value) string {
	b, err := value.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
