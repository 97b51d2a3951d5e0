package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/emdb/internal/value"
)

// Snapshot renders a result's trace as canonical JSON for golden files.
func Snapshot(name string, result *Result) ([]byte, error) {
	trace := make(value.Array, len(result.Trace))
	for i, ev := range result.Trace {
		trace[i] = ev.toValue()
	}
	b, err := value.MarshalCanonical(value.Object{
		"scenario": value.String(name),
		"trace":    trace,
	})
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// RunWithGolden executes a scenario and compares its trace against
// testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()
	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()
	snapshot, err := Snapshot(name, result)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, snapshot)
	return nil
}
