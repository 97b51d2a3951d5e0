package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/emdb/internal/rpc"
)

// Scenario is one conformance scenario.
type Scenario struct {
	// Name uniquely identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// Endpoint defaults to memory.
	Endpoint string `yaml:"endpoint,omitempty"`

	// Options are the connect options.
	Options map[string]any `yaml:"options,omitempty"`

	// Setup steps must succeed. They appear in the trace.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow steps are checked against their expect clauses.
	Flow []Step `yaml:"flow"`

	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one method call.
type Step struct {
	Method string `yaml:"method"`
	Params []any  `yaml:"params,omitempty"`

	// Session names a session. Empty is the default session.
	Session string `yaml:"session,omitempty"`

	// Txn runs the step inside the last transaction begun.
	Txn bool `yaml:"txn,omitempty"`

	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect checks a step's outcome. With Error set the step must fail with a
// message containing it; otherwise it must succeed.
type Expect struct {
	Error string `yaml:"error,omitempty"`

	// Result is matched as a subset: objects may carry extra keys.
	Result any `yaml:"result,omitempty"`

	// Count is the expected length of an array result.
	Count *int `yaml:"count,omitempty"`
}

// Assertion validates the trace or the final state.
type Assertion struct {
	Type string `yaml:"type"`

	// Method is used by trace_contains and trace_count.
	Method string `yaml:"method,omitempty"`

	// Status optionally narrows trace_contains to "ok" or "error".
	Status string `yaml:"status,omitempty"`

	// Methods is used by trace_order.
	Methods []string `yaml:"methods,omitempty"`

	// Count is used by trace_count and final_state.
	Count *int `yaml:"count,omitempty"`

	// Table is used by final_state.
	Table string `yaml:"table,omitempty"`

	// Expect lists objects that must each match some record (subset match).
	Expect []map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and validates a scenario file. Unknown fields are
// rejected so typos surface as errors.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	for i, step := range s.Setup {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
		if step.Expect != nil {
			return fmt.Errorf("setup[%d]: expect is not allowed in setup", i)
		}
	}
	for i, step := range s.Flow {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(step Step) error {
	if step.Method == "" {
		return fmt.Errorf("method is required")
	}
	if _, err := rpc.ParseMethod(step.Method); err != nil {
		return err
	}
	if step.Expect != nil && step.Expect.Error != "" && (step.Expect.Result != nil || step.Expect.Count != nil) {
		return fmt.Errorf("expect: error excludes result and count")
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertTraceContains:
		if a.Method == "" {
			return fmt.Errorf("assertions[%d]: method is required for trace_contains", index)
		}
		if a.Status != "" && a.Status != StatusOK && a.Status != StatusError {
			return fmt.Errorf("assertions[%d]: status must be %q or %q", index, StatusOK, StatusError)
		}
	case AssertTraceOrder:
		if len(a.Methods) == 0 {
			return fmt.Errorf("assertions[%d]: methods list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Method == "" {
			return fmt.Errorf("assertions[%d]: method is required for trace_count", index)
		}
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: a non-negative count is required for trace_count", index)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if a.Count == nil && len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: count or expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
