package harness

import "github.com/roach88/emdb/internal/value"

// Trace event status values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// TraceEvent is one executed step.
type TraceEvent struct {
	Seq     int64
	Method  string
	Session string
	Params  value.Array
	Status  string
	Result  value.Value
	Error   string
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass   bool
	Trace  []TraceEvent
	Errors []string
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// toValue renders the event for golden snapshots. Empty fields are left out.
func (e TraceEvent) toValue() value.Object {
	obj := value.Object{
		"seq":    value.Int(e.Seq),
		"method": value.String(e.Method),
		"status": value.String(e.Status),
	}
	if len(e.Params) > 0 {
		obj["params"] = e.Params
	}
	if e.Session != "" {
		obj["session"] = value.String(e.Session)
	}
	if e.Status == StatusError {
		obj["error"] = value.String(e.Error)
	} else if !value.IsNone(e.Result) {
		obj["result"] = e.Result
	}
	return obj
}
