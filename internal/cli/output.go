package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/emdb/internal/value"
)

// Exit codes of the emdb command.
const (
	ExitSuccess = 0
	// ExitFailure means the database refused the work: a statement failed,
	// a dump was rejected or a scenario did not match.
	ExitFailure = 1
	// ExitCommandError means the work never reached the database: bad flags
	// or config, an endpoint that would not open, an unreadable file.
	ExitCommandError = 2
)

// Error codes carried by JSON error responses, one per exit code.
const (
	CodeFailed  = "E_FAILED"
	CodeCommand = "E_COMMAND"
)

// ExitError is an error that chooses the process exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError returns an ExitError without a cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError returns an ExitError caused by err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns the exit code chosen by err. Errors that are not an
// ExitError count as ExitFailure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

func errorCode(err error) string {
	if GetExitCode(err) == ExitCommandError {
		return CodeCommand
	}
	return CodeFailed
}

// OutputFormatter writes command results as text or as JSON envelopes.
// Results go to Writer. Errors in text mode and verbose notes go to
// ErrWriter so they never mix with a dump or a JSON document.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer
	Verbose   bool
}

// CLIResponse is the envelope of every JSON result.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError describes a failed command in a CLIResponse.
type CLIError struct {
	Code    string `json:"code"` // CodeFailed or CodeCommand
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func (f *OutputFormatter) json() bool {
	return f.Format == "json"
}

// diagnostics is where text errors and verbose notes go.
func (f *OutputFormatter) diagnostics() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// Success writes data as the result of the command.
func (f *OutputFormatter) Success(data any) error {
	if f.json() {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Value writes v as canonical JSON, so record ids, datetimes and the other
// non-JSON kinds print in their string forms.
func (f *OutputFormatter) Value(v value.Value) error {
	b, err := value.MarshalCanonical(v)
	if err != nil {
		return err
	}
	if f.json() {
		return f.Success(json.RawMessage(b))
	}
	_, err = fmt.Fprintln(f.Writer, string(b))
	return err
}

// Error writes a failure. details are printed in text mode only with
// --verbose.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.json() {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}
	w := f.diagnostics()
	fmt.Fprintf(w, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(w, "Details: %v\n", details)
	}
	return nil
}

// Report writes the error a command returned, coded by its exit code.
func (f *OutputFormatter) Report(err error) error {
	return f.Error(errorCode(err), err.Error(), nil)
}

// VerboseLog writes a note to the diagnostics writer under --verbose.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.diagnostics(), format+"\n", args...)
}

// newFormatter builds the formatter a command writes through.
func newFormatter(opts *RootOptions, stdout, stderr io.Writer) *OutputFormatter {
	return &OutputFormatter{Format: opts.Format, Writer: stdout, ErrWriter: stderr, Verbose: opts.Verbose}
}
