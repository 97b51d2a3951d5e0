package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/emdb/internal/codec"
	"github.com/roach88/emdb/internal/store"
)

// Sentinel errors. Operations wrap them with %w, so callers match with
// errors.Is and the boundary reports err.Error().
var (
	// ErrInvalidParams reports a parameter list of the wrong shape.
	ErrInvalidParams = codec.ErrInvalidParams

	ErrEngineNotFound      = errors.New("engine not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrTransactionConflict reports a write while another open
	// transaction holds the engine's write lock.
	ErrTransactionConflict = errors.New("transaction conflict")
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionExists       = errors.New("session already exists")
	ErrNoNamespace         = errors.New("no namespace selected")
	ErrNoDatabase          = errors.New("no database selected")
	ErrFeatureDisabled     = errors.New("feature is not enabled")
	ErrUnknownFunction     = errors.New("unknown function")
	ErrRecordExists        = store.ErrRecordExists
	ErrTableNotFound       = errors.New("table does not exist")
	ErrPatchTest           = errors.New("patch test failed")
)

// ErrorCode categorizes engine errors for callers that branch on them.
type ErrorCode string

const (
	CodeInvalidParams ErrorCode = "INVALID_PARAMS"
	CodeNotFound      ErrorCode = "NOT_FOUND"
	CodeConflict      ErrorCode = "CONFLICT"
	CodeExecution     ErrorCode = "EXECUTION"
)

// Code maps err onto an ErrorCode.
func Code(err error) ErrorCode {
	switch {
	case errors.Is(err, ErrInvalidParams), errors.Is(err, codec.ErrCodec):
		return CodeInvalidParams
	case IsNotFound(err):
		return CodeNotFound
	case errors.Is(err, ErrRecordExists), errors.Is(err, ErrSessionExists),
		errors.Is(err, ErrTransactionConflict):
		return CodeConflict
	default:
		return CodeExecution
	}
}

// IsNotFound reports whether err is a lookup failure for an engine,
// transaction, session or table.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEngineNotFound) ||
		errors.Is(err, ErrTransactionNotFound) ||
		errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrTableNotFound)
}

// TableError names the table a strict-mode lookup failed on.
type TableError struct {
	Table string
}

func (e *TableError) Error() string {
	return fmt.Sprintf("table `%s` does not exist", e.Table)
}

func (e *TableError) Is(target error) bool {
	return target == ErrTableNotFound
}

func invalidParams(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidParams, fmt.Sprintf(format, args...))
}
