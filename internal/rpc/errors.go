package rpc

import (
	"errors"
	"fmt"
)

// ErrMethodNotSupported reports an unknown method code or name.
var ErrMethodNotSupported = errors.New("method not supported")

// Error is a failed method call. Its message is the cause's message, which
// is what crosses the boundary; Method is kept for logs and metrics.
type Error struct {
	Method Method
	Err    error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// MethodOf returns the method of the *Error in err's chain.
func MethodOf(err error) (Method, bool) {
	var re *Error
	if errors.As(err, &re) {
		return re.Method, true
	}
	return 0, false
}

func wrap(m Method, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Method: m, Err: err}
}

func paramError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidParams, fmt.Sprintf(format, args...))
}
