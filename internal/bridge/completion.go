package bridge

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/roach88/emdb/internal/codec"
)

// Completion pairs a success and a failure Action. Exactly one of them
// fires, at most once.
type Completion struct {
	success Action
	failure Action
	alloc   Allocator
	logger  *slog.Logger
	fired   atomic.Bool
}

// CompletionOption configures a Completion.
type CompletionOption func(*Completion)

// WithLogger sets the logger used for protocol violations and delivery
// errors. Defaults to slog.Default().
func WithLogger(l *slog.Logger) CompletionOption {
	return func(c *Completion) {
		c.logger = l
	}
}

// NewCompletion builds a Completion delivering through alloc.
func NewCompletion(alloc Allocator, success, failure Action, opts ...CompletionOption) *Completion {
	c := &Completion{
		success: success,
		failure: failure,
		alloc:   alloc,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fired reports whether an outcome has been delivered.
func (c *Completion) Fired() bool {
	return c.fired.Load()
}

// Succeed delivers payload through the success action. It returns false if
// an outcome was already delivered.
func (c *Completion) Succeed(payload []byte) bool {
	if !c.fired.CompareAndSwap(false, true) {
		c.logger.Warn("completion already fired, dropping success")
		return false
	}
	if err := c.deliver(c.success, payload); err != nil {
		c.logger.Error("success delivery failed, reporting failure", "error", err)
		if err := c.deliver(c.failure, codec.EncodeString(err.Error())); err != nil {
			c.logger.Error("failure delivery failed", "error", err)
		}
	}
	return true
}

// Fail delivers msg, encoded as a String value, through the failure action.
// It returns false if an outcome was already delivered.
func (c *Completion) Fail(msg string) bool {
	if !c.fired.CompareAndSwap(false, true) {
		c.logger.Warn("completion already fired, dropping failure", "message", msg)
		return false
	}
	if err := c.deliver(c.failure, codec.EncodeString(msg)); err != nil {
		c.logger.Error("failure delivery failed", "error", err)
	}
	return true
}

// Resolve calls Fail when err is non-nil and Succeed otherwise.
func (c *Completion) Resolve(payload []byte, err error) bool {
	if err != nil {
		return c.Fail(err.Error())
	}
	return c.Succeed(payload)
}

// Release releases both handles. It is safe to call more than once.
func (c *Completion) Release() {
	c.success.Handle.Release()
	c.failure.Handle.Release()
}

// Run executes fn and delivers its outcome. A panic in fn is reported as a
// failure. Both handles are released on every path.
func (c *Completion) Run(fn func() ([]byte, error)) {
	defer c.Release()
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("panic during call", "panic", r)
			c.Fail(fmt.Sprintf("internal error: %v", r))
		}
	}()

	payload, err := fn()
	c.Resolve(payload, err)
}

func (c *Completion) deliver(a Action, payload []byte) error {
	if a.Deliver == nil {
		return errors.New("no deliver callback")
	}
	buf, err := c.alloc.Alloc(payload)
	if err != nil {
		return fmt.Errorf("allocate %d bytes: %w", len(payload), err)
	}
	var token uintptr
	if a.Handle != nil {
		token = a.Handle.token
	}
	a.Deliver(token, buf)
	return nil
}
