package bridge

import "sync"

// ReleaseFunc deregisters a foreign token. It is called at most once per
// Handle.
type ReleaseFunc func(token uintptr)

// Handle owns a foreign token until Release.
type Handle struct {
	token   uintptr
	release ReleaseFunc
	once    sync.Once
}

// NewHandle wraps token. A nil release is allowed for tokens that need no
// deregistration.
func NewHandle(token uintptr, release ReleaseFunc) *Handle {
	return &Handle{token: token, release: release}
}

// Token returns the wrapped foreign token.
func (h *Handle) Token() uintptr {
	return h.token
}

// Release invokes the release callback. Subsequent calls are no-ops.
func (h *Handle) Release() {
	if h == nil {
		return
	}
	h.once.Do(func() {
		if h.release != nil {
			h.release(h.token)
		}
	})
}

// DeliverFunc hands a buffer to the foreign side. The receiver owns buf
// after the call returns.
type DeliverFunc func(token uintptr, buf BufferHandle)

// Action is one continuation of a Completion.
type Action struct {
	Handle  *Handle
	Deliver DeliverFunc
}

// NewAction builds an Action from a token and its two callbacks.
func NewAction(token uintptr, deliver DeliverFunc, release ReleaseFunc) Action {
	return Action{Handle: NewHandle(token, release), Deliver: deliver}
}
