package host

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/emdb/internal/bridge"
	"github.com/roach88/emdb/internal/codec"
	"github.com/roach88/emdb/internal/rpc"
	"github.com/roach88/emdb/internal/value"
)

// Failure is an error delivered through a failure action. Message is the
// decoded text the foreign side would see.
type Failure struct {
	Message string
}

func (f *Failure) Error() string {
	return f.Message
}

// Client is a blocking view of one engine id for Go callers. It goes
// through the same queue and completion path as foreign calls.
type Client struct {
	rt *Runtime
	id int32
}

// Client returns a Client for engine id.
func (r *Runtime) Client(id int32) *Client {
	return &Client{rt: r, id: id}
}

// ID returns the engine id.
func (c *Client) ID() int32 {
	return c.id
}

// Connect connects engine id. options may be nil.
func (c *Client) Connect(ctx context.Context, endpoint string, options value.Value) error {
	var b []byte
	if !value.IsNone(options) {
		var err error
		if b, err = codec.Encode(options); err != nil {
			return err
		}
	}
	_, err := c.rt.await(ctx, func(done *bridge.Completion) {
		c.rt.Connect(c.id, endpoint, b, done)
	})
	return err
}

// Call runs method m on the default session outside any transaction.
func (c *Client) Call(ctx context.Context, m rpc.Method, params ...value.Value) (value.Value, error) {
	return c.CallIn(ctx, uuid.Nil, uuid.NullUUID{}, m, params...)
}

// CallIn runs method m on session inside txn.
func (c *Client) CallIn(ctx context.Context, session uuid.UUID, txn uuid.NullUUID, m rpc.Method, params ...value.Value) (value.Value, error) {
	b, err := codec.Encode(value.Array(params))
	if err != nil {
		return nil, err
	}
	var tb []byte
	if txn.Valid {
		tb = txn.UUID[:]
	}
	out, err := c.CallRaw(ctx, int32(m), idBytes(session), tb, b)
	if err != nil {
		return nil, err
	}
	return codec.Decode(out)
}

// CallRaw runs a method with pre-encoded ids and parameters and returns
// the encoded result.
func (c *Client) CallRaw(ctx context.Context, method int32, session, txn, params []byte) ([]byte, error) {
	return c.rt.await(ctx, func(done *bridge.Completion) {
		c.rt.Execute(c.id, method, session, txn, params, done)
	})
}

// Import runs a dump.
func (c *Client) Import(ctx context.Context, dump string) error {
	_, err := c.rt.await(ctx, func(done *bridge.Completion) {
		c.rt.Import(c.id, dump, done)
	})
	return err
}

// Export returns the dump of the engine. config may be nil.
func (c *Client) Export(ctx context.Context, config value.Value) (string, error) {
	var b []byte
	if !value.IsNone(config) {
		var err error
		if b, err = codec.Encode(config); err != nil {
			return "", err
		}
	}
	out, err := c.rt.await(ctx, func(done *bridge.Completion) {
		c.rt.Export(c.id, b, done)
	})
	if err != nil {
		return "", err
	}
	v, err := codec.Decode(out)
	if err != nil {
		return "", err
	}
	s, ok := v.(value.String)
	if !ok {
		return "", fmt.Errorf("export: expected string, found %s", v.Kind())
	}
	return string(s), nil
}

// Dispose disposes the engine.
func (c *Client) Dispose() {
	c.rt.Dispose(c.id)
}

type outcome struct {
	payload []byte
	err     error
}

// await starts a call with a Completion wired to a channel and waits for
// its outcome. Buffers come from the runtime's private heap allocator and
// are freed once copied.
func (r *Runtime) await(ctx context.Context, start func(*bridge.Completion)) ([]byte, error) {
	ch := make(chan outcome, 1)
	success := bridge.NewAction(0, func(_ uintptr, buf bridge.BufferHandle) {
		b, err := r.take(buf)
		ch <- outcome{payload: b, err: err}
	}, nil)
	failure := bridge.NewAction(0, func(_ uintptr, buf bridge.BufferHandle) {
		b, err := r.take(buf)
		if err != nil {
			ch <- outcome{err: err}
			return
		}
		ch <- outcome{err: decodeFailure(b)}
	}, nil)
	start(bridge.NewCompletion(r.local, success, failure, bridge.WithLogger(r.logger)))

	select {
	case o := <-ch:
		return o.payload, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *Runtime) take(buf bridge.BufferHandle) ([]byte, error) {
	b, err := r.local.Bytes(buf)
	if err != nil {
		return nil, err
	}
	out := append([]byte(nil), b...)
	return out, r.local.Free(buf)
}

func decodeFailure(b []byte) error {
	v, err := codec.Decode(b)
	if err != nil {
		return fmt.Errorf("undecodable failure payload: %w", err)
	}
	if s, ok := v.(value.String); ok {
		return &Failure{Message: string(s)}
	}
	return &Failure{Message: fmt.Sprintf("%v", v)}
}
