package rpc

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/emdb/internal/codec"
	"github.com/roach88/emdb/internal/engine"
	"github.com/roach88/emdb/internal/value"
)

// Request is one decoded call envelope.
type Request struct {
	Method  Method
	Session uuid.UUID // uuid.Nil selects the default session
	Txn     uuid.NullUUID
	Params  []byte
}

// Execute decodes req's parameters, runs the method on e and returns the
// encoded result.
func Execute(ctx context.Context, e *engine.Engine, req Request) ([]byte, error) {
	if !req.Method.Valid() {
		return nil, wrap(req.Method, ErrMethodNotSupported)
	}
	params, err := codec.DecodeParams(req.Params)
	if err != nil {
		return nil, wrap(req.Method, err)
	}
	result, err := Dispatch(ctx, e, req.Method, engine.Call{Session: req.Session, Txn: req.Txn}, params)
	if err != nil {
		return nil, err
	}
	out, err := codec.Encode(result)
	if err != nil {
		return nil, wrap(req.Method, err)
	}
	return out, nil
}

// Dispatch runs method m with decoded params.
func Dispatch(ctx context.Context, e *engine.Engine, m Method, c engine.Call, params value.Array) (value.Value, error) {
	h, ok := handlers[m]
	if !ok {
		return nil, wrap(m, ErrMethodNotSupported)
	}
	v, err := h(ctx, e, c, params)
	if err != nil {
		return nil, wrap(m, err)
	}
	if v == nil {
		v = value.None{}
	}
	return v, nil
}

type handler func(ctx context.Context, e *engine.Engine, c engine.Call, params value.Array) (value.Value, error)

var handlers = map[Method]handler{
	Ping:           ping,
	Use:            use,
	Set:            set,
	Unset:          unset,
	Select:         selectRecords,
	Insert:         insert,
	Create:         create,
	Update:         update,
	Upsert:         upsert,
	Merge:          merge,
	Patch:          patch,
	Delete:         deleteRecords,
	Version:        version,
	Query:          query,
	Relate:         relate,
	Run:            run,
	InsertRelation: insertRelation,
	Sessions:       sessions,
	Attach:         attach,
	Detach:         detach,
	Begin:          begin,
	Commit:         commit,
	Cancel:         cancel,
	Reset:          reset,
}

func ping(_ context.Context, e *engine.Engine, c engine.Call, _ value.Array) (value.Value, error) {
	return nil, e.Ping(c)
}

func use(_ context.Context, e *engine.Engine, c engine.Call, p value.Array) (value.Value, error) {
	if err := expect(p, 0, 2); err != nil {
		return nil, err
	}
	return nil, e.Use(c, arg(p, 0), arg(p, 1))
}

func set(_ context.Context, e *engine.Engine, c engine.Call, p value.Array) (value.Value, error) {
	if err := expect(p, 1, 2); err != nil {
		return nil, err
	}
	name, err := stringArg(p, 0, "name")
	if err != nil {
		return nil, err
	}
	return nil, e.Set(c, name, arg(p, 1))
}

func unset(_ context.Context, e *engine.Engine, c engine.Call, p value.Array) (value.Value, error) {
	if err := expect(p, 1, 1); err != nil {
		return nil, err
	}
	name, err := stringArg(p, 0, "name")
	if err != nil {
		return nil, err
	}
	return nil, e.Unset(c, name)
}

func selectRecords(ctx context.Context, e *engine.Engine, c engine.Call, p value.Array) (value.Value, error) {
	if err := expect(p, 1, 1); err != nil {
		return nil, err
	}
	return e.Select(ctx, c, arg(p, 0))
}

// insertArgs reads [what?, data]. A single parameter is the data.
func insertArgs(p value.Array) (value.Value, value.Value, error) {
	if err := expect(p, 1, 2); err != nil {
		return nil, nil, err
	}
	if len(p) == 1 {
		return value.None{}, arg(p, 0), nil
	}
	return arg(p, 0), arg(p, 1), nil
}

func insert(ctx context.Context, e *engine.Engine, c engine.Call, p value.Array) (value.Value, error) {
	what, data, err := insertArgs(p)
	if err != nil {
		return nil, err
	}
	return arrayResult(e.Insert(ctx, c, what, data))
}

func insertRelation(ctx context.Context, e *engine.Engine, c engine.Call, p value.Array) (value.Value, error) {
	what, data, err := insertArgs(p)
	if err != nil {
		return nil, err
	}
	return arrayResult(e.InsertRelation(ctx, c, what, data))
}

func arrayResult(a value.Array, err error) (value.Value, error) {
	if err != nil {
		return nil, err
	}
	return a, nil
}

func create(ctx context.Context, e *engine.Engine, c engine.Call, p value.Array) (value.Value, error) {
	if err := expect(p, 1, 2); err != nil {
		return nil, err
	}
	return e.Create(ctx, c, arg(p, 0), arg(p, 1))
}

func update(ctx context.Context, e *engine.Engine, c engine.Call, p value.Array) (value.Value, error) {
	if err := expect(p, 1, 2); err != nil {
		return nil, err
	}
	return e.Update(ctx, c, arg(p, 0), arg(p, 1))
}

func upsert(ctx context.Context, e *engine.Engine, c engine.Call, p value.Array) (value.Value, error) {
	if err := expect(p, 1, 2); err != nil {
		return nil, err
	}
	return e.Upsert(ctx, c, arg(p, 0), arg(p, 1))
}

func merge(ctx context.Context, e *engine.Engine, c engine.Call, p value.Array) (value.Value, error) {
	if err := expect(p, 2, 2); err != nil {
		return nil, err
	}
	return e.Merge(ctx, c, arg(p, 0), arg(p, 1))
}

func patch(ctx context.Context, e *engine.Engine, c engine.Call, p value.Array) (value.Value, error) {
	if err := expect(p, 1, 3); err != nil {
		return nil, err
	}
	ops := arg(p, 1)
	if value.IsNullish(ops) {
		ops = value.Array{}
	}
	return e.Patch(ctx, c, arg(p, 0), ops, value.Truthy(arg(p, 2)))
}

func deleteRecords(ctx context.Context, e *engine.Engine, c engine.Call, p value.Array) (value.Value, error) {
	if err := expect(p, 1, 1); err != nil {
		return nil, err
	}
	return e.Delete(ctx, c, arg(p, 0))
}

func version(_ context.Context, _ *engine.Engine, _ engine.Call, _ value.Array) (value.Value, error) {
	return value.String(engine.VersionString()), nil
}

func query(ctx context.Context, e *engine.Engine, c engine.Call, p value.Array) (value.Value, error) {
	if err := expect(p, 1, 2); err != nil {
		return nil, err
	}
	sql, err := stringArg(p, 0, "query")
	if err != nil {
		return nil, err
	}
	vars, err := optionalVars(arg(p, 1))
	if err != nil {
		return nil, err
	}
	return arrayResult(e.Query(ctx, c, sql, vars))
}

func relate(ctx context.Context, e *engine.Engine, c engine.Call, p value.Array) (value.Value, error) {
	if err := expect(p, 3, 4); err != nil {
		return nil, err
	}
	return e.Relate(ctx, c, arg(p, 0), arg(p, 1), arg(p, 2), arg(p, 3))
}

func run(ctx context.Context, e *engine.Engine, c engine.Call, p value.Array) (value.Value, error) {
	if err := expect(p, 1, 3); err != nil {
		return nil, err
	}
	name, err := stringArg(p, 0, "function")
	if err != nil {
		return nil, err
	}
	return e.Run(ctx, c, name, arg(p, 1), arg(p, 2))
}

func sessions(_ context.Context, e *engine.Engine, _ engine.Call, _ value.Array) (value.Value, error) {
	ids := e.Sessions()
	out := make(value.Array, len(ids))
	for i, id := range ids {
		out[i] = value.UUID(id)
	}
	return out, nil
}

func attach(_ context.Context, e *engine.Engine, c engine.Call, _ value.Array) (value.Value, error) {
	return nil, e.Attach(c)
}

func detach(_ context.Context, e *engine.Engine, c engine.Call, _ value.Array) (value.Value, error) {
	return nil, e.Detach(c)
}

func begin(ctx context.Context, e *engine.Engine, _ engine.Call, _ value.Array) (value.Value, error) {
	id, err := e.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return value.UUID(id), nil
}

func commit(_ context.Context, e *engine.Engine, _ engine.Call, p value.Array) (value.Value, error) {
	id, err := transactionArg(p)
	if err != nil {
		return nil, err
	}
	return nil, e.Commit(id)
}

func cancel(_ context.Context, e *engine.Engine, _ engine.Call, p value.Array) (value.Value, error) {
	id, err := transactionArg(p)
	if err != nil {
		return nil, err
	}
	return nil, e.Cancel(id)
}

func reset(_ context.Context, e *engine.Engine, c engine.Call, _ value.Array) (value.Value, error) {
	return nil, e.Reset(c)
}

// Describe renders a method call for logs.
func Describe(m Method, c engine.Call) string {
	s := m.String()
	if c.Session != uuid.Nil {
		s += fmt.Sprintf(" session=%s", c.Session)
	}
	if c.Txn.Valid {
		s += fmt.Sprintf(" txn=%s", c.Txn.UUID)
	}
	return s
}
