package rpc

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/emdb/internal/codec"
	"github.com/roach88/emdb/internal/engine"
	"github.com/roach88/emdb/internal/store"
	"github.com/roach88/emdb/internal/value"
)

func newEngine(t *testing.T) *engine.Engine {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "rpc.db"))
	require.NoError(t, err)
	e := engine.New(s, engine.Options{}, engine.WithIDGenerator(engine.NewFixedIDs("k1", "k2", "k3")))
	t.Cleanup(func() { e.Dispose() })
	return e
}

// call encodes params, runs Execute and decodes the result.
func call(t *testing.T, e *engine.Engine, req Request, params ...value.Value) (value.Value, error) {
	t.Helper()
	b, err := codec.Encode(value.Array(params))
	require.NoError(t, err)
	req.Params = b
	out, err := Execute(context.Background(), e, req)
	if err != nil {
		return nil, err
	}
	v, err := codec.Decode(out)
	require.NoError(t, err)
	return v, nil
}

func mustCall(t *testing.T, e *engine.Engine, m Method, params ...value.Value) value.Value {
	t.Helper()
	v, err := call(t, e, Request{Method: m}, params...)
	require.NoError(t, err)
	return v
}

func TestExecute_Ping(t *testing.T) {
	e := newEngine(t)
	assert.Equal(t, value.None{}, mustCall(t, e, Ping))
}

func TestExecute_Version(t *testing.T) {
	e := newEngine(t)
	assert.Equal(t, value.String("emdb-"+engine.Version), mustCall(t, e, Version))
}

func TestExecute_UnknownMethod(t *testing.T) {
	e := newEngine(t)
	_, err := call(t, e, Request{Method: 99})
	require.Error(t, err)
	assert.Equal(t, "method not supported", err.Error())

	m, ok := MethodOf(err)
	require.True(t, ok)
	assert.Equal(t, Method(99), m)
}

func TestExecute_BadParams(t *testing.T) {
	e := newEngine(t)

	_, err := Execute(context.Background(), e, Request{Method: Ping, Params: []byte{0xff}})
	assert.ErrorIs(t, err, codec.ErrCodec)

	// A map is not a parameter array.
	b, err := codec.Encode(value.Object{"a": value.Int(1)})
	require.NoError(t, err)
	_, err = Execute(context.Background(), e, Request{Method: Ping, Params: b})
	assert.ErrorIs(t, err, ErrInvalidParams)
}

func TestExecute_ParamCount(t *testing.T) {
	e := newEngine(t)

	_, err := call(t, e, Request{Method: Merge}, value.Table("person"))
	require.ErrorIs(t, err, ErrInvalidParams)
	assert.Contains(t, err.Error(), "expected 2 params, found 1")

	_, err = call(t, e, Request{Method: Use}, value.String("a"), value.String("b"), value.String("c"))
	require.ErrorIs(t, err, ErrInvalidParams)
	assert.Contains(t, err.Error(), "expected 0 to 2 params, found 3")
}

func TestExecute_RecordLifecycle(t *testing.T) {
	e := newEngine(t)
	mustCall(t, e, Use, value.String("test"), value.String("test"))

	created := mustCall(t, e, Create, value.NewRecordID("person", value.String("tobie")), value.Object{"name": value.String("Tobie")})
	assert.Equal(t, value.Object{
		"id":   value.NewRecordID("person", value.String("tobie")),
		"name": value.String("Tobie"),
	}, created)

	all := mustCall(t, e, Select, value.Table("person"))
	require.IsType(t, value.Array{}, all)
	assert.Len(t, all, 1)

	merged := mustCall(t, e, Merge, value.NewRecordID("person", value.String("tobie")), value.Object{"age": value.Int(30)})
	assert.Equal(t, value.Int(30), merged.(value.Object)["age"])

	mustCall(t, e, Delete, value.NewRecordID("person", value.String("tobie")))
	assert.Equal(t, value.Array{}, mustCall(t, e, Select, value.Table("person")))
}

func TestExecute_InsertSingleParam(t *testing.T) {
	e := newEngine(t)
	mustCall(t, e, Use, value.String("test"), value.String("test"))

	got := mustCall(t, e, Insert, value.Object{"id": value.NewRecordID("person", value.String("a"))})
	assert.Equal(t, value.Array{value.Object{"id": value.NewRecordID("person", value.String("a"))}}, got)
}

func TestExecute_SetRequiresName(t *testing.T) {
	e := newEngine(t)
	_, err := call(t, e, Request{Method: Set}, value.Int(1), value.Int(2))
	require.ErrorIs(t, err, ErrInvalidParams)
	assert.Contains(t, err.Error(), "name: expected string, found int")
}

func TestExecute_Sessions(t *testing.T) {
	e := newEngine(t)
	id := uuid.MustParse("0190f5a4-7b6c-7def-8abc-0123456789ab")

	_, err := call(t, e, Request{Method: Attach, Session: id})
	require.NoError(t, err)
	assert.Equal(t, value.Array{value.UUID(id)}, mustCall(t, e, Sessions))

	_, err = call(t, e, Request{Method: Attach, Session: id})
	assert.ErrorIs(t, err, engine.ErrSessionExists)

	_, err = call(t, e, Request{Method: Detach, Session: id})
	require.NoError(t, err)
	assert.Equal(t, value.Array{}, mustCall(t, e, Sessions))
}

func TestExecute_Transactions(t *testing.T) {
	e := newEngine(t)
	mustCall(t, e, Use, value.String("test"), value.String("test"))

	begun := mustCall(t, e, Begin)
	id, ok := begun.(value.UUID)
	require.True(t, ok)
	txn := uuid.NullUUID{UUID: uuid.UUID(id), Valid: true}

	_, err := call(t, e, Request{Method: Create, Txn: txn}, value.NewRecordID("person", value.String("a")))
	require.NoError(t, err)

	mustCall(t, e, Commit, id)
	assert.Len(t, mustCall(t, e, Select, value.Table("person")), 1)

	_, err = call(t, e, Request{Method: Commit}, id)
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrTransactionNotFound)
}

func TestExecute_CancelDiscards(t *testing.T) {
	e := newEngine(t)
	mustCall(t, e, Use, value.String("test"), value.String("test"))

	id := mustCall(t, e, Begin).(value.UUID)
	txn := uuid.NullUUID{UUID: uuid.UUID(id), Valid: true}
	_, err := call(t, e, Request{Method: Create, Txn: txn}, value.NewRecordID("person", value.String("a")))
	require.NoError(t, err)

	mustCall(t, e, Cancel, id)
	assert.Equal(t, value.Array{}, mustCall(t, e, Select, value.Table("person")))
}

func TestExecute_CommitNeedsUUID(t *testing.T) {
	e := newEngine(t)
	_, err := call(t, e, Request{Method: Commit}, value.String("nope"))
	require.ErrorIs(t, err, ErrInvalidParams)
	assert.Contains(t, err.Error(), "expected transaction UUID")
}

func TestExecute_Query(t *testing.T) {
	e := newEngine(t)
	got := mustCall(t, e, Query, value.String("SELECT $x AS x"), value.Object{"x": value.Int(7)})

	results, ok := got.(value.Array)
	require.True(t, ok)
	require.Len(t, results, 1)
	entry := results[0].(value.Object)
	assert.Equal(t, value.String("OK"), entry["status"])
}

func TestDescribe(t *testing.T) {
	id := uuid.MustParse("0190f5a4-7b6c-7def-8abc-0123456789ab")
	assert.Equal(t, "ping", Describe(Ping, engine.Call{}))
	assert.Equal(t, "select session="+id.String(), Describe(Select, engine.Call{Session: id}))
}
