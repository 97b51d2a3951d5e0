package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/emdb/internal/value"
)

var ctx = context.Background()

func TestCreateSelect(t *testing.T) {
	e := newScopedEngine(t, Options{}, WithIDGenerator(NewFixedIDs("k1")))

	tobie := mustCreate(t, e, defaultCall, rid("person", value.String("tobie")), value.Object{"name": value.String("Tobie")})
	assert.Equal(t, value.Object{
		"id":   rid("person", value.String("tobie")),
		"name": value.String("Tobie"),
	}, tobie)

	generated := mustCreate(t, e, defaultCall, value.Table("person"), nil)
	assert.Equal(t, value.Object{"id": rid("person", value.String("k1"))}, generated)

	got, err := e.Select(ctx, defaultCall, rid("person", value.String("tobie")))
	require.NoError(t, err)
	assert.Equal(t, tobie, got)

	all, err := e.Select(ctx, defaultCall, value.String("person"))
	require.NoError(t, err)
	assert.Equal(t, value.Array{generated, tobie}, all)

	missing, err := e.Select(ctx, defaultCall, rid("person", value.Int(404)))
	require.NoError(t, err)
	assert.Equal(t, value.None{}, missing)
}

func TestCreate_Exists(t *testing.T) {
	e := newScopedEngine(t, Options{})
	mustCreate(t, e, defaultCall, rid("person", value.String("tobie")), nil)

	_, err := e.Create(ctx, defaultCall, rid("person", value.String("tobie")), nil)
	assert.ErrorIs(t, err, ErrRecordExists)
	assert.EqualError(t, err, "record `person:tobie` already exists")
}

func TestCreate_InvalidParams(t *testing.T) {
	e := newScopedEngine(t, Options{})

	_, err := e.Create(ctx, defaultCall, value.Int(1), nil)
	assert.ErrorIs(t, err, ErrInvalidParams)

	_, err = e.Create(ctx, defaultCall, value.Table("person"), value.String("data"))
	assert.ErrorIs(t, err, ErrInvalidParams)

	_, err = e.Create(ctx, defaultCall, rid("person", value.Bool(true)), nil)
	assert.ErrorIs(t, err, ErrInvalidParams)
}

func TestDataOperations_NeedScope(t *testing.T) {
	e := newTestEngine(t, Options{})

	_, err := e.Select(ctx, defaultCall, value.Table("person"))
	assert.ErrorIs(t, err, ErrNoNamespace)
	assert.EqualError(t, err, "no namespace selected")

	require.NoError(t, e.Use(defaultCall, value.String("test"), nil))
	_, err = e.Create(ctx, defaultCall, value.Table("person"), nil)
	assert.ErrorIs(t, err, ErrNoDatabase)
}

func TestInsert(t *testing.T) {
	e := newScopedEngine(t, Options{}, WithIDGenerator(NewFixedIDs("gen")))

	got, err := e.Insert(ctx, defaultCall, value.Table("person"), value.Array{
		value.Object{"id": value.Int(1), "name": value.String("a")},
		value.Object{"id": rid("person", value.Int(2))},
		value.Object{"name": value.String("c")},
	})
	require.NoError(t, err)
	assert.Equal(t, value.Array{
		value.Object{"id": rid("person", value.Int(1)), "name": value.String("a")},
		value.Object{"id": rid("person", value.Int(2))},
		value.Object{"id": rid("person", value.String("gen")), "name": value.String("c")},
	}, got)

	// Without a table, records name their own.
	got, err = e.Insert(ctx, defaultCall, value.None{}, value.Object{"id": rid("animal", value.String("cat"))})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestInsert_IsAtomic(t *testing.T) {
	e := newScopedEngine(t, Options{})
	mustCreate(t, e, defaultCall, rid("person", value.Int(2)), nil)

	_, err := e.Insert(ctx, defaultCall, value.Table("person"), value.Array{
		value.Object{"id": value.Int(1)},
		value.Object{"id": value.Int(2)},
	})
	assert.ErrorIs(t, err, ErrRecordExists)

	got, err := e.Select(ctx, defaultCall, rid("person", value.Int(1)))
	require.NoError(t, err)
	assert.Equal(t, value.None{}, got)
}

func TestInsert_Errors(t *testing.T) {
	e := newScopedEngine(t, Options{})

	tests := []struct {
		name       string
		what, data value.Value
	}{
		{"no table and no id", value.None{}, value.Object{"a": value.Int(1)}},
		{"id in another table", value.Table("person"), value.Object{"id": rid("animal", value.Int(1))}},
		{"bad data", value.Table("person"), value.Int(1)},
		{"bad element", value.Table("person"), value.Array{value.Int(1)}},
		{"record target", rid("person", value.Int(1)), value.Object{}},
		{"bad key", value.Table("person"), value.Object{"id": value.Float(1.5)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Insert(ctx, defaultCall, tt.what, tt.data)
			assert.ErrorIs(t, err, ErrInvalidParams)
		})
	}
}

func TestUpdateUpsert(t *testing.T) {
	e := newScopedEngine(t, Options{})
	mustCreate(t, e, defaultCall, rid("person", value.String("a")), value.Object{"n": value.Int(1), "keep": value.Bool(true)})
	mustCreate(t, e, defaultCall, rid("person", value.String("b")), value.Object{"n": value.Int(2)})

	got, err := e.Update(ctx, defaultCall, rid("person", value.String("a")), value.Object{"n": value.Int(10)})
	require.NoError(t, err)
	assert.Equal(t, value.Object{"id": rid("person", value.String("a")), "n": value.Int(10)}, got)

	got, err = e.Update(ctx, defaultCall, rid("person", value.String("zzz")), value.Object{"n": value.Int(1)})
	require.NoError(t, err)
	assert.Equal(t, value.None{}, got)

	// Without data, records come back unchanged.
	got, err = e.Update(ctx, defaultCall, value.Table("person"), nil)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = e.Update(ctx, defaultCall, value.Table("person"), value.Object{"n": value.Int(0)})
	require.NoError(t, err)
	for _, doc := range got.(value.Array) {
		assert.Equal(t, value.Int(0), doc.(value.Object)["n"])
	}

	got, err = e.Upsert(ctx, defaultCall, rid("person", value.String("c")), value.Object{"n": value.Int(3)})
	require.NoError(t, err)
	assert.Equal(t, value.Object{"id": rid("person", value.String("c")), "n": value.Int(3)}, got)

	got, err = e.Upsert(ctx, defaultCall, rid("person", value.String("c")), value.Object{"n": value.Int(4)})
	require.NoError(t, err)
	assert.Equal(t, value.Int(4), got.(value.Object)["n"])
}

func TestUpdate_KeepsIdentity(t *testing.T) {
	e := newScopedEngine(t, Options{})
	mustCreate(t, e, defaultCall, rid("person", value.String("a")), nil)

	got, err := e.Update(ctx, defaultCall, rid("person", value.String("a")), value.Object{
		"id": rid("person", value.String("hijack")),
	})
	require.NoError(t, err)
	assert.Equal(t, rid("person", value.String("a")), got.(value.Object)["id"])
}

func TestMerge(t *testing.T) {
	e := newScopedEngine(t, Options{})
	mustCreate(t, e, defaultCall, rid("person", value.String("a")), value.Object{
		"name":  value.Object{"first": value.String("Tobie"), "last": value.String("M")},
		"email": value.String("t@example.com"),
	})

	got, err := e.Merge(ctx, defaultCall, rid("person", value.String("a")), value.Object{
		"name":  value.Object{"last": value.String("Morgan")},
		"email": value.None{},
		"age":   value.Int(30),
	})
	require.NoError(t, err)
	assert.Equal(t, value.Object{
		"id":   rid("person", value.String("a")),
		"name": value.Object{"first": value.String("Tobie"), "last": value.String("Morgan")},
		"age":  value.Int(30),
	}, got)

	_, err = e.Merge(ctx, defaultCall, rid("person", value.String("a")), value.None{})
	assert.ErrorIs(t, err, ErrInvalidParams)
}

func TestPatch(t *testing.T) {
	e := newScopedEngine(t, Options{})
	mustCreate(t, e, defaultCall, rid("person", value.String("a")), value.Object{"n": value.Int(1)})

	ops := value.Array{
		value.Object{"op": value.String("replace"), "path": value.String("/n"), "value": value.Int(2)},
		value.Object{"op": value.String("add"), "path": value.String("/tags"), "value": value.Array{}},
		value.Object{"op": value.String("add"), "path": value.String("/tags/-"), "value": value.String("x")},
	}
	got, err := e.Patch(ctx, defaultCall, rid("person", value.String("a")), ops, false)
	require.NoError(t, err)
	assert.Equal(t, value.Object{
		"id":   rid("person", value.String("a")),
		"n":    value.Int(2),
		"tags": value.Array{value.String("x")},
	}, got)

	diff, err := e.Patch(ctx, defaultCall, rid("person", value.String("a")), value.Array{
		value.Object{"op": value.String("remove"), "path": value.String("/tags")},
	}, true)
	require.NoError(t, err)
	assert.Equal(t, value.Array{
		value.Object{"op": value.String("remove"), "path": value.String("/tags")},
	}, diff)

	// A failed test op leaves the record alone.
	_, err = e.Patch(ctx, defaultCall, rid("person", value.String("a")), value.Array{
		value.Object{"op": value.String("replace"), "path": value.String("/n"), "value": value.Int(9)},
		value.Object{"op": value.String("test"), "path": value.String("/n"), "value": value.Int(1)},
	}, false)
	assert.ErrorIs(t, err, ErrPatchTest)
	got, err = e.Select(ctx, defaultCall, rid("person", value.String("a")))
	require.NoError(t, err)
	assert.Equal(t, value.Int(2), got.(value.Object)["n"])
}

func TestDelete(t *testing.T) {
	e := newScopedEngine(t, Options{})
	a := mustCreate(t, e, defaultCall, rid("person", value.String("a")), nil)
	b := mustCreate(t, e, defaultCall, rid("person", value.String("b")), nil)
	c := mustCreate(t, e, defaultCall, rid("person", value.String("c")), nil)

	got, err := e.Delete(ctx, defaultCall, rid("person", value.String("a")))
	require.NoError(t, err)
	assert.Equal(t, a, got)

	got, err = e.Delete(ctx, defaultCall, rid("person", value.String("a")))
	require.NoError(t, err)
	assert.Equal(t, value.None{}, got)

	got, err = e.Delete(ctx, defaultCall, value.Table("person"))
	require.NoError(t, err)
	assert.Equal(t, value.Array{b, c}, got)

	got, err = e.Select(ctx, defaultCall, value.Table("person"))
	require.NoError(t, err)
	assert.Equal(t, value.Array{}, got)
}

func TestRelate(t *testing.T) {
	e := newScopedEngine(t, Options{}, WithIDGenerator(NewFixedIDs("e1", "e2", "e3")))
	a, b, c := rid("person", value.String("a")), rid("person", value.String("b")), rid("person", value.String("c"))

	got, err := e.Relate(ctx, defaultCall, a, value.Table("knows"), b, value.Object{"since": value.Int(2020)})
	require.NoError(t, err)
	assert.Equal(t, value.Object{
		"id":    rid("knows", value.String("e1")),
		"in":    a,
		"out":   b,
		"since": value.Int(2020),
	}, got)

	got, err = e.Relate(ctx, defaultCall, value.Array{a, b}, value.Table("knows"), c, nil)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, rid("knows", value.String("e3")), got.(value.Array)[1].(value.Object)["id"])

	got, err = e.Relate(ctx, defaultCall, c, rid("likes", value.String("fixed")), a, nil)
	require.NoError(t, err)
	assert.Equal(t, rid("likes", value.String("fixed")), got.(value.Object)["id"])

	_, err = e.Relate(ctx, defaultCall, value.Array{a, b}, rid("likes", value.String("x")), c, nil)
	assert.ErrorIs(t, err, ErrInvalidParams)
	_, err = e.Relate(ctx, defaultCall, value.String("a"), value.Table("knows"), c, nil)
	assert.ErrorIs(t, err, ErrInvalidParams)

	// Updating an edge cannot move its ends.
	upd, err := e.Update(ctx, defaultCall, rid("knows", value.String("e1")), value.Object{"since": value.Int(2021)})
	require.NoError(t, err)
	assert.Equal(t, a, upd.(value.Object)["in"])
	assert.Equal(t, b, upd.(value.Object)["out"])
}

func TestInsertRelation(t *testing.T) {
	e := newScopedEngine(t, Options{}, WithIDGenerator(NewFixedIDs("r1")))
	a, b := rid("person", value.String("a")), rid("person", value.String("b"))

	got, err := e.InsertRelation(ctx, defaultCall, value.Table("knows"), value.Object{"in": a, "out": b})
	require.NoError(t, err)
	assert.Equal(t, value.Array{value.Object{"id": rid("knows", value.String("r1")), "in": a, "out": b}}, got)

	_, err = e.InsertRelation(ctx, defaultCall, value.Table("knows"), value.Object{"in": a})
	assert.ErrorIs(t, err, ErrInvalidParams)
	assert.ErrorContains(t, err, "out: expected record id, found none")
}

func TestStrictMode(t *testing.T) {
	e := newScopedEngine(t, Options{Strict: true})

	_, err := e.Create(ctx, defaultCall, value.Table("person"), nil)
	assert.ErrorIs(t, err, ErrTableNotFound)
	assert.EqualError(t, err, "table `person` does not exist")

	_, err = e.Upsert(ctx, defaultCall, rid("person", value.Int(1)), nil)
	assert.ErrorIs(t, err, ErrTableNotFound)

	_, err = e.Run(ctx, defaultCall, "table::define", nil, value.Array{value.String("person")})
	require.NoError(t, err)

	mustCreate(t, e, defaultCall, rid("person", value.Int(1)), nil)
}
