package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/emdb/internal/value"
)

func TestDefineTable(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	db := s.DB()

	ok, err := TableExists(ctx, db, testScope, "person")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, DefineTable(ctx, db, testScope, "person", false))
	require.NoError(t, DefineTable(ctx, db, testScope, "person", false))
	require.NoError(t, DefineTable(ctx, db, testScope, "likes", true))
	// A later plain definition does not clear the relation flag.
	require.NoError(t, DefineTable(ctx, db, testScope, "likes", false))

	ok, err = TableExists(ctx, db, testScope, "person")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = TableExists(ctx, db, Scope{NS: "other", DB: "test"}, "person")
	require.NoError(t, err)
	assert.False(t, ok, "tables are scoped by namespace")

	tables, err := ListTables(ctx, db, testScope)
	require.NoError(t, err)
	assert.Equal(t, []TableInfo{{Name: "likes", Relation: true}, {Name: "person"}}, tables)

	tables, err = ListTables(ctx, db, Scope{NS: "empty", DB: "empty"})
	require.NoError(t, err)
	assert.NotNil(t, tables)
	assert.Empty(t, tables)
}

func TestInsertAndGetRecord(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	doc := insertTestRecord(t, s, testScope, "person", value.String("tobie"), value.Object{
		"name": value.String("Tobie"),
		"tags": value.Array{value.String("a"), value.Int(1)},
	})

	got, ok, err := GetRecord(ctx, s.DB(), testScope, "person", value.String("tobie"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, value.Equal(doc, got), "got %#v", got)

	_, ok, err = GetRecord(ctx, s.DB(), testScope, "person", value.String("jaime"))
	require.NoError(t, err)
	assert.False(t, ok)

	// Unicode normalisation: decomposed and composed keys are the same record.
	insertTestRecord(t, s, testScope, "city", value.String("cafe\u0301"), nil)
	_, ok, err = GetRecord(ctx, s.DB(), testScope, "city", value.String("caf\u00e9"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestInsertRecord_Exists(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	insertTestRecord(t, s, testScope, "person", value.Int(1), nil)

	err := InsertRecord(ctx, s.DB(), testScope, "person", value.Int(1), value.Object{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRecordExists))
	assert.Equal(t, "record `person:1` already exists", err.Error())

	var exists *ExistsError
	require.ErrorAs(t, err, &exists)
	assert.Equal(t, "person", exists.ID.Table)
}

func TestInsertRecord_InvalidKey(t *testing.T) {
	s := createTestStore(t)
	err := InsertRecord(context.Background(), s.DB(), testScope, "person", value.Bool(true), value.Object{})
	assert.Error(t, err)
}

func TestPutRecord_Replaces(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	key := value.Int(7)

	require.NoError(t, PutRecord(ctx, s.DB(), testScope, "item", key, value.Object{"v": value.Int(1)}))
	require.NoError(t, PutRecord(ctx, s.DB(), testScope, "item", key, value.Object{"v": value.Int(2)}))

	docs, err := ListRecords(ctx, s.DB(), testScope, "item")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, value.Int(2), docs[0]["v"])
}

func TestListRecords_Ordered(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	for _, k := range []string{"c", "a", "b"} {
		insertTestRecord(t, s, testScope, "letter", value.String(k), nil)
	}

	docs, err := ListRecords(ctx, s.DB(), testScope, "letter")
	require.NoError(t, err)
	var keys []string
	for _, d := range docs {
		keys = append(keys, d["id"].(value.RecordID).String())
	}
	assert.Equal(t, []string{"letter:a", "letter:b", "letter:c"}, keys)

	docs, err = ListRecords(ctx, s.DB(), testScope, "missing")
	require.NoError(t, err)
	assert.NotNil(t, docs)
	assert.Empty(t, docs)
}

func TestDeleteRecord(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	doc := insertTestRecord(t, s, testScope, "person", value.String("tobie"), value.Object{"age": value.Int(30)})

	got, ok, err := DeleteRecord(ctx, s.DB(), testScope, "person", value.String("tobie"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, value.Equal(doc, got))

	_, ok, err = DeleteRecord(ctx, s.DB(), testScope, "person", value.String("tobie"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteTable(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	insertTestRecord(t, s, testScope, "person", value.Int(1), nil)
	insertTestRecord(t, s, testScope, "person", value.Int(2), nil)
	insertTestRecord(t, s, testScope, "other", value.Int(1), nil)

	deleted, err := DeleteTable(ctx, s.DB(), testScope, "person")
	require.NoError(t, err)
	assert.Len(t, deleted, 2)

	left, err := ListRecords(ctx, s.DB(), testScope, "person")
	require.NoError(t, err)
	assert.Empty(t, left)

	other, err := ListRecords(ctx, s.DB(), testScope, "other")
	require.NoError(t, err)
	assert.Len(t, other, 1)

	ok, err := TableExists(ctx, s.DB(), testScope, "person")
	require.NoError(t, err)
	assert.True(t, ok, "catalog entry survives")
}

func TestUpdate_RollsBackOnError(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.Update(ctx, nil, func(q Querier) error {
		if err := PutRecord(ctx, q, testScope, "t", value.Int(1), value.Object{}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	docs, err := ListRecords(ctx, s.DB(), testScope, "t")
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestUpdate_UsesGivenTransaction(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)

	require.NoError(t, s.Update(ctx, tx, func(q Querier) error {
		return PutRecord(ctx, q, testScope, "t", value.Int(1), value.Object{})
	}))

	// Visible inside the transaction, invisible outside until commit.
	require.NoError(t, s.View(tx, func(q Querier) error {
		_, ok, err := GetRecord(ctx, q, testScope, "t", value.Int(1))
		assert.True(t, ok)
		return err
	}))
	require.NoError(t, s.View(nil, func(q Querier) error {
		_, ok, err := GetRecord(ctx, q, testScope, "t", value.Int(1))
		assert.False(t, ok)
		return err
	}))

	require.NoError(t, tx.Rollback())
	_, ok, err := GetRecord(ctx, s.DB(), testScope, "t", value.Int(1))
	require.NoError(t, err)
	assert.False(t, ok)
}
