package store

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/emdb/internal/value"
)

func exportScope(t *testing.T, s *Store, sc Scope, opts ExportOptions) string {
	t.Helper()
	dump, err := Export(context.Background(), s.DB(), sc, opts)
	require.NoError(t, err)
	return dump
}

func importScope(t *testing.T, s *Store, sc Scope, dump string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.Update(ctx, nil, func(q Querier) error {
		return Import(ctx, q, sc, dump)
	}))
}

func TestExport_Golden(t *testing.T) {
	s := createTestStore(t)
	insertTestRecord(t, s, testScope, "person", value.String("tobie"), value.Object{
		"name": value.String("Tobie"),
	})

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "export_person", []byte(exportScope(t, s, testScope, DefaultExportOptions())))
}

func TestExport_EmptyIsIdempotent(t *testing.T) {
	s := createTestStore(t)

	first := exportScope(t, s, testScope, DefaultExportOptions())
	assert.Equal(t, dumpHeader, first)

	importScope(t, s, testScope, first)
	second := exportScope(t, s, testScope, DefaultExportOptions())
	assert.Equal(t, first, second)
}

func TestExport_RoundTripIntoOtherScope(t *testing.T) {
	src := createTestStore(t)
	insertTestRecord(t, src, testScope, "person", value.Int(1), value.Object{"n": value.Float(1.5)})
	insertTestRecord(t, src, testScope, "person", value.String("it's"), nil)
	ctx := context.Background()
	require.NoError(t, DefineTable(ctx, src.DB(), testScope, "likes", true))

	dump := exportScope(t, src, testScope, DefaultExportOptions())

	dst := createTestStore(t)
	target := Scope{NS: "restored", DB: "copy"}
	importScope(t, dst, target, dump)
	assert.Equal(t, dump, exportScope(t, dst, target, DefaultExportOptions()))

	tables, err := ListTables(ctx, dst.DB(), target)
	require.NoError(t, err)
	assert.Equal(t, []TableInfo{{Name: "likes", Relation: true}, {Name: "person"}}, tables)

	doc, ok, err := GetRecord(ctx, dst.DB(), target, "person", value.String("it's"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, value.NewRecordID("person", value.String("it's")), doc["id"])

	// Importing twice converges on the same data.
	importScope(t, dst, target, dump)
	assert.Equal(t, dump, exportScope(t, dst, target, DefaultExportOptions()))
}

func TestExport_Options(t *testing.T) {
	s := createTestStore(t)
	insertTestRecord(t, s, testScope, "person", value.Int(1), nil)

	tablesOnly := exportScope(t, s, testScope, ExportOptions{Tables: true})
	assert.Contains(t, tablesOnly, "-- tables")
	assert.NotContains(t, tablesOnly, "-- records")

	recordsOnly := exportScope(t, s, testScope, ExportOptions{Records: true})
	assert.NotContains(t, recordsOnly, "-- tables")
	assert.Contains(t, recordsOnly, "-- records")

	assert.Equal(t, dumpHeader, exportScope(t, s, testScope, ExportOptions{}))
}

func TestImport_RejectsTransactionControl(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	err := s.Update(ctx, nil, func(q Querier) error {
		return Import(ctx, q, testScope, "BEGIN; INSERT INTO catalog (ns, db, tb) VALUES ($ns, $db, 'x'); COMMIT;")
	})
	assert.ErrorIs(t, err, ErrTransactionControl)
}

func TestImport_FailureLeavesNothing(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	err := s.Update(ctx, nil, func(q Querier) error {
		return Import(ctx, q, testScope, "INSERT INTO catalog (ns, db, tb) VALUES ($ns, $db, 'x'); INSERT INTO nowhere VALUES (1);")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "import statement 2")

	tables, err := ListTables(ctx, s.DB(), testScope)
	require.NoError(t, err)
	assert.Empty(t, tables)
}
