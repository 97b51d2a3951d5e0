package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/emdb/internal/value"
)

const dumpHeader = "-- emdb dump\n"

// ExportOptions selects what Export writes.
type ExportOptions struct {
	Tables  bool
	Records bool
}

// DefaultExportOptions exports everything.
func DefaultExportOptions() ExportOptions {
	return ExportOptions{Tables: true, Records: true}
}

// Export renders the scope as SQL text that Import replays. The dump does
// not name its scope: statements refer to $ns and $db, bound at import.
// Output is ordered, so exporting the same data twice gives the same text.
func Export(ctx context.Context, q Querier, sc Scope, opts ExportOptions) (string, error) {
	var b strings.Builder
	b.WriteString(dumpHeader)

	if opts.Tables {
		if err := exportTables(ctx, q, sc, &b); err != nil {
			return "", err
		}
	}
	if opts.Records {
		if err := exportRecords(ctx, q, sc, &b); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}

func exportTables(ctx context.Context, q Querier, sc Scope, b *strings.Builder) error {
	rows, err := q.QueryContext(ctx, `
		SELECT quote(tb), relation FROM catalog
		WHERE ns = ? AND db = ?
		ORDER BY tb COLLATE BINARY ASC
	`, sc.NS, sc.DB)
	if err != nil {
		return fmt.Errorf("export tables: %w", err)
	}
	defer rows.Close()

	first := true
	for rows.Next() {
		var tb string
		var relation int
		if err := rows.Scan(&tb, &relation); err != nil {
			return fmt.Errorf("export tables: %w", err)
		}
		if first {
			b.WriteString("\n-- tables\n")
			first = false
		}
		fmt.Fprintf(b, "INSERT INTO catalog (ns, db, tb, relation) VALUES ($ns, $db, %s, %d) "+
			"ON CONFLICT(ns, db, tb) DO UPDATE SET relation = max(relation, excluded.relation);\n", tb, relation)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("export tables: %w", err)
	}
	return nil
}

func exportRecords(ctx context.Context, q Querier, sc Scope, b *strings.Builder) error {
	rows, err := q.QueryContext(ctx, `
		SELECT quote(tb), quote(rid), quote(content), quote(doc) FROM records
		WHERE ns = ? AND db = ?
		ORDER BY tb COLLATE BINARY ASC, rid COLLATE BINARY ASC
	`, sc.NS, sc.DB)
	if err != nil {
		return fmt.Errorf("export records: %w", err)
	}
	defer rows.Close()

	first := true
	for rows.Next() {
		var tb, rid, content, doc string
		if err := rows.Scan(&tb, &rid, &content, &doc); err != nil {
			return fmt.Errorf("export records: %w", err)
		}
		if first {
			b.WriteString("\n-- records\n")
			first = false
		}
		fmt.Fprintf(b, "INSERT INTO records (ns, db, tb, rid, content, doc) VALUES ($ns, $db, %s, %s, %s, %s) "+
			"ON CONFLICT(ns, db, tb, rid) DO UPDATE SET content = excluded.content, doc = excluded.doc;\n",
			tb, rid, content, doc)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("export records: %w", err)
	}
	return nil
}

// Import replays a dump into sc. Run it inside a transaction so a failing
// statement leaves nothing behind.
func Import(ctx context.Context, q Querier, sc Scope, dump string) error {
	vars := value.Object{"ns": value.String(sc.NS), "db": value.String(sc.DB)}
	for i, st := range SplitStatements(dump) {
		if st.IsTransactionControl() {
			return fmt.Errorf("import statement %d: %w", i+1, ErrTransactionControl)
		}
		args, err := bindParams(st, vars)
		if err != nil {
			return fmt.Errorf("import statement %d: %w", i+1, err)
		}
		if _, err := q.ExecContext(ctx, st.Text, args...); err != nil {
			return fmt.Errorf("import statement %d: %w", i+1, err)
		}
	}
	return nil
}
