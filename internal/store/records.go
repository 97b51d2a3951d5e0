package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/emdb/internal/value"
)

// ErrRecordExists is matched by errors.Is for every *ExistsError.
var ErrRecordExists = errors.New("record already exists")

// ExistsError reports an insert of a record key that is already taken.
type ExistsError struct {
	ID value.RecordID
}

func (e *ExistsError) Error() string {
	return fmt.Sprintf("record `%s` already exists", e.ID)
}

func (e *ExistsError) Is(target error) bool {
	return target == ErrRecordExists
}

// Scope selects a namespace and database.
type Scope struct {
	NS string
	DB string
}

// TableInfo describes a catalog entry.
type TableInfo struct {
	Name     string
	Relation bool
}

// DefineTable adds tb to the catalog. Defining an existing table is a no-op,
// except that a relation definition marks a plain table as a relation.
func DefineTable(ctx context.Context, q Querier, sc Scope, tb string, relation bool) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO catalog (ns, db, tb, relation)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(ns, db, tb) DO UPDATE SET relation = max(relation, excluded.relation)
	`, sc.NS, sc.DB, tb, relation)
	if err != nil {
		return fmt.Errorf("define table %s: %w", tb, err)
	}
	return nil
}

// TableExists reports whether tb is in the catalog.
func TableExists(ctx context.Context, q Querier, sc Scope, tb string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, `
		SELECT 1 FROM catalog WHERE ns = ? AND db = ? AND tb = ?
	`, sc.NS, sc.DB, tb).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup table %s: %w", tb, err)
	}
	return true, nil
}

// ListTables returns the catalog of a scope ordered by name.
//
// Returns an empty slice (not nil) if the scope has no tables.
func ListTables(ctx context.Context, q Querier, sc Scope) ([]TableInfo, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT tb, relation FROM catalog
		WHERE ns = ? AND db = ?
		ORDER BY tb COLLATE BINARY ASC
	`, sc.NS, sc.DB)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	tables := []TableInfo{}
	for rows.Next() {
		var t TableInfo
		if err := rows.Scan(&t.Name, &t.Relation); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	return tables, nil
}

// GetRecord loads one record. The boolean is false when it does not exist.
func GetRecord(ctx context.Context, q Querier, sc Scope, tb string, key value.Value) (value.Object, bool, error) {
	rid, err := value.Key(key)
	if err != nil {
		return nil, false, err
	}

	var content []byte
	err = q.QueryRowContext(ctx, `
		SELECT content FROM records
		WHERE ns = ? AND db = ? AND tb = ? AND rid = ?
	`, sc.NS, sc.DB, tb, rid).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get record %s: %w", tb, err)
	}

	doc, err := unmarshalDocument(content)
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

// ListRecords returns every record of a table ordered by key.
//
// Returns an empty slice (not nil) if the table has no records.
func ListRecords(ctx context.Context, q Querier, sc Scope, tb string) ([]value.Object, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT content FROM records
		WHERE ns = ? AND db = ? AND tb = ?
		ORDER BY rid COLLATE BINARY ASC
	`, sc.NS, sc.DB, tb)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	docs := []value.Object{}
	for rows.Next() {
		var content []byte
		if err := rows.Scan(&content); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		doc, err := unmarshalDocument(content)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return docs, nil
}

// InsertRecord stores a new record. It returns an *ExistsError when the key
// is already taken.
func InsertRecord(ctx context.Context, q Querier, sc Scope, tb string, key value.Value, doc value.Object) error {
	rid, err := value.Key(key)
	if err != nil {
		return err
	}
	content, projection, err := marshalDocument(doc)
	if err != nil {
		return err
	}

	result, err := q.ExecContext(ctx, `
		INSERT INTO records (ns, db, tb, rid, content, doc)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(ns, db, tb, rid) DO NOTHING
	`, sc.NS, sc.DB, tb, rid, content, projection)
	if err != nil {
		return fmt.Errorf("insert record %s: %w", tb, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert record %s: %w", tb, err)
	}
	if n == 0 {
		return &ExistsError{ID: value.NewRecordID(tb, key)}
	}
	return nil
}

// PutRecord stores a record, replacing any existing one with the same key.
func PutRecord(ctx context.Context, q Querier, sc Scope, tb string, key value.Value, doc value.Object) error {
	rid, err := value.Key(key)
	if err != nil {
		return err
	}
	content, projection, err := marshalDocument(doc)
	if err != nil {
		return err
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO records (ns, db, tb, rid, content, doc)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(ns, db, tb, rid) DO UPDATE SET content = excluded.content, doc = excluded.doc
	`, sc.NS, sc.DB, tb, rid, content, projection)
	if err != nil {
		return fmt.Errorf("put record %s: %w", tb, err)
	}
	return nil
}

// DeleteRecord removes one record and returns what was stored. The boolean
// is false when nothing was deleted.
func DeleteRecord(ctx context.Context, q Querier, sc Scope, tb string, key value.Value) (value.Object, bool, error) {
	rid, err := value.Key(key)
	if err != nil {
		return nil, false, err
	}

	var content []byte
	err = q.QueryRowContext(ctx, `
		DELETE FROM records
		WHERE ns = ? AND db = ? AND tb = ? AND rid = ?
		RETURNING content
	`, sc.NS, sc.DB, tb, rid).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("delete record %s: %w", tb, err)
	}

	doc, err := unmarshalDocument(content)
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

// DeleteTable removes every record of a table and returns them ordered by
// key. The catalog entry stays.
func DeleteTable(ctx context.Context, q Querier, sc Scope, tb string) ([]value.Object, error) {
	docs, err := ListRecords(ctx, q, sc, tb)
	if err != nil {
		return nil, err
	}
	if _, err := q.ExecContext(ctx, `
		DELETE FROM records WHERE ns = ? AND db = ? AND tb = ?
	`, sc.NS, sc.DB, tb); err != nil {
		return nil, fmt.Errorf("delete table %s: %w", tb, err)
	}
	return docs, nil
}
