package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/emdb/internal/value"
)

// ErrTransactionControl rejects BEGIN, COMMIT and friends inside a batch.
// Transactions are managed through the engine's begin, commit and cancel
// methods instead.
var ErrTransactionControl = errors.New("transaction control statements are not supported in a query, use begin, commit and cancel")

// StatementResult is the outcome of one statement of a batch.
type StatementResult struct {
	Value   value.Value
	Err     error
	Elapsed time.Duration
}

// RunBatch executes every statement of src in order. A failing statement
// does not stop the ones after it. vars supplies the named parameters.
func RunBatch(ctx context.Context, q Querier, src string, vars value.Object) []StatementResult {
	stmts := SplitStatements(src)
	results := make([]StatementResult, 0, len(stmts))
	for _, st := range stmts {
		start := time.Now()
		v, err := RunStatement(ctx, q, st, vars)
		results = append(results, StatementResult{Value: v, Err: err, Elapsed: time.Since(start)})
	}
	return results
}

// ReadOnlyBatch reports whether every statement of src is read-only.
func ReadOnlyBatch(src string) bool {
	for _, st := range SplitStatements(src) {
		if !st.ReadOnly() {
			return false
		}
	}
	return true
}

// RunStatement executes a single statement. Statements that return rows
// yield an array of row objects. INSERT, UPDATE, DELETE and REPLACE yield
// {changes: n}. Anything else yields None.
func RunStatement(ctx context.Context, q Querier, st Statement, vars value.Object) (value.Value, error) {
	if st.IsTransactionControl() {
		return nil, ErrTransactionControl
	}
	args, err := bindParams(st, vars)
	if err != nil {
		return nil, err
	}

	if st.ReturnsRows() {
		rows, err := q.QueryContext(ctx, st.Text, args...)
		if err != nil {
			return nil, err
		}
		return scanRows(rows)
	}

	res, err := q.ExecContext(ctx, st.Text, args...)
	if err != nil {
		return nil, err
	}
	switch st.Verb {
	case "INSERT", "UPDATE", "DELETE", "REPLACE":
		n, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		return value.Object{"changes": value.Int(n)}, nil
	}
	return value.None{}, nil
}

// CallFunction evaluates the SQLite scalar function name with args.
func CallFunction(ctx context.Context, q Querier, name string, args value.Array) (value.Value, error) {
	if !validFunctionName(name) {
		return nil, fmt.Errorf("invalid function name %q", name)
	}

	bound := make([]any, len(args))
	for i, a := range args {
		b, err := bindValue(a)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		bound[i] = b
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", ")
	rows, err := q.QueryContext(ctx, "SELECT "+name+"("+placeholders+") AS result", bound...)
	if err != nil {
		return nil, err
	}
	out, err := scanRows(rows)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return value.None{}, nil
	}
	return out[0].(value.Object).Get("result"), nil
}

func validFunctionName(name string) bool {
	if name == "" || !isIdentStart(name) {
		return false
	}
	for i := 0; i < len(name); i++ {
		if name[i] == '$' || !isIdentByte(name[i]) {
			return false
		}
	}
	return true
}

// bindParams binds exactly the parameters st references. Names missing from
// vars bind NULL.
func bindParams(st Statement, vars value.Object) ([]any, error) {
	args := make([]any, 0, len(st.Params))
	for _, name := range st.Params {
		b, err := bindValue(vars.Get(name))
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", name, err)
		}
		args = append(args, sql.Named(name, b))
	}
	return args, nil
}

func scanRows(rows *sql.Rows) (value.Array, error) {
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(types))
	decls := make([]string, len(types))
	for i, ct := range types {
		names[i] = ct.Name()
		decls[i] = strings.ToUpper(ct.DatabaseTypeName())
	}

	out := value.Array{}
	for rows.Next() {
		raw := make([]any, len(types))
		ptrs := make([]any, len(types))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(value.Object, len(types))
		for i, r := range raw {
			row[names[i]] = columnValue(r, decls[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
