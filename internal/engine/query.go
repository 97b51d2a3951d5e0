package engine

import (
	"context"
	"maps"

	"github.com/roach88/emdb/internal/store"
	"github.com/roach88/emdb/internal/value"
)

// Query runs a batch of SQL statements against the engine's storage and
// returns one result object per statement:
//
//	{status: "OK", result, time} or {status: "ERR", errorDetails, time}
//
// A failing statement does not stop the rest. Variables bind from the
// session overlaid with vars. Query does not need a selected namespace or
// database.
func (e *Engine) Query(ctx context.Context, c Call, sql string, vars value.Object) (value.Array, error) {
	sess, err := e.Session(c)
	if err != nil {
		return nil, err
	}
	bound := maps.Clone(sess.Vars)
	if bound == nil {
		bound = value.Object{}
	}
	maps.Copy(bound, vars)
	if sess.NS != "" {
		bound["session_ns"] = value.String(sess.NS)
	}
	if sess.DB != "" {
		bound["session_db"] = value.String(sess.DB)
	}

	var results []store.StatementResult
	run := func(q store.Querier) error {
		results = store.RunBatch(ctx, q, sql, bound)
		return nil
	}
	readOnly := store.ReadOnlyBatch(sql)
	switch {
	case c.Txn.Valid:
		err = e.inTxn(c.Txn.UUID, !readOnly, run)
	case readOnly:
		err = e.store.Conn(ctx, run)
	default:
		err = e.conn(ctx, run)
	}
	if err != nil {
		return nil, err
	}

	out := make(value.Array, len(results))
	for i, r := range results {
		entry := value.Object{"time": value.String(value.FormatDuration(r.Elapsed))}
		if r.Err != nil {
			entry["status"] = value.String("ERR")
			entry["errorDetails"] = value.String(r.Err.Error())
		} else {
			entry["status"] = value.String("OK")
			entry["result"] = r.Value
		}
		out[i] = entry
	}
	return out, nil
}
