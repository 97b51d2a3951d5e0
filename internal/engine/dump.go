package engine

import (
	"context"
	"fmt"

	"github.com/roach88/emdb/internal/store"
	"github.com/roach88/emdb/internal/value"
)

// exportKeys are accepted in the export config. Only tables and records
// select anything; the others name objects emdb does not have.
var exportKeys = []string{"tables", "records", "users", "accesses", "params", "functions", "versions"}

// ParseExportConfig reads the export config object. Every key is an
// optional bool that defaults to true.
func ParseExportConfig(v value.Value) (store.ExportOptions, error) {
	opts := store.DefaultExportOptions()
	obj, ok, err := optionalObject(v)
	if err != nil || !ok {
		return opts, err
	}
	for _, key := range exportKeys {
		var on bool
		switch b := obj.Get(key).(type) {
		case value.None, value.Null:
			continue
		case value.Bool:
			on = bool(b)
		default:
			return opts, fmt.Errorf("%s: expected bool, found %s", key, b.Kind())
		}
		switch key {
		case "tables":
			opts.Tables = on
		case "records":
			opts.Records = on
		}
	}
	return opts, nil
}

// Export renders the default session's namespace and database as a dump.
func (e *Engine) Export(ctx context.Context, opts store.ExportOptions) (string, error) {
	sess, err := e.Session(Call{})
	if err != nil {
		return "", err
	}
	sc, err := sess.scope()
	if err != nil {
		return "", err
	}
	return store.Export(ctx, e.store.DB(), sc, opts)
}

// Import replays a dump into the default session's namespace and database
// in a single transaction.
func (e *Engine) Import(ctx context.Context, dump string) error {
	sess, err := e.Session(Call{})
	if err != nil {
		return err
	}
	sc, err := sess.scope()
	if err != nil {
		return err
	}
	return e.update(ctx, func(q store.Querier) error {
		return store.Import(ctx, q, sc, dump)
	})
}
