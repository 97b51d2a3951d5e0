package engine

import (
	"context"
	"fmt"

	"github.com/roach88/emdb/internal/store"
	"github.com/roach88/emdb/internal/value"
)

// target is the subject of a data operation: a whole table or one record.
type target struct {
	table string
	key   value.Value // nil for the whole table
}

func (t target) isRecord() bool { return t.key != nil }

func parseTarget(v value.Value) (target, error) {
	switch t := v.(type) {
	case value.Table:
		return tableTarget(string(t))
	case value.String:
		return tableTarget(string(t))
	case value.RecordID:
		if t.Table == "" {
			return target{}, invalidParams("record id has no table")
		}
		if !value.ValidRecordKey(t.ID) {
			return target{}, invalidParams("invalid record key type %s", kindName(t.ID))
		}
		return target{table: t.Table, key: t.ID}, nil
	default:
		return target{}, invalidParams("expected table or record id, found %s", kindName(v))
	}
}

func tableTarget(name string) (target, error) {
	if name == "" {
		return target{}, invalidParams("table name must not be empty")
	}
	return target{table: name}, nil
}

func kindName(v value.Value) string {
	if v == nil {
		return value.KindNone.String()
	}
	return v.Kind().String()
}

// optionalData accepts an object, or None/Null for "no data".
func optionalData(v value.Value) (value.Object, bool, error) {
	switch d := v.(type) {
	case nil, value.None, value.Null:
		return nil, false, nil
	case value.Object:
		return d, true, nil
	default:
		return nil, false, invalidParams("expected object, found %s", d.Kind())
	}
}

// withID copies doc and sets its id field.
func withID(doc value.Object, id value.RecordID) value.Object {
	out := doc.Clone()
	if out == nil {
		out = value.Object{}
	}
	out["id"] = id
	return out
}

func recordOrNone(doc value.Object, ok bool) value.Value {
	if !ok {
		return value.None{}
	}
	return doc
}

func docsArray(docs []value.Object) value.Array {
	out := make(value.Array, len(docs))
	for i, d := range docs {
		out[i] = d
	}
	return out
}

// ensureTable makes tb writable. Strict engines require it in the catalog;
// others add it on first write.
func (e *Engine) ensureTable(ctx context.Context, q store.Querier, sc store.Scope, tb string, relation bool) error {
	if e.opts.Strict {
		ok, err := store.TableExists(ctx, q, sc, tb)
		if err != nil {
			return err
		}
		if !ok {
			return &TableError{Table: tb}
		}
		return nil
	}
	return store.DefineTable(ctx, q, sc, tb, relation)
}

// Select returns every record of a table, or one record (None when it
// does not exist).
func (e *Engine) Select(ctx context.Context, c Call, what value.Value) (value.Value, error) {
	t, err := parseTarget(what)
	if err != nil {
		return nil, err
	}
	sc, err := e.scopeFor(c)
	if err != nil {
		return nil, err
	}

	var out value.Value
	err = e.read(c, func(q store.Querier) error {
		if t.isRecord() {
			doc, ok, err := store.GetRecord(ctx, q, sc, t.table, t.key)
			if err != nil {
				return err
			}
			out = recordOrNone(doc, ok)
			return nil
		}
		docs, err := store.ListRecords(ctx, q, sc, t.table)
		if err != nil {
			return err
		}
		out = docsArray(docs)
		return nil
	})
	return out, err
}

// Create stores one new record. A table target gets a generated key.
func (e *Engine) Create(ctx context.Context, c Call, what, data value.Value) (value.Value, error) {
	t, err := parseTarget(what)
	if err != nil {
		return nil, err
	}
	fields, _, err := optionalData(data)
	if err != nil {
		return nil, err
	}
	sc, err := e.scopeFor(c)
	if err != nil {
		return nil, err
	}

	key := t.key
	if key == nil {
		key = value.String(e.ids.RecordKey())
	}
	doc := withID(fields, value.NewRecordID(t.table, key))
	err = e.write(ctx, c, func(q store.Querier) error {
		if err := e.ensureTable(ctx, q, sc, t.table, false); err != nil {
			return err
		}
		return store.InsertRecord(ctx, q, sc, t.table, key, doc)
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Insert stores one or many new records. Records take their key from their
// id field, or a generated one. what may be None when every record carries
// a record id.
func (e *Engine) Insert(ctx context.Context, c Call, what, data value.Value) (value.Array, error) {
	return e.insertMany(ctx, c, what, data, false)
}

// InsertRelation is Insert for edge records, which need in and out record
// ids.
func (e *Engine) InsertRelation(ctx context.Context, c Call, what, data value.Value) (value.Array, error) {
	return e.insertMany(ctx, c, what, data, true)
}

func (e *Engine) insertMany(ctx context.Context, c Call, what, data value.Value, relation bool) (value.Array, error) {
	var table string
	switch t := what.(type) {
	case nil, value.None, value.Null:
	case value.Table:
		table = string(t)
	case value.String:
		table = string(t)
	default:
		return nil, invalidParams("expected table, found %s", kindName(what))
	}
	items, err := dataItems(data)
	if err != nil {
		return nil, err
	}
	sc, err := e.scopeFor(c)
	if err != nil {
		return nil, err
	}

	docs := make([]value.Object, 0, len(items))
	for i, item := range items {
		if relation {
			if err := checkEdge(item); err != nil {
				return nil, fmt.Errorf("record %d: %w", i, err)
			}
		}
		id, err := e.insertID(table, item)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		docs = append(docs, withID(item, id))
	}

	err = e.write(ctx, c, func(q store.Querier) error {
		for _, doc := range docs {
			id := doc["id"].(value.RecordID)
			if err := e.ensureTable(ctx, q, sc, id.Table, relation); err != nil {
				return err
			}
			if err := store.InsertRecord(ctx, q, sc, id.Table, id.ID, doc); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docsArray(docs), nil
}

// dataItems accepts an object or an array of objects.
func dataItems(v value.Value) ([]value.Object, error) {
	switch d := v.(type) {
	case value.Object:
		return []value.Object{d}, nil
	case value.Array:
		items := make([]value.Object, len(d))
		for i, elem := range d {
			obj, ok := elem.(value.Object)
			if !ok {
				return nil, invalidParams("record %d: expected object, found %s", i, kindName(elem))
			}
			items[i] = obj
		}
		return items, nil
	default:
		return nil, invalidParams("expected object or array, found %s", kindName(v))
	}
}

func (e *Engine) insertID(table string, item value.Object) (value.RecordID, error) {
	switch id := item.Get("id").(type) {
	case value.None, value.Null:
		if table == "" {
			return value.RecordID{}, invalidParams("a table is required for records without an id")
		}
		return value.NewRecordID(table, value.String(e.ids.RecordKey())), nil
	case value.RecordID:
		if table != "" && id.Table != table {
			return value.RecordID{}, invalidParams("record id `%s` does not belong to table `%s`", id, table)
		}
		if id.Table == "" || !value.ValidRecordKey(id.ID) {
			return value.RecordID{}, invalidParams("invalid record id `%s`", id)
		}
		return id, nil
	default:
		if table == "" {
			return value.RecordID{}, invalidParams("a table is required for records without a record id")
		}
		if !value.ValidRecordKey(id) {
			return value.RecordID{}, invalidParams("invalid record key type %s", id.Kind())
		}
		return value.NewRecordID(table, id), nil
	}
}

func checkEdge(doc value.Object) error {
	for _, field := range []string{"in", "out"} {
		if _, ok := doc.Get(field).(value.RecordID); !ok {
			return invalidParams("%s: expected record id, found %s", field, doc.Get(field).Kind())
		}
	}
	return nil
}

// change is one record rewritten by modify.
type change struct {
	before value.Object // nil when the record was created
	after  value.Object
}

// modify rewrites the target's records with fn. A record target that does
// not exist is skipped, or passed to fn with a nil record when create is
// set. fn must return the complete new record.
func (e *Engine) modify(ctx context.Context, c Call, t target, create bool, fn func(before value.Object, id value.RecordID) (value.Object, error)) ([]change, error) {
	sc, err := e.scopeFor(c)
	if err != nil {
		return nil, err
	}

	var changes []change
	err = e.write(ctx, c, func(q store.Querier) error {
		var existing []value.Object
		if t.isRecord() {
			doc, ok, err := store.GetRecord(ctx, q, sc, t.table, t.key)
			if err != nil {
				return err
			}
			switch {
			case ok:
				existing = []value.Object{doc}
			case create:
				existing = []value.Object{nil}
			default:
				return nil
			}
		} else {
			docs, err := store.ListRecords(ctx, q, sc, t.table)
			if err != nil {
				return err
			}
			existing = docs
		}

		for _, before := range existing {
			id, err := recordID(t, before)
			if err != nil {
				return err
			}
			after, err := fn(before, id)
			if err != nil {
				return fmt.Errorf("%s: %w", id, err)
			}
			after = keepIdentity(before, after, id)
			if before == nil {
				if err := e.ensureTable(ctx, q, sc, id.Table, false); err != nil {
					return err
				}
			}
			if err := store.PutRecord(ctx, q, sc, id.Table, id.ID, after); err != nil {
				return err
			}
			changes = append(changes, change{before: before, after: after})
		}
		return nil
	})
	return changes, err
}

func recordID(t target, doc value.Object) (value.RecordID, error) {
	if t.isRecord() {
		return value.NewRecordID(t.table, t.key), nil
	}
	id, ok := doc.Get("id").(value.RecordID)
	if !ok {
		return value.RecordID{}, fmt.Errorf("stored record in %s has no record id", t.table)
	}
	return id, nil
}

// keepIdentity restores the fields an update may not change: the id, and
// the in and out of an edge.
func keepIdentity(before, after value.Object, id value.RecordID) value.Object {
	out := withID(after, id)
	for _, field := range []string{"in", "out"} {
		if rid, ok := before.Get(field).(value.RecordID); ok {
			out[field] = rid
		}
	}
	return out
}

// changesResult shapes modify's output: the record (or None) for a record
// target, every record for a table.
func changesResult(t target, changes []change, project func(change) value.Value) value.Value {
	if t.isRecord() {
		if len(changes) == 0 {
			return value.None{}
		}
		return project(changes[0])
	}
	out := make(value.Array, len(changes))
	for i, ch := range changes {
		out[i] = project(ch)
	}
	return out
}

func afterOf(ch change) value.Value { return ch.after }

// Update replaces the content of existing records with data. Without data
// the records are returned unchanged.
func (e *Engine) Update(ctx context.Context, c Call, what, data value.Value) (value.Value, error) {
	return e.replace(ctx, c, what, data, false)
}

// Upsert is Update that creates a missing record target.
func (e *Engine) Upsert(ctx context.Context, c Call, what, data value.Value) (value.Value, error) {
	return e.replace(ctx, c, what, data, true)
}

func (e *Engine) replace(ctx context.Context, c Call, what, data value.Value, create bool) (value.Value, error) {
	t, err := parseTarget(what)
	if err != nil {
		return nil, err
	}
	fields, hasData, err := optionalData(data)
	if err != nil {
		return nil, err
	}
	changes, err := e.modify(ctx, c, t, create, func(before value.Object, _ value.RecordID) (value.Object, error) {
		if !hasData && before != nil {
			return before, nil
		}
		return fields, nil
	})
	if err != nil {
		return nil, err
	}
	return changesResult(t, changes, afterOf), nil
}

// Merge deep-merges data into existing records. None values remove
// fields.
func (e *Engine) Merge(ctx context.Context, c Call, what, data value.Value) (value.Value, error) {
	t, err := parseTarget(what)
	if err != nil {
		return nil, err
	}
	fields, hasData, err := optionalData(data)
	if err != nil {
		return nil, err
	}
	if !hasData {
		return nil, invalidParams("expected object, found %s", kindName(data))
	}
	changes, err := e.modify(ctx, c, t, false, func(before value.Object, _ value.RecordID) (value.Object, error) {
		return mergeObjects(before, fields), nil
	})
	if err != nil {
		return nil, err
	}
	return changesResult(t, changes, afterOf), nil
}

func mergeObjects(base, patch value.Object) value.Object {
	out := base.Clone()
	if out == nil {
		out = value.Object{}
	}
	for k, v := range patch {
		if value.IsNone(v) {
			delete(out, k)
			continue
		}
		if po, ok := v.(value.Object); ok {
			if bo, ok := out[k].(value.Object); ok {
				out[k] = mergeObjects(bo, po)
				continue
			}
		}
		out[k] = value.Clone(v)
	}
	return out
}

// Patch applies JSON Patch operations to existing records. With diff set
// the result holds, per record, the operations that turn the old record
// into the new one.
func (e *Engine) Patch(ctx context.Context, c Call, what, ops value.Value, diff bool) (value.Value, error) {
	t, err := parseTarget(what)
	if err != nil {
		return nil, err
	}
	patch, err := ParsePatch(ops)
	if err != nil {
		return nil, err
	}
	changes, err := e.modify(ctx, c, t, false, func(before value.Object, _ value.RecordID) (value.Object, error) {
		patched, err := ApplyPatch(before, patch)
		if err != nil {
			return nil, err
		}
		obj, ok := patched.(value.Object)
		if !ok {
			return nil, fmt.Errorf("patch must leave an object, found %s", kindName(patched))
		}
		return obj, nil
	})
	if err != nil {
		return nil, err
	}
	if diff {
		return changesResult(t, changes, func(ch change) value.Value {
			return Diff(ch.before, ch.after)
		}), nil
	}
	return changesResult(t, changes, afterOf), nil
}

// Delete removes a record or every record of a table and returns what was
// removed.
func (e *Engine) Delete(ctx context.Context, c Call, what value.Value) (value.Value, error) {
	t, err := parseTarget(what)
	if err != nil {
		return nil, err
	}
	sc, err := e.scopeFor(c)
	if err != nil {
		return nil, err
	}

	var out value.Value
	err = e.write(ctx, c, func(q store.Querier) error {
		if t.isRecord() {
			doc, ok, err := store.DeleteRecord(ctx, q, sc, t.table, t.key)
			if err != nil {
				return err
			}
			out = recordOrNone(doc, ok)
			return nil
		}
		docs, err := store.DeleteTable(ctx, q, sc, t.table)
		if err != nil {
			return err
		}
		out = docsArray(docs)
		return nil
	})
	return out, err
}

// Relate creates edge records from every in record to every out record.
// kind is the edge table, or a record id for a single edge with a chosen
// key. A single in and out yields the edge, otherwise an array.
func (e *Engine) Relate(ctx context.Context, c Call, in, kind, out, data value.Value) (value.Value, error) {
	ins, inOne, err := recordList("in", in)
	if err != nil {
		return nil, err
	}
	outs, outOne, err := recordList("out", out)
	if err != nil {
		return nil, err
	}
	k, err := parseTarget(kind)
	if err != nil {
		return nil, err
	}
	if k.isRecord() && !(inOne && outOne) {
		return nil, invalidParams("an edge with a record id needs a single in and out")
	}
	fields, _, err := optionalData(data)
	if err != nil {
		return nil, err
	}
	sc, err := e.scopeFor(c)
	if err != nil {
		return nil, err
	}

	edges := make([]value.Object, 0, len(ins)*len(outs))
	for _, from := range ins {
		for _, to := range outs {
			key := k.key
			if key == nil {
				key = value.String(e.ids.RecordKey())
			}
			doc := withID(fields, value.NewRecordID(k.table, key))
			doc["in"] = from
			doc["out"] = to
			edges = append(edges, doc)
		}
	}

	err = e.write(ctx, c, func(q store.Querier) error {
		if err := e.ensureTable(ctx, q, sc, k.table, true); err != nil {
			return err
		}
		for _, doc := range edges {
			id := doc["id"].(value.RecordID)
			if err := store.InsertRecord(ctx, q, sc, id.Table, id.ID, doc); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if inOne && outOne {
		return edges[0], nil
	}
	return docsArray(edges), nil
}

// recordList accepts a record id or an array of them. The boolean is true
// for a lone record id.
func recordList(field string, v value.Value) ([]value.RecordID, bool, error) {
	switch t := v.(type) {
	case value.RecordID:
		return []value.RecordID{t}, true, nil
	case value.Array:
		ids := make([]value.RecordID, len(t))
		for i, elem := range t {
			rid, ok := elem.(value.RecordID)
			if !ok {
				return nil, false, invalidParams("%s[%d]: expected record id, found %s", field, i, kindName(elem))
			}
			ids[i] = rid
		}
		return ids, false, nil
	default:
		return nil, false, invalidParams("%s: expected record id or array, found %s", field, kindName(v))
	}
}
