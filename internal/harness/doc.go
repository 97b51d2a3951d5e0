// Package harness runs YAML scenarios against emdb through the host
// runtime, the same queue and completion path a foreign caller uses.
//
// # Scenario Format
//
//	name: person_crud
//	description: "Create a person and read it back"
//	options: { strict: false }
//	setup:
//	  - method: use
//	    params: [test, test]
//	flow:
//	  - method: create
//	    params: [{ $record: "person:tobie" }, { name: Tobie }]
//	    expect:
//	      result: { name: Tobie }
//	  - method: create
//	    params: [{ $record: "person:tobie" }]
//	    expect:
//	      error: already exists
//	assertions:
//	  - type: final_state
//	    table: person
//	    count: 1
//
// Plain YAML maps, lists and scalars become objects, arrays and scalars.
// A single-key map whose key starts with $ builds a typed value: $table,
// $record ("tb:key", digits make an integer key), $uuid, $datetime,
// $duration, $decimal, $none and $txn (the last transaction begun).
//
// A step may name a session (mapped to a stable UUID) and set txn: true to
// run inside the last transaction begun.
//
// # Assertion Types
//
//   - trace_contains: a step with the method ran (optionally with status)
//   - trace_order: methods appear in this order
//   - trace_count: a method ran exactly N times
//   - final_state: records of a table on the default session
//
// # Deterministic Runs
//
// Record keys, transaction ids and time::now are fixed per run, and the
// time field of query results is dropped, so traces compare byte for byte
// against golden files.
package harness
