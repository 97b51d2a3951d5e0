// Package store provides SQLite-backed document storage for emdb engines.
//
// A Store holds records for any number of namespace/database scopes:
//   - catalog: the tables known in each scope, with a relation flag
//   - records: one row per record, keyed by (ns, db, tb, rid)
//
// # Record encoding
//
// rid is the canonical JSON of the record key (see value.Key), so equal keys
// always address the same row. content is the CBOR encoding of the full
// document and is authoritative. doc is the canonical JSON projection used by
// ad hoc SQL through SQLite's JSON functions.
//
// # Database Configuration
//
// Pragmas are set through the DSN so that every pooled connection gets them:
//   - WAL mode: concurrent reads during a write transaction
//   - synchronous=NORMAL
//   - busy_timeout=5000: wait for the write lock up to 5 seconds
//   - immediate transactions: a transaction takes the write lock at BEGIN
//
// The cgo build uses github.com/mattn/go-sqlite3. Builds without cgo, or
// with the purego tag, use modernc.org/sqlite.
//
// Record functions take a Querier so the same code runs against the
// database or an open transaction.
package store
