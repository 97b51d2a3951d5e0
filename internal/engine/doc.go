// Package engine implements one emdb database engine: a storage handle, its
// sessions and an open-transaction table.
//
// CONCURRENCY:
//
// An Engine is shared by every worker that executes calls for its id, so
// each piece of state has its own guard:
//   - state (RWMutex) guards the session map and every session's
//     namespace, database and variables. Data operations take a read lock
//     long enough to copy what they need. use, set, unset, attach, detach
//     and reset take the write lock.
//   - txMu guards the transaction table and is held only for map access.
//     Each open transaction has its own mutex so statements sent to the
//     same transaction from different workers run one at a time.
//   - writeGate tracks SQLite's single writer. Short writes hold it shared.
//     An open transaction claims it on its first write and keeps it until
//     commit or cancel.
//
// Session writes are therefore exclusive against everything else on the
// engine, reads run concurrently, and transaction bookkeeping never waits
// on session state.
//
// TRANSACTIONS:
//
// begin opens a deferred SQLite transaction and names it with a UUIDv7.
// Any number may be open. Only one can have written at a time: a write in
// a second transaction, or a write outside any transaction, fails at once
// with "transaction conflict" until the writer ends. Reads never conflict.
// commit and cancel remove the entry before finishing it, so a transaction
// id can be used to end a transaction at most once. A call that names a
// transaction runs its storage work there. Calls without one run each
// data operation in a short transaction of its own.
package engine
