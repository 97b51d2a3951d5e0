// Package testutil holds deterministic helpers shared by tests and the
// scenario harness.
package testutil
