//go:build !cgo || purego

package store

import (
	"net/url"

	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

// dsn carries the connection pragmas so every pooled connection gets them.
// immediate makes BEGIN take the write lock at once.
func dsn(path string, immediate bool) string {
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous(NORMAL)")
	q.Add("_pragma", "foreign_keys(1)")
	if immediate {
		q.Set("_txlock", "immediate")
	}
	return fileURI(path, q)
}
