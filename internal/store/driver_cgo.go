//go:build cgo && !purego

package store

import (
	"net/url"

	_ "github.com/mattn/go-sqlite3"
)

const driverName = "sqlite3"

// dsn carries the connection pragmas so every pooled connection gets them.
// immediate makes BEGIN take the write lock at once.
func dsn(path string, immediate bool) string {
	q := url.Values{}
	q.Set("_busy_timeout", "5000")
	q.Set("_journal_mode", "WAL")
	q.Set("_synchronous", "NORMAL")
	q.Set("_foreign_keys", "on")
	if immediate {
		q.Set("_txlock", "immediate")
	}
	return fileURI(path, q)
}
