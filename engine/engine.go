package engine

import (
	"database/sql"
	"strconv"
	"strings"

	_ "modernc.org/sqlite" // register pure-Go SQLite driver
)

// BusyTimeoutMillis is applied to file databases opened without an explicit
// busy_timeout pragma.
const BusyTimeoutMillis = 5000

// Open opens a SQLite database using the modernc.org/sqlite driver.
//
// For file-based databases, pass a path like "./db.sqlite"; it is opened with
// a busy timeout so connections waiting on a concurrent index build retry
// instead of failing with SQLITE_BUSY. For in-memory databases, pass
// ":memory:".
func Open(dsn string) (*sql.DB, error) { return sql.Open("sqlite", withBusyTimeout(dsn)) }

func withBusyTimeout(dsn string) string {
	if dsn == "" || strings.HasPrefix(dsn, ":memory:") || strings.Contains(dsn, "busy_timeout") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=busy_timeout(" + strconv.Itoa(BusyTimeoutMillis) + ")"
}

