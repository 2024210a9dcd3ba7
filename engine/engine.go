package engine

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // register pure-Go SQLite driver
)

// Open opens a SQLite database using the modernc.org/sqlite driver.
//
// For file-based databases, pass a path like "./db.sqlite". For in-memory
// databases, pass ":memory:"; those are pinned to a single connection since
// every connection would otherwise see its own empty database.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if isMemory(dsn) {
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

// OpenFile opens a file-backed database whose connections use WAL
// journaling and a busy timeout, the settings the virtual tables in this
// module expect when a MATCH query issues its own reads on a second
// connection. Pragmas are applied per connection through the DSN, so
// modules and functions registered after OpenFile still reach every
// connection.
func OpenFile(path string) (*sql.DB, error) {
	if path == "" || isMemory(path) {
		return nil, fmt.Errorf("engine: OpenFile requires a file path, got %q", path)
	}
	dsn := "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	return Open(dsn)
}

func isMemory(dsn string) bool {
	return dsn == ":memory:" || strings.HasPrefix(dsn, "file::memory:") || strings.Contains(dsn, "mode=memory")
}
