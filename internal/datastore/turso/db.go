// Package turso implements the sync-layer port (datastore.Store) against
// a Turso (libsql over Hrana) database, matching the teacher's own
// internal/database/turso.go connection tuning: a small max-open-conns
// pool with idle connections disabled, since Turso aggressively closes
// idle Hrana streams and stale connections surface as "stream not
// found" errors under load.
package turso

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"
)

// Open connects to a Turso database at url authenticated with key,
// tuned for the exporter's two polling loops rather than a web server's
// request-per-connection pattern.
func Open(url, key string) (*sql.DB, error) {
	connStr := url + "?authToken=" + key
	db, err := sql.Open("libsql", connStr)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(0)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		return nil, err
	}
	return db, nil
}

// isStreamError reports whether err is a Turso "stream not found" error,
// the transient failure mode withRetry absorbs.
func isStreamError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "stream not found")
}

// withRetry runs fn, retrying up to maxRetries times on a Turso stream
// error with a short pause between attempts (§7 "transient" errors).
func withRetry(ctx context.Context, maxRetries int, fn func() error) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if !isStreamError(err) || attempt == maxRetries {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
	return err
}
