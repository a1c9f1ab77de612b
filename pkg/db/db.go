// Package db opens the SQLite file that holds synthesized narration clips.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Register driver
)

// DB wraps the sql.DB connection.
type DB struct {
	*sql.DB
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS clips (
		key        TEXT PRIMARY KEY,
		provider   TEXT NOT NULL,
		voice      TEXT NOT NULL DEFAULT '',
		format     TEXT NOT NULL,
		data       BLOB NOT NULL,
		size       INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		used_at    DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS clips_used_at ON clips (used_at)`,
}

// Open opens or creates the database at path and applies the schema.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create db dir: %w", err)
	}

	conn, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(30000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	// Pipeline workers store clips concurrently; one writer connection keeps
	// SQLite from reporting SQLITE_BUSY.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}
	for _, q := range schema {
		if _, err := conn.Exec(q); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return &DB{conn}, nil
}

// PruneClips removes clips not played for longer than unused and returns
// how many were removed.
func (d *DB) PruneClips(unused time.Duration) (int64, error) {
	res, err := d.Exec("DELETE FROM clips WHERE used_at < ?", time.Now().Add(-unused).UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ClipUsage returns the number of stored clips and their uncompressed size.
func (d *DB) ClipUsage() (count int, bytes int64, err error) {
	err = d.QueryRow("SELECT count(*), coalesce(sum(size), 0) FROM clips").Scan(&count, &bytes)
	return count, bytes, err
}
