// Package cache keeps synthesized narration so repeated tours replay without
// calling the synthesis service again.
package cache

import (
	"bytes"
	"compress/gzip"
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"time"

	"flyover/pkg/db"
	"flyover/pkg/model"
)

// Store persists clips by key.
type Store interface {
	Get(ctx context.Context, key string) (*model.Audio, bool)
	Put(ctx context.Context, key string, a *model.Audio) error
}

// SQLiteStore keeps gzipped clips in the clips table.
type SQLiteStore struct {
	db *db.DB
}

// NewSQLiteStore creates a store on d.
func NewSQLiteStore(d *db.DB) *SQLiteStore {
	return &SQLiteStore{db: d}
}

// Get returns the clip stored under key and marks it used. Unreadable rows
// are dropped and reported as misses.
func (s *SQLiteStore) Get(ctx context.Context, key string) (*model.Audio, bool) {
	var (
		a      model.Audio
		packed []byte
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT provider, voice, format, data FROM clips WHERE key = ?", key).
		Scan(&a.Provider, &a.Voice, &a.Format, &packed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false
	}
	if err != nil {
		slog.Debug("Cache: read failed", "key", key, "error", err)
		return nil, false
	}

	if a.Data, err = unpack(packed); err != nil || len(a.Data) == 0 {
		slog.Warn("Cache: dropping unreadable clip", "key", key, "error", err)
		if _, err := s.db.ExecContext(ctx, "DELETE FROM clips WHERE key = ?", key); err != nil {
			slog.Debug("Cache: delete failed", "key", key, "error", err)
		}
		return nil, false
	}

	if _, err := s.db.ExecContext(ctx, "UPDATE clips SET used_at = ? WHERE key = ?", time.Now().UTC(), key); err != nil {
		slog.Debug("Cache: touch failed", "key", key, "error", err)
	}
	return &a, true
}

// Put stores a under key, replacing any previous clip.
func (s *SQLiteStore) Put(ctx context.Context, key string, a *model.Audio) error {
	if a.Empty() {
		return errors.New("cache: refusing to store an empty clip")
	}
	packed, err := pack(a.Data)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO clips (key, provider, voice, format, data, size, created_at, used_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			provider = excluded.provider,
			voice    = excluded.voice,
			format   = excluded.format,
			data     = excluded.data,
			size     = excluded.size,
			used_at  = excluded.used_at`,
		key, a.Provider, a.Voice, a.Format, packed, len(a.Data), now, now)
	return err
}

func pack(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzip.BestSpeed)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func unpack(packed []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(packed))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
