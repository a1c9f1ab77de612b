package db_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flyover/pkg/db"
)

func open(t *testing.T) *db.DB {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "sub", "clips.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func insert(t *testing.T, d *db.DB, key string, size int, usedAt time.Time) {
	t.Helper()
	_, err := d.Exec(`INSERT INTO clips (key, provider, format, data, size, created_at, used_at)
		VALUES (?, 'cartesia', 'wav', x'00', ?, ?, ?)`, key, size, usedAt.UTC(), usedAt.UTC())
	require.NoError(t, err)
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clips.db")
	d, err := db.Open(path)
	require.NoError(t, err)
	insert(t, d, "k", 10, time.Now())
	require.NoError(t, d.Close())

	d, err = db.Open(path)
	require.NoError(t, err)
	defer d.Close()
	n, _, err := d.ClipUsage()
	require.NoError(t, err)
	assert.Equal(t, 1, n, "schema must not wipe existing clips")
}

func TestPruneClips(t *testing.T) {
	d := open(t)
	insert(t, d, "stale", 100, time.Now().Add(-48*time.Hour))
	insert(t, d, "fresh", 50, time.Now())

	removed, err := d.PruneClips(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	n, size, err := d.ClipUsage()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, int64(50), size)
}

func TestClipUsage_Empty(t *testing.T) {
	n, size, err := open(t).ClipUsage()
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, size)
}
