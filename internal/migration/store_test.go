package migration

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/migracraft/internal/schema"
)

func TestFileSnapshotStore(t *testing.T) {
	dir := t.TempDir()
	store := NewFileSnapshotStore(dir)

	snap, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, snap)

	empty, err := store.LoadAt(0)
	require.NoError(t, err)
	assert.Empty(t, empty.Schema.Tables)

	def := "now()"
	s := schema.New(schema.Table{
		Name: "users",
		Columns: []schema.Column{
			{Name: "id", Type: "bigint", Identity: true},
			{Name: "created_at", Type: "timestamptz", Default: &def},
		},
		Constraints: []schema.Constraint{{Name: "users_pkey", Kind: schema.PrimaryKey, Columns: []string{"id"}}},
		Indexes:     []schema.Index{{Name: "idx_users_created_at", Columns: []string{"created_at"}}},
	})
	require.NoError(t, store.Save(&Snapshot{ID: 1, Schema: s}))
	require.NoError(t, store.Save(&Snapshot{ID: 2, Schema: schema.Empty()}))

	current, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, int64(2), current.ID)
	assert.Empty(t, current.Schema.Tables)

	first, err := store.LoadAt(1)
	require.NoError(t, err)
	assert.Equal(t, s, first.Schema)

	_, err = store.LoadAt(3)
	assert.True(t, errors.Is(err, ErrSnapshotNotFound))

	_, err = os.Stat(filepath.Join(dir, ".schema_snapshot.yaml"))
	assert.NoError(t, err)
}

func TestFileMigrationStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "migrations")
	store := NewFileMigrationStore(dir)

	latest, err := store.Latest()
	require.NoError(t, err)
	assert.Nil(t, latest)

	second := &Migration{ID: 20261019120001, Name: "second", Kind: KindMigration, Up: []string{"SELECT 2;"}}
	first := &Migration{ID: 20261019120000, Name: "first", Kind: KindMigration, Up: []string{"SELECT 1;"}}
	require.NoError(t, store.Append(second))
	require.NoError(t, store.Append(first))
	assert.Error(t, store.Append(first), "appending the same migration twice must fail")

	// Unrelated files are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))

	all, err := store.List()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "first", all[0].Name)
	assert.Equal(t, "second", all[1].Name)

	latest, err = store.Latest()
	require.NoError(t, err)
	assert.Equal(t, int64(20261019120001), latest.ID)
	assert.Equal(t, []string{"SELECT 2;"}, latest.Up)

	require.NoError(t, store.Remove(second))
	latest, err = store.Latest()
	require.NoError(t, err)
	assert.Equal(t, int64(20261019120000), latest.ID)
}

func TestFileMigrationStore_IDFromFileName(t *testing.T) {
	dir := t.TempDir()
	data := "-- +migrate Up\nSELECT 1;\n-- +migrate Down\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20250101000000_manual.sql"), []byte(data), 0644))

	latest, err := NewFileMigrationStore(dir).Latest()
	require.NoError(t, err)
	assert.Equal(t, int64(20250101000000), latest.ID)
}
