//go:build integration
// +build integration

package migracraft

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportThenMigrate(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	dbPath := filepath.Join(root, "app.db")

	conn, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	for _, stmt := range []string{
		`CREATE TABLE audit_log (id INTEGER PRIMARY KEY, note TEXT)`,
		`CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT NOT NULL UNIQUE)`,
		`CREATE TABLE posts (
			id INTEGER PRIMARY KEY,
			author_id INTEGER NOT NULL REFERENCES users (id) ON DELETE CASCADE,
			audit_id INTEGER REFERENCES audit_log (id)
		)`,
		`CREATE INDEX idx_posts_author ON posts (author_id)`,
	} {
		_, err := conn.Exec(stmt)
		require.NoError(t, err)
	}
	require.NoError(t, conn.Close())

	s, err := ImportSchema(ctx, "sqlite://"+dbPath, &ImportOptions{ExcludeTables: []string{"audit_log"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"posts", "users"}, s.TableNames())

	posts, _ := s.Table("posts")
	assert.Len(t, posts.ForeignKeys(), 1, "the key to the excluded table is dropped")

	opts := Options{
		SchemasDir:    filepath.Join(root, "schemas"),
		MigrationsDir: filepath.Join(root, "migrations"),
	}
	_, err = WriteSchema(s, opts.SchemasDir)
	require.NoError(t, err)

	mig, err := New(opts).Migrate(ctx, "baseline", false)
	require.NoError(t, err)
	require.Len(t, mig.Up, 3)
	assert.Contains(t, mig.Up[0], "CREATE TABLE users")
	assert.Contains(t, mig.Up[1], "CREATE TABLE posts")
	assert.Contains(t, mig.Up[2], "CREATE INDEX idx_posts_author")
}
