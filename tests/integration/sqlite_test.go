//go:build integration
// +build integration

package integration

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/migracraft/internal/db"
)

var sqliteShop = []string{
	`CREATE TABLE users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE products (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		category TEXT,
		price NUMERIC NOT NULL
	)`,
	`CREATE INDEX idx_category ON products (category)`,
	`CREATE TABLE orders (
		id INTEGER PRIMARY KEY,
		user_id INTEGER NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		total NUMERIC
	)`,
	`CREATE TABLE order_items (
		order_id INTEGER NOT NULL REFERENCES orders (id),
		product_id INTEGER NOT NULL REFERENCES products (id),
		quantity INTEGER NOT NULL DEFAULT 1,
		PRIMARY KEY (order_id, product_id)
	)`,
}

func createSQLiteShop(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "shop.db")
	conn, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	for _, stmt := range sqliteShop {
		_, err := conn.Exec(stmt)
		require.NoError(t, err, stmt)
	}
	return path
}

func TestSQLiteImport(t *testing.T) {
	ctx := context.Background()
	path := createSQLiteShop(t)

	importer, err := db.Open(ctx, "sqlite://"+path, "")
	require.NoError(t, err)
	defer func() { _ = importer.Close() }()

	s, err := importer.ImportSchema(ctx, nil)
	require.NoError(t, err)

	verifyTables(t, s, shopTables)

	users := requireTable(t, s, "users")
	verifyColumns(t, users, []string{"id", "username", "email", "status", "created_at"})
	assert.Equal(t, []string{"id"}, users.PrimaryKey())
	verifyUnique(t, users, "username")
	assert.Equal(t, "users_username_key", users.Constraints[1].Name)

	status, ok := users.Column("status")
	require.True(t, ok)
	require.NotNil(t, status.Default)
	assert.Equal(t, "'active'", *status.Default)

	orders := requireTable(t, s, "orders")
	fk := verifyForeignKey(t, orders, "user_id", "users")
	require.NotNil(t, fk)
	assert.Equal(t, "orders_user_id_fkey", fk.Name)
	assert.Equal(t, []string{"id"}, fk.References.Columns)
	assert.Equal(t, "CASCADE", fk.References.OnDelete)

	items := requireTable(t, s, "order_items")
	assert.Equal(t, []string{"order_id", "product_id"}, items.PrimaryKey())
	verifyForeignKey(t, items, "product_id", "products")

	products := requireTable(t, s, "products")
	verifyIndex(t, products, "idx_category", "category")
}

func TestSQLiteImportSelectedTables(t *testing.T) {
	ctx := context.Background()
	path := createSQLiteShop(t)

	importer, err := db.Open(ctx, "sqlite://"+path, "")
	require.NoError(t, err)
	defer func() { _ = importer.Close() }()

	s, err := importer.ImportSchema(ctx, []string{"users", "products"})
	require.NoError(t, err)
	verifyTables(t, s, []string{"products", "users"})

	_, err = importer.ImportSchema(ctx, []string{"missing"})
	assert.ErrorContains(t, err, "table missing not found")
}
