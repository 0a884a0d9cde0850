//go:build integration
// +build integration

package integration

import (
	"os"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/migracraft/internal/schema"
)

// shopTables lists the tables every fixture creates.
var shopTables = []string{"order_items", "orders", "products", "users"}

// databaseURL returns the URL in the named variable or skips the test.
func databaseURL(t *testing.T, env string) string {
	t.Helper()

	url := os.Getenv(env)
	if url == "" {
		t.Skipf("%s not set", env)
	}
	return url
}

// requireTable returns the named table or fails the test.
func requireTable(t *testing.T, s *schema.Schema, name string) *schema.Table {
	t.Helper()

	table, ok := s.Table(name)
	require.True(t, ok, "table %s not found", name)
	return table
}

// verifyTables checks that the schema holds exactly the expected tables.
func verifyTables(t *testing.T, s *schema.Schema, expected []string) {
	t.Helper()

	assert.ElementsMatch(t, expected, s.TableNames())
}

// verifyColumns checks that the expected columns exist in order.
func verifyColumns(t *testing.T, table *schema.Table, expected []string) {
	t.Helper()

	var names []string
	for _, col := range table.Columns {
		names = append(names, col.Name)
	}
	assert.Equal(t, expected, names, "columns of %s", table.Name)
}

// verifyIdentity checks that a column was imported as an identity column.
func verifyIdentity(t *testing.T, table *schema.Table, column string) {
	t.Helper()

	col, ok := table.Column(column)
	require.True(t, ok, "column %s.%s not found", table.Name, column)
	assert.True(t, col.Identity, "%s.%s should be an identity column", table.Name, column)
	assert.Nil(t, col.Default, "%s.%s should have no default", table.Name, column)
	assert.False(t, col.Nullable)
}

// verifyUnique checks that a unique constraint covers exactly columns.
func verifyUnique(t *testing.T, table *schema.Table, columns ...string) {
	t.Helper()

	for _, c := range table.Constraints {
		if c.Kind == schema.Unique && slices.Equal(c.Columns, columns) {
			return
		}
	}
	t.Errorf("no unique constraint on %s%v", table.Name, columns)
}

// verifyForeignKey checks that a foreign key from column references target.
func verifyForeignKey(t *testing.T, table *schema.Table, column, target string) *schema.Constraint {
	t.Helper()

	for _, fk := range table.ForeignKeys() {
		if fk.References.Table == target && slices.Equal(fk.Columns, []string{column}) {
			return &fk
		}
	}
	t.Errorf("no foreign key from %s.%s to %s", table.Name, column, target)
	return nil
}

// verifyIndex checks that an index exists with the expected columns.
func verifyIndex(t *testing.T, table *schema.Table, name string, columns ...string) {
	t.Helper()

	idx, ok := table.Index(name)
	if !assert.True(t, ok, "index %s on %s not found", name, table.Name) {
		return
	}
	assert.Equal(t, columns, idx.Columns)
	assert.Equal(t, table.Name, idx.Table)
	assert.Empty(t, idx.Method, "btree is the default method")
}

// verifyShop runs the checks shared by every dialect.
func verifyShop(t *testing.T, s *schema.Schema) {
	t.Helper()

	verifyTables(t, s, shopTables)

	users := requireTable(t, s, "users")
	verifyColumns(t, users, []string{"id", "username", "email", "status", "created_at"})
	assert.Equal(t, []string{"id"}, users.PrimaryKey())
	assert.Equal(t, "users_pkey", users.Constraints[0].Name)
	verifyIdentity(t, users, "id")
	verifyUnique(t, users, "username")

	orders := requireTable(t, s, "orders")
	if fk := verifyForeignKey(t, orders, "user_id", "users"); fk != nil {
		assert.Equal(t, []string{"id"}, fk.References.Columns)
		assert.Equal(t, "CASCADE", fk.References.OnDelete)
	}

	items := requireTable(t, s, "order_items")
	assert.Equal(t, []string{"order_id", "product_id"}, items.PrimaryKey())
	verifyForeignKey(t, items, "order_id", "orders")
	verifyForeignKey(t, items, "product_id", "products")

	products := requireTable(t, s, "products")
	verifyIndex(t, products, "idx_category", "category")

	require.NoError(t, schema.Validate(s))
}
