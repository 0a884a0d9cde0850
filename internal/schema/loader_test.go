package schema

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDir(t *testing.T) {
	s, renames, err := LoadDir(filepath.Join("testdata", "shop"))
	require.NoError(t, err)

	assert.Equal(t, []string{"order_items", "orders", "users"}, s.TableNames())

	users, ok := s.Table("users")
	require.True(t, ok)
	id, _ := users.Column("id")
	assert.True(t, id.Identity)
	assert.False(t, id.Nullable)
	displayName, _ := users.Column("display_name")
	assert.True(t, displayName.Nullable)
	createdAt, _ := users.Column("created_at")
	require.NotNil(t, createdAt.Default)
	assert.Equal(t, "now()", *createdAt.Default)

	assert.Equal(t, []string{"id"}, users.PrimaryKey())
	unique, ok := users.Constraint("users_email_key")
	require.True(t, ok)
	assert.Equal(t, Unique, unique.Kind)
	idx, ok := users.Index("idx_users_created_at")
	require.True(t, ok)
	assert.Equal(t, "users", idx.Table)

	orders, _ := s.Table("orders")
	fk, ok := orders.Constraint("orders_user_id_fkey")
	require.True(t, ok)
	assert.Equal(t, &Reference{Table: "users", Columns: []string{"id"}, OnDelete: "CASCADE"}, fk.References)
	check, ok := orders.Constraint("orders_check")
	require.True(t, ok)
	assert.Equal(t, "total >= 0", check.Expression)
	ordersIdx, _ := orders.Index("idx_orders_user")
	assert.Equal(t, "btree", ordersIdx.Method)

	items, _ := s.Table("order_items")
	assert.Equal(t, []string{"order_id", "line"}, items.PrimaryKey())
	line, _ := items.Column("line")
	assert.False(t, line.Nullable)
	sku, _ := items.Column("sku")
	assert.True(t, sku.Nullable)
	_, ok = items.Constraint("order_items_order_id_fkey")
	assert.True(t, ok)

	assert.Equal(t, map[string]string{"orders": "purchases"}, renames.Tables)
	assert.Equal(t, map[string]map[string]string{"users": {"display_name": "name"}}, renames.Columns)
}

func TestLoadDir_NoFiles(t *testing.T) {
	_, _, err := LoadDir(t.TempDir())
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Problems[0], "no schema files")
}

func TestLoadDir_MissingDirectory(t *testing.T) {
	_, _, err := LoadDir(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	var verr *ValidationError
	assert.False(t, errors.As(err, &verr))
}

func TestLoadDir_DuplicateTableAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	doc := "tables:\n  users:\n    columns:\n      - name: id\n        type: integer\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte(doc), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yaml"), []byte(doc), 0644))

	_, _, err := LoadDir(dir)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Error(), `table "users" already declared in a.yaml`)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "unknown field",
			doc:  "tables:\n  t:\n    colums: []\n",
			want: "colums",
		},
		{
			name: "malformed reference",
			doc:  "tables:\n  t:\n    columns:\n      - name: a\n        type: int\n        references: users\n",
			want: "table.column",
		},
		{
			name: "reference to unknown table",
			doc:  "tables:\n  t:\n    columns:\n      - name: a\n        type: int\n        references: users.id\n",
			want: `unknown table "users"`,
		},
		{
			name: "primary key declared twice",
			doc:  "tables:\n  t:\n    primary_key: [a]\n    columns:\n      - name: a\n        type: int\n        primary_key: true\n",
			want: "both on columns and at table level",
		},
		{
			name: "index on unknown column",
			doc:  "tables:\n  t:\n    columns:\n      - name: a\n        type: int\n    indexes:\n      - columns: [b]\n",
			want: "unknown column t.b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Parse([]byte(tt.doc))
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Contains(t, verr.Error(), tt.want)
		})
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	s, _, err := LoadDir(filepath.Join("testdata", "shop"))
	require.NoError(t, err)

	dir := t.TempDir()
	written, err := WriteDir(dir, s)
	require.NoError(t, err)
	assert.Len(t, written, 3)

	reloaded, renames, err := LoadDir(dir)
	require.NoError(t, err)
	assert.True(t, renames.Empty())
	assert.Equal(t, s.TableNames(), reloaded.TableNames())
	for _, name := range s.TableNames() {
		want, _ := s.Table(name)
		got, _ := reloaded.Table(name)
		assert.ElementsMatch(t, want.Constraints, got.Constraints, name)
		assert.Equal(t, want.Indexes, got.Indexes, name)
		assert.Equal(t, want.Columns, got.Columns, name)
	}
}
