package migracraft

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/migracraft/internal/migration"
	"github.com/tordrt/migracraft/internal/schema"
)

const usersSchema = `tables:
  users:
    columns:
      - name: id
        type: bigint
        identity: true
        primary_key: true
      - name: name
        type: text
        nullable: false
`

const usersWithEmail = usersSchema + `      - name: email
        type: text
`

func newTestProject(t *testing.T, schemaYAML string) (*Project, Options) {
	t.Helper()

	root := t.TempDir()
	opts := Options{
		SchemasDir:    filepath.Join(root, "schemas"),
		MigrationsDir: filepath.Join(root, "migrations"),
	}
	require.NoError(t, os.MkdirAll(opts.SchemasDir, 0755))
	writeSchema(t, opts, schemaYAML)
	return New(opts), opts
}

func writeSchema(t *testing.T, opts Options, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(opts.SchemasDir, "users.yaml"), []byte(content), 0644))
}

func migrationFiles(t *testing.T, opts Options) []string {
	t.Helper()

	matches, err := filepath.Glob(filepath.Join(opts.MigrationsDir, "*.sql"))
	require.NoError(t, err)
	return matches
}

func TestProject_MigrateAndRollback(t *testing.T) {
	ctx := context.Background()
	p, opts := newTestProject(t, usersSchema)

	first, err := p.Migrate(ctx, "", false)
	require.NoError(t, err)
	assert.Equal(t, "full_schema", first.Name)
	assert.Zero(t, first.ParentID)
	require.Len(t, first.Up, 1)
	assert.Contains(t, first.Up[0], "CREATE TABLE users")

	_, err = p.Migrate(ctx, "", false)
	assert.ErrorIs(t, err, migration.ErrNoChanges)

	writeSchema(t, opts, usersWithEmail)
	second, err := p.Migrate(ctx, "add email", false)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ParentID)
	assert.Equal(t, []string{"ALTER TABLE users ADD COLUMN email text;"}, second.Up)
	assert.Equal(t, []string{"ALTER TABLE users DROP COLUMN email;"}, second.Down)

	rollback, err := p.Rollback(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, migration.KindRollback, rollback.Kind)
	assert.Equal(t, second.ID, rollback.RollbackOf)
	assert.Equal(t, second.Down, rollback.Up)
	assert.Equal(t, second.Up, rollback.Down)

	files := migrationFiles(t, opts)
	require.Len(t, files, 3)
	assert.True(t, strings.HasSuffix(files[1], "_add_email.sql"), files[1])

	// The snapshot is back to the first migration's schema, so the email
	// column is pending again.
	var out bytes.Buffer
	require.NoError(t, p.Plan(false, "text", &out))
	assert.Contains(t, out.String(), "MIGRATION PLAN (differential)")
	assert.Contains(t, out.String(), "ADD COLUMN email text")
}

func TestProject_FullIgnoresSnapshot(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestProject(t, usersSchema)

	_, err := p.Migrate(ctx, "init", false)
	require.NoError(t, err)

	full, err := p.Migrate(ctx, "", true)
	require.NoError(t, err)
	assert.Equal(t, "full_schema", full.Name)
	assert.Zero(t, full.ParentID)
	assert.Contains(t, full.Up[0], "CREATE TABLE users")
}

func TestProject_RollbackWithoutMigrations(t *testing.T) {
	p, _ := newTestProject(t, usersSchema)

	_, err := p.Rollback(context.Background(), "")
	assert.ErrorIs(t, err, migration.ErrNoMigrations)
}

func TestProject_Validate(t *testing.T) {
	p, opts := newTestProject(t, usersSchema)

	s, err := p.Validate()
	require.NoError(t, err)
	assert.Equal(t, []string{"users"}, s.TableNames())
	assert.Empty(t, migrationFiles(t, opts), "validation writes nothing")

	writeSchema(t, opts, `tables:
  users:
    columns:
      - name: id
        type: bigint
      - name: id
        type: text
`)
	_, err = p.Validate()
	var verr *schema.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Problems[0], "duplicate column users.id")
}

func TestProject_Plan(t *testing.T) {
	p, opts := newTestProject(t, usersSchema)

	var out bytes.Buffer
	require.NoError(t, p.Plan(false, "markdown", &out))
	assert.Contains(t, out.String(), "# Migration Plan")
	assert.Contains(t, out.String(), "**Mode:** full")
	assert.Contains(t, out.String(), "```sql")
	assert.Empty(t, migrationFiles(t, opts), "plan writes nothing")

	err := p.Plan(false, "html", &out)
	assert.ErrorContains(t, err, `unsupported format "html"`)
}

func TestProject_GenerateEntities(t *testing.T) {
	p, _ := newTestProject(t, usersWithEmail)
	dir := filepath.Join(t.TempDir(), "models")

	files, err := p.GenerateEntities("go", dir)
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, "users.go")}, files)

	content, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Contains(t, string(content), "package models")
	assert.Contains(t, string(content), "type Users struct")

	_, err = p.GenerateEntities("cobol", dir)
	assert.ErrorContains(t, err, "unsupported entity language")
}

func TestEntityLanguages(t *testing.T) {
	assert.ElementsMatch(t,
		[]string{"cpp", "csharp", "dart", "go", "java", "python", "typescript"},
		EntityLanguages())
}

func TestImportSchema_InvalidURL(t *testing.T) {
	_, err := ImportSchema(context.Background(), "mongodb://localhost/db", nil)
	assert.ErrorContains(t, err, "invalid database URL scheme")

	_, err = ImportSchema(context.Background(), "", nil)
	assert.ErrorContains(t, err, "database URL is required")
}

func TestFilterExcludedTables(t *testing.T) {
	s := schema.New(
		schema.Table{Name: "users"},
		schema.Table{Name: "schema_migrations"},
		schema.Table{Name: "orders"},
	)

	filterExcludedTables(s, nil)
	assert.Len(t, s.Tables, 3)

	filterExcludedTables(s, []string{"schema_migrations", "missing"})
	assert.Equal(t, []string{"orders", "users"}, s.TableNames())
}

func TestPruneDanglingForeignKeys(t *testing.T) {
	s := schema.New(
		schema.Table{
			Name:    "orders",
			Columns: []schema.Column{{Name: "id", Type: "bigint"}, {Name: "user_id", Type: "bigint"}, {Name: "audit_id", Type: "bigint"}},
			Constraints: []schema.Constraint{
				{Name: "orders_pkey", Kind: schema.PrimaryKey, Columns: []string{"id"}},
				{Name: "orders_user_id_fkey", Kind: schema.ForeignKey, Columns: []string{"user_id"},
					References: &schema.Reference{Table: "users", Columns: []string{"id"}}},
				{Name: "orders_audit_id_fkey", Kind: schema.ForeignKey, Columns: []string{"audit_id"},
					References: &schema.Reference{Table: "audit_log", Columns: []string{"id"}}},
			},
		},
		schema.Table{Name: "users", Columns: []schema.Column{{Name: "id", Type: "bigint"}}},
	)

	dropped := pruneDanglingForeignKeys(s)
	assert.Equal(t, []string{"orders.orders_audit_id_fkey"}, dropped)

	orders, _ := s.Table("orders")
	require.Len(t, orders.Constraints, 2)
	assert.Equal(t, "orders_pkey", orders.Constraints[0].Name)
	assert.Equal(t, "orders_user_id_fkey", orders.Constraints[1].Name)
}

func TestWriteSchema(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "schemas")
	s := schema.New(schema.Table{
		Name:    "users",
		Columns: []schema.Column{{Name: "id", Type: "bigint", Identity: true}},
		Constraints: []schema.Constraint{
			{Name: "users_pkey", Kind: schema.PrimaryKey, Columns: []string{"id"}},
		},
	})

	files, err := WriteSchema(s, dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "users.yaml")}, files)

	loaded, _, err := schema.LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"users"}, loaded.TableNames())
}
