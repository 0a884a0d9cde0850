package formatter

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/migracraft/internal/ddl"
	"github.com/tordrt/migracraft/internal/diff"
	"github.com/tordrt/migracraft/internal/schema"
)

func usersTable(nameType string, extra ...schema.Column) schema.Table {
	cols := []schema.Column{
		{Name: "id", Type: "bigint"},
		{Name: "name", Type: nameType},
	}
	return schema.Table{
		Name:    "users",
		Columns: append(cols, extra...),
		Constraints: []schema.Constraint{
			{Name: "users_pkey", Kind: schema.PrimaryKey, Columns: []string{"id"}},
		},
	}
}

func sessionsTable() schema.Table {
	return schema.Table{
		Name: "sessions",
		Columns: []schema.Column{
			{Name: "id", Type: "bigint"},
			{Name: "user_id", Type: "bigint"},
		},
		Constraints: []schema.Constraint{
			{Name: "sessions_pkey", Kind: schema.PrimaryKey, Columns: []string{"id"}},
			{
				Name: "sessions_user_id_fkey", Kind: schema.ForeignKey, Columns: []string{"user_id"},
				References: &schema.Reference{Table: "users", Columns: []string{"id"}, OnDelete: "cascade"},
			},
		},
		Indexes: []schema.Index{{Name: "idx_sessions_user", Columns: []string{"user_id"}}},
	}
}

func sampleReport(t *testing.T) *Report {
	t.Helper()
	prev := schema.New(usersTable("text"))
	cur := schema.New(
		usersTable("varchar(10)", schema.Column{Name: "email", Type: "text", Nullable: true}),
		sessionsTable(),
	)
	d := diff.Compute(prev, cur, nil)
	plan, err := ddl.Generate(d, ddl.Differential, ddl.Options{AllowDestructive: true})
	require.NoError(t, err)
	return &Report{Mode: ddl.Differential, Diff: d, Plan: plan}
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer

	f, err := New("text", &buf)
	require.NoError(t, err)
	assert.IsType(t, &TextFormatter{}, f)

	f, err = New("MD", &buf)
	require.NoError(t, err)
	assert.IsType(t, &MarkdownFormatter{}, f)

	_, err = New("html", &buf)
	assert.EqualError(t, err, `unsupported format "html" (use text or markdown)`)
}

func TestTextFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewTextFormatter(&buf).Format(sampleReport(t)))
	out := buf.String()

	assert.Contains(t, out, "MIGRATION PLAN (differential)\n")
	assert.Contains(t, out, "TABLE sessions (added)\n"+
		"  id: bigint NOT NULL\n"+
		"  user_id: bigint NOT NULL\n"+
		"  CONSTRAINTS:\n"+
		"    sessions_pkey PRIMARY KEY (id)\n"+
		"    sessions_user_id_fkey FOREIGN KEY (user_id) → users(id) ON DELETE CASCADE\n"+
		"  INDEXES:\n"+
		"    idx_sessions_user (user_id)\n")
	assert.Contains(t, out, "TABLE users (changed)\n"+
		"  + email: text\n"+
		"  ~ name: text NOT NULL -> varchar(10) NOT NULL [DESTRUCTIVE: ")
	assert.Contains(t, out, "UP:\n  ALTER TABLE users ADD COLUMN email text;\n")
	assert.Contains(t, out, "  CREATE TABLE sessions (\n      id bigint NOT NULL,\n")
	assert.Contains(t, out, "DOWN:\n  DROP INDEX idx_sessions_user;\n")
	assert.NotContains(t, out, "IGNORED RENAMES")
}

func TestTextFormatter_RenamesAndIgnored(t *testing.T) {
	prev := schema.New(usersTable("text"))
	renamed := usersTable("text")
	renamed.Name = "accounts"
	renamed.Constraints[0].Name = "accounts_pkey"
	cur := schema.New(renamed)

	d := diff.Compute(prev, cur, &schema.Renames{Tables: map[string]string{"accounts": "users"}})
	d.Ignored = append(d.Ignored, "column customers.full_name: customers does not exist")
	plan, err := ddl.Generate(d, ddl.Differential, ddl.Options{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, NewTextFormatter(&buf).Format(&Report{Mode: ddl.Differential, Diff: d, Plan: plan}))
	out := buf.String()

	assert.Contains(t, out, "TABLE accounts (renamed from users)\n")
	assert.Contains(t, out, "IGNORED RENAMES:\n  column customers.full_name: customers does not exist\n")
	assert.Contains(t, out, "TABLE accounts (changed)\n"+
		"  CONSTRAINTS:\n"+
		"    > accounts_pkey PRIMARY KEY (id) (renamed from users_pkey)\n")
	assert.Contains(t, out, "UP:\n  ALTER TABLE users RENAME TO accounts;\n"+
		"  ALTER TABLE accounts RENAME CONSTRAINT users_pkey TO accounts_pkey;\n")
}

func TestTextFormatter_NoChanges(t *testing.T) {
	s := schema.New(usersTable("text"))
	r := &Report{Mode: ddl.Full, Diff: diff.Compute(s, s, nil), Plan: &ddl.Plan{}}

	var buf bytes.Buffer
	require.NoError(t, NewTextFormatter(&buf).Format(r))
	assert.Equal(t, "MIGRATION PLAN (full)\n\nNo changes detected.\n", buf.String())
}

func TestMarkdownFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewMarkdownFormatter(&buf).Format(sampleReport(t)))
	out := buf.String()

	assert.Contains(t, out, "# Migration Plan\n\n**Mode:** differential\n\n## Changes\n\n")
	assert.Contains(t, out, "### sessions (added)\n\n"+
		"- **id:** bigint, PK, NOT NULL\n"+
		"- **user_id:** bigint, NOT NULL\n"+
		"- constraint `sessions_user_id_fkey`: FOREIGN KEY (user_id) → users(id) ON DELETE CASCADE\n"+
		"- index `idx_sessions_user` on (user_id)\n")
	assert.Contains(t, out, "### users (changed)\n\n"+
		"- added column **email:** text\n"+
		"- modified column **name:** text NOT NULL → varchar(10) NOT NULL (destructive: ")
	assert.Contains(t, out, "> **Warning:** this migration contains destructive changes:\n> - users.name: ")
	assert.Contains(t, out, "## Up\n\n```sql\nALTER TABLE users ADD COLUMN email text;\n")
	assert.Contains(t, out, "## Down\n\n```sql\nDROP INDEX idx_sessions_user;\n")
}

func TestMarkdownFormatter_NoChanges(t *testing.T) {
	r := &Report{Mode: ddl.Differential, Diff: diff.Compute(nil, nil, nil), Plan: &ddl.Plan{}}

	var buf bytes.Buffer
	require.NoError(t, NewMarkdownFormatter(&buf).Format(r))
	assert.Equal(t, "# Migration Plan\n\n**Mode:** differential\n\nNo changes detected.\n", buf.String())
}

func TestSpecs(t *testing.T) {
	def := "0"
	assert.Equal(t, "integer IDENTITY NOT NULL", columnSpec(schema.Column{Type: "integer", Identity: true}))
	assert.Equal(t, "numeric DEFAULT 0", columnSpec(schema.Column{Type: "numeric", Nullable: true, Default: &def}))
	assert.Equal(t, "CHECK (total >= 0)", constraintSpec(schema.Constraint{Kind: schema.Check, Expression: "total >= 0"}))
	assert.Equal(t, "UNIQUE (a, b)", constraintSpec(schema.Constraint{Kind: schema.Unique, Columns: []string{"a", "b"}}))
	assert.Equal(t, "(body) UNIQUE USING gin", indexSpec(schema.Index{Columns: []string{"body"}, Unique: true, Method: "gin"}))
}
