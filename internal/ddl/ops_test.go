package ddl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/migracraft/internal/schema"
)

func TestQuoteIdent(t *testing.T) {
	tests := map[string]string{
		"users":      "users",
		"order_item": "order_item",
		"user":       `"user"`,
		"Order":      `"Order"`,
		"first name": `"first name"`,
		`we"ird`:     `"we""ird"`,
		"1st":        `"1st"`,
	}
	for in, want := range tests {
		assert.Equal(t, want, quoteIdent(in), in)
	}
}

func TestOperationSQL(t *testing.T) {
	tests := []struct {
		name string
		op   Operation
		want string
	}{
		{
			name: "create table with every constraint kind",
			op: CreateTable{Table: schema.Table{
				Name: "orders",
				Columns: []schema.Column{
					{Name: "id", Type: "bigint", Identity: true},
					{Name: "user", Type: "integer", Nullable: true},
					{Name: "status", Type: "text", Default: ptr("'new'")},
				},
				Constraints: []schema.Constraint{
					pk("orders", "id"),
					{Name: "orders_status_key", Kind: schema.Unique, Columns: []string{"status", "user"}},
					{Name: "orders_status_check", Kind: schema.Check, Expression: "status <> ''"},
					{
						Name: "orders_user_fkey", Kind: schema.ForeignKey, Columns: []string{"user"},
						References: &schema.Reference{Table: "users", Columns: []string{"id"}, OnDelete: "cascade", OnUpdate: "NO ACTION"},
					},
				},
			}},
			want: "CREATE TABLE orders (\n" +
				"    id bigint GENERATED BY DEFAULT AS IDENTITY NOT NULL,\n" +
				"    \"user\" integer,\n" +
				"    status text NOT NULL DEFAULT 'new',\n" +
				"    CONSTRAINT orders_pkey PRIMARY KEY (id),\n" +
				"    CONSTRAINT orders_status_key UNIQUE (status, \"user\"),\n" +
				"    CONSTRAINT orders_status_check CHECK (status <> ''),\n" +
				"    CONSTRAINT orders_user_fkey FOREIGN KEY (\"user\") REFERENCES users (id) ON DELETE CASCADE ON UPDATE NO ACTION\n" +
				");",
		},
		{
			name: "drop table",
			op:   DropTable{Table: schema.Table{Name: "orders"}},
			want: "DROP TABLE orders;",
		},
		{
			name: "rename table",
			op:   RenameTable{From: "users", To: "accounts"},
			want: "ALTER TABLE users RENAME TO accounts;",
		},
		{
			name: "add column",
			op:   AddColumn{Table: "users", Column: schema.Column{Name: "age", Type: "smallint", Default: ptr("0")}},
			want: "ALTER TABLE users ADD COLUMN age smallint NOT NULL DEFAULT 0;",
		},
		{
			name: "widening type change",
			op:   AlterColumnType{Table: "users", Column: "age", From: "smallint", To: "bigint"},
			want: "ALTER TABLE users ALTER COLUMN age TYPE bigint;",
		},
		{
			name: "narrowing type change",
			op:   AlterColumnType{Table: "users", Column: "age", From: "bigint", To: "smallint"},
			want: "ALTER TABLE users ALTER COLUMN age TYPE smallint USING age::smallint;",
		},
		{
			name: "drop not null",
			op:   AlterColumnNullability{Table: "users", Column: "age", Nullable: true},
			want: "ALTER TABLE users ALTER COLUMN age DROP NOT NULL;",
		},
		{
			name: "drop default",
			op:   AlterColumnDefault{Table: "users", Column: "age", From: ptr("0")},
			want: "ALTER TABLE users ALTER COLUMN age DROP DEFAULT;",
		},
		{
			name: "drop identity",
			op:   AlterColumnIdentity{Table: "users", Column: "id"},
			want: "ALTER TABLE users ALTER COLUMN id DROP IDENTITY;",
		},
		{
			name: "create index with method",
			op:   CreateIndex{Index: schema.Index{Name: "idx_docs_body", Table: "docs", Columns: []string{"body"}, Method: "gin"}},
			want: "CREATE INDEX idx_docs_body ON docs USING gin (body);",
		},
		{
			name: "drop constraint",
			op:   DropConstraint{Table: "users", Constraint: schema.Constraint{Name: "users_email_key"}},
			want: "ALTER TABLE users DROP CONSTRAINT users_email_key;",
		},
		{
			name: "rename constraint",
			op:   RenameConstraint{Table: "accounts", From: "users_pkey", To: "accounts_pkey"},
			want: "ALTER TABLE accounts RENAME CONSTRAINT users_pkey TO accounts_pkey;",
		},
		{
			name: "rename index",
			op:   RenameIndex{Table: "accounts", From: "idx_users_email", To: "idx_accounts_email"},
			want: "ALTER INDEX idx_users_email RENAME TO idx_accounts_email;",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.op.SQL())
		})
	}
}

func TestInverseOfInverse(t *testing.T) {
	ops := []Operation{
		CreateTable{Table: usersTable()},
		RenameTable{From: "a", To: "b"},
		AddColumn{Table: "users", Column: schema.Column{Name: "x", Type: "text"}},
		RenameColumn{Table: "users", From: "a", To: "b"},
		AlterColumnType{Table: "users", Column: "x", From: "text", To: "varchar(3)"},
		AlterColumnNullability{Table: "users", Column: "x", Nullable: true},
		AlterColumnDefault{Table: "users", Column: "x", To: ptr("'a'")},
		AlterColumnIdentity{Table: "users", Column: "id", Identity: true},
		AddConstraint{Table: "users", Constraint: pk("users", "id")},
		CreateIndex{Index: schema.Index{Name: "i", Table: "users", Columns: []string{"x"}}},
		RenameConstraint{Table: "users", From: "a", To: "b"},
		RenameIndex{Table: "users", From: "a", To: "b"},
	}
	for _, op := range ops {
		assert.Equal(t, op, op.Inverse().Inverse(), "%T", op)
		assert.NotEqual(t, op.SQL(), op.Inverse().SQL(), "%T", op)
	}
}

func TestApplyRejectsInvalidOperations(t *testing.T) {
	base := schema.New(usersTable(), sessionsTable())

	tests := []struct {
		name string
		op   Operation
	}{
		{"create existing table", CreateTable{Table: usersTable()}},
		{"drop referenced table", DropTable{Table: usersTable()}},
		{"drop missing table", DropTable{Table: schema.Table{Name: "nope"}}},
		{"add existing column", AddColumn{Table: "users", Column: schema.Column{Name: "name", Type: "text"}}},
		{"drop constrained column", DropColumn{Table: "sessions", Column: schema.Column{Name: "user_id"}}},
		{"drop referenced column", DropColumn{Table: "users", Column: schema.Column{Name: "id"}}},
		{"rename onto existing table", RenameTable{From: "users", To: "sessions"}},
		{"duplicate constraint name", AddConstraint{Table: "users", Constraint: schema.Constraint{Name: "sessions_pkey", Kind: schema.Unique, Columns: []string{"name"}}}},
		{"foreign key to missing table", AddConstraint{Table: "users", Constraint: fk("users_x_fkey", "users", "id", "nope", "id")}},
		{"index on missing column", CreateIndex{Index: schema.Index{Name: "i", Table: "users", Columns: []string{"nope"}}}},
		{"drop identity from plain column", AlterColumnIdentity{Table: "users", Column: "id", Identity: false}},
		{"drop primary key a foreign key depends on", DropConstraint{Table: "users", Constraint: pk("users", "id")}},
		{"rename missing constraint", RenameConstraint{Table: "users", From: "nope", To: "users_key"}},
		{"rename constraint onto existing name", RenameConstraint{Table: "users", From: "users_pkey", To: "sessions_pkey"}},
		{"rename missing index", RenameIndex{Table: "users", From: "nope", To: "i"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Apply(base, []Operation{tt.op})
			assert.Error(t, err)
		})
	}
}

func TestApplyDoesNotModifyInput(t *testing.T) {
	base := schema.New(usersTable())
	out, err := Apply(base, []Operation{
		AddColumn{Table: "users", Column: schema.Column{Name: "email", Type: "text", Nullable: true}},
	})
	require.NoError(t, err)

	users, _ := base.Table("users")
	assert.Len(t, users.Columns, 2)
	users, _ = out.Table("users")
	assert.Len(t, users.Columns, 3)
}
