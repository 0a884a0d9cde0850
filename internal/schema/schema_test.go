package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() *Schema {
	return New(
		Table{
			Name:        "users",
			Columns:     []Column{{Name: "id", Type: "integer"}, {Name: "name", Type: "text", Nullable: true}},
			Constraints: []Constraint{{Name: "users_pkey", Kind: PrimaryKey, Columns: []string{"id"}}},
			Indexes:     []Index{{Name: "idx_users_name", Columns: []string{"name"}}},
		},
		Table{
			Name:    "posts",
			Columns: []Column{{Name: "id", Type: "integer"}, {Name: "author_id", Type: "integer"}},
			Constraints: []Constraint{{
				Name: "posts_author_id_fkey", Kind: ForeignKey, Columns: []string{"author_id"},
				References: &Reference{Table: "users", Columns: []string{"id"}},
			}},
		},
	)
}

func TestNewOrdersTablesAndOwnsIndexes(t *testing.T) {
	s := sample()
	assert.Equal(t, []string{"posts", "users"}, s.TableNames())
	users, _ := s.Table("users")
	assert.Equal(t, "users", users.Indexes[0].Table)
	require.NoError(t, Validate(s))
}

func TestCloneIsDeep(t *testing.T) {
	s := sample()
	c := s.Clone()
	posts, _ := c.Table("posts")
	posts.Constraints[0].References.Columns[0] = "changed"

	orig, _ := s.Table("posts")
	assert.Equal(t, "id", orig.Constraints[0].References.Columns[0])
}

func TestRenameTable(t *testing.T) {
	s := sample()
	require.NoError(t, s.RenameTable("users", "accounts"))

	assert.Equal(t, []string{"accounts", "posts"}, s.TableNames())
	accounts, _ := s.Table("accounts")
	assert.Equal(t, "accounts", accounts.Indexes[0].Table)
	posts, _ := s.Table("posts")
	assert.Equal(t, "accounts", posts.Constraints[0].References.Table)

	assert.Error(t, s.RenameTable("missing", "x"))
	assert.Error(t, s.RenameTable("posts", "accounts"))
}

func TestRenameColumn(t *testing.T) {
	s := sample()
	require.NoError(t, s.RenameColumn("users", "id", "user_id"))

	users, _ := s.Table("users")
	assert.Equal(t, []string{"user_id"}, users.PrimaryKey())
	posts, _ := s.Table("posts")
	assert.Equal(t, []string{"user_id"}, posts.Constraints[0].References.Columns)

	assert.Error(t, s.RenameColumn("users", "nope", "x"))
	assert.Error(t, s.RenameColumn("users", "name", "user_id"))
}

func TestReferencingForeignKeys(t *testing.T) {
	refs := sample().ReferencingForeignKeys("users")
	require.Len(t, refs["posts"], 1)
	assert.Equal(t, "posts_author_id_fkey", refs["posts"][0].Name)
}

func TestSameType(t *testing.T) {
	assert.True(t, SameType("VARCHAR( 10 )", "varchar(10)"))
	assert.True(t, SameType("numeric(10, 2)", "NUMERIC(10,2)"))
	assert.True(t, SameType("timestamp  with time zone", "timestamp with time zone"))
	assert.False(t, SameType("varchar(10)", "varchar(20)"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *Schema)
		want   string
	}{
		{
			name:   "duplicate column",
			mutate: func(s *Schema) { s.Tables[1].Columns = append(s.Tables[1].Columns, Column{Name: "id", Type: "int"}) },
			want:   "duplicate column users.id",
		},
		{
			name:   "missing type",
			mutate: func(s *Schema) { s.Tables[1].Columns[1].Type = " " },
			want:   "column users.name has no type",
		},
		{
			name: "identity with default",
			mutate: func(s *Schema) {
				d := "1"
				s.Tables[1].Columns[0].Identity = true
				s.Tables[1].Columns[0].Default = &d
			},
			want: "cannot be an identity column and have a default",
		},
		{
			name: "index name reused",
			mutate: func(s *Schema) {
				s.Tables[0].Indexes = []Index{{Name: "idx_users_name", Table: "posts", Columns: []string{"id"}}}
			},
			want: `index "idx_users_name" declared on both`,
		},
		{
			name:   "foreign key to unknown column",
			mutate: func(s *Schema) { s.Tables[0].Constraints[0].References.Columns = []string{"uuid"} },
			want:   "references unknown column users.uuid",
		},
		{
			name:   "invalid on delete action",
			mutate: func(s *Schema) { s.Tables[0].Constraints[0].References.OnDelete = "EXPLODE" },
			want:   `invalid on_delete "EXPLODE"`,
		},
		{
			name: "two primary keys",
			mutate: func(s *Schema) {
				s.Tables[1].Constraints = append(s.Tables[1].Constraints,
					Constraint{Name: "users_pkey2", Kind: PrimaryKey, Columns: []string{"name"}})
			},
			want: "more than one primary key",
		},
		{
			name:   "check without expression",
			mutate: func(s *Schema) { s.Tables[1].Constraints[0] = Constraint{Name: "users_check", Kind: Check} },
			want:   "has no expression",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := sample()
			tt.mutate(s)
			err := Validate(s)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Contains(t, verr.Error(), tt.want)
		})
	}
}
