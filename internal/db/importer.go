// Package db introspects live databases into the schema model so an
// existing database can be adopted as the first declared schema.
package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/tordrt/migracraft/internal/schema"
)

// Dialect names a supported database
type Dialect string

const (
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
	SQLite   Dialect = "sqlite"
)

// Importer reads table definitions from a live database.
type Importer interface {
	// ImportSchema reads the named tables, or every table when tables is
	// empty.
	ImportSchema(ctx context.Context, tables []string) (*schema.Schema, error)
	Close() error
}

// ParseURL detects the dialect of a database URL and returns the connection
// string its driver expects.
func ParseURL(url string) (Dialect, string, error) {
	if url == "" {
		return "", "", fmt.Errorf("database URL is required")
	}

	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		return Postgres, url, nil
	}

	if strings.HasPrefix(url, "mysql://") {
		// The MySQL driver takes a DSN without scheme.
		return MySQL, strings.TrimPrefix(url, "mysql://"), nil
	}

	if strings.HasPrefix(url, "sqlite://") {
		return SQLite, strings.TrimPrefix(url, "sqlite://"), nil
	}

	return "", "", fmt.Errorf("invalid database URL scheme (must start with postgres://, mysql://, or sqlite://)")
}

// Open connects to the database at url. schemaName selects the PostgreSQL
// schema ("public" when empty) or the MySQL database (taken from the DSN
// when empty); SQLite ignores it.
func Open(ctx context.Context, url, schemaName string) (Importer, error) {
	dialect, conn, err := ParseURL(url)
	if err != nil {
		return nil, err
	}

	switch dialect {
	case Postgres:
		if schemaName == "" {
			schemaName = "public"
		}
		return NewPostgresImporter(ctx, conn, schemaName)
	case MySQL:
		if schemaName == "" {
			schemaName, err = ParseDatabaseName(conn)
			if err != nil {
				return nil, fmt.Errorf("failed to determine database name: %w", err)
			}
		}
		return NewMySQLImporter(ctx, conn, schemaName)
	default:
		return NewSQLiteImporter(ctx, conn)
	}
}

// tableBuilder collects introspection rows into a table. Multi-column
// constraints arrive one row per column and are merged by name.
type tableBuilder struct {
	table schema.Table
	index map[string]int // constraint name -> position
}

func newTableBuilder(name string) *tableBuilder {
	return &tableBuilder{table: schema.Table{Name: name}, index: map[string]int{}}
}

func (b *tableBuilder) addColumn(c schema.Column) {
	b.table.Columns = append(b.table.Columns, c)
}

// addConstraintColumn appends column (and its referenced column for foreign
// keys) to the named constraint, creating it on first use.
func (b *tableBuilder) addConstraintColumn(c schema.Constraint, column, refColumn string) {
	i, ok := b.index[c.Name]
	if !ok {
		c.Columns = nil
		if c.References != nil {
			ref := *c.References
			ref.Columns = nil
			c.References = &ref
		}
		b.table.Constraints = append(b.table.Constraints, c)
		i = len(b.table.Constraints) - 1
		b.index[c.Name] = i
	}
	con := &b.table.Constraints[i]
	con.Columns = append(con.Columns, column)
	if con.References != nil {
		con.References.Columns = append(con.References.Columns, refColumn)
	}
}

func (b *tableBuilder) addConstraint(c schema.Constraint) {
	b.index[c.Name] = len(b.table.Constraints)
	b.table.Constraints = append(b.table.Constraints, c)
}

func (b *tableBuilder) hasConstraint(name string) bool {
	_, ok := b.index[name]
	return ok
}

func (b *tableBuilder) addIndex(idx schema.Index) {
	idx.Table = b.table.Name
	if strings.EqualFold(idx.Method, "btree") {
		idx.Method = ""
	}
	b.table.Indexes = append(b.table.Indexes, idx)
}

// build returns the table with primary key columns marked not null.
func (b *tableBuilder) build() schema.Table {
	for _, col := range b.table.PrimaryKey() {
		if c, ok := b.table.Column(col); ok {
			c.Nullable = false
		}
	}
	return b.table
}

// referentialAction normalises an ON DELETE / ON UPDATE rule. The default
// NO ACTION is left empty.
func referentialAction(rule string) string {
	rule = strings.ToUpper(strings.TrimSpace(rule))
	if rule == "" || rule == "NO ACTION" {
		return ""
	}
	return rule
}

// constraintName builds the PostgreSQL default name for an unnamed
// constraint.
func constraintName(table string, kind schema.ConstraintKind, columns []string) string {
	switch kind {
	case schema.PrimaryKey:
		return table + "_pkey"
	case schema.Unique:
		return fmt.Sprintf("%s_%s_key", table, strings.Join(columns, "_"))
	case schema.ForeignKey:
		return fmt.Sprintf("%s_%s_fkey", table, strings.Join(columns, "_"))
	default:
		return table + "_check"
	}
}
