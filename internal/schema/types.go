package schema

import (
	"slices"
	"strings"
)

// ConstraintKind identifies the kind of a table constraint
type ConstraintKind string

const (
	PrimaryKey ConstraintKind = "primary_key"
	Unique     ConstraintKind = "unique"
	Check      ConstraintKind = "check"
	ForeignKey ConstraintKind = "foreign_key"
)

// Schema represents one complete declared schema version.
// Tables are kept ordered by name; use New to build one.
type Schema struct {
	Tables []Table `yaml:"tables"`
}

// Table represents a database table
type Table struct {
	Name        string       `yaml:"name"`
	Columns     []Column     `yaml:"columns"`
	Constraints []Constraint `yaml:"constraints,omitempty"`
	Indexes     []Index      `yaml:"indexes,omitempty"`
}

// Column represents a table column
type Column struct {
	Name     string  `yaml:"name"`
	Type     string  `yaml:"type"`
	Nullable bool    `yaml:"nullable"`
	Default  *string `yaml:"default,omitempty"`
	Identity bool    `yaml:"identity,omitempty"`
}

// Constraint represents a primary key, unique, check or foreign key constraint
type Constraint struct {
	Name       string         `yaml:"name"`
	Kind       ConstraintKind `yaml:"kind"`
	Columns    []string       `yaml:"columns,omitempty"`
	Expression string         `yaml:"expression,omitempty"`
	References *Reference     `yaml:"references,omitempty"`
}

// Reference is the target of a foreign key
type Reference struct {
	Table    string   `yaml:"table"`
	Columns  []string `yaml:"columns"`
	OnDelete string   `yaml:"on_delete,omitempty"`
	OnUpdate string   `yaml:"on_update,omitempty"`
}

// Index represents a database index
type Index struct {
	Name    string   `yaml:"name"`
	Table   string   `yaml:"table"`
	Columns []string `yaml:"columns"`
	Unique  bool     `yaml:"unique,omitempty"`
	Method  string   `yaml:"method,omitempty"`
}

// Equal reports whether two columns are identical in every field.
func (c Column) Equal(o Column) bool {
	return c.Name == o.Name &&
		SameType(c.Type, o.Type) &&
		c.Nullable == o.Nullable &&
		SameDefault(c.Default, o.Default) &&
		c.Identity == o.Identity
}

// Equal reports structural equality of two constraints.
func (c Constraint) Equal(o Constraint) bool {
	if c.Name != o.Name || c.Kind != o.Kind || !slices.Equal(c.Columns, o.Columns) {
		return false
	}
	if normalizeSpace(c.Expression) != normalizeSpace(o.Expression) {
		return false
	}
	if (c.References == nil) != (o.References == nil) {
		return false
	}
	if c.References == nil {
		return true
	}
	a, b := c.References, o.References
	return a.Table == b.Table &&
		slices.Equal(a.Columns, b.Columns) &&
		strings.EqualFold(a.OnDelete, b.OnDelete) &&
		strings.EqualFold(a.OnUpdate, b.OnUpdate)
}

// Equal reports structural equality of two indexes.
func (i Index) Equal(o Index) bool {
	return i.Name == o.Name &&
		i.Table == o.Table &&
		i.Unique == o.Unique &&
		strings.EqualFold(i.Method, o.Method) &&
		slices.Equal(i.Columns, o.Columns)
}

// SameDefinition reports whether two constraints differ at most in name.
func (c Constraint) SameDefinition(o Constraint) bool {
	o.Name = c.Name
	return c.Equal(o)
}

// SameDefinition reports whether two indexes differ at most in name.
func (i Index) SameDefinition(o Index) bool {
	o.Name = i.Name
	return i.Equal(o)
}

// Column returns the named column.
func (t *Table) Column(name string) (*Column, bool) {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

// Constraint returns the named constraint.
func (t *Table) Constraint(name string) (*Constraint, bool) {
	for i := range t.Constraints {
		if t.Constraints[i].Name == name {
			return &t.Constraints[i], true
		}
	}
	return nil, false
}

// Index returns the named index.
func (t *Table) Index(name string) (*Index, bool) {
	for i := range t.Indexes {
		if t.Indexes[i].Name == name {
			return &t.Indexes[i], true
		}
	}
	return nil, false
}

// PrimaryKey returns the primary key columns, or nil when the table has none.
func (t *Table) PrimaryKey() []string {
	for _, c := range t.Constraints {
		if c.Kind == PrimaryKey {
			return c.Columns
		}
	}
	return nil
}

// ForeignKeys returns the table's foreign key constraints in declaration order.
func (t *Table) ForeignKeys() []Constraint {
	var fks []Constraint
	for _, c := range t.Constraints {
		if c.Kind == ForeignKey && c.References != nil {
			fks = append(fks, c)
		}
	}
	return fks
}

// SameType compares two SQL type names ignoring case and insignificant whitespace.
func SameType(a, b string) bool {
	return NormalizeType(a) == NormalizeType(b)
}

// NormalizeType lower-cases a type and strips whitespace around parentheses and commas.
func NormalizeType(t string) string {
	t = strings.ToLower(normalizeSpace(t))
	r := strings.NewReplacer(" (", "(", "( ", "(", " )", ")", ", ", ",", " ,", ",")
	return r.Replace(t)
}

// SameDefault compares two default expressions ignoring insignificant whitespace.
func SameDefault(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return normalizeSpace(*a) == normalizeSpace(*b)
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
