package schema

import (
	"fmt"
	"slices"
	"strings"
)

// New builds a Schema from tables, ordering them by name. Index owners are
// filled in from the table that holds them.
func New(tables ...Table) *Schema {
	s := &Schema{Tables: make([]Table, 0, len(tables))}
	for _, t := range tables {
		t = t.Clone()
		for i := range t.Indexes {
			t.Indexes[i].Table = t.Name
		}
		s.Tables = append(s.Tables, t)
	}
	s.sort()
	return s
}

// Empty returns a schema without tables.
func Empty() *Schema {
	return &Schema{}
}

// Table returns the named table.
func (s *Schema) Table(name string) (*Table, bool) {
	if s == nil {
		return nil, false
	}
	for i := range s.Tables {
		if s.Tables[i].Name == name {
			return &s.Tables[i], true
		}
	}
	return nil, false
}

// TableNames returns all table names in lexicographic order.
func (s *Schema) TableNames() []string {
	if s == nil {
		return nil
	}
	names := make([]string, len(s.Tables))
	for i, t := range s.Tables {
		names[i] = t.Name
	}
	return names
}

// Clone returns a deep copy of the schema.
func (s *Schema) Clone() *Schema {
	if s == nil {
		return Empty()
	}
	out := &Schema{Tables: make([]Table, len(s.Tables))}
	for i, t := range s.Tables {
		out.Tables[i] = t.Clone()
	}
	return out
}

// Put inserts or replaces a table, keeping name order. It is meant for
// building derived schemas; declared schemas are never modified in place.
func (s *Schema) Put(t Table) {
	if existing, ok := s.Table(t.Name); ok {
		*existing = t
		return
	}
	s.Tables = append(s.Tables, t)
	s.sort()
}

// Remove deletes the named table and reports whether it existed.
func (s *Schema) Remove(name string) bool {
	for i := range s.Tables {
		if s.Tables[i].Name == name {
			s.Tables = slices.Delete(s.Tables, i, i+1)
			return true
		}
	}
	return false
}

// ReferencingForeignKeys returns foreign keys of other tables that point at table.
// The result maps the owning table name to its constraints.
func (s *Schema) ReferencingForeignKeys(table string) map[string][]Constraint {
	refs := make(map[string][]Constraint)
	if s == nil {
		return refs
	}
	for _, t := range s.Tables {
		if t.Name == table {
			continue
		}
		for _, fk := range t.ForeignKeys() {
			if fk.References.Table == table {
				refs[t.Name] = append(refs[t.Name], fk)
			}
		}
	}
	return refs
}

// RenameTable renames a table and rewrites index owners and foreign keys
// that point at it.
func (s *Schema) RenameTable(from, to string) error {
	t, ok := s.Table(from)
	if !ok {
		return fmt.Errorf("table %q does not exist", from)
	}
	if _, exists := s.Table(to); exists {
		return fmt.Errorf("table %q already exists", to)
	}
	renamed := t.Clone()
	renamed.Name = to
	for i := range renamed.Indexes {
		renamed.Indexes[i].Table = to
	}
	s.Remove(from)
	s.Put(renamed)

	for i := range s.Tables {
		for j := range s.Tables[i].Constraints {
			ref := s.Tables[i].Constraints[j].References
			if ref != nil && ref.Table == from {
				ref.Table = to
			}
		}
	}
	return nil
}

// RenameColumn renames a column and rewrites every constraint, index and
// foreign key that lists it.
func (s *Schema) RenameColumn(table, from, to string) error {
	t, ok := s.Table(table)
	if !ok {
		return fmt.Errorf("table %q does not exist", table)
	}
	c, ok := t.Column(from)
	if !ok {
		return fmt.Errorf("column %s.%s does not exist", table, from)
	}
	if _, exists := t.Column(to); exists {
		return fmt.Errorf("column %s.%s already exists", table, to)
	}
	c.Name = to
	for i := range t.Constraints {
		replaceName(t.Constraints[i].Columns, from, to)
	}
	for i := range t.Indexes {
		replaceName(t.Indexes[i].Columns, from, to)
	}
	for i := range s.Tables {
		for j := range s.Tables[i].Constraints {
			ref := s.Tables[i].Constraints[j].References
			if ref != nil && ref.Table == table {
				replaceName(ref.Columns, from, to)
			}
		}
	}
	return nil
}

func replaceName(names []string, from, to string) {
	for i := range names {
		if names[i] == from {
			names[i] = to
		}
	}
}

func (s *Schema) sort() {
	slices.SortFunc(s.Tables, func(a, b Table) int {
		return strings.Compare(a.Name, b.Name)
	})
}

// Clone returns a deep copy of the table.
func (t Table) Clone() Table {
	out := t
	out.Columns = make([]Column, len(t.Columns))
	for i, c := range t.Columns {
		out.Columns[i] = c.Clone()
	}
	out.Constraints = make([]Constraint, len(t.Constraints))
	for i, c := range t.Constraints {
		out.Constraints[i] = c.Clone()
	}
	out.Indexes = make([]Index, len(t.Indexes))
	for i, idx := range t.Indexes {
		idx.Columns = slices.Clone(idx.Columns)
		out.Indexes[i] = idx
	}
	return out
}

// Clone returns a deep copy of the column.
func (c Column) Clone() Column {
	if c.Default != nil {
		d := *c.Default
		c.Default = &d
	}
	return c
}

// Clone returns a deep copy of the constraint.
func (c Constraint) Clone() Constraint {
	c.Columns = slices.Clone(c.Columns)
	if c.References != nil {
		ref := *c.References
		ref.Columns = slices.Clone(ref.Columns)
		c.References = &ref
	}
	return c
}
