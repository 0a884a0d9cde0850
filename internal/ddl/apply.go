package ddl

import (
	"fmt"
	"slices"

	"github.com/tordrt/migracraft/internal/schema"
)

// Apply simulates ops against a copy of s and returns the resulting schema.
// It fails on the first operation PostgreSQL would reject for structural
// reasons, such as dropping a table that is still referenced.
func Apply(s *schema.Schema, ops []Operation) (*schema.Schema, error) {
	out := s.Clone()
	for i, op := range ops {
		if err := op.apply(out); err != nil {
			return nil, fmt.Errorf("operation %d (%s): %w", i+1, op.SQL(), err)
		}
	}
	return out, nil
}

func lookupTable(s *schema.Schema, name string) (*schema.Table, error) {
	t, ok := s.Table(name)
	if !ok {
		return nil, fmt.Errorf("table %q does not exist", name)
	}
	return t, nil
}

func lookupColumn(s *schema.Schema, table, column string) (*schema.Column, error) {
	t, err := lookupTable(s, table)
	if err != nil {
		return nil, err
	}
	c, ok := t.Column(column)
	if !ok {
		return nil, fmt.Errorf("column %s.%s does not exist", table, column)
	}
	return c, nil
}

func checkReference(s *schema.Schema, owner *schema.Table, c schema.Constraint) error {
	if c.Kind != schema.ForeignKey || c.References == nil {
		return nil
	}
	target := owner
	if c.References.Table != owner.Name {
		t, err := lookupTable(s, c.References.Table)
		if err != nil {
			return fmt.Errorf("foreign key %s: %w", c.Name, err)
		}
		target = t
	}
	for _, col := range c.References.Columns {
		if _, ok := target.Column(col); !ok {
			return fmt.Errorf("foreign key %s: column %s.%s does not exist", c.Name, target.Name, col)
		}
	}
	return nil
}

func nameInUse(s *schema.Schema, name string) bool {
	for i := range s.Tables {
		t := &s.Tables[i]
		if _, ok := t.Constraint(name); ok {
			return true
		}
		if _, ok := t.Index(name); ok {
			return true
		}
	}
	return false
}

func (o CreateTable) apply(s *schema.Schema) error {
	if _, exists := s.Table(o.Table.Name); exists {
		return fmt.Errorf("table %q already exists", o.Table.Name)
	}
	t := o.Table.Clone()
	for _, c := range t.Constraints {
		if err := checkReference(s, &t, c); err != nil {
			return err
		}
	}
	s.Put(t)
	return nil
}

func (o DropTable) apply(s *schema.Schema) error {
	if _, err := lookupTable(s, o.Table.Name); err != nil {
		return err
	}
	for owner, fks := range s.ReferencingForeignKeys(o.Table.Name) {
		return fmt.Errorf("table %q is still referenced by %s.%s", o.Table.Name, owner, fks[0].Name)
	}
	s.Remove(o.Table.Name)
	return nil
}

func (o RenameTable) apply(s *schema.Schema) error {
	return s.RenameTable(o.From, o.To)
}

func (o AddColumn) apply(s *schema.Schema) error {
	t, err := lookupTable(s, o.Table)
	if err != nil {
		return err
	}
	if _, exists := t.Column(o.Column.Name); exists {
		return fmt.Errorf("column %s.%s already exists", o.Table, o.Column.Name)
	}
	t.Columns = append(t.Columns, o.Column.Clone())
	return nil
}

func (o DropColumn) apply(s *schema.Schema) error {
	t, err := lookupTable(s, o.Table)
	if err != nil {
		return err
	}
	name := o.Column.Name
	i := slices.IndexFunc(t.Columns, func(c schema.Column) bool { return c.Name == name })
	if i < 0 {
		return fmt.Errorf("column %s.%s does not exist", o.Table, name)
	}
	for _, c := range t.Constraints {
		if slices.Contains(c.Columns, name) {
			return fmt.Errorf("column %s.%s is still used by constraint %s", o.Table, name, c.Name)
		}
	}
	for _, idx := range t.Indexes {
		if slices.Contains(idx.Columns, name) {
			return fmt.Errorf("column %s.%s is still used by index %s", o.Table, name, idx.Name)
		}
	}
	for owner, fks := range s.ReferencingForeignKeys(o.Table) {
		for _, fk := range fks {
			if slices.Contains(fk.References.Columns, name) {
				return fmt.Errorf("column %s.%s is still referenced by %s.%s", o.Table, name, owner, fk.Name)
			}
		}
	}
	t.Columns = slices.Delete(t.Columns, i, i+1)
	return nil
}

func (o RenameColumn) apply(s *schema.Schema) error {
	return s.RenameColumn(o.Table, o.From, o.To)
}

func (o AlterColumnType) apply(s *schema.Schema) error {
	c, err := lookupColumn(s, o.Table, o.Column)
	if err != nil {
		return err
	}
	c.Type = o.To
	return nil
}

func (o AlterColumnNullability) apply(s *schema.Schema) error {
	c, err := lookupColumn(s, o.Table, o.Column)
	if err != nil {
		return err
	}
	c.Nullable = o.Nullable
	return nil
}

func (o AlterColumnDefault) apply(s *schema.Schema) error {
	c, err := lookupColumn(s, o.Table, o.Column)
	if err != nil {
		return err
	}
	if o.To != nil && c.Identity {
		return fmt.Errorf("column %s.%s is an identity column", o.Table, o.Column)
	}
	c.Default = nil
	if o.To != nil {
		d := *o.To
		c.Default = &d
	}
	return nil
}

func (o AlterColumnIdentity) apply(s *schema.Schema) error {
	c, err := lookupColumn(s, o.Table, o.Column)
	if err != nil {
		return err
	}
	switch {
	case o.Identity && c.Identity:
		return fmt.Errorf("column %s.%s is already an identity column", o.Table, o.Column)
	case o.Identity && c.Default != nil:
		return fmt.Errorf("column %s.%s has a default", o.Table, o.Column)
	case !o.Identity && !c.Identity:
		return fmt.Errorf("column %s.%s is not an identity column", o.Table, o.Column)
	}
	c.Identity = o.Identity
	return nil
}

func (o AddConstraint) apply(s *schema.Schema) error {
	t, err := lookupTable(s, o.Table)
	if err != nil {
		return err
	}
	if nameInUse(s, o.Constraint.Name) {
		return fmt.Errorf("relation %q already exists", o.Constraint.Name)
	}
	for _, col := range o.Constraint.Columns {
		if _, ok := t.Column(col); !ok {
			return fmt.Errorf("constraint %s: column %s.%s does not exist", o.Constraint.Name, o.Table, col)
		}
	}
	if err := checkReference(s, t, o.Constraint); err != nil {
		return err
	}
	t.Constraints = append(t.Constraints, o.Constraint.Clone())
	return nil
}

func (o DropConstraint) apply(s *schema.Schema) error {
	t, err := lookupTable(s, o.Table)
	if err != nil {
		return err
	}
	name := o.Constraint.Name
	i := slices.IndexFunc(t.Constraints, func(c schema.Constraint) bool { return c.Name == name })
	if i < 0 {
		return fmt.Errorf("constraint %s on %s does not exist", name, o.Table)
	}
	if owner, fk, ok := dependentForeignKey(s, t.Name, t.Constraints[i]); ok {
		return fmt.Errorf("constraint %s on %s is still required by foreign key %s.%s", name, o.Table, owner, fk)
	}
	t.Constraints = slices.Delete(t.Constraints, i, i+1)
	return nil
}

// dependentForeignKey finds a foreign key, self references included, whose
// referenced columns are exactly the key columns of c.
func dependentForeignKey(s *schema.Schema, table string, c schema.Constraint) (string, string, bool) {
	if c.Kind != schema.PrimaryKey && c.Kind != schema.Unique {
		return "", "", false
	}
	key := slices.Sorted(slices.Values(c.Columns))
	for _, t := range s.Tables {
		for _, fk := range t.ForeignKeys() {
			if fk.References.Table != table {
				continue
			}
			if slices.Equal(key, slices.Sorted(slices.Values(fk.References.Columns))) {
				return t.Name, fk.Name, true
			}
		}
	}
	return "", "", false
}

func (o RenameConstraint) apply(s *schema.Schema) error {
	t, err := lookupTable(s, o.Table)
	if err != nil {
		return err
	}
	c, ok := t.Constraint(o.From)
	if !ok {
		return fmt.Errorf("constraint %s on %s does not exist", o.From, o.Table)
	}
	if nameInUse(s, o.To) {
		return fmt.Errorf("relation %q already exists", o.To)
	}
	c.Name = o.To
	return nil
}

func (o CreateIndex) apply(s *schema.Schema) error {
	t, err := lookupTable(s, o.Index.Table)
	if err != nil {
		return err
	}
	if nameInUse(s, o.Index.Name) {
		return fmt.Errorf("relation %q already exists", o.Index.Name)
	}
	for _, col := range o.Index.Columns {
		if _, ok := t.Column(col); !ok {
			return fmt.Errorf("index %s: column %s.%s does not exist", o.Index.Name, t.Name, col)
		}
	}
	idx := o.Index
	idx.Columns = slices.Clone(idx.Columns)
	t.Indexes = append(t.Indexes, idx)
	return nil
}

func (o DropIndex) apply(s *schema.Schema) error {
	t, err := lookupTable(s, o.Index.Table)
	if err != nil {
		return err
	}
	name := o.Index.Name
	i := slices.IndexFunc(t.Indexes, func(idx schema.Index) bool { return idx.Name == name })
	if i < 0 {
		return fmt.Errorf("index %s does not exist", name)
	}
	t.Indexes = slices.Delete(t.Indexes, i, i+1)
	return nil
}

func (o RenameIndex) apply(s *schema.Schema) error {
	t, err := lookupTable(s, o.Table)
	if err != nil {
		return err
	}
	idx, ok := t.Index(o.From)
	if !ok {
		return fmt.Errorf("index %s does not exist", o.From)
	}
	if nameInUse(s, o.To) {
		return fmt.Errorf("relation %q already exists", o.To)
	}
	idx.Name = o.To
	return nil
}
