package diff

import (
	"fmt"

	"github.com/tordrt/migracraft/internal/schema"
)

// ChangeKind tags a column, index or constraint change
type ChangeKind int

const (
	Added ChangeKind = iota + 1
	Removed
	Modified
	Renamed
)

func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "added"
	case Removed:
		return "removed"
	case Modified:
		return "modified"
	case Renamed:
		return "renamed"
	default:
		return fmt.Sprintf("ChangeKind(%d)", int(k))
	}
}

// ColumnDiff describes one column change. Old is set for Removed and
// Modified, New for Added and Modified. Renamed carries only names.
type ColumnDiff struct {
	Kind        ChangeKind
	Name        string
	RenamedFrom string
	Old         *schema.Column
	New         *schema.Column
	Destructive bool
	Reason      string
}

// IndexDiff describes one index change. A Renamed index keeps its
// definition; Old and New are both set.
type IndexDiff struct {
	Kind        ChangeKind
	Name        string
	RenamedFrom string
	Old         *schema.Index
	New         *schema.Index
}

// ConstraintDiff describes one constraint change. A Renamed constraint
// keeps its definition; Old and New are both set.
type ConstraintDiff struct {
	Kind        ChangeKind
	Name        string
	RenamedFrom string
	Old         *schema.Constraint
	New         *schema.Constraint
}

// TableChange is one of TableAdded, TableRemoved, TableRenamed or TableChanged.
type TableChange interface {
	TableName() string
	isTableChange()
}

// TableAdded is a table present only in the current schema
type TableAdded struct {
	Table schema.Table
}

// TableRemoved is a table present only in the previous schema
type TableRemoved struct {
	Table schema.Table
}

// TableRenamed is an explicit table rename
type TableRenamed struct {
	From string
	To   string
}

// TableChanged groups the changes of a table present in both schemas.
// Name is the current table name.
type TableChanged struct {
	Name        string
	Columns     []ColumnDiff
	Indexes     []IndexDiff
	Constraints []ConstraintDiff
}

func (c TableAdded) TableName() string   { return c.Table.Name }
func (c TableRemoved) TableName() string { return c.Table.Name }
func (c TableRenamed) TableName() string { return c.To }
func (c TableChanged) TableName() string { return c.Name }

func (TableAdded) isTableChange()   {}
func (TableRemoved) isTableChange() {}
func (TableRenamed) isTableChange() {}
func (TableChanged) isTableChange() {}

// Diff is the directional difference between a previous and a current schema.
type Diff struct {
	From    *schema.Schema
	To      *schema.Schema
	Changes []TableChange

	// Ignored lists rename directives that did not apply.
	Ignored []string
}

// Empty reports whether the diff carries no changes.
func (d *Diff) Empty() bool {
	return d == nil || len(d.Changes) == 0
}

// Destructive returns a description of every change flagged as destructive,
// formatted as "table.column: reason".
func (d *Diff) Destructive() []string {
	if d == nil {
		return nil
	}
	var out []string
	for _, ch := range d.Changes {
		tc, ok := ch.(TableChanged)
		if !ok {
			continue
		}
		for _, cd := range tc.Columns {
			if cd.Destructive {
				out = append(out, fmt.Sprintf("%s.%s: %s", tc.Name, cd.Name, cd.Reason))
			}
		}
	}
	return out
}

func (c TableChanged) empty() bool {
	return len(c.Columns) == 0 && len(c.Indexes) == 0 && len(c.Constraints) == 0
}
