// Package diff computes the typed difference between two schema versions.
//
// Renames are never inferred. A table or column is only renamed when the
// declared schema carries a renamed_from directive whose old name exists in
// the previous schema while the new name does not.
package diff

import (
	"fmt"
	"sort"

	"github.com/tordrt/migracraft/internal/schema"
)

// Compute returns the changes that turn previous into current. A nil
// previous is treated as an empty schema; renames may be nil.
func Compute(previous, current *schema.Schema, renames *schema.Renames) *Diff {
	if previous == nil {
		previous = schema.Empty()
	}
	if current == nil {
		current = schema.Empty()
	}

	d := &Diff{From: previous, To: current}

	// Renames are applied to a copy of previous so that the structural
	// comparison below sees old objects under their new names.
	base := previous.Clone()
	tableRenames := applyTableRenames(base, previous, current, renames, d)
	columnRenames := applyColumnRenames(base, current, renames, d)

	for _, r := range tableRenames {
		d.Changes = append(d.Changes, r)
	}

	for _, name := range unionNames(base.TableNames(), current.TableNames()) {
		prev, inPrev := base.Table(name)
		cur, inCur := current.Table(name)

		switch {
		case !inPrev:
			d.Changes = append(d.Changes, TableAdded{Table: cur.Clone()})
		case !inCur:
			d.Changes = append(d.Changes, TableRemoved{Table: prev.Clone()})
		default:
			tc := compareTable(prev, cur)
			tc.Columns = append(columnRenames[name], tc.Columns...)
			sortColumnDiffs(tc.Columns)
			if !tc.empty() {
				d.Changes = append(d.Changes, tc)
			}
		}
	}

	sort.SliceStable(d.Changes, func(i, j int) bool {
		a, b := d.Changes[i], d.Changes[j]
		if a.TableName() != b.TableName() {
			return a.TableName() < b.TableName()
		}
		return changeRank(a) < changeRank(b)
	})
	return d
}

// changeRank orders changes that share a table name: a rename comes before
// the changes made under the new name.
func changeRank(c TableChange) int {
	switch c.(type) {
	case TableRenamed:
		return 0
	case TableRemoved:
		return 1
	default:
		return 2
	}
}

// sortColumnDiffs orders column diffs by name, a rename first.
func sortColumnDiffs(diffs []ColumnDiff) {
	sort.SliceStable(diffs, func(i, j int) bool {
		if diffs[i].Name != diffs[j].Name {
			return diffs[i].Name < diffs[j].Name
		}
		return diffs[i].Kind == Renamed && diffs[j].Kind != Renamed
	})
}

func compareTable(prev, cur *schema.Table) TableChanged {
	tc := TableChanged{Name: cur.Name}
	tc.Columns = compareColumns(prev, cur)
	tc.Indexes = compareIndexes(prev.Indexes, cur.Indexes)
	tc.Constraints = compareConstraints(prev.Constraints, cur.Constraints)
	return tc
}

func compareColumns(prev, cur *schema.Table) []ColumnDiff {
	prevNames := make([]string, len(prev.Columns))
	for i, c := range prev.Columns {
		prevNames[i] = c.Name
	}
	curNames := make([]string, len(cur.Columns))
	for i, c := range cur.Columns {
		curNames[i] = c.Name
	}

	var diffs []ColumnDiff
	for _, name := range unionNames(prevNames, curNames) {
		p, inPrev := prev.Column(name)
		c, inCur := cur.Column(name)

		switch {
		case !inPrev:
			col := c.Clone()
			diffs = append(diffs, ColumnDiff{Kind: Added, Name: name, New: &col})
		case !inCur:
			col := p.Clone()
			diffs = append(diffs, ColumnDiff{Kind: Removed, Name: name, Old: &col})
		case !p.Equal(*c):
			oldCol, newCol := p.Clone(), c.Clone()
			cd := ColumnDiff{Kind: Modified, Name: name, Old: &oldCol, New: &newCol}
			if !schema.SameType(p.Type, c.Type) {
				cd.Destructive, cd.Reason = Narrowing(p.Type, c.Type)
			}
			diffs = append(diffs, cd)
		}
	}
	return diffs
}

func compareIndexes(prev, cur []schema.Index) []IndexDiff {
	prevByName := make(map[string]schema.Index, len(prev))
	var names []string
	for _, idx := range prev {
		prevByName[idx.Name] = idx
		names = append(names, idx.Name)
	}
	curByName := make(map[string]schema.Index, len(cur))
	var curNames []string
	for _, idx := range cur {
		curByName[idx.Name] = idx
		curNames = append(curNames, idx.Name)
	}

	var diffs []IndexDiff
	for _, name := range unionNames(names, curNames) {
		p, inPrev := prevByName[name]
		c, inCur := curByName[name]
		switch {
		case !inPrev:
			diffs = append(diffs, IndexDiff{Kind: Added, Name: name, New: &c})
		case !inCur:
			diffs = append(diffs, IndexDiff{Kind: Removed, Name: name, Old: &p})
		case !p.Equal(c):
			diffs = append(diffs, IndexDiff{Kind: Modified, Name: name, Old: &p, New: &c})
		}
	}
	return pairRenamedIndexes(diffs)
}

// pairRenamedIndexes turns a removed and an added index with the same
// definition into a rename.
func pairRenamedIndexes(diffs []IndexDiff) []IndexDiff {
	var out []IndexDiff
	paired := make(map[int]bool)
	for i, removed := range diffs {
		if removed.Kind != Removed {
			continue
		}
		for j, added := range diffs {
			if added.Kind != Added || paired[j] || !removed.Old.SameDefinition(*added.New) {
				continue
			}
			paired[i], paired[j] = true, true
			out = append(out, IndexDiff{
				Kind: Renamed, Name: added.Name, RenamedFrom: removed.Name,
				Old: removed.Old, New: added.New,
			})
			break
		}
	}
	if len(out) == 0 {
		return diffs
	}
	for i, d := range diffs {
		if !paired[i] {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func compareConstraints(prev, cur []schema.Constraint) []ConstraintDiff {
	prevByName := make(map[string]schema.Constraint, len(prev))
	var names []string
	for _, c := range prev {
		prevByName[c.Name] = c
		names = append(names, c.Name)
	}
	curByName := make(map[string]schema.Constraint, len(cur))
	var curNames []string
	for _, c := range cur {
		curByName[c.Name] = c
		curNames = append(curNames, c.Name)
	}

	var diffs []ConstraintDiff
	for _, name := range unionNames(names, curNames) {
		p, inPrev := prevByName[name]
		c, inCur := curByName[name]
		switch {
		case !inPrev:
			c = c.Clone()
			diffs = append(diffs, ConstraintDiff{Kind: Added, Name: name, New: &c})
		case !inCur:
			p = p.Clone()
			diffs = append(diffs, ConstraintDiff{Kind: Removed, Name: name, Old: &p})
		case !p.Equal(c):
			p, c = p.Clone(), c.Clone()
			diffs = append(diffs, ConstraintDiff{Kind: Modified, Name: name, Old: &p, New: &c})
		}
	}
	return pairRenamedConstraints(diffs)
}

// pairRenamedConstraints turns a removed and an added constraint with the
// same definition into a rename. Derived names change whenever their table
// or column is renamed, and foreign keys may still depend on the old one.
func pairRenamedConstraints(diffs []ConstraintDiff) []ConstraintDiff {
	var out []ConstraintDiff
	paired := make(map[int]bool)
	for i, removed := range diffs {
		if removed.Kind != Removed {
			continue
		}
		for j, added := range diffs {
			if added.Kind != Added || paired[j] || !removed.Old.SameDefinition(*added.New) {
				continue
			}
			paired[i], paired[j] = true, true
			out = append(out, ConstraintDiff{
				Kind: Renamed, Name: added.Name, RenamedFrom: removed.Name,
				Old: removed.Old, New: added.New,
			})
			break
		}
	}
	if len(out) == 0 {
		return diffs
	}
	for i, d := range diffs {
		if !paired[i] {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// applyTableRenames renames tables in base (a clone of previous) and returns
// the renames that took effect, ordered by new name.
func applyTableRenames(base, previous, current *schema.Schema, renames *schema.Renames, d *Diff) []TableRenamed {
	if renames.Empty() {
		return nil
	}

	newNames := make([]string, 0, len(renames.Tables))
	for name := range renames.Tables {
		newNames = append(newNames, name)
	}
	sort.Strings(newNames)

	var applied []TableRenamed
	for _, to := range newNames {
		from := renames.Tables[to]
		_, oldExists := base.Table(from)
		_, newExists := previous.Table(to)
		_, inCurrent := current.Table(to)

		switch {
		case newExists:
			// Already applied by an earlier migration.
			continue
		case !oldExists:
			d.Ignored = append(d.Ignored, fmt.Sprintf("table %q: renamed_from %q not found in previous schema", to, from))
			continue
		case !inCurrent || from == to:
			continue
		}
		if _, stillDeclared := current.Table(from); stillDeclared {
			d.Ignored = append(d.Ignored, fmt.Sprintf("table %q: renamed_from %q is still declared", to, from))
			continue
		}

		if err := base.RenameTable(from, to); err != nil {
			d.Ignored = append(d.Ignored, fmt.Sprintf("table %q: %v", to, err))
			continue
		}
		applied = append(applied, TableRenamed{From: from, To: to})
	}
	return applied
}

// applyColumnRenames renames columns in base and returns the Renamed
// column diffs keyed by table name.
func applyColumnRenames(base, current *schema.Schema, renames *schema.Renames, d *Diff) map[string][]ColumnDiff {
	out := make(map[string][]ColumnDiff)
	if renames.Empty() {
		return out
	}

	tables := make([]string, 0, len(renames.Columns))
	for name := range renames.Columns {
		tables = append(tables, name)
	}
	sort.Strings(tables)

	for _, tableName := range tables {
		prev, ok := base.Table(tableName)
		if !ok {
			continue
		}
		cur, ok := current.Table(tableName)
		if !ok {
			continue
		}

		cols := renames.Columns[tableName]
		newNames := make([]string, 0, len(cols))
		for name := range cols {
			newNames = append(newNames, name)
		}
		sort.Strings(newNames)

		for _, to := range newNames {
			from := cols[to]
			if _, exists := prev.Column(to); exists {
				continue
			}
			if _, ok := cur.Column(to); !ok || from == to {
				continue
			}
			if _, ok := prev.Column(from); !ok {
				d.Ignored = append(d.Ignored,
					fmt.Sprintf("column %s.%s: renamed_from %q not found in previous schema", tableName, to, from))
				continue
			}
			if _, stillDeclared := cur.Column(from); stillDeclared {
				d.Ignored = append(d.Ignored,
					fmt.Sprintf("column %s.%s: renamed_from %q is still declared", tableName, to, from))
				continue
			}

			if err := base.RenameColumn(tableName, from, to); err != nil {
				d.Ignored = append(d.Ignored, fmt.Sprintf("column %s.%s: %v", tableName, to, err))
				continue
			}
			prev, _ = base.Table(tableName)
			out[tableName] = append(out[tableName], ColumnDiff{Kind: Renamed, Name: to, RenamedFrom: from})
		}
	}
	return out
}

// unionNames returns the sorted union of two name lists.
func unionNames(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, list := range [][]string{a, b} {
		for _, n := range list {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	sort.Strings(out)
	return out
}
