// Package ddl turns a schema diff into ordered PostgreSQL operations and
// their exact inverses.
package ddl

import (
	"fmt"
	"slices"

	"github.com/tordrt/migracraft/internal/diff"
	"github.com/tordrt/migracraft/internal/schema"
)

// Mode selects how the previous schema is treated.
type Mode int

const (
	// Differential migrates from the previous schema of the diff.
	Differential Mode = iota
	// Full ignores the previous schema and creates everything.
	Full
)

func (m Mode) String() string {
	switch m {
	case Differential:
		return "differential"
	case Full:
		return "full"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Options controls generation.
type Options struct {
	// AllowDestructive accepts changes flagged as destructive by the differ.
	AllowDestructive bool
}

// Plan holds the forward operations and their inverses. Down runs the
// inverse of every Up operation in reverse order.
type Plan struct {
	Up   []Operation
	Down []Operation
}

// Empty reports whether the plan has nothing to do.
func (p *Plan) Empty() bool {
	return p == nil || len(p.Up) == 0
}

// UpSQL renders the forward statements.
func (p *Plan) UpSQL() []string {
	return render(p.Up)
}

// DownSQL renders the rollback statements.
func (p *Plan) DownSQL() []string {
	return render(p.Down)
}

func render(ops []Operation) []string {
	out := make([]string, len(ops))
	for i, op := range ops {
		out[i] = op.SQL()
	}
	return out
}

// phases buckets operations by execution phase. Renames run first so every
// later operation can use current names; drops run before creates so a
// constraint or index name can be reused.
type phases struct {
	renameTables    []Operation
	renameColumns   []Operation
	renameObjects   []Operation
	dropIndexes     []Operation
	dropForeignKeys []Operation
	dropConstraints []Operation
	dropColumns     []Operation
	dropTables      []Operation
	addColumns      []Operation
	alterColumns    []Operation
	addConstraints  []Operation
	createTables    []Operation
	addForeignKeys  []Operation
	createIndexes   []Operation
}

func (p *phases) ordered() []Operation {
	return slices.Concat(
		p.renameTables,
		p.renameColumns,
		p.renameObjects,
		p.dropIndexes,
		p.dropForeignKeys,
		p.dropConstraints,
		p.dropColumns,
		p.dropTables,
		p.addColumns,
		p.alterColumns,
		p.addConstraints,
		p.createTables,
		p.addForeignKeys,
		p.createIndexes,
	)
}

// Generate converts a diff into an ordered plan. In Full mode the previous
// schema of d is ignored and every table of d.To is created.
//
// Generation is all-or-nothing: a destructive change without
// opts.AllowDestructive yields a *DestructiveChangeError and a foreign key
// cycle among created tables yields a *CircularDependencyError.
func Generate(d *diff.Diff, mode Mode, opts Options) (*Plan, error) {
	if d == nil {
		d = diff.Compute(nil, nil, nil)
	}
	if mode == Full {
		d = diff.Compute(nil, d.To, nil)
	}

	if destructive := d.Destructive(); len(destructive) > 0 && !opts.AllowDestructive {
		return nil, &DestructiveChangeError{Changes: destructive}
	}

	var (
		p       phases
		added   []schema.Table
		removed []schema.Table
	)
	for _, change := range d.Changes {
		switch ch := change.(type) {
		case diff.TableRenamed:
			p.renameTables = append(p.renameTables, RenameTable{From: ch.From, To: ch.To})
		case diff.TableAdded:
			added = append(added, ch.Table)
		case diff.TableRemoved:
			removed = append(removed, ch.Table)
		case diff.TableChanged:
			p.tableChanged(ch)
		default:
			return nil, fmt.Errorf("unsupported table change %T", change)
		}
	}

	if err := p.addTables(added); err != nil {
		return nil, err
	}
	p.removeTables(removed)

	up := p.ordered()
	down := make([]Operation, len(up))
	for i, op := range up {
		down[len(up)-1-i] = op.Inverse()
	}
	return &Plan{Up: up, Down: down}, nil
}

func (p *phases) tableChanged(tc diff.TableChanged) {
	for _, cd := range tc.Columns {
		switch cd.Kind {
		case diff.Renamed:
			p.renameColumns = append(p.renameColumns, RenameColumn{Table: tc.Name, From: cd.RenamedFrom, To: cd.Name})
		case diff.Added:
			p.addColumns = append(p.addColumns, AddColumn{Table: tc.Name, Column: *cd.New})
		case diff.Removed:
			p.dropColumns = append(p.dropColumns, DropColumn{Table: tc.Name, Column: *cd.Old})
		case diff.Modified:
			p.alterColumns = append(p.alterColumns, alterColumn(tc.Name, *cd.Old, *cd.New)...)
		}
	}

	for _, id := range tc.Indexes {
		if id.Kind == diff.Renamed {
			p.renameObjects = append(p.renameObjects, RenameIndex{Table: tc.Name, From: id.RenamedFrom, To: id.Name})
			continue
		}
		if id.Kind == diff.Removed || id.Kind == diff.Modified {
			p.dropIndexes = append(p.dropIndexes, DropIndex{Index: *id.Old})
		}
		if id.Kind == diff.Added || id.Kind == diff.Modified {
			p.createIndexes = append(p.createIndexes, CreateIndex{Index: *id.New})
		}
	}

	for _, cd := range tc.Constraints {
		if cd.Kind == diff.Renamed {
			p.renameObjects = append(p.renameObjects, RenameConstraint{Table: tc.Name, From: cd.RenamedFrom, To: cd.Name})
			continue
		}
		if cd.Kind == diff.Removed || cd.Kind == diff.Modified {
			op := DropConstraint{Table: tc.Name, Constraint: *cd.Old}
			if cd.Old.Kind == schema.ForeignKey {
				p.dropForeignKeys = append(p.dropForeignKeys, op)
			} else {
				p.dropConstraints = append(p.dropConstraints, op)
			}
		}
		if cd.Kind == diff.Added || cd.Kind == diff.Modified {
			op := AddConstraint{Table: tc.Name, Constraint: *cd.New}
			if cd.New.Kind == schema.ForeignKey {
				p.addForeignKeys = append(p.addForeignKeys, op)
			} else {
				p.addConstraints = append(p.addConstraints, op)
			}
		}
	}
}

// alterColumn splits a column modification into independent operations.
// Identity is dropped before and added after the default changes because
// PostgreSQL rejects a default on an identity column.
func alterColumn(table string, old, cur schema.Column) []Operation {
	var ops []Operation
	if old.Identity && !cur.Identity {
		ops = append(ops, AlterColumnIdentity{Table: table, Column: cur.Name, Identity: false})
	}
	if !schema.SameType(old.Type, cur.Type) {
		ops = append(ops, AlterColumnType{Table: table, Column: cur.Name, From: old.Type, To: cur.Type})
	}
	if old.Nullable != cur.Nullable {
		ops = append(ops, AlterColumnNullability{Table: table, Column: cur.Name, Nullable: cur.Nullable})
	}
	if !schema.SameDefault(old.Default, cur.Default) {
		ops = append(ops, AlterColumnDefault{Table: table, Column: cur.Name, From: old.Default, To: cur.Default})
	}
	if !old.Identity && cur.Identity {
		ops = append(ops, AlterColumnIdentity{Table: table, Column: cur.Name, Identity: true})
	}
	return ops
}

// addTables emits created tables in foreign key order, each followed by
// its indexes.
func (p *phases) addTables(tables []schema.Table) error {
	if len(tables) == 0 {
		return nil
	}
	ordered, cyclic := newDependencyGraph(tables).sort()
	if len(cyclic) > 0 {
		return &CircularDependencyError{Tables: cyclic}
	}

	byName := tablesByName(tables)
	for _, name := range ordered {
		t := byName[name].Clone()
		indexes := t.Indexes
		t.Indexes = nil
		p.createTables = append(p.createTables, CreateTable{Table: t})
		for _, idx := range indexes {
			p.createTables = append(p.createTables, CreateIndex{Index: idx})
		}
	}
	return nil
}

// removeTables emits removed tables dependents first. Their indexes and
// foreign keys are dropped explicitly beforehand, so tables that reference
// each other can be removed in one migration and are restored without
// ordering problems.
func (p *phases) removeTables(tables []schema.Table) {
	if len(tables) == 0 {
		return
	}
	ordered, cyclic := newDependencyGraph(tables).sort()
	slices.Reverse(ordered)
	order := append(cyclic, ordered...)

	byName := tablesByName(tables)
	for _, name := range order {
		t := byName[name].Clone()
		for _, idx := range t.Indexes {
			p.dropIndexes = append(p.dropIndexes, DropIndex{Index: idx})
		}
		t.Indexes = nil

		kept := t.Constraints[:0]
		for _, c := range t.Constraints {
			if c.Kind == schema.ForeignKey {
				p.dropForeignKeys = append(p.dropForeignKeys, DropConstraint{Table: t.Name, Constraint: c})
				continue
			}
			kept = append(kept, c)
		}
		t.Constraints = kept
		p.dropTables = append(p.dropTables, DropTable{Table: t})
	}
}

func tablesByName(tables []schema.Table) map[string]schema.Table {
	m := make(map[string]schema.Table, len(tables))
	for _, t := range tables {
		m[t.Name] = t
	}
	return m
}
