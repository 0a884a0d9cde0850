package schema

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Renames carries the explicit rename directives of a declared schema.
// Keys are new names, values the names they replace.
type Renames struct {
	Tables  map[string]string
	Columns map[string]map[string]string // keyed by (new) table name
}

// Empty reports whether there are no rename directives.
func (r *Renames) Empty() bool {
	return r == nil || (len(r.Tables) == 0 && len(r.Columns) == 0)
}

// document is the on-disk shape of a schema file
type document struct {
	Tables map[string]tableDoc `yaml:"tables"`
}

type tableDoc struct {
	RenamedFrom string          `yaml:"renamed_from,omitempty"`
	Columns     []columnDoc     `yaml:"columns"`
	PrimaryKey  []string        `yaml:"primary_key,omitempty"`
	Constraints []constraintDoc `yaml:"constraints,omitempty"`
	Indexes     []indexDoc      `yaml:"indexes,omitempty"`
}

type columnDoc struct {
	Name        string  `yaml:"name"`
	Type        string  `yaml:"type"`
	Nullable    *bool   `yaml:"nullable,omitempty"`
	Default     *string `yaml:"default,omitempty"`
	PrimaryKey  bool    `yaml:"primary_key,omitempty"`
	Unique      bool    `yaml:"unique,omitempty"`
	Identity    bool    `yaml:"identity,omitempty"`
	References  string  `yaml:"references,omitempty"`
	OnDelete    string  `yaml:"on_delete,omitempty"`
	OnUpdate    string  `yaml:"on_update,omitempty"`
	RenamedFrom string  `yaml:"renamed_from,omitempty"`
}

type constraintDoc struct {
	Name       string        `yaml:"name,omitempty"`
	Type       string        `yaml:"type"`
	Columns    []string      `yaml:"columns,omitempty"`
	Expression string        `yaml:"expression,omitempty"`
	References *referenceDoc `yaml:"references,omitempty"`
}

type referenceDoc struct {
	Table    string   `yaml:"table"`
	Columns  []string `yaml:"columns"`
	OnDelete string   `yaml:"on_delete,omitempty"`
	OnUpdate string   `yaml:"on_update,omitempty"`
}

type indexDoc struct {
	Name    string   `yaml:"name,omitempty"`
	Columns []string `yaml:"columns"`
	Unique  bool     `yaml:"unique,omitempty"`
	Method  string   `yaml:"method,omitempty"`
}

// LoadDir reads every *.yaml and *.yml file in dir and resolves them into a
// validated Schema. Parse and validation failures are reported as a
// *ValidationError.
func LoadDir(dir string) (*Schema, *Renames, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read schemas directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	if len(files) == 0 {
		return nil, nil, &ValidationError{Problems: []string{fmt.Sprintf("no schema files found in %s", dir)}}
	}

	l := newLoader()
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read schema file %s: %w", path, err)
		}
		l.parse(data, filepath.Base(path))
	}
	return l.finish()
}

// Parse resolves a single schema document.
func Parse(data []byte) (*Schema, *Renames, error) {
	l := newLoader()
	l.parse(data, "<input>")
	return l.finish()
}

type loader struct {
	tables   []Table
	sources  map[string]string
	renames  *Renames
	problems []string
}

func newLoader() *loader {
	return &loader{
		sources: make(map[string]string),
		renames: &Renames{
			Tables:  make(map[string]string),
			Columns: make(map[string]map[string]string),
		},
	}
}

func (l *loader) parse(data []byte, source string) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return
		}
		l.problems = append(l.problems, fmt.Sprintf("%s: %v", source, err))
		return
	}

	names := make([]string, 0, len(doc.Tables))
	for name := range doc.Tables {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if prev, dup := l.sources[name]; dup {
			l.problems = append(l.problems, fmt.Sprintf("%s: table %q already declared in %s", source, name, prev))
			continue
		}
		l.sources[name] = source
		l.tables = append(l.tables, l.resolveTable(name, doc.Tables[name]))
	}
}

func (l *loader) finish() (*Schema, *Renames, error) {
	s := New(l.tables...)
	if len(l.problems) > 0 {
		return nil, nil, &ValidationError{Problems: l.problems}
	}
	if err := Validate(s); err != nil {
		return nil, nil, err
	}
	return s, l.renames, nil
}

// resolveTable expands column shorthands into constraints and names
// unnamed constraints and indexes after PostgreSQL's conventions.
func (l *loader) resolveTable(name string, doc tableDoc) Table {
	t := Table{Name: name}

	if doc.RenamedFrom != "" {
		l.renames.Tables[name] = doc.RenamedFrom
	}

	var pkCols []string
	for _, cd := range doc.Columns {
		col := Column{
			Name:     cd.Name,
			Type:     cd.Type,
			Default:  cd.Default,
			Identity: cd.Identity,
			Nullable: !cd.PrimaryKey && !cd.Identity,
		}
		if cd.Nullable != nil {
			col.Nullable = *cd.Nullable
		}
		t.Columns = append(t.Columns, col)

		if cd.PrimaryKey {
			pkCols = append(pkCols, cd.Name)
		}
		if cd.Unique {
			t.Constraints = append(t.Constraints, Constraint{
				Name:    fmt.Sprintf("%s_%s_key", name, cd.Name),
				Kind:    Unique,
				Columns: []string{cd.Name},
			})
		}
		if cd.References != "" {
			refTable, refCol, ok := strings.Cut(cd.References, ".")
			if !ok || refTable == "" || refCol == "" {
				l.problems = append(l.problems,
					fmt.Sprintf("column %s.%s: references must be written as table.column, got %q", name, cd.Name, cd.References))
			} else {
				t.Constraints = append(t.Constraints, Constraint{
					Name:    fmt.Sprintf("%s_%s_fkey", name, cd.Name),
					Kind:    ForeignKey,
					Columns: []string{cd.Name},
					References: &Reference{
						Table:    refTable,
						Columns:  []string{refCol},
						OnDelete: strings.ToUpper(cd.OnDelete),
						OnUpdate: strings.ToUpper(cd.OnUpdate),
					},
				})
			}
		}
		if cd.RenamedFrom != "" {
			if l.renames.Columns[name] == nil {
				l.renames.Columns[name] = make(map[string]string)
			}
			l.renames.Columns[name][cd.Name] = cd.RenamedFrom
		}
	}

	if len(doc.PrimaryKey) > 0 {
		if len(pkCols) > 0 {
			l.problems = append(l.problems,
				fmt.Sprintf("table %q declares its primary key both on columns and at table level", name))
		}
		pkCols = doc.PrimaryKey
		for _, pk := range pkCols {
			if c, ok := t.Column(pk); ok {
				c.Nullable = false
			}
		}
	}
	if len(pkCols) > 0 {
		t.Constraints = append([]Constraint{{
			Name:    name + "_pkey",
			Kind:    PrimaryKey,
			Columns: pkCols,
		}}, t.Constraints...)
	}

	checks := 0
	for _, cd := range doc.Constraints {
		c := Constraint{
			Name:       cd.Name,
			Kind:       ConstraintKind(strings.ToLower(cd.Type)),
			Columns:    cd.Columns,
			Expression: cd.Expression,
		}
		if cd.References != nil {
			c.References = &Reference{
				Table:    cd.References.Table,
				Columns:  cd.References.Columns,
				OnDelete: strings.ToUpper(cd.References.OnDelete),
				OnUpdate: strings.ToUpper(cd.References.OnUpdate),
			}
		}
		if c.Name == "" {
			c.Name = defaultConstraintName(name, c, &checks)
		}
		t.Constraints = append(t.Constraints, c)
	}

	for _, id := range doc.Indexes {
		idx := Index{
			Name:    id.Name,
			Table:   name,
			Columns: id.Columns,
			Unique:  id.Unique,
			Method:  strings.ToLower(id.Method),
		}
		if idx.Name == "" {
			idx.Name = fmt.Sprintf("idx_%s_%s", name, strings.Join(id.Columns, "_"))
		}
		t.Indexes = append(t.Indexes, idx)
	}

	return t
}

func defaultConstraintName(table string, c Constraint, checks *int) string {
	switch c.Kind {
	case PrimaryKey:
		return table + "_pkey"
	case Unique:
		return fmt.Sprintf("%s_%s_key", table, strings.Join(c.Columns, "_"))
	case ForeignKey:
		return fmt.Sprintf("%s_%s_fkey", table, strings.Join(c.Columns, "_"))
	default:
		*checks++
		if *checks == 1 {
			return table + "_check"
		}
		return fmt.Sprintf("%s_check%d", table, *checks)
	}
}
