package schema

import (
	"fmt"
	"strings"
)

// ValidationError reports every problem found in a declared schema.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return "schema validation failed: " + e.Problems[0]
	}
	return fmt.Sprintf("schema validation failed with %d problems:\n  - %s",
		len(e.Problems), strings.Join(e.Problems, "\n  - "))
}

var validOnActions = map[string]bool{
	"":            true,
	"CASCADE":     true,
	"RESTRICT":    true,
	"NO ACTION":   true,
	"SET NULL":    true,
	"SET DEFAULT": true,
}

// Validate checks the schema invariants. It returns a *ValidationError listing
// every violation, or nil.
func Validate(s *Schema) error {
	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	tableSeen := make(map[string]bool)
	indexOwner := make(map[string]string)
	constraintOwner := make(map[string]string)

	for _, t := range s.Tables {
		if t.Name == "" {
			addf("table with empty name")
			continue
		}
		if tableSeen[t.Name] {
			addf("duplicate table %q", t.Name)
		}
		tableSeen[t.Name] = true

		if len(t.Columns) == 0 {
			addf("table %q has no columns", t.Name)
		}

		colSeen := make(map[string]bool)
		for _, c := range t.Columns {
			switch {
			case c.Name == "":
				addf("table %q has a column with empty name", t.Name)
			case colSeen[c.Name]:
				addf("duplicate column %s.%s", t.Name, c.Name)
			}
			colSeen[c.Name] = true
			if strings.TrimSpace(c.Type) == "" {
				addf("column %s.%s has no type", t.Name, c.Name)
			}
			if c.Identity && c.Default != nil {
				addf("column %s.%s cannot be an identity column and have a default", t.Name, c.Name)
			}
		}

		pkCount := 0
		for _, c := range t.Constraints {
			if c.Name == "" {
				addf("table %q has a %s constraint with empty name", t.Name, c.Kind)
				continue
			}
			if owner, dup := constraintOwner[c.Name]; dup {
				addf("constraint %q declared on both %q and %q", c.Name, owner, t.Name)
			}
			constraintOwner[c.Name] = t.Name

			switch c.Kind {
			case PrimaryKey:
				pkCount++
				fallthrough
			case Unique:
				if len(c.Columns) == 0 {
					addf("constraint %s.%s has no columns", t.Name, c.Name)
				}
			case Check:
				if strings.TrimSpace(c.Expression) == "" {
					addf("check constraint %s.%s has no expression", t.Name, c.Name)
				}
			case ForeignKey:
				if c.References == nil {
					addf("foreign key %s.%s has no reference", t.Name, c.Name)
					continue
				}
				if len(c.Columns) == 0 || len(c.Columns) != len(c.References.Columns) {
					addf("foreign key %s.%s must map the same number of local and referenced columns", t.Name, c.Name)
				}
				if !validOnActions[strings.ToUpper(c.References.OnDelete)] {
					addf("foreign key %s.%s has invalid on_delete %q", t.Name, c.Name, c.References.OnDelete)
				}
				if !validOnActions[strings.ToUpper(c.References.OnUpdate)] {
					addf("foreign key %s.%s has invalid on_update %q", t.Name, c.Name, c.References.OnUpdate)
				}
			default:
				addf("constraint %s.%s has unknown kind %q", t.Name, c.Name, c.Kind)
			}
			for _, col := range c.Columns {
				if !colSeen[col] {
					addf("constraint %s.%s references unknown column %q", t.Name, c.Name, col)
				}
			}
		}
		if pkCount > 1 {
			addf("table %q declares more than one primary key", t.Name)
		}

		for _, idx := range t.Indexes {
			if idx.Name == "" {
				addf("table %q has an index with empty name", t.Name)
				continue
			}
			if owner, dup := indexOwner[idx.Name]; dup {
				addf("index %q declared on both %q and %q", idx.Name, owner, t.Name)
			}
			indexOwner[idx.Name] = t.Name
			if idx.Table != "" && idx.Table != t.Name {
				addf("index %q is owned by %q but declared on %q", idx.Name, idx.Table, t.Name)
			}
			if len(idx.Columns) == 0 {
				addf("index %q has no columns", idx.Name)
			}
			for _, col := range idx.Columns {
				if !colSeen[col] {
					addf("index %q references unknown column %s.%s", idx.Name, t.Name, col)
				}
			}
		}
	}

	// Foreign key targets are resolved once every table is known.
	for _, t := range s.Tables {
		for _, fk := range t.ForeignKeys() {
			target, ok := s.Table(fk.References.Table)
			if !ok {
				addf("foreign key %s.%s references unknown table %q", t.Name, fk.Name, fk.References.Table)
				continue
			}
			for _, col := range fk.References.Columns {
				if _, ok := target.Column(col); !ok {
					addf("foreign key %s.%s references unknown column %s.%s", t.Name, fk.Name, target.Name, col)
				}
			}
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}
