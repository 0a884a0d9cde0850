// Package formatter renders a pending migration for review.
package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/tordrt/migracraft/internal/ddl"
	"github.com/tordrt/migracraft/internal/diff"
	"github.com/tordrt/migracraft/internal/schema"
)

const (
	formatMarkdown = "markdown"
	formatText     = "text"
)

// Report is a computed migration that has not been written
type Report struct {
	Mode ddl.Mode
	Diff *diff.Diff
	Plan *ddl.Plan
}

// Empty reports whether the migration would do nothing.
func (r *Report) Empty() bool {
	return r.Diff.Empty() && r.Plan.Empty()
}

// Formatter writes a report
type Formatter interface {
	Format(r *Report) error
}

// Formats lists the accepted format names.
func Formats() []string {
	return []string{formatText, formatMarkdown}
}

// New returns the formatter for format writing to w.
func New(format string, w io.Writer) (Formatter, error) {
	switch strings.ToLower(format) {
	case formatText, "":
		return NewTextFormatter(w), nil
	case formatMarkdown, "md":
		return NewMarkdownFormatter(w), nil
	default:
		return nil, fmt.Errorf("unsupported format %q (use %s)", format, strings.Join(Formats(), " or "))
	}
}

// columnSpec renders everything about a column except its name.
func columnSpec(col schema.Column) string {
	parts := []string{col.Type}
	if col.Identity {
		parts = append(parts, "IDENTITY")
	}
	if !col.Nullable {
		parts = append(parts, "NOT NULL")
	}
	if col.Default != nil {
		parts = append(parts, fmt.Sprintf("DEFAULT %s", *col.Default))
	}
	return strings.Join(parts, " ")
}

func constraintSpec(c schema.Constraint) string {
	cols := strings.Join(c.Columns, ", ")
	switch c.Kind {
	case schema.PrimaryKey:
		return fmt.Sprintf("PRIMARY KEY (%s)", cols)
	case schema.Unique:
		return fmt.Sprintf("UNIQUE (%s)", cols)
	case schema.Check:
		return fmt.Sprintf("CHECK (%s)", c.Expression)
	case schema.ForeignKey:
		if c.References == nil {
			return fmt.Sprintf("FOREIGN KEY (%s)", cols)
		}
		s := fmt.Sprintf("FOREIGN KEY (%s) → %s(%s)", cols, c.References.Table, strings.Join(c.References.Columns, ", "))
		if c.References.OnDelete != "" {
			s += " ON DELETE " + strings.ToUpper(c.References.OnDelete)
		}
		if c.References.OnUpdate != "" {
			s += " ON UPDATE " + strings.ToUpper(c.References.OnUpdate)
		}
		return s
	}
	return string(c.Kind)
}

func indexSpec(idx schema.Index) string {
	s := fmt.Sprintf("(%s)", strings.Join(idx.Columns, ", "))
	if idx.Unique {
		s += " UNIQUE"
	}
	if idx.Method != "" {
		s += " USING " + idx.Method
	}
	return s
}

// tableStatus is the heading suffix of a table change.
func tableStatus(ch diff.TableChange) string {
	switch c := ch.(type) {
	case diff.TableAdded:
		return "added"
	case diff.TableRemoved:
		return "removed"
	case diff.TableRenamed:
		return "renamed from " + c.From
	default:
		return "changed"
	}
}

func changeMarker(k diff.ChangeKind) string {
	switch k {
	case diff.Added:
		return "+"
	case diff.Removed:
		return "-"
	case diff.Renamed:
		return ">"
	default:
		return "~"
	}
}
