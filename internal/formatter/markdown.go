package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/tordrt/migracraft/internal/diff"
	"github.com/tordrt/migracraft/internal/schema"
)

// MarkdownFormatter formats a report as markdown
type MarkdownFormatter struct {
	writer io.Writer
}

// NewMarkdownFormatter creates a new markdown formatter
func NewMarkdownFormatter(w io.Writer) *MarkdownFormatter {
	return &MarkdownFormatter{writer: w}
}

// Format writes the report in markdown format
func (f *MarkdownFormatter) Format(r *Report) error {
	_, _ = fmt.Fprintln(f.writer, "# Migration Plan")
	_, _ = fmt.Fprintln(f.writer)
	_, _ = fmt.Fprintf(f.writer, "**Mode:** %s\n\n", r.Mode)

	if r.Empty() {
		_, _ = fmt.Fprintln(f.writer, "No changes detected.")
		return nil
	}

	_, _ = fmt.Fprintln(f.writer, "## Changes")
	_, _ = fmt.Fprintln(f.writer)
	for _, ch := range r.Diff.Changes {
		f.formatChange(ch)
	}

	if len(r.Diff.Ignored) > 0 {
		_, _ = fmt.Fprintln(f.writer, "### Ignored rename directives")
		_, _ = fmt.Fprintln(f.writer)
		for _, note := range r.Diff.Ignored {
			_, _ = fmt.Fprintf(f.writer, "- %s\n", note)
		}
		_, _ = fmt.Fprintln(f.writer)
	}

	if destructive := r.Diff.Destructive(); len(destructive) > 0 {
		_, _ = fmt.Fprintln(f.writer, "> **Warning:** this migration contains destructive changes:")
		for _, d := range destructive {
			_, _ = fmt.Fprintf(f.writer, "> - %s\n", d)
		}
		_, _ = fmt.Fprintln(f.writer)
	}

	f.formatStatements("Up", r.Plan.UpSQL())
	f.formatStatements("Down", r.Plan.DownSQL())
	return nil
}

func (f *MarkdownFormatter) formatChange(ch diff.TableChange) {
	_, _ = fmt.Fprintf(f.writer, "### %s (%s)\n\n", ch.TableName(), tableStatus(ch))

	switch c := ch.(type) {
	case diff.TableAdded:
		f.formatTable(c.Table)
	case diff.TableChanged:
		for _, cd := range c.Columns {
			_, _ = fmt.Fprintf(f.writer, "- %s\n", f.formatColumnDiff(cd))
		}
		for _, cd := range c.Constraints {
			line := fmt.Sprintf("- %s constraint `%s`", cd.Kind, cd.Name)
			if cd.New != nil {
				line += ": " + constraintSpec(*cd.New)
			}
			if cd.Kind == diff.Renamed {
				line += fmt.Sprintf(" (from `%s`)", cd.RenamedFrom)
			}
			_, _ = fmt.Fprintln(f.writer, line)
		}
		for _, id := range c.Indexes {
			line := fmt.Sprintf("- %s index `%s`", id.Kind, id.Name)
			if id.New != nil {
				line += " on " + indexSpec(*id.New)
			}
			if id.Kind == diff.Renamed {
				line += fmt.Sprintf(" (from `%s`)", id.RenamedFrom)
			}
			_, _ = fmt.Fprintln(f.writer, line)
		}
		_, _ = fmt.Fprintln(f.writer)
	}
}

func (f *MarkdownFormatter) formatTable(table schema.Table) {
	pk := table.PrimaryKey()
	for _, col := range table.Columns {
		constraintStr := f.formatConstraints(col, pk)
		if constraintStr != "" {
			_, _ = fmt.Fprintf(f.writer, "- **%s:** %s, %s\n", col.Name, col.Type, constraintStr)
		} else {
			_, _ = fmt.Fprintf(f.writer, "- **%s:** %s\n", col.Name, col.Type)
		}
	}
	for _, c := range table.Constraints {
		if c.Kind == schema.PrimaryKey {
			continue
		}
		_, _ = fmt.Fprintf(f.writer, "- constraint `%s`: %s\n", c.Name, constraintSpec(c))
	}
	for _, idx := range table.Indexes {
		_, _ = fmt.Fprintf(f.writer, "- index `%s` on %s\n", idx.Name, indexSpec(idx))
	}
	_, _ = fmt.Fprintln(f.writer)
}

func (f *MarkdownFormatter) formatConstraints(col schema.Column, primaryKey []string) string {
	var constraints []string

	for _, pk := range primaryKey {
		if pk == col.Name {
			constraints = append(constraints, "PK")
			break
		}
	}
	if col.Identity {
		constraints = append(constraints, "IDENTITY")
	}
	if !col.Nullable {
		constraints = append(constraints, "NOT NULL")
	}
	if col.Default != nil {
		constraints = append(constraints, fmt.Sprintf("DEFAULT %s", *col.Default))
	}

	return strings.Join(constraints, ", ")
}

func (f *MarkdownFormatter) formatColumnDiff(cd diff.ColumnDiff) string {
	switch cd.Kind {
	case diff.Added:
		return fmt.Sprintf("added column **%s:** %s", cd.Name, columnSpec(*cd.New))
	case diff.Removed:
		return fmt.Sprintf("removed column **%s:** %s", cd.Name, columnSpec(*cd.Old))
	case diff.Renamed:
		return fmt.Sprintf("renamed column **%s** from `%s`", cd.Name, cd.RenamedFrom)
	}
	s := fmt.Sprintf("modified column **%s:** %s → %s", cd.Name, columnSpec(*cd.Old), columnSpec(*cd.New))
	if cd.Destructive {
		s += fmt.Sprintf(" (destructive: %s)", cd.Reason)
	}
	return s
}

func (f *MarkdownFormatter) formatStatements(title string, stmts []string) {
	_, _ = fmt.Fprintf(f.writer, "## %s\n\n", title)
	_, _ = fmt.Fprintln(f.writer, "```sql")
	for _, stmt := range stmts {
		_, _ = fmt.Fprintln(f.writer, stmt)
	}
	_, _ = fmt.Fprintln(f.writer, "```")
	_, _ = fmt.Fprintln(f.writer)
}
