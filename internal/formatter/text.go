package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/tordrt/migracraft/internal/diff"
	"github.com/tordrt/migracraft/internal/schema"
)

// TextFormatter formats a report as compact text
type TextFormatter struct {
	writer io.Writer
}

// NewTextFormatter creates a new text formatter
func NewTextFormatter(w io.Writer) *TextFormatter {
	return &TextFormatter{writer: w}
}

// Format writes the report in compact text format
func (f *TextFormatter) Format(r *Report) error {
	_, _ = fmt.Fprintf(f.writer, "MIGRATION PLAN (%s)\n", r.Mode)
	if r.Empty() {
		_, _ = fmt.Fprintln(f.writer)
		_, _ = fmt.Fprintln(f.writer, "No changes detected.")
		return nil
	}

	for _, ch := range r.Diff.Changes {
		_, _ = fmt.Fprintln(f.writer)
		f.formatChange(ch)
	}

	if len(r.Diff.Ignored) > 0 {
		_, _ = fmt.Fprintln(f.writer)
		_, _ = fmt.Fprintln(f.writer, "IGNORED RENAMES:")
		for _, note := range r.Diff.Ignored {
			_, _ = fmt.Fprintf(f.writer, "  %s\n", note)
		}
	}

	f.formatStatements("UP", r.Plan.UpSQL())
	f.formatStatements("DOWN", r.Plan.DownSQL())
	return nil
}

func (f *TextFormatter) formatChange(ch diff.TableChange) {
	_, _ = fmt.Fprintf(f.writer, "TABLE %s (%s)\n", ch.TableName(), tableStatus(ch))

	switch c := ch.(type) {
	case diff.TableAdded:
		f.formatTable(c.Table)
	case diff.TableChanged:
		for _, cd := range c.Columns {
			_, _ = fmt.Fprintf(f.writer, "  %s %s\n", changeMarker(cd.Kind), f.formatColumnDiff(cd))
		}
		if len(c.Constraints) > 0 {
			_, _ = fmt.Fprintln(f.writer, "  CONSTRAINTS:")
			for _, cd := range c.Constraints {
				spec := ""
				if cd.New != nil {
					spec = " " + constraintSpec(*cd.New)
				}
				if cd.Kind == diff.Renamed {
					spec += fmt.Sprintf(" (renamed from %s)", cd.RenamedFrom)
				}
				_, _ = fmt.Fprintf(f.writer, "    %s %s%s\n", changeMarker(cd.Kind), cd.Name, spec)
			}
		}
		if len(c.Indexes) > 0 {
			_, _ = fmt.Fprintln(f.writer, "  INDEXES:")
			for _, id := range c.Indexes {
				spec := ""
				if id.New != nil {
					spec = " " + indexSpec(*id.New)
				}
				if id.Kind == diff.Renamed {
					spec += fmt.Sprintf(" (renamed from %s)", id.RenamedFrom)
				}
				_, _ = fmt.Fprintf(f.writer, "    %s %s%s\n", changeMarker(id.Kind), id.Name, spec)
			}
		}
	}
}

func (f *TextFormatter) formatTable(table schema.Table) {
	for _, col := range table.Columns {
		_, _ = fmt.Fprintf(f.writer, "  %s\n", f.formatColumn(col))
	}
	if len(table.Constraints) > 0 {
		_, _ = fmt.Fprintln(f.writer, "  CONSTRAINTS:")
		for _, c := range table.Constraints {
			_, _ = fmt.Fprintf(f.writer, "    %s %s\n", c.Name, constraintSpec(c))
		}
	}
	if len(table.Indexes) > 0 {
		_, _ = fmt.Fprintln(f.writer, "  INDEXES:")
		for _, idx := range table.Indexes {
			_, _ = fmt.Fprintf(f.writer, "    %s %s\n", idx.Name, indexSpec(idx))
		}
	}
}

func (f *TextFormatter) formatColumn(col schema.Column) string {
	return col.Name + ": " + columnSpec(col)
}

func (f *TextFormatter) formatColumnDiff(cd diff.ColumnDiff) string {
	switch cd.Kind {
	case diff.Added:
		return f.formatColumn(*cd.New)
	case diff.Removed:
		return f.formatColumn(*cd.Old)
	case diff.Renamed:
		return fmt.Sprintf("%s (renamed from %s)", cd.Name, cd.RenamedFrom)
	}
	s := fmt.Sprintf("%s: %s -> %s", cd.Name, columnSpec(*cd.Old), columnSpec(*cd.New))
	if cd.Destructive {
		s += fmt.Sprintf(" [DESTRUCTIVE: %s]", cd.Reason)
	}
	return s
}

func (f *TextFormatter) formatStatements(title string, stmts []string) {
	_, _ = fmt.Fprintln(f.writer)
	_, _ = fmt.Fprintf(f.writer, "%s:\n", title)
	for _, stmt := range stmts {
		for _, line := range strings.Split(stmt, "\n") {
			_, _ = fmt.Fprintf(f.writer, "  %s\n", line)
		}
	}
}
