package formatter

import (
	"fmt"
	"io"
	"strings"
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
	_, _ = fmt.Fprintf(f.writer, "# %s\n\n", r.Table.QualifiedName())
	_, _ = fmt.Fprintf(f.writer, "Mode: %s\n\n", modeLabel(r))

	_, _ = fmt.Fprintln(f.writer, "## Columns")
	_, _ = fmt.Fprintln(f.writer)
	_, _ = fmt.Fprintln(f.writer, "| Column | Type | Comment |")
	_, _ = fmt.Fprintln(f.writer, "|--------|------|---------|")
	for _, col := range r.Table.Columns {
		comment, missing := commentOrMissing(col.Comment)
		if missing {
			comment = "**" + comment + "**"
		}
		_, _ = fmt.Fprintf(f.writer, "| %s | %s | %s |\n", escapeCell(col.Name), escapeCell(col.Type), escapeCell(comment))
	}
	_, _ = fmt.Fprintln(f.writer)
	_, _ = fmt.Fprintf(f.writer, "%d of %d columns missing a comment\n", r.Missing(), len(r.Table.Columns))

	if len(r.Changes) > 0 {
		f.formatChanges(r.Changes)
	}
	return nil
}

func (f *MarkdownFormatter) formatChanges(changes []ChangeResult) {
	_, _ = fmt.Fprintln(f.writer)
	_, _ = fmt.Fprintln(f.writer, "## Changes")
	_, _ = fmt.Fprintln(f.writer)
	_, _ = fmt.Fprintln(f.writer, "| Column | Old | New | Status |")
	_, _ = fmt.Fprintln(f.writer, "|--------|-----|-----|--------|")
	for _, c := range changes {
		status := string(c.Status)
		if c.Error != "" {
			status += ": " + c.Error
		}
		_, _ = fmt.Fprintf(f.writer, "| %s | %s | %s | %s |\n",
			escapeCell(c.Column), escapeCell(c.Old), escapeCell(c.New), escapeCell(status))
	}
}

// escapeCell keeps a value inside its table cell
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
