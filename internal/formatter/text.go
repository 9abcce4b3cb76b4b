package formatter

import (
	"fmt"
	"io"

	"github.com/tordrt/commentsync/internal/color"
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
	_, _ = fmt.Fprintf(f.writer, "%s (%s)\n", color.Header.Sprintf("TABLE %s", r.Table.QualifiedName()), modeLabel(r))

	for _, col := range r.Table.Columns {
		comment, missing := commentOrMissing(col.Comment)
		if missing {
			comment = color.Missing.Sprint(comment)
		}
		_, _ = fmt.Fprintf(f.writer, "  %s %s: %s\n", col.Name, col.Type, comment)
	}

	_, _ = fmt.Fprintln(f.writer)
	_, _ = fmt.Fprintf(f.writer, "%d of %d columns missing a comment\n", r.Missing(), len(r.Table.Columns))

	if len(r.Changes) > 0 {
		_, _ = fmt.Fprintln(f.writer)
		_, _ = fmt.Fprintln(f.writer, "CHANGES:")
		for _, c := range r.Changes {
			_, _ = fmt.Fprintf(f.writer, "  %s: %q → %q %s\n", c.Column, c.Old, c.New, statusText(c))
		}
	}

	return nil
}

func modeLabel(r *Report) string {
	if r.DryRun {
		return r.Mode + ", dry run"
	}
	return r.Mode
}

func statusText(c ChangeResult) string {
	switch c.Status {
	case StatusApplied:
		return color.Applied.Sprint("[applied]")
	case StatusFailed:
		return color.Error.Sprintf("[failed: %s]", c.Error)
	case StatusSkipped:
		return color.Warning.Sprint("[skipped]")
	}
	return "[" + string(c.Status) + "]"
}
