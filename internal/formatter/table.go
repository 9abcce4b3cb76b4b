package formatter

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
)

// TableFormatter renders a report as boxed terminal tables
type TableFormatter struct {
	writer io.Writer
}

// NewTableFormatter creates a new table formatter
func NewTableFormatter(w io.Writer) *TableFormatter {
	return &TableFormatter{writer: w}
}

// Format writes the column table and, when there are any, the change table
func (f *TableFormatter) Format(r *Report) error {
	cols := f.newWriter()
	cols.SetTitle("%s (%s)", r.Table.QualifiedName(), modeLabel(r))
	cols.AppendHeader(table.Row{"#", "Column", "Type", "Comment"})
	for i, col := range r.Table.Columns {
		comment, _ := commentOrMissing(col.Comment)
		cols.AppendRow(table.Row{i + 1, col.Name, col.Type, comment})
	}
	cols.AppendFooter(table.Row{"", "", "Missing", r.Missing()})
	cols.Render()

	if len(r.Changes) == 0 {
		return nil
	}

	changes := f.newWriter()
	changes.AppendHeader(table.Row{"Column", "Old", "New", "Status", "Error"})
	for _, c := range r.Changes {
		changes.AppendRow(table.Row{c.Column, c.Old, c.New, string(c.Status), c.Error})
	}
	changes.Render()
	return nil
}

func (f *TableFormatter) newWriter() table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(f.writer)
	tw.SetStyle(table.StyleLight)
	return tw
}
