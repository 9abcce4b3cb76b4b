package formatter

import (
	"fmt"
	"io"

	"github.com/tordrt/commentsync/internal/reconcile"
	"github.com/tordrt/commentsync/internal/schema"
)

// Output formats for the human report
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatTable    = "table"
)

// Status is what happened to a single comment change
type Status string

const (
	StatusPlanned Status = "planned"
	StatusApplied Status = "applied"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// ChangeResult is a comment change together with its outcome
type ChangeResult struct {
	reconcile.Change
	Status Status
	Error  string
}

// Report is everything a run shows to the user
type Report struct {
	Mode    string
	DryRun  bool
	Table   schema.Table
	Changes []ChangeResult
}

// Missing counts the columns of the fetched table without a comment
func (r *Report) Missing() int {
	n := 0
	for _, col := range r.Table.Columns {
		if reconcile.IsMissing(col.Comment) {
			n++
		}
	}
	return n
}

// Formatter renders a report
type Formatter interface {
	Format(r *Report) error
}

// New returns the formatter for the named output format
func New(format string, w io.Writer) (Formatter, error) {
	switch format {
	case FormatText, "":
		return NewTextFormatter(w), nil
	case FormatMarkdown:
		return NewMarkdownFormatter(w), nil
	case FormatTable:
		return NewTableFormatter(w), nil
	default:
		return nil, fmt.Errorf("unsupported format: %s (must be 'text', 'markdown', or 'table')", format)
	}
}

func commentOrMissing(comment string) (string, bool) {
	if reconcile.IsMissing(comment) {
		return "MISSING", true
	}
	return comment, false
}
