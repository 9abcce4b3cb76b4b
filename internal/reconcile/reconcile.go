// Package reconcile computes which columns of a table lack descriptive
// comments and merges caller-supplied comment values into a table snapshot.
//
// Every function here is a pure transformation: inputs are never mutated and
// no I/O is performed.
package reconcile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tordrt/commentsync/internal/schema"
)

// Classification splits a table's columns into those that already carry a
// comment and those that do not. Every column appears in exactly one map.
type Classification struct {
	DefaultValues  map[string]string `json:"default_values"`
	MissingColumns map[string]string `json:"missing_columns"`
}

// Change describes a single column whose comment differs between two snapshots
type Change struct {
	Column string
	Old    string
	New    string
}

// UnmatchedKeysError reports override keys that name no column of the table
type UnmatchedKeysError struct {
	Table string
	Keys  []string
}

func (e *UnmatchedKeysError) Error() string {
	return fmt.Sprintf("override keys do not match any column of %s: %s", e.Table, strings.Join(e.Keys, ", "))
}

// IsMissing reports whether a comment counts as absent. Whitespace-only
// comments are treated the same as empty ones.
func IsMissing(comment string) bool {
	return strings.TrimSpace(comment) == ""
}

// Classify partitions the columns of t into DefaultValues and MissingColumns
func Classify(t schema.Table) Classification {
	c := Classification{
		DefaultValues:  make(map[string]string),
		MissingColumns: make(map[string]string),
	}

	for _, col := range t.Columns {
		if IsMissing(col.Comment) {
			c.MissingColumns[col.Name] = ""
		} else {
			c.DefaultValues[col.Name] = col.Comment
		}
	}

	return c
}

// MergeOverrides returns a copy of t where every column named in overrides
// carries the override value. Column order and count are preserved, and keys
// that match no column are ignored.
func MergeOverrides(t schema.Table, overrides map[string]string) schema.Table {
	out := t.Clone()
	for i, col := range out.Columns {
		if comment, ok := overrides[col.Name]; ok {
			out.Columns[i].Comment = comment
		}
	}
	return out
}

// UnmatchedKeys returns the sorted override keys that do not name a column of t
func UnmatchedKeys(t schema.Table, overrides map[string]string) []string {
	columns := make(map[string]bool, len(t.Columns))
	for _, col := range t.Columns {
		columns[col.Name] = true
	}

	var unmatched []string
	for key := range overrides {
		if !columns[key] {
			unmatched = append(unmatched, key)
		}
	}
	sort.Strings(unmatched)

	return unmatched
}

// ValidateOverrides fails with *UnmatchedKeysError when any override key
// names no column of t
func ValidateOverrides(t schema.Table, overrides map[string]string) error {
	if keys := UnmatchedKeys(t, overrides); len(keys) > 0 {
		return &UnmatchedKeysError{Table: t.QualifiedName(), Keys: keys}
	}
	return nil
}

// RestrictToMissing drops the overrides whose column already has a comment.
// Keys that match no column are kept so validation still sees them.
func RestrictToMissing(t schema.Table, overrides map[string]string) map[string]string {
	out := make(map[string]string, len(overrides))
	for key, value := range overrides {
		col, ok := t.Column(key)
		if ok && !IsMissing(col.Comment) {
			continue
		}
		out[key] = value
	}
	return out
}

// Diff lists, in column order, the columns of after whose comment differs
// from the same column in before
func Diff(before, after schema.Table) []Change {
	var changes []Change
	for _, col := range after.Columns {
		prev, ok := before.Column(col.Name)
		if !ok || prev.Comment == col.Comment {
			continue
		}
		changes = append(changes, Change{Column: col.Name, Old: prev.Comment, New: col.Comment})
	}
	return changes
}

// Comments converts changes into the write requests a catalog accepts
func Comments(changes []Change) []schema.ColumnComment {
	out := make([]schema.ColumnComment, 0, len(changes))
	for _, ch := range changes {
		out = append(out, schema.ColumnComment{Column: ch.Column, Comment: ch.New})
	}
	return out
}
