package schema

// Table represents a catalog table definition
type Table struct {
	Database string
	Name     string
	Columns  []Column
}

// Column represents a table column
type Column struct {
	Name    string
	Type    string
	Comment string
}

// ColumnComment is a single comment write addressed by column name
type ColumnComment struct {
	Column  string
	Comment string
}

// QualifiedName returns database.table, or just the table name when the
// database is empty (SQLite)
func (t Table) QualifiedName() string {
	if t.Database == "" {
		return t.Name
	}
	return t.Database + "." + t.Name
}

// Column returns the column with the given name
func (t Table) Column(name string) (Column, bool) {
	for _, col := range t.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return Column{}, false
}

// Clone returns a copy of the table that shares no column storage
func (t Table) Clone() Table {
	out := t
	out.Columns = make([]Column, len(t.Columns))
	copy(out.Columns, t.Columns)
	return out
}
