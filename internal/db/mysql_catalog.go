package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/tordrt/commentsync/internal/schema"
)

// MySQLCatalog reads column comments from information_schema and writes them
// with ALTER TABLE ... MODIFY COLUMN
type MySQLCatalog struct {
	client *MySQLClient
}

// NewMySQLCatalog creates a catalog on top of an open MySQL client
func NewMySQLCatalog(client *MySQLClient) *MySQLCatalog {
	return &MySQLCatalog{client: client}
}

// mysqlColumn is the subset of information_schema.columns needed to restate
// a column definition without changing it
type mysqlColumn struct {
	Name      string
	Type      string
	Nullable  bool
	Default   sql.NullString
	Extra     string
	Charset   sql.NullString
	Collation sql.NullString
	SRSID     sql.NullInt64
	Comment   string
}

// GetTable extracts the columns and their comments for schemaName.tableName
func (c *MySQLCatalog) GetTable(ctx context.Context, schemaName, tableName string) (*schema.Table, error) {
	schemaName = c.schemaOrDefault(schemaName)

	columns, err := c.extractColumns(ctx, schemaName, tableName)
	if err != nil {
		return nil, err
	}

	table := &schema.Table{Database: schemaName, Name: tableName}
	for _, col := range columns {
		table.Columns = append(table.Columns, schema.Column{Name: col.Name, Type: col.Type, Comment: col.Comment})
	}
	return table, nil
}

// UpdateColumnComment rewrites the comment of a single column
func (c *MySQLCatalog) UpdateColumnComment(ctx context.Context, schemaName, tableName, column, comment string) error {
	return c.UpdateColumnComments(ctx, schemaName, tableName, []schema.ColumnComment{{Column: column, Comment: comment}})
}

// UpdateColumnComments issues one ALTER TABLE with a MODIFY clause per
// column, so the statement either applies every comment or none
func (c *MySQLCatalog) UpdateColumnComments(ctx context.Context, schemaName, tableName string, comments []schema.ColumnComment) error {
	if len(comments) == 0 {
		return nil
	}
	schemaName = c.schemaOrDefault(schemaName)

	columns, err := c.extractColumns(ctx, schemaName, tableName)
	if err != nil {
		return err
	}
	byName := make(map[string]mysqlColumn, len(columns))
	for _, col := range columns {
		byName[col.Name] = col
	}

	clauses := make([]string, 0, len(comments))
	for _, cc := range comments {
		col, ok := byName[cc.Column]
		if !ok {
			return &NotFoundError{Database: schemaName, Table: tableName, Column: cc.Column}
		}
		clause, err := col.modifyClause(cc.Comment)
		if err != nil {
			return err
		}
		clauses = append(clauses, clause)
	}

	stmt := fmt.Sprintf("ALTER TABLE %s.%s %s",
		quoteMySQLIdent(schemaName), quoteMySQLIdent(tableName), strings.Join(clauses, ", "))
	if _, err := c.client.GetDB().ExecContext(ctx, stmt); err != nil {
		return mapMySQLError(fmt.Errorf("failed to alter table: %w", err), schemaName, tableName, "")
	}
	return nil
}

// Close closes the underlying connection
func (c *MySQLCatalog) Close() error {
	return c.client.Close()
}

func (c *MySQLCatalog) schemaOrDefault(schemaName string) string {
	if schemaName == "" {
		return c.client.Database()
	}
	return schemaName
}

// extractColumns returns the full definition of every column, failing with
// *NotFoundError when the table does not exist
func (c *MySQLCatalog) extractColumns(ctx context.Context, schemaName, tableName string) ([]mysqlColumn, error) {
	var exists int
	err := c.client.GetDB().QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM information_schema.tables
		WHERE table_schema = ? AND table_name = ?
	`, schemaName, tableName).Scan(&exists)
	if err != nil {
		return nil, mapMySQLError(fmt.Errorf("failed to look up table: %w", err), schemaName, tableName, "")
	}
	if exists == 0 {
		return nil, &NotFoundError{Database: schemaName, Table: tableName}
	}

	rows, err := c.client.GetDB().QueryContext(ctx, `
		SELECT
			column_name,
			column_type,
			is_nullable,
			column_default,
			extra,
			character_set_name,
			collation_name,
			srs_id,
			column_comment
		FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ?
		ORDER BY ordinal_position
	`, schemaName, tableName)
	if err != nil {
		return nil, mapMySQLError(fmt.Errorf("failed to extract columns: %w", err), schemaName, tableName, "")
	}
	defer rows.Close()

	var columns []mysqlColumn
	for rows.Next() {
		var col mysqlColumn
		var nullable string
		if err := rows.Scan(&col.Name, &col.Type, &nullable, &col.Default, &col.Extra,
			&col.Charset, &col.Collation, &col.SRSID, &col.Comment); err != nil {
			return nil, err
		}
		col.Nullable = nullable == "YES"
		columns = append(columns, col)
	}

	return columns, rows.Err()
}

// modifyClause restates the column definition with a new comment
func (col mysqlColumn) modifyClause(comment string) (string, error) {
	extra := strings.ToUpper(col.Extra)
	if strings.Contains(extra, "GENERATED") && !strings.Contains(extra, "DEFAULT_GENERATED") {
		return "", fmt.Errorf("column %s is a generated column; its comment cannot be changed safely", col.Name)
	}

	var b strings.Builder
	b.WriteString("MODIFY COLUMN ")
	b.WriteString(quoteMySQLIdent(col.Name))
	b.WriteString(" ")
	b.WriteString(col.Type)

	if col.Charset.Valid {
		b.WriteString(" CHARACTER SET " + col.Charset.String)
	}
	if col.Collation.Valid {
		b.WriteString(" COLLATE " + col.Collation.String)
	}

	if col.Nullable {
		b.WriteString(" NULL")
	} else {
		b.WriteString(" NOT NULL")
	}

	if col.SRSID.Valid {
		b.WriteString(fmt.Sprintf(" SRID %d", col.SRSID.Int64))
	}

	if col.Default.Valid {
		b.WriteString(" DEFAULT " + col.defaultExpr())
	}

	if hasWord(extra, "INVISIBLE") {
		b.WriteString(" INVISIBLE")
	}
	if hasWord(extra, "AUTO_INCREMENT") {
		b.WriteString(" AUTO_INCREMENT")
	}
	if expr := onUpdateExpr(col.Extra); expr != "" {
		b.WriteString(" ON UPDATE " + expr)
	}

	b.WriteString(" COMMENT ")
	b.WriteString(quoteMySQLString(comment))

	return b.String(), nil
}

// hasWord reports whether extra lists attr as one of its words
func hasWord(extra, attr string) bool {
	for _, w := range strings.Fields(extra) {
		if w == attr {
			return true
		}
	}
	return false
}

// onUpdateExpr returns the expression of an "on update" clause in extra
func onUpdateExpr(extra string) string {
	i := strings.Index(strings.ToUpper(extra), "ON UPDATE ")
	if i < 0 {
		return ""
	}
	fields := strings.Fields(extra[i+len("ON UPDATE "):])
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// defaultExpr renders column_default. MySQL 8 marks expression defaults with
// DEFAULT_GENERATED; everything else is a literal.
func (col mysqlColumn) defaultExpr() string {
	value := col.Default.String
	if !strings.Contains(strings.ToUpper(col.Extra), "DEFAULT_GENERATED") {
		return quoteMySQLString(value)
	}
	if strings.HasPrefix(strings.ToUpper(value), "CURRENT_TIMESTAMP") {
		return value
	}
	return "(" + value + ")"
}

func quoteMySQLIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func quoteMySQLString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `''`, "\x00", `\0`, "\n", `\n`, "\r", `\r`, "\x1a", `\Z`)
	return "'" + r.Replace(s) + "'"
}

// mapMySQLError converts server error numbers into the catalog error taxonomy
func mapMySQLError(err error, schemaName, tableName, column string) error {
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) {
		return err
	}

	switch myErr.Number {
	case 1044, 1045, 1142, 1143, 1227:
		return &AuthError{Backend: "mysql", Err: err}
	case 1049, 1146:
		return &NotFoundError{Database: schemaName, Table: tableName, Err: err}
	case 1054:
		return &NotFoundError{Database: schemaName, Table: tableName, Column: column, Err: err}
	}
	return err
}
