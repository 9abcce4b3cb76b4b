package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tordrt/commentsync/internal/schema"
)

const defaultPostgresSchema = "public"

// PostgresCatalog reads and writes column comments through pg_description
type PostgresCatalog struct {
	client *PostgresClient
}

// NewPostgresCatalog creates a catalog on top of an open PostgreSQL client
func NewPostgresCatalog(client *PostgresClient) *PostgresCatalog {
	return &PostgresCatalog{client: client}
}

// GetTable extracts the columns and their comments for schemaName.tableName
func (c *PostgresCatalog) GetTable(ctx context.Context, schemaName, tableName string) (*schema.Table, error) {
	if schemaName == "" {
		schemaName = defaultPostgresSchema
	}

	var oid uint32
	err := c.client.GetConnection().QueryRow(ctx, `
		SELECT c.oid
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1
			AND c.relname = $2
			AND c.relkind IN ('r', 'p', 'v', 'm', 'f')
	`, schemaName, tableName).Scan(&oid)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &NotFoundError{Database: schemaName, Table: tableName}
	}
	if err != nil {
		return nil, mapPostgresError(fmt.Errorf("failed to look up table: %w", err), schemaName, tableName, "")
	}

	rows, err := c.client.GetConnection().Query(ctx, `
		SELECT
			a.attname,
			format_type(a.atttypid, a.atttypmod),
			COALESCE(col_description(a.attrelid, a.attnum), '')
		FROM pg_attribute a
		WHERE a.attrelid = $1
			AND a.attnum > 0
			AND NOT a.attisdropped
		ORDER BY a.attnum
	`, oid)
	if err != nil {
		return nil, mapPostgresError(fmt.Errorf("failed to extract columns: %w", err), schemaName, tableName, "")
	}
	defer rows.Close()

	table := &schema.Table{Database: schemaName, Name: tableName}
	for rows.Next() {
		var col schema.Column
		if err := rows.Scan(&col.Name, &col.Type, &col.Comment); err != nil {
			return nil, err
		}
		table.Columns = append(table.Columns, col)
	}

	return table, rows.Err()
}

// UpdateColumnComment runs COMMENT ON COLUMN for a single column
func (c *PostgresCatalog) UpdateColumnComment(ctx context.Context, schemaName, tableName, column, comment string) error {
	if schemaName == "" {
		schemaName = defaultPostgresSchema
	}

	if _, err := c.client.GetConnection().Exec(ctx, commentOnColumnSQL(schemaName, tableName, column, comment)); err != nil {
		return mapPostgresError(fmt.Errorf("failed to comment on column: %w", err), schemaName, tableName, column)
	}
	return nil
}

// UpdateColumnComments applies all comments inside one transaction
func (c *PostgresCatalog) UpdateColumnComments(ctx context.Context, schemaName, tableName string, comments []schema.ColumnComment) error {
	if schemaName == "" {
		schemaName = defaultPostgresSchema
	}

	tx, err := c.client.GetConnection().Begin(ctx)
	if err != nil {
		return mapPostgresError(fmt.Errorf("failed to begin transaction: %w", err), schemaName, tableName, "")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, cc := range comments {
		if _, err := tx.Exec(ctx, commentOnColumnSQL(schemaName, tableName, cc.Column, cc.Comment)); err != nil {
			return mapPostgresError(fmt.Errorf("failed to comment on column %s: %w", cc.Column, err), schemaName, tableName, cc.Column)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return mapPostgresError(fmt.Errorf("failed to commit comments: %w", err), schemaName, tableName, "")
	}
	return nil
}

// Close closes the underlying connection
func (c *PostgresCatalog) Close() error {
	return c.client.Close(context.Background())
}

// commentOnColumnSQL builds the statement by hand because COMMENT ON does not
// accept bind parameters. An empty comment removes it.
func commentOnColumnSQL(schemaName, tableName, column, comment string) string {
	value := "NULL"
	if comment != "" {
		value = quotePostgresLiteral(comment)
	}
	return fmt.Sprintf("COMMENT ON COLUMN %s IS %s", pgx.Identifier{schemaName, tableName, column}.Sanitize(), value)
}

// quotePostgresLiteral quotes s as a string constant that is safe whatever
// the value of standard_conforming_strings
func quotePostgresLiteral(s string) string {
	quoted := "'" + strings.ReplaceAll(s, "'", "''") + "'"
	if strings.Contains(s, `\`) {
		quoted = "E" + strings.ReplaceAll(quoted, `\`, `\\`)
	}
	return quoted
}

// mapPostgresError converts SQLSTATE classes into the catalog error taxonomy
func mapPostgresError(err error, schemaName, tableName, column string) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case "28000", "28P01", "42501":
		return &AuthError{Backend: "postgres", Err: err}
	case "3F000", "42P01":
		return &NotFoundError{Database: schemaName, Table: tableName, Err: err}
	case "42703":
		return &NotFoundError{Database: schemaName, Table: tableName, Column: column, Err: err}
	}
	return err
}
