package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tordrt/commentsync/internal/schema"
)

// SQLiteCommentsTable holds column comments, since SQLite has no COMMENT syntax
const SQLiteCommentsTable = "_column_comments"

// SQLiteCatalog keeps column comments in a sidecar table inside the database
// file. The table is created on the first write.
type SQLiteCatalog struct {
	client *SQLiteClient
}

// NewSQLiteCatalog creates a catalog on top of an open SQLite client
func NewSQLiteCatalog(client *SQLiteClient) *SQLiteCatalog {
	return &SQLiteCatalog{client: client}
}

// GetTable extracts columns from PRAGMA table_info joined with stored comments.
// The database argument is ignored.
func (c *SQLiteCatalog) GetTable(ctx context.Context, _ string, tableName string) (*schema.Table, error) {
	if err := c.requireTable(ctx, tableName); err != nil {
		return nil, err
	}

	comments, err := c.loadComments(ctx, tableName)
	if err != nil {
		return nil, err
	}

	rows, err := c.client.GetDB().QueryContext(ctx, `SELECT name, type FROM pragma_table_info(?) ORDER BY cid`, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to extract columns: %w", err)
	}
	defer rows.Close()

	table := &schema.Table{Name: tableName}
	for rows.Next() {
		var col schema.Column
		if err := rows.Scan(&col.Name, &col.Type); err != nil {
			return nil, err
		}
		col.Comment = comments[col.Name]
		table.Columns = append(table.Columns, col)
	}

	return table, rows.Err()
}

// UpdateColumnComment stores the comment of a single column
func (c *SQLiteCatalog) UpdateColumnComment(ctx context.Context, database, tableName, column, comment string) error {
	return c.UpdateColumnComments(ctx, database, tableName, []schema.ColumnComment{{Column: column, Comment: comment}})
}

// UpdateColumnComments stores every comment inside one transaction
func (c *SQLiteCatalog) UpdateColumnComments(ctx context.Context, _ string, tableName string, comments []schema.ColumnComment) error {
	if err := c.requireTable(ctx, tableName); err != nil {
		return err
	}

	columns, err := c.columnNames(ctx, tableName)
	if err != nil {
		return err
	}
	for _, cc := range comments {
		if !columns[cc.Column] {
			return &NotFoundError{Table: tableName, Column: cc.Column}
		}
	}

	tx, err := c.client.GetDB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS `+SQLiteCommentsTable+` (
			table_name  TEXT NOT NULL,
			column_name TEXT NOT NULL,
			comment     TEXT NOT NULL,
			PRIMARY KEY (table_name, column_name)
		)
	`); err != nil {
		return fmt.Errorf("failed to create comments table: %w", err)
	}

	for _, cc := range comments {
		if cc.Comment == "" {
			_, err = tx.ExecContext(ctx,
				`DELETE FROM `+SQLiteCommentsTable+` WHERE table_name = ? AND column_name = ?`,
				tableName, cc.Column)
		} else {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO `+SQLiteCommentsTable+` (table_name, column_name, comment)
				VALUES (?, ?, ?)
				ON CONFLICT (table_name, column_name) DO UPDATE SET comment = excluded.comment
			`, tableName, cc.Column, cc.Comment)
		}
		if err != nil {
			return fmt.Errorf("failed to store comment for column %s: %w", cc.Column, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit comments: %w", err)
	}
	return nil
}

// Close closes the underlying connection
func (c *SQLiteCatalog) Close() error {
	return c.client.Close()
}

func (c *SQLiteCatalog) requireTable(ctx context.Context, tableName string) error {
	if tableName == SQLiteCommentsTable {
		return &NotFoundError{Table: tableName}
	}

	var name string
	err := c.client.GetDB().QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type IN ('table', 'view') AND name = ?`, tableName).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return &NotFoundError{Table: tableName}
	}
	if err != nil {
		return fmt.Errorf("failed to look up table: %w", err)
	}
	return nil
}

func (c *SQLiteCatalog) columnNames(ctx context.Context, tableName string) (map[string]bool, error) {
	rows, err := c.client.GetDB().QueryContext(ctx, `SELECT name FROM pragma_table_info(?)`, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to extract columns: %w", err)
	}
	defer rows.Close()

	names := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names[name] = true
	}
	return names, rows.Err()
}

// loadComments returns the stored comments for a table. A database that has
// never been written to has no comments table yet.
func (c *SQLiteCatalog) loadComments(ctx context.Context, tableName string) (map[string]string, error) {
	comments := make(map[string]string)

	var name string
	err := c.client.GetDB().QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, SQLiteCommentsTable).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return comments, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up comments table: %w", err)
	}

	rows, err := c.client.GetDB().QueryContext(ctx,
		`SELECT column_name, comment FROM `+SQLiteCommentsTable+` WHERE table_name = ?`, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to load comments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var column, comment string
		if err := rows.Scan(&column, &comment); err != nil {
			return nil, err
		}
		comments[column] = comment
	}
	return comments, rows.Err()
}
