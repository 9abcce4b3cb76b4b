package db

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/tordrt/commentsync/internal/schema"
)

// UnityCatalog reads column comments from the Unity Catalog tables API and
// writes them with ALTER TABLE statements on a SQL warehouse. Each column is
// a separate statement, so it does not implement BatchUpdater.
type UnityCatalog struct {
	client *UnityClient
}

// NewUnityCatalog creates a catalog on top of a Unity client
func NewUnityCatalog(client *UnityClient) *UnityCatalog {
	return &UnityCatalog{client: client}
}

// GetTable fetches database.table, where database is "catalog.schema"
func (c *UnityCatalog) GetTable(ctx context.Context, database, tableName string) (*schema.Table, error) {
	fullName, err := unityFullName(database, tableName)
	if err != nil {
		return nil, err
	}

	raw, err := c.client.getTable(ctx, fullName)
	if err != nil {
		return nil, mapUnityError(fmt.Errorf("failed to get table: %w", err), database, tableName, "")
	}

	columns := make([]unityColumn, len(raw.Columns))
	copy(columns, raw.Columns)
	sort.SliceStable(columns, func(i, j int) bool { return columns[i].Position < columns[j].Position })

	table := &schema.Table{Database: database, Name: tableName}
	for _, col := range columns {
		table.Columns = append(table.Columns, schema.Column{Name: col.Name, Type: col.TypeText, Comment: col.Comment})
	}
	return table, nil
}

// UpdateColumnComment runs ALTER TABLE ... ALTER COLUMN ... COMMENT
func (c *UnityCatalog) UpdateColumnComment(ctx context.Context, database, tableName, column, comment string) error {
	target, err := quoteUnityTable(database, tableName)
	if err != nil {
		return err
	}

	stmt := fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s COMMENT %s",
		target, quoteUnityIdent(column), quoteUnityString(comment))
	if err := c.client.executeStatement(ctx, stmt); err != nil {
		return mapUnityError(fmt.Errorf("failed to comment on column: %w", err), database, tableName, column)
	}
	return nil
}

// Close releases the client
func (c *UnityCatalog) Close() error {
	return c.client.Close()
}

// unityFullName joins "catalog.schema" and the table into a three-level name
func unityFullName(database, tableName string) (string, error) {
	if _, err := splitUnityDatabase(database); err != nil {
		return "", err
	}
	return database + "." + tableName, nil
}

func splitUnityDatabase(database string) ([]string, error) {
	parts := strings.Split(database, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("unity database must be of the form catalog.schema, got %q", database)
	}
	return parts, nil
}

func quoteUnityIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// quoteUnityTable quotes catalog, schema and table as three identifiers.
// The table name is kept whole even when it contains dots.
func quoteUnityTable(database, tableName string) (string, error) {
	parts, err := splitUnityDatabase(database)
	if err != nil {
		return "", err
	}
	return quoteUnityIdent(parts[0]) + "." + quoteUnityIdent(parts[1]) + "." + quoteUnityIdent(tableName), nil
}

func quoteUnityString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(s) + "'"
}

// mapUnityError converts HTTP status codes and failed statement error
// classes into the catalog error taxonomy
func mapUnityError(err error, database, tableName, column string) error {
	var apiErr *unityAPIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return &AuthError{Backend: "unity", Err: err}
		case http.StatusNotFound:
			return &NotFoundError{Database: database, Table: tableName, Column: column, Err: err}
		}
		return err
	}

	var stmtErr *unityStatementError
	if !errors.As(err, &stmtErr) {
		return err
	}

	code := strings.ToUpper(stmtErr.ErrorCode)
	switch {
	case code == "PERMISSION_DENIED" || code == "UNAUTHENTICATED" ||
		hasErrorClass(stmtErr.Message, "INSUFFICIENT_PERMISSIONS", "PERMISSION_DENIED"):
		return &AuthError{Backend: "unity", Err: err}
	case hasErrorClass(stmtErr.Message, "UNRESOLVED_COLUMN", "FIELD_NOT_FOUND"):
		return &NotFoundError{Database: database, Table: tableName, Column: column, Err: err}
	case code == "NOT_FOUND" || code == "RESOURCE_DOES_NOT_EXIST" ||
		hasErrorClass(stmtErr.Message, "TABLE_OR_VIEW_NOT_FOUND", "SCHEMA_NOT_FOUND", "CATALOG_NOT_FOUND"):
		return &NotFoundError{Database: database, Table: tableName, Err: err}
	}
	return err
}

// hasErrorClass reports whether a warehouse message carries one of the
// bracketed error classes, such as "[TABLE_OR_VIEW_NOT_FOUND]" or
// "[UNRESOLVED_COLUMN.WITH_SUGGESTION]"
func hasErrorClass(message string, classes ...string) bool {
	for _, class := range classes {
		if strings.Contains(message, "["+class+"]") || strings.Contains(message, "["+class+".") {
			return true
		}
	}
	return false
}
