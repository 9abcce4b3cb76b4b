package db

import (
	"context"

	"github.com/tordrt/commentsync/internal/schema"
)

// Catalog reads table definitions and writes column comments
type Catalog interface {
	// GetTable fetches the columns of database.table in definition order
	GetTable(ctx context.Context, database, table string) (*schema.Table, error)

	// UpdateColumnComment sets the comment of a single column. An empty
	// comment clears it.
	UpdateColumnComment(ctx context.Context, database, table, column, comment string) error

	Close() error
}

// BatchUpdater is implemented by catalogs that can apply several comment
// writes to one table as a single all-or-nothing operation
type BatchUpdater interface {
	UpdateColumnComments(ctx context.Context, database, table string, comments []schema.ColumnComment) error
}

// AWSOptions configures the Glue catalog client. Empty fields fall back to
// the SDK's default credential and region chain.
type AWSOptions struct {
	Region          string
	Profile         string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	CatalogID       string
}

// UnityOptions configures the Databricks Unity Catalog client
type UnityOptions struct {
	Token       string
	WarehouseID string
}
