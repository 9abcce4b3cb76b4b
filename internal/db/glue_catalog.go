package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/glue"
	gluetypes "github.com/aws/aws-sdk-go-v2/service/glue/types"
	"github.com/aws/smithy-go"

	"github.com/tordrt/commentsync/internal/schema"
)

// GlueCatalog reads and writes the comments of a Glue table's
// StorageDescriptor columns
type GlueCatalog struct {
	client *GlueClient
}

// NewGlueCatalog creates a catalog on top of a Glue client
func NewGlueCatalog(client *GlueClient) *GlueCatalog {
	return &GlueCatalog{client: client}
}

// GetTable fetches the table definition from Glue
func (c *GlueCatalog) GetTable(ctx context.Context, database, tableName string) (*schema.Table, error) {
	raw, err := c.getRawTable(ctx, database, tableName)
	if err != nil {
		return nil, err
	}

	table := &schema.Table{Database: database, Name: tableName}
	if raw.StorageDescriptor != nil {
		for _, col := range raw.StorageDescriptor.Columns {
			table.Columns = append(table.Columns, schema.Column{
				Name:    aws.ToString(col.Name),
				Type:    aws.ToString(col.Type),
				Comment: aws.ToString(col.Comment),
			})
		}
	}
	return table, nil
}

// UpdateColumnComment rewrites the table with a single changed comment
func (c *GlueCatalog) UpdateColumnComment(ctx context.Context, database, tableName, column, comment string) error {
	return c.UpdateColumnComments(ctx, database, tableName, []schema.ColumnComment{{Column: column, Comment: comment}})
}

// UpdateColumnComments re-reads the table and sends one UpdateTable call
// carrying every changed comment. The update is pinned to the version that
// was read, so a concurrent change makes it fail rather than be overwritten.
func (c *GlueCatalog) UpdateColumnComments(ctx context.Context, database, tableName string, comments []schema.ColumnComment) error {
	if len(comments) == 0 {
		return nil
	}

	raw, err := c.getRawTable(ctx, database, tableName)
	if err != nil {
		return err
	}
	if raw.StorageDescriptor == nil {
		return &NotFoundError{Database: database, Table: tableName, Column: comments[0].Column}
	}

	input := tableInputFromTable(raw)
	index := make(map[string]int, len(input.StorageDescriptor.Columns))
	for i, col := range input.StorageDescriptor.Columns {
		index[aws.ToString(col.Name)] = i
	}

	for _, cc := range comments {
		i, ok := index[cc.Column]
		if !ok {
			return &NotFoundError{Database: database, Table: tableName, Column: cc.Column}
		}
		if cc.Comment == "" {
			input.StorageDescriptor.Columns[i].Comment = nil
		} else {
			input.StorageDescriptor.Columns[i].Comment = aws.String(cc.Comment)
		}
	}

	_, err = c.client.API().UpdateTable(ctx, &glue.UpdateTableInput{
		CatalogId:    c.client.catalogIDPtr(),
		DatabaseName: aws.String(database),
		TableInput:   input,
		VersionId:    raw.VersionId,
	})
	if err != nil {
		return mapGlueError(fmt.Errorf("failed to update table: %w", err), database, tableName)
	}
	return nil
}

// Close releases the client
func (c *GlueCatalog) Close() error {
	return c.client.Close()
}

func (c *GlueCatalog) getRawTable(ctx context.Context, database, tableName string) (*gluetypes.Table, error) {
	out, err := c.client.API().GetTable(ctx, &glue.GetTableInput{
		CatalogId:    c.client.catalogIDPtr(),
		DatabaseName: aws.String(database),
		Name:         aws.String(tableName),
	})
	if err != nil {
		return nil, mapGlueError(fmt.Errorf("failed to get table: %w", err), database, tableName)
	}
	if out.Table == nil {
		return nil, &NotFoundError{Database: database, Table: tableName}
	}
	return out.Table, nil
}

// tableInputFromTable copies every writable field so that UpdateTable, which
// replaces the whole definition, only changes what the caller edits
func tableInputFromTable(t *gluetypes.Table) *gluetypes.TableInput {
	input := &gluetypes.TableInput{
		Name:             t.Name,
		Description:      t.Description,
		Owner:            t.Owner,
		LastAccessTime:   t.LastAccessTime,
		LastAnalyzedTime: t.LastAnalyzedTime,
		Retention:        t.Retention,
		PartitionKeys:    t.PartitionKeys,
		TableType:        t.TableType,
		Parameters:       t.Parameters,
		TargetTable:      t.TargetTable,
		ViewOriginalText: t.ViewOriginalText,
		ViewExpandedText: t.ViewExpandedText,
	}

	if t.StorageDescriptor != nil {
		sd := *t.StorageDescriptor
		sd.Columns = make([]gluetypes.Column, len(t.StorageDescriptor.Columns))
		copy(sd.Columns, t.StorageDescriptor.Columns)
		input.StorageDescriptor = &sd
	}
	return input
}

// glueAuthCodes are the error codes AWS returns for rejected credentials or
// missing permissions
var glueAuthCodes = map[string]bool{
	"AccessDeniedException":       true,
	"UnrecognizedClientException": true,
	"InvalidSignatureException":   true,
	"ExpiredTokenException":       true,
	"InvalidClientTokenId":        true,
	"MissingAuthenticationToken":  true,
}

// mapGlueError converts Glue service errors into the catalog error taxonomy
func mapGlueError(err error, database, tableName string) error {
	var notFound *gluetypes.EntityNotFoundException
	if errors.As(err, &notFound) {
		return &NotFoundError{Database: database, Table: tableName, Err: err}
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && glueAuthCodes[apiErr.ErrorCode()] {
		return &AuthError{Backend: "glue", Err: err}
	}
	return err
}
