package db

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/glue"
)

// GlueAPI is the subset of the Glue client used by GlueCatalog
type GlueAPI interface {
	GetTable(ctx context.Context, params *glue.GetTableInput, optFns ...func(*glue.Options)) (*glue.GetTableOutput, error)
	UpdateTable(ctx context.Context, params *glue.UpdateTableInput, optFns ...func(*glue.Options)) (*glue.UpdateTableOutput, error)
}

// GlueClient manages the connection to the AWS Glue Data Catalog
type GlueClient struct {
	api       GlueAPI
	catalogID string
}

// NewGlueClient loads AWS configuration and creates a Glue client. Static
// keys take precedence over the named profile.
func NewGlueClient(ctx context.Context, opts AWSOptions) (*GlueClient, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.Profile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(opts.Profile))
	}
	if opts.AccessKeyID != "" || opts.SecretAccessKey != "" {
		if opts.AccessKeyID == "" || opts.SecretAccessKey == "" {
			return nil, fmt.Errorf("both an access key ID and a secret access key are required")
		}
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, opts.SessionToken)))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, &AuthError{Backend: "glue", Err: fmt.Errorf("failed to load AWS configuration: %w", err)}
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("no AWS region configured")
	}

	return NewGlueClientFromAPI(glue.NewFromConfig(cfg), opts.CatalogID), nil
}

// NewGlueClientFromAPI wraps an existing Glue API implementation
func NewGlueClientFromAPI(api GlueAPI, catalogID string) *GlueClient {
	return &GlueClient{api: api, catalogID: catalogID}
}

// API returns the underlying Glue API
func (c *GlueClient) API() GlueAPI {
	return c.api
}

// catalogIDPtr returns nil for the caller's default catalog
func (c *GlueClient) catalogIDPtr() *string {
	if c.catalogID == "" {
		return nil
	}
	return aws.String(c.catalogID)
}

// Close is a no-op; the SDK client holds no connection state
func (c *GlueClient) Close() error {
	return nil
}
