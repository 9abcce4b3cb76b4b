package commentsync

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/tordrt/commentsync/internal/db"
)

// Catalog backends, named after their URL schemes
const (
	backendGlue     = "glue"
	backendPostgres = "postgres"
	backendMySQL    = "mysql"
	backendSQLite   = "sqlite"
	backendUnity    = "unity"
)

// CatalogOptions holds the credentials that cannot be expressed in a
// catalog URL
type CatalogOptions struct {
	AWS   db.AWSOptions
	Unity db.UnityOptions
}

// OpenCatalog connects to the catalog named by catalogURL.
//
// The meaning of Options.Database depends on the backend:
//   - glue: the Glue database
//   - postgres: the schema, defaulting to public
//   - mysql: the schema, defaulting to the database in the DSN
//   - sqlite: ignored
//   - unity: catalog.schema
//
// Query parameters of glue:// and unity:// URLs override the matching
// fields of opts.
func OpenCatalog(ctx context.Context, catalogURL string, opts CatalogOptions) (db.Catalog, error) {
	target, err := parseCatalogURL(catalogURL)
	if err != nil {
		return nil, err
	}

	switch target.backend {
	case backendGlue:
		awsOpts := opts.AWS
		if target.catalogID != "" {
			awsOpts.CatalogID = target.catalogID
		}
		if v := target.query.Get("region"); v != "" {
			awsOpts.Region = v
		}
		if v := target.query.Get("profile"); v != "" {
			awsOpts.Profile = v
		}
		client, err := db.NewGlueClient(ctx, awsOpts)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Glue: %w", err)
		}
		return db.NewGlueCatalog(client), nil

	case backendPostgres:
		client, err := db.NewPostgresClient(ctx, target.conn)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		return db.NewPostgresCatalog(client), nil

	case backendMySQL:
		client, err := db.NewMySQLClient(ctx, target.conn)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
		}
		return db.NewMySQLCatalog(client), nil

	case backendSQLite:
		client, err := db.NewSQLiteClient(ctx, target.conn)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to SQLite: %w", err)
		}
		return db.NewSQLiteCatalog(client), nil

	case backendUnity:
		unityOpts := opts.Unity
		if v := target.query.Get("warehouse_id"); v != "" {
			unityOpts.WarehouseID = v
		}
		client, err := db.NewUnityClient(target.conn, unityOpts)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Unity Catalog: %w", err)
		}
		return db.NewUnityCatalog(client), nil
	}

	return nil, fmt.Errorf("unsupported catalog type: %s", target.backend)
}

// catalogTarget is a parsed catalog URL
type catalogTarget struct {
	backend   string
	conn      string // DSN, file path, or workspace URL
	catalogID string
	query     url.Values
}

// parseCatalogURL detects the backend and returns its connection string
func parseCatalogURL(raw string) (*catalogTarget, error) {
	if raw == "" {
		return nil, fmt.Errorf("catalog URL is required")
	}

	switch {
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		return &catalogTarget{backend: backendPostgres, conn: raw}, nil

	case strings.HasPrefix(raw, "mysql://"):
		// Strip mysql:// prefix for the Go MySQL driver
		return &catalogTarget{backend: backendMySQL, conn: strings.TrimPrefix(raw, "mysql://")}, nil

	case strings.HasPrefix(raw, "sqlite://"):
		path := strings.TrimPrefix(raw, "sqlite://")
		if path == "" {
			return nil, fmt.Errorf("sqlite URL must name a database file")
		}
		return &catalogTarget{backend: backendSQLite, conn: path}, nil

	case strings.HasPrefix(raw, "glue://"):
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid glue URL: %w", err)
		}
		return &catalogTarget{backend: backendGlue, catalogID: u.Host, query: u.Query()}, nil

	case strings.HasPrefix(raw, "unity://"):
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid unity URL: %w", err)
		}
		if u.Host == "" {
			return nil, fmt.Errorf("unity URL must name the workspace host")
		}
		return &catalogTarget{backend: backendUnity, conn: "https://" + u.Host, query: u.Query()}, nil
	}

	return nil, fmt.Errorf("invalid catalog URL scheme (must start with glue://, postgres://, mysql://, sqlite://, or unity://)")
}
