// Package config loads run settings from a config file, the environment,
// and command-line flags through viper.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/tordrt/commentsync/internal/color"
	"github.com/tordrt/commentsync/internal/formatter"
	"github.com/tordrt/commentsync/internal/logging"
	"github.com/tordrt/commentsync/internal/overrides"
)

// EnvPrefix is prepended to every environment variable, e.g. COMMENTSYNC_TABLE
const EnvPrefix = "COMMENTSYNC"

// Configuration keys
const (
	KeyCatalog        = "catalog"
	KeyDatabase       = "database"
	KeyTable          = "table"
	KeyMode           = "mode"
	KeyOverrides      = "overrides"
	KeyOutputDir      = "output_dir"
	KeyDefaultFile    = "default_file"
	KeyUpdatedFile    = "updated_file"
	KeyFormat         = "format"
	KeyOnlyMissing    = "only_missing"
	KeyAllowUnmatched = "allow_unmatched"
	KeyAtomic         = "atomic"
	KeyDryRun         = "dry_run"
	KeyLogLevel       = "log_level"
	KeyColor          = "color"

	KeyAWSRegion          = "aws.region"
	KeyAWSProfile         = "aws.profile"
	KeyAWSAccessKeyID     = "aws.access_key_id"
	KeyAWSSecretAccessKey = "aws.secret_access_key"
	KeyAWSSessionToken    = "aws.session_token"
	KeyAWSCatalogID       = "aws.catalog_id"

	KeyUnityToken       = "unity.token"
	KeyUnityWarehouseID = "unity.warehouse_id"
)

// Config holds the settings of a single run
type Config struct {
	Catalog        string
	Database       string
	Table          string
	Mode           string
	Overrides      string
	OutputDir      string
	DefaultFile    string
	UpdatedFile    string
	Format         string
	OnlyMissing    bool
	AllowUnmatched bool
	Atomic         bool
	DryRun         bool
	LogLevel       string
	Color          string

	AWS   AWS
	Unity Unity
}

// AWS holds Glue credentials and addressing
type AWS struct {
	Region          string
	Profile         string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	CatalogID       string
}

// Unity holds Databricks credentials
type Unity struct {
	Token       string
	WarehouseID string
}

// New returns a viper instance with defaults registered and environment
// lookup enabled
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// SetDefaults registers the default value of every key
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyCatalog, "")
	v.SetDefault(KeyDatabase, "")
	v.SetDefault(KeyTable, "")
	v.SetDefault(KeyMode, "check")
	v.SetDefault(KeyOverrides, overrides.DefaultFile)
	v.SetDefault(KeyOutputDir, ".")
	v.SetDefault(KeyDefaultFile, formatter.DefaultFile)
	v.SetDefault(KeyUpdatedFile, formatter.UpdatedFile)
	v.SetDefault(KeyFormat, formatter.FormatText)
	v.SetDefault(KeyOnlyMissing, false)
	v.SetDefault(KeyAllowUnmatched, false)
	v.SetDefault(KeyAtomic, true)
	v.SetDefault(KeyDryRun, false)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyColor, color.ModeAuto)

	for _, key := range []string{
		KeyAWSRegion, KeyAWSProfile, KeyAWSAccessKeyID, KeyAWSSecretAccessKey,
		KeyAWSSessionToken, KeyAWSCatalogID, KeyUnityToken, KeyUnityWarehouseID,
	} {
		v.SetDefault(key, "")
	}
}

// ReadFile merges a config file into v. The format follows the extension.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// Load reads every key from v and validates the result
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Catalog:        v.GetString(KeyCatalog),
		Database:       v.GetString(KeyDatabase),
		Table:          v.GetString(KeyTable),
		Mode:           strings.ToLower(v.GetString(KeyMode)),
		Overrides:      v.GetString(KeyOverrides),
		OutputDir:      v.GetString(KeyOutputDir),
		DefaultFile:    v.GetString(KeyDefaultFile),
		UpdatedFile:    v.GetString(KeyUpdatedFile),
		Format:         v.GetString(KeyFormat),
		OnlyMissing:    v.GetBool(KeyOnlyMissing),
		AllowUnmatched: v.GetBool(KeyAllowUnmatched),
		Atomic:         v.GetBool(KeyAtomic),
		DryRun:         v.GetBool(KeyDryRun),
		LogLevel:       v.GetString(KeyLogLevel),
		Color:          v.GetString(KeyColor),
		AWS: AWS{
			Region:          v.GetString(KeyAWSRegion),
			Profile:         v.GetString(KeyAWSProfile),
			AccessKeyID:     v.GetString(KeyAWSAccessKeyID),
			SecretAccessKey: v.GetString(KeyAWSSecretAccessKey),
			SessionToken:    v.GetString(KeyAWSSessionToken),
			CatalogID:       v.GetString(KeyAWSCatalogID),
		},
		Unity: Unity{
			Token:       v.GetString(KeyUnityToken),
			WarehouseID: v.GetString(KeyUnityWarehouseID),
		},
	}

	if cfg.Unity.Token == "" {
		cfg.Unity.Token = os.Getenv("DATABRICKS_TOKEN")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required keys and enumerated values
func (c *Config) Validate() error {
	if c.Catalog == "" {
		return fmt.Errorf("%s is required (e.g. glue://, postgres://, mysql://, sqlite://, unity://)", KeyCatalog)
	}
	if c.Table == "" {
		return fmt.Errorf("%s is required", KeyTable)
	}
	if c.Database == "" && (strings.HasPrefix(c.Catalog, "glue:") || strings.HasPrefix(c.Catalog, "unity:")) {
		return fmt.Errorf("%s is required for %s", KeyDatabase, c.Catalog)
	}

	switch c.Mode {
	case "check", "update":
	default:
		return fmt.Errorf("invalid %s: %s (must be 'check' or 'update')", KeyMode, c.Mode)
	}

	switch c.Format {
	case formatter.FormatText, formatter.FormatMarkdown, formatter.FormatTable:
	default:
		return fmt.Errorf("invalid %s: %s (must be 'text', 'markdown', or 'table')", KeyFormat, c.Format)
	}

	switch c.Color {
	case color.ModeAlways, color.ModeAuto, color.ModeNever:
	default:
		return fmt.Errorf("invalid %s: %s (must be 'always', 'auto', or 'never')", KeyColor, c.Color)
	}

	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}

	if c.Mode == "update" && c.Overrides == "" {
		return fmt.Errorf("%s is required in update mode", KeyOverrides)
	}
	return nil
}
