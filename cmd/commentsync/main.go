package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/tordrt/commentsync"
	"github.com/tordrt/commentsync/internal/color"
	"github.com/tordrt/commentsync/internal/config"
	"github.com/tordrt/commentsync/internal/db"
	"github.com/tordrt/commentsync/internal/formatter"
	"github.com/tordrt/commentsync/internal/logging"
	"github.com/tordrt/commentsync/internal/overrides"
)

// flagKeys maps each flag to the configuration key it sets
var flagKeys = map[string]string{
	"catalog":            config.KeyCatalog,
	"database":           config.KeyDatabase,
	"table":              config.KeyTable,
	"mode":               config.KeyMode,
	"overrides":          config.KeyOverrides,
	"output-dir":         config.KeyOutputDir,
	"default-file":       config.KeyDefaultFile,
	"updated-file":       config.KeyUpdatedFile,
	"format":             config.KeyFormat,
	"only-missing":       config.KeyOnlyMissing,
	"allow-unmatched":    config.KeyAllowUnmatched,
	"atomic":             config.KeyAtomic,
	"dry-run":            config.KeyDryRun,
	"log-level":          config.KeyLogLevel,
	"color":              config.KeyColor,
	"aws-region":         config.KeyAWSRegion,
	"aws-profile":        config.KeyAWSProfile,
	"aws-catalog-id":     config.KeyAWSCatalogID,
	"unity-warehouse-id": config.KeyUnityWarehouseID,
}

func newRootCmd() *cobra.Command {
	v := config.New()
	var configFile string

	cmd := &cobra.Command{
		Use:   "commentsync",
		Short: "Find and fill missing column comments in a data catalog",
		Long: `commentsync fetches a table from AWS Glue, PostgreSQL, MySQL, SQLite, or Databricks Unity Catalog,
reports which columns lack a comment, and in update mode writes comments from a JSON override file back to the catalog.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, v, configFile)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configFile, "config", "", "Config file (yaml, json, or toml)")
	flags.String("catalog", "", "Catalog URL: glue://, postgres://, mysql://, sqlite://, or unity://")
	flags.StringP("database", "d", "", "Database (Glue), schema (PostgreSQL, MySQL), or catalog.schema (Unity)")
	flags.StringP("table", "t", "", "Table name")
	flags.StringP("mode", "m", "check", "Run mode: check or update")
	flags.String("overrides", overrides.DefaultFile, "JSON file mapping column names to new comments")
	flags.StringP("output-dir", "o", ".", "Directory for the metadata JSON files")
	flags.String("default-file", formatter.DefaultFile, "File name for the fetched classification")
	flags.String("updated-file", formatter.UpdatedFile, "File name for the classification after the update")
	flags.StringP("format", "f", formatter.FormatText, "Report format: text, markdown, or table")
	flags.Bool("only-missing", false, "Only fill columns that have no comment yet")
	flags.Bool("allow-unmatched", false, "Warn about and drop override keys that match no column instead of failing")
	flags.Bool("atomic", true, "Apply all changes in one all-or-nothing call when the catalog supports it")
	flags.Bool("dry-run", false, "Compute changes and write the JSON files without modifying the catalog")
	flags.String("log-level", "info", "Log level: debug, info, warn, or error")
	flags.String("color", color.ModeAuto, "Color output: always, auto, or never")
	flags.String("aws-region", "", "AWS region for Glue")
	flags.String("aws-profile", "", "AWS shared config profile for Glue")
	flags.String("aws-catalog-id", "", "Glue catalog ID (default: the caller's account)")
	flags.String("unity-warehouse-id", "", "Databricks SQL warehouse used to run ALTER TABLE")

	for name, key := range flagKeys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", name, err))
		}
	}

	return cmd
}

func run(cmd *cobra.Command, v *viper.Viper, configFile string) error {
	if err := config.ReadFile(v, configFile); err != nil {
		return err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}

	if err := color.SetMode(cfg.Color); err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, cmd.ErrOrStderr(), color.EnabledFor(cfg.Color, cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	mode, err := commentsync.ParseMode(cfg.Mode)
	if err != nil {
		return err
	}

	report, err := formatter.New(cfg.Format, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cat, err := commentsync.OpenCatalog(ctx, cfg.Catalog, commentsync.CatalogOptions{
		AWS: db.AWSOptions{
			Region:          cfg.AWS.Region,
			Profile:         cfg.AWS.Profile,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			SessionToken:    cfg.AWS.SessionToken,
			CatalogID:       cfg.AWS.CatalogID,
		},
		Unity: db.UnityOptions{
			Token:       cfg.Unity.Token,
			WarehouseID: cfg.Unity.WarehouseID,
		},
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := cat.Close(); err != nil {
			logger.Warn("failed to close catalog connection", zap.Error(err))
		}
	}()

	result, runErr := commentsync.Run(ctx, cat, &commentsync.Options{
		Database:       cfg.Database,
		Table:          cfg.Table,
		Mode:           mode,
		OverridesPath:  cfg.Overrides,
		OnlyMissing:    cfg.OnlyMissing,
		AllowUnmatched: cfg.AllowUnmatched,
		Atomic:         cfg.Atomic,
		DryRun:         cfg.DryRun,
		OutputDir:      cfg.OutputDir,
		DefaultFile:    cfg.DefaultFile,
		UpdatedFile:    cfg.UpdatedFile,
		Logger:         logger,
	})

	if result != nil {
		if err := report.Format(result.Report()); err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}
	}
	return runErr
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
