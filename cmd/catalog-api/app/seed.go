package app

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/matrixhub/catalog-server/internal/app/storage"
	"github.com/matrixhub/catalog-server/internal/sources"
)

const (
	flagFile   = "file"
	flagForce  = "force"
	flagDryRun = "dry-run"
)

func newSeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Import a catalog file into the database",
		Long: `Import catalog entities from a YAML or JSON file into the database.

New entities are created. An existing entity is replaced only when the file
carries a newer version, unless --force is given. The import stops at the
first storage error; entities written before it are kept.

When --file is omitted the storage.file.path of the configuration is used.`,
		Example: `  # Preview an import
  catalog-api seed --config config.yaml --file catalog.yaml --dry-run

  # Replace every entity with the content of the file
  catalog-api seed --config config.yaml --file catalog.yaml --force`,
		Args: cobra.NoArgs,
		RunE: runSeed,
	}

	cmd.Flags().String(flagFile, "", "Catalog document to import")
	cmd.Flags().Bool(flagForce, false, "Replace existing entities regardless of version")
	cmd.Flags().Bool(flagDryRun, false, "Report what would change without writing")
	cmd.Flags().String(flagFormat, "", "Output format of the summary (json)")
	addConfigFlags(cmd, false)
	return cmd
}

func runSeed(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, _, err := loadDatabaseConfig(cmd)
	if err != nil {
		return err
	}

	path, err := cmd.Flags().GetString(flagFile)
	if err != nil {
		return fmt.Errorf("failed to get %s flag: %w", flagFile, err)
	}
	if path == "" && cfg.Storage.File != nil {
		path = cfg.Storage.File.Path
	}
	if path == "" {
		return fmt.Errorf("--%s is required when the configuration has no storage.file.path", flagFile)
	}

	var opts sources.ImportOptions
	if opts.Force, err = cmd.Flags().GetBool(flagForce); err != nil {
		return fmt.Errorf("failed to get %s flag: %w", flagForce, err)
	}
	if opts.DryRun, err = cmd.Flags().GetBool(flagDryRun); err != nil {
		return fmt.Errorf("failed to get %s flag: %w", flagDryRun, err)
	}

	loader, err := sources.NewFileLoader(path)
	if err != nil {
		return err
	}
	entities, err := loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	factory, err := storage.NewDatabaseFactory(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer factory.Cleanup()

	writer, err := factory.CreateEntityWriter(ctx)
	if err != nil {
		return fmt.Errorf("failed to create entity writer: %w", err)
	}

	result, err := sources.NewImporter(writer).Import(ctx, entities, opts)
	// a partial import is still reported
	slog.InfoContext(ctx, "Catalog import finished",
		"source", loader.Source(),
		"created", result.Created,
		"updated", result.Updated,
		"skipped", result.Skipped,
		"dry_run", opts.DryRun)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	format, err := cmd.Flags().GetString(flagFormat)
	if err != nil {
		return fmt.Errorf("failed to get %s flag: %w", flagFormat, err)
	}
	if format == formatJSON {
		output, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to format import result: %w", err)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(output))
		return err
	}
	return nil
}
