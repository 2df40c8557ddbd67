// Package app provides the command tree of the catalog-api binary.
package app

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/matrixhub/catalog-server/internal/config"
	"github.com/matrixhub/catalog-server/internal/versions"
)

const (
	flagConfig  = "config"
	flagEnvFile = "env-file"
	flagFormat  = "format"

	defaultEnvFile = ".env"
	formatJSON     = "json"
)

// NewRootCmd creates the root command with every subcommand attached
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "catalog-api",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		Short:             "MatrixHub catalog API server",
		Long: `catalog-api serves the MatrixHub catalog of agents, tools and MCP servers
over REST, together with the demo login, registration and guest session endpoints.`,
		Run: func(cmd *cobra.Command, _ []string) {
			if err := cmd.Help(); err != nil {
				slog.Error("Error displaying help", "error", err)
			}
		},
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newSeedCmd())
	rootCmd.AddCommand(newUsersCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := versions.Get()
			format, err := cmd.Flags().GetString(flagFormat)
			if err != nil {
				return fmt.Errorf("failed to get format flag: %w", err)
			}

			if format == formatJSON {
				output, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to format version info: %w", err)
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(output))
				return err
			}

			slog.Info("catalog-api version",
				"version", info.Version,
				"commit", info.Commit,
				"built", info.BuildDate,
				"go", info.GoVersion,
				"platform", info.Platform)
			return nil
		},
	}
	cmd.Flags().String(flagFormat, "", "Output format (json)")
	return cmd
}

// addConfigFlags registers --config and --env-file on flags
func addConfigFlags(cmd *cobra.Command, persistent bool) {
	flags := cmd.Flags()
	if persistent {
		flags = cmd.PersistentFlags()
	}
	flags.String(flagConfig, "", "Path to configuration file (YAML format, required)")
	flags.String(flagEnvFile, defaultEnvFile, "Path to a KEY=VALUE file loaded into the environment before the configuration")
}

// commandSettings resolves flags bound to a viper instance so that every flag
// can also be supplied as CATALOG_<FLAG> in the environment
func commandSettings(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(config.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}
	return v, nil
}

// loadConfig loads the env file and then the configuration named by --config
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v, err := commandSettings(cmd)
	if err != nil {
		return nil, err
	}

	if err := config.LoadEnvFile(v.GetString(flagEnvFile)); err != nil {
		return nil, err
	}

	configPath := v.GetString(flagConfig)
	if configPath == "" {
		return nil, fmt.Errorf("--%s is required", flagConfig)
	}

	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	slog.Info("Loaded configuration",
		"path", configPath,
		"storage", cfg.GetStorageType(),
		"environment", cfg.GetEnvironment())
	return cfg, nil
}

// loadDatabaseConfig loads the configuration and requires a database section
func loadDatabaseConfig(cmd *cobra.Command) (*config.Config, string, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, "", err
	}
	if cfg.Database == nil {
		return nil, "", fmt.Errorf("database configuration is required")
	}
	connString, err := cfg.Database.GetConnectionString()
	if err != nil {
		return nil, "", fmt.Errorf("failed to build connection string: %w", err)
	}
	return cfg, connString, nil
}
