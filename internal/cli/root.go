// Package cli provides the command-line interface for metron.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/metron/internal/cli/commands"
	"github.com/leapstack-labs/metron/internal/cli/config"
)

var cfgFile string

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "metron",
		Short: "metron - composite metric validation",
		Long: `metron models hierarchical numeric metrics and validates them against
configurable threshold rules.

Metric snapshots are flattened into path/value maps for storage, and
rule documents classify threshold failures as alerts or validation
failures.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.LoadConfig(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			level := slog.LevelInfo
			if cfg.Verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

			ctx := commands.WithConfig(cmd.Context(), cfg)
			ctx = commands.WithLogger(ctx, logger)
			cmd.SetContext(ctx)

			if cfg.Verbose {
				if configFile := config.GetConfigFileUsed(); configFile != "" {
					logger.Debug("using config file", "path", configFile)
				}
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default metron.yaml)")
	flags.String("state-path", "", "SQLite snapshot database path")
	flags.String("database", "", "Postgres DSN (overrides --state-path)")
	flags.String("rules-file", "", "YAML rule document path")
	flags.String("project", "", "project name stored with snapshots")
	flags.String("output", "", "output format: text, json")
	flags.Bool("verbose", false, "enable debug logging")

	rootCmd.AddCommand(
		commands.NewCheckCommand(),
		commands.NewRulesCommand(),
		commands.NewPostCommand(),
		commands.NewQueryCommand(),
		commands.NewPurgeCommand(),
		commands.NewVersionCommand(Version, BuildDate, GitCommit),
	)
	return rootCmd
}

// Execute runs the root command.
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
