package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// PurgeOptions holds options for the purge command.
type PurgeOptions struct {
	Before string
	Keep   int
	Name   string
}

// NewPurgeCommand creates the purge command.
func NewPurgeCommand() *cobra.Command {
	opts := &PurgeOptions{}
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Remove old snapshots from the snapshot database",
		Long: `Remove snapshots from the snapshot store, either everything older
than a cutoff date or everything beyond the N newest snapshots of one
metric. Metadata sets no snapshot refers to anymore are removed as
well.`,
		Example: `  metron purge --before 2026-01-01T00:00:00Z
  metron purge --keep 50 --name ScanStatistics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPurge(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Before, "before", "", "remove snapshots older than this time (RFC 3339)")
	cmd.Flags().IntVar(&opts.Keep, "keep", 0, "keep at most N newest snapshots of --name")
	cmd.Flags().StringVar(&opts.Name, "name", "", "restrict the purge to one metric")
	return cmd
}

func runPurge(cmd *cobra.Command, opts *PurgeOptions) error {
	if opts.Before == "" && opts.Keep == 0 {
		return errors.New("either --before or --keep is required")
	}
	if opts.Before != "" && opts.Keep > 0 {
		return errors.New("--before and --keep are mutually exclusive")
	}
	if opts.Keep > 0 && opts.Name == "" {
		return errors.New("--keep requires --name")
	}

	cfg := ConfigFrom(cmd.Context())
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if opts.Before != "" {
		before, err := time.Parse(time.RFC3339, opts.Before)
		if err != nil {
			return fmt.Errorf("invalid --before: %w", err)
		}
		if err := store.PurgeByDate(cmd.Context(), before, opts.Name); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "purged snapshots before %s\n", before.Format(time.RFC3339))
		return nil
	}

	if err := store.PurgeByVolume(cmd.Context(), opts.Keep, opts.Name); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "kept %d newest snapshots of %s\n", opts.Keep, opts.Name)
	return nil
}
