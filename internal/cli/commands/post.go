package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/metron/internal/state"
	"github.com/leapstack-labs/metron/internal/sysinfo"
)

// PostOptions holds options for the post command.
type PostOptions struct {
	Project   string
	UUID      string
	Timestamp string
	NoSysinfo bool
}

// NewPostCommand creates the post command.
func NewPostCommand() *cobra.Command {
	opts := &PostOptions{}
	cmd := &cobra.Command{
		Use:   "post <snapshot.json>",
		Short: "Store a metric snapshot in the snapshot database",
		Long: `Load a flattened metric snapshot from a JSON file and store it,
together with host metadata, in the configured snapshot store.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPost(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Project, "project", "", "project name stored with the snapshot")
	cmd.Flags().StringVar(&opts.UUID, "uuid", "", "external correlation id stored with the snapshot")
	cmd.Flags().StringVar(&opts.Timestamp, "timestamp", "", "snapshot timestamp (RFC 3339, default now)")
	cmd.Flags().BoolVar(&opts.NoSysinfo, "no-sysinfo", false, "do not attach host metadata")
	return cmd
}

func runPost(cmd *cobra.Command, opts *PostOptions, path string) error {
	cfg := ConfigFrom(cmd.Context())

	node, err := loadSnapshot(path)
	if err != nil {
		return err
	}

	var timestamp time.Time
	if opts.Timestamp != "" {
		if timestamp, err = time.Parse(time.RFC3339, opts.Timestamp); err != nil {
			return fmt.Errorf("invalid --timestamp: %w", err)
		}
	}

	postOpts := state.PostOptions{
		Timestamp: timestamp,
		Project:   opts.Project,
		UUID:      opts.UUID,
	}
	if postOpts.Project == "" {
		postOpts.Project = cfg.Project
	}
	if !opts.NoSysinfo {
		md := sysinfo.Collect()
		postOpts.Metadata = &md
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	id, err := store.Post(cmd.Context(), node, postOpts)
	if err != nil {
		return err
	}

	LoggerFrom(cmd.Context()).Debug("posted snapshot", "id", id, "metric", node.Name())
	fmt.Fprintf(cmd.OutOrStdout(), "posted %s (%s)\n", node.Name(), id)
	return nil
}
