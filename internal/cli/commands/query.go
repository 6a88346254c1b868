package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/metron/internal/state"
	"github.com/leapstack-labs/metron/pkg/metric"
)

// QueryOptions holds options for the query command.
type QueryOptions struct {
	Last   int
	Since  string
	Until  string
	Meta   []string
	Format string
}

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	opts := &QueryOptions{}
	cmd := &cobra.Command{
		Use:   "query <metric-name>",
		Short: "List stored snapshots of a metric",
		Long: `Query the snapshot store for stored snapshots of the named metric,
oldest first, with optional time-window and metadata filters.

Metadata filters take the form name=value (string equality) or
name<op>value with one of < > <= >= <> for integer metadata values.`,
		Example: `  metron query ScanStatistics --last 10
  metron query ScanStatistics --since 2026-01-01T00:00:00Z --meta hostname=build-04
  metron query ScanStatistics --meta "num_cores>=8" --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, opts, args[0])
		},
	}

	cmd.Flags().IntVar(&opts.Last, "last", 0, "return at most the N most recent snapshots")
	cmd.Flags().StringVar(&opts.Since, "since", "", "only snapshots at or after this time (RFC 3339)")
	cmd.Flags().StringVar(&opts.Until, "until", "", "only snapshots before this time (RFC 3339)")
	cmd.Flags().StringArrayVar(&opts.Meta, "meta", nil, "metadata filter, repeatable")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "output format: text, json or csv")
	return cmd
}

func runQuery(cmd *cobra.Command, opts *QueryOptions, name string) error {
	cfg := ConfigFrom(cmd.Context())

	format := opts.Format
	if format == "" {
		format = cfg.OutputFormat
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	query := store.Query(name)
	if opts.Last > 0 {
		query = query.Limit(opts.Last)
	}
	if opts.Since != "" {
		since, err := time.Parse(time.RFC3339, opts.Since)
		if err != nil {
			return fmt.Errorf("invalid --since: %w", err)
		}
		query = query.After(since)
	}
	if opts.Until != "" {
		until, err := time.Parse(time.RFC3339, opts.Until)
		if err != nil {
			return fmt.Errorf("invalid --until: %w", err)
		}
		query = query.Before(until)
	}
	for _, f := range opts.Meta {
		if query, err = applyMetaFilter(query, f); err != nil {
			return err
		}
	}

	snapshots, err := query.Execute(cmd.Context())
	if err != nil {
		return err
	}

	LoggerFrom(cmd.Context()).Debug("query complete", "metric", name, "snapshots", len(snapshots))
	return renderSnapshots(cmd, format, snapshots)
}

// metaOps is ordered longest-first so "<=" wins over "<".
var metaOps = []struct {
	token string
	op    state.Comparison
}{
	{"<=", state.LessOrEqual},
	{">=", state.GreaterOrEqual},
	{"<>", state.NotEqual},
	{"<", state.Less},
	{">", state.Greater},
	{"=", state.Equal},
}

func applyMetaFilter(q *state.Query, filter string) (*state.Query, error) {
	for _, candidate := range metaOps {
		idx := strings.Index(filter, candidate.token)
		if idx <= 0 {
			continue
		}
		name := filter[:idx]
		value := filter[idx+len(candidate.token):]
		if candidate.op == state.Equal {
			return q.MatchMetadata(name, value), nil
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("metadata filter %q: operand must be an integer: %w", filter, err)
		}
		return q.FilterMetadata(name, n, candidate.op), nil
	}
	return nil, fmt.Errorf("metadata filter %q: expected name=value or name<op>value", filter)
}

func renderSnapshots(cmd *cobra.Command, format string, snapshots []state.Snapshot) error {
	switch format {
	case "json":
		return renderSnapshotsJSON(cmd, snapshots)
	case "csv":
		return renderSnapshotsCSV(cmd, snapshots)
	default:
		return renderSnapshotsText(cmd, snapshots)
	}
}

type snapshotJSON struct {
	Timestamp time.Time          `json:"timestamp"`
	Project   string             `json:"project,omitempty"`
	UUID      string             `json:"uuid,omitempty"`
	Metadata  map[string]string  `json:"metadata,omitempty"`
	Values    map[string]float64 `json:"values"`
}

func renderSnapshotsJSON(cmd *cobra.Command, snapshots []state.Snapshot) error {
	out := make([]snapshotJSON, 0, len(snapshots))
	for _, s := range snapshots {
		entry := snapshotJSON{
			Timestamp: s.Timestamp,
			Project:   s.Project,
			UUID:      s.UUID,
			Values:    map[string]float64{},
		}
		for path, v := range s.Metric.Flatten() {
			entry.Values[path] = v.Float64()
		}
		if len(s.Metadata.Values) > 0 {
			entry.Metadata = map[string]string{}
			for _, mn := range s.Metadata.Names() {
				entry.Metadata[mn] = s.Metadata.Values[mn].String()
			}
		}
		out = append(out, entry)
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func renderSnapshotsCSV(cmd *cobra.Command, snapshots []state.Snapshot) error {
	w := csv.NewWriter(cmd.OutOrStdout())
	if err := w.Write([]string{"timestamp", "project", "uuid", "path", "value"}); err != nil {
		return err
	}
	for _, s := range snapshots {
		ts := s.Timestamp.Format(time.RFC3339)
		for _, path := range sortedPaths(s.Metric.Flatten()) {
			v := s.Metric.Flatten()[path]
			if err := w.Write([]string{ts, s.Project, s.UUID, path, v.String()}); err != nil {
				return err
			}
		}
	}
	w.Flush()
	return w.Error()
}

func renderSnapshotsText(cmd *cobra.Command, snapshots []state.Snapshot) error {
	if len(snapshots) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no snapshots found")
		return nil
	}
	for i, s := range snapshots {
		header := s.Timestamp.Format(time.RFC3339)
		if s.Project != "" {
			header += "  project=" + s.Project
		}
		if s.UUID != "" {
			header += "  uuid=" + s.UUID
		}
		fmt.Fprintln(cmd.OutOrStdout(), fileStyle.Render(header))

		t := table.NewWriter()
		t.SetOutputMirror(cmd.OutOrStdout())
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"Path", "Value"})
		flat := s.Metric.Flatten()
		for _, path := range sortedPaths(flat) {
			t.AppendRow(table.Row{path, flat[path].String()})
		}
		t.Render()

		if i < len(snapshots)-1 {
			fmt.Fprintln(cmd.OutOrStdout())
		}
	}
	return nil
}

func sortedPaths(flat map[string]metric.Value) []string {
	paths := make([]string, 0, len(flat))
	for p := range flat {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
