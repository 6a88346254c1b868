package commands

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/metron/pkg/metric"
	"github.com/leapstack-labs/metron/pkg/rules"
)

// CheckOptions holds options for the check command.
type CheckOptions struct {
	Rules  string // Rule document path (overrides config)
	Format string // Output format: text, json
	Watch  bool   // Re-run when inputs change
}

// NewCheckCommand creates the check command.
func NewCheckCommand() *cobra.Command {
	opts := &CheckOptions{}
	cmd := &cobra.Command{
		Use:   "check <snapshot.json> [more.json...]",
		Short: "Validate metric snapshots against threshold rules",
		Long: `Load flattened metric snapshots (JSON objects mapping path strings to
numbers), rebuild the metric trees, and run every rule in the configured
rule document against them.

Alert failures are reported but do not affect the exit status;
validation failures make the command exit nonzero.`,
		Example: `  # Check one snapshot against rules.yaml
  metron check build-metrics.json

  # Check several snapshots with an explicit rule document
  metron check --rules ci-rules.yaml perf.json coverage.json

  # Re-check whenever inputs change
  metron check --watch perf.json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.Rules, "rules", "", "rule document path")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "output format: text, json")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "re-run checks when files change")
	return cmd
}

func runCheck(cmd *cobra.Command, opts *CheckOptions, paths []string) error {
	cfg := ConfigFrom(cmd.Context())
	rulesPath := opts.Rules
	if rulesPath == "" {
		rulesPath = cfg.RulesFile
	}
	format := opts.Format
	if format == "" {
		format = cfg.OutputFormat
	}

	if !opts.Watch {
		return checkOnce(cmd, rulesPath, paths, format)
	}
	return watchAndCheck(cmd, rulesPath, paths, format)
}

// checkOnce loads the rule document and all snapshots, evaluates every
// rule, and renders the results. It returns an error when any rule
// failed at the validation level.
func checkOnce(cmd *cobra.Command, rulesPath string, paths []string, format string) error {
	engine, err := rules.FromFile(rulesPath)
	if err != nil {
		return err
	}

	// snapshot files load concurrently; evaluation stays sequential
	composites := make([]*metric.Composite, len(paths))
	var group errgroup.Group
	for i, path := range paths {
		group.Go(func() error {
			composite, err := loadComposite(path)
			if err != nil {
				return err
			}
			composites[i] = composite
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	logger := LoggerFrom(cmd.Context())
	failures := 0
	var results []checkResult
	for i, composite := range composites {
		statuses, err := engine.Process(composite)
		if err != nil {
			return err
		}
		logger.Debug("processed snapshot", "file", paths[i], "metric", composite.Name(), "events", len(statuses))
		for _, status := range statuses {
			if status.Level == rules.LevelFailure {
				failures++
			}
		}
		results = append(results, checkResult{File: paths[i], Statuses: statuses})
	}

	if err := renderCheckResults(cmd.OutOrStdout(), results, format); err != nil {
		return err
	}
	if failures > 0 {
		return fmt.Errorf("validation failed with %d failure(s)", failures)
	}
	return nil
}

// watchAndCheck re-runs checkOnce whenever the rule document or any
// snapshot file changes. Check failures are reported but do not stop
// the watch loop.
func watchAndCheck(cmd *cobra.Command, rulesPath string, paths []string, format string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// watch parent directories; editors often replace files wholesale
	dirs := map[string]struct{}{}
	for _, path := range append([]string{rulesPath}, paths...) {
		dirs[filepath.Dir(path)] = struct{}{}
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	logger := LoggerFrom(cmd.Context())
	runAll := func() {
		if err := checkOnce(cmd, rulesPath, paths, format); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "check: %v\n", err)
		}
	}
	runAll()

	watched := map[string]struct{}{rulesPath: {}}
	for _, path := range paths {
		watched[path] = struct{}{}
	}

	ctx := cmd.Context()
	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if _, relevant := watched[filepath.Clean(event.Name)]; !relevant {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			logger.Debug("input changed", "file", event.Name)
			pending = time.After(200 * time.Millisecond)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", "error", err)
		case <-pending:
			pending = nil
			runAll()
		}
	}
}

// checkResult pairs one snapshot file with its status events.
type checkResult struct {
	File     string         `json:"file"`
	Statuses []rules.Status `json:"-"`
}

// sortedOffending returns a status's offending paths in stable order.
func sortedOffending(status rules.Status) []string {
	paths := append([]string(nil), status.OffendingElements()...)
	sort.Strings(paths)
	return paths
}
