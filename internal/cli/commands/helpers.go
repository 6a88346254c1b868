package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/leapstack-labs/metron/internal/cli/config"
	"github.com/leapstack-labs/metron/internal/state"
	"github.com/leapstack-labs/metron/pkg/metric"
)

// openStore opens the configured snapshot store and runs migrations.
// A non-empty Database DSN selects Postgres, otherwise the SQLite state
// path is used.
func openStore(cfg *config.Config) (state.Store, error) {
	if cfg.Database != "" {
		store := state.NewPostgresStore()
		if err := store.Open(cfg.Database); err != nil {
			return nil, err
		}
		if err := store.Migrate(); err != nil {
			_ = store.Close()
			return nil, err
		}
		return store, nil
	}

	path := cfg.StatePath
	if dir := dirOf(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating state directory: %w", err)
		}
	}
	store := state.NewSQLiteStore()
	if err := store.Open(path); err != nil {
		return nil, err
	}
	if err := store.Migrate(); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

func dirOf(path string) string {
	if path == ":memory:" {
		return ""
	}
	idx := strings.LastIndexByte(path, '/')
	if idx <= 0 {
		return ""
	}
	return path[:idx]
}

// loadSnapshot reads a flattened metric snapshot from a JSON file: an
// object mapping path strings to numbers. Integer and floating-point
// literals keep their kind. The map is unflattened into a tree.
func loadSnapshot(path string) (metric.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot %s: %w", path, err)
	}

	decoder := json.NewDecoder(strings.NewReader(string(data)))
	decoder.UseNumber()
	var raw map[string]json.Number
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parsing snapshot %s: %w", path, err)
	}

	flattened := make(map[string]metric.Value, len(raw))
	for key, number := range raw {
		flattened[key] = numberValue(number)
	}
	node, err := metric.FromFlattened(flattened)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", path, err)
	}
	return node, nil
}

// loadComposite is loadSnapshot restricted to composite trees, which
// rule evaluation requires.
func loadComposite(path string) (*metric.Composite, error) {
	node, err := loadSnapshot(path)
	if err != nil {
		return nil, err
	}
	composite, ok := node.(*metric.Composite)
	if !ok {
		return nil, fmt.Errorf("snapshot %s: rules require a composite metric, got a bare leaf", path)
	}
	return composite, nil
}

// numberValue converts a JSON number, treating literals without a
// fraction or exponent as integers.
func numberValue(n json.Number) metric.Value {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := n.Int64(); err == nil {
			return metric.Int(i)
		}
	}
	f, _ := n.Float64()
	return metric.Float(f)
}
