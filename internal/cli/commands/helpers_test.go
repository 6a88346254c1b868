package commands

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/metron/pkg/metric"
)

func writeSnapshot(t *testing.T, dir, name string, values map[string]any) string {
	t.Helper()
	data, err := json.Marshal(values)
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestNumberValue(t *testing.T) {
	tests := []struct {
		name    string
		literal string
		want    metric.Value
	}{
		{name: "integer", literal: "42", want: metric.Int(42)},
		{name: "negative integer", literal: "-7", want: metric.Int(-7)},
		{name: "fraction", literal: "83.1", want: metric.Float(83.1)},
		{name: "exponent", literal: "1e3", want: metric.Float(1000)},
		{name: "integer too large", literal: "99999999999999999999", want: metric.Float(1e20)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := numberValue(json.Number(tt.literal))
			assert.Equal(t, tt.want.Kind(), got.Kind())
			assert.True(t, tt.want.Equal(got), "numberValue(%s) = %v", tt.literal, got)
		})
	}
}

func TestDirOf(t *testing.T) {
	assert.Equal(t, "", dirOf(":memory:"))
	assert.Equal(t, "", dirOf("metrics.db"))
	assert.Equal(t, "", dirOf("/metrics.db"))
	assert.Equal(t, ".metron", dirOf(".metron/metrics.db"))
	assert.Equal(t, "/var/lib/metron", dirOf("/var/lib/metron/metrics.db"))
}

func TestLoadSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := writeSnapshot(t, dir, "snap.json", map[string]any{
		"/CodeCoverage#overall":           83.1,
		"/CodeCoverage/by_file#metric_go": 91,
	})

	node, err := loadSnapshot(path)
	require.NoError(t, err)

	flat := node.Flatten()
	require.Len(t, flat, 2)
	assert.Equal(t, metric.KindFloat, flat["/CodeCoverage#overall"].Kind())
	assert.Equal(t, metric.KindInt, flat["/CodeCoverage/by_file#metric_go"].Kind())
}

func TestLoadSnapshot_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := loadSnapshot(filepath.Join(dir, "missing.json"))
	require.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("[1, 2]"), 0o644))
	_, err = loadSnapshot(bad)
	require.Error(t, err)

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte("{}"), 0o644))
	_, err = loadSnapshot(empty)
	require.ErrorIs(t, err, metric.ErrEmptyFlattened)
}

func TestLoadComposite_RejectsBareLeaf(t *testing.T) {
	dir := t.TempDir()
	path := writeSnapshot(t, dir, "leaf.json", map[string]any{"duration": 1.5})

	_, err := loadComposite(path)
	require.ErrorContains(t, err, "bare leaf")
}
