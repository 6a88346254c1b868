package state

import (
	"context"
	"testing"
	"time"

	"github.com/leapstack-labs/metron/pkg/metric"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store := NewSQLiteStore()
	if err := store.Open(":memory:"); err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	if err := store.Migrate(); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testComposite(t *testing.T) *metric.Composite {
	t.Helper()
	root, err := metric.NewComposite("ScanStatistics")
	if err != nil {
		t.Fatalf("failed to build composite: %v", err)
	}
	if _, err := root.AddValue("total", metric.Int(128)); err != nil {
		t.Fatalf("failed to add value: %v", err)
	}
	sub, err := metric.NewComposite("timings")
	if err != nil {
		t.Fatalf("failed to build composite: %v", err)
	}
	if _, err := sub.AddValue("parse", metric.Float(1.25)); err != nil {
		t.Fatalf("failed to add value: %v", err)
	}
	if _, err := root.Add(sub); err != nil {
		t.Fatalf("failed to add child: %v", err)
	}
	return root
}

func TestSQLiteStore_OpenClose(t *testing.T) {
	store := NewSQLiteStore()

	if err := store.Open(":memory:"); err != nil {
		t.Fatalf("failed to open in-memory store: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

func TestSQLiteStore_Migrate(t *testing.T) {
	store := setupTestStore(t)

	// Verify tables exist by querying them
	tables := []string{"metadata_sets", "metadata_items", "snapshots", "snapshot_values"}
	for _, table := range tables {
		rows, err := store.db.Query("SELECT 1 FROM " + table + " LIMIT 1")
		if err != nil {
			t.Errorf("table %s does not exist: %v", table, err)
		} else {
			rows.Close()
		}
	}
}

func TestSQLiteStore_PostAndQuery(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	root := testComposite(t)

	md := metric.NewMetadata()
	md.SetString("hostname", "build-04")
	md.SetInt("num_cores", 8)

	id, err := store.Post(ctx, root, PostOptions{
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Metadata:  &md,
		Project:   "metron",
		UUID:      "run-77",
	})
	if err != nil {
		t.Fatalf("failed to post snapshot: %v", err)
	}
	if id == "" {
		t.Fatal("expected a non-empty snapshot id")
	}

	snapshots, err := store.Query("ScanStatistics").Execute(ctx)
	if err != nil {
		t.Fatalf("failed to query snapshots: %v", err)
	}
	if len(snapshots) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(snapshots))
	}

	got := snapshots[0]
	if !root.Equal(got.Metric) {
		t.Errorf("stored metric does not match original: %v", got.Metric.Flatten())
	}
	if got.Project != "metron" {
		t.Errorf("project = %q, want %q", got.Project, "metron")
	}
	if got.UUID != "run-77" {
		t.Errorf("uuid = %q, want %q", got.UUID, "run-77")
	}
	if !got.Timestamp.Equal(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("timestamp = %v", got.Timestamp)
	}
	if got.Metadata.Values["hostname"].Str != "build-04" {
		t.Errorf("hostname metadata = %+v", got.Metadata.Values["hostname"])
	}
	if got.Metadata.Values["num_cores"].Int != 8 {
		t.Errorf("num_cores metadata = %+v", got.Metadata.Values["num_cores"])
	}

	// Numeric kinds survive the round-trip.
	flat := got.Metric.Flatten()
	if flat["/ScanStatistics#total"].Kind() != metric.KindInt {
		t.Error("integer value lost its kind")
	}
	if flat["/ScanStatistics/timings#parse"].Kind() != metric.KindFloat {
		t.Error("float value lost its kind")
	}
}

func TestSQLiteStore_QueryOrderAndWindow(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	root := testComposite(t)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for day := 1; day <= 4; day++ {
		_, err := store.Post(ctx, root, PostOptions{Timestamp: base.AddDate(0, 0, day)})
		if err != nil {
			t.Fatalf("failed to post snapshot %d: %v", day, err)
		}
	}

	all, err := store.Query("ScanStatistics").Execute(ctx)
	if err != nil {
		t.Fatalf("failed to query: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 snapshots, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].Timestamp.Before(all[i-1].Timestamp) {
			t.Fatal("snapshots are not ordered oldest first")
		}
	}

	window, err := store.Query("ScanStatistics").
		After(base.AddDate(0, 0, 2)).
		Before(base.AddDate(0, 0, 3)).
		Execute(ctx)
	if err != nil {
		t.Fatalf("failed to query window: %v", err)
	}
	if len(window) != 2 {
		t.Fatalf("expected 2 snapshots in window, got %d", len(window))
	}

	newest, err := store.Query("ScanStatistics").Limit(2).Execute(ctx)
	if err != nil {
		t.Fatalf("failed to query with limit: %v", err)
	}
	if len(newest) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(newest))
	}
	if !newest[1].Timestamp.Equal(base.AddDate(0, 0, 4)) {
		t.Errorf("limit should keep the newest snapshots, got %v", newest[1].Timestamp)
	}

	other, err := store.Query("OtherMetric").Execute(ctx)
	if err != nil {
		t.Fatalf("failed to query other metric: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("expected no snapshots for other metric, got %d", len(other))
	}
}

func TestSQLiteStore_QueryMetadataFilters(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	root := testComposite(t)

	post := func(host string, cores int64) {
		t.Helper()
		md := metric.NewMetadata()
		md.SetString("hostname", host)
		md.SetInt("num_cores", cores)
		if _, err := store.Post(ctx, root, PostOptions{Metadata: &md}); err != nil {
			t.Fatalf("failed to post: %v", err)
		}
	}
	post("build-01", 4)
	post("build-02", 8)
	post("build-03", 16)

	byHost, err := store.Query("ScanStatistics").
		MatchMetadata("hostname", "build-02").
		Execute(ctx)
	if err != nil {
		t.Fatalf("failed to query by hostname: %v", err)
	}
	if len(byHost) != 1 || byHost[0].Metadata.Values["hostname"].Str != "build-02" {
		t.Fatalf("hostname filter returned %d snapshots", len(byHost))
	}

	byCores, err := store.Query("ScanStatistics").
		FilterMetadata("num_cores", 8, GreaterOrEqual).
		Execute(ctx)
	if err != nil {
		t.Fatalf("failed to query by cores: %v", err)
	}
	if len(byCores) != 2 {
		t.Fatalf("expected 2 snapshots with >= 8 cores, got %d", len(byCores))
	}

	combined, err := store.Query("ScanStatistics").
		MatchMetadata("hostname", "build-03").
		FilterMetadata("num_cores", 8, Greater).
		Execute(ctx)
	if err != nil {
		t.Fatalf("failed to query combined: %v", err)
	}
	if len(combined) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(combined))
	}
}

func TestSQLiteStore_MetadataDeduplication(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	root := testComposite(t)

	for i := 0; i < 3; i++ {
		md := metric.NewMetadata()
		md.SetString("hostname", "build-04")
		if _, err := store.Post(ctx, root, PostOptions{Metadata: &md}); err != nil {
			t.Fatalf("failed to post: %v", err)
		}
	}

	var sets int
	if err := store.db.QueryRow(`SELECT COUNT(*) FROM metadata_sets`).Scan(&sets); err != nil {
		t.Fatalf("failed to count metadata sets: %v", err)
	}
	if sets != 1 {
		t.Errorf("expected identical metadata to share one set, got %d", sets)
	}
}

func TestSQLiteStore_PurgeByDate(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	root := testComposite(t)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	md := metric.NewMetadata()
	md.SetString("hostname", "old-host")
	if _, err := store.Post(ctx, root, PostOptions{Timestamp: base, Metadata: &md}); err != nil {
		t.Fatalf("failed to post: %v", err)
	}
	if _, err := store.Post(ctx, root, PostOptions{Timestamp: base.AddDate(0, 1, 0)}); err != nil {
		t.Fatalf("failed to post: %v", err)
	}

	if err := store.PurgeByDate(ctx, base.AddDate(0, 0, 15), ""); err != nil {
		t.Fatalf("failed to purge: %v", err)
	}

	remaining, err := store.Query("ScanStatistics").Execute(ctx)
	if err != nil {
		t.Fatalf("failed to query: %v", err)
	}
	if len(remaining) != 1 {
		t.Fatalf("expected 1 remaining snapshot, got %d", len(remaining))
	}

	// The purged snapshot's metadata set is no longer referenced.
	var sets int
	if err := store.db.QueryRow(`SELECT COUNT(*) FROM metadata_sets`).Scan(&sets); err != nil {
		t.Fatalf("failed to count metadata sets: %v", err)
	}
	if sets != 0 {
		t.Errorf("expected orphaned metadata to be purged, got %d sets", sets)
	}

	// Values cascade with their snapshot.
	var values int
	if err := store.db.QueryRow(`SELECT COUNT(*) FROM snapshot_values`).Scan(&values); err != nil {
		t.Fatalf("failed to count values: %v", err)
	}
	if values != 2 {
		t.Errorf("expected 2 remaining values, got %d", values)
	}
}

func TestSQLiteStore_PurgeByDateScopedToName(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := store.Post(ctx, testComposite(t), PostOptions{Timestamp: base}); err != nil {
		t.Fatalf("failed to post: %v", err)
	}
	other, err := metric.NewComposite("Other")
	if err != nil {
		t.Fatalf("failed to build composite: %v", err)
	}
	if _, err := other.AddValue("n", metric.Int(1)); err != nil {
		t.Fatalf("failed to add value: %v", err)
	}
	if _, err := store.Post(ctx, other, PostOptions{Timestamp: base}); err != nil {
		t.Fatalf("failed to post: %v", err)
	}

	if err := store.PurgeByDate(ctx, base.AddDate(0, 0, 1), "ScanStatistics"); err != nil {
		t.Fatalf("failed to purge: %v", err)
	}

	scans, err := store.Query("ScanStatistics").Execute(ctx)
	if err != nil {
		t.Fatalf("failed to query: %v", err)
	}
	others, err := store.Query("Other").Execute(ctx)
	if err != nil {
		t.Fatalf("failed to query: %v", err)
	}
	if len(scans) != 0 || len(others) != 1 {
		t.Errorf("purge scope wrong: %d scans, %d others", len(scans), len(others))
	}
}

func TestSQLiteStore_PurgeByVolume(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	root := testComposite(t)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for day := 1; day <= 5; day++ {
		if _, err := store.Post(ctx, root, PostOptions{Timestamp: base.AddDate(0, 0, day)}); err != nil {
			t.Fatalf("failed to post snapshot %d: %v", day, err)
		}
	}

	if err := store.PurgeByVolume(ctx, 2, "ScanStatistics"); err != nil {
		t.Fatalf("failed to purge: %v", err)
	}

	remaining, err := store.Query("ScanStatistics").Execute(ctx)
	if err != nil {
		t.Fatalf("failed to query: %v", err)
	}
	if len(remaining) != 2 {
		t.Fatalf("expected 2 remaining snapshots, got %d", len(remaining))
	}
	if !remaining[0].Timestamp.Equal(base.AddDate(0, 0, 4)) {
		t.Errorf("expected the newest snapshots to survive, got %v", remaining[0].Timestamp)
	}
}

func TestSQLiteStore_PostBareLeaf(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	leaf, err := metric.NewMetric("duration", metric.Float(1.5))
	if err != nil {
		t.Fatalf("failed to build leaf: %v", err)
	}
	if _, err := store.Post(ctx, leaf, PostOptions{}); err != nil {
		t.Fatalf("failed to post leaf: %v", err)
	}

	snapshots, err := store.Query("duration").Execute(ctx)
	if err != nil {
		t.Fatalf("failed to query: %v", err)
	}
	if len(snapshots) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(snapshots))
	}
	if !leaf.Equal(snapshots[0].Metric) {
		t.Errorf("stored leaf does not match original")
	}
}

func TestSQLiteStore_NotOpened(t *testing.T) {
	store := NewSQLiteStore()
	ctx := context.Background()

	if _, err := store.Post(ctx, testComposite(t), PostOptions{}); err == nil {
		t.Error("expected error posting to an unopened store")
	}
	if _, err := store.Query("x").Execute(ctx); err == nil {
		t.Error("expected error querying an unopened store")
	}
	if err := store.PurgeByDate(ctx, time.Now(), ""); err == nil {
		t.Error("expected error purging an unopened store")
	}
}
