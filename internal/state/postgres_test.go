package state

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/leapstack-labs/metron/pkg/metric"
)

func TestRebindPositional(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{
			name:  "no placeholders",
			query: "SELECT 1",
			want:  "SELECT 1",
		},
		{
			name:  "single placeholder",
			query: "DELETE FROM snapshots WHERE timestamp < ?",
			want:  "DELETE FROM snapshots WHERE timestamp < $1",
		},
		{
			name:  "multiple placeholders",
			query: "INSERT INTO t (a, b, c) VALUES (?, ?, ?)",
			want:  "INSERT INTO t (a, b, c) VALUES ($1, $2, $3)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rebindPositional(tt.query); got != tt.want {
				t.Errorf("rebindPositional(%q) = %q, want %q", tt.query, got, tt.want)
			}
		})
	}
}

func TestPostgresStore_PostUsesPositionalPlaceholders(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("failed to create mock database: %v", err)
	}
	store := NewPostgresStore()
	store.openWithDB(db)
	t.Cleanup(func() { _ = store.Close() })

	root, err := metric.NewComposite("ScanStatistics")
	if err != nil {
		t.Fatalf("failed to build composite: %v", err)
	}
	if _, err := root.AddValue("total", metric.Int(128)); err != nil {
		t.Fatalf("failed to add value: %v", err)
	}

	mock.ExpectBegin()
	mock.ExpectExec(`(?s)INSERT INTO snapshots .+ VALUES \(\$1, \$2, \$3, \$4, \$5, \$6\)`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectPrepare(`(?s)INSERT INTO snapshot_values .+ VALUES \(\$1, \$2, \$3, \$4, \$5\)`).
		ExpectExec().
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if _, err := store.Post(context.Background(), root, PostOptions{}); err != nil {
		t.Fatalf("failed to post: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresStore_QueryRebindsFilters(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("failed to create mock database: %v", err)
	}
	store := NewPostgresStore()
	store.openWithDB(db)
	t.Cleanup(func() { _ = store.Close() })

	mock.ExpectQuery(`SELECT id, timestamp, project, ref_uuid, metadata_set_id FROM snapshots WHERE name = \$1 AND timestamp >= \$2 AND EXISTS (?s).+ LIMIT \$5`).
		WithArgs("ScanStatistics", sqlmock.AnyArg(), "hostname", "build-04", 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "timestamp", "project", "ref_uuid", "metadata_set_id"}))

	snapshots, err := store.Query("ScanStatistics").
		After(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)).
		MatchMetadata("hostname", "build-04").
		Limit(10).
		Execute(context.Background())
	if err != nil {
		t.Fatalf("failed to query: %v", err)
	}
	if len(snapshots) != 0 {
		t.Fatalf("expected no snapshots, got %d", len(snapshots))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresStore_PurgeByVolume(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("failed to create mock database: %v", err)
	}
	store := NewPostgresStore()
	store.openWithDB(db)
	t.Cleanup(func() { _ = store.Close() })

	mock.ExpectExec(`DELETE FROM snapshots\s+WHERE name = \$1 AND id NOT IN \(`).
		WithArgs("ScanStatistics", "ScanStatistics", 5).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`DELETE FROM metadata_sets`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.PurgeByVolume(context.Background(), 5, "ScanStatistics"); err != nil {
		t.Fatalf("failed to purge: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
