package state

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/leapstack-labs/metron/pkg/metric"
)

// sqlStore is the shared database/sql implementation behind the SQLite
// and Postgres stores. The bind hook adapts placeholder style.
type sqlStore struct {
	db   *sql.DB
	bind func(string) string
}

// Post stores the metric's flattened path/value map in one transaction
// and returns the generated snapshot id.
func (s *sqlStore) Post(ctx context.Context, m metric.Node, opts PostOptions) (string, error) {
	if s.db == nil {
		return "", fmt.Errorf("database not opened")
	}
	timestamp := opts.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var metadataSetID sql.NullString
	if opts.Metadata != nil && len(opts.Metadata.Values) > 0 {
		setID, err := s.postMetadata(ctx, tx, *opts.Metadata)
		if err != nil {
			return "", err
		}
		metadataSetID = sql.NullString{String: setID, Valid: true}
	}

	id := uuid.New().String()
	_, err = tx.ExecContext(ctx, s.bind(
		`INSERT INTO snapshots (id, name, timestamp, project, ref_uuid, metadata_set_id)
		 VALUES (?, ?, ?, ?, ?, ?)`),
		id, m.Name(), timestamp, nullable(opts.Project), nullable(opts.UUID), metadataSetID,
	)
	if err != nil {
		return "", fmt.Errorf("insert snapshot: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, s.bind(
		`INSERT INTO snapshot_values (snapshot_id, path, kind, int_value, real_value)
		 VALUES (?, ?, ?, ?, ?)`))
	if err != nil {
		return "", fmt.Errorf("prepare value insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	flattened := m.Flatten()
	paths := make([]string, 0, len(flattened))
	for path := range flattened {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		value := flattened[path]
		var intValue sql.NullInt64
		var realValue sql.NullFloat64
		if value.Kind() == metric.KindInt {
			intValue = sql.NullInt64{Int64: value.Int64(), Valid: true}
		} else {
			realValue = sql.NullFloat64{Float64: value.Float64(), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, id, path, value.Kind().String(), intValue, realValue); err != nil {
			return "", fmt.Errorf("insert value for %q: %w", path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit snapshot: %w", err)
	}
	return id, nil
}

// postMetadata stores the metadata set if not already present and
// returns its content-hash id. Identical sets share one row.
func (s *sqlStore) postMetadata(ctx context.Context, tx *sql.Tx, md metric.Metadata) (string, error) {
	h := sha256.New()
	names := md.Names()
	for _, name := range names {
		fmt.Fprintf(h, "%s : %s\n", name, md.Values[name].String())
	}
	setID := hex.EncodeToString(h.Sum(nil))

	result, err := tx.ExecContext(ctx,
		s.bind(`INSERT INTO metadata_sets (id) VALUES (?) ON CONFLICT DO NOTHING`), setID)
	if err != nil {
		return "", fmt.Errorf("insert metadata set: %w", err)
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("insert metadata set: %w", err)
	}
	if inserted == 0 {
		// set with identical content already stored
		return setID, nil
	}

	for _, name := range names {
		value := md.Values[name]
		_, err := tx.ExecContext(ctx, s.bind(
			`INSERT INTO metadata_items (set_id, name, kind, value) VALUES (?, ?, ?, ?)`),
			setID, name, string(value.Kind), value.String())
		if err != nil {
			return "", fmt.Errorf("insert metadata item %q: %w", name, err)
		}
	}
	return setID, nil
}

// PurgeByDate removes snapshots older than the given date, then drops
// metadata sets no longer referenced by any snapshot.
func (s *sqlStore) PurgeByDate(ctx context.Context, before time.Time, name string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	var err error
	if name == "" {
		_, err = s.db.ExecContext(ctx, s.bind(`DELETE FROM snapshots WHERE timestamp < ?`), before)
	} else {
		_, err = s.db.ExecContext(ctx,
			s.bind(`DELETE FROM snapshots WHERE timestamp < ? AND name = ?`), before, name)
	}
	if err != nil {
		return fmt.Errorf("purge by date: %w", err)
	}
	return s.purgeOrphanedMetadata(ctx)
}

// PurgeByVolume keeps the count newest snapshots of the named metric and
// removes the rest.
func (s *sqlStore) PurgeByVolume(ctx context.Context, count int, name string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	_, err := s.db.ExecContext(ctx, s.bind(
		`DELETE FROM snapshots
		 WHERE name = ? AND id NOT IN (
		   SELECT id FROM snapshots WHERE name = ?
		   ORDER BY timestamp DESC LIMIT ?
		 )`), name, name, count)
	if err != nil {
		return fmt.Errorf("purge by volume: %w", err)
	}
	return s.purgeOrphanedMetadata(ctx)
}

func (s *sqlStore) purgeOrphanedMetadata(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM metadata_sets
		 WHERE id NOT IN (
		   SELECT metadata_set_id FROM snapshots WHERE metadata_set_id IS NOT NULL
		 )`)
	if err != nil {
		return fmt.Errorf("purge orphaned metadata: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *sqlStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func nullable(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
