package state

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/leapstack-labs/metron/pkg/metric"
)

// metaFilter is one metadata predicate attached to a query.
type metaFilter struct {
	name  string
	value string
	op    Comparison
}

// Query accumulates filters for retrieving snapshots of one named
// metric. Filters compose with AND; Execute runs the query.
type Query struct {
	store   *sqlStore
	name    string
	oldest  time.Time
	newest  time.Time
	limit   int
	filters []metaFilter
}

// Query starts a query for snapshots of the named metric.
func (s *sqlStore) Query(name string) *Query {
	return &Query{store: s, name: name}
}

// After restricts results to snapshots at or after the given time.
func (q *Query) After(t time.Time) *Query {
	q.oldest = t
	return q
}

// Before restricts results to snapshots at or before the given time.
func (q *Query) Before(t time.Time) *Query {
	q.newest = t
	return q
}

// Limit keeps only the n newest matching snapshots.
func (q *Query) Limit(n int) *Query {
	q.limit = n
	return q
}

// MatchMetadata requires a metadata entry equal to the given value.
func (q *Query) MatchMetadata(name, value string) *Query {
	q.filters = append(q.filters, metaFilter{name: name, value: value, op: Equal})
	return q
}

// FilterMetadata requires an integer metadata entry satisfying the
// comparison against the given value.
func (q *Query) FilterMetadata(name string, value int64, op Comparison) *Query {
	q.filters = append(q.filters, metaFilter{name: name, value: strconv.FormatInt(value, 10), op: op})
	return q
}

// Execute runs the query and returns matching snapshots ordered oldest
// to newest. Each stored path/value map is unflattened back into a tree.
func (q *Query) Execute(ctx context.Context) ([]Snapshot, error) {
	if q.store.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	where := []string{"name = ?"}
	args := []any{q.name}
	if !q.oldest.IsZero() {
		where = append(where, "timestamp >= ?")
		args = append(args, q.oldest)
	}
	if !q.newest.IsZero() {
		where = append(where, "timestamp <= ?")
		args = append(args, q.newest)
	}
	for _, f := range q.filters {
		valueExpr := "mi.value"
		if f.op.ordering() {
			valueExpr = "CAST(mi.value AS INTEGER)"
		}
		where = append(where, fmt.Sprintf(
			`EXISTS (SELECT 1 FROM metadata_items mi
			 WHERE mi.set_id = snapshots.metadata_set_id
			   AND mi.name = ? AND %s %s ?)`, valueExpr, f.op))
		args = append(args, f.name, f.value)
	}

	query := `SELECT id, timestamp, project, ref_uuid, metadata_set_id FROM snapshots WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY timestamp DESC`
	if q.limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.limit)
	}

	rows, err := q.store.db.QueryContext(ctx, q.store.bind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	type row struct {
		id        string
		timestamp time.Time
		project   sql.NullString
		refUUID   sql.NullString
		metaSetID sql.NullString
	}
	var found []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.timestamp, &r.project, &r.refUUID, &r.metaSetID); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		found = append(found, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}

	// newest-first from SQL, returned oldest-first to the caller
	snapshots := make([]Snapshot, 0, len(found))
	for i := len(found) - 1; i >= 0; i-- {
		r := found[i]
		node, err := q.store.loadValues(ctx, r.id)
		if err != nil {
			return nil, err
		}
		md := metric.NewMetadata()
		if r.metaSetID.Valid {
			if md, err = q.store.loadMetadata(ctx, r.metaSetID.String); err != nil {
				return nil, err
			}
		}
		snapshots = append(snapshots, Snapshot{
			Metric:    node,
			Timestamp: r.timestamp,
			Metadata:  md,
			Project:   r.project.String,
			UUID:      r.refUUID.String,
		})
	}
	return snapshots, nil
}

// loadValues reads a snapshot's stored path/value map and rebuilds the
// metric tree, preserving each value's numeric kind.
func (s *sqlStore) loadValues(ctx context.Context, snapshotID string) (metric.Node, error) {
	rows, err := s.db.QueryContext(ctx, s.bind(
		`SELECT path, kind, int_value, real_value FROM snapshot_values WHERE snapshot_id = ?`),
		snapshotID)
	if err != nil {
		return nil, fmt.Errorf("load snapshot values: %w", err)
	}
	defer func() { _ = rows.Close() }()

	flattened := make(map[string]metric.Value)
	for rows.Next() {
		var path, kind string
		var intValue sql.NullInt64
		var realValue sql.NullFloat64
		if err := rows.Scan(&path, &kind, &intValue, &realValue); err != nil {
			return nil, fmt.Errorf("scan snapshot value: %w", err)
		}
		if kind == metric.KindInt.String() {
			flattened[path] = metric.Int(intValue.Int64)
		} else {
			flattened[path] = metric.Float(realValue.Float64)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load snapshot values: %w", err)
	}

	node, err := metric.FromFlattened(flattened)
	if err != nil {
		return nil, fmt.Errorf("unflatten snapshot %s: %w", snapshotID, err)
	}
	return node, nil
}

// loadMetadata reads one stored metadata set.
func (s *sqlStore) loadMetadata(ctx context.Context, setID string) (metric.Metadata, error) {
	rows, err := s.db.QueryContext(ctx, s.bind(
		`SELECT name, kind, value FROM metadata_items WHERE set_id = ?`), setID)
	if err != nil {
		return metric.Metadata{}, fmt.Errorf("load metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	md := metric.NewMetadata()
	for rows.Next() {
		var name, kind, value string
		if err := rows.Scan(&name, &kind, &value); err != nil {
			return metric.Metadata{}, fmt.Errorf("scan metadata item: %w", err)
		}
		parsed, err := metric.ParseMetadataValue(metric.MetadataKind(kind), value)
		if err != nil {
			return metric.Metadata{}, fmt.Errorf("metadata item %q: %w", name, err)
		}
		md.Values[name] = parsed
	}
	if err := rows.Err(); err != nil {
		return metric.Metadata{}, fmt.Errorf("load metadata: %w", err)
	}
	return md, nil
}
