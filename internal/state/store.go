// Package state persists composite metric snapshots to a relational
// store. Snapshots are stored as their flattened path/value map, so any
// tree that survives the flatten/unflatten contract round-trips through
// the store unchanged.
package state

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/leapstack-labs/metron/pkg/metric"
)

// Comparison is a metadata filter operator.
type Comparison int

const (
	// Equal matches metadata values equal to the operand.
	Equal Comparison = iota
	// NotEqual matches metadata values different from the operand.
	NotEqual
	// Less matches metadata values below the operand.
	Less
	// Greater matches metadata values above the operand.
	Greater
	// LessOrEqual matches metadata values at or below the operand.
	LessOrEqual
	// GreaterOrEqual matches metadata values at or above the operand.
	GreaterOrEqual
)

// String returns the SQL operator symbol.
func (c Comparison) String() string {
	switch c {
	case Equal:
		return "="
	case NotEqual:
		return "<>"
	case Less:
		return "<"
	case Greater:
		return ">"
	case LessOrEqual:
		return "<="
	case GreaterOrEqual:
		return ">="
	default:
		return "unknown"
	}
}

// ordering reports whether the comparison requires numeric interpretation
// of the stored metadata value.
func (c Comparison) ordering() bool {
	switch c {
	case Less, Greater, LessOrEqual, GreaterOrEqual:
		return true
	default:
		return false
	}
}

// PostOptions carries the optional attributes stored with a snapshot.
type PostOptions struct {
	// Timestamp of the snapshot; zero means time.Now().UTC().
	Timestamp time.Time
	// Metadata is an optional informational key/value set.
	Metadata *metric.Metadata
	// Project optionally names the project the snapshot belongs to.
	Project string
	// UUID optionally correlates the snapshot to external data.
	UUID string
}

// Snapshot is one stored metric with its attributes, as returned from a
// query, oldest first.
type Snapshot struct {
	Metric    metric.Node
	Timestamp time.Time
	Metadata  metric.Metadata
	Project   string
	UUID      string
}

// Store is the persistence contract for metric snapshots.
type Store interface {
	// Post stores the metric and returns the snapshot id.
	Post(ctx context.Context, m metric.Node, opts PostOptions) (string, error)
	// Query starts a query for snapshots of the named metric.
	Query(name string) *Query
	// PurgeByDate removes snapshots with a timestamp before the given
	// date; when name is non-empty only that metric is purged.
	PurgeByDate(ctx context.Context, before time.Time, name string) error
	// PurgeByVolume keeps at most count newest snapshots of the named
	// metric and removes the rest.
	PurgeByVolume(ctx context.Context, count int, name string) error
	// Close releases the underlying database connection.
	Close() error
}

// rebindPositional converts '?' placeholders to the $1..$N style used by
// postgres. SQLite statements pass through unchanged.
func rebindPositional(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
