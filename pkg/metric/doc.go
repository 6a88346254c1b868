// Package metric defines the composite metric tree and its path codec.
//
// This package contains:
//   - Value, the tagged numeric union carried by leaf metrics
//   - Metric (leaf) and Composite (branch) tree nodes
//   - The flatten/unflatten codec between trees and path/value maps
//   - Structured conversion between trees and Go structs
//   - Metadata, the informational key/value set attached to stored snapshots
//
// The Golden Rule: pkg/metric imports ONLY stdlib.
// All other packages depend on metric, not the reverse.
package metric
