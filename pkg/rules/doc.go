// Package rules evaluates threshold rules against composite metrics.
//
// A Rule binds a path glob to a comparison operator and limit. An Engine
// groups rules into alerts (non-fatal) and validations (fatal), applies
// them to a metric tree, and emits Status events for every failure.
// Engines are typically built from a declarative YAML rule file via
// FromFile.
package rules
