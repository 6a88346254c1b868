package rules

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/metron/pkg/metric"
)

// Operation is the comparison invariant a rule asserts. The operator
// names describe the bound that must hold: LessThan requires the metric
// value to be strictly below the limit, and failing that bound is a
// violation.
type Operation int

const (
	// LessThan requires value < limit.
	LessThan Operation = iota
	// GreaterThan requires value > limit.
	GreaterThan
	// LessThanOrEqual requires value <= limit.
	LessThanOrEqual
	// GreaterThanOrEqual requires value >= limit.
	GreaterThanOrEqual
)

// String returns the operator's symbol.
func (op Operation) String() string {
	switch op {
	case LessThan:
		return "<"
	case GreaterThan:
		return ">"
	case LessThanOrEqual:
		return "<="
	case GreaterThanOrEqual:
		return ">="
	default:
		return "unknown"
	}
}

// inverse returns the symbol of the failing comparison, used in
// violation messages.
func (op Operation) inverse() string {
	switch op {
	case LessThan:
		return ">="
	case GreaterThan:
		return "<="
	case LessThanOrEqual:
		return ">"
	case GreaterThanOrEqual:
		return "<"
	default:
		return "unknown"
	}
}

// holds reports whether the asserted bound is satisfied.
func (op Operation) holds(value, limit float64) bool {
	switch op {
	case LessThan:
		return value < limit
	case GreaterThan:
		return value > limit
	case LessThanOrEqual:
		return value <= limit
	case GreaterThanOrEqual:
		return value >= limit
	default:
		return false
	}
}

// ParseOperation converts an operator symbol to an Operation.
// Returns the operation and true if valid, or LessThan and false if not.
func ParseOperation(s string) (Operation, bool) {
	switch s {
	case "<":
		return LessThan, true
	case ">":
		return GreaterThan, true
	case "<=":
		return LessThanOrEqual, true
	case ">=":
		return GreaterThanOrEqual, true
	default:
		return LessThan, false
	}
}

// ThresholdViolation reports the paths of a composite metric that failed
// one rule. It implements error; the message carries one line per
// violated path showing the failing comparison.
type ThresholdViolation struct {
	msg       string
	parent    *metric.Composite
	offending []string
}

// Error returns the multi-line violation message.
func (v *ThresholdViolation) Error() string { return v.msg }

// Parent returns the composite metric that was checked.
func (v *ThresholdViolation) Parent() *metric.Composite { return v.parent }

// OffendingElements returns the key paths whose values violated the rule.
func (v *ThresholdViolation) OffendingElements() []string { return v.offending }

// Rule is a stateless threshold predicate bound to a path glob. Immutable
// after construction.
type Rule struct {
	pattern     string
	operation   Operation
	limit       float64
	description string
}

// NewRule constructs a rule. The pattern is matched against root-anchored
// '/'-joined, '#'-terminated metric paths; the single pattern "*" selects
// every path. When description is empty one is derived from the pattern,
// operation and limit.
func NewRule(pattern string, operation Operation, limit float64, description string) *Rule {
	if description == "" {
		description = fmt.Sprintf("%s %s %v", pattern, operation, limit)
	}
	return &Rule{pattern: pattern, operation: operation, limit: limit, description: description}
}

// Pattern returns the rule's path glob.
func (r *Rule) Pattern() string { return r.pattern }

// Operation returns the rule's comparison.
func (r *Rule) Operation() Operation { return r.operation }

// Limit returns the rule's threshold value.
func (r *Rule) Limit() float64 { return r.limit }

// Description returns the rule's description.
func (r *Rule) Description() string { return r.description }

// rootAnchor joins a core key path to its root composite name, producing
// the absolute form patterns are matched against. A key beginning with
// '#' names a leaf directly under the root and needs no extra separator.
func rootAnchor(rootName, key string) string {
	if strings.HasPrefix(key, metric.LeafSep) {
		return metric.PathSep + rootName + key
	}
	return metric.PathSep + rootName + metric.PathSep + key
}

// Validate applies the rule to every core metric of the composite whose
// root-anchored path matches the pattern, skipping paths matched by any
// exclusion glob. It returns a *ThresholdViolation listing every path
// whose value fails the asserted bound, or nil when all selected values
// satisfy it.
func (r *Rule) Validate(composite *metric.Composite, exclusions []string) error {
	var failed []string
	var msg strings.Builder

	for _, key := range composite.Keys(true) {
		anchored := rootAnchor(composite.Name(), key)
		if excluded(anchored, exclusions) {
			continue
		}
		if r.pattern != "*" && !matchGlob(anchored, r.pattern) {
			continue
		}
		element, err := composite.Element(key)
		if err != nil {
			return fmt.Errorf("resolving %q: %w", key, err)
		}
		leaf, ok := element.(*metric.Metric)
		if !ok {
			continue
		}
		if !r.operation.holds(leaf.Value().Float64(), r.limit) {
			failed = append(failed, key)
			fmt.Fprintf(&msg, "\n   %s %s %v", anchored, r.operation.inverse(), r.limit)
		}
	}

	if len(failed) > 0 {
		return &ThresholdViolation{msg: msg.String(), parent: composite, offending: failed}
	}
	return nil
}

func excluded(anchored string, exclusions []string) bool {
	for _, exclusion := range exclusions {
		if matchGlob(anchored, exclusion) {
			return true
		}
	}
	return false
}
