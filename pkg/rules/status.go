package rules

import "github.com/leapstack-labs/metron/pkg/metric"

// Level classifies a validation status event.
type Level int

const (
	// LevelImprovement marks a metric that moved in the desired direction.
	LevelImprovement Level = iota
	// LevelAlert marks a non-fatal concern that does not block acceptance.
	LevelAlert
	// LevelFailure marks a fatal validation failure.
	LevelFailure
)

// String returns the string representation of the level.
func (l Level) String() string {
	switch l {
	case LevelImprovement:
		return "improvement"
	case LevelAlert:
		return "alert"
	case LevelFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Status is the result of one failed rule application.
type Status struct {
	// Level classifies the event.
	Level Level
	// Text is the human-readable message.
	Text string
	// Parent is the composite metric that was checked.
	Parent *metric.Composite

	offending []string
}

// OffendingElements returns the key paths that violated the rule.
func (s Status) OffendingElements() []string { return s.offending }

// OffendingMetrics resolves the violating paths against the checked
// composite and returns the leaf metrics, in path order.
func (s Status) OffendingMetrics() ([]*metric.Metric, error) {
	out := make([]*metric.Metric, 0, len(s.offending))
	for _, key := range s.offending {
		node, err := s.Parent.Element(key)
		if err != nil {
			return nil, err
		}
		leaf, ok := node.(*metric.Metric)
		if !ok {
			continue
		}
		out = append(out, leaf)
	}
	return out, nil
}
