package rules

import (
	"errors"
	"fmt"

	"github.com/leapstack-labs/metron/pkg/metric"
)

const statusDivider = "--------------------------------"

// Engine is a composed set of rules applied to composite metrics. Rules
// are held in insertion order so repeated runs emit statuses in a stable
// order. Built once, then applied statelessly to many metrics. Not safe
// for concurrent mutation.
type Engine struct {
	alerts      []*Rule
	validations []*Rule
	exclusions  []string
}

// NewEngine returns an empty rules engine.
func NewEngine() *Engine {
	return &Engine{}
}

// AddAlert registers a rule whose failures are reported as alerts.
func (e *Engine) AddAlert(rule *Rule) {
	e.alerts = append(e.alerts, rule)
}

// AddValidation registers a rule whose failures are reported as
// validation failures.
func (e *Engine) AddValidation(rule *Rule) {
	e.validations = append(e.validations, rule)
}

// AddExclusion removes metrics matching the glob pattern from all rule
// evaluation.
func (e *Engine) AddExclusion(pattern string) {
	e.exclusions = append(e.exclusions, pattern)
}

// Alerts returns the alert rules in insertion order.
func (e *Engine) Alerts() []*Rule { return e.alerts }

// Validations returns the validation rules in insertion order.
func (e *Engine) Validations() []*Rule { return e.validations }

// Exclusions returns the exclusion globs in insertion order.
func (e *Engine) Exclusions() []string { return e.exclusions }

// Process validates the composite metric against every rule: alert rules
// first, then validation rules, each in insertion order. Rules that pass
// produce no event; no failure stops evaluation of subsequent rules. The
// returned slice is stable for an unmodified engine and metric.
func (e *Engine) Process(composite *metric.Composite) ([]Status, error) {
	var statuses []Status

	run := func(rule *Rule, level Level, label string) error {
		err := rule.Validate(composite, e.exclusions)
		if err == nil {
			return nil
		}
		var violation *ThresholdViolation
		if !errors.As(err, &violation) {
			return fmt.Errorf("rule %q: %w", rule.Description(), err)
		}
		statuses = append(statuses, Status{
			Level:     level,
			Text:      fmt.Sprintf("\n%s\n%s: For rule '%s':%s", statusDivider, label, rule.Description(), violation.Error()),
			Parent:    composite,
			offending: violation.OffendingElements(),
		})
		return nil
	}

	for _, rule := range e.alerts {
		if err := run(rule, LevelAlert, "ALERT"); err != nil {
			return nil, err
		}
	}
	for _, rule := range e.validations {
		if err := run(rule, LevelFailure, "VALIDATION FAILURE"); err != nil {
			return nil, err
		}
	}
	return statuses, nil
}
