package rules

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rule-file document shape:
//
//	content:
//	  - ruleset:
//	      description: coverage gates
//	      exclusions:
//	        - exclusion: "/CodeCoverage/by_file*generated*"
//	      rules:
//	        - action: validate
//	          rule: "/CodeCoverage#overall >= 85.0"
//	        - action: confirm
//	          rule: "/Performance#overall_cpu < 70.0"
//
// 'confirm' rules report alerts, 'validate' rules report validation
// failures. Rule text is "<pattern> <operator> <float>".
type ruleDocument struct {
	Content []ruleGroup `yaml:"content"`
}

type ruleGroup struct {
	Ruleset *ruleSet `yaml:"ruleset"`
}

type ruleSet struct {
	Description string           `yaml:"description"`
	Exclusions  []exclusionEntry `yaml:"exclusions"`
	Rules       []ruleEntry      `yaml:"rules"`
}

type exclusionEntry struct {
	Exclusion string `yaml:"exclusion"`
}

type ruleEntry struct {
	Action string `yaml:"action"`
	Rule   string `yaml:"rule"`
}

// Rule-file actions.
const (
	actionConfirm  = "confirm"
	actionValidate = "validate"
)

// ErrNoRules is returned when a rule document has no usable content.
var ErrNoRules = errors.New("rule document contains no rules")

// FromFile builds an engine from a YAML rule file.
func FromFile(path string) (*Engine, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("rules file %q: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("rules file %q is a directory", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("rules file %q: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	engine, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("rules file %q: %w", path, err)
	}
	return engine, nil
}

// Load builds an engine from a YAML rule document. Malformed rule text,
// an unknown action, a missing content list, or a ruleset without rules
// is a hard configuration error.
func Load(r io.Reader) (*Engine, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var doc ruleDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing rule document: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, fmt.Errorf("%w: no top-level content element", ErrNoRules)
	}

	engine := NewEngine()
	for _, group := range doc.Content {
		if group.Ruleset == nil {
			return nil, fmt.Errorf("%w: content devoid of ruleset elements", ErrNoRules)
		}
		for _, entry := range group.Ruleset.Exclusions {
			engine.AddExclusion(entry.Exclusion)
		}
		if len(group.Ruleset.Rules) == 0 {
			return nil, fmt.Errorf("%w: empty set of rules for set with description %q",
				ErrNoRules, group.Ruleset.Description)
		}
		for _, entry := range group.Ruleset.Rules {
			rule, err := parseRuleText(entry.Rule)
			if err != nil {
				return nil, err
			}
			switch entry.Action {
			case actionConfirm:
				engine.AddAlert(rule)
			case actionValidate:
				engine.AddValidation(rule)
			default:
				return nil, fmt.Errorf("invalid action specified: %q", entry.Action)
			}
		}
	}
	return engine, nil
}

// parseRuleText parses "<pattern> <operator> <float>" rule text.
func parseRuleText(text string) (*Rule, error) {
	fields := strings.Fields(text)
	if len(fields) != 3 {
		return nil, fmt.Errorf("invalid rule %q: must be in format 'pattern [<, >, <=, >=] float-value'", text)
	}
	operation, ok := ParseOperation(fields[1])
	if !ok {
		return nil, fmt.Errorf("invalid rule %q: unknown operator %q", text, fields[1])
	}
	limit, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return nil, fmt.Errorf("invalid rule %q: %w", text, err)
	}
	return NewRule(fields[0], operation, limit, ""), nil
}
