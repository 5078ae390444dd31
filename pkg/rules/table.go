package rules

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// Table is an immutable, ordered set of classification rules. It is the
// single source of regulatory truth for a process: load it once at startup
// and never mutate it. All methods are safe for concurrent readers.
type Table struct {
	Rules []Rule `yaml:"rules"`
}

var (
	defaultOnce  sync.Once
	defaultTable *Table
)

// Default returns the built-in APP-151 rule table, parsed once per process.
func Default() *Table {
	defaultOnce.Do(func() {
		t, err := Parse(defaultRulesYAML)
		if err != nil {
			// The embedded table is validated by the package tests;
			// failing to parse it is a build defect, not a runtime
			// condition callers can handle.
			panic(fmt.Sprintf("rules: embedded table invalid: %v", err))
		}
		defaultTable = t
	})
	return defaultTable
}

// Load reads a rule table from a YAML file. Deployments use this to override
// the built-in table, e.g. to flip a disputed subject_to_cap flag.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rule table: %w", err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing rule table %s: %w", path, err)
	}
	return t, nil
}

// Parse unmarshals and validates a YAML rule table.
func Parse(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parsing rule table YAML: %w", err)
	}
	if len(t.Rules) == 0 {
		return nil, fmt.Errorf("rule table contains no rules")
	}
	// Keyword matching is case-insensitive against lowercased labels.
	for i := range t.Rules {
		for j, kw := range t.Rules[i].Keywords {
			t.Rules[i].Keywords[j] = strings.ToLower(strings.TrimSpace(kw))
		}
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Validate checks the table's internal consistency: every multiplier is
// within [0,1] and agrees with its inclusion policy.
func (t *Table) Validate() error {
	var problems []string
	for i := range t.Rules {
		r := &t.Rules[i]
		where := fmt.Sprintf("rule %d (%s)", i, r.Label)

		if r.Label == "" {
			problems = append(problems, fmt.Sprintf("rule %d: missing label", i))
		}
		if len(r.Keywords) == 0 {
			problems = append(problems, where+": no keywords")
		}
		problems = appendPolicyProblems(problems, where+" gfa", r.GFAPolicy, r.GFAMultiplier)
		problems = appendPolicyProblems(problems, where+" nofa", r.NOFAPolicy, r.NOFAMultiplier)

		for bt, ov := range r.Overrides {
			if _, err := ParseBuildingType(string(bt)); err != nil {
				problems = append(problems, fmt.Sprintf("%s: override for unknown building type %q", where, bt))
			}
			if ov.GFAMultiplier != nil && (*ov.GFAMultiplier < 0 || *ov.GFAMultiplier > 1) {
				problems = append(problems, fmt.Sprintf("%s: override gfa_multiplier %v out of [0,1]", where, *ov.GFAMultiplier))
			}
			if ov.NOFAMultiplier != nil && (*ov.NOFAMultiplier < 0 || *ov.NOFAMultiplier > 1) {
				problems = append(problems, fmt.Sprintf("%s: override nofa_multiplier %v out of [0,1]", where, *ov.NOFAMultiplier))
			}
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid rule table:\n  %s", strings.Join(problems, "\n  "))
	}
	return nil
}

func appendPolicyProblems(problems []string, where string, p Policy, mult float64) []string {
	if mult < 0 || mult > 1 {
		problems = append(problems, fmt.Sprintf("%s: multiplier %v out of [0,1]", where, mult))
	}
	switch p {
	case PolicyFull:
		if mult != 1.0 {
			problems = append(problems, fmt.Sprintf("%s: policy full requires multiplier 1.0, got %v", where, mult))
		}
	case PolicyHalf:
		if mult != 0.5 {
			problems = append(problems, fmt.Sprintf("%s: policy half requires multiplier 0.5, got %v", where, mult))
		}
	case PolicyExcluded:
		if mult != 0.0 {
			problems = append(problems, fmt.Sprintf("%s: policy excluded requires multiplier 0, got %v", where, mult))
		}
	case PolicyConditional:
		// Conditional items carry whatever multiplier the concession
		// grants (0 for fully claimable, 0.5 for balconies etc.).
	default:
		problems = append(problems, fmt.Sprintf("%s: unknown policy %q", where, p))
	}
	return problems
}
