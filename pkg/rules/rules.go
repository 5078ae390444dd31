// Package rules maps room labels to their Hong Kong GFA / NOFA regulatory
// treatment. The rule table is data, not behaviour: an ordered list of keyword
// records loaded once from YAML, with per-building-type field overrides.
//
// Sources: PNAP APP-2, B(P)R 23(3) & 23A(3) for GFA accounting, PNAP APP-151
// Appendix A for concession items, HK industry convention for NOFA.
package rules

import (
	"fmt"
	"math"
	"strings"
)

// BuildingType selects which rule overrides apply to a space.
type BuildingType string

const (
	Residential BuildingType = "residential"
	NonDomestic BuildingType = "non_domestic"
	Composite   BuildingType = "composite"
	Hotel       BuildingType = "hotel"
)

// BuildingTypes lists all supported building types.
var BuildingTypes = []BuildingType{Residential, NonDomestic, Composite, Hotel}

// ParseBuildingType converts a string to a BuildingType.
func ParseBuildingType(s string) (BuildingType, error) {
	bt := BuildingType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range BuildingTypes {
		if bt == known {
			return bt, nil
		}
	}
	return "", fmt.Errorf("unknown building type %q (expected one of: residential, non_domestic, composite, hotel)", s)
}

// Policy is an inclusion policy for GFA or NOFA accounting.
type Policy string

const (
	PolicyFull        Policy = "full"        // 100% counted
	PolicyHalf        Policy = "half"        // 50% counted
	PolicyExcluded    Policy = "excluded"    // 0%, disregarded / exempt
	PolicyConditional Policy = "conditional" // requires BD / BEAM Plus approval
)

// Rule defines how one space type is treated under GFA and NOFA accounting.
type Rule struct {
	Label    string   `yaml:"label"`
	Keywords []string `yaml:"keywords"`

	GFAPolicy     Policy  `yaml:"gfa_policy"`
	GFAMultiplier float64 `yaml:"gfa_multiplier"`
	GFANote       string  `yaml:"gfa_note,omitempty"`

	NOFAPolicy     Policy  `yaml:"nofa_policy"`
	NOFAMultiplier float64 `yaml:"nofa_multiplier"`
	NOFANote       string  `yaml:"nofa_note,omitempty"`

	// APP-151 Appendix A concession metadata.
	Concession       bool   `yaml:"concession,omitempty"`
	ItemNo           string `yaml:"item_no,omitempty"`
	ConcessionItem   string `yaml:"concession_item,omitempty"`
	PNAPRef          string `yaml:"pnap_ref,omitempty"`
	SubjectToCap     bool   `yaml:"subject_to_cap,omitempty"`
	RequiresBEAMPlus bool   `yaml:"requires_beam_plus,omitempty"`
	RequiresPrereq   bool   `yaml:"requires_prereq,omitempty"`
	Domestic         bool   `yaml:"domestic,omitempty"`
	NonDomesticUse   bool   `yaml:"non_domestic,omitempty"`

	// Overrides replaces individual fields per building type, e.g. a rule
	// that is exempt for hotels but full GFA everywhere else.
	Overrides map[BuildingType]Override `yaml:"overrides,omitempty"`
}

// Override is a partial rule record merged field-by-field on top of the
// rule's defaults. Nil fields keep the default.
type Override struct {
	GFAPolicy      *Policy  `yaml:"gfa_policy,omitempty"`
	GFAMultiplier  *float64 `yaml:"gfa_multiplier,omitempty"`
	GFANote        *string  `yaml:"gfa_note,omitempty"`
	NOFAPolicy     *Policy  `yaml:"nofa_policy,omitempty"`
	NOFAMultiplier *float64 `yaml:"nofa_multiplier,omitempty"`
	NOFANote       *string  `yaml:"nofa_note,omitempty"`
	Concession     *bool    `yaml:"concession,omitempty"`
	SubjectToCap   *bool    `yaml:"subject_to_cap,omitempty"`
}

// Classification is the resolved regulatory treatment of one room.
type Classification struct {
	RuleLabel    string       `json:"rule_label"`
	AreaM2       float64      `json:"area_m2"`
	BuildingType BuildingType `json:"building_type"`

	GFAPolicy     Policy  `json:"gfa_policy"`
	GFAMultiplier float64 `json:"gfa_multiplier"`
	GFAAreaM2     float64 `json:"gfa_m2"`
	GFANote       string  `json:"gfa_note,omitempty"`

	NOFAPolicy     Policy  `json:"nofa_policy"`
	NOFAMultiplier float64 `json:"nofa_multiplier"`
	NOFAAreaM2     float64 `json:"nofa_m2"`
	NOFANote       string  `json:"nofa_note,omitempty"`

	Concession       bool   `json:"concession"`
	ItemNo           string `json:"item_no,omitempty"`
	ConcessionItem   string `json:"concession_item,omitempty"`
	PNAPRef          string `json:"pnap_ref,omitempty"`
	SubjectToCap     bool   `json:"subject_to_cap"`
	RequiresBEAMPlus bool   `json:"requires_beam_plus"`
	RequiresPrereq   bool   `json:"requires_prereq"`

	// ReviewRequired is set when no rule matched and the room was
	// defaulted to full GFA.
	ReviewRequired bool `json:"review_required"`
}

// RequiresApproval reports whether claiming this classification's concession
// needs BD sign-off or a BEAM Plus registration prerequisite.
func (c Classification) RequiresApproval() bool {
	return c.RequiresBEAMPlus || c.RequiresPrereq
}

// Classify resolves a cleaned room label against the table and returns its
// GFA / NOFA treatment for the given building type. It is a pure function of
// (label, area, building type, table): classifying the same inputs twice
// yields identical results.
//
// Lookup is a case-insensitive substring match over every rule's keywords;
// the rule owning the longest matching keyword wins. An unmatched label
// defaults to full GFA with ReviewRequired set and is excluded from NOFA
// pending review.
func (t *Table) Classify(label string, areaM2 float64, bt BuildingType) Classification {
	rule := t.match(label)
	if rule == nil {
		return Classification{
			RuleLabel:      label,
			AreaM2:         areaM2,
			BuildingType:   bt,
			GFAPolicy:      PolicyFull,
			GFAMultiplier:  1.0,
			GFAAreaM2:      round4(areaM2),
			GFANote:        "Unrecognised room type, defaulted to full GFA. Manual review required.",
			NOFAPolicy:     PolicyExcluded,
			NOFAMultiplier: 0.0,
			NOFAAreaM2:     0.0,
			NOFANote:       "Unrecognised, excluded from NOFA pending review.",
			ReviewRequired: true,
		}
	}

	c := Classification{
		RuleLabel:        rule.Label,
		AreaM2:           areaM2,
		BuildingType:     bt,
		GFAPolicy:        rule.GFAPolicy,
		GFAMultiplier:    rule.GFAMultiplier,
		GFANote:          rule.GFANote,
		NOFAPolicy:       rule.NOFAPolicy,
		NOFAMultiplier:   rule.NOFAMultiplier,
		NOFANote:         rule.NOFANote,
		Concession:       rule.Concession,
		ItemNo:           rule.ItemNo,
		ConcessionItem:   rule.ConcessionItem,
		PNAPRef:          rule.PNAPRef,
		SubjectToCap:     rule.SubjectToCap,
		RequiresBEAMPlus: rule.RequiresBEAMPlus,
		RequiresPrereq:   rule.RequiresPrereq,
	}

	if ov, ok := rule.Overrides[bt]; ok {
		if ov.GFAPolicy != nil {
			c.GFAPolicy = *ov.GFAPolicy
		}
		if ov.GFAMultiplier != nil {
			c.GFAMultiplier = *ov.GFAMultiplier
		}
		if ov.GFANote != nil {
			c.GFANote = *ov.GFANote
		}
		if ov.NOFAPolicy != nil {
			c.NOFAPolicy = *ov.NOFAPolicy
		}
		if ov.NOFAMultiplier != nil {
			c.NOFAMultiplier = *ov.NOFAMultiplier
		}
		if ov.NOFANote != nil {
			c.NOFANote = *ov.NOFANote
		}
		if ov.Concession != nil {
			c.Concession = *ov.Concession
		}
		if ov.SubjectToCap != nil {
			c.SubjectToCap = *ov.SubjectToCap
		}
	}

	c.GFAAreaM2 = round4(areaM2 * c.GFAMultiplier)
	c.NOFAAreaM2 = round4(areaM2 * c.NOFAMultiplier)
	return c
}

// match returns the rule owning the longest keyword contained in the label,
// or nil if no keyword matches.
func (t *Table) match(label string) *Rule {
	lower := strings.ToLower(strings.TrimSpace(label))
	var best *Rule
	bestLen := 0
	for i := range t.Rules {
		for _, kw := range t.Rules[i].Keywords {
			if len(kw) > bestLen && strings.Contains(lower, kw) {
				best = &t.Rules[i]
				bestLen = len(kw)
			}
		}
	}
	return best
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
