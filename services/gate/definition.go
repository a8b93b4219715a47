// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package gate

// Category groups gates for relevance filtering.
type Category string

const (
	CategoryLogging Category = "logging"
	CategoryUI      Category = "ui"
	CategoryTesting Category = "testing"
	CategoryGeneral Category = "general"
)

// Default scoring configuration.
const (
	// DefaultPassThreshold is the score a non-security gate must reach
	// to PASS on the enhanced path.
	DefaultPassThreshold = 20.0

	// SecurityPassThreshold is the score a security-flagged gate must
	// reach to PASS. Security gates never pass below a perfect score.
	SecurityPassThreshold = 100.0

	// DefaultExpectedCoverage is the fraction of relevant files expected
	// to exhibit a gate's evidence.
	DefaultExpectedCoverage = 0.2

	// DefaultCriteriaWeight and DefaultCoverageWeight blend the two
	// enhanced-path score components.
	DefaultCriteriaWeight = 0.8
	DefaultCoverageWeight = 0.2
)

// Definition describes one compliance gate.
//
// A gate either carries a criteria tree (selecting the enhanced scoring
// path) or omits it (selecting the legacy flat match-counting path with
// ExpectedMinFiles). Absence of a tree is not an error.
type Definition struct {
	// Name is the gate's display name.
	Name string `yaml:"name" json:"name"`

	// Category groups the gate for relevance filtering.
	Category Category `yaml:"category" json:"category"`

	// Security marks the gate security-sensitive. Security gates
	// require a perfect score to pass.
	Security bool `yaml:"security" json:"security"`

	// PassThreshold is the minimum passing score. Defaults to 20, and
	// is forced to 100 for security gates.
	PassThreshold float64 `yaml:"pass_threshold" json:"pass_threshold"`

	// PerfectThreshold is the score regarded as exemplary. Informational.
	PerfectThreshold float64 `yaml:"perfect_threshold" json:"perfect_threshold"`

	// ExpectedCoverage is the fraction of relevant files expected to
	// carry evidence (enhanced path).
	ExpectedCoverage float64 `yaml:"expected_coverage" json:"expected_coverage"`

	// ExpectedMinFiles is the matching-file count that earns a full
	// score on the legacy path.
	ExpectedMinFiles int `yaml:"expected_min_files" json:"expected_min_files"`

	// CriteriaWeight and CoverageWeight blend the enhanced-path
	// components. They default to 0.8 and 0.2.
	CriteriaWeight float64 `yaml:"criteria_weight" json:"criteria_weight"`
	CoverageWeight float64 `yaml:"coverage_weight" json:"coverage_weight"`

	// Patterns is the flat pattern list for the legacy path. The engine
	// treats all patterns identically regardless of origin.
	Patterns []string `yaml:"patterns,omitempty" json:"patterns,omitempty"`

	// Criteria selects the enhanced path when present.
	Criteria *CriteriaTree `yaml:"criteria,omitempty" json:"criteria,omitempty"`
}

// Normalize fills unset fields with defaults. Called by the loader; callers
// constructing Definitions programmatically should call it themselves.
func (d *Definition) Normalize() {
	if d.Category == "" {
		d.Category = CategoryGeneral
	}
	if d.PassThreshold <= 0 {
		d.PassThreshold = DefaultPassThreshold
	}
	if d.Security {
		d.PassThreshold = SecurityPassThreshold
	}
	if d.PerfectThreshold <= 0 {
		d.PerfectThreshold = 100
	}
	if d.ExpectedCoverage <= 0 {
		d.ExpectedCoverage = DefaultExpectedCoverage
	}
	if d.CriteriaWeight <= 0 && d.CoverageWeight <= 0 {
		d.CriteriaWeight = DefaultCriteriaWeight
		d.CoverageWeight = DefaultCoverageWeight
	}
	if d.ExpectedMinFiles <= 0 {
		d.ExpectedMinFiles = 1
	}
}

// Validate checks the definition for configuration errors.
//
// Returns *ConfigurationError describing the first problem found, or nil.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return &ConfigurationError{Reason: "gate name is required"}
	}
	if d.PassThreshold < 0 || d.PassThreshold > 100 {
		return &ConfigurationError{Gate: d.Name, Reason: "pass_threshold must be within [0,100]"}
	}
	if d.ExpectedCoverage < 0 || d.ExpectedCoverage > 1 {
		return &ConfigurationError{Gate: d.Name, Reason: "expected_coverage must be within [0,1]"}
	}
	if d.Security && d.PassThreshold != SecurityPassThreshold {
		return &ConfigurationError{Gate: d.Name, Reason: "security gates require pass_threshold = 100"}
	}
	if d.Criteria != nil {
		if err := validateTree(d.Name, d.Criteria); err != nil {
			return err
		}
	} else if len(d.Patterns) == 0 {
		return &ConfigurationError{Gate: d.Name, Reason: "legacy gates require at least one pattern"}
	}
	return nil
}

// validateTree checks a criteria tree recursively.
func validateTree(gateName string, t *CriteriaTree) error {
	if !t.Operator.Valid() {
		return &ConfigurationError{Gate: gateName, Reason: "criteria operator must be AND, OR, or NOT"}
	}
	if len(t.Conditions) == 0 {
		return &ConfigurationError{Gate: gateName, Reason: "criteria tree has no conditions"}
	}
	for _, c := range t.Conditions {
		if c.Meta().Name == "" {
			return &ConfigurationError{Gate: gateName, Reason: "every condition requires a name"}
		}
		if c.Meta().Weight < 0 {
			return &ConfigurationError{Gate: gateName, Reason: "condition weight must not be negative"}
		}
		switch cond := c.(type) {
		case *PatternCondition:
			if !cond.Operator.Valid() {
				return &ConfigurationError{Gate: gateName, Reason: "pattern condition operator must be AND, OR, or NOT"}
			}
			if len(cond.Patterns) == 0 {
				return &ConfigurationError{Gate: gateName, Reason: "pattern condition has no patterns"}
			}
		case *FilePatternCondition:
			if !cond.Operator.Valid() {
				return &ConfigurationError{Gate: gateName, Reason: "file pattern condition operator must be AND, OR, or NOT"}
			}
			if len(cond.Patterns) == 0 {
				return &ConfigurationError{Gate: gateName, Reason: "file pattern condition has no patterns"}
			}
		case *NestedCriteriaCondition:
			if err := validateTree(gateName, &cond.Tree); err != nil {
				return err
			}
		}
	}
	return nil
}

// PatternTexts returns every pattern text the gate can exercise: the flat
// list for legacy gates, plus all content patterns inside the criteria tree.
// Used for cache warm-up and for the legacy fallback of enhanced gates.
func (d *Definition) PatternTexts() []string {
	texts := make([]string, 0, len(d.Patterns))
	texts = append(texts, d.Patterns...)
	if d.Criteria != nil {
		texts = append(texts, treePatternTexts(d.Criteria)...)
	}
	return texts
}

func treePatternTexts(t *CriteriaTree) []string {
	var texts []string
	for _, c := range t.Conditions {
		switch cond := c.(type) {
		case *PatternCondition:
			for _, p := range cond.Patterns {
				texts = append(texts, p.Pattern)
			}
		case *NestedCriteriaCondition:
			texts = append(texts, treePatternTexts(&cond.Tree)...)
		}
	}
	return texts
}
