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

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Operator combines condition outcomes within a tree or condition.
type Operator string

const (
	// OperatorAnd passes when every member passed.
	OperatorAnd Operator = "AND"

	// OperatorOr passes when at least one member passed.
	OperatorOr Operator = "OR"

	// OperatorNot passes when no member passed.
	OperatorNot Operator = "NOT"
)

// Valid reports whether the operator is one of AND/OR/NOT.
func (op Operator) Valid() bool {
	switch op {
	case OperatorAnd, OperatorOr, OperatorNot:
		return true
	}
	return false
}

// Apply folds a list of member outcomes with the operator.
//
// An empty member list never passes: a condition without evidence to
// aggregate has nothing to assert.
func (op Operator) Apply(passed []bool) bool {
	if len(passed) == 0 {
		return false
	}
	switch op {
	case OperatorAnd:
		for _, p := range passed {
			if !p {
				return false
			}
		}
		return true
	case OperatorOr:
		for _, p := range passed {
			if p {
				return true
			}
		}
		return false
	case OperatorNot:
		for _, p := range passed {
			if p {
				return false
			}
		}
		return true
	}
	return false
}

// ConditionType identifies one of the three closed condition variants.
type ConditionType string

const (
	ConditionTypePattern     ConditionType = "pattern"
	ConditionTypeFilePattern ConditionType = "file_pattern"
	ConditionTypeNested      ConditionType = "nested_criteria"
)

// ConditionMeta carries the name and weight every condition has.
type ConditionMeta struct {
	Name   string  `yaml:"name" json:"name"`
	Weight float64 `yaml:"weight" json:"weight"`
}

// Meta returns the condition's name and weight.
func (m ConditionMeta) Meta() ConditionMeta { return m }

// Condition is one leaf or sub-tree of a CriteriaTree.
//
// The union is closed: exactly the three variants below exist, and the
// loader rejects anything else with ConfigurationError.
type Condition interface {
	Meta() ConditionMeta
	Type() ConditionType
	isCondition()
}

// PatternSpec is one content pattern inside a PatternCondition.
type PatternSpec struct {
	// Pattern is the regex source text.
	Pattern string `yaml:"pattern" json:"pattern"`

	// Weight is the pattern's evidence weight.
	Weight float64 `yaml:"weight" json:"weight"`

	// Technologies optionally narrows candidate files by language or
	// extension (e.g. "go", ".py").
	Technologies []string `yaml:"technologies,omitempty" json:"technologies,omitempty"`

	// FileContext optionally narrows candidate files by role:
	// "test files", "configuration files", or "source files".
	FileContext string `yaml:"file_context,omitempty" json:"file_context,omitempty"`
}

// PatternCondition matches file contents against a list of patterns.
type PatternCondition struct {
	ConditionMeta `yaml:",inline"`

	// Operator folds the per-pattern "matched at least once" booleans.
	Operator Operator `yaml:"operator" json:"operator"`

	// Patterns is the pattern list. Order is preserved.
	Patterns []PatternSpec `yaml:"patterns" json:"patterns"`
}

func (*PatternCondition) Type() ConditionType { return ConditionTypePattern }
func (*PatternCondition) isCondition()        {}

// FilePatternSpec is one filename pattern inside a FilePatternCondition.
type FilePatternSpec struct {
	// Pattern is a regex matched against file basenames.
	Pattern string `yaml:"pattern" json:"pattern"`

	// Weight is the pattern's evidence weight.
	Weight float64 `yaml:"weight" json:"weight"`

	// ExcludeDirs removes files whose path contains any of these
	// directory substrings before matching.
	ExcludeDirs []string `yaml:"exclude_dirs,omitempty" json:"exclude_dirs,omitempty"`
}

// FilePatternCondition matches file basenames against a list of patterns.
type FilePatternCondition struct {
	ConditionMeta `yaml:",inline"`

	// Operator folds the per-pattern "matched at least one file" booleans.
	Operator Operator `yaml:"operator" json:"operator"`

	// Patterns is the filename pattern list.
	Patterns []FilePatternSpec `yaml:"patterns" json:"patterns"`
}

func (*FilePatternCondition) Type() ConditionType { return ConditionTypeFilePattern }
func (*FilePatternCondition) isCondition()        {}

// NestedCriteriaCondition embeds a whole sub-tree as a single condition.
type NestedCriteriaCondition struct {
	ConditionMeta `yaml:",inline"`

	// Tree is the embedded criteria tree.
	Tree CriteriaTree `yaml:"criteria" json:"criteria"`
}

func (*NestedCriteriaCondition) Type() ConditionType { return ConditionTypeNested }
func (*NestedCriteriaCondition) isCondition()        {}

// CriteriaTree is a root operator over an ordered list of conditions.
// Trees are read-only once loaded.
type CriteriaTree struct {
	// Operator folds the condition-level pass/fail outcomes.
	Operator Operator `json:"operator"`

	// Conditions is the ordered condition list.
	Conditions []Condition `json:"conditions"`
}

// UnmarshalYAML decodes a criteria tree, dispatching each condition node to
// its variant by the "type" field. Unknown variants are rejected rather than
// silently defaulted.
func (t *CriteriaTree) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Operator   Operator    `yaml:"operator"`
		Conditions []yaml.Node `yaml:"conditions"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	t.Operator = raw.Operator
	t.Conditions = make([]Condition, 0, len(raw.Conditions))
	for i := range raw.Conditions {
		cond, err := decodeCondition(&raw.Conditions[i])
		if err != nil {
			return err
		}
		t.Conditions = append(t.Conditions, cond)
	}
	return nil
}

// decodeCondition decodes one condition node into its tagged variant.
func decodeCondition(node *yaml.Node) (Condition, error) {
	var head struct {
		Type ConditionType `yaml:"type"`
	}
	if err := node.Decode(&head); err != nil {
		return nil, err
	}

	switch head.Type {
	case ConditionTypePattern:
		var c PatternCondition
		if err := node.Decode(&c); err != nil {
			return nil, err
		}
		return &c, nil
	case ConditionTypeFilePattern:
		var c FilePatternCondition
		if err := node.Decode(&c); err != nil {
			return nil, err
		}
		return &c, nil
	case ConditionTypeNested:
		var c NestedCriteriaCondition
		if err := node.Decode(&c); err != nil {
			return nil, err
		}
		return &c, nil
	default:
		return nil, &ConfigurationError{
			Reason: fmt.Sprintf("unknown condition type %q (line %d)", head.Type, node.Line),
		}
	}
}

// ConditionResult records the outcome of evaluating one condition.
type ConditionResult struct {
	// Name is the condition's name.
	Name string `json:"name"`

	// Type is the condition's variant.
	Type ConditionType `json:"type"`

	// Operator is the operator that folded the condition's members.
	Operator Operator `json:"operator"`

	// Passed is the condition-level verdict.
	Passed bool `json:"passed"`

	// Matches is the evidence that justified the verdict.
	Matches []Match `json:"matches,omitempty"`

	// Weight is the condition's weight.
	Weight float64 `json:"weight"`

	// MaxPossible is the maximum number of matches theoretically
	// possible (patterns x candidate files), used for coverage math.
	MaxPossible int `json:"max_possible"`
}

// CriteriaResult is the outcome of evaluating a whole criteria tree.
type CriteriaResult struct {
	// Passed is the root-level verdict.
	Passed bool `json:"passed"`

	// Conditions holds the per-condition results in tree order.
	Conditions []ConditionResult `json:"conditions"`

	// Matches is the concatenated evidence across conditions.
	Matches []Match `json:"matches,omitempty"`

	// TotalWeight is the sum of condition weights.
	TotalWeight float64 `json:"total_weight"`
}
