// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package score turns evaluation evidence into 0-100 gate scores.
//
// Two paths exist. The legacy path scores a flat match-file count against an
// expected minimum. The enhanced path blends a weighted criteria component
// with a coverage component. Both are pure arithmetic over their inputs.
package score

import (
	"math"

	"github.com/AleutianAI/gatecheck/services/gate"
)

// Operator difficulty multipliers for the criteria component. Harder
// condition shapes earn proportionally more when they pass.
const (
	multiplierAnd = 1.0
	multiplierOr  = 0.8
	multiplierNot = 1.2
)

// Condition type weights for the criteria component.
const (
	typeWeightPattern     = 1.0
	typeWeightFilePattern = 0.7
	typeWeightNested      = 1.2
)

// Calculator computes gate scores. Stateless; the zero value is ready to use.
type Calculator struct{}

// NewCalculator creates a Calculator.
func NewCalculator() *Calculator {
	return &Calculator{}
}

// Legacy scores the flat match-counting path.
//
// # Description
//
// The score is the ratio of distinct matching files to the gate's expected
// minimum, clamped to 1, scaled to 0-100. An ExpectedMinFiles below one is
// treated as one so a single match is always worth something.
func (c *Calculator) Legacy(matchingFiles, expectedMinFiles int) float64 {
	if matchingFiles <= 0 {
		return 0
	}
	if expectedMinFiles < 1 {
		expectedMinFiles = 1
	}
	ratio := float64(matchingFiles) / float64(expectedMinFiles)
	return math.Min(ratio, 1) * 100
}

// Enhanced scores the criteria-tree path.
//
// # Description
//
// When the tree's root verdict failed, the gate scores zero regardless of
// partial condition passes. Otherwise the score blends the weighted criteria
// component and the coverage component using the gate's configured weights.
//
// # Inputs
//
//   - def: The gate definition, already normalized.
//   - result: The criteria evaluation output.
//   - matchedFiles: Number of distinct files with evidence.
//   - relevantFiles: Size of the gate's relevance-filtered file subset.
func (c *Calculator) Enhanced(def *gate.Definition, result *gate.CriteriaResult, matchedFiles, relevantFiles int) float64 {
	if result == nil || !result.Passed {
		return 0
	}

	cc := criteriaComponent(result.Conditions)
	cov := coverageComponent(matchedFiles, relevantFiles, def.ExpectedCoverage)

	total := def.CriteriaWeight + def.CoverageWeight
	if total <= 0 {
		return cc
	}
	return (cc*def.CriteriaWeight + cov*def.CoverageWeight) / total
}

// criteriaComponent computes the weighted condition score.
//
// Each condition contributes its configured weight scaled by an operator
// difficulty multiplier and a condition type weight. Passed conditions earn
// their full scaled weight; failed ones earn nothing. The component is the
// earned fraction of the scaled total, as 0-100.
func criteriaComponent(conditions []gate.ConditionResult) float64 {
	var earned, possible float64
	for _, cr := range conditions {
		w := cr.Weight
		if w <= 0 {
			w = 1
		}
		scaled := w * operatorMultiplier(cr.Operator) * typeWeight(cr.Type)
		possible += scaled
		if cr.Passed {
			earned += scaled
		}
	}
	if possible <= 0 {
		// No weighable conditions but the root still passed.
		return 100
	}
	return earned / possible * 100
}

// coverageComponent maps the evidence coverage ratio onto a piecewise score
// curve. The curve is generous at the top and steep at the bottom: meeting
// the expected coverage is a full score, while trace evidence earns little.
func coverageComponent(matchedFiles, relevantFiles int, expectedCoverage float64) float64 {
	if relevantFiles <= 0 || matchedFiles <= 0 {
		return 0
	}
	if expectedCoverage <= 0 {
		expectedCoverage = gate.DefaultExpectedCoverage
	}

	actual := float64(matchedFiles) / float64(relevantFiles)
	ratio := actual / expectedCoverage

	switch {
	case ratio >= 1:
		return 100
	case ratio >= 0.8:
		return 80 + (ratio-0.8)*100
	case ratio >= 0.5:
		return 50 + (ratio-0.5)*100
	case ratio >= 0.2:
		return 20 + (ratio-0.2)*100
	default:
		return ratio * 100
	}
}

// StatusFor derives the outcome classification from a score.
//
// Security gates PASS only at a perfect score and never WARN. Other gates
// PASS at or above their threshold, WARN within the half-threshold band
// below it, and FAIL under that.
func (c *Calculator) StatusFor(score float64, security bool, passThreshold float64) gate.Status {
	if security {
		if score >= gate.SecurityPassThreshold {
			return gate.StatusPass
		}
		return gate.StatusFail
	}
	if passThreshold <= 0 {
		passThreshold = gate.DefaultPassThreshold
	}
	switch {
	case score >= passThreshold:
		return gate.StatusPass
	case score >= passThreshold/2:
		return gate.StatusWarning
	default:
		return gate.StatusFail
	}
}

// Overall aggregates gate verdicts into a run-level score: the share of
// gates that passed or were not applicable, as 0-100.
func (c *Calculator) Overall(verdicts []gate.Verdict) float64 {
	if len(verdicts) == 0 {
		return 0
	}
	ok := 0
	for _, v := range verdicts {
		if v.Status == gate.StatusPass || v.Status == gate.StatusNotApplicable {
			ok++
		}
	}
	return float64(ok) / float64(len(verdicts)) * 100
}

func operatorMultiplier(op gate.Operator) float64 {
	switch op {
	case gate.OperatorOr:
		return multiplierOr
	case gate.OperatorNot:
		return multiplierNot
	default:
		return multiplierAnd
	}
}

func typeWeight(t gate.ConditionType) float64 {
	switch t {
	case gate.ConditionTypeFilePattern:
		return typeWeightFilePattern
	case gate.ConditionTypeNested:
		return typeWeightNested
	default:
		return typeWeightPattern
	}
}
