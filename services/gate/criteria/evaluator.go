// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package criteria evaluates boolean condition trees against a file set.
//
// The evaluator is a pure function of its inputs: the same tree over the
// same files and contents yields identical results on every call. All
// compiled patterns come from the shared pattern cache; all content matches
// come from the scan processor.
package criteria

import (
	"context"
	"errors"
	"path"
	"strings"

	"github.com/AleutianAI/gatecheck/services/gate"
	"github.com/AleutianAI/gatecheck/services/gate/cache"
	"github.com/AleutianAI/gatecheck/services/gate/scan"
)

// Evaluator evaluates criteria trees for one gate over one file set.
//
// # Thread Safety
//
// Safe for concurrent use; it retains no state between Evaluate calls.
type Evaluator struct {
	cache *cache.PatternCache
	proc  *scan.Processor
	files []gate.FileRecord
}

// NewEvaluator creates an Evaluator over the given relevance-filtered files.
func NewEvaluator(c *cache.PatternCache, p *scan.Processor, files []gate.FileRecord) *Evaluator {
	return &Evaluator{cache: c, proc: p, files: files}
}

// Evaluate evaluates a criteria tree.
//
// # Description
//
// Evaluates every condition in tree order, folds the condition-level
// pass/fail booleans with the tree's root operator, and returns the
// per-condition results plus all justifying matches.
//
// Invalid patterns are skipped per the error taxonomy: they drop out of a
// condition's aggregation instead of failing the gate. A condition whose
// patterns were all invalid fails for lack of evidence.
//
// # Outputs
//
//   - *gate.CriteriaResult: Root verdict, condition results, matches.
//   - error: Only the context's error; everything else is absorbed.
func (e *Evaluator) Evaluate(ctx context.Context, tree gate.CriteriaTree) (*gate.CriteriaResult, error) {
	return e.evaluateTree(ctx, tree)
}

func (e *Evaluator) evaluateTree(ctx context.Context, tree gate.CriteriaTree) (*gate.CriteriaResult, error) {
	result := &gate.CriteriaResult{
		Conditions: make([]gate.ConditionResult, 0, len(tree.Conditions)),
	}

	passed := make([]bool, 0, len(tree.Conditions))
	for _, cond := range tree.Conditions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		cr, err := e.evaluateCondition(ctx, cond)
		if err != nil {
			return nil, err
		}

		result.Conditions = append(result.Conditions, cr)
		result.Matches = append(result.Matches, cr.Matches...)
		result.TotalWeight += cr.Weight
		passed = append(passed, cr.Passed)
	}

	result.Passed = tree.Operator.Apply(passed)
	return result, nil
}

func (e *Evaluator) evaluateCondition(ctx context.Context, cond gate.Condition) (gate.ConditionResult, error) {
	switch c := cond.(type) {
	case *gate.PatternCondition:
		return e.evaluatePattern(ctx, c)
	case *gate.FilePatternCondition:
		return e.evaluateFilePattern(c)
	case *gate.NestedCriteriaCondition:
		return e.evaluateNested(ctx, c)
	default:
		// The union is closed; the loader rejects anything else.
		return gate.ConditionResult{}, &gate.ConfigurationError{
			Reason: "unknown condition type at evaluation time",
		}
	}
}

// evaluatePattern evaluates a content-pattern condition.
//
// Each listed pattern is scanned against its own candidate subset (narrowed
// by technology and file context), and the condition's operator folds the
// per-pattern "matched at least once" booleans.
func (e *Evaluator) evaluatePattern(ctx context.Context, c *gate.PatternCondition) (gate.ConditionResult, error) {
	result := gate.ConditionResult{
		Name:     c.Name,
		Type:     c.Type(),
		Operator: c.Operator,
		Weight:   c.Weight,
	}

	var passed []bool
	for _, spec := range c.Patterns {
		candidates := filterFiles(e.files, spec.Technologies, spec.FileContext)
		result.MaxPossible += len(candidates)

		re, err := e.cache.GetCompiled(spec.Pattern)
		if err != nil {
			var invalid *gate.InvalidPatternError
			if errors.As(err, &invalid) {
				continue // Skip the pattern, not the gate.
			}
			return result, err
		}

		scanned, err := e.proc.Process(ctx, candidates, []scan.Pattern{{
			Text:   spec.Pattern,
			Re:     re,
			Weight: spec.Weight,
			Source: c.Name,
		}})
		if err != nil {
			return result, err
		}

		result.Matches = append(result.Matches, scanned.Matches...)
		passed = append(passed, len(scanned.Matches) > 0)
	}

	result.Passed = c.Operator.Apply(passed)
	return result, nil
}

// evaluateFilePattern evaluates a filename condition. Matches are file
// basenames satisfying a filename regex, after removing files under any
// excluded directory substring.
func (e *Evaluator) evaluateFilePattern(c *gate.FilePatternCondition) (gate.ConditionResult, error) {
	result := gate.ConditionResult{
		Name:     c.Name,
		Type:     c.Type(),
		Operator: c.Operator,
		Weight:   c.Weight,
	}

	var passed []bool
	for _, spec := range c.Patterns {
		re, err := e.cache.GetCompiled(spec.Pattern)
		if err != nil {
			var invalid *gate.InvalidPatternError
			if errors.As(err, &invalid) {
				continue
			}
			return result, err
		}

		matched := false
		for _, f := range e.files {
			if underExcludedDir(f.Path, spec.ExcludeDirs) {
				continue
			}
			result.MaxPossible++
			base := path.Base(filepath(f.Path))
			if re.MatchString(base) {
				matched = true
				result.Matches = append(result.Matches, gate.Match{
					Path:    f.Path,
					Line:    0,
					Text:    base,
					Pattern: spec.Pattern,
					Weight:  spec.Weight,
					Source:  c.Name,
				})
			}
		}
		passed = append(passed, matched)
	}

	result.Passed = c.Operator.Apply(passed)
	return result, nil
}

// evaluateNested recursively evaluates an embedded tree; its boolean result
// and matches fold into the parent like a pattern condition's.
func (e *Evaluator) evaluateNested(ctx context.Context, c *gate.NestedCriteriaCondition) (gate.ConditionResult, error) {
	sub, err := e.evaluateTree(ctx, c.Tree)
	if err != nil {
		return gate.ConditionResult{}, err
	}

	maxPossible := 0
	for _, cr := range sub.Conditions {
		maxPossible += cr.MaxPossible
	}

	return gate.ConditionResult{
		Name:        c.Name,
		Type:        c.Type(),
		Operator:    c.Tree.Operator,
		Passed:      sub.Passed,
		Matches:     sub.Matches,
		Weight:      c.Weight,
		MaxPossible: maxPossible,
	}, nil
}

// filterFiles narrows the file set by technology (language or extension)
// and by file context (role).
func filterFiles(files []gate.FileRecord, technologies []string, fileContext string) []gate.FileRecord {
	wantCategory := contextCategory(fileContext)

	out := make([]gate.FileRecord, 0, len(files))
	for _, f := range files {
		if f.Category == gate.CategoryBinary {
			continue
		}
		if wantCategory != "" && f.Category != wantCategory {
			continue
		}
		if len(technologies) > 0 && !matchesTechnology(f, technologies) {
			continue
		}
		out = append(out, f)
	}
	return out
}

// contextCategory maps a file-context filter to a file category.
func contextCategory(fileContext string) gate.FileCategory {
	switch strings.ToLower(strings.TrimSpace(fileContext)) {
	case "test files", "test":
		return gate.CategoryTest
	case "configuration files", "configuration", "config":
		return gate.CategoryConfiguration
	case "source files", "source":
		return gate.CategorySource
	default:
		return ""
	}
}

// matchesTechnology reports whether a file matches any technology entry,
// by language name or by extension (with or without the leading dot).
func matchesTechnology(f gate.FileRecord, technologies []string) bool {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(filepath(f.Path)), "."))
	for _, t := range technologies {
		t = strings.ToLower(strings.TrimSpace(t))
		t = strings.TrimPrefix(t, ".")
		if t == "" {
			continue
		}
		if t == strings.ToLower(f.Language) || t == ext {
			return true
		}
	}
	return false
}

// underExcludedDir reports whether the path contains any excluded directory
// substring.
func underExcludedDir(p string, excludeDirs []string) bool {
	normalized := filepath(p)
	for _, dir := range excludeDirs {
		dir = strings.Trim(dir, "/")
		if dir == "" {
			continue
		}
		if strings.Contains(normalized, dir+"/") || strings.HasPrefix(normalized, dir+"/") {
			return true
		}
	}
	return false
}

// filepath normalizes OS path separators to forward slashes for matching.
func filepath(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}
