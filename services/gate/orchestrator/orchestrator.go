// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package orchestrator coordinates a full evaluation run: applicability
// short-circuiting, relevance filtering, per-gate evaluation with fallback,
// and run-level aggregation.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/gatecheck/pkg/logging"
	"github.com/AleutianAI/gatecheck/services/gate"
	"github.com/AleutianAI/gatecheck/services/gate/cache"
	"github.com/AleutianAI/gatecheck/services/gate/criteria"
	"github.com/AleutianAI/gatecheck/services/gate/scan"
	"github.com/AleutianAI/gatecheck/services/gate/score"
)

var tracer = otel.Tracer("gatecheck.orchestrator")

// notApplicableEvidence is the fixed note attached to gates short-circuited
// by the applicability decision.
const notApplicableEvidence = "gate does not apply to the detected technology stack"

// Report is the output of one evaluation run.
type Report struct {
	// RunID uniquely identifies the run.
	RunID string `json:"run_id"`

	// Root is the evaluated tree's root path.
	Root string `json:"root"`

	// Verdicts holds one entry per gate, in definition order.
	Verdicts []gate.Verdict `json:"verdicts"`

	// OverallScore is the share of gates that passed or did not apply,
	// as 0-100.
	OverallScore float64 `json:"overall_score"`

	GatesPassed        int `json:"gates_passed"`
	GatesFailed        int `json:"gates_failed"`
	GatesWarning       int `json:"gates_warning"`
	GatesNotApplicable int `json:"gates_not_applicable"`

	// CacheStats snapshots the pattern cache at run end.
	CacheStats cache.Stats `json:"cache_stats"`

	// Duration is the wall time of the whole run.
	Duration time.Duration `json:"duration_ns"`
}

// Orchestrator runs gate evaluations over an inventory.
//
// # Thread Safety
//
// Safe for concurrent use. The pattern cache is shared across runs; all
// per-run state is local to EvaluateAll.
type Orchestrator struct {
	cache    *cache.PatternCache
	calc     *score.Calculator
	scanOpts []scan.Option

	// enhanced evaluates a gate's criteria tree. Replaceable in tests to
	// exercise the fallback path.
	enhanced func(ctx context.Context, ev *criteria.Evaluator, tree gate.CriteriaTree) (*gate.CriteriaResult, error)
}

// New creates an Orchestrator sharing the given pattern cache. The scan
// options are applied to every per-gate file processor.
func New(c *cache.PatternCache, scanOpts ...scan.Option) *Orchestrator {
	if c == nil {
		c = cache.New()
	}
	return &Orchestrator{
		cache:    c,
		calc:     score.NewCalculator(),
		scanOpts: scanOpts,
		enhanced: func(ctx context.Context, ev *criteria.Evaluator, tree gate.CriteriaTree) (*gate.CriteriaResult, error) {
			return ev.Evaluate(ctx, tree)
		},
	}
}

// EvaluateAll evaluates every gate against the inventory.
//
// # Description
//
// Definitions are normalized and validated up front; a broken definition
// fails the whole run before any file is read. Each gate then runs in
// definition order: applicability short-circuit, relevance filtering,
// enhanced or legacy scoring, and status derivation. A gate whose enhanced
// evaluation errors or panics falls back to the legacy path with the reason
// recorded on the verdict; one broken gate never aborts the run.
//
// # Inputs
//
//   - inv: The collected file inventory.
//   - defs: Gate definitions, already parsed.
//   - applicability: Per-gate applicability decisions keyed by gate name.
//     Gates absent from the map are treated as applicable.
//
// # Outputs
//
//   - *Report: Verdicts plus run-level aggregates.
//   - error: Configuration errors, or the context's error.
func (o *Orchestrator) EvaluateAll(ctx context.Context, inv *gate.Inventory, defs []gate.Definition, applicability map[string]gate.Applicability) (*Report, error) {
	start := time.Now()
	runID := uuid.NewString()

	ctx, span := tracer.Start(ctx, "orchestrator.EvaluateAll",
		oteltrace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.Int("gates.total", len(defs)),
			attribute.Int("files.total", len(inv.Files)),
		))
	defer span.End()

	for i := range defs {
		defs[i].Normalize()
		if err := defs[i].Validate(); err != nil {
			return nil, err
		}
	}

	// Warm the cache so gate evaluation order cannot affect which
	// patterns survive eviction pressure within a gate.
	for i := range defs {
		o.cache.PreCompile(defs[i].PatternTexts())
	}

	log := logging.With("run_id", runID)
	log.Info("evaluation run started", "gates", len(defs), "files", len(inv.Files), "root", inv.Root)

	report := &Report{
		RunID:    runID,
		Root:     inv.Root,
		Verdicts: make([]gate.Verdict, 0, len(defs)),
	}

	for i := range defs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		def := &defs[i]
		var app *gate.Applicability
		if a, ok := applicability[def.Name]; ok {
			app = &a
		}
		verdict := o.evaluateGate(ctx, inv, def, app)
		report.Verdicts = append(report.Verdicts, verdict)
		recordGate(ctx, &verdict)

		switch verdict.Status {
		case gate.StatusPass:
			report.GatesPassed++
		case gate.StatusWarning:
			report.GatesWarning++
		case gate.StatusNotApplicable:
			report.GatesNotApplicable++
		default:
			report.GatesFailed++
		}
	}

	report.OverallScore = o.calc.Overall(report.Verdicts)
	report.CacheStats = o.cache.Stats()
	report.Duration = time.Since(start)

	span.SetAttributes(attribute.Float64("run.overall_score", report.OverallScore))
	log.Info("evaluation run finished",
		"overall_score", report.OverallScore,
		"passed", report.GatesPassed,
		"failed", report.GatesFailed,
		"warning", report.GatesWarning,
		"not_applicable", report.GatesNotApplicable,
		"duration", report.Duration,
	)
	recordRun(ctx, report)

	return report, nil
}

// evaluateGate produces one gate's verdict. Never returns an error: every
// failure mode degrades to a scored verdict.
func (o *Orchestrator) evaluateGate(ctx context.Context, inv *gate.Inventory, def *gate.Definition, app *gate.Applicability) gate.Verdict {
	start := time.Now()

	ctx, span := tracer.Start(ctx, "orchestrator.evaluateGate",
		oteltrace.WithAttributes(attribute.String("gate.name", def.Name)))
	defer span.End()

	// A gate absent from the map (nil) is applicable; only an explicit
	// negative decision short-circuits.
	if app != nil && !app.Applicable {
		return gate.Verdict{
			Gate:     def.Name,
			Status:   gate.StatusNotApplicable,
			Evidence: notApplicableEvidence,
			Duration: time.Since(start),
		}
	}

	relevant := relevantFiles(inv, def.Category)
	verdict := gate.Verdict{
		Gate:            def.Name,
		FilesConsidered: len(relevant),
	}

	if def.Criteria != nil {
		result, err := o.runEnhanced(ctx, inv, def, relevant)
		if err == nil {
			verdict.Conditions = result.Conditions
			verdict.Matches = result.Matches
			verdict.FilesMatched = distinctFiles(result.Matches)
			verdict.Score = o.calc.Enhanced(def, result, verdict.FilesMatched, len(relevant))
			verdict.Status = o.calc.StatusFor(verdict.Score, def.Security, def.PassThreshold)
			verdict.Duration = time.Since(start)
			span.SetAttributes(attribute.Float64("gate.score", verdict.Score))
			return verdict
		}

		logging.Warn("enhanced evaluation failed, using legacy path",
			"gate", def.Name, "error", err)
		verdict.Evidence = fmt.Sprintf("enhanced evaluation failed (%v); legacy fallback used", err)
	}

	matches, matchedFiles := o.runLegacy(ctx, inv, def, relevant)
	verdict.Matches = matches
	verdict.FilesMatched = matchedFiles
	verdict.Score = o.calc.Legacy(matchedFiles, def.ExpectedMinFiles)
	verdict.Status = o.calc.StatusFor(verdict.Score, def.Security, def.PassThreshold)
	verdict.Duration = time.Since(start)
	span.SetAttributes(attribute.Float64("gate.score", verdict.Score))
	return verdict
}

// runEnhanced evaluates the gate's criteria tree, converting panics into
// errors so the caller can fall back.
func (o *Orchestrator) runEnhanced(ctx context.Context, inv *gate.Inventory, def *gate.Definition, relevant []gate.FileRecord) (result *gate.CriteriaResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &gate.GateEvaluationError{Gate: def.Name, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	proc := scan.NewProcessor(inv.Root, o.scanOpts...)
	ev := criteria.NewEvaluator(o.cache, proc, relevant)
	result, err = o.enhanced(ctx, ev, *def.Criteria)
	if err != nil {
		return nil, &gate.GateEvaluationError{Gate: def.Name, Err: err}
	}
	return result, nil
}

// runLegacy scans the gate's flat pattern list over the relevant files.
// Patterns that fail to compile are skipped; the gate scores on whatever
// evidence the valid patterns find.
func (o *Orchestrator) runLegacy(ctx context.Context, inv *gate.Inventory, def *gate.Definition, relevant []gate.FileRecord) ([]gate.Match, int) {
	texts := def.PatternTexts()
	patterns := make([]scan.Pattern, 0, len(texts))
	for _, text := range texts {
		re, err := o.cache.GetCompiled(text)
		if err != nil {
			logging.Warn("skipping invalid pattern", "gate", def.Name, "pattern", text, "error", err)
			continue
		}
		patterns = append(patterns, scan.Pattern{Text: text, Re: re, Weight: 1, Source: "legacy"})
	}
	if len(patterns) == 0 {
		return nil, 0
	}

	proc := scan.NewProcessor(inv.Root, o.scanOpts...)
	result, err := proc.Process(ctx, relevant, patterns)
	if err != nil {
		logging.Warn("legacy scan failed", "gate", def.Name, "error", err)
		return nil, 0
	}
	return result.Matches, distinctFiles(result.Matches)
}

// distinctFiles counts unique paths across the matches.
func distinctFiles(matches []gate.Match) int {
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		seen[m.Path] = struct{}{}
	}
	return len(seen)
}
