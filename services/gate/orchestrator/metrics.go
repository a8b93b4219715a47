// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package orchestrator

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/AleutianAI/gatecheck/services/gate"
)

var meter = otel.Meter("gatecheck.orchestrator")

// Metrics for evaluation runs.
var (
	gatesEvaluated metric.Int64Counter
	gateScores     metric.Float64Histogram
	runDuration    metric.Float64Histogram
	runScores      metric.Float64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		gatesEvaluated, err = meter.Int64Counter(
			"gates_evaluated_total",
			metric.WithDescription("Total number of gates evaluated, by status"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		gateScores, err = meter.Float64Histogram(
			"gate_score",
			metric.WithDescription("Distribution of per-gate compliance scores"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		runDuration, err = meter.Float64Histogram(
			"run_duration_seconds",
			metric.WithDescription("Duration of full evaluation runs"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		runScores, err = meter.Float64Histogram(
			"run_overall_score",
			metric.WithDescription("Distribution of run-level overall scores"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordGate records one gate verdict.
func recordGate(ctx context.Context, v *gate.Verdict) {
	if initMetrics() != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("status", string(v.Status)))
	gatesEvaluated.Add(ctx, 1, attrs)
	if v.Status != gate.StatusNotApplicable {
		gateScores.Record(ctx, v.Score)
	}
}

// recordRun records run-level aggregates.
func recordRun(ctx context.Context, r *Report) {
	if initMetrics() != nil {
		return
	}
	runDuration.Record(ctx, r.Duration.Seconds())
	runScores.Record(ctx, r.OverallScore)
}
