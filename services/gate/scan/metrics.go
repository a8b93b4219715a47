// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scan

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("gatecheck.scan")

// Metrics for file processing.
var (
	filesScanned  metric.Int64Counter
	filesSkipped  metric.Int64Counter
	matchesFound  metric.Int64Counter
	patternErrors metric.Int64Counter
	bytesScanned  metric.Int64Counter
	scanDuration  metric.Float64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		filesScanned, err = meter.Int64Counter(
			"scan_files_total",
			metric.WithDescription("Total number of files scanned"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		filesSkipped, err = meter.Int64Counter(
			"scan_files_skipped_total",
			metric.WithDescription("Total number of unreadable or binary files skipped"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		matchesFound, err = meter.Int64Counter(
			"scan_matches_total",
			metric.WithDescription("Total number of pattern matches found"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		patternErrors, err = meter.Int64Counter(
			"scan_pattern_errors_total",
			metric.WithDescription("Total number of patterns disabled after raising at match time"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		bytesScanned, err = meter.Int64Counter(
			"scan_bytes_total",
			metric.WithDescription("Total content bytes scanned"),
			metric.WithUnit("By"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		scanDuration, err = meter.Float64Histogram(
			"scan_duration_seconds",
			metric.WithDescription("Duration of Process runs"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordScan records the aggregate counters for one Process run.
func recordScan(ctx context.Context, r *Result) {
	if initMetrics() != nil {
		return
	}
	filesScanned.Add(ctx, int64(r.FilesScanned))
	matchesFound.Add(ctx, int64(len(r.Matches)))
	bytesScanned.Add(ctx, r.BytesScanned)
	scanDuration.Record(ctx, r.Duration.Seconds())
}

func recordFileSkipped() {
	if initMetrics() != nil {
		return
	}
	filesSkipped.Add(context.Background(), 1)
}

func recordPatternError() {
	if initMetrics() != nil {
		return
	}
	patternErrors.Add(context.Background(), 1)
}
