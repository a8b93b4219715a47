// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("gatecheck.cache")

// Metrics for pattern cache operations.
var (
	cacheHits      metric.Int64Counter
	cacheMisses    metric.Int64Counter
	cacheEvictions metric.Int64Counter
	cacheCompiles  metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the meters. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		cacheHits, err = meter.Int64Counter(
			"pattern_cache_hits_total",
			metric.WithDescription("Total number of pattern cache hits"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cacheMisses, err = meter.Int64Counter(
			"pattern_cache_misses_total",
			metric.WithDescription("Total number of pattern cache misses"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cacheEvictions, err = meter.Int64Counter(
			"pattern_cache_evictions_total",
			metric.WithDescription("Total number of pattern cache evictions"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cacheCompiles, err = meter.Int64Counter(
			"pattern_cache_compiles_total",
			metric.WithDescription("Total number of pattern compilation attempts"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordHit() {
	if initMetrics() != nil {
		return
	}
	cacheHits.Add(context.Background(), 1)
}

func recordMiss() {
	if initMetrics() != nil {
		return
	}
	cacheMisses.Add(context.Background(), 1)
}

func recordEviction(memory bool) {
	if initMetrics() != nil {
		return
	}
	cacheEvictions.Add(context.Background(), 1,
		metric.WithAttributes(attribute.Bool("memory_pressure", memory)),
	)
}

func recordCompile(ok bool) {
	if initMetrics() != nil {
		return
	}
	cacheCompiles.Add(context.Background(), 1,
		metric.WithAttributes(attribute.Bool("ok", ok)),
	)
}
