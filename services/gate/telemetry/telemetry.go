// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry wires the process's OpenTelemetry meters to a
// Prometheus registry.
//
// Every engine package registers its instruments lazily against the global
// meter provider. Without Setup the provider is a no-op and instrument
// calls cost almost nothing, so library consumers pay for metrics only
// when they opt in.
package telemetry

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Provider owns the metric pipeline created by Setup.
type Provider struct {
	mp *sdkmetric.MeterProvider
}

// Setup installs a Prometheus-backed global meter provider.
//
// # Inputs
//
//   - reg: The Prometheus registry metrics are exported through. A nil
//     registry uses a fresh one, which is only useful in tests.
//
// # Outputs
//
//   - *Provider: Handle for shutdown.
//   - error: Exporter construction failure.
func Setup(reg *prometheus.Registry) (*Provider, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, err
	}

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(mp)

	return &Provider{mp: mp}, nil
}

// Shutdown flushes and stops the metric pipeline.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.mp == nil {
		return nil
	}
	return p.mp.Shutdown(ctx)
}
