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

import "fmt"

// The engine's error taxonomy. Per-pattern and per-file errors are absorbed
// locally with counters; only per-gate and configuration errors are visible
// outside the engine, always attached to the gate they affected.

// InvalidPatternError reports pattern text that failed to compile.
//
// The pattern is skipped; the gate is not failed. Callers may attempt a
// best-effort repair and retry.
type InvalidPatternError struct {
	// Pattern is the offending pattern text.
	Pattern string

	// Err is the underlying compile error.
	Err error
}

func (e *InvalidPatternError) Error() string {
	return fmt.Sprintf("invalid pattern %q: %v", e.Pattern, e.Err)
}

func (e *InvalidPatternError) Unwrap() error { return e.Err }

// FileReadError reports a file that could not be read or decoded.
//
// The file is skipped and counted; scanning continues.
type FileReadError struct {
	// Path is the offending file.
	Path string

	// Err is the underlying read error.
	Err error
}

func (e *FileReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Path, e.Err)
}

func (e *FileReadError) Unwrap() error { return e.Err }

// GateEvaluationError reports a failure while evaluating one gate's
// criteria tree. The orchestrator catches it and falls back to the legacy
// path for that single gate; the run continues.
type GateEvaluationError struct {
	// Gate is the affected gate's name.
	Gate string

	// Err is the underlying failure.
	Err error
}

func (e *GateEvaluationError) Error() string {
	return fmt.Sprintf("evaluate gate %q: %v", e.Gate, e.Err)
}

func (e *GateEvaluationError) Unwrap() error { return e.Err }

// ConfigurationError reports a malformed gate definition.
//
// It is surfaced to the caller immediately: it indicates a programming or
// data error upstream, not a runtime condition.
type ConfigurationError struct {
	// Gate is the affected gate's name, if known.
	Gate string

	// Reason describes what is malformed.
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Gate == "" {
		return fmt.Sprintf("gate configuration: %s", e.Reason)
	}
	return fmt.Sprintf("gate %q configuration: %s", e.Gate, e.Reason)
}
