// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package gate defines the shared data model for the compliance gate
// evaluation engine: file inventory records, scan matches, criteria trees,
// gate definitions, and verdicts.
//
// The types in this package are passive data. The behavior lives in the
// subpackages: cache (compiled pattern cache), scan (file processing),
// criteria (boolean tree evaluation), score (scoring), and orchestrator
// (per-gate coordination and aggregation).
package gate

import "time"

// FileCategory classifies a file's role in the repository.
type FileCategory string

const (
	CategorySource        FileCategory = "source"
	CategoryTest          FileCategory = "test"
	CategoryConfiguration FileCategory = "configuration"
	CategoryDocumentation FileCategory = "documentation"
	CategoryBinary        FileCategory = "binary"
)

// FileRecord describes one file in the scanned tree.
//
// Records are produced once by the inventory collaborator and are read-only
// for the engine's lifetime. Paths are relative to the inventory root.
type FileRecord struct {
	// Path is the file path relative to the inventory root.
	Path string `json:"path"`

	// Language is the detected language (lowercase, e.g. "go", "yaml").
	Language string `json:"language"`

	// SizeBytes is the file size at inventory time.
	SizeBytes int64 `json:"size_bytes"`

	// LineCount is the number of lines at inventory time (0 for binaries).
	LineCount int `json:"line_count"`

	// Category is the file's role classification.
	Category FileCategory `json:"category"`
}

// LanguageStats aggregates per-language file counts for a tree.
type LanguageStats struct {
	// FileCounts maps language name to file count.
	FileCounts map[string]int `json:"file_counts"`

	// Percentages maps language name to its share of all files (0-100).
	Percentages map[string]float64 `json:"percentages"`

	// TotalFiles is the number of files covered by the statistics.
	TotalFiles int `json:"total_files"`
}

// Empty reports whether no language statistics exist at all.
//
// Relevance filtering fails open (uses the full file set) when true.
func (s LanguageStats) Empty() bool {
	return s.TotalFiles == 0 || len(s.Percentages) == 0
}

// Inventory is the engine's input: the ordered file set plus its
// aggregate language statistics.
type Inventory struct {
	// Root is the absolute path scanned files are resolved against.
	Root string `json:"root"`

	// Files is the ordered file list. Order is significant: match output
	// follows file-scan order.
	Files []FileRecord `json:"files"`

	// Languages holds aggregate language statistics.
	Languages LanguageStats `json:"languages"`
}

// Match is one piece of regex evidence found during a scan.
//
// Matches are created during scanning and never mutated afterward.
type Match struct {
	// Path is the matched file, relative to the inventory root.
	Path string `json:"path"`

	// Line is the 1-based line number. 0 for filename-level matches.
	Line int `json:"line"`

	// Text is the matched substring (truncated for very long matches).
	Text string `json:"text"`

	// Pattern is the originating pattern text.
	Pattern string `json:"pattern"`

	// Weight is the weight of the originating pattern.
	Weight float64 `json:"weight"`

	// Source tags the provenance of the match, typically the condition
	// name or "legacy" for the flat match-counting path.
	Source string `json:"source"`
}

// Status is the outcome classification of a gate evaluation.
type Status string

const (
	StatusPass          Status = "PASS"
	StatusFail          Status = "FAIL"
	StatusWarning       Status = "WARNING"
	StatusNotApplicable Status = "NOT_APPLICABLE"
)

// Applicability is the externally supplied decision whether a gate applies
// to the detected technology stack. The engine consumes it, never computes it.
type Applicability struct {
	// Applicable is false when the gate should short-circuit to
	// NOT_APPLICABLE without scanning.
	Applicable bool `json:"applicable"`

	// Reason is the human-readable explanation for the decision.
	Reason string `json:"reason"`
}

// Verdict is the engine's output for a single gate.
type Verdict struct {
	// Gate is the gate's display name.
	Gate string `json:"gate"`

	// Score is the 0-100 compliance score.
	Score float64 `json:"score"`

	// Status is derived purely from score, the gate's security flag,
	// and its pass threshold.
	Status Status `json:"status"`

	// Matches is the evidence that produced the score.
	Matches []Match `json:"matches,omitempty"`

	// Conditions holds per-condition results on the enhanced path.
	Conditions []ConditionResult `json:"conditions,omitempty"`

	// FilesConsidered is the size of the relevant file subset.
	FilesConsidered int `json:"files_considered"`

	// FilesMatched is the number of distinct files with evidence.
	FilesMatched int `json:"files_matched"`

	// Evidence is a human-readable note: the fixed string for
	// NOT_APPLICABLE gates, or the fallback reason when the enhanced
	// path failed and the legacy path was used instead.
	Evidence string `json:"evidence,omitempty"`

	// Duration is the wall time spent evaluating this gate.
	Duration time.Duration `json:"duration_ns"`
}
