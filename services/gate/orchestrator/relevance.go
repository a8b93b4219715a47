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
	"github.com/AleutianAI/gatecheck/services/gate"
)

// Relevance thresholds, as percentages of the inventory's file count.
// A language below its threshold is treated as incidental and its files
// are not scanned for the gate.
const (
	// primaryThreshold is the share a programming language needs to be
	// considered part of the project's stack.
	primaryThreshold = 5.0

	// configThreshold is the share a configuration language needs.
	// Config files are few even in heavily configured projects.
	configThreshold = 1.0

	// testingThresholdFactor relaxes the primary threshold for testing
	// gates: test code is a minority share of most trees.
	testingThresholdFactor = 0.8

	// testingFileFloor admits a language for testing gates on absolute
	// count alone, regardless of share.
	testingFileFloor = 5
)

// primaryLanguages are programming languages counted toward the primary
// stack.
var primaryLanguages = map[string]bool{
	"go": true, "python": true, "javascript": true, "typescript": true,
	"java": true, "kotlin": true, "ruby": true, "rust": true,
	"c": true, "cpp": true, "csharp": true, "php": true,
	"swift": true, "scala": true, "shell": true,
}

// configLanguages are configuration formats.
var configLanguages = map[string]bool{
	"yaml": true, "json": true, "toml": true, "ini": true,
	"terraform": true, "xml": true,
}

// webLanguages are frontend languages, relevant to UI gates.
var webLanguages = map[string]bool{
	"html": true, "css": true, "javascript": true, "typescript": true,
	"vue": true, "svelte": true,
}

// relevantFiles selects the file subset a gate of the given category should
// scan.
//
// Documentation and binary files are always excluded. When the inventory
// carries no language statistics the filter fails open and returns every
// scannable file, so a gate is never silenced by missing metadata.
func relevantFiles(inv *gate.Inventory, category gate.Category) []gate.FileRecord {
	scannable := make([]gate.FileRecord, 0, len(inv.Files))
	for _, f := range inv.Files {
		if f.Category == gate.CategoryDocumentation || f.Category == gate.CategoryBinary {
			continue
		}
		scannable = append(scannable, f)
	}

	if inv.Languages.Empty() {
		return scannable
	}

	active := activeLanguages(inv.Languages, category)
	if len(active) == 0 {
		return scannable
	}

	out := make([]gate.FileRecord, 0, len(scannable))
	for _, f := range scannable {
		if active[f.Language] {
			out = append(out, f)
		}
	}
	return out
}

// activeLanguages computes the language set a gate category cares about,
// thresholded against the inventory's language shares.
func activeLanguages(stats gate.LanguageStats, category gate.Category) map[string]bool {
	active := make(map[string]bool)

	switch category {
	case gate.CategoryLogging:
		addAbove(active, stats, primaryLanguages, primaryThreshold, 0)
		addAbove(active, stats, configLanguages, configThreshold, 0)
	case gate.CategoryUI:
		addAbove(active, stats, webLanguages, configThreshold, 0)
		addAbove(active, stats, primaryLanguages, primaryThreshold, 0)
	case gate.CategoryTesting:
		addAbove(active, stats, primaryLanguages, primaryThreshold*testingThresholdFactor, testingFileFloor)
	default:
		addAbove(active, stats, primaryLanguages, primaryThreshold, 0)
	}

	return active
}

// addAbove adds every language from the candidate set whose share meets the
// threshold, or whose absolute file count meets a non-zero floor.
func addAbove(active map[string]bool, stats gate.LanguageStats, candidates map[string]bool, threshold float64, floor int) {
	for lang := range candidates {
		if stats.Percentages[lang] >= threshold {
			active[lang] = true
			continue
		}
		if floor > 0 && stats.FileCounts[lang] >= floor {
			active[lang] = true
		}
	}
}
