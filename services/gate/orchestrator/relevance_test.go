// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AleutianAI/gatecheck/services/gate"
)

// statsFor builds LanguageStats from (language, count) pairs.
func statsFor(counts map[string]int) gate.LanguageStats {
	total := 0
	for _, n := range counts {
		total += n
	}
	percentages := make(map[string]float64)
	for lang, n := range counts {
		percentages[lang] = float64(n) / float64(total) * 100
	}
	return gate.LanguageStats{FileCounts: counts, Percentages: percentages, TotalFiles: total}
}

func TestRelevantFiles_ExcludesDocsAndBinaries(t *testing.T) {
	inv := &gate.Inventory{
		Files: []gate.FileRecord{
			{Path: "a.go", Language: "go", Category: gate.CategorySource},
			{Path: "README.md", Language: "markdown", Category: gate.CategoryDocumentation},
			{Path: "logo.png", Language: "unknown", Category: gate.CategoryBinary},
		},
		Languages: statsFor(map[string]int{"go": 1, "markdown": 1, "unknown": 1}),
	}

	got := relevantFiles(inv, gate.CategoryGeneral)
	assert.Len(t, got, 1)
	assert.Equal(t, "a.go", got[0].Path)
}

func TestRelevantFiles_FailsOpenWithoutStats(t *testing.T) {
	inv := &gate.Inventory{
		Files: []gate.FileRecord{
			{Path: "a.go", Language: "go", Category: gate.CategorySource},
			{Path: "b.rb", Language: "ruby", Category: gate.CategorySource},
			{Path: "README.md", Language: "markdown", Category: gate.CategoryDocumentation},
		},
	}

	got := relevantFiles(inv, gate.CategoryLogging)
	assert.Len(t, got, 2, "missing stats must not silence the gate, only docs are dropped")
}

func TestRelevantFiles_DropsIncidentalLanguages(t *testing.T) {
	// 97 go files and 3 ruby files: ruby is incidental at 3%.
	counts := map[string]int{"go": 97, "ruby": 3}
	files := []gate.FileRecord{
		{Path: "a.go", Language: "go", Category: gate.CategorySource},
		{Path: "hook.rb", Language: "ruby", Category: gate.CategorySource},
	}
	inv := &gate.Inventory{Files: files, Languages: statsFor(counts)}

	got := relevantFiles(inv, gate.CategoryGeneral)
	assert.Len(t, got, 1)
	assert.Equal(t, "a.go", got[0].Path)
}

func TestRelevantFiles_LoggingIncludesConfig(t *testing.T) {
	counts := map[string]int{"go": 90, "yaml": 10}
	files := []gate.FileRecord{
		{Path: "a.go", Language: "go", Category: gate.CategorySource},
		{Path: "log.yaml", Language: "yaml", Category: gate.CategoryConfiguration},
	}
	inv := &gate.Inventory{Files: files, Languages: statsFor(counts)}

	got := relevantFiles(inv, gate.CategoryLogging)
	assert.Len(t, got, 2, "logging gates scan configuration languages too")

	general := relevantFiles(inv, gate.CategoryGeneral)
	assert.Len(t, general, 1, "general gates do not include config languages")
}

func TestRelevantFiles_TestingFileFloor(t *testing.T) {
	// Go is only 4% by share but has 6 files, above the absolute floor.
	counts := map[string]int{"go": 6, "python": 144}
	files := []gate.FileRecord{
		{Path: "a_test.go", Language: "go", Category: gate.CategoryTest},
		{Path: "b.py", Language: "python", Category: gate.CategorySource},
	}
	inv := &gate.Inventory{Files: files, Languages: statsFor(counts)}

	got := relevantFiles(inv, gate.CategoryTesting)
	assert.Len(t, got, 2, "file floor admits minority test languages")
}

func TestRelevantFiles_UIIncludesWebLanguages(t *testing.T) {
	counts := map[string]int{"go": 60, "typescript": 30, "css": 10}
	files := []gate.FileRecord{
		{Path: "a.go", Language: "go", Category: gate.CategorySource},
		{Path: "app.tsx", Language: "typescript", Category: gate.CategorySource},
		{Path: "style.css", Language: "css", Category: gate.CategorySource},
	}
	inv := &gate.Inventory{Files: files, Languages: statsFor(counts)}

	got := relevantFiles(inv, gate.CategoryUI)
	assert.Len(t, got, 3)
}

func TestRelevantFiles_FailsOpenWhenNoLanguageQualifies(t *testing.T) {
	// Only unknown languages: the active set is empty, so the filter
	// falls back to every scannable file.
	counts := map[string]int{"unknown": 10}
	files := []gate.FileRecord{
		{Path: "weird.xyz", Language: "unknown", Category: gate.CategorySource},
	}
	inv := &gate.Inventory{Files: files, Languages: statsFor(counts)}

	got := relevantFiles(inv, gate.CategoryGeneral)
	assert.Len(t, got, 1)
}
