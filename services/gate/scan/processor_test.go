// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package scan

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/gatecheck/services/gate"
)

// writeFile creates a file under dir and returns its record.
func writeFile(t *testing.T, dir, name, content string) gate.FileRecord {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return gate.FileRecord{
		Path:      name,
		Language:  "go",
		SizeBytes: int64(len(content)),
		Category:  gate.CategorySource,
	}
}

func mustPattern(t *testing.T, text string) Pattern {
	t.Helper()
	return Pattern{Text: text, Re: regexp.MustCompile(text), Weight: 1, Source: "test"}
}

func TestProcess_WholeFileLineNumbers(t *testing.T) {
	dir := t.TempDir()
	f := writeFile(t, dir, "main.go", "package main\n\nfunc hit() {}\n\nfunc hit2() {}\n")

	p := NewProcessor(dir)
	result, err := p.Process(context.Background(), []gate.FileRecord{f}, []Pattern{mustPattern(t, `func hit`)})
	require.NoError(t, err)

	require.Len(t, result.Matches, 2)
	assert.Equal(t, 3, result.Matches[0].Line)
	assert.Equal(t, 5, result.Matches[1].Line)
	assert.Equal(t, "main.go", result.Matches[0].Path)
	assert.Equal(t, 1, result.FilesScanned)
	assert.Equal(t, 1, result.FilesWithMatches)
}

func TestProcess_ChunkedStrategyLineNumbers(t *testing.T) {
	dir := t.TempDir()

	// Force the chunked tier with tiny tiers and a chunk size smaller
	// than the file, so matches cross chunk boundaries.
	var sb strings.Builder
	for i := 1; i <= 400; i++ {
		if i%97 == 0 {
			sb.WriteString(fmt.Sprintf("line %d NEEDLE\n", i))
		} else {
			sb.WriteString(fmt.Sprintf("line %d padding padding padding\n", i))
		}
	}
	f := writeFile(t, dir, "big.go", sb.String())

	p := NewProcessor(dir,
		WithSizeTiers(64, 1024*1024, 10*1024*1024),
		WithChunkSize(256),
	)
	result, err := p.Process(context.Background(), []gate.FileRecord{f}, []Pattern{mustPattern(t, `NEEDLE`)})
	require.NoError(t, err)

	require.Len(t, result.Matches, 4)
	assert.Equal(t, 97, result.Matches[0].Line)
	assert.Equal(t, 194, result.Matches[1].Line)
	assert.Equal(t, 291, result.Matches[2].Line)
	assert.Equal(t, 388, result.Matches[3].Line)
}

func TestProcess_BatchedStrategyLineNumbers(t *testing.T) {
	dir := t.TempDir()

	var sb strings.Builder
	for i := 1; i <= 250; i++ {
		if i == 7 || i == 123 || i == 249 {
			sb.WriteString("target here\n")
		} else {
			sb.WriteString("nothing\n")
		}
	}
	f := writeFile(t, dir, "batched.go", sb.String())

	p := NewProcessor(dir,
		WithSizeTiers(16, 32, 10*1024*1024),
		WithBatchLines(50),
	)
	result, err := p.Process(context.Background(), []gate.FileRecord{f}, []Pattern{mustPattern(t, `target`)})
	require.NoError(t, err)

	require.Len(t, result.Matches, 3)
	assert.Equal(t, 7, result.Matches[0].Line)
	assert.Equal(t, 123, result.Matches[1].Line)
	assert.Equal(t, 249, result.Matches[2].Line)
}

func TestProcess_MmapTierFallsBackWhenDisabled(t *testing.T) {
	dir := t.TempDir()

	var sb strings.Builder
	for i := 1; i <= 100; i++ {
		sb.WriteString(fmt.Sprintf("row %d\n", i))
	}
	sb.WriteString("final NEEDLE\n")
	f := writeFile(t, dir, "huge.go", sb.String())

	// Tiny tiers put the file in the mmap tier; DisableMmap forces the
	// batch-streaming fallback. Results must be identical either way.
	p := NewProcessor(dir,
		WithSizeTiers(8, 16, 32),
		WithMmapDisabled(true),
	)
	result, err := p.Process(context.Background(), []gate.FileRecord{f}, []Pattern{mustPattern(t, `NEEDLE`)})
	require.NoError(t, err)

	require.Len(t, result.Matches, 1)
	assert.Equal(t, 101, result.Matches[0].Line)
}

func TestProcess_MmapTier(t *testing.T) {
	if !mmapSupported {
		t.Skip("platform has no mmap support")
	}
	dir := t.TempDir()

	var sb strings.Builder
	for i := 1; i <= 100; i++ {
		sb.WriteString(fmt.Sprintf("row %d\n", i))
	}
	sb.WriteString("final NEEDLE\n")
	f := writeFile(t, dir, "huge.go", sb.String())

	p := NewProcessor(dir, WithSizeTiers(8, 16, 32))
	result, err := p.Process(context.Background(), []gate.FileRecord{f}, []Pattern{mustPattern(t, `NEEDLE`)})
	require.NoError(t, err)

	require.Len(t, result.Matches, 1)
	assert.Equal(t, 101, result.Matches[0].Line)
}

func TestProcess_PerFileCap(t *testing.T) {
	dir := t.TempDir()

	var sb strings.Builder
	for i := 0; i < 20; i++ {
		sb.WriteString("match\n")
	}
	f := writeFile(t, dir, "many.go", sb.String())

	p := NewProcessor(dir, WithPerFileCap(5))
	result, err := p.Process(context.Background(), []gate.FileRecord{f}, []Pattern{mustPattern(t, `match`)})
	require.NoError(t, err)

	assert.Len(t, result.Matches, 5)
}

func TestProcess_RunBudgetStopsRecruitment(t *testing.T) {
	dir := t.TempDir()

	var files []gate.FileRecord
	for i := 0; i < 10; i++ {
		content := strings.Repeat("match\n", 10)
		files = append(files, writeFile(t, dir, fmt.Sprintf("f%d.go", i), content))
	}

	// One worker makes recruitment strictly sequential: the first file's
	// 10 matches exhaust the budget before the second file is enqueued.
	p := NewProcessor(dir, WithMaxWorkers(1), WithRunBudget(10))
	result, err := p.Process(context.Background(), files, []Pattern{mustPattern(t, `match`)})
	require.NoError(t, err)

	assert.Equal(t, 1, result.FilesScanned)
	assert.Len(t, result.Matches, 10)
	assert.True(t, result.Truncated)
}

func TestProcess_SkipsUnreadableAndBinaryFiles(t *testing.T) {
	dir := t.TempDir()

	good := writeFile(t, dir, "good.go", "match\n")
	binary := writeFile(t, dir, "blob.go", "hea\x00der\nmatch\n")
	missing := gate.FileRecord{Path: "gone.go", SizeBytes: 10}

	p := NewProcessor(dir)
	result, err := p.Process(context.Background(), []gate.FileRecord{good, binary, missing}, []Pattern{mustPattern(t, `match`)})
	require.NoError(t, err)

	assert.Equal(t, 1, result.FilesScanned)
	assert.Equal(t, 2, result.FilesSkipped)
	require.Len(t, result.Matches, 1)
	assert.Equal(t, "good.go", result.Matches[0].Path)
}

func TestProcess_PanickingPatternIsDisabled(t *testing.T) {
	dir := t.TempDir()
	files := []gate.FileRecord{
		writeFile(t, dir, "a.go", "match\n"),
		writeFile(t, dir, "b.go", "match\n"),
	}

	// A nil compiled form panics at match time; the run must disable it
	// and still report the healthy pattern's evidence.
	bad := Pattern{Text: "nil-re", Re: nil, Weight: 1, Source: "test"}
	good := mustPattern(t, `match`)

	p := NewProcessor(dir, WithMaxWorkers(1))
	result, err := p.Process(context.Background(), files, []Pattern{bad, good})
	require.NoError(t, err)

	assert.Len(t, result.Matches, 2)
	assert.GreaterOrEqual(t, result.PatternErrors, 1)
}

func TestProcess_DeterministicOrderAcrossWorkers(t *testing.T) {
	dir := t.TempDir()

	var files []gate.FileRecord
	for i := 0; i < 12; i++ {
		files = append(files, writeFile(t, dir, fmt.Sprintf("f%02d.go", i), fmt.Sprintf("match %02d\n", i)))
	}

	p := NewProcessor(dir, WithMaxWorkers(4))
	pattern := []Pattern{mustPattern(t, `match \d+`)}

	first, err := p.Process(context.Background(), files, pattern)
	require.NoError(t, err)

	for run := 0; run < 3; run++ {
		again, err := p.Process(context.Background(), files, pattern)
		require.NoError(t, err)
		require.Equal(t, len(first.Matches), len(again.Matches))
		for i := range first.Matches {
			assert.Equal(t, first.Matches[i].Path, again.Matches[i].Path)
			assert.Equal(t, first.Matches[i].Line, again.Matches[i].Line)
		}
	}

	// Order also follows the input file order.
	for i := 1; i < len(first.Matches); i++ {
		assert.LessOrEqual(t, first.Matches[i-1].Path, first.Matches[i].Path)
	}
}

func TestProcess_EmptyInputs(t *testing.T) {
	p := NewProcessor(t.TempDir())

	result, err := p.Process(context.Background(), nil, []Pattern{mustPattern(t, `x`)})
	require.NoError(t, err)
	assert.Empty(t, result.Matches)

	result, err = p.Process(context.Background(), []gate.FileRecord{{Path: "a.go"}}, nil)
	require.NoError(t, err)
	assert.Empty(t, result.Matches)
}

func TestProcess_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	f := writeFile(t, dir, "a.go", "match\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewProcessor(dir)
	_, err := p.Process(ctx, []gate.FileRecord{f}, []Pattern{mustPattern(t, `match`)})
	require.Error(t, err)
}

func TestMatchUnit_TruncatesLongMatchText(t *testing.T) {
	long := strings.Repeat("a", 500)
	state := &runState{
		patterns: []Pattern{{Text: "a+", Re: regexp.MustCompile(`a+`), Weight: 1}},
		disabled: make([]atomic.Bool, 1),
	}

	matches := matchUnit([]byte(long), 1, state, 10)
	require.Len(t, matches, 1)
	assert.Len(t, matches[0].Text, maxMatchTextLen)
}
