// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scan executes regex matching against file contents.
//
// A Processor selects a scanning strategy per file by size, runs independent
// files through a bounded worker pool, and enforces per-file and whole-run
// match caps. Line numbers stay correct across all strategies.
package scan

import (
	"bytes"
	"context"
	"regexp"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/gatecheck/services/gate"
)

// Default processing limits.
const (
	// DefaultMaxWorkers bounds the scanning worker pool.
	DefaultMaxWorkers = 4

	// DefaultPerFileCap stops scanning a file for the current gate once
	// this many matches were found in it.
	DefaultPerFileCap = 50

	// DefaultRunBudget is the advisory whole-run match cap. Reaching it
	// stops recruiting additional files; a file already being scanned
	// always finishes its batch in progress.
	DefaultRunBudget = 500

	// DefaultWholeFileLimit: files below this are read and scanned at once.
	DefaultWholeFileLimit = 10 * 1024

	// DefaultChunkedLimit: files below this are read in fixed-size
	// chunks with line reconstruction across chunk boundaries.
	DefaultChunkedLimit = 1 * 1024 * 1024

	// DefaultMmapLimit: files at or above this use a read-only memory
	// map where the platform supports it, falling back to line batching.
	DefaultMmapLimit = 10 * 1024 * 1024

	// DefaultChunkSize is the read size for the chunked strategy.
	DefaultChunkSize = 64 * 1024

	// DefaultBatchLines is the batch size for the line-batched strategy.
	// Scanning a batch as one unit lets patterns span a few lines.
	DefaultBatchLines = 100

	// maxMatchTextLen truncates very long matched substrings.
	maxMatchTextLen = 200
)

// Pattern pairs pattern text with its compiled form.
//
// Compiled forms come from the pattern cache; the processor never compiles
// or stores them itself.
type Pattern struct {
	// Text is the regex source text.
	Text string

	// Re is the compiled form, owned by the pattern cache.
	Re *regexp.Regexp

	// Weight is carried onto every match the pattern produces.
	Weight float64

	// Source tags the provenance of matches (condition name, "legacy", ...).
	Source string
}

// Options configures a Processor.
type Options struct {
	// Root is the directory FileRecord paths are resolved against.
	Root string

	// MaxWorkers bounds the worker pool.
	MaxWorkers int

	// PerFileCap is the per-file, per-gate match cap.
	PerFileCap int

	// RunBudget is the advisory whole-run match cap.
	RunBudget int

	// WholeFileLimit, ChunkedLimit, and MmapLimit are the strategy
	// selection tiers (bytes).
	WholeFileLimit int64
	ChunkedLimit   int64
	MmapLimit      int64

	// ChunkSize is the read size for the chunked strategy.
	ChunkSize int

	// BatchLines is the batch size for the line-batched strategy.
	BatchLines int

	// DisableMmap forces the batch-streaming fallback for large files.
	DisableMmap bool
}

// DefaultOptions returns sensible defaults rooted at dir.
func DefaultOptions(dir string) Options {
	return Options{
		Root:           dir,
		MaxWorkers:     DefaultMaxWorkers,
		PerFileCap:     DefaultPerFileCap,
		RunBudget:      DefaultRunBudget,
		WholeFileLimit: DefaultWholeFileLimit,
		ChunkedLimit:   DefaultChunkedLimit,
		MmapLimit:      DefaultMmapLimit,
		ChunkSize:      DefaultChunkSize,
		BatchLines:     DefaultBatchLines,
	}
}

// Option is a functional option for configuring a Processor.
type Option func(*Options)

// WithMaxWorkers sets the worker pool bound.
func WithMaxWorkers(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxWorkers = n
		}
	}
}

// WithPerFileCap sets the per-file, per-gate match cap.
func WithPerFileCap(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.PerFileCap = n
		}
	}
}

// WithRunBudget sets the advisory whole-run match cap.
func WithRunBudget(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.RunBudget = n
		}
	}
}

// WithSizeTiers sets the strategy selection thresholds.
func WithSizeTiers(wholeFile, chunked, mmap int64) Option {
	return func(o *Options) {
		if wholeFile > 0 {
			o.WholeFileLimit = wholeFile
		}
		if chunked > 0 {
			o.ChunkedLimit = chunked
		}
		if mmap > 0 {
			o.MmapLimit = mmap
		}
	}
}

// WithChunkSize sets the chunked strategy's read size.
func WithChunkSize(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.ChunkSize = n
		}
	}
}

// WithBatchLines sets the line-batched strategy's batch size.
func WithBatchLines(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.BatchLines = n
		}
	}
}

// WithMmapDisabled forces the batch-streaming fallback for large files.
func WithMmapDisabled(disabled bool) Option {
	return func(o *Options) {
		o.DisableMmap = disabled
	}
}

// Processor scans files for regex evidence.
//
// # Thread Safety
//
// Safe for concurrent use; every Process call carries its own run state.
type Processor struct {
	opts Options
}

// NewProcessor creates a Processor rooted at dir.
func NewProcessor(dir string, opts ...Option) *Processor {
	options := DefaultOptions(dir)
	for _, opt := range opts {
		opt(&options)
	}
	return &Processor{opts: options}
}

// Result aggregates one Process run.
type Result struct {
	// Matches is the evidence, in file-scan order and by position
	// within each file.
	Matches []gate.Match

	// FilesScanned is the number of files actually scanned.
	FilesScanned int

	// FilesSkipped counts unreadable or undecodable files.
	FilesSkipped int

	// FilesWithMatches is the number of distinct files with evidence.
	FilesWithMatches int

	// PatternErrors counts patterns disabled after raising at match time.
	PatternErrors int

	// BytesScanned is the total content volume scanned.
	BytesScanned int64

	// Truncated reports that the run budget stopped file recruitment.
	Truncated bool

	// Duration is the wall time of the run.
	Duration time.Duration
}

// runState is the mutable state shared by one Process call's workers.
//
// Workers share only the read-only patterns and these counters; per-file
// match slices are indexed by file position, so no two workers write the
// same slot.
type runState struct {
	patterns []Pattern
	disabled []atomic.Bool // patterns that raised at match time
	total    atomic.Int64  // matches so far, for the run budget

	patternErrors atomic.Int64
	bytesScanned  atomic.Int64
	truncated     atomic.Bool
}

// Process scans the given files with the given patterns.
//
// # Description
//
// Files must already be filtered for relevance. Strategy selection is by
// the size recorded in each FileRecord. Independent files are scanned
// concurrently through a bounded worker pool; results are flattened in
// file order, so output is deterministic for a fixed file order.
//
// # Inputs
//
//   - ctx: Cancellation is honored between files, not mid-file.
//   - files: Relevance-filtered records, in scan order.
//   - patterns: Compiled patterns for one gate.
//
// # Outputs
//
//   - *Result: Matches plus processing counters. Per-file and per-pattern
//     failures are absorbed into counters, never returned.
//   - error: Only the context's error, when cancelled before completion.
func (p *Processor) Process(ctx context.Context, files []gate.FileRecord, patterns []Pattern) (*Result, error) {
	start := time.Now()
	result := &Result{}
	if len(files) == 0 || len(patterns) == 0 {
		result.Duration = time.Since(start)
		return result, nil
	}

	state := &runState{
		patterns: patterns,
		disabled: make([]atomic.Bool, len(patterns)),
	}

	perFile := make([][]gate.Match, len(files))
	var skipped, scanned atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.MaxWorkers)

	for i := range files {
		if gctx.Err() != nil {
			break
		}
		// Advisory run budget: stop recruiting additional files. Files
		// already in flight finish their current batch regardless.
		if state.total.Load() >= int64(p.opts.RunBudget) {
			result.Truncated = true
			break
		}

		i := i
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			// Recheck the budget at start time: with a small worker
			// limit a file can be enqueued before an earlier file's
			// matches land in the counter.
			if state.total.Load() >= int64(p.opts.RunBudget) {
				state.truncated.Store(true)
				return nil
			}
			matches, err := p.scanFile(files[i], state)
			if err != nil {
				skipped.Add(1)
				recordFileSkipped()
				return nil // Absorbed: unreadable files are never fatal.
			}
			scanned.Add(1)
			perFile[i] = matches
			state.total.Add(int64(len(matches)))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, matches := range perFile {
		if len(matches) > 0 {
			result.FilesWithMatches++
		}
		result.Matches = append(result.Matches, matches...)
	}
	if state.truncated.Load() {
		result.Truncated = true
	}
	result.FilesScanned = int(scanned.Load())
	result.FilesSkipped = int(skipped.Load())
	result.PatternErrors = int(state.patternErrors.Load())
	result.BytesScanned = state.bytesScanned.Load()
	result.Duration = time.Since(start)

	recordScan(ctx, result)
	return result, nil
}

// scanFile selects a strategy by file size and runs it.
func (p *Processor) scanFile(f gate.FileRecord, state *runState) ([]gate.Match, error) {
	switch {
	case f.SizeBytes < p.opts.WholeFileLimit:
		return p.scanWhole(f, state)
	case f.SizeBytes < p.opts.ChunkedLimit:
		return p.scanChunked(f, state)
	case f.SizeBytes < p.opts.MmapLimit:
		return p.scanBatched(f, state)
	default:
		if p.opts.DisableMmap || !mmapSupported {
			return p.scanBatched(f, state)
		}
		matches, err := p.scanMmap(f, state)
		if err != nil {
			// Mapping failed; the batch strategy reads the same bytes.
			return p.scanBatched(f, state)
		}
		return matches, nil
	}
}

// matchUnit scans one unit of content (whole file, chunk segment, or line
// batch) with every enabled pattern.
//
// baseLine is the 1-based line number of the unit's first line. remaining
// is the file's remaining per-file match allowance; matchUnit never returns
// more than that. Matches are ordered by offset within the unit.
//
// A pattern that panics at match time is disabled for the remainder of the
// run and counted; other patterns and files are unaffected.
func matchUnit(content []byte, baseLine int, state *runState, remaining int) []gate.Match {
	if remaining <= 0 || len(content) == 0 {
		return nil
	}

	type rawMatch struct {
		start, end int
		pattern    int
	}
	var raw []rawMatch

	for pi := range state.patterns {
		if state.disabled[pi].Load() {
			continue
		}
		locs := findAll(&state.patterns[pi], content, func() {
			state.disabled[pi].Store(true)
			state.patternErrors.Add(1)
			recordPatternError()
		})
		for _, loc := range locs {
			raw = append(raw, rawMatch{start: loc[0], end: loc[1], pattern: pi})
		}
	}

	if len(raw) == 0 {
		return nil
	}

	// Order by position within the unit, then cap.
	sort.Slice(raw, func(i, j int) bool { return raw[i].start < raw[j].start })
	if len(raw) > remaining {
		raw = raw[:remaining]
	}

	matches := make([]gate.Match, 0, len(raw))
	line := baseLine
	prev := 0
	for _, m := range raw {
		line += bytes.Count(content[prev:m.start], newline)
		prev = m.start

		end := m.end
		if end-m.start > maxMatchTextLen {
			end = m.start + maxMatchTextLen
		}
		text := string(content[m.start:end])
		pat := &state.patterns[m.pattern]
		matches = append(matches, gate.Match{
			Line:    line,
			Text:    text,
			Pattern: pat.Text,
			Weight:  pat.Weight,
			Source:  pat.Source,
		})
	}
	return matches
}

var newline = []byte{'\n'}

// findAll runs one pattern over content, converting a panic into a
// disable-and-continue via onPanic.
func findAll(p *Pattern, content []byte, onPanic func()) (locs [][]int) {
	defer func() {
		if r := recover(); r != nil {
			onPanic()
			locs = nil
		}
	}()
	return p.Re.FindAllIndex(content, -1)
}

// stampPath sets the file path on a slice of matches.
func stampPath(matches []gate.Match, path string) []gate.Match {
	for i := range matches {
		matches[i].Path = path
	}
	return matches
}
