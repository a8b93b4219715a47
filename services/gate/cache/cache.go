// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cache provides the process-wide compiled pattern cache.
//
// The cache is the sole owner of compiled regular expressions: every other
// component holds pattern text and looks up the compiled form here, which is
// what makes cross-gate and cross-scan reuse possible.
package cache

import (
	"container/list"
	"regexp"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/AleutianAI/gatecheck/services/gate"
)

// Default configuration values.
const (
	// DefaultMaxEntries is the default entry-count ceiling.
	DefaultMaxEntries = 500

	// DefaultMaxMemoryBytes is the default approximate memory ceiling.
	DefaultMaxMemoryBytes = 100 * 1024 * 1024

	// DefaultMemoryCheckInterval is how many inserts pass between
	// re-estimations of total memory use. Memory is deliberately not
	// re-estimated per insert.
	DefaultMemoryCheckInterval = 64

	// countEvictFraction and memoryEvictFraction are the shares of
	// entries evicted when the respective ceiling is exceeded.
	countEvictFraction  = 0.10
	memoryEvictFraction = 0.20
)

// entry is one cached compiled pattern.
type entry struct {
	pattern string
	re      *regexp.Regexp
	bytes   int64
	elem    *list.Element
}

// PatternCache is a thread-safe LRU cache of compiled regular expressions.
//
// # Description
//
// Maps pattern text to its compiled form. Bounded by an entry-count ceiling
// and an approximate memory ceiling; exceeding either evicts a fraction of
// the least-recently-used entries. Every access promotes the entry.
//
// Construct one at startup and inject it into all consumers; it is an
// explicit service object with process-wide lifetime, not implicit global
// state.
//
// # Thread Safety
//
// Safe for concurrent readers and writers. Concurrent compilations of the
// same pattern are deduplicated with singleflight.
type PatternCache struct {
	mu      sync.Mutex
	entries map[string]*entry
	lru     *list.List
	flight  singleflight.Group
	opts    Options

	// insertsSinceCheck counts inserts since the last memory estimate.
	insertsSinceCheck int

	// estimatedBytes is the total from the last periodic re-estimation.
	estimatedBytes int64

	// Stats
	hits            int64
	misses          int64
	evictions       int64
	memoryEvictions int64
	compiles        int64
	compileFailures int64
}

// Options configures PatternCache behavior.
type Options struct {
	// MaxEntries is the entry-count ceiling.
	MaxEntries int

	// MaxMemoryBytes is the approximate memory ceiling. The accounting
	// is an estimate, not exact; see estimateBytes.
	MaxMemoryBytes int64

	// MemoryCheckInterval is the number of inserts between memory
	// re-estimations.
	MemoryCheckInterval int
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		MaxEntries:          DefaultMaxEntries,
		MaxMemoryBytes:      DefaultMaxMemoryBytes,
		MemoryCheckInterval: DefaultMemoryCheckInterval,
	}
}

// Option is a functional option for configuring PatternCache.
type Option func(*Options)

// WithMaxEntries sets the entry-count ceiling.
func WithMaxEntries(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxEntries = n
		}
	}
}

// WithMaxMemoryBytes sets the approximate memory ceiling (0 = unlimited).
func WithMaxMemoryBytes(n int64) Option {
	return func(o *Options) {
		if n >= 0 {
			o.MaxMemoryBytes = n
		}
	}
}

// WithMaxMemoryMB sets the approximate memory ceiling in megabytes.
func WithMaxMemoryMB(mb int) Option {
	return func(o *Options) {
		if mb >= 0 {
			o.MaxMemoryBytes = int64(mb) * 1024 * 1024
		}
	}
}

// WithMemoryCheckInterval sets the number of inserts between memory
// re-estimations.
func WithMemoryCheckInterval(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.MemoryCheckInterval = n
		}
	}
}

// New creates a PatternCache with the given options.
func New(opts ...Option) *PatternCache {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return &PatternCache{
		entries: make(map[string]*entry),
		lru:     list.New(),
		opts:    options,
	}
}

// GetCompiled returns the compiled form of the given pattern text.
//
// # Description
//
// On a hit the entry is promoted to most-recently-used. On a miss the
// pattern is compiled (deduplicated across concurrent callers) and
// inserted, evicting LRU entries if a ceiling is exceeded.
//
// # Outputs
//
//   - *regexp.Regexp: The compiled pattern.
//   - error: *gate.InvalidPatternError if the text does not compile.
//     Failed compilations are never cached; a later retry after caller-side
//     repair recompiles from scratch.
//
// # Thread Safety
//
// Safe for concurrent use.
func (c *PatternCache) GetCompiled(pattern string) (*regexp.Regexp, error) {
	c.mu.Lock()
	if e, ok := c.entries[pattern]; ok {
		c.lru.MoveToFront(e.elem)
		c.mu.Unlock()
		atomic.AddInt64(&c.hits, 1)
		recordHit()
		return e.re, nil
	}
	c.mu.Unlock()

	atomic.AddInt64(&c.misses, 1)
	recordMiss()

	// Only one compile per pattern text, even under concurrent misses.
	result, err, _ := c.flight.Do(pattern, func() (interface{}, error) {
		re, err := regexp.Compile(pattern)
		if err != nil {
			atomic.AddInt64(&c.compileFailures, 1)
			recordCompile(false)
			return nil, &gate.InvalidPatternError{Pattern: pattern, Err: err}
		}
		atomic.AddInt64(&c.compiles, 1)
		recordCompile(true)
		c.insert(pattern, re)
		return re, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*regexp.Regexp), nil
}

// PreCompile warms the cache with a batch of patterns.
//
// Returns how many compiled successfully and how many failed. Failures are
// counted, not returned: warm-up is best effort.
func (c *PatternCache) PreCompile(patterns []string) (ok, failed int) {
	for _, p := range patterns {
		if _, err := c.GetCompiled(p); err != nil {
			failed++
		} else {
			ok++
		}
	}
	return ok, failed
}

// insert adds a compiled pattern, enforcing both ceilings.
func (c *PatternCache) insert(pattern string, re *regexp.Regexp) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[pattern]; ok {
		return // Raced with another insert.
	}

	e := &entry{pattern: pattern, re: re, bytes: estimateBytes(pattern)}
	e.elem = c.lru.PushFront(pattern)
	c.entries[pattern] = e

	// Count ceiling: evict ~10% of capacity when exceeded.
	if len(c.entries) > c.opts.MaxEntries {
		n := int(float64(c.opts.MaxEntries) * countEvictFraction)
		if n < 1 {
			n = 1
		}
		c.evictLocked(n, false)
	}

	// Memory ceiling: re-estimated periodically, not per insert.
	c.insertsSinceCheck++
	if c.opts.MaxMemoryBytes > 0 && c.insertsSinceCheck >= c.opts.MemoryCheckInterval {
		c.insertsSinceCheck = 0
		c.estimatedBytes = c.estimateTotalLocked()
		if c.estimatedBytes > c.opts.MaxMemoryBytes {
			n := int(float64(len(c.entries)) * memoryEvictFraction)
			if n < 1 {
				n = 1
			}
			c.evictLocked(n, true)
			c.estimatedBytes = c.estimateTotalLocked()
		}
	}
}

// evictLocked removes up to n entries from the LRU tail.
// Caller must hold c.mu.
func (c *PatternCache) evictLocked(n int, memory bool) {
	for i := 0; i < n; i++ {
		back := c.lru.Back()
		if back == nil {
			return
		}
		pattern := back.Value.(string)
		c.lru.Remove(back)
		delete(c.entries, pattern)
		atomic.AddInt64(&c.evictions, 1)
		if memory {
			atomic.AddInt64(&c.memoryEvictions, 1)
		}
		recordEviction(memory)
	}
}

// estimateTotalLocked sums the per-entry estimates.
// Caller must hold c.mu.
func (c *PatternCache) estimateTotalLocked() int64 {
	var total int64
	for _, e := range c.entries {
		total += e.bytes
	}
	return total
}

// estimateBytes approximates the memory cost of one cached pattern.
//
// The compiled program's real size is not observable, so the estimate is a
// fixed base plus a multiple of the pattern text length. Actual usage differs
// with allocator overhead and the compiled program's shape.
func estimateBytes(pattern string) int64 {
	const (
		baseOverhead     = 1024
		bytesPerTextByte = 16
	)
	return baseOverhead + int64(len(pattern))*bytesPerTextByte
}

// Stats contains observable cache counters.
type Stats struct {
	// Entries is the current number of cached patterns.
	Entries int

	// Hits and Misses count lookups.
	Hits   int64
	Misses int64

	// Evictions counts all evictions; MemoryEvictions the subset caused
	// by memory pressure.
	Evictions       int64
	MemoryEvictions int64

	// Compiles and CompileFailures count compilation attempts.
	Compiles        int64
	CompileFailures int64

	// MaxEntries and MaxMemoryBytes echo the configured ceilings.
	MaxEntries     int
	MaxMemoryBytes int64

	// EstimatedBytes is the total from the last periodic re-estimation.
	// It is approximate and may lag recent inserts.
	EstimatedBytes int64
}

// HitRate returns the hit rate as a percentage.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// Stats returns a snapshot of the cache counters.
func (c *PatternCache) Stats() Stats {
	c.mu.Lock()
	entries := len(c.entries)
	estimated := c.estimatedBytes
	c.mu.Unlock()

	return Stats{
		Entries:         entries,
		Hits:            atomic.LoadInt64(&c.hits),
		Misses:          atomic.LoadInt64(&c.misses),
		Evictions:       atomic.LoadInt64(&c.evictions),
		MemoryEvictions: atomic.LoadInt64(&c.memoryEvictions),
		Compiles:        atomic.LoadInt64(&c.compiles),
		CompileFailures: atomic.LoadInt64(&c.compileFailures),
		MaxEntries:      c.opts.MaxEntries,
		MaxMemoryBytes:  c.opts.MaxMemoryBytes,
		EstimatedBytes:  estimated,
	}
}

// Clear removes all entries. Counters are preserved.
func (c *PatternCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
	c.lru.Init()
	c.estimatedBytes = 0
	c.insertsSinceCheck = 0
}
