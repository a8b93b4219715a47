// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package inventory builds the engine's input: an ordered file set with
// language statistics, collected by walking a source tree once.
package inventory

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/AleutianAI/gatecheck/pkg/logging"
	"github.com/AleutianAI/gatecheck/services/gate"
)

// skipDirs are directory basenames never descended into.
var skipDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	"node_modules": true,
	"vendor":       true,
	".venv":        true,
	"venv":         true,
	"__pycache__":  true,
	"dist":         true,
	"build":        true,
	".idea":        true,
	".vscode":      true,
}

// lineCountLimit caps how much of a file is read when counting lines.
// Files larger than this report the count over the first portion only.
const lineCountLimit = 4 * 1024 * 1024

// Collect walks root and returns its inventory.
//
// # Description
//
// Walks the tree once, skipping VCS and dependency directories, classifying
// each regular file by language and role, and aggregating language
// statistics. Records are sorted by path so every downstream consumer sees
// a stable order. Unreadable files are logged and skipped, never fatal.
func Collect(ctx context.Context, root string) (*gate.Inventory, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	var files []gate.FileRecord
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			logging.Warn("skipping unreadable path", "path", path, "error", walkErr)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != absRoot && (skipDirs[d.Name()] || strings.HasPrefix(d.Name(), ".")) {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			logging.Warn("skipping unstattable file", "path", path, "error", err)
			return nil
		}

		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		category := classify(rel)
		lineCount := 0
		if category != gate.CategoryBinary {
			lineCount = countLines(path)
		}

		files = append(files, gate.FileRecord{
			Path:      rel,
			Language:  detectLanguage(rel),
			SizeBytes: info.Size(),
			LineCount: lineCount,
			Category:  category,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	return &gate.Inventory{
		Root:      absRoot,
		Files:     files,
		Languages: computeStats(files),
	}, nil
}

// computeStats aggregates language shares over non-binary files.
func computeStats(files []gate.FileRecord) gate.LanguageStats {
	counts := make(map[string]int)
	total := 0
	for _, f := range files {
		if f.Category == gate.CategoryBinary {
			continue
		}
		counts[f.Language]++
		total++
	}

	percentages := make(map[string]float64, len(counts))
	for lang, n := range counts {
		percentages[lang] = float64(n) / float64(total) * 100
	}

	return gate.LanguageStats{
		FileCounts:  counts,
		Percentages: percentages,
		TotalFiles:  total,
	}
}

// countLines counts newline-delimited lines in the first lineCountLimit
// bytes of the file. Returns 0 when the file cannot be read.
func countLines(path string) int {
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()

	lines := 0
	lastByte := byte('\n')
	buf := make([]byte, 64*1024)
	read := 0
	for read < lineCountLimit {
		n, err := f.Read(buf)
		if n > 0 {
			read += n
			lines += bytes.Count(buf[:n], []byte{'\n'})
			lastByte = buf[n-1]
		}
		if err != nil {
			if err != io.EOF {
				return lines
			}
			break
		}
	}
	// An unterminated final line still counts.
	if read > 0 && lastByte != '\n' {
		lines++
	}
	return lines
}
