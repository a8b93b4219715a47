// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package inventory

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/gatecheck/services/gate"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return dir
}

func TestCollect_BasicTree(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"main.go":           "package main\nfunc main() {}\n",
		"main_test.go":      "package main\n",
		"config.yaml":       "level: info\n",
		"README.md":         "# readme\n",
		"docs/guide.md":     "guide\n",
		"node_modules/x.js": "ignored\n",
		".git/HEAD":         "ref: refs/heads/main\n",
		"vendor/dep.go":     "package dep\n",
	})

	inv, err := Collect(context.Background(), dir)
	require.NoError(t, err)

	paths := make([]string, 0, len(inv.Files))
	for _, f := range inv.Files {
		paths = append(paths, f.Path)
	}

	assert.Contains(t, paths, "main.go")
	assert.Contains(t, paths, "main_test.go")
	assert.Contains(t, paths, "config.yaml")
	assert.NotContains(t, paths, "node_modules/x.js")
	assert.NotContains(t, paths, ".git/HEAD")
	assert.NotContains(t, paths, "vendor/dep.go")

	assert.True(t, sort.SliceIsSorted(inv.Files, func(i, j int) bool {
		return inv.Files[i].Path < inv.Files[j].Path
	}), "records must be sorted by path")
}

func TestCollect_Classification(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"main.go":       "package main\n",
		"main_test.go":  "package main\n",
		"tests/util.py": "import os\n",
		"config.yaml":   "a: 1\n",
		"Dockerfile":    "FROM scratch\n",
		"README.md":     "# readme\n",
		"logo.png":      "\x89PNG\r\n",
	})

	inv, err := Collect(context.Background(), dir)
	require.NoError(t, err)

	byPath := make(map[string]gate.FileRecord)
	for _, f := range inv.Files {
		byPath[f.Path] = f
	}

	assert.Equal(t, gate.CategorySource, byPath["main.go"].Category)
	assert.Equal(t, gate.CategoryTest, byPath["main_test.go"].Category)
	assert.Equal(t, gate.CategoryTest, byPath["tests/util.py"].Category)
	assert.Equal(t, gate.CategoryConfiguration, byPath["config.yaml"].Category)
	assert.Equal(t, gate.CategoryConfiguration, byPath["Dockerfile"].Category)
	assert.Equal(t, gate.CategoryDocumentation, byPath["README.md"].Category)
	assert.Equal(t, gate.CategoryBinary, byPath["logo.png"].Category)
}

func TestCollect_LanguageDetectionAndStats(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"a.go":   "package a\n",
		"b.go":   "package b\n",
		"c.py":   "pass\n",
		"d.yaml": "x: 1\n",
	})

	inv, err := Collect(context.Background(), dir)
	require.NoError(t, err)

	stats := inv.Languages
	assert.Equal(t, 4, stats.TotalFiles)
	assert.Equal(t, 2, stats.FileCounts["go"])
	assert.Equal(t, 1, stats.FileCounts["python"])
	assert.Equal(t, 1, stats.FileCounts["yaml"])
	assert.InDelta(t, 50.0, stats.Percentages["go"], 0.001)
	assert.False(t, stats.Empty())
}

func TestCollect_LineCounts(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"three.go":       "a\nb\nc\n",
		"no_trailing.go": "a\nb",
		"empty.go":       "",
	})

	inv, err := Collect(context.Background(), dir)
	require.NoError(t, err)

	byPath := make(map[string]gate.FileRecord)
	for _, f := range inv.Files {
		byPath[f.Path] = f
	}

	assert.Equal(t, 3, byPath["three.go"].LineCount)
	assert.Equal(t, 2, byPath["no_trailing.go"].LineCount, "unterminated final line counts")
	assert.Equal(t, 0, byPath["empty.go"].LineCount)
}

func TestCollect_EmptyDirectory(t *testing.T) {
	inv, err := Collect(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, inv.Files)
	assert.True(t, inv.Languages.Empty())
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"a/b/main.go", "go"},
		{"script.PY", "python"},
		{"app.tsx", "typescript"},
		{"Makefile", "makefile"},
		{"Dockerfile", "dockerfile"},
		{"mystery.xyz", "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, detectLanguage(tt.path), tt.path)
	}
}

func TestClassify_TestConventions(t *testing.T) {
	tests := []struct {
		path string
		want gate.FileCategory
	}{
		{"pkg/thing_test.go", gate.CategoryTest},
		{"src/test_util.py", gate.CategoryTest},
		{"src/app.spec.ts", gate.CategoryTest},
		{"__tests__/app.js", gate.CategoryTest},
		{"testdata/fixture.json", gate.CategoryTest},
		{"src/app.go", gate.CategorySource},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classify(tt.path), tt.path)
	}
}
