// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package inventory

import (
	"path/filepath"
	"strings"

	"github.com/AleutianAI/gatecheck/services/gate"
)

// languageByExt maps file extensions to language names. Extensions are
// lowercase without the leading dot.
var languageByExt = map[string]string{
	"go":    "go",
	"py":    "python",
	"pyi":   "python",
	"js":    "javascript",
	"jsx":   "javascript",
	"mjs":   "javascript",
	"cjs":   "javascript",
	"ts":    "typescript",
	"tsx":   "typescript",
	"java":  "java",
	"kt":    "kotlin",
	"rb":    "ruby",
	"rs":    "rust",
	"c":     "c",
	"h":     "c",
	"cc":    "cpp",
	"cpp":   "cpp",
	"cxx":   "cpp",
	"hpp":   "cpp",
	"cs":    "csharp",
	"php":   "php",
	"swift": "swift",
	"scala": "scala",
	"sh":    "shell",
	"bash":  "shell",
	"zsh":   "shell",
	"sql":   "sql",
	"html":  "html",
	"htm":   "html",
	"css":   "css",
	"scss":  "css",
	"less":  "css",
	"vue":   "vue",
	"svelte": "svelte",
	"yaml":  "yaml",
	"yml":   "yaml",
	"json":  "json",
	"toml":  "toml",
	"ini":   "ini",
	"xml":   "xml",
	"proto": "protobuf",
	"tf":    "terraform",
	"md":    "markdown",
	"rst":   "markdown",
	"txt":   "text",
}

// configExts are extensions classified as configuration files.
var configExts = map[string]bool{
	"yaml": true, "yml": true, "json": true, "toml": true,
	"ini": true, "env": true, "conf": true, "cfg": true,
	"properties": true, "tf": true, "tfvars": true,
}

// docExts are extensions classified as documentation.
var docExts = map[string]bool{
	"md": true, "rst": true, "txt": true, "adoc": true,
}

// binaryExts are extensions classified as binary without content sniffing.
var binaryExts = map[string]bool{
	"png": true, "jpg": true, "jpeg": true, "gif": true, "ico": true,
	"pdf": true, "zip": true, "gz": true, "tar": true, "bz2": true,
	"so": true, "dll": true, "dylib": true, "exe": true, "bin": true,
	"wasm": true, "woff": true, "woff2": true, "ttf": true, "eot": true,
	"jar": true, "class": true, "pyc": true, "db": true, "sqlite": true,
}

// configBasenames are exact basenames classified as configuration even
// without a recognized extension.
var configBasenames = map[string]bool{
	"dockerfile": true, "makefile": true, "justfile": true,
	".gitignore": true, ".dockerignore": true, ".editorconfig": true,
	"go.mod": true, "go.sum": true, "package.json": true,
	"requirements.txt": true, "pyproject.toml": true, "cargo.toml": true,
}

// detectLanguage returns the language for a path, or "unknown".
func detectLanguage(path string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if lang, ok := languageByExt[ext]; ok {
		return lang
	}
	base := strings.ToLower(filepath.Base(path))
	if base == "dockerfile" || base == "makefile" {
		return base
	}
	return "unknown"
}

// classify assigns a file category from its path alone.
//
// Test detection covers the common per-ecosystem conventions: Go _test
// suffixes, test_/-test basename affixes, and test/tests/__tests__ path
// segments. Documentation wins over configuration for README-like names.
func classify(path string) gate.FileCategory {
	base := strings.ToLower(filepath.Base(path))
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))

	if binaryExts[ext] {
		return gate.CategoryBinary
	}
	if docExts[ext] || strings.HasPrefix(base, "readme") || strings.HasPrefix(base, "changelog") || strings.HasPrefix(base, "license") {
		return gate.CategoryDocumentation
	}
	if isTestPath(path, base) {
		return gate.CategoryTest
	}
	if configExts[ext] || configBasenames[base] {
		return gate.CategoryConfiguration
	}
	return gate.CategorySource
}

func isTestPath(path, base string) bool {
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if strings.HasSuffix(stem, "_test") || strings.HasSuffix(stem, ".test") ||
		strings.HasSuffix(stem, ".spec") || strings.HasPrefix(stem, "test_") {
		return true
	}
	normalized := strings.ReplaceAll(path, "\\", "/")
	for _, seg := range strings.Split(normalized, "/") {
		switch strings.ToLower(seg) {
		case "test", "tests", "__tests__", "testdata", "spec":
			return true
		}
	}
	return false
}
