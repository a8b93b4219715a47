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

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// definitionsFile is the top-level YAML document shape.
type definitionsFile struct {
	Gates []Definition `yaml:"gates"`
}

// LoadDefinitions loads gate definitions from a YAML file.
//
// # Description
//
// Parses, normalizes, and validates every gate. Unknown condition variants
// and malformed definitions are rejected with *ConfigurationError before any
// evaluation starts.
//
// # Inputs
//
//   - path: Path to the gates file (e.g. .gatecheck/gates.yml).
//
// # Outputs
//
//   - []Definition: Normalized, validated gate definitions.
//   - error: Non-nil if reading, parsing, or validation failed.
func LoadDefinitions(path string) ([]Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read gates file: %w", err)
	}
	return ParseDefinitions(data)
}

// ParseDefinitions parses gate definitions from YAML content.
func ParseDefinitions(data []byte) ([]Definition, error) {
	var file definitionsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, asConfigurationError(err)
	}

	if len(file.Gates) == 0 {
		return nil, &ConfigurationError{Reason: "gates file defines no gates"}
	}

	seen := make(map[string]bool, len(file.Gates))
	for i := range file.Gates {
		d := &file.Gates[i]
		d.Normalize()
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if seen[d.Name] {
			return nil, &ConfigurationError{Gate: d.Name, Reason: "duplicate gate name"}
		}
		seen[d.Name] = true
	}

	return file.Gates, nil
}

// asConfigurationError maps a YAML parse error to the taxonomy.
//
// yaml.v3 flattens errors returned from UnmarshalYAML into a *yaml.TypeError
// whose messages retain the original text but whose wrap chain is broken, so
// errors from the condition decoder are re-detected by message as a fallback.
func asConfigurationError(err error) error {
	var cfgErr *ConfigurationError
	if errors.As(err, &cfgErr) {
		return cfgErr
	}
	if strings.Contains(err.Error(), "unknown condition type") {
		return &ConfigurationError{Reason: strings.TrimSpace(err.Error())}
	}
	return fmt.Errorf("parse gates file: %w", err)
}
