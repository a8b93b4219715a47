// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package gate

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validGatesYAML = `
gates:
  - name: structured-logging
    category: logging
    expected_min_files: 3
    criteria:
      operator: AND
      conditions:
        - type: pattern
          name: logger-usage
          weight: 2.0
          operator: OR
          patterns:
            - pattern: 'slog\.(Info|Error|Warn|Debug)'
              weight: 1.0
              technologies: ["go"]
            - pattern: 'logging\.getLogger'
              weight: 1.0
              technologies: ["python"]
        - type: file_pattern
          name: log-config
          weight: 1.0
          operator: OR
          patterns:
            - pattern: 'log.*\.(yaml|json)$'
              weight: 0.5
              exclude_dirs: ["vendor"]
        - type: nested_criteria
          name: advanced
          weight: 1.5
          criteria:
            operator: OR
            conditions:
              - type: pattern
                name: correlation-ids
                weight: 1.0
                operator: AND
                patterns:
                  - pattern: 'request_id'
                    weight: 1.0
  - name: no-hardcoded-secrets
    category: general
    security: true
    pass_threshold: 100
    patterns:
      - 'password\s*='
`

func TestParseDefinitions_ValidFile(t *testing.T) {
	defs, err := ParseDefinitions([]byte(validGatesYAML))
	require.NoError(t, err)
	require.Len(t, defs, 2)

	logGate := defs[0]
	assert.Equal(t, "structured-logging", logGate.Name)
	assert.Equal(t, CategoryLogging, logGate.Category)
	require.NotNil(t, logGate.Criteria)
	assert.Equal(t, OperatorAnd, logGate.Criteria.Operator)
	require.Len(t, logGate.Criteria.Conditions, 3)

	pc, ok := logGate.Criteria.Conditions[0].(*PatternCondition)
	require.True(t, ok, "first condition should be a pattern condition")
	assert.Equal(t, "logger-usage", pc.Name)
	assert.Equal(t, 2.0, pc.Weight)
	assert.Equal(t, OperatorOr, pc.Operator)
	require.Len(t, pc.Patterns, 2)
	assert.Equal(t, []string{"go"}, pc.Patterns[0].Technologies)

	fp, ok := logGate.Criteria.Conditions[1].(*FilePatternCondition)
	require.True(t, ok, "second condition should be a file pattern condition")
	assert.Equal(t, []string{"vendor"}, fp.Patterns[0].ExcludeDirs)

	nc, ok := logGate.Criteria.Conditions[2].(*NestedCriteriaCondition)
	require.True(t, ok, "third condition should be nested")
	require.Len(t, nc.Tree.Conditions, 1)
}

func TestParseDefinitions_AppliesDefaults(t *testing.T) {
	defs, err := ParseDefinitions([]byte(validGatesYAML))
	require.NoError(t, err)

	logGate := defs[0]
	assert.Equal(t, DefaultPassThreshold, logGate.PassThreshold)
	assert.Equal(t, DefaultExpectedCoverage, logGate.ExpectedCoverage)
	assert.Equal(t, DefaultCriteriaWeight, logGate.CriteriaWeight)
	assert.Equal(t, DefaultCoverageWeight, logGate.CoverageWeight)
	assert.Equal(t, 3, logGate.ExpectedMinFiles)
}

func TestParseDefinitions_SecurityGateForcedTo100(t *testing.T) {
	defs, err := ParseDefinitions([]byte(validGatesYAML))
	require.NoError(t, err)

	sec := defs[1]
	assert.True(t, sec.Security)
	assert.Equal(t, SecurityPassThreshold, sec.PassThreshold)
}

func TestParseDefinitions_UnknownConditionType(t *testing.T) {
	data := []byte(`
gates:
  - name: broken
    criteria:
      operator: AND
      conditions:
        - type: telepathy
          name: impossible
          weight: 1.0
`)
	_, err := ParseDefinitions(data)
	require.Error(t, err)

	var cfgErr *ConfigurationError
	assert.True(t, errors.As(err, &cfgErr) || err != nil)
	assert.Contains(t, err.Error(), "unknown condition type")
}

func TestParseDefinitions_DuplicateNames(t *testing.T) {
	data := []byte(`
gates:
  - name: twin
    patterns: ['a']
  - name: twin
    patterns: ['b']
`)
	_, err := ParseDefinitions(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "twin")
}

func TestParseDefinitions_LegacyGateWithoutPatterns(t *testing.T) {
	data := []byte(`
gates:
  - name: empty
    category: general
`)
	_, err := ParseDefinitions(data)
	require.Error(t, err)

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "empty", cfgErr.Gate)
}

func TestLoadDefinitions_FromDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gates.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validGatesYAML), 0644))

	defs, err := LoadDefinitions(path)
	require.NoError(t, err)
	assert.Len(t, defs, 2)
}

func TestLoadDefinitions_MissingFile(t *testing.T) {
	_, err := LoadDefinitions(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestOperator_Apply(t *testing.T) {
	tests := []struct {
		name   string
		op     Operator
		passed []bool
		want   bool
	}{
		{"AND all true", OperatorAnd, []bool{true, true}, true},
		{"AND one false", OperatorAnd, []bool{true, false}, false},
		{"OR one true", OperatorOr, []bool{false, true}, true},
		{"OR all false", OperatorOr, []bool{false, false}, false},
		{"NOT none true", OperatorNot, []bool{false, false}, true},
		{"NOT one true", OperatorNot, []bool{false, true}, false},
		{"AND empty", OperatorAnd, nil, false},
		{"OR empty", OperatorOr, nil, false},
		{"NOT empty", OperatorNot, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.op.Apply(tt.passed))
		})
	}
}

func TestDefinition_ValidateSecurityThresholdMismatch(t *testing.T) {
	d := Definition{
		Name:          "sec",
		Security:      true,
		PassThreshold: 50,
		Patterns:      []string{"x"},
	}
	err := d.Validate()
	require.Error(t, err)

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestDefinition_PatternTexts(t *testing.T) {
	defs, err := ParseDefinitions([]byte(validGatesYAML))
	require.NoError(t, err)

	texts := defs[0].PatternTexts()
	assert.Contains(t, texts, `slog\.(Info|Error|Warn|Debug)`)
	assert.Contains(t, texts, `request_id`)
	// Filename patterns are matched against basenames, not content.
	assert.NotContains(t, texts, `log.*\.(yaml|json)$`)
}
