// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/AleutianAI/gatecheck/services/gate/orchestrator"
)

// render writes the report: a human-readable table on a terminal, JSON
// otherwise (or when forced).
func render(w io.Writer, report *orchestrator.Report, forceJSON bool) error {
	if forceJSON || !stdoutIsTerminal() {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	return renderTable(w, report)
}

func stdoutIsTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func renderTable(w io.Writer, report *orchestrator.Report) error {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "GATE\tSTATUS\tSCORE\tFILES\tEVIDENCE\n")
	for _, v := range report.Verdicts {
		fmt.Fprintf(tw, "%s\t%s\t%.1f\t%d/%d\t%s\n",
			v.Gate, v.Status, v.Score, v.FilesMatched, v.FilesConsidered, v.Evidence)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\noverall: %.1f  passed: %d  failed: %d  warning: %d  n/a: %d  (%s)\n",
		report.OverallScore,
		report.GatesPassed,
		report.GatesFailed,
		report.GatesWarning,
		report.GatesNotApplicable,
		report.Duration.Round(time.Millisecond),
	)
	return nil
}
