// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scan

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/AleutianAI/gatecheck/services/gate"
)

// sniffLen is how many leading bytes are inspected for binary content.
const sniffLen = 8 * 1024

// scanWhole reads the entire file at once and scans it as one unit.
// Used for small files (below the whole-file tier).
func (p *Processor) scanWhole(f gate.FileRecord, state *runState) ([]gate.Match, error) {
	data, err := os.ReadFile(p.abs(f))
	if err != nil {
		return nil, &gate.FileReadError{Path: f.Path, Err: err}
	}
	if isBinary(data) {
		return nil, &gate.FileReadError{Path: f.Path, Err: errBinaryContent}
	}
	state.bytesScanned.Add(int64(len(data)))

	return stampPath(matchUnit(data, 1, state, p.opts.PerFileCap), f.Path), nil
}

// scanChunked reads the file in fixed-size chunks, reconstructing complete
// lines across chunk boundaries before scanning. A partial trailing line is
// carried into the next chunk so no line is ever scanned split in two.
func (p *Processor) scanChunked(f gate.FileRecord, state *runState) ([]gate.Match, error) {
	file, err := os.Open(p.abs(f))
	if err != nil {
		return nil, &gate.FileReadError{Path: f.Path, Err: err}
	}
	defer file.Close()

	var (
		matches   []gate.Match
		carry     []byte
		baseLine  = 1
		remaining = p.opts.PerFileCap
		first     = true
	)
	buf := make([]byte, p.opts.ChunkSize)

	for remaining > 0 {
		n, readErr := io.ReadFull(file, buf)
		if n > 0 {
			chunk := buf[:n]
			if first {
				first = false
				if isBinary(chunk) {
					return nil, &gate.FileReadError{Path: f.Path, Err: errBinaryContent}
				}
			}
			combined := append(carry, chunk...)

			// Scan only up to the last complete line; the remainder
			// carries into the next chunk.
			segment := combined
			idx := bytes.LastIndexByte(combined, '\n')
			if idx >= 0 {
				segment = combined[:idx+1]
				carry = append([]byte(nil), combined[idx+1:]...)
			} else {
				segment = nil
				carry = combined
			}

			if len(segment) > 0 {
				state.bytesScanned.Add(int64(len(segment)))
				unit := matchUnit(segment, baseLine, state, remaining)
				remaining -= len(unit)
				matches = append(matches, unit...)
				baseLine += bytes.Count(segment, newline)
			}
		}
		if readErr != nil {
			break // io.EOF or io.ErrUnexpectedEOF end the loop.
		}
	}

	// Final partial line.
	if remaining > 0 && len(carry) > 0 {
		state.bytesScanned.Add(int64(len(carry)))
		matches = append(matches, matchUnit(carry, baseLine, state, remaining)...)
	}

	return stampPath(matches, f.Path), nil
}

// scanBatched reads lines in fixed-size batches and scans each batch as one
// unit, so patterns spanning a few lines still match. A running line offset
// keeps reported line numbers correct.
func (p *Processor) scanBatched(f gate.FileRecord, state *runState) ([]gate.Match, error) {
	file, err := os.Open(p.abs(f))
	if err != nil {
		return nil, &gate.FileReadError{Path: f.Path, Err: err}
	}
	defer file.Close()

	// Binary sniff before handing the file to the line scanner.
	sniff := make([]byte, sniffLen)
	n, _ := file.Read(sniff)
	if isBinary(sniff[:n]) {
		return nil, &gate.FileReadError{Path: f.Path, Err: errBinaryContent}
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, &gate.FileReadError{Path: f.Path, Err: err}
	}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var (
		matches   []gate.Match
		batch     [][]byte
		baseLine  = 1
		remaining = p.opts.PerFileCap
	)

	flush := func() {
		if len(batch) == 0 || remaining <= 0 {
			batch = batch[:0]
			return
		}
		unit := bytes.Join(batch, newline)
		state.bytesScanned.Add(int64(len(unit)))
		found := matchUnit(unit, baseLine, state, remaining)
		remaining -= len(found)
		matches = append(matches, found...)
		baseLine += len(batch)
		batch = batch[:0]
	}

	for scanner.Scan() {
		if remaining <= 0 {
			break
		}
		// Scanner reuses its buffer; batches outlive the next Scan call.
		line := append([]byte(nil), scanner.Bytes()...)
		batch = append(batch, line)
		if len(batch) >= p.opts.BatchLines {
			flush()
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		// Lines already scanned stay valid; the unread remainder is a
		// read failure.
		if len(matches) == 0 {
			return nil, &gate.FileReadError{Path: f.Path, Err: err}
		}
	}

	return stampPath(matches, f.Path), nil
}

// abs resolves a record's relative path against the processor root.
func (p *Processor) abs(f gate.FileRecord) string {
	if p.opts.Root == "" {
		return f.Path
	}
	return filepath.Join(p.opts.Root, f.Path)
}

// isBinary reports whether the leading bytes look like binary content.
// A NUL byte in the sniff window is the signal, matching what text editors
// and grep do.
func isBinary(data []byte) bool {
	if len(data) > sniffLen {
		data = data[:sniffLen]
	}
	return bytes.IndexByte(data, 0) >= 0
}

// errBinaryContent marks files skipped as undecodable.
var errBinaryContent = errBinary{}

type errBinary struct{}

func (errBinary) Error() string { return "binary content" }
