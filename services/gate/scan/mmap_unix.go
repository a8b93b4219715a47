// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

//go:build unix

package scan

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/AleutianAI/gatecheck/services/gate"
)

// mmapSupported reports platform support for the memory-map strategy.
const mmapSupported = true

// scanMmap scans a large file through a read-only memory-mapped view.
//
// The mapping is scanned as a single unit, so line numbers come from one
// pass over the mapped bytes. Any mapping failure is returned to the caller,
// which falls back to the batch-streaming strategy.
func (p *Processor) scanMmap(f gate.FileRecord, state *runState) ([]gate.Match, error) {
	file, err := os.Open(p.abs(f))
	if err != nil {
		return nil, &gate.FileReadError{Path: f.Path, Err: err}
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, &gate.FileReadError{Path: f.Path, Err: err}
	}
	size := int(info.Size())
	if size == 0 {
		return nil, nil
	}

	data, err := unix.Mmap(int(file.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, &gate.FileReadError{Path: f.Path, Err: err}
	}
	defer func() { _ = unix.Munmap(data) }()

	if isBinary(data) {
		return nil, &gate.FileReadError{Path: f.Path, Err: errBinaryContent}
	}
	state.bytesScanned.Add(int64(size))

	return stampPath(matchUnit(data, 1, state, p.opts.PerFileCap), f.Path), nil
}
