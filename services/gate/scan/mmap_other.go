// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

//go:build !unix

package scan

import "github.com/AleutianAI/gatecheck/services/gate"

// mmapSupported reports platform support for the memory-map strategy.
// Platforms without it use the batch-streaming strategy for large files.
const mmapSupported = false

func (p *Processor) scanMmap(f gate.FileRecord, state *runState) ([]gate.Match, error) {
	return p.scanBatched(f, state)
}
