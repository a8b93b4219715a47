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
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/AleutianAI/gatecheck/pkg/logging"
)

// DefaultDebounce is how long the watcher waits after the last filesystem
// event before signaling staleness. Editors and builds emit event bursts;
// one signal per burst is enough.
const DefaultDebounce = 2 * time.Second

// Watcher signals when a previously collected inventory has gone stale.
//
// # Thread Safety
//
// Stale() may be consumed from any goroutine. Close is idempotent only in
// the sense that double-closing returns the underlying watcher's error.
type Watcher struct {
	fw       *fsnotify.Watcher
	stale    chan struct{}
	done     chan struct{}
	debounce time.Duration
}

// Watch starts watching every directory of a collected tree.
//
// Only directories are registered; fsnotify reports file events for a
// watched directory's direct children. Skip rules mirror Collect's.
func Watch(root string, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := addDirs(fw, root); err != nil {
		_ = fw.Close()
		return nil, err
	}

	w := &Watcher{
		fw:       fw,
		stale:    make(chan struct{}, 1),
		done:     make(chan struct{}),
		debounce: debounce,
	}
	go w.run()
	return w, nil
}

// Stale returns a channel that receives one value per settled burst of
// filesystem changes under the watched root.
func (w *Watcher) Stale() <-chan struct{} {
	return w.stale
}

// Close stops the watcher and releases its OS resources.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fw.Close()
}

func (w *Watcher) run() {
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if skipDirs[filepath.Base(ev.Name)] {
				continue
			}
			// New directories need their own watch.
			if ev.Op.Has(fsnotify.Create) {
				if err := addDirs(w.fw, ev.Name); err != nil {
					logging.Debug("watch add failed", "path", ev.Name, "error", err)
				}
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			select {
			case w.stale <- struct{}{}:
			default: // Consumer is behind; one pending signal is enough.
			}
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			logging.Warn("filesystem watch error", "error", err)
		}
	}
}

// addDirs registers root and every non-skipped directory beneath it.
// Non-directory roots are ignored.
func addDirs(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		name := d.Name()
		if path != root && (skipDirs[name] || strings.HasPrefix(name, ".")) {
			return filepath.SkipDir
		}
		return fw.Add(path)
	})
}
