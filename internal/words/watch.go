/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package words

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDelay collects the burst of events a single save produces.
const reloadDelay = 250 * time.Millisecond

// WatchPool reloads the rotator's pool from path whenever the file changes,
// until ctx is done. A list that fails to parse leaves the current pool in
// place.
//
// The parent directory is watched rather than the file, since most editors
// save by writing a new file and renaming it over the old one.
func (r *Rotator) WatchPool(ctx context.Context, path string) error {
	path = filepath.Clean(path)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch word list: %w", err)
	}

	if err := w.Add(filepath.Dir(path)); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch word list: %w", err)
	}

	go r.watchLoop(ctx, w, path)

	return nil
}

func (r *Rotator) watchLoop(ctx context.Context, w *fsnotify.Watcher, path string) {
	defer w.Close()

	timer := time.NewTimer(reloadDelay)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(reloadDelay)

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			r.logf("WORDS: Word list watch error: %v", err)

		case <-timer.C:
			r.reload(path)
		}
	}
}

func (r *Rotator) reload(path string) {
	pool, err := LoadPool(path)
	if err == nil {
		err = r.SetPool(pool)
	}
	if err != nil {
		r.logf("WORDS: Keeping current word list, reload of %s failed: %v", path, err)
		return
	}

	r.logf("WORDS: Reloaded %d words from %s", len(pool), path)
}
