// Package watcher rebuilds the index when an indexed file or a watched
// directory changes.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"ragchat/internal/loader"
	"ragchat/internal/service"
)

const DefaultDebounce = 500 * time.Millisecond

// Builder is the part of the service the watcher drives.
type Builder interface {
	BuildIndex(ctx context.Context, paths []string) (service.BuildStats, error)
}

// Watcher watches the directories holding the indexed files and rebuilds
// once events have been quiet for the debounce interval. Directories are
// watched instead of files so editors that save by rename are still seen.
type Watcher struct {
	fs        *fsnotify.Watcher
	builder   Builder
	paths     []string
	files     map[string]struct{}
	roots     map[string]struct{}
	debounce  time.Duration
	log       *slog.Logger
	onRebuild func(service.BuildStats, error)
}

// New starts watching paths. A directory in paths is watched for supported
// files appearing in or leaving it. Rebuilds always re-index the full path
// list, so paths should be what the index was built from.
func New(builder Builder, paths []string, debounce time.Duration, log *slog.Logger) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("watch: no files to watch")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	w := &Watcher{
		fs:       fsw,
		builder:  builder,
		paths:    append([]string(nil), paths...),
		files:    make(map[string]struct{}, len(paths)),
		roots:    make(map[string]struct{}),
		debounce: debounce,
		log:      log,
	}
	dirs := map[string]struct{}{}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		if info, err := os.Stat(abs); err == nil && info.IsDir() {
			w.roots[abs] = struct{}{}
			dirs[abs] = struct{}{}
			continue
		}
		for _, f := range loader.ExpandPaths([]string{abs}) {
			w.files[f] = struct{}{}
			dirs[filepath.Dir(f)] = struct{}{}
		}
	}
	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			_ = fsw.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	return w, nil
}

// OnRebuild registers a callback invoked after every rebuild attempt.
func (w *Watcher) OnRebuild(fn func(service.BuildStats, error)) { w.onRebuild = fn }

// Run processes events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			w.log.Debug("indexed file changed", "path", ev.Name, "op", ev.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", "error", err)
		case <-fire:
			fire = nil
			w.rebuild(ctx)
		}
	}
}

func (w *Watcher) rebuild(ctx context.Context) {
	start := time.Now()
	stats, err := w.builder.BuildIndex(ctx, w.paths)
	if err != nil {
		w.log.Error("reindex failed", "error", err)
	} else {
		w.log.Info("reindexed", "files", stats.FilesIndexed, "chunks", stats.ChunksCreated, "took", time.Since(start))
	}
	if w.onRebuild != nil {
		w.onRebuild(stats, err)
	}
}

// relevant reports whether ev changes the content of an indexed file or the
// set of supported files in a watched directory.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return false
	}
	abs, err := filepath.Abs(ev.Name)
	if err != nil {
		return false
	}
	if _, ok := w.files[abs]; ok {
		return true
	}
	_, ok := w.roots[filepath.Dir(abs)]
	return ok && loader.Supported(abs)
}

// Close stops watching.
func (w *Watcher) Close() error { return w.fs.Close() }
