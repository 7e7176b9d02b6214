package watch

import (
	"context"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultSettle = 500 * time.Millisecond

// Watcher re-runs the pipeline when one of the input files changes.
type Watcher struct {
	paths   map[string]struct{}
	trigger func(ctx context.Context) error
	settle  time.Duration
}

// New watches the given files. trigger is called once per burst of changes.
func New(paths []string, trigger func(ctx context.Context) error) *Watcher {
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		set[filepath.Clean(p)] = struct{}{}
	}
	return &Watcher{paths: set, trigger: trigger, settle: defaultSettle}
}

// Start registers the parent directories and processes events until ctx is done.
// Directories are watched rather than files so editors that replace files are seen.
func (w *Watcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	dirs := make(map[string]struct{})
	for p := range w.paths {
		dirs[filepath.Dir(p)] = struct{}{}
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return err
		}
	}
	go w.loop(ctx, watcher)
	return nil
}

func (w *Watcher) loop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer watcher.Close()
	timer := time.NewTimer(w.settle)
	if !timer.Stop() {
		<-timer.C
	}
	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case evt, ok := <-watcher.Events:
			if !ok {
				return
			}
			if w.relevant(evt) {
				timer.Reset(w.settle)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("watch: error: %v", err)
		case <-timer.C:
			if err := w.trigger(ctx); err != nil {
				log.Printf("watch: rerun failed: %v", err)
			}
		}
	}
}

func (w *Watcher) relevant(evt fsnotify.Event) bool {
	if evt.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return false
	}
	_, ok := w.paths[filepath.Clean(evt.Name)]
	return ok
}
