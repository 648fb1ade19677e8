// Package fsevents is the filesystem watch source: it turns raw
// fsnotify.Event values into tagged dispatch.PriorityEvent values.
// Recursive directory registration walks a root with filepath.WalkDir and
// calls fsWatch.Add on every subdirectory, since fsnotify itself only
// watches one level.
package fsevents

import (
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/wardendev/watchloop/dispatch"
	"github.com/wardendev/watchloop/internal/event"
)

// Source watches one or more root directories and publishes a
// dispatch.PriorityEvent for every filesystem change beneath them, skipping
// directories that no longer exist by the time they're walked (a
// create/remove race, not a failure).
type Source struct {
	watch  *fsnotify.Watcher
	logger *slog.Logger

	mu          sync.Mutex
	watchedDirs map[string]struct{}
}

// New opens the underlying fsnotify.Watcher. Callers must call AddDir for
// every root they want watched before calling Run.
func New(logger *slog.Logger) (*Source, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Source{watch: w, logger: logger, watchedDirs: map[string]struct{}{}}, nil
}

// AddDir registers root and every subdirectory beneath it with the
// underlying watcher, skipping ones already registered.
func (s *Source) AddDir(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // race with concurrent deletion; not fatal
		}
		if !d.IsDir() {
			return nil
		}
		abs, aerr := filepath.Abs(path)
		if aerr != nil {
			abs = path
		}
		s.mu.Lock()
		_, already := s.watchedDirs[abs]
		s.mu.Unlock()
		if already {
			return nil
		}
		if err := s.watch.Add(path); err != nil {
			return err
		}
		s.mu.Lock()
		s.watchedDirs[abs] = struct{}{}
		s.mu.Unlock()
		return nil
	})
}

// Close stops the underlying watcher.
func (s *Source) Close() error {
	return s.watch.Close()
}

// Run forwards every fsnotify event as a Normal-priority PriorityEvent onto
// out until done is closed or the watcher closes. A newly-created directory is
// registered for watching on the fly, covering directories that appear
// after the initial walk.
func (s *Source) Run(out chan<- dispatch.PriorityEvent, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case ev, ok := <-s.watch.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Create) {
				if info, err := filepathStat(ev.Name); err == nil && info.IsDir() {
					_ = s.AddDir(ev.Name)
				}
			}
			pe := toPriorityEvent(ev)
			select {
			case out <- pe:
			case <-done:
				return
			}
		case err, ok := <-s.watch.Errors:
			if !ok {
				return
			}
			if s.logger != nil {
				s.logger.Warn("fsevents: watcher error", "err", err)
			}
		}
	}
}

func toPriorityEvent(ev fsnotify.Event) dispatch.PriorityEvent {
	ft := event.FileTypeFile
	if info, err := filepathStat(ev.Name); err == nil && info.IsDir() {
		ft = event.FileTypeDir
	}

	tags := []event.Tag{
		event.PathTag(ev.Name, &ft),
		event.FileEventKindTag(kindString(ev.Op)),
		event.SourceTag("filesystem"),
	}

	return dispatch.PriorityEvent{
		Event:    event.New(tags...),
		Priority: event.PriorityNormal,
	}
}

func kindString(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Create):
		return "Create"
	case op.Has(fsnotify.Write):
		return "Modify"
	case op.Has(fsnotify.Remove):
		return "Remove"
	case op.Has(fsnotify.Rename):
		return "Rename"
	case op.Has(fsnotify.Chmod):
		return "Chmod"
	default:
		return "Other"
	}
}

// filepathStat is a thin indirection point kept as a var so tests can stub
// filesystem access without touching a real disk.
var filepathStat = defaultStat
