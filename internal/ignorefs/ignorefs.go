// Package ignorefs implements the Ignore Sub-Filterer: a synchronous,
// cheaply-cloneable predicate over gitignore-format exclusion files. It is
// consulted by the Tagged Filterer as an ignore gate ahead of any per-tag
// filter evaluation.
package ignorefs

import (
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/wardendev/watchloop/internal/event"
)

// IgnoreFile is a single loaded gitignore-format file, scoped to the
// directory it was found in (AppliesTo).
type IgnoreFile struct {
	Path      string
	AppliesTo string
	Lines     []string // raw, unparsed lines as read from Path
}

type compiledLine struct {
	pattern  string
	negate   bool
	dirOnly  bool
	anchored bool
	root     string
}

// IgnoreFilter is the live, queryable ignore state. Clone is cheap: it
// shares the underlying compiled-line slice until the clone is itself
// mutated via AddFile.
type IgnoreFilter struct {
	lines []compiledLine
}

// Empty returns an IgnoreFilter with no loaded files; every event passes.
func Empty() *IgnoreFilter {
	return &IgnoreFilter{}
}

// Clone returns a shallow, copy-on-write copy: until AddFile is called on
// the returned filter, it shares the same backing array as the original.
func (f *IgnoreFilter) Clone() *IgnoreFilter {
	return &IgnoreFilter{lines: f.lines}
}

// AddFile parses file and appends its compiled lines. It never fails at
// match time afterward, only at parse time (malformed glob syntax).
func (f *IgnoreFilter) AddFile(file IgnoreFile) error {
	compiled, err := compileLines(file.AppliesTo, file.Lines)
	if err != nil {
		return err
	}
	next := make([]compiledLine, 0, len(f.lines)+len(compiled))
	next = append(next, f.lines...)
	next = append(next, compiled...)
	f.lines = next
	return nil
}

// CheckEvent returns false iff any Path tag on the event is excluded by the
// loaded ignore files. Urgent-priority bypass is the caller's
// responsibility (the Tagged Filterer short-circuits before reaching here).
func (f *IgnoreFilter) CheckEvent(ev *event.Event, _ event.Priority) bool {
	if ev == nil || len(f.lines) == 0 {
		return true
	}
	for _, tag := range ev.Tags {
		if tag.Kind != event.TagPath {
			continue
		}
		isDir := tag.FileType != nil && *tag.FileType == event.FileTypeDir
		if f.isExcluded(tag.Path, isDir) {
			return false
		}
	}
	return true
}

func (f *IgnoreFilter) isExcluded(path string, isDir bool) bool {
	excluded := false
	for _, line := range f.lines {
		if line.dirOnly && !isDir {
			continue
		}
		rel, err := filepath.Rel(line.root, path)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		rel = filepath.ToSlash(rel)

		matched, _ := doublestar.Match(line.pattern, rel)
		if !matched && !line.anchored {
			matched, _ = doublestar.Match("**/"+line.pattern, rel)
			if !matched {
				matched, _ = doublestar.Match(line.pattern, filepath.Base(rel))
			}
		}
		if matched {
			excluded = !line.negate
		}
	}
	return excluded
}
