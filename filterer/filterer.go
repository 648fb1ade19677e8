// Package filterer implements the Tagged Filterer: the central predicate
// engine that decides whether an incoming Event should reach the dispatcher.
// It composes the Ignore Sub-Filterer, the Compiled Glob Matcher, and the
// per-tag matchTag function behind a copy-on-write, read-mostly state held
// in swaplock cells, so CheckEvent never blocks on a writer.
package filterer

import (
	"path/filepath"

	"github.com/wardendev/watchloop/internal/event"
	"github.com/wardendev/watchloop/internal/filter"
	"github.com/wardendev/watchloop/internal/ignorefs"
	"github.com/wardendev/watchloop/internal/swaplock"
	"github.com/wardendev/watchloop/werr"
)

// Filterer is the tagged event filterer. The zero value is not usable; build
// one with New.
type Filterer struct {
	origin  string
	workdir string

	filters         *swaplock.Cell[map[filter.Matcher][]filter.Filter]
	ignoreFilterer  *swaplock.Cell[*ignorefs.IgnoreFilter]
	globCompiled    *swaplock.Cell[*filter.GlobSet]
	notGlobCompiled *swaplock.Cell[*filter.GlobSet]
}

// New builds a Filterer rooted at origin (the watched project directory,
// used to resolve absolute paths and scope ignore files) with workdir as the
// directory relative paths in filters are resolved against. Both are made
// absolute and cleaned; unlike the reference implementation this does not
// resolve symlinks, since the origin directory need not exist yet when a
// Filterer is constructed in tests.
func New(origin, workdir string) (*Filterer, error) {
	absOrigin, err := filepath.Abs(origin)
	if err != nil {
		return nil, &werr.IoError{About: "resolve origin", Err: err}
	}
	absWorkdir, err := filepath.Abs(workdir)
	if err != nil {
		return nil, &werr.IoError{About: "resolve workdir", Err: err}
	}
	return &Filterer{
		origin:          filepath.Clean(absOrigin),
		workdir:         filepath.Clean(absWorkdir),
		filters:         swaplock.New("filters", map[filter.Matcher][]filter.Filter{}),
		ignoreFilterer:  swaplock.New("ignore filterer", ignorefs.Empty()),
		globCompiled:    swaplock.New[*filter.GlobSet]("glob compiled", nil),
		notGlobCompiled: swaplock.New[*filter.GlobSet]("not-glob compiled", nil),
	}, nil
}

// AddFilters canonicalises and inserts filters, keyed by their Matcher
// dimension, then recompiles whichever compiled glob set(s) the new filters
// touch.
func (f *Filterer) AddFilters(filters []filter.Filter) error {
	recompileGlob, recompileNotGlob := false, false
	canon := make([]filter.Filter, 0, len(filters))
	for _, raw := range filters {
		switch raw.Op {
		case filter.OpGlob:
			recompileGlob = true
		case filter.OpNotGlob:
			recompileNotGlob = true
		}
		c, err := raw.Canonicalise()
		if err != nil {
			return err
		}
		canon = append(canon, c)
	}

	prev := f.filters.Borrow()
	next := make(map[filter.Matcher][]filter.Filter, len(prev))
	for m, fs := range prev {
		next[m] = append([]filter.Filter(nil), fs...)
	}
	for _, c := range canon {
		next[c.On] = append(next[c.On], c)
	}

	if err := f.filters.Replace(next); err != nil {
		return &werr.FilterChangeError{Action: "add", Err: err}
	}

	if recompileGlob {
		if err := f.recompileGlobs(filter.OpGlob); err != nil {
			return err
		}
	}
	if recompileNotGlob {
		if err := f.recompileGlobs(filter.OpNotGlob); err != nil {
			return err
		}
	}
	return nil
}

func (f *Filterer) recompileGlobs(op filter.Op) error {
	target := f.globCompiled
	if op == filter.OpNotGlob {
		target = f.notGlobCompiled
	}

	all := f.filters.Borrow()
	pathFilters := all[filter.MatcherPath]
	var relevant []filter.Filter
	for _, pf := range pathFilters {
		if pf.Op == op {
			relevant = append(relevant, pf)
		}
	}

	gs, err := filter.NewGlobSet(relevant, op, f.origin)
	if err != nil {
		return &werr.GlobParseError{Pattern: "", Err: err}
	}
	if err := target.Replace(gs); err != nil {
		return &werr.GlobsetChangeError{Err: err}
	}
	return nil
}

// AddIgnoreFile folds file into the ignore sub-filterer. It clones the
// current filter (cheap, copy-on-write) before mutating, so concurrent
// readers never see a partially-updated filter.
func (f *Filterer) AddIgnoreFile(file ignorefs.IgnoreFile) error {
	next := f.ignoreFilterer.Borrow().Clone()
	if err := next.AddFile(file); err != nil {
		return err
	}
	if err := f.ignoreFilterer.Replace(next); err != nil {
		return &werr.IgnoreSwapError{Err: err}
	}
	return nil
}

// ClearFilters removes every filter and recompiles both glob sets to empty,
// resetting the Filterer to its just-constructed state (ignore files are
// untouched).
func (f *Filterer) ClearFilters() error {
	if err := f.filters.Replace(map[filter.Matcher][]filter.Filter{}); err != nil {
		return &werr.FilterChangeError{Action: "clear all", Err: err}
	}
	if err := f.recompileGlobs(filter.OpGlob); err != nil {
		return err
	}
	if err := f.recompileGlobs(filter.OpNotGlob); err != nil {
		return err
	}
	return nil
}

// CheckEvent decides whether event passes the filterer: priority gate, then
// the ignore sub-filterer, then (if any filters exist) a per-tag,
// per-matcher reduction with negate-escape semantics. Urgent-priority events
// bypass every gate.
func (f *Filterer) CheckEvent(ev *event.Event, pri event.Priority) (bool, error) {
	if pri == event.PriorityUrgent {
		return true, nil
	}

	filters := f.filters.Borrow()

	if priFilters := filters[filter.MatcherPriority]; len(priFilters) > 0 {
		ok, err := reduce(priFilters, func(pf filter.Filter) (bool, error) {
			return pf.Matches(pri.String())
		})
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}

	if !f.ignoreFilterer.Borrow().CheckEvent(ev, pri) {
		return false, nil
	}

	if len(filters) == 0 {
		return true, nil
	}

	for _, tag := range ev.Tags {
		for _, matcher := range tagMatchers(tag) {
			tagFilters, ok := filters[matcher]
			if !ok || len(tagFilters) == 0 {
				continue
			}

			tagMatch := true

			if matcher == filter.MatcherPath && tag.Kind == event.TagPath {
				isDir := tag.FileType != nil && *tag.FileType == event.FileTypeDir
				tagMatch = f.applyCompiledGlobs(tag.Path, isDir, tagMatch)
			}

			residual := residualFilters(matcher, tag.Kind, tagFilters)
			if len(residual) == 0 {
				if !tagMatch {
					return false, nil
				}
				continue
			}

			for _, rf := range residual {
				applied, matched, err := matchTag(rf, tag, f.workdir, f.origin)
				if err != nil {
					return false, err
				}
				if !applied {
					continue
				}
				if rf.Negate {
					if matched {
						tagMatch = true
						break
					}
					continue
				}
				tagMatch = tagMatch && matched
			}

			if !tagMatch {
				return false, nil
			}
		}
	}

	return true, nil
}

// applyCompiledGlobs folds the two compiled glob sets' verdicts into the
// running tagMatch for a Path tag, per the Glob/NotGlob truth table: a Glob
// match passes, a Glob non-match (when any Glob filters exist) fails, a
// NotGlob match fails, and a NotGlob whitelist (negated line) forces a pass.
// An out-of-scope match never carries a verdict either way, for either
// polarity -- a filter scoped away from this path is inert here, not a
// failure.
func (f *Filterer) applyCompiledGlobs(path string, isDir bool, tagMatch bool) bool {
	if gc := f.globCompiled.Borrow(); gc != nil {
		switch res, _ := gc.Match(path, isDir, f.origin); res {
		case filter.MatchNone:
			tagMatch = false
		case filter.MatchIgnore:
			tagMatch = tagMatch && true
		case filter.MatchIgnoreOutOfScope, filter.MatchWhitelist:
			// no effect: out-of-scope ignore lines and whitelist lines
			// never veto a Glob-polarity match.
		}
	}

	if ngc := f.notGlobCompiled.Borrow(); ngc != nil {
		switch res, _ := ngc.Match(path, isDir, f.origin); res {
		case filter.MatchNone:
			tagMatch = tagMatch && true
		case filter.MatchIgnore:
			tagMatch = false
		case filter.MatchIgnoreOutOfScope:
			// no effect: the matching line's scope doesn't cover this path.
		case filter.MatchWhitelist:
			tagMatch = true
		}
	}

	return tagMatch
}

// residualFilters drops the Path/Glob and Path/NotGlob filters already
// folded into the compiled glob sets, so they are not double-applied
// through matchTag.
func residualFilters(matcher filter.Matcher, tagKind event.TagKind, fs []filter.Filter) []filter.Filter {
	if matcher != filter.MatcherPath || tagKind != event.TagPath {
		return fs
	}
	out := make([]filter.Filter, 0, len(fs))
	for _, f := range fs {
		if f.On == filter.MatcherPath && (f.Op == filter.OpGlob || f.Op == filter.OpNotGlob) {
			continue
		}
		out = append(out, f)
	}
	return out
}

// reduce applies the same AND-with-negate-escape reduction matchTag's
// caller uses for per-matcher filters, to a flat list of filters tested
// against a single precomputed subject (used for the priority gate, which
// has no tag to dispatch through).
func reduce(fs []filter.Filter, test func(filter.Filter) (bool, error)) (bool, error) {
	result := true
	for _, f := range fs {
		applies, err := test(f)
		if err != nil {
			return false, err
		}
		if f.Negate {
			if applies {
				return true, nil
			}
			continue
		}
		result = result && applies
	}
	return result, nil
}
