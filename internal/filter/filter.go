// Package filter implements the Filter Record: a single user-specified
// predicate over one dimension of an event, plus its canonicalisation and
// matching rules. It also hosts the Compiled Glob Matcher (globset.go) that
// batches all Path-glob filters of one polarity into a single gitignore-
// style matcher.
package filter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/wardendev/watchloop/werr"
)

// Matcher names the dimension a Filter applies to.
type Matcher uint8

const (
	MatcherTag Matcher = iota
	MatcherPath
	MatcherFileType
	MatcherFileEventKind
	MatcherSource
	MatcherProcess
	MatcherSignal
	MatcherProcessCompletion
	MatcherPriority
)

func (m Matcher) String() string {
	switch m {
	case MatcherTag:
		return "Tag"
	case MatcherPath:
		return "Path"
	case MatcherFileType:
		return "FileType"
	case MatcherFileEventKind:
		return "FileEventKind"
	case MatcherSource:
		return "Source"
	case MatcherProcess:
		return "Process"
	case MatcherSignal:
		return "Signal"
	case MatcherProcessCompletion:
		return "ProcessCompletion"
	case MatcherPriority:
		return "Priority"
	default:
		return "Unknown"
	}
}

// Op is the operator a Filter applies to its pattern.
type Op uint8

const (
	OpAuto Op = iota
	OpEqual
	OpNotEqual
	OpRegex
	OpNotRegex
	OpInSet
	OpNotInSet
	OpGlob
	OpNotGlob
)

// PatternKind discriminates the Pattern union.
type PatternKind uint8

const (
	PatternAbsent PatternKind = iota
	PatternExact
	PatternRegex
	PatternGlob
	PatternSet
)

// Pattern is one of: exact string, regex, glob, set-of-strings, or absent
// (existence check). Glob patterns are kept as source text, both here and
// in the per-polarity GlobSet (internal/filter/globset.go); doublestar
// matches directly from the pattern string, so no compiled form is stored.
type Pattern struct {
	Kind  PatternKind
	Exact string
	Regex string
	Glob  string
	Set   []string

	compiledRegex *regexp.Regexp
	setIndex      map[string]struct{}
}

func ExactPattern(s string) Pattern { return Pattern{Kind: PatternExact, Exact: s} }
func RegexPattern(s string) Pattern { return Pattern{Kind: PatternRegex, Regex: s} }
func GlobPattern(s string) Pattern  { return Pattern{Kind: PatternGlob, Glob: s} }
func SetPattern(items []string) Pattern {
	return Pattern{Kind: PatternSet, Set: append([]string(nil), items...)}
}
func AbsentPattern() Pattern { return Pattern{Kind: PatternAbsent} }

// Filter is a single predicate: (on, op, pat, inPath, negate).
type Filter struct {
	On     Matcher
	Op     Op
	Pat    Pattern
	InPath string // absolute path scope; "" means unscoped
	Negate bool
}

// Canonicalise normalises a Filter so that operator/pattern pairs are
// consistent and any glob pattern is checked for valid syntax (it is not
// compiled; the text is kept as is). It is idempotent:
// canonicalising an already-canonicalised Filter yields an identical Filter.
func (f Filter) Canonicalise() (Filter, error) {
	out := f

	if out.Op == OpGlob || out.Op == OpNotGlob {
		if out.Pat.Kind != PatternGlob {
			// A glob operator implies a glob pattern; if the caller
			// supplied e.g. an exact string, treat its text as the glob.
			out.Pat = GlobPattern(out.Pat.text())
		}
		if _, err := doublestar.Match(out.Pat.Glob, "canonicalisation-probe"); err != nil {
			return Filter{}, &werr.GlobParseError{Pattern: out.Pat.Glob, Err: err}
		}
	}

	if out.Pat.Kind == PatternRegex && out.Pat.compiledRegex == nil {
		re, err := regexp.Compile(out.Pat.Regex)
		if err != nil {
			return Filter{}, fmt.Errorf("filter: compile regex %q: %w", out.Pat.Regex, err)
		}
		out.Pat.compiledRegex = re
	}

	if out.Pat.Kind == PatternSet && out.Pat.setIndex == nil {
		idx := make(map[string]struct{}, len(out.Pat.Set))
		for _, s := range out.Pat.Set {
			idx[s] = struct{}{}
		}
		out.Pat.setIndex = idx
	}

	if out.InPath != "" {
		out.InPath = strings.TrimRight(filepathToSlash(out.InPath), "/")
	}

	return out, nil
}

// text returns a string form for a non-glob pattern being coerced into a
// glob by Canonicalise.
func (p Pattern) text() string {
	switch p.Kind {
	case PatternExact:
		return p.Exact
	case PatternRegex:
		return p.Regex
	case PatternGlob:
		return p.Glob
	default:
		return ""
	}
}

// Matches dispatches on f.Op against subject. The Negate flag is NOT applied
// here; the orchestrator (filterer) applies it.
func (f Filter) Matches(subject string) (bool, error) {
	switch f.Op {
	case OpAuto:
		return f.matchAuto(subject)
	case OpEqual:
		return subject == f.Pat.text(), nil
	case OpNotEqual:
		return subject != f.Pat.text(), nil
	case OpRegex:
		re, err := f.regex()
		if err != nil {
			return false, err
		}
		return re.MatchString(subject), nil
	case OpNotRegex:
		re, err := f.regex()
		if err != nil {
			return false, err
		}
		return !re.MatchString(subject), nil
	case OpInSet:
		return f.inSet(subject), nil
	case OpNotInSet:
		return !f.inSet(subject), nil
	case OpGlob:
		ok, err := doublestar.Match(f.Pat.Glob, subject)
		return ok, err
	case OpNotGlob:
		ok, err := doublestar.Match(f.Pat.Glob, subject)
		return !ok, err
	default:
		return false, fmt.Errorf("filter: unknown operator %v", f.Op)
	}
}

func (f Filter) matchAuto(subject string) (bool, error) {
	switch f.Pat.Kind {
	case PatternExact:
		return subject == f.Pat.Exact, nil
	case PatternRegex:
		re, err := f.regex()
		if err != nil {
			return false, err
		}
		return re.MatchString(subject), nil
	case PatternSet:
		return f.inSet(subject), nil
	case PatternGlob:
		return doublestar.Match(f.Pat.Glob, subject)
	case PatternAbsent:
		return subject != "", nil
	default:
		return false, fmt.Errorf("filter: unknown pattern kind %v", f.Pat.Kind)
	}
}

func (f Filter) regex() (*regexp.Regexp, error) {
	if f.Pat.compiledRegex != nil {
		return f.Pat.compiledRegex, nil
	}
	return regexp.Compile(f.Pat.Regex)
}

func (f Filter) inSet(subject string) bool {
	if f.Pat.setIndex != nil {
		_, ok := f.Pat.setIndex[subject]
		return ok
	}
	for _, s := range f.Pat.Set {
		if s == subject {
			return true
		}
	}
	return false
}

func filepathToSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}
