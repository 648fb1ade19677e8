package filter

import (
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// MatchResult is the result the compiled glob matcher produces for a single
// polarity: no line matched anything, a positive (ignore-polarity) line
// matched a candidate within its own scope, a positive line matched a
// candidate outside its own scope (so the match is inert rather than a
// verdict), or a negative ("!"-style, whitelist) line matched last.
type MatchResult uint8

const (
	MatchNone MatchResult = iota
	MatchIgnore
	MatchIgnoreOutOfScope
	MatchWhitelist
)

// globLine is one compiled entry built from a single Path filter of a given
// polarity, one "gitignore line" per filter (negate prefixes the line with
// "!").
type globLine struct {
	pattern string // doublestar pattern relative to scope
	negate  bool
	scope   string // absolute directory this line is rooted at ("" = origin)
	dirOnly bool
}

// GlobSet is a batch-compiled matcher over every Path filter of one
// polarity (Glob or NotGlob). Rebuilt wholesale whenever a filter of that
// polarity is added, or on ClearFilters -- never mutated incrementally.
type GlobSet struct {
	lines []globLine
}

// NewGlobSet compiles a GlobSet from the raw (Matcher-Path, given polarity)
// filters, in the order they were inserted. origin is the default scope for
// filters with no InPath.
func NewGlobSet(filters []Filter, wantOp Op, origin string) (*GlobSet, error) {
	gs := &GlobSet{}
	for _, f := range filters {
		if f.Op != wantOp || f.Pat.Kind != PatternGlob {
			continue
		}
		scope := f.InPath
		if scope == "" {
			scope = origin
		}
		pattern := f.Pat.Glob
		dirOnly := strings.HasSuffix(pattern, "/")
		pattern = strings.TrimSuffix(pattern, "/")

		// Validate compiles (doublestar.Match errors on malformed patterns).
		if _, err := doublestar.Match(pattern, "probe"); err != nil {
			return nil, err
		}

		gs.lines = append(gs.lines, globLine{
			pattern: pattern,
			negate:  f.Negate,
			scope:   scope,
			dirOnly: dirOnly,
		})
	}
	if len(gs.lines) == 0 {
		return nil, nil
	}
	return gs, nil
}

// Match evaluates path p (with isDir known) against the compiled lines,
// applying last-matching-line-wins semantics (a later filter's result
// overrides an earlier one), scanning both p itself and, when p is inside
// origin, each of p's ancestor directories up to origin -- so a directory-
// level exclusion is inherited by everything beneath it. Ancestors are
// scanned after p itself, so a line matching an ancestor directory
// overrides whatever matched p; a whitelist line that matches only the file
// does not re-include it.
func (gs *GlobSet) Match(p string, isDir bool, origin string) (MatchResult, string) {
	if gs == nil || len(gs.lines) == 0 {
		return MatchNone, ""
	}

	candidates := []string{p}
	if rel, err := filepath.Rel(origin, p); err == nil && !strings.HasPrefix(rel, "..") {
		// p is inside origin: also test every ancestor directory up to origin.
		dir := filepath.Dir(p)
		for {
			if dir == origin || dir == "." || dir == string(filepath.Separator) {
				break
			}
			candidates = append(candidates, dir)
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	result := MatchNone
	var scope string
	for _, cand := range candidates {
		candIsDir := isDir || cand != p
		for _, line := range gs.lines {
			if line.dirOnly && !candIsDir {
				continue
			}

			// A line only ever votes with a verdict when its scope is an
			// ancestor of cand; everywhere else it can still match the
			// pattern textually (against an origin-relative or bare-name
			// fallback subject) but that match is inert, reported as
			// MatchIgnoreOutOfScope rather than folded into "no match at
			// all" -- a scoped filter's non-ancestor parts of the tree must
			// not leak a verdict.
			inScope := true
			rel, err := filepath.Rel(line.scope, cand)
			if err != nil || strings.HasPrefix(rel, "..") {
				inScope = false
				if r2, err2 := filepath.Rel(origin, cand); err2 == nil && !strings.HasPrefix(r2, "..") {
					rel = r2
				} else {
					rel = filepath.Base(cand)
				}
			}
			rel = filepath.ToSlash(rel)

			matched, _ := doublestar.Match(line.pattern, rel)
			if !matched && !strings.HasPrefix(line.pattern, "/") && !strings.Contains(line.pattern, "/") {
				// Floating (non-anchored) pattern: also try any depth.
				matched, _ = doublestar.Match("**/"+line.pattern, rel)
				if !matched {
					matched, _ = doublestar.Match(line.pattern, filepath.Base(rel))
				}
			}
			if !matched {
				continue
			}

			switch {
			case line.negate:
				result = MatchWhitelist
			case inScope:
				result = MatchIgnore
			default:
				result = MatchIgnoreOutOfScope
			}
			scope = line.scope
		}
	}
	return result, scope
}
