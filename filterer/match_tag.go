package filterer

import (
	"strconv"
	"strings"

	"github.com/wardendev/watchloop/internal/event"
	"github.com/wardendev/watchloop/internal/filter"
)

// tagMatchers returns the Matcher dimensions a given tag participates in:
// every tag matches its own specific Matcher plus the generic Tag matcher
// (which tests against the tag's discriminant name), and a Path tag with a
// known file type additionally participates in the FileType matcher.
func tagMatchers(t event.Tag) []filter.Matcher {
	ms := []filter.Matcher{filter.MatcherTag}
	switch t.Kind {
	case event.TagPath:
		ms = append(ms, filter.MatcherPath)
		if t.FileType != nil {
			ms = append(ms, filter.MatcherFileType)
		}
	case event.TagFileEventKind:
		ms = append(ms, filter.MatcherFileEventKind)
	case event.TagSource:
		ms = append(ms, filter.MatcherSource)
	case event.TagProcess:
		ms = append(ms, filter.MatcherProcess)
	case event.TagSignal:
		ms = append(ms, filter.MatcherSignal)
	case event.TagProcessCompletion:
		ms = append(ms, filter.MatcherProcessCompletion)
	}
	return ms
}

// sigMatch canonicalises a signal to the short name / number pair the
// filterer matches against. An explicit numeric signal takes precedence
// over a name that happens to collide with a well-known one.
func sigMatch(sig event.Signal) (string, int) {
	if sig.Number != 0 {
		switch sig.Number {
		case 1:
			return "HUP", 1
		case 2:
			return "INT", 2
		case 3:
			return "QUIT", 3
		case 9:
			return "KILL", 9
		case 10:
			return "USR1", 10
		case 12:
			return "USR2", 12
		case 15:
			return "TERM", 15
		default:
			return "UNK", sig.Number
		}
	}
	switch strings.ToUpper(sig.Name) {
	case "HUP", "HANGUP":
		return "HUP", 1
	case "INT", "INTERRUPT":
		return "INT", 2
	case "QUIT":
		return "QUIT", 3
	case "KILL", "FORCESTOP":
		return "KILL", 9
	case "USR1":
		return "USR1", 10
	case "USR2":
		return "USR2", 12
	case "TERM", "TERMINATE":
		return "TERM", 15
	default:
		return "UNK", 0
	}
}

// matchTag evaluates filter against a single tag for the filter's Matcher
// dimension. It returns (applied, matched, error): applied is false when
// the filter's dimension does not pertain to this tag at all (mismatched
// tag/matcher pair, or an in-scope path filter resolving out of context),
// in which case the caller must skip the filter rather than count it.
//
// Path filters using the Glob/NotGlob operators are never routed here: the
// Filterer resolves those through its compiled glob sets (see globset.go)
// before falling back to this function for any remaining Path filters.
func matchTag(f filter.Filter, t event.Tag, workdir, origin string) (applied bool, matched bool, err error) {
	switch {
	case f.On == filter.MatcherTag:
		matched, err = f.Matches(t.Kind.String())
		return true, matched, err

	case t.Kind == event.TagPath && f.On == filter.MatcherPath:
		if f.Op == filter.OpGlob || f.Op == filter.OpNotGlob {
			return false, false, nil
		}
		resolved, ok := resolvePathSuffix(f, t.Path, workdir, origin)
		if !ok {
			return false, false, nil
		}
		matched, err = f.Matches(resolved)
		return true, matched, err

	case t.Kind == event.TagPath && f.On == filter.MatcherFileType && t.FileType != nil:
		matched, err = f.Matches(t.FileType.String())
		return true, matched, err

	case t.Kind == event.TagFileEventKind && f.On == filter.MatcherFileEventKind:
		matched, err = f.Matches(t.FileEventKind)
		return true, matched, err

	case t.Kind == event.TagSource && f.On == filter.MatcherSource:
		matched, err = f.Matches(t.Source)
		return true, matched, err

	case t.Kind == event.TagProcess && f.On == filter.MatcherProcess:
		matched, err = f.Matches(strconv.Itoa(t.Pid))
		return true, matched, err

	case t.Kind == event.TagSignal && f.On == filter.MatcherSignal:
		name, num := sigMatch(t.Signal)
		matched, err = matchesAny(f, name, "SIG"+name, strconv.Itoa(num))
		return true, matched, err

	case t.Kind == event.TagProcessCompletion && f.On == filter.MatcherProcessCompletion:
		matched, err = matchProcessCompletion(f, t.ProcessEnd)
		return true, matched, err

	default:
		return false, false, nil
	}
}

// resolvePathSuffix resolves an event's absolute path to the suffix a
// non-glob Path filter matches against: stripped of the filter's explicit
// InPath scope if given (returning ok=false if the path is not under that
// scope), else stripped of workdir, else origin, else the leading slash.
func resolvePathSuffix(f filter.Filter, path, workdir, origin string) (string, bool) {
	if f.InPath != "" {
		suffix, ok := stripPrefixDir(path, f.InPath)
		if !ok {
			return "", false
		}
		return suffix, true
	}
	if suffix, ok := stripPrefixDir(path, workdir); ok {
		return suffix, true
	}
	if suffix, ok := stripPrefixDir(path, origin); ok {
		return suffix, true
	}
	return strings.TrimPrefix(path, "/"), true
}

func stripPrefixDir(path, dir string) (string, bool) {
	if dir == "" {
		return "", false
	}
	if path == dir {
		return "", true
	}
	trimmed := strings.TrimSuffix(dir, "/") + "/"
	if !strings.HasPrefix(path, trimmed) {
		return "", false
	}
	return strings.TrimPrefix(path[len(trimmed):], "/"), true
}

func matchesAny(f filter.Filter, subjects ...string) (bool, error) {
	for _, s := range subjects {
		ok, err := f.Matches(s)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func matchProcessCompletion(f filter.Filter, end *event.ProcessEnd) (bool, error) {
	if end != nil && end.Kind == event.ProcessEndExitSignal {
		name, num := sigMatch(end.Signal)
		return matchesAny(f,
			event.RenderProcessEnd(end),
			"signal(SIG"+name+")",
			"signal("+strconv.Itoa(num)+")",
		)
	}
	return f.Matches(event.RenderProcessEnd(end))
}
