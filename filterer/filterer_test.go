package filterer

import (
	"testing"

	"github.com/wardendev/watchloop/internal/event"
	"github.com/wardendev/watchloop/internal/filter"
	"github.com/wardendev/watchloop/internal/ignorefs"
)

func pathEvent(path string, ft *event.FileType) *event.Event {
	return event.New(event.PathTag(path, ft))
}

func TestNoFiltersPassesEverything(t *testing.T) {
	f, err := New("/proj", "/proj")
	if err != nil {
		t.Fatal(err)
	}
	ok, err := f.CheckEvent(pathEvent("/proj/main.go", nil), event.PriorityNormal)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("expected empty filterer to pass every event")
	}
}

func TestUrgentBypassesEverything(t *testing.T) {
	f, err := New("/proj", "/proj")
	if err != nil {
		t.Fatal(err)
	}
	if err := f.AddFilters([]filter.Filter{
		{On: filter.MatcherPath, Op: filter.OpGlob, Pat: filter.GlobPattern("*.rs")},
	}); err != nil {
		t.Fatal(err)
	}
	ok, err := f.CheckEvent(pathEvent("/proj/main.go", nil), event.PriorityUrgent)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("urgent priority should bypass all filters")
	}
}

func TestGlobFilterIncludesMatchingPath(t *testing.T) {
	f, err := New("/proj", "/proj")
	if err != nil {
		t.Fatal(err)
	}
	if err := f.AddFilters([]filter.Filter{
		{On: filter.MatcherPath, Op: filter.OpGlob, Pat: filter.GlobPattern("*.rs")},
	}); err != nil {
		t.Fatal(err)
	}

	ok, err := f.CheckEvent(pathEvent("/proj/main.rs", nil), event.PriorityNormal)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("expected main.rs to pass a *.rs glob filter")
	}

	ok, err = f.CheckEvent(pathEvent("/proj/main.go", nil), event.PriorityNormal)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected main.go to fail a *.rs glob filter")
	}
}

func TestNotGlobFilterExcludesMatchingPath(t *testing.T) {
	f, err := New("/proj", "/proj")
	if err != nil {
		t.Fatal(err)
	}
	if err := f.AddFilters([]filter.Filter{
		{On: filter.MatcherPath, Op: filter.OpNotGlob, Pat: filter.GlobPattern("target/**")},
	}); err != nil {
		t.Fatal(err)
	}

	ok, err := f.CheckEvent(pathEvent("/proj/target/debug/build", nil), event.PriorityNormal)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected target/** to be excluded by NotGlob")
	}

	ok, err = f.CheckEvent(pathEvent("/proj/src/main.rs", nil), event.PriorityNormal)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("expected src/main.rs to pass (outside NotGlob exclusion)")
	}
}

func TestNegatedNotGlobWhitelistsPath(t *testing.T) {
	f, err := New("/proj", "/proj")
	if err != nil {
		t.Fatal(err)
	}
	if err := f.AddFilters([]filter.Filter{
		{On: filter.MatcherPath, Op: filter.OpNotGlob, Pat: filter.GlobPattern("*.log")},
		{On: filter.MatcherPath, Op: filter.OpNotGlob, Pat: filter.GlobPattern("important.log"), Negate: true},
	}); err != nil {
		t.Fatal(err)
	}

	ok, err := f.CheckEvent(pathEvent("/proj/important.log", nil), event.PriorityNormal)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("expected important.log to be whitelisted back in despite matching *.log")
	}

	ok, err = f.CheckEvent(pathEvent("/proj/debug.log", nil), event.PriorityNormal)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected debug.log to remain excluded")
	}
}

func TestIgnoreFileExcludesBeforeFilters(t *testing.T) {
	f, err := New("/proj", "/proj")
	if err != nil {
		t.Fatal(err)
	}
	if err := f.AddIgnoreFile(ignorefs.IgnoreFile{AppliesTo: "/proj", Lines: []string{"vendor/"}}); err != nil {
		t.Fatal(err)
	}
	dir := event.FileTypeDir
	ok, err := f.CheckEvent(pathEvent("/proj/vendor", &dir), event.PriorityNormal)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected vendor/ directory to be excluded by the ignore filterer")
	}
}

func TestPriorityFilterGatesEvent(t *testing.T) {
	f, err := New("/proj", "/proj")
	if err != nil {
		t.Fatal(err)
	}
	if err := f.AddFilters([]filter.Filter{
		{On: filter.MatcherPriority, Op: filter.OpEqual, Pat: filter.ExactPattern("high")},
	}); err != nil {
		t.Fatal(err)
	}

	ok, err := f.CheckEvent(pathEvent("/proj/main.go", nil), event.PriorityHigh)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("expected high-priority event to pass")
	}

	ok, err = f.CheckEvent(pathEvent("/proj/main.go", nil), event.PriorityNormal)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected normal-priority event to fail the priority==high filter")
	}
}

func TestTagMatcherMatchesDiscriminantName(t *testing.T) {
	f, err := New("/proj", "/proj")
	if err != nil {
		t.Fatal(err)
	}
	if err := f.AddFilters([]filter.Filter{
		{On: filter.MatcherTag, Op: filter.OpEqual, Pat: filter.ExactPattern("source")},
	}); err != nil {
		t.Fatal(err)
	}

	ok, err := f.CheckEvent(event.New(event.SourceTag("filesystem")), event.PriorityNormal)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("expected a Source tag to pass a Tag==source filter")
	}

	ok, err = f.CheckEvent(event.New(event.ProcessTag(123)), event.PriorityNormal)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected a Process tag to fail a Tag==source filter")
	}
}

func TestSignalFilterMatchesShortAndNumericForm(t *testing.T) {
	f, err := New("/proj", "/proj")
	if err != nil {
		t.Fatal(err)
	}
	if err := f.AddFilters([]filter.Filter{
		{On: filter.MatcherSignal, Op: filter.OpEqual, Pat: filter.ExactPattern("15")},
	}); err != nil {
		t.Fatal(err)
	}

	ok, err := f.CheckEvent(event.New(event.SignalTag(event.Signal{Name: "TERM"})), event.PriorityNormal)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("expected SIGTERM to match a filter on its numeric form 15")
	}
}

func TestProcessCompletionRenderingGrammar(t *testing.T) {
	f, err := New("/proj", "/proj")
	if err != nil {
		t.Fatal(err)
	}
	if err := f.AddFilters([]filter.Filter{
		{On: filter.MatcherProcessCompletion, Op: filter.OpEqual, Pat: filter.ExactPattern("error(1)")},
	}); err != nil {
		t.Fatal(err)
	}

	ok, err := f.CheckEvent(event.New(event.ProcessCompletionTag(&event.ProcessEnd{
		Kind: event.ProcessEndExitError, ExitCode: 1,
	})), event.PriorityNormal)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("expected error(1) rendering to match exit code 1 error completion")
	}

	ok, err = f.CheckEvent(event.New(event.ProcessCompletionTag(nil)), event.PriorityNormal)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected an unknown completion (_) to fail an error(1) filter")
	}
}

func TestScopedGlobFilterOutOfScopeStillPasses(t *testing.T) {
	f, err := New("/proj", "/proj")
	if err != nil {
		t.Fatal(err)
	}
	if err := f.AddFilters([]filter.Filter{
		{On: filter.MatcherPath, Op: filter.OpGlob, Pat: filter.GlobPattern("x"), InPath: "/other"},
	}); err != nil {
		t.Fatal(err)
	}
	ok, err := f.CheckEvent(pathEvent("/proj/x", nil), event.PriorityNormal)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("expected a glob filter scoped to an unrelated directory to have no effect on an out-of-scope path")
	}
}

func TestClearFiltersResetsState(t *testing.T) {
	f, err := New("/proj", "/proj")
	if err != nil {
		t.Fatal(err)
	}
	if err := f.AddFilters([]filter.Filter{
		{On: filter.MatcherPath, Op: filter.OpGlob, Pat: filter.GlobPattern("*.rs")},
	}); err != nil {
		t.Fatal(err)
	}
	if err := f.ClearFilters(); err != nil {
		t.Fatal(err)
	}
	ok, err := f.CheckEvent(pathEvent("/proj/main.go", nil), event.PriorityNormal)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("expected ClearFilters to remove the *.rs restriction")
	}
}
