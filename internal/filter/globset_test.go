package filter

import "testing"

func TestGlobSetIncludePattern(t *testing.T) {
	// S1: include *.rs files under origin.
	filters := []Filter{
		{On: MatcherPath, Op: OpGlob, Pat: GlobPattern("*.rs")},
	}
	gs, err := NewGlobSet(filters, OpGlob, "/proj")
	if err != nil {
		t.Fatal(err)
	}
	res, _ := gs.Match("/proj/src/main.rs", false, "/proj")
	if res != MatchIgnore {
		t.Fatalf("expected MatchIgnore (positive) for *.rs, got %v", res)
	}
}

func TestGlobSetExcludeViaNotGlob(t *testing.T) {
	// S2: exclude target/** via NotGlob.
	filters := []Filter{
		{On: MatcherPath, Op: OpNotGlob, Pat: GlobPattern("target/**")},
	}
	gs, err := NewGlobSet(filters, OpNotGlob, "/proj")
	if err != nil {
		t.Fatal(err)
	}
	res, _ := gs.Match("/proj/target/foo.o", false, "/proj")
	if res != MatchIgnore {
		t.Fatalf("expected MatchIgnore for target/** NotGlob line, got %v", res)
	}
}

func TestGlobSetScopedFilterOutOfScopeHasNoEffect(t *testing.T) {
	filters := []Filter{
		{On: MatcherPath, Op: OpGlob, Pat: GlobPattern("x"), InPath: "/other"},
	}
	gs, err := NewGlobSet(filters, OpGlob, "/proj")
	if err != nil {
		t.Fatal(err)
	}
	res, _ := gs.Match("/proj/x", false, "/proj")
	if res != MatchIgnoreOutOfScope {
		t.Fatalf("expected MatchIgnoreOutOfScope for out-of-scope filter, got %v", res)
	}
}

func TestGlobSetNoPatternMatchIsNone(t *testing.T) {
	filters := []Filter{
		{On: MatcherPath, Op: OpGlob, Pat: GlobPattern("*.rs")},
	}
	gs, err := NewGlobSet(filters, OpGlob, "/proj")
	if err != nil {
		t.Fatal(err)
	}
	res, _ := gs.Match("/proj/main.go", false, "/proj")
	if res != MatchNone {
		t.Fatalf("expected MatchNone when no line's pattern matches at all, got %v", res)
	}
}

func TestGlobSetNegateProducesWhitelist(t *testing.T) {
	filters := []Filter{
		{On: MatcherPath, Op: OpNotGlob, Pat: GlobPattern("*.log"), Negate: true},
	}
	gs, err := NewGlobSet(filters, OpNotGlob, "/proj")
	if err != nil {
		t.Fatal(err)
	}
	res, _ := gs.Match("/proj/debug.log", false, "/proj")
	if res != MatchWhitelist {
		t.Fatalf("expected MatchWhitelist for negated NotGlob line, got %v", res)
	}
}

func TestGlobSetEmptyIsNil(t *testing.T) {
	gs, err := NewGlobSet(nil, OpGlob, "/proj")
	if err != nil {
		t.Fatal(err)
	}
	if gs != nil {
		t.Fatal("expected nil globSet for no matching filters")
	}
}
