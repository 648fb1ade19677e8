package filter

import "testing"

func TestCanonicaliseIdempotent(t *testing.T) {
	f := Filter{On: MatcherPath, Op: OpGlob, Pat: GlobPattern("*.rs")}
	once, err := f.Canonicalise()
	if err != nil {
		t.Fatalf("first canonicalise: %v", err)
	}
	twice, err := once.Canonicalise()
	if err != nil {
		t.Fatalf("second canonicalise: %v", err)
	}
	if once.Pat.Glob != twice.Pat.Glob || once.Op != twice.Op {
		t.Fatalf("canonicalise not idempotent: %+v vs %+v", once, twice)
	}
}

func TestCanonicaliseRejectsMalformedGlob(t *testing.T) {
	f := Filter{On: MatcherPath, Op: OpGlob, Pat: GlobPattern("[unterminated")}
	if _, err := f.Canonicalise(); err == nil {
		t.Fatal("expected GlobParse error for malformed glob")
	}
}

func TestMatchesAutoDispatch(t *testing.T) {
	cases := []struct {
		name    string
		f       Filter
		subject string
		want    bool
	}{
		{"exact", Filter{Op: OpAuto, Pat: ExactPattern("foo")}, "foo", true},
		{"exact-mismatch", Filter{Op: OpAuto, Pat: ExactPattern("foo")}, "bar", false},
		{"regex", Filter{Op: OpAuto, Pat: RegexPattern("^f.o$")}, "foo", true},
		{"set", Filter{Op: OpAuto, Pat: SetPattern([]string{"a", "b"})}, "b", true},
		{"set-miss", Filter{Op: OpAuto, Pat: SetPattern([]string{"a", "b"})}, "c", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f, err := tc.f.Canonicalise()
			if err != nil {
				t.Fatalf("canonicalise: %v", err)
			}
			got, err := f.Matches(tc.subject)
			if err != nil {
				t.Fatalf("matches: %v", err)
			}
			if got != tc.want {
				t.Errorf("Matches(%q) = %v, want %v", tc.subject, got, tc.want)
			}
		})
	}
}

func TestNotVariantsInvert(t *testing.T) {
	f, err := Filter{Op: OpNotEqual, Pat: ExactPattern("foo")}.Canonicalise()
	if err != nil {
		t.Fatal(err)
	}
	got, err := f.Matches("foo")
	if err != nil {
		t.Fatal(err)
	}
	if got {
		t.Error("NotEqual against equal subject should be false")
	}
}

func TestGlobOperatorMatchesDirectly(t *testing.T) {
	f, err := Filter{Op: OpGlob, Pat: GlobPattern("*.rs")}.Canonicalise()
	if err != nil {
		t.Fatal(err)
	}
	got, err := f.Matches("main.rs")
	if err != nil {
		t.Fatal(err)
	}
	if !got {
		t.Error("expected *.rs to match main.rs")
	}
}
