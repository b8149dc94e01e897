package closure

import (
	"errors"
	"slices"
	"testing"

	"github.com/DeusData/es6-module-converter/internal/diag"
	"github.com/DeusData/es6-module-converter/internal/graph"
	"github.com/DeusData/es6-module-converter/internal/scan"
)

func node(path, provides string, deps ...string) *scan.Record {
	r := &scan.Record{Path: path}
	if provides != "" {
		r.Provides = []string{provides}
	}
	for _, d := range deps {
		kind := scan.Hard
		if d[0] == '~' {
			kind = scan.Forward
			d = d[1:]
		}
		r.Deps = append(r.Deps, scan.Dependency{Namespace: d, Kind: kind})
	}
	return r
}

func corpus(t *testing.T) *graph.Graph {
	t.Helper()
	g, err := graph.Build([]*scan.Record{
		node("a.js", "a", "b"),
		node("b.js", "b", "c"),
		node("c.js", "c", "~d"),
		node("d.js", "d"),
		node("a_test.js", "a.test", "a", "testing"),
		node("testing.js", "testing", "helpers"),
		node("helpers.js", "helpers"),
		node("d_test.js", "d.test", "d"),
		node("unrelated.js", "unrelated"),
	})
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestSelectTransitiveClosure(t *testing.T) {
	g := corpus(t)
	sel, err := Select(g, []string{"a.js"}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	// Forward edge c -> d is not followed.
	if !slices.Equal(sel.Files, []string{"a.js", "b.js", "c.js"}) {
		t.Errorf("Files: got %v", sel.Files)
	}
	if !sel.Contains("b.js") || sel.Contains("d.js") {
		t.Error("Contains mismatch")
	}
	assertClosed(t, g, sel.Files)
}

func TestSelectWithTests(t *testing.T) {
	g := corpus(t)
	sel, err := Select(g, []string{"a.js"}, Options{IncludeTests: true})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a.js", "a_test.js", "b.js", "c.js", "helpers.js", "testing.js"}
	if !slices.Equal(sel.Files, want) {
		t.Errorf("Files: got %v, want %v", sel.Files, want)
	}
	if !slices.Equal(sel.Tests, []string{"a_test.js"}) {
		t.Errorf("Tests: got %v", sel.Tests)
	}
	// d_test.js belongs to d.js, which is only forward-referenced.
	if sel.Contains("d_test.js") {
		t.Error("d_test.js should not be selected")
	}
	assertClosed(t, g, sel.Files)
}

func TestSelectTestReachingExcludedIsSkipped(t *testing.T) {
	g := corpus(t)
	sel, err := Select(g, []string{"a.js"}, Options{IncludeTests: true, Exclude: []string{"helpers.js"}})
	if err != nil {
		t.Fatal(err)
	}
	if sel.Contains("a_test.js") || sel.Contains("helpers.js") || sel.Contains("testing.js") {
		t.Errorf("excluded file leaked through a test root: %v", sel.Files)
	}
	if !slices.Equal(sel.SkippedTests, []string{"a_test.js"}) {
		t.Errorf("SkippedTests: %v", sel.SkippedTests)
	}
	if len(sel.Warnings) != 1 {
		t.Errorf("expected one warning, got %v", sel.Warnings)
	}
}

func TestSelectExcludedTestPattern(t *testing.T) {
	g := corpus(t)
	sel, err := Select(g, []string{"a.js"}, Options{IncludeTests: true, Exclude: []string{"*_test.js"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(sel.Tests) != 0 || !slices.Equal(sel.SkippedTests, []string{"a_test.js"}) {
		t.Errorf("Tests=%v Skipped=%v", sel.Tests, sel.SkippedTests)
	}
}

func TestSelectRootRequiringExcludedFails(t *testing.T) {
	g := corpus(t)
	_, err := Select(g, []string{"a.js"}, Options{Exclude: []string{"c.js"}})
	var ex *diag.ExcludedDependencyError
	if !errors.As(err, &ex) {
		t.Fatalf("expected ExcludedDependencyError, got %v", err)
	}
	if ex.File != "b.js" || ex.Excluded != "c.js" {
		t.Errorf("got %+v", ex)
	}
}

func TestSelectExcludedRoot(t *testing.T) {
	g := corpus(t)
	_, err := Select(g, []string{"a.js"}, Options{Exclude: []string{"a.js"}})
	var ex *diag.ExcludedDependencyError
	if !errors.As(err, &ex) {
		t.Fatalf("expected ExcludedDependencyError, got %v", err)
	}
	if ex.File != "" || ex.Excluded != "a.js" || err.Error() != "root a.js is excluded" {
		t.Errorf("got %+v: %v", ex, err)
	}
}

func TestSelectTestsOfTestDependencies(t *testing.T) {
	g, err := graph.Build([]*scan.Record{
		node("a.js", "a"),
		node("a_test.js", "a.test", "a", "helper"),
		node("helper.js", "helper"),
		node("helper_test.js", "helper.test", "helper"),
	})
	if err != nil {
		t.Fatal(err)
	}
	sel, err := Select(g, []string{"a.js"}, Options{IncludeTests: true})
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(sel.Tests, []string{"a_test.js", "helper_test.js"}) {
		t.Errorf("Tests: got %v", sel.Tests)
	}
	if len(sel.Files) != 4 {
		t.Errorf("Files: got %v", sel.Files)
	}
	assertClosed(t, g, sel.Files)
}

func TestSelectUnknownRoot(t *testing.T) {
	g := corpus(t)
	_, err := Select(g, []string{"nope.js", "gone.js"}, Options{})
	if got := len(diag.Flatten(err)); got != 2 {
		t.Fatalf("expected 2 errors, got %d: %v", got, err)
	}
}

func TestSelectDeterministic(t *testing.T) {
	g := corpus(t)
	first, err := Select(g, []string{"a.js", "d.js"}, Options{IncludeTests: true})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		again, err := Select(g, []string{"d.js", "a.js"}, Options{IncludeTests: true})
		if err != nil {
			t.Fatal(err)
		}
		if !slices.Equal(first.Files, again.Files) || !slices.Equal(first.Roots, again.Roots) {
			t.Fatalf("run %d differs: %v vs %v", i, first.Files, again.Files)
		}
	}
}

func TestRootsForNamespaces(t *testing.T) {
	g := corpus(t)
	roots, err := RootsForNamespaces(g, []string{"b", "a", "b"})
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(roots, []string{"a.js", "b.js"}) {
		t.Errorf("roots: %v", roots)
	}
	_, err = RootsForNamespaces(g, []string{"x", "y", "a"})
	if got := len(diag.Flatten(err)); got != 2 {
		t.Errorf("expected 2 unknown namespaces, got %d", got)
	}
}

func TestExcluded(t *testing.T) {
	tests := []struct {
		path     string
		patterns []string
		want     bool
	}{
		{"third_party/x.js", []string{"third_party/"}, true},
		{"lib/third_party/x.js", []string{"third_party/"}, false},
		{"dom/dom_test.js", []string{"*_test.js"}, true},
		{"dom/dom.js", []string{"dom/*.js"}, true},
		{"dom/dom.js", nil, false},
	}
	for _, tt := range tests {
		if got := Excluded(tt.path, tt.patterns); got != tt.want {
			t.Errorf("Excluded(%q, %v) = %v, want %v", tt.path, tt.patterns, got, tt.want)
		}
	}
}

// assertClosed checks that every hard target of a selected file is selected.
func assertClosed(t *testing.T, g *graph.Graph, files []string) {
	t.Helper()
	set := make(map[string]bool, len(files))
	for _, f := range files {
		set[f] = true
	}
	for _, f := range files {
		for _, target := range g.HardTargets(f) {
			if !set[target] {
				t.Errorf("closure broken: %s -> %s not selected", f, target)
			}
		}
	}
}

func TestSelectCustomTestSuffix(t *testing.T) {
	g, err := graph.Build([]*scan.Record{
		node("a.js", "a"),
		node("a.spec.js", "a.spec", "a"),
		node("a_test.js", "a.test", "a"),
	})
	if err != nil {
		t.Fatal(err)
	}
	sel, err := Select(g, []string{"a.js"}, Options{IncludeTests: true, TestSuffixes: []string{".spec.js"}})
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(sel.Files, []string{"a.js", "a.spec.js"}) {
		t.Errorf("Files: %v", sel.Files)
	}
}
