// Package closure computes the smallest closed set of files needed by a set
// of entry points, following hard dependencies only.
package closure

import (
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/DeusData/es6-module-converter/internal/diag"
	"github.com/DeusData/es6-module-converter/internal/graph"
	"github.com/DeusData/es6-module-converter/internal/lang"
)

// Options configures selection policy.
type Options struct {
	// IncludeTests adds the test files of every selected file as extra roots.
	IncludeTests bool
	// Exclude holds glob patterns (matched against the relative path and the
	// base name; a trailing "/" matches a directory prefix). Excluded files
	// never enter the selection through test roots, and an explicit root
	// that needs one is an error.
	Exclude []string
	// TestSuffixes overrides the language's test naming convention.
	TestSuffixes []string
}

// Selection is the result of Select. All slices are sorted.
type Selection struct {
	Files        []string       `json:"files" yaml:"files"`
	Roots        []string       `json:"roots" yaml:"roots"`
	Tests        []string       `json:"tests,omitempty" yaml:"tests,omitempty"`
	SkippedTests []string       `json:"skipped_tests,omitempty" yaml:"skipped_tests,omitempty"`
	Warnings     []diag.Warning `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Contains reports whether path is selected.
func (s *Selection) Contains(path string) bool {
	i := sort.SearchStrings(s.Files, path)
	return i < len(s.Files) && s.Files[i] == path
}

// Select computes the transitive hard-dependency closure of roots.
func Select(g *graph.Graph, roots []string, opts Options) (*Selection, error) {
	report := &diag.Report{}
	var valid []string
	for _, r := range dedupe(roots) {
		if g.File(r) == nil {
			report.Add(fmt.Errorf("root %s is not a scanned file", r))
			continue
		}
		valid = append(valid, r)
	}
	if err := report.Err(); err != nil {
		return nil, err
	}

	selected, parent := reach(g, valid)
	for _, f := range sortedKeys(selected) {
		if !Excluded(f, opts.Exclude) {
			continue
		}
		by := parent[f]
		if by == f {
			by = ""
		}
		report.Add(&diag.ExcludedDependencyError{File: by, Excluded: f})
	}
	if err := report.Err(); err != nil {
		return nil, err
	}

	sel := &Selection{Roots: valid}
	if opts.IncludeTests {
		// Files reached from a test can have tests of their own, so repeat
		// until no new test turns up.
		seen := make(map[string]bool)
		for {
			found := false
			for _, test := range associatedTests(g, selected, opts.TestSuffixes) {
				if seen[test] {
					continue
				}
				seen[test] = true
				found = true
				if Excluded(test, opts.Exclude) {
					sel.SkippedTests = append(sel.SkippedTests, test)
					continue
				}
				extra, extraParent := reach(g, []string{test})
				if bad := firstExcluded(extra, opts.Exclude); bad != "" {
					sel.SkippedTests = append(sel.SkippedTests, test)
					sel.Warnings = append(sel.Warnings, diag.Warning{
						File:    test,
						Message: fmt.Sprintf("test skipped: %s requires excluded file %s", extraParent[bad], bad),
					})
					slog.Warn("closure.test.skipped", "test", test, "excluded", bad)
					continue
				}
				sel.Tests = append(sel.Tests, test)
				for f := range extra {
					selected[f] = true
				}
			}
			if !found {
				break
			}
		}
		sort.Strings(sel.Tests)
		sort.Strings(sel.SkippedTests)
		diag.SortWarnings(sel.Warnings)
	}

	sel.Files = sortedKeys(selected)
	sel.Roots = append(sel.Roots, sel.Tests...)
	sort.Strings(sel.Roots)
	slog.Debug("closure.selected", "roots", len(sel.Roots), "files", len(sel.Files), "tests", len(sel.Tests))
	return sel, nil
}

// RootsForNamespaces resolves root namespaces to their provider files,
// reporting every unknown namespace at once.
func RootsForNamespaces(g *graph.Graph, namespaces []string) ([]string, error) {
	report := &diag.Report{}
	var roots []string
	for _, ns := range dedupe(namespaces) {
		p, err := g.Resolve(ns)
		if err != nil {
			report.Add(err)
			continue
		}
		roots = append(roots, p)
	}
	if err := report.Err(); err != nil {
		return nil, err
	}
	return dedupe(roots), nil
}

// reach walks hard edges breadth-first from roots. parent records, for each
// reached file, the file whose edge first reached it (roots map to
// themselves).
func reach(g *graph.Graph, roots []string) (map[string]bool, map[string]string) {
	visited := make(map[string]bool, len(roots))
	parent := make(map[string]string, len(roots))
	queue := make([]string, 0, len(roots))
	for _, r := range roots {
		if !visited[r] {
			visited[r] = true
			parent[r] = r
			queue = append(queue, r)
		}
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, t := range g.HardTargets(cur) {
			if visited[t] {
				continue
			}
			visited[t] = true
			parent[t] = cur
			queue = append(queue, t)
		}
	}
	return visited, parent
}

// associatedTests returns, sorted, every test file in the graph whose source
// file is selected and which is not itself selected.
func associatedTests(g *graph.Graph, selected map[string]bool, suffixes []string) []string {
	var tests []string
	for _, p := range g.AllFiles() {
		if selected[p] {
			continue
		}
		src, ok := testSource(p, suffixes)
		if ok && selected[src] {
			tests = append(tests, p)
		}
	}
	return tests
}

// IsTest reports whether relPath is a test file under the given suffixes,
// or the language conventions when suffixes is empty.
func IsTest(relPath string, suffixes []string) bool {
	if len(suffixes) == 0 {
		return lang.IsTestFile(relPath, lang.JavaScript)
	}
	_, ok := lang.TestSource(relPath, suffixes)
	return ok
}

func testSource(relPath string, suffixes []string) (string, bool) {
	if len(suffixes) == 0 {
		return lang.SourceForTest(relPath, lang.JavaScript)
	}
	return lang.TestSource(relPath, suffixes)
}

// Excluded reports whether relPath matches any exclusion pattern.
func Excluded(relPath string, patterns []string) bool {
	base := path.Base(relPath)
	for _, p := range patterns {
		if strings.HasSuffix(p, "/") {
			if strings.HasPrefix(relPath, p) {
				return true
			}
			continue
		}
		if matched, _ := path.Match(p, relPath); matched {
			return true
		}
		if matched, _ := path.Match(p, base); matched {
			return true
		}
	}
	return false
}

func firstExcluded(files map[string]bool, patterns []string) string {
	for _, f := range sortedKeys(files) {
		if Excluded(f, patterns) {
			return f
		}
	}
	return ""
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
