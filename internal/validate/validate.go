// Package validate checks that every declared dependency in a namespace
// graph resolves to a provider. It sweeps the whole graph and reports every
// defect at once.
package validate

import (
	"sort"

	"github.com/DeusData/es6-module-converter/internal/diag"
	"github.com/DeusData/es6-module-converter/internal/graph"
)

// Validate checks every file in the graph.
func Validate(g *graph.Graph) error {
	report := &diag.Report{}
	if len(g.Namespaces()) == 0 {
		report.Add(&diag.EmptyCorpusError{Reason: "no provided namespaces found"})
	}
	if !hasDeclarations(g) {
		report.Add(&diag.EmptyCorpusError{Reason: "no require declarations found"})
	}
	for _, err := range diag.Flatten(ValidateFiles(g, g.AllFiles())) {
		report.Add(err)
	}
	return report.Err()
}

// ValidateFiles checks the declarations of the given files only. Both hard
// and forward declarations must resolve. The result lists unmatched
// namespaces sorted, each with the sorted files that referenced it.
func ValidateFiles(g *graph.Graph, paths []string) error {
	unmatched := make(map[string]map[string]bool)
	for _, path := range paths {
		for _, d := range g.DependenciesOf(path) {
			if _, err := g.Resolve(d.Namespace); err == nil {
				continue
			}
			if unmatched[d.Namespace] == nil {
				unmatched[d.Namespace] = make(map[string]bool)
			}
			unmatched[d.Namespace][path] = true
		}
	}

	namespaces := make([]string, 0, len(unmatched))
	for ns := range unmatched {
		namespaces = append(namespaces, ns)
	}
	sort.Strings(namespaces)

	report := &diag.Report{}
	for _, ns := range namespaces {
		files := make([]string, 0, len(unmatched[ns]))
		for f := range unmatched[ns] {
			files = append(files, f)
		}
		sort.Strings(files)
		report.Add(&diag.UnmatchedDependencyError{Namespace: ns, RequiredBy: files})
	}
	return report.Err()
}

func hasDeclarations(g *graph.Graph) bool {
	for _, path := range g.AllFiles() {
		if len(g.DependenciesOf(path)) > 0 {
			return true
		}
	}
	return false
}

// Unmatched extracts the unmatched dependency errors from a validation
// result, in namespace order.
func Unmatched(err error) []*diag.UnmatchedDependencyError {
	var out []*diag.UnmatchedDependencyError
	for _, e := range diag.Flatten(err) {
		if u, ok := e.(*diag.UnmatchedDependencyError); ok {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Namespace < out[j].Namespace })
	return out
}
