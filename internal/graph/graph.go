// Package graph holds the namespace graph built from scan records: which
// file provides each namespace, and which declarations each file makes.
// Edges are plain data keyed by file path; the only mutation after build is
// demoting a hard declaration to a forward one.
package graph

import (
	"fmt"
	"sort"

	"github.com/DeusData/es6-module-converter/internal/diag"
	"github.com/DeusData/es6-module-converter/internal/scan"
)

// File is a scanned source file in the graph.
type File struct {
	Path     string
	Provides []string
	Deps     []scan.Dependency
	Module   bool
}

// Graph is the bidirectional namespace index.
type Graph struct {
	files      map[string]*File
	providerOf map[string]string // namespace -> file path
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		files:      make(map[string]*File),
		providerOf: make(map[string]string),
	}
}

// Build inserts every record and returns the graph together with a batch
// of all AmbiguousProvider errors. The graph is usable even when an error
// is returned; the first provider of an ambiguous namespace wins.
func Build(records []*scan.Record) (*Graph, error) {
	g := New()
	report := &diag.Report{}
	for _, rec := range records {
		for _, err := range diag.Flatten(g.Add(rec)) {
			report.Add(err)
		}
	}
	return g, report.Err()
}

// Add inserts one record. Records must be added sequentially. A namespace
// that already has a provider yields an AmbiguousProviderError naming both
// files (several, batched, if the record provides several such namespaces).
func (g *Graph) Add(rec *scan.Record) error {
	if _, dup := g.files[rec.Path]; dup {
		return fmt.Errorf("file %s added twice", rec.Path)
	}
	f := &File{
		Path:     rec.Path,
		Provides: append([]string(nil), rec.Provides...),
		Deps:     append([]scan.Dependency(nil), rec.Deps...),
		Module:   rec.Module,
	}
	g.files[f.Path] = f

	report := &diag.Report{}
	for _, ns := range f.Provides {
		if first, ok := g.providerOf[ns]; ok {
			report.Add(&diag.AmbiguousProviderError{Namespace: ns, First: first, Second: f.Path})
			continue
		}
		g.providerOf[ns] = f.Path
	}
	return report.Err()
}

// Resolve returns the path of the file providing ns.
func (g *Graph) Resolve(ns string) (string, error) {
	path, ok := g.providerOf[ns]
	if !ok {
		return "", &diag.UnknownNamespaceError{Namespace: ns}
	}
	return path, nil
}

// File returns the file at path, or nil.
func (g *Graph) File(path string) *File {
	return g.files[path]
}

// DependenciesOf returns a copy of the file's declarations in source order.
func (g *Graph) DependenciesOf(path string) []scan.Dependency {
	f := g.files[path]
	if f == nil {
		return nil
	}
	return append([]scan.Dependency(nil), f.Deps...)
}

// AllFiles returns every file path, sorted.
func (g *Graph) AllFiles() []string {
	paths := make([]string, 0, len(g.files))
	for p := range g.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Namespaces returns every provided namespace, sorted.
func (g *Graph) Namespaces() []string {
	out := make([]string, 0, len(g.providerOf))
	for ns := range g.providerOf {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of files.
func (g *Graph) Len() int {
	return len(g.files)
}

// HardTargets returns the files that path hard-depends on, deduplicated, in
// declaration order. Unresolved namespaces are skipped.
func (g *Graph) HardTargets(path string) []string {
	f := g.files[path]
	if f == nil {
		return nil
	}
	var out []string
	seen := make(map[string]bool)
	for _, d := range f.Deps {
		if d.Kind != scan.Hard {
			continue
		}
		target, ok := g.providerOf[d.Namespace]
		if !ok || seen[target] {
			continue
		}
		seen[target] = true
		out = append(out, target)
	}
	return out
}

// FileGraph projects every hard declaration through providerOf.
func (g *Graph) FileGraph() map[string][]string {
	fg := make(map[string][]string, len(g.files))
	for path := range g.files {
		fg[path] = g.HardTargets(path)
	}
	return fg
}

// HardEdgeCount returns the number of distinct hard file edges.
func (g *Graph) HardEdgeCount() int {
	n := 0
	for path := range g.files {
		n += len(g.HardTargets(path))
	}
	return n
}

// EdgeDemotable reports whether every hard declaration from -> to can be
// turned into a forward reference without a use during load.
func (g *Graph) EdgeDemotable(from, to string) bool {
	f := g.files[from]
	if f == nil {
		return false
	}
	found := false
	for _, d := range f.Deps {
		if d.Kind != scan.Hard || g.providerOf[d.Namespace] != to {
			continue
		}
		found = true
		if !d.Usage.Demotable() {
			return false
		}
	}
	return found
}

// Demote turns every hard declaration from -> to into a forward one and
// returns the affected namespaces. Forward declarations are left alone.
func (g *Graph) Demote(from, to string) []string {
	f := g.files[from]
	if f == nil {
		return nil
	}
	var demoted []string
	for i := range f.Deps {
		d := &f.Deps[i]
		if d.Kind != scan.Hard || g.providerOf[d.Namespace] != to {
			continue
		}
		d.Kind = scan.Forward
		demoted = append(demoted, d.Namespace)
	}
	return demoted
}
