package cycles

import (
	"sort"

	"github.com/DeusData/es6-module-converter/internal/graph"
)

// Find returns every cyclic group of files in the hard subgraph induced by
// paths (nil means every file), without mutating g. Each group is a strongly
// connected component with more than one file, or a single file that
// requires itself. Groups are sorted internally and by first file.
func Find(g *graph.Graph, paths []string) [][]string {
	in, starts := subset(g, paths)
	t := &tarjan{
		adj:     g.FileGraph(),
		in:      in,
		index:   make(map[string]int, len(starts)),
		lowlink: make(map[string]int, len(starts)),
		onStack: make(map[string]bool),
	}
	for _, s := range starts {
		if _, seen := t.index[s]; !seen {
			t.strongConnect(s)
		}
	}

	var groups [][]string
	for _, scc := range t.sccs {
		if len(scc) == 1 && !selfLoop(t.adj, scc[0]) {
			continue
		}
		sort.Strings(scc)
		groups = append(groups, scc)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i][0] < groups[j][0] })
	return groups
}

func selfLoop(adj map[string][]string, path string) bool {
	for _, t := range adj[path] {
		if t == path {
			return true
		}
	}
	return false
}

type tarjan struct {
	adj     map[string][]string
	in      map[string]bool
	next    int
	index   map[string]int
	lowlink map[string]int
	onStack map[string]bool
	stack   []string
	sccs    [][]string
}

func (t *tarjan) strongConnect(v string) {
	t.index[v] = t.next
	t.lowlink[v] = t.next
	t.next++
	t.stack = append(t.stack, v)
	t.onStack[v] = true

	for _, w := range t.adj[v] {
		if !t.in[w] {
			continue
		}
		if _, seen := t.index[w]; !seen {
			t.strongConnect(w)
			t.lowlink[v] = min(t.lowlink[v], t.lowlink[w])
		} else if t.onStack[w] {
			t.lowlink[v] = min(t.lowlink[v], t.index[w])
		}
	}

	if t.lowlink[v] != t.index[v] {
		return
	}
	var scc []string
	for {
		w := t.stack[len(t.stack)-1]
		t.stack = t.stack[:len(t.stack)-1]
		t.onStack[w] = false
		scc = append(scc, w)
		if w == v {
			break
		}
	}
	t.sccs = append(t.sccs, scc)
}
