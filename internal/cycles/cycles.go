// Package cycles removes cycles from the hard-dependency file graph by
// demoting hard declarations to forward ones.
//
// Break runs repeated depth-first passes over the hard subgraph. Each pass
// stops at the first back edge, picks one demotable edge on the cycle it
// closes, demotes it, and starts over. The loop ends on a pass with no back
// edges. Every demotion removes a hard file edge, so there are at most as
// many passes as hard edges.
package cycles

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/DeusData/es6-module-converter/internal/diag"
	"github.com/DeusData/es6-module-converter/internal/graph"
)

// Demotion records one hard file edge that was turned into forward
// references.
type Demotion struct {
	From       string   `json:"from" yaml:"from"`
	To         string   `json:"to" yaml:"to"`
	Namespaces []string `json:"namespaces" yaml:"namespaces"`
	// Cycle is the cycle that forced the demotion; it starts and ends with
	// the same file.
	Cycle []string `json:"cycle" yaml:"cycle"`
}

func (d Demotion) String() string {
	return fmt.Sprintf("%s -> %s (%v)", d.From, d.To, d.Namespaces)
}

// Result lists the demotions in the order they were made.
type Result struct {
	Demotions []Demotion `json:"demotions" yaml:"demotions"`
}

// Demoted reports whether the edge from -> to was demoted.
func (r *Result) Demoted(from, to string) bool {
	for _, d := range r.Demotions {
		if d.From == from && d.To == to {
			return true
		}
	}
	return false
}

type visitState uint8

const (
	stateVisiting visitState = iota + 1
	stateDone
)

// Break makes the hard subgraph induced by paths acyclic, mutating g. A nil
// paths means every file. It returns *diag.UnbreakableCycleError as soon as a
// cycle has no demotable edge; demotions made before that point stay applied.
func Break(g *graph.Graph, paths []string) (*Result, error) {
	in, starts := subset(g, paths)
	res := &Result{}
	limit := g.HardEdgeCount()

	for {
		cycle := findCycle(g, in, starts)
		if cycle == nil {
			return res, nil
		}
		if len(res.Demotions) >= limit {
			return res, fmt.Errorf("cycle breaking did not converge after %d demotions", limit)
		}
		from, to, ok := pickEdge(g, in, cycle)
		if !ok {
			slog.Warn("cycles.unbreakable", "path", cycle)
			return res, &diag.UnbreakableCycleError{Path: cycle}
		}
		d := Demotion{From: from, To: to, Namespaces: g.Demote(from, to), Cycle: cycle}
		slog.Info("cycles.demote", "from", from, "to", to, "namespaces", d.Namespaces, "cycle_len", len(cycle)-1)
		res.Demotions = append(res.Demotions, d)
	}
}

func subset(g *graph.Graph, paths []string) (map[string]bool, []string) {
	if paths == nil {
		paths = g.AllFiles()
	}
	in := make(map[string]bool, len(paths))
	starts := make([]string, 0, len(paths))
	for _, p := range paths {
		if g.File(p) == nil || in[p] {
			continue
		}
		in[p] = true
		starts = append(starts, p)
	}
	sort.Strings(starts)
	return in, starts
}

// findCycle returns the first cycle closed by a back edge, as the path from
// the stack ancestor through the current node and back to the ancestor.
// Roots are visited in path order and edges in declaration order.
func findCycle(g *graph.Graph, in map[string]bool, starts []string) []string {
	state := make(map[string]visitState, len(starts))
	onStack := make(map[string]int)
	var stack []string

	var visit func(n string) []string
	visit = func(n string) []string {
		state[n] = stateVisiting
		onStack[n] = len(stack)
		stack = append(stack, n)
		for _, t := range g.HardTargets(n) {
			if !in[t] {
				continue
			}
			switch state[t] {
			case stateVisiting:
				cycle := append([]string(nil), stack[onStack[t]:]...)
				return append(cycle, t)
			case stateDone:
				continue
			}
			if c := visit(t); c != nil {
				return c
			}
		}
		stack = stack[:len(stack)-1]
		delete(onStack, n)
		state[n] = stateDone
		return nil
	}

	for _, s := range starts {
		if state[s] != 0 {
			continue
		}
		if c := visit(s); c != nil {
			return c
		}
	}
	return nil
}

func hardOutDegree(g *graph.Graph, in map[string]bool, from string) int {
	n := 0
	for _, t := range g.HardTargets(from) {
		if in[t] {
			n++
		}
	}
	return n
}

type candidate struct {
	from, to string
	others   int
	back     bool
}

// pickEdge chooses the edge to demote among the demotable edges of cycle.
// Preference: fewest other outgoing hard edges of the source, then the back
// edge that closed the cycle, then source path, then target path. Only
// edges inside in are counted.
func pickEdge(g *graph.Graph, in map[string]bool, cycle []string) (string, string, bool) {
	var cands []candidate
	last := len(cycle) - 2
	for i := 0; i < len(cycle)-1; i++ {
		from, to := cycle[i], cycle[i+1]
		if !g.EdgeDemotable(from, to) {
			continue
		}
		cands = append(cands, candidate{
			from:   from,
			to:     to,
			others: hardOutDegree(g, in, from) - 1,
			back:   i == last,
		})
	}
	if len(cands) == 0 {
		return "", "", false
	}
	sort.Slice(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.others != b.others {
			return a.others < b.others
		}
		if a.back != b.back {
			return a.back
		}
		if a.from != b.from {
			return a.from < b.from
		}
		return a.to < b.to
	})
	return cands[0].from, cands[0].to, true
}
