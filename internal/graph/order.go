package graph

import (
	"fmt"
	"sort"
	"strings"
)

// CycleError indicates that the hard subgraph still contains a cycle,
// preventing a load order.
type CycleError struct {
	// Files holds the nodes that could not be ordered.
	Files []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("hard dependency cycle among: %s", strings.Join(e.Files, ", "))
}

// LoadOrder returns paths ordered so that every file comes after the files
// it hard-depends on (Kahn's algorithm). Edges leaving the given set are
// ignored. Among files ready at the same time the smallest path goes first,
// so the order is deterministic.
func (g *Graph) LoadOrder(paths []string) ([]string, error) {
	in := make(map[string]bool, len(paths))
	for _, p := range paths {
		in[p] = true
	}

	// pending counts unmet dependencies; dependents maps target -> sources.
	pending := make(map[string]int, len(in))
	dependents := make(map[string][]string, len(in))
	for p := range in {
		pending[p] = 0
	}
	for p := range in {
		for _, t := range g.HardTargets(p) {
			if !in[t] {
				continue
			}
			pending[p]++
			dependents[t] = append(dependents[t], p)
		}
	}

	var ready []string
	for p, n := range pending {
		if n == 0 {
			ready = append(ready, p)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(in))
	for len(ready) > 0 {
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)

		var unlocked []string
		for _, d := range dependents[next] {
			pending[d]--
			if pending[d] == 0 {
				unlocked = append(unlocked, d)
			}
		}
		if len(unlocked) > 0 {
			ready = append(ready, unlocked...)
			sort.Strings(ready)
		}
	}

	if len(order) != len(in) {
		var stuck []string
		for p, n := range pending {
			if n > 0 {
				stuck = append(stuck, p)
			}
		}
		sort.Strings(stuck)
		return nil, &CycleError{Files: stuck}
	}
	return order, nil
}
