package graph

import (
	"sort"

	"github.com/codeops-dev/registry/pkg/types"
)

// HasPath reports whether goal is reachable from start over the directed
// edges. A node always reaches itself.
func HasPath(start, goal string, edges []*types.ServiceDependency) bool {
	if start == goal {
		return true
	}

	adjacency := make(map[string][]string)
	for _, e := range edges {
		adjacency[e.SourceID] = append(adjacency[e.SourceID], e.TargetID)
	}

	visited := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, next := range adjacency[current] {
			if next == goal {
				return true
			}
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}

// KahnOrder returns the startup order of the services: every service a
// given service depends on appears before it. Ties within a layer break
// by slug ascending. Services caught in a cycle never reach in-degree
// zero and are omitted.
//
// The sort runs over the reverse of the recorded edges: an edge A -> B
// ("A depends on B") makes B a producer of A, so B must start first.
func KahnOrder(services []*types.Service, edges []*types.ServiceDependency) []*types.Service {
	byID := make(map[string]*types.Service, len(services))
	for _, s := range services {
		byID[s.ID] = s
	}

	// inDegree counts, per service, how many of its dependencies are
	// still unstarted. dependents[t] lists the services waiting on t.
	inDegree := make(map[string]int, len(services))
	dependents := make(map[string][]string)
	for _, s := range services {
		inDegree[s.ID] = 0
	}
	for _, e := range edges {
		if _, ok := byID[e.SourceID]; !ok {
			continue
		}
		if _, ok := byID[e.TargetID]; !ok {
			continue
		}
		inDegree[e.SourceID]++
		dependents[e.TargetID] = append(dependents[e.TargetID], e.SourceID)
	}

	var ready []string
	for id, deg := range inDegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}
	sortBySlug(ready, byID)

	order := make([]*types.Service, 0, len(services))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, byID[id])

		released := false
		for _, dep := range dependents[id] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				ready = append(ready, dep)
				released = true
			}
		}
		if released {
			sortBySlug(ready, byID)
		}
	}
	return order
}

// CycleIDs returns the ids of services that never reach in-degree zero
// under KahnOrder: members of a cycle or services depending into one.
// Results are slug-sorted.
func CycleIDs(services []*types.Service, edges []*types.ServiceDependency) []string {
	ordered := KahnOrder(services, edges)
	inOrder := make(map[string]bool, len(ordered))
	for _, s := range ordered {
		inOrder[s.ID] = true
	}

	byID := make(map[string]*types.Service, len(services))
	var stuck []string
	for _, s := range services {
		if !inOrder[s.ID] {
			byID[s.ID] = s
			stuck = append(stuck, s.ID)
		}
	}
	sortBySlug(stuck, byID)
	return stuck
}

// LongestPath returns the length in edges of the longest simple path in
// the dependency DAG, walking forward adjacency with memoization. Edges
// that would revisit a node on the current walk are skipped, so a cycle
// slipped in by external data cannot hang the computation.
func LongestPath(services []*types.Service, edges []*types.ServiceDependency) int {
	adjacency := make(map[string][]string)
	for _, e := range edges {
		adjacency[e.SourceID] = append(adjacency[e.SourceID], e.TargetID)
	}

	memo := make(map[string]int, len(services))
	onStack := make(map[string]bool)

	var depth func(id string) int
	depth = func(id string) int {
		if d, ok := memo[id]; ok {
			return d
		}
		if onStack[id] {
			return 0
		}
		onStack[id] = true
		best := 0
		for _, next := range adjacency[id] {
			if d := depth(next) + 1; d > best {
				best = d
			}
		}
		onStack[id] = false
		memo[id] = best
		return best
	}

	max := 0
	for _, s := range services {
		if d := depth(s.ID); d > max {
			max = d
		}
	}
	return max
}

func sortBySlug(ids []string, byID map[string]*types.Service) {
	sort.Slice(ids, func(i, j int) bool {
		a, b := byID[ids[i]], byID[ids[j]]
		if a == nil || b == nil {
			return ids[i] < ids[j]
		}
		if a.Slug != b.Slug {
			return a.Slug < b.Slug
		}
		return a.ID < b.ID
	})
}
