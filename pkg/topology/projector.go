package topology

import (
	"sort"

	"github.com/codeops-dev/registry/pkg/graph"
	"github.com/codeops-dev/registry/pkg/storage"
	"github.com/codeops-dev/registry/pkg/types"
)

// Layer names the coarse role buckets.
const (
	LayerInfrastructure = "infrastructure"
	LayerBackend        = "backend"
	LayerFrontend       = "frontend"
	LayerGateway        = "gateway"
	LayerStandalone     = "standalone"
)

// Layer classifies a service type into its topology bucket.
func Layer(t types.ServiceType) string {
	switch t {
	case types.ServiceTypeDatabase, types.ServiceTypeCache, types.ServiceTypeMessageBroker:
		return LayerInfrastructure
	case types.ServiceTypeSpringBoot, types.ServiceTypeExpress, types.ServiceTypeFastAPI,
		types.ServiceTypeDotnetAPI, types.ServiceTypeGoAPI, types.ServiceTypeWorker,
		types.ServiceTypeMCPServer:
		return LayerBackend
	case types.ServiceTypeReactSPA, types.ServiceTypeNextJS, types.ServiceTypeFlutterWeb:
		return LayerFrontend
	case types.ServiceTypeAPIGateway:
		return LayerGateway
	default:
		return LayerStandalone
	}
}

// Node is one service in a topology view, annotated with counts and its
// layer.
type Node struct {
	ID              string              `json:"id"`
	Name            string              `json:"name"`
	Slug            string              `json:"slug"`
	Type            types.ServiceType   `json:"type"`
	Status          types.ServiceStatus `json:"status"`
	Health          types.HealthStatus  `json:"health"`
	Layer           string              `json:"layer"`
	UpstreamCount   int                 `json:"upstreamCount"`
	DownstreamCount int                 `json:"downstreamCount"`
	PortCount       int                 `json:"portCount"`
	SolutionIDs     []string            `json:"solutionIds"`
}

// Edge is one dependency in a topology view.
type Edge struct {
	ID         string               `json:"id"`
	SourceID   string               `json:"sourceServiceId"`
	TargetID   string               `json:"targetServiceId"`
	Type       types.DependencyType `json:"type"`
	IsRequired bool                 `json:"isRequired"`
}

// SolutionGroup lists the services owned by one solution.
type SolutionGroup struct {
	SolutionID string   `json:"solutionId"`
	Name       string   `json:"name"`
	Slug       string   `json:"slug"`
	ServiceIDs []string `json:"serviceIds"`
}

// Stats summarizes one team's ecosystem.
type Stats struct {
	TotalServices              int `json:"totalServices"`
	TotalDependencies          int `json:"totalDependencies"`
	TotalSolutions             int `json:"totalSolutions"`
	ServicesWithNoDependencies int `json:"servicesWithNoDependencies"`
	ServicesWithNoConsumers    int `json:"servicesWithNoConsumers"`
	OrphanedServices           int `json:"orphanedServices"`
	MaxDependencyDepth         int `json:"maxDependencyDepth"`
}

// TeamView is the full team topology.
type TeamView struct {
	TeamID    string              `json:"teamId"`
	Nodes     []Node              `json:"nodes"`
	Edges     []Edge              `json:"edges"`
	Layers    map[string][]string `json:"layers"`
	Solutions []SolutionGroup     `json:"solutions"`
	Stats     Stats               `json:"stats"`
}

// Projector assembles topology views from the store.
type Projector struct {
	store *storage.Store
}

// NewProjector builds the projector.
func NewProjector(store *storage.Store) *Projector {
	return &Projector{store: store}
}

// TeamTopology assembles the full team view: annotated nodes, edges,
// layer buckets, solution groups, and stats.
func (p *Projector) TeamTopology(teamID string) (*TeamView, error) {
	view := &TeamView{
		TeamID: teamID,
		Nodes:  []Node{},
		Edges:  []Edge{},
		Layers: map[string][]string{},
	}
	err := p.store.View(func(tx *storage.Tx) error {
		services, err := tx.ServicesByTeam(teamID)
		if err != nil {
			return err
		}
		edges, err := tx.DependenciesByTeam(teamID)
		if err != nil {
			return err
		}
		solutions, err := tx.SolutionsByTeam(teamID)
		if err != nil {
			return err
		}

		memberSolutions := map[string][]string{}
		sort.Slice(solutions, func(i, j int) bool { return solutions[i].Slug < solutions[j].Slug })
		for _, sol := range solutions {
			members, err := tx.MembersBySolution(sol.ID)
			if err != nil {
				return err
			}
			sort.Slice(members, func(i, j int) bool { return members[i].DisplayOrder < members[j].DisplayOrder })
			group := SolutionGroup{SolutionID: sol.ID, Name: sol.Name, Slug: sol.Slug, ServiceIDs: []string{}}
			for _, m := range members {
				group.ServiceIDs = append(group.ServiceIDs, m.ServiceID)
				memberSolutions[m.ServiceID] = append(memberSolutions[m.ServiceID], sol.ID)
			}
			view.Solutions = append(view.Solutions, group)
		}

		portCounts := map[string]int{}
		allocs, err := tx.AllocationsByTeam(teamID)
		if err != nil {
			return err
		}
		for _, a := range allocs {
			portCounts[a.ServiceID]++
		}

		outDegree := map[string]int{}
		inDegree := map[string]int{}
		for _, e := range edges {
			outDegree[e.SourceID]++
			inDegree[e.TargetID]++
		}

		sort.Slice(services, func(i, j int) bool { return services[i].Slug < services[j].Slug })
		for _, svc := range services {
			node := nodeOf(svc)
			node.UpstreamCount = outDegree[svc.ID]
			node.DownstreamCount = inDegree[svc.ID]
			node.PortCount = portCounts[svc.ID]
			node.SolutionIDs = memberSolutions[svc.ID]
			if node.SolutionIDs == nil {
				node.SolutionIDs = []string{}
			}
			view.Nodes = append(view.Nodes, node)
			view.Layers[node.Layer] = append(view.Layers[node.Layer], svc.ID)
		}

		sort.Slice(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })
		for _, e := range edges {
			view.Edges = append(view.Edges, edgeOf(e))
		}

		view.Stats = computeStats(services, edges, len(solutions), memberSolutions)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// SolutionView is a topology restricted to one solution's members.
type SolutionView struct {
	SolutionID string `json:"solutionId"`
	Name       string `json:"name"`
	Nodes      []Node `json:"nodes"`
	Edges      []Edge `json:"edges"`
}

// SolutionTopology restricts nodes to solution members and edges to
// those with both endpoints in the member set.
func (p *Projector) SolutionTopology(solutionID string) (*SolutionView, error) {
	view := &SolutionView{SolutionID: solutionID, Nodes: []Node{}, Edges: []Edge{}}
	err := p.store.View(func(tx *storage.Tx) error {
		sol, err := tx.GetSolution(solutionID)
		if err != nil {
			return err
		}
		view.Name = sol.Name

		members, err := tx.MembersBySolution(solutionID)
		if err != nil {
			return err
		}
		inSet := map[string]bool{}
		var services []*types.Service
		for _, m := range members {
			svc, err := tx.GetService(m.ServiceID)
			if err != nil {
				continue
			}
			inSet[svc.ID] = true
			services = append(services, svc)
		}
		sort.Slice(services, func(i, j int) bool { return services[i].Slug < services[j].Slug })
		for _, svc := range services {
			view.Nodes = append(view.Nodes, nodeOf(svc))
		}

		edges, err := tx.DependenciesByTeam(sol.TeamID)
		if err != nil {
			return err
		}
		sort.Slice(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })
		for _, e := range edges {
			if inSet[e.SourceID] && inSet[e.TargetID] {
				view.Edges = append(view.Edges, edgeOf(e))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// NeighborhoodView is the subgraph within depth hops of one service.
type NeighborhoodView struct {
	ServiceID string `json:"serviceId"`
	Depth     int    `json:"depth"`
	Nodes     []Node `json:"nodes"`
	Edges     []Edge `json:"edges"`
}

// MaxNeighborhoodDepth caps neighborhood traversal.
const MaxNeighborhoodDepth = 3

// Neighborhood walks depth hops from the service in both edge
// directions and returns the induced subgraph.
func (p *Projector) Neighborhood(serviceID string, depth int) (*NeighborhoodView, error) {
	if depth < 1 {
		depth = 1
	}
	if depth > MaxNeighborhoodDepth {
		depth = MaxNeighborhoodDepth
	}
	view := &NeighborhoodView{ServiceID: serviceID, Depth: depth, Nodes: []Node{}, Edges: []Edge{}}
	err := p.store.View(func(tx *storage.Tx) error {
		svc, err := tx.GetService(serviceID)
		if err != nil {
			return err
		}
		services, err := tx.ServicesByTeam(svc.TeamID)
		if err != nil {
			return err
		}
		edges, err := tx.DependenciesByTeam(svc.TeamID)
		if err != nil {
			return err
		}

		// Undirected adjacency for the both-ways walk.
		neighbors := map[string][]string{}
		for _, e := range edges {
			neighbors[e.SourceID] = append(neighbors[e.SourceID], e.TargetID)
			neighbors[e.TargetID] = append(neighbors[e.TargetID], e.SourceID)
		}

		reached := map[string]bool{serviceID: true}
		frontier := []string{serviceID}
		for hop := 0; hop < depth && len(frontier) > 0; hop++ {
			var next []string
			for _, id := range frontier {
				for _, n := range neighbors[id] {
					if !reached[n] {
						reached[n] = true
						next = append(next, n)
					}
				}
			}
			frontier = next
		}

		var inView []*types.Service
		for _, s := range services {
			if reached[s.ID] {
				inView = append(inView, s)
			}
		}
		sort.Slice(inView, func(i, j int) bool { return inView[i].Slug < inView[j].Slug })
		for _, s := range inView {
			view.Nodes = append(view.Nodes, nodeOf(s))
		}

		sort.Slice(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })
		for _, e := range edges {
			if reached[e.SourceID] && reached[e.TargetID] {
				view.Edges = append(view.Edges, edgeOf(e))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// Stats computes the team's ecosystem statistics.
func (p *Projector) Stats(teamID string) (*Stats, error) {
	var stats Stats
	err := p.store.View(func(tx *storage.Tx) error {
		services, err := tx.ServicesByTeam(teamID)
		if err != nil {
			return err
		}
		edges, err := tx.DependenciesByTeam(teamID)
		if err != nil {
			return err
		}
		solutions, err := tx.SolutionsByTeam(teamID)
		if err != nil {
			return err
		}

		memberSolutions := map[string][]string{}
		for _, sol := range solutions {
			members, err := tx.MembersBySolution(sol.ID)
			if err != nil {
				return err
			}
			for _, m := range members {
				memberSolutions[m.ServiceID] = append(memberSolutions[m.ServiceID], sol.ID)
			}
		}

		stats = computeStats(services, edges, len(solutions), memberSolutions)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func computeStats(services []*types.Service, edges []*types.ServiceDependency, totalSolutions int, memberSolutions map[string][]string) Stats {
	stats := Stats{
		TotalServices:      len(services),
		TotalDependencies:  len(edges),
		TotalSolutions:     totalSolutions,
		MaxDependencyDepth: graph.LongestPath(services, edges),
	}

	isSource := map[string]bool{}
	isTarget := map[string]bool{}
	for _, e := range edges {
		isSource[e.SourceID] = true
		isTarget[e.TargetID] = true
	}
	for _, svc := range services {
		if !isSource[svc.ID] {
			stats.ServicesWithNoDependencies++
		}
		if !isTarget[svc.ID] {
			stats.ServicesWithNoConsumers++
		}
		if len(memberSolutions[svc.ID]) == 0 && !isSource[svc.ID] && !isTarget[svc.ID] {
			stats.OrphanedServices++
		}
	}
	return stats
}

func nodeOf(svc *types.Service) Node {
	health := svc.LastHealthStatus
	if health == "" {
		health = types.HealthUnknown
	}
	return Node{
		ID:          svc.ID,
		Name:        svc.Name,
		Slug:        svc.Slug,
		Type:        svc.Type,
		Status:      svc.Status,
		Health:      health,
		Layer:       Layer(svc.Type),
		SolutionIDs: []string{},
	}
}

func edgeOf(e *types.ServiceDependency) Edge {
	return Edge{
		ID:         e.ID,
		SourceID:   e.SourceID,
		TargetID:   e.TargetID,
		Type:       e.Type,
		IsRequired: e.IsRequired,
	}
}
