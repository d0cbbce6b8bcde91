package graph

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/codeops-dev/registry/pkg/apperrors"
	"github.com/codeops-dev/registry/pkg/events"
	"github.com/codeops-dev/registry/pkg/log"
	"github.com/codeops-dev/registry/pkg/storage"
	"github.com/codeops-dev/registry/pkg/types"
)

// Engine owns dependency edge mutation and the graph queries. Every
// mutation runs its invariant checks and its write in one store
// transaction.
type Engine struct {
	store         *storage.Store
	broker        *events.Broker
	maxPerService int
	logger        zerolog.Logger
}

// NewEngine builds the graph engine. maxPerService caps the out-degree
// of any single service.
func NewEngine(store *storage.Store, broker *events.Broker, maxPerService int) *Engine {
	return &Engine{
		store:         store,
		broker:        broker,
		maxPerService: maxPerService,
		logger:        log.WithComponent("graph"),
	}
}

// CreateDependencyRequest carries the fields of a new edge.
type CreateDependencyRequest struct {
	SourceID     string
	TargetID     string
	Type         types.DependencyType
	Description  string
	IsRequired   *bool
	EndpointHint string
	CreatedBy    string
}

// CreateDependency validates and persists the edge source -> target.
// Checks run in order: self-edge, endpoint existence, team match,
// duplicate edge, out-degree cap, cycle formation.
func (e *Engine) CreateDependency(req CreateDependencyRequest) (*types.ServiceDependency, error) {
	if req.SourceID == req.TargetID {
		return nil, apperrors.Validationf("service cannot depend on itself")
	}

	var edge *types.ServiceDependency
	err := e.store.Update(func(tx *storage.Tx) error {
		source, err := tx.GetService(req.SourceID)
		if err != nil {
			return err
		}
		target, err := tx.GetService(req.TargetID)
		if err != nil {
			return err
		}
		if source.TeamID != target.TeamID {
			return apperrors.Validationf("services %s and %s belong to different teams", source.Slug, target.Slug)
		}

		existing, err := tx.FindDependency(req.SourceID, req.TargetID, req.Type)
		if err != nil {
			return err
		}
		if existing != nil {
			return apperrors.Validationf("dependency %s -> %s (%s) already exists", source.Slug, target.Slug, req.Type)
		}

		outgoing, err := tx.DependenciesBySource(req.SourceID)
		if err != nil {
			return err
		}
		if len(outgoing) >= e.maxPerService {
			return apperrors.Validationf("service %s has reached the maximum of %d dependencies", source.Slug, e.maxPerService)
		}

		edges, err := tx.DependenciesByTeam(source.TeamID)
		if err != nil {
			return err
		}
		if HasPath(req.TargetID, req.SourceID, edges) {
			return apperrors.Validationf("dependency %s -> %s would create a cycle", source.Slug, target.Slug)
		}

		required := true
		if req.IsRequired != nil {
			required = *req.IsRequired
		}
		now := time.Now().UTC()
		edge = &types.ServiceDependency{
			ID:           uuid.NewString(),
			TeamID:       source.TeamID,
			SourceID:     req.SourceID,
			TargetID:     req.TargetID,
			Type:         req.Type,
			Description:  req.Description,
			IsRequired:   required,
			EndpointHint: req.EndpointHint,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		return tx.PutDependency(edge)
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info().
		Str("source", edge.SourceID).
		Str("target", edge.TargetID).
		Str("type", string(edge.Type)).
		Msg("dependency created")
	e.publish(events.EventDependencyCreated, edge.TeamID, edge.ID)
	return edge, nil
}

// RemoveDependency deletes the edge by id.
func (e *Engine) RemoveDependency(id string) error {
	var teamID string
	err := e.store.Update(func(tx *storage.Tx) error {
		edge, err := tx.GetDependency(id)
		if err != nil {
			return err
		}
		teamID = edge.TeamID
		return tx.DeleteDependency(id)
	})
	if err != nil {
		return err
	}
	e.publish(events.EventDependencyRemoved, teamID, id)
	return nil
}

// GetDependency loads one edge by id.
func (e *Engine) GetDependency(id string) (*types.ServiceDependency, error) {
	var edge *types.ServiceDependency
	err := e.store.View(func(tx *storage.Tx) error {
		var err error
		edge, err = tx.GetDependency(id)
		return err
	})
	return edge, err
}

// Node is one service as it appears in graph views.
type Node struct {
	ID     string              `json:"id"`
	Name   string              `json:"name"`
	Slug   string              `json:"slug"`
	Type   types.ServiceType   `json:"type"`
	Status types.ServiceStatus `json:"status"`
	Health types.HealthStatus  `json:"health"`
}

// View is the full dependency graph of one team.
type View struct {
	TeamID string                     `json:"teamId"`
	Nodes  []Node                     `json:"nodes"`
	Edges  []*types.ServiceDependency `json:"edges"`
}

// Graph returns every team service as a node plus every team edge.
func (e *Engine) Graph(teamID string) (*View, error) {
	view := &View{TeamID: teamID}
	err := e.store.View(func(tx *storage.Tx) error {
		services, err := tx.ServicesByTeam(teamID)
		if err != nil {
			return err
		}
		edges, err := tx.DependenciesByTeam(teamID)
		if err != nil {
			return err
		}
		for _, s := range services {
			view.Nodes = append(view.Nodes, nodeOf(s))
		}
		sort.Slice(view.Nodes, func(i, j int) bool { return view.Nodes[i].Slug < view.Nodes[j].Slug })
		sort.Slice(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })
		view.Edges = edges
		return nil
	})
	if err != nil {
		return nil, err
	}
	if view.Edges == nil {
		view.Edges = []*types.ServiceDependency{}
	}
	return view, nil
}

func nodeOf(s *types.Service) Node {
	health := s.LastHealthStatus
	if health == "" {
		health = types.HealthUnknown
	}
	return Node{
		ID:     s.ID,
		Name:   s.Name,
		Slug:   s.Slug,
		Type:   s.Type,
		Status: s.Status,
		Health: health,
	}
}

// ImpactEntry is one service affected when the analyzed service is
// impaired. ConnectionType and IsRequired come from the first incoming
// edge the reverse BFS encountered.
type ImpactEntry struct {
	ServiceID      string               `json:"serviceId"`
	Name           string               `json:"name"`
	Slug           string               `json:"slug"`
	Depth          int                  `json:"depth"`
	ConnectionType types.DependencyType `json:"connectionType"`
	IsRequired     bool                 `json:"isRequired"`
}

// ImpactReport lists everything transitively upstream of a service.
type ImpactReport struct {
	ServiceID     string        `json:"serviceId"`
	ServiceName   string        `json:"serviceName"`
	TotalAffected int           `json:"totalAffected"`
	Affected      []ImpactEntry `json:"affected"`
}

// Impact runs a reverse BFS from the service: depth 1 is its direct
// consumers, depth 2 their consumers, and so on. The analyzed service
// itself is excluded. Entries order by depth, then name.
func (e *Engine) Impact(serviceID string) (*ImpactReport, error) {
	report := &ImpactReport{ServiceID: serviceID, Affected: []ImpactEntry{}}
	err := e.store.View(func(tx *storage.Tx) error {
		svc, err := tx.GetService(serviceID)
		if err != nil {
			return err
		}
		report.ServiceName = svc.Name

		services, err := tx.ServicesByTeam(svc.TeamID)
		if err != nil {
			return err
		}
		edges, err := tx.DependenciesByTeam(svc.TeamID)
		if err != nil {
			return err
		}

		byID := make(map[string]*types.Service, len(services))
		for _, s := range services {
			byID[s.ID] = s
		}

		// Reverse adjacency: for target t, the edges pointing at t.
		incoming := make(map[string][]*types.ServiceDependency)
		for _, edge := range edges {
			incoming[edge.TargetID] = append(incoming[edge.TargetID], edge)
		}
		// Slug-sorted edge lists keep the first-seen edge deterministic.
		for _, list := range incoming {
			sort.Slice(list, func(i, j int) bool {
				a, b := byID[list[i].SourceID], byID[list[j].SourceID]
				if a != nil && b != nil && a.Slug != b.Slug {
					return a.Slug < b.Slug
				}
				return list[i].SourceID < list[j].SourceID
			})
		}

		visited := map[string]bool{serviceID: true}
		frontier := []string{serviceID}
		depth := 0
		for len(frontier) > 0 {
			depth++
			var next []string
			for _, id := range frontier {
				for _, edge := range incoming[id] {
					if visited[edge.SourceID] {
						continue
					}
					visited[edge.SourceID] = true
					upstream := byID[edge.SourceID]
					if upstream == nil {
						continue
					}
					report.Affected = append(report.Affected, ImpactEntry{
						ServiceID:      upstream.ID,
						Name:           upstream.Name,
						Slug:           upstream.Slug,
						Depth:          depth,
						ConnectionType: edge.Type,
						IsRequired:     edge.IsRequired,
					})
					next = append(next, edge.SourceID)
				}
			}
			frontier = next
		}

		sort.Slice(report.Affected, func(i, j int) bool {
			a, b := report.Affected[i], report.Affected[j]
			if a.Depth != b.Depth {
				return a.Depth < b.Depth
			}
			return a.Name < b.Name
		})
		report.TotalAffected = len(report.Affected)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// StartupOrder returns the team services ordered so every dependency
// target starts before its dependents. Cycle participants are omitted.
func (e *Engine) StartupOrder(teamID string) ([]*types.Service, error) {
	var order []*types.Service
	err := e.store.View(func(tx *storage.Tx) error {
		services, err := tx.ServicesByTeam(teamID)
		if err != nil {
			return err
		}
		edges, err := tx.DependenciesByTeam(teamID)
		if err != nil {
			return err
		}
		order = KahnOrder(services, edges)
		return nil
	})
	return order, err
}

// DetectCycles returns the ids of services caught in (or depending
// into) a dependency cycle. An acyclic team yields an empty slice.
func (e *Engine) DetectCycles(teamID string) ([]string, error) {
	var ids []string
	err := e.store.View(func(tx *storage.Tx) error {
		services, err := tx.ServicesByTeam(teamID)
		if err != nil {
			return err
		}
		edges, err := tx.DependenciesByTeam(teamID)
		if err != nil {
			return err
		}
		ids = CycleIDs(services, edges)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// EdgeView is one edge annotated with the name and slug of the far
// endpoint, for the per-service dependency listing.
type EdgeView struct {
	ID           string               `json:"id"`
	ServiceID    string               `json:"serviceId"`
	ServiceName  string               `json:"serviceName"`
	ServiceSlug  string               `json:"serviceSlug"`
	Type         types.DependencyType `json:"type"`
	IsRequired   bool                 `json:"isRequired"`
	Description  string               `json:"description,omitempty"`
	EndpointHint string               `json:"endpointHint,omitempty"`
}

// ServiceDependencies bundles both directions for one service.
type ServiceDependencies struct {
	ServiceID  string     `json:"serviceId"`
	Upstream   []EdgeView `json:"upstream"`
	Downstream []EdgeView `json:"downstream"`
}

// ListForService returns the outgoing (upstream) and incoming
// (downstream) edges of one service with endpoint names resolved.
func (e *Engine) ListForService(serviceID string) (*ServiceDependencies, error) {
	deps := &ServiceDependencies{
		ServiceID:  serviceID,
		Upstream:   []EdgeView{},
		Downstream: []EdgeView{},
	}
	err := e.store.View(func(tx *storage.Tx) error {
		if _, err := tx.GetService(serviceID); err != nil {
			return err
		}

		outgoing, err := tx.DependenciesBySource(serviceID)
		if err != nil {
			return err
		}
		for _, edge := range outgoing {
			view, err := edgeView(tx, edge, edge.TargetID)
			if err != nil {
				return err
			}
			deps.Upstream = append(deps.Upstream, view)
		}

		incoming, err := tx.DependenciesByTarget(serviceID)
		if err != nil {
			return err
		}
		for _, edge := range incoming {
			view, err := edgeView(tx, edge, edge.SourceID)
			if err != nil {
				return err
			}
			deps.Downstream = append(deps.Downstream, view)
		}

		sortEdgeViews(deps.Upstream)
		sortEdgeViews(deps.Downstream)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deps, nil
}

func edgeView(tx *storage.Tx, edge *types.ServiceDependency, endpointID string) (EdgeView, error) {
	view := EdgeView{
		ID:           edge.ID,
		ServiceID:    endpointID,
		Type:         edge.Type,
		IsRequired:   edge.IsRequired,
		Description:  edge.Description,
		EndpointHint: edge.EndpointHint,
	}
	svc, err := tx.GetService(endpointID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return view, nil
		}
		return view, err
	}
	view.ServiceName = svc.Name
	view.ServiceSlug = svc.Slug
	return view, nil
}

func sortEdgeViews(views []EdgeView) {
	sort.Slice(views, func(i, j int) bool {
		if views[i].ServiceSlug != views[j].ServiceSlug {
			return views[i].ServiceSlug < views[j].ServiceSlug
		}
		return views[i].Type < views[j].Type
	})
}

func (e *Engine) publish(eventType events.EventType, teamID, entityID string) {
	if e.broker == nil {
		return
	}
	e.broker.Publish(&events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TeamID:    teamID,
		EntityID:  entityID,
		Timestamp: time.Now().UTC(),
	})
}
