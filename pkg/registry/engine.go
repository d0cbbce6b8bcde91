package registry

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/codeops-dev/registry/pkg/apperrors"
	"github.com/codeops-dev/registry/pkg/config"
	"github.com/codeops-dev/registry/pkg/events"
	"github.com/codeops-dev/registry/pkg/log"
	"github.com/codeops-dev/registry/pkg/ports"
	"github.com/codeops-dev/registry/pkg/storage"
	"github.com/codeops-dev/registry/pkg/types"
)

// Engine owns service records. Slug uniqueness, team caps, and deletion
// guards are enforced inside single store transactions.
type Engine struct {
	store  *storage.Store
	broker *events.Broker
	ports  *ports.Engine
	limits config.LimitsConfig
	logger zerolog.Logger
}

// NewEngine builds the service engine. The port engine is used by Clone
// for in-transaction auto-allocation.
func NewEngine(store *storage.Store, broker *events.Broker, portEngine *ports.Engine, limits config.LimitsConfig) *Engine {
	return &Engine{
		store:  store,
		broker: broker,
		ports:  portEngine,
		limits: limits,
		logger: log.WithComponent("registry"),
	}
}

// CreateServiceRequest carries the fields of a new service.
type CreateServiceRequest struct {
	Name                       string
	Slug                       string
	Type                       types.ServiceType
	RepoURL                    string
	Branch                     string
	TechStack                  string
	Description                string
	HealthCheckURL             string
	HealthCheckIntervalSeconds int
	Environments               map[string]string
	Metadata                   map[string]string
	CreatedBy                  string
}

// CreateService registers a service under the team, deriving the slug
// from the name when none is given and suffixing -2, -3, ... on
// collision.
func (e *Engine) CreateService(teamID string, req CreateServiceRequest) (*types.Service, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, apperrors.Validationf("service name must not be empty")
	}

	base := req.Slug
	if base == "" {
		base = types.Slugify(req.Name)
	}
	if err := types.ValidateSlug(base); err != nil {
		return nil, apperrors.Validationf("%v", err)
	}

	var svc *types.Service
	err := e.store.Update(func(tx *storage.Tx) error {
		existing, err := tx.ServicesByTeam(teamID)
		if err != nil {
			return err
		}
		if len(existing) >= e.limits.MaxServicesPerTeam {
			return apperrors.Validationf("team %s has reached the maximum of %d services", teamID, e.limits.MaxServicesPerTeam)
		}

		slug, err := uniqueSlug(tx, teamID, base)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		svc = &types.Service{
			ID:                         uuid.NewString(),
			TeamID:                     teamID,
			Name:                       req.Name,
			Slug:                       slug,
			Type:                       req.Type,
			Status:                     types.ServiceStatusActive,
			RepoURL:                    req.RepoURL,
			Branch:                     req.Branch,
			TechStack:                  req.TechStack,
			Description:                req.Description,
			HealthCheckURL:             req.HealthCheckURL,
			HealthCheckIntervalSeconds: req.HealthCheckIntervalSeconds,
			LastHealthStatus:           types.HealthUnknown,
			Environments:               req.Environments,
			Metadata:                   req.Metadata,
			CreatedBy:                  req.CreatedBy,
			CreatedAt:                  now,
			UpdatedAt:                  now,
		}
		return tx.PutService(svc)
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info().Str("team", teamID).Str("slug", svc.Slug).Msg("service created")
	e.publish(events.EventServiceCreated, teamID, svc.ID)
	return svc, nil
}

// uniqueSlug returns base, or the first base-N (N >= 2) free in the team.
func uniqueSlug(tx *storage.Tx, teamID, base string) (string, error) {
	candidate := base
	for n := 2; ; n++ {
		existing, err := tx.FindServiceBySlug(teamID, candidate)
		if err != nil {
			return "", err
		}
		if existing == nil {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, n)
	}
}

// GetService loads one service by id.
func (e *Engine) GetService(id string) (*types.Service, error) {
	var svc *types.Service
	err := e.store.View(func(tx *storage.Tx) error {
		var err error
		svc, err = tx.GetService(id)
		return err
	})
	return svc, err
}

// ListFilter narrows ListServices.
type ListFilter struct {
	Status types.ServiceStatus
	Type   types.ServiceType
	Search string
}

// ListServices returns the team's services, filtered and slug-sorted.
// Search matches name, slug, and description case-insensitively.
func (e *Engine) ListServices(teamID string, filter ListFilter) ([]*types.Service, error) {
	var services []*types.Service
	err := e.store.View(func(tx *storage.Tx) error {
		var err error
		services, err = tx.ServicesByTeam(teamID)
		return err
	})
	if err != nil {
		return nil, err
	}

	filtered := services[:0]
	search := strings.ToLower(filter.Search)
	for _, s := range services {
		if filter.Status != "" && s.Status != filter.Status {
			continue
		}
		if filter.Type != "" && s.Type != filter.Type {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(s.Name), search) &&
			!strings.Contains(s.Slug, search) &&
			!strings.Contains(strings.ToLower(s.Description), search) {
			continue
		}
		filtered = append(filtered, s)
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].Slug < filtered[j].Slug })
	return filtered, nil
}

// UpdateServiceRequest carries partial updates; nil fields are left
// untouched. The slug is immutable.
type UpdateServiceRequest struct {
	Name                       *string
	Type                       *types.ServiceType
	RepoURL                    *string
	Branch                     *string
	TechStack                  *string
	Description                *string
	HealthCheckURL             *string
	HealthCheckIntervalSeconds *int
	Environments               map[string]string
	Metadata                   map[string]string
}

// UpdateService applies the non-nil fields.
func (e *Engine) UpdateService(id string, req UpdateServiceRequest) (*types.Service, error) {
	var svc *types.Service
	err := e.store.Update(func(tx *storage.Tx) error {
		var err error
		svc, err = tx.GetService(id)
		if err != nil {
			return err
		}
		if req.Name != nil {
			if strings.TrimSpace(*req.Name) == "" {
				return apperrors.Validationf("service name must not be empty")
			}
			svc.Name = *req.Name
		}
		if req.Type != nil {
			svc.Type = *req.Type
		}
		if req.RepoURL != nil {
			svc.RepoURL = *req.RepoURL
		}
		if req.Branch != nil {
			svc.Branch = *req.Branch
		}
		if req.TechStack != nil {
			svc.TechStack = *req.TechStack
		}
		if req.Description != nil {
			svc.Description = *req.Description
		}
		if req.HealthCheckURL != nil {
			svc.HealthCheckURL = *req.HealthCheckURL
		}
		if req.HealthCheckIntervalSeconds != nil {
			svc.HealthCheckIntervalSeconds = *req.HealthCheckIntervalSeconds
		}
		if req.Environments != nil {
			svc.Environments = req.Environments
		}
		if req.Metadata != nil {
			svc.Metadata = req.Metadata
		}
		svc.UpdatedAt = time.Now().UTC()
		return tx.PutService(svc)
	})
	if err != nil {
		return nil, err
	}
	e.publish(events.EventServiceUpdated, svc.TeamID, svc.ID)
	return svc, nil
}

// SetStatus moves the service to the given lifecycle status. All
// transitions are free.
func (e *Engine) SetStatus(id string, status types.ServiceStatus) (*types.Service, error) {
	var svc *types.Service
	err := e.store.Update(func(tx *storage.Tx) error {
		var err error
		svc, err = tx.GetService(id)
		if err != nil {
			return err
		}
		svc.Status = status
		svc.UpdatedAt = time.Now().UTC()
		return tx.PutService(svc)
	})
	if err != nil {
		return nil, err
	}
	e.publish(events.EventServiceUpdated, svc.TeamID, svc.ID)
	return svc, nil
}

// DeleteService removes the service and everything it owns. Deletion is
// blocked while the service belongs to solutions or has required
// inbound dependencies.
func (e *Engine) DeleteService(id string) error {
	var teamID string
	err := e.store.Update(func(tx *storage.Tx) error {
		svc, err := tx.GetService(id)
		if err != nil {
			return err
		}
		teamID = svc.TeamID

		members, err := tx.MembersByService(id)
		if err != nil {
			return err
		}
		if len(members) > 0 {
			return apperrors.Validationf("service %s belongs to solutions and cannot be deleted", svc.Slug)
		}

		incoming, err := tx.DependenciesByTarget(id)
		if err != nil {
			return err
		}
		for _, edge := range incoming {
			if edge.IsRequired {
				return apperrors.Validationf("service %s has active dependents and cannot be deleted", svc.Slug)
			}
		}

		return tx.DeleteService(id)
	})
	if err != nil {
		return err
	}
	e.logger.Info().Str("service", id).Msg("service deleted")
	e.publish(events.EventServiceDeleted, teamID, id)
	return nil
}

// CloneRequest names the copy and optionally re-allocates ports.
type CloneRequest struct {
	Name              string
	Slug              string
	Environment       string
	AutoAllocatePorts bool
	CreatedBy         string
}

// Clone copies a service within its team: descriptive fields, env-config
// rows (marked INHERITED), and, when requested, fresh auto-allocations
// for every port type the source holds in the environment. The whole
// clone is one transaction.
func (e *Engine) Clone(sourceID string, req CloneRequest) (*types.Service, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, apperrors.Validationf("service name must not be empty")
	}

	var clone *types.Service
	err := e.store.Update(func(tx *storage.Tx) error {
		src, err := tx.GetService(sourceID)
		if err != nil {
			return err
		}

		existing, err := tx.ServicesByTeam(src.TeamID)
		if err != nil {
			return err
		}
		if len(existing) >= e.limits.MaxServicesPerTeam {
			return apperrors.Validationf("team %s has reached the maximum of %d services", src.TeamID, e.limits.MaxServicesPerTeam)
		}

		base := req.Slug
		if base == "" {
			base = types.Slugify(req.Name)
		}
		if err := types.ValidateSlug(base); err != nil {
			return apperrors.Validationf("%v", err)
		}
		slug, err := uniqueSlug(tx, src.TeamID, base)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		clone = &types.Service{
			ID:                         uuid.NewString(),
			TeamID:                     src.TeamID,
			Name:                       req.Name,
			Slug:                       slug,
			Type:                       src.Type,
			Status:                     types.ServiceStatusActive,
			RepoURL:                    src.RepoURL,
			Branch:                     src.Branch,
			TechStack:                  src.TechStack,
			Description:                src.Description,
			HealthCheckURL:             src.HealthCheckURL,
			HealthCheckIntervalSeconds: src.HealthCheckIntervalSeconds,
			LastHealthStatus:           types.HealthUnknown,
			Environments:               copyMap(src.Environments),
			Metadata:                   copyMap(src.Metadata),
			CreatedBy:                  req.CreatedBy,
			CreatedAt:                  now,
			UpdatedAt:                  now,
		}
		if err := tx.PutService(clone); err != nil {
			return err
		}

		cfgs, err := tx.EnvConfigsByService(sourceID)
		if err != nil {
			return err
		}
		for _, c := range cfgs {
			copied := *c
			copied.ID = uuid.NewString()
			copied.ServiceID = clone.ID
			copied.Source = types.ConfigSourceInherited
			copied.CreatedAt = now
			copied.UpdatedAt = now
			if err := tx.PutEnvConfig(&copied); err != nil {
				return err
			}
		}

		if req.AutoAllocatePorts {
			env := req.Environment
			if env == "" {
				env = ports.DefaultEnvironment
			}
			srcAllocs, err := tx.AllocationsByService(sourceID)
			if err != nil {
				return err
			}
			seen := make(map[types.PortType]bool)
			for _, a := range srcAllocs {
				if seen[a.Type] {
					continue
				}
				seen[a.Type] = true
				if _, err := e.ports.AllocateTx(tx, clone, env, a.Type, req.CreatedBy); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info().Str("source", sourceID).Str("clone", clone.ID).Msg("service cloned")
	e.publish(events.EventServiceCloned, clone.TeamID, clone.ID)
	return clone, nil
}

func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// TemplateSummary names a generated artifact without its content.
type TemplateSummary struct {
	ID          string             `json:"id"`
	Type        types.TemplateType `json:"templateType"`
	Environment string             `json:"environment"`
	Version     int                `json:"version"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

// DependencyRef is one edge with the far endpoint resolved.
type DependencyRef struct {
	ID          string               `json:"id"`
	ServiceID   string               `json:"serviceId"`
	ServiceName string               `json:"serviceName"`
	Slug        string               `json:"slug"`
	Type        types.DependencyType `json:"type"`
	IsRequired  bool                 `json:"isRequired"`
}

// Identity is the full bundle describing one service.
type Identity struct {
	Service     *types.Service          `json:"service"`
	Ports       []*types.PortAllocation `json:"ports"`
	Upstream    []DependencyRef         `json:"upstream"`
	Downstream  []DependencyRef         `json:"downstream"`
	Routes      []*types.APIRoute       `json:"routes"`
	Resources   []*types.InfraResource  `json:"resources"`
	EnvConfigs  []*types.EnvConfig      `json:"envConfigs"`
	Templates   []TemplateSummary       `json:"templates"`
	SolutionIDs []string                `json:"solutionIds"`
}

// Identity assembles everything the registry knows about one service.
func (e *Engine) Identity(id string) (*Identity, error) {
	ident := &Identity{
		Ports:       []*types.PortAllocation{},
		Upstream:    []DependencyRef{},
		Downstream:  []DependencyRef{},
		Routes:      []*types.APIRoute{},
		Resources:   []*types.InfraResource{},
		EnvConfigs:  []*types.EnvConfig{},
		Templates:   []TemplateSummary{},
		SolutionIDs: []string{},
	}
	err := e.store.View(func(tx *storage.Tx) error {
		svc, err := tx.GetService(id)
		if err != nil {
			return err
		}
		ident.Service = svc

		if ident.Ports, err = tx.AllocationsByService(id); err != nil {
			return err
		}
		sort.Slice(ident.Ports, func(i, j int) bool { return ident.Ports[i].Port < ident.Ports[j].Port })

		outgoing, err := tx.DependenciesBySource(id)
		if err != nil {
			return err
		}
		for _, edge := range outgoing {
			ident.Upstream = append(ident.Upstream, dependencyRef(tx, edge, edge.TargetID))
		}
		incoming, err := tx.DependenciesByTarget(id)
		if err != nil {
			return err
		}
		for _, edge := range incoming {
			ident.Downstream = append(ident.Downstream, dependencyRef(tx, edge, edge.SourceID))
		}
		sortRefs(ident.Upstream)
		sortRefs(ident.Downstream)

		if ident.Routes, err = tx.RoutesByService(id); err != nil {
			return err
		}
		sort.Slice(ident.Routes, func(i, j int) bool { return ident.Routes[i].PathPrefix < ident.Routes[j].PathPrefix })

		if ident.Resources, err = tx.ResourcesByService(id); err != nil {
			return err
		}
		sort.Slice(ident.Resources, func(i, j int) bool { return ident.Resources[i].Name < ident.Resources[j].Name })

		if ident.EnvConfigs, err = tx.EnvConfigsByService(id); err != nil {
			return err
		}
		sort.Slice(ident.EnvConfigs, func(i, j int) bool { return ident.EnvConfigs[i].Key < ident.EnvConfigs[j].Key })

		templates, err := tx.TemplatesByService(id)
		if err != nil {
			return err
		}
		for _, tpl := range templates {
			ident.Templates = append(ident.Templates, TemplateSummary{
				ID:          tpl.ID,
				Type:        tpl.Type,
				Environment: tpl.Environment,
				Version:     tpl.Version,
				UpdatedAt:   tpl.UpdatedAt,
			})
		}
		sort.Slice(ident.Templates, func(i, j int) bool {
			if ident.Templates[i].Type != ident.Templates[j].Type {
				return ident.Templates[i].Type < ident.Templates[j].Type
			}
			return ident.Templates[i].Environment < ident.Templates[j].Environment
		})

		members, err := tx.MembersByService(id)
		if err != nil {
			return err
		}
		for _, m := range members {
			ident.SolutionIDs = append(ident.SolutionIDs, m.SolutionID)
		}
		sort.Strings(ident.SolutionIDs)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ident, nil
}

func dependencyRef(tx *storage.Tx, edge *types.ServiceDependency, endpointID string) DependencyRef {
	ref := DependencyRef{
		ID:         edge.ID,
		ServiceID:  endpointID,
		Type:       edge.Type,
		IsRequired: edge.IsRequired,
	}
	if svc, err := tx.GetService(endpointID); err == nil {
		ref.ServiceName = svc.Name
		ref.Slug = svc.Slug
	}
	return ref
}

func sortRefs(refs []DependencyRef) {
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Slug != refs[j].Slug {
			return refs[i].Slug < refs[j].Slug
		}
		return refs[i].Type < refs[j].Type
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
