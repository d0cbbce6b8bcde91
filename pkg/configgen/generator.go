package configgen

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/codeops-dev/registry/pkg/apperrors"
	"github.com/codeops-dev/registry/pkg/events"
	"github.com/codeops-dev/registry/pkg/log"
	"github.com/codeops-dev/registry/pkg/metrics"
	"github.com/codeops-dev/registry/pkg/storage"
	"github.com/codeops-dev/registry/pkg/types"
)

// generatedFromRegistry stamps artifacts rendered from one service's
// registry state.
const generatedFromRegistry = "registry-data"

// Generator renders configuration artifacts and upserts them with
// strictly increasing versions. Rendering is pure; the load, render,
// and upsert of one artifact share a single store transaction.
type Generator struct {
	store  *storage.Store
	broker *events.Broker
	logger zerolog.Logger
}

// NewGenerator builds the generator.
func NewGenerator(store *storage.Store, broker *events.Broker) *Generator {
	return &Generator{
		store:  store,
		broker: broker,
		logger: log.WithComponent("configgen"),
	}
}

// renderState is the registry state one artifact renders from, loaded
// fresh inside the generating transaction.
type renderState struct {
	service           *types.Service
	environment       string
	allocations       []*types.PortAllocation // environment-filtered, port-sorted
	envRows           []*types.EnvConfig      // environment-filtered, key-sorted
	outgoing          []*types.ServiceDependency
	incoming          []*types.ServiceDependency
	targets           map[string]*types.Service          // outgoing edge endpoints
	sources           map[string]*types.Service          // incoming edge endpoints
	targetAllocations map[string][]*types.PortAllocation // environment-filtered, per target
	routes            []*types.APIRoute
	resources         []*types.InfraResource // environment-filtered
}

func loadState(tx *storage.Tx, svc *types.Service, environment string) (*renderState, error) {
	st := &renderState{
		service:           svc,
		environment:       environment,
		targets:           map[string]*types.Service{},
		sources:           map[string]*types.Service{},
		targetAllocations: map[string][]*types.PortAllocation{},
	}

	allocs, err := tx.AllocationsByService(svc.ID)
	if err != nil {
		return nil, err
	}
	for _, a := range allocs {
		if a.Environment == environment {
			st.allocations = append(st.allocations, a)
		}
	}
	sort.Slice(st.allocations, func(i, j int) bool { return st.allocations[i].Port < st.allocations[j].Port })

	rows, err := tx.EnvConfigsByService(svc.ID)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		if r.Environment == environment {
			st.envRows = append(st.envRows, r)
		}
	}
	sort.Slice(st.envRows, func(i, j int) bool { return st.envRows[i].Key < st.envRows[j].Key })

	if st.outgoing, err = tx.DependenciesBySource(svc.ID); err != nil {
		return nil, err
	}
	for _, edge := range st.outgoing {
		target, err := tx.GetService(edge.TargetID)
		if err != nil {
			if apperrors.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		st.targets[edge.TargetID] = target

		targetAllocs, err := tx.AllocationsByService(target.ID)
		if err != nil {
			return nil, err
		}
		for _, a := range targetAllocs {
			if a.Environment == environment {
				st.targetAllocations[target.ID] = append(st.targetAllocations[target.ID], a)
			}
		}
	}

	if st.incoming, err = tx.DependenciesByTarget(svc.ID); err != nil {
		return nil, err
	}
	for _, edge := range st.incoming {
		source, err := tx.GetService(edge.SourceID)
		if err != nil {
			if apperrors.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		st.sources[edge.SourceID] = source
	}

	sort.Slice(st.outgoing, func(i, j int) bool {
		return endpointSlug(st.targets, st.outgoing[i].TargetID) < endpointSlug(st.targets, st.outgoing[j].TargetID)
	})
	sort.Slice(st.incoming, func(i, j int) bool {
		return endpointSlug(st.sources, st.incoming[i].SourceID) < endpointSlug(st.sources, st.incoming[j].SourceID)
	})

	if st.routes, err = tx.RoutesByService(svc.ID); err != nil {
		return nil, err
	}
	sort.Slice(st.routes, func(i, j int) bool { return st.routes[i].PathPrefix < st.routes[j].PathPrefix })

	resources, err := tx.ResourcesByService(svc.ID)
	if err != nil {
		return nil, err
	}
	for _, r := range resources {
		if r.Environment == "" || r.Environment == environment {
			st.resources = append(st.resources, r)
		}
	}
	sort.Slice(st.resources, func(i, j int) bool { return st.resources[i].Name < st.resources[j].Name })

	return st, nil
}

func endpointSlug(endpoints map[string]*types.Service, id string) string {
	if svc := endpoints[id]; svc != nil {
		return svc.Slug
	}
	return id
}

// targetSlugs returns the slugs of outgoing dependency targets,
// slug-sorted and deduplicated.
func (st *renderState) targetSlugs() []string {
	seen := map[string]bool{}
	var slugs []string
	for _, edge := range st.outgoing {
		target := st.targets[edge.TargetID]
		if target == nil || seen[target.Slug] {
			continue
		}
		seen[target.Slug] = true
		slugs = append(slugs, target.Slug)
	}
	sort.Strings(slugs)
	return slugs
}

// volumeNames returns the service's DOCKER_VOLUME resource names,
// sorted and deduplicated.
func (st *renderState) volumeNames() []string {
	seen := map[string]bool{}
	var names []string
	for _, r := range st.resources {
		if r.Type != types.ResourceDockerVolume || seen[r.Name] {
			continue
		}
		seen[r.Name] = true
		names = append(names, r.Name)
	}
	sort.Strings(names)
	return names
}

// Generate renders one artifact for (service, type, environment) and
// upserts it. The existing row's version increments; a new row starts
// at version 1.
func (g *Generator) Generate(serviceID string, tplType types.TemplateType, environment string) (*types.ConfigTemplate, error) {
	var tpl *types.ConfigTemplate
	err := g.store.Update(func(tx *storage.Tx) error {
		svc, err := tx.GetService(serviceID)
		if err != nil {
			return err
		}
		st, err := loadState(tx, svc, environment)
		if err != nil {
			return err
		}

		var content string
		switch tplType {
		case types.TemplateDockerCompose:
			content, err = renderCompose(st)
		case types.TemplateApplicationYML:
			content, err = renderApplicationYML(st)
		case types.TemplateClaudeCodeHeader:
			content, err = renderHeader(st, environment)
		case types.TemplateEnvFile:
			content, err = renderEnvFile(st)
		default:
			return apperrors.Validationf("invalid template type: %s", tplType)
		}
		if err != nil {
			return err
		}

		tpl, err = upsertTemplate(tx, svc, tplType, environment, content, generatedFromRegistry)
		return err
	})
	if err != nil {
		return nil, err
	}

	g.logger.Info().
		Str("service", serviceID).
		Str("type", string(tplType)).
		Str("environment", environment).
		Int("version", tpl.Version).
		Msg("template generated")
	metrics.TemplatesGenerated.WithLabelValues(string(tplType)).Inc()
	g.publish(tpl)
	return tpl, nil
}

// upsertTemplate bumps the version of an existing (service, type, env)
// row or creates the row at version 1.
func upsertTemplate(tx *storage.Tx, svc *types.Service, tplType types.TemplateType, environment, content, generatedFrom string) (*types.ConfigTemplate, error) {
	now := time.Now().UTC()
	existing, err := tx.FindTemplate(svc.ID, tplType, environment)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		existing.Content = content
		existing.Version++
		existing.GeneratedFrom = generatedFrom
		existing.AutoGenerated = true
		existing.UpdatedAt = now
		if err := tx.PutTemplate(existing); err != nil {
			return nil, err
		}
		return existing, nil
	}

	tpl := &types.ConfigTemplate{
		ID:            uuid.NewString(),
		TeamID:        svc.TeamID,
		ServiceID:     svc.ID,
		Type:          tplType,
		Environment:   environment,
		Content:       content,
		AutoGenerated: true,
		GeneratedFrom: generatedFrom,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := tx.PutTemplate(tpl); err != nil {
		return nil, err
	}
	return tpl, nil
}

// GenerateAll renders the Compose, application-config, and reference
// header artifacts in that order. Per-type failures are logged and
// skipped; a missing service fails the whole batch.
func (g *Generator) GenerateAll(serviceID, environment string) ([]*types.ConfigTemplate, error) {
	err := g.store.View(func(tx *storage.Tx) error {
		_, err := tx.GetService(serviceID)
		return err
	})
	if err != nil {
		return nil, err
	}

	order := []types.TemplateType{
		types.TemplateDockerCompose,
		types.TemplateApplicationYML,
		types.TemplateClaudeCodeHeader,
	}
	generated := []*types.ConfigTemplate{}
	for _, tplType := range order {
		tpl, err := g.Generate(serviceID, tplType, environment)
		if err != nil {
			g.logger.Warn().
				Err(err).
				Str("service", serviceID).
				Str("type", string(tplType)).
				Msg("artifact generation skipped")
			continue
		}
		generated = append(generated, tpl)
	}
	return generated, nil
}

// GetTemplate returns the artifact for (service, type, environment).
func (g *Generator) GetTemplate(serviceID string, tplType types.TemplateType, environment string) (*types.ConfigTemplate, error) {
	var tpl *types.ConfigTemplate
	err := g.store.View(func(tx *storage.Tx) error {
		if _, err := tx.GetService(serviceID); err != nil {
			return err
		}
		var err error
		tpl, err = tx.FindTemplate(serviceID, tplType, environment)
		if err != nil {
			return err
		}
		if tpl == nil {
			return apperrors.NotFoundf("no %s template for service %s in %s", tplType, serviceID, environment)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tpl, nil
}

// GetByID returns one template row.
func (g *Generator) GetByID(id string) (*types.ConfigTemplate, error) {
	var tpl *types.ConfigTemplate
	err := g.store.View(func(tx *storage.Tx) error {
		var err error
		tpl, err = tx.GetTemplate(id)
		return err
	})
	return tpl, err
}

// ListTemplates returns every artifact of one service, sorted by
// (type, environment).
func (g *Generator) ListTemplates(serviceID string) ([]*types.ConfigTemplate, error) {
	var templates []*types.ConfigTemplate
	err := g.store.View(func(tx *storage.Tx) error {
		if _, err := tx.GetService(serviceID); err != nil {
			return err
		}
		var err error
		templates, err = tx.TemplatesByService(serviceID)
		return err
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(templates, func(i, j int) bool {
		if templates[i].Type != templates[j].Type {
			return templates[i].Type < templates[j].Type
		}
		return templates[i].Environment < templates[j].Environment
	})
	return templates, nil
}

// DeleteTemplate removes one template row.
func (g *Generator) DeleteTemplate(id string) error {
	return g.store.Update(func(tx *storage.Tx) error {
		if _, err := tx.GetTemplate(id); err != nil {
			return err
		}
		return tx.DeleteTemplate(id)
	})
}

func (g *Generator) publish(tpl *types.ConfigTemplate) {
	if g.broker == nil {
		return
	}
	g.broker.Publish(&events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventTemplateGenerated,
		TeamID:    tpl.TeamID,
		EntityID:  tpl.ID,
		Timestamp: time.Now().UTC(),
		Message:   string(tpl.Type),
	})
}
