package infra

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

// Engine owns infrastructure resource rows.
type Engine struct {
	store  *storage.Store
	broker *events.Broker
	logger zerolog.Logger
}

// NewEngine builds the ledger engine.
func NewEngine(store *storage.Store, broker *events.Broker) *Engine {
	return &Engine{
		store:  store,
		broker: broker,
		logger: log.WithComponent("infra"),
	}
}

// CreateResourceRequest carries the fields of a new ledger row.
type CreateResourceRequest struct {
	ServiceID   string
	Type        types.ResourceType
	Name        string
	Environment string
	Region      string
	Locator     string
	Config      map[string]string
	CreatedBy   string
}

// CreateResource records an external resource for the team, optionally
// linked to an owning service of the same team.
func (e *Engine) CreateResource(teamID string, req CreateResourceRequest) (*types.InfraResource, error) {
	if req.Name == "" {
		return nil, apperrors.Validationf("resource name must not be empty")
	}

	var res *types.InfraResource
	err := e.store.Update(func(tx *storage.Tx) error {
		if req.ServiceID != "" {
			svc, err := tx.GetService(req.ServiceID)
			if err != nil {
				return err
			}
			if svc.TeamID != teamID {
				return apperrors.Validationf("service %s belongs to a different team", svc.Slug)
			}
		}

		now := time.Now().UTC()
		res = &types.InfraResource{
			ID:          uuid.NewString(),
			TeamID:      teamID,
			ServiceID:   req.ServiceID,
			Type:        req.Type,
			Name:        req.Name,
			Environment: req.Environment,
			Region:      req.Region,
			Locator:     req.Locator,
			Config:      req.Config,
			CreatedBy:   req.CreatedBy,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		return tx.PutResource(res)
	})
	if err != nil {
		return nil, err
	}

	e.publish(events.EventResourceCreated, teamID, res.ID)
	return res, nil
}

// GetResource loads one row by id.
func (e *Engine) GetResource(id string) (*types.InfraResource, error) {
	var res *types.InfraResource
	err := e.store.View(func(tx *storage.Tx) error {
		var err error
		res, err = tx.GetResource(id)
		return err
	})
	return res, err
}

// UpdateResourceRequest carries partial updates; nil fields are left
// untouched.
type UpdateResourceRequest struct {
	Name        *string
	Environment *string
	Region      *string
	Locator     *string
	Config      map[string]string
}

// UpdateResource applies the non-nil fields.
func (e *Engine) UpdateResource(id string, req UpdateResourceRequest) (*types.InfraResource, error) {
	var res *types.InfraResource
	err := e.store.Update(func(tx *storage.Tx) error {
		var err error
		res, err = tx.GetResource(id)
		if err != nil {
			return err
		}
		if req.Name != nil {
			if *req.Name == "" {
				return apperrors.Validationf("resource name must not be empty")
			}
			res.Name = *req.Name
		}
		if req.Environment != nil {
			res.Environment = *req.Environment
		}
		if req.Region != nil {
			res.Region = *req.Region
		}
		if req.Locator != nil {
			res.Locator = *req.Locator
		}
		if req.Config != nil {
			res.Config = req.Config
		}
		res.UpdatedAt = time.Now().UTC()
		return tx.PutResource(res)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// DeleteResource removes one row by id.
func (e *Engine) DeleteResource(id string) error {
	return e.store.Update(func(tx *storage.Tx) error {
		if _, err := tx.GetResource(id); err != nil {
			return err
		}
		return tx.DeleteResource(id)
	})
}

// Orphan clears the service link, keeping the row.
func (e *Engine) Orphan(id string) (*types.InfraResource, error) {
	var res *types.InfraResource
	err := e.store.Update(func(tx *storage.Tx) error {
		var err error
		res, err = tx.GetResource(id)
		if err != nil {
			return err
		}
		res.ServiceID = ""
		res.UpdatedAt = time.Now().UTC()
		return tx.PutResource(res)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Reassign links the resource to a new owning service of the same team.
func (e *Engine) Reassign(id, newServiceID string) (*types.InfraResource, error) {
	var res *types.InfraResource
	err := e.store.Update(func(tx *storage.Tx) error {
		var err error
		res, err = tx.GetResource(id)
		if err != nil {
			return err
		}
		svc, err := tx.GetService(newServiceID)
		if err != nil {
			return err
		}
		if svc.TeamID != res.TeamID {
			return apperrors.Validationf("service %s belongs to a different team than resource %s", svc.Slug, res.Name)
		}
		res.ServiceID = newServiceID
		res.UpdatedAt = time.Now().UTC()
		return tx.PutResource(res)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ListFilter narrows ListResources.
type ListFilter struct {
	Type        types.ResourceType
	Environment string
	ServiceID   string
}

// ListResources returns the team's rows, filtered and name-sorted.
func (e *Engine) ListResources(teamID string, filter ListFilter) ([]*types.InfraResource, error) {
	var resources []*types.InfraResource
	err := e.store.View(func(tx *storage.Tx) error {
		var err error
		resources, err = tx.ResourcesByTeam(teamID)
		return err
	})
	if err != nil {
		return nil, err
	}

	filtered := []*types.InfraResource{}
	for _, r := range resources {
		if filter.Type != "" && r.Type != filter.Type {
			continue
		}
		if filter.Environment != "" && r.Environment != filter.Environment {
			continue
		}
		if filter.ServiceID != "" && r.ServiceID != filter.ServiceID {
			continue
		}
		filtered = append(filtered, r)
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].Name < filtered[j].Name })
	return filtered, nil
}

// FindOrphaned returns the team's rows with no service link.
func (e *Engine) FindOrphaned(teamID string) ([]*types.InfraResource, error) {
	all, err := e.ListResources(teamID, ListFilter{})
	if err != nil {
		return nil, err
	}
	orphaned := []*types.InfraResource{}
	for _, r := range all {
		if r.ServiceID == "" {
			orphaned = append(orphaned, r)
		}
	}
	return orphaned, nil
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
