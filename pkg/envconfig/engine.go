package envconfig

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/codeops-dev/registry/pkg/apperrors"
	"github.com/codeops-dev/registry/pkg/storage"
	"github.com/codeops-dev/registry/pkg/types"
)

// Engine owns environment-config rows.
type Engine struct {
	store *storage.Store
}

// NewEngine builds the env-config engine.
func NewEngine(store *storage.Store) *Engine {
	return &Engine{store: store}
}

// UpsertRequest carries one configuration row. The natural key is
// (service, environment, key).
type UpsertRequest struct {
	Environment string
	Key         string
	Value       string
	Source      types.ConfigSource
	Description string
}

// Upsert writes the row, overwriting the value when the natural key
// already exists. An explicit source in the request wins; otherwise an
// existing row keeps its source and new rows default to MANUAL.
func (e *Engine) Upsert(serviceID string, req UpsertRequest) (*types.EnvConfig, error) {
	if strings.TrimSpace(req.Key) == "" {
		return nil, apperrors.Validationf("config key must not be empty")
	}

	var row *types.EnvConfig
	err := e.store.Update(func(tx *storage.Tx) error {
		svc, err := tx.GetService(serviceID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		existing, err := tx.FindEnvConfig(serviceID, req.Environment, req.Key)
		if err != nil {
			return err
		}
		if existing != nil {
			existing.Value = req.Value
			if req.Source != "" {
				existing.Source = req.Source
			}
			if req.Description != "" {
				existing.Description = req.Description
			}
			existing.UpdatedAt = now
			row = existing
			return tx.PutEnvConfig(existing)
		}

		source := req.Source
		if source == "" {
			source = types.ConfigSourceManual
		}
		row = &types.EnvConfig{
			ID:          uuid.NewString(),
			TeamID:      svc.TeamID,
			ServiceID:   serviceID,
			Environment: req.Environment,
			Key:         req.Key,
			Value:       req.Value,
			Source:      source,
			Description: req.Description,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		return tx.PutEnvConfig(row)
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

// ListByService returns the service's rows, optionally filtered to one
// environment, sorted by (environment, key).
func (e *Engine) ListByService(serviceID, environment string) ([]*types.EnvConfig, error) {
	var rows []*types.EnvConfig
	err := e.store.View(func(tx *storage.Tx) error {
		if _, err := tx.GetService(serviceID); err != nil {
			return err
		}
		var err error
		rows, err = tx.EnvConfigsByService(serviceID)
		return err
	})
	if err != nil {
		return nil, err
	}

	filtered := []*types.EnvConfig{}
	for _, r := range rows {
		if environment != "" && r.Environment != environment {
			continue
		}
		filtered = append(filtered, r)
	}
	sort.Slice(filtered, func(i, j int) bool {
		if filtered[i].Environment != filtered[j].Environment {
			return filtered[i].Environment < filtered[j].Environment
		}
		return filtered[i].Key < filtered[j].Key
	})
	return filtered, nil
}

// Delete removes one row by id.
func (e *Engine) Delete(id string) error {
	return e.store.Update(func(tx *storage.Tx) error {
		if _, err := tx.GetEnvConfig(id); err != nil {
			return err
		}
		return tx.DeleteEnvConfig(id)
	})
}
