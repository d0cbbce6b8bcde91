package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/codeops-dev/registry/pkg/auth"
	"github.com/codeops-dev/registry/pkg/envconfig"
	"github.com/codeops-dev/registry/pkg/storage"
	"github.com/codeops-dev/registry/pkg/types"
)

type upsertEnvConfigRequest struct {
	Environment string `json:"environment"`
	Key         string `json:"key" validate:"required"`
	Value       string `json:"value"`
	Source      string `json:"source"`
	Description string `json:"description"`
}

func (s *Server) handleUpsertEnvConfig(w http.ResponseWriter, r *http.Request) {
	svc, err := s.loadServiceForWrite(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var body upsertEnvConfigRequest
	if err := s.decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	req := envconfig.UpsertRequest{
		Environment: environmentOrDefault(body.Environment),
		Key:         body.Key,
		Value:       body.Value,
		Description: body.Description,
	}
	if body.Source != "" {
		source, err := types.ParseConfigSource(body.Source)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		req.Source = source
	}

	row, err := s.envConfigs.Upsert(svc.ID, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, row)
}

func (s *Server) handleListEnvConfigs(w http.ResponseWriter, r *http.Request) {
	svc, err := s.loadService(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rows, err := s.envConfigs.ListByService(svc.ID, r.URL.Query().Get("environment"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleDeleteEnvConfig(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	row, err := s.findEnvConfig(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := auth.RequireWrite(principal(r), row.TeamID); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.envConfigs.Delete(id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) findEnvConfig(id string) (*types.EnvConfig, error) {
	var found *types.EnvConfig
	err := s.store.View(func(tx *storage.Tx) error {
		row, err := tx.GetEnvConfig(id)
		if err != nil {
			return err
		}
		found = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}
