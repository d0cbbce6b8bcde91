package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/codeops-dev/registry/pkg/auth"
	"github.com/codeops-dev/registry/pkg/infra"
	"github.com/codeops-dev/registry/pkg/types"
)

type createResourceRequest struct {
	ServiceID   string            `json:"serviceId"`
	Type        string            `json:"type" validate:"required"`
	Name        string            `json:"name" validate:"required"`
	Environment string            `json:"environment"`
	Region      string            `json:"region"`
	Locator     string            `json:"locator"`
	Config      map[string]string `json:"config"`
}

func (s *Server) handleCreateResource(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "teamID")
	if err := auth.RequireWrite(principal(r), teamID); err != nil {
		s.writeError(w, r, err)
		return
	}

	var body createResourceRequest
	if err := s.decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	resType, err := types.ParseResourceType(body.Type)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.infra.CreateResource(teamID, infra.CreateResourceRequest{
		ServiceID:   body.ServiceID,
		Type:        resType,
		Name:        body.Name,
		Environment: body.Environment,
		Region:      body.Region,
		Locator:     body.Locator,
		Config:      body.Config,
		CreatedBy:   principal(r).UserID,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleListResources(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "teamID")
	if err := auth.RequireRead(principal(r), teamID); err != nil {
		s.writeError(w, r, err)
		return
	}
	pageNum, size, err := pageParams(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	filter := infra.ListFilter{
		Environment: r.URL.Query().Get("environment"),
		ServiceID:   r.URL.Query().Get("serviceId"),
	}
	if raw := r.URL.Query().Get("type"); raw != "" {
		resType, err := types.ParseResourceType(raw)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		filter.Type = resType
	}

	resources, err := s.infra.ListResources(teamID, filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, paginate(resources, pageNum, size))
}

func (s *Server) handleOrphanedResources(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "teamID")
	if err := auth.RequireRead(principal(r), teamID); err != nil {
		s.writeError(w, r, err)
		return
	}
	resources, err := s.infra.FindOrphaned(teamID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resources)
}

func (s *Server) loadResource(r *http.Request) (*types.InfraResource, error) {
	res, err := s.infra.GetResource(chi.URLParam(r, "id"))
	if err != nil {
		return nil, err
	}
	if err := auth.RequireRead(principal(r), res.TeamID); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Server) loadResourceForWrite(r *http.Request) (*types.InfraResource, error) {
	res, err := s.infra.GetResource(chi.URLParam(r, "id"))
	if err != nil {
		return nil, err
	}
	if err := auth.RequireWrite(principal(r), res.TeamID); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Server) handleGetResource(w http.ResponseWriter, r *http.Request) {
	res, err := s.loadResource(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type updateResourceRequest struct {
	Name        *string           `json:"name"`
	Environment *string           `json:"environment"`
	Region      *string           `json:"region"`
	Locator     *string           `json:"locator"`
	Config      map[string]string `json:"config"`
}

func (s *Server) handleUpdateResource(w http.ResponseWriter, r *http.Request) {
	res, err := s.loadResourceForWrite(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var body updateResourceRequest
	if err := s.decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	updated, err := s.infra.UpdateResource(res.ID, infra.UpdateResourceRequest{
		Name:        body.Name,
		Environment: body.Environment,
		Region:      body.Region,
		Locator:     body.Locator,
		Config:      body.Config,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteResource(w http.ResponseWriter, r *http.Request) {
	res, err := s.loadResourceForWrite(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.infra.DeleteResource(res.ID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleOrphanResource(w http.ResponseWriter, r *http.Request) {
	res, err := s.loadResourceForWrite(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	updated, err := s.infra.Orphan(res.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

type reassignRequest struct {
	ServiceID string `json:"serviceId" validate:"required"`
}

func (s *Server) handleReassignResource(w http.ResponseWriter, r *http.Request) {
	res, err := s.loadResourceForWrite(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var body reassignRequest
	if err := s.decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	updated, err := s.infra.Reassign(res.ID, body.ServiceID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}
