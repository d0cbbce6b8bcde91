package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/codeops-dev/registry/pkg/auth"
	"github.com/codeops-dev/registry/pkg/registry"
	"github.com/codeops-dev/registry/pkg/types"
)

type createServiceRequest struct {
	Name                       string            `json:"name" validate:"required"`
	Slug                       string            `json:"slug"`
	Type                       string            `json:"type" validate:"required"`
	RepoURL                    string            `json:"repoUrl"`
	Branch                     string            `json:"branch"`
	TechStack                  string            `json:"techStack"`
	Description                string            `json:"description"`
	HealthCheckURL             string            `json:"healthCheckUrl"`
	HealthCheckIntervalSeconds int               `json:"healthCheckIntervalSeconds"`
	Environments               map[string]string `json:"environments"`
	Metadata                   map[string]string `json:"metadata"`
}

func (s *Server) handleCreateService(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "teamID")
	if err := auth.RequireWrite(principal(r), teamID); err != nil {
		s.writeError(w, r, err)
		return
	}

	var body createServiceRequest
	if err := s.decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	svcType, err := types.ParseServiceType(body.Type)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	svc, err := s.services.CreateService(teamID, registry.CreateServiceRequest{
		Name:                       body.Name,
		Slug:                       body.Slug,
		Type:                       svcType,
		RepoURL:                    body.RepoURL,
		Branch:                     body.Branch,
		TechStack:                  body.TechStack,
		Description:                body.Description,
		HealthCheckURL:             body.HealthCheckURL,
		HealthCheckIntervalSeconds: body.HealthCheckIntervalSeconds,
		Environments:               body.Environments,
		Metadata:                   body.Metadata,
		CreatedBy:                  principal(r).UserID,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, svc)
}

func (s *Server) handleListServices(w http.ResponseWriter, r *http.Request) {
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

	filter := registry.ListFilter{Search: r.URL.Query().Get("search")}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := types.ParseServiceStatus(raw)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		filter.Status = status
	}
	if raw := r.URL.Query().Get("type"); raw != "" {
		svcType, err := types.ParseServiceType(raw)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		filter.Type = svcType
	}

	services, err := s.services.ListServices(teamID, filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, paginate(services, pageNum, size))
}

// loadService resolves the service and checks team read access, in that
// order, so missing ids answer 404 before 403.
func (s *Server) loadService(r *http.Request) (*types.Service, error) {
	svc, err := s.services.GetService(chi.URLParam(r, "id"))
	if err != nil {
		return nil, err
	}
	if err := auth.RequireRead(principal(r), svc.TeamID); err != nil {
		return nil, err
	}
	return svc, nil
}

// loadServiceForWrite is loadService with the writer check.
func (s *Server) loadServiceForWrite(r *http.Request) (*types.Service, error) {
	svc, err := s.services.GetService(chi.URLParam(r, "id"))
	if err != nil {
		return nil, err
	}
	if err := auth.RequireWrite(principal(r), svc.TeamID); err != nil {
		return nil, err
	}
	return svc, nil
}

func (s *Server) handleGetService(w http.ResponseWriter, r *http.Request) {
	svc, err := s.loadService(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, svc)
}

type updateServiceRequest struct {
	Name                       *string           `json:"name"`
	Type                       *string           `json:"type"`
	RepoURL                    *string           `json:"repoUrl"`
	Branch                     *string           `json:"branch"`
	TechStack                  *string           `json:"techStack"`
	Description                *string           `json:"description"`
	HealthCheckURL             *string           `json:"healthCheckUrl"`
	HealthCheckIntervalSeconds *int              `json:"healthCheckIntervalSeconds"`
	Environments               map[string]string `json:"environments"`
	Metadata                   map[string]string `json:"metadata"`
}

func (s *Server) handleUpdateService(w http.ResponseWriter, r *http.Request) {
	svc, err := s.loadServiceForWrite(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var body updateServiceRequest
	if err := s.decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	req := registry.UpdateServiceRequest{
		Name:                       body.Name,
		RepoURL:                    body.RepoURL,
		Branch:                     body.Branch,
		TechStack:                  body.TechStack,
		Description:                body.Description,
		HealthCheckURL:             body.HealthCheckURL,
		HealthCheckIntervalSeconds: body.HealthCheckIntervalSeconds,
		Environments:               body.Environments,
		Metadata:                   body.Metadata,
	}
	if body.Type != nil {
		svcType, err := types.ParseServiceType(*body.Type)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		req.Type = &svcType
	}

	updated, err := s.services.UpdateService(svc.ID, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteService(w http.ResponseWriter, r *http.Request) {
	svc, err := s.loadServiceForWrite(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.services.DeleteService(svc.ID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type setStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	svc, err := s.loadServiceForWrite(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var body setStatusRequest
	if err := s.decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	status, err := types.ParseServiceStatus(body.Status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	updated, err := s.services.SetStatus(svc.ID, status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

type cloneServiceRequest struct {
	Name              string `json:"name" validate:"required"`
	Slug              string `json:"slug"`
	Environment       string `json:"environment"`
	AutoAllocatePorts bool   `json:"autoAllocatePorts"`
}

func (s *Server) handleCloneService(w http.ResponseWriter, r *http.Request) {
	svc, err := s.loadServiceForWrite(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var body cloneServiceRequest
	if err := s.decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	clone, err := s.services.Clone(svc.ID, registry.CloneRequest{
		Name:              body.Name,
		Slug:              body.Slug,
		Environment:       body.Environment,
		AutoAllocatePorts: body.AutoAllocatePorts,
		CreatedBy:         principal(r).UserID,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, clone)
}

func (s *Server) handleServiceIdentity(w http.ResponseWriter, r *http.Request) {
	svc, err := s.loadService(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	identity, err := s.services.Identity(svc.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, identity)
}
