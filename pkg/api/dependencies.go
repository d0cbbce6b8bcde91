package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/codeops-dev/registry/pkg/auth"
	"github.com/codeops-dev/registry/pkg/graph"
	"github.com/codeops-dev/registry/pkg/types"
)

type createDependencyRequest struct {
	SourceServiceID string `json:"sourceServiceId" validate:"required"`
	TargetServiceID string `json:"targetServiceId" validate:"required"`
	Type            string `json:"type" validate:"required"`
	Description     string `json:"description"`
	IsRequired      *bool  `json:"isRequired"`
	EndpointHint    string `json:"endpointHint"`
}

func (s *Server) handleCreateDependency(w http.ResponseWriter, r *http.Request) {
	var body createDependencyRequest
	if err := s.decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	depType, err := types.ParseDependencyType(body.Type)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	source, err := s.services.GetService(body.SourceServiceID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := auth.RequireWrite(principal(r), source.TeamID); err != nil {
		s.writeError(w, r, err)
		return
	}

	dep, err := s.dependencies.CreateDependency(graph.CreateDependencyRequest{
		SourceID:     body.SourceServiceID,
		TargetID:     body.TargetServiceID,
		Type:         depType,
		Description:  body.Description,
		IsRequired:   body.IsRequired,
		EndpointHint: body.EndpointHint,
		CreatedBy:    principal(r).UserID,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dep)
}

func (s *Server) handleRemoveDependency(w http.ResponseWriter, r *http.Request) {
	dep, err := s.dependencies.GetDependency(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := auth.RequireWrite(principal(r), dep.TeamID); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.dependencies.RemoveDependency(dep.ID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleServiceDependencies(w http.ResponseWriter, r *http.Request) {
	svc, err := s.loadService(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	deps, err := s.dependencies.ListForService(svc.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deps)
}

func (s *Server) handleDependencyGraph(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "teamID")
	if err := auth.RequireRead(principal(r), teamID); err != nil {
		s.writeError(w, r, err)
		return
	}
	view, err := s.dependencies.Graph(teamID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleImpact(w http.ResponseWriter, r *http.Request) {
	svc, err := s.loadService(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	report, err := s.dependencies.Impact(svc.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleStartupOrder(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "teamID")
	if err := auth.RequireRead(principal(r), teamID); err != nil {
		s.writeError(w, r, err)
		return
	}
	order, err := s.dependencies.StartupOrder(teamID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleDetectCycles(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "teamID")
	if err := auth.RequireRead(principal(r), teamID); err != nil {
		s.writeError(w, r, err)
		return
	}
	cycles, err := s.dependencies.DetectCycles(teamID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if cycles == nil {
		cycles = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"hasCycles":  len(cycles) > 0,
		"serviceIds": cycles,
	})
}
