package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/codeops-dev/registry/pkg/auth"
	"github.com/codeops-dev/registry/pkg/routes"
	"github.com/codeops-dev/registry/pkg/storage"
	"github.com/codeops-dev/registry/pkg/types"
)

type createRouteRequest struct {
	ServiceID   string   `json:"serviceId" validate:"required"`
	GatewayID   string   `json:"gatewayId"`
	PathPrefix  string   `json:"pathPrefix" validate:"required"`
	Methods     []string `json:"methods"`
	Environment string   `json:"environment"`
	Description string   `json:"description"`
}

func (s *Server) handleCreateRoute(w http.ResponseWriter, r *http.Request) {
	var body createRouteRequest
	if err := s.decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	owner, err := s.services.GetService(body.ServiceID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := auth.RequireWrite(principal(r), owner.TeamID); err != nil {
		s.writeError(w, r, err)
		return
	}

	route, err := s.routes.CreateRoute(routes.CreateRouteRequest{
		ServiceID:   body.ServiceID,
		GatewayID:   body.GatewayID,
		PathPrefix:  body.PathPrefix,
		Methods:     body.Methods,
		Environment: environmentOrDefault(body.Environment),
		Description: body.Description,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, route)
}

func (s *Server) handleDeleteRoute(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	route, err := s.findRoute(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := auth.RequireWrite(principal(r), route.TeamID); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.routes.DeleteRoute(id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) findRoute(id string) (*types.APIRoute, error) {
	var found *types.APIRoute
	err := s.store.View(func(tx *storage.Tx) error {
		route, err := tx.GetRoute(id)
		if err != nil {
			return err
		}
		found = route
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (s *Server) handleListRoutes(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "teamID")
	if err := auth.RequireRead(principal(r), teamID); err != nil {
		s.writeError(w, r, err)
		return
	}
	list, err := s.routes.ListRoutes(teamID, routes.ListFilter{
		Environment: r.URL.Query().Get("environment"),
		GatewayID:   r.URL.Query().Get("gatewayId"),
		ServiceID:   r.URL.Query().Get("serviceId"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCheckRoute(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "teamID")
	if err := auth.RequireRead(principal(r), teamID); err != nil {
		s.writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	result, err := s.routes.CheckAvailability(teamID, q.Get("gatewayId"), environmentOrDefault(q.Get("environment")), q.Get("prefix"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
