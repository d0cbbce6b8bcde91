package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/codeops-dev/registry/pkg/apperrors"
	"github.com/codeops-dev/registry/pkg/auth"
	"github.com/codeops-dev/registry/pkg/topology"
)

func (s *Server) handleTeamTopology(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "teamID")
	if err := auth.RequireRead(principal(r), teamID); err != nil {
		s.writeError(w, r, err)
		return
	}
	view, err := s.topology.TeamTopology(teamID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleSolutionTopology(w http.ResponseWriter, r *http.Request) {
	sol, err := s.loadSolution(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	view, err := s.topology.SolutionTopology(sol.Solution.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleNeighborhood(w http.ResponseWriter, r *http.Request) {
	svc, err := s.loadService(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	depth := 1
	if raw := r.URL.Query().Get("depth"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.writeError(w, r, apperrors.Validationf("invalid depth parameter: %s", raw))
			return
		}
		depth = n
	}
	if depth > topology.MaxNeighborhoodDepth {
		depth = topology.MaxNeighborhoodDepth
	}

	view, err := s.topology.Neighborhood(svc.ID, depth)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleTopologyStats(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "teamID")
	if err := auth.RequireRead(principal(r), teamID); err != nil {
		s.writeError(w, r, err)
		return
	}
	stats, err := s.topology.Stats(teamID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
