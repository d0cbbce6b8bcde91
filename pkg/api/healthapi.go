package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/codeops-dev/registry/pkg/auth"
)

func (s *Server) handleProbeService(w http.ResponseWriter, r *http.Request) {
	svc, err := s.loadService(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := s.prober.Check(r.Context(), svc.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCachedHealth(w http.ResponseWriter, r *http.Request) {
	svc, err := s.loadService(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := s.prober.Cached(svc.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleTeamHealth(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "teamID")
	if err := auth.RequireRead(principal(r), teamID); err != nil {
		s.writeError(w, r, err)
		return
	}
	rollup, err := s.prober.CheckTeam(r.Context(), teamID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rollup)
}

func (s *Server) handleSolutionHealth(w http.ResponseWriter, r *http.Request) {
	view, err := s.loadSolution(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rollup, err := s.prober.CheckSolution(r.Context(), view.Solution.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rollup)
}

func (s *Server) handleUnhealthy(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "teamID")
	if err := auth.RequireRead(principal(r), teamID); err != nil {
		s.writeError(w, r, err)
		return
	}
	services, err := s.prober.Unhealthy(teamID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, services)
}

func (s *Server) handleNeverChecked(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "teamID")
	if err := auth.RequireRead(principal(r), teamID); err != nil {
		s.writeError(w, r, err)
		return
	}
	services, err := s.prober.NeverChecked(teamID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, services)
}
