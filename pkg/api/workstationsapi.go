package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/codeops-dev/registry/pkg/auth"
	"github.com/codeops-dev/registry/pkg/types"
	"github.com/codeops-dev/registry/pkg/workstations"
)

type createProfileRequest struct {
	Name        string   `json:"name" validate:"required"`
	Description string   `json:"description"`
	SolutionID  string   `json:"solutionId"`
	ServiceIDs  []string `json:"serviceIds"`
	IsDefault   bool     `json:"isDefault"`
}

func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "teamID")
	if err := auth.RequireWrite(principal(r), teamID); err != nil {
		s.writeError(w, r, err)
		return
	}

	var body createProfileRequest
	if err := s.decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	profile, err := s.workstations.CreateProfile(teamID, workstations.CreateProfileRequest{
		Name:        body.Name,
		Description: body.Description,
		SolutionID:  body.SolutionID,
		ServiceIDs:  body.ServiceIDs,
		IsDefault:   body.IsDefault,
		CreatedBy:   principal(r).UserID,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, profile)
}

type fromSolutionRequest struct {
	SolutionID string `json:"solutionId" validate:"required"`
}

func (s *Server) handleProfileFromSolution(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "teamID")
	if err := auth.RequireWrite(principal(r), teamID); err != nil {
		s.writeError(w, r, err)
		return
	}

	var body fromSolutionRequest
	if err := s.decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	profile, err := s.workstations.CreateFromSolution(teamID, body.SolutionID, principal(r).UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, profile)
}

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "teamID")
	if err := auth.RequireRead(principal(r), teamID); err != nil {
		s.writeError(w, r, err)
		return
	}
	profiles, err := s.workstations.ListProfiles(teamID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profiles)
}

func (s *Server) handleDefaultProfile(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "teamID")
	if err := auth.RequireRead(principal(r), teamID); err != nil {
		s.writeError(w, r, err)
		return
	}
	profile, err := s.workstations.GetDefault(teamID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) loadProfile(r *http.Request) (*types.WorkstationProfile, error) {
	profile, err := s.workstations.GetProfile(chi.URLParam(r, "id"))
	if err != nil {
		return nil, err
	}
	if err := auth.RequireRead(principal(r), profile.TeamID); err != nil {
		return nil, err
	}
	return profile, nil
}

func (s *Server) loadProfileForWrite(r *http.Request) (*types.WorkstationProfile, error) {
	profile, err := s.workstations.GetProfile(chi.URLParam(r, "id"))
	if err != nil {
		return nil, err
	}
	if err := auth.RequireWrite(principal(r), profile.TeamID); err != nil {
		return nil, err
	}
	return profile, nil
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.loadProfile(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

type updateProfileRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	ServiceIDs  []string `json:"serviceIds"`
	IsDefault   *bool    `json:"isDefault"`
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.loadProfileForWrite(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var body updateProfileRequest
	if err := s.decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	updated, err := s.workstations.UpdateProfile(profile.ID, workstations.UpdateProfileRequest{
		Name:        body.Name,
		Description: body.Description,
		ServiceIDs:  body.ServiceIDs,
		IsDefault:   body.IsDefault,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.loadProfileForWrite(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.workstations.DeleteProfile(profile.ID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetDefaultProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.loadProfileForWrite(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	updated, err := s.workstations.SetDefault(profile.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleRefreshProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.loadProfileForWrite(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	updated, err := s.workstations.RefreshStartupOrder(profile.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}
