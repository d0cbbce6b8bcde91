package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/codeops-dev/registry/pkg/auth"
	"github.com/codeops-dev/registry/pkg/solutions"
	"github.com/codeops-dev/registry/pkg/types"
)

type createSolutionRequest struct {
	Name        string `json:"name" validate:"required"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Icon        string `json:"icon"`
	Color       string `json:"color"`
}

func (s *Server) handleCreateSolution(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "teamID")
	if err := auth.RequireWrite(principal(r), teamID); err != nil {
		s.writeError(w, r, err)
		return
	}

	var body createSolutionRequest
	if err := s.decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	req := solutions.CreateSolutionRequest{
		Name:        body.Name,
		Slug:        body.Slug,
		Description: body.Description,
		Icon:        body.Icon,
		Color:       body.Color,
		CreatedBy:   principal(r).UserID,
	}
	if body.Category != "" {
		category, err := types.ParseSolutionCategory(body.Category)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		req.Category = category
	}

	sol, err := s.solutions.CreateSolution(teamID, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sol)
}

func (s *Server) handleListSolutions(w http.ResponseWriter, r *http.Request) {
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
	list, err := s.solutions.ListSolutions(teamID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, paginate(list, pageNum, size))
}

// loadSolution resolves the solution view and checks read access.
func (s *Server) loadSolution(r *http.Request) (*solutions.View, error) {
	view, err := s.solutions.Get(chi.URLParam(r, "id"))
	if err != nil {
		return nil, err
	}
	if err := auth.RequireRead(principal(r), view.Solution.TeamID); err != nil {
		return nil, err
	}
	return view, nil
}

func (s *Server) loadSolutionForWrite(r *http.Request) (*solutions.View, error) {
	view, err := s.solutions.Get(chi.URLParam(r, "id"))
	if err != nil {
		return nil, err
	}
	if err := auth.RequireWrite(principal(r), view.Solution.TeamID); err != nil {
		return nil, err
	}
	return view, nil
}

func (s *Server) handleGetSolution(w http.ResponseWriter, r *http.Request) {
	view, err := s.loadSolution(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type updateSolutionRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Category    *string `json:"category"`
	Status      *string `json:"status"`
	Icon        *string `json:"icon"`
	Color       *string `json:"color"`
}

func (s *Server) handleUpdateSolution(w http.ResponseWriter, r *http.Request) {
	view, err := s.loadSolutionForWrite(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var body updateSolutionRequest
	if err := s.decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	req := solutions.UpdateSolutionRequest{
		Name:        body.Name,
		Description: body.Description,
		Icon:        body.Icon,
		Color:       body.Color,
	}
	if body.Category != nil {
		category, err := types.ParseSolutionCategory(*body.Category)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		req.Category = &category
	}
	if body.Status != nil {
		status, err := types.ParseSolutionStatus(*body.Status)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		req.Status = &status
	}

	sol, err := s.solutions.UpdateSolution(view.Solution.ID, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sol)
}

func (s *Server) handleDeleteSolution(w http.ResponseWriter, r *http.Request) {
	view, err := s.loadSolutionForWrite(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.solutions.DeleteSolution(view.Solution.ID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type addMemberRequest struct {
	ServiceID    string `json:"serviceId" validate:"required"`
	Role         string `json:"role"`
	DisplayOrder *int   `json:"displayOrder"`
	Notes        string `json:"notes"`
}

func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	view, err := s.loadSolutionForWrite(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var body addMemberRequest
	if err := s.decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	req := solutions.AddMemberRequest{
		ServiceID:    body.ServiceID,
		DisplayOrder: body.DisplayOrder,
		Notes:        body.Notes,
	}
	if body.Role != "" {
		role, err := types.ParseMemberRole(body.Role)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		req.Role = role
	}

	member, err := s.solutions.AddMember(view.Solution.ID, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, member)
}

type updateMemberRequest struct {
	Role         *string `json:"role"`
	DisplayOrder *int    `json:"displayOrder"`
	Notes        *string `json:"notes"`
}

func (s *Server) handleUpdateMember(w http.ResponseWriter, r *http.Request) {
	view, err := s.loadSolutionForWrite(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var body updateMemberRequest
	if err := s.decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	req := solutions.UpdateMemberRequest{
		DisplayOrder: body.DisplayOrder,
		Notes:        body.Notes,
	}
	if body.Role != nil {
		role, err := types.ParseMemberRole(*body.Role)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		req.Role = &role
	}

	member, err := s.solutions.UpdateMember(view.Solution.ID, chi.URLParam(r, "serviceID"), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, member)
}

func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	view, err := s.loadSolutionForWrite(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.solutions.RemoveMember(view.Solution.ID, chi.URLParam(r, "serviceID")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type reorderRequest struct {
	ServiceIDs []string `json:"serviceIds" validate:"required,min=1"`
}

func (s *Server) handleReorderMembers(w http.ResponseWriter, r *http.Request) {
	view, err := s.loadSolutionForWrite(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var body reorderRequest
	if err := s.decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.solutions.Reorder(view.Solution.ID, body.ServiceIDs); err != nil {
		s.writeError(w, r, err)
		return
	}

	updated, err := s.solutions.Get(view.Solution.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}
