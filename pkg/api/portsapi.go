package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/codeops-dev/registry/pkg/apperrors"
	"github.com/codeops-dev/registry/pkg/auth"
	"github.com/codeops-dev/registry/pkg/ports"
	"github.com/codeops-dev/registry/pkg/storage"
	"github.com/codeops-dev/registry/pkg/types"
)

// environmentOrDefault falls back to the local environment when the
// query omits one.
func environmentOrDefault(raw string) string {
	if raw == "" {
		return ports.DefaultEnvironment
	}
	return raw
}

type autoAllocateRequest struct {
	Environment string `json:"environment"`
	Type        string `json:"type" validate:"required"`
}

func (s *Server) handleAutoAllocate(w http.ResponseWriter, r *http.Request) {
	svc, err := s.loadServiceForWrite(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var body autoAllocateRequest
	if err := s.decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	portType, err := types.ParsePortType(body.Type)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	alloc, err := s.ports.AutoAllocate(svc.ID, environmentOrDefault(body.Environment), portType, principal(r).UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, alloc)
}

type autoAllocateAllRequest struct {
	Environment string   `json:"environment"`
	Types       []string `json:"types" validate:"required,min=1"`
}

func (s *Server) handleAutoAllocateAll(w http.ResponseWriter, r *http.Request) {
	svc, err := s.loadServiceForWrite(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var body autoAllocateAllRequest
	if err := s.decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	portTypes := make([]types.PortType, 0, len(body.Types))
	for _, raw := range body.Types {
		pt, err := types.ParsePortType(raw)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		portTypes = append(portTypes, pt)
	}

	allocs, err := s.ports.AutoAllocateAll(svc.ID, environmentOrDefault(body.Environment), portTypes, principal(r).UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, allocs)
}

type manualAllocateRequest struct {
	Environment string `json:"environment"`
	Type        string `json:"type" validate:"required"`
	Port        int    `json:"port" validate:"required"`
	Protocol    string `json:"protocol"`
	Description string `json:"description"`
}

func (s *Server) handleManualAllocate(w http.ResponseWriter, r *http.Request) {
	svc, err := s.loadServiceForWrite(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var body manualAllocateRequest
	if err := s.decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	portType, err := types.ParsePortType(body.Type)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	alloc, err := s.ports.ManualAllocate(ports.ManualAllocateRequest{
		ServiceID:   svc.ID,
		Environment: environmentOrDefault(body.Environment),
		Type:        portType,
		Port:        body.Port,
		Protocol:    body.Protocol,
		Description: body.Description,
		AllocatedBy: principal(r).UserID,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, alloc)
}

func (s *Server) handleServicePorts(w http.ResponseWriter, r *http.Request) {
	svc, err := s.loadService(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	allocs, err := s.ports.ListByService(svc.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, allocs)
}

func (s *Server) handleReleasePort(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	alloc, err := s.findAllocation(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := auth.RequireWrite(principal(r), alloc.TeamID); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.ports.Release(id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// findAllocation resolves an allocation id for the authorization check.
func (s *Server) findAllocation(id string) (*types.PortAllocation, error) {
	var found *types.PortAllocation
	err := s.store.View(func(tx *storage.Tx) error {
		alloc, err := tx.GetAllocation(id)
		if err != nil {
			return err
		}
		found = alloc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (s *Server) handleTeamPorts(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "teamID")
	if err := auth.RequireRead(principal(r), teamID); err != nil {
		s.writeError(w, r, err)
		return
	}
	entries, err := s.ports.PortMap(teamID, environmentOrDefault(r.URL.Query().Get("environment")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handlePortAvailability(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "teamID")
	if err := auth.RequireRead(principal(r), teamID); err != nil {
		s.writeError(w, r, err)
		return
	}
	rawPort := r.URL.Query().Get("port")
	port, err := strconv.Atoi(rawPort)
	if err != nil {
		s.writeError(w, r, apperrors.Validationf("invalid port parameter: %s", rawPort))
		return
	}
	avail, err := s.ports.CheckAvailability(teamID, port, environmentOrDefault(r.URL.Query().Get("environment")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, avail)
}

func (s *Server) handlePortConflicts(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "teamID")
	if err := auth.RequireRead(principal(r), teamID); err != nil {
		s.writeError(w, r, err)
		return
	}
	conflicts, err := s.ports.DetectConflicts(teamID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if conflicts == nil {
		conflicts = []ports.Conflict{}
	}
	writeJSON(w, http.StatusOK, conflicts)
}

func (s *Server) handleListRanges(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "teamID")
	if err := auth.RequireRead(principal(r), teamID); err != nil {
		s.writeError(w, r, err)
		return
	}
	ranges, err := s.ports.ListRanges(teamID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ranges)
}

type createRangeRequest struct {
	Type        string `json:"type" validate:"required"`
	Environment string `json:"environment"`
	Start       int    `json:"start" validate:"required"`
	End         int    `json:"end" validate:"required"`
	Description string `json:"description"`
}

func (s *Server) handleCreateRange(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "teamID")
	if err := auth.RequireWrite(principal(r), teamID); err != nil {
		s.writeError(w, r, err)
		return
	}

	var body createRangeRequest
	if err := s.decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	portType, err := types.ParsePortType(body.Type)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	rng, err := s.ports.CreateRange(ports.CreateRangeRequest{
		TeamID:      teamID,
		Type:        portType,
		Environment: environmentOrDefault(body.Environment),
		Start:       body.Start,
		End:         body.End,
		Description: body.Description,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rng)
}

func (s *Server) handleSeedRanges(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "teamID")
	if err := auth.RequireWrite(principal(r), teamID); err != nil {
		s.writeError(w, r, err)
		return
	}
	env := environmentOrDefault(r.URL.Query().Get("environment"))
	ranges, err := s.ports.SeedDefaultRanges(teamID, env, principal(r).UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ranges)
}

type updateRangeRequest struct {
	Start       int    `json:"start" validate:"required"`
	End         int    `json:"end" validate:"required"`
	Description string `json:"description"`
}

func (s *Server) handleUpdateRange(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rng, err := s.findRange(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := auth.RequireWrite(principal(r), rng.TeamID); err != nil {
		s.writeError(w, r, err)
		return
	}

	var body updateRangeRequest
	if err := s.decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	updated, err := s.ports.UpdateRange(id, body.Start, body.End, body.Description)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// findRange resolves a range id for the authorization check.
func (s *Server) findRange(id string) (*types.PortRange, error) {
	var found *types.PortRange
	err := s.store.View(func(tx *storage.Tx) error {
		rng, err := tx.GetRange(id)
		if err != nil {
			return err
		}
		found = rng
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}
