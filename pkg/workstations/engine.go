package workstations

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/codeops-dev/registry/pkg/apperrors"
	"github.com/codeops-dev/registry/pkg/config"
	"github.com/codeops-dev/registry/pkg/events"
	"github.com/codeops-dev/registry/pkg/graph"
	"github.com/codeops-dev/registry/pkg/log"
	"github.com/codeops-dev/registry/pkg/storage"
	"github.com/codeops-dev/registry/pkg/types"
)

// Engine owns workstation profiles.
type Engine struct {
	store  *storage.Store
	broker *events.Broker
	limits config.LimitsConfig
	logger zerolog.Logger
}

// NewEngine builds the workstation engine.
func NewEngine(store *storage.Store, broker *events.Broker, limits config.LimitsConfig) *Engine {
	return &Engine{
		store:  store,
		broker: broker,
		limits: limits,
		logger: log.WithComponent("workstations"),
	}
}

// CreateProfileRequest carries the fields of a new profile. The service
// set comes from ServiceIDs when given, else from the solution's
// members.
type CreateProfileRequest struct {
	Name        string
	Description string
	SolutionID  string
	ServiceIDs  []string
	IsDefault   bool
	CreatedBy   string
}

// CreateProfile validates the team cap and name uniqueness, resolves the
// service set, computes the startup order, and persists.
func (e *Engine) CreateProfile(teamID string, req CreateProfileRequest) (*types.WorkstationProfile, error) {
	if req.Name == "" {
		return nil, apperrors.Validationf("profile name must not be empty")
	}

	var profile *types.WorkstationProfile
	err := e.store.Update(func(tx *storage.Tx) error {
		existing, err := tx.ProfilesByTeam(teamID)
		if err != nil {
			return err
		}
		if len(existing) >= e.limits.MaxWorkstationProfilesPerTeam {
			return apperrors.Validationf("team %s has reached the maximum of %d workstation profiles", teamID, e.limits.MaxWorkstationProfilesPerTeam)
		}
		taken, err := tx.FindProfileByName(teamID, req.Name)
		if err != nil {
			return err
		}
		if taken != nil {
			return apperrors.Validationf("profile named %q already exists", req.Name)
		}

		serviceIDs, err := resolveServiceSet(tx, teamID, req.ServiceIDs, req.SolutionID)
		if err != nil {
			return err
		}
		order, err := startupOrderFor(tx, teamID, serviceIDs)
		if err != nil {
			return err
		}

		if req.IsDefault {
			if err := clearDefault(tx, teamID); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		profile = &types.WorkstationProfile{
			ID:           uuid.NewString(),
			TeamID:       teamID,
			Name:         req.Name,
			Description:  req.Description,
			SolutionID:   req.SolutionID,
			ServiceIDs:   serviceIDs,
			StartupOrder: order,
			IsDefault:    req.IsDefault,
			CreatedBy:    req.CreatedBy,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		return tx.PutProfile(profile)
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info().Str("team", teamID).Str("name", profile.Name).Msg("workstation profile created")
	e.publish(events.EventProfileCreated, teamID, profile.ID)
	return profile, nil
}

// CreateFromSolution is the shorthand: the profile is named after the
// solution and selects exactly its members.
func (e *Engine) CreateFromSolution(teamID, solutionID, user string) (*types.WorkstationProfile, error) {
	var name string
	err := e.store.View(func(tx *storage.Tx) error {
		sol, err := tx.GetSolution(solutionID)
		if err != nil {
			return err
		}
		if sol.TeamID != teamID {
			return apperrors.Validationf("solution %s belongs to a different team", sol.Slug)
		}
		name = "Solution: " + sol.Name
		return nil
	})
	if err != nil {
		return nil, err
	}
	return e.CreateProfile(teamID, CreateProfileRequest{
		Name:       name,
		SolutionID: solutionID,
		CreatedBy:  user,
	})
}

// resolveServiceSet prefers the explicit id list; with none, it falls
// back to the solution's members. Every id must be a team service.
func resolveServiceSet(tx *storage.Tx, teamID string, serviceIDs []string, solutionID string) ([]string, error) {
	ids := serviceIDs
	if len(ids) == 0 {
		if solutionID == "" {
			return nil, apperrors.Validationf("profile requires explicit service ids or a solution")
		}
		sol, err := tx.GetSolution(solutionID)
		if err != nil {
			return nil, err
		}
		if sol.TeamID != teamID {
			return nil, apperrors.Validationf("solution %s belongs to a different team", sol.Slug)
		}
		members, err := tx.MembersBySolution(solutionID)
		if err != nil {
			return nil, err
		}
		sort.Slice(members, func(i, j int) bool { return members[i].DisplayOrder < members[j].DisplayOrder })
		for _, m := range members {
			ids = append(ids, m.ServiceID)
		}
		if len(ids) == 0 {
			return nil, apperrors.Validationf("solution %s has no members", sol.Slug)
		}
	}

	seen := make(map[string]bool, len(ids))
	resolved := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		svc, err := tx.GetService(id)
		if err != nil {
			return nil, err
		}
		if svc.TeamID != teamID {
			return nil, apperrors.Validationf("service %s belongs to a different team", svc.Slug)
		}
		resolved = append(resolved, id)
	}
	return resolved, nil
}

// startupOrderFor intersects the team Kahn order with the profile's
// set, preserving team order. Profile services missing from the order
// (cycle participants) are appended slug-sorted.
func startupOrderFor(tx *storage.Tx, teamID string, serviceIDs []string) ([]string, error) {
	services, err := tx.ServicesByTeam(teamID)
	if err != nil {
		return nil, err
	}
	edges, err := tx.DependenciesByTeam(teamID)
	if err != nil {
		return nil, err
	}

	inSet := make(map[string]bool, len(serviceIDs))
	for _, id := range serviceIDs {
		inSet[id] = true
	}

	order := make([]string, 0, len(serviceIDs))
	placed := make(map[string]bool, len(serviceIDs))
	for _, svc := range graph.KahnOrder(services, edges) {
		if inSet[svc.ID] {
			order = append(order, svc.ID)
			placed[svc.ID] = true
		}
	}

	var stragglers []*types.Service
	byID := make(map[string]*types.Service, len(services))
	for _, s := range services {
		byID[s.ID] = s
	}
	for _, id := range serviceIDs {
		if !placed[id] {
			if svc := byID[id]; svc != nil {
				stragglers = append(stragglers, svc)
			}
		}
	}
	sort.Slice(stragglers, func(i, j int) bool { return stragglers[i].Slug < stragglers[j].Slug })
	for _, svc := range stragglers {
		order = append(order, svc.ID)
	}
	return order, nil
}

func clearDefault(tx *storage.Tx, teamID string) error {
	current, err := tx.FindDefaultProfile(teamID)
	if err != nil {
		return err
	}
	if current == nil {
		return nil
	}
	current.IsDefault = false
	current.UpdatedAt = time.Now().UTC()
	return tx.PutProfile(current)
}

// UpdateProfileRequest carries partial updates; nil fields are left
// untouched.
type UpdateProfileRequest struct {
	Name        *string
	Description *string
	ServiceIDs  []string
	IsDefault   *bool
}

// UpdateProfile applies the non-nil fields, re-checking name uniqueness
// and re-resolving the startup order when the service set changes.
func (e *Engine) UpdateProfile(id string, req UpdateProfileRequest) (*types.WorkstationProfile, error) {
	var profile *types.WorkstationProfile
	err := e.store.Update(func(tx *storage.Tx) error {
		var err error
		profile, err = tx.GetProfile(id)
		if err != nil {
			return err
		}

		if req.Name != nil && *req.Name != profile.Name {
			if *req.Name == "" {
				return apperrors.Validationf("profile name must not be empty")
			}
			taken, err := tx.FindProfileByName(profile.TeamID, *req.Name)
			if err != nil {
				return err
			}
			if taken != nil && taken.ID != id {
				return apperrors.Validationf("profile named %q already exists", *req.Name)
			}
			profile.Name = *req.Name
		}
		if req.Description != nil {
			profile.Description = *req.Description
		}
		if req.ServiceIDs != nil {
			serviceIDs, err := resolveServiceSet(tx, profile.TeamID, req.ServiceIDs, "")
			if err != nil {
				return err
			}
			order, err := startupOrderFor(tx, profile.TeamID, serviceIDs)
			if err != nil {
				return err
			}
			profile.ServiceIDs = serviceIDs
			profile.StartupOrder = order
		}
		if req.IsDefault != nil && *req.IsDefault != profile.IsDefault {
			if *req.IsDefault {
				if err := clearDefault(tx, profile.TeamID); err != nil {
					return err
				}
			}
			profile.IsDefault = *req.IsDefault
		}

		profile.UpdatedAt = time.Now().UTC()
		return tx.PutProfile(profile)
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// SetDefault marks the profile as the team default, clearing any
// previous default in the same transaction.
func (e *Engine) SetDefault(id string) (*types.WorkstationProfile, error) {
	var profile *types.WorkstationProfile
	err := e.store.Update(func(tx *storage.Tx) error {
		var err error
		profile, err = tx.GetProfile(id)
		if err != nil {
			return err
		}
		if profile.IsDefault {
			return nil
		}
		if err := clearDefault(tx, profile.TeamID); err != nil {
			return err
		}
		profile.IsDefault = true
		profile.UpdatedAt = time.Now().UTC()
		return tx.PutProfile(profile)
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// RefreshStartupOrder recomputes the cached order from the live graph.
func (e *Engine) RefreshStartupOrder(id string) (*types.WorkstationProfile, error) {
	var profile *types.WorkstationProfile
	err := e.store.Update(func(tx *storage.Tx) error {
		var err error
		profile, err = tx.GetProfile(id)
		if err != nil {
			return err
		}
		order, err := startupOrderFor(tx, profile.TeamID, profile.ServiceIDs)
		if err != nil {
			return err
		}
		profile.StartupOrder = order
		profile.UpdatedAt = time.Now().UTC()
		return tx.PutProfile(profile)
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// GetProfile loads one profile by id.
func (e *Engine) GetProfile(id string) (*types.WorkstationProfile, error) {
	var profile *types.WorkstationProfile
	err := e.store.View(func(tx *storage.Tx) error {
		var err error
		profile, err = tx.GetProfile(id)
		return err
	})
	return profile, err
}

// GetDefault returns the team's default profile, or NotFound.
func (e *Engine) GetDefault(teamID string) (*types.WorkstationProfile, error) {
	var profile *types.WorkstationProfile
	err := e.store.View(func(tx *storage.Tx) error {
		var err error
		profile, err = tx.FindDefaultProfile(teamID)
		if err != nil {
			return err
		}
		if profile == nil {
			return apperrors.NotFoundf("team %s has no default workstation profile", teamID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// ListProfiles returns the team's profiles name-sorted.
func (e *Engine) ListProfiles(teamID string) ([]*types.WorkstationProfile, error) {
	var profiles []*types.WorkstationProfile
	err := e.store.View(func(tx *storage.Tx) error {
		var err error
		profiles, err = tx.ProfilesByTeam(teamID)
		return err
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].Name < profiles[j].Name })
	return profiles, nil
}

// DeleteProfile removes one profile by id.
func (e *Engine) DeleteProfile(id string) error {
	return e.store.Update(func(tx *storage.Tx) error {
		if _, err := tx.GetProfile(id); err != nil {
			return err
		}
		return tx.DeleteProfile(id)
	})
}

func (e *Engine) publish(eventType events.EventType, teamID, entityID string) {
	if e.broker == nil {
		return
	}
	e.broker.Publish(&events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TeamID:    teamID,
		EntityID:  entityID,
		Timestamp: time.Now().UTC(),
	})
}
