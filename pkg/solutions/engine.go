package solutions

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/codeops-dev/registry/pkg/apperrors"
	"github.com/codeops-dev/registry/pkg/config"
	"github.com/codeops-dev/registry/pkg/events"
	"github.com/codeops-dev/registry/pkg/log"
	"github.com/codeops-dev/registry/pkg/storage"
	"github.com/codeops-dev/registry/pkg/types"
)

// Engine owns solutions and their ordered member lists.
type Engine struct {
	store  *storage.Store
	broker *events.Broker
	limits config.LimitsConfig
	logger zerolog.Logger
}

// NewEngine builds the solution engine.
func NewEngine(store *storage.Store, broker *events.Broker, limits config.LimitsConfig) *Engine {
	return &Engine{
		store:  store,
		broker: broker,
		limits: limits,
		logger: log.WithComponent("solutions"),
	}
}

// CreateSolutionRequest carries the fields of a new solution.
type CreateSolutionRequest struct {
	Name        string
	Slug        string
	Description string
	Category    types.SolutionCategory
	Icon        string
	Color       string
	CreatedBy   string
}

// CreateSolution registers a solution under the team cap, suffixing the
// slug on collision.
func (e *Engine) CreateSolution(teamID string, req CreateSolutionRequest) (*types.Solution, error) {
	if req.Name == "" {
		return nil, apperrors.Validationf("solution name must not be empty")
	}
	base := req.Slug
	if base == "" {
		base = types.Slugify(req.Name)
	}
	if err := types.ValidateSlug(base); err != nil {
		return nil, apperrors.Validationf("%v", err)
	}

	var sol *types.Solution
	err := e.store.Update(func(tx *storage.Tx) error {
		existing, err := tx.SolutionsByTeam(teamID)
		if err != nil {
			return err
		}
		if len(existing) >= e.limits.MaxSolutionsPerTeam {
			return apperrors.Validationf("team %s has reached the maximum of %d solutions", teamID, e.limits.MaxSolutionsPerTeam)
		}

		slug := base
		for n := 2; ; n++ {
			taken, err := tx.FindSolutionBySlug(teamID, slug)
			if err != nil {
				return err
			}
			if taken == nil {
				break
			}
			slug = fmt.Sprintf("%s-%d", base, n)
		}

		category := req.Category
		if category == "" {
			category = types.SolutionCategoryOther
		}
		now := time.Now().UTC()
		sol = &types.Solution{
			ID:          uuid.NewString(),
			TeamID:      teamID,
			Slug:        slug,
			Name:        req.Name,
			Description: req.Description,
			Category:    category,
			Status:      types.SolutionStatusActive,
			Icon:        req.Icon,
			Color:       req.Color,
			CreatedBy:   req.CreatedBy,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		return tx.PutSolution(sol)
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info().Str("team", teamID).Str("slug", sol.Slug).Msg("solution created")
	e.publish(events.EventSolutionCreated, teamID, sol.ID)
	return sol, nil
}

// UpdateSolutionRequest carries partial updates; nil fields are left
// untouched. The slug is immutable.
type UpdateSolutionRequest struct {
	Name        *string
	Description *string
	Category    *types.SolutionCategory
	Status      *types.SolutionStatus
	Icon        *string
	Color       *string
}

// UpdateSolution applies the non-nil fields.
func (e *Engine) UpdateSolution(id string, req UpdateSolutionRequest) (*types.Solution, error) {
	var sol *types.Solution
	err := e.store.Update(func(tx *storage.Tx) error {
		var err error
		sol, err = tx.GetSolution(id)
		if err != nil {
			return err
		}
		if req.Name != nil {
			if *req.Name == "" {
				return apperrors.Validationf("solution name must not be empty")
			}
			sol.Name = *req.Name
		}
		if req.Description != nil {
			sol.Description = *req.Description
		}
		if req.Category != nil {
			sol.Category = *req.Category
		}
		if req.Status != nil {
			sol.Status = *req.Status
		}
		if req.Icon != nil {
			sol.Icon = *req.Icon
		}
		if req.Color != nil {
			sol.Color = *req.Color
		}
		sol.UpdatedAt = time.Now().UTC()
		return tx.PutSolution(sol)
	})
	if err != nil {
		return nil, err
	}
	e.publish(events.EventSolutionUpdated, sol.TeamID, sol.ID)
	return sol, nil
}

// DeleteSolution removes the solution and its member rows. Member
// services are untouched.
func (e *Engine) DeleteSolution(id string) error {
	var teamID string
	err := e.store.Update(func(tx *storage.Tx) error {
		sol, err := tx.GetSolution(id)
		if err != nil {
			return err
		}
		teamID = sol.TeamID
		return tx.DeleteSolution(id)
	})
	if err != nil {
		return err
	}
	e.publish(events.EventSolutionDeleted, teamID, id)
	return nil
}

// MemberView is one member row with its service resolved.
type MemberView struct {
	Member  *types.SolutionMember `json:"member"`
	Service *types.Service        `json:"service"`
}

// View is a solution with its ordered members.
type View struct {
	Solution *types.Solution `json:"solution"`
	Members  []MemberView    `json:"members"`
}

// Get returns the solution with members ordered by display order, then
// slug for equal orders.
func (e *Engine) Get(id string) (*View, error) {
	view := &View{Members: []MemberView{}}
	err := e.store.View(func(tx *storage.Tx) error {
		sol, err := tx.GetSolution(id)
		if err != nil {
			return err
		}
		view.Solution = sol

		members, err := orderedMembers(tx, id)
		if err != nil {
			return err
		}
		view.Members = members
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func orderedMembers(tx *storage.Tx, solutionID string) ([]MemberView, error) {
	members, err := tx.MembersBySolution(solutionID)
	if err != nil {
		return nil, err
	}
	views := make([]MemberView, 0, len(members))
	for _, m := range members {
		view := MemberView{Member: m}
		if svc, err := tx.GetService(m.ServiceID); err == nil {
			view.Service = svc
		}
		views = append(views, view)
	}
	sort.Slice(views, func(i, j int) bool {
		a, b := views[i], views[j]
		if a.Member.DisplayOrder != b.Member.DisplayOrder {
			return a.Member.DisplayOrder < b.Member.DisplayOrder
		}
		if a.Service != nil && b.Service != nil {
			return a.Service.Slug < b.Service.Slug
		}
		return a.Member.ServiceID < b.Member.ServiceID
	})
	return views, nil
}

// ListSolutions returns the team's solutions slug-sorted.
func (e *Engine) ListSolutions(teamID string) ([]*types.Solution, error) {
	var sols []*types.Solution
	err := e.store.View(func(tx *storage.Tx) error {
		var err error
		sols, err = tx.SolutionsByTeam(teamID)
		return err
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(sols, func(i, j int) bool { return sols[i].Slug < sols[j].Slug })
	return sols, nil
}

// AddMemberRequest ties one service into a solution.
type AddMemberRequest struct {
	ServiceID    string
	Role         types.MemberRole
	DisplayOrder *int
	Notes        string
}

// AddMember appends the service to the solution. Display order defaults
// to one past the current maximum.
func (e *Engine) AddMember(solutionID string, req AddMemberRequest) (*types.SolutionMember, error) {
	var member *types.SolutionMember
	err := e.store.Update(func(tx *storage.Tx) error {
		sol, err := tx.GetSolution(solutionID)
		if err != nil {
			return err
		}
		svc, err := tx.GetService(req.ServiceID)
		if err != nil {
			return err
		}
		if svc.TeamID != sol.TeamID {
			return apperrors.Validationf("service %s must belong to the same team as solution %s", svc.Slug, sol.Slug)
		}

		existing, err := tx.FindMember(solutionID, req.ServiceID)
		if err != nil {
			return err
		}
		if existing != nil {
			return apperrors.Validationf("service %s already exists in solution %s", svc.Slug, sol.Slug)
		}

		order := 0
		members, err := tx.MembersBySolution(solutionID)
		if err != nil {
			return err
		}
		for _, m := range members {
			if m.DisplayOrder >= order {
				order = m.DisplayOrder + 1
			}
		}
		if req.DisplayOrder != nil {
			order = *req.DisplayOrder
		}

		role := req.Role
		if role == "" {
			role = types.MemberRoleSupporting
		}
		now := time.Now().UTC()
		member = &types.SolutionMember{
			ID:           uuid.NewString(),
			SolutionID:   solutionID,
			ServiceID:    req.ServiceID,
			Role:         role,
			DisplayOrder: order,
			Notes:        req.Notes,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := tx.PutMember(member); err != nil {
			return err
		}
		sol.UpdatedAt = now
		return tx.PutSolution(sol)
	})
	if err != nil {
		return nil, err
	}
	return member, nil
}

// UpdateMemberRequest adjusts a member row.
type UpdateMemberRequest struct {
	Role         *types.MemberRole
	DisplayOrder *int
	Notes        *string
}

// UpdateMember adjusts the (solution, service) member row.
func (e *Engine) UpdateMember(solutionID, serviceID string, req UpdateMemberRequest) (*types.SolutionMember, error) {
	var member *types.SolutionMember
	err := e.store.Update(func(tx *storage.Tx) error {
		if _, err := tx.GetSolution(solutionID); err != nil {
			return err
		}
		var err error
		member, err = tx.FindMember(solutionID, serviceID)
		if err != nil {
			return err
		}
		if member == nil {
			return apperrors.Validationf("service %s is not a member of solution %s", serviceID, solutionID)
		}
		if req.Role != nil {
			member.Role = *req.Role
		}
		if req.DisplayOrder != nil {
			member.DisplayOrder = *req.DisplayOrder
		}
		if req.Notes != nil {
			member.Notes = *req.Notes
		}
		member.UpdatedAt = time.Now().UTC()
		return tx.PutMember(member)
	})
	if err != nil {
		return nil, err
	}
	return member, nil
}

// RemoveMember detaches the service from the solution. The service
// itself is never deleted.
func (e *Engine) RemoveMember(solutionID, serviceID string) error {
	return e.store.Update(func(tx *storage.Tx) error {
		if _, err := tx.GetSolution(solutionID); err != nil {
			return err
		}
		member, err := tx.FindMember(solutionID, serviceID)
		if err != nil {
			return err
		}
		if member == nil {
			return apperrors.Validationf("service %s is not a member of solution %s", serviceID, solutionID)
		}
		return tx.DeleteMember(member.ID)
	})
}

// Reorder rewrites display orders from the given id list, which must be
// set-equal to the current membership.
func (e *Engine) Reorder(solutionID string, serviceIDs []string) error {
	return e.store.Update(func(tx *storage.Tx) error {
		if _, err := tx.GetSolution(solutionID); err != nil {
			return err
		}
		members, err := tx.MembersBySolution(solutionID)
		if err != nil {
			return err
		}

		byService := make(map[string]*types.SolutionMember, len(members))
		for _, m := range members {
			byService[m.ServiceID] = m
		}
		if len(serviceIDs) != len(members) {
			return apperrors.Validationf("reorder list must name all %d members", len(members))
		}
		seen := make(map[string]bool, len(serviceIDs))
		for _, id := range serviceIDs {
			if seen[id] {
				return apperrors.Validationf("service %s appears twice in reorder list", id)
			}
			seen[id] = true
			if byService[id] == nil {
				return apperrors.Validationf("service %s is not a member of solution %s", id, solutionID)
			}
		}

		now := time.Now().UTC()
		for index, id := range serviceIDs {
			m := byService[id]
			m.DisplayOrder = index
			m.UpdatedAt = now
			if err := tx.PutMember(m); err != nil {
				return err
			}
		}
		return nil
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
