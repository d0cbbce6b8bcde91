package ports

import (
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

// DefaultEnvironment is the range fallback and seeding environment.
const DefaultEnvironment = "local"

// Engine allocates ports out of per-(team, type, environment) ranges.
// Every allocation runs its collision check and its write in one store
// transaction.
type Engine struct {
	store    *storage.Store
	broker   *events.Broker
	defaults map[types.PortType]config.Bounds
	logger   zerolog.Logger
}

// NewEngine builds the port engine. defaults supplies the preset bounds
// used by SeedDefaultRanges.
func NewEngine(store *storage.Store, broker *events.Broker, defaults map[types.PortType]config.Bounds) *Engine {
	if defaults == nil {
		defaults = config.DefaultRangeBounds()
	}
	return &Engine{
		store:    store,
		broker:   broker,
		defaults: defaults,
		logger:   log.WithComponent("ports"),
	}
}

// AutoAllocate assigns the lowest free port of the matching range to the
// service. Missing (team, type, environment) ranges fall back to the
// team's local range for the type.
func (e *Engine) AutoAllocate(serviceID, environment string, portType types.PortType, user string) (*types.PortAllocation, error) {
	var alloc *types.PortAllocation
	err := e.store.Update(func(tx *storage.Tx) error {
		svc, err := tx.GetService(serviceID)
		if err != nil {
			return err
		}
		alloc, err = e.allocateTx(tx, svc, environment, portType, user)
		return err
	})
	if err != nil {
		return nil, err
	}
	e.logAllocated(alloc)
	e.publish(events.EventPortAllocated, alloc.TeamID, alloc.ID)
	return alloc, nil
}

// AutoAllocateAll allocates one port per requested type, in input order,
// inside a single transaction. The first failure aborts the whole batch.
func (e *Engine) AutoAllocateAll(serviceID, environment string, portTypes []types.PortType, user string) ([]*types.PortAllocation, error) {
	var allocs []*types.PortAllocation
	err := e.store.Update(func(tx *storage.Tx) error {
		svc, err := tx.GetService(serviceID)
		if err != nil {
			return err
		}
		for _, pt := range portTypes {
			alloc, err := e.allocateTx(tx, svc, environment, pt, user)
			if err != nil {
				return err
			}
			allocs = append(allocs, alloc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, alloc := range allocs {
		e.logAllocated(alloc)
		e.publish(events.EventPortAllocated, alloc.TeamID, alloc.ID)
	}
	return allocs, nil
}

// AllocateTx runs one auto-allocation inside a caller-owned transaction,
// for engines that bundle allocation into a larger atomic operation
// (service cloning). The caller is responsible for event publication.
func (e *Engine) AllocateTx(tx *storage.Tx, svc *types.Service, environment string, portType types.PortType, user string) (*types.PortAllocation, error) {
	return e.allocateTx(tx, svc, environment, portType, user)
}

func (e *Engine) allocateTx(tx *storage.Tx, svc *types.Service, environment string, portType types.PortType, user string) (*types.PortAllocation, error) {
	rng, err := tx.FindRange(svc.TeamID, portType, environment)
	if err != nil {
		return nil, err
	}
	if rng == nil && environment != DefaultEnvironment {
		rng, err = tx.FindRange(svc.TeamID, portType, DefaultEnvironment)
		if err != nil {
			return nil, err
		}
	}
	if rng == nil {
		return nil, apperrors.Validationf("No port range configured for type %s", portType)
	}

	// The uniqueness invariant is (team, environment, port), so the
	// taken set spans all port types, not just the requested one.
	taken := make(map[int]bool)
	allocs, err := tx.AllocationsByTeam(svc.TeamID)
	if err != nil {
		return nil, err
	}
	for _, a := range allocs {
		if a.Environment == environment {
			taken[a.Port] = true
		}
	}

	port := 0
	for p := rng.Start; p <= rng.End; p++ {
		if !taken[p] {
			port = p
			break
		}
	}
	if port == 0 {
		return nil, apperrors.Validationf("No available ports in range %d-%d", rng.Start, rng.End)
	}

	now := time.Now().UTC()
	alloc := &types.PortAllocation{
		ID:            uuid.NewString(),
		TeamID:        svc.TeamID,
		ServiceID:     svc.ID,
		Environment:   environment,
		Type:          portType,
		Port:          port,
		Protocol:      types.ProtocolTCP,
		AutoAllocated: true,
		AllocatedBy:   user,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := tx.PutAllocation(alloc); err != nil {
		return nil, err
	}
	return alloc, nil
}

// ManualAllocateRequest carries an explicit port claim.
type ManualAllocateRequest struct {
	ServiceID   string
	Environment string
	Type        types.PortType
	Port        int
	Protocol    string
	Description string
	AllocatedBy string
}

// ManualAllocate claims a specific port, rejecting the request when the
// (team, environment, port) slot is already bound.
func (e *Engine) ManualAllocate(req ManualAllocateRequest) (*types.PortAllocation, error) {
	if req.Port < 1 || req.Port > 65535 {
		return nil, apperrors.Validationf("port %d is outside the valid range 1-65535", req.Port)
	}

	var alloc *types.PortAllocation
	err := e.store.Update(func(tx *storage.Tx) error {
		svc, err := tx.GetService(req.ServiceID)
		if err != nil {
			return err
		}

		existing, err := tx.FindAllocation(svc.TeamID, req.Environment, req.Port)
		if err != nil {
			return err
		}
		if existing != nil {
			owner, err := tx.GetService(existing.ServiceID)
			if err != nil && !apperrors.IsNotFound(err) {
				return err
			}
			ownerSlug := existing.ServiceID
			if owner != nil {
				ownerSlug = owner.Slug
			}
			return apperrors.Validationf("port %d in %s already allocated to %s (%s)",
				req.Port, req.Environment, ownerSlug, existing.Type)
		}

		protocol := req.Protocol
		if protocol == "" {
			protocol = types.ProtocolTCP
		}
		now := time.Now().UTC()
		alloc = &types.PortAllocation{
			ID:            uuid.NewString(),
			TeamID:        svc.TeamID,
			ServiceID:     svc.ID,
			Environment:   req.Environment,
			Type:          req.Type,
			Port:          req.Port,
			Protocol:      protocol,
			Description:   req.Description,
			AutoAllocated: false,
			AllocatedBy:   req.AllocatedBy,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		return tx.PutAllocation(alloc)
	})
	if err != nil {
		return nil, err
	}
	e.logAllocated(alloc)
	e.publish(events.EventPortAllocated, alloc.TeamID, alloc.ID)
	return alloc, nil
}

// Release frees one allocation by id.
func (e *Engine) Release(allocationID string) error {
	var teamID string
	err := e.store.Update(func(tx *storage.Tx) error {
		alloc, err := tx.GetAllocation(allocationID)
		if err != nil {
			return err
		}
		teamID = alloc.TeamID
		return tx.DeleteAllocation(allocationID)
	})
	if err != nil {
		return err
	}
	e.publish(events.EventPortReleased, teamID, allocationID)
	return nil
}

// ListByService returns a service's allocations sorted by port.
func (e *Engine) ListByService(serviceID string) ([]*types.PortAllocation, error) {
	var allocs []*types.PortAllocation
	err := e.store.View(func(tx *storage.Tx) error {
		if _, err := tx.GetService(serviceID); err != nil {
			return err
		}
		var err error
		allocs, err = tx.AllocationsByService(serviceID)
		return err
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(allocs, func(i, j int) bool { return allocs[i].Port < allocs[j].Port })
	return allocs, nil
}

// Availability reports whether a (team, environment, port) slot is free
// and, when it is not, who holds it.
type Availability struct {
	Port           int            `json:"port"`
	Environment    string         `json:"environment"`
	Available      bool           `json:"available"`
	OwnerServiceID string         `json:"ownerServiceId,omitempty"`
	OwnerSlug      string         `json:"ownerSlug,omitempty"`
	Type           types.PortType `json:"portType,omitempty"`
}

// CheckAvailability answers whether a port is free in the environment.
func (e *Engine) CheckAvailability(teamID string, port int, environment string) (*Availability, error) {
	avail := &Availability{Port: port, Environment: environment, Available: true}
	err := e.store.View(func(tx *storage.Tx) error {
		existing, err := tx.FindAllocation(teamID, environment, port)
		if err != nil {
			return err
		}
		if existing == nil {
			return nil
		}
		avail.Available = false
		avail.OwnerServiceID = existing.ServiceID
		avail.Type = existing.Type
		if owner, err := tx.GetService(existing.ServiceID); err == nil {
			avail.OwnerSlug = owner.Slug
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return avail, nil
}

// Conflict is a (port, environment) slot held by two or more
// allocations. Conflicts only arise from externally mutated data.
type Conflict struct {
	Port        int                     `json:"port"`
	Environment string                  `json:"environment"`
	Allocations []*types.PortAllocation `json:"allocations"`
}

// DetectConflicts audits a team for duplicate (port, environment) slots.
func (e *Engine) DetectConflicts(teamID string) ([]Conflict, error) {
	type slot struct {
		port int
		env  string
	}
	groups := make(map[slot][]*types.PortAllocation)
	err := e.store.View(func(tx *storage.Tx) error {
		allocs, err := tx.AllocationsByTeam(teamID)
		if err != nil {
			return err
		}
		for _, a := range allocs {
			key := slot{a.Port, a.Environment}
			groups[key] = append(groups[key], a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	conflicts := []Conflict{}
	for key, allocs := range groups {
		if len(allocs) < 2 {
			continue
		}
		sort.Slice(allocs, func(i, j int) bool { return allocs[i].ID < allocs[j].ID })
		conflicts = append(conflicts, Conflict{Port: key.port, Environment: key.env, Allocations: allocs})
	}
	sort.Slice(conflicts, func(i, j int) bool {
		if conflicts[i].Environment != conflicts[j].Environment {
			return conflicts[i].Environment < conflicts[j].Environment
		}
		return conflicts[i].Port < conflicts[j].Port
	})
	return conflicts, nil
}

// SeedDefaultRanges installs the preset range per port type for the
// team. A team that already has any range is returned unchanged.
func (e *Engine) SeedDefaultRanges(teamID, environment, user string) ([]*types.PortRange, error) {
	if environment == "" {
		environment = DefaultEnvironment
	}
	var ranges []*types.PortRange
	err := e.store.Update(func(tx *storage.Tx) error {
		existing, err := tx.RangesByTeam(teamID)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			ranges = existing
			return nil
		}

		now := time.Now().UTC()
		for _, pt := range types.AllPortTypes {
			bounds, ok := e.defaults[pt]
			if !ok {
				continue
			}
			rng := &types.PortRange{
				ID:          uuid.NewString(),
				TeamID:      teamID,
				Type:        pt,
				Environment: environment,
				Start:       bounds.Start,
				End:         bounds.End,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := tx.PutRange(rng); err != nil {
				return err
			}
			ranges = append(ranges, rng)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortRanges(ranges)
	return ranges, nil
}

// CreateRangeRequest carries an explicit custom range.
type CreateRangeRequest struct {
	TeamID      string
	Type        types.PortType
	Environment string
	Start       int
	End         int
	Description string
}

// CreateRange installs one custom range under the (team, type,
// environment) uniqueness constraint.
func (e *Engine) CreateRange(req CreateRangeRequest) (*types.PortRange, error) {
	if err := validateBounds(req.Start, req.End); err != nil {
		return nil, err
	}
	var rng *types.PortRange
	err := e.store.Update(func(tx *storage.Tx) error {
		existing, err := tx.FindRange(req.TeamID, req.Type, req.Environment)
		if err != nil {
			return err
		}
		if existing != nil {
			return apperrors.Validationf("range for %s in %s already exists", req.Type, req.Environment)
		}
		now := time.Now().UTC()
		rng = &types.PortRange{
			ID:          uuid.NewString(),
			TeamID:      req.TeamID,
			Type:        req.Type,
			Environment: req.Environment,
			Start:       req.Start,
			End:         req.End,
			Description: req.Description,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		return tx.PutRange(rng)
	})
	if err != nil {
		return nil, err
	}
	return rng, nil
}

// UpdateRange moves the bounds of an existing range. Shrinking past a
// live allocation is rejected, naming the offending port.
func (e *Engine) UpdateRange(rangeID string, start, end int, description string) (*types.PortRange, error) {
	if err := validateBounds(start, end); err != nil {
		return nil, err
	}
	var rng *types.PortRange
	err := e.store.Update(func(tx *storage.Tx) error {
		var err error
		rng, err = tx.GetRange(rangeID)
		if err != nil {
			return err
		}

		allocs, err := tx.AllocationsByTeam(rng.TeamID)
		if err != nil {
			return err
		}
		for _, a := range allocs {
			if a.Environment != rng.Environment || a.Type != rng.Type {
				continue
			}
			if a.Port < start || a.Port > end {
				slug := a.ServiceID
				if owner, err := tx.GetService(a.ServiceID); err == nil {
					slug = owner.Slug
				}
				return apperrors.Validationf("port %d allocated to %s falls outside the new range %d-%d",
					a.Port, slug, start, end)
			}
		}

		rng.Start = start
		rng.End = end
		if description != "" {
			rng.Description = description
		}
		rng.UpdatedAt = time.Now().UTC()
		return tx.PutRange(rng)
	})
	if err != nil {
		return nil, err
	}
	return rng, nil
}

// ListRanges returns a team's ranges sorted by environment then type.
func (e *Engine) ListRanges(teamID string) ([]*types.PortRange, error) {
	var ranges []*types.PortRange
	err := e.store.View(func(tx *storage.Tx) error {
		var err error
		ranges, err = tx.RangesByTeam(teamID)
		return err
	})
	if err != nil {
		return nil, err
	}
	sortRanges(ranges)
	return ranges, nil
}

// PortMapEntry is one service with its allocations, for the team map.
type PortMapEntry struct {
	ServiceID   string                  `json:"serviceId"`
	ServiceName string                  `json:"serviceName"`
	Slug        string                  `json:"slug"`
	Allocations []*types.PortAllocation `json:"allocations"`
}

// PortMap projects a team's allocations grouped by owning service,
// optionally filtered to one environment.
func (e *Engine) PortMap(teamID, environment string) ([]PortMapEntry, error) {
	entries := []PortMapEntry{}
	err := e.store.View(func(tx *storage.Tx) error {
		services, err := tx.ServicesByTeam(teamID)
		if err != nil {
			return err
		}
		allocs, err := tx.AllocationsByTeam(teamID)
		if err != nil {
			return err
		}

		byService := make(map[string][]*types.PortAllocation)
		for _, a := range allocs {
			if environment != "" && a.Environment != environment {
				continue
			}
			byService[a.ServiceID] = append(byService[a.ServiceID], a)
		}

		sort.Slice(services, func(i, j int) bool { return services[i].Slug < services[j].Slug })
		for _, svc := range services {
			list := byService[svc.ID]
			if len(list) == 0 {
				continue
			}
			sort.Slice(list, func(i, j int) bool { return list[i].Port < list[j].Port })
			entries = append(entries, PortMapEntry{
				ServiceID:   svc.ID,
				ServiceName: svc.Name,
				Slug:        svc.Slug,
				Allocations: list,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func validateBounds(start, end int) error {
	if start < 1 || end > 65535 {
		return apperrors.Validationf("range bounds %d-%d are outside 1-65535", start, end)
	}
	if start >= end {
		return apperrors.Validationf("range start %d must be below range end %d", start, end)
	}
	return nil
}

func sortRanges(ranges []*types.PortRange) {
	sort.Slice(ranges, func(i, j int) bool {
		if ranges[i].Environment != ranges[j].Environment {
			return ranges[i].Environment < ranges[j].Environment
		}
		return ranges[i].Start < ranges[j].Start
	})
}

func (e *Engine) logAllocated(alloc *types.PortAllocation) {
	e.logger.Info().
		Str("service", alloc.ServiceID).
		Str("environment", alloc.Environment).
		Str("type", string(alloc.Type)).
		Int("port", alloc.Port).
		Bool("auto", alloc.AutoAllocated).
		Msg("port allocated")
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
