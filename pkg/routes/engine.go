package routes

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/codeops-dev/registry/pkg/apperrors"
	"github.com/codeops-dev/registry/pkg/events"
	"github.com/codeops-dev/registry/pkg/log"
	"github.com/codeops-dev/registry/pkg/storage"
	"github.com/codeops-dev/registry/pkg/types"
)

var prefixPattern = regexp.MustCompile(`^/[a-z0-9/_.{}-]+$`)

// httpMethods is the accepted verb set for route method lists.
var httpMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "PATCH": true,
	"DELETE": true, "HEAD": true, "OPTIONS": true,
}

// Normalize canonicalizes a path prefix: lowercased, leading slash
// ensured, trailing slash stripped. Characters outside [a-z0-9/_.{}-]
// are rejected. Normalize is idempotent.
func Normalize(prefix string) (string, error) {
	p := strings.ToLower(strings.TrimSpace(prefix))
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	for len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimSuffix(p, "/")
	}
	if !prefixPattern.MatchString(p) {
		return "", apperrors.Validationf("prefix %q contains invalid characters", prefix)
	}
	return p, nil
}

// Overlaps reports whether two normalized prefixes claim overlapping
// path space: equal, or one is a path segment prefix of the other.
func Overlaps(a, b string) bool {
	if a == b {
		return true
	}
	return strings.HasPrefix(b, a+"/") || strings.HasPrefix(a, b+"/")
}

// Engine owns API route records and the overlap rule.
type Engine struct {
	store  *storage.Store
	broker *events.Broker
	logger zerolog.Logger
}

// NewEngine builds the route engine.
func NewEngine(store *storage.Store, broker *events.Broker) *Engine {
	return &Engine{
		store:  store,
		broker: broker,
		logger: log.WithComponent("routes"),
	}
}

// CreateRouteRequest carries the fields of a new route claim.
type CreateRouteRequest struct {
	ServiceID   string
	GatewayID   string
	PathPrefix  string
	Methods     []string
	Environment string
	Description string
}

// CreateRoute claims a prefix for the service. With a gateway, the claim
// is checked against that gateway's routes in the environment; without,
// against the team's direct routes in the environment.
func (e *Engine) CreateRoute(req CreateRouteRequest) (*types.APIRoute, error) {
	prefix, err := Normalize(req.PathPrefix)
	if err != nil {
		return nil, err
	}
	methods, err := normalizeMethods(req.Methods)
	if err != nil {
		return nil, err
	}

	var route *types.APIRoute
	err = e.store.Update(func(tx *storage.Tx) error {
		svc, err := tx.GetService(req.ServiceID)
		if err != nil {
			return err
		}
		if req.GatewayID != "" {
			gateway, err := tx.GetService(req.GatewayID)
			if err != nil {
				return err
			}
			if gateway.TeamID != svc.TeamID {
				return apperrors.Validationf("gateway %s and service %s belong to different teams", gateway.Slug, svc.Slug)
			}
		}

		scope, err := scopedRoutes(tx, svc.TeamID, req.GatewayID, req.Environment)
		if err != nil {
			return err
		}
		for _, existing := range scope {
			if !Overlaps(prefix, existing.PathPrefix) {
				continue
			}
			if existing.ServiceID == req.ServiceID {
				return apperrors.Validationf("service already has a route with overlapping prefix %s", existing.PathPrefix)
			}
			return apperrors.Validationf("prefix %s conflicts with existing route %s", prefix, existing.PathPrefix)
		}

		now := time.Now().UTC()
		route = &types.APIRoute{
			ID:          uuid.NewString(),
			TeamID:      svc.TeamID,
			ServiceID:   req.ServiceID,
			GatewayID:   req.GatewayID,
			PathPrefix:  prefix,
			Methods:     strings.Join(methods, ","),
			Environment: req.Environment,
			Description: req.Description,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		return tx.PutRoute(route)
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info().Str("service", route.ServiceID).Str("prefix", route.PathPrefix).Msg("route created")
	e.publish(events.EventRouteCreated, route.TeamID, route.ID)
	return route, nil
}

// scopedRoutes returns the routes the overlap rule checks against.
func scopedRoutes(tx *storage.Tx, teamID, gatewayID, environment string) ([]*types.APIRoute, error) {
	all, err := tx.RoutesByTeam(teamID)
	if err != nil {
		return nil, err
	}
	scope := all[:0]
	for _, r := range all {
		if r.Environment != environment {
			continue
		}
		if gatewayID != "" {
			if r.GatewayID == gatewayID {
				scope = append(scope, r)
			}
		} else if r.GatewayID == "" {
			scope = append(scope, r)
		}
	}
	return scope, nil
}

// AvailabilityResult reports whether a prefix is free in its scope.
type AvailabilityResult struct {
	Available   bool              `json:"available"`
	Normalized  string            `json:"normalized"`
	Conflicting []*types.APIRoute `json:"conflicting"`
}

// CheckAvailability applies the overlap rule without writing anything.
func (e *Engine) CheckAvailability(teamID, gatewayID, environment, prefix string) (*AvailabilityResult, error) {
	normalized, err := Normalize(prefix)
	if err != nil {
		return nil, err
	}
	result := &AvailabilityResult{Available: true, Normalized: normalized, Conflicting: []*types.APIRoute{}}
	err = e.store.View(func(tx *storage.Tx) error {
		scope, err := scopedRoutes(tx, teamID, gatewayID, environment)
		if err != nil {
			return err
		}
		for _, existing := range scope {
			if Overlaps(normalized, existing.PathPrefix) {
				result.Conflicting = append(result.Conflicting, existing)
			}
		}
		result.Available = len(result.Conflicting) == 0
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteRoute removes one route by id.
func (e *Engine) DeleteRoute(id string) error {
	var teamID string
	err := e.store.Update(func(tx *storage.Tx) error {
		route, err := tx.GetRoute(id)
		if err != nil {
			return err
		}
		teamID = route.TeamID
		return tx.DeleteRoute(id)
	})
	if err != nil {
		return err
	}
	e.publish(events.EventRouteDeleted, teamID, id)
	return nil
}

// ListFilter narrows ListRoutes.
type ListFilter struct {
	Environment string
	GatewayID   string
	ServiceID   string
}

// ListRoutes returns the team's routes, filtered and prefix-sorted.
func (e *Engine) ListRoutes(teamID string, filter ListFilter) ([]*types.APIRoute, error) {
	var routes []*types.APIRoute
	err := e.store.View(func(tx *storage.Tx) error {
		var err error
		routes, err = tx.RoutesByTeam(teamID)
		return err
	})
	if err != nil {
		return nil, err
	}

	filtered := []*types.APIRoute{}
	for _, r := range routes {
		if filter.Environment != "" && r.Environment != filter.Environment {
			continue
		}
		if filter.GatewayID != "" && r.GatewayID != filter.GatewayID {
			continue
		}
		if filter.ServiceID != "" && r.ServiceID != filter.ServiceID {
			continue
		}
		filtered = append(filtered, r)
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].PathPrefix < filtered[j].PathPrefix })
	return filtered, nil
}

func normalizeMethods(methods []string) ([]string, error) {
	if len(methods) == 0 {
		return nil, apperrors.Validationf("route methods must not be empty")
	}
	out := make([]string, 0, len(methods))
	for _, m := range methods {
		verb := strings.ToUpper(strings.TrimSpace(m))
		if !httpMethods[verb] {
			return nil, apperrors.Validationf("invalid HTTP method %q", m)
		}
		out = append(out, verb)
	}
	return out, nil
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
