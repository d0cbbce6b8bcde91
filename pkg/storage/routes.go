package storage

import (
	"encoding/json"

	"github.com/codeops-dev/registry/pkg/types"
)

// PutRoute writes (or overwrites) an API route.
func (t *Tx) PutRoute(r *types.APIRoute) error {
	return t.put(bucketRoutes, r.ID, r)
}

// GetRoute loads a route by id.
func (t *Tx) GetRoute(id string) (*types.APIRoute, error) {
	var r types.APIRoute
	found, err := t.load(bucketRoutes, id, &r)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, notFound("route", id)
	}
	return &r, nil
}

// DeleteRoute removes a route row.
func (t *Tx) DeleteRoute(id string) error {
	return t.delete(bucketRoutes, id)
}

// RoutesByTeam returns every route of one team.
func (t *Tx) RoutesByTeam(teamID string) ([]*types.APIRoute, error) {
	var routes []*types.APIRoute
	err := t.scan(bucketRoutes, func(v []byte) error {
		var r types.APIRoute
		if err := json.Unmarshal(v, &r); err != nil {
			return err
		}
		if r.TeamID == teamID {
			routes = append(routes, &r)
		}
		return nil
	})
	return routes, err
}

// RoutesByService returns the routes owned by one service.
func (t *Tx) RoutesByService(serviceID string) ([]*types.APIRoute, error) {
	var routes []*types.APIRoute
	err := t.scan(bucketRoutes, func(v []byte) error {
		var r types.APIRoute
		if err := json.Unmarshal(v, &r); err != nil {
			return err
		}
		if r.ServiceID == serviceID {
			routes = append(routes, &r)
		}
		return nil
	})
	return routes, err
}
