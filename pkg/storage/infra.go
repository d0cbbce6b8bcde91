package storage

import (
	"encoding/json"

	"github.com/codeops-dev/registry/pkg/types"
)

// PutResource writes (or overwrites) an infrastructure resource.
func (t *Tx) PutResource(r *types.InfraResource) error {
	return t.put(bucketInfraResources, r.ID, r)
}

// GetResource loads a resource by id.
func (t *Tx) GetResource(id string) (*types.InfraResource, error) {
	var r types.InfraResource
	found, err := t.load(bucketInfraResources, id, &r)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, notFound("infra resource", id)
	}
	return &r, nil
}

// DeleteResource removes a resource row.
func (t *Tx) DeleteResource(id string) error {
	return t.delete(bucketInfraResources, id)
}

// ResourcesByTeam returns every resource of one team.
func (t *Tx) ResourcesByTeam(teamID string) ([]*types.InfraResource, error) {
	var resources []*types.InfraResource
	err := t.scan(bucketInfraResources, func(v []byte) error {
		var r types.InfraResource
		if err := json.Unmarshal(v, &r); err != nil {
			return err
		}
		if r.TeamID == teamID {
			resources = append(resources, &r)
		}
		return nil
	})
	return resources, err
}

// ResourcesByService returns the resources linked to one service.
func (t *Tx) ResourcesByService(serviceID string) ([]*types.InfraResource, error) {
	var resources []*types.InfraResource
	err := t.scan(bucketInfraResources, func(v []byte) error {
		var r types.InfraResource
		if err := json.Unmarshal(v, &r); err != nil {
			return err
		}
		if r.ServiceID == serviceID && serviceID != "" {
			resources = append(resources, &r)
		}
		return nil
	})
	return resources, err
}
