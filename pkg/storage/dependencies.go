package storage

import (
	"encoding/json"

	"github.com/codeops-dev/registry/pkg/types"
)

// PutDependency writes (or overwrites) a dependency edge.
func (t *Tx) PutDependency(d *types.ServiceDependency) error {
	return t.put(bucketDependencies, d.ID, d)
}

// GetDependency loads an edge by id.
func (t *Tx) GetDependency(id string) (*types.ServiceDependency, error) {
	var d types.ServiceDependency
	found, err := t.load(bucketDependencies, id, &d)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, notFound("dependency", id)
	}
	return &d, nil
}

// DeleteDependency removes an edge row.
func (t *Tx) DeleteDependency(id string) error {
	return t.delete(bucketDependencies, id)
}

// DependenciesByTeam returns every edge whose endpoints lie in one team.
func (t *Tx) DependenciesByTeam(teamID string) ([]*types.ServiceDependency, error) {
	var edges []*types.ServiceDependency
	err := t.scan(bucketDependencies, func(v []byte) error {
		var d types.ServiceDependency
		if err := json.Unmarshal(v, &d); err != nil {
			return err
		}
		if d.TeamID == teamID {
			edges = append(edges, &d)
		}
		return nil
	})
	return edges, err
}

// DependenciesBySource returns the outgoing edges of one service.
func (t *Tx) DependenciesBySource(sourceID string) ([]*types.ServiceDependency, error) {
	var edges []*types.ServiceDependency
	err := t.scan(bucketDependencies, func(v []byte) error {
		var d types.ServiceDependency
		if err := json.Unmarshal(v, &d); err != nil {
			return err
		}
		if d.SourceID == sourceID {
			edges = append(edges, &d)
		}
		return nil
	})
	return edges, err
}

// DependenciesByTarget returns the incoming edges of one service.
func (t *Tx) DependenciesByTarget(targetID string) ([]*types.ServiceDependency, error) {
	var edges []*types.ServiceDependency
	err := t.scan(bucketDependencies, func(v []byte) error {
		var d types.ServiceDependency
		if err := json.Unmarshal(v, &d); err != nil {
			return err
		}
		if d.TargetID == targetID {
			edges = append(edges, &d)
		}
		return nil
	})
	return edges, err
}

// FindDependency resolves (source, target, type); nil when absent.
func (t *Tx) FindDependency(sourceID, targetID string, depType types.DependencyType) (*types.ServiceDependency, error) {
	var match *types.ServiceDependency
	err := t.scan(bucketDependencies, func(v []byte) error {
		if match != nil {
			return nil
		}
		var d types.ServiceDependency
		if err := json.Unmarshal(v, &d); err != nil {
			return err
		}
		if d.SourceID == sourceID && d.TargetID == targetID && d.Type == depType {
			match = &d
		}
		return nil
	})
	return match, err
}
