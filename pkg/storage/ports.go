package storage

import (
	"encoding/json"

	"github.com/codeops-dev/registry/pkg/types"
)

// PutAllocation writes (or overwrites) a port allocation.
func (t *Tx) PutAllocation(a *types.PortAllocation) error {
	return t.put(bucketPortAllocations, a.ID, a)
}

// GetAllocation loads an allocation by id.
func (t *Tx) GetAllocation(id string) (*types.PortAllocation, error) {
	var a types.PortAllocation
	found, err := t.load(bucketPortAllocations, id, &a)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, notFound("port allocation", id)
	}
	return &a, nil
}

// DeleteAllocation removes an allocation row.
func (t *Tx) DeleteAllocation(id string) error {
	return t.delete(bucketPortAllocations, id)
}

// AllocationsByTeam returns every allocation of one team.
func (t *Tx) AllocationsByTeam(teamID string) ([]*types.PortAllocation, error) {
	var allocs []*types.PortAllocation
	err := t.scan(bucketPortAllocations, func(v []byte) error {
		var a types.PortAllocation
		if err := json.Unmarshal(v, &a); err != nil {
			return err
		}
		if a.TeamID == teamID {
			allocs = append(allocs, &a)
		}
		return nil
	})
	return allocs, err
}

// AllocationsByService returns every allocation owned by one service.
func (t *Tx) AllocationsByService(serviceID string) ([]*types.PortAllocation, error) {
	var allocs []*types.PortAllocation
	err := t.scan(bucketPortAllocations, func(v []byte) error {
		var a types.PortAllocation
		if err := json.Unmarshal(v, &a); err != nil {
			return err
		}
		if a.ServiceID == serviceID {
			allocs = append(allocs, &a)
		}
		return nil
	})
	return allocs, err
}

// FindAllocation resolves (team, environment, port); nil when the port is
// free.
func (t *Tx) FindAllocation(teamID, environment string, port int) (*types.PortAllocation, error) {
	var match *types.PortAllocation
	err := t.scan(bucketPortAllocations, func(v []byte) error {
		if match != nil {
			return nil
		}
		var a types.PortAllocation
		if err := json.Unmarshal(v, &a); err != nil {
			return err
		}
		if a.TeamID == teamID && a.Environment == environment && a.Port == port {
			match = &a
		}
		return nil
	})
	return match, err
}

// PutRange writes (or overwrites) a port range.
func (t *Tx) PutRange(r *types.PortRange) error {
	return t.put(bucketPortRanges, r.ID, r)
}

// GetRange loads a range by id.
func (t *Tx) GetRange(id string) (*types.PortRange, error) {
	var r types.PortRange
	found, err := t.load(bucketPortRanges, id, &r)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, notFound("port range", id)
	}
	return &r, nil
}

// RangesByTeam returns every range of one team.
func (t *Tx) RangesByTeam(teamID string) ([]*types.PortRange, error) {
	var ranges []*types.PortRange
	err := t.scan(bucketPortRanges, func(v []byte) error {
		var r types.PortRange
		if err := json.Unmarshal(v, &r); err != nil {
			return err
		}
		if r.TeamID == teamID {
			ranges = append(ranges, &r)
		}
		return nil
	})
	return ranges, err
}

// FindRange resolves (team, type, environment); nil when not configured.
func (t *Tx) FindRange(teamID string, portType types.PortType, environment string) (*types.PortRange, error) {
	var match *types.PortRange
	err := t.scan(bucketPortRanges, func(v []byte) error {
		if match != nil {
			return nil
		}
		var r types.PortRange
		if err := json.Unmarshal(v, &r); err != nil {
			return err
		}
		if r.TeamID == teamID && r.Type == portType && r.Environment == environment {
			match = &r
		}
		return nil
	})
	return match, err
}
