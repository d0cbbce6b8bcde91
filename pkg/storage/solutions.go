package storage

import (
	"encoding/json"

	"github.com/codeops-dev/registry/pkg/types"
)

// PutSolution writes (or overwrites) a solution.
func (t *Tx) PutSolution(s *types.Solution) error {
	return t.put(bucketSolutions, s.ID, s)
}

// GetSolution loads a solution by id.
func (t *Tx) GetSolution(id string) (*types.Solution, error) {
	var s types.Solution
	found, err := t.load(bucketSolutions, id, &s)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, notFound("solution", id)
	}
	return &s, nil
}

// DeleteSolution removes the solution and cascades its member rows.
func (t *Tx) DeleteSolution(id string) error {
	if err := t.delete(bucketSolutions, id); err != nil {
		return err
	}
	members, err := t.MembersBySolution(id)
	if err != nil {
		return err
	}
	for _, m := range members {
		if err := t.delete(bucketSolutionMembers, m.ID); err != nil {
			return err
		}
	}
	return nil
}

// SolutionsByTeam returns every solution of one team.
func (t *Tx) SolutionsByTeam(teamID string) ([]*types.Solution, error) {
	var solutions []*types.Solution
	err := t.scan(bucketSolutions, func(v []byte) error {
		var s types.Solution
		if err := json.Unmarshal(v, &s); err != nil {
			return err
		}
		if s.TeamID == teamID {
			solutions = append(solutions, &s)
		}
		return nil
	})
	return solutions, err
}

// FindSolutionBySlug resolves (team, slug); nil when unclaimed.
func (t *Tx) FindSolutionBySlug(teamID, slug string) (*types.Solution, error) {
	var match *types.Solution
	err := t.scan(bucketSolutions, func(v []byte) error {
		if match != nil {
			return nil
		}
		var s types.Solution
		if err := json.Unmarshal(v, &s); err != nil {
			return err
		}
		if s.TeamID == teamID && s.Slug == slug {
			match = &s
		}
		return nil
	})
	return match, err
}

// PutMember writes (or overwrites) a solution member row.
func (t *Tx) PutMember(m *types.SolutionMember) error {
	return t.put(bucketSolutionMembers, m.ID, m)
}

// DeleteMember removes a member row.
func (t *Tx) DeleteMember(id string) error {
	return t.delete(bucketSolutionMembers, id)
}

// MembersBySolution returns the member rows of one solution, unordered.
func (t *Tx) MembersBySolution(solutionID string) ([]*types.SolutionMember, error) {
	var members []*types.SolutionMember
	err := t.scan(bucketSolutionMembers, func(v []byte) error {
		var m types.SolutionMember
		if err := json.Unmarshal(v, &m); err != nil {
			return err
		}
		if m.SolutionID == solutionID {
			members = append(members, &m)
		}
		return nil
	})
	return members, err
}

// MembersByService returns every membership of one service across
// solutions.
func (t *Tx) MembersByService(serviceID string) ([]*types.SolutionMember, error) {
	var members []*types.SolutionMember
	err := t.scan(bucketSolutionMembers, func(v []byte) error {
		var m types.SolutionMember
		if err := json.Unmarshal(v, &m); err != nil {
			return err
		}
		if m.ServiceID == serviceID {
			members = append(members, &m)
		}
		return nil
	})
	return members, err
}

// FindMember resolves (solution, service); nil when the service is not a
// member.
func (t *Tx) FindMember(solutionID, serviceID string) (*types.SolutionMember, error) {
	var match *types.SolutionMember
	err := t.scan(bucketSolutionMembers, func(v []byte) error {
		if match != nil {
			return nil
		}
		var m types.SolutionMember
		if err := json.Unmarshal(v, &m); err != nil {
			return err
		}
		if m.SolutionID == solutionID && m.ServiceID == serviceID {
			match = &m
		}
		return nil
	})
	return match, err
}
