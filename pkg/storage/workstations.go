package storage

import (
	"encoding/json"

	"github.com/codeops-dev/registry/pkg/types"
)

// PutProfile writes (or overwrites) a workstation profile.
func (t *Tx) PutProfile(p *types.WorkstationProfile) error {
	return t.put(bucketProfiles, p.ID, p)
}

// GetProfile loads a profile by id.
func (t *Tx) GetProfile(id string) (*types.WorkstationProfile, error) {
	var p types.WorkstationProfile
	found, err := t.load(bucketProfiles, id, &p)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, notFound("workstation profile", id)
	}
	return &p, nil
}

// DeleteProfile removes a profile row.
func (t *Tx) DeleteProfile(id string) error {
	return t.delete(bucketProfiles, id)
}

// ProfilesByTeam returns every profile of one team.
func (t *Tx) ProfilesByTeam(teamID string) ([]*types.WorkstationProfile, error) {
	var profiles []*types.WorkstationProfile
	err := t.scan(bucketProfiles, func(v []byte) error {
		var p types.WorkstationProfile
		if err := json.Unmarshal(v, &p); err != nil {
			return err
		}
		if p.TeamID == teamID {
			profiles = append(profiles, &p)
		}
		return nil
	})
	return profiles, err
}

// FindProfileByName resolves (team, name); nil when unclaimed.
func (t *Tx) FindProfileByName(teamID, name string) (*types.WorkstationProfile, error) {
	var match *types.WorkstationProfile
	err := t.scan(bucketProfiles, func(v []byte) error {
		if match != nil {
			return nil
		}
		var p types.WorkstationProfile
		if err := json.Unmarshal(v, &p); err != nil {
			return err
		}
		if p.TeamID == teamID && p.Name == name {
			match = &p
		}
		return nil
	})
	return match, err
}

// FindDefaultProfile returns the team's default profile, nil when unset.
func (t *Tx) FindDefaultProfile(teamID string) (*types.WorkstationProfile, error) {
	var match *types.WorkstationProfile
	err := t.scan(bucketProfiles, func(v []byte) error {
		if match != nil {
			return nil
		}
		var p types.WorkstationProfile
		if err := json.Unmarshal(v, &p); err != nil {
			return err
		}
		if p.TeamID == teamID && p.IsDefault {
			match = &p
		}
		return nil
	})
	return match, err
}
