package storage

import (
	"encoding/json"

	"github.com/codeops-dev/registry/pkg/types"
)

// PutService writes (or overwrites) a service record.
func (t *Tx) PutService(svc *types.Service) error {
	return t.put(bucketServices, svc.ID, svc)
}

// GetService loads a service by id.
func (t *Tx) GetService(id string) (*types.Service, error) {
	var svc types.Service
	found, err := t.load(bucketServices, id, &svc)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, notFound("service", id)
	}
	return &svc, nil
}

// ServicesByTeam returns every service of one team.
func (t *Tx) ServicesByTeam(teamID string) ([]*types.Service, error) {
	var services []*types.Service
	err := t.scan(bucketServices, func(v []byte) error {
		var svc types.Service
		if err := json.Unmarshal(v, &svc); err != nil {
			return err
		}
		if svc.TeamID == teamID {
			services = append(services, &svc)
		}
		return nil
	})
	return services, err
}

// FindServiceBySlug resolves (team, slug); nil when no service claims it.
func (t *Tx) FindServiceBySlug(teamID, slug string) (*types.Service, error) {
	var match *types.Service
	err := t.scan(bucketServices, func(v []byte) error {
		if match != nil {
			return nil
		}
		var svc types.Service
		if err := json.Unmarshal(v, &svc); err != nil {
			return err
		}
		if svc.TeamID == teamID && svc.Slug == slug {
			match = &svc
		}
		return nil
	})
	return match, err
}

// DeleteService removes the service row and everything owned by it:
// allocations, routes (owned or gatewayed), env configs, templates, and
// edges touching it. Infra resources are orphaned, not deleted.
func (t *Tx) DeleteService(id string) error {
	if err := t.delete(bucketServices, id); err != nil {
		return err
	}

	allocs, err := t.AllocationsByService(id)
	if err != nil {
		return err
	}
	for _, a := range allocs {
		if err := t.delete(bucketPortAllocations, a.ID); err != nil {
			return err
		}
	}

	var routeIDs []string
	err = t.scan(bucketRoutes, func(v []byte) error {
		var r types.APIRoute
		if err := json.Unmarshal(v, &r); err != nil {
			return err
		}
		if r.ServiceID == id || r.GatewayID == id {
			routeIDs = append(routeIDs, r.ID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, rid := range routeIDs {
		if err := t.delete(bucketRoutes, rid); err != nil {
			return err
		}
	}

	cfgs, err := t.EnvConfigsByService(id)
	if err != nil {
		return err
	}
	for _, c := range cfgs {
		if err := t.delete(bucketEnvConfigs, c.ID); err != nil {
			return err
		}
	}

	tpls, err := t.TemplatesByService(id)
	if err != nil {
		return err
	}
	for _, tpl := range tpls {
		if err := t.delete(bucketTemplates, tpl.ID); err != nil {
			return err
		}
	}

	var edgeIDs []string
	err = t.scan(bucketDependencies, func(v []byte) error {
		var d types.ServiceDependency
		if err := json.Unmarshal(v, &d); err != nil {
			return err
		}
		if d.SourceID == id || d.TargetID == id {
			edgeIDs = append(edgeIDs, d.ID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, eid := range edgeIDs {
		if err := t.delete(bucketDependencies, eid); err != nil {
			return err
		}
	}

	resources, err := t.ResourcesByService(id)
	if err != nil {
		return err
	}
	for _, res := range resources {
		res.ServiceID = ""
		if err := t.PutResource(res); err != nil {
			return err
		}
	}

	members, err := t.MembersByService(id)
	if err != nil {
		return err
	}
	for _, m := range members {
		if err := t.delete(bucketSolutionMembers, m.ID); err != nil {
			return err
		}
	}

	var profiles []*types.WorkstationProfile
	err = t.scan(bucketProfiles, func(v []byte) error {
		var p types.WorkstationProfile
		if err := json.Unmarshal(v, &p); err != nil {
			return err
		}
		profiles = append(profiles, &p)
		return nil
	})
	if err != nil {
		return err
	}
	for _, p := range profiles {
		trimmedIDs := removeID(p.ServiceIDs, id)
		trimmedOrder := removeID(p.StartupOrder, id)
		if len(trimmedIDs) != len(p.ServiceIDs) || len(trimmedOrder) != len(p.StartupOrder) {
			p.ServiceIDs = trimmedIDs
			p.StartupOrder = trimmedOrder
			if err := t.PutProfile(p); err != nil {
				return err
			}
		}
	}

	return nil
}

func removeID(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
