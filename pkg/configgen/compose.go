package configgen

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/codeops-dev/registry/pkg/apperrors"
	"github.com/codeops-dev/registry/pkg/graph"
	"github.com/codeops-dev/registry/pkg/storage"
	"github.com/codeops-dev/registry/pkg/types"
)

const composeNetwork = "codeops-network"

// renderCompose emits a single-service Compose document.
func renderCompose(st *renderState) (string, error) {
	block, volumes := composeServiceBlock(st)

	services := mapping()
	pair(services, st.service.Slug, block)

	root := mapping()
	pair(root, "services", services)
	pair(root, "networks", networksBlock())
	if len(volumes) > 0 {
		pair(root, "volumes", volumesBlock(volumes))
	}
	return marshalYAML(root)
}

// composeServiceBlock renders one service entry and reports the named
// volumes it mounts. Sections that would be empty are omitted.
func composeServiceBlock(st *renderState) (*yaml.Node, []string) {
	svc := st.service
	block := mapping()
	pair(block, "image", scalar(svc.Slug+":latest"))
	pair(block, "container_name", scalar(svc.Slug))

	if len(st.allocations) > 0 {
		ports := sequence()
		for _, a := range st.allocations {
			ports.Content = append(ports.Content, quoted(fmt.Sprintf("%d:%d", a.Port, a.Port)))
		}
		pair(block, "ports", ports)
	}

	if len(st.envRows) > 0 {
		env := mapping()
		for _, row := range st.envRows {
			pair(env, row.Key, scalar(row.Value))
		}
		pair(block, "environment", env)
	}

	if slugs := st.targetSlugs(); len(slugs) > 0 {
		deps := sequence()
		for _, slug := range slugs {
			deps.Content = append(deps.Content, scalar(slug))
		}
		pair(block, "depends_on", deps)
	}

	if svc.HealthCheckURL != "" {
		interval := svc.HealthCheckIntervalSeconds
		if interval <= 0 {
			interval = 30
		}
		check := mapping()
		pair(check, "test", sequence(
			quoted("CMD"), quoted("curl"), quoted("-f"), quoted(svc.HealthCheckURL),
		))
		pair(check, "interval", scalar(fmt.Sprintf("%ds", interval)))
		pair(check, "timeout", scalar("5s"))
		pair(check, "retries", number(3))
		pair(block, "healthcheck", check)
	}

	labels := mapping()
	pair(labels, "com.codeops.service-id", scalar(svc.ID))
	pair(labels, "com.codeops.service-type", scalar(string(svc.Type)))
	pair(labels, "com.codeops.team-id", scalar(svc.TeamID))
	pair(block, "labels", labels)

	pair(block, "networks", sequence(scalar(composeNetwork)))

	volumes := st.volumeNames()
	if len(volumes) > 0 {
		mounts := sequence()
		for _, name := range volumes {
			mounts.Content = append(mounts.Content, scalar(fmt.Sprintf("%s:/var/lib/%s", name, name)))
		}
		pair(block, "volumes", mounts)
	}
	return block, volumes
}

func networksBlock() *yaml.Node {
	driver := mapping()
	pair(driver, "driver", scalar("bridge"))
	networks := mapping()
	pair(networks, composeNetwork, driver)
	return networks
}

func volumesBlock(names []string) *yaml.Node {
	volumes := mapping()
	for _, name := range names {
		pair(volumes, name, mapping())
	}
	return volumes
}

// SolutionCompose renders one merged Compose document covering every
// member of the solution, ordered by the team startup order. The upsert
// is keyed on the first ordered member with solution provenance.
func (g *Generator) SolutionCompose(solutionID, environment string) (*types.ConfigTemplate, error) {
	var tpl *types.ConfigTemplate
	err := g.store.Update(func(tx *storage.Tx) error {
		sol, err := tx.GetSolution(solutionID)
		if err != nil {
			return err
		}
		members, err := tx.MembersBySolution(solutionID)
		if err != nil {
			return err
		}
		if len(members) == 0 {
			return apperrors.Validationf("solution %s has no members", sol.Slug)
		}

		memberServices, err := orderedMemberServices(tx, sol.TeamID, members)
		if err != nil {
			return err
		}

		services := mapping()
		allVolumes := map[string]bool{}
		var volumeNames []string
		for _, svc := range memberServices {
			st, err := loadState(tx, svc, environment)
			if err != nil {
				return err
			}
			block, volumes := composeServiceBlock(st)
			pair(services, svc.Slug, block)
			for _, name := range volumes {
				if !allVolumes[name] {
					allVolumes[name] = true
					volumeNames = append(volumeNames, name)
				}
			}
		}
		sort.Strings(volumeNames)

		root := mapping()
		pair(root, "services", services)
		pair(root, "networks", networksBlock())
		if len(volumeNames) > 0 {
			pair(root, "volumes", volumesBlock(volumeNames))
		}
		content, err := marshalYAML(root)
		if err != nil {
			return err
		}

		tpl, err = upsertTemplate(tx, memberServices[0], types.TemplateDockerCompose, environment, content, "solution:"+solutionID)
		return err
	})
	if err != nil {
		return nil, err
	}

	g.logger.Info().
		Str("solution", solutionID).
		Str("environment", environment).
		Int("version", tpl.Version).
		Msg("solution compose generated")
	g.publish(tpl)
	return tpl, nil
}

// orderedMemberServices resolves the member services ordered by the
// team startup order; members missing from that order (cycle
// participants) keep their display order at the end.
func orderedMemberServices(tx *storage.Tx, teamID string, members []*types.SolutionMember) ([]*types.Service, error) {
	teamServices, err := tx.ServicesByTeam(teamID)
	if err != nil {
		return nil, err
	}
	edges, err := tx.DependenciesByTeam(teamID)
	if err != nil {
		return nil, err
	}

	inSolution := make(map[string]*types.SolutionMember, len(members))
	for _, m := range members {
		inSolution[m.ServiceID] = m
	}

	ordered := make([]*types.Service, 0, len(members))
	placed := make(map[string]bool, len(members))
	for _, svc := range graph.KahnOrder(teamServices, edges) {
		if inSolution[svc.ID] != nil {
			ordered = append(ordered, svc)
			placed[svc.ID] = true
		}
	}

	byID := make(map[string]*types.Service, len(teamServices))
	for _, s := range teamServices {
		byID[s.ID] = s
	}
	var stragglers []*types.SolutionMember
	for _, m := range members {
		if !placed[m.ServiceID] && byID[m.ServiceID] != nil {
			stragglers = append(stragglers, m)
		}
	}
	sort.Slice(stragglers, func(i, j int) bool { return stragglers[i].DisplayOrder < stragglers[j].DisplayOrder })
	for _, m := range stragglers {
		ordered = append(ordered, byID[m.ServiceID])
	}
	return ordered, nil
}
