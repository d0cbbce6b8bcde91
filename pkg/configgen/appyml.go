package configgen

import (
	"fmt"
	"strings"

	"github.com/codeops-dev/registry/pkg/types"
)

const datasourcePrefix = "spring.datasource."

// renderApplicationYML emits Spring-style application configuration:
// the application name, the HTTP server port when one is allocated,
// datasource keys nested under spring.datasource, remaining env-config
// rows flat, and a codeops block with the base URL of every upstream
// dependency that has an HTTP port in the environment.
func renderApplicationYML(st *renderState) (string, error) {
	appName := mapping()
	pair(appName, "name", scalar(st.service.Slug))
	spring := mapping()
	pair(spring, "application", appName)

	datasource := mapping()
	var flat []*types.EnvConfig
	for _, row := range st.envRows {
		if strings.HasPrefix(row.Key, datasourcePrefix) {
			field := strings.TrimPrefix(row.Key, datasourcePrefix)
			if field != "" {
				pair(datasource, field, scalar(row.Value))
				continue
			}
		}
		flat = append(flat, row)
	}
	if len(datasource.Content) > 0 {
		pair(spring, "datasource", datasource)
	}

	root := mapping()
	pair(root, "spring", spring)

	if port := httpAPIPort(st.allocations); port > 0 {
		server := mapping()
		pair(server, "port", number(port))
		pair(root, "server", server)
	}

	if len(flat) > 0 {
		block := mapping()
		for _, row := range flat {
			pair(block, row.Key, scalar(row.Value))
		}
		pair(root, "config", block)
	}

	codeops := mapping()
	for _, slug := range st.targetSlugs() {
		port := upstreamHTTPPort(st, slug)
		if port == 0 {
			continue
		}
		entry := mapping()
		pair(entry, "url", scalar(fmt.Sprintf("http://localhost:%d", port)))
		pair(codeops, slug, entry)
	}
	if len(codeops.Content) > 0 {
		pair(root, "codeops", codeops)
	}

	return marshalYAML(root)
}

func httpAPIPort(allocations []*types.PortAllocation) int {
	for _, a := range allocations {
		if a.Type == types.PortTypeHTTPAPI {
			return a.Port
		}
	}
	return 0
}

// upstreamHTTPPort looks up the HTTP_API port of the named dependency
// target in the rendering environment. Targets without one generate no
// codeops entry.
func upstreamHTTPPort(st *renderState, slug string) int {
	for _, edge := range st.outgoing {
		target := st.targets[edge.TargetID]
		if target == nil || target.Slug != slug {
			continue
		}
		for _, a := range st.targetAllocations[target.ID] {
			if a.Type == types.PortTypeHTTPAPI {
				return a.Port
			}
		}
	}
	return 0
}
