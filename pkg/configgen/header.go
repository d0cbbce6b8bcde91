package configgen

import (
	"fmt"
	"strings"

	"github.com/codeops-dev/registry/pkg/types"
)

// renderHeader emits the line-oriented reference header: service
// identity, ports, dependencies in both directions, routes,
// infrastructure, and environment config, every line prefixed "# ".
func renderHeader(st *renderState, environment string) (string, error) {
	svc := st.service
	var b strings.Builder
	line := func(format string, args ...interface{}) {
		fmt.Fprintf(&b, "# "+format+"\n", args...)
	}

	line("Service: %s (%s)", svc.Name, svc.Slug)
	line("Type: %s", svc.Type)
	line("Repository: %s", orNA(svc.RepoURL))
	line("Tech Stack: %s", orNA(svc.TechStack))
	line("")

	line("Ports:")
	if len(st.allocations) == 0 {
		line("  None")
	}
	for _, a := range st.allocations {
		line("  %s: %d", a.Type, a.Port)
	}
	line("")

	line("Dependencies (upstream):")
	if !writeEdgeLines(line, st.outgoing, st.targets, func(e *types.ServiceDependency) string { return e.TargetID }) {
		line("  None")
	}
	line("")

	line("Consumers (downstream):")
	if !writeEdgeLines(line, st.incoming, st.sources, func(e *types.ServiceDependency) string { return e.SourceID }) {
		line("  None")
	}
	line("")

	line("API Routes:")
	if len(st.routes) == 0 {
		line("  None")
	}
	for _, r := range st.routes {
		line("  %s (%s)", r.PathPrefix, r.Methods)
	}
	line("")

	line("Infrastructure:")
	if len(st.resources) == 0 {
		line("  None")
	}
	for _, r := range st.resources {
		line("  %s: %s", r.Type, r.Name)
	}
	line("")

	line("Environment Config (%s):", environment)
	if len(st.envRows) == 0 {
		line("  None")
	}
	for _, row := range st.envRows {
		line("  %s = %s", row.Key, row.Value)
	}

	return b.String(), nil
}

func writeEdgeLines(line func(string, ...interface{}), edges []*types.ServiceDependency, endpoints map[string]*types.Service, endpointID func(*types.ServiceDependency) string) bool {
	wrote := false
	for _, edge := range edges {
		endpoint := endpoints[endpointID(edge)]
		if endpoint == nil {
			continue
		}
		line("  %s (%s) [%s]", endpoint.Name, endpoint.Slug, edge.Type)
		wrote = true
	}
	return wrote
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
