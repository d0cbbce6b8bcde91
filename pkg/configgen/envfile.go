package configgen

import (
	"fmt"
	"sort"
	"strings"
)

// renderEnvFile emits dotenv lines: the env-config rows key-sorted,
// then one PORT_<TYPE> line per allocation, type-sorted.
func renderEnvFile(st *renderState) (string, error) {
	var b strings.Builder
	for _, row := range st.envRows {
		fmt.Fprintf(&b, "%s=%s\n", envKey(row.Key), row.Value)
	}

	type portLine struct {
		key  string
		port int
	}
	lines := make([]portLine, 0, len(st.allocations))
	for _, a := range st.allocations {
		lines = append(lines, portLine{key: "PORT_" + string(a.Type), port: a.Port})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].key < lines[j].key })
	for _, l := range lines {
		fmt.Fprintf(&b, "%s=%d\n", l.key, l.port)
	}
	return b.String(), nil
}

// envKey flattens a dotted config key into dotenv form.
func envKey(key string) string {
	upper := strings.ToUpper(key)
	upper = strings.ReplaceAll(upper, ".", "_")
	return strings.ReplaceAll(upper, "-", "_")
}
