package metrics

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// HealthStatus is the payload served on /healthz and /readyz.
type HealthStatus struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components,omitempty"`
	Message    string            `json:"message,omitempty"`
	Version    string            `json:"version,omitempty"`
	Uptime     string            `json:"uptime,omitempty"`
}

// componentState is one registered component's last report.
type componentState struct {
	healthy bool
	message string
	updated time.Time
}

var components = struct {
	sync.RWMutex
	byName  map[string]componentState
	version string
	started time.Time
}{byName: map[string]componentState{}, started: time.Now()}

// criticalComponents must all report healthy before the server is ready.
var criticalComponents = []string{"storage", "api"}

// SetVersion records the build version reported by the health endpoints.
func SetVersion(v string) {
	components.Lock()
	components.version = v
	components.Unlock()
}

// RegisterComponent records a component's health. Re-registering
// overwrites the previous report.
func RegisterComponent(name string, healthy bool, message string) {
	components.Lock()
	components.byName[name] = componentState{
		healthy: healthy,
		message: message,
		updated: time.Now(),
	}
	components.Unlock()
}

// newStatus is called with the components lock held.
func newStatus(status string) HealthStatus {
	return HealthStatus{
		Status:     status,
		Timestamp:  time.Now(),
		Components: map[string]string{},
		Version:    components.version,
		Uptime:     time.Since(components.started).String(),
	}
}

// GetHealth rolls every registered component into one liveness verdict.
// A process with nothing registered yet counts as alive.
func GetHealth() HealthStatus {
	components.RLock()
	defer components.RUnlock()

	st := newStatus("healthy")
	for name, c := range components.byName {
		if c.healthy {
			st.Components[name] = "healthy"
			continue
		}
		st.Status = "unhealthy"
		st.Components[name] = "unhealthy: " + c.message
	}
	return st
}

// GetReadiness answers whether the critical components have come up.
func GetReadiness() HealthStatus {
	components.RLock()
	defer components.RUnlock()

	st := newStatus("ready")
	for _, name := range criticalComponents {
		c, registered := components.byName[name]
		switch {
		case !registered:
			st.Status = "not_ready"
			st.Message = "waiting for " + name + " initialization"
			st.Components[name] = "not registered"
		case !c.healthy:
			st.Status = "not_ready"
			st.Message = "waiting for " + name
			st.Components[name] = "not ready: " + c.message
		default:
			st.Components[name] = "ready"
		}
	}
	return st
}

// HealthHandler serves liveness.
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, GetHealth(), "unhealthy")
	}
}

// ReadyHandler serves readiness.
func ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, GetReadiness(), "not_ready")
	}
}

func writeStatus(w http.ResponseWriter, st HealthStatus, failure string) {
	w.Header().Set("Content-Type", "application/json")
	code := http.StatusOK
	if st.Status == failure {
		code = http.StatusServiceUnavailable
	}
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(st)
}
