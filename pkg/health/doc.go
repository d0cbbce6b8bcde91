// Package health is the health aggregator: on-demand outbound HTTP
// probes with per-call timeouts, persisted per-service status caching,
// and team/solution roll-ups.
package health
