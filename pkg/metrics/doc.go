/*
Package metrics exposes Prometheus collectors for the registry plus the
liveness and readiness endpoints.

Counters and histograms (API requests, health probes, template
generation, events) are updated inline by the packages doing the work.
Entity gauges (services, dependency edges, port allocations) are
refreshed from the store by the Collector on a 15 second interval.

The component health registry feeds /healthz and /readyz: readiness
requires the storage and api components to have reported healthy.
*/
package metrics
