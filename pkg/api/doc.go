// Package api exposes the registry engines over HTTP. Routes are
// mounted under /api/v1/registry with bearer-token auth; /healthz,
// /readyz and /metrics live at the root.
package api
