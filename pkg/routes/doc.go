// Package routes manages the HTTP path-prefix namespace: prefix
// normalization, path-prefix overlap detection, and gateway-scoped
// uniqueness.
package routes
