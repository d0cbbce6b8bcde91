// Package workstations manages developer-machine bundles: which
// services to start, with a startup order cached from the dependency
// graph and at most one default profile per team.
package workstations
