/*
Package types defines the core data structures used throughout the CodeOps
registry.

This package contains the persisted domain model: services, port
allocations and ranges, dependency edges, API routes, infrastructure
resources, environment configs, solutions with ordered members,
workstation profiles, and generated config templates. All other packages
build on these types for storage, engine logic, and API payloads.

# Architecture

Every persisted record carries an opaque id plus creation and last-change
instants. Team-scoped records carry a TeamID; uniqueness rules and graph
algorithms only ever apply within one team.

Closed enumerations (service type, port type, dependency type, resource
type, roles, statuses) are string-typed constants so they serialize
directly, with Parse helpers that reject unknown wire names at the JSON
boundary.

# Core Types

Ecosystem units:
  - Service: a registered API, frontend, datastore, worker, or library
  - ServiceDependency: directed edge "source depends on target"
  - APIRoute: a claimed path prefix, optionally behind a gateway

Port management:
  - PortAllocation: (team, environment, port) unique binding
  - PortRange: per-(team, type, environment) auto-allocation window

Composition:
  - Solution / SolutionMember: ordered, role-tagged service groupings
  - WorkstationProfile: developer-machine service bundle with a cached
    startup order

Ledgers and artifacts:
  - InfraResource: external resource rows with orphan tracking
  - EnvConfig: per-(service, environment, key) configuration values
  - ConfigTemplate: versioned generated artifacts (Compose, application
    YML, reference header, env file)
*/
package types
