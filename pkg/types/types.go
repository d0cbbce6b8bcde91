package types

import (
	"time"
)

// Service is a registered unit of the team ecosystem: an API, a frontend,
// a datastore, a worker, or a library. Slugs are unique within a team.
type Service struct {
	ID                         string            `json:"id"`
	TeamID                     string            `json:"teamId"`
	Name                       string            `json:"name"`
	Slug                       string            `json:"slug"`
	Type                       ServiceType       `json:"type"`
	Status                     ServiceStatus     `json:"status"`
	RepoURL                    string            `json:"repoUrl,omitempty"`
	Branch                     string            `json:"branch,omitempty"`
	TechStack                  string            `json:"techStack,omitempty"`
	Description                string            `json:"description,omitempty"`
	HealthCheckURL             string            `json:"healthCheckUrl,omitempty"`
	HealthCheckIntervalSeconds int               `json:"healthCheckIntervalSeconds,omitempty"`
	LastHealthStatus           HealthStatus      `json:"lastHealthStatus"`
	LastHealthCheckAt          *time.Time        `json:"lastHealthCheckAt,omitempty"`
	Environments               map[string]string `json:"environments,omitempty"`
	Metadata                   map[string]string `json:"metadata,omitempty"`
	CreatedBy                  string            `json:"createdBy,omitempty"`
	CreatedAt                  time.Time         `json:"createdAt"`
	UpdatedAt                  time.Time         `json:"updatedAt"`
}

// PortAllocation binds one port number to a service within
// (team, environment). No two allocations in a team may share
// (environment, port).
type PortAllocation struct {
	ID            string    `json:"id"`
	TeamID        string    `json:"teamId"`
	ServiceID     string    `json:"serviceId"`
	Environment   string    `json:"environment"`
	Type          PortType  `json:"portType"`
	Port          int       `json:"port"`
	Protocol      string    `json:"protocol"`
	Description   string    `json:"description,omitempty"`
	AutoAllocated bool      `json:"autoAllocated"`
	AllocatedBy   string    `json:"allocatedBy,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// PortRange is the inclusive [Start, End] search space for auto-allocation
// of one port type in one environment. (team, type, environment) unique.
type PortRange struct {
	ID          string    `json:"id"`
	TeamID      string    `json:"teamId"`
	Type        PortType  `json:"portType"`
	Environment string    `json:"environment"`
	Start       int       `json:"rangeStart"`
	End         int       `json:"rangeEnd"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ServiceDependency is a directed edge "source depends on target".
// Both endpoints belong to the same team and the team graph stays acyclic.
type ServiceDependency struct {
	ID           string         `json:"id"`
	TeamID       string         `json:"teamId"`
	SourceID     string         `json:"sourceServiceId"`
	TargetID     string         `json:"targetServiceId"`
	Type         DependencyType `json:"dependencyType"`
	Description  string         `json:"description,omitempty"`
	IsRequired   bool           `json:"isRequired"`
	EndpointHint string         `json:"endpointHint,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// APIRoute claims a normalized path prefix for a service, optionally
// behind a gateway service of the same team.
type APIRoute struct {
	ID          string    `json:"id"`
	TeamID      string    `json:"teamId"`
	ServiceID   string    `json:"serviceId"`
	GatewayID   string    `json:"gatewayId,omitempty"`
	PathPrefix  string    `json:"pathPrefix"`
	Methods     string    `json:"methods"`
	Environment string    `json:"environment"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// InfraResource is an external resource tracked in the ledger. A resource
// with no owning service is orphaned, not deleted.
type InfraResource struct {
	ID          string            `json:"id"`
	TeamID      string            `json:"teamId"`
	ServiceID   string            `json:"serviceId,omitempty"`
	Type        ResourceType      `json:"resourceType"`
	Name        string            `json:"name"`
	Environment string            `json:"environment"`
	Region      string            `json:"region,omitempty"`
	Locator     string            `json:"locator,omitempty"`
	Config      map[string]string `json:"config,omitempty"`
	CreatedBy   string            `json:"createdBy,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// EnvConfig is one configuration row for (service, environment, key).
type EnvConfig struct {
	ID          string       `json:"id"`
	TeamID      string       `json:"teamId"`
	ServiceID   string       `json:"serviceId"`
	Environment string       `json:"environment"`
	Key         string       `json:"key"`
	Value       string       `json:"value"`
	Source      ConfigSource `json:"source"`
	Description string       `json:"description,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// Solution is a named ordered grouping of services forming an application
// or platform. Membership is held in SolutionMember rows.
type Solution struct {
	ID          string           `json:"id"`
	TeamID      string           `json:"teamId"`
	Slug        string           `json:"slug"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Category    SolutionCategory `json:"category"`
	Status      SolutionStatus   `json:"status"`
	Icon        string           `json:"icon,omitempty"`
	Color       string           `json:"color,omitempty"`
	CreatedBy   string           `json:"createdBy,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// SolutionMember ties one service into a solution with a role and a
// display position. (solution, service) unique.
type SolutionMember struct {
	ID           string     `json:"id"`
	SolutionID   string     `json:"solutionId"`
	ServiceID    string     `json:"serviceId"`
	Role         MemberRole `json:"role"`
	DisplayOrder int        `json:"displayOrder"`
	Notes        string     `json:"notes,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// WorkstationProfile selects the services a developer machine runs, with a
// cached startup order projected through the dependency graph. At most one
// profile per team is the default.
type WorkstationProfile struct {
	ID           string    `json:"id"`
	TeamID       string    `json:"teamId"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	SolutionID   string    `json:"solutionId,omitempty"`
	ServiceIDs   []string  `json:"serviceIds"`
	StartupOrder []string  `json:"startupOrder"`
	IsDefault    bool      `json:"isDefault"`
	CreatedBy    string    `json:"createdBy,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ConfigTemplate is a generated configuration artifact. Version increases
// strictly on every regeneration of the same (service, type, environment).
type ConfigTemplate struct {
	ID            string       `json:"id"`
	TeamID        string       `json:"teamId"`
	ServiceID     string       `json:"serviceId"`
	Type          TemplateType `json:"templateType"`
	Environment   string       `json:"environment"`
	Content       string       `json:"content"`
	AutoGenerated bool         `json:"autoGenerated"`
	GeneratedFrom string       `json:"generatedFrom"`
	Version       int          `json:"version"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}
