package types

import "fmt"

// ServiceType classifies what kind of unit a service is.
type ServiceType string

const (
	ServiceTypeSpringBoot    ServiceType = "SPRING_BOOT"
	ServiceTypeExpress       ServiceType = "EXPRESS"
	ServiceTypeFastAPI       ServiceType = "FASTAPI"
	ServiceTypeDotnetAPI     ServiceType = "DOTNET_API"
	ServiceTypeGoAPI         ServiceType = "GO_API"
	ServiceTypeWorker        ServiceType = "WORKER"
	ServiceTypeMCPServer     ServiceType = "MCP_SERVER"
	ServiceTypeReactSPA      ServiceType = "REACT_SPA"
	ServiceTypeNextJS        ServiceType = "NEXTJS"
	ServiceTypeFlutterWeb    ServiceType = "FLUTTER_WEB"
	ServiceTypeAPIGateway    ServiceType = "API_GATEWAY"
	ServiceTypeDatabase      ServiceType = "DATABASE"
	ServiceTypeCache         ServiceType = "CACHE"
	ServiceTypeMessageBroker ServiceType = "MESSAGE_BROKER"
	ServiceTypeLibrary       ServiceType = "LIBRARY"
	ServiceTypeCLITool       ServiceType = "CLI_TOOL"
	ServiceTypeOther         ServiceType = "OTHER"
)

// AllServiceTypes enumerates every recognized service type.
var AllServiceTypes = []ServiceType{
	ServiceTypeSpringBoot, ServiceTypeExpress, ServiceTypeFastAPI,
	ServiceTypeDotnetAPI, ServiceTypeGoAPI, ServiceTypeWorker,
	ServiceTypeMCPServer, ServiceTypeReactSPA, ServiceTypeNextJS,
	ServiceTypeFlutterWeb, ServiceTypeAPIGateway, ServiceTypeDatabase,
	ServiceTypeCache, ServiceTypeMessageBroker, ServiceTypeLibrary,
	ServiceTypeCLITool, ServiceTypeOther,
}

// ParseServiceType maps a wire name onto a ServiceType.
func ParseServiceType(s string) (ServiceType, error) {
	for _, t := range AllServiceTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("invalid service type: %s", s)
}

// ServiceStatus is the lifecycle state of a service.
type ServiceStatus string

const (
	ServiceStatusActive     ServiceStatus = "ACTIVE"
	ServiceStatusInactive   ServiceStatus = "INACTIVE"
	ServiceStatusDeprecated ServiceStatus = "DEPRECATED"
	ServiceStatusArchived   ServiceStatus = "ARCHIVED"
)

// AllServiceStatuses enumerates the lifecycle states.
var AllServiceStatuses = []ServiceStatus{
	ServiceStatusActive, ServiceStatusInactive,
	ServiceStatusDeprecated, ServiceStatusArchived,
}

// ParseServiceStatus maps a wire name onto a ServiceStatus.
func ParseServiceStatus(s string) (ServiceStatus, error) {
	for _, st := range AllServiceStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("invalid service status: %s", s)
}

// HealthStatus is the last observed health of a service.
type HealthStatus string

const (
	HealthUp       HealthStatus = "UP"
	HealthDown     HealthStatus = "DOWN"
	HealthDegraded HealthStatus = "DEGRADED"
	HealthUnknown  HealthStatus = "UNKNOWN"
)

// PortType partitions the port number space by purpose. Each type gets its
// own allocation range per (team, environment).
type PortType string

const (
	PortTypeHTTPAPI       PortType = "HTTP_API"
	PortTypeDatabase      PortType = "DATABASE"
	PortTypeRedis         PortType = "REDIS"
	PortTypeKafka         PortType = "KAFKA"
	PortTypeKafkaInternal PortType = "KAFKA_INTERNAL"
	PortTypeZookeeper     PortType = "ZOOKEEPER"
	PortTypeGRPC          PortType = "GRPC"
	PortTypeWebsocket     PortType = "WEBSOCKET"
	PortTypeDebug         PortType = "DEBUG"
	PortTypeActuator      PortType = "ACTUATOR"
	PortTypeFrontendDev   PortType = "FRONTEND_DEV"
	PortTypeCustom        PortType = "CUSTOM"
)

// AllPortTypes enumerates the twelve port types in preset order.
var AllPortTypes = []PortType{
	PortTypeHTTPAPI, PortTypeDatabase, PortTypeRedis, PortTypeKafka,
	PortTypeKafkaInternal, PortTypeZookeeper, PortTypeGRPC,
	PortTypeWebsocket, PortTypeDebug, PortTypeActuator,
	PortTypeFrontendDev, PortTypeCustom,
}

// ParsePortType maps a wire name onto a PortType.
func ParsePortType(s string) (PortType, error) {
	for _, t := range AllPortTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("invalid port type: %s", s)
}

// DependencyType classifies how a source service consumes its target.
type DependencyType string

const (
	DependencyHTTPREST       DependencyType = "HTTP_REST"
	DependencyGRPC           DependencyType = "GRPC"
	DependencyWebsocket      DependencyType = "WEBSOCKET"
	DependencyGraphQL        DependencyType = "GRAPHQL"
	DependencyKafkaTopic     DependencyType = "KAFKA_TOPIC"
	DependencyRabbitMQ       DependencyType = "RABBITMQ"
	DependencyDatabaseShared DependencyType = "DATABASE_SHARED"
	DependencyRedisCache     DependencyType = "REDIS_CACHE"
	DependencyS3Storage      DependencyType = "S3_STORAGE"
	DependencyOther          DependencyType = "OTHER"
)

// AllDependencyTypes enumerates the recognized dependency types.
var AllDependencyTypes = []DependencyType{
	DependencyHTTPREST, DependencyGRPC, DependencyWebsocket,
	DependencyGraphQL, DependencyKafkaTopic, DependencyRabbitMQ,
	DependencyDatabaseShared, DependencyRedisCache, DependencyS3Storage,
	DependencyOther,
}

// ParseDependencyType maps a wire name onto a DependencyType.
func ParseDependencyType(s string) (DependencyType, error) {
	for _, t := range AllDependencyTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("invalid dependency type: %s", s)
}

// ResourceType classifies ledger entries for external infrastructure.
type ResourceType string

const (
	ResourceDockerVolume     ResourceType = "DOCKER_VOLUME"
	ResourceDockerNetwork    ResourceType = "DOCKER_NETWORK"
	ResourceS3Bucket         ResourceType = "S3_BUCKET"
	ResourceDatabaseInstance ResourceType = "DATABASE_INSTANCE"
	ResourceRedisInstance    ResourceType = "REDIS_INSTANCE"
	ResourceKafkaCluster     ResourceType = "KAFKA_CLUSTER"
	ResourceCDN              ResourceType = "CDN"
	ResourceLoadBalancer     ResourceType = "LOAD_BALANCER"
	ResourceDNSRecord        ResourceType = "DNS_RECORD"
	ResourceCertificate      ResourceType = "CERTIFICATE"
	ResourceOther            ResourceType = "OTHER"
)

// AllResourceTypes enumerates the recognized resource types.
var AllResourceTypes = []ResourceType{
	ResourceDockerVolume, ResourceDockerNetwork, ResourceS3Bucket,
	ResourceDatabaseInstance, ResourceRedisInstance, ResourceKafkaCluster,
	ResourceCDN, ResourceLoadBalancer, ResourceDNSRecord,
	ResourceCertificate, ResourceOther,
}

// ParseResourceType maps a wire name onto a ResourceType.
func ParseResourceType(s string) (ResourceType, error) {
	for _, t := range AllResourceTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("invalid resource type: %s", s)
}

// ConfigSource records where an environment-config value came from.
type ConfigSource string

const (
	ConfigSourceManual        ConfigSource = "MANUAL"
	ConfigSourceAutoGenerated ConfigSource = "AUTO_GENERATED"
	ConfigSourceInherited     ConfigSource = "INHERITED"
)

// ParseConfigSource maps a wire name onto a ConfigSource.
func ParseConfigSource(s string) (ConfigSource, error) {
	switch ConfigSource(s) {
	case ConfigSourceManual, ConfigSourceAutoGenerated, ConfigSourceInherited:
		return ConfigSource(s), nil
	}
	return "", fmt.Errorf("invalid config source: %s", s)
}

// MemberRole is the role a service plays within a solution.
type MemberRole string

const (
	MemberRoleCore           MemberRole = "CORE"
	MemberRoleSupporting     MemberRole = "SUPPORTING"
	MemberRoleInfrastructure MemberRole = "INFRASTRUCTURE"
	MemberRoleOptional       MemberRole = "OPTIONAL"
)

// ParseMemberRole maps a wire name onto a MemberRole.
func ParseMemberRole(s string) (MemberRole, error) {
	switch MemberRole(s) {
	case MemberRoleCore, MemberRoleSupporting, MemberRoleInfrastructure, MemberRoleOptional:
		return MemberRole(s), nil
	}
	return "", fmt.Errorf("invalid member role: %s", s)
}

// TemplateType identifies which artifact a config template holds.
type TemplateType string

const (
	TemplateDockerCompose    TemplateType = "DOCKER_COMPOSE"
	TemplateApplicationYML   TemplateType = "APPLICATION_YML"
	TemplateClaudeCodeHeader TemplateType = "CLAUDE_CODE_HEADER"
	TemplateEnvFile          TemplateType = "ENV_FILE"
)

// AllTemplateTypes enumerates the generated artifact types.
var AllTemplateTypes = []TemplateType{
	TemplateDockerCompose, TemplateApplicationYML,
	TemplateClaudeCodeHeader, TemplateEnvFile,
}

// ParseTemplateType maps a wire name onto a TemplateType.
func ParseTemplateType(s string) (TemplateType, error) {
	for _, t := range AllTemplateTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("invalid template type: %s", s)
}

// SolutionCategory is a coarse bucket for solutions.
type SolutionCategory string

const (
	SolutionCategoryPlatform       SolutionCategory = "PLATFORM"
	SolutionCategoryApplication    SolutionCategory = "APPLICATION"
	SolutionCategoryInternalTool   SolutionCategory = "INTERNAL_TOOL"
	SolutionCategoryInfrastructure SolutionCategory = "INFRASTRUCTURE"
	SolutionCategoryDemo           SolutionCategory = "DEMO"
	SolutionCategoryOther          SolutionCategory = "OTHER"
)

// ParseSolutionCategory maps a wire name onto a SolutionCategory.
func ParseSolutionCategory(s string) (SolutionCategory, error) {
	switch SolutionCategory(s) {
	case SolutionCategoryPlatform, SolutionCategoryApplication,
		SolutionCategoryInternalTool, SolutionCategoryInfrastructure,
		SolutionCategoryDemo, SolutionCategoryOther:
		return SolutionCategory(s), nil
	}
	return "", fmt.Errorf("invalid solution category: %s", s)
}

// SolutionStatus is the lifecycle state of a solution.
type SolutionStatus string

const (
	SolutionStatusActive   SolutionStatus = "ACTIVE"
	SolutionStatusInactive SolutionStatus = "INACTIVE"
	SolutionStatusArchived SolutionStatus = "ARCHIVED"
)

// ParseSolutionStatus maps a wire name onto a SolutionStatus.
func ParseSolutionStatus(s string) (SolutionStatus, error) {
	switch SolutionStatus(s) {
	case SolutionStatusActive, SolutionStatusInactive, SolutionStatusArchived:
		return SolutionStatus(s), nil
	}
	return "", fmt.Errorf("invalid solution status: %s", s)
}

// Protocol values for port allocations.
const (
	ProtocolTCP = "TCP"
	ProtocolUDP = "UDP"
)
