package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/codeops-dev/registry/pkg/auth"
	"github.com/codeops-dev/registry/pkg/config"
	"github.com/codeops-dev/registry/pkg/configgen"
	"github.com/codeops-dev/registry/pkg/envconfig"
	"github.com/codeops-dev/registry/pkg/events"
	"github.com/codeops-dev/registry/pkg/graph"
	"github.com/codeops-dev/registry/pkg/health"
	"github.com/codeops-dev/registry/pkg/infra"
	"github.com/codeops-dev/registry/pkg/log"
	"github.com/codeops-dev/registry/pkg/metrics"
	"github.com/codeops-dev/registry/pkg/ports"
	"github.com/codeops-dev/registry/pkg/registry"
	"github.com/codeops-dev/registry/pkg/routes"
	"github.com/codeops-dev/registry/pkg/solutions"
	"github.com/codeops-dev/registry/pkg/storage"
	"github.com/codeops-dev/registry/pkg/topology"
	"github.com/codeops-dev/registry/pkg/workstations"
)

// Server wires the engines behind the HTTP API.
type Server struct {
	cfg      *config.Config
	store    *storage.Store
	verifier auth.Verifier
	broker   *events.Broker

	services     *registry.Engine
	dependencies *graph.Engine
	ports        *ports.Engine
	routes       *routes.Engine
	solutions    *solutions.Engine
	workstations *workstations.Engine
	infra        *infra.Engine
	envConfigs   *envconfig.Engine
	prober       *health.Prober
	generator    *configgen.Generator
	topology     *topology.Projector

	validate *validator.Validate
	logger   zerolog.Logger
	http     *http.Server
	auditSub events.Subscriber
}

// NewServer builds the server and every engine over one store.
func NewServer(cfg *config.Config, store *storage.Store, verifier auth.Verifier, broker *events.Broker) *Server {
	portEngine := ports.NewEngine(store, broker, cfg.Ports.DefaultRanges)
	s := &Server{
		cfg:          cfg,
		store:        store,
		verifier:     verifier,
		broker:       broker,
		services:     registry.NewEngine(store, broker, portEngine, cfg.Limits),
		dependencies: graph.NewEngine(store, broker, cfg.Limits.MaxDependenciesPerService),
		ports:        portEngine,
		routes:       routes.NewEngine(store, broker),
		solutions:    solutions.NewEngine(store, broker, cfg.Limits),
		workstations: workstations.NewEngine(store, broker, cfg.Limits),
		infra:        infra.NewEngine(store, broker),
		envConfigs:   envconfig.NewEngine(store),
		prober:       health.NewProber(store, broker, cfg.Health.ProbeTimeout, cfg.Health.ProbeConcurrency),
		generator:    configgen.NewGenerator(store, broker),
		topology:     topology.NewProjector(store),
		validate:     validator.New(),
		logger:       log.WithComponent("api"),
	}
	return s
}

// Router assembles the full route tree.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(s.recordMetrics)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", metrics.HealthHandler())
	r.Get("/readyz", metrics.ReadyHandler())
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1/registry", func(r chi.Router) {
		r.Use(s.authenticate)

		r.Route("/teams/{teamID}", func(r chi.Router) {
			r.Post("/services", s.handleCreateService)
			r.Get("/services", s.handleListServices)

			r.Get("/health", s.handleTeamHealth)
			r.Get("/health/unhealthy", s.handleUnhealthy)
			r.Get("/health/never-checked", s.handleNeverChecked)

			r.Get("/dependencies/graph", s.handleDependencyGraph)
			r.Get("/dependencies/startup-order", s.handleStartupOrder)
			r.Get("/dependencies/cycles", s.handleDetectCycles)

			r.Get("/ports", s.handleTeamPorts)
			r.Get("/ports/availability", s.handlePortAvailability)
			r.Get("/ports/conflicts", s.handlePortConflicts)
			r.Get("/ports/ranges", s.handleListRanges)
			r.Post("/ports/ranges", s.handleCreateRange)
			r.Post("/ports/ranges/seed", s.handleSeedRanges)

			r.Get("/routes", s.handleListRoutes)
			r.Get("/routes/check", s.handleCheckRoute)

			r.Post("/solutions", s.handleCreateSolution)
			r.Get("/solutions", s.handleListSolutions)

			r.Post("/workstations", s.handleCreateProfile)
			r.Get("/workstations", s.handleListProfiles)
			r.Get("/workstations/default", s.handleDefaultProfile)
			r.Post("/workstations/from-solution", s.handleProfileFromSolution)

			r.Post("/infra-resources", s.handleCreateResource)
			r.Get("/infra-resources", s.handleListResources)
			r.Get("/infra-resources/orphaned", s.handleOrphanedResources)

			r.Get("/topology", s.handleTeamTopology)
			r.Get("/topology/stats", s.handleTopologyStats)
		})

		r.Route("/services/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetService)
			r.Put("/", s.handleUpdateService)
			r.Delete("/", s.handleDeleteService)
			r.Patch("/status", s.handleSetStatus)
			r.Post("/clone", s.handleCloneService)
			r.Get("/identity", s.handleServiceIdentity)

			r.Post("/health", s.handleProbeService)
			r.Get("/health", s.handleCachedHealth)

			r.Get("/dependencies", s.handleServiceDependencies)
			r.Get("/dependencies/impact", s.handleImpact)

			r.Post("/ports/allocate", s.handleAutoAllocate)
			r.Post("/ports/allocate-all", s.handleAutoAllocateAll)
			r.Post("/ports", s.handleManualAllocate)
			r.Get("/ports", s.handleServicePorts)

			r.Post("/env-configs", s.handleUpsertEnvConfig)
			r.Get("/env-configs", s.handleListEnvConfigs)

			r.Post("/config/generate", s.handleGenerate)
			r.Post("/config/generate-all", s.handleGenerateAll)
			r.Get("/config", s.handleGetTemplate)
			r.Get("/config/all", s.handleListTemplates)

			r.Get("/topology/neighborhood", s.handleNeighborhood)
		})

		r.Post("/dependencies", s.handleCreateDependency)
		r.Delete("/dependencies/{id}", s.handleRemoveDependency)

		r.Delete("/ports/{id}", s.handleReleasePort)
		r.Put("/ports/ranges/{id}", s.handleUpdateRange)

		r.Post("/routes", s.handleCreateRoute)
		r.Delete("/routes/{id}", s.handleDeleteRoute)

		r.Route("/solutions/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSolution)
			r.Put("/", s.handleUpdateSolution)
			r.Delete("/", s.handleDeleteSolution)
			r.Post("/members", s.handleAddMember)
			r.Put("/members/order", s.handleReorderMembers)
			r.Put("/members/{serviceID}", s.handleUpdateMember)
			r.Delete("/members/{serviceID}", s.handleRemoveMember)
			r.Get("/health", s.handleSolutionHealth)
			r.Post("/config/docker-compose", s.handleSolutionCompose)
			r.Get("/topology", s.handleSolutionTopology)
		})

		r.Route("/workstations/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetProfile)
			r.Put("/", s.handleUpdateProfile)
			r.Delete("/", s.handleDeleteProfile)
			r.Post("/default", s.handleSetDefaultProfile)
			r.Post("/refresh", s.handleRefreshProfile)
		})

		r.Route("/infra-resources/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetResource)
			r.Put("/", s.handleUpdateResource)
			r.Delete("/", s.handleDeleteResource)
			r.Post("/orphan", s.handleOrphanResource)
			r.Post("/reassign", s.handleReassignResource)
		})

		r.Delete("/env-configs/{id}", s.handleDeleteEnvConfig)

		r.Get("/config/{id}", s.handleGetTemplateByID)
		r.Delete("/config/{id}", s.handleDeleteTemplate)
	})

	return r
}

// Start begins serving and blocks until the listener fails or is shut
// down. The audit subscriber drains broker events into the log.
func (s *Server) Start() error {
	if s.broker != nil {
		s.auditSub = s.broker.Subscribe()
		go s.auditLoop()
	}

	if err := s.store.View(func(tx *storage.Tx) error { return nil }); err != nil {
		metrics.RegisterComponent("storage", false, err.Error())
	} else {
		metrics.RegisterComponent("storage", true, "open")
	}
	metrics.RegisterComponent("api", true, "listening on "+s.cfg.Server.Addr)

	s.http = &http.Server{
		Addr:         s.cfg.Server.Addr,
		Handler:      s.Router(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	s.logger.Info().Str("addr", s.cfg.Server.Addr).Msg("http api listening")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and detaches the audit subscriber.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.broker != nil && s.auditSub != nil {
		s.broker.Unsubscribe(s.auditSub)
	}
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// auditLoop logs every broker event and counts it.
func (s *Server) auditLoop() {
	for ev := range s.auditSub {
		s.logger.Info().
			Str("event", string(ev.Type)).
			Str("team", ev.TeamID).
			Str("entity", ev.EntityID).
			Str("message", ev.Message).
			Msg("registry event")
		metrics.EventsPublished.WithLabelValues(string(ev.Type)).Inc()
	}
}

