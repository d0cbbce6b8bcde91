package health

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/codeops-dev/registry/pkg/events"
	"github.com/codeops-dev/registry/pkg/log"
	"github.com/codeops-dev/registry/pkg/metrics"
	"github.com/codeops-dev/registry/pkg/storage"
	"github.com/codeops-dev/registry/pkg/types"
)

// NoURLMessage is returned for services without a configured check URL.
const NoURLMessage = "No health check URL configured"

// Result is the outcome of one probe.
type Result struct {
	ServiceID string             `json:"serviceId"`
	Slug      string             `json:"slug"`
	Status    types.HealthStatus `json:"status"`
	Message   string             `json:"message,omitempty"`
	LatencyMS int64              `json:"latencyMs"`
	CheckedAt time.Time          `json:"checkedAt"`
}

// Rollup aggregates probe results for a team or a solution.
type Rollup struct {
	Status    types.HealthStatus `json:"status"`
	Results   []Result           `json:"results"`
	CheckedAt time.Time          `json:"checkedAt"`
}

// Prober issues outbound health probes and caches results on the
// service records.
type Prober struct {
	store       *storage.Store
	broker      *events.Broker
	client      *http.Client
	timeout     time.Duration
	concurrency int
	logger      zerolog.Logger
}

// NewProber builds the prober. timeout bounds each probe; concurrency
// bounds parallel probes during team and solution sweeps.
func NewProber(store *storage.Store, broker *events.Broker, timeout time.Duration, concurrency int) *Prober {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if concurrency < 1 {
		concurrency = 8
	}
	return &Prober{
		store:       store,
		broker:      broker,
		client:      &http.Client{Timeout: timeout},
		timeout:     timeout,
		concurrency: concurrency,
		logger:      log.WithComponent("health"),
	}
}

// Check probes one service now. A service without a check URL yields
// UNKNOWN and persists nothing; every real probe outcome is persisted
// onto the service record.
func (p *Prober) Check(ctx context.Context, serviceID string) (*Result, error) {
	var svc *types.Service
	err := p.store.View(func(tx *storage.Tx) error {
		var err error
		svc, err = tx.GetService(serviceID)
		return err
	})
	if err != nil {
		return nil, err
	}
	result, err := p.probe(ctx, svc)
	if err != nil {
		return nil, err
	}
	if svc.HealthCheckURL != "" {
		if err := p.persist(result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// probe runs the outbound GET and classifies the outcome. It never
// touches the store. Cancellation of ctx surfaces as an error, not a
// DOWN result, so an aborted probe records nothing; only the per-probe
// timeout counts as DOWN.
func (p *Prober) probe(ctx context.Context, svc *types.Service) (*Result, error) {
	result := &Result{
		ServiceID: svc.ID,
		Slug:      svc.Slug,
		CheckedAt: time.Now().UTC(),
	}
	if svc.HealthCheckURL == "" {
		result.Status = types.HealthUnknown
		result.Message = NoURLMessage
		return result, nil
	}

	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, svc.HealthCheckURL, nil)
	if err != nil {
		result.Status = types.HealthDown
		result.Message = err.Error()
		return result, nil
	}
	resp, err := p.client.Do(req)
	result.LatencyMS = time.Since(start).Milliseconds()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		result.Status = types.HealthDown
		result.Message = err.Error()
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			result.Status = types.HealthUp
		} else {
			result.Status = types.HealthDegraded
			result.Message = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
	}

	metrics.HealthProbesTotal.WithLabelValues(string(result.Status)).Inc()
	metrics.HealthProbeDuration.Observe(time.Since(start).Seconds())
	return result, nil
}

func (p *Prober) persist(result *Result) error {
	err := p.store.Update(func(tx *storage.Tx) error {
		svc, err := tx.GetService(result.ServiceID)
		if err != nil {
			return err
		}
		svc.LastHealthStatus = result.Status
		checkedAt := result.CheckedAt
		svc.LastHealthCheckAt = &checkedAt
		svc.UpdatedAt = time.Now().UTC()
		return tx.PutService(svc)
	})
	if err != nil {
		return err
	}
	if p.broker != nil {
		p.broker.Publish(&events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventHealthChecked,
			EntityID:  result.ServiceID,
			Timestamp: time.Now().UTC(),
			Message:   string(result.Status),
		})
	}
	return nil
}

// CheckTeam probes every ACTIVE service of the team in parallel and
// rolls the statuses up. Cancelling ctx aborts in-flight probes.
func (p *Prober) CheckTeam(ctx context.Context, teamID string) (*Rollup, error) {
	var services []*types.Service
	err := p.store.View(func(tx *storage.Tx) error {
		all, err := tx.ServicesByTeam(teamID)
		if err != nil {
			return err
		}
		for _, svc := range all {
			if svc.Status == types.ServiceStatusActive {
				services = append(services, svc)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p.sweep(ctx, services)
}

// CheckSolution probes every member of the solution in parallel.
func (p *Prober) CheckSolution(ctx context.Context, solutionID string) (*Rollup, error) {
	var services []*types.Service
	err := p.store.View(func(tx *storage.Tx) error {
		if _, err := tx.GetSolution(solutionID); err != nil {
			return err
		}
		members, err := tx.MembersBySolution(solutionID)
		if err != nil {
			return err
		}
		for _, m := range members {
			svc, err := tx.GetService(m.ServiceID)
			if err != nil {
				continue
			}
			services = append(services, svc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p.sweep(ctx, services)
}

// sweep probes the services concurrently, persists surviving results,
// and rolls up. Probe failures are statuses, not errors; the only error
// paths are ctx cancellation and store failures. A cancelled sweep
// persists nothing, including results gathered before the cancellation.
func (p *Prober) sweep(ctx context.Context, services []*types.Service) (*Rollup, error) {
	results := make([]*Result, len(services))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, svc := range services {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result, err := p.probe(gctx, svc)
			if err != nil {
				return err
			}
			mu.Lock()
			results[i] = result
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rollup := &Rollup{
		Status:    types.HealthUnknown,
		Results:   []Result{},
		CheckedAt: time.Now().UTC(),
	}
	for i, result := range results {
		if result == nil {
			continue
		}
		if services[i].HealthCheckURL != "" {
			if err := p.persist(result); err != nil {
				return nil, err
			}
		}
		rollup.Results = append(rollup.Results, *result)
	}
	sort.Slice(rollup.Results, func(i, j int) bool { return rollup.Results[i].Slug < rollup.Results[j].Slug })
	rollup.Status = rollupStatus(rollup.Results)
	return rollup, nil
}

// rollupStatus applies the precedence DOWN > DEGRADED > UP > UNKNOWN.
func rollupStatus(results []Result) types.HealthStatus {
	status := types.HealthUnknown
	anyUp := false
	anyDegraded := false
	for _, r := range results {
		switch r.Status {
		case types.HealthDown:
			return types.HealthDown
		case types.HealthDegraded:
			anyDegraded = true
		case types.HealthUp:
			anyUp = true
		}
	}
	if anyDegraded {
		return types.HealthDegraded
	}
	if anyUp {
		return types.HealthUp
	}
	return status
}

// Cached returns the persisted last status without probing.
func (p *Prober) Cached(serviceID string) (*Result, error) {
	var result *Result
	err := p.store.View(func(tx *storage.Tx) error {
		svc, err := tx.GetService(serviceID)
		if err != nil {
			return err
		}
		result = &Result{
			ServiceID: svc.ID,
			Slug:      svc.Slug,
			Status:    svc.LastHealthStatus,
		}
		if result.Status == "" {
			result.Status = types.HealthUnknown
		}
		if svc.LastHealthCheckAt != nil {
			result.CheckedAt = *svc.LastHealthCheckAt
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Unhealthy returns team services whose cached status is DOWN or
// DEGRADED.
func (p *Prober) Unhealthy(teamID string) ([]*types.Service, error) {
	return p.filterTeam(teamID, func(svc *types.Service) bool {
		return svc.LastHealthStatus == types.HealthDown || svc.LastHealthStatus == types.HealthDegraded
	})
}

// NeverChecked returns team services that have never been probed.
func (p *Prober) NeverChecked(teamID string) ([]*types.Service, error) {
	return p.filterTeam(teamID, func(svc *types.Service) bool {
		return svc.LastHealthCheckAt == nil
	})
}

func (p *Prober) filterTeam(teamID string, keep func(*types.Service) bool) ([]*types.Service, error) {
	matched := []*types.Service{}
	err := p.store.View(func(tx *storage.Tx) error {
		services, err := tx.ServicesByTeam(teamID)
		if err != nil {
			return err
		}
		for _, svc := range services {
			if keep(svc) {
				matched = append(matched, svc)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Slug < matched[j].Slug })
	return matched, nil
}
