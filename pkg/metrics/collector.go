package metrics

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/codeops-dev/registry/pkg/log"
	"github.com/codeops-dev/registry/pkg/storage"
	"github.com/codeops-dev/registry/pkg/types"
)

// Collector refreshes the entity gauges from the store on a fixed
// interval.
type Collector struct {
	store  *storage.Store
	logger zerolog.Logger
	stopCh chan struct{}
}

// NewCollector builds a collector over the store. Nothing runs until
// Start.
func NewCollector(store *storage.Store) *Collector {
	return &Collector{
		store:  store,
		logger: log.WithComponent("metrics"),
		stopCh: make(chan struct{}),
	}
}

// Start launches the background refresh loop. The first collection
// happens immediately so the gauges are populated before the first tick.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop ends the refresh loop.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	type svcKey struct {
		team   string
		status types.ServiceStatus
	}
	type allocKey struct {
		team string
		env  string
	}

	services := make(map[svcKey]int)
	edges := make(map[string]int)
	allocs := make(map[allocKey]int)

	err := c.store.View(func(tx *storage.Tx) error {
		if err := tx.ForEachService(func(svc *types.Service) error {
			services[svcKey{svc.TeamID, svc.Status}]++
			return nil
		}); err != nil {
			return err
		}
		if err := tx.ForEachDependency(func(d *types.ServiceDependency) error {
			edges[d.TeamID]++
			return nil
		}); err != nil {
			return err
		}
		return tx.ForEachAllocation(func(a *types.PortAllocation) error {
			allocs[allocKey{a.TeamID, a.Environment}]++
			return nil
		})
	})
	if err != nil {
		c.logger.Warn().Err(err).Msg("gauge refresh failed")
		return
	}

	ServicesTotal.Reset()
	for k, n := range services {
		ServicesTotal.WithLabelValues(k.team, string(k.status)).Set(float64(n))
	}
	DependenciesTotal.Reset()
	for team, n := range edges {
		DependenciesTotal.WithLabelValues(team).Set(float64(n))
	}
	PortAllocationsTotal.Reset()
	for k, n := range allocs {
		PortAllocationsTotal.WithLabelValues(k.team, k.env).Set(float64(n))
	}
}
