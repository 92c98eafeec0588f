package collector

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/krwave/ratefeed/internal/rates"
	"github.com/krwave/ratefeed/pkg/metrics"
	"github.com/krwave/ratefeed/pkg/set"
)

// Collector invokes every active source concurrently and gathers one outcome
// per source. A source's timeout or failure never cancels its siblings.
type Collector struct {
	registry *Registry
	universe set.Set[string]
	logger   *zap.Logger
}

func NewCollector(registry *Registry, universe set.Set[string], logger *zap.Logger) *Collector {
	return &Collector{
		registry: registry,
		universe: universe,
		logger:   logger,
	}
}

// CollectAll fans out across all active sources in parallel. The result holds
// exactly one CollectionOutcome per active source.
func (c *Collector) CollectAll(ctx context.Context) []rates.CollectionOutcome {
	active := c.registry.Active()
	c.logger.Info("starting data collection", zap.Int("active_sources", len(active)))

	outcomes := make([]rates.CollectionOutcome, len(active))

	var wg sync.WaitGroup
	for i, src := range active {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			outcomes[i] = c.collectFromSource(ctx, src)
		}(i, src)
	}
	wg.Wait()

	succeeded := 0
	for _, outcome := range outcomes {
		if outcome.Succeeded {
			succeeded++
		}
	}
	c.logger.Info("data collection completed",
		zap.Int("total_sources", len(outcomes)),
		zap.Int("successful", succeeded),
		zap.Int("failed", len(outcomes)-succeeded))

	return outcomes
}

// collectFromSource runs one bounded fetch and converts any failure into a
// failed outcome.
func (c *Collector) collectFromSource(ctx context.Context, src Source) rates.CollectionOutcome {
	started := time.Now()

	fetchCtx, cancel := context.WithTimeout(ctx, src.Timeout())
	defer cancel()

	c.logger.Debug("collecting from source",
		zap.String("source", src.ID()),
		zap.String("source_name", src.Name()))

	records, err := src.Fetch(fetchCtx, c.universe)
	duration := time.Since(started)
	metrics.CollectionDuration.WithLabelValues(src.ID()).Observe(duration.Seconds())

	if err != nil {
		metrics.CollectionsTotal.WithLabelValues(src.ID(), "failure").Inc()
		c.logger.Error("data collection failed",
			zap.String("source", src.ID()),
			zap.Duration("duration", duration),
			zap.Error(err))
		return rates.CollectionOutcome{
			SourceID:     src.ID(),
			Succeeded:    false,
			ErrorMessage: err.Error(),
			StartedAt:    started,
			Duration:     duration,
		}
	}

	metrics.CollectionsTotal.WithLabelValues(src.ID(), "success").Inc()
	c.logger.Info("data collection successful",
		zap.String("source", src.ID()),
		zap.Int("record_count", len(records)),
		zap.Duration("duration", duration))

	return rates.CollectionOutcome{
		SourceID:  src.ID(),
		Succeeded: true,
		Records:   records,
		StartedAt: started,
		Duration:  duration,
	}
}

// ProbeConnectivity checks each active source with a short fetch and reports
// reachability per source. Used for startup diagnostics only.
func (c *Collector) ProbeConnectivity(ctx context.Context) map[string]bool {
	results := make(map[string]bool, len(c.registry.All()))
	for _, src := range c.registry.All() {
		if !src.Active() {
			results[src.ID()] = false
			continue
		}
		probeCtx, cancel := context.WithTimeout(ctx, src.Timeout())
		_, err := src.Fetch(probeCtx, c.universe)
		cancel()
		if err != nil {
			c.logger.Warn("connectivity probe failed",
				zap.String("source", src.ID()),
				zap.Error(err))
		}
		results[src.ID()] = err == nil
	}
	return results
}
