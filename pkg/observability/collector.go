package observability

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kbenson/ride-harness/pkg/reporting"
)

// Collector polls a fixed set of controller-exposed queries on an
// interval and accumulates the results into per-metric series, for
// inclusion in the trial's result file (§11). Grounded on the
// teacher's monitoring/collector shape, retargeted from blockchain RPC
// metrics to flow/port counters.
type Collector struct {
	client   *Client
	log      zerolog.Logger
	interval time.Duration
	queries  map[string]string // series name -> PromQL query

	mu      sync.Mutex
	samples map[string][]reporting.MetricPoint
	stopCh  chan struct{}
	running bool
}

// CollectorConfig configures a Collector.
type CollectorConfig struct {
	Client   *Client
	Interval time.Duration
	Queries  map[string]string
	Logger   zerolog.Logger
}

// NewCollector creates a metrics collector bound to the given queries.
func NewCollector(cfg CollectorConfig) *Collector {
	if cfg.Interval == 0 {
		cfg.Interval = 15 * time.Second
	}
	return &Collector{
		client:   cfg.Client,
		log:      cfg.Logger,
		interval: cfg.Interval,
		queries:  cfg.Queries,
		samples:  make(map[string][]reporting.MetricPoint),
		stopCh:   make(chan struct{}),
	}
}

// Start begins polling in the background until Stop or ctx.Done.
func (c *Collector) Start(ctx context.Context) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.mu.Unlock()

	go c.loop(ctx)
}

// Stop halts polling.
func (c *Collector) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	close(c.stopCh)
	c.running = false
}

func (c *Collector) loop(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.poll(ctx)
		}
	}
}

func (c *Collector) poll(ctx context.Context) {
	for name, query := range c.queries {
		results, err := c.client.QueryLatest(ctx, query)
		if err != nil {
			c.log.Warn().Err(err).Str("series", name).Msg("metrics poll failed")
			continue
		}

		c.mu.Lock()
		for _, r := range results {
			c.samples[name] = append(c.samples[name], reporting.MetricPoint{
				Timestamp: r.Timestamp,
				Value:     r.Value,
			})
		}
		c.mu.Unlock()
	}
}

// Series returns the accumulated samples, keyed by series name, ready
// for attachment to a reporting.TrialReport's Metrics field.
func (c *Collector) Series() map[string][]reporting.MetricPoint {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string][]reporting.MetricPoint, len(c.samples))
	for name, points := range c.samples {
		cp := make([]reporting.MetricPoint, len(points))
		copy(cp, points)
		out[name] = cp
	}
	return out
}
