// Package fault implements the Fault Scheduler (FS): it executes the
// time-ordered data-path change schedule and interleaves the "quake"
// link/node failure set, recording a wall-clock timeline, per §4.7.
package fault

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/kbenson/ride-harness/pkg/emulation"
	"github.com/kbenson/ride-harness/pkg/topology"
)

// Change records one executed data-path toggle: which gateway, whether
// it went up or down, and the wall-clock time it was applied.
type Change struct {
	Gateway string
	Up      bool
	At      time.Time
}

// Timeline is the recorded schedule returned to the trial result (§6:
// `data_path_changes: [(gw_name, up|down, ts)]`).
type Timeline struct {
	QuakeStartTime time.Time
	Changes        []Change
}

// Scheduler executes the FS schedule construction of §4.7 against a
// running emulation.
type Scheduler struct {
	driver *emulation.Driver
	topo   *topology.Topology
	log    zerolog.Logger

	TimeBetweenSeismicEvents time.Duration
	ExperimentDuration       time.Duration
}

// New constructs a Scheduler.
func New(driver *emulation.Driver, topo *topology.Topology, tBetween, duration time.Duration, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		driver:                   driver,
		topo:                     topo,
		log:                      log.With().Str("component", "fault").Logger(),
		TimeBetweenSeismicEvents: tBetween,
		ExperimentDuration:       duration,
	}
}

// scheduledChange is an unexecuted entry of the change list built in
// step 2 of §4.7: a gateway, the direction to toggle it, and the delay
// (relative to the previous change) to sleep before applying it.
type scheduledChange struct {
	gateway string
	up      bool
	delay   time.Duration
}

// Run executes the full §4.7 schedule: builds the change list from the
// ordered data-path links, applies each change (sleeping its nominal
// delay, adjusted for elapsed overrun per the Observability note),
// triggers the quake immediately after change index 1 with no
// intervening yield, then sleeps the remainder of ExperimentDuration.
func (s *Scheduler) Run(ctx context.Context, dataPathLinks []topology.DataPathLink, failedLinks [][2]string, failedNodes []string) (*Timeline, error) {
	if len(dataPathLinks) == 0 {
		return &Timeline{}, nil
	}

	schedule := s.buildSchedule(dataPathLinks)
	tl := &Timeline{}
	start := time.Now()

	var elapsedBudget time.Duration
	for i, sc := range schedule {
		sleepFor := sc.delay - elapsedBudget
		if sleepFor < 0 {
			sleepFor = 0
		}
		waitStart := time.Now()
		if err := sleepCtx(ctx, sleepFor); err != nil {
			return tl, err
		}

		if err := s.toggle(ctx, sc.gateway, sc.up); err != nil {
			return tl, fmt.Errorf("fault: failed to toggle %q: %w", sc.gateway, err)
		}
		appliedAt := time.Now()
		tl.Changes = append(tl.Changes, Change{Gateway: sc.gateway, Up: sc.up, At: appliedAt})

		// The quake fires immediately after change index 1 (the second
		// entry), with no yield between it and the DP toggle, so the
		// controller observes them as one batch (§5).
		if i == 1 {
			tl.QuakeStartTime = time.Now()
			if err := s.triggerQuake(ctx, failedLinks, failedNodes); err != nil {
				return tl, fmt.Errorf("fault: quake failed: %w", err)
			}
		}

		// If applying this change overran its nominal delay, eat into
		// the next change's sleep rather than compounding drift.
		actualSpent := time.Since(waitStart)
		elapsedBudget = actualSpent - sleepFor
		if elapsedBudget < 0 {
			elapsedBudget = 0
		}
	}

	elapsed := time.Since(start)
	remainder := s.ExperimentDuration - elapsed
	if remainder > 0 {
		if err := sleepCtx(ctx, remainder); err != nil {
			return tl, err
		}
	}

	return tl, nil
}

// buildSchedule constructs step 2 of §4.7:
//
//	[(dp[0], down, 0)] + [(dp[i], down, T) for i in 1..n-1] + [(dp[0], up, T)]
func (s *Scheduler) buildSchedule(dataPathLinks []topology.DataPathLink) []scheduledChange {
	n := len(dataPathLinks)
	out := make([]scheduledChange, 0, n+1)
	out = append(out, scheduledChange{gateway: dataPathLinks[0].Gateway, up: false, delay: 0})
	for i := 1; i < n; i++ {
		out = append(out, scheduledChange{gateway: dataPathLinks[i].Gateway, up: false, delay: s.TimeBetweenSeismicEvents})
	}
	out = append(out, scheduledChange{gateway: dataPathLinks[0].Gateway, up: true, delay: s.TimeBetweenSeismicEvents})
	return out
}

// toggle applies one data-path change by configuring the link between
// the gateway and its paired cloud switch.
func (s *Scheduler) toggle(ctx context.Context, gateway string, up bool) error {
	dpls, err := s.topo.DataPathLinks()
	if err != nil {
		return err
	}
	for _, dpl := range dpls {
		if dpl.Gateway == gateway {
			return s.driver.ConfigLink(ctx, dpl.Gateway, dpl.CloudSwitch, up)
		}
	}
	return fmt.Errorf("fault: unknown data-path gateway %q", gateway)
}

// triggerQuake toggles every failedLinks pair down and stops every
// failedNodes node with interfaces preserved, per step 4 of §4.7.
func (s *Scheduler) triggerQuake(ctx context.Context, failedLinks [][2]string, failedNodes []string) error {
	for _, pair := range failedLinks {
		if err := s.driver.ConfigLink(ctx, pair[0], pair[1], false); err != nil {
			return fmt.Errorf("fault: failed to fail link (%s,%s): %w", pair[0], pair[1], err)
		}
	}
	for _, node := range failedNodes {
		if err := s.driver.StopNode(ctx, node, false); err != nil {
			return fmt.Errorf("fault: failed to stop node %q: %w", node, err)
		}
	}
	return nil
}

// sleepCtx sleeps for d or returns early with ctx.Err() if cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
