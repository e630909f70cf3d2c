// Package convergence implements the Convergence Coordinator (CC): it
// blocks until the Controller Adapter's topology view agrees with the
// Emulation Driver's, per §4.4.
package convergence

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// View is the minimal projection either topology store exposes, per the
// §9 design note: "model ED and CA as two stores behind a single
// TopologyView trait exposing hosts(), switches(), edges()." CC is then
// a pure reconciliation loop over two Views, trivially testable with
// stubs.
type View interface {
	Hosts(ctx context.Context) ([]string, error)
	Switches(ctx context.Context) ([]string, error)
	LinkCount(ctx context.Context) (int, error)
}

// Expectation is the host/switch/link counts the emulation side expects
// the controller to eventually report (§8 invariant 1).
type Expectation struct {
	Hosts    int
	Switches int
	Links    int
}

// Discoverer elicits host discovery: pings every host (full pairwise or
// star-to-server per the ALL_PAIRS config toggle) and programs static
// ARP entries so the controller learns MAC<->IP bindings (§4.4 steps 1-2).
type Discoverer interface {
	ElicitDiscovery(ctx context.Context) error
}

// Coordinator runs the convergence algorithm of §4.4.
type Coordinator struct {
	log zerolog.Logger

	// BackoffMatch / BackoffMismatch are the 2s/10s sleeps of §4.4 step
	// 4; exposed as fields so tests can shrink them.
	BackoffMatch    time.Duration
	BackoffMismatch time.Duration

	// ReElicitEvery controls how often (in unsuccessful iterations) step
	// 1 (ping + ARP) is re-run, default 5 per §4.4.
	ReElicitEvery int
}

// New constructs a Coordinator with the default 2s/10s backoff and
// re-elicit-every-5th-iteration cadence of §4.4.
func New(log zerolog.Logger) *Coordinator {
	return &Coordinator{
		log:             log.With().Str("component", "convergence").Logger(),
		BackoffMatch:    2 * time.Second,
		BackoffMismatch: 10 * time.Second,
		ReElicitEvery:   5,
	}
}

// Converge blocks until emu and ca agree on host/switch/link counts
// against the given expectation, retrying indefinitely within the
// caller's context (§4.4, §5, §7: "unbounded retry is acceptable within
// the trial's overall duration budget... fatal only if the enclosing
// duration elapses").
func (c *Coordinator) Converge(ctx context.Context, emu, ca View, expected Expectation, disc Discoverer) error {
	if err := disc.ElicitDiscovery(ctx); err != nil {
		c.log.Warn().Err(err).Msg("initial discovery elicitation reported errors, continuing")
	}

	iteration := 0
	for {
		iteration++

		match, err := c.checkMatch(ctx, emu, ca, expected)
		if err != nil {
			c.log.Warn().Err(err).Msg("error querying topology views, will retry")
		} else if match {
			c.log.Info().Int("iteration", iteration).Msg("converged")
			select {
			case <-time.After(c.BackoffMatch):
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		}

		if iteration%c.ReElicitEvery == 0 {
			c.log.Info().Int("iteration", iteration).Msg("re-eliciting discovery after repeated mismatch")
			if err := disc.ElicitDiscovery(ctx); err != nil {
				c.log.Warn().Err(err).Msg("re-elicit discovery reported errors, continuing")
			}
		}

		delay := c.BackoffMismatch
		if match {
			delay = c.BackoffMatch
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Coordinator) checkMatch(ctx context.Context, emu, ca View, expected Expectation) (bool, error) {
	emuHosts, err := emu.Hosts(ctx)
	if err != nil {
		return false, err
	}
	emuSwitches, err := emu.Switches(ctx)
	if err != nil {
		return false, err
	}
	emuLinks, err := emu.LinkCount(ctx)
	if err != nil {
		return false, err
	}

	caHosts, err := ca.Hosts(ctx)
	if err != nil {
		return false, err
	}
	caSwitches, err := ca.Switches(ctx)
	if err != nil {
		return false, err
	}
	caLinks, err := ca.LinkCount(ctx)
	if err != nil {
		return false, err
	}

	return len(caHosts) == len(emuHosts) &&
		len(caHosts) == expected.Hosts &&
		len(caSwitches) == len(emuSwitches) &&
		len(caSwitches) == expected.Switches &&
		caLinks == emuLinks &&
		caLinks == expected.Links, nil
}
