package fault

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kbenson/ride-harness/pkg/topology"
)

func newTestScheduler(tBetween time.Duration) *Scheduler {
	return &Scheduler{TimeBetweenSeismicEvents: tBetween}
}

func TestBuildScheduleMatchesSpecConstruction(t *testing.T) {
	s := newTestScheduler(10 * time.Second)
	dpls := []topology.DataPathLink{
		{Gateway: "g0", CloudSwitch: "f0"},
		{Gateway: "g1", CloudSwitch: "f0"},
		{Gateway: "g2", CloudSwitch: "f0"},
	}

	schedule := s.buildSchedule(dpls)

	// [(dp[0], down, 0)] + [(dp[i], down, T) for i in 1..n-1] + [(dp[0], up, T)]
	assert.Equal(t, []scheduledChange{
		{gateway: "g0", up: false, delay: 0},
		{gateway: "g1", up: false, delay: 10 * time.Second},
		{gateway: "g2", up: false, delay: 10 * time.Second},
		{gateway: "g0", up: true, delay: 10 * time.Second},
	}, schedule)
}

func TestBuildScheduleSingleGateway(t *testing.T) {
	s := newTestScheduler(5 * time.Second)
	dpls := []topology.DataPathLink{{Gateway: "g0", CloudSwitch: "f0"}}

	schedule := s.buildSchedule(dpls)

	assert.Equal(t, []scheduledChange{
		{gateway: "g0", up: false, delay: 0},
		{gateway: "g0", up: true, delay: 5 * time.Second},
	}, schedule)
}

func TestChangeIndexOneIsSecondGateway(t *testing.T) {
	s := newTestScheduler(1 * time.Millisecond)
	dpls := []topology.DataPathLink{
		{Gateway: "g0", CloudSwitch: "f0"},
		{Gateway: "g1", CloudSwitch: "f0"},
		{Gateway: "g2", CloudSwitch: "f0"},
	}
	schedule := s.buildSchedule(dpls)
	// index 1 is the second change, matching the g1 "down" entry — the
	// schedule's quake trigger point per §4.7 step 4.
	assert.Equal(t, "g1", schedule[1].gateway)
}
