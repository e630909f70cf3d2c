package emulation

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/kbenson/ride-harness/pkg/topology"
)

func newTestDriver() *Driver {
	return &Driver{
		log:         zerolog.Nop(),
		containerID: make(map[string]string),
	}
}

func TestHostsAndSwitchesClassification(t *testing.T) {
	d := newTestDriver()
	d.AddSwitch("a1", "0001")
	d.AddHost("h0-0", "10.200.0.1", "00:00:00:00:00:00")
	d.nodes = append(d.nodes, NodeSpec{Name: "s0", Kind: topology.KindServer})
	d.nodes = append(d.nodes, NodeSpec{Name: "g0", Kind: topology.KindCloudGateway})

	assert.ElementsMatch(t, []string{"h0-0", "s0"}, d.Hosts())
	assert.ElementsMatch(t, []string{"a1", "g0"}, d.Switches())
}

func TestNetemCommandBuildsDelayJitterLoss(t *testing.T) {
	cmd := netemCommand(100, 10, 2, 1.5)
	assert.Contains(t, cmd, "delay")
	assert.Contains(t, cmd, "10.0ms")
	assert.Contains(t, cmd, "2.0ms")
	assert.Contains(t, cmd, "loss")
	assert.Contains(t, cmd, "1.50%")
}

func TestFindLinkIsOrderIndependent(t *testing.T) {
	d := newTestDriver()
	d.AddLink("a1", "a2", 100, 1, 0, 0)

	l, ok := d.findLink("a2", "a1")
	assert.True(t, ok)
	assert.Equal(t, "a1", l.A)
}
