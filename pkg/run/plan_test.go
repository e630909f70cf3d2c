package run

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbenson/ride-harness/pkg/topology"
)

const planTestTopology = `
nodes:
  - name: s0
    kind: server
  - name: a1
    kind: switch
  - name: h0-0
    kind: host
    publisher: true
  - name: h0-1
    kind: host
    subscriber: true
  - name: h0-2
    kind: host
    subscriber: true
links:
  - {a: s0, b: a1, bw: 100, latency: 1}
  - {a: a1, b: h0-0, bw: 100, latency: 1}
  - {a: a1, b: h0-1, bw: 100, latency: 1}
  - {a: a1, b: h0-2, bw: 100, latency: 1}
`

func loadPlanTestTopology(t *testing.T) *topology.Topology {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "topo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(planTestTopology), 0644))
	topo, err := topology.Load(path, false)
	require.NoError(t, err)
	return topo
}

func TestResolveIsDeterministicUnderFixedSeed(t *testing.T) {
	topo := loadPlanTestTopology(t)
	opts := Options{NSubscribers: 2, McastBaseIPv4: "224.0.1.0", McastBaseUDPPort: 9000, Ntrees: 2}

	a, err := NewResolver(7).Resolve(topo, opts)
	require.NoError(t, err)
	b, err := NewResolver(7).Resolve(topo, opts)
	require.NoError(t, err)

	assert.Equal(t, a.Subscribers, b.Subscribers)
	assert.Equal(t, a.McastPool, b.McastPool)
}

func TestResolveRejectsOversizedRequest(t *testing.T) {
	topo := loadPlanTestTopology(t)
	_, err := NewResolver(1).Resolve(topo, Options{NSubscribers: 50})
	require.Error(t, err)
}

func TestBuildMcastPoolAdvancesAddressAndPort(t *testing.T) {
	pool, err := buildMcastPool("224.0.1.0", 9000, 3)
	require.NoError(t, err)
	require.Len(t, pool, 3)
	assert.Equal(t, "224.0.1.0", pool[0].IPv4)
	assert.Equal(t, 9000, pool[0].SrcPort)
	assert.Equal(t, "224.0.1.1", pool[1].IPv4)
	assert.Equal(t, 9001, pool[1].SrcPort)
	assert.Equal(t, "224.0.1.2", pool[2].IPv4)
	assert.Equal(t, 9002, pool[2].SrcPort)
}

func TestBuildMcastPoolZeroTrees(t *testing.T) {
	pool, err := buildMcastPool("224.0.1.0", 9000, 0)
	require.NoError(t, err)
	assert.Empty(t, pool)
}
