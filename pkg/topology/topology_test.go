package topology

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTopology = `
nodes:
  - name: s0
    kind: server
  - name: a1
    kind: switch
  - name: a2
    kind: switch
  - name: h0-0
    kind: host
    subscriber: true
  - name: h1-0
    kind: host
    subscriber: true
  - name: x0
    kind: cloud
  - name: g0
    kind: cloud_gateway
links:
  - {a: s0, b: a1, bw: 100, latency: 1}
  - {a: a1, b: a2, bw: 100, latency: 2}
  - {a: a1, b: h0-0, bw: 100, latency: 1}
  - {a: a2, b: h1-0, bw: 100, latency: 1}
  - {a: a2, b: g0, bw: 100, latency: 1}
  - {a: g0, b: x0, bw: 50, latency: 5}
`

func writeSample(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "topo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleTopology), 0644))
	return path
}

func TestLoadValidTopology(t *testing.T) {
	path := writeSample(t)
	topo, err := Load(path, true)
	require.NoError(t, err)

	assert.Equal(t, []string{"s0"}, topo.Servers())
	assert.Equal(t, []string{"x0"}, topo.Clouds())
	assert.Equal(t, []string{"g0"}, topo.CloudGateways())
	assert.ElementsMatch(t, []string{"h0-0", "h1-0"}, topo.Subscribers())
}

func TestLoadWithoutCloudDropsCloudSideEntirely(t *testing.T) {
	path := writeSample(t)
	topo, err := Load(path, false)
	require.NoError(t, err)

	assert.Empty(t, topo.Clouds())
	assert.Empty(t, topo.CloudGateways())
	// with_cloud=false must not leave a duplicate host behind (§9 Open Question).
	_, ok := topo.Node("x0")
	assert.False(t, ok)
}

func TestWeightedPath(t *testing.T) {
	path := writeSample(t)
	topo, err := Load(path, true)
	require.NoError(t, err)

	p, err := topo.WeightedPath("s0", "h1-0")
	require.NoError(t, err)
	assert.Equal(t, []string{"s0", "a1", "a2", "h1-0"}, p)
}

func TestWeightedPathNoPath(t *testing.T) {
	path := writeSample(t)
	topo, err := Load(path, true)
	require.NoError(t, err)

	_, err = topo.WeightedPath("s0", "does-not-exist")
	require.Error(t, err)
	var noPath *ErrNoPath
	assert.ErrorAs(t, err, &noPath)
}

func TestMulticastTreeSteiner(t *testing.T) {
	path := writeSample(t)
	topo, err := Load(path, true)
	require.NoError(t, err)

	tree, err := topo.MulticastTree("s0", []string{"h0-0", "h1-0"}, "steiner")
	require.NoError(t, err)
	assert.Contains(t, tree.Nodes, "s0")
	assert.Contains(t, tree.Nodes, "h0-0")
	assert.Contains(t, tree.Nodes, "h1-0")
	assert.Contains(t, tree.Nodes, "a1")
}

func TestMulticastTreeUnimplementedAlgorithm(t *testing.T) {
	path := writeSample(t)
	topo, err := Load(path, true)
	require.NoError(t, err)

	_, err = topo.MulticastTree("s0", []string{"h0-0"}, "red-blue")
	require.Error(t, err)
	var notImpl *ErrAlgorithmNotImplemented
	assert.ErrorAs(t, err, &notImpl)
}

func TestIdentityDerivation(t *testing.T) {
	ip, mac, err := HostIPMAC("h1-0")
	require.NoError(t, err)
	assert.Equal(t, "10.200.1.1", ip)
	assert.NotEmpty(t, mac)

	dpid, err := SwitchDpid("a3")
	require.NoError(t, err)
	assert.Equal(t, "6100000000000003", dpid)

	edge, err := EdgeSwitchName("s0", false)
	require.NoError(t, err)
	assert.Equal(t, "e0", edge)

	edge, err = EdgeSwitchName("x0", true)
	require.NoError(t, err)
	assert.Equal(t, "f0", edge)
}

func TestSwitchDpidInjectiveAcrossKinds(t *testing.T) {
	// A minor-building switch, a server edge-switch, and a cloud
	// edge-switch sharing the same numeric index must never collide:
	// their indices are numbered independently of each other.
	a0, err := SwitchDpid("a0")
	require.NoError(t, err)
	e0, err := SwitchDpid("e0")
	require.NoError(t, err)
	f0, err := SwitchDpid("f0")
	require.NoError(t, err)

	assert.NotEqual(t, a0, e0)
	assert.NotEqual(t, e0, f0)
	assert.NotEqual(t, a0, f0)
}

func TestDataPathLinksSortedAscending(t *testing.T) {
	path := writeSample(t)
	topo, err := Load(path, true)
	require.NoError(t, err)

	dps, err := topo.DataPathLinks()
	require.NoError(t, err)
	require.Len(t, dps, 1)
	assert.Equal(t, "g0", dps[0].Gateway)
	assert.Equal(t, "f0", dps[0].CloudSwitch)
}
