package topology

import (
	"fmt"
	"os"
	"sort"

	lvlgraph "github.com/katalvlaran/lvlath/graph"
	"gopkg.in/yaml.v3"
)

// fileNode / fileLink mirror the on-disk topology file schema (§6):
// a node list and an edge list with bw/latency attributes.
type fileNode struct {
	Name         string `yaml:"name"`
	Kind         string `yaml:"kind"`
	Publisher    bool   `yaml:"publisher"`
	Subscriber   bool   `yaml:"subscriber"`
}

type fileLink struct {
	A         string  `yaml:"a"`
	B         string  `yaml:"b"`
	BwMbps    float64 `yaml:"bw"`
	LatencyMs float64 `yaml:"latency"`
	JitterMs  float64 `yaml:"jitter"`
	LossPct   float64 `yaml:"loss"`
}

type topologyFile struct {
	Nodes []fileNode `yaml:"nodes"`
	Links []fileLink `yaml:"links"`
}

// Topology is the immutable, in-memory graph of the campus network, plus
// its typed node index. Loaded once per run from the topology file (§3's
// lifecycle note); never mutated thereafter.
type Topology struct {
	nodes map[string]Node
	links map[string]Link
	graph *lvlgraph.Graph
}

// Load parses a topology file and validates the invariants of §3: every
// link references two existing nodes, exactly one server, at most one
// cloud, cloud gateways adjacent to the cloud, and a weighted path from
// the server to every publisher/subscriber host.
//
// withCloud mirrors the topology-level `with_cloud` RunPlan flag (§3):
// when false, any cloud/cloud_gateway nodes in the file are dropped and
// replaced by nothing — the Open Question of §9 is resolved here by
// NOT duplicating a host under the cloud's name; we simply omit the
// cloud side of the graph entirely.
func Load(path string, withCloud bool) (*Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("topology: failed to read %s: %w", path, err)
	}

	var tf topologyFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("topology: failed to parse %s: %w", path, err)
	}

	t := &Topology{
		nodes: make(map[string]Node),
		links: make(map[string]Link),
		graph: lvlgraph.NewGraph(false, true),
	}

	var serverCount, cloudCount int
	for _, fn := range tf.Nodes {
		kind := Kind(fn.Kind)
		if !withCloud && (kind == KindCloud || kind == KindCloudGateway) {
			continue
		}
		n := Node{Name: fn.Name, Kind: kind, IsPublisher: fn.Publisher, IsSubscriber: fn.Subscriber}
		t.nodes[n.Name] = n
		t.graph.AddVertex(&lvlgraph.Vertex{ID: n.Name})
		switch kind {
		case KindServer:
			serverCount++
		case KindCloud:
			cloudCount++
		}
	}

	if serverCount != 1 {
		return nil, fmt.Errorf("topology: exactly one server is required, found %d", serverCount)
	}
	if cloudCount > 1 {
		return nil, fmt.Errorf("topology: at most one cloud is permitted, found %d", cloudCount)
	}

	for _, fl := range tf.Links {
		if !withCloud {
			if _, ok := t.nodes[fl.A]; !ok {
				continue
			}
			if _, ok := t.nodes[fl.B]; !ok {
				continue
			}
		}
		if _, ok := t.nodes[fl.A]; !ok {
			return nil, fmt.Errorf("topology: link references unknown node %q", fl.A)
		}
		if _, ok := t.nodes[fl.B]; !ok {
			return nil, fmt.Errorf("topology: link references unknown node %q", fl.B)
		}
		l := Link{A: fl.A, B: fl.B, BwMbps: fl.BwMbps, LatencyMs: fl.LatencyMs, JitterMs: fl.JitterMs, LossPct: fl.LossPct}
		t.links[l.Key()] = l
		t.graph.AddEdge(l.A, l.B, weightOf(l))
	}

	for _, gw := range t.CloudGateways() {
		if !t.adjacentToCloud(gw) {
			return nil, fmt.Errorf("topology: cloud gateway %q is not adjacent to the cloud", gw)
		}
	}

	server := t.Servers()[0]
	for _, h := range append(t.Publishers(), t.Subscribers()...) {
		if _, err := t.WeightedPath(server, h); err != nil {
			return nil, fmt.Errorf("topology: no weighted path from server %q to endpoint %q: %w", server, h, err)
		}
	}

	return t, nil
}

// weightOf converts a link's latency into the edge weight used for
// shortest-path computation; latency is the natural routing metric for
// this domain (DISTANCE_METRIC in §4.1).
func weightOf(l Link) int64 {
	w := int64(l.LatencyMs * 1000)
	if w < 1 {
		w = 1
	}
	return w
}

func (t *Topology) adjacentToCloud(gw string) bool {
	for _, l := range t.links {
		other := ""
		switch gw {
		case l.A:
			other = l.B
		case l.B:
			other = l.A
		default:
			continue
		}
		if n, ok := t.nodes[other]; ok && n.Kind == KindCloud {
			return true
		}
	}
	return false
}

func (t *Topology) namesByKind(k Kind) []string {
	var out []string
	for _, n := range t.nodes {
		if n.Kind == k {
			out = append(out, n.Name)
		}
	}
	sort.Strings(out)
	return out
}

// Switches returns the names of all switch-kind nodes, sorted.
func (t *Topology) Switches() []string { return t.namesByKind(KindSwitch) }

// Hosts returns the names of all host-kind nodes, sorted.
func (t *Topology) Hosts() []string { return t.namesByKind(KindHost) }

// Servers returns the names of all server-kind nodes, sorted.
func (t *Topology) Servers() []string { return t.namesByKind(KindServer) }

// Clouds returns the names of all cloud-kind nodes, sorted.
func (t *Topology) Clouds() []string { return t.namesByKind(KindCloud) }

// CloudGateways returns the names of all cloud-gateway switches, sorted.
func (t *Topology) CloudGateways() []string { return t.namesByKind(KindCloudGateway) }

// Publishers returns hosts pre-designated as publisher candidates.
func (t *Topology) Publishers() []string {
	var out []string
	for _, n := range t.nodes {
		if n.IsPublisher {
			out = append(out, n.Name)
		}
	}
	sort.Strings(out)
	return out
}

// Subscribers returns hosts pre-designated as subscriber candidates.
func (t *Topology) Subscribers() []string {
	var out []string
	for _, n := range t.nodes {
		if n.IsSubscriber {
			out = append(out, n.Name)
		}
	}
	sort.Strings(out)
	return out
}

// Links returns every link in the topology, sorted by key for
// deterministic iteration.
func (t *Topology) Links() []Link {
	out := make([]Link, 0, len(t.links))
	for _, l := range t.links {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// Node looks up a node by name.
func (t *Topology) Node(name string) (Node, bool) {
	n, ok := t.nodes[name]
	return n, ok
}

// IsCloudGateway reports whether name is a cloud-gateway switch.
func (t *Topology) IsCloudGateway(name string) bool {
	n, ok := t.nodes[name]
	return ok && n.Kind == KindCloudGateway
}

// DataPathLinks returns the (gateway, cloud-switch) pairs of §3's
// DataPathLink, ordered ascending by gateway name to fix the
// deterministic "highest priority first" semantics used by the Fault
// Scheduler.
func (t *Topology) DataPathLinks() ([]DataPathLink, error) {
	clouds := t.Clouds()
	if len(clouds) == 0 {
		return nil, nil
	}
	cloudSwitch, err := EdgeSwitchName(clouds[0], true)
	if err != nil {
		return nil, err
	}
	gws := t.CloudGateways()
	out := make([]DataPathLink, 0, len(gws))
	for _, gw := range gws {
		out = append(out, DataPathLink{Gateway: gw, CloudSwitch: cloudSwitch})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Gateway < out[j].Gateway })
	return out, nil
}

// DataPathLink is the (gateway_switch_name, cloud_switch_name) pair of §3.
type DataPathLink struct {
	Gateway     string
	CloudSwitch string
}
