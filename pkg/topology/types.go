// Package topology implements the Topology Model: an in-memory graph of
// the campus network loaded from a topology file, with typed node kinds,
// weighted links, and identity derivation for the emulation and
// controller layers.
package topology

import "fmt"

// Kind distinguishes the typed node variants of §3.
type Kind string

const (
	KindSwitch       Kind = "switch"
	KindHost         Kind = "host"
	KindServer       Kind = "server"
	KindCloud        Kind = "cloud"
	KindCloudGateway Kind = "cloud_gateway"
)

// Node is a single vertex of the topology graph.
type Node struct {
	Name string
	Kind Kind

	// IsPublisher / IsSubscriber mark candidate RunPlan membership; the
	// topology file may pre-designate roles, or the RunPlan may choose a
	// subset of hosts at trial time (§3, RunPlan).
	IsPublisher  bool
	IsSubscriber bool
}

// Link is an unordered pair of node names plus per-link emulation
// attributes (§3). Links are keyed by their unordered endpoint pair.
type Link struct {
	A, B      string
	BwMbps    float64
	LatencyMs float64
	JitterMs  float64
	LossPct   float64
}

// Key returns the unordered, deterministic identifier for this link.
func (l Link) Key() string {
	a, b := l.A, l.B
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}

// Other returns the endpoint of the link that is not name.
func (l Link) Other(name string) (string, error) {
	switch name {
	case l.A:
		return l.B, nil
	case l.B:
		return l.A, nil
	default:
		return "", fmt.Errorf("topology: node %q is not an endpoint of link %s", name, l.Key())
	}
}

// ErrNoPath is returned by WeightedPath when src and dst are disconnected.
type ErrNoPath struct {
	Src, Dst string
}

func (e *ErrNoPath) Error() string {
	return fmt.Sprintf("topology: no path from %q to %q", e.Src, e.Dst)
}

// ErrAlgorithmNotImplemented is returned by MulticastTree for a
// recognised but unimplemented algorithm tag (§4.1, §9).
type ErrAlgorithmNotImplemented struct {
	Algorithm string
}

func (e *ErrAlgorithmNotImplemented) Error() string {
	return fmt.Sprintf("topology: multicast tree algorithm %q is not implemented", e.Algorithm)
}

// Tree is the subgraph returned by MulticastTree: the node and edge set
// of a multicast distribution tree rooted at Src.
type Tree struct {
	Src   string
	Nodes []string
	Edges []Link
}

// Branches returns, for each node in the tree, the full set of
// neighbouring tree nodes reachable via a tree edge — plain undirected
// adjacency, with no root/parent exclusion. The Controller Adapter
// builds group tables from a root-aware derivative of this adjacency
// (see BuildFlowRulesFromMulticastTree's parentByBFS), which excludes
// the edge back toward Src per node before counting branch out-degree.
func (t *Tree) Branches() map[string][]string {
	adj := make(map[string][]string, len(t.Nodes))
	for _, e := range t.Edges {
		adj[e.A] = append(adj[e.A], e.B)
		adj[e.B] = append(adj[e.B], e.A)
	}
	return adj
}
