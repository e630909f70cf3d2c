package topology

import (
	"sort"

	lvlgraph "github.com/katalvlaran/lvlath/graph"
)

// MulticastTree builds a multicast distribution tree from src to dests
// using the named algorithm (§4.1). algorithm is drawn from the closed
// set {"steiner", "red-blue", "ilp"}; unimplemented-but-recognised tags
// fail predictably rather than silently falling back to another
// algorithm (§9's Open Question resolution for the `oracle`-style
// unimplemented-mode pattern, applied here too).
func (t *Topology) MulticastTree(src string, dests []string, algorithm string) (*Tree, error) {
	switch algorithm {
	case "steiner", "":
		return t.steinerTree(src, dests)
	case "red-blue", "ilp":
		return nil, &ErrAlgorithmNotImplemented{Algorithm: algorithm}
	default:
		return nil, &ErrAlgorithmNotImplemented{Algorithm: algorithm}
	}
}

// steinerTree implements the classic shortest-path metric-closure
// heuristic (Kou/Markowsky/Berman): build the metric closure over the
// terminal set {src}∪dests via Dijkstra, take its minimum spanning tree
// via lvlath's Kruskal, then re-expand each MST edge back into its
// underlying shortest path in the full topology, deduplicating the
// result into a single node/edge set.
func (t *Topology) steinerTree(src string, dests []string) (*Tree, error) {
	terminals := sortedCopy(append([]string{src}, dests...))
	terminalSet := make(map[string]bool, len(terminals))
	var unique []string
	for _, n := range terminals {
		if !terminalSet[n] {
			terminalSet[n] = true
			unique = append(unique, n)
		}
	}
	terminals = unique

	if len(terminals) == 1 {
		return &Tree{Src: src, Nodes: terminals, Edges: nil}, nil
	}

	closure := lvlgraph.NewGraph(false, true)
	for _, n := range terminals {
		closure.AddVertex(&lvlgraph.Vertex{ID: n})
	}

	underlyingPath := make(map[string][]string)
	for i, a := range terminals {
		for _, b := range terminals[i+1:] {
			path, err := t.WeightedPath(a, b)
			if err != nil {
				return nil, err
			}
			w := t.pathWeight(path)
			closure.AddEdge(a, b, w)
			key := Link{A: a, B: b}.Key()
			underlyingPath[key] = path
		}
	}

	mstEdges, _, err := closure.Kruskal()
	if err != nil {
		return nil, err
	}

	nodeSet := make(map[string]bool)
	edgeSet := make(map[string]Link)
	for _, e := range mstEdges {
		key := Link{A: e.From.ID, B: e.To.ID}.Key()
		path := underlyingPath[key]
		for i, n := range path {
			nodeSet[n] = true
			if i+1 < len(path) {
				l := Link{A: path[i], B: path[i+1]}
				edgeSet[l.Key()] = l
			}
		}
	}

	nodes := make([]string, 0, len(nodeSet))
	for n := range nodeSet {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)

	edges := make([]Link, 0, len(edgeSet))
	for _, l := range edgeSet {
		edges = append(edges, l)
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].Key() < edges[j].Key() })

	return &Tree{Src: src, Nodes: nodes, Edges: edges}, nil
}
