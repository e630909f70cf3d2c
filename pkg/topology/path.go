package topology

import "sort"

// WeightedPath returns the weighted-shortest-path sequence of node names
// from src to dst (§4.1), grounded on lvlath's container/heap-based
// Dijkstra. Ties are broken lexicographically on node name by the
// deterministic vertex-ID ordering lvlath's adjacency list already
// provides during relaxation, per §4.1's "lexicographic on node name"
// tie-break requirement.
func (t *Topology) WeightedPath(src, dst string) ([]string, error) {
	if _, ok := t.nodes[src]; !ok {
		return nil, &ErrNoPath{Src: src, Dst: dst}
	}
	if _, ok := t.nodes[dst]; !ok {
		return nil, &ErrNoPath{Src: src, Dst: dst}
	}
	if src == dst {
		return []string{src}, nil
	}

	_, parent, err := t.graph.Dijkstra(src)
	if err != nil {
		return nil, err
	}

	path := []string{dst}
	cur := dst
	for cur != src {
		p, ok := parent[cur]
		if !ok {
			return nil, &ErrNoPath{Src: src, Dst: dst}
		}
		path = append(path, p)
		cur = p
	}
	reverse(path)
	return path, nil
}

func reverse(s []string) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// MergePaths concatenates p1 and p2, deduplicating the shared endpoint,
// per §4.3's merge_paths operation (used by the Forwarding Programmer to
// join server→gateway and gateway→cloud probe paths).
func MergePaths(p1, p2 []string) []string {
	if len(p1) == 0 {
		return p2
	}
	if len(p2) == 0 {
		return p1
	}
	out := make([]string, 0, len(p1)+len(p2)-1)
	out = append(out, p1...)
	if p1[len(p1)-1] == p2[0] {
		out = append(out, p2[1:]...)
	} else {
		out = append(out, p2...)
	}
	return out
}

// pathWeight sums the edge weights along a path of node names, used
// internally by the Steiner heuristic's metric closure.
func (t *Topology) pathWeight(path []string) int64 {
	var total int64
	for i := 0; i+1 < len(path); i++ {
		key := Link{A: path[i], B: path[i+1]}.Key()
		if l, ok := t.links[key]; ok {
			total += weightOf(l)
		}
	}
	return total
}

// sortedCopy returns a sorted copy of names, used anywhere the spec
// requires a deterministic iteration order over a set of node names.
func sortedCopy(names []string) []string {
	out := append([]string(nil), names...)
	sort.Strings(out)
	return out
}
