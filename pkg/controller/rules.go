package controller

import "sort"

// DefaultPriority is the static priority used for rules installed by
// the Forwarding Programmer's batch installs (§4.5a: "high static
// priority").
const DefaultPriority = 40000

// BuildMatches constructs an opaque Match object from named predicates
// (§4.3). Only non-empty predicates are included.
func BuildMatches(preds map[string]string) Match {
	m := make(Match, len(preds))
	for k, v := range preds {
		if v != "" {
			m[k] = v
		}
	}
	return m
}

// nextHopAction builds the action a switch at position i in a path uses
// to reach path[i+1], given that next node's DPID. The abstract adapter does not track physical
// port numbers (that is controller/emulation-specific); encoding the
// next-hop DPID directly into the action is sufficient for a
// controller-agnostic FlowRule, and dialect-specific adapters below
// each controller boundary translate DPID-to-port as needed. Here we
// model "output towards next hop" with a SetField carrying the next
// node's DPID so downstream code can resolve the physical port.
func nextHopAction(nextDpid string) Action {
	return Action{SetField: map[string]string{"next_hop_dpid": nextDpid}}
}

// BuildFlowRulesFromPath expands an ordered DPID path into per-switch
// flow rules (§4.3): one rule per switch strictly between the two
// endpoints plus the ingress/egress switches, with rules for the host
// endpoints themselves dropped (hosts are never programmed).
func BuildFlowRulesFromPath(path []string, matches Match, priority int) []FlowRule {
	if priority == 0 {
		priority = DefaultPriority
	}
	if len(path) < 2 {
		return nil
	}
	rules := make([]FlowRule, 0, len(path))
	for i := 1; i+1 < len(path); i++ {
		// path[i] is a switch with a defined predecessor and successor;
		// path[0] and path[len-1] are host endpoints and are skipped.
		rules = append(rules, FlowRule{
			Dpid:     path[i],
			Priority: priority,
			Match:    matches,
			Actions:  []Action{nextHopAction(path[i+1])},
		})
	}
	// Degenerate two-switch case (no intermediate hop): if both
	// endpoints are switches (no host wrapper), still emit a rule for
	// the source switch pointing at the destination.
	if len(path) == 2 {
		rules = append(rules, FlowRule{
			Dpid:     path[0],
			Priority: priority,
			Match:    matches,
			Actions:  []Action{nextHopAction(path[1])},
		})
	}
	return rules
}

// BuildFlowRulesFromMulticastTree expands a multicast tree into group
// tables plus flow rules (§4.3): each branch point (tree out-degree > 1,
// excluding the edge back toward the root) becomes a group with one
// deduplicated bucket per outgoing branch; each non-branching switch
// gets a single-output flow rule; the ingress switch's rule points at
// its group (§9: dedupe buckets per switch, arena-style monotonic
// group-ID counter). branches is the plain undirected tree adjacency
// (Tree.Branches()); srcDpid identifies the root so the parent-ward
// edge can be excluded per node before counting branch out-degree.
func BuildFlowRulesFromMulticastTree(nodeDpid map[string]string, branches map[string][]string, srcDpid string, matches Match) ([]GroupRule, []FlowRule) {
	var groups []GroupRule
	var flows []FlowRule
	groupID := 1

	parentOf := parentByBFS(branches, nodeDpid, srcDpid)

	switchNames := make([]string, 0, len(branches))
	for n := range branches {
		switchNames = append(switchNames, n)
	}
	sort.Strings(switchNames)

	for _, node := range switchNames {
		neighbors := branches[node]
		dpid, ok := nodeDpid[node]
		if !ok {
			continue
		}
		parent, hasParent := parentOf[node]

		seen := make(map[string]bool, len(neighbors))
		var outgoing []string
		for _, nb := range neighbors {
			if hasParent && nb == parent {
				continue // edge back toward the root; not an outgoing branch
			}
			nbDpid, ok := nodeDpid[nb]
			if !ok || seen[nbDpid] {
				continue
			}
			seen[nbDpid] = true
			outgoing = append(outgoing, nbDpid)
		}
		sort.Strings(outgoing)

		if len(outgoing) <= 1 {
			if len(outgoing) == 1 {
				flows = append(flows, FlowRule{
					Dpid:     dpid,
					Priority: DefaultPriority,
					Match:    matches,
					Actions:  []Action{nextHopAction(outgoing[0])},
				})
			}
			continue
		}

		buckets := make([][]Action, 0, len(outgoing))
		for _, nbDpid := range outgoing {
			buckets = append(buckets, []Action{nextHopAction(nbDpid)})
		}
		groups = append(groups, GroupRule{Dpid: dpid, GroupID: groupID, Buckets: buckets})
		flows = append(flows, FlowRule{
			Dpid:     dpid,
			Priority: DefaultPriority,
			Match:    matches,
			Actions:  []Action{ToGroup(groupID)},
		})
		groupID++
	}

	return groups, flows
}

// parentByBFS walks the undirected tree adjacency breadth-first from
// the node whose DPID is srcDpid, returning each non-root node's parent
// (the neighbour one hop closer to the root). Callers use this to drop
// the parent-ward edge per node before treating an out-degree-greater-
// than-one node as a group-table branch point.
func parentByBFS(branches map[string][]string, nodeDpid map[string]string, srcDpid string) map[string]string {
	var root string
	for name, dpid := range nodeDpid {
		if dpid == srcDpid {
			root = name
			break
		}
	}
	parent := make(map[string]string)
	if root == "" {
		return parent
	}

	visited := map[string]bool{root: true}
	queue := []string{root}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, nb := range branches[n] {
			if visited[nb] {
				continue
			}
			visited[nb] = true
			parent[nb] = n
			queue = append(queue, nb)
		}
	}
	return parent
}

// encodeFlowRule / encodeGroupRule produce the wire body for a flow or
// group install. The concrete JSON shape is intentionally minimal and
// controller-specific; this is the one seam a different controller's
// REST dialect would replace.
func encodeFlowRule(r FlowRule) map[string]interface{} {
	return map[string]interface{}{
		"priority":    r.Priority,
		"deviceId":    r.Dpid,
		"selector":    r.Match,
		"treatment":   encodeActions(r.Actions),
		"isPermanent": true,
	}
}

func encodeGroupRule(g GroupRule) map[string]interface{} {
	buckets := make([]map[string]interface{}, 0, len(g.Buckets))
	for _, b := range g.Buckets {
		buckets = append(buckets, map[string]interface{}{"treatment": encodeActions(b)})
	}
	return map[string]interface{}{
		"type":     "ALL",
		"deviceId": g.Dpid,
		"groupId":  g.GroupID,
		"buckets":  buckets,
	}
}

func encodeActions(actions []Action) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(actions))
	for _, a := range actions {
		switch {
		case a.GroupID != 0:
			out = append(out, map[string]interface{}{"type": "GROUP", "groupId": a.GroupID})
		case a.SetField != nil:
			out = append(out, map[string]interface{}{"type": "NEXT_HOP", "fields": a.SetField})
		default:
			out = append(out, map[string]interface{}{"type": "OUTPUT", "port": a.OutputPort})
		}
	}
	return out
}
