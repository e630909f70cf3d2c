// Package forwarding implements the Forwarding Programmer (FP): it
// installs static unicast routes, data-path probes, cloud-to-subscriber
// routes, and multicast trees after convergence, per §4.5.
package forwarding

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/kbenson/ride-harness/pkg/controller"
	"github.com/kbenson/ride-harness/pkg/topology"
)

// McastAddress is one entry of the MulticastAddressPool (§3): a
// multicast IPv4 paired with its source UDP port, both required to be
// unique across the pool.
type McastAddress struct {
	IPv4    string
	SrcPort int
}

// Plan is the subset of the RunPlan the Forwarding Programmer needs.
type Plan struct {
	Subscribers     []string
	Gateways        []string // ordered ascending, per DataPathLinks
	ProbeBasePort   int
	EchoPort        int
	CloudIP         string
	Ntrees          int
	McastPool       []McastAddress
	TreeAlgorithm   string
	ComparisonMode  string // "none" | "unicast" | "oracle"
}

// Result summarises what was installed, for the trial report.
type Result struct {
	UnicastFlows []controller.FlowRule
	ProbeFlows   []controller.FlowRule
	CloudRoutes  []controller.FlowRule
	McastGroups  []controller.GroupRule
	McastFlows   []controller.FlowRule
}

// Programmer installs forwarding state via the Controller Adapter.
type Programmer struct {
	topo    *topology.Topology
	ca      *controller.Client
	dialect controller.Dialect
	log     zerolog.Logger
}

// New constructs a Programmer.
func New(topo *topology.Topology, ca *controller.Client, dialect controller.Dialect, log zerolog.Logger) *Programmer {
	return &Programmer{topo: topo, ca: ca, dialect: dialect, log: log.With().Str("component", "forwarding").Logger()}
}

// dpidFor resolves any topology node name (switch, host, server, cloud)
// to its dialect-formatted DPID/host-id.
func (p *Programmer) dpidFor(name string) (string, error) {
	n, ok := p.topo.Node(name)
	if !ok {
		return "", fmt.Errorf("forwarding: unknown node %q", name)
	}
	if n.Kind == topology.KindHost || n.Kind == topology.KindServer || n.Kind == topology.KindCloud {
		_, mac, err := topology.NodeMAC(n)
		if err != nil {
			return "", err
		}
		return controller.DpidForHost(p.dialect, mac), nil
	}
	return controller.DpidForSwitch(p.dialect, n)
}

func (p *Programmer) dpidPath(names []string) ([]string, error) {
	out := make([]string, len(names))
	for i, n := range names {
		dpid, err := p.dpidFor(n)
		if err != nil {
			return nil, err
		}
		out[i] = dpid
	}
	return out, nil
}

// ProgramAll runs all four install phases of §4.5. Phases (a) and (b)
// run concurrently (they are independent per §5's ordering guarantees)
// and are joined before phase (c) runs; phase (d) runs last. Probe
// routes therefore exist before the fault scheduler starts timing
// failovers.
func (p *Programmer) ProgramAll(ctx context.Context, plan Plan) (*Result, error) {
	if plan.ComparisonMode == "oracle" {
		return nil, fmt.Errorf("forwarding: comparison_mode=oracle is not implemented (§9 Open Question)")
	}

	result := &Result{}
	var wg sync.WaitGroup
	var unicastErr, probeErr error
	wg.Add(2)

	go func() {
		defer wg.Done()
		flows, err := p.programUnicastRoutes(ctx, plan)
		result.UnicastFlows = flows
		unicastErr = err
	}()

	go func() {
		defer wg.Done()
		flows, err := p.programDataPathProbes(ctx, plan)
		result.ProbeFlows = flows
		probeErr = err
	}()

	wg.Wait()
	if unicastErr != nil {
		return result, unicastErr
	}
	if probeErr != nil {
		return result, probeErr
	}

	cloudFlows, err := p.programCloudToSubscriberRoutes(ctx, plan)
	if err != nil {
		return result, err
	}
	result.CloudRoutes = cloudFlows

	if plan.Ntrees > 0 && plan.ComparisonMode != "unicast" {
		groups, flows, err := p.programMulticastTrees(ctx, plan)
		if err != nil {
			return result, err
		}
		result.McastGroups = groups
		result.McastFlows = flows
	}

	return result, nil
}

// programUnicastRoutes installs (a): for each subscriber, a weighted
// path from the topology's server node; the path's first entry is the
// server host's identifier, derived from its reserved MAC by NodeMAC.
func (p *Programmer) programUnicastRoutes(ctx context.Context, plan Plan) ([]controller.FlowRule, error) {
	servers := p.topo.Servers()
	if len(servers) != 1 {
		return nil, fmt.Errorf("forwarding: exactly one server required")
	}
	server := servers[0]

	var all []controller.FlowRule
	for _, sub := range plan.Subscribers {
		path, err := p.topo.WeightedPath(server, sub)
		if err != nil {
			return nil, err
		}
		dpids, err := p.dpidPath(path)
		if err != nil {
			return nil, err
		}

		_, subIP, subErr := p.hostIP(sub)
		if subErr != nil {
			return nil, subErr
		}
		matches := controller.BuildMatches(map[string]string{"eth_type": "0x0800", "ipv4_dst": subIP})
		rules := controller.BuildFlowRulesFromPath(dpids, matches, controller.DefaultPriority)
		all = append(all, rules...)
	}

	ok, err := p.ca.InstallFlowRules(ctx, all)
	if err != nil {
		return all, err
	}
	if !ok {
		p.log.Error().Msg("one or more unicast route installs failed (soft failure, continuing)")
	}
	return all, nil
}

// programDataPathProbes installs (b): forward+reverse rules per gateway
// keyed purely on UDP source port so multiple data paths coexist
// (§4.5b, §8 invariant 4: symmetric under (udp_src,udp_dst) swap).
func (p *Programmer) programDataPathProbes(ctx context.Context, plan Plan) ([]controller.FlowRule, error) {
	servers := p.topo.Servers()
	if len(servers) != 1 {
		return nil, fmt.Errorf("forwarding: exactly one server required")
	}
	server := servers[0]
	clouds := p.topo.Clouds()
	if len(clouds) == 0 {
		return nil, nil
	}
	cloud := clouds[0]

	var all []controller.FlowRule
	for i, gw := range plan.Gateways {
		srcPort := plan.ProbeBasePort + i

		toGw, err := p.topo.WeightedPath(server, gw)
		if err != nil {
			return nil, err
		}
		gwToCloud, err := p.topo.WeightedPath(gw, cloud)
		if err != nil {
			return nil, err
		}
		merged := topology.MergePaths(toGw, gwToCloud)
		dpids, err := p.dpidPath(merged)
		if err != nil {
			return nil, err
		}

		fwdMatch := controller.BuildMatches(map[string]string{"eth_type": "0x0800", "udp_src": itoa(srcPort), "udp_dst": itoa(plan.EchoPort)})
		all = append(all, controller.BuildFlowRulesFromPath(dpids, fwdMatch, controller.DefaultPriority)...)

		reversed := make([]string, len(dpids))
		copy(reversed, dpids)
		reverseStrings(reversed)
		revMatch := controller.BuildMatches(map[string]string{"eth_type": "0x0800", "udp_src": itoa(plan.EchoPort), "udp_dst": itoa(srcPort)})
		all = append(all, controller.BuildFlowRulesFromPath(reversed, revMatch, controller.DefaultPriority)...)
	}

	ok, err := p.ca.InstallFlowRules(ctx, all)
	if err != nil {
		return all, err
	}
	if !ok {
		p.log.Error().Msg("one or more probe route installs failed (soft failure, continuing)")
	}
	return all, nil
}

// programCloudToSubscriberRoutes installs (c): keeps the controller
// from reactively rerouting around quake-induced failures before RideD
// gets a chance to recover on its own (§4.5c).
func (p *Programmer) programCloudToSubscriberRoutes(ctx context.Context, plan Plan) ([]controller.FlowRule, error) {
	if plan.CloudIP == "" {
		return nil, nil
	}
	var all []controller.FlowRule
	for _, sub := range plan.Subscribers {
		_, subIP, err := p.hostIP(sub)
		if err != nil {
			return nil, err
		}
		for _, gw := range plan.Gateways {
			path, err := p.topo.WeightedPath(gw, sub)
			if err != nil {
				return nil, err
			}
			dpids, err := p.dpidPath(path)
			if err != nil {
				return nil, err
			}
			matches := controller.BuildMatches(map[string]string{"eth_type": "0x0800", "ipv4_src": plan.CloudIP, "ipv4_dst": subIP})
			all = append(all, controller.BuildFlowRulesFromPath(dpids, matches, controller.DefaultPriority)...)
		}
	}

	ok, err := p.ca.InstallFlowRules(ctx, all)
	if err != nil {
		return all, err
	}
	if !ok {
		p.log.Error().Msg("one or more cloud-to-subscriber route installs failed (soft failure, continuing)")
	}
	return all, nil
}

// programMulticastTrees installs (d): one group+flow set per entry of
// the multicast address pool (§4.5d).
func (p *Programmer) programMulticastTrees(ctx context.Context, plan Plan) ([]controller.GroupRule, []controller.FlowRule, error) {
	servers := p.topo.Servers()
	if len(servers) != 1 {
		return nil, nil, fmt.Errorf("forwarding: exactly one server required")
	}
	server := servers[0]

	var allGroups []controller.GroupRule
	var allFlows []controller.FlowRule

	for _, addr := range plan.McastPool {
		tree, err := p.topo.MulticastTree(server, plan.Subscribers, plan.TreeAlgorithm)
		if err != nil {
			return nil, nil, err
		}

		nodeDpid := make(map[string]string, len(tree.Nodes))
		for _, n := range tree.Nodes {
			dpid, err := p.dpidFor(n)
			if err != nil {
				return nil, nil, err
			}
			nodeDpid[n] = dpid
		}

		srcDpid, err := p.dpidFor(server)
		if err != nil {
			return nil, nil, err
		}

		matches := controller.BuildMatches(map[string]string{"eth_type": "0x0800", "ipv4_dst": addr.IPv4, "udp_src": itoa(addr.SrcPort)})
		groups, flows := controller.BuildFlowRulesFromMulticastTree(nodeDpid, tree.Branches(), srcDpid, matches)

		for _, g := range groups {
			ok, err := p.ca.InstallGroup(ctx, g)
			if err != nil {
				return allGroups, allFlows, err
			}
			if !ok {
				p.log.Error().Str("dpid", g.Dpid).Msg("group install failed (soft failure, continuing)")
			}
			allGroups = append(allGroups, g)
		}
		for _, f := range flows {
			allFlows = append(allFlows, f)
		}
	}

	ok, err := p.ca.InstallFlowRules(ctx, allFlows)
	if err != nil {
		return allGroups, allFlows, err
	}
	if !ok {
		p.log.Error().Msg("one or more multicast flow installs failed (soft failure, continuing)")
	}
	return allGroups, allFlows, nil
}

func (p *Programmer) hostIP(name string) (string, string, error) {
	n, ok := p.topo.Node(name)
	if !ok {
		return "", "", fmt.Errorf("forwarding: unknown host %q", name)
	}
	return topology.NodeMAC(n)
}

func itoa(i int) string {
	return fmt.Sprintf("%d", i)
}

func reverseStrings(s []string) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
