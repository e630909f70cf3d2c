// Package run implements the Run Lifecycle (RL): per-trial RunPlan
// resolution and the outer state machine that drives a trial from
// topology load through teardown and reporting, per §3/§4.8.
package run

import (
	"fmt"
	"math/rand"

	"github.com/kbenson/ride-harness/pkg/forwarding"
	"github.com/kbenson/ride-harness/pkg/topology"
)

// Plan is the per-trial RunPlan of §3: publisher/subscriber selection,
// the quake's failed-links/failed-nodes set, generator count and
// bandwidth, multicast tree count/heuristic/algorithm, comparison mode,
// and the cloud/RideC/RideD toggles.
type Plan struct {
	Publishers  []string
	Subscribers []string
	FailedLinks [][2]string
	FailedNodes []string

	NGenerators     int
	GeneratorBwMbps float64

	Ntrees                int
	TreeConstructionAlgo  string
	TreeChoosingHeuristic string
	ComparisonMode        string // "none" | "unicast" | "oracle"

	WithCloud  bool
	WithRideC  bool
	WithRideD  bool
	ErrorRate  float64

	McastPool []forwarding.McastAddress
}

// Resolver builds Plans from a Topology using a seeded PRNG, so trials
// are reproducible (§3 Lifecycle note).
type Resolver struct {
	rng *rand.Rand
}

// NewResolver constructs a Resolver seeded for reproducibility.
func NewResolver(seed int64) *Resolver {
	return &Resolver{rng: rand.New(rand.NewSource(seed))}
}

// Options parameterises Resolve with the knobs exposed on the CLI (§6).
type Options struct {
	NPublishers  int
	NSubscribers int
	NFailedLinks int
	NFailedNodes int

	NGenerators     int
	GeneratorBwMbps float64

	Ntrees                int
	TreeConstructionAlgo  string
	TreeChoosingHeuristic string
	ComparisonMode        string

	WithCloud bool
	WithRideC bool
	WithRideD bool
	ErrorRate float64

	McastBaseIPv4   string
	McastBaseUDPPort int
}

// Resolve picks a RunPlan for one trial: publishers/subscribers are
// chosen at random from the topology's candidate hosts, failed links
// from its full link set, failed nodes from its switches and hosts, and
// comparison_mode=oracle is rejected before anything is chosen. The multicast address
// pool is generated by advancing the base IPv4/port by +1 per tree
// (§3: "Uniqueness of both is a precondition").
func (r *Resolver) Resolve(topo *topology.Topology, opts Options) (*Plan, error) {
	if opts.ComparisonMode == "oracle" {
		return nil, fmt.Errorf("run: comparison_mode=oracle is not implemented")
	}
	pubCandidates := topo.Publishers()
	subCandidates := topo.Subscribers()
	if len(pubCandidates) == 0 {
		pubCandidates = topo.Hosts()
	}
	if len(subCandidates) == 0 {
		subCandidates = topo.Hosts()
	}

	pubs, err := r.chooseN(pubCandidates, opts.NPublishers)
	if err != nil {
		return nil, fmt.Errorf("run: publishers: %w", err)
	}
	subs, err := r.chooseN(subCandidates, opts.NSubscribers)
	if err != nil {
		return nil, fmt.Errorf("run: subscribers: %w", err)
	}

	links := topo.Links()
	failedLinkIdx, err := r.chooseIndices(len(links), opts.NFailedLinks)
	if err != nil {
		return nil, fmt.Errorf("run: failed_links: %w", err)
	}
	var failedLinks [][2]string
	for _, i := range failedLinkIdx {
		failedLinks = append(failedLinks, [2]string{links[i].A, links[i].B})
	}

	nodeCandidates := append(append([]string{}, topo.Switches()...), topo.Hosts()...)
	failedNodes, err := r.chooseN(nodeCandidates, opts.NFailedNodes)
	if err != nil {
		return nil, fmt.Errorf("run: failed_nodes: %w", err)
	}

	pool, err := buildMcastPool(opts.McastBaseIPv4, opts.McastBaseUDPPort, opts.Ntrees)
	if err != nil {
		return nil, err
	}

	return &Plan{
		Publishers:            pubs,
		Subscribers:           subs,
		FailedLinks:           failedLinks,
		FailedNodes:           failedNodes,
		NGenerators:           opts.NGenerators,
		GeneratorBwMbps:       opts.GeneratorBwMbps,
		Ntrees:                opts.Ntrees,
		TreeConstructionAlgo:  opts.TreeConstructionAlgo,
		TreeChoosingHeuristic: opts.TreeChoosingHeuristic,
		ComparisonMode:        opts.ComparisonMode,
		WithCloud:             opts.WithCloud,
		WithRideC:             opts.WithRideC,
		WithRideD:             opts.WithRideD,
		ErrorRate:             opts.ErrorRate,
		McastPool:             pool,
	}, nil
}

// chooseN picks n distinct elements from candidates by shuffling a copy
// with the seeded generator and taking the first n. The result is left
// in shuffled order, which is deterministic given a fixed seed and
// candidate order.
func (r *Resolver) chooseN(candidates []string, n int) ([]string, error) {
	if n > len(candidates) {
		return nil, fmt.Errorf("requested %d but only %d candidates available", n, len(candidates))
	}
	shuffled := append([]string(nil), candidates...)
	r.rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	return shuffled[:n], nil
}

func (r *Resolver) chooseIndices(total, n int) ([]int, error) {
	if n > total {
		return nil, fmt.Errorf("requested %d but only %d candidates available", n, total)
	}
	idx := make([]int, total)
	for i := range idx {
		idx[i] = i
	}
	r.rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
	return idx[:n], nil
}

// buildMcastPool constructs the MulticastAddressPool of §3: ntrees
// entries, base IPv4 advancing by +1 per tree, source port advancing in
// parallel.
func buildMcastPool(baseIPv4 string, basePort, ntrees int) ([]forwarding.McastAddress, error) {
	if ntrees == 0 {
		return nil, nil
	}
	ip, err := parseIPv4(baseIPv4)
	if err != nil {
		return nil, fmt.Errorf("run: invalid multicast base address %q: %w", baseIPv4, err)
	}

	pool := make([]forwarding.McastAddress, ntrees)
	for i := 0; i < ntrees; i++ {
		pool[i] = forwarding.McastAddress{IPv4: advanceIPv4(ip, i), SrcPort: basePort + i}
	}
	return pool, nil
}

func parseIPv4(s string) ([4]byte, error) {
	var out [4]byte
	var a, b, c, d int
	n, err := fmt.Sscanf(s, "%d.%d.%d.%d", &a, &b, &c, &d)
	if err != nil || n != 4 {
		return out, fmt.Errorf("malformed IPv4 %q", s)
	}
	out[0], out[1], out[2], out[3] = byte(a), byte(b), byte(c), byte(d)
	return out, nil
}

func advanceIPv4(base [4]byte, delta int) string {
	v := uint32(base[0])<<24 | uint32(base[1])<<16 | uint32(base[2])<<8 | uint32(base[3])
	v += uint32(delta)
	return fmt.Sprintf("%d.%d.%d.%d", byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}
