package controller

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildFlowRulesFromPathDropsHostEndpoints(t *testing.T) {
	path := []string{"hostA-dpid", "sw1", "sw2", "hostB-dpid"}
	rules := BuildFlowRulesFromPath(path, BuildMatches(map[string]string{"ipv4_dst": "10.0.0.1"}), 0)
	require.Len(t, rules, 2)
	assert.Equal(t, "sw1", rules[0].Dpid)
	assert.Equal(t, "sw2", rules[1].Dpid)
}

func TestBuildFlowRulesFromMulticastTreeDedupesBuckets(t *testing.T) {
	nodeDpid := map[string]string{
		"src": "of:src", "branch": "of:branch", "leaf1": "of:leaf1", "leaf2": "of:leaf2",
	}
	branches := map[string][]string{
		"src":    {"branch"},
		"branch": {"src", "leaf1", "leaf2"},
		"leaf1":  {"branch"},
		"leaf2":  {"branch"},
	}
	groups, flows := BuildFlowRulesFromMulticastTree(nodeDpid, branches, "of:src", BuildMatches(map[string]string{"ipv4_dst": "224.0.1.1"}))

	require.Len(t, groups, 1)
	assert.Len(t, groups[0].Buckets, 2)
	assert.NotEmpty(t, flows)
}

func TestBuildFlowRulesFromMulticastTreePassThroughIsNotABranch(t *testing.T) {
	// src -- mid -- branch -- {leaf1, leaf2}. "mid" has two tree
	// neighbours (src and branch) but one of them is parent-ward; it
	// must get a single-output flow rule, not a spurious 2-bucket group
	// pointing part of the way back toward the source.
	nodeDpid := map[string]string{
		"src": "of:src", "mid": "of:mid", "branch": "of:branch",
		"leaf1": "of:leaf1", "leaf2": "of:leaf2",
	}
	branches := map[string][]string{
		"src":    {"mid"},
		"mid":    {"src", "branch"},
		"branch": {"mid", "leaf1", "leaf2"},
		"leaf1":  {"branch"},
		"leaf2":  {"branch"},
	}
	groups, flows := BuildFlowRulesFromMulticastTree(nodeDpid, branches, "of:src", BuildMatches(map[string]string{"ipv4_dst": "224.0.1.1"}))

	require.Len(t, groups, 1)
	assert.Equal(t, "of:branch", groups[0].Dpid)
	assert.Len(t, groups[0].Buckets, 2)

	var midRule *FlowRule
	for i := range flows {
		if flows[i].Dpid == "of:mid" {
			midRule = &flows[i]
		}
	}
	require.NotNil(t, midRule, "mid must get its own flow rule, not be dropped")
	require.Len(t, midRule.Actions, 1)
	assert.Equal(t, "of:branch", midRule.Actions[0].SetField["next_hop_dpid"])
}

func TestDialectFormatting(t *testing.T) {
	onos, err := DialectByName("onos")
	require.NoError(t, err)
	assert.Equal(t, "of:0000000000000001", onos.FormatSwitchDpid("0000000000000001"))

	bare, err := DialectByName("bare")
	require.NoError(t, err)
	assert.Equal(t, "0000000000000001", bare.FormatSwitchDpid("0000000000000001"))

	_, err = DialectByName("unknown")
	require.Error(t, err)
}
