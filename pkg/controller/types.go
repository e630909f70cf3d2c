// Package controller implements the Controller Adapter (CA): an
// abstract REST client to a remote SDN controller, hiding
// controller-dialect details (DPID formatting, endpoint paths) behind
// the operations enumerated in §4.3.
package controller

// HostInfo is the controller's view of a discovered host.
type HostInfo struct {
	MAC  string
	IP   string
	Dpid string // the switch DPID the host was last seen attached to
	Port int
}

// SwitchInfo is the controller's view of a discovered switch.
type SwitchInfo struct {
	Dpid string
}

// Match is a controller-agnostic predicate map; keys are the
// controller-agnostic predicate names of §3 (eth_type, ipv4_src,
// ipv4_dst, udp_src, udp_dst, ...).
type Match map[string]string

// Action is one step of a FlowRule's action list. Exactly one of
// OutputPort, SetField, or GroupID is set.
type Action struct {
	OutputPort int
	SetField   map[string]string
	GroupID    int
}

// Output constructs an output-port action.
func Output(port int) Action { return Action{OutputPort: port} }

// ToGroup constructs a group action.
func ToGroup(groupID int) Action { return Action{GroupID: groupID} }

// FlowRule is the controller-agnostic flow-rule representation of §3.
type FlowRule struct {
	Dpid     string
	Priority int
	Match    Match
	Actions  []Action
}

// GroupRule is the controller-agnostic group-table representation of
// §3, used for multicast replication; each bucket is an action list.
type GroupRule struct {
	Dpid    string
	GroupID int
	Buckets [][]Action
}
