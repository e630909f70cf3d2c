package controller

import (
	"fmt"
	"strings"

	"github.com/kbenson/ride-harness/pkg/topology"
)

// Dialect hides controller-specific DPID formatting behind a common
// interface (§4.3: "DPID formatting is controller-dialect-dependent").
type Dialect interface {
	// FormatSwitchDpid converts a raw hex DPID into this controller's
	// on-the-wire representation (e.g. ONOS wants "of:<hex>").
	FormatSwitchDpid(raw string) string
	// FormatHostID converts a MAC address into this controller's
	// on-the-wire host identifier.
	FormatHostID(mac string) string
}

// ONOSDialect formats DPIDs as "of:<hex>" and host IDs as "<MAC>/None",
// matching the original experiment driver's ONOS-specific formatting
// (`host.defaultIntf().MAC().upper() + '/None'`).
type ONOSDialect struct{}

func (ONOSDialect) FormatSwitchDpid(raw string) string { return "of:" + raw }
func (ONOSDialect) FormatHostID(mac string) string     { return strings.ToUpper(mac) + "/None" }

// BareDialect passes identifiers through unchanged, for controllers that
// expect the raw DPID/MAC with no wrapping.
type BareDialect struct{}

func (BareDialect) FormatSwitchDpid(raw string) string { return raw }
func (BareDialect) FormatHostID(mac string) string     { return mac }

// DialectByName resolves the configured dialect name to an
// implementation, defaulting to ONOS (§6's controller config).
func DialectByName(name string) (Dialect, error) {
	switch name {
	case "", "onos":
		return ONOSDialect{}, nil
	case "bare":
		return BareDialect{}, nil
	default:
		return nil, fmt.Errorf("controller: unknown dialect %q", name)
	}
}

// DpidForSwitch formats a topology switch/edge-switch node's raw DPID
// through the dialect.
func DpidForSwitch(d Dialect, n topology.Node) (string, error) {
	raw, err := topology.DpidForNode(n)
	if err != nil {
		return "", err
	}
	return d.FormatSwitchDpid(raw), nil
}

// DpidForHost formats a host's MAC address through the dialect, the
// dpid_for_host operation of §4.3.
func DpidForHost(d Dialect, mac string) string {
	return d.FormatHostID(mac)
}

// DpidForNode dispatches on the node's Kind (switch vs host), the
// typed-variant dispatch called for by §4.3/§9: hosts format via MAC,
// everything else formats via the derived switch DPID.
func DpidForNode(d Dialect, n topology.Node, mac string) (string, error) {
	if n.Kind == topology.KindHost {
		return DpidForHost(d, mac), nil
	}
	return DpidForSwitch(d, n)
}
