package topology

import (
	"fmt"
	"regexp"
	"strconv"
)

// Identity derivation follows the naming convention fixed by §6 of the
// topology file format: host names begin with "h"; major/minor building
// index is encoded in the name and mirrored into the IPv4 octets;
// switch names carry a kind prefix letter ("a" minor-building switch,
// server/cloud names get rewritten to an edge-switch name with prefix
// "e"/"f" respectively, matching the original experiment driver's
// `name.replace('s', 'e')` / `name.replace('x', 'f')` rule).

var hostNameRE = regexp.MustCompile(`^h(\d+)-(\d+)$`)
var switchNameRE = regexp.MustCompile(`^([a-z])(\d+)$`)
var serverCloudNameRE = regexp.MustCompile(`^[sx](\d+)$`)

// HostIPMAC derives the IPv4 address and MAC address for a host name of
// the form "h<major>-<minor>". Major building 0 is the server's home
// building and uses 10.131.0.<minor+1>; all other majors use
// 10.200.<major>.<minor+1>, matching the "major vs minor building" scheme
// called out in §4.1/§6.
func HostIPMAC(name string) (ip string, mac string, err error) {
	m := hostNameRE.FindStringSubmatch(name)
	if m == nil {
		return "", "", fmt.Errorf("topology: host name %q does not match h<major>-<minor>", name)
	}
	major, _ := strconv.Atoi(m[1])
	minor, _ := strconv.Atoi(m[2])

	if major == 0 {
		ip = fmt.Sprintf("10.131.0.%d", minor+1)
	} else {
		ip = fmt.Sprintf("10.200.%d.%d", major, minor+1)
	}
	mac = fmt.Sprintf("00:00:00:%02x:%02x:%02x", major, minor, minor)
	return ip, mac, nil
}

// SwitchDpid derives the data-plane identifier for a switch name of the
// form "<letter><index>" (e.g. "a3", "e0", "f0"). The prefix letter
// encodes kind (minor-building "a", server-edge "e", cloud-edge "f")
// and is folded into the top byte of the DPID so switches of different
// kinds sharing the same index never collide — per §3's "prefix letter
// encodes kind ... remaining digits encode index" and the injectivity
// requirement of testable property 7 (§8).
func SwitchDpid(name string) (string, error) {
	m := switchNameRE.FindStringSubmatch(name)
	if m == nil {
		return "", fmt.Errorf("topology: switch name %q does not match <letter><index>", name)
	}
	letter := m[1][0]
	idx, _ := strconv.Atoi(m[2])
	return fmt.Sprintf("%02x%014x", letter, idx), nil
}

// EdgeSwitchName renames a server or cloud host name into its dedicated
// edge-switch name, implementing the multi-homing HACK of §4.2: servers
// get prefix "e", clouds get prefix "f". This mirrors the original
// experiment driver's `server.replace('s','e')` / `cloud.replace('x','f')`
// renaming rule exactly (same digits, new leading letter).
func EdgeSwitchName(hostName string, isCloud bool) (string, error) {
	if len(hostName) < 2 {
		return "", fmt.Errorf("topology: host name %q too short to derive an edge switch", hostName)
	}
	prefix := "e"
	if isCloud {
		prefix = "f"
	}
	return prefix + hostName[1:], nil
}

// NodeMAC derives the IPv4/MAC pair for any host-like node — a plain
// host, the server, or the cloud. The server and cloud host names
// ("s<idx>", "x<idx>") are a late addition not covered by the
// major/minor building scheme, so they get their own reserved MAC
// prefixes (0xFE for server, 0xFD for cloud) disjoint from ordinary
// hosts (§4.5a: "the real server-host DPID... is a late addition not in
// the TM").
func NodeMAC(n Node) (ip string, mac string, err error) {
	switch n.Kind {
	case KindHost:
		return HostIPMAC(n.Name)
	case KindServer, KindCloud:
		m := serverCloudNameRE.FindStringSubmatch(n.Name)
		if m == nil {
			return "", "", fmt.Errorf("topology: server/cloud name %q does not match s<idx>/x<idx>", n.Name)
		}
		idx, _ := strconv.Atoi(m[1])
		prefix := byte(0xFE)
		ipBase := "10.131.254"
		if n.Kind == KindCloud {
			prefix = 0xFD
			ipBase = "10.131.253"
		}
		return fmt.Sprintf("%s.%d", ipBase, idx+1), fmt.Sprintf("00:00:00:%02x:00:%02x", prefix, idx), nil
	default:
		return "", "", fmt.Errorf("topology: node %q (kind %q) has no host-style IP/MAC", n.Name, n.Kind)
	}
}

// DpidForNode dispatches DPID derivation on the node's Kind, the typed
// variant dispatch called for in §9 (replacing ad-hoc isinstance checks).
// Hosts have no DPID of their own — callers that need a host's
// controller-facing identity should use HostIPMAC and the host's MAC,
// per §4.3's dpid_for_host/dpid_for_node split.
func DpidForNode(n Node) (string, error) {
	switch n.Kind {
	case KindSwitch, KindCloudGateway:
		return SwitchDpid(n.Name)
	case KindServer:
		edge, err := EdgeSwitchName(n.Name, false)
		if err != nil {
			return "", err
		}
		return SwitchDpid(edge)
	case KindCloud:
		edge, err := EdgeSwitchName(n.Name, true)
		if err != nil {
			return "", err
		}
		return SwitchDpid(edge)
	case KindHost:
		return "", fmt.Errorf("topology: host %q has no switch DPID; use dpid_for_host via the controller adapter", n.Name)
	default:
		return "", fmt.Errorf("topology: unknown node kind %q for %q", n.Kind, n.Name)
	}
}
