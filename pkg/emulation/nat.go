package emulation

import (
	"context"
	"fmt"
	"io"
)

// ConfigureNAT enables IP forwarding and installs a MASQUERADE rule on
// the NAT container so the campus network has out-of-band access to the
// real SDN controller (§4.2). Adapted from the teacher's
// pkg/injection/firewall iptables wrapper, repurposed from a
// fault-injection primitive into legitimate NAT plumbing: the original
// wrapper toggled DROP/REJECT rules to simulate a partition, here the
// same iptables-invocation idiom installs the accept/masquerade chain
// the experiment topology depends on instead.
func (d *Driver) ConfigureNAT(ctx context.Context, outboundIface string) error {
	if d.nat == nil {
		return fmt.Errorf("emulation: no NAT node staged")
	}

	enableForwarding := []string{"sysctl", "-w", "net.ipv4.ip_forward=1"}
	if _, err := d.RunInHost(ctx, d.nat.Name, enableForwarding, nil, io.Discard, io.Discard); err != nil {
		return fmt.Errorf("emulation: failed to enable IP forwarding on NAT: %w", err)
	}

	masquerade := []string{"iptables", "-t", "nat", "-A", "POSTROUTING", "-o", outboundIface, "-j", "MASQUERADE"}
	if _, err := d.RunInHost(ctx, d.nat.Name, masquerade, nil, io.Discard, io.Discard); err != nil {
		return fmt.Errorf("emulation: failed to install MASQUERADE rule: %w", err)
	}

	acceptForward := []string{"iptables", "-A", "FORWARD", "-i", outboundIface, "-j", "ACCEPT"}
	if _, err := d.RunInHost(ctx, d.nat.Name, acceptForward, nil, io.Discard, io.Discard); err != nil {
		return fmt.Errorf("emulation: failed to install FORWARD accept rule: %w", err)
	}

	return nil
}

// NATName returns the staged NAT node's container name, if any.
func (d *Driver) NATName() (string, bool) {
	if d.nat == nil {
		return "", false
	}
	return d.nat.Name, true
}
