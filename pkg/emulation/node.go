package emulation

import (
	"context"
	"fmt"
	"io"

	"github.com/docker/docker/api/types/container"
)

// StopNode forcibly removes a switch/host from service (§4.2). When
// deleteInterfaces is false (the quake's normal usage, §4.7) the
// container is stopped but not removed, so its veth interfaces remain
// and neighbouring switches observe a port-down event rather than an
// interface disappearing — adapted from the teacher's
// container.RestartManager stop/wait polling idiom, used here for a
// one-way stop rather than a restart.
func (d *Driver) StopNode(ctx context.Context, name string, deleteInterfaces bool) error {
	id, ok := d.containerID[name]
	if !ok {
		return fmt.Errorf("emulation: unknown node %q", name)
	}

	timeout := 5
	if err := d.docker.ContainerStop(ctx, id, container.StopOptions{Timeout: &timeout}); err != nil {
		return fmt.Errorf("emulation: stop_node %q: %w", name, err)
	}

	if deleteInterfaces {
		if err := d.docker.ContainerRemove(ctx, id, container.RemoveOptions{Force: true}); err != nil {
			return fmt.Errorf("emulation: stop_node %q cleanup: %w", name, err)
		}
		delete(d.containerID, name)
	}
	return nil
}

// SetDefaultRoute applies an `ip route` default-route command inside a
// host for the given gateway IP and interface (§4.2), used for the
// NAT's out-of-band controller-access route.
func (d *Driver) SetDefaultRoute(ctx context.Context, host, viaIP, iface string) error {
	_, err := d.RunInHost(ctx, host, []string{"ip", "route", "replace", "default", "via", viaIP, "dev", iface}, nil, io.Discard, io.Discard)
	return err
}

// AddHostRoute applies a static `ip route add` for a single destination
// IPv4 (§4.2), used for each multicast address in the address pool.
func (d *Driver) AddHostRoute(ctx context.Context, host, ipv4, iface string) error {
	_, err := d.RunInHost(ctx, host, []string{"ip", "route", "replace", ipv4, "dev", iface}, nil, io.Discard, io.Discard)
	return err
}
