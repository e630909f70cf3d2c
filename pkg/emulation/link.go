package emulation

import (
	"context"
	"fmt"
	"io"
)

// applyLinkParams installs the nominal tc netem discipline for a link
// on both endpoints' veth interfaces, adapted from the teacher's
// pkg/injection/l3l4 tc/comcast wrappers but targeting the link's
// emulation-time bandwidth/delay/jitter/loss rather than an
// injected fault.
func (d *Driver) applyLinkParams(ctx context.Context, l LinkSpec) error {
	cmdA := netemCommand(l.BwMbps, l.LatencyMs, l.JitterMs, l.LossPct)
	if _, err := d.RunInHost(ctx, l.A, cmdA, nil, io.Discard, io.Discard); err != nil {
		return err
	}
	if _, err := d.RunInHost(ctx, l.B, cmdA, nil, io.Discard, io.Discard); err != nil {
		return err
	}
	return nil
}

// netemCommand builds a `tc qdisc replace ... netem` invocation,
// grounded on the teacher's l3l4.TCWrapper.buildTCNetemCommand.
func netemCommand(bwMbps, latencyMs, jitterMs, lossPct float64) []string {
	args := []string{"tc", "qdisc", "replace", "dev", "eth0", "root", "netem"}
	if latencyMs > 0 {
		args = append(args, "delay", fmt.Sprintf("%.1fms", latencyMs))
		if jitterMs > 0 {
			args = append(args, fmt.Sprintf("%.1fms", jitterMs))
		}
	}
	if lossPct > 0 {
		args = append(args, "loss", fmt.Sprintf("%.2f%%", lossPct))
	}
	return args
}

// ConfigLink toggles a link's admin state without destroying it (§4.2).
// up=false installs a 100% netem loss discipline so the link carries no
// traffic; up=true restores the link's nominal parameters. Must
// complete within ~1s: this is a single exec round-trip per endpoint.
func (d *Driver) ConfigLink(ctx context.Context, a, b string, up bool) error {
	l, ok := d.findLink(a, b)
	if !ok {
		return fmt.Errorf("emulation: no such link %s-%s", a, b)
	}

	var cmd []string
	if up {
		cmd = netemCommand(l.BwMbps, l.LatencyMs, l.JitterMs, l.LossPct)
	} else {
		cmd = []string{"tc", "qdisc", "replace", "dev", "eth0", "root", "netem", "loss", "100%"}
	}

	if _, err := d.RunInHost(ctx, a, cmd, nil, io.Discard, io.Discard); err != nil {
		return fmt.Errorf("emulation: config_link on %q: %w", a, err)
	}
	if _, err := d.RunInHost(ctx, b, cmd, nil, io.Discard, io.Discard); err != nil {
		return fmt.Errorf("emulation: config_link on %q: %w", b, err)
	}
	return nil
}

func (d *Driver) findLink(a, b string) (LinkSpec, bool) {
	for _, l := range d.links {
		if (l.A == a && l.B == b) || (l.A == b && l.B == a) {
			return l, true
		}
	}
	return LinkSpec{}, false
}
