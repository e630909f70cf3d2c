// Package verification implements the post-reset checks of §12: that
// the Controller Adapter's view (hosts/switches/groups) is empty and
// that no stray `tc` qdisc remains on any emulated interface, grounded
// on the teacher's namespace-verification shape but retargeted from
// iptables/nftables/Envoy sidecar artifacts to controller and netem
// state.
package verification

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kbenson/ride-harness/pkg/controller"
	"github.com/kbenson/ride-harness/pkg/emulation"
)

// Verifier checks post-teardown controller and emulation state.
type Verifier struct {
	driver *emulation.Driver
	ca     *controller.Client
}

// New creates a new verifier.
func New(driver *emulation.Driver, ca *controller.Client) *Verifier {
	return &Verifier{driver: driver, ca: ca}
}

// Result contains the results of a post-reset verification pass.
type Result struct {
	Clean           bool
	HostsFound      int
	SwitchesFound   int
	GroupsFound     int
	StrayQdiscHosts []string
	Details         []string
}

// VerifyControllerClean checks that the controller's hosts, switches
// and group tables are all empty after Reset (testable property 5,
// §8).
func (v *Verifier) VerifyControllerClean(ctx context.Context) (*Result, error) {
	result := &Result{Clean: true, Details: make([]string, 0)}

	hosts, err := v.ca.Hosts(ctx)
	if err != nil {
		return nil, fmt.Errorf("verification: list hosts: %w", err)
	}
	if len(hosts) > 0 {
		result.Clean = false
		result.HostsFound = len(hosts)
		result.Details = append(result.Details, fmt.Sprintf("%d host(s) still registered", len(hosts)))
	}

	switches, err := v.ca.Switches(ctx)
	if err != nil {
		return nil, fmt.Errorf("verification: list switches: %w", err)
	}
	if len(switches) > 0 {
		result.Clean = false
		result.SwitchesFound = len(switches)
		result.Details = append(result.Details, fmt.Sprintf("%d switch(es) still registered", len(switches)))
	}

	groups, err := v.ca.GetGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("verification: list groups: %w", err)
	}
	if len(groups) > 0 {
		result.Clean = false
		result.GroupsFound = len(groups)
		result.Details = append(result.Details, fmt.Sprintf("%d group(s) still installed", len(groups)))
	}

	return result, nil
}

// VerifyNoStrayQdisc checks every given emulated host for a netem qdisc
// surviving teardown — a link whose ConfigLink/netemCommand call was
// never undone.
func (v *Verifier) VerifyNoStrayQdisc(ctx context.Context, hosts []string) (*Result, error) {
	result := &Result{Clean: true, Details: make([]string, 0)}

	for _, host := range hosts {
		output, err := v.runSync(ctx, host, []string{"tc", "qdisc", "show"})
		if err != nil {
			// A host that is already gone (post-Cleanup) has nothing to check.
			continue
		}
		if strings.Contains(output, "netem") {
			result.Clean = false
			result.StrayQdiscHosts = append(result.StrayQdiscHosts, host)
			result.Details = append(result.Details, fmt.Sprintf("%s: stray netem qdisc: %s", host, strings.TrimSpace(output)))
		}
	}

	return result, nil
}

// VerifyAll runs both checks and merges their findings.
func (v *Verifier) VerifyAll(ctx context.Context, hosts []string) (*Result, error) {
	cc, err := v.VerifyControllerClean(ctx)
	if err != nil {
		return nil, err
	}
	qd, err := v.VerifyNoStrayQdisc(ctx, hosts)
	if err != nil {
		return nil, err
	}
	return &Result{
		Clean:           cc.Clean && qd.Clean,
		HostsFound:      cc.HostsFound,
		SwitchesFound:   cc.SwitchesFound,
		GroupsFound:     cc.GroupsFound,
		StrayQdiscHosts: qd.StrayQdiscHosts,
		Details:         append(cc.Details, qd.Details...),
	}, nil
}

// runSync executes a command in a host and blocks until it completes,
// returning its captured stdout. emulation.Driver.RunInHost is
// otherwise fire-and-forget; verification needs the output synchronously.
func (v *Verifier) runSync(ctx context.Context, host string, argv []string) (string, error) {
	var buf bytes.Buffer
	handle, err := v.driver.RunInHost(ctx, host, argv, nil, &buf, &buf)
	if err != nil {
		return "", err
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		running, _, err := v.driver.Poll(ctx, handle)
		if err != nil {
			return "", err
		}
		if !running {
			return buf.String(), nil
		}
		select {
		case <-time.After(100 * time.Millisecond):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return buf.String(), nil
}
