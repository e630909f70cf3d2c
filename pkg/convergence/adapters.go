package convergence

import (
	"context"

	"github.com/kbenson/ride-harness/pkg/controller"
	"github.com/kbenson/ride-harness/pkg/emulation"
)

// EmulationView adapts *emulation.Driver to the View interface.
type EmulationView struct {
	Driver *emulation.Driver
}

func (v EmulationView) Hosts(ctx context.Context) ([]string, error)    { return v.Driver.Hosts(), nil }
func (v EmulationView) Switches(ctx context.Context) ([]string, error) { return v.Driver.Switches(), nil }
func (v EmulationView) LinkCount(ctx context.Context) (int, error)     { return v.Driver.LinkCount(), nil }

// ControllerView adapts *controller.Client to the View interface.
type ControllerView struct {
	Client *controller.Client
}

func (v ControllerView) Hosts(ctx context.Context) ([]string, error) {
	hosts, err := v.Client.Hosts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(hosts))
	for i, h := range hosts {
		out[i] = h.MAC
	}
	return out, nil
}

func (v ControllerView) Switches(ctx context.Context) ([]string, error) {
	switches, err := v.Client.Switches(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(switches))
	for i, s := range switches {
		out[i] = s.Dpid
	}
	return out, nil
}

func (v ControllerView) LinkCount(ctx context.Context) (int, error) {
	return v.Client.LinkCount(ctx)
}
