package convergence

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubView struct {
	hosts    []string
	switches []string
	links    int
}

func (s stubView) Hosts(ctx context.Context) ([]string, error)    { return s.hosts, nil }
func (s stubView) Switches(ctx context.Context) ([]string, error) { return s.switches, nil }
func (s stubView) LinkCount(ctx context.Context) (int, error)     { return s.links, nil }

type countingDiscoverer struct{ calls int }

func (d *countingDiscoverer) ElicitDiscovery(ctx context.Context) error {
	d.calls++
	return nil
}

func TestConvergeImmediateMatch(t *testing.T) {
	c := New(zerolog.Nop())
	c.BackoffMatch = time.Millisecond
	c.BackoffMismatch = time.Millisecond

	emu := stubView{hosts: []string{"h1", "h2"}, switches: []string{"a1"}, links: 2}
	ca := stubView{hosts: []string{"h1", "h2"}, switches: []string{"a1"}, links: 2}
	disc := &countingDiscoverer{}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := c.Converge(ctx, emu, ca, Expectation{Hosts: 2, Switches: 1, Links: 2}, disc)
	require.NoError(t, err)
	assert.Equal(t, 1, disc.calls)
}

func TestConvergeReElicitsOnRepeatedMismatch(t *testing.T) {
	c := New(zerolog.Nop())
	c.BackoffMatch = time.Millisecond
	c.BackoffMismatch = time.Millisecond
	c.ReElicitEvery = 3

	emu := stubView{hosts: []string{"h1", "h2"}, switches: []string{"a1"}, links: 2}
	ca := stubView{hosts: []string{"h1"}, switches: []string{"a1"}, links: 2} // permanent mismatch
	disc := &countingDiscoverer{}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := c.Converge(ctx, emu, ca, Expectation{Hosts: 2, Switches: 1, Links: 2}, disc)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, disc.calls, 2)
}
