package supervisor

import (
	"math/rand"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSupervisor() *Supervisor {
	return &Supervisor{
		log:  zerolog.Nop(),
		rand: rand.New(rand.NewSource(1)),
	}
}

func TestLaunchGeneratorsRejectsTooManyRequested(t *testing.T) {
	s := newTestSupervisor()
	err := s.LaunchGenerators(nil, "s0", []string{"h0-0", "h0-1"}, 3, 5.0, 6000)
	require.Error(t, err)
}

func TestPickNIsDeterministicUnderFixedSeed(t *testing.T) {
	s1 := New(nil, "", "", 42, zerolog.Nop())
	s2 := New(nil, "", "", 42, zerolog.Nop())

	hosts := []string{"h0-0", "h0-1", "h0-2", "h0-3", "h0-4"}
	a := s1.pickN(hosts, 3)
	b := s2.pickN(hosts, 3)

	assert.Equal(t, a, b)
	assert.Len(t, a, 3)
}

func TestPickNClampsToAvailableHosts(t *testing.T) {
	s := New(nil, "", "", 7, zerolog.Nop())
	hosts := []string{"h0-0", "h0-1"}
	picked := s.pickN(hosts, 5)
	assert.Len(t, picked, 2)
}

func TestRegistryRecordsRolesInLaunchOrder(t *testing.T) {
	s := newTestSupervisor()
	s.registry.entries = append(s.registry.entries,
		handleEntry{role: RoleServer, host: "s0"},
		handleEntry{role: RoleClient, host: "h0-0"},
		handleEntry{role: RoleCloud, host: "x0"},
	)

	var roles []Role
	for _, e := range s.registry.entries {
		roles = append(roles, e.role)
	}
	assert.Equal(t, []Role{RoleServer, RoleClient, RoleCloud}, roles)
}
