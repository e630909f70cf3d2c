// Package supervisor implements the Process Supervisor (PS): it
// launches server, cloud, publisher, subscriber, and congestion-generator
// processes inside host namespaces, tracks their handles, and drains
// them on teardown with timeout-then-kill, per §4.6.
package supervisor

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/kbenson/ride-harness/pkg/emulation"
)

// Role identifies the kind of process a handle belongs to, used to
// order the drain sequence of §4.6/§9: clients -> server -> cloud ->
// generators.
type Role int

const (
	RoleClient Role = iota
	RoleServer
	RoleCloud
	RoleGenerator
)

// handleEntry pairs a process handle with its role and command, for
// draining and diagnostics.
type handleEntry struct {
	role    Role
	host    string
	argv    []string
	handle  *emulation.ProcessHandle
}

// Registry owns every child handle created during a trial — the
// "process-wide state" design note of §9: a scoped owner guaranteeing
// termination on all exit paths, replacing ad-hoc lists.
type Registry struct {
	entries []handleEntry
}

// Supervisor launches and drains application processes via the
// Emulation Driver.
type Supervisor struct {
	driver   *emulation.Driver
	logsDir  string
	rootEnv  []string
	log      zerolog.Logger
	registry Registry
	rand     *rand.Rand
}

// New constructs a Supervisor. Children are spawned with
// RIDE_MODULE_PATH set to componentRoot alone; an existing value of the
// variable is replaced, not prepended to.
func New(driver *emulation.Driver, logsDir, componentRoot string, seed int64, log zerolog.Logger) *Supervisor {
	return &Supervisor{
		driver:  driver,
		logsDir: logsDir,
		rootEnv: []string{"RIDE_MODULE_PATH=" + componentRoot},
		log:     log.With().Str("component", "supervisor").Logger(),
		rand:    rand.New(rand.NewSource(seed)),
	}
}

// LaunchServer starts the RideD sink, seismic alert aggregator, and (if
// ridec is enabled) a RideC application on the server host (§4.6).
func (s *Supervisor) LaunchServer(ctx context.Context, host string, specs map[Section][]ModuleSpec) error {
	return s.launch(ctx, RoleServer, host, specs)
}

// LaunchCloud starts the cloud's unicast RideD sink, alert aggregator,
// and UDP echo server (§4.6). The cloud never runs RideC.
func (s *Supervisor) LaunchCloud(ctx context.Context, host string, specs map[Section][]ModuleSpec) error {
	return s.launch(ctx, RoleCloud, host, specs)
}

// LaunchPublisher starts a seismic sensor and a congestion sensor on a
// publisher host (§4.6). It logs seismicDelay and a randomised 5-10s
// congestion-sensor delay; neither delay is passed to the launched
// processes, which start as soon as they are spawned.
func (s *Supervisor) LaunchPublisher(ctx context.Context, host string, seismicDelay time.Duration, specs map[Section][]ModuleSpec) error {
	congestionDelay := 5*time.Second + time.Duration(s.rand.Int63n(int64(5*time.Second)))
	s.log.Debug().Str("host", host).Dur("seismic_delay", seismicDelay).Dur("congestion_delay", congestionDelay).Msg("scheduling publisher sensors")
	return s.launch(ctx, RoleClient, host, specs)
}

// LaunchSubscriber starts a CoAP server and a seismic alert subscriber
// pointed at the edge (and optionally cloud) broker IPs (§4.6).
func (s *Supervisor) LaunchSubscriber(ctx context.Context, host string, specs map[Section][]ModuleSpec) error {
	return s.launch(ctx, RoleClient, host, specs)
}

// LaunchGenerators starts n iperf UDP clients on randomly chosen hosts
// and a matching set of iperf servers on the server host, one dense
// port per stream (§4.6).
func (s *Supervisor) LaunchGenerators(ctx context.Context, serverHost string, candidateHosts []string, n int, bwMbps float64, basePort int) error {
	if n > len(candidateHosts) {
		return fmt.Errorf("supervisor: requested %d generators but only %d candidate hosts", n, len(candidateHosts))
	}
	chosen := s.pickN(candidateHosts, n)

	for i, host := range chosen {
		port := basePort + i
		srvArgv := []string{"iperf", "-s", "-u", "-p", itoa(port)}
		srvHandle, err := s.driver.RunInHost(ctx, serverHost, srvArgv, s.rootEnv, nil, nil)
		if err != nil {
			return fmt.Errorf("supervisor: failed to start iperf server on port %d: %w", port, err)
		}
		s.registry.entries = append(s.registry.entries, handleEntry{role: RoleGenerator, host: serverHost, argv: srvArgv, handle: srvHandle})

		cliArgv := []string{"iperf", "-u", "-c", serverHost, "-b", fmt.Sprintf("%.1fM", bwMbps), "-p", itoa(port)}
		handle, err := s.driver.RunInHost(ctx, host, cliArgv, s.rootEnv, nil, nil)
		if err != nil {
			return fmt.Errorf("supervisor: failed to start iperf client on %q: %w", host, err)
		}
		s.registry.entries = append(s.registry.entries, handleEntry{role: RoleGenerator, host: host, argv: cliArgv, handle: handle})
	}
	return nil
}

func (s *Supervisor) pickN(hosts []string, n int) []string {
	shuffled := append([]string(nil), hosts...)
	s.rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	if n > len(shuffled) {
		n = len(shuffled)
	}
	return shuffled[:n]
}

// drainTimeout bounds the per-process poll-then-kill wait of §4.6.
const drainTimeout = 10 * time.Second

// Drain waits 20s for processes to exit naturally, then walks the
// registry in the teardown order of §4.6 — clients, then server, then
// cloud, then generators — polling each handle with a short timeout and
// killing it if unresponsive. Iperf servers are always killed
// explicitly since older iperf builds never self-terminate.
func (s *Supervisor) Drain(ctx context.Context) error {
	select {
	case <-time.After(20 * time.Second):
	case <-ctx.Done():
		return ctx.Err()
	}

	var firstErr error
	for _, role := range []Role{RoleClient, RoleServer, RoleCloud, RoleGenerator} {
		for _, e := range s.entriesWithRole(role) {
			if e.handle == nil {
				continue
			}
			if err := s.drainOne(ctx, e); err != nil {
				s.log.Warn().Err(err).Str("host", e.host).Msg("failed to drain process")
				if firstErr == nil {
					firstErr = err
				}
			}
		}
	}
	return firstErr
}

func (s *Supervisor) entriesWithRole(role Role) []handleEntry {
	var out []handleEntry
	for _, e := range s.registry.entries {
		if e.role == role {
			out = append(out, e)
		}
	}
	return out
}

func (s *Supervisor) drainOne(ctx context.Context, e handleEntry) error {
	deadline := time.Now().Add(drainTimeout)
	isIperf := len(e.argv) > 0 && e.argv[0] == "iperf"
	for time.Now().Before(deadline) {
		running, _, err := s.driver.Poll(ctx, e.handle)
		if err != nil {
			return err
		}
		if !running && !isIperf {
			return nil
		}
		if !isIperf {
			time.Sleep(200 * time.Millisecond)
			continue
		}
		break
	}
	return s.driver.Kill(ctx, e.handle, e.argv)
}

// Sweep runs a final orphan-cleanup pass across every host, killing any
// lingering application or generator processes that survived the
// ordered drain (§4.6).
func (s *Supervisor) Sweep(ctx context.Context) error {
	return s.driver.Sweep(ctx, []string{"ride-app-runner", "iperf"})
}

func (s *Supervisor) launch(ctx context.Context, role Role, host string, specs map[Section][]ModuleSpec) error {
	encoded, err := Serialize(specs)
	if err != nil {
		return err
	}
	argv := []string{"ride-app-runner", "--config", encoded}

	handle, err := s.driver.RunInHost(ctx, host, argv, s.rootEnv, nil, nil)
	if err != nil {
		return fmt.Errorf("supervisor: failed to launch process on %q: %w", host, err)
	}
	s.registry.entries = append(s.registry.entries, handleEntry{role: role, host: host, argv: argv, handle: handle})
	return nil
}

func itoa(i int) string { return fmt.Sprintf("%d", i) }
