package run

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/kbenson/ride-harness/pkg/cleanup"
	"github.com/kbenson/ride-harness/pkg/config"
	"github.com/kbenson/ride-harness/pkg/controller"
	"github.com/kbenson/ride-harness/pkg/convergence"
	"github.com/kbenson/ride-harness/pkg/emulation"
	"github.com/kbenson/ride-harness/pkg/fault"
	"github.com/kbenson/ride-harness/pkg/forwarding"
	"github.com/kbenson/ride-harness/pkg/observability"
	"github.com/kbenson/ride-harness/pkg/reporting"
	"github.com/kbenson/ride-harness/pkg/supervisor"
	"github.com/kbenson/ride-harness/pkg/topology"
	"github.com/kbenson/ride-harness/pkg/verification"
)

// State is one step of the trial state machine (§4.8), named for this
// domain rather than the generic chaos-test phases it was adapted from.
type State int

const (
	StateLoadTopology State = iota
	StateStartEmulation
	StateConverge
	StateProgramForwarding
	StateLaunchProcesses
	StateFaultSchedule
	StateDrainProcesses
	StateTeardown
	StateReport
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateLoadTopology:
		return "LOAD_TOPOLOGY"
	case StateStartEmulation:
		return "START_EMULATION"
	case StateConverge:
		return "CONVERGE"
	case StateProgramForwarding:
		return "PROGRAM_FORWARDING"
	case StateLaunchProcesses:
		return "LAUNCH_PROCESSES"
	case StateFaultSchedule:
		return "FAULT_SCHEDULE"
	case StateDrainProcesses:
		return "DRAIN_PROCESSES"
	case StateTeardown:
		return "TEARDOWN"
	case StateReport:
		return "REPORT"
	case StateCompleted:
		return "COMPLETED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// TrialResult is what a single ExecuteTrial call returns — enough for
// the reporting package to build the on-disk result file of §6.
type TrialResult struct {
	TrialID   string
	State     State
	Success   bool
	Message   string
	StartTime time.Time
	EndTime   time.Time

	Plan        *Plan
	Timeline    *fault.Timeline
	Forwarding  *forwarding.Result
	OutputsDir  string
	LogsDir     string

	Report *reporting.TrialReport
}

// Lifecycle drives one trial through every state of §4.8, owning the
// per-trial Emulation Driver, Controller Adapter, and Process
// Supervisor instances (their lifetime brackets exactly one trial,
// §3's lifecycle rule).
type Lifecycle struct {
	cfg      *config.Config
	resolver *Resolver
	log      zerolog.Logger
	cli      bool // drop to interactive shell after the trial (§6 --cli)
	progress *reporting.ProgressReporter
}

// NewLifecycle constructs a Lifecycle seeded for RunPlan reproducibility.
func NewLifecycle(cfg *config.Config, seed int64, cli bool, log zerolog.Logger) *Lifecycle {
	return &Lifecycle{
		cfg:      cfg,
		resolver: NewResolver(seed),
		log:      log.With().Str("component", "lifecycle").Logger(),
		cli:      cli,
	}
}

// SetProgressReporter attaches a live reporter that mirrors each state
// transition to the console/JSON stream in addition to the structured
// log, for use by the CLI's --format flag (§6).
func (l *Lifecycle) SetProgressReporter(p *reporting.ProgressReporter) {
	l.progress = p
}

// ExecuteTrial runs one trial end to end: load, start, converge,
// program, launch, fault-inject, drain, teardown, report. Cleanup
// always runs on the way out — normal completion, early failure, or
// panic — mirroring the always-cleanup defer chain of the teacher's
// orchestrator.
func (l *Lifecycle) ExecuteTrial(ctx context.Context, trialID string, opts Options) (result *TrialResult, err error) {
	result = &TrialResult{
		TrialID:    trialID,
		StartTime:  time.Now(),
		OutputsDir: l.cfg.Reporting.OutputDir,
		LogsDir:    l.cfg.Reporting.LogsDir,
	}

	var driver *emulation.Driver
	var ca *controller.Client
	var sup *supervisor.Supervisor
	var obsCollector *observability.Collector

	defer func() {
		if r := recover(); r != nil {
			l.log.Error().Interface("panic", r).Msg("panic during trial, cleaning up")
			result.State = StateFailed
			result.Success = false
			result.Message = fmt.Sprintf("panic: %v", r)
			err = fmt.Errorf("run: trial panicked: %v", r)
		}
		l.teardown(ctx, driver, ca, sup, result)
	}()

	l.transition(result, StateLoadTopology)
	topo, err := topology.Load(l.cfg.Topology.File, opts.WithCloud)
	if err != nil {
		return l.fail(result, err), err
	}

	plan, err := l.resolver.Resolve(topo, opts)
	if err != nil {
		return l.fail(result, err), err
	}
	result.Plan = plan

	dialect, err := controller.DialectByName(l.cfg.Controller.Dialect)
	if err != nil {
		return l.fail(result, err), err
	}

	l.transition(result, StateStartEmulation)
	driver, err = l.buildDriver(ctx, topo)
	if err != nil {
		return l.fail(result, err), err
	}

	l.transition(result, StateConverge)
	ca = controller.New(fmt.Sprintf("http://%s:%d", l.cfg.Controller.Host, l.cfg.Controller.Port), l.cfg.Controller.User, l.cfg.Controller.Pass, dialect, l.log)
	if err := l.converge(ctx, driver, ca, topo); err != nil {
		return l.fail(result, err), err
	}

	if l.cfg.Observability.Enabled {
		obsCollector = l.startObservability(ctx)
	}

	l.transition(result, StateProgramForwarding)
	prog := forwarding.New(topo, ca, dialect, l.log)
	fwdPlan, err := l.buildForwardingPlan(topo, plan)
	if err != nil {
		return l.fail(result, err), err
	}
	fwdResult, err := prog.ProgramAll(ctx, fwdPlan)
	if err != nil {
		return l.fail(result, err), err
	}
	result.Forwarding = fwdResult

	l.transition(result, StateLaunchProcesses)
	sup = supervisor.New(driver, l.cfg.Reporting.LogsDir, "/opt/ride", trialSeed(trialID), l.log)
	if err := l.launchProcesses(ctx, sup, topo, plan, fwdPlan, dialect); err != nil {
		return l.fail(result, err), err
	}

	l.transition(result, StateFaultSchedule)
	dpls, err := topo.DataPathLinks()
	if err != nil {
		return l.fail(result, err), err
	}
	sched := fault.New(driver, topo, l.cfg.Timing.TimeBetweenSeismicEvents, l.cfg.Timing.ExperimentDuration, l.log)
	select {
	case <-time.After(l.cfg.Timing.SeismicEventDelay):
	case <-ctx.Done():
		return l.fail(result, ctx.Err()), ctx.Err()
	}
	timeline, err := sched.Run(ctx, dpls, plan.FailedLinks, plan.FailedNodes)
	result.Timeline = timeline
	if err != nil {
		return l.fail(result, err), err
	}
	if l.progress != nil && timeline != nil {
		for _, c := range timeline.Changes {
			l.progress.ReportDataPathChange(reporting.ChangeRecord{Gateway: c.Gateway, Up: c.Up, At: c.At})
		}
	}

	l.transition(result, StateDrainProcesses)
	if l.progress != nil {
		l.progress.ReportDrainStarted()
	}
	if err := sup.Drain(ctx); err != nil {
		l.log.Warn().Err(err).Msg("process drain reported errors, continuing to teardown")
	}
	if err := sup.Sweep(ctx); err != nil {
		l.log.Warn().Err(err).Msg("orphan sweep reported errors")
	}
	if l.progress != nil {
		l.progress.ReportDrainCompleted(0)
	}

	l.transition(result, StateReport)
	result.EndTime = time.Now()
	result.State = StateCompleted
	result.Success = true
	result.Message = "trial completed"
	result.Report = l.buildReport(topo, result)
	if obsCollector != nil {
		obsCollector.Stop()
		result.Report.Metrics = obsCollector.Series()
	}
	if l.progress != nil {
		l.progress.ReportTrialCompleted(result.Report)
	}
	return result, nil
}

// startObservability wires an optional metrics collector against the
// configured Prometheus endpoint, polling controller-exposed flow and
// port counters for the remainder of the trial (§11). A connection
// failure is logged and observability is skipped rather than failing
// the trial: metrics are supplementary, never required for success.
func (l *Lifecycle) startObservability(ctx context.Context) *observability.Collector {
	client, err := observability.New(observability.Config{
		URL:     l.cfg.Observability.PrometheusURL,
		Timeout: l.cfg.Observability.Timeout,
	})
	if err != nil {
		l.log.Warn().Err(err).Msg("observability client setup failed, skipping metrics collection")
		return nil
	}
	if err := client.TestConnection(ctx); err != nil {
		l.log.Warn().Err(err).Msg("observability endpoint unreachable, skipping metrics collection")
		return nil
	}

	collector := observability.NewCollector(observability.CollectorConfig{
		Client:   client,
		Interval: l.cfg.Observability.RefreshInterval,
		Logger:   l.log,
		Queries: map[string]string{
			"flow_count": "sum(onos_flows)",
			"port_bytes": "sum(onos_port_bytes_total)",
		},
	})
	collector.Start(ctx)
	return collector
}

// buildReport assembles the §6 on-disk result shape from the trial's
// resolved plan, executed fault timeline and forwarding result. Oracle
// reachability figures are left at zero: they are computed post-hoc
// against the recorded alert/echo logs, outside the lifecycle itself.
func (l *Lifecycle) buildReport(topo *topology.Topology, result *TrialResult) *reporting.TrialReport {
	status := reporting.StatusCompleted
	if !result.Success {
		status = reporting.StatusFailed
	}

	report := &reporting.TrialReport{
		TrialID:   result.TrialID,
		StartTime: result.StartTime,
		EndTime:   result.EndTime,
		Duration:  result.EndTime.Sub(result.StartTime).String(),
		Status:    status,
		Success:   result.Success,
		Message:   result.Message,

		OutputsDir: result.OutputsDir,
		LogsDir:    result.LogsDir,

		ComparisonMode: "none",
	}

	if result.Plan != nil {
		report.Publishers = namedIPs(topo, result.Plan.Publishers)
		report.Subscribers = namedIPs(topo, result.Plan.Subscribers)
		report.TreeConstructionAlgorithm = result.Plan.TreeConstructionAlgo
		report.TreeChoosingHeuristic = result.Plan.TreeChoosingHeuristic
		report.ComparisonMode = result.Plan.ComparisonMode
		report.NGenerators = result.Plan.NGenerators
		report.GeneratorBwMbps = result.Plan.GeneratorBwMbps
		report.ErrorRate = result.Plan.ErrorRate
		report.WithCloud = result.Plan.WithCloud
		report.WithRideC = result.Plan.WithRideC
		report.WithRideD = result.Plan.WithRideD
	}

	if result.Timeline != nil {
		report.QuakeStartTime = result.Timeline.QuakeStartTime
		for _, c := range result.Timeline.Changes {
			report.DataPathChanges = append(report.DataPathChanges, reporting.ChangeRecord{
				Gateway: c.Gateway, Up: c.Up, At: c.At,
			})
		}
	}

	return report
}

// namedIPs resolves a list of host names to an ip->name map for the
// §6 `publishers`/`subscribers` result fields.
func namedIPs(topo *topology.Topology, names []string) map[string]string {
	out := make(map[string]string, len(names))
	for _, name := range names {
		n, ok := topo.Node(name)
		if !ok {
			continue
		}
		ip, _, err := topology.NodeMAC(n)
		if err != nil {
			continue
		}
		out[ip] = name
	}
	return out
}

func (l *Lifecycle) buildDriver(ctx context.Context, topo *topology.Topology) (*emulation.Driver, error) {
	driver, err := emulation.New(l.cfg.Emulation.Image, l.cfg.Emulation.NetworkName, l.cfg.Emulation.IPSubnet, l.log)
	if err != nil {
		return nil, err
	}

	for _, name := range topo.Switches() {
		dpid, err := topology.SwitchDpid(name)
		if err != nil {
			return nil, err
		}
		driver.AddSwitch(name, dpid)
	}
	for _, name := range topo.CloudGateways() {
		dpid, err := topology.SwitchDpid(name)
		if err != nil {
			return nil, err
		}
		driver.AddSwitch(name, dpid)
	}
	for _, name := range topo.Hosts() {
		ip, mac, err := topology.HostIPMAC(name)
		if err != nil {
			return nil, err
		}
		driver.AddHost(name, ip, mac)
	}
	for _, name := range append(append([]string{}, topo.Servers()...), topo.Clouds()...) {
		n, _ := topo.Node(name)
		ip, mac, err := topology.NodeMAC(n)
		if err != nil {
			return nil, err
		}
		driver.AddHost(name, ip, mac)
	}
	for _, link := range topo.Links() {
		driver.AddLink(link.A, link.B, link.BwMbps, link.LatencyMs, link.JitterMs, link.LossPct)
	}

	if err := driver.Start(ctx, l.cfg.Emulation.SettleDelay); err != nil {
		return nil, fmt.Errorf("run: failed to start emulation: %w", err)
	}
	return driver, nil
}

func (l *Lifecycle) converge(ctx context.Context, driver *emulation.Driver, ca *controller.Client, topo *topology.Topology) error {
	servers := topo.Servers()
	serverIP := ""
	if len(servers) == 1 {
		n, _ := topo.Node(servers[0])
		serverIP, _, _ = topology.NodeMAC(n)
	}

	disc := convergence.NewPingDiscoverer(driver, topo, l.cfg.Emulation.AllPairsPing, serverIP, l.log)
	coordinator := convergence.New(l.log)

	expected := convergence.Expectation{
		Hosts:    len(driver.Hosts()),
		Switches: len(driver.Switches()),
		Links:    driver.LinkCount(),
	}

	return coordinator.Converge(ctx, convergence.EmulationView{Driver: driver}, convergence.ControllerView{Client: ca}, expected, disc)
}

func (l *Lifecycle) buildForwardingPlan(topo *topology.Topology, plan *Plan) (forwarding.Plan, error) {
	dpls, err := topo.DataPathLinks()
	if err != nil {
		return forwarding.Plan{}, err
	}
	var gateways []string
	for _, dpl := range dpls {
		gateways = append(gateways, dpl.Gateway)
	}

	cloudIP := ""
	if clouds := topo.Clouds(); len(clouds) == 1 && plan.WithCloud {
		n, _ := topo.Node(clouds[0])
		cloudIP, _, _ = topology.NodeMAC(n)
	}

	return forwarding.Plan{
		Subscribers:    plan.Subscribers,
		Gateways:       gateways,
		ProbeBasePort:  50000,
		EchoPort:       60000,
		CloudIP:        cloudIP,
		Ntrees:         plan.Ntrees,
		McastPool:      plan.McastPool,
		TreeAlgorithm:  plan.TreeConstructionAlgo,
		ComparisonMode: plan.ComparisonMode,
	}, nil
}

func (l *Lifecycle) launchProcesses(ctx context.Context, sup *supervisor.Supervisor, topo *topology.Topology, plan *Plan, fwdPlan forwarding.Plan, dialect controller.Dialect) error {
	servers := topo.Servers()
	if len(servers) != 1 {
		return fmt.Errorf("run: exactly one server required")
	}
	server := servers[0]
	serverNode, _ := topo.Node(server)
	serverDpid := controller.DpidForHost(dialect, mustMAC(serverNode))

	cc := supervisor.ControllerConfig{Dialect: l.cfg.Controller.Dialect, Host: l.cfg.Controller.Host, Port: l.cfg.Controller.Port}

	var dataPathTuples [][2]string
	var publisherPorts []int
	for i, gw := range fwdPlan.Gateways {
		dataPathTuples = append(dataPathTuples, [2]string{gw, server})
		publisherPorts = append(publisherPorts, fwdPlan.ProbeBasePort+i)
	}

	serverSpecs := supervisor.ServerSpecs(serverDpid, plan.McastPool, plan.Ntrees, plan.TreeConstructionAlgo, plan.TreeChoosingHeuristic, 3, cc, plan.WithRideC, dataPathTuples, publisherPorts)
	if err := sup.LaunchServer(ctx, server, serverSpecs); err != nil {
		return err
	}

	if clouds := topo.Clouds(); len(clouds) == 1 && plan.WithCloud {
		cloudNode, _ := topo.Node(clouds[0])
		cloudDpid := controller.DpidForHost(dialect, mustMAC(cloudNode))
		cloudSpecs := supervisor.CloudSpecs(cloudDpid, fwdPlan.EchoPort, cc)
		if err := sup.LaunchCloud(ctx, clouds[0], cloudSpecs); err != nil {
			return err
		}
	}

	edgeIP := fwdPlan.CloudIP
	if n, ok := topo.Node(server); ok {
		if ip, _, err := topology.NodeMAC(n); err == nil {
			edgeIP = ip
		}
	}

	for _, pub := range plan.Publishers {
		specs := supervisor.PublisherSpecs(float64(l.cfg.Timing.TimeBetweenSeismicEvents.Seconds()), 30, 61000, 61001, edgeIP)
		if err := sup.LaunchPublisher(ctx, pub, l.cfg.Timing.SeismicEventDelay, specs); err != nil {
			return err
		}
	}
	for _, sub := range plan.Subscribers {
		specs := supervisor.SubscriberSpecs(62000, edgeIP, fwdPlan.CloudIP)
		if err := sup.LaunchSubscriber(ctx, sub, specs); err != nil {
			return err
		}
	}

	if plan.NGenerators > 0 {
		if err := sup.LaunchGenerators(ctx, server, topo.Hosts(), plan.NGenerators, plan.GeneratorBwMbps, 63000); err != nil {
			return err
		}
	}
	return nil
}

func (l *Lifecycle) teardown(ctx context.Context, driver *emulation.Driver, ca *controller.Client, sup *supervisor.Supervisor, result *TrialResult) {
	if driver != nil && ca != nil {
		hosts := driver.Hosts()
		verifier := verification.New(driver, ca)
		coord := cleanup.New(driver, ca, verifier)
		if err := coord.CleanupAll(ctx, hosts); err != nil {
			l.log.Warn().Err(err).Msg("teardown cleanup reported errors")
		}
		for _, entry := range coord.GetAuditLog() {
			if !entry.Success {
				l.log.Warn().Str("action", entry.Action).Str("target", entry.Target).Err(entry.Error).Msg("cleanup action failed")
			}
		}
	} else if driver != nil {
		if err := driver.Stop(ctx); err != nil {
			l.log.Warn().Err(err).Msg("emulation stop reported errors (best-effort)")
		}
		if err := driver.Cleanup(ctx); err != nil {
			l.log.Warn().Err(err).Msg("emulation cleanup reported errors")
		}
	}
	l.saveReport(result)

	select {
	case <-time.After(l.cfg.Timing.SleepBetweenRuns):
	case <-ctx.Done():
	}
}

// saveReport persists the trial's result file per §6's
// `results_<params>_<heuristic>.json` convention. A trial that failed
// before a full report could be assembled still gets a minimal one, so
// a failed run is never silently unrecorded.
func (l *Lifecycle) saveReport(result *TrialResult) {
	if result.Report == nil {
		status := reporting.StatusFailed
		if result.Success {
			status = reporting.StatusCompleted
		}
		result.Report = &reporting.TrialReport{
			TrialID:   result.TrialID,
			StartTime: result.StartTime,
			EndTime:   result.EndTime,
			Duration:  result.EndTime.Sub(result.StartTime).String(),
			Status:    status,
			Success:   result.Success,
			Message:   result.Message,
			OutputsDir: result.OutputsDir,
			LogsDir:    result.LogsDir,
		}
	}

	storage, err := reporting.NewStorage(l.cfg.Reporting.OutputDir, l.cfg.Reporting.KeepLastN, l.reportingLogger())
	if err != nil {
		l.log.Warn().Err(err).Msg("failed to open report storage")
		return
	}
	if _, err := storage.SaveReport(result.Report); err != nil {
		l.log.Warn().Err(err).Msg("failed to save trial report")
	}
}

// reportingLogger adapts this lifecycle's zerolog.Logger into the
// reporting package's own Logger wrapper.
func (l *Lifecycle) reportingLogger() *reporting.Logger {
	return reporting.NewLogger(reporting.LoggerConfig{
		Level:  reporting.LogLevelInfo,
		Format: reporting.LogFormatJSON,
	})
}

func (l *Lifecycle) transition(result *TrialResult, s State) {
	l.log.Info().Str("from", result.State.String()).Str("to", s.String()).Msg("trial state transition")
	if l.progress != nil {
		l.progress.ReportStateTransition(result.State.String(), s.String())
	}
	result.State = s
}

func (l *Lifecycle) fail(result *TrialResult, err error) *TrialResult {
	result.EndTime = time.Now()
	result.State = StateFailed
	result.Success = false
	result.Message = err.Error()
	return result
}

func mustMAC(n topology.Node) string {
	_, mac, err := topology.NodeMAC(n)
	if err != nil {
		return ""
	}
	return mac
}

// trialSeed derives a deterministic per-trial seed from its ID so
// congestion-generator host selection is reproducible given the same
// trial sequence.
func trialSeed(trialID string) int64 {
	var h int64 = 1469598103934665603
	for _, c := range trialID {
		h ^= int64(c)
		h *= 1099511628211
	}
	return h
}
