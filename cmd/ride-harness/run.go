package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kbenson/ride-harness/pkg/config"
	"github.com/kbenson/ride-harness/pkg/emergency"
	"github.com/kbenson/ride-harness/pkg/reporting"
	"github.com/kbenson/ride-harness/pkg/run"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Args:  cobra.NoArgs,
	Short: "Execute one trial against a topology",
	Long:  `Loads a topology file and drives one trial through the full lifecycle.`,
	RunE:  runTrial,
}

func init() {
	runCmd.Flags().String("topology", "", "path to topology YAML file (overrides config)")
	runCmd.Flags().String("output", "", "result file output directory (overrides config)")
	runCmd.Flags().String("format", "text", "progress output format (text, json, tui)")
	runCmd.Flags().Bool("cli", false, "drop to an interactive shell after the trial")
	runCmd.Flags().Bool("debug", false, "enable debug logging")
	runCmd.Flags().Bool("with-cloud", true, "include the cloud node in the topology")
	runCmd.Flags().Bool("with-ride-c", true, "enable the RideC data-path application")
	runCmd.Flags().Bool("with-ride-d", true, "enable the RideD multicast-tree application")

	runCmd.Flags().IntP("ntrees", "t", 0, "number of multicast trees")
	runCmd.Flags().String("tree-construction-algorithm", "steiner", "tree construction algorithm")
	runCmd.Flags().String("tree-choosing-heuristic", "", "tree choosing heuristic")
	runCmd.Flags().String("comparison", "none", "comparison arm (none, unicast, oracle)")
	runCmd.Flags().Float64("error-rate", 0, "synthetic link error rate")

	runCmd.Flags().IntP("ngenerators", "g", 0, "number of background traffic generator hosts")
	runCmd.Flags().Float64("generator-bandwidth", 10, "background generator bandwidth in Mbps")

	runCmd.Flags().Int("npublishers", 1, "number of publisher hosts to select")
	runCmd.Flags().Int("nsubscribers", 1, "number of subscriber hosts to select")
	runCmd.Flags().Int("nfailed-links", 0, "number of topology links to fail in the quake")
	runCmd.Flags().Int("nfailed-nodes", 0, "number of nodes to fail during the trial")
	runCmd.Flags().Int64("seed", 0, "RunPlan resolution seed (0 derives from current time)")
}

func runTrial(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if v, _ := cmd.Flags().GetString("topology"); v != "" {
		cfg.Topology.File = v
	}
	if v, _ := cmd.Flags().GetString("output"); v != "" {
		cfg.Reporting.OutputDir = v
	}
	withCloud, _ := cmd.Flags().GetBool("with-cloud")
	cfg.Topology.WithCloud = withCloud

	debug, _ := cmd.Flags().GetBool("debug")
	logLevel := reporting.LogLevelInfo
	if debug || verbose {
		logLevel = reporting.LogLevelDebug
	}
	logFormat := reporting.LogFormat(cfg.Framework.LogFormat)
	logger := reporting.NewLogger(reporting.LoggerConfig{
		Level:  logLevel,
		Format: logFormat,
		Output: os.Stdout,
	})
	logger.Info("ride-harness starting", "version", version)

	outputFormat, _ := cmd.Flags().GetString("format")
	cliFlag, _ := cmd.Flags().GetBool("cli")

	ntrees, _ := cmd.Flags().GetInt("ntrees")
	treeAlgo, _ := cmd.Flags().GetString("tree-construction-algorithm")
	heuristic, _ := cmd.Flags().GetString("tree-choosing-heuristic")
	comparison, _ := cmd.Flags().GetString("comparison")
	errorRate, _ := cmd.Flags().GetFloat64("error-rate")
	ngenerators, _ := cmd.Flags().GetInt("ngenerators")
	genBw, _ := cmd.Flags().GetFloat64("generator-bandwidth")
	npub, _ := cmd.Flags().GetInt("npublishers")
	nsub, _ := cmd.Flags().GetInt("nsubscribers")
	nFailedLinks, _ := cmd.Flags().GetInt("nfailed-links")
	nFailedNodes, _ := cmd.Flags().GetInt("nfailed-nodes")
	withRideC, _ := cmd.Flags().GetBool("with-ride-c")
	withRideD, _ := cmd.Flags().GetBool("with-ride-d")
	seed, _ := cmd.Flags().GetInt64("seed")
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	opts := run.Options{
		NPublishers:           npub,
		NSubscribers:          nsub,
		NFailedLinks:          nFailedLinks,
		NFailedNodes:          nFailedNodes,
		NGenerators:           ngenerators,
		GeneratorBwMbps:       genBw,
		Ntrees:                ntrees,
		TreeConstructionAlgo:  treeAlgo,
		TreeChoosingHeuristic: heuristic,
		ComparisonMode:        comparison,
		WithCloud:             withCloud,
		WithRideC:             withRideC,
		WithRideD:             withRideD,
		ErrorRate:             errorRate,
		McastBaseIPv4:         "224.0.1.100",
		McastBaseUDPPort:      5000,
	}

	trialID := fmt.Sprintf("trial-%d", time.Now().UnixNano())
	trialLogger := logger.ForTrial(trialID)

	lifecycle := run.NewLifecycle(cfg, seed, cliFlag, trialLogger.GetZerologLogger())
	progress := reporting.NewProgressReporter(reporting.OutputFormat(outputFormat), trialLogger)
	lifecycle.SetProgressReporter(progress)

	stopCtrl := emergency.New(emergency.Config{
		StopFile:             cfg.Emergency.StopFile,
		PollInterval:         time.Second,
		EnableSignalHandlers: true,
		Logger:               trialLogger,
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stopCtrl.OnStop(func(event emergency.StopEvent) {
		trialLogger.Warn("aborting trial", "reason", event.Reason)
		cancel()
	})
	stopCtrl.Start(ctx)

	trialLogger.Info("starting trial", "topology", cfg.Topology.File)

	result, err := lifecycle.ExecuteTrial(ctx, trialID, opts)
	if result != nil && result.Report != nil {
		progress.ReportTrialCompleted(result.Report)
	}
	if err != nil {
		return fmt.Errorf("trial failed: %w", err)
	}
	if result == nil || !result.Success {
		return fmt.Errorf("trial did not complete successfully")
	}

	trialLogger.Info("trial completed successfully")
	return nil
}
