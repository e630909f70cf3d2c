package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
	version = "dev" // set by build flags
)

var rootCmd = &cobra.Command{
	Use:   "ride-harness",
	Short: "Experiment harness for RIDE data-path resilience trials",
	Long: `ride-harness drives a single trial of a campus network topology through
a Docker-emulated environment, an SDN controller, the publisher/subscriber/
seismic-alert processes under test, a scheduled sequence of gateway failures,
and a teardown+reporting pass, producing one JSON result file per trial.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
