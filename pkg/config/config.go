// Package config loads the ride-harness configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level ride-harness configuration.
type Config struct {
	Framework    FrameworkConfig    `yaml:"framework"`
	Topology     TopologyConfig     `yaml:"topology"`
	Emulation    EmulationConfig    `yaml:"emulation"`
	Controller   ControllerConfig   `yaml:"controller"`
	Observability ObservabilityConfig `yaml:"observability"`
	Reporting    ReportingConfig    `yaml:"reporting"`
	Emergency    EmergencyConfig    `yaml:"emergency"`
	Timing       TimingConfig       `yaml:"timing"`
	Safety       SafetyConfig       `yaml:"safety"`
}

// FrameworkConfig contains general harness settings.
type FrameworkConfig struct {
	Version   string `yaml:"version"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// TopologyConfig locates the topology file driving the Topology Model.
type TopologyConfig struct {
	File      string `yaml:"file"`
	WithCloud bool   `yaml:"with_cloud"`
}

// EmulationConfig contains Emulation Driver (Docker-backed) settings.
type EmulationConfig struct {
	Image        string        `yaml:"image"`
	NetworkName  string        `yaml:"network_name"`
	IPSubnet     string        `yaml:"ip_subnet"`
	PullPolicy   string        `yaml:"pull_policy"`
	SettleDelay  time.Duration `yaml:"settle_delay"`
	AllPairsPing bool          `yaml:"all_pairs_ping"`
}

// ControllerConfig contains Controller Adapter connection settings.
type ControllerConfig struct {
	Dialect string `yaml:"dialect"` // "onos" or "bare"
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	User    string `yaml:"user"`
	Pass    string `yaml:"pass"`
}

// ObservabilityConfig contains optional Prometheus polling settings.
type ObservabilityConfig struct {
	PrometheusURL   string        `yaml:"prometheus_url"`
	Timeout         time.Duration `yaml:"timeout"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	Enabled         bool          `yaml:"enabled"`
}

// ReportingConfig contains result-file output settings.
type ReportingConfig struct {
	OutputDir string `yaml:"output_dir"`
	LogsDir   string `yaml:"logs_dir"`
	KeepLastN int    `yaml:"keep_last_n"`
}

// EmergencyConfig contains emergency-stop settings.
type EmergencyConfig struct {
	StopFile           string        `yaml:"stop_file"`
	AutoCleanupTimeout time.Duration `yaml:"auto_cleanup_timeout"`
}

// TimingConfig holds the fault-schedule and run-cadence constants of §4.7.
type TimingConfig struct {
	SeismicEventDelay       time.Duration `yaml:"seismic_event_delay"`
	TimeBetweenSeismicEvents time.Duration `yaml:"time_between_seismic_events"`
	ExperimentDuration      time.Duration `yaml:"experiment_duration"`
	SleepBetweenRuns        time.Duration `yaml:"sleep_between_runs"`
}

// SafetyConfig contains run-time safety limits.
type SafetyConfig struct {
	MaxDuration         time.Duration `yaml:"max_duration"`
	RequireConfirmation bool          `yaml:"require_confirmation"`
}

// DefaultConfig returns a configuration populated with workable defaults.
func DefaultConfig() *Config {
	return &Config{
		Framework: FrameworkConfig{
			Version:   "v1",
			LogLevel:  "info",
			LogFormat: "text",
		},
		Topology: TopologyConfig{
			File:      "topology.yaml",
			WithCloud: true,
		},
		Emulation: EmulationConfig{
			Image:        "ride-harness/campus-node:latest",
			NetworkName:  "ride-campus",
			IPSubnet:     "10.0.0.0/8",
			PullPolicy:   "if_not_present",
			SettleDelay:  5 * time.Second,
			AllPairsPing: false,
		},
		Controller: ControllerConfig{
			Dialect: "onos",
			Host:    "localhost",
			Port:    8181,
			User:    "onos",
			Pass:    "rocks",
		},
		Observability: ObservabilityConfig{
			PrometheusURL:   "http://localhost:9090",
			Timeout:         30 * time.Second,
			RefreshInterval: 15 * time.Second,
			Enabled:         false,
		},
		Reporting: ReportingConfig{
			OutputDir: "./outputs",
			LogsDir:   "./logs",
			KeepLastN: 50,
		},
		Emergency: EmergencyConfig{
			StopFile:           "/tmp/ride-harness-emergency-stop",
			AutoCleanupTimeout: 5 * time.Minute,
		},
		Timing: TimingConfig{
			SeismicEventDelay:        60 * time.Second,
			TimeBetweenSeismicEvents: 30 * time.Second,
			ExperimentDuration:       10 * time.Minute,
			SleepBetweenRuns:         5 * time.Second,
		},
		Safety: SafetyConfig{
			MaxDuration:         2 * time.Hour,
			RequireConfirmation: true,
		},
	}
}

// Load reads configuration from a YAML file, expanding ${VAR} references
// against the process environment before parsing, as the teacher's config
// loader does. A missing file is not an error: the defaults are returned.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = "config.yaml"
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := []byte(os.ExpandEnv(string(data)))
	if err := yaml.Unmarshal(expanded, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if url := os.Getenv("RIDE_PROMETHEUS_URL"); url != "" {
		cfg.Observability.PrometheusURL = url
		cfg.Observability.Enabled = true
	}

	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks the configuration is complete enough to start a run.
func (c *Config) Validate() error {
	if c.Topology.File == "" {
		return fmt.Errorf("topology.file is required")
	}
	if c.Emulation.Image == "" {
		return fmt.Errorf("emulation.image is required")
	}
	if c.Controller.Host == "" {
		return fmt.Errorf("controller.host is required")
	}
	if c.Reporting.OutputDir == "" {
		return fmt.Errorf("reporting.output_dir is required")
	}
	if c.Controller.Dialect != "onos" && c.Controller.Dialect != "bare" {
		return fmt.Errorf("controller.dialect must be 'onos' or 'bare', got %q", c.Controller.Dialect)
	}
	return nil
}
