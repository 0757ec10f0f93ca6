package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	// ConfigPathEnvKey is the environment variable key for the config file path.
	ConfigPathEnvKey = "UNIVOR_MOCKVISORD_CONFIG_PATH"
)

// Config is used to configure the mock hypervisor daemon.
//
// Every field has a working default so the daemon runs with no config file
// at all.
type Config struct {
	// APIServer is the configuration for the VM API server.
	APIServer struct {
		// Host is the address to bind. Defaults to 127.0.0.1.
		Host string `yaml:"host"`
		// Port is the port for the API server. 0 selects a free port and
		// reports it on stdout.
		Port int `yaml:"port"`
		// BasicAuth, when set, guards every route.
		BasicAuth struct {
			User     string `yaml:"user"`
			Password string `yaml:"password"`
		} `yaml:"basicAuth"`
	} `yaml:"apiServer"`

	// MetricsServer is the configuration for the metrics server. A zero
	// port disables it.
	MetricsServer struct {
		// Path is the path for the metrics handler.
		Path string `yaml:"path"`
		// Port is the port for the metrics server.
		Port int `yaml:"port"`
	} `yaml:"metricsServer"`

	// ProbesServer is the configuration for the probes server. A zero port
	// disables it.
	ProbesServer struct {
		// LivenessPath is the path for the liveness probe.
		LivenessPath string `yaml:"livenessPath"`
		// ReadinessPath is the path for the readiness probe.
		ReadinessPath string `yaml:"readinessPath"`
		// Port is the port for the probes server.
		Port int `yaml:"port"`
	} `yaml:"probesServer"`

	// AllowDuplicateNames disables VM name-uniqueness enforcement, for
	// parity with backends that accept duplicates.
	AllowDuplicateNames bool `yaml:"allowDuplicateNames"`

	// Development enables human-readable logging.
	Development bool `yaml:"development"`
}

// defaultConfig returns a Config with every default applied.
func defaultConfig() *Config {
	config := &Config{}
	config.APIServer.Host = "127.0.0.1"
	config.ProbesServer.LivenessPath = "/healthz"
	config.ProbesServer.ReadinessPath = "/readyz"
	config.MetricsServer.Path = "/metrics"

	return config
}

// loadConfig loads the configuration from the file named by the
// UNIVOR_MOCKVISORD_CONFIG_PATH environment variable, falling back to
// defaults when the variable is unset.
func loadConfig() (*Config, error) {
	config := defaultConfig()

	configPath := os.Getenv(ConfigPathEnvKey)
	if configPath == "" {
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return config, nil
}
