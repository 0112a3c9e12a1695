package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the demo binary's on-disk configuration: one root struct of
// nested, yaml-tagged sub-structs.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig configures the DSU listener itself.
type ServerConfig struct {
	Port        int    `yaml:"port"`
	BindAddress string `yaml:"bind_address"`
}

// MetricsConfig configures the optional Prometheus /metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Bind    string `yaml:"bind"`
	Port    int    `yaml:"port"`
}

// LoggingConfig configures log verbosity.
type LoggingConfig struct {
	Debug bool `yaml:"debug"`
}

// defaultConfig returns the configuration used when no config file is
// present.
func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Port:        26760,
			BindAddress: "127.0.0.1",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Bind:    "127.0.0.1",
			Port:    9100,
		},
	}
}

// loadConfig reads and parses path, falling back to defaultConfig if the
// file does not exist.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}
