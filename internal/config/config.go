// Package config provides unified configuration loading for the reactor
// server. It supports loading from YAML files and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MRamiBalles/reactor-sim/internal/reactor"
)

// DefaultConfigFile is read by Load when no explicit path is given and the
// file exists in the working directory.
const DefaultConfigFile = "reactor.yaml"

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config contains all server settings.
type Config struct {
	Server  ServerConfig  `json:"server" yaml:"server"`
	Reactor ReactorConfig `json:"reactor" yaml:"reactor"`
	Grid    GridConfig    `json:"grid" yaml:"grid"`
	Storage StorageConfig `json:"storage" yaml:"storage"`
	Broker  BrokerConfig  `json:"broker" yaml:"broker"`
	Buffers BuffersConfig `json:"buffers" yaml:"buffers"`
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// ServerConfig configures the HTTP/WebSocket listener and the frame loop.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `json:"addr" yaml:"addr"`

	// ReactorID names the reactor in telemetry and journal records.
	ReactorID string `json:"reactor_id" yaml:"reactor_id"`

	// TickInterval is the wall-clock period between frames.
	TickInterval time.Duration `json:"tick_interval" yaml:"tick_interval"`

	// TimeScale multiplies the elapsed wall time fed to the simulation.
	// 1.0 runs in real time.
	TimeScale float64 `json:"time_scale" yaml:"time_scale"`
}

// ReactorConfig configures the simulation core.
type ReactorConfig struct {
	Constants     reactor.Constants `json:"constants" yaml:"constants"`
	InitialDemand float64           `json:"initial_demand" yaml:"initial_demand"`
}

// GridConfig configures the synthetic demand generator.
type GridConfig struct {
	// Enabled feeds generated demand into the reactor every frame. When
	// false, demand only changes through setPowerLoad commands.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Seed makes the generator deterministic. Zero picks a time-based seed.
	Seed int64 `json:"seed" yaml:"seed"`

	BaseMin  float64 `json:"base_min" yaml:"base_min"`
	BaseMax  float64 `json:"base_max" yaml:"base_max"`
	WalkStep float64 `json:"walk_step" yaml:"walk_step"`

	SpikeMagnitude   float64       `json:"spike_magnitude" yaml:"spike_magnitude"`
	SpikeDuration    time.Duration `json:"spike_duration" yaml:"spike_duration"`
	SpikeIntervalMin time.Duration `json:"spike_interval_min" yaml:"spike_interval_min"`
	SpikeIntervalMax time.Duration `json:"spike_interval_max" yaml:"spike_interval_max"`
}

// StorageConfig configures the in-session journal and telemetry store.
type StorageConfig struct {
	// DSN is the SQLite data source. The default in-memory database keeps
	// nothing across restarts.
	DSN string `json:"dsn" yaml:"dsn"`

	// SampleInterval is the simulated time between stored telemetry samples.
	SampleInterval time.Duration `json:"sample_interval" yaml:"sample_interval"`

	// HistorySize is the number of samples kept in memory for the live graph.
	HistorySize int `json:"history_size" yaml:"history_size"`
}

// BrokerConfig configures telemetry streaming to Kafka. Streaming is off
// when Brokers is empty.
type BrokerConfig struct {
	Brokers []string `json:"brokers" yaml:"brokers"`
	Topic   string   `json:"topic" yaml:"topic"`
}

// Enabled reports whether any broker is configured.
func (b BrokerConfig) Enabled() bool {
	return len(b.Brokers) > 0
}

// LoggingConfig configures operational logging.
type LoggingConfig struct {
	// Level sets the verbosity: "info" (default), "debug" or "trace".
	Level string `json:"level" yaml:"level"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":8080",
			ReactorID:    "REACTOR_1",
			TickInterval: 50 * time.Millisecond,
			TimeScale:    1.0,
		},
		Reactor: ReactorConfig{
			Constants:     reactor.DefaultConstants(),
			InitialDemand: reactor.DefaultInitialDemand,
		},
		Grid: GridConfig{
			Enabled:          true,
			BaseMin:          750,
			BaseMax:          2200,
			WalkStep:         12,
			SpikeMagnitude:   500,
			SpikeDuration:    5 * time.Second,
			SpikeIntervalMin: 10 * time.Second,
			SpikeIntervalMax: 15 * time.Second,
		},
		Storage: StorageConfig{
			DSN:            ":memory:",
			SampleInterval: time.Second,
			HistorySize:    200,
		},
		Broker: BrokerConfig{
			Topic: "reactor.telemetry",
		},
		Buffers: DefaultBuffers(),
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from path (or DefaultConfigFile when path is
// empty and the file exists) and applies environment overrides.
// Order: defaults -> file -> environment variables.
func Load(path string) (*Config, error) {
	config := Default()

	if path == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			path = DefaultConfigFile
		}
	}
	if path != "" {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		config = fileConfig
	}

	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file on top of the
// defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if config.Buffers.Profile != "" {
		config.Buffers = config.Buffers.withProfileDefaults()
	}
	return config, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if err := c.Reactor.Constants.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Reactor.InitialDemand < 0 {
		return fmt.Errorf("%w: initial_demand must be non-negative, got %g", ErrInvalidConfig, c.Reactor.InitialDemand)
	}
	if c.Server.TickInterval <= 0 {
		return fmt.Errorf("%w: tick_interval must be positive, got %v", ErrInvalidConfig, c.Server.TickInterval)
	}
	if c.Server.TimeScale <= 0 {
		return fmt.Errorf("%w: time_scale must be positive, got %g", ErrInvalidConfig, c.Server.TimeScale)
	}
	if c.Grid.BaseMin < 0 || c.Grid.BaseMax < c.Grid.BaseMin {
		return fmt.Errorf("%w: grid bounds must satisfy 0 <= base_min <= base_max (got %g, %g)",
			ErrInvalidConfig, c.Grid.BaseMin, c.Grid.BaseMax)
	}
	if c.Grid.WalkStep < 0 || c.Grid.SpikeMagnitude < 0 {
		return fmt.Errorf("%w: walk_step and spike_magnitude must be non-negative", ErrInvalidConfig)
	}
	if c.Grid.SpikeDuration <= 0 || c.Grid.SpikeIntervalMin <= 0 || c.Grid.SpikeIntervalMax < c.Grid.SpikeIntervalMin {
		return fmt.Errorf("%w: spike timings must be positive with spike_interval_min <= spike_interval_max", ErrInvalidConfig)
	}
	if c.Storage.DSN == "" {
		return fmt.Errorf("%w: storage dsn must not be empty", ErrInvalidConfig)
	}
	if c.Storage.SampleInterval <= 0 {
		return fmt.Errorf("%w: sample_interval must be positive, got %v", ErrInvalidConfig, c.Storage.SampleInterval)
	}
	if c.Storage.HistorySize <= 0 {
		return fmt.Errorf("%w: history_size must be positive, got %d", ErrInvalidConfig, c.Storage.HistorySize)
	}
	if c.Broker.Enabled() && c.Broker.Topic == "" {
		return fmt.Errorf("%w: broker topic must be set when brokers are configured", ErrInvalidConfig)
	}
	if err := c.Buffers.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true, "warn": true, "error": true}
	if c.Logging.Level != "" && !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("%w: invalid log level: %s (valid: info, debug, trace, warn, error)", ErrInvalidConfig, c.Logging.Level)
	}
	return nil
}

// applyEnvOverrides applies REACTOR_* environment variables to the config.
func applyEnvOverrides(config *Config) error {
	if v := os.Getenv("REACTOR_ADDR"); v != "" {
		config.Server.Addr = v
	}
	if v := os.Getenv("REACTOR_ID"); v != "" {
		config.Server.ReactorID = v
	}
	if v := os.Getenv("REACTOR_TICK_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parsing REACTOR_TICK_INTERVAL: %w", err)
		}
		config.Server.TickInterval = d
	}
	if v := os.Getenv("REACTOR_TIME_SCALE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("parsing REACTOR_TIME_SCALE: %w", err)
		}
		config.Server.TimeScale = f
	}
	if v := os.Getenv("REACTOR_INITIAL_DEMAND"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("parsing REACTOR_INITIAL_DEMAND: %w", err)
		}
		config.Reactor.InitialDemand = f
	}
	if v := os.Getenv("REACTOR_GRID_ENABLED"); v != "" {
		config.Grid.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("REACTOR_GRID_SEED"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("parsing REACTOR_GRID_SEED: %w", err)
		}
		config.Grid.Seed = n
	}
	if v := os.Getenv("REACTOR_DB"); v != "" {
		config.Storage.DSN = v
	}
	if v := os.Getenv("REACTOR_KAFKA_BROKERS"); v != "" {
		config.Broker.Brokers = splitList(v)
	}
	if v := os.Getenv("REACTOR_KAFKA_TOPIC"); v != "" {
		config.Broker.Topic = v
	}
	if v := os.Getenv("REACTOR_BUFFER_PROFILE"); v != "" {
		config.Buffers = BuffersConfig{Profile: v}.withProfileDefaults()
	}
	if v := os.Getenv("REACTOR_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
