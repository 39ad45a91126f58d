package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MRamiBalles/reactor-sim/internal/reactor"
)

func TestDefault(t *testing.T) {
	config := Default()

	if config.Server.Addr != ":8080" {
		t.Errorf("expected Addr ':8080', got '%s'", config.Server.Addr)
	}
	if config.Server.TickInterval != 50*time.Millisecond {
		t.Errorf("expected TickInterval 50ms, got %v", config.Server.TickInterval)
	}
	if config.Reactor.Constants != reactor.DefaultConstants() {
		t.Error("expected default reactor constants")
	}
	if config.Reactor.InitialDemand != reactor.DefaultInitialDemand {
		t.Errorf("expected InitialDemand %v, got %v", reactor.DefaultInitialDemand, config.Reactor.InitialDemand)
	}
	if config.Storage.DSN != ":memory:" {
		t.Errorf("expected in-memory DSN, got '%s'", config.Storage.DSN)
	}
	if config.Storage.HistorySize != 200 {
		t.Errorf("expected HistorySize 200, got %d", config.Storage.HistorySize)
	}
	if config.Broker.Enabled() {
		t.Error("expected broker disabled by default")
	}
	if config.Logging.Level != "info" {
		t.Errorf("expected Logging.Level 'info', got '%s'", config.Logging.Level)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "reactor.yaml")

	configContent := `
server:
  addr: ":9090"
  tick_interval: 100ms
  time_scale: 2

reactor:
  initial_demand: 1500
  constants:
    overheat_temp: 650
    output_deviation_min_load: 50

grid:
  enabled: false
  seed: 7

broker:
  brokers: ["kafka-1:9092", "kafka-2:9092"]
  topic: plant.telemetry

buffers:
  profile: low
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	config, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if config.Server.Addr != ":9090" {
		t.Errorf("expected Addr ':9090', got '%s'", config.Server.Addr)
	}
	if config.Server.TickInterval != 100*time.Millisecond {
		t.Errorf("expected TickInterval 100ms, got %v", config.Server.TickInterval)
	}
	if config.Server.TimeScale != 2 {
		t.Errorf("expected TimeScale 2, got %v", config.Server.TimeScale)
	}
	if config.Reactor.InitialDemand != 1500 {
		t.Errorf("expected InitialDemand 1500, got %v", config.Reactor.InitialDemand)
	}
	if config.Reactor.Constants.OverheatTemp != 650 {
		t.Errorf("expected OverheatTemp 650, got %v", config.Reactor.Constants.OverheatTemp)
	}
	if config.Reactor.Constants.MeltdownTemp != reactor.DefaultConstants().MeltdownTemp {
		t.Error("unset constants should keep their defaults")
	}
	if config.Reactor.Constants.OutputDeviationMinLoad != 50 {
		t.Errorf("expected OutputDeviationMinLoad 50, got %v", config.Reactor.Constants.OutputDeviationMinLoad)
	}
	if config.Grid.Enabled {
		t.Error("expected grid disabled")
	}
	if config.Grid.Seed != 7 {
		t.Errorf("expected Seed 7, got %d", config.Grid.Seed)
	}
	if config.Grid.BaseMax != 2200 {
		t.Errorf("expected unset BaseMax to keep default, got %v", config.Grid.BaseMax)
	}
	if !config.Broker.Enabled() || len(config.Broker.Brokers) != 2 {
		t.Errorf("expected two brokers, got %v", config.Broker.Brokers)
	}
	if config.Broker.Topic != "plant.telemetry" {
		t.Errorf("expected Topic 'plant.telemetry', got '%s'", config.Broker.Topic)
	}
	if config.Buffers != LowResourceBuffers() {
		t.Errorf("expected low resource buffers, got %+v", config.Buffers)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("loaded config should validate: %v", err)
	}
}

func TestLoadFromFile_Errors(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("server: [unclosed"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	if _, err := LoadFromFile(path); err == nil {
		t.Error("expected error for malformed yaml")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("REACTOR_ADDR", ":7000")
	t.Setenv("REACTOR_TICK_INTERVAL", "20ms")
	t.Setenv("REACTOR_TIME_SCALE", "4")
	t.Setenv("REACTOR_GRID_ENABLED", "false")
	t.Setenv("REACTOR_GRID_SEED", "99")
	t.Setenv("REACTOR_DB", "file:journal.db")
	t.Setenv("REACTOR_KAFKA_BROKERS", "a:9092, b:9092,")
	t.Setenv("REACTOR_BUFFER_PROFILE", "stress")
	t.Setenv("REACTOR_LOG_LEVEL", "debug")

	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for an explicit missing file")
	}

	config := Default()
	if err := applyEnvOverrides(config); err != nil {
		t.Fatalf("applyEnvOverrides failed: %v", err)
	}

	if config.Server.Addr != ":7000" {
		t.Errorf("expected Addr ':7000', got '%s'", config.Server.Addr)
	}
	if config.Server.TickInterval != 20*time.Millisecond {
		t.Errorf("expected TickInterval 20ms, got %v", config.Server.TickInterval)
	}
	if config.Server.TimeScale != 4 {
		t.Errorf("expected TimeScale 4, got %v", config.Server.TimeScale)
	}
	if config.Grid.Enabled {
		t.Error("expected grid disabled")
	}
	if config.Grid.Seed != 99 {
		t.Errorf("expected Seed 99, got %d", config.Grid.Seed)
	}
	if config.Storage.DSN != "file:journal.db" {
		t.Errorf("expected DSN override, got '%s'", config.Storage.DSN)
	}
	if len(config.Broker.Brokers) != 2 || config.Broker.Brokers[1] != "b:9092" {
		t.Errorf("expected trimmed broker list, got %v", config.Broker.Brokers)
	}
	if config.Buffers.Profile != ProfileStress {
		t.Errorf("expected stress profile, got '%s'", config.Buffers.Profile)
	}
	if config.Logging.Level != "debug" {
		t.Errorf("expected Logging.Level 'debug', got '%s'", config.Logging.Level)
	}
}

func TestEnvOverrides_InvalidValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"REACTOR_TICK_INTERVAL", "soon"},
		{"REACTOR_TIME_SCALE", "fast"},
		{"REACTOR_INITIAL_DEMAND", "lots"},
		{"REACTOR_GRID_SEED", "x"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if err := applyEnvOverrides(Default()); err == nil {
				t.Errorf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero tick interval", func(c *Config) { c.Server.TickInterval = 0 }},
		{"negative time scale", func(c *Config) { c.Server.TimeScale = -1 }},
		{"negative initial demand", func(c *Config) { c.Reactor.InitialDemand = -5 }},
		{"bad constants", func(c *Config) { c.Reactor.Constants.TurbinePowerFactor = 0 }},
		{"inverted grid bounds", func(c *Config) { c.Grid.BaseMin = 3000 }},
		{"inverted spike interval", func(c *Config) { c.Grid.SpikeIntervalMax = time.Second }},
		{"empty dsn", func(c *Config) { c.Storage.DSN = "" }},
		{"zero history", func(c *Config) { c.Storage.HistorySize = 0 }},
		{"brokers without topic", func(c *Config) {
			c.Broker.Brokers = []string{"localhost:9092"}
			c.Broker.Topic = ""
		}},
		{"unknown buffer profile", func(c *Config) { c.Buffers.Profile = "turbo" }},
		{"zero client buffer", func(c *Config) { c.Buffers.ClientSendBuffer = 0 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := Default()
			tt.mutate(config)
			err := config.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestAnalyzeAndApply(t *testing.T) {
	rec := Analyze(LoadStats{}, 50*time.Millisecond)
	if len(rec.Notes) != 0 || rec.IncreaseBroadcastBuffer || rec.IncreaseWorkers {
		t.Errorf("expected no recommendations under no load, got %+v", rec)
	}

	rec = Analyze(LoadStats{
		MaxTickLatency: 80 * time.Millisecond,
		DroppedFrames:  3,
	}, 50*time.Millisecond)
	if !rec.IncreaseEventBuffer || !rec.IncreaseBroadcastBuffer || !rec.IncreaseWorkers {
		t.Errorf("expected all increases, got %+v", rec)
	}
	if len(rec.Notes) != 2 {
		t.Errorf("expected 2 notes, got %v", rec.Notes)
	}

	base := LowResourceBuffers()
	tuned := base.Apply(rec)
	if tuned.ClientSendBuffer != base.ClientSendBuffer*2 {
		t.Errorf("expected client buffer doubled, got %d", tuned.ClientSendBuffer)
	}
	if tuned.EventChannelBuffer != base.EventChannelBuffer*2 {
		t.Errorf("expected event buffer doubled, got %d", tuned.EventChannelBuffer)
	}
	if base.ClientSendBuffer != LowResourceBuffers().ClientSendBuffer {
		t.Error("Apply must not modify the receiver")
	}
}
