package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Buffer profiles.
const (
	ProfileDefault = "default"
	ProfileStress  = "stress"
	ProfileLow     = "low"
)

// BuffersConfig holds channel sizes and client limits for the broadcast path.
type BuffersConfig struct {
	// Profile selects a preset. Explicit fields in the file are ignored
	// when a profile is named.
	Profile string `json:"profile" yaml:"profile"`

	// Channel buffer sizes
	EventChannelBuffer     int `json:"event_channel_buffer" yaml:"event_channel_buffer"`
	BroadcastChannelBuffer int `json:"broadcast_channel_buffer" yaml:"broadcast_channel_buffer"`
	ClientSendBuffer       int `json:"client_send_buffer" yaml:"client_send_buffer"`

	// Journal write-through workers.
	EventWorkers int `json:"event_workers" yaml:"event_workers"`

	// Per-client command throttling
	CommandsPerSecond float64 `json:"commands_per_second" yaml:"commands_per_second"`
	CommandBurst      int     `json:"command_burst" yaml:"command_burst"`
	MaxClients        int     `json:"max_clients" yaml:"max_clients"`
}

// DefaultBuffers returns sensible defaults for a single operator console
// with a handful of observers.
func DefaultBuffers() BuffersConfig {
	return BuffersConfig{
		EventChannelBuffer:     1024,
		BroadcastChannelBuffer: 256,
		ClientSendBuffer:       64,
		EventWorkers:           runtime.NumCPU(),
		CommandsPerSecond:      20,
		CommandBurst:           10,
		MaxClients:             200,
	}
}

// StressBuffers returns aggressive settings for load testing with the
// agitator.
func StressBuffers() BuffersConfig {
	return BuffersConfig{
		Profile:                ProfileStress,
		EventChannelBuffer:     4096,
		BroadcastChannelBuffer: 512,
		ClientSendBuffer:       128,
		EventWorkers:           runtime.NumCPU() * 2,
		CommandsPerSecond:      500,
		CommandBurst:           100,
		MaxClients:             1000,
	}
}

// LowResourceBuffers returns minimal settings for development.
func LowResourceBuffers() BuffersConfig {
	return BuffersConfig{
		Profile:                ProfileLow,
		EventChannelBuffer:     64,
		BroadcastChannelBuffer: 16,
		ClientSendBuffer:       8,
		EventWorkers:           1,
		CommandsPerSecond:      5,
		CommandBurst:           5,
		MaxClients:             20,
	}
}

// withProfileDefaults replaces b with the preset named by b.Profile.
// Unknown profiles are kept as-is and rejected by Validate.
func (b BuffersConfig) withProfileDefaults() BuffersConfig {
	switch strings.ToLower(b.Profile) {
	case ProfileDefault:
		return DefaultBuffers()
	case ProfileStress:
		return StressBuffers()
	case ProfileLow:
		return LowResourceBuffers()
	}
	return b
}

// Validate checks buffer sizes and limits.
func (b BuffersConfig) Validate() error {
	switch strings.ToLower(b.Profile) {
	case "", ProfileDefault, ProfileStress, ProfileLow:
	default:
		return fmt.Errorf("unknown buffer profile %q (valid: default, stress, low)", b.Profile)
	}
	if b.EventChannelBuffer <= 0 || b.BroadcastChannelBuffer <= 0 || b.ClientSendBuffer <= 0 {
		return fmt.Errorf("channel buffers must be positive")
	}
	if b.EventWorkers <= 0 {
		return fmt.Errorf("event_workers must be positive, got %d", b.EventWorkers)
	}
	if b.CommandsPerSecond <= 0 || b.CommandBurst <= 0 {
		return fmt.Errorf("command rate limit must be positive")
	}
	if b.MaxClients <= 0 {
		return fmt.Errorf("max_clients must be positive, got %d", b.MaxClients)
	}
	return nil
}

// LoadStats summarizes observed pressure on the broadcast path.
type LoadStats struct {
	MaxTickLatency time.Duration
	DroppedFrames  int64
	JournalErrors  int64
}

// Recommendations provides buffer suggestions based on observed load.
type Recommendations struct {
	IncreaseEventBuffer     bool
	IncreaseBroadcastBuffer bool
	IncreaseWorkers         bool
	Notes                   []string
}

// Analyze examines observed load and returns tuning recommendations.
func Analyze(stats LoadStats, tickInterval time.Duration) *Recommendations {
	rec := &Recommendations{
		Notes: make([]string, 0),
	}

	if tickInterval > 0 && stats.MaxTickLatency > tickInterval {
		rec.IncreaseEventBuffer = true
		rec.IncreaseWorkers = true
		rec.Notes = append(rec.Notes, fmt.Sprintf("tick latency %v exceeds frame interval %v", stats.MaxTickLatency, tickInterval))
	}
	if stats.JournalErrors > 0 {
		rec.IncreaseWorkers = true
		rec.Notes = append(rec.Notes, "journal write errors detected, check the storage backend")
	}
	if stats.DroppedFrames > 0 {
		rec.IncreaseBroadcastBuffer = true
		rec.Notes = append(rec.Notes, "slow clients dropped frames, increase client send buffer")
	}

	return rec
}

// Apply returns a copy of b adjusted by rec.
func (b BuffersConfig) Apply(rec *Recommendations) BuffersConfig {
	if rec.IncreaseEventBuffer {
		b.EventChannelBuffer *= 2
	}
	if rec.IncreaseBroadcastBuffer {
		b.BroadcastChannelBuffer *= 2
		b.ClientSendBuffer *= 2
	}
	if rec.IncreaseWorkers {
		b.EventWorkers *= 2
	}
	return b
}
