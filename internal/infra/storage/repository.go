// Package storage provides the persistence layer for the reactor server.
// This package implements the repository pattern to keep the simulation pure.
package storage

import (
	"context"
	"time"

	"github.com/MRamiBalles/reactor-sim/internal/reactor"
)

// EventRecord mirrors a journal entry for persistence.
type EventRecord struct {
	ID        string         `json:"id" db:"id"`
	ReactorID string         `json:"reactor_id" db:"reactor_id"`
	Seq       uint64         `json:"seq" db:"seq"`
	Timestamp time.Time      `json:"timestamp" db:"timestamp"`
	SimTime   float64        `json:"sim_time" db:"sim_time"`
	EventType string         `json:"event_type" db:"event_type"`
	ActorID   string         `json:"actor_id" db:"actor_id"`
	Payload   map[string]any `json:"payload" db:"payload"`
}

// EventRepository defines the interface for journal persistence.
type EventRepository interface {
	// Append adds a new event to the immutable ledger.
	Append(ctx context.Context, event EventRecord) error

	// Recent retrieves the last limit events for a reactor, oldest first.
	Recent(ctx context.Context, reactorID string, limit int) ([]EventRecord, error)

	// ByType retrieves all events of a specific type.
	ByType(ctx context.Context, reactorID string, eventType string) ([]EventRecord, error)
}

// TelemetryRecord is one stored telemetry sample.
type TelemetryRecord struct {
	ReactorID     string    `json:"reactor_id" db:"reactor_id"`
	SimTime       float64   `json:"sim_time" db:"sim_time"`
	Timestamp     time.Time `json:"timestamp" db:"timestamp"`
	Temperature   float64   `json:"temperature" db:"temperature"`
	PowerOutput   float64   `json:"power_output" db:"power_output"`
	PowerLoad     float64   `json:"power_load" db:"power_load"`
	FissionRate   float64   `json:"fission_rate" db:"fission_rate"`
	TurbineOutput float64   `json:"turbine_output" db:"turbine_output"`
	FuelCondition float64   `json:"fuel_condition" db:"fuel_condition"`
	Status        uint32    `json:"status" db:"status"`
}

// TelemetryRepository defines the interface for telemetry persistence.
type TelemetryRepository interface {
	// Append stores one sample.
	Append(ctx context.Context, sample TelemetryRecord) error

	// Latest retrieves the last limit samples for a reactor, oldest first.
	Latest(ctx context.Context, reactorID string, limit int) ([]TelemetryRecord, error)
}

// SnapshotRepository stores the last known reactor state so a restarted
// server on a file-backed database resumes where it stopped.
type SnapshotRepository interface {
	// Save updates or inserts the snapshot for a reactor.
	Save(ctx context.Context, reactorID string, simTime float64, state reactor.State) error

	// Load returns the stored snapshot, or ok=false when none exists.
	Load(ctx context.Context, reactorID string) (state reactor.State, simTime float64, ok bool, err error)
}
