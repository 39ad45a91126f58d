package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MRamiBalles/reactor-sim/internal/reactor"
)

// SQLiteEventRepository implements EventRepository for SQLite.
type SQLiteEventRepository struct {
	db *sql.DB
}

func NewSQLiteEventRepository(db *sql.DB) *SQLiteEventRepository {
	return &SQLiteEventRepository{db: db}
}

func (r *SQLiteEventRepository) Append(ctx context.Context, event EventRecord) error {
	payloadBytes, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	query := `
		INSERT INTO events (id, reactor_id, seq, timestamp, sim_time, event_type, actor_id, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		event.ID, event.ReactorID, event.Seq, event.Timestamp, event.SimTime,
		event.EventType, event.ActorID, string(payloadBytes),
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

func (r *SQLiteEventRepository) getMany(ctx context.Context, query string, args ...any) ([]EventRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []EventRecord
	for rows.Next() {
		var e EventRecord
		var payloadStr string
		err := rows.Scan(
			&e.ID, &e.ReactorID, &e.Seq, &e.Timestamp, &e.SimTime,
			&e.EventType, &e.ActorID, &payloadStr,
		)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(payloadStr), &e.Payload); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

const eventColumns = `id, reactor_id, seq, timestamp, sim_time, event_type, actor_id, payload`

func (r *SQLiteEventRepository) Recent(ctx context.Context, reactorID string, limit int) ([]EventRecord, error) {
	query := `SELECT ` + eventColumns + ` FROM (
		SELECT rowid AS rid, ` + eventColumns + ` FROM events WHERE reactor_id = ? ORDER BY rowid DESC LIMIT ?
	) ORDER BY rid ASC`
	return r.getMany(ctx, query, reactorID, limit)
}

func (r *SQLiteEventRepository) ByType(ctx context.Context, reactorID string, eventType string) ([]EventRecord, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE reactor_id = ? AND event_type = ? ORDER BY rowid ASC`
	return r.getMany(ctx, query, reactorID, eventType)
}

// ---------------------------------------------------------
// SQLiteTelemetryRepository
// ---------------------------------------------------------

type SQLiteTelemetryRepository struct {
	db *sql.DB
}

func NewSQLiteTelemetryRepository(db *sql.DB) *SQLiteTelemetryRepository {
	return &SQLiteTelemetryRepository{db: db}
}

func (r *SQLiteTelemetryRepository) Append(ctx context.Context, s TelemetryRecord) error {
	query := `
		INSERT INTO telemetry (reactor_id, sim_time, timestamp, temperature, power_output, power_load, fission_rate, turbine_output, fuel_condition, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		s.ReactorID, s.SimTime, s.Timestamp, s.Temperature, s.PowerOutput, s.PowerLoad,
		s.FissionRate, s.TurbineOutput, s.FuelCondition, s.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to append telemetry: %w", err)
	}
	return nil
}

func (r *SQLiteTelemetryRepository) Latest(ctx context.Context, reactorID string, limit int) ([]TelemetryRecord, error) {
	query := `SELECT reactor_id, sim_time, timestamp, temperature, power_output, power_load, fission_rate, turbine_output, fuel_condition, status
		FROM (
			SELECT rowid AS rid, * FROM telemetry WHERE reactor_id = ? ORDER BY rowid DESC LIMIT ?
		) ORDER BY rid ASC`
	rows, err := r.db.QueryContext(ctx, query, reactorID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []TelemetryRecord
	for rows.Next() {
		var s TelemetryRecord
		if err := rows.Scan(&s.ReactorID, &s.SimTime, &s.Timestamp, &s.Temperature, &s.PowerOutput,
			&s.PowerLoad, &s.FissionRate, &s.TurbineOutput, &s.FuelCondition, &s.Status); err != nil {
			return nil, err
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// ---------------------------------------------------------
// SQLiteSnapshotRepository
// ---------------------------------------------------------

type SQLiteSnapshotRepository struct {
	db *sql.DB
}

func NewSQLiteSnapshotRepository(db *sql.DB) *SQLiteSnapshotRepository {
	return &SQLiteSnapshotRepository{db: db}
}

func (r *SQLiteSnapshotRepository) Save(ctx context.Context, reactorID string, simTime float64, state reactor.State) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	query := `
		INSERT INTO snapshots (reactor_id, sim_time, state_json, last_updated)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(reactor_id) DO UPDATE SET
			sim_time=excluded.sim_time,
			state_json=excluded.state_json,
			last_updated=excluded.last_updated
	`
	if _, err := r.db.ExecContext(ctx, query, reactorID, simTime, string(stateJSON), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

func (r *SQLiteSnapshotRepository) Load(ctx context.Context, reactorID string) (reactor.State, float64, bool, error) {
	var (
		state     reactor.State
		simTime   float64
		stateJSON string
	)
	query := `SELECT sim_time, state_json FROM snapshots WHERE reactor_id = ?`
	err := r.db.QueryRowContext(ctx, query, reactorID).Scan(&simTime, &stateJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return state, 0, false, nil
	}
	if err != nil {
		return state, 0, false, fmt.Errorf("failed to load snapshot: %w", err)
	}
	if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
		return state, 0, false, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return state, simTime, true, nil
}
