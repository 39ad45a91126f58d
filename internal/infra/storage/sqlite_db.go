package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// MemoryDSN is an in-memory database that lives as long as its *sql.DB.
const MemoryDSN = ":memory:"

// InitSQLite opens the SQLite database named by dsn and creates the schemas
// for the journal, telemetry samples and reactor snapshots. A plain file
// path gets its directory created; ":memory:" and "file:" URIs are passed
// to the driver as-is.
func InitSQLite(dsn string) (*sql.DB, error) {
	if dsn == "" {
		dsn = MemoryDSN
	}

	if dsn != MemoryDSN && !strings.HasPrefix(dsn, "file:") {
		dir := filepath.Dir(dsn)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// A single connection keeps one writer and one shared in-memory database.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	if err := createSchemas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schemas: %w", err)
	}

	return db, nil
}

func createSchemas(db *sql.DB) error {
	schemas := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			reactor_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			timestamp DATETIME NOT NULL,
			sim_time REAL NOT NULL,
			event_type TEXT NOT NULL,
			actor_id TEXT NOT NULL,
			payload TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS telemetry (
			reactor_id TEXT NOT NULL,
			sim_time REAL NOT NULL,
			timestamp DATETIME NOT NULL,
			temperature REAL NOT NULL,
			power_output REAL NOT NULL,
			power_load REAL NOT NULL,
			fission_rate REAL NOT NULL,
			turbine_output REAL NOT NULL,
			fuel_condition REAL NOT NULL,
			status INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			reactor_id TEXT PRIMARY KEY,
			sim_time REAL NOT NULL,
			state_json TEXT NOT NULL,
			last_updated DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_reactor_seq ON events(reactor_id, seq);`,
		`CREATE INDEX IF NOT EXISTS idx_events_type ON events(event_type);`,
		`CREATE INDEX IF NOT EXISTS idx_telemetry_reactor_time ON telemetry(reactor_id, sim_time);`,
	}

	for _, query := range schemas {
		if _, err := db.Exec(query); err != nil {
			return err
		}
	}

	return nil
}
