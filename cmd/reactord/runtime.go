package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/MRamiBalles/reactor-sim/internal/config"
	"github.com/MRamiBalles/reactor-sim/internal/engine"
	"github.com/MRamiBalles/reactor-sim/internal/events"
	"github.com/MRamiBalles/reactor-sim/internal/grid"
	"github.com/MRamiBalles/reactor-sim/internal/infra/broker"
	"github.com/MRamiBalles/reactor-sim/internal/infra/storage"
	"github.com/MRamiBalles/reactor-sim/internal/platform/logger"
	"github.com/MRamiBalles/reactor-sim/internal/platform/metrics"
	"github.com/MRamiBalles/reactor-sim/internal/reactor"
	"github.com/MRamiBalles/reactor-sim/internal/telemetry"
)

const (
	journalWriteTimeout = 2 * time.Second
	maintainInterval    = 5 * time.Second
)

// loadConfig reads the --config flag, loads and validates the config.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// runtime is the wired simulation: reactor, driver, journal, telemetry and
// their storage.
type runtime struct {
	cfg *config.Config
	log *logger.Logger

	db        *sql.DB
	eventRepo *storage.SQLiteEventRepository
	snapshots *storage.SQLiteSnapshotRepository
	kafka     *broker.KafkaPublisher

	journal  *events.Journal
	recorder *telemetry.Recorder
	driver   *engine.Driver
}

func newRuntime(cfg *config.Config, log *logger.Logger, collector *metrics.Collector) (*runtime, error) {
	r, err := reactor.New(cfg.Reactor.Constants, cfg.Reactor.InitialDemand)
	if err != nil {
		return nil, err
	}

	log.Info("initializing SQLite store", "dsn", cfg.Storage.DSN)
	db, err := storage.InitSQLite(cfg.Storage.DSN)
	if err != nil {
		return nil, err
	}

	rt := &runtime{
		cfg:       cfg,
		log:       log,
		db:        db,
		eventRepo: storage.NewSQLiteEventRepository(db),
		snapshots: storage.NewSQLiteSnapshotRepository(db),
	}
	rt.journal = events.NewJournal(
		storage.NewJournalSink(rt.eventRepo, journalWriteTimeout),
		cfg.Buffers.EventChannelBuffer,
		cfg.Buffers.EventWorkers,
	)

	publishers := []telemetry.Publisher{
		telemetry.NewStorePublisher(storage.NewSQLiteTelemetryRepository(db)),
	}
	if cfg.Broker.Enabled() {
		log.Info("streaming telemetry to kafka", "brokers", cfg.Broker.Brokers, "topic", cfg.Broker.Topic)
		rt.kafka = broker.NewKafkaPublisher(broker.NewKafkaWriter(cfg.Broker.Brokers, cfg.Broker.Topic))
		publishers = append(publishers, rt.kafka)
	}
	rt.recorder = telemetry.NewRecorder(
		cfg.Server.ReactorID,
		cfg.Storage.SampleInterval,
		telemetry.NewHistory(cfg.Storage.HistorySize),
		log,
		publishers...,
	)

	var demand *grid.Demand
	if cfg.Grid.Enabled {
		demand = grid.NewDemand(cfg.Grid, cfg.Reactor.InitialDemand)
	}

	rt.driver = engine.NewDriver(r, engine.Options{
		ReactorID:    cfg.Server.ReactorID,
		Demand:       demand,
		Journal:      rt.journal,
		Recorder:     rt.recorder,
		Metrics:      collector,
		Logger:       log,
		TickInterval: cfg.Server.TickInterval,
		TimeScale:    cfg.Server.TimeScale,
	})
	return rt, nil
}

// resume restores the last stored snapshot, if any. A fresh in-memory
// database never has one.
func (rt *runtime) resume(ctx context.Context) {
	state, simTime, ok, err := rt.snapshots.Load(ctx, rt.cfg.Server.ReactorID)
	if err != nil {
		rt.log.Error("failed to load reactor snapshot", "error", err)
		return
	}
	if !ok {
		rt.log.Info("no stored snapshot, starting at equilibrium", "demand", rt.cfg.Reactor.InitialDemand)
		return
	}
	if err := rt.driver.Restore(state, simTime); err != nil {
		rt.log.Warn("stored snapshot rejected, starting at equilibrium", "error", err)
		return
	}
	rt.log.Info("resumed reactor from snapshot", "sim_time", simTime, "temperature", state.Temperature)
}

func (rt *runtime) saveSnapshot(ctx context.Context) error {
	f := rt.driver.Snapshot()
	return rt.snapshots.Save(ctx, f.ReactorID, f.SimTime, f.State)
}

// syncStats copies persistence counters into the metrics collector.
func (rt *runtime) syncStats() {
	m := rt.driver.Metrics()
	m.SetJournalStats(rt.journal.PersistStats())
	m.SetTelemetryStats(rt.recorder.Stats())
}

// maintain periodically snapshots the reactor and refreshes counters until
// ctx is cancelled.
func (rt *runtime) maintain(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rt.syncStats()
			if err := rt.saveSnapshot(ctx); err != nil && ctx.Err() == nil {
				rt.log.Warn("failed to save reactor snapshot", "error", err)
			}
		}
	}
}

// recommendations reports buffer tuning advice from what the run observed.
func (rt *runtime) recommendations() *config.Recommendations {
	s := rt.driver.Metrics().Snapshot()
	return config.Analyze(config.LoadStats{
		MaxTickLatency: rt.driver.Metrics().MaxTickLatency(),
		DroppedFrames:  s.WebSocket.DroppedFrames,
		JournalErrors:  s.Journal.Errors,
	}, rt.cfg.Server.TickInterval)
}

// close stops the driver and drains the journal and telemetry queues
// before closing storage.
func (rt *runtime) close() {
	rt.driver.Stop()
	rt.recorder.Close()
	rt.journal.Close()
	rt.syncStats()
	if rt.kafka != nil {
		if err := rt.kafka.Close(); err != nil {
			rt.log.Warn("failed to close kafka writer", "error", err)
		}
	}
	if err := rt.db.Close(); err != nil {
		rt.log.Warn("failed to close database", "error", err)
	}
}
