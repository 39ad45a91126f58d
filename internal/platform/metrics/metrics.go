// Package metrics provides observability for the reactor server.
package metrics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MRamiBalles/reactor-sim/internal/reactor"
)

// Collector gathers performance and plant metrics.
type Collector struct {
	// Tick metrics
	tickCount      atomic.Int64
	tickLatencySum atomic.Int64 // nanoseconds
	tickLatencyMax atomic.Int64

	// Command metrics
	commandsApplied   atomic.Int64
	commandsRejected  atomic.Int64
	commandsThrottled atomic.Int64
	alertsRaised      atomic.Int64

	// WebSocket metrics
	wsConnectionsActive atomic.Int64
	wsMessagesIn        atomic.Int64
	wsMessagesOut       atomic.Int64
	wsErrors            atomic.Int64
	wsDroppedFrames     atomic.Int64

	// Persistence and streaming, reported as totals by their owners
	journalPersisted atomic.Int64
	journalFailed    atomic.Int64
	telemetryDropped atomic.Int64
	telemetryFailed  atomic.Int64

	mu           sync.RWMutex
	lastTickTime time.Time
	simTime      float64
	plant        reactor.State

	startTime time.Time
}

var collector = New()

// Get returns the global collector.
func Get() *Collector {
	return collector
}

// New creates an empty collector.
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// RecordTick records a frame completion and the plant state it produced.
func (c *Collector) RecordTick(latency time.Duration, simTime float64, s reactor.State) {
	c.tickCount.Add(1)
	c.tickLatencySum.Add(int64(latency))
	for {
		cur := c.tickLatencyMax.Load()
		if int64(latency) <= cur || c.tickLatencyMax.CompareAndSwap(cur, int64(latency)) {
			break
		}
	}

	c.mu.Lock()
	c.lastTickTime = time.Now()
	c.simTime = simTime
	c.plant = s
	c.mu.Unlock()
}

// RecordCommand records an operator command outcome.
func (c *Collector) RecordCommand(applied bool) {
	if applied {
		c.commandsApplied.Add(1)
	} else {
		c.commandsRejected.Add(1)
	}
}

// RecordThrottled records a command dropped by the rate limiter.
func (c *Collector) RecordThrottled() {
	c.commandsThrottled.Add(1)
}

// RecordAlert records a newly raised alert flag.
func (c *Collector) RecordAlert() {
	c.alertsRaised.Add(1)
}

// RecordWSConnection records WebSocket connection changes.
func (c *Collector) RecordWSConnection(delta int64) {
	c.wsConnectionsActive.Add(delta)
}

// RecordWSMessage records WebSocket messages.
func (c *Collector) RecordWSMessage(incoming bool) {
	if incoming {
		c.wsMessagesIn.Add(1)
	} else {
		c.wsMessagesOut.Add(1)
	}
}

// RecordWSError records a WebSocket error.
func (c *Collector) RecordWSError() {
	c.wsErrors.Add(1)
}

// RecordDroppedFrame records a frame skipped for a slow client.
func (c *Collector) RecordDroppedFrame() {
	c.wsDroppedFrames.Add(1)
}

// SetJournalStats stores the journal's write-through totals.
func (c *Collector) SetJournalStats(persisted, failed int64) {
	c.journalPersisted.Store(persisted)
	c.journalFailed.Store(failed)
}

// SetTelemetryStats stores the recorder's publishing totals.
func (c *Collector) SetTelemetryStats(dropped, failed int64) {
	c.telemetryDropped.Store(dropped)
	c.telemetryFailed.Store(failed)
}

// Snapshot is a point-in-time view of the collector.
type Snapshot struct {
	UptimeSeconds float64 `json:"uptime_seconds"`

	Tick struct {
		Count        int64   `json:"count"`
		AvgLatencyMs float64 `json:"avg_latency_ms"`
		MaxLatencyMs float64 `json:"max_latency_ms"`
		LastTick     string  `json:"last_tick"`
		SimTime      float64 `json:"sim_time"`
	} `json:"tick"`

	Commands struct {
		Applied   int64 `json:"applied"`
		Rejected  int64 `json:"rejected"`
		Throttled int64 `json:"throttled"`
	} `json:"commands"`

	Journal struct {
		AlertsRaised int64 `json:"alerts_raised"`
		Persisted    int64 `json:"persisted"`
		Errors       int64 `json:"errors"`
	} `json:"journal"`

	Telemetry struct {
		Dropped int64 `json:"dropped"`
		Errors  int64 `json:"errors"`
	} `json:"telemetry"`

	WebSocket struct {
		ActiveConnections int64 `json:"active_connections"`
		MessagesIn        int64 `json:"messages_in"`
		MessagesOut       int64 `json:"messages_out"`
		Errors            int64 `json:"errors"`
		DroppedFrames     int64 `json:"dropped_frames"`
	} `json:"websocket"`

	Reactor struct {
		Temperature   float64  `json:"temperature"`
		PowerOutput   float64  `json:"power_output"`
		PowerLoad     float64  `json:"power_load"`
		FuelCondition float64  `json:"fuel_condition"`
		Status        uint32   `json:"status"`
		Flags         []string `json:"flags"`
	} `json:"reactor"`
}

// Snapshot returns current metrics.
func (c *Collector) Snapshot() Snapshot {
	var s Snapshot
	s.UptimeSeconds = time.Since(c.startTime).Seconds()

	tickCount := c.tickCount.Load()
	s.Tick.Count = tickCount
	if tickCount > 0 {
		s.Tick.AvgLatencyMs = float64(c.tickLatencySum.Load()) / float64(tickCount) / 1e6
	}
	s.Tick.MaxLatencyMs = float64(c.tickLatencyMax.Load()) / 1e6

	s.Commands.Applied = c.commandsApplied.Load()
	s.Commands.Rejected = c.commandsRejected.Load()
	s.Commands.Throttled = c.commandsThrottled.Load()

	s.Journal.AlertsRaised = c.alertsRaised.Load()
	s.Journal.Persisted = c.journalPersisted.Load()
	s.Journal.Errors = c.journalFailed.Load()

	s.Telemetry.Dropped = c.telemetryDropped.Load()
	s.Telemetry.Errors = c.telemetryFailed.Load()

	s.WebSocket.ActiveConnections = c.wsConnectionsActive.Load()
	s.WebSocket.MessagesIn = c.wsMessagesIn.Load()
	s.WebSocket.MessagesOut = c.wsMessagesOut.Load()
	s.WebSocket.Errors = c.wsErrors.Load()
	s.WebSocket.DroppedFrames = c.wsDroppedFrames.Load()

	c.mu.RLock()
	if !c.lastTickTime.IsZero() {
		s.Tick.LastTick = c.lastTickTime.Format(time.RFC3339)
	}
	s.Tick.SimTime = c.simTime
	s.Reactor.Temperature = c.plant.Temperature
	s.Reactor.PowerOutput = c.plant.PowerOutput
	s.Reactor.PowerLoad = c.plant.PowerLoad
	s.Reactor.FuelCondition = c.plant.FuelCondition()
	s.Reactor.Status = uint32(c.plant.Status)
	s.Reactor.Flags = c.plant.Status.Names()
	c.mu.RUnlock()

	return s
}

// MaxTickLatency returns the slowest frame seen so far.
func (c *Collector) MaxTickLatency() time.Duration {
	return time.Duration(c.tickLatencyMax.Load())
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (c *Collector) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")
		json.NewEncoder(w).Encode(c.Snapshot())
	}
}

// PrometheusHandler returns metrics in Prometheus text format.
func (c *Collector) PrometheusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		s := c.Snapshot()

		metric := func(name, kind, help string, value any) {
			fmt.Fprintf(w, "# HELP %s %s\n", name, help)
			fmt.Fprintf(w, "# TYPE %s %s\n", name, kind)
			fmt.Fprintf(w, "%s %v\n\n", name, value)
		}

		metric("reactor_tick_count", "counter", "Total simulation frames", s.Tick.Count)
		metric("reactor_tick_latency_max_ms", "gauge", "Maximum frame latency", fmt.Sprintf("%.2f", s.Tick.MaxLatencyMs))
		metric("reactor_sim_time_seconds", "gauge", "Simulated time since start", s.Tick.SimTime)

		fmt.Fprintf(w, "# HELP reactor_commands_total Operator commands by outcome\n")
		fmt.Fprintf(w, "# TYPE reactor_commands_total counter\n")
		fmt.Fprintf(w, "reactor_commands_total{outcome=\"applied\"} %d\n", s.Commands.Applied)
		fmt.Fprintf(w, "reactor_commands_total{outcome=\"rejected\"} %d\n", s.Commands.Rejected)
		fmt.Fprintf(w, "reactor_commands_total{outcome=\"throttled\"} %d\n\n", s.Commands.Throttled)

		metric("reactor_alerts_raised_total", "counter", "Alert flags raised", s.Journal.AlertsRaised)
		metric("reactor_journal_write_errors", "counter", "Journal write-through failures", s.Journal.Errors)
		metric("reactor_telemetry_publish_errors", "counter", "Telemetry publish failures", s.Telemetry.Errors)

		metric("reactor_ws_connections", "gauge", "Active WebSocket connections", s.WebSocket.ActiveConnections)
		fmt.Fprintf(w, "# HELP reactor_ws_messages_total Total WebSocket messages\n")
		fmt.Fprintf(w, "# TYPE reactor_ws_messages_total counter\n")
		fmt.Fprintf(w, "reactor_ws_messages_total{direction=\"in\"} %d\n", s.WebSocket.MessagesIn)
		fmt.Fprintf(w, "reactor_ws_messages_total{direction=\"out\"} %d\n\n", s.WebSocket.MessagesOut)
		metric("reactor_ws_dropped_frames", "counter", "Frames skipped for slow clients", s.WebSocket.DroppedFrames)

		metric("reactor_temperature_celsius", "gauge", "Core temperature", fmt.Sprintf("%.2f", s.Reactor.Temperature))
		metric("reactor_power_output_kw", "gauge", "Electrical output", fmt.Sprintf("%.2f", s.Reactor.PowerOutput))
		metric("reactor_power_load_kw", "gauge", "Grid demand", fmt.Sprintf("%.2f", s.Reactor.PowerLoad))
		metric("reactor_fuel_percent", "gauge", "Fuel rod condition", fmt.Sprintf("%.2f", s.Reactor.FuelCondition))
		metric("reactor_status_bits", "gauge", "Alert bitset", s.Reactor.Status)
	}
}
