package engine

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/MRamiBalles/reactor-sim/internal/events"
	"github.com/MRamiBalles/reactor-sim/internal/grid"
	"github.com/MRamiBalles/reactor-sim/internal/platform/logger"
	"github.com/MRamiBalles/reactor-sim/internal/platform/metrics"
	"github.com/MRamiBalles/reactor-sim/internal/reactor"
	"github.com/MRamiBalles/reactor-sim/internal/telemetry"
)

// SystemActor is the actor recorded for derived journal entries.
const SystemActor = "system"

// Frame is the state broadcast after every simulation frame and command.
type Frame struct {
	Type       string        `json:"type"`
	ReactorID  string        `json:"reactorId"`
	SimTime    float64       `json:"simTime"`
	State      reactor.State `json:"state"`
	Flags      []string      `json:"flags"`
	GridDriven bool          `json:"gridDriven"`
}

// Options wires the driver's collaborators. Every field is optional.
type Options struct {
	ReactorID    string
	Demand       *grid.Demand
	Journal      *events.Journal
	Recorder     *telemetry.Recorder
	Metrics      *metrics.Collector
	Logger       *logger.Logger
	TickInterval time.Duration
	TimeScale    float64
}

// Driver is the central orchestrator: it owns the reactor engine, feeds it
// grid demand, journals commands and alert transitions, records telemetry
// and fans frames out to subscribers.
type Driver struct {
	mu         sync.Mutex
	reactor    *reactor.Engine
	demand     *grid.Demand
	gridDriven bool
	simTime    float64

	reactorID string
	journal   *events.Journal
	recorder  *telemetry.Recorder
	metrics   *metrics.Collector
	logger    *logger.Logger
	ticker    *Ticker

	// pubMu is taken before mu is released so frames reach subscribers
	// in the order they were produced.
	pubMu  sync.Mutex
	subMu  sync.RWMutex
	subs   map[int]func(Frame)
	nextID int
}

// NewDriver wraps r. The driver takes ownership of r; callers must not use
// it directly afterwards.
func NewDriver(r *reactor.Engine, opts Options) *Driver {
	if opts.ReactorID == "" {
		opts.ReactorID = "REACTOR_1"
	}
	if opts.Journal == nil {
		opts.Journal = events.NewJournal(nil, 0, 0)
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}

	d := &Driver{
		reactor:    r,
		demand:     opts.Demand,
		gridDriven: opts.Demand != nil,
		reactorID:  opts.ReactorID,
		journal:    opts.Journal,
		recorder:   opts.Recorder,
		metrics:    opts.Metrics,
		logger:     opts.Logger.With("reactor_id", opts.ReactorID),
		subs:       make(map[int]func(Frame)),
	}
	d.ticker = NewTicker(opts.TickInterval, opts.TimeScale, func(dt float64) { d.Step(dt) }, d.logger)
	return d
}

// Start spawns the frame loop. It returns immediately; the loop ends when
// ctx is cancelled or Stop is called.
func (d *Driver) Start(ctx context.Context) {
	d.logger.Info("starting reactor driver", "grid_driven", d.gridDriven)
	go d.ticker.Start(ctx)
}

// Stop ends the frame loop.
func (d *Driver) Stop() {
	d.ticker.Stop()
}

// ReactorID returns the reactor's name.
func (d *Driver) ReactorID() string {
	return d.reactorID
}

// Journal exposes the journal for read-only queries.
func (d *Driver) Journal() *events.Journal {
	return d.journal
}

// Recorder exposes the telemetry recorder, or nil when none is wired.
func (d *Driver) Recorder() *telemetry.Recorder {
	return d.recorder
}

// Metrics exposes the collector.
func (d *Driver) Metrics() *metrics.Collector {
	return d.metrics
}

// Subscribe registers fn to receive every frame, in production order. fn
// runs on the caller's goroutine and must not block or call back into the
// driver. The returned
// function removes the subscription.
func (d *Driver) Subscribe(fn func(Frame)) (unsubscribe func()) {
	d.subMu.Lock()
	id := d.nextID
	d.nextID++
	d.subs[id] = fn
	d.subMu.Unlock()

	return func() {
		d.subMu.Lock()
		delete(d.subs, id)
		d.subMu.Unlock()
	}
}

func (d *Driver) broadcast(f Frame) {
	d.subMu.RLock()
	defer d.subMu.RUnlock()
	for _, fn := range d.subs {
		fn(f)
	}
}

// Step advances the simulation by dt simulated seconds and returns the
// resulting frame.
func (d *Driver) Step(dt float64) Frame {
	start := time.Now()

	d.mu.Lock()
	prev := d.reactor.State().Status
	if d.gridDriven && d.demand != nil {
		d.reactor.SetPowerLoad(d.demand.Next(dt))
	}
	d.reactor.Tick(dt)
	if dt > 0 {
		d.simTime += dt
	}
	state := d.reactor.State()
	d.journalTransitions(prev, state)
	if d.recorder != nil {
		d.recorder.Observe(d.simTime, state)
	}
	frame := d.frameLocked(state)
	d.pubMu.Lock()
	d.mu.Unlock()

	d.broadcast(frame)
	d.pubMu.Unlock()

	d.metrics.RecordTick(time.Since(start), frame.SimTime, state)
	d.logger.Trace("frame", "sim_time", frame.SimTime, "temperature", state.Temperature,
		"power", state.PowerOutput, "load", state.PowerLoad, "status", state.Status.String())
	return frame
}

// journalTransitions records alert flags that changed during a frame. The
// scram latch is journaled by its command instead.
func (d *Driver) journalTransitions(prev reactor.Status, state reactor.State) {
	next := state.Status
	raised := next.Without(prev).Without(reactor.StatusScram)
	cleared := prev.Without(next).Without(reactor.StatusScram)

	for _, flag := range raised.Flags() {
		d.appendEvent(events.EventTypeAlertRaised, SystemActor, alertPayload(flag, state))
		d.metrics.RecordAlert()
		switch flag {
		case reactor.StatusMeltdown, reactor.StatusFuelOut:
			d.logger.Error("alert raised", "status", flag.String(), "temperature", state.Temperature)
		default:
			d.logger.Warn("alert raised", "status", flag.String(), "temperature", state.Temperature)
		}
	}
	for _, flag := range cleared.Flags() {
		d.appendEvent(events.EventTypeAlertCleared, SystemActor, alertPayload(flag, state))
		d.logger.Info("alert cleared", "status", flag.String())
	}
}

func alertPayload(flag reactor.Status, s reactor.State) map[string]any {
	return map[string]any{
		"status":      flag.String(),
		"temperature": s.Temperature,
		"powerOutput": s.PowerOutput,
		"powerLoad":   s.PowerLoad,
		"fuel":        s.FuelCondition(),
	}
}

func (d *Driver) appendEvent(t events.EventType, actor string, payload map[string]any) {
	d.journal.Append(events.ReactorEvent{
		Type:      t,
		ReactorID: d.reactorID,
		ActorID:   actor,
		SimTime:   d.simTime,
		Payload:   payload,
	})
}

// Execute applies an operator command and journals it. Commands take
// effect immediately; status flags follow on the next frame. A rejected
// command returns the unchanged frame and an error wrapping one of the
// Err* values in this package.
func (d *Driver) Execute(cmd Command) (Frame, error) {
	actor := cmd.Actor
	if actor == "" {
		actor = "operator"
	}

	d.mu.Lock()
	err := d.applyLocked(cmd, actor)
	frame := d.frameLocked(d.reactor.State())
	if err != nil {
		d.mu.Unlock()
		d.metrics.RecordCommand(false)
		d.logger.Warn("command rejected", "command", cmd.Name, "actor", actor, "error", err)
		return frame, err
	}
	d.pubMu.Lock()
	d.mu.Unlock()
	d.broadcast(frame)
	d.pubMu.Unlock()

	d.metrics.RecordCommand(true)
	d.logger.Event("COMMAND", actor, cmd.Name)
	return frame, nil
}

func (d *Driver) applyLocked(cmd Command, actor string) error {
	name, ok := canonicalName(cmd.Name)
	if !ok {
		d.appendEvent(events.EventTypeCommandRejected, actor, map[string]any{"command": cmd.Name, "reason": ErrUnknownCommand.Error()})
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Name)
	}

	payload := map[string]any{"command": name}
	var v float64
	if needsValue(name) {
		val, ok := cmd.value()
		if !ok {
			payload["reason"] = ErrInvalidValue.Error()
			d.appendEvent(events.EventTypeCommandRejected, actor, payload)
			return fmt.Errorf("%w: %s needs a finite value", ErrInvalidValue, name)
		}
		v = val
		payload["value"] = v
	}

	switch name {
	case CmdPowerOn:
		d.reactor.PowerOn()
		d.appendEvent(events.EventTypePowerChange, actor, map[string]any{"state": "on"})
	case CmdPowerOff:
		d.reactor.PowerOff()
		d.appendEvent(events.EventTypePowerChange, actor, map[string]any{"state": "off"})
	case CmdScram:
		d.reactor.Scram()
		d.appendEvent(events.EventTypeScram, actor, map[string]any{"temperature": d.reactor.State().Temperature})
		d.logger.Warn("SCRAM", "actor", actor)
	case CmdToggleAuto:
		d.reactor.ToggleAutoControl()
		payload["auto"] = d.reactor.State().IsAutoControl
	case CmdRefuel:
		d.reactor.Refuel()
		d.appendEvent(events.EventTypeRefuel, actor, nil)
	case CmdSetFissionRate, CmdSetTurbineOutput:
		var applied bool
		if name == CmdSetFissionRate {
			applied = d.reactor.SetFissionRate(v)
		} else {
			applied = d.reactor.SetTurbineOutput(v)
		}
		if !applied {
			payload["reason"] = ErrAutoControl.Error()
			d.appendEvent(events.EventTypeCommandRejected, actor, payload)
			return fmt.Errorf("%w: %s", ErrAutoControl, name)
		}
	case CmdSetPowerLoad:
		d.reactor.SetPowerLoad(v)
		d.gridDriven = false
	case CmdGridLoad:
		if d.demand == nil {
			payload["reason"] = ErrNoGrid.Error()
			d.appendEvent(events.EventTypeCommandRejected, actor, payload)
			return ErrNoGrid
		}
		d.gridDriven = true
	}

	d.appendEvent(events.EventTypeCommand, actor, payload)
	return nil
}

// Snapshot returns the current frame without advancing the simulation.
func (d *Driver) Snapshot() Frame {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frameLocked(d.reactor.State())
}

// Restore replaces the reactor state and sets the simulated clock to
// simTime, for resuming from a stored snapshot. simTime must be a finite,
// non-negative number.
func (d *Driver) Restore(s reactor.State, simTime float64) error {
	if math.IsNaN(simTime) || math.IsInf(simTime, 0) || simTime < 0 {
		return fmt.Errorf("%w: sim time %v", reactor.ErrInvalidSnapshot, simTime)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.reactor.Restore(s); err != nil {
		return err
	}
	d.simTime = simTime
	return nil
}

func (d *Driver) frameLocked(s reactor.State) Frame {
	return Frame{
		Type:       "state",
		ReactorID:  d.reactorID,
		SimTime:    d.simTime,
		State:      s,
		Flags:      s.Status.Names(),
		GridDriven: d.gridDriven,
	}
}
