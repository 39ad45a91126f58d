// Package scenario runs scripted, headless reactor exercises and grades
// them. Each scenario drives a fresh reactor through the same driver the
// server uses, so journaled alert transitions are part of what is checked.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/MRamiBalles/reactor-sim/internal/engine"
	"github.com/MRamiBalles/reactor-sim/internal/events"
	"github.com/MRamiBalles/reactor-sim/internal/platform/logger"
	"github.com/MRamiBalles/reactor-sim/internal/reactor"
)

// DefaultStep is the simulated frame length scenarios advance by.
const DefaultStep = 0.05

// ErrUnknownScenario is returned by Run for a name that is not registered.
var ErrUnknownScenario = errors.New("unknown scenario")

// Options tune a scenario run. Zero values use the defaults.
type Options struct {
	Constants reactor.Constants
	Demand    float64
	Step      float64
	Logger    *logger.Logger
}

func (o Options) withDefaults() Options {
	if o.Constants == (reactor.Constants{}) {
		o.Constants = reactor.DefaultConstants()
	}
	if o.Demand <= 0 {
		o.Demand = 1000
	}
	if o.Step <= 0 {
		o.Step = DefaultStep
	}
	if o.Logger == nil {
		o.Logger = logger.Discard()
	}
	return o
}

// Check is one graded expectation.
type Check struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// Result captures the outcome of a scenario.
type Result struct {
	Scenario    string        `json:"scenario"`
	Description string        `json:"description"`
	Passed      bool          `json:"passed"`
	SimTime     float64       `json:"simTime"`
	Checks      []Check       `json:"checks"`
	Final       reactor.State `json:"final"`
	Error       string        `json:"error,omitempty"`
}

// Failed returns the checks that did not pass.
func (r Result) Failed() []Check {
	var out []Check
	for _, c := range r.Checks {
		if !c.Passed {
			out = append(out, c)
		}
	}
	return out
}

// Scenario is a named, scripted exercise.
type Scenario struct {
	Name        string
	Description string
	run         func(h *harness) error
}

var registry = map[string]Scenario{}

func register(s Scenario) {
	registry[s.Name] = s
}

// Names lists the registered scenarios in alphabetical order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the scenario registered under name.
func Get(name string) (Scenario, bool) {
	s, ok := registry[name]
	return s, ok
}

// Run executes one scenario on a fresh reactor.
func Run(ctx context.Context, name string, opts Options) (Result, error) {
	s, ok := Get(name)
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownScenario, name)
	}
	opts = opts.withDefaults()

	r, err := reactor.New(opts.Constants, opts.Demand)
	if err != nil {
		return Result{}, err
	}
	h := &harness{
		ctx:    ctx,
		opts:   opts,
		driver: engine.NewDriver(r, engine.Options{ReactorID: "SCENARIO_" + name}),
		log:    opts.Logger.With("scenario", name),
		result: Result{Scenario: s.Name, Description: s.Description},
	}

	h.log.Info("scenario started", "demand", opts.Demand, "step", opts.Step)
	if err := s.run(h); err != nil {
		h.result.Error = err.Error()
		h.fail("completed", err.Error())
	}

	final := h.driver.Snapshot()
	h.result.SimTime = final.SimTime
	h.result.Final = final.State
	h.result.Passed = len(h.result.Checks) > 0 && len(h.result.Failed()) == 0
	h.log.Info("scenario finished", "passed", h.result.Passed, "sim_time", h.result.SimTime)
	return h.result, ctx.Err()
}

// RunAll executes every registered scenario in name order. It stops early
// only when ctx is cancelled.
func RunAll(ctx context.Context, opts Options) ([]Result, error) {
	var results []Result
	for _, name := range Names() {
		res, err := Run(ctx, name, opts)
		results = append(results, res)
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

type harness struct {
	ctx    context.Context
	opts   Options
	driver *engine.Driver
	log    *logger.Logger
	result Result
}

func (h *harness) check(name string, ok bool, format string, args ...any) bool {
	detail := fmt.Sprintf(format, args...)
	h.result.Checks = append(h.result.Checks, Check{Name: name, Passed: ok, Detail: detail})
	if !ok {
		h.log.Warn("check failed", "check", name, "detail", detail)
	}
	return ok
}

func (h *harness) fail(name, detail string) {
	h.check(name, false, "%s", detail)
}

// exec runs a command and records a failed check if it is rejected.
func (h *harness) exec(cmd engine.Command) bool {
	cmd.Actor = "scenario"
	if _, err := h.driver.Execute(cmd); err != nil {
		h.fail("command "+cmd.Name, err.Error())
		return false
	}
	return true
}

// runFor advances the reactor by the given simulated seconds, calling each
// (if non-nil) after every frame.
func (h *harness) runFor(seconds float64, each func(engine.Frame)) (engine.Frame, error) {
	frame, _, err := h.runUntil(seconds, func(f engine.Frame) bool {
		if each != nil {
			each(f)
		}
		return false
	})
	return frame, err
}

// runUntil advances the reactor until cond holds or limit simulated seconds
// pass. It reports whether cond was met.
func (h *harness) runUntil(limit float64, cond func(engine.Frame) bool) (engine.Frame, bool, error) {
	steps := int(math.Ceil(limit / h.opts.Step))
	frame := h.driver.Snapshot()
	for i := 0; i < steps; i++ {
		if i%1000 == 0 {
			if err := h.ctx.Err(); err != nil {
				return frame, false, err
			}
		}
		frame = h.driver.Step(h.opts.Step)
		if cond(frame) {
			return frame, true, nil
		}
	}
	return frame, false, nil
}

// raised returns the alert flags journaled as raised, in order.
func (h *harness) raised() []string {
	var out []string
	for _, e := range h.driver.Journal().ByType(events.EventTypeAlertRaised) {
		if name, ok := e.Payload["status"].(string); ok {
			out = append(out, name)
		}
	}
	return out
}

// raisedBefore reports whether first was journaled as raised before the
// first time second was.
func (h *harness) raisedBefore(first, second reactor.Status) bool {
	seen := false
	for _, name := range h.raised() {
		switch name {
		case first.String():
			seen = true
		case second.String():
			return seen
		}
	}
	return false
}
