package reactor

import (
	"fmt"
	"math"
)

// DefaultInitialDemand is the demand the default engine is balanced for.
const DefaultInitialDemand = 1000.0

// Engine owns one reactor state and advances it with Tick. Commands mutate
// the state immediately and synchronously.
type Engine struct {
	constants Constants
	state     State
}

// New validates c and returns an engine already at equilibrium for
// initialDemand.
func New(c Constants, initialDemand float64) (*Engine, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if !isFinite(initialDemand) || initialDemand < 0 {
		return nil, fmt.Errorf("%w: initial demand must be a non-negative number, got %v", ErrInvalidConstants, initialDemand)
	}
	return &Engine{
		constants: c,
		state:     Equilibrium(c, initialDemand),
	}, nil
}

// NewDefault returns an engine with DefaultConstants balanced for
// DefaultInitialDemand.
func NewDefault() *Engine {
	c := DefaultConstants()
	return &Engine{
		constants: c,
		state:     Equilibrium(c, DefaultInitialDemand),
	}
}

// Constants returns the engine's physical constants.
func (e *Engine) Constants() Constants {
	return e.constants
}

// Tick advances the simulation by deltaTime seconds.
func (e *Engine) Tick(deltaTime float64) {
	e.state = Step(e.state, e.constants, deltaTime)
}

// State returns a copy of the current state. Mutating it has no effect on
// the engine.
func (e *Engine) State() State {
	return e.state.Clone()
}

// HasStatus reports whether flag is currently set.
func (e *Engine) HasStatus(flag Status) bool {
	return e.state.Status.Has(flag)
}

// PowerOn brings the reactor online and clears a pending scram. It does
// nothing if the reactor is already on.
func (e *Engine) PowerOn() {
	if e.state.IsPoweredOn {
		return
	}
	e.state.IsPoweredOn = true
	e.state.Status = e.state.Status.Without(StatusScram)
}

// PowerOff takes the reactor offline. A scram stays latched.
func (e *Engine) PowerOff() {
	if !e.state.IsPoweredOn {
		return
	}
	e.state.IsPoweredOn = false
}

// ToggleAutoControl flips the auto-control mode.
func (e *Engine) ToggleAutoControl() {
	e.state.IsAutoControl = !e.state.IsAutoControl
}

// SetFissionRate sets the fission rate, clamped to [0,100]. It is ignored
// while auto-control is on or when v is not a finite number. It reports
// whether the value was applied.
func (e *Engine) SetFissionRate(v float64) bool {
	if e.state.IsAutoControl || !isFinite(v) {
		return false
	}
	e.state.FissionRate = clamp(v, 0, 100)
	return true
}

// SetTurbineOutput sets the turbine output setting, clamped to [0,100],
// under the same rules as SetFissionRate.
func (e *Engine) SetTurbineOutput(v float64) bool {
	if e.state.IsAutoControl || !isFinite(v) {
		return false
	}
	e.state.TurbineOutput = clamp(v, 0, 100)
	return true
}

// SetPowerLoad records the externally observed demand. Negative values are
// clamped to zero; non-finite values are ignored.
func (e *Engine) SetPowerLoad(v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	e.state.PowerLoad = math.Max(0, v)
	return true
}

// Scram latches the emergency shutdown and powers the reactor off.
func (e *Engine) Scram() {
	e.state.Status = e.state.Status.Union(StatusScram)
	e.state.IsPoweredOn = false
}

// Refuel loads a fresh rod at full condition, replacing any loaded rod.
func (e *Engine) Refuel() {
	e.state.FuelRod = &FuelRod{Condition: 100}
}

// Restore replaces the current state with s after validating it. The
// snapshot is copied; status flags are re-derived.
func (e *Engine) Restore(s State) error {
	if err := s.Validate(e.constants); err != nil {
		return err
	}
	e.state = DeriveStatus(s.Clone(), e.constants)
	return nil
}
