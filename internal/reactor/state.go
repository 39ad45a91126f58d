package reactor

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidSnapshot is returned by Restore when a state violates the model's
// invariants.
var ErrInvalidSnapshot = errors.New("reactor: invalid state snapshot")

// FuelRod is the core's fuel element. A nil *FuelRod means no rod is loaded.
type FuelRod struct {
	Condition float64 `json:"condition"`
}

// State is the reactor's physical state record.
type State struct {
	IsPoweredOn   bool     `json:"isPoweredOn"`
	IsAutoControl bool     `json:"isAutoControl"`
	Temperature   float64  `json:"temperature"`
	FissionRate   float64  `json:"fissionRate"`
	TurbineOutput float64  `json:"turbineOutput"`
	PowerOutput   float64  `json:"powerOutput"`
	PowerLoad     float64  `json:"powerLoad"`
	FuelRod       *FuelRod `json:"fuelRod"`
	Status        Status   `json:"status"`
}

// Clone returns a deep copy; the fuel rod is not shared.
func (s State) Clone() State {
	if s.FuelRod != nil {
		rod := *s.FuelRod
		s.FuelRod = &rod
	}
	return s
}

// FuelCondition returns the loaded rod's condition, or 0 with no rod.
func (s State) FuelCondition() float64 {
	if s.FuelRod == nil {
		return 0
	}
	return s.FuelRod.Condition
}

// HasStatus reports whether flag is set on the state.
func (s State) HasStatus(flag Status) bool {
	return s.Status.Has(flag)
}

// Validate checks the state against the model's invariants under c.
func (s State) Validate(c Constants) error {
	nums := []struct {
		name  string
		value float64
	}{
		{"temperature", s.Temperature},
		{"fissionRate", s.FissionRate},
		{"turbineOutput", s.TurbineOutput},
		{"powerOutput", s.PowerOutput},
		{"powerLoad", s.PowerLoad},
	}
	for _, n := range nums {
		if !isFinite(n.value) {
			return fmt.Errorf("%w: %s is not a finite number", ErrInvalidSnapshot, n.name)
		}
	}
	switch {
	case s.Temperature < 0:
		return fmt.Errorf("%w: negative temperature %g", ErrInvalidSnapshot, s.Temperature)
	case s.FissionRate < 0 || s.FissionRate > 100:
		return fmt.Errorf("%w: fission rate %g outside [0,100]", ErrInvalidSnapshot, s.FissionRate)
	case s.TurbineOutput < 0 || s.TurbineOutput > 100:
		return fmt.Errorf("%w: turbine output %g outside [0,100]", ErrInvalidSnapshot, s.TurbineOutput)
	case s.PowerOutput < 0 || s.PowerOutput > c.MaxPowerOutput:
		return fmt.Errorf("%w: power output %g outside [0,%g]", ErrInvalidSnapshot, s.PowerOutput, c.MaxPowerOutput)
	case s.PowerLoad < 0:
		return fmt.Errorf("%w: negative power load %g", ErrInvalidSnapshot, s.PowerLoad)
	}
	if s.Status.Has(StatusScram) && s.IsPoweredOn {
		return fmt.Errorf("%w: scram latched on a powered reactor", ErrInvalidSnapshot)
	}
	if s.FuelRod != nil {
		cond := s.FuelRod.Condition
		if !isFinite(cond) || cond < 0 || cond > 100 {
			return fmt.Errorf("%w: fuel condition %v outside [0,100]", ErrInvalidSnapshot, cond)
		}
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
