package reactor

import "math"

// Equilibrium solves, in closed form, for the state at which a reactor held
// at the optimal temperature generates exactly the demanded power and heat
// generation balances heat consumption. Starting from it avoids a startup
// transient.
func Equilibrium(c Constants, demand float64) State {
	demand = math.Max(0, demand)
	temp := c.OptimalTemp

	// Turbine setting that converts temp into demand at the temperature's
	// conversion efficiency.
	efficiency := temp / 100 * (temp / c.OverheatTemp)
	turbine := demand / (efficiency * c.TurbinePowerFactor)

	// Fission rate whose heat covers the turbine draw plus ambient losses.
	heatConsumed := demand/c.TurbinePowerFactor + temp*c.AmbientTempDissipation
	fission := heatConsumed * 100 / c.HeatGenerationRate

	return State{
		IsPoweredOn:   true,
		IsAutoControl: true,
		Temperature:   temp,
		FissionRate:   clamp(fission, 0, 100),
		TurbineOutput: clamp(turbine, 0, 100),
		PowerOutput:   math.Min(c.MaxPowerOutput, demand),
		PowerLoad:     demand,
		FuelRod:       &FuelRod{Condition: 100},
		Status:        StatusNone,
	}
}

// Step advances s by dt seconds and returns the new state. s is not
// modified. A dt that is zero, negative or not finite advances nothing; the
// status flags are still re-derived.
func Step(s State, c Constants, dt float64) State {
	next := s.Clone()
	if !isFinite(dt) || dt <= 0 {
		return DeriveStatus(next, c)
	}

	if !next.IsPoweredOn || next.Status.Has(StatusScram) {
		shutdownCooling(&next, c, dt)
		return DeriveStatus(next, c)
	}

	if next.IsAutoControl {
		autoControl(&next, c)
	}

	if next.FuelRod != nil && next.FuelRod.Condition > 0 {
		heatGenerated := (next.FissionRate / 100) * c.HeatGenerationRate
		next.Temperature += heatGenerated * dt
		fuelConsumed := (next.FissionRate / 100) * c.FuelConsumptionRate * dt
		next.FuelRod.Condition = math.Max(0, next.FuelRod.Condition-fuelConsumed)
	}

	next.PowerOutput = turbinePower(next, c)
	heatConsumed := next.PowerOutput/c.TurbinePowerFactor + next.Temperature*c.AmbientTempDissipation
	next.Temperature = math.Max(0, next.Temperature-heatConsumed*dt)

	return DeriveStatus(next, c)
}

// autoControl nudges the turbine toward demand and the fission rate toward
// the optimal temperature. It is proportional only.
func autoControl(s *State, c Constants) {
	powerError := s.PowerLoad - s.PowerOutput
	s.TurbineOutput += powerError * c.AutoTurbineGain
	tempError := c.OptimalTemp - s.Temperature
	s.FissionRate += tempError * c.AutoFissionGain

	s.FissionRate = clamp(s.FissionRate, 0, 100)
	s.TurbineOutput = clamp(s.TurbineOutput, 0, 100)
}

// shutdownCooling runs while the core is off or scrammed: no fission, the
// turbine keeps drawing residual heat and passive dissipation is scaled up.
func shutdownCooling(s *State, c Constants, dt float64) {
	s.FissionRate = 0
	s.PowerOutput = turbinePower(*s, c)

	heatConsumedByTurbine := s.PowerOutput / c.TurbinePowerFactor
	ambientCooling := s.Temperature * (c.AmbientTempDissipation * c.ShutdownCoolingMultiplier)
	s.Temperature = math.Max(0, s.Temperature-(heatConsumedByTurbine+ambientCooling)*dt)

	if s.Temperature <= c.ShutdownPowerCutoffTemp {
		s.PowerOutput = 0
	}
}

// turbinePower converts core heat into electrical output. Efficiency
// saturates once the core reaches the overheat threshold.
func turbinePower(s State, c Constants) float64 {
	tempEfficiency := math.Min(1, s.Temperature/c.OverheatTemp)
	potentialPower := s.Temperature * (s.TurbineOutput / 100) * tempEfficiency
	return clamp(potentialPower*c.TurbinePowerFactor, 0, c.MaxPowerOutput)
}

// DeriveStatus recomputes the alert flags of s from its physical state. The
// Scram flag is carried over; every other flag is derived fresh. A depleted
// fuel rod is unloaded.
func DeriveStatus(s State, c Constants) State {
	status := s.Status & StatusScram

	switch {
	case s.Temperature >= c.MeltdownTemp:
		status |= StatusMeltdown
	case s.Temperature >= c.OverheatTemp:
		status |= StatusOverheat
	case s.Temperature < c.LowTemp && s.IsPoweredOn && s.PowerOutput > 0:
		status |= StatusTempLow
	}

	if s.PowerLoad > c.OutputDeviationMinLoad {
		powerDifference := s.PowerOutput - s.PowerLoad
		tolerance := s.PowerLoad * c.OutputDeviationRatio
		if powerDifference > tolerance {
			status |= StatusOutputHigh
		}
		if powerDifference < -tolerance {
			status |= StatusOutputLow
		}
	}

	if s.FuelRod == nil || s.FuelRod.Condition <= 0 {
		status |= StatusFuelOut
		s.FuelRod = nil
	} else if s.FuelRod.Condition < c.LowFuelThreshold {
		status |= StatusFuelLow
	}

	s.Status = status
	return s
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
