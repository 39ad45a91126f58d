// Package reactor contains the reactor simulation core: the physical state
// record, the per-tick heat/power integration, the auto-control loop and the
// status alert classification.
//
// The Engine is NOT safe for concurrent use. Callers that share one across
// goroutines must serialize every call (see internal/engine).
package reactor

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidConstants is returned when a Constants set would make the model
// divide by zero or produce nonsensical thresholds.
var ErrInvalidConstants = errors.New("reactor: invalid physical constants")

// Constants are the tuned simulation parameters. They are fixed for the
// lifetime of an Engine.
type Constants struct {
	MaxTemp                float64 `json:"maxTemp" yaml:"max_temp"`
	MaxPowerOutput         float64 `json:"maxPowerOutput" yaml:"max_power_output"`
	MeltdownTemp           float64 `json:"meltdownTemp" yaml:"meltdown_temp"`
	OverheatTemp           float64 `json:"overheatTemp" yaml:"overheat_temp"`
	LowTemp                float64 `json:"lowTemp" yaml:"low_temp"`
	OptimalTemp            float64 `json:"optimalTemp" yaml:"optimal_temp"`
	FuelConsumptionRate    float64 `json:"fuelConsumptionRate" yaml:"fuel_consumption_rate"`
	HeatGenerationRate     float64 `json:"heatGenerationRate" yaml:"heat_generation_rate"`
	AmbientTempDissipation float64 `json:"ambientTempDissipation" yaml:"ambient_temp_dissipation"`
	TurbinePowerFactor     float64 `json:"turbinePowerFactor" yaml:"turbine_power_factor"`
	LowFuelThreshold       float64 `json:"lowFuelThreshold" yaml:"low_fuel_threshold"`

	// OutputDeviationMinLoad suppresses OutputHigh/OutputLow while demand is
	// at or below this level.
	OutputDeviationMinLoad float64 `json:"outputDeviationMinLoad" yaml:"output_deviation_min_load"`
	// OutputDeviationRatio is the fraction of demand the output may drift
	// before an output alert is raised.
	OutputDeviationRatio float64 `json:"outputDeviationRatio" yaml:"output_deviation_ratio"`

	AutoTurbineGain float64 `json:"autoTurbineGain" yaml:"auto_turbine_gain"`
	AutoFissionGain float64 `json:"autoFissionGain" yaml:"auto_fission_gain"`

	// ShutdownCoolingMultiplier scales ambient dissipation while the core is
	// powered off or scrammed.
	ShutdownCoolingMultiplier float64 `json:"shutdownCoolingMultiplier" yaml:"shutdown_cooling_multiplier"`
	// ShutdownPowerCutoffTemp is the residual temperature at or below which a
	// shut-down turbine stops generating.
	ShutdownPowerCutoffTemp float64 `json:"shutdownPowerCutoffTemp" yaml:"shutdown_power_cutoff_temp"`
}

// DefaultConstants returns the tuned constants of the reference model.
func DefaultConstants() Constants {
	return Constants{
		MaxTemp:                1000,
		MaxPowerOutput:         5000,
		MeltdownTemp:           900,
		OverheatTemp:           600,
		LowTemp:                200,
		OptimalTemp:            350,
		FuelConsumptionRate:    0.05,
		HeatGenerationRate:     800,
		AmbientTempDissipation: 0.05,
		TurbinePowerFactor:     8,
		LowFuelThreshold:       20,

		OutputDeviationMinLoad: 100,
		OutputDeviationRatio:   0.2,

		AutoTurbineGain: 0.01,
		AutoFissionGain: 0.002,

		ShutdownCoolingMultiplier: 2,
		ShutdownPowerCutoffTemp:   1,
	}
}

// Validate checks that every constant is finite and that the divisors and
// thresholds are usable. The returned error wraps ErrInvalidConstants.
func (c Constants) Validate() error {
	fields := []struct {
		name  string
		value float64
	}{
		{"max_temp", c.MaxTemp},
		{"max_power_output", c.MaxPowerOutput},
		{"meltdown_temp", c.MeltdownTemp},
		{"overheat_temp", c.OverheatTemp},
		{"low_temp", c.LowTemp},
		{"optimal_temp", c.OptimalTemp},
		{"fuel_consumption_rate", c.FuelConsumptionRate},
		{"heat_generation_rate", c.HeatGenerationRate},
		{"ambient_temp_dissipation", c.AmbientTempDissipation},
		{"turbine_power_factor", c.TurbinePowerFactor},
		{"low_fuel_threshold", c.LowFuelThreshold},
		{"output_deviation_min_load", c.OutputDeviationMinLoad},
		{"output_deviation_ratio", c.OutputDeviationRatio},
		{"auto_turbine_gain", c.AutoTurbineGain},
		{"auto_fission_gain", c.AutoFissionGain},
		{"shutdown_cooling_multiplier", c.ShutdownCoolingMultiplier},
		{"shutdown_power_cutoff_temp", c.ShutdownPowerCutoffTemp},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%w: %s is not a finite number", ErrInvalidConstants, f.name)
		}
		if f.value < 0 {
			return fmt.Errorf("%w: %s must be non-negative, got %g", ErrInvalidConstants, f.name, f.value)
		}
	}

	// Divisors.
	if c.OverheatTemp <= 0 {
		return fmt.Errorf("%w: overheat_temp must be positive", ErrInvalidConstants)
	}
	if c.TurbinePowerFactor <= 0 {
		return fmt.Errorf("%w: turbine_power_factor must be positive", ErrInvalidConstants)
	}
	if c.HeatGenerationRate <= 0 {
		return fmt.Errorf("%w: heat_generation_rate must be positive", ErrInvalidConstants)
	}
	if c.OptimalTemp <= 0 {
		return fmt.Errorf("%w: optimal_temp must be positive", ErrInvalidConstants)
	}

	if c.MaxPowerOutput <= 0 {
		return fmt.Errorf("%w: max_power_output must be positive", ErrInvalidConstants)
	}
	if !(c.LowTemp < c.OverheatTemp && c.OverheatTemp < c.MeltdownTemp) {
		return fmt.Errorf("%w: thresholds must satisfy low_temp < overheat_temp < meltdown_temp (got %g, %g, %g)",
			ErrInvalidConstants, c.LowTemp, c.OverheatTemp, c.MeltdownTemp)
	}
	if c.LowFuelThreshold > 100 {
		return fmt.Errorf("%w: low_fuel_threshold must be within [0,100], got %g", ErrInvalidConstants, c.LowFuelThreshold)
	}
	return nil
}
