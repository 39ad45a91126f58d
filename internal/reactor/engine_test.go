package reactor

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

// manualEngine returns a default engine with auto-control off and the given
// state fields applied through Restore.
func manualEngine(t *testing.T, mutate func(s *State)) *Engine {
	t.Helper()
	e := NewDefault()
	s := e.State()
	s.IsAutoControl = false
	mutate(&s)
	if err := e.Restore(s); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	return e
}

func TestNewDefaultStartsAtEquilibrium(t *testing.T) {
	e := NewDefault()
	s := e.State()

	if s.Temperature != 350 {
		t.Errorf("expected temperature 350, got %v", s.Temperature)
	}
	// 1000 / (3.5 * 350/600 * 8)
	if !approxEqual(s.TurbineOutput, 61.2244898, 1e-6) {
		t.Errorf("expected turbine output ~61.2245, got %v", s.TurbineOutput)
	}
	// 100 * (1000/8 + 350*0.05) / 800
	if !approxEqual(s.FissionRate, 17.8125, 1e-9) {
		t.Errorf("expected fission rate 17.8125, got %v", s.FissionRate)
	}
	if s.FuelRod == nil || s.FuelRod.Condition != 100 {
		t.Errorf("expected a full fuel rod, got %+v", s.FuelRod)
	}
	if !s.IsPoweredOn || !s.IsAutoControl {
		t.Error("expected reactor powered on with auto-control enabled")
	}
	if s.PowerOutput != 1000 || s.PowerLoad != 1000 {
		t.Errorf("expected output and load 1000, got %v / %v", s.PowerOutput, s.PowerLoad)
	}
	if s.Status != StatusNone {
		t.Errorf("expected no alerts, got %v", s.Status)
	}
}

func TestNewValidatesConstants(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Constants)
	}{
		{"zero overheat temp", func(c *Constants) { c.OverheatTemp = 0 }},
		{"zero turbine factor", func(c *Constants) { c.TurbinePowerFactor = 0 }},
		{"zero heat generation", func(c *Constants) { c.HeatGenerationRate = 0 }},
		{"NaN dissipation", func(c *Constants) { c.AmbientTempDissipation = math.NaN() }},
		{"infinite max power", func(c *Constants) { c.MaxPowerOutput = math.Inf(1) }},
		{"negative fuel rate", func(c *Constants) { c.FuelConsumptionRate = -1 }},
		{"thresholds out of order", func(c *Constants) { c.OverheatTemp = 950 }},
		{"low fuel above 100", func(c *Constants) { c.LowFuelThreshold = 150 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConstants()
			tt.mutate(&c)
			_, err := New(c, DefaultInitialDemand)
			if !errors.Is(err, ErrInvalidConstants) {
				t.Errorf("expected ErrInvalidConstants, got %v", err)
			}
		})
	}

	if _, err := New(DefaultConstants(), math.NaN()); !errors.Is(err, ErrInvalidConstants) {
		t.Errorf("expected NaN initial demand to be rejected, got %v", err)
	}
	if _, err := New(DefaultConstants(), 1500); err != nil {
		t.Errorf("expected valid constants to be accepted, got %v", err)
	}
}

func TestStateIsACopy(t *testing.T) {
	e := NewDefault()
	s := e.State()
	s.Temperature = 12345
	s.FuelRod.Condition = 1

	again := e.State()
	if again.Temperature != 350 {
		t.Errorf("mutating a returned state changed the engine temperature to %v", again.Temperature)
	}
	if again.FuelRod.Condition != 100 {
		t.Errorf("mutating a returned fuel rod changed the engine rod to %v", again.FuelRod.Condition)
	}
}

func TestInvariantsHoldUnderRandomCommands(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	e := NewDefault()
	c := e.Constants()

	for i := 0; i < 5000; i++ {
		switch rng.Intn(10) {
		case 0:
			e.ToggleAutoControl()
		case 1:
			e.SetFissionRate(rng.Float64()*300 - 100)
		case 2:
			e.SetTurbineOutput(rng.Float64()*300 - 100)
		case 3:
			e.SetPowerLoad(rng.Float64()*6000 - 1000)
		case 4:
			if rng.Intn(20) == 0 {
				e.Scram()
			}
		case 5:
			e.PowerOn()
		case 6:
			if rng.Intn(50) == 0 {
				e.Refuel()
			}
		}
		e.Tick(rng.Float64() * 0.5)

		s := e.State()
		if s.Temperature < 0 || math.IsNaN(s.Temperature) {
			t.Fatalf("tick %d: temperature %v out of range", i, s.Temperature)
		}
		if s.PowerOutput < 0 || s.PowerOutput > c.MaxPowerOutput {
			t.Fatalf("tick %d: power output %v out of range", i, s.PowerOutput)
		}
		if s.FissionRate < 0 || s.FissionRate > 100 {
			t.Fatalf("tick %d: fission rate %v out of range", i, s.FissionRate)
		}
		if s.TurbineOutput < 0 || s.TurbineOutput > 100 {
			t.Fatalf("tick %d: turbine output %v out of range", i, s.TurbineOutput)
		}
		if s.FuelRod != nil && (s.FuelRod.Condition <= 0 || s.FuelRod.Condition > 100) {
			t.Fatalf("tick %d: fuel condition %v out of range", i, s.FuelRod.Condition)
		}
		if s.PowerLoad < 0 {
			t.Fatalf("tick %d: negative power load %v", i, s.PowerLoad)
		}
	}
}

func TestFuelDepletesMonotonically(t *testing.T) {
	e := manualEngine(t, func(s *State) {
		s.FissionRate = 100
		s.TurbineOutput = 100
	})

	prev := e.State().FuelCondition()
	for i := 0; i < 1000 && e.State().FuelRod != nil; i++ {
		e.Tick(5)
		cur := e.State().FuelCondition()
		if e.State().FuelRod != nil && cur >= prev {
			t.Fatalf("tick %d: fuel did not decrease (%v -> %v)", i, prev, cur)
		}
		prev = cur
	}

	if e.State().FuelRod != nil {
		t.Fatal("expected fuel rod to be depleted and unloaded")
	}
	for i := 0; i < 50; i++ {
		e.Tick(1)
		if e.State().FuelRod != nil {
			t.Fatal("fuel regenerated after depletion")
		}
	}
}

func TestFuelOutPersistsAfterDepletion(t *testing.T) {
	e := manualEngine(t, func(s *State) {
		s.FissionRate = 100
		s.TurbineOutput = 100
	})

	ticks := 0
	for !e.HasStatus(StatusFuelOut) {
		if ticks > 5000 {
			t.Fatal("fuel never ran out")
		}
		e.Tick(1)
		ticks++
	}
	if e.State().FuelRod != nil {
		t.Error("expected depleted rod to be unloaded")
	}
	if e.HasStatus(StatusFuelLow) {
		t.Error("FuelLow and FuelOut must not be set together")
	}

	for i := 0; i < 100; i++ {
		e.Tick(1)
		if !e.HasStatus(StatusFuelOut) {
			t.Fatalf("FuelOut cleared after %d further ticks", i+1)
		}
	}
}

func TestRefuelClearsFuelAlerts(t *testing.T) {
	e := manualEngine(t, func(s *State) {
		s.FuelRod = nil
	})
	if !e.HasStatus(StatusFuelOut) {
		t.Fatal("expected FuelOut with no rod loaded")
	}

	e.Refuel()
	e.Tick(0.1)

	if e.HasStatus(StatusFuelOut) || e.HasStatus(StatusFuelLow) {
		t.Errorf("expected fuel alerts cleared after refuel, got %v", e.State().Status)
	}
	if got := e.State().FuelCondition(); got <= 99 {
		t.Errorf("expected an almost full rod after refuel, got %v", got)
	}
}

func TestFuelLowBelowThreshold(t *testing.T) {
	e := manualEngine(t, func(s *State) {
		s.FuelRod = &FuelRod{Condition: 10}
	})
	if !e.HasStatus(StatusFuelLow) {
		t.Errorf("expected FuelLow at condition 10, got %v", e.State().Status)
	}
}

func TestScramIsIdempotentAndPersistent(t *testing.T) {
	e := NewDefault()
	e.Scram()
	e.Scram()
	e.Scram()

	if e.State().IsPoweredOn {
		t.Error("expected reactor off after scram")
	}
	if !e.HasStatus(StatusScram) {
		t.Fatal("expected Scram flag set")
	}

	e.Tick(1)
	e.PowerOff()
	e.ToggleAutoControl()
	e.SetFissionRate(80)
	e.SetTurbineOutput(80)
	e.SetPowerLoad(3000)
	e.Refuel()
	for i := 0; i < 30; i++ {
		e.Tick(0.5)
	}
	if !e.HasStatus(StatusScram) {
		t.Fatal("Scram flag cleared by something other than PowerOn")
	}

	e.PowerOn()
	if e.HasStatus(StatusScram) {
		t.Error("expected PowerOn to clear Scram")
	}
	if !e.State().IsPoweredOn {
		t.Error("expected reactor on after PowerOn")
	}
}

func TestPowerOffDoesNotClearScram(t *testing.T) {
	e := NewDefault()
	e.Scram()
	e.PowerOff()
	if !e.HasStatus(StatusScram) {
		t.Error("PowerOff cleared Scram")
	}
}

func TestAutoControlGatesManualSetters(t *testing.T) {
	e := NewDefault()
	before := e.State()

	if e.SetFissionRate(90) {
		t.Error("SetFissionRate reported success with auto-control enabled")
	}
	if e.SetTurbineOutput(5) {
		t.Error("SetTurbineOutput reported success with auto-control enabled")
	}
	after := e.State()
	if after.FissionRate != before.FissionRate || after.TurbineOutput != before.TurbineOutput {
		t.Errorf("manual setters changed state under auto-control: %+v -> %+v", before, after)
	}

	e.ToggleAutoControl()
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"in range", 42, 42},
		{"above range", 250, 100},
		{"below range", -5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !e.SetFissionRate(tt.in) {
				t.Fatal("SetFissionRate rejected with auto-control disabled")
			}
			if got := e.State().FissionRate; got != tt.want {
				t.Errorf("fission rate = %v, want %v", got, tt.want)
			}
			if !e.SetTurbineOutput(tt.in) {
				t.Fatal("SetTurbineOutput rejected with auto-control disabled")
			}
			if got := e.State().TurbineOutput; got != tt.want {
				t.Errorf("turbine output = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSettersRejectNonFiniteInput(t *testing.T) {
	e := NewDefault()
	e.ToggleAutoControl()
	e.SetFissionRate(30)
	e.SetTurbineOutput(40)
	e.SetPowerLoad(1200)

	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if e.SetFissionRate(v) || e.SetTurbineOutput(v) || e.SetPowerLoad(v) {
			t.Errorf("setter accepted %v", v)
		}
	}

	s := e.State()
	if s.FissionRate != 30 || s.TurbineOutput != 40 || s.PowerLoad != 1200 {
		t.Errorf("non-finite input corrupted state: %+v", s)
	}
}

func TestSetPowerLoadIgnoresModes(t *testing.T) {
	e := NewDefault()
	e.Scram()
	if !e.SetPowerLoad(-20) {
		t.Fatal("SetPowerLoad rejected while scrammed")
	}
	if got := e.State().PowerLoad; got != 0 {
		t.Errorf("expected negative load clamped to 0, got %v", got)
	}
	e.SetPowerLoad(1800)
	if got := e.State().PowerLoad; got != 1800 {
		t.Errorf("expected load 1800, got %v", got)
	}
}

func TestZeroDeltaIsNoPhysicalStep(t *testing.T) {
	for _, dt := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		e := NewDefault()
		e.SetPowerLoad(1500)
		before := e.State()
		e.Tick(dt)
		after := e.State()

		if after.Temperature != before.Temperature || after.FissionRate != before.FissionRate ||
			after.TurbineOutput != before.TurbineOutput || after.PowerOutput != before.PowerOutput ||
			after.FuelCondition() != before.FuelCondition() {
			t.Errorf("dt=%v changed the physical state: %+v -> %+v", dt, before, after)
		}
		// Status is still derived: output 1000 against load 1500 is low.
		if !e.HasStatus(StatusOutputLow) {
			t.Errorf("dt=%v: expected OutputLow to be derived, got %v", dt, after.Status)
		}
	}
}

func TestRestoreRejectsInvalidSnapshots(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *State)
	}{
		{"negative temperature", func(s *State) { s.Temperature = -1 }},
		{"NaN temperature", func(s *State) { s.Temperature = math.NaN() }},
		{"fission above 100", func(s *State) { s.FissionRate = 101 }},
		{"turbine below 0", func(s *State) { s.TurbineOutput = -0.5 }},
		{"power above max", func(s *State) { s.PowerOutput = 6000 }},
		{"negative load", func(s *State) { s.PowerLoad = -1 }},
		{"fuel above 100", func(s *State) { s.FuelRod = &FuelRod{Condition: 120} }},
		{"scram while powered", func(s *State) { s.Status |= StatusScram; s.IsPoweredOn = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewDefault()
			before := e.State()
			s := e.State()
			tt.mutate(&s)
			if err := e.Restore(s); !errors.Is(err, ErrInvalidSnapshot) {
				t.Fatalf("expected ErrInvalidSnapshot, got %v", err)
			}
			if e.State().Temperature != before.Temperature {
				t.Error("rejected snapshot modified the engine")
			}
		})
	}
}

func TestRestoredScramClearsOnPowerOn(t *testing.T) {
	e := NewDefault()
	s := e.State()
	s.Status |= StatusScram
	s.IsPoweredOn = false
	if err := e.Restore(s); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if !e.HasStatus(StatusScram) {
		t.Fatal("expected restored scram to stay latched")
	}

	e.PowerOn()
	e.Tick(0.05)
	if e.HasStatus(StatusScram) || !e.State().IsPoweredOn {
		t.Errorf("expected power-on to clear the restored scram, got %+v", e.State())
	}
}

func TestRestoreReplaysDeterministically(t *testing.T) {
	a := NewDefault()
	for i := 0; i < 25; i++ {
		a.Tick(0.25)
	}
	snap := a.State()

	b := NewDefault()
	if err := b.Restore(snap); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	for i := 0; i < 40; i++ {
		a.Tick(0.25)
		b.Tick(0.25)
	}
	if a.State().Temperature != b.State().Temperature || a.State().PowerOutput != b.State().PowerOutput {
		t.Errorf("replay diverged: %+v vs %+v", a.State(), b.State())
	}
}

func TestShutdownCoolingDoublesAmbientLoss(t *testing.T) {
	setup := func(s *State) {
		s.Temperature = 300
		s.FissionRate = 0
		s.TurbineOutput = 0
		s.PowerOutput = 0
	}
	running := manualEngine(t, setup)
	stopped := manualEngine(t, setup)
	stopped.PowerOff()

	running.Tick(0.1)
	stopped.Tick(0.1)

	runningLoss := 300 - running.State().Temperature
	stoppedLoss := 300 - stopped.State().Temperature
	if runningLoss <= 0 {
		t.Fatalf("expected ambient loss while running, got %v", runningLoss)
	}
	if !approxEqual(stoppedLoss, 2*runningLoss, 1e-9) {
		t.Errorf("shutdown loss %v is not double the running loss %v", stoppedLoss, runningLoss)
	}
}

func TestShutdownPowerCutoff(t *testing.T) {
	e := manualEngine(t, func(s *State) {
		s.Temperature = 0.5
		s.TurbineOutput = 100
	})
	e.PowerOff()
	e.Tick(0.01)
	if got := e.State().PowerOutput; got != 0 {
		t.Errorf("expected no generation below the cutoff temperature, got %v", got)
	}
}

func TestSteadyStateConverges(t *testing.T) {
	e := NewDefault()
	c := e.Constants()
	e.SetPowerLoad(1000)

	for i := 0; i < 100; i++ {
		e.Tick(1.0)
		e.SetPowerLoad(1000)
	}

	s := e.State()
	if rel := math.Abs(s.PowerOutput-1000) / 1000; rel >= 0.05 {
		t.Errorf("power output %v deviates %.2f%% from demand", s.PowerOutput, rel*100)
	}
	if s.Temperature < c.LowTemp || s.Temperature > c.OverheatTemp {
		t.Errorf("temperature %v outside [%v, %v]", s.Temperature, c.LowTemp, c.OverheatTemp)
	}
}

func TestScramCoolsDown(t *testing.T) {
	e := NewDefault()
	e.Scram()

	var outputs []float64
	for i := 0; i < 20; i++ {
		e.Tick(1.0)
		s := e.State()
		if s.FissionRate != 0 {
			t.Fatalf("tick %d: fission rate %v after scram", i, s.FissionRate)
		}
		outputs = append(outputs, s.PowerOutput)
	}

	for i := 1; i < len(outputs); i++ {
		if outputs[i] > outputs[i-1] {
			t.Errorf("power output rose after scram at tick %d: %v -> %v", i, outputs[i-1], outputs[i])
		}
	}
	if last := outputs[len(outputs)-1]; last > 0.01*outputs[0] {
		t.Errorf("expected power output to trend to 0, last value %v", last)
	}
}

func TestManualOverdriveMelts(t *testing.T) {
	e := manualEngine(t, func(s *State) {
		s.FissionRate = 100
		s.TurbineOutput = 10
	})
	for i := 0; i < 20 && !e.HasStatus(StatusMeltdown); i++ {
		e.Tick(0.5)
	}
	if !e.HasStatus(StatusMeltdown) {
		t.Errorf("expected meltdown under full fission with a throttled turbine, got %v at %v",
			e.State().Status, e.State().Temperature)
	}
}
