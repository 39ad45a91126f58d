package scenario

import (
	"math"

	"github.com/MRamiBalles/reactor-sim/internal/engine"
	"github.com/MRamiBalles/reactor-sim/internal/reactor"
)

func init() {
	register(Scenario{
		Name:        "steady-state",
		Description: "auto-control holds an undisturbed plant at equilibrium and settles after a small load step",
		run:         steadyState,
	})
	register(Scenario{
		Name:        "scram-cooldown",
		Description: "an emergency shutdown cools the core to zero output and clears on power-on",
		run:         scramCooldown,
	})
	register(Scenario{
		Name:        "fuel-depletion",
		Description: "a partly spent rod raises FUEL_LOW, then FUEL_OUT, and a refuel clears it",
		run:         fuelDepletion,
	})
	register(Scenario{
		Name:        "manual-meltdown",
		Description: "full fission with the turbine closed melts down through OVERHEAT; a scram recovers",
		run:         manualMeltdown,
	})
}

func steadyState(h *harness) error {
	c := h.opts.Constants
	var maxDev float64
	alerts := reactor.StatusNone
	_, err := h.runFor(600, func(f engine.Frame) {
		maxDev = math.Max(maxDev, math.Abs(f.State.Temperature-c.OptimalTemp))
		alerts = alerts.Union(f.State.Status)
	})
	if err != nil {
		return err
	}
	h.check("no alerts at equilibrium", alerts == reactor.StatusNone, "flags seen: %v", alerts.Names())
	h.check("temperature held", maxDev < 5, "max deviation %.3f°C from %.0f°C", maxDev, c.OptimalTemp)

	load := h.opts.Demand * 1.1
	if !h.exec(engine.NewValueCommand(engine.CmdSetPowerLoad, load, "")) {
		return nil
	}
	hot := false
	f, err := h.runFor(600, func(f engine.Frame) {
		hot = hot || f.State.HasStatus(reactor.StatusOverheat|reactor.StatusMeltdown)
	})
	if err != nil {
		return err
	}
	h.check("no overheat after load step", !hot, "peak alerts stayed below OVERHEAT")
	h.check("temperature settled", math.Abs(f.State.Temperature-c.OptimalTemp) < 10,
		"%.2f°C after 600s", f.State.Temperature)
	h.check("output follows demand", math.Abs(f.State.PowerOutput-load) <= 0.05*load,
		"output %.1f kW for demand %.0f kW", f.State.PowerOutput, load)
	return nil
}

func scramCooldown(h *harness) error {
	c := h.opts.Constants
	if _, err := h.runFor(10, nil); err != nil {
		return err
	}
	if !h.exec(engine.NewCommand(engine.CmdScram, "")) {
		return nil
	}

	prev := h.driver.Snapshot().State.Temperature
	monotonic := true
	f, err := h.runFor(120, func(f engine.Frame) {
		if f.State.Temperature > prev {
			monotonic = false
		}
		prev = f.State.Temperature
	})
	if err != nil {
		return err
	}
	h.check("scram latched", f.State.HasStatus(reactor.StatusScram) && !f.State.IsPoweredOn,
		"flags %v, powered=%v", f.Flags, f.State.IsPoweredOn)
	h.check("temperature never rose", monotonic, "core cooled monotonically")
	h.check("core cold", f.State.Temperature <= c.ShutdownPowerCutoffTemp,
		"%.4f°C after 120s", f.State.Temperature)
	h.check("output stopped", f.State.PowerOutput == 0, "output %.2f kW", f.State.PowerOutput)
	h.check("fission stopped", f.State.FissionRate == 0, "fission %.2f%%", f.State.FissionRate)

	scramAlerts := 0
	for _, name := range h.raised() {
		if name == reactor.StatusScram.String() {
			scramAlerts++
		}
	}
	h.check("scram not journaled as alert", scramAlerts == 0, "%d SCRAM alerts", scramAlerts)

	if !h.exec(engine.NewCommand(engine.CmdPowerOn, "")) {
		return nil
	}
	f = h.driver.Step(h.opts.Step)
	h.check("power-on clears scram", !f.State.HasStatus(reactor.StatusScram) && f.State.IsPoweredOn,
		"flags %v", f.Flags)
	return nil
}

func fuelDepletion(h *harness) error {
	c := h.opts.Constants
	s := reactor.Equilibrium(c, h.opts.Demand)
	s.FuelRod = &reactor.FuelRod{Condition: c.LowFuelThreshold + 5}
	if err := h.driver.Restore(s, 0); err != nil {
		return err
	}

	f, out, err := h.runUntil(7200, func(f engine.Frame) bool {
		return f.State.HasStatus(reactor.StatusFuelOut)
	})
	if err != nil {
		return err
	}
	if !h.check("fuel runs out", out, "FUEL_OUT at %.0fs", f.SimTime) {
		return nil
	}
	h.check("low fuel warned first", h.raisedBefore(reactor.StatusFuelLow, reactor.StatusFuelOut),
		"alerts raised: %v", h.raised())
	h.check("rod unloaded", f.State.FuelRod == nil, "fuel %.2f%%", f.State.FuelCondition())

	f, err = h.runFor(120, nil)
	if err != nil {
		return err
	}
	h.check("core cools without fuel", f.State.Temperature < c.LowTemp, "%.2f°C after 120s", f.State.Temperature)

	if !h.exec(engine.NewCommand(engine.CmdRefuel, "")) {
		return nil
	}
	f = h.driver.Step(h.opts.Step)
	h.check("refuel clears FUEL_OUT", !f.State.HasStatus(reactor.StatusFuelOut|reactor.StatusFuelLow),
		"flags %v, fuel %.2f%%", f.Flags, f.State.FuelCondition())
	return nil
}

func manualMeltdown(h *harness) error {
	c := h.opts.Constants
	if !h.exec(engine.NewCommand(engine.CmdToggleAuto, "")) ||
		!h.exec(engine.NewValueCommand(engine.CmdSetTurbineOutput, 0, "")) ||
		!h.exec(engine.NewValueCommand(engine.CmdSetFissionRate, 100, "")) {
		return nil
	}

	f, melted, err := h.runUntil(30, func(f engine.Frame) bool {
		return f.State.HasStatus(reactor.StatusMeltdown)
	})
	if err != nil {
		return err
	}
	if !h.check("meltdown reached", melted, "%.1f°C at %.2fs", f.State.Temperature, f.SimTime) {
		return nil
	}
	h.check("overheat raised first", h.raisedBefore(reactor.StatusOverheat, reactor.StatusMeltdown),
		"alerts raised: %v", h.raised())
	h.check("meltdown excludes overheat", !f.State.HasStatus(reactor.StatusOverheat), "flags %v", f.Flags)

	if !h.exec(engine.NewCommand(engine.CmdScram, "")) {
		return nil
	}
	f, cooled, err := h.runUntil(60, func(f engine.Frame) bool {
		return f.State.Temperature < c.OverheatTemp
	})
	if err != nil {
		return err
	}
	h.check("scram recovers the core", cooled && !f.State.HasStatus(reactor.StatusMeltdown|reactor.StatusOverheat),
		"%.1f°C, flags %v", f.State.Temperature, f.Flags)
	return nil
}
