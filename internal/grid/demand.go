// Package grid generates synthetic electrical demand for the reactor.
//
// Demand is a bounded random walk around a base load with occasional
// spikes that decay linearly back to the base. The generator works in
// simulated seconds, so it behaves the same at any time scale.
package grid

import (
	"math"
	"math/rand"
	"time"

	"github.com/MRamiBalles/reactor-sim/internal/config"
)

// The walk does not saturate at its bounds: it recoils inward by these
// margins so demand keeps moving.
const (
	recoilHigh = 100.0
	recoilLow  = 50.0
)

// Demand is a seedable demand generator. It is not safe for concurrent use.
type Demand struct {
	cfg config.GridConfig
	rng *rand.Rand

	base float64
	now  float64

	spikeActive bool
	spikeStart  float64
	nextSpike   float64
}

// NewDemand creates a generator whose walk starts at initial, clamped into
// the configured band.
func NewDemand(cfg config.GridConfig, initial float64) *Demand {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	d := &Demand{
		cfg:  cfg,
		rng:  rand.New(rand.NewSource(seed)),
		base: math.Min(math.Max(initial, cfg.BaseMin), cfg.BaseMax),
	}
	d.scheduleSpike()
	return d
}

// Base returns the current walk value without the spike contribution.
func (d *Demand) Base() float64 {
	return d.base
}

// SpikeActive reports whether a spike is currently decaying.
func (d *Demand) SpikeActive() bool {
	return d.spikeActive
}

// Next advances the generator by dt simulated seconds and returns the
// demand to apply, rounded to whole units. Each call moves the walk once.
func (d *Demand) Next(dt float64) float64 {
	if dt > 0 && !math.IsInf(dt, 0) {
		d.now += dt
	}

	d.walk()

	spike := 0.0
	if !d.spikeActive && d.now >= d.nextSpike {
		d.spikeActive = true
		d.spikeStart = d.now
		d.scheduleSpike()
	}
	if d.spikeActive {
		elapsed := d.now - d.spikeStart
		duration := d.cfg.SpikeDuration.Seconds()
		if elapsed >= duration {
			d.spikeActive = false
		} else {
			spike = d.cfg.SpikeMagnitude * (1 - elapsed/duration)
		}
	}

	return math.Max(0, math.Round(d.base+spike))
}

func (d *Demand) walk() {
	step := int(d.cfg.WalkStep)
	if step > 0 {
		d.base += float64(d.rng.Intn(2*step+1) - step)
	}
	if d.base > d.cfg.BaseMax {
		d.base = math.Max(d.cfg.BaseMax-recoilHigh, d.cfg.BaseMin)
	}
	if d.base < d.cfg.BaseMin {
		d.base = math.Min(d.cfg.BaseMin+recoilLow, d.cfg.BaseMax)
	}
}

func (d *Demand) scheduleSpike() {
	lo := d.cfg.SpikeIntervalMin.Seconds()
	hi := d.cfg.SpikeIntervalMax.Seconds()
	d.nextSpike = d.now + lo + d.rng.Float64()*(hi-lo)
}
