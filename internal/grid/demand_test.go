package grid

import (
	"testing"
	"time"

	"github.com/MRamiBalles/reactor-sim/internal/config"
)

func seeded(seed int64) config.GridConfig {
	cfg := config.Default().Grid
	cfg.Seed = seed
	return cfg
}

func TestDemandStaysInBounds(t *testing.T) {
	cfg := seeded(1)
	d := NewDemand(cfg, 1000)

	for i := 0; i < 100000; i++ {
		v := d.Next(0.05)
		if v < 0 {
			t.Fatalf("step %d: negative demand %v", i, v)
		}
		if v > cfg.BaseMax+cfg.SpikeMagnitude {
			t.Fatalf("step %d: demand %v above base max plus spike", i, v)
		}
		if b := d.Base(); b < cfg.BaseMin || b > cfg.BaseMax {
			t.Fatalf("step %d: base %v escaped [%v, %v]", i, b, cfg.BaseMin, cfg.BaseMax)
		}
		if v != float64(int64(v)) {
			t.Fatalf("step %d: demand %v not rounded", i, v)
		}
	}
}

func TestDemandIsDeterministicWhenSeeded(t *testing.T) {
	a := NewDemand(seeded(42), 1000)
	b := NewDemand(seeded(42), 1000)

	for i := 0; i < 5000; i++ {
		va, vb := a.Next(0.1), b.Next(0.1)
		if va != vb {
			t.Fatalf("step %d: seeded generators diverged: %v vs %v", i, va, vb)
		}
	}
}

func TestDemandInitialClampedIntoBand(t *testing.T) {
	cfg := seeded(3)
	cfg.WalkStep = 0

	if got := NewDemand(cfg, 10).Base(); got != cfg.BaseMin {
		t.Errorf("expected base clamped to %v, got %v", cfg.BaseMin, got)
	}
	if got := NewDemand(cfg, 99999).Base(); got != cfg.BaseMax {
		t.Errorf("expected base clamped to %v, got %v", cfg.BaseMax, got)
	}
}

func TestDemandRecoilsFromBounds(t *testing.T) {
	cfg := seeded(5)
	cfg.BaseMin = 1000
	cfg.BaseMax = 1010
	cfg.WalkStep = 12

	d := NewDemand(cfg, 1005)
	for i := 0; i < 1000; i++ {
		d.Next(0.01)
		if b := d.Base(); b < cfg.BaseMin || b > cfg.BaseMax {
			t.Fatalf("step %d: base %v escaped narrow band", i, b)
		}
	}
}

func TestSpikeDecaysLinearly(t *testing.T) {
	cfg := seeded(9)
	cfg.WalkStep = 0
	cfg.SpikeIntervalMin = 10 * time.Second
	cfg.SpikeIntervalMax = 10 * time.Second

	d := NewDemand(cfg, 1000)
	const dt = 0.25

	// No spike before the first interval elapses.
	for i := 1; i < 40; i++ {
		if v := d.Next(dt); v != 1000 {
			t.Fatalf("t=%.2fs: unexpected demand %v before first spike", float64(i)*dt, v)
		}
	}

	peak := d.Next(dt)
	if !d.SpikeActive() || peak != 1500 {
		t.Fatalf("expected full spike of 1500 at onset, got %v (active=%v)", peak, d.SpikeActive())
	}

	prev := peak
	for i := 0; i < 19; i++ {
		v := d.Next(dt)
		if v >= prev {
			t.Fatalf("spike did not decay: %v -> %v", prev, v)
		}
		prev = v
	}
	if prev != 1025 {
		t.Errorf("expected 1025 at 4.75s into the spike, got %v", prev)
	}

	if v := d.Next(dt); v != 1000 || d.SpikeActive() {
		t.Errorf("expected spike to end after its duration, got %v (active=%v)", v, d.SpikeActive())
	}
}
