// Package engine drives the reactor simulation in real time.
//
// The Driver is the only owner of the reactor engine in a running server.
// Every frame and every operator command is serialized behind its lock, so
// transports never touch reactor state directly.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/MRamiBalles/reactor-sim/internal/platform/logger"
)

// DefaultTickInterval is the wall-clock frame period.
const DefaultTickInterval = 50 * time.Millisecond

// maxFrameGap bounds the wall time a single frame may cover, so a stalled
// process does not advance the plant by minutes in one step.
const maxFrameGap = time.Second

// Ticker manages the simulation heartbeat. It knows nothing about the
// reactor; it measures elapsed wall time and hands the scaled delta to step.
type Ticker struct {
	interval  time.Duration
	timeScale float64
	step      func(dt float64)
	logger    *logger.Logger
	stopChan  chan struct{}
	stopOnce  sync.Once
	now       func() time.Time
}

// NewTicker creates a ticker that calls step every interval with the
// elapsed wall time in seconds multiplied by timeScale.
func NewTicker(interval time.Duration, timeScale float64, step func(dt float64), log *logger.Logger) *Ticker {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	if timeScale <= 0 {
		timeScale = 1
	}
	return &Ticker{
		interval:  interval,
		timeScale: timeScale,
		step:      step,
		logger:    log,
		stopChan:  make(chan struct{}),
		now:       time.Now,
	}
}

// Start begins the frame loop. It blocks until ctx is done or Stop is
// called; run it in a goroutine.
func (t *Ticker) Start(ctx context.Context) {
	t.logger.Info("ticker started", "interval", t.interval, "time_scale", t.timeScale)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	last := t.now()
	for {
		select {
		case <-ctx.Done():
			t.logger.Info("ticker stopped by context")
			return
		case <-t.stopChan:
			t.logger.Info("ticker stopped manually")
			return
		case <-ticker.C:
			now := t.now()
			t.step(t.frameDelta(now.Sub(last)))
			last = now
		}
	}
}

// Stop gracefully stops the ticker. It is safe to call more than once.
func (t *Ticker) Stop() {
	t.stopOnce.Do(func() { close(t.stopChan) })
}

// frameDelta converts elapsed wall time to simulated seconds.
func (t *Ticker) frameDelta(elapsed time.Duration) float64 {
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed > maxFrameGap {
		elapsed = maxFrameGap
	}
	return elapsed.Seconds() * t.timeScale
}
