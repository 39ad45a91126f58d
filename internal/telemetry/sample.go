// Package telemetry records reactor samples for the live graph, durable
// storage, streaming and spreadsheet export.
package telemetry

import (
	"sync"
	"time"

	"github.com/MRamiBalles/reactor-sim/internal/reactor"
)

// DefaultHistorySize matches the graph window of the operator console.
const DefaultHistorySize = 200

// Sample is one point of reactor telemetry.
type Sample struct {
	SimTime       float64        `json:"simTime"`
	Timestamp     time.Time      `json:"timestamp"`
	Temperature   float64        `json:"temperature"`
	PowerOutput   float64        `json:"powerOutput"`
	PowerLoad     float64        `json:"powerLoad"`
	FissionRate   float64        `json:"fissionRate"`
	TurbineOutput float64        `json:"turbineOutput"`
	FuelCondition float64        `json:"fuelCondition"`
	Status        reactor.Status `json:"status"`
}

// NewSample captures s at the given simulated time.
func NewSample(simTime float64, s reactor.State) Sample {
	return Sample{
		SimTime:       simTime,
		Timestamp:     time.Now().UTC(),
		Temperature:   s.Temperature,
		PowerOutput:   s.PowerOutput,
		PowerLoad:     s.PowerLoad,
		FissionRate:   s.FissionRate,
		TurbineOutput: s.TurbineOutput,
		FuelCondition: s.FuelCondition(),
		Status:        s.Status,
	}
}

// History is a fixed-size ring of the most recent samples. It is safe for
// concurrent use.
type History struct {
	mu    sync.RWMutex
	buf   []Sample
	start int
	n     int
}

// NewHistory creates a ring holding up to size samples.
func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{buf: make([]Sample, size)}
}

// Add appends a sample, evicting the oldest when full.
func (h *History) Add(s Sample) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.n < len(h.buf) {
		h.buf[(h.start+h.n)%len(h.buf)] = s
		h.n++
		return
	}
	h.buf[h.start] = s
	h.start = (h.start + 1) % len(h.buf)
}

// Samples returns the stored samples, oldest first.
func (h *History) Samples() []Sample {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Sample, h.n)
	for i := 0; i < h.n; i++ {
		out[i] = h.buf[(h.start+i)%len(h.buf)]
	}
	return out
}

// Latest returns the newest sample.
func (h *History) Latest() (Sample, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.n == 0 {
		return Sample{}, false
	}
	return h.buf[(h.start+h.n-1)%len(h.buf)], true
}

// Len returns the number of stored samples.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.n
}

// Cap returns the ring size.
func (h *History) Cap() int {
	return len(h.buf)
}
