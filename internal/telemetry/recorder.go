package telemetry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MRamiBalles/reactor-sim/internal/infra/storage"
	"github.com/MRamiBalles/reactor-sim/internal/platform/logger"
	"github.com/MRamiBalles/reactor-sim/internal/reactor"
)

const sampleEpsilon = 1e-9

// Publisher receives every recorded sample.
type Publisher interface {
	Publish(ctx context.Context, reactorID string, s Sample) error
}

// Recorder decimates frames into samples at a fixed simulated interval,
// keeps them in a History and hands them to publishers off the tick path.
type Recorder struct {
	reactorID  string
	interval   float64
	history    *History
	publishers []Publisher
	logger     *logger.Logger

	lastSample float64
	sampled    bool

	queue     chan Sample
	wg        sync.WaitGroup
	closeOnce sync.Once
	mu        sync.Mutex
	dropped   atomic.Int64
	failed    atomic.Int64
}

// NewRecorder creates a recorder that samples every interval of simulated
// time. Publishing starts when Start is called.
func NewRecorder(reactorID string, interval time.Duration, history *History, log *logger.Logger, publishers ...Publisher) *Recorder {
	if history == nil {
		history = NewHistory(DefaultHistorySize)
	}
	return &Recorder{
		reactorID:  reactorID,
		interval:   interval.Seconds(),
		history:    history,
		publishers: publishers,
		logger:     log,
		queue:      make(chan Sample, 256),
	}
}

// History returns the in-memory sample ring.
func (r *Recorder) History() *History {
	return r.history
}

// Observe records s if at least one interval of simulated time has passed
// since the last sample. It reports whether a sample was taken.
func (r *Recorder) Observe(simTime float64, s reactor.State) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Sim time is a running float sum; allow for rounding so a fixed
	// frame length always lands on the same sample cadence.
	if r.sampled && simTime-r.lastSample < r.interval-sampleEpsilon {
		return false
	}
	r.sampled = true
	r.lastSample = simTime

	sample := NewSample(simTime, s)
	r.history.Add(sample)

	if len(r.publishers) == 0 || r.queue == nil {
		return true
	}
	select {
	case r.queue <- sample:
	default:
		r.dropped.Add(1)
	}
	return true
}

// Start runs the publishing loop until ctx is cancelled or Close is called.
func (r *Recorder) Start(ctx context.Context) {
	r.mu.Lock()
	queue := r.queue
	r.mu.Unlock()
	if queue == nil {
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case s, ok := <-queue:
				if !ok {
					return
				}
				r.publish(ctx, s)
			}
		}
	}()
}

func (r *Recorder) publish(ctx context.Context, s Sample) {
	for _, p := range r.publishers {
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := p.Publish(pctx, r.reactorID, s)
		cancel()
		if err != nil {
			r.failed.Add(1)
			if r.logger != nil {
				r.logger.Warn("telemetry publish failed", "sim_time", s.SimTime, "error", err)
			}
		}
	}
}

// Close stops accepting samples, publishes whatever is queued and waits
// for the loop to exit.
func (r *Recorder) Close() {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		close(r.queue)
		r.queue = nil
		r.mu.Unlock()
		r.wg.Wait()
	})
}

// Stats returns how many samples were dropped on a full queue and how
// many publish calls failed.
func (r *Recorder) Stats() (dropped, failed int64) {
	return r.dropped.Load(), r.failed.Load()
}

// StorePublisher writes samples to a TelemetryRepository.
type StorePublisher struct {
	repo storage.TelemetryRepository
}

// NewStorePublisher wraps repo.
func NewStorePublisher(repo storage.TelemetryRepository) *StorePublisher {
	return &StorePublisher{repo: repo}
}

// Publish implements Publisher.
func (p *StorePublisher) Publish(ctx context.Context, reactorID string, s Sample) error {
	return p.repo.Append(ctx, s.Record(reactorID))
}

// Record converts a sample to its stored form.
func (s Sample) Record(reactorID string) storage.TelemetryRecord {
	return storage.TelemetryRecord{
		ReactorID:     reactorID,
		SimTime:       s.SimTime,
		Timestamp:     s.Timestamp,
		Temperature:   s.Temperature,
		PowerOutput:   s.PowerOutput,
		PowerLoad:     s.PowerLoad,
		FissionRate:   s.FissionRate,
		TurbineOutput: s.TurbineOutput,
		FuelCondition: s.FuelCondition,
		Status:        uint32(s.Status),
	}
}
