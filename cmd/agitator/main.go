// Package main is the agitator, a load generator that attaches many
// operator panels to a running reactord and spams control actions over
// the WebSocket API.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/MRamiBalles/reactor-sim/internal/engine"
	"github.com/MRamiBalles/reactor-sim/internal/platform/logger"
)

// Config for the agitator.
type Config struct {
	ServerURL      string
	NumClients     int
	ActionInterval time.Duration
	TestDuration   time.Duration
	Output         string
}

// Stats tracks what the clients saw. Counters are updated atomically.
type Stats struct {
	Sent     int64
	Acks     int64
	Rejected int64
	Frames   int64
	Errors   int64

	mu        sync.Mutex
	Latencies []time.Duration
}

func (s *Stats) addLatency(d time.Duration) {
	s.mu.Lock()
	s.Latencies = append(s.Latencies, d)
	s.mu.Unlock()
}

// Results is the JSON summary written at the end of a run.
type Results struct {
	Sent        int64   `json:"sent"`
	Acks        int64   `json:"acks"`
	Rejected    int64   `json:"rejected"`
	Frames      int64   `json:"frames"`
	Errors      int64   `json:"errors"`
	Throughput  float64 `json:"throughput_per_sec"`
	LatencyMin  string  `json:"latency_min,omitempty"`
	LatencyAvg  string  `json:"latency_avg,omitempty"`
	LatencyMax  string  `json:"latency_max,omitempty"`
	Verdict     string  `json:"verdict"`
	Clients     int     `json:"clients"`
	Interval    string  `json:"interval"`
	Duration    string  `json:"duration"`
	GeneratedAt string  `json:"generated_at"`
}

// action mirrors the server's inbound WebSocket message.
type action struct {
	Type  string   `json:"type"`
	Value *float64 `json:"value,omitempty"`
}

// inbound is the union of frames and replies; only the discriminator and
// the error text matter here.
type inbound struct {
	Type  string `json:"type"`
	Error string `json:"error,omitempty"`
}

// Weighted so that load changes dominate and shutdowns stay rare.
var actionWeights = []struct {
	name   string
	weight int
}{
	{engine.CmdSetPowerLoad, 40},
	{engine.CmdGridLoad, 10},
	{engine.CmdSetFissionRate, 10},
	{engine.CmdSetTurbineOutput, 10},
	{engine.CmdToggleAuto, 8},
	{engine.CmdRefuel, 8},
	{engine.CmdPowerOn, 8},
	{engine.CmdPowerOff, 3},
	{engine.CmdScram, 3},
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := Config{}
	cmd := &cobra.Command{
		Use:          "agitator",
		Short:        "Stress a reactord instance with concurrent WebSocket operators",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.NumClients <= 0 {
				return fmt.Errorf("--clients must be positive, got %d", cfg.NumClients)
			}
			if cfg.ActionInterval <= 0 {
				return fmt.Errorf("--interval must be positive, got %s", cfg.ActionInterval)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			log := logger.New(os.Getenv("REACTOR_LOG_LEVEL"), cmd.ErrOrStderr())
			res := run(ctx, cfg, log)
			printResults(cmd.OutOrStdout(), res)
			if cfg.Output != "" {
				if err := writeResults(cfg.Output, res); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "\nResults saved to %s\n", cfg.Output)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&cfg.ServerURL, "url", "ws://localhost:8080/ws", "WebSocket server URL")
	cmd.Flags().IntVar(&cfg.NumClients, "clients", 50, "Number of concurrent operators")
	cmd.Flags().DurationVar(&cfg.ActionInterval, "interval", 100*time.Millisecond, "Action interval per operator")
	cmd.Flags().DurationVar(&cfg.TestDuration, "duration", 60*time.Second, "Test duration")
	cmd.Flags().StringVar(&cfg.Output, "out", "agitator_results.json", "Results file, empty to skip")
	return cmd
}

// run drives the configured operators until the test duration elapses or
// ctx is cancelled.
func run(ctx context.Context, cfg Config, log *logger.Logger) Results {
	ctx, cancel := context.WithTimeout(ctx, cfg.TestDuration)
	defer cancel()

	stats := &Stats{Latencies: make([]time.Duration, 0, 1024)}
	started := time.Now()

	log.Info("starting operators", "url", cfg.ServerURL, "clients", cfg.NumClients,
		"interval", cfg.ActionInterval, "duration", cfg.TestDuration)

	var wg sync.WaitGroup
	for i := 0; i < cfg.NumClients; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			runClient(ctx, id, cfg, stats, log)
		}(i)

		// Stagger connects so the hub does not see a thundering herd.
		select {
		case <-ctx.Done():
		case <-time.After(10 * time.Millisecond):
		}
	}

	progress := time.NewTicker(5 * time.Second)
	defer progress.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-progress.C:
				log.Info("progress",
					"sent", atomic.LoadInt64(&stats.Sent),
					"acks", atomic.LoadInt64(&stats.Acks),
					"frames", atomic.LoadInt64(&stats.Frames),
					"errors", atomic.LoadInt64(&stats.Errors))
			}
		}
	}()

	wg.Wait()
	return summarize(stats, cfg, time.Since(started))
}

func runClient(ctx context.Context, id int, cfg Config, stats *Stats, log *logger.Logger) {
	operator := fmt.Sprintf("agitator-%03d", id)
	log = log.With("operator", operator)

	u, err := url.Parse(cfg.ServerURL)
	if err != nil {
		log.Error("invalid server url", "error", err)
		atomic.AddInt64(&stats.Errors, 1)
		return
	}
	q := u.Query()
	q.Set("operator", operator)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if ctx.Err() == nil {
			log.Warn("connection failed", "error", err)
			atomic.AddInt64(&stats.Errors, 1)
		}
		return
	}
	defer conn.Close()

	// Replies come back in send order, so a FIFO of send times gives the
	// round trip for each action.
	var (
		pendingMu sync.Mutex
		pending   []time.Time
	)

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg inbound
			if err := json.Unmarshal(data, &msg); err != nil {
				atomic.AddInt64(&stats.Errors, 1)
				continue
			}
			switch msg.Type {
			case "ack", "error":
				pendingMu.Lock()
				if len(pending) > 0 {
					stats.addLatency(time.Since(pending[0]))
					pending = pending[1:]
				}
				pendingMu.Unlock()
				if msg.Type == "ack" {
					atomic.AddInt64(&stats.Acks, 1)
				} else {
					atomic.AddInt64(&stats.Rejected, 1)
					log.Debug("action rejected", "error", msg.Error)
				}
			default:
				atomic.AddInt64(&stats.Frames, 1)
			}
		}
	}()

	ticker := time.NewTicker(cfg.ActionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return
		case <-readDone:
			if ctx.Err() == nil {
				atomic.AddInt64(&stats.Errors, 1)
			}
			return
		case <-ticker.C:
			a := randomAction()
			pendingMu.Lock()
			pending = append(pending, time.Now())
			pendingMu.Unlock()

			if err := conn.WriteJSON(a); err != nil {
				atomic.AddInt64(&stats.Errors, 1)
				return
			}
			atomic.AddInt64(&stats.Sent, 1)
		}
	}
}

func randomAction() action {
	total := 0
	for _, w := range actionWeights {
		total += w.weight
	}
	pick := rand.IntN(total)
	name := actionWeights[0].name
	for _, w := range actionWeights {
		if pick < w.weight {
			name = w.name
			break
		}
		pick -= w.weight
	}

	a := action{Type: name}
	var v float64
	switch name {
	case engine.CmdSetPowerLoad:
		v = 600 + rand.Float64()*900
	case engine.CmdSetFissionRate, engine.CmdSetTurbineOutput:
		v = rand.Float64() * 100
	default:
		return a
	}
	a.Value = &v
	return a
}

func summarize(stats *Stats, cfg Config, elapsed time.Duration) Results {
	res := Results{
		Sent:        atomic.LoadInt64(&stats.Sent),
		Acks:        atomic.LoadInt64(&stats.Acks),
		Rejected:    atomic.LoadInt64(&stats.Rejected),
		Frames:      atomic.LoadInt64(&stats.Frames),
		Errors:      atomic.LoadInt64(&stats.Errors),
		Clients:     cfg.NumClients,
		Interval:    cfg.ActionInterval.String(),
		Duration:    cfg.TestDuration.String(),
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if s := elapsed.Seconds(); s > 0 {
		res.Throughput = float64(res.Sent) / s
	}

	stats.mu.Lock()
	if len(stats.Latencies) > 0 {
		lo, hi := stats.Latencies[0], stats.Latencies[0]
		var total time.Duration
		for _, l := range stats.Latencies {
			total += l
			lo = min(lo, l)
			hi = max(hi, l)
		}
		res.LatencyMin = lo.String()
		res.LatencyAvg = (total / time.Duration(len(stats.Latencies))).String()
		res.LatencyMax = hi.String()
	}
	stats.mu.Unlock()

	errRate := float64(res.Errors) / float64(res.Sent+1)
	switch {
	case res.Errors == 0 && res.Acks > 0:
		res.Verdict = "passed"
	case res.Acks > 0 && errRate < 0.05:
		res.Verdict = "warning"
	default:
		res.Verdict = "failed"
	}
	return res
}

func printResults(w io.Writer, r Results) {
	fmt.Fprintln(w, "=========================================")
	fmt.Fprintln(w, "AGITATOR RESULTS")
	fmt.Fprintln(w, "=========================================")
	fmt.Fprintf(w, "Actions sent:     %d\n", r.Sent)
	fmt.Fprintf(w, "Acknowledged:     %d\n", r.Acks)
	fmt.Fprintf(w, "Rejected:         %d\n", r.Rejected)
	fmt.Fprintf(w, "Frames received:  %d\n", r.Frames)
	fmt.Fprintf(w, "Errors:           %d\n", r.Errors)
	fmt.Fprintf(w, "Throughput:       %.2f actions/sec\n", r.Throughput)
	if r.LatencyAvg != "" {
		fmt.Fprintf(w, "\nRound trip:\n  Min: %s\n  Avg: %s\n  Max: %s\n", r.LatencyMin, r.LatencyAvg, r.LatencyMax)
	}
	fmt.Fprintln(w, "-----------------------------------------")
	switch r.Verdict {
	case "passed":
		fmt.Fprintln(w, "PASSED: the reactor handled the load")
	case "warning":
		fmt.Fprintln(w, "WARNING: some transport errors")
	default:
		fmt.Fprintln(w, "FAILED: high error rate or no acknowledgements")
	}
}

func writeResults(path string, r Results) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
