package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MRamiBalles/reactor-sim/internal/events"
	"github.com/MRamiBalles/reactor-sim/internal/platform/logger"
	"github.com/MRamiBalles/reactor-sim/internal/platform/metrics"
	"github.com/MRamiBalles/reactor-sim/internal/reactor"
	"github.com/MRamiBalles/reactor-sim/internal/telemetry"
)

// SimulateSummary is the result of a headless run.
type SimulateSummary struct {
	ReactorID    string         `json:"reactor_id"`
	Frames       int            `json:"frames"`
	SimTime      float64        `json:"sim_time"`
	Final        reactor.State  `json:"final"`
	Flags        []string       `json:"flags"`
	AlertsRaised map[string]int `json:"alerts_raised"`
	Samples      int            `json:"samples"`
	Export       string         `json:"export,omitempty"`
}

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the simulation headless for a number of frames",
		Long: `Advance the reactor frame by frame as fast as possible, using the
configured grid and constants, then print a summary. With --export the
telemetry history and journal are written to an .xlsx workbook.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			frames, _ := cmd.Flags().GetInt("frames")
			dt, _ := cmd.Flags().GetFloat64("dt")
			export, _ := cmd.Flags().GetString("export")
			jsonOut, _ := cmd.Flags().GetBool("json")
			if frames <= 0 {
				return fmt.Errorf("--frames must be positive")
			}
			if dt <= 0 {
				dt = cfg.Server.TickInterval.Seconds() * cfg.Server.TimeScale
			}

			log := logger.New(cfg.Logging.Level, cmd.ErrOrStderr())
			rt, err := newRuntime(cfg, log, metrics.New())
			if err != nil {
				return err
			}
			defer rt.close()
			rt.recorder.Start(cmd.Context())

			summary := SimulateSummary{ReactorID: cfg.Server.ReactorID, Frames: frames, AlertsRaised: map[string]int{}}
			for i := 0; i < frames; i++ {
				if i%1000 == 0 {
					if err := cmd.Context().Err(); err != nil {
						return err
					}
				}
				rt.driver.Step(dt)
			}

			final := rt.driver.Snapshot()
			summary.SimTime = final.SimTime
			summary.Final = final.State
			summary.Flags = final.Flags
			summary.Samples = rt.recorder.History().Len()
			for _, e := range rt.journal.ByType(events.EventTypeAlertRaised) {
				if name, ok := e.Payload["status"].(string); ok {
					summary.AlertsRaised[name]++
				}
			}

			if export != "" {
				path := export
				if !strings.HasSuffix(strings.ToLower(path), ".xlsx") {
					path = telemetry.DefaultExportName(path)
				}
				if err := telemetry.ExportWorkbook(path, rt.recorder.History().Samples(), rt.journal.Replay()); err != nil {
					return err
				}
				summary.Export = path
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(out).Encode(summary)
			}
			fmt.Fprintf(out, "Simulated %d frames (%.1fs) of %s\n", summary.Frames, summary.SimTime, summary.ReactorID)
			fmt.Fprintf(out, "  temperature  %.1f°C\n", summary.Final.Temperature)
			fmt.Fprintf(out, "  output/load  %.0f / %.0f kW\n", summary.Final.PowerOutput, summary.Final.PowerLoad)
			fmt.Fprintf(out, "  fuel         %.2f%%\n", summary.Final.FuelCondition())
			fmt.Fprintf(out, "  status       %s\n", strings.Join(summary.Flags, ", "))
			names := make([]string, 0, len(summary.AlertsRaised))
			for name := range summary.AlertsRaised {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(out, "  alert        %s x%d\n", name, summary.AlertsRaised[name])
			}
			if summary.Export != "" {
				fmt.Fprintf(out, "Exported %d samples to %s\n", summary.Samples, summary.Export)
			}
			return nil
		},
	}
	cmd.Flags().Int("frames", 1200, "Number of frames to simulate")
	cmd.Flags().Float64("dt", 0, "Simulated seconds per frame (default: tick interval x time scale)")
	cmd.Flags().String("export", "", "Write an .xlsx workbook to this file or directory")
	return cmd
}
