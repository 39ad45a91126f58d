package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/MRamiBalles/reactor-sim/internal/mcp"
	"github.com/MRamiBalles/reactor-sim/internal/platform/logger"
	"github.com/MRamiBalles/reactor-sim/internal/platform/metrics"
)

func newMCPServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Run the simulation as an MCP server over stdio",
		Long: `Run the reactor in real time and expose it to an agent as MCP tools:
reactor_state, reactor_command, reactor_history and reactor_journal.

Logs go to stderr; stdout carries the protocol.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log := logger.New(cfg.Logging.Level, os.Stderr)

			rt, err := newRuntime(cfg, log, metrics.Get())
			if err != nil {
				return err
			}
			defer rt.close()

			ctx := cmd.Context()
			rt.resume(ctx)
			rt.recorder.Start(ctx)
			rt.driver.Start(ctx)
			go rt.maintain(ctx, maintainInterval)

			server := mcp.NewServer(&mcp.Config{Name: "reactord", Version: version}, rt.driver, log)
			err = server.Run(ctx)
			if serr := rt.saveSnapshot(ctx); serr != nil {
				log.Warn("failed to save final snapshot", "error", serr)
			}
			return err
		},
	}
}
