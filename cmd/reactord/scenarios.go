package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MRamiBalles/reactor-sim/internal/platform/logger"
	"github.com/MRamiBalles/reactor-sim/internal/scenario"
)

func newScenariosCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenarios [name...]",
		Short: "Run scripted reactor scenarios and grade them",
		Long: `Run headless scenarios against the configured constants. With no
arguments every scenario runs. The command fails if any scenario fails.

Scenarios: steady-state, scram-cooldown, fuel-depletion, manual-meltdown`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			jsonOut, _ := cmd.Flags().GetBool("json")
			list, _ := cmd.Flags().GetBool("list")
			out := cmd.OutOrStdout()

			if list {
				for _, name := range scenario.Names() {
					s, _ := scenario.Get(name)
					fmt.Fprintf(out, "%-16s %s\n", name, s.Description)
				}
				return nil
			}

			names := args
			if len(names) == 0 {
				names = scenario.Names()
			}
			opts := scenario.Options{
				Constants: cfg.Reactor.Constants,
				Demand:    cfg.Reactor.InitialDemand,
				Logger:    logger.New(cfg.Logging.Level, cmd.ErrOrStderr()),
			}

			var results []scenario.Result
			failed := 0
			for _, name := range names {
				res, err := scenario.Run(cmd.Context(), name, opts)
				if err != nil {
					return err
				}
				if !res.Passed {
					failed++
				}
				results = append(results, res)
			}

			if jsonOut {
				if err := json.NewEncoder(out).Encode(results); err != nil {
					return err
				}
			} else {
				printResults(cmd, results)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d scenarios failed", failed, len(results))
			}
			return nil
		},
	}
	cmd.Flags().Bool("list", false, "List scenarios without running them")
	return cmd
}

func printResults(cmd *cobra.Command, results []scenario.Result) {
	out := cmd.OutOrStdout()
	passed := 0
	for _, r := range results {
		verdict := "FAIL"
		if r.Passed {
			verdict = "PASS"
			passed++
		}
		fmt.Fprintf(out, "%s  %s (%.1fs simulated)\n", verdict, r.Scenario, r.SimTime)
		for _, c := range r.Checks {
			mark := "ok  "
			if !c.Passed {
				mark = "FAIL"
			}
			fmt.Fprintf(out, "      %s %s: %s\n", mark, c.Name, c.Detail)
		}
	}
	fmt.Fprintf(out, "\n%d passed, %d failed\n", passed, len(results)-passed)
}
