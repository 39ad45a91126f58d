package mcp

import (
	"context"
	"fmt"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MRamiBalles/reactor-sim/internal/engine"
	"github.com/MRamiBalles/reactor-sim/internal/events"
	"github.com/MRamiBalles/reactor-sim/internal/telemetry"
)

// DefaultActor is journaled for commands that do not name an actor.
const DefaultActor = "mcp"

func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "reactor_state",
		Description: "Read the reactor's current temperature, output, load, fuel and status flags",
	}, s.handleState)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "reactor_command",
		Description: "Issue an operator command (scram, refuel, setpoints, power) and return the resulting state",
	}, s.handleCommand)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "reactor_history",
		Description: "Return recent telemetry samples for trend analysis",
	}, s.handleHistory)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "reactor_journal",
		Description: "Return journaled commands and alert transitions",
	}, s.handleJournal)
}

func stateOutput(f engine.Frame) StateOutput {
	return StateOutput{
		ReactorID:  f.ReactorID,
		SimTime:    f.SimTime,
		State:      f.State,
		Flags:      f.Flags,
		GridDriven: f.GridDriven,
	}
}

func (s *Server) handleState(ctx context.Context, req *sdk.CallToolRequest, args StateInput) (*sdk.CallToolResult, StateOutput, error) {
	return nil, stateOutput(s.driver.Snapshot()), nil
}

func (s *Server) handleCommand(ctx context.Context, req *sdk.CallToolRequest, args CommandInput) (*sdk.CallToolResult, StateOutput, error) {
	if args.Command == "" {
		return nil, StateOutput{}, fmt.Errorf("command is required")
	}
	actor := args.Actor
	if actor == "" {
		actor = DefaultActor
	}

	frame, err := s.driver.Execute(engine.Command{Name: args.Command, Value: args.Value, Actor: actor})
	if err != nil {
		return nil, StateOutput{}, fmt.Errorf("%s failed: %w", args.Command, err)
	}
	s.logger.Info("mcp command applied", "command", args.Command, "actor", actor)

	out := stateOutput(frame)
	out.Message = fmt.Sprintf("%s applied", args.Command)
	return nil, out, nil
}

func (s *Server) handleHistory(ctx context.Context, req *sdk.CallToolRequest, args HistoryInput) (*sdk.CallToolResult, HistoryOutput, error) {
	if args.Limit < 0 {
		return nil, HistoryOutput{}, fmt.Errorf("limit must not be negative")
	}
	rec := s.driver.Recorder()
	if rec == nil {
		return nil, HistoryOutput{Samples: []telemetry.Sample{}}, nil
	}

	samples := rec.History().Samples()
	if args.Limit > 0 && args.Limit < len(samples) {
		samples = samples[len(samples)-args.Limit:]
	}
	return nil, HistoryOutput{Samples: samples, Count: len(samples)}, nil
}

func (s *Server) handleJournal(ctx context.Context, req *sdk.CallToolRequest, args JournalInput) (*sdk.CallToolResult, JournalOutput, error) {
	out := JournalOutput{Events: []events.ReactorEvent{}}
	for _, e := range s.driver.Journal().Since(args.Since) {
		if args.Type != "" && string(e.Type) != args.Type {
			continue
		}
		out.Events = append(out.Events, e)
	}
	out.Count = len(out.Events)
	return nil, out, nil
}
