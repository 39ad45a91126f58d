package mcp

import (
	"github.com/MRamiBalles/reactor-sim/internal/events"
	"github.com/MRamiBalles/reactor-sim/internal/reactor"
	"github.com/MRamiBalles/reactor-sim/internal/telemetry"
)

// StateInput defines the input for the reactor_state tool.
type StateInput struct{}

// StateOutput defines the output for the reactor_state and
// reactor_command tools.
type StateOutput struct {
	ReactorID  string        `json:"reactor_id" jsonschema:"Reactor name"`
	SimTime    float64       `json:"sim_time" jsonschema:"Simulated seconds since start"`
	State      reactor.State `json:"state" jsonschema:"Physical state of the reactor"`
	Flags      []string      `json:"flags" jsonschema:"Active status flags such as OVERHEAT or SCRAM"`
	GridDriven bool          `json:"grid_driven" jsonschema:"Whether power load follows the synthetic grid"`
	Message    string        `json:"message,omitempty" jsonschema:"Human-readable result message"`
}

// CommandInput defines the input for the reactor_command tool.
type CommandInput struct {
	Command string   `json:"command" jsonschema:"One of powerOn, powerOff, scram, toggleAuto, refuel, setFissionRate, setTurbineOutput, setPowerLoad, gridLoad"`
	Value   *float64 `json:"value,omitempty" jsonschema:"Setpoint for setFissionRate, setTurbineOutput (0-100) or setPowerLoad (kW)"`
	Actor   string   `json:"actor,omitempty" jsonschema:"Name recorded in the journal (default: mcp)"`
}

// HistoryInput defines the input for the reactor_history tool.
type HistoryInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum number of most recent samples (default: all)"`
}

// HistoryOutput defines the output for the reactor_history tool.
type HistoryOutput struct {
	Samples []telemetry.Sample `json:"samples" jsonschema:"Telemetry samples, oldest first"`
	Count   int                `json:"count" jsonschema:"Number of samples returned"`
}

// JournalInput defines the input for the reactor_journal tool.
type JournalInput struct {
	Since uint64 `json:"since,omitempty" jsonschema:"Only return entries with a sequence number above this"`
	Type  string `json:"type,omitempty" jsonschema:"Filter by entry type, e.g. ALERT_RAISED or SCRAM"`
}

// JournalOutput defines the output for the reactor_journal tool.
type JournalOutput struct {
	Events []events.ReactorEvent `json:"events" jsonschema:"Journal entries in order"`
	Count  int                   `json:"count" jsonschema:"Number of entries returned"`
}
