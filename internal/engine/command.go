package engine

import (
	"errors"
	"math"
	"strings"
)

// Command names accepted by Driver.Execute.
const (
	CmdPowerOn          = "powerOn"
	CmdPowerOff         = "powerOff"
	CmdScram            = "scram"
	CmdToggleAuto       = "toggleAuto"
	CmdRefuel           = "refuel"
	CmdSetFissionRate   = "setFissionRate"
	CmdSetTurbineOutput = "setTurbineOutput"
	CmdSetPowerLoad     = "setPowerLoad"
	CmdGridLoad         = "gridLoad"
)

var (
	// ErrUnknownCommand is returned for a command name Execute does not know.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrInvalidValue is returned when a setter has no value or a value
	// that is not a finite number.
	ErrInvalidValue = errors.New("invalid command value")
	// ErrAutoControl is returned when a manual setpoint is sent while
	// auto-control owns the rods and turbine.
	ErrAutoControl = errors.New("rejected: auto-control engaged")
	// ErrNoGrid is returned by gridLoad when no demand generator is wired.
	ErrNoGrid = errors.New("no grid driver configured")
)

// Command is one operator action.
type Command struct {
	Name  string   `json:"type"`
	Value *float64 `json:"value,omitempty"`
	Actor string   `json:"actor,omitempty"`
}

// NewCommand builds a command without a value.
func NewCommand(name, actor string) Command {
	return Command{Name: name, Actor: actor}
}

// NewValueCommand builds a setter command.
func NewValueCommand(name string, value float64, actor string) Command {
	return Command{Name: name, Value: &value, Actor: actor}
}

var commandNames = map[string]string{}

func init() {
	for _, name := range CommandNames() {
		commandNames[strings.ToLower(name)] = name
	}
}

// CommandNames lists every command Execute accepts.
func CommandNames() []string {
	return []string{
		CmdPowerOn, CmdPowerOff, CmdScram, CmdToggleAuto, CmdRefuel,
		CmdSetFissionRate, CmdSetTurbineOutput, CmdSetPowerLoad, CmdGridLoad,
	}
}

// canonicalName resolves a command name case-insensitively.
func canonicalName(name string) (string, bool) {
	n, ok := commandNames[strings.ToLower(strings.TrimSpace(name))]
	return n, ok
}

// needsValue reports whether the command is a setter.
func needsValue(name string) bool {
	switch name {
	case CmdSetFissionRate, CmdSetTurbineOutput, CmdSetPowerLoad:
		return true
	}
	return false
}

func (c Command) value() (float64, bool) {
	if c.Value == nil || math.IsNaN(*c.Value) || math.IsInf(*c.Value, 0) {
		return 0, false
	}
	return *c.Value, true
}
