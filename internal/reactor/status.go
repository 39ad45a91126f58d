package reactor

import (
	"strings"
)

// Status is a set of alert flags. Alerts carry no behavior, only presence,
// so the set is a plain bitmask combined with bitwise OR.
type Status uint32

// StatusNone is the empty set.
const StatusNone Status = 0

// Alert flags. The bit layout matches the wire format used by the dashboard.
const (
	StatusTempLow Status = 1 << iota
	StatusOverheat
	StatusOutputLow
	StatusOutputHigh
	StatusFuelLow
	StatusFuelOut
	StatusMeltdown
	StatusScram
)

// AllStatuses lists every alert flag in bit order.
var AllStatuses = []Status{
	StatusTempLow,
	StatusOverheat,
	StatusOutputLow,
	StatusOutputHigh,
	StatusFuelLow,
	StatusFuelOut,
	StatusMeltdown,
	StatusScram,
}

var statusNames = map[Status]string{
	StatusTempLow:    "TEMP_LOW",
	StatusOverheat:   "OVERHEAT",
	StatusOutputLow:  "OUTPUT_LOW",
	StatusOutputHigh: "OUTPUT_HIGH",
	StatusFuelLow:    "FUEL_LOW",
	StatusFuelOut:    "FUEL_OUT",
	StatusMeltdown:   "MELTDOWN",
	StatusScram:      "SCRAM",
}

// Has reports whether any bit of flag is set in s.
func (s Status) Has(flag Status) bool {
	return s&flag != 0
}

// Union returns the set containing the flags of both s and other.
func (s Status) Union(other Status) Status {
	return s | other
}

// Without returns s with the flags of other cleared.
func (s Status) Without(other Status) Status {
	return s &^ other
}

// Flags splits s into its individual alert flags, in bit order.
func (s Status) Flags() []Status {
	var flags []Status
	for _, f := range AllStatuses {
		if s.Has(f) {
			flags = append(flags, f)
		}
	}
	return flags
}

// Names returns the names of the set flags, in bit order.
func (s Status) Names() []string {
	flags := s.Flags()
	names := make([]string, 0, len(flags))
	for _, f := range flags {
		names = append(names, statusNames[f])
	}
	return names
}

func (s Status) String() string {
	if s == StatusNone {
		return "NONE"
	}
	return strings.Join(s.Names(), "|")
}

// ParseStatus maps an alert name (case-insensitive, e.g. "fuel_out" or
// "FuelOut") to its flag.
func ParseStatus(name string) (Status, bool) {
	key := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(name), "-", "_"))
	for flag, n := range statusNames {
		if n == key || strings.ReplaceAll(n, "_", "") == key {
			return flag, true
		}
	}
	return StatusNone, false
}
