package storage

import (
	"context"
	"fmt"
)

// Recap summarizes the stored journal for an operator who just connected:
// what happened to the reactor while they were away.
type Recap struct {
	eventRepo EventRepository
}

// NewRecap creates a recap generator.
func NewRecap(eventRepo EventRepository) *Recap {
	return &Recap{eventRepo: eventRepo}
}

// RecapEntry is a simplified event for display.
type RecapEntry struct {
	SimTime   float64 `json:"sim_time"`
	EventType string  `json:"event_type"`
	Summary   string  `json:"summary"` // Human-readable description
	Impact    string  `json:"impact"`  // "POSITIVE", "NEGATIVE", "NEUTRAL"
}

// Generate returns up to limit recent journal entries in readable form.
func (r *Recap) Generate(ctx context.Context, reactorID string, limit int) ([]RecapEntry, error) {
	records, err := r.eventRepo.Recent(ctx, reactorID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load journal: %w", err)
	}

	recap := make([]RecapEntry, 0, len(records))
	for _, e := range records {
		recap = append(recap, RecapEntry{
			SimTime:   e.SimTime,
			EventType: e.EventType,
			Summary:   summarize(e),
			Impact:    impact(e),
		})
	}
	return recap, nil
}

func summarize(e EventRecord) string {
	switch e.EventType {
	case "COMMAND":
		if v, ok := e.Payload["value"]; ok {
			return fmt.Sprintf("%s issued %v (%v)", e.ActorID, e.Payload["command"], v)
		}
		return fmt.Sprintf("%s issued %v", e.ActorID, e.Payload["command"])
	case "COMMAND_REJECTED":
		return fmt.Sprintf("%v from %s was rejected: %v", e.Payload["command"], e.ActorID, e.Payload["reason"])
	case "ALERT_RAISED":
		return fmt.Sprintf("alert raised: %v", e.Payload["status"])
	case "ALERT_CLEARED":
		return fmt.Sprintf("alert cleared: %v", e.Payload["status"])
	case "SCRAM":
		return fmt.Sprintf("emergency shutdown by %s", e.ActorID)
	case "REFUEL":
		return fmt.Sprintf("fuel rod replaced by %s", e.ActorID)
	case "POWER_CHANGE":
		return fmt.Sprintf("reactor powered %v by %s", e.Payload["state"], e.ActorID)
	default:
		return "reactor event"
	}
}

func impact(e EventRecord) string {
	switch e.EventType {
	case "ALERT_RAISED", "SCRAM", "COMMAND_REJECTED":
		return "NEGATIVE"
	case "ALERT_CLEARED", "REFUEL":
		return "POSITIVE"
	default:
		return "NEUTRAL"
	}
}
