// Package events provides the reactor journal: an append-only log of
// operator commands and alert transitions. Entries are immutable once
// appended and may be written through to durable storage.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// EventType defines the category of a journal entry.
type EventType string

const (
	EventTypeCommand         EventType = "COMMAND"
	EventTypeCommandRejected EventType = "COMMAND_REJECTED"
	EventTypeAlertRaised     EventType = "ALERT_RAISED"
	EventTypeAlertCleared    EventType = "ALERT_CLEARED"
	EventTypeScram           EventType = "SCRAM"
	EventTypeRefuel          EventType = "REFUEL"
	EventTypePowerChange     EventType = "POWER_CHANGE"
)

// ReactorEvent is an immutable record of something that happened to the
// reactor.
type ReactorEvent struct {
	ID        string         `json:"id"`
	Seq       uint64         `json:"seq"`
	Timestamp time.Time      `json:"timestamp"`
	SimTime   float64        `json:"sim_time"` // simulated seconds since start
	Type      EventType      `json:"type"`
	ReactorID string         `json:"reactor_id"`
	ActorID   string         `json:"actor_id"` // who issued it; "system" for derived alerts
	Payload   map[string]any `json:"payload,omitempty"`
}

// EventPersister defines how an event is durably stored.
type EventPersister interface {
	Append(event ReactorEvent) error
}

// Journal is the in-memory append-only log of reactor events.
type Journal struct {
	mu     sync.RWMutex
	events []ReactorEvent
	seq    uint64

	persister EventPersister
	queue     chan ReactorEvent
	wg        sync.WaitGroup
	closeOnce sync.Once

	persisted    atomic.Int64
	persistFails atomic.Int64
}

// NewJournal creates a journal. When persister is non-nil, events are
// written through by workers reading from a queue of the given size.
func NewJournal(persister EventPersister, buffer, workers int) *Journal {
	j := &Journal{
		events:    make([]ReactorEvent, 0),
		persister: persister,
	}
	if persister == nil {
		return j
	}
	if buffer < 1 {
		buffer = 1
	}
	if workers < 1 {
		workers = 1
	}
	j.queue = make(chan ReactorEvent, buffer)
	for i := 0; i < workers; i++ {
		j.wg.Add(1)
		go j.persistLoop(j.queue)
	}
	return j
}

// persistLoop owns its copy of the queue; Close clears the field.
func (j *Journal) persistLoop(queue <-chan ReactorEvent) {
	defer j.wg.Done()
	for e := range queue {
		if err := j.persister.Append(e); err != nil {
			j.persistFails.Add(1)
			continue
		}
		j.persisted.Add(1)
	}
}

// Append adds an event to the log, filling in ID, sequence number and
// timestamp. It returns the stored event. Append never blocks on storage:
// when the write-through queue is full the event is kept in memory only
// and counted as a persistence failure.
func (j *Journal) Append(event ReactorEvent) ReactorEvent {
	j.mu.Lock()
	j.seq++
	event.Seq = j.seq
	if event.ID == "" {
		event.ID = GenerateEventID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	j.events = append(j.events, event)

	if j.queue != nil {
		select {
		case j.queue <- event:
		default:
			j.persistFails.Add(1)
		}
	}
	j.mu.Unlock()
	return event
}

// Close stops the persistence workers after draining queued events.
func (j *Journal) Close() {
	j.closeOnce.Do(func() {
		j.mu.Lock()
		if j.queue == nil {
			j.mu.Unlock()
			return
		}
		close(j.queue)
		j.queue = nil
		j.mu.Unlock()
		j.wg.Wait()
	})
}

// Len returns the number of journaled events.
func (j *Journal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.events)
}

// PersistStats returns how many events were durably written and how many
// failed or were dropped.
func (j *Journal) PersistStats() (persisted, failed int64) {
	return j.persisted.Load(), j.persistFails.Load()
}

// ByType returns all events of the given type in order.
func (j *Journal) ByType(t EventType) []ReactorEvent {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var result []ReactorEvent
	for _, e := range j.events {
		if e.Type == t {
			result = append(result, e)
		}
	}
	return result
}

// Since returns events with a sequence number greater than seq.
func (j *Journal) Since(seq uint64) []ReactorEvent {
	j.mu.RLock()
	defer j.mu.RUnlock()

	// Sequence numbers are dense and start at 1.
	if seq >= uint64(len(j.events)) {
		return nil
	}
	out := make([]ReactorEvent, len(j.events)-int(seq))
	copy(out, j.events[seq:])
	return out
}

// Recent returns the last n events, oldest first.
func (j *Journal) Recent(n int) []ReactorEvent {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if n <= 0 {
		return nil
	}
	if n > len(j.events) {
		n = len(j.events)
	}
	out := make([]ReactorEvent, n)
	copy(out, j.events[len(j.events)-n:])
	return out
}

// Replay returns the full history of events.
func (j *Journal) Replay() []ReactorEvent {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make([]ReactorEvent, len(j.events))
	copy(out, j.events)
	return out
}

// GenerateEventID creates a unique event identifier.
func GenerateEventID() string {
	return uuid.NewString()
}
