package storage

import (
	"context"
	"time"

	"github.com/MRamiBalles/reactor-sim/internal/events"
)

// JournalSink adapts an EventRepository to the journal's write-through
// persister interface.
type JournalSink struct {
	repo    EventRepository
	timeout time.Duration
}

// NewJournalSink wraps repo. Each write is bounded by timeout.
func NewJournalSink(repo EventRepository, timeout time.Duration) *JournalSink {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &JournalSink{repo: repo, timeout: timeout}
}

// Append implements events.EventPersister.
func (s *JournalSink) Append(e events.ReactorEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.repo.Append(ctx, RecordFromEvent(e))
}

// RecordFromEvent converts a journal entry to its stored form.
func RecordFromEvent(e events.ReactorEvent) EventRecord {
	return EventRecord{
		ID:        e.ID,
		ReactorID: e.ReactorID,
		Seq:       e.Seq,
		Timestamp: e.Timestamp,
		SimTime:   e.SimTime,
		EventType: string(e.Type),
		ActorID:   e.ActorID,
		Payload:   e.Payload,
	}
}
