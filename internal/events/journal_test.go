package events

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type memPersister struct {
	mu     sync.Mutex
	stored []ReactorEvent
	fail   bool
}

func (m *memPersister) Append(e ReactorEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("disk full")
	}
	m.stored = append(m.stored, e)
	return nil
}

func TestJournalAppendAssignsIdentity(t *testing.T) {
	j := NewJournal(nil, 0, 0)

	a := j.Append(ReactorEvent{Type: EventTypeCommand, ActorID: "operator"})
	b := j.Append(ReactorEvent{Type: EventTypeScram, ActorID: "operator"})

	if a.Seq != 1 || b.Seq != 2 {
		t.Errorf("expected dense sequence 1,2; got %d,%d", a.Seq, b.Seq)
	}
	if a.ID == "" || a.ID == b.ID {
		t.Errorf("expected unique IDs, got %q and %q", a.ID, b.ID)
	}
	if a.Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}
	if j.Len() != 2 {
		t.Errorf("expected 2 events, got %d", j.Len())
	}
}

func TestJournalQueries(t *testing.T) {
	j := NewJournal(nil, 0, 0)
	j.Append(ReactorEvent{Type: EventTypeCommand})
	j.Append(ReactorEvent{Type: EventTypeAlertRaised, Payload: map[string]any{"status": "OVERHEAT"}})
	j.Append(ReactorEvent{Type: EventTypeCommand})
	j.Append(ReactorEvent{Type: EventTypeAlertCleared, Payload: map[string]any{"status": "OVERHEAT"}})

	if got := j.ByType(EventTypeCommand); len(got) != 2 {
		t.Errorf("ByType(COMMAND): expected 2, got %d", len(got))
	}
	if got := j.ByType(EventTypeRefuel); len(got) != 0 {
		t.Errorf("ByType(REFUEL): expected none, got %d", len(got))
	}

	since := j.Since(2)
	if len(since) != 2 || since[0].Seq != 3 || since[1].Seq != 4 {
		t.Errorf("Since(2): unexpected result %+v", since)
	}
	if got := j.Since(4); got != nil {
		t.Errorf("Since(last): expected nil, got %+v", got)
	}
	if got := j.Since(100); got != nil {
		t.Errorf("Since(beyond): expected nil, got %+v", got)
	}

	recent := j.Recent(3)
	if len(recent) != 3 || recent[0].Seq != 2 || recent[2].Seq != 4 {
		t.Errorf("Recent(3): unexpected result %+v", recent)
	}
	if got := j.Recent(10); len(got) != 4 {
		t.Errorf("Recent(10): expected all 4, got %d", len(got))
	}
	if got := j.Recent(0); got != nil {
		t.Errorf("Recent(0): expected nil, got %+v", got)
	}
}

func TestJournalReplayIsACopy(t *testing.T) {
	j := NewJournal(nil, 0, 0)
	j.Append(ReactorEvent{Type: EventTypeRefuel})

	replay := j.Replay()
	replay[0].Type = EventTypeScram

	if j.Replay()[0].Type != EventTypeRefuel {
		t.Error("mutating Replay result changed the journal")
	}
}

func TestJournalWritesThrough(t *testing.T) {
	p := &memPersister{}
	j := NewJournal(p, 16, 2)

	for i := 0; i < 10; i++ {
		j.Append(ReactorEvent{Type: EventTypeCommand})
	}
	j.Close()

	if len(p.stored) != 10 {
		t.Errorf("expected 10 persisted events, got %d", len(p.stored))
	}
	persisted, failed := j.PersistStats()
	if persisted != 10 || failed != 0 {
		t.Errorf("expected 10/0 persist stats, got %d/%d", persisted, failed)
	}

	// Appends after Close stay in memory.
	j.Append(ReactorEvent{Type: EventTypeCommand})
	if j.Len() != 11 {
		t.Errorf("expected 11 events in memory, got %d", j.Len())
	}
	j.Close()
}

func TestJournalCountsPersistFailures(t *testing.T) {
	p := &memPersister{fail: true}
	j := NewJournal(p, 4, 1)

	j.Append(ReactorEvent{Type: EventTypeScram})
	j.Append(ReactorEvent{Type: EventTypeScram})
	j.Close()

	persisted, failed := j.PersistStats()
	if persisted != 0 || failed != 2 {
		t.Errorf("expected 0/2 persist stats, got %d/%d", persisted, failed)
	}
	if j.Len() != 2 {
		t.Errorf("failed persistence must not lose in-memory events, got %d", j.Len())
	}
}

func TestJournalCloseRightAfterCreate(t *testing.T) {
	done := make(chan struct{})
	p := &memPersister{}
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			j := NewJournal(p, 8, 1)
			j.Append(ReactorEvent{Type: EventTypeCommand})
			j.Close()
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.stored) != 200 {
		t.Errorf("expected every queued event persisted before Close returned, got %d", len(p.stored))
	}
}
