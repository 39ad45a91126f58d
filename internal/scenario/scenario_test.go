package scenario

import (
	"context"
	"errors"
	"testing"

	"github.com/MRamiBalles/reactor-sim/internal/reactor"
)

func TestNames(t *testing.T) {
	want := []string{"fuel-depletion", "manual-meltdown", "scram-cooldown", "steady-state"}
	got := Names()
	if len(got) != len(want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestScenariosPass(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			res, err := Run(context.Background(), name, Options{})
			if err != nil {
				t.Fatalf("Run failed: %v", err)
			}
			if !res.Passed {
				t.Errorf("scenario failed: %+v", res.Failed())
			}
			if len(res.Checks) == 0 {
				t.Error("expected graded checks")
			}
			if res.SimTime <= 0 {
				t.Errorf("expected simulated time to advance, got %v", res.SimTime)
			}
		})
	}
}

func TestManualMeltdownEndsScrammed(t *testing.T) {
	res, err := Run(context.Background(), "manual-meltdown", Options{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !res.Final.HasStatus(reactor.StatusScram) || res.Final.IsAutoControl {
		t.Errorf("unexpected final state %+v", res.Final)
	}
}

func TestRunUnknown(t *testing.T) {
	if _, err := Run(context.Background(), "china-syndrome", Options{}); !errors.Is(err, ErrUnknownScenario) {
		t.Errorf("expected ErrUnknownScenario, got %v", err)
	}
}

func TestRunHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := Run(ctx, "steady-state", Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if res.Passed || res.Error == "" {
		t.Errorf("expected a failed result with the cancellation recorded, got %+v", res)
	}
}

func TestRunAll(t *testing.T) {
	results, err := RunAll(context.Background(), Options{Step: 0.1})
	if err != nil {
		t.Fatalf("RunAll failed: %v", err)
	}
	if len(results) != len(Names()) {
		t.Fatalf("expected %d results, got %d", len(Names()), len(results))
	}
	for _, r := range results {
		if !r.Passed {
			t.Errorf("%s failed at step 0.1: %+v", r.Scenario, r.Failed())
		}
	}
}

func TestFailedChecks(t *testing.T) {
	r := Result{Checks: []Check{{Name: "a", Passed: true}, {Name: "b"}, {Name: "c", Passed: true}}}
	failed := r.Failed()
	if len(failed) != 1 || failed[0].Name != "b" {
		t.Errorf("unexpected failed checks %+v", failed)
	}
}
