package outcome

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wardendev/watchloop/internal/event"
	"github.com/wardendev/watchloop/internal/supervise"
	"github.com/wardendev/watchloop/werr"
)

func newTestHolder() *supervise.Holder {
	return supervise.NewHolder()
}

// runApply drives apply synchronously (bypassing Spawn's goroutine) so
// tests can assert on its return value directly instead of racing a
// timeout against the error channel.
func runApply(t *testing.T, holder *supervise.Holder, counter *GenerationCounter, command supervise.Spec, oc Outcome) error {
	t.Helper()
	errCh := make(chan error, 4)
	eventCh := make(chan *event.Event, 4)
	w := &Worker{
		command:    command,
		holder:     holder,
		generation: counter.Next(),
		counter:    counter,
		errCh:      errCh,
		eventCh:    eventCh,
	}
	return w.apply(context.Background(), oc)
}

func TestApplyDoNothingIsNoop(t *testing.T) {
	holder := newTestHolder()
	counter := NewGenerationCounter()
	if err := runApply(t, holder, counter, supervise.Spec{}, DoNothingOutcome()); err != nil {
		t.Errorf("DoNothing should not error: %v", err)
	}
}

func TestApplyExitPropagatesSentinel(t *testing.T) {
	holder := newTestHolder()
	counter := NewGenerationCounter()
	errCh := make(chan error, 1)
	eventCh := make(chan *event.Event, 1)
	Spawn(context.Background(), nil, nil, supervise.Spec{}, holder, "test", counter, errCh, eventCh, ExitOutcome())

	select {
	case err := <-errCh:
		if !errors.Is(err, werr.ErrExit) {
			t.Errorf("expected werr.ErrExit, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Exit to propagate")
	}
}

func TestApplyStopWithNoProcessIsNoop(t *testing.T) {
	holder := newTestHolder()
	counter := NewGenerationCounter()
	if err := runApply(t, holder, counter, supervise.Spec{}, StopOutcome()); err != nil {
		t.Errorf("Stop on empty holder should not error: %v", err)
	}
}

func TestApplyStartThenStopLifecycle(t *testing.T) {
	holder := newTestHolder()
	counter := NewGenerationCounter()
	command := supervise.Spec{Name: "sh", Args: []string{"-c", "trap 'exit 0' TERM; sleep 30"}}

	if err := runApply(t, holder, counter, command, StartOutcome()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !holder.IsSome() {
		t.Fatal("expected a process to be held after Start")
	}

	if err := runApply(t, holder, counter, command, StopOutcome()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if holder.IsSome() {
		t.Error("expected the holder to be empty after Stop")
	}
}

func TestApplyIfRunningChoosesBranchByHolderState(t *testing.T) {
	holder := newTestHolder()
	counter := NewGenerationCounter()

	// Not running: the "otherwise" branch should run.
	ranOtherwise := make(chan struct{}, 1)
	oc := IfRunningOutcome(ExitOutcome(), HookOutcome(func() { ranOtherwise <- struct{}{} }))
	if err := runApply(t, holder, counter, supervise.Spec{}, oc); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	select {
	case <-ranOtherwise:
	default:
		t.Error("expected the otherwise branch to run when nothing is held")
	}
}

func TestApplyBothRunsSecondEvenIfFirstErrors(t *testing.T) {
	holder := newTestHolder()
	counter := NewGenerationCounter()
	ranSecond := make(chan struct{}, 1)

	oc := BothOutcome(ExitOutcome(), HookOutcome(func() { ranSecond <- struct{}{} }))

	errCh := make(chan error, 2)
	eventCh := make(chan *event.Event, 2)
	Spawn(context.Background(), nil, nil, supervise.Spec{}, holder, "test", counter, errCh, eventCh, oc)

	select {
	case <-ranSecond:
	case <-time.After(2 * time.Second):
		t.Fatal("expected the second Both limb to run despite the first erroring")
	}
}

func TestApplyRaceSurfacesFirstError(t *testing.T) {
	holder := newTestHolder()
	counter := NewGenerationCounter()

	oc := RaceOutcome(ExitOutcome(), SleepOutcome(time.Hour))
	if err := runApply(t, holder, counter, supervise.Spec{}, oc); !errors.Is(err, werr.ErrExit) {
		t.Errorf("expected the fast Exit limb to win the race, got %v", err)
	}
}

func TestGenerationGuardAbortsSupersededWorker(t *testing.T) {
	holder := newTestHolder()
	counter := NewGenerationCounter()
	errCh := make(chan error, 4)
	eventCh := make(chan *event.Event, 4)

	w1 := &Worker{
		logger:     nil,
		command:    supervise.Spec{},
		holder:     holder,
		generation: counter.Next(),
		counter:    counter,
		errCh:      errCh,
		eventCh:    eventCh,
	}

	// Supersede w1 before it runs: a fresh generation bump simulates W2
	// being spawned immediately after W1.
	counter.Next()

	if err := w1.apply(context.Background(), SleepOutcome(10*time.Second)); err != nil {
		t.Errorf("a superseded worker's apply should return nil, got %v", err)
	}
	if holder.IsSome() {
		t.Error("a superseded worker must not have touched the holder")
	}
}

func TestSpawnSupersessionLeavesOnlyLatestStartRunning(t *testing.T) {
	holder := newTestHolder()
	counter := NewGenerationCounter()
	errCh := make(chan error, 4)
	eventCh := make(chan *event.Event, 4)
	command := supervise.Spec{Name: "sh", Args: []string{"-c", "sleep 30"}}

	// W1: a sleep that should never touch the holder because W2
	// supersedes it almost immediately.
	Spawn(context.Background(), nil, nil, supervise.Spec{}, holder, "w1", counter, errCh, eventCh, SleepOutcome(500*time.Millisecond))
	w2 := Spawn(context.Background(), nil, nil, command, holder, "w2", counter, errCh, eventCh, StartOutcome())
	_ = w2

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if holder.IsSome() {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !holder.IsSome() {
		t.Fatal("expected W2's Start to install a process into the holder")
	}
	_ = holder.Kill()
	_ = holder.Wait()
}
