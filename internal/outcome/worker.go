package outcome

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wardendev/watchloop/internal/clearscreen"
	"github.com/wardendev/watchloop/internal/event"
	"github.com/wardendev/watchloop/internal/supervise"
	"github.com/wardendev/watchloop/werr"
)

// Worker is the Outcome Worker: a single generation-stamped run of "apply
// this Outcome tree against the supervised process". It is spawned fresh
// for every decision the dispatcher makes and is expected to self-abort,
// via the generation guard, the moment a newer Worker supersedes it.
type Worker struct {
	logger *slog.Logger

	events       []*event.Event
	command      supervise.Spec
	holder       *supervise.Holder
	supervisorID string

	generation uint64
	counter    *GenerationCounter

	errCh   chan<- error
	eventCh chan<- *event.Event
}

// Spawn atomically bumps counter and records the result as this worker's
// generation, then launches apply(outcome) on a background goroutine. Any
// error apply returns (including werr.ErrExit) is forwarded to errCh;
// callers distinguish ErrExit with errors.Is and treat it as a graceful
// shutdown request rather than a failure to log.
func Spawn(
	ctx context.Context,
	logger *slog.Logger,
	events []*event.Event,
	command supervise.Spec,
	holder *supervise.Holder,
	supervisorID string,
	counter *GenerationCounter,
	errCh chan<- error,
	eventCh chan<- *event.Event,
	oc Outcome,
) *Worker {
	w := &Worker{
		logger:       logger,
		events:       events,
		command:      command,
		holder:       holder,
		supervisorID: supervisorID,
		generation:   counter.Next(),
		counter:      counter,
		errCh:        errCh,
		eventCh:      eventCh,
	}

	go func() {
		if err := w.apply(ctx, oc); err != nil {
			w.sendErr(err)
		}
	}()

	return w
}

func (w *Worker) debug(msg string, args ...any) {
	if w.logger != nil {
		w.logger.Debug(msg, args...)
	}
}

func (w *Worker) sendErr(err error) {
	select {
	case w.errCh <- err:
	default:
		if w.logger != nil {
			w.logger.Warn("outcome worker: error channel full, dropping error", "err", err, "generation", w.generation)
		}
	}
}

// checkGen reports whether this worker has been superseded: the shared
// counter has moved past the generation this worker was spawned with. Every
// suspension point in apply is bracketed by a checkGen call, before and
// after.
func (w *Worker) checkGen() bool {
	return w.counter.Load() == w.generation
}

// apply drives the Outcome state machine. A superseded worker returns nil
// (success) at its next check point rather than continuing to run
// side-effecting sub-operations; this is cancellation by cooperation, not
// preemption, so an operation already in flight always runs to completion
// but its result is discarded.
func (w *Worker) apply(ctx context.Context, oc Outcome) error {
	if !w.checkGen() {
		return nil
	}
	w.debug("outcome: apply", "outcome", oc, "generation", w.generation)

	switch oc.Kind {
	case DoNothing:
		return nil

	case Exit:
		return werr.ErrExit

	case Stop:
		if !w.holder.IsSome() {
			w.debug("outcome: stop with no running process, no-op")
			return nil
		}
		return w.stopHeld(ctx)

	case Destroy:
		if w.holder.IsSome() {
			if err := w.stopHeld(ctx); err != nil {
				return err
			}
		}
		w.holder.Close()
		return nil

	case Start:
		return w.start(ctx, nil)

	case StartHook:
		return w.start(ctx, oc.PreSpawn)

	case SignalKind:
		if !w.holder.IsSome() {
			w.debug("outcome: signal with no running process, no-op", "signal", oc.Signal.Name)
			return nil
		}
		if err := w.holder.Signal(oc.Signal); err != nil {
			return err
		}
		return nil

	case Wait:
		if !w.holder.IsSome() {
			w.debug("outcome: wait with no running process, no-op")
			return nil
		}
		if err := w.holder.Wait(); err != nil {
			return err
		}
		if !w.checkGen() {
			return nil
		}
		w.emitCompletion(nil)
		return nil

	case Sleep:
		select {
		case <-time.After(oc.Duration):
		case <-ctx.Done():
			return nil
		}
		return nil

	case Clear:
		return clearscreen.Clear(nil)

	case Reset:
		return clearscreen.Reset(nil)

	case Hook:
		return runHandler(oc.Handler)

	case IfRunning:
		if w.holder.IsSome() {
			return w.apply(ctx, *oc.Then)
		}
		return w.apply(ctx, *oc.Otherwise)

	case Both:
		return w.applyBoth(ctx, *oc.Then, *oc.Otherwise)

	case Race:
		return w.applyRace(ctx, *oc.Then, *oc.Otherwise)

	default:
		return nil
	}
}

// runHandler invokes a user hook (Outcome.Hook's Handler, or Outcome.StartHook's
// PreSpawn reinterpreted as one), recovering a panic into a werr.HandlerError
// instead of letting one misbehaving hook take down the whole worker
// goroutine.
func runHandler(h Handler) (err error) {
	if h == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = &werr.HandlerError{Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	h()
	return nil
}

func (w *Worker) stopHeld(ctx context.Context) error {
	if err := w.holder.Kill(); err != nil {
		return err
	}
	if !w.checkGen() {
		return nil
	}
	if err := w.holder.Wait(); err != nil {
		// A non-zero exit status is the expected result of killing the
		// process, not a failure to stop it.
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return err
		}
	}
	if !w.checkGen() {
		return nil
	}
	return w.holder.DropInner()
}

// start spawns a new supervisor, running pre (if non-nil) immediately
// before the spawn, and installs it into the holder, discarding whatever
// was there before without terminating it -- callers compose
// IfRunning(Stop, DoNothing) ahead of Start when that matters.
func (w *Worker) start(ctx context.Context, pre PreSpawn) error {
	if pre != nil {
		if err := runHandler(Handler(pre)); err != nil {
			return err
		}
	}
	if !w.checkGen() {
		return nil
	}
	sup, err := supervise.Spawn(w.command, w.logger)
	if err != nil {
		return err
	}
	if !w.checkGen() {
		// A newer worker already decided the process's fate; don't leak
		// this one into the holder where it could be resurrected.
		_ = sup.Kill()
		return nil
	}
	return w.holder.Replace(sup)
}

// applyBoth runs one then two in sequence regardless of whether one
// errored: one's error (Exit included) is forwarded to the error channel
// but never aborts two; two's error is returned to the caller, which is
// free to abort further composition on it.
func (w *Worker) applyBoth(ctx context.Context, one, two Outcome) error {
	if err := w.apply(ctx, one); err != nil {
		w.sendErr(err)
	}
	if !w.checkGen() {
		return nil
	}
	return w.apply(ctx, two)
}

// applyRace runs one and two concurrently; whichever finishes first decides
// the outcome. errgroup.WithContext gives the pair a shared derived context
// (so a Sleep on the losing side observes ctx.Done() and exits early) and
// tracks both goroutines for us, but errgroup.Wait alone blocks for both to
// finish -- it cannot express "first done wins" -- so first-to-finish is
// read off a result channel instead, and the loser's errgroup goroutine is
// left to drain in the background once cancel fires.
func (w *Worker) applyRace(ctx context.Context, one, two Outcome) error {
	raceCtx, cancel := context.WithCancel(ctx)

	type result struct{ err error }
	resCh := make(chan result, 2)

	g, gctx := errgroup.WithContext(raceCtx)
	g.Go(func() error {
		resCh <- result{err: w.apply(gctx, one)}
		return nil
	})
	g.Go(func() error {
		resCh <- result{err: w.apply(gctx, two)}
		return nil
	})

	first := <-resCh
	cancel()
	go func() {
		_ = g.Wait()
	}()
	return first.err
}

// emitCompletion publishes a ProcessCompletion event for the just-waited
// process onto the worker's outbound event channel, if one is wired. end is
// nil ("unknown") for the common case where the supervisor interface does
// not surface a structured exit reason; richer Supervisor implementations
// may populate it before calling this in their own Wait wrapper.
func (w *Worker) emitCompletion(end *event.ProcessEnd) {
	if w.eventCh == nil {
		return
	}
	ev := event.New(event.ProcessCompletionTag(end))
	select {
	case w.eventCh <- ev:
	default:
		w.sendErr(&werr.EventChannelSendError{Err: fmt.Errorf("channel full, dropping completion event (generation %d)", w.generation)})
	}
}
