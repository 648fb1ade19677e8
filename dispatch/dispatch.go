// Package dispatch implements the single-goroutine event loop that ties the
// watch sources, the Tagged Filterer, the decision engine, and the Outcome
// Worker together: one goroutine selects over an inbound event channel,
// debounces, and reacts. CheckEvent is called synchronously on this
// goroutine and must never block.
package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/wardendev/watchloop/filterer"
	"github.com/wardendev/watchloop/internal/event"
	"github.com/wardendev/watchloop/internal/outcome"
	"github.com/wardendev/watchloop/internal/supervise"
)

// DefaultDebounce is the coalescing window used when a Loop doesn't set one.
const DefaultDebounce = 30 * time.Millisecond

// PriorityEvent pairs an Event with the Priority its source assigned it,
// the unit of work flowing through the dispatcher's inbound channel.
type PriorityEvent struct {
	Event    *event.Event
	Priority event.Priority
}

// Decide computes the Outcome to apply for a batch of events that all
// passed the filterer, in arrival order; highest is the highest priority
// among them. It is supplied
// by the CLI/config layer, never by the core packages themselves.
type Decide func(passed []*event.Event, highest event.Priority) outcome.Outcome

// Loop is the dispatcher: one per run, wired to a single Filterer, a single
// Process Holder, and a single shared generation counter.
type Loop struct {
	Filterer *filterer.Filterer
	Decide   Decide
	Command  supervise.Spec
	Holder   *supervise.Holder
	Counter  *outcome.GenerationCounter
	ErrCh    chan<- error
	EventCh  chan<- *event.Event
	Logger   *slog.Logger

	// Debounce is the coalescing window for non-Urgent events. Zero means
	// DefaultDebounce.
	Debounce time.Duration

	supervisorID string
}

// Run consumes in until it is closed or ctx is cancelled, debouncing
// arrivals and, for every non-empty passing batch, spawning a fresh Outcome
// Worker generation via internal/outcome.Spawn. Urgent-priority events
// bypass debouncing entirely and are dispatched as their own singleton
// batch: queuing a signal behind a debounce timer would defeat its purpose.
func (l *Loop) Run(ctx context.Context, in <-chan PriorityEvent) error {
	if l.supervisorID == "" {
		l.supervisorID = uuid.NewString()
	}
	window := l.Debounce
	if window == 0 {
		window = DefaultDebounce
	}

	deb := newDebouncer(window, func(batch []PriorityEvent) {
		l.handleBatch(ctx, batch)
	})
	defer deb.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case pe, ok := <-in:
			if !ok {
				return nil
			}
			if pe.Priority == event.PriorityUrgent {
				l.handleBatch(ctx, []PriorityEvent{pe})
				continue
			}
			deb.Add(pe)
		}
	}
}

func (l *Loop) handleBatch(ctx context.Context, batch []PriorityEvent) {
	passed := make([]*event.Event, 0, len(batch))
	highest := event.PriorityLow
	for _, pe := range batch {
		ok, err := l.Filterer.CheckEvent(pe.Event, pe.Priority)
		if err != nil {
			if l.Logger != nil {
				l.Logger.Error("filterer: check_event failed", "err", err)
			}
			continue
		}
		if !ok {
			continue
		}
		if l.Logger != nil && len(pe.Event.Tags) > 0 {
			l.Logger.Debug("dispatch: event passed filterer", "tag", pe.Event.Tags[0], "priority", pe.Priority.String())
		}
		passed = append(passed, pe.Event)
		if pe.Priority > highest {
			highest = pe.Priority
		}
	}
	if len(passed) == 0 {
		return
	}

	oc := l.Decide(passed, highest)
	if l.Logger != nil {
		l.Logger.Debug("dispatch: decision", "outcome", oc, "events", len(passed), "priority", highest.String())
	}
	outcome.Spawn(ctx, l.Logger, passed, l.Command, l.Holder, l.supervisorID, l.Counter, l.ErrCh, l.EventCh, oc)
}
