// Package sigevents is the signal watch source: it turns OS signals into
// Urgent-priority dispatch.PriorityEvent values carrying a Signal tag
// (SIGHUP, SIGINT, SIGTERM, SIGQUIT on non-Windows, os.Interrupt only on
// Windows).
package sigevents

import (
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/wardendev/watchloop/dispatch"
	"github.com/wardendev/watchloop/internal/event"
)

// DefaultSignals is the signal set watchloop reacts to when no explicit
// configuration overrides it.
func DefaultSignals() []os.Signal {
	if runtime.GOOS == "windows" {
		return []os.Signal{os.Interrupt}
	}
	return []os.Signal{syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT}
}

// Source relays the configured OS signals as Urgent Signal-tagged events.
// Urgent priority exists so a user's Ctrl-C is never silently dropped by a
// misconfigured filter set.
type Source struct {
	sig chan os.Signal
}

// New registers for sigs (DefaultSignals() if empty) and returns a Source
// ready to Run.
func New(sigs ...os.Signal) *Source {
	if len(sigs) == 0 {
		sigs = DefaultSignals()
	}
	ch := make(chan os.Signal, 4)
	signal.Notify(ch, sigs...)
	return &Source{sig: ch}
}

// Close stops signal delivery to this source.
func (s *Source) Close() {
	signal.Stop(s.sig)
}

// Run forwards every received signal onto out as an Urgent PriorityEvent
// until done is closed.
func (s *Source) Run(out chan<- dispatch.PriorityEvent, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case raw, ok := <-s.sig:
			if !ok {
				return
			}
			out <- dispatch.PriorityEvent{
				Event:    event.New(event.SignalTag(portableSignal(raw))),
				Priority: event.PriorityUrgent,
			}
		}
	}
}

// portableSignal maps an os.Signal to the short-name/number table the
// filterer matches against (HUP=1, INT=2, QUIT=3, TERM=15, unknown ->
// "UNK"/0).
func portableSignal(s os.Signal) event.Signal {
	sig, ok := s.(syscall.Signal)
	if !ok {
		return event.Signal{Name: "UNK", Number: 0}
	}
	switch sig {
	case syscall.SIGHUP:
		return event.Signal{Name: "HUP", Number: 1}
	case syscall.SIGINT:
		return event.Signal{Name: "INT", Number: 2}
	case syscall.SIGQUIT:
		return event.Signal{Name: "QUIT", Number: 3}
	case syscall.SIGTERM:
		return event.Signal{Name: "TERM", Number: 15}
	default:
		// USR1/USR2/KILL are either unreceivable via os/signal (KILL) or
		// have no portable syscall constant on every platform watchloop
		// targets; they reach the filterer only via Outcome.Signal(sig)
		// sent to the child, never as an inbound watch-source event.
		return event.Signal{Name: "UNK", Number: int(sig)}
	}
}
