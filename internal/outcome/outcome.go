// Package outcome implements the Outcome sum type and the Outcome Worker
// that applies it: the generation-guarded state machine that turns an
// action decision into process lifecycle effects (start, stop, signal,
// sleep, screen resets, user hooks) plus the recursive combinators
// (IfRunning, Both, Race) that sequence and race them.
package outcome

import (
	"log/slog"
	"time"

	"github.com/wardendev/watchloop/internal/event"
)

// Kind discriminates an Outcome's variant.
type Kind uint8

const (
	DoNothing Kind = iota
	Exit
	Stop
	Start
	StartHook
	Wait
	SignalKind
	Sleep
	Clear
	Reset
	Destroy
	Hook
	IfRunning
	Both
	Race
)

func (k Kind) String() string {
	switch k {
	case DoNothing:
		return "do_nothing"
	case Exit:
		return "exit"
	case Stop:
		return "stop"
	case Start:
		return "start"
	case StartHook:
		return "start_hook"
	case Wait:
		return "wait"
	case SignalKind:
		return "signal"
	case Sleep:
		return "sleep"
	case Clear:
		return "clear"
	case Reset:
		return "reset"
	case Destroy:
		return "destroy"
	case Hook:
		return "hook"
	case IfRunning:
		return "if_running"
	case Both:
		return "both"
	case Race:
		return "race"
	default:
		return "unknown"
	}
}

// Hooks let user code observe or augment outcome application without
// changing the sum type's shape: Handler runs for Outcome.Hook and
// PreSpawn runs as the StartHook payload before the process is spawned.
type Handler func()
type PreSpawn func()

// Outcome is the recursive decision tree the dispatcher produces and the
// worker applies. Only the fields relevant to Kind are populated; this
// mirrors the Rust tagged-union grammar (Outcome ::= DoNothing | Exit | ...)
// without needing a sealed-interface simulation in Go.
type Outcome struct {
	Kind Kind

	// Signal
	Signal event.Signal

	// Sleep
	Duration time.Duration

	// StartHook
	PreSpawn PreSpawn

	// Hook
	Handler Handler

	// IfRunning, Both, Race
	Then      *Outcome
	Otherwise *Outcome
}

func DoNothingOutcome() Outcome { return Outcome{Kind: DoNothing} }
func ExitOutcome() Outcome      { return Outcome{Kind: Exit} }
func StopOutcome() Outcome      { return Outcome{Kind: Stop} }
func StartOutcome() Outcome     { return Outcome{Kind: Start} }
func StartHookOutcome(pre PreSpawn) Outcome {
	return Outcome{Kind: StartHook, PreSpawn: pre}
}
func WaitOutcome() Outcome { return Outcome{Kind: Wait} }
func SignalOutcome(sig event.Signal) Outcome {
	return Outcome{Kind: SignalKind, Signal: sig}
}
func SleepOutcome(d time.Duration) Outcome { return Outcome{Kind: Sleep, Duration: d} }
func ClearOutcome() Outcome                { return Outcome{Kind: Clear} }
func ResetOutcome() Outcome                { return Outcome{Kind: Reset} }
func DestroyOutcome() Outcome              { return Outcome{Kind: Destroy} }
func HookOutcome(h Handler) Outcome        { return Outcome{Kind: Hook, Handler: h} }

// IfRunningOutcome applies then if a process is currently held, otherwise
// applies otherwise.
func IfRunningOutcome(then, otherwise Outcome) Outcome {
	return Outcome{Kind: IfRunning, Then: &then, Otherwise: &otherwise}
}

// BothOutcome applies one, then two regardless of whether one errored (the
// error is forwarded but does not stop two from running).
func BothOutcome(one, two Outcome) Outcome {
	return Outcome{Kind: Both, Then: &one, Otherwise: &two}
}

// RaceOutcome applies one and two concurrently; whichever finishes first
// determines the result. The loser's context is cancelled and its result
// is discarded.
func RaceOutcome(one, two Outcome) Outcome {
	return Outcome{Kind: Race, Then: &one, Otherwise: &two}
}

// LogValue renders the Outcome tree as a nested slog group -- "kind=both
// then=[kind=stop] otherwise=[kind=start]" -- instead of dumping the struct's
// unexported-looking boxed-pointer fields through %v, so dispatch and the
// worker can log the actual decision they're applying. Leaf kinds add just
// the one field that matters (Signal, Duration); composite kinds recurse
// into Then/Otherwise, which is always finite since the tree is built by
// the combinator constructors above, never by hand.
func (oc Outcome) LogValue() slog.Value {
	attrs := []slog.Attr{slog.String("kind", oc.Kind.String())}
	switch oc.Kind {
	case SignalKind:
		attrs = append(attrs, slog.String("signal", oc.Signal.Name))
	case Sleep:
		attrs = append(attrs, slog.Duration("duration", oc.Duration))
	case IfRunning, Both, Race:
		if oc.Then != nil {
			attrs = append(attrs, slog.Any("then", *oc.Then))
		}
		if oc.Otherwise != nil {
			attrs = append(attrs, slog.Any("otherwise", *oc.Otherwise))
		}
	}
	return slog.GroupValue(attrs...)
}
