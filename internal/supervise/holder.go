package supervise

import (
	"github.com/wardendev/watchloop/internal/event"
	"github.com/wardendev/watchloop/internal/swaplock"
)

// Holder is the Process Holder: the single swaplock-guarded slot an Outcome
// Worker reads and writes to learn about, replace, or tear down the one
// process it supervises. A nil Supervisor means "no process".
type Holder struct {
	cell *swaplock.Cell[Supervisor]
}

// NewHolder returns an empty Holder.
func NewHolder() *Holder {
	return &Holder{cell: swaplock.New[Supervisor]("process holder", nil)}
}

// IsSome reports whether a process is currently held.
func (h *Holder) IsSome() bool {
	return h.cell.Borrow() != nil
}

// Replace installs sup as the held process, discarding any previous value
// without terminating it (callers must Kill first if that matters).
func (h *Holder) Replace(sup Supervisor) error {
	return h.cell.Replace(sup)
}

// DropInner clears the held process without terminating it.
func (h *Holder) DropInner() error {
	return h.cell.Replace(nil)
}

// Kill terminates the held process, if any, and is a no-op otherwise.
func (h *Holder) Kill() error {
	sup := h.cell.Borrow()
	if sup == nil {
		return nil
	}
	return sup.Kill()
}

// Wait blocks until the held process exits, if any, and is a no-op
// otherwise.
func (h *Holder) Wait() error {
	sup := h.cell.Borrow()
	if sup == nil {
		return nil
	}
	return sup.Wait()
}

// Signal sends sig to the held process, if any, and is a no-op otherwise.
func (h *Holder) Signal(sig event.Signal) error {
	sup := h.cell.Borrow()
	if sup == nil {
		return nil
	}
	return sup.Signal(sig)
}

// Close permanently poisons the holder: every future Replace/DropInner call
// fails with a SwapLockError. Used by Outcome.Destroy so a superseded Start
// outcome can never resurrect a process into a slot that was torn down for
// good.
func (h *Holder) Close() {
	h.cell.Poison()
}
