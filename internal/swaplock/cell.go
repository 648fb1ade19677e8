// Package swaplock implements a read-mostly, copy-on-write value cell: many
// concurrent readers, single-writer replace/mutate, readers never block a
// writer and vice versa beyond the moment of publication. The filterer and
// process holder are both built on it.
package swaplock

import (
	"sync"

	"github.com/wardendev/watchloop/werr"
)

// Cell holds a value of type T behind a RWMutex. Reads never block other
// reads; Replace/Change take the write lock for the shortest possible time.
type Cell[T any] struct {
	mu       sync.RWMutex
	value    T
	poisoned bool
	about    string
}

// New creates a Cell holding the given initial value. about is a short
// static label used in SwapLockError when the cell is poisoned.
func New[T any](about string, initial T) *Cell[T] {
	return &Cell[T]{value: initial, about: about}
}

// Borrow returns the current value under a read lock, released before
// Borrow returns. Because the held value is read under lock and then
// copied out, callers observe a consistent snapshot even though nothing
// pins the lock open past this call -- any in-place collections held by T
// should not be mutated by Replace/Change, only swapped wholesale.
func (c *Cell[T]) Borrow() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Replace atomically substitutes the held value. Returns a *werr-compatible
// error if the cell has been poisoned.
func (c *Cell[T]) Replace(next T) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.poisoned {
		return &werr.SwapLockError{About: c.about}
	}
	c.value = next
	return nil
}

// Change takes exclusive access, lets fn mutate the value in place, then
// publishes it. Useful for appending to a slice/map held inside T without
// a full read-modify-write race against other writers.
func (c *Cell[T]) Change(fn func(*T)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.poisoned {
		return &werr.SwapLockError{About: c.about}
	}
	fn(&c.value)
	return nil
}

// Poison marks the cell unusable for future writes; existing Borrow holders
// are unaffected. Called in production by Holder.Close, so that once a
// Destroy outcome tears a holder down, any later Replace/Change against it
// -- a Start reaching a destroyed supervisor -- fails with SwapLockError
// instead of silently reviving the slot.
func (c *Cell[T]) Poison() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.poisoned = true
}

