// Package clearscreen implements the screen-clear driver the Outcome Worker
// uses for Outcome.Clear and Outcome.Reset, writing raw ANSI escape
// sequences directly to an io.Writer rather than through a terminal
// library.
package clearscreen

import (
	"io"
	"os"
)

const (
	// ansiClear clears the visible screen and scrollback-adjacent viewport
	// and homes the cursor: "clear screen" + "cursor to 1,1".
	ansiClear = "\033[2J\033[H"

	// ansiFullReset is the terminal "full reset" (RIS) sequence: clears
	// scrollback, resets modes, same effect as running `reset` in a shell.
	ansiFullReset = "\033c"

	// ansiLeaveAltScreen exits the alternate screen buffer, in case the
	// supervised process left one active (e.g. a TUI that crashed).
	ansiLeaveAltScreen = "\033[?1049l"

	// ansiWellDone clears scrollback buffer specifically (xterm extension),
	// a gentler companion to the full reset for terminals that support it.
	ansiWellDone = "\033[3J"
)

// Clear clears the screen and homes the cursor on w. A nil w defaults to
// os.Stdout.
func Clear(w io.Writer) error {
	if w == nil {
		w = os.Stdout
	}
	_, err := io.WriteString(w, ansiClear)
	return err
}

// Reset runs the full ordered reset sequence: leave any alternate screen
// buffer, clear scrollback, then a full terminal reset, then clear the
// visible screen once more. Each step is attempted even if an earlier one
// fails, and the first error (if any) is returned after all steps run, so a
// terminal that doesn't understand one escape sequence doesn't block the
// rest.
func Reset(w io.Writer) error {
	if w == nil {
		w = os.Stdout
	}
	var firstErr error
	for _, seq := range []string{ansiLeaveAltScreen, ansiWellDone, ansiFullReset, ansiClear} {
		if _, err := io.WriteString(w, seq); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
