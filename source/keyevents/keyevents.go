// Package keyevents is the keyboard watch source: it puts the controlling
// terminal into raw mode with golang.org/x/term and turns individual
// keystrokes into Source-tagged dispatch.PriorityEvent values, e.g. so a
// user can press "r" to force a restart outcome.
package keyevents

import (
	"log/slog"
	"os"

	"golang.org/x/term"

	"github.com/wardendev/watchloop/dispatch"
	"github.com/wardendev/watchloop/internal/event"
)

// Source reads raw keystrokes from the given file (normally os.Stdin) and
// emits one Normal-priority event per byte read. Close restores the
// terminal's original mode; it must always be called, even on error paths,
// or the user's shell is left in raw mode.
type Source struct {
	fd       int
	oldState *term.State
	file     *os.File
	logger   *slog.Logger
}

// New puts f into raw mode if it is a terminal; if it is not (e.g. stdin is
// redirected from a file in a test), Source.Run simply never produces
// events and Close is a no-op.
func New(f *os.File, logger *slog.Logger) (*Source, error) {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return &Source{fd: fd, file: f, logger: logger}, nil
	}
	old, err := term.MakeRaw(fd)
	if err != nil {
		return nil, err
	}
	return &Source{fd: fd, oldState: old, file: f, logger: logger}, nil
}

// Close restores the terminal to its pre-raw-mode state.
func (s *Source) Close() error {
	if s.oldState == nil {
		return nil
	}
	return term.Restore(s.fd, s.oldState)
}

// Run reads one byte at a time from the underlying file and emits a
// Normal-priority event per keystroke, tagged Source("keyboard") plus a
// FileEventKind tag holding keyName's label for the byte. It returns when
// the file hits EOF or is closed, or when done fires while an event is
// being sent (a blocked Read does not observe done).
func (s *Source) Run(out chan<- dispatch.PriorityEvent, done <-chan struct{}) {
	if s.oldState == nil && s.file != nil {
		if !term.IsTerminal(s.fd) {
			// Not a terminal: no interactive keystrokes to read, but still
			// honor done so callers can select on this goroutine's exit.
			<-done
			return
		}
	}

	buf := make([]byte, 1)
	for {
		n, err := s.file.Read(buf)
		if err != nil || n == 0 {
			return
		}
		pe := dispatch.PriorityEvent{
			Event:    event.New(event.SourceTag("keyboard"), event.FileEventKindTag(keyName(buf[0]))),
			Priority: event.PriorityNormal,
		}
		select {
		case out <- pe:
		case <-done:
			return
		}
	}
}

// keyName renders a raw byte as a human-legible key label for common
// control characters, falling back to the byte itself.
func keyName(b byte) string {
	switch b {
	case 3:
		return "ctrl-c"
	case 4:
		return "ctrl-d"
	case 13:
		return "enter"
	case 27:
		return "esc"
	default:
		return string(rune(b))
	}
}
