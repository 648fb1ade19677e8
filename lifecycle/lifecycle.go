// Package lifecycle drives watchloop's top-level startup/shutdown: a
// signal-set, timeout, and startup/shutdown-callback shape for running the
// dispatcher loop until a signal or a worker's Exit outcome asks for
// graceful shutdown.
package lifecycle

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/wardendev/watchloop/watchlog"
)

func defaultSignals() []os.Signal {
	if runtime.GOOS == "windows" {
		return []os.Signal{os.Interrupt}
	}
	return []os.Signal{syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT}
}

// Options configures Orchestrate.
type Options struct {
	ShutdownTimeout time.Duration // default: 10 seconds
	Signals         []os.Signal   // default: SIGHUP, SIGINT, SIGTERM, SIGQUIT
	Logger          *slog.Logger  // default: watchlog.New("lifecycle")

	// Run executes the dispatcher loop. It must return once ctx is
	// cancelled (Orchestrate cancels it when a signal arrives); it may
	// also return earlier on its own. Either way Shutdown runs next. A
	// non-nil return is logged but does not change the shutdown sequence.
	Run func(ctx context.Context) error

	// Shutdown tears down the supervised child process and any open watch
	// sources. It receives a context bounded by ShutdownTimeout.
	Shutdown func(ctx context.Context) error
}

// Orchestrate runs Run until a signal arrives (which cancels Run's context)
// or Run returns on its own (e.g. when the caller's plumbing sees an Outcome
// Worker's werr.ErrExit), then runs Shutdown with a bounded timeout.
func Orchestrate(opts Options) {
	if opts.Logger == nil {
		opts.Logger = watchlog.New("lifecycle")
	}
	if opts.ShutdownTimeout == 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	if len(opts.Signals) == 0 {
		opts.Signals = defaultSignals()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 2)
	signal.Notify(sig, opts.Signals...)
	defer signal.Stop(sig)

	done := make(chan struct{})

	go func() {
		select {
		case s := <-sig:
			opts.Logger.Info("signal received, shutting down", "signal", s)
			cancel()
		case <-ctx.Done():
			opts.Logger.Info("run loop exited, shutting down")
		}

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), opts.ShutdownTimeout)
		defer cancelShutdown()

		if opts.Shutdown != nil {
			if err := opts.Shutdown(shutdownCtx); err != nil {
				opts.Logger.Error("shutdown error", "err", err)
			}
		}
		if shutdownCtx.Err() == context.DeadlineExceeded {
			opts.Logger.Warn("shutdown timed out, exiting anyway")
		}
		close(done)
	}()

	if opts.Run != nil {
		if err := opts.Run(ctx); err != nil {
			opts.Logger.Error("run loop error", "err", err)
		}
	}
	cancel()

	<-done
}
