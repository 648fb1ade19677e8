// Command watchloop is the CLI entrypoint: parses flags with the standard
// library's flag package, loads the TOML config, wires the watch sources
// into the dispatcher, and hands the whole thing to lifecycle.Orchestrate.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"path/filepath"

	"github.com/wardendev/watchloop/config"
	"github.com/wardendev/watchloop/dispatch"
	"github.com/wardendev/watchloop/filterer"
	"github.com/wardendev/watchloop/internal/event"
	"github.com/wardendev/watchloop/internal/ignorefs"
	"github.com/wardendev/watchloop/internal/outcome"
	"github.com/wardendev/watchloop/internal/supervise"
	"github.com/wardendev/watchloop/lifecycle"
	"github.com/wardendev/watchloop/source/fsevents"
	"github.com/wardendev/watchloop/source/keyevents"
	"github.com/wardendev/watchloop/source/sigevents"
	"github.com/wardendev/watchloop/watchlog"
	"github.com/wardendev/watchloop/werr"
)

func main() {
	configPath := flag.String("config", "watchloop.toml", "path to the TOML config file")
	noKeyboard := flag.Bool("no-keyboard", false, "disable the interactive keyboard watch source")
	flag.Parse()

	log := watchlog.New("watchloop")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("config load failed", "err", err)
		os.Exit(1)
	}
	log = watchlog.New("watchloop", watchlog.Options{Level: watchlog.ParseLevel(cfg.LogLevel)})

	origin, err := config.Abs(*configPath, cfg.Dir)
	if err != nil {
		log.Error("resolve origin failed", "err", err)
		os.Exit(1)
	}

	f, err := filterer.New(origin, origin)
	if err != nil {
		log.Error("filterer init failed", "err", err)
		os.Exit(1)
	}
	if filters, ferr := cfg.ToFilters(); ferr != nil {
		log.Error("config filters invalid", "err", ferr)
		os.Exit(1)
	} else if len(filters) > 0 {
		if err := f.AddFilters(filters); err != nil {
			log.Error("add filters failed", "err", err)
			os.Exit(1)
		}
	}
	for _, path := range cfg.IgnoreFiles {
		if !filepath.IsAbs(path) {
			path = filepath.Join(origin, path)
		}
		ig, err := ignorefs.LoadFile(path, filepath.Dir(path))
		if err != nil {
			log.Warn("ignore file load failed, skipping", "path", path, "err", err)
			continue
		}
		if err := f.AddIgnoreFile(ig); err != nil {
			log.Error("add ignore file failed", "path", path, "err", err)
			os.Exit(1)
		}
	}

	env, err := cfg.Env()
	if err != nil {
		log.Error("env resolution failed", "err", err)
		os.Exit(1)
	}
	command := supervise.Spec{
		Name:   cfg.Command[0],
		Args:   cfg.Command[1:],
		Env:    env,
		Dir:    origin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}

	holder := supervise.NewHolder()
	counter := outcome.NewGenerationCounter()
	errCh := make(chan error, 16)
	eventOutCh := make(chan *event.Event, 16)
	inCh := make(chan dispatch.PriorityEvent, 64)

	loop := &dispatch.Loop{
		Filterer: f,
		Decide:   decide(cfg),
		Command:  command,
		Holder:   holder,
		Counter:  counter,
		ErrCh:    errCh,
		EventCh:  eventOutCh,
		Logger:   log,
		Debounce: cfg.Debounce,
	}

	fsSrc, err := fsevents.New(log)
	if err != nil {
		log.Error("fs watch source init failed", "err", err)
		os.Exit(1)
	}
	watchRoots := cfg.Watch
	if len(watchRoots) == 0 {
		watchRoots = []string{origin}
	}
	for _, root := range watchRoots {
		if !filepath.IsAbs(root) {
			root = filepath.Join(origin, root)
		}
		if err := fsSrc.AddDir(root); err != nil {
			log.Warn("watch root unavailable", "root", root, "err", err)
		}
	}

	sigSrc := sigevents.New()

	var keySrc *keyevents.Source
	if !*noKeyboard {
		keySrc, err = keyevents.New(os.Stdin, log)
		if err != nil {
			log.Warn("keyboard source unavailable, continuing without it", "err", err)
			keySrc = nil
		}
	}

	done := make(chan struct{})
	exitCtx, requestExit := context.WithCancel(context.Background())
	defer requestExit()

	go func() {
		for err := range errCh {
			if errors.Is(err, werr.ErrExit) {
				log.Info("exit requested by outcome worker")
				requestExit()
				continue
			}
			log.Error("outcome worker error", "err", err)
		}
	}()
	go func() {
		for ev := range eventOutCh {
			// Completion events from the worker feed back into the
			// dispatcher as Normal-priority events (e.g. to trigger an
			// on-exit restart policy keyed off ProcessCompletion tags).
			inCh <- dispatch.PriorityEvent{Event: ev, Priority: event.PriorityNormal}
		}
	}()

	go fsSrc.Run(inCh, done)
	go sigSrc.Run(inCh, done)
	if keySrc != nil {
		go keySrc.Run(inCh, done)
	}

	lifecycle.Orchestrate(lifecycle.Options{
		Logger: log,
		Run: func(ctx context.Context) error {
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()
			stop := context.AfterFunc(exitCtx, cancel)
			defer stop()
			return loop.Run(ctx, inCh)
		},
		Shutdown: func(ctx context.Context) error {
			close(done)
			_ = fsSrc.Close()
			sigSrc.Close()
			if keySrc != nil {
				_ = keySrc.Close()
			}
			if holder.IsSome() {
				_ = holder.Kill()
				_ = holder.Wait()
			}
			return nil
		},
	})
}

// decide implements the default restart-on-change policy: on any passing
// batch, stop whatever is currently running (no-op if nothing is) and
// start the command fresh. When the config sets a RestartSignal, a running
// child is sent that signal instead of being stopped and Start follows at
// once: the signalled child is neither waited for nor killed, and the new
// child replaces it in the holder.
func decide(cfg *config.Config) dispatch.Decide {
	return func(passed []*event.Event, highest event.Priority) outcome.Outcome {
		if highest == event.PriorityUrgent {
			for _, ev := range passed {
				for _, tag := range ev.Tags {
					if tag.Kind == event.TagSignal && (tag.Signal.Name == "INT" || tag.Signal.Name == "TERM") {
						return outcome.BothOutcome(outcome.StopOutcome(), outcome.ExitOutcome())
					}
				}
			}
		}

		restart := outcome.IfRunningOutcome(outcome.StopOutcome(), outcome.DoNothingOutcome())
		if cfg.RestartSignal != "" {
			restart = outcome.IfRunningOutcome(
				outcome.SignalOutcome(event.ParseSignalName(cfg.RestartSignal)),
				outcome.DoNothingOutcome(),
			)
		}
		return outcome.BothOutcome(restart, outcome.StartOutcome())
	}
}
