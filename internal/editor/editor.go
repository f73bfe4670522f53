// Package editor is the composition root: it owns the bus, wires every controller onto it and
// runs the single update loop all bus traffic happens on.
package editor

import (
	"context"
	"errors"
	"log"
	"path/filepath"
	"sync"

	"mapforge.dev/internal/bus"
	"mapforge.dev/internal/config"
	"mapforge.dev/internal/controller/actions"
	"mapforge.dev/internal/controller/clipboard"
	"mapforge.dev/internal/controller/environment"
	"mapforge.dev/internal/controller/instance"
	"mapforge.dev/internal/controller/layers"
	"mapforge.dev/internal/controller/mapholder"
	"mapforge.dev/internal/controller/modifier"
	"mapforge.dev/internal/controller/preferences"
	"mapforge.dev/internal/controller/recent"
	"mapforge.dev/internal/controller/tools"
	"mapforge.dev/internal/dmm"
	"mapforge.dev/internal/env"
)

var ErrStopped = errors.New("editor: stopped")

type Options struct {
	Store    mapholder.Store
	Loader   environment.Loader
	Journals []actions.Journal
}

type closer interface{ Close() }

type call struct {
	fn   func(b *bus.Bus)
	done chan struct{}
}

type Editor struct {
	cfg config.Config
	log *log.Logger
	bus *bus.Bus

	inbox    chan any
	stop     chan struct{}
	stopOnce sync.Once

	controllers []closer
}

func New(cfg config.Config, logger *log.Logger, opts Options) (*Editor, error) {
	if opts.Store == nil {
		return nil, errors.New("editor: map store required")
	}
	if opts.Loader == nil {
		opts.Loader = environment.FileLoader{Parser: env.Parser{Path: cfg.ParserPath}}
	}
	e := &Editor{
		cfg:   cfg,
		log:   logger,
		bus:   bus.New(logger),
		inbox: make(chan any, cfg.InboxSize),
		stop:  make(chan struct{}),
	}

	size := dmm.MapSize{MaxX: cfg.DefaultMapSize.X, MaxY: cfg.DefaultMapSize.Y, MaxZ: cfg.DefaultMapSize.Z}
	e.controllers = append(e.controllers,
		environment.New(e.bus, logger, opts.Loader, func(ev any) { _ = e.Post(ev) }),
		actions.New(e.bus, logger, cfg.HistoryLimit, opts.Journals...),
		mapholder.New(e.bus, logger, opts.Store, size),
		layers.New(e.bus),
		tools.New(e.bus),
		instance.New(e.bus),
		modifier.New(e.bus, logger),
		clipboard.New(e.bus),
	)

	dataDir := filepath.Clean(cfg.DataDir)
	rc, err := recent.New(e.bus, logger, dataDir)
	if err != nil {
		e.closeControllers()
		return nil, err
	}
	e.controllers = append(e.controllers, rc)
	pc, err := preferences.New(e.bus, logger, dataDir)
	if err != nil {
		e.closeControllers()
		return nil, err
	}
	e.controllers = append(e.controllers, pc)
	return e, nil
}

// InboxDepth is the number of queued, not yet dispatched events.
func (e *Editor) InboxDepth() int { return len(e.inbox) }

func (e *Editor) InboxCapacity() int { return cap(e.inbox) }

// Bus is only safe to use from the loop goroutine (inside Do or a handler).
func (e *Editor) Bus() *bus.Bus { return e.bus }

// Post queues ev for publishing on the loop. It waits while the inbox is full and fails
// once the editor stopped.
func (e *Editor) Post(ev any) error {
	select {
	case <-e.stop:
		return ErrStopped
	default:
	}
	select {
	case e.inbox <- ev:
		return nil
	case <-e.stop:
		return ErrStopped
	}
}

// Do runs fn on the loop and waits for it.
func (e *Editor) Do(ctx context.Context, fn func(b *bus.Bus)) error {
	c := call{fn: fn, done: make(chan struct{})}
	if err := e.Post(c); err != nil {
		return err
	}
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-e.stop:
		return ErrStopped
	}
}

// Run is the update loop. Controllers are torn down on the loop when it exits.
func (e *Editor) Run(ctx context.Context) error {
	defer e.closeControllers()
	for {
		select {
		case <-ctx.Done():
			e.Stop()
			return ctx.Err()
		case <-e.stop:
			return nil
		case ev := <-e.inbox:
			e.dispatch(ev)
		}
	}
}

func (e *Editor) dispatch(ev any) {
	if c, ok := ev.(call); ok {
		c.fn(e.bus)
		close(c.done)
		return
	}
	e.bus.Publish(ev)
}

func (e *Editor) Stop() {
	e.stopOnce.Do(func() { close(e.stop) })
}

func (e *Editor) closeControllers() {
	for i := len(e.controllers) - 1; i >= 0; i-- {
		e.controllers[i].Close()
	}
	e.controllers = nil
}
