package environment

import (
	"context"
	"log"
	"path/filepath"
	"strings"

	"mapforge.dev/internal/bus"
	"mapforge.dev/internal/dmm"
	"mapforge.dev/internal/env"
	"mapforge.dev/internal/event"
)

// Loader produces an environment index. It runs off the editor loop.
type Loader interface {
	Load(ctx context.Context, path string) (*env.Environment, error)
}

// FileLoader reads parser output directly for .json paths and runs the parser otherwise.
type FileLoader struct {
	Parser env.Parser
}

func (l FileLoader) Load(ctx context.Context, path string) (*env.Environment, error) {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return env.LoadFile(path, path)
	}
	return l.Parser.Parse(ctx, path)
}

// Controller loads environments in the background and swaps the active one on the loop.
// A failed load leaves the previous environment untouched.
type Controller struct {
	bus    *bus.Bus
	log    *log.Logger
	group  *bus.Group
	loader Loader
	post   func(ev any)

	ctx    context.Context
	cancel context.CancelFunc

	env     *env.Environment
	holder  *dmm.Holder
	loading string
}

// New wires the controller. post must hand events back to the editor loop.
func New(b *bus.Bus, logger *log.Logger, loader Loader, post func(ev any)) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		bus:    b,
		log:    logger,
		group:  bus.NewGroup(b),
		loader: loader,
		post:   post,
		ctx:    ctx,
		cancel: cancel,
	}
	c.group.Add(bus.Subscribe(b, c.handleOpen))
	c.group.Add(bus.Subscribe(b, c.handleParsed))
	c.group.Add(bus.Subscribe(b, c.handleClose))
	c.group.Add(bus.MustProvide(b, c.handleFetchEnvironment))
	c.group.Add(bus.MustProvide(b, c.handleFetchHolder))
	return c
}

func (c *Controller) Close() {
	c.cancel()
	c.group.Close()
}

func (c *Controller) handleOpen(ev event.OpenEnvironment) {
	if c.loading != "" {
		c.logf("environment %q requested while %q is loading", ev.Path, c.loading)
		return
	}
	c.loading = ev.Path
	c.bus.Publish(event.EnvironmentLoading{Path: ev.Path})

	ctx, loader, post := c.ctx, c.loader, c.post
	go func(path string) {
		e, err := loader.Load(ctx, path)
		post(event.EnvironmentParsed{Path: path, Env: e, Err: err})
	}(ev.Path)
}

func (c *Controller) handleParsed(ev event.EnvironmentParsed) {
	c.loading = ""
	if ev.Err != nil {
		c.logf("environment %q: %v", ev.Path, ev.Err)
		c.bus.Publish(event.EnvironmentLoaded{Path: ev.Path, Err: ev.Err})
		return
	}
	if c.env != nil {
		c.env, c.holder = nil, nil
		c.bus.Publish(event.EnvironmentReset{})
	}
	c.env = ev.Env
	c.holder = dmm.NewHolder(ev.Env)
	c.bus.Publish(event.EnvironmentLoaded{Path: ev.Path})
	c.bus.Publish(event.EnvironmentChanged{Env: c.env, Holder: c.holder})
}

func (c *Controller) handleClose(event.CloseEnvironment) {
	if c.env == nil {
		return
	}
	c.env, c.holder = nil, nil
	c.bus.Publish(event.EnvironmentReset{})
}

func (c *Controller) handleFetchEnvironment(q event.FetchOpenedEnvironment) {
	if c.env != nil {
		q.Reply(c.env)
	}
}

func (c *Controller) handleFetchHolder(q event.FetchTileItemHolder) {
	if c.holder != nil {
		q.Reply(c.holder)
	}
}

func (c *Controller) logf(format string, args ...any) {
	if c.log != nil {
		c.log.Printf(format, args...)
	}
}
