package layers

import (
	"mapforge.dev/internal/bus"
	"mapforge.dev/internal/env"
	"mapforge.dev/internal/event"
)

// Controller owns the set of type ids hidden from bulk operations.
type Controller struct {
	bus   *bus.Bus
	group *bus.Group

	env    *env.Environment
	hidden env.IDSet
}

func New(b *bus.Bus) *Controller {
	c := &Controller{bus: b, group: bus.NewGroup(b), hidden: env.IDSet{}}
	c.group.Add(bus.Subscribe(b, c.handleEnvironmentChanged))
	c.group.Add(bus.Subscribe(b, c.handleEnvironmentReset))
	c.group.Add(bus.Subscribe(b, c.handleFilterByID))
	c.group.Add(bus.Subscribe(b, c.handleShowByType))
	c.group.Add(bus.Subscribe(b, c.handleHideByType))
	c.group.Add(bus.MustProvide(b, c.handleFetch))
	return c
}

func (c *Controller) Close() { c.group.Close() }

func (c *Controller) refreshed() {
	c.bus.Publish(event.LayersFilterRefreshed{IDs: c.hidden.Clone()})
}

func (c *Controller) handleEnvironmentChanged(ev event.EnvironmentChanged) {
	c.env = ev.Env
	c.hidden = env.IDSet{}
	c.refreshed()
}

func (c *Controller) handleEnvironmentReset(event.EnvironmentReset) {
	c.env = nil
	c.hidden = env.IDSet{}
	c.refreshed()
}

func (c *Controller) handleFilterByID(ev event.FilterLayersByID) {
	c.hidden = ev.IDs.Clone()
	c.refreshed()
}

func (c *Controller) handleShowByType(ev event.ShowLayersByType) {
	if c.env == nil {
		return
	}
	for id := range c.env.Subtree(ev.Type) {
		delete(c.hidden, id)
	}
	c.refreshed()
}

func (c *Controller) handleHideByType(ev event.HideLayersByType) {
	if c.env == nil {
		return
	}
	for id := range c.env.Subtree(ev.Type) {
		c.hidden[id] = struct{}{}
	}
	c.refreshed()
}

func (c *Controller) handleFetch(q event.FetchFilteredLayers) {
	q.Reply(c.hidden.Clone())
}
