package tools

import (
	"mapforge.dev/internal/bus"
	"mapforge.dev/internal/dmm"
	"mapforge.dev/internal/event"
)

// Controller holds the active selection and the tile item the user paints with.
type Controller struct {
	bus   *bus.Bus
	group *bus.Group

	area dmm.MapArea
	item *dmm.TileItem
}

func New(b *bus.Bus) *Controller {
	c := &Controller{bus: b, group: bus.NewGroup(b)}
	c.group.Add(bus.Subscribe(b, c.handleSelectActiveArea))
	c.group.Add(bus.Subscribe(b, c.handleResetTool))
	c.group.Add(bus.Subscribe(b, c.handleChangeActiveTileItem))
	c.group.Add(bus.Subscribe(b, c.handleSelectedMapChanged))
	c.group.Add(bus.Subscribe(b, c.handleMapSizeChanged))
	c.group.Add(bus.Subscribe(b, c.handleEnvironmentReset))
	c.group.Add(bus.MustProvide(b, c.handleFetchActiveArea))
	c.group.Add(bus.MustProvide(b, c.handleFetchActiveTileItem))
	return c
}

func (c *Controller) Close() { c.group.Close() }

func (c *Controller) setArea(a dmm.MapArea) {
	if a == c.area {
		return
	}
	c.area = a
	c.bus.Publish(event.ActiveAreaChanged{Area: a})
}

func (c *Controller) handleSelectActiveArea(ev event.SelectActiveArea) {
	a := ev.Area
	c.setArea(dmm.NewArea(a.X1, a.Y1, a.X2, a.Y2))
}

func (c *Controller) handleResetTool(event.ResetTool) {
	c.setArea(dmm.MapArea{})
}

func (c *Controller) handleChangeActiveTileItem(ev event.ChangeActiveTileItem) {
	c.item = ev.Item
	c.bus.Publish(event.ActiveTileItemChanged{Item: ev.Item})
}

func (c *Controller) handleSelectedMapChanged(event.SelectedMapChanged) {
	c.setArea(dmm.MapArea{})
}

// handleMapSizeChanged keeps the selection inside the new bounds.
func (c *Controller) handleMapSizeChanged(ev event.SelectedMapMapSizeChanged) {
	if c.area.IsZero() {
		return
	}
	a := c.area
	a.X2, a.Y2 = min(a.X2, ev.Size.MaxX), min(a.Y2, ev.Size.MaxY)
	if a.X1 > a.X2 || a.Y1 > a.Y2 {
		a = dmm.MapArea{}
	}
	c.setArea(a)
}

func (c *Controller) handleEnvironmentReset(event.EnvironmentReset) {
	c.setArea(dmm.MapArea{})
	if c.item != nil {
		c.item = nil
		c.bus.Publish(event.ActiveTileItemChanged{})
	}
}

func (c *Controller) handleFetchActiveArea(q event.FetchActiveArea) { q.Reply(c.area) }

func (c *Controller) handleFetchActiveTileItem(q event.FetchActiveTileItem) { q.Reply(c.item) }
