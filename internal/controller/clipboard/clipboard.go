// Package clipboard keeps one copied block of tile stacks per editor session.
package clipboard

import (
	"mapforge.dev/internal/bus"
	"mapforge.dev/internal/dmm"
	"mapforge.dev/internal/env"
	"mapforge.dev/internal/event"
)

// Controller copies the visible stacks of the active area and pastes them through the map
// modifier. Copied instances belong to the current holder, so the block is dropped whenever
// the environment changes.
type Controller struct {
	bus   *bus.Bus
	group *bus.Group

	// items is indexed [dx][dy] from the copied area's lower corner.
	items [][][]*dmm.TileItem
}

func New(b *bus.Bus) *Controller {
	c := &Controller{bus: b, group: bus.NewGroup(b)}
	c.group.Add(bus.Subscribe(b, c.handleCopy))
	c.group.Add(bus.Subscribe(b, c.handleCut))
	c.group.Add(bus.Subscribe(b, c.handlePaste))
	c.group.Add(bus.Subscribe(b, c.handleEnvironmentChanged))
	c.group.Add(bus.Subscribe(b, c.handleEnvironmentReset))
	return c
}

func (c *Controller) Close() { c.group.Close() }

func (c *Controller) copy() bool {
	m, ok := bus.Ask(c.bus, func(r func(*dmm.Map)) any { return event.FetchSelectedMap{Reply: r} })
	if !ok {
		return false
	}
	area, _ := bus.Ask(c.bus, func(r func(dmm.MapArea)) any { return event.FetchActiveArea{Reply: r} })
	area, ok = m.Clip(area)
	if !ok {
		return false
	}
	hidden, _ := bus.Ask(c.bus, func(r func(env.IDSet)) any { return event.FetchFilteredLayers{Reply: r} })

	items := make([][][]*dmm.TileItem, 0, area.X2-area.X1+1)
	for x := area.X1; x <= area.X2; x++ {
		col := make([][]*dmm.TileItem, 0, area.Y2-area.Y1+1)
		for y := area.Y1; y <= area.Y2; y++ {
			col = append(col, m.MustTile(x, y, m.ZActive).Filtered(hidden))
		}
		items = append(items, col)
	}
	c.items = items
	c.bus.Publish(event.ClipboardChanged{Width: len(items), Height: area.Y2 - area.Y1 + 1})
	return true
}

func (c *Controller) handleCopy(event.CopyActiveArea) { c.copy() }

func (c *Controller) handleCut(event.CutActiveArea) {
	if c.copy() {
		c.bus.Publish(event.DeleteTileItemsInActiveArea{})
	}
}

func (c *Controller) handlePaste(event.PasteClipboard) {
	if len(c.items) == 0 {
		return
	}
	c.bus.Publish(event.FillSelectedMapPositionWithTileItems{Items: c.items})
}

func (c *Controller) clear() {
	if c.items == nil {
		return
	}
	c.items = nil
	c.bus.Publish(event.ClipboardChanged{})
}

func (c *Controller) handleEnvironmentChanged(event.EnvironmentChanged) { c.clear() }

func (c *Controller) handleEnvironmentReset(event.EnvironmentReset) { c.clear() }
