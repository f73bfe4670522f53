package instance

import (
	"mapforge.dev/internal/bus"
	"mapforge.dev/internal/dmm"
	"mapforge.dev/internal/event"
)

// Controller answers instance searches on the active z-level of the selected map.
type Controller struct {
	bus   *bus.Bus
	group *bus.Group
}

func New(b *bus.Bus) *Controller {
	c := &Controller{bus: b, group: bus.NewGroup(b)}
	c.group.Add(bus.MustProvide(b, c.handleFindByType))
	c.group.Add(bus.MustProvide(b, c.handleFindByID))
	return c
}

func (c *Controller) Close() { c.group.Close() }

func (c *Controller) find(area dmm.MapArea, match func(*dmm.TileItem) bool) []dmm.ItemPos {
	m, ok := bus.Ask(c.bus, func(r func(*dmm.Map)) any { return event.FetchSelectedMap{Reply: r} })
	if !ok {
		return nil
	}
	if area.IsZero() {
		area = dmm.MapArea{X1: 1, Y1: 1, X2: m.MaxX(), Y2: m.MaxY()}
	}
	area, ok = m.Clip(area)
	if !ok {
		return nil
	}
	var out []dmm.ItemPos
	for x := area.X1; x <= area.X2; x++ {
		for y := area.Y1; y <= area.Y2; y++ {
			for _, it := range m.MustTile(x, y, m.ZActive).Items() {
				if match(it) {
					out = append(out, dmm.ItemPos{Item: it, Pos: dmm.MapPos{X: x, Y: y}})
				}
			}
		}
	}
	return out
}

func (c *Controller) handleFindByType(q event.FindInstancePositionsByType) {
	q.Reply(c.find(q.Area, func(it *dmm.TileItem) bool { return it.Type == q.Type }))
}

func (c *Controller) handleFindByID(q event.FindInstancePositionsByID) {
	q.Reply(c.find(q.Area, func(it *dmm.TileItem) bool { return it.ID == q.ID }))
}
