// Package modifier turns bulk editing intents into one undoable batch per intent.
//
// Every operation works on clones of the affected tiles, compares the identity lists of the
// clone and the live tile, and records one tile replacement per tile that actually changed.
// The live map is only touched when the action history applies the batch.
package modifier

import (
	"log"

	"mapforge.dev/internal/action"
	"mapforge.dev/internal/bus"
	"mapforge.dev/internal/dmm"
	"mapforge.dev/internal/env"
	"mapforge.dev/internal/event"
)

type Controller struct {
	bus   *bus.Bus
	log   *log.Logger
	group *bus.Group

	mousePos   dmm.MapPos
	mouseKnown bool
}

func New(b *bus.Bus, logger *log.Logger) *Controller {
	c := &Controller{bus: b, log: logger, group: bus.NewGroup(b)}
	c.group.Add(bus.Subscribe(b, c.handleMousePos))
	c.group.Add(bus.Subscribe(b, c.handleDeleteInActiveArea))
	c.group.Add(bus.Subscribe(b, c.handleFillSelectedMapPosition))
	c.group.Add(bus.Subscribe(b, c.handleFillActiveArea))
	c.group.Add(bus.Subscribe(b, c.handleReplaceWithType))
	c.group.Add(bus.Subscribe(b, c.handleReplaceWithID))
	c.group.Add(bus.Subscribe(b, c.handleDeleteWithType))
	c.group.Add(bus.Subscribe(b, c.handleDeleteWithID))
	c.group.Add(bus.Subscribe(b, c.handleChangeMapSize))
	return c
}

func (c *Controller) Close() { c.group.Close() }

func (c *Controller) selectedMap() (*dmm.Map, bool) {
	return bus.Ask(c.bus, func(r func(*dmm.Map)) any { return event.FetchSelectedMap{Reply: r} })
}

func (c *Controller) filteredLayers() env.IDSet {
	ids, _ := bus.Ask(c.bus, func(r func(env.IDSet)) any { return event.FetchFilteredLayers{Reply: r} })
	return ids
}

func (c *Controller) activeArea() dmm.MapArea {
	a, _ := bus.Ask(c.bus, func(r func(dmm.MapArea)) any { return event.FetchActiveArea{Reply: r} })
	return a
}

// batch collects working clones of the tiles on the active z-level of one map.
type batch struct {
	m     *dmm.Map
	live  map[action.Pos]*dmm.Tile
	work  map[action.Pos]*dmm.Tile
	order []action.Pos
}

func newBatch(m *dmm.Map) *batch {
	return &batch{m: m, live: make(map[action.Pos]*dmm.Tile), work: make(map[action.Pos]*dmm.Tile)}
}

// tile returns the working clone at x,y. ok is false outside the map.
func (b *batch) tile(x, y int) (*dmm.Tile, bool) {
	p := action.Pos{X: x, Y: y, Z: b.m.ZActive}
	if w, ok := b.work[p]; ok {
		return w, true
	}
	t, err := b.m.Tile(x, y, p.Z)
	if err != nil {
		return nil, false
	}
	w := t.Clone()
	b.live[p] = t
	b.work[p] = w
	b.order = append(b.order, p)
	return w, true
}

func (b *batch) actions() action.MultiAction {
	var out action.MultiAction
	for _, p := range b.order {
		live, work := b.live[p], b.work[p]
		if dmm.SameItems(live.ItemIDs(), work.ItemIDs()) {
			continue
		}
		out = append(out, action.NewReplaceTile(b.m, live, live.Items(), work.Items()))
	}
	return out
}

// commit submits the batch when it changed anything. sel, when set, becomes the active area.
func (c *Controller) commit(b *batch, sel *dmm.MapArea) bool {
	acts := b.actions()
	if len(acts) == 0 {
		return false
	}
	c.bus.Publish(event.AddAction{Action: acts})
	if sel != nil {
		c.bus.Publish(event.SelectActiveArea{Area: *sel})
	}
	c.bus.Publish(event.RefreshFrame{})
	return true
}

func (c *Controller) handleMousePos(ev event.MapMousePosChanged) {
	c.mousePos = ev.Pos
	c.mouseKnown = true
}

func (c *Controller) handleDeleteInActiveArea(event.DeleteTileItemsInActiveArea) {
	m, ok := c.selectedMap()
	if !ok {
		return
	}
	hidden := c.filteredLayers()
	area, ok := m.Clip(c.activeArea())
	if !ok {
		return
	}
	b := newBatch(m)
	for x := area.X1; x <= area.X2; x++ {
		for y := area.Y1; y <= area.Y2; y++ {
			w, _ := b.tile(x, y)
			for _, it := range w.Filtered(hidden) {
				w.Delete(it)
			}
		}
	}
	c.commit(b, nil)
}

func (c *Controller) handleFillSelectedMapPosition(ev event.FillSelectedMapPositionWithTileItems) {
	m, ok := c.selectedMap()
	if !ok || !c.mouseKnown {
		return
	}
	hidden := c.filteredLayers()
	origin := c.mousePos
	x2, y2 := origin.X, origin.Y

	b := newBatch(m)
	for dx, col := range ev.Items {
		for dy, stack := range col {
			x, y := origin.X+dx, origin.Y+dy
			w, ok := b.tile(x, y)
			if !ok {
				continue
			}
			x2, y2 = max(x2, x), max(y2, y)
			for _, it := range w.Filtered(hidden) {
				w.Delete(it)
			}
			for _, it := range stack {
				if placeable(w, it, hidden) {
					w.Add(it)
				}
			}
		}
	}
	sel := dmm.NewArea(origin.X, origin.Y, x2, y2)
	c.commit(b, &sel)
}

func (c *Controller) handleFillActiveArea(ev event.FillActiveAreaWithTileItem) {
	m, ok := c.selectedMap()
	if !ok {
		return
	}
	item := ev.Item
	if item == nil {
		item, _ = bus.Ask(c.bus, func(r func(*dmm.TileItem)) any { return event.FetchActiveTileItem{Reply: r} })
	}
	if item == nil {
		return
	}
	area, ok := m.Clip(c.activeArea())
	if !ok {
		return
	}
	hidden := c.filteredLayers()
	b := newBatch(m)
	for x := area.X1; x <= area.X2; x++ {
		for y := area.Y1; y <= area.Y2; y++ {
			w, _ := b.tile(x, y)
			if placeable(w, item, hidden) {
				w.Add(item)
			}
		}
	}
	c.commit(b, &area)
}

// placeable reports whether item may go onto w under the layer filter. A hidden item is
// never placed, and a turf or area never replaces a hidden one.
func placeable(w *dmm.Tile, item *dmm.TileItem, hidden env.IDSet) bool {
	if item == nil || hidden.Has(item.TypeID) {
		return false
	}
	if item.IsMovable() {
		return true
	}
	for _, it := range w.Items() {
		if it.Layer() == item.Layer() && hidden.Has(it.TypeID) {
			return false
		}
	}
	return true
}

func (c *Controller) replaceInPositions(typ string, positions []dmm.ItemPos, apply func(w *dmm.Tile, found, repl *dmm.TileItem)) {
	m, ok := c.selectedMap()
	if !ok {
		return
	}
	// one replacement instance shared by every tile
	repl, err := m.Holder().Pure(typ)
	if err != nil {
		c.logf("replace: %v", err)
		return
	}
	b := newBatch(m)
	for _, p := range positions {
		if p.Item == nil {
			continue
		}
		if w, ok := b.tile(p.Pos.X, p.Pos.Y); ok {
			apply(w, p.Item, repl)
		}
	}
	c.commit(b, nil)
}

func (c *Controller) handleReplaceWithType(ev event.ReplaceTileItemsWithTypeInPositions) {
	c.replaceInPositions(ev.Replacement, ev.Positions, func(w *dmm.Tile, found, repl *dmm.TileItem) {
		w.ReplaceType(found.Type, repl)
	})
}

func (c *Controller) handleReplaceWithID(ev event.ReplaceTileItemsWithIDInPositions) {
	c.replaceInPositions(ev.Replacement, ev.Positions, func(w *dmm.Tile, found, repl *dmm.TileItem) {
		w.ReplaceID(found.ID, repl)
	})
}

func (c *Controller) deleteInPositions(positions []dmm.ItemPos, apply func(w *dmm.Tile, found *dmm.TileItem)) {
	m, ok := c.selectedMap()
	if !ok {
		return
	}
	b := newBatch(m)
	for _, p := range positions {
		if p.Item == nil {
			continue
		}
		if w, ok := b.tile(p.Pos.X, p.Pos.Y); ok {
			apply(w, p.Item)
		}
	}
	c.commit(b, nil)
}

func (c *Controller) handleDeleteWithType(ev event.DeleteTileItemsWithTypeInPositions) {
	c.deleteInPositions(ev.Positions, func(w *dmm.Tile, found *dmm.TileItem) { w.DeleteType(found.Type) })
}

func (c *Controller) handleDeleteWithID(ev event.DeleteTileItemsWithIDInPositions) {
	c.deleteInPositions(ev.Positions, func(w *dmm.Tile, found *dmm.TileItem) { w.DeleteID(found.ID) })
}

func (c *Controller) handleChangeMapSize(ev event.ChangeMapSize) {
	m, ok := c.selectedMap()
	if !ok {
		return
	}
	s := ev.Size
	if s.MaxX < 1 || s.MaxY < 1 || s.MaxZ < 1 {
		c.logf("change map size: %v %+v", dmm.ErrBadSize, s)
		return
	}
	if s == m.Size() {
		return
	}
	c.bus.Publish(event.AddAction{Action: action.NewResize(m, s)})
	c.bus.Publish(event.SelectedMapMapSizeChanged{Size: s})
	c.bus.Publish(event.RefreshFrame{})
}

func (c *Controller) logf(format string, args ...any) {
	if c.log != nil {
		c.log.Printf(format, args...)
	}
}
