package dmm

import "mapforge.dev/internal/env"

// Tile is one cell. Items are ordered turf first, then movables in insertion order, then area.
type Tile struct {
	X, Y, Z int
	items   []*TileItem
}

func newTile(x, y, z int, items []*TileItem) *Tile {
	t := &Tile{X: x, Y: y, Z: z}
	for _, it := range items {
		t.Add(it)
	}
	return t
}

// Items returns a copy of the ordered item list.
func (t *Tile) Items() []*TileItem {
	out := make([]*TileItem, len(t.items))
	copy(out, t.items)
	return out
}

func (t *Tile) Len() int { return len(t.items) }

// ItemIDs is the identity list used for change detection.
func (t *Tile) ItemIDs() []uint64 {
	out := make([]uint64, len(t.items))
	for i, it := range t.items {
		out[i] = it.ID
	}
	return out
}

// SetItems replaces the whole list. The caller passes a list that already follows the layer order.
func (t *Tile) SetItems(items []*TileItem) {
	t.items = make([]*TileItem, len(items))
	copy(t.items, items)
}

func (t *Tile) Clone() *Tile {
	c := &Tile{X: t.X, Y: t.Y, Z: t.Z}
	c.SetItems(t.items)
	return c
}

func (t *Tile) hasTurf() bool {
	return len(t.items) > 0 && t.items[0].layer == LayerTurf
}

func (t *Tile) hasArea() bool {
	return len(t.items) > 0 && t.items[len(t.items)-1].layer == LayerArea
}

// Add places item under the layer rules: a turf or area replaces the existing one,
// movables go on top of the other movables.
func (t *Tile) Add(item *TileItem) {
	switch item.layer {
	case LayerTurf:
		if t.hasTurf() {
			t.items[0] = item
			return
		}
		t.items = append([]*TileItem{item}, t.items...)
	case LayerArea:
		if t.hasArea() {
			t.items[len(t.items)-1] = item
			return
		}
		t.items = append(t.items, item)
	default:
		if t.hasArea() {
			n := len(t.items)
			t.items = append(t.items, nil)
			t.items[n] = t.items[n-1]
			t.items[n-1] = item
			return
		}
		t.items = append(t.items, item)
	}
}

func (t *Tile) deleteWhere(match func(*TileItem) bool) int {
	kept := t.items[:0:0]
	removed := 0
	for _, it := range t.items {
		if match(it) {
			removed++
			continue
		}
		kept = append(kept, it)
	}
	if removed > 0 {
		t.items = kept
	}
	return removed
}

// Delete removes every occurrence of item (by identity).
func (t *Tile) Delete(item *TileItem) int {
	return t.DeleteID(item.ID)
}

func (t *Tile) DeleteID(id uint64) int {
	return t.deleteWhere(func(it *TileItem) bool { return it.ID == id })
}

func (t *Tile) DeleteType(typ string) int {
	return t.deleteWhere(func(it *TileItem) bool { return it.Type == typ })
}

func (t *Tile) replaceWhere(match func(*TileItem) bool, repl *TileItem) int {
	n := 0
	if repl.IsMovable() {
		// movable for movable keeps the stacking slot
		for i, it := range t.items {
			if it.IsMovable() && match(it) {
				t.items[i] = repl
				n++
			}
		}
	}
	if removed := t.deleteWhere(match); removed > 0 {
		n += removed
		t.Add(repl)
	}
	return n
}

// ReplaceType swaps every item of typ for repl. It returns the number of matches.
func (t *Tile) ReplaceType(typ string, repl *TileItem) int {
	if typ == repl.Type {
		return t.replaceWhere(func(it *TileItem) bool { return it.Type == typ && it.ID != repl.ID }, repl)
	}
	return t.replaceWhere(func(it *TileItem) bool { return it.Type == typ }, repl)
}

func (t *Tile) ReplaceID(id uint64, repl *TileItem) int {
	if id == repl.ID {
		return 0
	}
	return t.replaceWhere(func(it *TileItem) bool { return it.ID == id }, repl)
}

// Filtered returns the items whose type id is not hidden.
func (t *Tile) Filtered(hidden env.IDSet) []*TileItem {
	out := make([]*TileItem, 0, len(t.items))
	for _, it := range t.items {
		if hidden.Has(it.TypeID) {
			continue
		}
		out = append(out, it)
	}
	return out
}

// SameItems reports whether two identity lists are equal.
func SameItems(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
