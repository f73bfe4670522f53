// Package action holds the undoable commands that mutate maps and the linear history they
// are recorded in. Commands address tiles by coordinate, so a command stays valid across a
// resize that reallocates the grid.
package action

import (
	"errors"

	"mapforge.dev/internal/dmm"
)

var ErrEmptyAction = errors.New("action: empty action")

type Undoable interface {
	Apply()
	Revert()
}

// MultiAction applies its members in order and reverts them in reverse order.
type MultiAction []Undoable

func (m MultiAction) Apply() {
	for _, a := range m {
		a.Apply()
	}
}

func (m MultiAction) Revert() {
	for i := len(m) - 1; i >= 0; i-- {
		m[i].Revert()
	}
}

func (m MultiAction) Empty() bool { return len(m) == 0 }

type Pos struct {
	X, Y, Z int
}

func PosOf(t *dmm.Tile) Pos { return Pos{X: t.X, Y: t.Y, Z: t.Z} }

// ReplaceTile swaps the whole item list of one tile.
type ReplaceTile struct {
	Map    *dmm.Map
	Pos    Pos
	Before []*dmm.TileItem
	After  []*dmm.TileItem
}

func NewReplaceTile(m *dmm.Map, t *dmm.Tile, before, after []*dmm.TileItem) *ReplaceTile {
	return &ReplaceTile{Map: m, Pos: PosOf(t), Before: before, After: after}
}

func (r *ReplaceTile) Apply()  { r.set(r.After) }
func (r *ReplaceTile) Revert() { r.set(r.Before) }

func (r *ReplaceTile) set(items []*dmm.TileItem) {
	r.Map.MustTile(r.Pos.X, r.Pos.Y, r.Pos.Z).SetItems(items)
}

// Resize changes map bounds. Dropped holds copies of the tiles the shrink discards, taken
// before the first Apply. ZActive is the level that was active before the resize.
type Resize struct {
	Map     *dmm.Map
	From    dmm.MapSize
	To      dmm.MapSize
	ZActive int
	Dropped []*dmm.Tile
}

func NewResize(m *dmm.Map, to dmm.MapSize) *Resize {
	return &Resize{Map: m, From: m.Size(), To: to, ZActive: m.ZActive, Dropped: m.TilesOutside(to)}
}

func (r *Resize) Apply() {
	_ = r.Map.SetMapSize(r.To.MaxZ, r.To.MaxY, r.To.MaxX)
}

func (r *Resize) Revert() {
	_ = r.Map.SetMapSize(r.From.MaxZ, r.From.MaxY, r.From.MaxX)
	for _, t := range r.Dropped {
		r.Map.MustTile(t.X, t.Y, t.Z).SetItems(t.Items())
	}
	r.Map.ZActive = r.ZActive
}

// ClampsZ reports whether applying r moves the active level.
func (r *Resize) ClampsZ() bool { return r.ZActive > r.To.MaxZ }

// FindResize returns the resize a, or a batch containing it, carries.
func FindResize(a Undoable) (*Resize, bool) {
	switch v := a.(type) {
	case *Resize:
		return v, true
	case MultiAction:
		for _, m := range v {
			if r, ok := FindResize(m); ok {
				return r, true
			}
		}
	}
	return nil, false
}

// TileChange is the journal form of one tile replacement.
type TileChange struct {
	Pos    Pos      `json:"pos"`
	Before []string `json:"before"`
	After  []string `json:"after"`
}

func typeNames(items []*dmm.TileItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Type
	}
	return out
}

// Changes flattens the tile replacements an action carries.
func Changes(a Undoable) []TileChange {
	switch v := a.(type) {
	case MultiAction:
		var out []TileChange
		for _, m := range v {
			out = append(out, Changes(m)...)
		}
		return out
	case *ReplaceTile:
		return []TileChange{{Pos: v.Pos, Before: typeNames(v.Before), After: typeNames(v.After)}}
	}
	return nil
}
