package dmm

import (
	"errors"
	"fmt"
)

// FileExt is the extension of map files on disk.
const FileExt = ".dmm.zst"

var (
	ErrOutOfBounds = errors.New("dmm: tile out of bounds")
	ErrBadSize     = errors.New("dmm: map size must be at least 1x1x1")
)

type MapPos struct {
	X, Y int
}

// MapArea is an inclusive rectangle on one z-level.
type MapArea struct {
	X1, Y1, X2, Y2 int
}

// NewArea normalizes the corners so X1<=X2 and Y1<=Y2.
func NewArea(x1, y1, x2, y2 int) MapArea {
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	if y1 > y2 {
		y1, y2 = y2, y1
	}
	return MapArea{X1: x1, Y1: y1, X2: x2, Y2: y2}
}

func (a MapArea) Contains(x, y int) bool {
	return x >= a.X1 && x <= a.X2 && y >= a.Y1 && y <= a.Y2
}

func (a MapArea) IsZero() bool { return a == MapArea{} }

type MapSize struct {
	MaxX, MaxY, MaxZ int
}

func (s MapSize) valid() bool { return s.MaxX >= 1 && s.MaxY >= 1 && s.MaxZ >= 1 }

// ItemPos pairs an instance with the position it was found at on the active z-level.
type ItemPos struct {
	Item *TileItem
	Pos  MapPos
}

// Map is a 1-based grid of tiles. Only the map modifier and replayed actions mutate it.
type Map struct {
	ID      int
	Name    string
	Path    string
	ZActive int

	maxX, maxY, maxZ int
	tiles            [][][]*Tile // [z][y][x], 0-based
	holder           *Holder
}

// New creates a map whose tiles each hold the world's default turf and area.
func New(h *Holder, name string, size MapSize) (*Map, error) {
	if !size.valid() {
		return nil, fmt.Errorf("%w: %+v", ErrBadSize, size)
	}
	m := &Map{Name: name, ZActive: 1, holder: h}
	m.resize(size)
	return m, nil
}

func (m *Map) Holder() *Holder { return m.holder }

func (m *Map) MaxX() int { return m.maxX }
func (m *Map) MaxY() int { return m.maxY }
func (m *Map) MaxZ() int { return m.maxZ }

func (m *Map) Size() MapSize { return MapSize{MaxX: m.maxX, MaxY: m.maxY, MaxZ: m.maxZ} }

func (m *Map) InBounds(x, y, z int) bool {
	return x >= 1 && x <= m.maxX && y >= 1 && y <= m.maxY && z >= 1 && z <= m.maxZ
}

func (m *Map) Tile(x, y, z int) (*Tile, error) {
	if !m.InBounds(x, y, z) {
		return nil, fmt.Errorf("%w: (%d,%d,%d) outside %dx%dx%d", ErrOutOfBounds, x, y, z, m.maxX, m.maxY, m.maxZ)
	}
	return m.tiles[z-1][y-1][x-1], nil
}

// MustTile is Tile for call sites that already clipped their ranges.
func (m *Map) MustTile(x, y, z int) *Tile {
	t, err := m.Tile(x, y, z)
	if err != nil {
		panic(err)
	}
	return t
}

// Clip intersects a with the map plane. ok is false when nothing remains.
func (m *Map) Clip(a MapArea) (MapArea, bool) {
	a = NewArea(a.X1, a.Y1, a.X2, a.Y2)
	a.X1, a.Y1 = max(a.X1, 1), max(a.Y1, 1)
	a.X2, a.Y2 = min(a.X2, m.maxX), min(a.Y2, m.maxY)
	return a, a.X1 <= a.X2 && a.Y1 <= a.Y2
}

// SetMapSize truncates or extends the grid. Tiles outside the new bounds are dropped; new
// tiles get the default turf and area.
func (m *Map) SetMapSize(maxZ, maxY, maxX int) error {
	size := MapSize{MaxX: maxX, MaxY: maxY, MaxZ: maxZ}
	if !size.valid() {
		return fmt.Errorf("%w: %+v", ErrBadSize, size)
	}
	m.resize(size)
	return nil
}

func (m *Map) resize(size MapSize) {
	var def []*TileItem
	if m.holder != nil {
		def = m.holder.DefaultStack()
	}
	tiles := make([][][]*Tile, size.MaxZ)
	for z := range tiles {
		tiles[z] = make([][]*Tile, size.MaxY)
		for y := range tiles[z] {
			row := make([]*Tile, size.MaxX)
			for x := range row {
				if z < m.maxZ && y < m.maxY && x < m.maxX {
					row[x] = m.tiles[z][y][x]
					continue
				}
				row[x] = newTile(x+1, y+1, z+1, def)
			}
			tiles[z][y] = row
		}
	}
	m.tiles = tiles
	m.maxX, m.maxY, m.maxZ = size.MaxX, size.MaxY, size.MaxZ
	if m.ZActive > m.maxZ {
		m.ZActive = m.maxZ
	}
	if m.ZActive < 1 {
		m.ZActive = 1
	}
}

// TilesOutside returns clones of every tile that a resize to size would drop.
func (m *Map) TilesOutside(size MapSize) []*Tile {
	var out []*Tile
	for z := 1; z <= m.maxZ; z++ {
		for y := 1; y <= m.maxY; y++ {
			for x := 1; x <= m.maxX; x++ {
				if x <= size.MaxX && y <= size.MaxY && z <= size.MaxZ {
					continue
				}
				out = append(out, m.tiles[z-1][y-1][x-1].Clone())
			}
		}
	}
	return out
}

// Each visits the tiles of level z row by row.
func (m *Map) Each(z int, fn func(t *Tile)) {
	if z < 1 || z > m.maxZ {
		return
	}
	for _, row := range m.tiles[z-1] {
		for _, t := range row {
			fn(t)
		}
	}
}
