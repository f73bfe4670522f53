package dmm

import (
	"fmt"
	"sort"
	"strings"

	"mapforge.dev/internal/encoding"
	"mapforge.dev/internal/env"
)

// ItemRecord is a tile item without its session id.
type ItemRecord struct {
	Type string
	Vars map[string]env.Value
}

// Snapshot is the storage form of a map: identical stacks share one palette key and every
// z-level is a run-length encoded grid of keys in row-major order.
type Snapshot struct {
	Name    string
	Size    MapSize
	Palette [][]ItemRecord
	Levels  [][]byte
}

// stackKey identifies a stack by content. Every field is quoted so that no two distinct
// stacks share a key.
func stackKey(items []*TileItem) string {
	var b strings.Builder
	for _, it := range items {
		fmt.Fprintf(&b, "%q", it.Type)
		if len(it.Vars) > 0 {
			names := make([]string, 0, len(it.Vars))
			for k := range it.Vars {
				names = append(names, k)
			}
			sort.Strings(names)
			b.WriteByte('{')
			for _, k := range names {
				v := it.Vars[k]
				fmt.Fprintf(&b, "%q:%d:%q;", k, v.Kind, v.Raw)
			}
			b.WriteByte('}')
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func (m *Map) ExportSnapshot() Snapshot {
	s := Snapshot{Name: m.Name, Size: m.Size()}
	keys := make(map[string]uint32)
	for z := 1; z <= m.maxZ; z++ {
		grid := make([]uint32, 0, m.maxX*m.maxY)
		m.Each(z, func(t *Tile) {
			k := stackKey(t.items)
			id, ok := keys[k]
			if !ok {
				id = uint32(len(s.Palette))
				keys[k] = id
				recs := make([]ItemRecord, len(t.items))
				for i, it := range t.items {
					recs[i] = ItemRecord{Type: it.Type, Vars: it.Vars}
				}
				s.Palette = append(s.Palette, recs)
			}
			grid = append(grid, id)
		})
		s.Levels = append(s.Levels, encoding.EncodeRuns(grid))
	}
	return s
}

// ImportSnapshot rebuilds a map, creating instances through h.
func ImportSnapshot(h *Holder, s Snapshot) (*Map, error) {
	if !s.Size.valid() {
		return nil, fmt.Errorf("%w: %+v", ErrBadSize, s.Size)
	}
	if len(s.Levels) != s.Size.MaxZ {
		return nil, fmt.Errorf("snapshot: %d levels for maxZ %d", len(s.Levels), s.Size.MaxZ)
	}
	stacks := make([][]*TileItem, len(s.Palette))
	for i, recs := range s.Palette {
		stack := make([]*TileItem, 0, len(recs))
		for _, r := range recs {
			it, err := h.GetOrCreate(r.Type, r.Vars)
			if err != nil {
				return nil, fmt.Errorf("snapshot palette %d: %w", i, err)
			}
			stack = append(stack, it)
		}
		stacks[i] = stack
	}

	m := &Map{Name: s.Name, ZActive: 1, holder: h}
	m.maxX, m.maxY, m.maxZ = s.Size.MaxX, s.Size.MaxY, s.Size.MaxZ
	m.tiles = make([][][]*Tile, m.maxZ)
	for z := 0; z < m.maxZ; z++ {
		keys, err := encoding.DecodeRuns(s.Levels[z], m.maxX*m.maxY)
		if err != nil {
			return nil, fmt.Errorf("snapshot level %d: %w", z+1, err)
		}
		m.tiles[z] = make([][]*Tile, m.maxY)
		for y := 0; y < m.maxY; y++ {
			row := make([]*Tile, m.maxX)
			for x := range row {
				k := keys[y*m.maxX+x]
				if int(k) >= len(stacks) {
					return nil, fmt.Errorf("snapshot level %d: key %d outside palette", z+1, k)
				}
				t := &Tile{X: x + 1, Y: y + 1, Z: z + 1}
				t.SetItems(stacks[k])
				row[x] = t
			}
			m.tiles[z][y] = row
		}
	}
	return m, nil
}
