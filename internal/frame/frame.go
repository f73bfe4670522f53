// Package frame captures what a renderer shows of the selected map: the active level with the
// layer filter applied.
package frame

import (
	"mapforge.dev/internal/bus"
	"mapforge.dev/internal/dmm"
	"mapforge.dev/internal/env"
	"mapforge.dev/internal/event"
)

type Frame struct {
	MapID   int
	MapName string
	Z       int
	MaxX    int
	MaxY    int
	Area    dmm.MapArea
	// Tiles is indexed [y-1][x-1]; each cell lists the visible item types bottom to top.
	Tiles [][][]string
}

// Capture queries the bus for the selected map. It must run on the editor loop; ok is false
// when no map is selected.
func Capture(b *bus.Bus) (Frame, bool) {
	m, ok := bus.Ask(b, func(r func(*dmm.Map)) any { return event.FetchSelectedMap{Reply: r} })
	if !ok || m == nil {
		return Frame{}, false
	}
	hidden, _ := bus.Ask(b, func(r func(env.IDSet)) any { return event.FetchFilteredLayers{Reply: r} })
	area, _ := bus.Ask(b, func(r func(dmm.MapArea)) any { return event.FetchActiveArea{Reply: r} })

	f := Frame{
		MapID:   m.ID,
		MapName: m.Name,
		Z:       m.ZActive,
		MaxX:    m.MaxX(),
		MaxY:    m.MaxY(),
		Area:    area,
		Tiles:   make([][][]string, m.MaxY()),
	}
	for y := range f.Tiles {
		f.Tiles[y] = make([][]string, m.MaxX())
	}
	m.Each(m.ZActive, func(t *dmm.Tile) {
		items := t.Filtered(hidden)
		cell := make([]string, len(items))
		for i, it := range items {
			cell[i] = it.Type
		}
		f.Tiles[t.Y-1][t.X-1] = cell
	})
	return f, true
}

// Top returns the topmost visible type at (x, y), or "".
func (f Frame) Top(x, y int) string {
	if y < 1 || y > len(f.Tiles) || x < 1 || x > len(f.Tiles[y-1]) {
		return ""
	}
	cell := f.Tiles[y-1][x-1]
	if len(cell) == 0 {
		return ""
	}
	return cell[len(cell)-1]
}
