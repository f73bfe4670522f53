package clipboard

import (
	"testing"

	"mapforge.dev/internal/bus"
	"mapforge.dev/internal/controller/actions"
	"mapforge.dev/internal/controller/layers"
	"mapforge.dev/internal/controller/mapholder"
	"mapforge.dev/internal/controller/modifier"
	"mapforge.dev/internal/controller/tools"
	"mapforge.dev/internal/dmm"
	"mapforge.dev/internal/env"
	"mapforge.dev/internal/event"
)

type nopStore struct{}

func (nopStore) Load(string, *dmm.Holder) (*dmm.Map, error) { return nil, nil }
func (nopStore) Save(string, *dmm.Map) error                { return nil }

func strp(s string) *string { return &s }

type rig struct {
	bus    *bus.Bus
	holder *dmm.Holder
	m      *dmm.Map
	sizes  []event.ClipboardChanged
}

func newRig(t *testing.T) *rig {
	t.Helper()
	root := env.Node{Children: []env.Node{
		{Path: "/datum"},
		{Path: "/atom"},
		{Path: "/world", Vars: []env.NodeVar{{Name: "turf", Value: strp("/turf/floor")}}},
		{Path: "/area"},
		{Path: "/turf", Children: []env.Node{{Path: "/turf/floor"}, {Path: "/turf/wall"}}},
		{Path: "/obj", Children: []env.Node{{Path: "/obj/chair"}}},
	}}
	e, err := env.Build(root, "")
	if err != nil {
		t.Fatalf("build env: %v", err)
	}
	r := &rig{bus: bus.New(nil), holder: dmm.NewHolder(e)}
	actions.New(r.bus, nil, 0)
	mapholder.New(r.bus, nil, nopStore{}, dmm.MapSize{MaxX: 6, MaxY: 6, MaxZ: 1})
	layers.New(r.bus)
	tools.New(r.bus)
	modifier.New(r.bus, nil)
	New(r.bus)
	bus.Subscribe(r.bus, func(ev event.ClipboardChanged) { r.sizes = append(r.sizes, ev) })

	r.bus.Publish(event.EnvironmentChanged{Env: e, Holder: r.holder})
	r.bus.Publish(event.CreateNewMap{Path: "clip.dmm"})
	m, ok := bus.Ask(r.bus, func(reply func(*dmm.Map)) any { return event.FetchSelectedMap{Reply: reply} })
	if !ok {
		t.Fatalf("no selected map")
	}
	r.m = m
	return r
}

func (r *rig) pure(t *testing.T, typ string) *dmm.TileItem {
	t.Helper()
	it, err := r.holder.Pure(typ)
	if err != nil {
		t.Fatalf("pure %s: %v", typ, err)
	}
	return it
}

func (r *rig) count(typ string) int {
	n := 0
	r.m.Each(1, func(tile *dmm.Tile) {
		for _, it := range tile.Items() {
			if it.Type == typ {
				n++
			}
		}
	})
	return n
}

func (r *rig) has(x, y int, typ string) bool {
	for _, it := range r.m.MustTile(x, y, 1).Items() {
		if it.Type == typ {
			return true
		}
	}
	return false
}

func TestCopyPaste_AtMousePosition(t *testing.T) {
	r := newRig(t)
	r.bus.Publish(event.SelectActiveArea{Area: dmm.NewArea(1, 1, 2, 2)})
	r.bus.Publish(event.FillActiveAreaWithTileItem{Item: r.pure(t, "/obj/chair")})

	r.bus.Publish(event.CopyActiveArea{})
	if len(r.sizes) != 1 || r.sizes[0] != (event.ClipboardChanged{Width: 2, Height: 2}) {
		t.Fatalf("clipboard notifications: %v", r.sizes)
	}

	r.bus.Publish(event.MapMousePosChanged{Pos: dmm.MapPos{X: 4, Y: 3}})
	r.bus.Publish(event.PasteClipboard{})
	if n := r.count("/obj/chair"); n != 8 {
		t.Fatalf("chairs after paste: got %d want 8", n)
	}
	if !r.has(4, 3, "/obj/chair") || !r.has(5, 4, "/obj/chair") || r.has(6, 4, "/obj/chair") {
		t.Fatalf("paste landed in the wrong place")
	}
	// the pasted block replaced the visible stack, so the tile keeps one turf and one area
	if n := r.m.MustTile(4, 3, 1).Len(); n != 3 {
		t.Fatalf("pasted tile size: got %d want 3", n)
	}

	r.bus.Publish(event.UndoAction{})
	if n := r.count("/obj/chair"); n != 4 {
		t.Fatalf("chairs after undoing the paste: got %d want 4", n)
	}
}

func TestCut_DeletesAndPastesBack(t *testing.T) {
	r := newRig(t)
	r.bus.Publish(event.SelectActiveArea{Area: dmm.NewArea(2, 2, 3, 2)})
	r.bus.Publish(event.FillActiveAreaWithTileItem{Item: r.pure(t, "/obj/chair")})
	r.bus.Publish(event.HideLayersByType{Type: env.TypeTurf})
	r.bus.Publish(event.HideLayersByType{Type: env.TypeArea})

	r.bus.Publish(event.CutActiveArea{})
	if n := r.count("/obj/chair"); n != 0 {
		t.Fatalf("chairs after cut: got %d want 0", n)
	}
	if n := r.count("/turf/floor"); n != 36 {
		t.Fatalf("hidden turfs cut: %d left", n)
	}

	r.bus.Publish(event.MapMousePosChanged{Pos: dmm.MapPos{X: 5, Y: 5}})
	r.bus.Publish(event.PasteClipboard{})
	if !r.has(5, 5, "/obj/chair") || !r.has(6, 5, "/obj/chair") {
		t.Fatalf("cut block not pasted at 5,5")
	}
}

func TestPaste_EmptyOrResetIsNoop(t *testing.T) {
	r := newRig(t)
	var fills int
	bus.Subscribe(r.bus, func(event.FillSelectedMapPositionWithTileItems) { fills++ })

	r.bus.Publish(event.PasteClipboard{})
	r.bus.Publish(event.SelectActiveArea{Area: dmm.NewArea(1, 1, 1, 1)})
	r.bus.Publish(event.CopyActiveArea{})
	r.bus.Publish(event.EnvironmentReset{})
	r.bus.Publish(event.PasteClipboard{})

	if fills != 0 {
		t.Fatalf("paste without a clipboard published %d fills", fills)
	}
	if last := r.sizes[len(r.sizes)-1]; last != (event.ClipboardChanged{}) {
		t.Fatalf("reset kept the clipboard: %+v", last)
	}
}
