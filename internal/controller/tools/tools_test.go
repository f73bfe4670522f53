package tools

import (
	"testing"

	"mapforge.dev/internal/bus"
	"mapforge.dev/internal/dmm"
	"mapforge.dev/internal/event"
)

func TestActiveArea(t *testing.T) {
	b := bus.New(nil)
	New(b)
	var changes []dmm.MapArea
	bus.Subscribe(b, func(ev event.ActiveAreaChanged) { changes = append(changes, ev.Area) })
	fetch := func() dmm.MapArea {
		a, _ := bus.Ask(b, func(r func(dmm.MapArea)) any { return event.FetchActiveArea{Reply: r} })
		return a
	}

	b.Publish(event.SelectActiveArea{Area: dmm.MapArea{X1: 5, Y1: 6, X2: 2, Y2: 3}})
	if got := fetch(); got != (dmm.MapArea{X1: 2, Y1: 3, X2: 5, Y2: 6}) {
		t.Fatalf("normalized area: got %+v", got)
	}
	b.Publish(event.SelectActiveArea{Area: dmm.NewArea(2, 3, 5, 6)})
	if len(changes) != 1 {
		t.Fatalf("same area notified again: %d", len(changes))
	}

	b.Publish(event.SelectedMapMapSizeChanged{Size: dmm.MapSize{MaxX: 4, MaxY: 10, MaxZ: 1}})
	if got := fetch(); got != (dmm.MapArea{X1: 2, Y1: 3, X2: 4, Y2: 6}) {
		t.Fatalf("clipped area: got %+v", got)
	}
	b.Publish(event.ResetTool{})
	if !fetch().IsZero() {
		t.Fatalf("reset kept area")
	}
}

func TestActiveTileItem(t *testing.T) {
	b := bus.New(nil)
	New(b)
	item := &dmm.TileItem{ID: 9, Type: "/obj/x"}
	b.Publish(event.ChangeActiveTileItem{Item: item})
	got, _ := bus.Ask(b, func(r func(*dmm.TileItem)) any { return event.FetchActiveTileItem{Reply: r} })
	if got != item {
		t.Fatalf("active item: got %v want %v", got, item)
	}
	b.Publish(event.EnvironmentReset{})
	got, _ = bus.Ask(b, func(r func(*dmm.TileItem)) any { return event.FetchActiveTileItem{Reply: r} })
	if got != nil {
		t.Fatalf("active item survived environment reset")
	}
}
