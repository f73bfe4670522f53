package actions

import (
	"testing"

	"mapforge.dev/internal/action"
	"mapforge.dev/internal/bus"
	"mapforge.dev/internal/dmm"
	"mapforge.dev/internal/env"
	"mapforge.dev/internal/event"
)

type memJournal struct {
	entries []Entry
}

func (j *memJournal) WriteAction(e Entry) error {
	j.entries = append(j.entries, e)
	return nil
}

func newMap(t *testing.T, id int) (*dmm.Map, *dmm.Holder) {
	t.Helper()
	root := env.Node{Children: []env.Node{
		{Path: "/datum"}, {Path: "/atom"}, {Path: "/area"}, {Path: "/turf"},
		{Path: "/mob", Children: []env.Node{{Path: "/mob/test"}}},
	}}
	e, err := env.Build(root, "")
	if err != nil {
		t.Fatalf("build env: %v", err)
	}
	h := dmm.NewHolder(e)
	m, err := dmm.New(h, "m", dmm.MapSize{MaxX: 2, MaxY: 2, MaxZ: 1})
	if err != nil {
		t.Fatalf("new map: %v", err)
	}
	m.ID = id
	return m, h
}

func addMob(t *testing.T, m *dmm.Map, h *dmm.Holder, x, y int) action.Undoable {
	t.Helper()
	mob, err := h.Pure("/mob/test")
	if err != nil {
		t.Fatalf("pure: %v", err)
	}
	tile := m.MustTile(x, y, 1)
	work := tile.Clone()
	work.Add(mob)
	return action.MultiAction{action.NewReplaceTile(m, tile, tile.Items(), work.Items())}
}

func TestController_StatusNotifications(t *testing.T) {
	b := bus.New(nil)
	j := &memJournal{}
	New(b, nil, 0, j)
	m, h := newMap(t, 7)

	var statuses []action.Status
	var refreshes int
	bus.Subscribe(b, func(ev event.ActionStatusChanged) { statuses = append(statuses, ev.Status) })
	bus.Subscribe(b, func(event.RefreshFrame) { refreshes++ })

	b.Publish(event.SelectedMapChanged{Map: m})
	b.Publish(event.AddAction{Action: addMob(t, m, h, 1, 1)})
	b.Publish(event.UndoAction{})
	b.Publish(event.RedoAction{})
	b.Publish(event.RedoAction{})

	want := []action.Status{
		{},
		{HasUndo: true},
		{HasRedo: true},
		{HasUndo: true},
		{HasUndo: true},
	}
	if len(statuses) != len(want) {
		t.Fatalf("status notifications: got %v want %v", statuses, want)
	}
	for i := range want {
		if statuses[i] != want[i] {
			t.Fatalf("status[%d]: got %+v want %+v", i, statuses[i], want[i])
		}
	}
	if refreshes != 2 {
		t.Fatalf("refreshes: got %d want 2", refreshes)
	}
	if len(j.entries) != 3 {
		t.Fatalf("journal entries: got %d want 3", len(j.entries))
	}
	e := j.entries[0]
	if e.Op != event.OpPush || e.MapID != 7 || len(e.Changes) != 1 {
		t.Fatalf("first entry: %+v", e)
	}
}

func TestController_HistoryPerMap(t *testing.T) {
	b := bus.New(nil)
	New(b, nil, 0)
	m1, h1 := newMap(t, 1)
	m2, _ := newMap(t, 2)

	status := func() action.Status {
		s, _ := bus.Ask(b, func(r func(action.Status)) any { return event.FetchActionStatus{Reply: r} })
		return s
	}

	b.Publish(event.SelectedMapChanged{Map: m1})
	b.Publish(event.AddAction{Action: addMob(t, m1, h1, 1, 1)})
	b.Publish(event.SelectedMapChanged{Map: m2})
	if status().HasUndo {
		t.Fatalf("second map inherited first map's history")
	}
	b.Publish(event.SelectedMapChanged{Map: m1})
	if !status().HasUndo {
		t.Fatalf("first map lost its history")
	}
	b.Publish(event.OpenedMapClosed{Map: m1})
	if status().HasUndo {
		t.Fatalf("closed map kept its history")
	}
}

func TestController_AddWithoutMapIgnored(t *testing.T) {
	b := bus.New(nil)
	New(b, nil, 0)
	m, h := newMap(t, 1)
	a := addMob(t, m, h, 1, 1)
	b.Publish(event.AddAction{Action: a})
	if m.MustTile(1, 1, 1).Len() != 2 {
		t.Fatalf("action applied without a selected map")
	}
}

func TestController_EmptyActionRejected(t *testing.T) {
	b := bus.New(nil)
	New(b, nil, 0)
	m, _ := newMap(t, 1)
	b.Publish(event.SelectedMapChanged{Map: m})
	b.Publish(event.AddAction{Action: action.MultiAction{}})
	s, _ := bus.Ask(b, func(r func(action.Status)) any { return event.FetchActionStatus{Reply: r} })
	if s.HasUndo {
		t.Fatalf("empty batch recorded")
	}
}
