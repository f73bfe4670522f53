package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mapforge.dev/internal/action"
	"mapforge.dev/internal/controller/actions"
	"mapforge.dev/internal/dmm"
	"mapforge.dev/internal/event"
	persistlog "mapforge.dev/internal/persistence/log"
)

func TestSummarize_FiltersByMapAndTime(t *testing.T) {
	dir := t.TempDir()
	l := persistlog.NewActionLogger(dir)
	at := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	change := action.TileChange{Pos: action.Pos{X: 1, Y: 1, Z: 1}}
	entries := []actions.Entry{
		{At: at, Op: event.OpPush, MapName: "deck", Changes: []action.TileChange{change, change}},
		{At: at.Add(time.Minute), Op: event.OpUndo, MapName: "deck", Changes: []action.TileChange{change, change}},
		{At: at.Add(2 * time.Minute), Op: event.OpPush, MapName: "bridge",
			Resize: &actions.ResizeInfo{From: dmm.MapSize{MaxX: 2, MaxY: 2, MaxZ: 1}, To: dmm.MapSize{MaxX: 1, MaxY: 1, MaxZ: 1}, Dropped: 3}},
	}
	for _, e := range entries {
		if err := l.WriteAction(e); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	_ = l.Close()

	var out bytes.Buffer
	s, err := summarize(filepath.Join(dir, "actions"), filter{}, true, &out)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if s.entries != 3 || s.tiles != 4 || s.resizes != 1 || s.byOp[event.OpPush] != 2 {
		t.Fatalf("summary: %+v", s)
	}
	if !strings.Contains(out.String(), "dropped=3") {
		t.Fatalf("verbose output misses resize: %q", out.String())
	}

	s, err = summarize(filepath.Join(dir, "actions"), filter{mapName: "deck", since: at.Add(30 * time.Second)}, false, &out)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if s.entries != 1 || s.byOp[event.OpUndo] != 1 {
		t.Fatalf("filtered summary: %+v", s)
	}
}

func TestSummarize_NoFiles(t *testing.T) {
	if _, err := summarize(t.TempDir(), filter{}, false, &bytes.Buffer{}); err == nil {
		t.Fatalf("summarize empty dir succeeded")
	}
}
