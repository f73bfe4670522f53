package recent

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"mapforge.dev/internal/bus"
	"mapforge.dev/internal/dmm"
	"mapforge.dev/internal/env"
	"mapforge.dev/internal/event"
)

func touch(t *testing.T, p string) string {
	t.Helper()
	if err := os.WriteFile(p, nil, 0o644); err != nil {
		t.Fatalf("touch: %v", err)
	}
	return p
}

func TestRecentFiles(t *testing.T) {
	dir := t.TempDir()
	envPath := touch(t, filepath.Join(dir, "a.dme"))
	mapA := touch(t, filepath.Join(dir, "a.dmm"))
	mapB := touch(t, filepath.Join(dir, "b.dmm"))

	b := bus.New(nil)
	if _, err := New(b, nil, dir); err != nil {
		t.Fatalf("new: %v", err)
	}
	e, err := env.Build(env.Node{}, envPath)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	b.Publish(event.EnvironmentChanged{Env: e})
	b.Publish(event.SelectedMapChanged{Map: &dmm.Map{Path: mapA}})
	b.Publish(event.MapSaved{Path: mapB})
	b.Publish(event.SelectedMapChanged{Map: &dmm.Map{Path: mapA}})

	maps, _ := bus.Ask(b, func(r func([]string)) any { return event.FetchRecentMaps{Reply: r} })
	if len(maps) != 2 || maps[0] != mapA || maps[1] != mapB {
		t.Fatalf("recent maps: got %v", maps)
	}
	envs, _ := bus.Ask(b, func(r func([]string)) any { return event.FetchRecentEnvironments{Reply: r} })
	if len(envs) != 1 || envs[0] != envPath {
		t.Fatalf("recent environments: got %v", envs)
	}

	var onDisk Files
	raw, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := json.Unmarshal(raw, &onDisk); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(onDisk.Maps[envPath]) != 2 {
		t.Fatalf("persisted maps: %+v", onDisk)
	}

	b.Publish(event.ClearRecentMaps{})
	maps, _ = bus.Ask(b, func(r func([]string)) any { return event.FetchRecentMaps{Reply: r} })
	if len(maps) != 0 {
		t.Fatalf("maps after clear: %v", maps)
	}
}

func TestRecentFiles_DropsMissingOnLoad(t *testing.T) {
	dir := t.TempDir()
	envPath := touch(t, filepath.Join(dir, "a.dme"))
	doc := Files{
		Environments: []string{filepath.Join(dir, "gone.dme"), envPath},
		Maps:         map[string][]string{envPath: {filepath.Join(dir, "gone.dmm")}},
	}
	raw, _ := json.Marshal(doc)
	if err := os.WriteFile(filepath.Join(dir, FileName), raw, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	b := bus.New(nil)
	if _, err := New(b, nil, dir); err != nil {
		t.Fatalf("new: %v", err)
	}
	envs, _ := bus.Ask(b, func(r func([]string)) any { return event.FetchRecentEnvironments{Reply: r} })
	if len(envs) != 1 || envs[0] != envPath {
		t.Fatalf("environments: got %v", envs)
	}
}
