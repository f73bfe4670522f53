package environment

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"mapforge.dev/internal/bus"
	"mapforge.dev/internal/dmm"
	"mapforge.dev/internal/env"
	"mapforge.dev/internal/event"
)

type fakeLoader struct {
	envs map[string]*env.Environment
}

func (l fakeLoader) Load(_ context.Context, path string) (*env.Environment, error) {
	if e, ok := l.envs[path]; ok {
		return e, nil
	}
	return nil, env.ErrParserFailed
}

func build(t *testing.T) *env.Environment {
	t.Helper()
	e, err := env.Build(env.Node{Children: []env.Node{{Path: "/datum"}, {Path: "/turf"}}}, "/x/a.dme")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return e
}

// run wires a controller whose background results are pumped back onto the bus by drain.
func run(t *testing.T, loader Loader) (*bus.Bus, func()) {
	t.Helper()
	b := bus.New(nil)
	inbox := make(chan any, 4)
	c := New(b, nil, loader, func(ev any) { inbox <- ev })
	t.Cleanup(c.Close)
	return b, func() { b.Publish(<-inbox) }
}

func TestLoadSwapsEnvironment(t *testing.T) {
	e1, e2 := build(t), build(t)
	b, drain := run(t, fakeLoader{envs: map[string]*env.Environment{"a": e1, "b": e2}})

	var trace []string
	bus.Subscribe(b, func(event.EnvironmentLoading) { trace = append(trace, "loading") })
	bus.Subscribe(b, func(event.EnvironmentLoaded) { trace = append(trace, "loaded") })
	bus.Subscribe(b, func(event.EnvironmentReset) { trace = append(trace, "reset") })
	bus.Subscribe(b, func(event.EnvironmentChanged) { trace = append(trace, "changed") })

	b.Publish(event.OpenEnvironment{Path: "a"})
	drain()
	got, ok := bus.Ask(b, func(r func(*env.Environment)) any { return event.FetchOpenedEnvironment{Reply: r} })
	if !ok || got != e1 {
		t.Fatalf("opened environment: got %p,%v want %p", got, ok, e1)
	}
	h1, _ := bus.Ask(b, func(r func(*dmm.Holder)) any { return event.FetchTileItemHolder{Reply: r} })

	b.Publish(event.OpenEnvironment{Path: "b"})
	drain()
	got, _ = bus.Ask(b, func(r func(*env.Environment)) any { return event.FetchOpenedEnvironment{Reply: r} })
	h2, _ := bus.Ask(b, func(r func(*dmm.Holder)) any { return event.FetchTileItemHolder{Reply: r} })
	if got != e2 || h1 == h2 {
		t.Fatalf("second load did not swap environment and holder")
	}

	want := []string{"loading", "loaded", "changed", "loading", "reset", "loaded", "changed"}
	if len(trace) != len(want) {
		t.Fatalf("trace: got %v want %v", trace, want)
	}
	for i := range want {
		if trace[i] != want[i] {
			t.Fatalf("trace[%d]: got %q want %q", i, trace[i], want[i])
		}
	}
}

func TestFailedLoadKeepsPrevious(t *testing.T) {
	e1 := build(t)
	b, drain := run(t, fakeLoader{envs: map[string]*env.Environment{"a": e1}})
	var loadErr error
	bus.Subscribe(b, func(ev event.EnvironmentLoaded) { loadErr = ev.Err })

	b.Publish(event.OpenEnvironment{Path: "a"})
	drain()
	b.Publish(event.OpenEnvironment{Path: "broken"})
	drain()

	if !errors.Is(loadErr, env.ErrParserFailed) {
		t.Fatalf("load error: got %v want ErrParserFailed", loadErr)
	}
	got, ok := bus.Ask(b, func(r func(*env.Environment)) any { return event.FetchOpenedEnvironment{Reply: r} })
	if !ok || got != e1 {
		t.Fatalf("previous environment replaced after failure")
	}
}

func TestCloseEnvironment(t *testing.T) {
	b, drain := run(t, fakeLoader{envs: map[string]*env.Environment{"a": build(t)}})
	b.Publish(event.OpenEnvironment{Path: "a"})
	drain()
	b.Publish(event.CloseEnvironment{})
	if _, ok := bus.Ask(b, func(r func(*env.Environment)) any { return event.FetchOpenedEnvironment{Reply: r} }); ok {
		t.Fatalf("environment still answered after close")
	}
}

func TestFileLoader_JSON(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tree.json")
	tree := `{"path":"","vars":[],"children":[{"path":"/turf","vars":[],"children":[]}]}`
	if err := os.WriteFile(p, []byte(tree), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	e, err := FileLoader{}.Load(context.Background(), p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, ok := e.Item("/turf"); !ok || e.Path != p {
		t.Fatalf("loaded environment: path=%q", e.Path)
	}
}
