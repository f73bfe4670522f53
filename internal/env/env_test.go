package env

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

const sampleTree = `{
  "path": "",
  "vars": [],
  "children": [
    {"path": "/datum", "vars": [{"name": "layer", "value": "1"}], "children": []},
    {"path": "/atom", "vars": [{"name": "dir", "value": "2"}, {"name": "icon", "value": null}], "children": []},
    {"path": "/world", "vars": [{"name": "turf", "value": "/turf/floor"}, {"name": "area", "value": "/area"}], "children": []},
    {"path": "/area", "vars": [], "children": []},
    {"path": "/turf", "vars": [], "children": [
      {"path": "/turf/floor", "vars": [{"name": "icon_state", "value": "{\"floor\"}"}], "children": []},
      {"path": "/turf/Wall", "vars": [], "children": []}
    ]},
    {"path": "/obj", "vars": [], "children": [
      {"path": "/obj/item", "vars": [{"name": "name", "value": "\"thing\""}], "children": [
        {"path": "/obj/item/weapon", "vars": [{"name": "force", "value": "10"}], "children": []}
      ]}
    ]},
    {"path": "/mob", "vars": [], "children": [
      {"path": "/mob/test", "vars": [], "children": []}
    ]}
  ]
}`

func loadSample(t *testing.T) *Environment {
	t.Helper()
	root, err := Decode(strings.NewReader(sampleTree))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	e, err := Build(root, "/maps/station.dme")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return e
}

func TestBuild_IndexesAndNames(t *testing.T) {
	e := loadSample(t)
	if e.Name != "station" || e.RootDir != "/maps" {
		t.Fatalf("name/root: got %q %q", e.Name, e.RootDir)
	}
	it, ok := e.Item("/obj/item/weapon")
	if !ok {
		t.Fatalf("weapon missing")
	}
	got, ok := e.ItemByID(it.ID)
	if !ok || got != it {
		t.Fatalf("ItemByID(%d) mismatch", it.ID)
	}
	if v := it.Vars[VarName]; v.Text() != "weapon" {
		t.Fatalf("synthetic name: got %q want weapon", v.Text())
	}
	if v, _ := e.Var("/obj/item", VarName); v.Text() != "thing" {
		t.Fatalf("declared name: got %q want thing", v.Text())
	}
}

func TestBuild_UnwrapsQuotedAndDropsNull(t *testing.T) {
	e := loadSample(t)
	floor, _ := e.Item("/turf/floor")
	v := floor.Vars["icon_state"]
	if v.Kind != KindString || v.Text() != "floor" {
		t.Fatalf("icon_state: got %v %q", v.Kind, v.Raw)
	}
	atom, _ := e.Item(TypeAtom)
	if _, ok := atom.Vars["icon"]; ok {
		t.Fatalf("null var kept")
	}
}

func TestBuild_ChildrenSortedCaseInsensitive(t *testing.T) {
	e := loadSample(t)
	turf, _ := e.Item(TypeTurf)
	if len(turf.Children) != 2 || turf.Children[0] != "/turf/floor" || turf.Children[1] != "/turf/Wall" {
		t.Fatalf("children: got %v", turf.Children)
	}
}

func TestVar_InheritsThroughBuiltinChain(t *testing.T) {
	e := loadSample(t)
	v, ok := e.Var("/mob/test", "dir")
	if !ok || v.Raw != "2" {
		t.Fatalf("dir via /mob -> /atom/movable -> /atom: got %v,%v", v, ok)
	}
	if v, ok := e.Var("/obj/item/weapon", "layer"); !ok || v.Raw != "1" {
		t.Fatalf("layer via /datum: got %v,%v", v, ok)
	}
	if _, ok := e.Var("/obj/item/weapon", "missing"); ok {
		t.Fatalf("missing var resolved")
	}
	// cached path answers the same
	if v, ok := e.Var("/mob/test", "dir"); !ok || v.Raw != "2" {
		t.Fatalf("cached dir: got %v,%v", v, ok)
	}
}

func TestIsType(t *testing.T) {
	if !IsType("/obj/item/weapon", TypeMovable) {
		t.Fatalf("weapon should be movable")
	}
	if IsType("/turf/floor", TypeMovable) {
		t.Fatalf("floor should not be movable")
	}
}

func TestSubtree(t *testing.T) {
	e := loadSample(t)
	ids := e.Subtree(TypeObj)
	if len(ids) != 3 {
		t.Fatalf("subtree size: got %d want 3", len(ids))
	}
	w, _ := e.Item("/obj/item/weapon")
	if !ids.Has(w.ID) {
		t.Fatalf("subtree misses weapon")
	}
}

func TestBuild_MissingParentFails(t *testing.T) {
	root := Node{Children: []Node{{Path: "/obj/orphan"}}}
	if _, err := Build(root, ""); !errors.Is(err, ErrMissingParent) {
		t.Fatalf("build: got %v want ErrMissingParent", err)
	}
}

func TestDecode_RejectsSchemaViolation(t *testing.T) {
	bad := `{"path": "", "vars": [{"value": "1"}], "children": []}`
	if _, err := Decode(strings.NewReader(bad)); err == nil {
		t.Fatalf("decode accepted var without name")
	}
	if _, err := Decode(strings.NewReader(`{"path": 5}`)); err == nil {
		t.Fatalf("decode accepted numeric path")
	}
}

func TestParseValue(t *testing.T) {
	cases := []struct {
		in   string
		kind Kind
	}{
		{"null", KindNull},
		{"", KindNull},
		{`"a"`, KindString},
		{"3.5", KindNumber},
		{"list(1,2)", KindRaw},
	}
	for _, c := range cases {
		if got := ParseValue(c.in).Kind; got != c.kind {
			t.Fatalf("ParseValue(%q): got %v want %v", c.in, got, c.kind)
		}
	}
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts")
	}
	p := filepath.Join(t.TempDir(), "parser.sh")
	if err := os.WriteFile(p, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return p
}

func TestParser_Success(t *testing.T) {
	dir := t.TempDir()
	fixture := filepath.Join(dir, "tree.json")
	if err := os.WriteFile(fixture, []byte(sampleTree), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	p := Parser{Path: writeScript(t, "cp "+fixture+" \"$2\"\n"), Dir: dir}
	e, err := p.Parse(context.Background(), filepath.Join(dir, "station.dme"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, ok := e.Item("/mob/test"); !ok {
		t.Fatalf("parsed environment misses /mob/test")
	}
}

func TestParser_NonZeroExit(t *testing.T) {
	p := Parser{Path: writeScript(t, "echo broken >&2\nexit 3\n"), Dir: t.TempDir()}
	_, err := p.Parse(context.Background(), filepath.Join(t.TempDir(), "x.dme"))
	if !errors.Is(err, ErrParserFailed) {
		t.Fatalf("parse: got %v want ErrParserFailed", err)
	}
}
