package observer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"mapforge.dev/internal/bus"
	"mapforge.dev/internal/config"
	"mapforge.dev/internal/dmm"
	"mapforge.dev/internal/editor"
	"mapforge.dev/internal/env"
	"mapforge.dev/internal/event"
	"mapforge.dev/internal/observerproto"
	"mapforge.dev/internal/persistence/snapshot"
)

type fixedLoader struct{ e *env.Environment }

func (l fixedLoader) Load(context.Context, string) (*env.Environment, error) { return l.e, nil }

func TestIntent(t *testing.T) {
	area := [4]int{5, 6, 2, 1}
	cases := []struct {
		in   observerproto.IntentMsg
		want any
		code string
	}{
		{observerproto.IntentMsg{Type: observerproto.TypeUndo}, event.UndoAction{}, ""},
		{observerproto.IntentMsg{Type: observerproto.TypeRedo}, event.RedoAction{}, ""},
		{observerproto.IntentMsg{Type: observerproto.TypeDeleteArea}, event.DeleteTileItemsInActiveArea{}, ""},
		{observerproto.IntentMsg{Type: observerproto.TypeSelectArea, Area: &area}, event.SelectActiveArea{Area: dmm.NewArea(5, 6, 2, 1)}, ""},
		{observerproto.IntentMsg{Type: observerproto.TypeSetZ, Z: 2}, event.ChangeSelectedZ{Z: 2}, ""},
		{observerproto.IntentMsg{Type: observerproto.TypeMouse, X: 3, Y: 4}, event.MapMousePosChanged{Pos: dmm.MapPos{X: 3, Y: 4}}, ""},
		{observerproto.IntentMsg{Type: observerproto.TypeCopy}, event.CopyActiveArea{}, ""},
		{observerproto.IntentMsg{Type: observerproto.TypeCut}, event.CutActiveArea{}, ""},
		{observerproto.IntentMsg{Type: observerproto.TypePaste}, event.PasteClipboard{}, ""},
		{observerproto.IntentMsg{Type: observerproto.TypeSelectArea}, nil, observerproto.ErrBadRequest},
		{observerproto.IntentMsg{Type: observerproto.TypeSetZ}, nil, observerproto.ErrBadRequest},
		{observerproto.IntentMsg{Type: "PAINT"}, nil, observerproto.ErrUnknownType},
	}
	for _, c := range cases {
		ev, code, err := Intent(c.in)
		if c.code != "" {
			if err == nil || code != c.code {
				t.Fatalf("Intent(%s): got code %q err %v want %q", c.in.Type, code, err, c.code)
			}
			if !observerproto.IsKnownCode(code) {
				t.Fatalf("unknown code %q", code)
			}
			continue
		}
		if err != nil || ev != c.want {
			t.Fatalf("Intent(%s): got %#v,%v want %#v", c.in.Type, ev, err, c.want)
		}
	}
}

func TestIsLoopbackRemote(t *testing.T) {
	if !isLoopbackRemote("127.0.0.1:5555") || !isLoopbackRemote("[::1]:80") {
		t.Fatalf("loopback rejected")
	}
	if isLoopbackRemote("10.0.0.2:5555") {
		t.Fatalf("remote accepted")
	}
}

func readUntil(t *testing.T, conn *websocket.Conn, typ string, match func([]byte) bool) []byte {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		_ = conn.SetReadDeadline(deadline)
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read waiting for %s: %v", typ, err)
		}
		var head struct {
			Type string `json:"type"`
		}
		_ = json.Unmarshal(raw, &head)
		if head.Type == typ && (match == nil || match(raw)) {
			return raw
		}
	}
	t.Fatalf("no %s message", typ)
	return nil
}

func TestServer_StreamsStateAndAcceptsIntents(t *testing.T) {
	e, err := env.Build(env.Node{Children: []env.Node{
		{Path: "/datum"}, {Path: "/atom"}, {Path: "/area"}, {Path: "/turf"},
	}}, "/envs/test.dme")
	if err != nil {
		t.Fatalf("build env: %v", err)
	}
	cfg := config.Defaults()
	cfg.DataDir = t.TempDir()
	cfg.Normalize()
	ed, err := editor.New(cfg, nil, editor.Options{Store: snapshot.Store{}, Loader: fixedLoader{e: e}})
	if err != nil {
		t.Fatalf("new editor: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- ed.Run(ctx) }()

	srv := NewServer(ed, nil)
	loaded := make(chan error, 1)
	if err := ed.Do(ctx, func(b *bus.Bus) {
		srv.Attach(b)
		bus.Subscribe(b, func(ev event.EnvironmentLoaded) { loaded <- ev.Err })
	}); err != nil {
		t.Fatalf("attach: %v", err)
	}
	_ = ed.Post(event.OpenEnvironment{Path: "/envs/test.dme"})
	select {
	case err := <-loaded:
		if err != nil {
			t.Fatalf("load: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("environment never loaded")
	}
	_ = ed.Post(event.CreateNewMap{Size: dmm.MapSize{MaxX: 4, MaxY: 3, MaxZ: 2}})

	ts := httptest.NewServer(srv.WSHandler())
	defer ts.Close()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	readUntil(t, conn, observerproto.TypeHello, nil)
	raw := readUntil(t, conn, observerproto.TypeMap, func(b []byte) bool {
		var m observerproto.MapMsg
		_ = json.Unmarshal(b, &m)
		return m.Open
	})
	var m observerproto.MapMsg
	_ = json.Unmarshal(raw, &m)
	if m.MaxX != 4 || m.MaxY != 3 || m.MaxZ != 2 || m.Z != 1 {
		t.Fatalf("map: %+v", m)
	}
	raw = readUntil(t, conn, observerproto.TypeFrame, nil)
	var f observerproto.FrameMsg
	_ = json.Unmarshal(raw, &f)
	if len(f.Tiles) != 3 || len(f.Tiles[0]) != 4 || len(f.Tiles[2][3]) != 2 {
		t.Fatalf("frame shape: %d rows", len(f.Tiles))
	}

	if err := conn.WriteJSON(observerproto.IntentMsg{Type: observerproto.TypeSetZ, Z: 2}); err != nil {
		t.Fatalf("write: %v", err)
	}
	readUntil(t, conn, observerproto.TypeMap, func(b []byte) bool {
		var m observerproto.MapMsg
		_ = json.Unmarshal(b, &m)
		return m.Z == 2
	})

	if err := conn.WriteJSON(observerproto.IntentMsg{Type: "PAINT"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	raw = readUntil(t, conn, observerproto.TypeError, nil)
	var em observerproto.ErrorMsg
	_ = json.Unmarshal(raw, &em)
	if em.Code != observerproto.ErrUnknownType {
		t.Fatalf("error code: got %q want %q", em.Code, observerproto.ErrUnknownType)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("run: %v", err)
	}
}
