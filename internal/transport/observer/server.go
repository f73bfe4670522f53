package observer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"mapforge.dev/internal/action"
	"mapforge.dev/internal/bus"
	"mapforge.dev/internal/dmm"
	"mapforge.dev/internal/editor"
	"mapforge.dev/internal/env"
	"mapforge.dev/internal/event"
	"mapforge.dev/internal/frame"
	"mapforge.dev/internal/observerproto"
)

// Loop is the part of the editor the server needs.
type Loop interface {
	Post(ev any) error
	Do(ctx context.Context, fn func(b *bus.Bus)) error
}

type client struct {
	id  string
	out chan []byte
}

// Server streams editor state to websocket observers and turns their messages into intents.
type Server struct {
	loop Loop
	log  *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	mu      sync.Mutex
	clients map[string]*client

	// loop-only
	group *bus.Group
}

func NewServer(loop Loop, logger *log.Logger) *Server {
	return &Server{
		loop:    loop,
		log:     logger,
		clients: make(map[string]*client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Attach subscribes the server to editor reactions. It must run on the loop.
func (s *Server) Attach(b *bus.Bus) {
	if s.group != nil {
		return
	}
	g := bus.NewGroup(b)
	g.Add(bus.Subscribe(b, func(event.RefreshFrame) {
		s.broadcastFrame(b)
		b.Publish(event.FrameRefreshed{})
	}))
	g.Add(bus.Subscribe(b, func(ev event.ActionStatusChanged) { s.broadcast(statusMsg(ev.Status)) }))
	g.Add(bus.Subscribe(b, func(event.SelectedMapChanged) {
		s.broadcast(mapMsg(b))
		s.broadcastFrame(b)
	}))
	g.Add(bus.Subscribe(b, func(event.SelectedMapClosed) {
		s.broadcast(observerproto.MapMsg{Type: observerproto.TypeMap})
	}))
	g.Add(bus.Subscribe(b, func(event.SelectedMapMapSizeChanged) { s.broadcast(mapMsg(b)) }))
	g.Add(bus.Subscribe(b, func(event.SelectedMapZActiveChanged) { s.broadcast(mapMsg(b)) }))
	g.Add(bus.Subscribe(b, func(ev event.EnvironmentChanged) { s.broadcast(envMsg(ev.Env, nil)) }))
	g.Add(bus.Subscribe(b, func(event.EnvironmentReset) {
		s.broadcast(observerproto.EnvironmentMsg{Type: observerproto.TypeEnvironment})
	}))
	g.Add(bus.Subscribe(b, func(ev event.EnvironmentLoaded) {
		if ev.Err == nil {
			return
		}
		cur, _ := bus.Ask(b, func(r func(*env.Environment)) any { return event.FetchOpenedEnvironment{Reply: r} })
		s.broadcast(envMsg(cur, ev.Err))
	}))
	s.group = g
}

// Detach undoes Attach. It must run on the loop.
func (s *Server) Detach() {
	if s.group != nil {
		s.group.Close()
		s.group = nil
	}
}

func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		c := &client{
			id:  fmt.Sprintf("O%d", s.nextID.Add(1)),
			out: make(chan []byte, 256),
		}
		s.mu.Lock()
		s.clients[c.id] = c
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			delete(s.clients, c.id)
			s.mu.Unlock()
		}()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		send(c, observerproto.HelloMsg{
			Type:            observerproto.TypeHello,
			ProtocolVersion: observerproto.Version,
			SessionID:       c.id,
		})
		if err := s.loop.Do(ctx, func(b *bus.Bus) { s.sendState(b, c) }); err != nil {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "editor stopped"), time.Now().Add(time.Second))
			return
		}

		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b := <-c.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		for {
			_ = conn.SetReadDeadline(time.Now().Add(10 * time.Minute))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			var in observerproto.IntentMsg
			if err := json.Unmarshal(msg, &in); err != nil {
				send(c, errorMsg(observerproto.ErrBadRequest, "bad json"))
				continue
			}
			ev, code, err := Intent(in)
			if err != nil {
				send(c, errorMsg(code, err.Error()))
				continue
			}
			if err := s.loop.Post(ev); err != nil {
				if errors.Is(err, editor.ErrStopped) {
					send(c, errorMsg(observerproto.ErrStopped, err.Error()))
					break
				}
				send(c, errorMsg(observerproto.ErrBusy, err.Error()))
			}
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// Intent maps an inbound message to the bus event it stands for. code is set when err is.
func Intent(in observerproto.IntentMsg) (ev any, code string, err error) {
	switch in.Type {
	case observerproto.TypeUndo:
		return event.UndoAction{}, "", nil
	case observerproto.TypeRedo:
		return event.RedoAction{}, "", nil
	case observerproto.TypeDeleteArea:
		return event.DeleteTileItemsInActiveArea{}, "", nil
	case observerproto.TypeSelectArea:
		if in.Area == nil {
			return nil, observerproto.ErrBadRequest, errors.New("SELECT_AREA needs area")
		}
		a := *in.Area
		return event.SelectActiveArea{Area: dmm.NewArea(a[0], a[1], a[2], a[3])}, "", nil
	case observerproto.TypeSetZ:
		if in.Z < 1 {
			return nil, observerproto.ErrBadRequest, fmt.Errorf("SET_Z: bad z %d", in.Z)
		}
		return event.ChangeSelectedZ{Z: in.Z}, "", nil
	case observerproto.TypeMouse:
		return event.MapMousePosChanged{Pos: dmm.MapPos{X: in.X, Y: in.Y}}, "", nil
	case observerproto.TypeCopy:
		return event.CopyActiveArea{}, "", nil
	case observerproto.TypeCut:
		return event.CutActiveArea{}, "", nil
	case observerproto.TypePaste:
		return event.PasteClipboard{}, "", nil
	default:
		return nil, observerproto.ErrUnknownType, fmt.Errorf("unknown message type %q", in.Type)
	}
}

func (s *Server) sendState(b *bus.Bus, c *client) {
	st, _ := bus.Ask(b, func(r func(action.Status)) any { return event.FetchActionStatus{Reply: r} })
	cur, _ := bus.Ask(b, func(r func(*env.Environment)) any { return event.FetchOpenedEnvironment{Reply: r} })
	send(c, envMsg(cur, nil))
	send(c, mapMsg(b))
	send(c, statusMsg(st))
	if f, ok := frame.Capture(b); ok {
		send(c, frameMsg(f))
	}
}

func (s *Server) broadcastFrame(b *bus.Bus) {
	if s.Clients() == 0 {
		return
	}
	if f, ok := frame.Capture(b); ok {
		s.broadcast(frameMsg(f))
	}
}

// broadcast drops the message for observers whose queue is full; they catch up on the next
// frame.
func (s *Server) broadcast(v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.clients) == 0 {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		if s.log != nil {
			s.log.Printf("observer: marshal: %v", err)
		}
		return
	}
	for _, c := range s.clients {
		select {
		case c.out <- raw:
		default:
		}
	}
}

func send(c *client, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case c.out <- raw:
	default:
	}
}

func statusMsg(st action.Status) observerproto.ActionStatusMsg {
	return observerproto.ActionStatusMsg{Type: observerproto.TypeActionStatus, HasUndo: st.HasUndo, HasRedo: st.HasRedo}
}

func mapMsg(b *bus.Bus) observerproto.MapMsg {
	msg := observerproto.MapMsg{Type: observerproto.TypeMap}
	m, ok := bus.Ask(b, func(r func(*dmm.Map)) any { return event.FetchSelectedMap{Reply: r} })
	if !ok || m == nil {
		return msg
	}
	msg.Open = true
	msg.ID = m.ID
	msg.Name = m.Name
	msg.Path = m.Path
	msg.MaxX, msg.MaxY, msg.MaxZ = m.MaxX(), m.MaxY(), m.MaxZ()
	msg.Z = m.ZActive
	return msg
}

func envMsg(e *env.Environment, loadErr error) observerproto.EnvironmentMsg {
	msg := observerproto.EnvironmentMsg{Type: observerproto.TypeEnvironment}
	if e != nil {
		msg.Loaded = true
		msg.Name = e.Name
		msg.Path = e.Path
		msg.Types = e.Len()
	}
	if loadErr != nil {
		msg.Error = loadErr.Error()
	}
	return msg
}

func frameMsg(f frame.Frame) observerproto.FrameMsg {
	return observerproto.FrameMsg{
		Type:  observerproto.TypeFrame,
		MapID: f.MapID,
		Z:     f.Z,
		MaxX:  f.MaxX,
		MaxY:  f.MaxY,
		Area:  [4]int{f.Area.X1, f.Area.Y1, f.Area.X2, f.Area.Y2},
		Tiles: f.Tiles,
	}
}

func errorMsg(code, text string) observerproto.ErrorMsg {
	return observerproto.ErrorMsg{Type: observerproto.TypeError, Code: code, Message: text}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
