package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/gdamore/tcell/v2"

	"mapforge.dev/internal/action"
	"mapforge.dev/internal/bus"
	"mapforge.dev/internal/config"
	"mapforge.dev/internal/dmm"
	"mapforge.dev/internal/editor"
	"mapforge.dev/internal/event"
	"mapforge.dev/internal/frame"
	"mapforge.dev/internal/persistence/backup"
	"mapforge.dev/internal/persistence/snapshot"
)

type viewer struct {
	screen tcell.Screen
	ed     *editor.Editor
	ctx    context.Context

	frame  frame.Frame
	have   bool
	status action.Status
	msg    string

	cursorX, cursorY int
	anchor           *dmm.MapPos
	itemType         string
}

func main() {
	var (
		configPath = flag.String("config", "", "path to editor.yaml (optional)")
		envPath    = flag.String("env", "", "environment to open (.dme or parsed .json)")
		mapPath    = flag.String("map", "", "map file to open; created on save when missing")
		itemType   = flag.String("item", "", "type-path placed by the fill key")
	)
	flag.Parse()
	if *envPath == "" {
		fmt.Fprintln(os.Stderr, "missing -env")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		fmt.Fprintln(os.Stderr, "data dir:", err)
		os.Exit(1)
	}
	// the screen owns stdout; log to a file in the data dir
	lf, err := os.OpenFile(filepath.Join(cfg.DataDir, "mapview.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintln(os.Stderr, "log file:", err)
		os.Exit(1)
	}
	defer lf.Close()
	logger := log.New(lf, "[mapview] ", log.LstdFlags|log.Lmicroseconds)

	rotator := backup.NewRotator(cfg.KeepBackups)
	ed, err := editor.New(cfg, logger, editor.Options{Store: snapshot.Store{BeforeWrite: rotator.Backup}})
	if err != nil {
		logger.Fatalf("editor: %v", err)
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		logger.Fatalf("screen: %v", err)
	}
	if err := screen.Init(); err != nil {
		logger.Fatalf("screen init: %v", err)
	}
	defer screen.Fini()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runErr := make(chan error, 1)
	go func() { runErr <- ed.Run(ctx) }()

	v := &viewer{screen: screen, ed: ed, ctx: ctx, cursorX: 1, cursorY: 1, itemType: *itemType, msg: "loading " + *envPath}
	frames := make(chan frame.Frame, 1)
	notes := make(chan string, 16)
	statuses := make(chan action.Status, 1)

	if err := ed.Do(ctx, func(b *bus.Bus) {
		bus.Subscribe(b, func(event.RefreshFrame) {
			if f, ok := frame.Capture(b); ok {
				offer(frames, f)
			}
			b.Publish(event.FrameRefreshed{})
		})
		bus.Subscribe(b, func(event.SelectedMapChanged) {
			if f, ok := frame.Capture(b); ok {
				offer(frames, f)
			}
		})
		bus.Subscribe(b, func(ev event.ActionStatusChanged) { offer(statuses, ev.Status) })
		bus.Subscribe(b, func(ev event.EnvironmentLoaded) {
			if ev.Err != nil {
				note(notes, fmt.Sprintf("environment: %v", ev.Err))
				return
			}
			note(notes, "environment "+filepath.Base(ev.Path))
		})
		bus.Subscribe(b, func(event.EnvironmentChanged) {
			if *mapPath == "" {
				b.Publish(event.CreateNewMap{})
				return
			}
			if _, err := os.Stat(*mapPath); err == nil {
				b.Publish(event.OpenMap{Path: *mapPath})
			} else {
				b.Publish(event.CreateNewMap{Path: *mapPath})
			}
		})
		bus.Subscribe(b, func(ev event.MapLoadFailed) { note(notes, fmt.Sprintf("map %s: %v", ev.Path, ev.Err)) })
		bus.Subscribe(b, func(ev event.MapSaved) { note(notes, "saved "+ev.Path) })
		bus.Subscribe(b, func(ev event.ClipboardChanged) {
			if ev.Width > 0 {
				note(notes, fmt.Sprintf("copied %dx%d", ev.Width, ev.Height))
			}
		})
	}); err != nil {
		logger.Fatalf("subscribe: %v", err)
	}
	_ = ed.Post(event.OpenEnvironment{Path: *envPath})

	input := make(chan tcell.Event, 16)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			input <- ev
		}
	}()

	v.draw()
	for {
		select {
		case err := <-runErr:
			if err != nil && err != context.Canceled {
				logger.Printf("editor stopped: %v", err)
			}
			return
		case f := <-frames:
			v.frame, v.have = f, true
			v.cursorX = min(max(v.cursorX, 1), f.MaxX)
			v.cursorY = min(max(v.cursorY, 1), f.MaxY)
		case st := <-statuses:
			v.status = st
		case m := <-notes:
			v.msg = m
		case ev := <-input:
			if !v.handle(ev) {
				cancel()
				<-runErr
				return
			}
		}
		v.draw()
	}
}

// offer replaces whatever is pending in a one-slot channel.
func offer[T any](ch chan T, v T) {
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}

func note(ch chan string, s string) {
	select {
	case ch <- s:
	default:
	}
}

func (v *viewer) post(ev any) {
	if err := v.ed.Post(ev); err != nil {
		v.msg = err.Error()
	}
}

// handle returns false when the viewer should quit.
func (v *viewer) handle(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		v.screen.Sync()
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return false
		case tcell.KeyLeft:
			v.move(-1, 0)
		case tcell.KeyRight:
			v.move(1, 0)
		case tcell.KeyUp:
			v.move(0, 1)
		case tcell.KeyDown:
			v.move(0, -1)
		case tcell.KeyRune:
			return v.handleRune(ev.Rune())
		}
	}
	return true
}

func (v *viewer) handleRune(r rune) bool {
	switch r {
	case 'q':
		return false
	case 'u':
		v.post(event.UndoAction{})
	case 'r':
		v.post(event.RedoAction{})
	case 'd':
		v.post(event.DeleteTileItemsInActiveArea{})
	case 's':
		v.post(event.SaveSelectedMap{})
	case '+':
		v.post(event.ChangeSelectedZ{Z: v.frame.Z + 1})
	case '-':
		v.post(event.ChangeSelectedZ{Z: v.frame.Z - 1})
	case ' ':
		p := dmm.MapPos{X: v.cursorX, Y: v.cursorY}
		if v.anchor == nil {
			v.anchor = &p
			v.post(event.SelectActiveArea{Area: dmm.NewArea(p.X, p.Y, p.X, p.Y)})
		} else {
			v.post(event.SelectActiveArea{Area: dmm.NewArea(v.anchor.X, v.anchor.Y, p.X, p.Y)})
			v.anchor = nil
		}
	case 'f':
		v.fill()
	case 'c':
		v.post(event.CopyActiveArea{})
	case 'x':
		v.post(event.CutActiveArea{})
	case 'v':
		v.post(event.MapMousePosChanged{Pos: dmm.MapPos{X: v.cursorX, Y: v.cursorY}})
		v.post(event.PasteClipboard{})
	}
	return true
}

func (v *viewer) fill() {
	if v.itemType == "" {
		v.msg = "no -item given"
		return
	}
	typ := v.itemType
	var fillErr error
	err := v.ed.Do(v.ctx, func(b *bus.Bus) {
		h, ok := bus.Ask(b, func(r func(*dmm.Holder)) any { return event.FetchTileItemHolder{Reply: r} })
		if !ok {
			fillErr = fmt.Errorf("no environment")
			return
		}
		item, err := h.Pure(typ)
		if err != nil {
			fillErr = err
			return
		}
		b.Publish(event.FillActiveAreaWithTileItem{Item: item})
	})
	if err == nil {
		err = fillErr
	}
	if err != nil {
		v.msg = err.Error()
	}
}

func (v *viewer) move(dx, dy int) {
	if !v.have {
		return
	}
	v.cursorX = min(max(v.cursorX+dx, 1), v.frame.MaxX)
	v.cursorY = min(max(v.cursorY+dy, 1), v.frame.MaxY)
	v.post(event.MapMousePosChanged{Pos: dmm.MapPos{X: v.cursorX, Y: v.cursorY}})
}

func (v *viewer) draw() {
	s := v.screen
	s.Clear()
	_, height := s.Size()

	if v.have {
		f := v.frame
		// y grows upwards on the map and downwards on screen
		for y := 1; y <= f.MaxY; y++ {
			row := f.MaxY - y
			if row >= height-2 {
				continue
			}
			for x := 1; x <= f.MaxX; x++ {
				ch, style := glyph(f.Top(x, y))
				if !f.Area.IsZero() && f.Area.Contains(x, y) {
					style = style.Reverse(true)
				}
				if x == v.cursorX && y == v.cursorY {
					style = style.Underline(true).Bold(true)
				}
				s.SetContent(x-1, row, ch, nil, style)
			}
		}
	}

	status := fmt.Sprintf("z=%d (%d,%d) undo=%t redo=%t", v.frame.Z, v.cursorX, v.cursorY, v.status.HasUndo, v.status.HasRedo)
	if v.have {
		status = v.frame.MapName + " " + status
		if top := v.frame.Top(v.cursorX, v.cursorY); top != "" {
			status += " " + top
		}
	}
	drawText(s, 0, height-2, status, tcell.StyleDefault.Foreground(tcell.ColorYellow))
	drawText(s, 0, height-1, v.msg, tcell.StyleDefault)
	s.Show()
}

func drawText(s tcell.Screen, x, y int, text string, style tcell.Style) {
	for i, r := range []rune(text) {
		s.SetContent(x+i, y, r, nil, style)
	}
}

// glyph picks a cell for the topmost visible type: the first letter of its last path segment,
// colored by root type.
func glyph(typ string) (rune, tcell.Style) {
	if typ == "" {
		return ' ', tcell.StyleDefault
	}
	name := typ[strings.LastIndexByte(typ, '/')+1:]
	ch := '?'
	if name != "" {
		ch = []rune(name)[0]
	}
	style := tcell.StyleDefault
	switch {
	case strings.HasPrefix(typ, "/turf"):
		style = style.Foreground(tcell.ColorGreen)
		ch = '.'
	case strings.HasPrefix(typ, "/area"):
		style = style.Foreground(tcell.ColorGray)
		ch = ' '
	case strings.HasPrefix(typ, "/mob"):
		style = style.Foreground(tcell.ColorRed)
	case strings.HasPrefix(typ, "/obj"):
		style = style.Foreground(tcell.ColorBlue)
	}
	return ch, style
}
