package actions

import (
	"log"
	"time"

	"mapforge.dev/internal/action"
	"mapforge.dev/internal/bus"
	"mapforge.dev/internal/dmm"
	"mapforge.dev/internal/event"
)

// Journal receives one entry per history transition.
type Journal interface {
	WriteAction(entry Entry) error
}

type Entry struct {
	At      time.Time           `json:"at"`
	Op      string              `json:"op"`
	MapID   int                 `json:"map_id"`
	MapName string              `json:"map_name"`
	MapPath string              `json:"map_path,omitempty"`
	Changes []action.TileChange `json:"changes,omitempty"`
	Resize  *ResizeInfo         `json:"resize,omitempty"`
}

type ResizeInfo struct {
	From    dmm.MapSize `json:"from"`
	To      dmm.MapSize `json:"to"`
	Dropped int         `json:"dropped"`
}

// Controller keeps one history per opened map and exposes the selected map's history on the bus.
type Controller struct {
	bus   *bus.Bus
	log   *log.Logger
	limit int
	group *bus.Group

	histories map[*dmm.Map]*action.History
	current   *dmm.Map
	journals  []Journal

	now func() time.Time
}

func New(b *bus.Bus, logger *log.Logger, limit int, journals ...Journal) *Controller {
	c := &Controller{
		bus:       b,
		log:       logger,
		limit:     limit,
		group:     bus.NewGroup(b),
		histories: make(map[*dmm.Map]*action.History),
		journals:  journals,
		now:       time.Now,
	}
	c.group.Add(bus.Subscribe(b, c.handleAddAction))
	c.group.Add(bus.Subscribe(b, c.handleUndo))
	c.group.Add(bus.Subscribe(b, c.handleRedo))
	c.group.Add(bus.Subscribe(b, c.handleSelectedMapChanged))
	c.group.Add(bus.Subscribe(b, c.handleSelectedMapClosed))
	c.group.Add(bus.Subscribe(b, c.handleOpenedMapClosed))
	c.group.Add(bus.Subscribe(b, c.handleEnvironmentReset))
	c.group.Add(bus.MustProvide(b, c.handleFetchStatus))
	return c
}

func (c *Controller) Close() { c.group.Close() }

func (c *Controller) history() *action.History {
	if c.current == nil {
		return nil
	}
	h, ok := c.histories[c.current]
	if !ok {
		h = action.NewHistory(c.limit)
		c.histories[c.current] = h
	}
	return h
}

func (c *Controller) status() action.Status {
	if h := c.history(); h != nil {
		return h.Status()
	}
	return action.Status{}
}

func (c *Controller) publishStatus() {
	c.bus.Publish(event.ActionStatusChanged{Status: c.status()})
}

func (c *Controller) handleAddAction(ev event.AddAction) {
	h := c.history()
	if h == nil {
		c.logf("add action without a selected map")
		return
	}
	if err := h.Push(ev.Action); err != nil {
		c.logf("add action: %v", err)
		return
	}
	c.applied(event.OpPush, ev.Action)
	c.publishStatus()
}

func (c *Controller) handleUndo(event.UndoAction) {
	if h := c.history(); h != nil {
		if a := h.Undo(); a != nil {
			c.applied(event.OpUndo, a)
			c.bus.Publish(event.RefreshFrame{})
		}
	}
	c.publishStatus()
}

func (c *Controller) handleRedo(event.RedoAction) {
	if h := c.history(); h != nil {
		if a := h.Redo(); a != nil {
			c.applied(event.OpRedo, a)
			c.bus.Publish(event.RefreshFrame{})
		}
	}
	c.publishStatus()
}

func (c *Controller) applied(op string, a action.Undoable) {
	c.bus.Publish(event.ActionApplied{Op: op, MapID: c.current.ID, Action: a})
	if len(c.journals) == 0 {
		return
	}
	entry := Entry{
		At:      c.now().UTC(),
		Op:      op,
		MapID:   c.current.ID,
		MapName: c.current.Name,
		MapPath: c.current.Path,
		Changes: action.Changes(a),
	}
	if r, ok := a.(*action.Resize); ok {
		entry.Resize = &ResizeInfo{From: r.From, To: r.To, Dropped: len(r.Dropped)}
	}
	for _, j := range c.journals {
		if err := j.WriteAction(entry); err != nil {
			c.logf("journal write: %v", err)
		}
	}
}

func (c *Controller) handleSelectedMapChanged(ev event.SelectedMapChanged) {
	c.current = ev.Map
	c.publishStatus()
}

func (c *Controller) handleSelectedMapClosed(event.SelectedMapClosed) {
	c.current = nil
	c.publishStatus()
}

func (c *Controller) handleOpenedMapClosed(ev event.OpenedMapClosed) {
	delete(c.histories, ev.Map)
}

func (c *Controller) handleEnvironmentReset(event.EnvironmentReset) {
	c.histories = make(map[*dmm.Map]*action.History)
	c.current = nil
	c.publishStatus()
}

func (c *Controller) handleFetchStatus(q event.FetchActionStatus) {
	q.Reply(c.status())
}

func (c *Controller) logf(format string, args ...any) {
	if c.log != nil {
		c.log.Printf(format, args...)
	}
}
