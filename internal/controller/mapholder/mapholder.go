package mapholder

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"path/filepath"
	"sort"
	"strings"

	"mapforge.dev/internal/action"
	"mapforge.dev/internal/bus"
	"mapforge.dev/internal/dmm"
	"mapforge.dev/internal/event"
)

var (
	ErrNoEnvironment = errors.New("mapholder: no environment loaded")
	ErrNoPath        = errors.New("mapholder: map has no file path")
)

// Store reads and writes map files.
type Store interface {
	Load(path string, h *dmm.Holder) (*dmm.Map, error)
	Save(path string, m *dmm.Map) error
}

// Controller owns the opened maps and which one is selected.
type Controller struct {
	bus   *bus.Bus
	log   *log.Logger
	group *bus.Group
	store Store

	defaultSize dmm.MapSize
	holder      *dmm.Holder
	maps        []*dmm.Map
	selected    *dmm.Map
	nextID      int
}

func New(b *bus.Bus, logger *log.Logger, store Store, defaultSize dmm.MapSize) *Controller {
	c := &Controller{bus: b, log: logger, group: bus.NewGroup(b), store: store, defaultSize: defaultSize}
	c.group.Add(bus.Subscribe(b, c.handleEnvironmentChanged))
	c.group.Add(bus.Subscribe(b, c.handleEnvironmentReset))
	c.group.Add(bus.Subscribe(b, c.handleCreateNewMap))
	c.group.Add(bus.Subscribe(b, c.handleOpenMap))
	c.group.Add(bus.Subscribe(b, c.handleSwitchMap))
	c.group.Add(bus.Subscribe(b, c.handleCloseSelectedMap))
	c.group.Add(bus.Subscribe(b, c.handleCloseAllMaps))
	c.group.Add(bus.Subscribe(b, c.handleSaveSelectedMap))
	c.group.Add(bus.Subscribe(b, c.handleSaveSelectedMapToFile))
	c.group.Add(bus.Subscribe(b, c.handleSaveAllMaps))
	c.group.Add(bus.Subscribe(b, c.handleChangeSelectedZ))
	c.group.Add(bus.Subscribe(b, c.handleActionApplied))
	c.group.Add(bus.MustProvide(b, c.handleFetchSelectedMap))
	c.group.Add(bus.MustProvide(b, c.handleFetchAllOpenedMaps))
	c.group.Add(bus.MustProvide(b, c.handleFetchAvailableMaps))
	return c
}

func (c *Controller) Close() { c.group.Close() }

func mapName(path string) string {
	base := filepath.Base(path)
	if strings.HasSuffix(base, dmm.FileExt) {
		return strings.TrimSuffix(base, dmm.FileExt)
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (c *Controller) add(m *dmm.Map) {
	c.nextID++
	m.ID = c.nextID
	c.maps = append(c.maps, m)
	c.selectMap(m)
}

func (c *Controller) selectMap(m *dmm.Map) {
	if c.selected == m {
		return
	}
	c.selected = m
	c.bus.Publish(event.SelectedMapChanged{Map: m})
	c.bus.Publish(event.RefreshFrame{})
}

func (c *Controller) handleEnvironmentChanged(ev event.EnvironmentChanged) {
	c.holder = ev.Holder
}

func (c *Controller) handleEnvironmentReset(event.EnvironmentReset) {
	c.closeAll()
	c.holder = nil
}

func (c *Controller) handleCreateNewMap(ev event.CreateNewMap) {
	if c.holder == nil {
		c.fail(ev.Path, ErrNoEnvironment)
		return
	}
	size := ev.Size
	if size == (dmm.MapSize{}) {
		size = c.defaultSize
	}
	name := "untitled"
	if ev.Path != "" {
		name = mapName(ev.Path)
	}
	m, err := dmm.New(c.holder, name, size)
	if err != nil {
		c.fail(ev.Path, err)
		return
	}
	m.Path = ev.Path
	c.add(m)
}

func (c *Controller) handleOpenMap(ev event.OpenMap) {
	for _, m := range c.maps {
		if m.Path == ev.Path {
			c.selectMap(m)
			return
		}
	}
	if c.holder == nil {
		c.fail(ev.Path, ErrNoEnvironment)
		return
	}
	m, err := c.store.Load(ev.Path, c.holder)
	if err != nil {
		c.fail(ev.Path, err)
		return
	}
	m.Path = ev.Path
	if m.Name == "" {
		m.Name = mapName(ev.Path)
	}
	c.add(m)
}

func (c *Controller) fail(path string, err error) {
	if c.log != nil {
		c.log.Printf("map %q: %v", path, err)
	}
	c.bus.Publish(event.MapLoadFailed{Path: path, Err: err})
}

func (c *Controller) handleSwitchMap(ev event.SwitchMap) {
	for _, m := range c.maps {
		if m.ID == ev.MapID {
			c.selectMap(m)
			return
		}
	}
}

func (c *Controller) handleCloseSelectedMap(event.CloseSelectedMap) {
	if c.selected == nil {
		return
	}
	closing := c.selected
	idx := 0
	for i, m := range c.maps {
		if m == closing {
			idx = i
			break
		}
	}
	c.maps = append(c.maps[:idx], c.maps[idx+1:]...)
	c.selected = nil
	c.bus.Publish(event.OpenedMapClosed{Map: closing})

	if len(c.maps) == 0 {
		c.bus.Publish(event.SelectedMapClosed{})
		c.bus.Publish(event.RefreshFrame{})
		return
	}
	c.selectMap(c.maps[max(idx-1, 0)])
}

func (c *Controller) handleCloseAllMaps(event.CloseAllMaps) { c.closeAll() }

func (c *Controller) closeAll() {
	if len(c.maps) == 0 {
		return
	}
	maps := c.maps
	c.maps = nil
	c.selected = nil
	for _, m := range maps {
		c.bus.Publish(event.OpenedMapClosed{Map: m})
	}
	c.bus.Publish(event.SelectedMapClosed{})
	c.bus.Publish(event.RefreshFrame{})
}

func (c *Controller) save(m *dmm.Map, path string) error {
	if path == "" {
		return fmt.Errorf("%w: %s", ErrNoPath, m.Name)
	}
	if err := c.store.Save(path, m); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	m.Path = path
	c.bus.Publish(event.MapSaved{Map: m, Path: path})
	return nil
}

func (c *Controller) handleSaveSelectedMap(event.SaveSelectedMap) {
	if c.selected == nil {
		return
	}
	if err := c.save(c.selected, c.selected.Path); err != nil {
		c.logf("%v", err)
	}
}

func (c *Controller) handleSaveSelectedMapToFile(ev event.SaveSelectedMapToFile) {
	if c.selected == nil {
		return
	}
	if err := c.save(c.selected, ev.Path); err != nil {
		c.logf("%v", err)
	}
}

func (c *Controller) handleSaveAllMaps(event.SaveAllMaps) {
	for _, m := range c.maps {
		if err := c.save(m, m.Path); err != nil {
			c.logf("%v", err)
		}
	}
}

func (c *Controller) handleChangeSelectedZ(ev event.ChangeSelectedZ) {
	m := c.selected
	if m == nil {
		return
	}
	z := min(max(ev.Z, 1), m.MaxZ())
	if z == m.ZActive {
		return
	}
	m.ZActive = z
	c.bus.Publish(event.SelectedMapZActiveChanged{Z: z})
	c.bus.Publish(event.RefreshFrame{})
}

func (c *Controller) handleFetchSelectedMap(q event.FetchSelectedMap) {
	if c.selected != nil {
		q.Reply(c.selected)
	}
}

func (c *Controller) handleFetchAllOpenedMaps(q event.FetchAllOpenedMaps) {
	out := make([]*dmm.Map, len(c.maps))
	copy(out, c.maps)
	q.Reply(out)
}

func (c *Controller) logf(format string, args ...any) {
	if c.log != nil {
		c.log.Printf(format, args...)
	}
}

// handleActionApplied reports bounds and level changes made by resize history steps. The
// modifier announces the size of a fresh push itself.
func (c *Controller) handleActionApplied(ev event.ActionApplied) {
	m := c.selected
	if m == nil || ev.MapID != m.ID {
		return
	}
	r, ok := action.FindResize(ev.Action)
	if !ok {
		return
	}
	if ev.Op != event.OpPush {
		c.bus.Publish(event.SelectedMapMapSizeChanged{Size: m.Size()})
	}
	if r.ClampsZ() {
		c.bus.Publish(event.SelectedMapZActiveChanged{Z: m.ZActive})
	}
}

func (c *Controller) handleFetchAvailableMaps(q event.FetchAvailableMaps) {
	if c.holder == nil || c.holder.Env().RootDir == "" {
		q.Reply(nil)
		return
	}
	files, err := availableMaps(c.holder.Env().RootDir)
	if err != nil {
		c.logf("available maps: %v", err)
	}
	q.Reply(files)
}

// availableMaps walks root for map files, skipping dot directories, sorted by relative path.
func availableMaps(root string) ([]event.MapFile, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	var out []event.MapFile
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), dmm.FileExt) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		out = append(out, event.MapFile{Path: path, Rel: filepath.ToSlash(rel)})
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Rel < out[j].Rel })
	return out, err
}
