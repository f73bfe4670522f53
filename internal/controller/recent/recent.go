package recent

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"mapforge.dev/internal/bus"
	"mapforge.dev/internal/event"
)

const FileName = "recent.json"

// Files is the on-disk recent files document. Maps are keyed by environment path.
type Files struct {
	Environments []string            `json:"environments"`
	Maps         map[string][]string `json:"maps"`
}

// Controller keeps the recent environments and per-environment recent maps, most recent first.
type Controller struct {
	bus   *bus.Bus
	log   *log.Logger
	group *bus.Group

	path    string
	files   Files
	envPath string
}

// New reads dir/recent.json, creating it when missing. Entries whose files are gone are dropped.
func New(b *bus.Bus, logger *log.Logger, dir string) (*Controller, error) {
	c := &Controller{bus: b, log: logger, group: bus.NewGroup(b), path: filepath.Join(dir, FileName)}
	if err := c.read(); err != nil {
		return nil, err
	}
	c.validate()

	c.group.Add(bus.Subscribe(b, c.handleEnvironmentChanged))
	c.group.Add(bus.Subscribe(b, c.handleEnvironmentReset))
	c.group.Add(bus.Subscribe(b, c.handleSelectedMapChanged))
	c.group.Add(bus.Subscribe(b, c.handleMapSaved))
	c.group.Add(bus.Subscribe(b, c.handleClearEnvironments))
	c.group.Add(bus.Subscribe(b, c.handleClearMaps))
	c.group.Add(bus.MustProvide(b, c.handleFetchEnvironments))
	c.group.Add(bus.MustProvide(b, c.handleFetchMaps))
	return c, nil
}

func (c *Controller) Close() { c.group.Close() }

func (c *Controller) read() error {
	b, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		c.files = Files{Maps: map[string][]string{}}
		return c.write()
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, &c.files); err != nil {
		return fmt.Errorf("%s: %w", c.path, err)
	}
	if c.files.Maps == nil {
		c.files.Maps = map[string][]string{}
	}
	return nil
}

func (c *Controller) write() error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(c.files, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.path, b, 0o644)
}

func (c *Controller) save() {
	if err := c.write(); err != nil && c.log != nil {
		c.log.Printf("recent files: %v", err)
	}
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

func (c *Controller) validate() {
	envs := c.files.Environments[:0]
	for _, p := range c.files.Environments {
		if exists(p) {
			envs = append(envs, p)
		}
	}
	c.files.Environments = envs
	for envPath, maps := range c.files.Maps {
		if !exists(envPath) {
			delete(c.files.Maps, envPath)
			continue
		}
		kept := maps[:0]
		for _, p := range maps {
			if exists(p) {
				kept = append(kept, p)
			}
		}
		c.files.Maps[envPath] = kept
	}
}

func pushFront(list []string, p string) []string {
	out := make([]string, 0, len(list)+1)
	out = append(out, p)
	for _, v := range list {
		if v != p {
			out = append(out, v)
		}
	}
	return out
}

func (c *Controller) addMap(p string) {
	if c.envPath == "" || p == "" {
		return
	}
	c.files.Maps[c.envPath] = pushFront(c.files.Maps[c.envPath], p)
	c.save()
}

func (c *Controller) handleEnvironmentChanged(ev event.EnvironmentChanged) {
	c.envPath = ev.Env.Path
	if c.envPath == "" {
		return
	}
	c.files.Environments = pushFront(c.files.Environments, c.envPath)
	c.save()
}

func (c *Controller) handleEnvironmentReset(event.EnvironmentReset) { c.envPath = "" }

func (c *Controller) handleSelectedMapChanged(ev event.SelectedMapChanged) { c.addMap(ev.Map.Path) }

func (c *Controller) handleMapSaved(ev event.MapSaved) { c.addMap(ev.Path) }

func (c *Controller) handleClearEnvironments(event.ClearRecentEnvironments) {
	c.files.Environments = nil
	c.save()
}

func (c *Controller) handleClearMaps(event.ClearRecentMaps) {
	if c.envPath == "" {
		return
	}
	delete(c.files.Maps, c.envPath)
	c.save()
}

func (c *Controller) handleFetchEnvironments(q event.FetchRecentEnvironments) {
	q.Reply(append([]string(nil), c.files.Environments...))
}

func (c *Controller) handleFetchMaps(q event.FetchRecentMaps) {
	q.Reply(append([]string(nil), c.files.Maps[c.envPath]...))
}
