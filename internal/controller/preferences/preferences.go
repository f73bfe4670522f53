package preferences

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

const FileName = "preferences.json"

type Controller struct {
	bus   *bus.Bus
	log   *log.Logger
	group *bus.Group

	path  string
	prefs event.Preferences
}

// New reads dir/preferences.json, writing the defaults when it does not exist yet.
func New(b *bus.Bus, logger *log.Logger, dir string) (*Controller, error) {
	c := &Controller{bus: b, log: logger, group: bus.NewGroup(b), path: filepath.Join(dir, FileName)}
	raw, err := os.ReadFile(c.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		c.prefs = event.DefaultPreferences()
		if err := c.write(); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		c.prefs = event.DefaultPreferences()
		if err := json.Unmarshal(raw, &c.prefs); err != nil {
			return nil, fmt.Errorf("%s: %w", c.path, err)
		}
	}

	c.group.Add(bus.Subscribe(b, c.handleSave))
	c.group.Add(bus.MustProvide(b, c.handleFetch))
	return c, nil
}

func (c *Controller) Close() { c.group.Close() }

func (c *Controller) write() error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(c.prefs, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.path, b, 0o644)
}

func (c *Controller) handleSave(ev event.SavePreferences) {
	c.prefs = ev.Prefs
	if err := c.write(); err != nil && c.log != nil {
		c.log.Printf("preferences: %v", err)
	}
}

func (c *Controller) handleFetch(q event.FetchPreferences) { q.Reply(c.prefs) }
