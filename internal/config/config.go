package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// DataDir holds recent.json, preferences.json and the action journal.
	DataDir    string `yaml:"data_dir"`
	ParserPath string `yaml:"parser_path"`

	HistoryLimit   int     `yaml:"history_limit"`
	DefaultMapSize MapSize `yaml:"default_map_size"`
	InboxSize      int     `yaml:"inbox_size"`

	ObserverListen string `yaml:"observer_listen"`
	ActionLog      bool   `yaml:"action_log"`
	IndexDB        string `yaml:"index_db"`
	KeepBackups    int    `yaml:"keep_backups"`
}

type MapSize struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
	Z int `yaml:"z"`
}

func Defaults() Config {
	return Config{
		DataDir:        "./data",
		HistoryLimit:   200,
		DefaultMapSize: MapSize{X: 32, Y: 32, Z: 1},
		InboxSize:      256,
		ObserverListen: "",
		ActionLog:      true,
		IndexDB:        "index.sqlite",
		KeepBackups:    3,
	}
}

func Load(path string) (Config, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return cfg, nil
}

func (c *Config) Normalize() {
	if c == nil {
		return
	}
	c.DataDir = strings.TrimSpace(c.DataDir)
	if c.DataDir == "" {
		c.DataDir = "./data"
	}
	c.ParserPath = strings.TrimSpace(c.ParserPath)
	c.ObserverListen = strings.TrimSpace(c.ObserverListen)
	c.IndexDB = strings.TrimSpace(c.IndexDB)
	if c.InboxSize <= 0 {
		c.InboxSize = 256
	}
	if c.HistoryLimit < 0 {
		c.HistoryLimit = 0
	}
	if c.KeepBackups < 0 {
		c.KeepBackups = 0
	}
}

func (c Config) Validate() error {
	s := c.DefaultMapSize
	if s.X < 1 || s.Y < 1 || s.Z < 1 {
		return fmt.Errorf("default_map_size must be at least 1x1x1, got %dx%dx%d", s.X, s.Y, s.Z)
	}
	if c.IndexDB != "" && c.IndexDB != ":memory:" && filepath.Ext(c.IndexDB) == "" {
		return errors.New("index_db must be a file path with an extension")
	}
	return nil
}
