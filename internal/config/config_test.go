package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HistoryLimit != 200 || cfg.DefaultMapSize != (MapSize{X: 32, Y: 32, Z: 1}) {
		t.Fatalf("defaults: %+v", cfg)
	}
}

func TestLoad_OverridesAndNormalizes(t *testing.T) {
	p := filepath.Join(t.TempDir(), "editor.yaml")
	body := []byte("data_dir: \"  \"\nhistory_limit: -5\ndefault_map_size: {x: 10, y: 20, z: 2}\nobserver_listen: 127.0.0.1:7070\n")
	if err := os.WriteFile(p, body, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DataDir != "./data" || cfg.HistoryLimit != 0 || cfg.ObserverListen != "127.0.0.1:7070" {
		t.Fatalf("normalized: %+v", cfg)
	}
	if cfg.DefaultMapSize != (MapSize{X: 10, Y: 20, Z: 2}) || !cfg.ActionLog {
		t.Fatalf("overrides: %+v", cfg)
	}
}

func TestLoad_RejectsBadMapSize(t *testing.T) {
	p := filepath.Join(t.TempDir(), "editor.yaml")
	if err := os.WriteFile(p, []byte("default_map_size: {x: 0, y: 1, z: 1}\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(p); err == nil {
		t.Fatalf("load accepted a zero map size")
	}
}

func TestLoad_SampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "editor.yaml"))
	if err != nil {
		t.Fatalf("load sample: %v", err)
	}
	if cfg.IndexDB != "index.sqlite" || cfg.KeepBackups != 3 || cfg.ObserverListen == "" {
		t.Fatalf("sample: %+v", cfg)
	}
}
