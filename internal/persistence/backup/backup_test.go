package backup

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRotator_KeepsNewest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deck.dmm.zst")
	r := NewRotator(2)
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	n := 0
	r.now = func() time.Time { n++; return base.Add(time.Duration(n) * time.Second) }

	// nothing to back up yet
	if err := r.Backup(path); err != nil {
		t.Fatalf("backup missing file: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(path, []byte{byte('a' + i)}, 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if err := r.Backup(path); err != nil {
			t.Fatalf("backup %d: %v", i, err)
		}
	}

	all, err := List(path)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("backups: got %d want 2 (%v)", len(all), all)
	}
	b, _ := os.ReadFile(all[0])
	if string(b) != "c" {
		t.Fatalf("newest backup: got %q want c", b)
	}
	if _, err := os.Stat(all[0] + ".json"); err != nil {
		t.Fatalf("meta missing: %v", err)
	}
}

func TestRestore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deck.dmm.zst")
	r := NewRotator(1)
	if err := os.WriteFile(path, []byte("old"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := r.Backup(path); err != nil {
		t.Fatalf("backup: %v", err)
	}
	if err := os.WriteFile(path, []byte("new"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	all, _ := List(path)
	if len(all) != 1 {
		t.Fatalf("backups: %v", all)
	}
	got, err := Restore(all[0])
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if got != path {
		t.Fatalf("restore target: got %q want %q", got, path)
	}
	if b, _ := os.ReadFile(path); string(b) != "old" {
		t.Fatalf("restored content: %q", b)
	}
}

func TestRotator_Disabled(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "m.zst")
	_ = os.WriteFile(path, []byte("x"), 0o644)
	if err := NewRotator(0).Backup(path); err != nil {
		t.Fatalf("backup: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".backups")); !os.IsNotExist(err) {
		t.Fatalf("backups dir created while disabled")
	}
}
