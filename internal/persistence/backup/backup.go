package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

type Meta struct {
	Source    string `json:"source"`
	Backup    string `json:"backup"`
	Size      int64  `json:"size"`
	CreatedAt string `json:"created_at"`
}

// Rotator copies a map file into `<dir>/.backups/` before it is overwritten and keeps the
// newest Keep copies per file. Keep <= 0 disables backups.
type Rotator struct {
	Keep int
	now  func() time.Time
}

func NewRotator(keep int) *Rotator {
	return &Rotator{Keep: keep, now: time.Now}
}

// Backup is a snapshot.Store BeforeWrite hook. A missing source is not an error.
func (r *Rotator) Backup(path string) error {
	if r.Keep <= 0 {
		return nil
	}
	st, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	dir := filepath.Join(filepath.Dir(path), ".backups")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	base := filepath.Base(path)
	now := r.now().UTC()
	stamp := fmt.Sprintf("%s%09d", now.Format("20060102T150405"), now.Nanosecond())
	dst := filepath.Join(dir, fmt.Sprintf("%s.%s.bak", base, stamp))
	if err := copyFile(path, dst); err != nil {
		return err
	}

	meta := Meta{
		Source:    path,
		Backup:    filepath.Base(dst),
		Size:      st.Size(),
		CreatedAt: now.Format(time.RFC3339Nano),
	}
	if b, err := json.MarshalIndent(meta, "", "  "); err == nil {
		_ = os.WriteFile(dst+".json", b, 0o644)
	}
	return r.prune(dir, base)
}

// List returns the backups of path, newest first.
func List(path string) ([]string, error) {
	dir := filepath.Join(filepath.Dir(path), ".backups")
	matches, err := filepath.Glob(filepath.Join(dir, filepath.Base(path)+".*.bak"))
	if err != nil {
		return nil, err
	}
	sort.Sort(sort.Reverse(sort.StringSlice(matches)))
	return matches, nil
}

func (r *Rotator) prune(dir, base string) error {
	all, err := List(filepath.Join(dir, "..", base))
	if err != nil {
		return err
	}
	for i, p := range all {
		if i < r.Keep {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		_ = os.Remove(p + ".json")
	}
	return nil
}

// Restore copies a backup over its source file.
func Restore(backupPath string) (string, error) {
	name := filepath.Base(backupPath)
	if !strings.HasSuffix(name, ".bak") {
		return "", fmt.Errorf("not a backup: %s", backupPath)
	}
	trimmed := strings.TrimSuffix(name, ".bak")
	i := strings.LastIndexByte(trimmed, '.')
	if i <= 0 {
		return "", fmt.Errorf("not a backup: %s", backupPath)
	}
	dst := filepath.Join(filepath.Dir(filepath.Dir(backupPath)), trimmed[:i])
	return dst, copyFile(backupPath, dst)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
