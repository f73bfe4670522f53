package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"mapforge.dev/internal/controller/actions"
)

type JSONLZstdWriter struct {
	baseDir string
	prefix  string

	now func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
		now:     time.Now,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	dir := filepath.Dir(w.pathForHour(hour))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.pathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curHour = hour
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	return err1
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// ActionLogger writes one JSONL entry per history transition (compressed). Every map gets
// its own directory under <dataDir>/actions, named by MapSlug of the map name, so one map's
// history can be read without scanning the others.
type ActionLogger struct {
	dir string
	now func() time.Time

	mu      sync.Mutex
	writers map[string]*JSONLZstdWriter
}

func NewActionLogger(dataDir string) *ActionLogger {
	return &ActionLogger{
		dir:     filepath.Join(dataDir, "actions"),
		now:     time.Now,
		writers: make(map[string]*JSONLZstdWriter),
	}
}

func (l *ActionLogger) WriteAction(e actions.Entry) error {
	slug := MapSlug(e.MapName)
	l.mu.Lock()
	w, ok := l.writers[slug]
	if !ok {
		w = NewJSONLZstdWriter(filepath.Join(l.dir, slug), "actions")
		w.now = l.now
		l.writers[slug] = w
	}
	l.mu.Unlock()
	return w.Write(e)
}

func (l *ActionLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var errs []error
	for slug, w := range l.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", slug, err))
		}
	}
	l.writers = make(map[string]*JSONLZstdWriter)
	return errors.Join(errs...)
}

// MapSlug turns a map name into a directory name. Unnamed maps share "untitled".
func MapSlug(name string) string {
	slug := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, strings.TrimSpace(name))
	if slug == "" {
		return "untitled"
	}
	return slug
}
