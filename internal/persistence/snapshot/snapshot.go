package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"mapforge.dev/internal/dmm"
)

const Version = 1

// Header is written as a JSON line in front of the gob body so tools can read it without
// decoding the map.
type Header struct {
	Version int    `json:"version"`
	Name    string `json:"name"`
	MaxX    int    `json:"max_x"`
	MaxY    int    `json:"max_y"`
	MaxZ    int    `json:"max_z"`
	Stacks  int    `json:"stacks"`
	SavedAt string `json:"saved_at"`
	// Environment is the path of the environment the map was saved with.
	Environment string `json:"environment,omitempty"`
}

type MapV1 struct {
	Header Header
	Map    dmm.Snapshot
}

func FromMap(m *dmm.Map) MapV1 {
	s := m.ExportSnapshot()
	h := Header{
		Version: Version,
		Name:    m.Name,
		MaxX:    s.Size.MaxX,
		MaxY:    s.Size.MaxY,
		MaxZ:    s.Size.MaxZ,
		Stacks:  len(s.Palette),
		SavedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if hl := m.Holder(); hl != nil && hl.Env() != nil {
		h.Environment = hl.Env().Path
	}
	return MapV1{Header: h, Map: s}
}

// WriteMap writes to a temp file next to path and renames it into place.
func WriteMap(path string, snap MapV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := writeFile(tmp, snap); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func writeFile(path string, snap MapV1) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return f.Close()
}

func ReadMap(path string) (MapV1, error) {
	var snap MapV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)
	// header line; the gob body repeats it
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported map version %d", snap.Header.Version)
	}
	return snap, nil
}

// ReadHeader decodes only the leading JSON line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("header: %w", err)
	}
	return h, nil
}
