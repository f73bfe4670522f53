package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/zstd"

	"mapforge.dev/internal/controller/actions"
)

// Files lists the hourly files written under dir for prefix, oldest first.
func Files(dir, prefix string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, prefix+"-*.jsonl.zst"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

// ActionFiles lists the action log files under an actions dir: only mapName's when it is set,
// every map's otherwise. Files are ordered by hour, then by map.
func ActionFiles(dir, mapName string) ([]string, error) {
	if mapName != "" {
		return Files(filepath.Join(dir, MapSlug(mapName)), "actions")
	}
	matches, err := filepath.Glob(filepath.Join(dir, "*", "actions-*.jsonl.zst"))
	if err != nil {
		return nil, err
	}
	sort.Slice(matches, func(i, j int) bool {
		bi, bj := filepath.Base(matches[i]), filepath.Base(matches[j])
		if bi != bj {
			return bi < bj
		}
		return matches[i] < matches[j]
	})
	return matches, nil
}

// ReadActions streams the entries of one action log file to fn until fn returns false.
func ReadActions(path string, fn func(actions.Entry) bool) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var e actions.Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return fmt.Errorf("%s:%d: %w", filepath.Base(path), line, err)
		}
		if !fn(e) {
			return nil
		}
	}
	return sc.Err()
}
