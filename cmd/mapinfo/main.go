package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"mapforge.dev/internal/controller/actions"
	"mapforge.dev/internal/dmm"
	"mapforge.dev/internal/env"
	persistlog "mapforge.dev/internal/persistence/log"
	"mapforge.dev/internal/persistence/snapshot"
)

func main() {
	var (
		mapPath    = flag.String("map", "", "map snapshot to describe (optional)")
		envPath    = flag.String("env", "", "parsed environment .json; with -map prints per-level type counts")
		actionsDir = flag.String("actions", "", "action log dir with one directory of actions-*.jsonl.zst per map (optional)")
		mapName    = flag.String("name", "", "only count actions of this map")
		since      = flag.String("since", "", "only count actions at or after this RFC3339 time")
		verbose    = flag.Bool("v", false, "print every action")
	)
	flag.Parse()

	if *mapPath == "" && *actionsDir == "" {
		fmt.Fprintln(os.Stderr, "missing -map or -actions")
		os.Exit(2)
	}

	if *mapPath != "" {
		if err := describeMap(os.Stdout, *mapPath, *envPath); err != nil {
			fmt.Fprintln(os.Stderr, "map:", err)
			os.Exit(1)
		}
	}

	if *actionsDir != "" {
		var from time.Time
		if *since != "" {
			t, err := time.Parse(time.RFC3339, *since)
			if err != nil {
				fmt.Fprintln(os.Stderr, "bad -since:", err)
				os.Exit(2)
			}
			from = t
		}
		sum, err := summarize(*actionsDir, filter{mapName: *mapName, since: from}, *verbose, os.Stdout)
		if err != nil {
			fmt.Fprintln(os.Stderr, "actions:", err)
			os.Exit(1)
		}
		sum.print(os.Stdout)
	}
}

func describeMap(w io.Writer, path, envPath string) error {
	if envPath == "" {
		h, err := snapshot.ReadHeader(path)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "map v%d name=%s size=%dx%dx%d stacks=%d saved=%s env=%s\n",
			h.Version, h.Name, h.MaxX, h.MaxY, h.MaxZ, h.Stacks, h.SavedAt, h.Environment)
		return nil
	}

	snap, err := snapshot.ReadMap(path)
	if err != nil {
		return err
	}
	h := snap.Header
	fmt.Fprintf(w, "map v%d name=%s size=%dx%dx%d stacks=%d saved=%s env=%s\n",
		h.Version, h.Name, h.MaxX, h.MaxY, h.MaxZ, h.Stacks, h.SavedAt, h.Environment)

	e, err := env.LoadFile(envPath, h.Environment)
	if err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	m, err := dmm.ImportSnapshot(dmm.NewHolder(e), snap.Map)
	if err != nil {
		return err
	}
	for z := 1; z <= m.MaxZ(); z++ {
		counts := map[string]int{}
		m.Each(z, func(t *dmm.Tile) {
			for _, it := range t.Items() {
				counts[it.Type]++
			}
		})
		fmt.Fprintf(w, "level %d:\n", z)
		for _, kv := range sortedCounts(counts) {
			fmt.Fprintf(w, "  %6d %s\n", kv.n, kv.key)
		}
	}
	return nil
}

type filter struct {
	mapName string
	since   time.Time
}

func (f filter) match(e actions.Entry) bool {
	if f.mapName != "" && e.MapName != f.mapName {
		return false
	}
	if !f.since.IsZero() && e.At.Before(f.since) {
		return false
	}
	return true
}

type summary struct {
	files   int
	entries int
	tiles   int
	byOp    map[string]int
	byMap   map[string]int
	resizes int
}

func summarize(dir string, f filter, verbose bool, w io.Writer) (summary, error) {
	s := summary{byOp: map[string]int{}, byMap: map[string]int{}}
	files, err := persistlog.ActionFiles(dir, f.mapName)
	if err != nil {
		return s, err
	}
	if len(files) == 0 {
		return s, fmt.Errorf("no action files found in %s", dir)
	}
	s.files = len(files)
	for _, path := range files {
		err := persistlog.ReadActions(path, func(e actions.Entry) bool {
			if !f.match(e) {
				return true
			}
			s.entries++
			s.tiles += len(e.Changes)
			s.byOp[e.Op]++
			s.byMap[e.MapName]++
			if e.Resize != nil {
				s.resizes++
			}
			if verbose {
				fmt.Fprintf(w, "%s %-4s %s tiles=%d", e.At.UTC().Format(time.RFC3339), e.Op, e.MapName, len(e.Changes))
				if e.Resize != nil {
					fmt.Fprintf(w, " resize=%dx%dx%d->%dx%dx%d dropped=%d",
						e.Resize.From.MaxX, e.Resize.From.MaxY, e.Resize.From.MaxZ,
						e.Resize.To.MaxX, e.Resize.To.MaxY, e.Resize.To.MaxZ, e.Resize.Dropped)
				}
				fmt.Fprintln(w)
			}
			return true
		})
		if err != nil {
			return s, err
		}
	}
	return s, nil
}

func (s summary) print(w io.Writer) {
	fmt.Fprintf(w, "actions: files=%d entries=%d tiles=%d resizes=%d\n", s.files, s.entries, s.tiles, s.resizes)
	ops := make([]string, 0, len(s.byOp))
	for op, n := range s.byOp {
		ops = append(ops, fmt.Sprintf("%s=%d", op, n))
	}
	sort.Strings(ops)
	fmt.Fprintf(w, "  ops: %s\n", strings.Join(ops, " "))
	for _, kv := range sortedCounts(s.byMap) {
		fmt.Fprintf(w, "  %6d %s\n", kv.n, kv.key)
	}
}

type count struct {
	key string
	n   int
}

func sortedCounts(m map[string]int) []count {
	out := make([]count, 0, len(m))
	for k, n := range m {
		out = append(out, count{key: k, n: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].n != out[j].n {
			return out[i].n > out[j].n
		}
		return out[i].key < out[j].key
	})
	return out
}
