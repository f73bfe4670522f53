package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mapforge.dev/internal/persistence/indexdb"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (default: <data>/index.sqlite)")
	mapName := fs.String("map", "", "map name filter (actions)")
	pos := fs.String("pos", "", "tile x,y,z (tile)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "actions"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index.sqlite")
	}
	db, err := indexdb.OpenReader(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx := context.Background()
	switch q {
	case "actions":
		rows, err := indexdb.RecentActions(ctx, db, *mapName, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		for _, r := range rows {
			printJSON(r)
		}

	case "tile":
		x, y, z, err := parsePos(*pos)
		if err != nil {
			fmt.Fprintln(os.Stderr, "bad -pos:", err)
			os.Exit(2)
		}
		rows, err := indexdb.ChangesAt(ctx, db, x, y, z, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		for _, r := range rows {
			printJSON(r)
		}

	case "saves":
		rows, err := indexdb.Saves(ctx, db, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		for _, r := range rows {
			printJSON(r)
		}

	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q, "(want actions|tile|saves)")
		os.Exit(2)
	}
}

func parsePos(s string) (x, y, z int, err error) {
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d,%d,%d", &x, &y, &z); err != nil {
		return 0, 0, 0, fmt.Errorf("want x,y,z: %w", err)
	}
	if x < 1 || y < 1 || z < 1 {
		return 0, 0, 0, fmt.Errorf("coordinates start at 1: %s", s)
	}
	return x, y, z, nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
