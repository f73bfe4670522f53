package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"mapforge.dev/internal/controller/recent"
	"mapforge.dev/internal/persistence/backup"
	"mapforge.dev/internal/persistence/snapshot"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			dbCmd(os.Args[2:])
			return
		case "backups":
			backupsCmd(os.Args[2:])
			return
		case "restore":
			restoreCmd(os.Args[2:])
			return
		case "metrics":
			metricsCmd(os.Args[2:])
			return
		}
	}
	recentCmd(os.Args[1:])
}

func recentCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	b, err := os.ReadFile(filepath.Join(*dataDir, recent.FileName))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	var files recent.Files
	if err := json.Unmarshal(b, &files); err != nil {
		fmt.Fprintln(os.Stderr, "decode:", err)
		os.Exit(1)
	}
	for _, e := range files.Environments {
		fmt.Println(e)
		for _, m := range files.Maps[e] {
			fmt.Println("  " + m)
		}
	}
	var orphans []string
	for e := range files.Maps {
		found := false
		for _, known := range files.Environments {
			if known == e {
				found = true
				break
			}
		}
		if !found {
			orphans = append(orphans, e)
		}
	}
	sort.Strings(orphans)
	for _, e := range orphans {
		fmt.Println(e + " (not recent)")
		for _, m := range files.Maps[e] {
			fmt.Println("  " + m)
		}
	}
}

func backupsCmd(args []string) {
	fs := flag.NewFlagSet("backups", flag.ExitOnError)
	mapPath := fs.String("map", "", "map file whose backups to list")
	_ = fs.Parse(args)
	if *mapPath == "" {
		fmt.Fprintln(os.Stderr, "missing -map")
		os.Exit(2)
	}

	all, err := backup.List(*mapPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list:", err)
		os.Exit(1)
	}
	for _, p := range all {
		h, err := snapshot.ReadHeader(p)
		if err != nil {
			fmt.Printf("%s (unreadable: %v)\n", p, err)
			continue
		}
		fmt.Printf("%s name=%s size=%dx%dx%d saved=%s\n", p, h.Name, h.MaxX, h.MaxY, h.MaxZ, h.SavedAt)
	}
}

func restoreCmd(args []string) {
	fs := flag.NewFlagSet("restore", flag.ExitOnError)
	from := fs.String("backup", "", "backup file to restore")
	_ = fs.Parse(args)
	if *from == "" {
		fmt.Fprintln(os.Stderr, "missing -backup")
		os.Exit(2)
	}
	if _, err := snapshot.ReadHeader(*from); err != nil {
		fmt.Fprintln(os.Stderr, "not a map snapshot:", err)
		os.Exit(1)
	}
	dst, err := backup.Restore(*from)
	if err != nil {
		fmt.Fprintln(os.Stderr, "restore:", err)
		os.Exit(1)
	}
	fmt.Println("restored", dst)
}
