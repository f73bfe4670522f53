package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"mapforge.dev/internal/bus"
	"mapforge.dev/internal/config"
	"mapforge.dev/internal/controller/actions"
	"mapforge.dev/internal/editor"
	"mapforge.dev/internal/event"
	"mapforge.dev/internal/persistence/backup"
	"mapforge.dev/internal/persistence/indexdb"
	persistlog "mapforge.dev/internal/persistence/log"
	"mapforge.dev/internal/persistence/snapshot"
	"mapforge.dev/internal/transport/observer"
)

type mapList []string

func (m *mapList) String() string { return strings.Join(*m, ",") }
func (m *mapList) Set(v string) error {
	*m = append(*m, v)
	return nil
}

func main() {
	var (
		configPath = flag.String("config", "", "path to editor.yaml (optional)")
		dataDir    = flag.String("data", "", "runtime data directory (overrides config)")
		parserPath = flag.String("parser", "", "environment parser executable (overrides config)")
		addr       = flag.String("addr", "", "observer http listen address (overrides config; empty disables)")
		envPath    = flag.String("env", "", "environment to open at start")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite index")
		maps       mapList
	)
	flag.Var(&maps, "map", "map file to open at start (repeatable)")
	flag.Parse()

	logger := log.New(os.Stdout, "[editord] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *parserPath != "" {
		cfg.ParserPath = *parserPath
	}
	if *addr != "" {
		cfg.ObserverListen = *addr
	}
	if *disableDB {
		cfg.IndexDB = ""
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("config: %v", err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Fatalf("data dir: %v", err)
	}

	var journals []actions.Journal
	if cfg.ActionLog {
		actionLog := persistlog.NewActionLogger(cfg.DataDir)
		defer actionLog.Close()
		journals = append(journals, actionLog)
	}

	rotator := backup.NewRotator(cfg.KeepBackups)
	store := snapshot.Store{BeforeWrite: rotator.Backup}

	var idx *indexdb.SQLiteIndex
	if cfg.IndexDB != "" {
		path := cfg.IndexDB
		if !filepath.IsAbs(path) {
			path = filepath.Join(cfg.DataDir, path)
		}
		idx, err = indexdb.OpenSQLite(path)
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		defer idx.Close()
		journals = append(journals, idx)
		store.AfterWrite = idx.RecordSave
	}

	ed, err := editor.New(cfg, logger, editor.Options{Store: store, Journals: journals})
	if err != nil {
		logger.Fatalf("editor: %v", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- ed.Run(ctx) }()

	obs := observer.NewServer(ed, logger)
	if err := ed.Do(ctx, func(b *bus.Bus) {
		obs.Attach(b)
		bus.Subscribe(b, func(ev event.EnvironmentLoaded) {
			if ev.Err != nil {
				logger.Printf("environment %s: %v", ev.Path, ev.Err)
				return
			}
			logger.Printf("environment loaded: %s", ev.Path)
		})
		// maps need a holder, so they open once the environment is swapped in
		bus.Subscribe(b, func(ev event.EnvironmentChanged) {
			files, _ := bus.Ask(b, func(r func([]event.MapFile)) any { return event.FetchAvailableMaps{Reply: r} })
			logger.Printf("%d map files under %s", len(files), ev.Env.RootDir)
			for _, p := range maps {
				b.Publish(event.OpenMap{Path: p})
			}
			maps = nil
		})
		bus.Subscribe(b, func(ev event.MapLoadFailed) { logger.Printf("map %s: %v", ev.Path, ev.Err) })
		bus.Subscribe(b, func(ev event.MapSaved) { logger.Printf("saved %s", ev.Path) })
	}); err != nil {
		logger.Fatalf("attach: %v", err)
	}
	if *envPath != "" {
		_ = ed.Post(event.OpenEnvironment{Path: *envPath})
	}

	var srv *http.Server
	if cfg.ObserverListen != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
			rw.WriteHeader(200)
			_, _ = rw.Write([]byte("ok"))
		})
		mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
			writeMetrics(rw, ed, obs, idx)
		})
		mux.HandleFunc("/v1/observe", obs.WSHandler())

		srv = &http.Server{
			Addr:              cfg.ObserverListen,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Printf("observer listening on %s", cfg.ObserverListen)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Printf("ListenAndServe: %v", err)
				cancel()
			}
		}()
	}

	err = <-runErr
	if srv != nil {
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}
	if err != nil && err != context.Canceled {
		logger.Printf("editor stopped: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func writeMetrics(rw http.ResponseWriter, ed *editor.Editor, obs *observer.Server, idx *indexdb.SQLiteIndex) {
	rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

	fmt.Fprintf(rw, "# HELP mapforge_inbox_depth Queued editor events.\n")
	fmt.Fprintf(rw, "# TYPE mapforge_inbox_depth gauge\n")
	fmt.Fprintf(rw, "mapforge_inbox_depth %d\n", ed.InboxDepth())
	fmt.Fprintf(rw, "mapforge_inbox_capacity %d\n", ed.InboxCapacity())

	fmt.Fprintf(rw, "# HELP mapforge_observers Connected observer sessions.\n")
	fmt.Fprintf(rw, "# TYPE mapforge_observers gauge\n")
	fmt.Fprintf(rw, "mapforge_observers %d\n", obs.Clients())

	if idx == nil {
		return
	}
	s := idx.Stats()
	fmt.Fprintf(rw, "# HELP mapforge_index_queue_depth Index writer backlog.\n")
	fmt.Fprintf(rw, "# TYPE mapforge_index_queue_depth gauge\n")
	fmt.Fprintf(rw, "mapforge_index_queue_depth %d\n", s.QueueDepth)
	fmt.Fprintf(rw, "# HELP mapforge_index_dropped_total Index writes dropped because the queue was full.\n")
	fmt.Fprintf(rw, "# TYPE mapforge_index_dropped_total counter\n")
	fmt.Fprintf(rw, "mapforge_index_dropped_total{kind=%q} %d\n", "action", s.DropActionTotal)
	fmt.Fprintf(rw, "mapforge_index_dropped_total{kind=%q} %d\n", "save", s.DropSaveTotal)
}
