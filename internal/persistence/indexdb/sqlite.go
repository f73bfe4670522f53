package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"mapforge.dev/internal/controller/actions"
	"mapforge.dev/internal/persistence/snapshot"
)

// SQLiteIndex is a queryable secondary index of action journal entries and map saves.
// Writes are queued and applied in batches by one goroutine; the JSONL action log stays the
// source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropAction atomic.Uint64
	dropSave   atomic.Uint64
}

type reqKind int

const (
	reqAction reqKind = iota + 1
	reqSave
	reqSync
)

type req struct {
	kind reqKind

	action actions.Entry
	save   saveRow
	done   chan struct{}
}

type saveRow struct {
	Path        string
	Name        string
	MaxX        int
	MaxY        int
	MaxZ        int
	Stacks      int
	Environment string
	SavedAt     string
}

type Stats struct {
	QueueDepth      int    `json:"queue_depth"`
	QueueCapacity   int    `json:"queue_capacity"`
	DropActionTotal uint64 `json:"drop_action_total"`
	DropSaveTotal   uint64 `json:"drop_save_total"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	db, err := open(path)
	if err != nil {
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 16384),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

// OpenReader opens an existing index for queries only.
func OpenReader(path string) (*sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return open(path)
}

func open(path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS actions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			at TEXT NOT NULL,
			op TEXT NOT NULL,
			map_id INTEGER NOT NULL,
			map_name TEXT NOT NULL,
			map_path TEXT,
			changes INTEGER NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_actions_map ON actions(map_name, id);`,
		`CREATE TABLE IF NOT EXISTS tile_changes (
			action_id INTEGER NOT NULL REFERENCES actions(id),
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			before_json TEXT NOT NULL,
			after_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_tile_changes_pos ON tile_changes(x, y, z, action_id);`,
		`CREATE TABLE IF NOT EXISTS saves (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			path TEXT NOT NULL,
			name TEXT NOT NULL,
			max_x INTEGER NOT NULL,
			max_y INTEGER NOT NULL,
			max_z INTEGER NOT NULL,
			stacks INTEGER NOT NULL,
			environment TEXT,
			saved_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_saves_path ON saves(path, id);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:      len(s.ch),
		QueueCapacity:   cap(s.ch),
		DropActionTotal: s.dropAction.Load(),
		DropSaveTotal:   s.dropSave.Load(),
	}
}

// DB exposes the handle for queries. Reads may lag queued writes; call Sync first when that
// matters.
func (s *SQLiteIndex) DB() *sql.DB { return s.db }

// Sync waits until everything queued so far is committed.
func (s *SQLiteIndex) Sync(ctx context.Context) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{kind: reqSync, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WriteAction implements actions.Journal.
func (s *SQLiteIndex) WriteAction(e actions.Entry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqAction, action: e}:
	default:
		s.dropAction.Add(1)
	}
	return nil
}

// RecordSave is a snapshot.Store AfterWrite hook.
func (s *SQLiteIndex) RecordSave(path string, h snapshot.Header) {
	if s == nil || s.closed.Load() {
		return
	}
	r := saveRow{
		Path:        path,
		Name:        h.Name,
		MaxX:        h.MaxX,
		MaxY:        h.MaxY,
		MaxZ:        h.MaxZ,
		Stacks:      h.Stacks,
		Environment: h.Environment,
		SavedAt:     h.SavedAt,
	}
	select {
	case s.ch <- req{kind: reqSave, save: r}:
	default:
		s.dropSave.Add(1)
	}
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertAction, _ := s.db.Prepare(`INSERT INTO actions(at,op,map_id,map_name,map_path,changes,raw_json) VALUES(?,?,?,?,?,?,?)`)
	insertChange, _ := s.db.Prepare(`INSERT INTO tile_changes(action_id,x,y,z,before_json,after_json) VALUES(?,?,?,?,?,?)`)
	insertSave, _ := s.db.Prepare(`INSERT INTO saves(path,name,max_x,max_y,max_z,stacks,environment,saved_at) VALUES(?,?,?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertAction, insertChange, insertSave} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	for r := range s.ch {
		if r.kind == reqSync {
			commit()
			close(r.done)
			continue
		}
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqAction:
			if insertAction == nil || insertChange == nil {
				continue
			}
			a := r.action
			raw, _ := json.Marshal(a)
			res, err := tx.Stmt(insertAction).Exec(
				a.At.UTC().Format(time.RFC3339Nano),
				a.Op,
				a.MapID,
				a.MapName,
				a.MapPath,
				len(a.Changes),
				string(raw),
			)
			if err != nil {
				rollback()
				continue
			}
			id, err := res.LastInsertId()
			if err != nil {
				rollback()
				continue
			}
			opCount++
			for _, c := range a.Changes {
				before, _ := json.Marshal(c.Before)
				after, _ := json.Marshal(c.After)
				if _, err := tx.Stmt(insertChange).Exec(id, c.Pos.X, c.Pos.Y, c.Pos.Z, string(before), string(after)); err != nil {
					rollback()
					break
				}
				opCount++
			}

		case reqSave:
			if insertSave == nil {
				continue
			}
			sv := r.save
			if _, err := tx.Stmt(insertSave).Exec(
				sv.Path,
				sv.Name,
				sv.MaxX,
				sv.MaxY,
				sv.MaxZ,
				sv.Stacks,
				sv.Environment,
				sv.SavedAt,
			); err != nil {
				rollback()
				continue
			}
			opCount++
		}
		flushIfNeeded()
	}

	commit()
}
