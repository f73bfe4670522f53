package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
)

type ActionRow struct {
	ID      int64  `json:"id"`
	At      string `json:"at"`
	Op      string `json:"op"`
	MapID   int    `json:"map_id"`
	MapName string `json:"map_name"`
	MapPath string `json:"map_path,omitempty"`
	Changes int    `json:"changes"`
}

type ChangeRow struct {
	ActionID int64    `json:"action_id"`
	Op       string   `json:"op"`
	At       string   `json:"at"`
	MapName  string   `json:"map_name"`
	Before   []string `json:"before"`
	After    []string `json:"after"`
}

type SaveRow struct {
	Path        string `json:"path"`
	Name        string `json:"name"`
	MaxX        int    `json:"max_x"`
	MaxY        int    `json:"max_y"`
	MaxZ        int    `json:"max_z"`
	Stacks      int    `json:"stacks"`
	Environment string `json:"environment,omitempty"`
	SavedAt     string `json:"saved_at"`
}

// RecentActions returns the newest actions first. An empty mapName matches every map.
func RecentActions(ctx context.Context, db *sql.DB, mapName string, limit int) ([]ActionRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.QueryContext(ctx, `SELECT id,at,op,map_id,map_name,COALESCE(map_path,''),changes FROM actions
		WHERE (?='' OR map_name=?) ORDER BY id DESC LIMIT ?`, mapName, mapName, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ActionRow
	for rows.Next() {
		var r ActionRow
		if err := rows.Scan(&r.ID, &r.At, &r.Op, &r.MapID, &r.MapName, &r.MapPath, &r.Changes); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ChangesAt returns the history of one tile, oldest first.
func ChangesAt(ctx context.Context, db *sql.DB, x, y, z, limit int) ([]ChangeRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx, `SELECT c.action_id,a.op,a.at,a.map_name,c.before_json,c.after_json
		FROM tile_changes c JOIN actions a ON a.id=c.action_id
		WHERE c.x=? AND c.y=? AND c.z=? ORDER BY c.action_id LIMIT ?`, x, y, z, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ChangeRow
	for rows.Next() {
		var (
			r             ChangeRow
			before, after string
		)
		if err := rows.Scan(&r.ActionID, &r.Op, &r.At, &r.MapName, &before, &after); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(before), &r.Before)
		_ = json.Unmarshal([]byte(after), &r.After)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Saves returns the newest saves first.
func Saves(ctx context.Context, db *sql.DB, limit int) ([]SaveRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.QueryContext(ctx, `SELECT path,name,max_x,max_y,max_z,stacks,COALESCE(environment,''),saved_at
		FROM saves ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SaveRow
	for rows.Next() {
		var r SaveRow
		if err := rows.Scan(&r.Path, &r.Name, &r.MaxX, &r.MaxY, &r.MaxZ, &r.Stacks, &r.Environment, &r.SavedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
