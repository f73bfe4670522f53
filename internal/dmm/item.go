package dmm

import (
	"mapforge.dev/internal/env"
)

const (
	VarDir       = "dir"
	VarIcon      = "icon"
	VarIconState = "icon_state"

	DefaultDir = 2
)

// RenderVars are the vars that feed rendering. Overriding any of them, like overriding any
// other var, makes an instance non-canonical.
var RenderVars = [...]string{VarDir, VarIcon, VarIconState}

type Layer int

const (
	LayerObject Layer = iota
	LayerTurf
	LayerArea
)

func (l Layer) String() string {
	switch l {
	case LayerTurf:
		return "turf"
	case LayerArea:
		return "area"
	default:
		return "object"
	}
}

// TileItem is one placed instance. Instances are immutable once created by a Holder and may be
// shared between tiles; customizing one means asking the Holder for a new instance.
type TileItem struct {
	ID     uint64
	Type   string
	TypeID int
	// Vars holds overrides only. Empty for canonical instances.
	Vars map[string]env.Value

	Dir       int
	Icon      string
	IconState string

	layer Layer
	env   *env.Environment
}

func newTileItem(id uint64, e *env.Environment, it *env.Item, vars map[string]env.Value) *TileItem {
	ti := &TileItem{
		ID:     id,
		Type:   it.Type,
		TypeID: it.ID,
		Vars:   vars,
		env:    e,
	}
	switch {
	case env.IsType(it.Type, env.TypeTurf):
		ti.layer = LayerTurf
	case env.IsType(it.Type, env.TypeArea):
		ti.layer = LayerArea
	}
	ti.Dir = DefaultDir
	if v, ok := ti.Var(VarDir); ok {
		if n, ok := v.Int(); ok {
			ti.Dir = n
		}
	}
	if v, ok := ti.Var(VarIcon); ok {
		ti.Icon = v.Text()
	}
	if v, ok := ti.Var(VarIconState); ok {
		ti.IconState = v.Text()
	}
	return ti
}

// Var returns the instance override or the inherited type default.
func (t *TileItem) Var(name string) (env.Value, bool) {
	if v, ok := t.Vars[name]; ok {
		return v, true
	}
	if t.env == nil {
		return env.Value{}, false
	}
	return t.env.Var(t.Type, name)
}

// Name is the resolved display name.
func (t *TileItem) Name() string {
	if v, ok := t.Var(env.VarName); ok {
		return v.Text()
	}
	return t.Type
}

func (t *TileItem) IsPure() bool { return len(t.Vars) == 0 }

func (t *TileItem) Layer() Layer { return t.layer }

func (t *TileItem) IsMovable() bool { return t.layer == LayerObject }

// TypeEqual reports whether both are canonical instances of the same type.
func (t *TileItem) TypeEqual(o *TileItem) bool {
	return o != nil && t.Type == o.Type && t.IsPure() && o.IsPure()
}
