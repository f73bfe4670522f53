package dmm

import (
	"fmt"

	"mapforge.dev/internal/env"
)

// Holder creates tile items for one environment session and keeps the shared canonical
// instance per type. It is owned by the composition root and replaced together with the
// environment.
type Holder struct {
	env    *env.Environment
	nextID uint64
	pure   map[string]*TileItem
}

func NewHolder(e *env.Environment) *Holder {
	return &Holder{env: e, pure: make(map[string]*TileItem)}
}

func (h *Holder) Env() *env.Environment { return h.env }

// GetOrCreate returns the canonical instance of typ when vars add nothing over the type
// defaults, and a fresh instance otherwise. Overrides equal to the inherited value are dropped.
func (h *Holder) GetOrCreate(typ string, vars map[string]env.Value) (*TileItem, error) {
	it, ok := h.env.Item(typ)
	if !ok {
		return nil, fmt.Errorf("%w: %s", env.ErrUnknownType, typ)
	}

	var overrides map[string]env.Value
	for name, v := range vars {
		def, ok := h.env.Var(typ, name)
		if ok && def == v {
			continue
		}
		if !ok && v.IsNull() {
			continue
		}
		if overrides == nil {
			overrides = make(map[string]env.Value, len(vars))
		}
		overrides[name] = v
	}

	if len(overrides) == 0 {
		if p := h.pure[typ]; p != nil {
			return p, nil
		}
		p := h.create(it, nil)
		h.pure[typ] = p
		return p, nil
	}
	return h.create(it, overrides), nil
}

// Pure is GetOrCreate without overrides.
func (h *Holder) Pure(typ string) (*TileItem, error) {
	return h.GetOrCreate(typ, nil)
}

// Fork returns an instance of item's type with extra overrides applied on top of item's own.
func (h *Holder) Fork(item *TileItem, vars map[string]env.Value) (*TileItem, error) {
	merged := make(map[string]env.Value, len(item.Vars)+len(vars))
	for k, v := range item.Vars {
		merged[k] = v
	}
	for k, v := range vars {
		merged[k] = v
	}
	return h.GetOrCreate(item.Type, merged)
}

func (h *Holder) create(it *env.Item, vars map[string]env.Value) *TileItem {
	h.nextID++
	return newTileItem(h.nextID, h.env, it, vars)
}

// DefaultStack returns the world's default turf and area, skipping whichever the environment
// does not declare.
func (h *Holder) DefaultStack() []*TileItem {
	var out []*TileItem
	for _, pair := range [...][2]string{{"turf", env.TypeTurf}, {"area", env.TypeArea}} {
		typ := pair[1]
		if v, ok := h.env.Var(env.TypeWorld, pair[0]); ok {
			if _, known := h.env.Item(v.Text()); known {
				typ = v.Text()
			}
		}
		if ti, err := h.Pure(typ); err == nil {
			out = append(out, ti)
		}
	}
	return out
}
