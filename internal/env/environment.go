package env

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

const (
	TypeDatum   = "/datum"
	TypeAtom    = "/atom"
	TypeMovable = "/atom/movable"
	TypeArea    = "/area"
	TypeTurf    = "/turf"
	TypeObj     = "/obj"
	TypeMob     = "/mob"
	TypeWorld   = "/world"

	VarName = "name"
)

var (
	ErrUnknownType   = errors.New("env: unknown type")
	ErrMissingParent = errors.New("env: type without parent in index")
	ErrDuplicateType = errors.New("env: duplicate type")
)

// builtinParents overrides path-prefix inheritance for the root atom types.
var builtinParents = map[string]string{
	TypeAtom:    TypeDatum,
	TypeMovable: TypeAtom,
	TypeArea:    TypeAtom,
	TypeTurf:    TypeAtom,
	TypeObj:     TypeMovable,
	TypeMob:     TypeMovable,
}

// IDSet is a set of environment item ids.
type IDSet map[int]struct{}

func (s IDSet) Has(id int) bool {
	_, ok := s[id]
	return ok
}

func (s IDSet) Clone() IDSet {
	out := make(IDSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

type Item struct {
	ID       int
	Type     string
	Vars     map[string]Value
	Children []string
}

type varKey struct {
	typ  string
	name string
}

type varHit struct {
	v  Value
	ok bool
}

// Environment is the immutable type index of one loaded environment.
// The var cache is filled lazily and must only be touched from the editor loop.
type Environment struct {
	Name    string
	RootDir string
	Path    string

	root  string
	items map[string]*Item
	byID  []*Item
	cache map[varKey]varHit
}

// Build indexes a decoded tree. envPath is the environment source file; it only feeds Name
// and RootDir. Nothing of a failed build escapes.
func Build(root Node, envPath string) (*Environment, error) {
	e := &Environment{
		Path:  envPath,
		root:  root.Path,
		items: make(map[string]*Item),
		cache: make(map[varKey]varHit),
	}
	if envPath != "" {
		e.Name = strings.TrimSuffix(filepath.Base(envPath), filepath.Ext(envPath))
		e.RootDir = filepath.Dir(envPath)
	}
	if err := e.add(root); err != nil {
		return nil, err
	}
	for _, it := range e.byID {
		if it.Type == e.root {
			continue
		}
		parent := pathParent(it.Type)
		if parent == "" || parent == e.root {
			continue
		}
		if _, ok := e.items[parent]; !ok {
			return nil, fmt.Errorf("%w: %s (parent %s)", ErrMissingParent, it.Type, parent)
		}
	}
	return e, nil
}

func (e *Environment) add(n Node) error {
	if _, dup := e.items[n.Path]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateType, n.Path)
	}
	it := &Item{
		ID:   len(e.byID),
		Type: n.Path,
		Vars: make(map[string]Value, len(n.Vars)+1),
	}
	e.items[n.Path] = it
	e.byID = append(e.byID, it)

	for _, v := range n.Vars {
		if v.Value == nil {
			continue
		}
		val := ParseValue(unwrapQuoted(*v.Value))
		if val.IsNull() {
			continue
		}
		it.Vars[v.Name] = val
	}
	if _, ok := it.Vars[VarName]; !ok {
		it.Vars[VarName] = StringValue(lastSegment(n.Path))
	}

	for _, c := range n.Children {
		it.Children = append(it.Children, c.Path)
		if err := e.add(c); err != nil {
			return err
		}
	}
	sortChildren(it.Children)
	return nil
}

func sortChildren(paths []string) {
	sort.SliceStable(paths, func(i, j int) bool {
		a, b := strings.ToLower(lastSegment(paths[i])), strings.ToLower(lastSegment(paths[j]))
		if a != b {
			return a < b
		}
		return paths[i] < paths[j]
	})
}

func lastSegment(p string) string {
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[i+1:]
	}
	return p
}

// pathParent returns the prefix parent of a type path ("" for top-level paths).
func pathParent(p string) string {
	i := strings.LastIndexByte(p, '/')
	if i <= 0 {
		return ""
	}
	return p[:i]
}

// Parent returns the type a path inherits from, or "" for roots.
func Parent(typ string) string {
	if p, ok := builtinParents[typ]; ok {
		return p
	}
	return pathParent(typ)
}

func (e *Environment) Item(typ string) (*Item, bool) {
	it, ok := e.items[typ]
	return it, ok
}

func (e *Environment) ItemByID(id int) (*Item, bool) {
	if id < 0 || id >= len(e.byID) {
		return nil, false
	}
	return e.byID[id], true
}

func (e *Environment) Len() int { return len(e.byID) }

// Items returns all items in id order.
func (e *Environment) Items() []*Item {
	out := make([]*Item, len(e.byID))
	copy(out, e.byID)
	return out
}

// Var resolves name for typ, walking up the inheritance chain.
func (e *Environment) Var(typ, name string) (Value, bool) {
	k := varKey{typ: typ, name: name}
	if hit, ok := e.cache[k]; ok {
		return hit.v, hit.ok
	}
	var hit varHit
	for t := typ; t != ""; t = Parent(t) {
		it, ok := e.items[t]
		if !ok {
			continue
		}
		if v, ok := it.Vars[name]; ok {
			hit = varHit{v: v, ok: true}
			break
		}
	}
	e.cache[k] = hit
	return hit.v, hit.ok
}

// IsType reports whether typ is base or inherits from it.
func IsType(typ, base string) bool {
	for t := typ; t != ""; t = Parent(t) {
		if t == base {
			return true
		}
	}
	return false
}

// Subtree returns the ids of typ and all its descendants.
func (e *Environment) Subtree(typ string) IDSet {
	out := IDSet{}
	var walk func(string)
	walk = func(t string) {
		it, ok := e.items[t]
		if !ok {
			return
		}
		out[it.ID] = struct{}{}
		for _, c := range it.Children {
			walk(c)
		}
	}
	walk(typ)
	return out
}
