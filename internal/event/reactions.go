package event

import (
	"mapforge.dev/internal/action"
	"mapforge.dev/internal/dmm"
	"mapforge.dev/internal/env"
)

type ActionStatusChanged struct{ Status action.Status }

// ActionApplied reports every history transition. Op is one of the Op* constants.
type ActionApplied struct {
	Op     string
	MapID  int
	Action action.Undoable
}

const (
	OpPush = "push"
	OpUndo = "undo"
	OpRedo = "redo"
)

type FrameRefreshed struct{}

type MapMousePosChanged struct{ Pos dmm.MapPos }
type SelectedMapMapSizeChanged struct{ Size dmm.MapSize }

type SelectedMapChanged struct{ Map *dmm.Map }
type SelectedMapClosed struct{}
type OpenedMapClosed struct{ Map *dmm.Map }
type SelectedMapZActiveChanged struct{ Z int }

type MapSaved struct {
	Map  *dmm.Map
	Path string
}

type MapLoadFailed struct {
	Path string
	Err  error
}

type LayersFilterRefreshed struct{ IDs env.IDSet }

type ActiveAreaChanged struct{ Area dmm.MapArea }
type ActiveTileItemChanged struct{ Item *dmm.TileItem }

// ClipboardChanged reports the extent of the copied block; zero when the clipboard was emptied.
type ClipboardChanged struct{ Width, Height int }

type EnvironmentLoading struct{ Path string }

// EnvironmentLoaded is published after every load attempt; Err is set when it failed and the
// previous environment stays in place.
type EnvironmentLoaded struct {
	Path string
	Err  error
}

type EnvironmentReset struct{}

type EnvironmentChanged struct {
	Env    *env.Environment
	Holder *dmm.Holder
}
