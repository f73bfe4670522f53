package event

import (
	"mapforge.dev/internal/action"
	"mapforge.dev/internal/dmm"
	"mapforge.dev/internal/env"
)

type FetchActionStatus struct{ Reply func(action.Status) }

// FetchSelectedMap is answered only while a map is selected.
type FetchSelectedMap struct{ Reply func(*dmm.Map) }
type FetchAllOpenedMaps struct{ Reply func([]*dmm.Map) }

// MapFile is a map file found under the environment root. Rel is relative to that root.
type MapFile struct {
	Path string
	Rel  string
}

// FetchAvailableMaps lists the map files under the loaded environment's root directory.
type FetchAvailableMaps struct{ Reply func([]MapFile) }

type FetchFilteredLayers struct{ Reply func(env.IDSet) }

type FetchActiveArea struct{ Reply func(dmm.MapArea) }
type FetchActiveTileItem struct{ Reply func(*dmm.TileItem) }

// FetchOpenedEnvironment is answered only while an environment is loaded.
type FetchOpenedEnvironment struct{ Reply func(*env.Environment) }
type FetchTileItemHolder struct{ Reply func(*dmm.Holder) }

// FindInstancePositionsByType searches Area on the active z-level; a zero Area searches the
// whole level.
type FindInstancePositionsByType struct {
	Area  dmm.MapArea
	Type  string
	Reply func([]dmm.ItemPos)
}

type FindInstancePositionsByID struct {
	Area  dmm.MapArea
	ID    uint64
	Reply func([]dmm.ItemPos)
}

type FetchRecentEnvironments struct{ Reply func([]string) }
type FetchRecentMaps struct{ Reply func([]string) }

type FetchPreferences struct{ Reply func(Preferences) }
