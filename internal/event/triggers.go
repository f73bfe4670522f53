// Package event defines every payload that travels over the editor bus.
//
// Three families exist:
//   - triggers: imperative intents handled by one controller
//   - queries: request/reply payloads carrying a Reply continuation, answered by one provider
//   - reactions: broadcast notifications about state that already changed
package event

import (
	"mapforge.dev/internal/action"
	"mapforge.dev/internal/dmm"
	"mapforge.dev/internal/env"
)

// Action history.

type AddAction struct{ Action action.Undoable }
type UndoAction struct{}
type RedoAction struct{}

// Map modifier.

type DeleteTileItemsInActiveArea struct{}

// FillSelectedMapPositionWithTileItems pastes Items[x][y] anchored at the last mouse position.
type FillSelectedMapPositionWithTileItems struct {
	Items [][][]*dmm.TileItem
}

type FillActiveAreaWithTileItem struct{ Item *dmm.TileItem }

type ReplaceTileItemsWithTypeInPositions struct {
	Replacement string
	Positions   []dmm.ItemPos
}

type ReplaceTileItemsWithIDInPositions struct {
	Replacement string
	Positions   []dmm.ItemPos
}

type DeleteTileItemsWithTypeInPositions struct{ Positions []dmm.ItemPos }
type DeleteTileItemsWithIDInPositions struct{ Positions []dmm.ItemPos }

type ChangeMapSize struct{ Size dmm.MapSize }

// Map holder.

type CreateNewMap struct {
	Path string
	Size dmm.MapSize
}
type OpenMap struct{ Path string }
type SwitchMap struct{ MapID int }
type CloseSelectedMap struct{}
type CloseAllMaps struct{}
type SaveSelectedMap struct{}
type SaveSelectedMapToFile struct{ Path string }
type SaveAllMaps struct{}
type ChangeSelectedZ struct{ Z int }

// Layers filter.

type FilterLayersByID struct{ IDs env.IDSet }
type ShowLayersByType struct{ Type string }
type HideLayersByType struct{ Type string }

// Tools.

type SelectActiveArea struct{ Area dmm.MapArea }
type ResetTool struct{}
type ChangeActiveTileItem struct{ Item *dmm.TileItem }

// Clipboard. Copy and cut take the visible stacks of the active area; paste fills at the
// last mouse position.

type CopyActiveArea struct{}
type CutActiveArea struct{}
type PasteClipboard struct{}

// Environment.

type OpenEnvironment struct{ Path string }
type CloseEnvironment struct{}

// EnvironmentParsed carries the result of an off-loop parse back onto the loop.
type EnvironmentParsed struct {
	Path string
	Env  *env.Environment
	Err  error
}

// Recent files and preferences.

type ClearRecentEnvironments struct{}
type ClearRecentMaps struct{}
type SavePreferences struct{ Prefs Preferences }

// Frame.

type RefreshFrame struct{}
