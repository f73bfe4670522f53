// Package observerproto defines the JSON messages of the observer websocket.
package observerproto

const Version = "1"

// Server -> Client message types.
const (
	TypeHello        = "HELLO"
	TypeFrame        = "FRAME"
	TypeActionStatus = "ACTION_STATUS"
	TypeMap          = "MAP"
	TypeEnvironment  = "ENVIRONMENT"
	TypeError        = "ERROR"
)

// Client -> Server message types.
const (
	TypeUndo       = "UNDO"
	TypeRedo       = "REDO"
	TypeDeleteArea = "DELETE_AREA"
	TypeSelectArea = "SELECT_AREA"
	TypeSetZ       = "SET_Z"
	TypeMouse      = "MOUSE"
	TypeCopy       = "COPY"
	TypeCut        = "CUT"
	TypePaste      = "PASTE"
)

const (
	ErrBadRequest  = "E_BAD_REQUEST"
	ErrUnknownType = "E_UNKNOWN_TYPE"
	ErrBusy        = "E_BUSY"
	ErrStopped     = "E_STOPPED"
)

var knownCodes = map[string]struct{}{
	ErrBadRequest:  {},
	ErrUnknownType: {},
	ErrBusy:        {},
	ErrStopped:     {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SessionID       string `json:"session_id"`
}

type FrameMsg struct {
	Type  string `json:"type"`
	MapID int    `json:"map_id"`
	Z     int    `json:"z"`
	MaxX  int    `json:"max_x"`
	MaxY  int    `json:"max_y"`
	// Area is the active selection as [x1, y1, x2, y2]; all zero when nothing is selected.
	Area [4]int `json:"area"`
	// Tiles is [y][x] with the visible types bottom to top.
	Tiles [][][]string `json:"tiles"`
}

type ActionStatusMsg struct {
	Type    string `json:"type"`
	HasUndo bool   `json:"has_undo"`
	HasRedo bool   `json:"has_redo"`
}

// MapMsg describes the selected map. Open is false once the last map closed.
type MapMsg struct {
	Type string `json:"type"`
	Open bool   `json:"open"`
	ID   int    `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
	Path string `json:"path,omitempty"`
	MaxX int    `json:"max_x,omitempty"`
	MaxY int    `json:"max_y,omitempty"`
	MaxZ int    `json:"max_z,omitempty"`
	Z    int    `json:"z,omitempty"`
}

type EnvironmentMsg struct {
	Type   string `json:"type"`
	Loaded bool   `json:"loaded"`
	Name   string `json:"name,omitempty"`
	Path   string `json:"path,omitempty"`
	Types  int    `json:"types,omitempty"`
	Error  string `json:"error,omitempty"`
}

type ErrorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// IntentMsg is any inbound message; fields are read according to Type.
type IntentMsg struct {
	Type string  `json:"type"`
	Area *[4]int `json:"area,omitempty"`
	Z    int     `json:"z,omitempty"`
	X    int     `json:"x,omitempty"`
	Y    int     `json:"y,omitempty"`
}
