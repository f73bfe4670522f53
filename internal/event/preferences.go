package event

// Preferences is the user preference document.
type Preferences struct {
	ShowGrid bool `json:"show_grid"`
	// MapSize is the default size offered for new maps.
	MapSize struct {
		X int `json:"x"`
		Y int `json:"y"`
		Z int `json:"z"`
	} `json:"map_size"`
}

func DefaultPreferences() Preferences {
	var p Preferences
	p.ShowGrid = true
	p.MapSize.X, p.MapSize.Y, p.MapSize.Z = 32, 32, 1
	return p
}
