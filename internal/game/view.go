package game

// PlayerStatus is the player summary shown next to a scene
type PlayerStatus struct {
	Name       string   `json:"name"`
	Level      int      `json:"level"`
	Health     int      `json:"health"`
	MaxHealth  int      `json:"max_health"`
	Experience int      `json:"experience"`
	Inventory  []string `json:"inventory"`
}

// View is everything the presentation layer needs to render a scene
type View struct {
	SceneID     string       `json:"scene_id"`
	Description string       `json:"description"`
	Options     []string     `json:"options"`
	Player      PlayerStatus `json:"player_status"`
	IsEnded     bool         `json:"is_ended"`
	EndingType  string       `json:"ending_type,omitempty"`
	CanGoBack   bool         `json:"can_go_back"`
	Mode        Mode         `json:"mode"`
	Step        int          `json:"step"`
}
