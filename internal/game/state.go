package game

import (
	"fmt"
	"strings"
)

const (
	// DefaultPlayerName is used when a new game starts without a name
	DefaultPlayerName = "冒险者"

	defaultLevel     = 1
	defaultMaxHealth = 100

	// experiencePerLevel is multiplied by the current level to get the threshold
	experiencePerLevel = 100
	healthPerLevel     = 10
)

// Player is the character sheet carried through a session
type Player struct {
	Name       string                 `json:"name"`
	Level      int                    `json:"level"`
	Health     int                    `json:"health"`
	MaxHealth  int                    `json:"max_health"`
	Experience int                    `json:"experience"`
	Inventory  []string               `json:"inventory"`
	Skills     map[string]int         `json:"skills"`
	Attributes map[string]interface{} `json:"attributes"`
}

// NewPlayer creates a level 1 player at full health
func NewPlayer(name string) *Player {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultPlayerName
	}

	return &Player{
		Name:       name,
		Level:      defaultLevel,
		Health:     defaultMaxHealth,
		MaxHealth:  defaultMaxHealth,
		Experience: 0,
		Inventory:  make([]string, 0),
		Skills:     make(map[string]int),
		Attributes: make(map[string]interface{}),
	}
}

// AddItem appends an item to the inventory
func (p *Player) AddItem(item string) {
	p.Inventory = append(p.Inventory, item)
}

// RemoveItem removes the first matching item and reports whether one was found
func (p *Player) RemoveItem(item string) bool {
	for i, it := range p.Inventory {
		if it == item {
			p.Inventory = append(p.Inventory[:i], p.Inventory[i+1:]...)
			return true
		}
	}
	return false
}

// HasItem checks if the inventory holds at least one copy of item
func (p *Player) HasItem(item string) bool {
	for _, it := range p.Inventory {
		if it == item {
			return true
		}
	}
	return false
}

// AddExperience adds experience and levels up as many times as the total allows.
// Returns the number of levels gained. Negative amounts are ignored.
func (p *Player) AddExperience(amount int) int {
	if amount <= 0 {
		return 0
	}

	p.Experience += amount
	return p.levelUp()
}

// levelUp spends experience on levels until it is below the next threshold
func (p *Player) levelUp() int {
	gained := 0
	for p.Experience >= p.Level*experiencePerLevel {
		p.Experience -= p.Level * experiencePerLevel
		p.Level++
		p.MaxHealth += healthPerLevel
		p.Health = p.MaxHealth
		gained++
	}
	return gained
}

// Heal restores health, clamped to MaxHealth
func (p *Player) Heal(amount int) {
	if amount <= 0 {
		return
	}
	p.Health += amount
	if p.Health > p.MaxHealth {
		p.Health = p.MaxHealth
	}
}

// TakeDamage reduces health, clamped to 0
func (p *Player) TakeDamage(amount int) {
	if amount <= 0 {
		return
	}
	p.Health -= amount
	if p.Health < 0 {
		p.Health = 0
	}
}

// IsAlive reports whether health is above zero
func (p *Player) IsAlive() bool {
	return p.Health > 0
}

// Clone returns a deep copy
func (p *Player) Clone() *Player {
	c := *p
	c.Inventory = append(make([]string, 0, len(p.Inventory)), p.Inventory...)
	c.Skills = make(map[string]int, len(p.Skills))
	for k, v := range p.Skills {
		c.Skills[k] = v
	}
	c.Attributes = cloneAnyMap(p.Attributes)
	return &c
}

// normalize repairs a decoded player so the invariants hold again
func (p *Player) normalize() {
	if p.Name == "" {
		p.Name = DefaultPlayerName
	}
	if p.Level < 1 {
		p.Level = defaultLevel
	}
	if p.MaxHealth <= 0 {
		p.MaxHealth = defaultMaxHealth
	}
	if p.Health < 0 {
		p.Health = 0
	}
	if p.Health > p.MaxHealth {
		p.Health = p.MaxHealth
	}
	if p.Experience < 0 {
		p.Experience = 0
	}
	p.levelUp()
	if p.Inventory == nil {
		p.Inventory = make([]string, 0)
	}
	if p.Skills == nil {
		p.Skills = make(map[string]int)
	}
	if p.Attributes == nil {
		p.Attributes = make(map[string]interface{})
	}
}

// StoryNode is one archived scene
type StoryNode struct {
	SceneID      string    `json:"scene_id"`
	Description  string    `json:"description"`
	Options      []string  `json:"options"`
	PlayerChoice *string   `json:"player_choice"`
	Timestamp    Timestamp `json:"timestamp"`
}

// StoryState tracks the current scene plus everything that led to it
type StoryState struct {
	CurrentSceneID     string                 `json:"current_scene_id"`
	CurrentDescription string                 `json:"current_description"`
	CurrentOptions     []string               `json:"current_options"`
	History            []StoryNode            `json:"history"`
	StoryFlags         map[string]interface{} `json:"story_flags"`
	BranchCount        map[string]int         `json:"branch_count"`
	IsEnded            bool                   `json:"is_ended"`
	EndingType         *string                `json:"ending_type"`
}

// NewStoryState creates an empty story positioned at scene_0
func NewStoryState() *StoryState {
	return &StoryState{
		CurrentSceneID:     "scene_0",
		CurrentDescription: "",
		CurrentOptions:     make([]string, 0),
		History:            make([]StoryNode, 0),
		StoryFlags:         make(map[string]interface{}),
		BranchCount:        make(map[string]int),
	}
}

// SetScene replaces the current scene without archiving anything
func (s *StoryState) SetScene(sceneID, description string, options []string) {
	s.CurrentSceneID = sceneID
	s.CurrentDescription = description
	s.CurrentOptions = append(make([]string, 0, len(options)), options...)
}

// Advance archives the current scene to history and installs the new one
func (s *StoryState) Advance(sceneID, description string, options []string) {
	s.History = append(s.History, StoryNode{
		SceneID:     s.CurrentSceneID,
		Description: s.CurrentDescription,
		Options:     append(make([]string, 0, len(s.CurrentOptions)), s.CurrentOptions...),
		Timestamp:   Now(),
	})
	s.SetScene(sceneID, description, options)
}

// RecordChoice backfills the choice onto the most recently archived node
// and counts it
func (s *StoryState) RecordChoice(choice string) {
	if len(s.History) > 0 {
		c := choice
		s.History[len(s.History)-1].PlayerChoice = &c
	}
	s.BranchCount[choice]++
}

// CanGoBack reports whether there is an archived scene to return to
func (s *StoryState) CanGoBack() bool {
	return len(s.History) > 0
}

// GoBack pops the last archived scene and makes it current again
func (s *StoryState) GoBack() bool {
	if len(s.History) == 0 {
		return false
	}

	last := s.History[len(s.History)-1]
	s.History = s.History[:len(s.History)-1]
	s.SetScene(last.SceneID, last.Description, last.Options)
	s.IsEnded = false
	s.EndingType = nil
	return true
}

// End marks the story as finished; an ended story offers no options
func (s *StoryState) End(endingType string) {
	t := endingType
	s.IsEnded = true
	s.EndingType = &t
	s.CurrentOptions = make([]string, 0)
}

// SetFlag records a narrative flag
func (s *StoryState) SetFlag(key string, value interface{}) {
	s.StoryFlags[key] = value
}

// Flag returns a narrative flag value
func (s *StoryState) Flag(key string) (interface{}, bool) {
	v, ok := s.StoryFlags[key]
	return v, ok
}

// Context renders the last maxEntries archived scenes and the current one
// as plain text for the generator
func (s *StoryState) Context(maxEntries int) string {
	start := len(s.History) - maxEntries
	if start < 0 {
		start = 0
	}

	var b strings.Builder
	if len(s.History) > start {
		b.WriteString("之前的经历:\n")
		for _, node := range s.History[start:] {
			b.WriteString("- ")
			b.WriteString(node.Description)
			if node.PlayerChoice != nil {
				fmt.Fprintf(&b, " (选择: %s)", *node.PlayerChoice)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	b.WriteString("当前情况: ")
	b.WriteString(s.CurrentDescription)
	return b.String()
}

// Clone returns a deep copy
func (s *StoryState) Clone() *StoryState {
	c := *s
	c.CurrentOptions = append(make([]string, 0, len(s.CurrentOptions)), s.CurrentOptions...)
	c.History = make([]StoryNode, len(s.History))
	for i, node := range s.History {
		n := node
		n.Options = append(make([]string, 0, len(node.Options)), node.Options...)
		if node.PlayerChoice != nil {
			choice := *node.PlayerChoice
			n.PlayerChoice = &choice
		}
		c.History[i] = n
	}
	c.StoryFlags = cloneAnyMap(s.StoryFlags)
	c.BranchCount = make(map[string]int, len(s.BranchCount))
	for k, v := range s.BranchCount {
		c.BranchCount[k] = v
	}
	if s.EndingType != nil {
		t := *s.EndingType
		c.EndingType = &t
	}
	return &c
}

func (s *StoryState) normalize() {
	if s.CurrentOptions == nil {
		s.CurrentOptions = make([]string, 0)
	}
	if s.History == nil {
		s.History = make([]StoryNode, 0)
	}
	for i := range s.History {
		if s.History[i].Options == nil {
			s.History[i].Options = make([]string, 0)
		}
	}
	if s.StoryFlags == nil {
		s.StoryFlags = make(map[string]interface{})
	}
	if s.BranchCount == nil {
		s.BranchCount = make(map[string]int)
	}
	if s.IsEnded {
		s.CurrentOptions = make([]string, 0)
	}
}

// cloneAnyMap copies JSON-shaped values so the copy shares no maps or slices
func cloneAnyMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = cloneAny(v)
	}
	return out
}

func cloneAny(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return cloneAnyMap(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = cloneAny(item)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	default:
		return val
	}
}
