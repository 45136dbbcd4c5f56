package story

import (
	"errors"
	"testing"

	"github.com/1882952/llm-game-adventure/internal/events"
)

func loadDefault(t *testing.T) *Tree {
	t.Helper()
	tree, err := Default()
	if err != nil {
		t.Fatalf("Failed to load default preset: %v", err)
	}
	return tree
}

// TestDefaultOpening tests the built-in opening scene
func TestDefaultOpening(t *testing.T) {
	tree := loadDefault(t)

	opening := tree.Opening()
	if opening.ID != "start_0" {
		t.Errorf("Expected opening id 'start_0', got '%s'", opening.ID)
	}
	if len(opening.Options) != 3 {
		t.Fatalf("Expected 3 options, got %d", len(opening.Options))
	}

	evs := opening.OptionEvents()
	if evs[0] != (events.AddItem{Name: "古老钥匙"}) {
		t.Errorf("Expected first option to grant 古老钥匙, got %#v", evs[0])
	}
	if evs[1] != (events.None{}) {
		t.Errorf("Expected second option to carry no event, got %#v", evs[1])
	}
}

// TestResolveStageOne tests substring routing at the first step
func TestResolveStageOne(t *testing.T) {
	tree := loadDefault(t)

	tests := []struct {
		action string
		want   string
	}{
		{"环顾四周", "scene_1_look"},
		{"呼喊有人吗", "scene_1_shout"},
		{"继续睡觉", "scene_1_sleep"},
		{"随便做点什么", "scene_1_sleep"},
	}

	for _, tt := range tests {
		node, err := tree.Resolve(Env{Step: 1, Action: tt.action})
		if err != nil {
			t.Fatalf("Resolve(%q) failed: %v", tt.action, err)
		}
		if node.ID != tt.want {
			t.Errorf("Resolve(%q): expected %s, got %s", tt.action, tt.want, node.ID)
		}
	}
}

// TestResolveDiaryEffects tests the scripted diary node
func TestResolveDiaryEffects(t *testing.T) {
	tree := loadDefault(t)

	node, err := tree.Resolve(Env{Step: 2, Action: "查看日记"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if node.ID != "scene_2_diary" {
		t.Fatalf("Expected scene_2_diary, got %s", node.ID)
	}
	if len(node.Effects()) != 2 {
		t.Fatalf("Expected 2 effects, got %d", len(node.Effects()))
	}
	if node.SetFlags["read_diary"] != true {
		t.Errorf("Expected read_diary flag, got %v", node.SetFlags)
	}
}

// TestResolveMissingStage tests steps without a stage
func TestResolveMissingStage(t *testing.T) {
	tree := loadDefault(t)

	_, err := tree.Resolve(Env{Step: 7, Action: "x"})
	if !errors.Is(err, ErrNoMatch) {
		t.Errorf("Expected ErrNoMatch, got %v", err)
	}
}

// TestTerminalAndEndings tests the final step and ending scenes
func TestTerminalAndEndings(t *testing.T) {
	tree := loadDefault(t)

	if tree.IsTerminal(2) {
		t.Error("Expected step 2 not to be terminal")
	}
	if !tree.IsTerminal(3) {
		t.Error("Expected step 3 to be terminal")
	}

	for _, kind := range []string{"good", "neutral", "dead"} {
		ending, ok := tree.Ending(kind)
		if !ok {
			t.Fatalf("Expected ending %s", kind)
		}
		if ending.ID != "ending_"+kind {
			t.Errorf("Expected id ending_%s, got %s", kind, ending.ID)
		}
	}

	good, _ := tree.Ending("good")
	if len(good.Effects()) != 1 || good.Effects()[0] != (events.AddExperience{Amount: 50}) {
		t.Errorf("Unexpected good ending effects: %#v", good.Effects())
	}
}

// TestSceneOptionEvents tests event lookup by scene id
func TestSceneOptionEvents(t *testing.T) {
	tree := loadDefault(t)

	evs, ok := tree.SceneOptionEvents("scene_1_look")
	if !ok {
		t.Fatal("Expected scene_1_look to be known")
	}
	if evs[2] != (events.Damage{Amount: 5}) {
		t.Errorf("Expected damage:5 on third option, got %#v", evs[2])
	}

	if _, ok := tree.SceneOptionEvents("nope"); ok {
		t.Error("Expected unknown scene to be reported")
	}
}

// TestLoadConditions tests conditions over flags and inventory
func TestLoadConditions(t *testing.T) {
	def := []byte(`
opening:
  id: o
  description: start
  options:
    - text: go
stages:
  - step: 1
    nodes:
      - id: rich
        when: '"金币" in inventory && flags["brave"] == true'
        description: rich
        options: [{text: a}]
      - id: poor
        description: poor
        options: [{text: b}]
final_step: 2
`)
	tree, err := Load(def)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	node, err := tree.Resolve(Env{Step: 1, Inventory: []string{"金币"}, Flags: map[string]interface{}{"brave": true}})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if node.ID != "rich" {
		t.Errorf("Expected rich, got %s", node.ID)
	}

	node, err = tree.Resolve(Env{Step: 1})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if node.ID != "poor" {
		t.Errorf("Expected poor, got %s", node.ID)
	}
}

// TestLoadRejectsBadInput tests compile-time validation
func TestLoadRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"bad condition": `
opening: {id: o, description: d, options: [{text: a}]}
stages:
  - step: 1
    nodes: [{id: n, when: "action contains", description: d, options: [{text: a}]}]
final_step: 2
`,
		"bad event": `
opening: {id: o, description: d, options: [{text: a, event: "fly:1"}]}
final_step: 2
`,
		"no final step": `
opening: {id: o, description: d, options: [{text: a}]}
`,
		"duplicate scene": `
opening: {id: o, description: d, options: [{text: a}]}
stages:
  - step: 1
    nodes: [{id: o, description: d, options: [{text: a}]}]
final_step: 2
`,
	}

	for name, def := range cases {
		if _, err := Load([]byte(def)); err == nil {
			t.Errorf("%s: expected Load to fail", name)
		}
	}
}
