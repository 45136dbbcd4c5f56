package story

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"gopkg.in/yaml.v3"

	"github.com/1882952/llm-game-adventure/internal/events"
)

//go:embed preset.yaml
var defaultPreset []byte

// conditionTimeout bounds a single condition evaluation
const conditionTimeout = 100 * time.Millisecond

// ErrNoMatch is returned when no node of a stage accepts the action
var ErrNoMatch = errors.New("no preset node matches")

// Option is one choice offered by a scene
type Option struct {
	Text  string       `yaml:"text"`
	Event string       `yaml:"event"`
	event events.Event
}

// Scene is an authored scene
type Scene struct {
	ID          string   `yaml:"id"`
	Description string   `yaml:"description"`
	Options     []Option `yaml:"options"`
}

// OptionTexts returns the option labels in order
func (s *Scene) OptionTexts() []string {
	out := make([]string, len(s.Options))
	for i, o := range s.Options {
		out[i] = o.Text
	}
	return out
}

// OptionEvents returns the parsed option events in order
func (s *Scene) OptionEvents() []events.Event {
	out := make([]events.Event, len(s.Options))
	for i, o := range s.Options {
		out[i] = o.event
	}
	return out
}

// Node is a scene reached when its condition holds at its stage
type Node struct {
	Scene      `yaml:",inline"`
	Condition  string                 `yaml:"when"`
	EffectTags []string               `yaml:"effects"`
	SetFlags   map[string]interface{} `yaml:"set_flags"`

	effects         []events.Event
	compiledProgram *vm.Program
}

// Effects returns the events applied when the node is entered
func (n *Node) Effects() []events.Event {
	return n.effects
}

// Ending is the closing scene for one ending type
type Ending struct {
	ID          string   `yaml:"id"`
	Description string   `yaml:"description"`
	EffectTags  []string `yaml:"effects"`

	effects []events.Event
}

// Effects returns the events applied when the ending is reached
func (e *Ending) Effects() []events.Event {
	return e.effects
}

type stage struct {
	Step  int     `yaml:"step"`
	Nodes []*Node `yaml:"nodes"`
}

type definition struct {
	Opening   Scene              `yaml:"opening"`
	Interlude Scene              `yaml:"interlude"`
	Stages    []stage            `yaml:"stages"`
	FinalStep int                `yaml:"final_step"`
	Endings   map[string]*Ending `yaml:"endings"`
}

// Env is what node conditions can see
type Env struct {
	Step      int
	Action    string
	Flags     map[string]interface{}
	Inventory []string
	Health    int
	Level     int
}

func (e Env) toMap() map[string]interface{} {
	flags := e.Flags
	if flags == nil {
		flags = map[string]interface{}{}
	}
	inventory := e.Inventory
	if inventory == nil {
		inventory = []string{}
	}
	return map[string]interface{}{
		"step":      e.Step,
		"action":    e.Action,
		"flags":     flags,
		"inventory": inventory,
		"health":    e.Health,
		"level":     e.Level,
	}
}

// Tree is the preset decision tree. It is read-only once loaded.
type Tree struct {
	opening   Scene
	interlude Scene
	stages    map[int][]*Node
	finalStep int
	endings   map[string]*Ending
	scenes    map[string]*Scene // by scene ID
}

// Default loads the built-in preset story
func Default() (*Tree, error) {
	return Load(defaultPreset)
}

// Load parses a YAML tree definition, compiling conditions and event tags
func Load(data []byte) (*Tree, error) {
	var def definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse preset: %w", err)
	}

	if def.Opening.ID == "" || len(def.Opening.Options) == 0 {
		return nil, fmt.Errorf("preset opening needs an id and options")
	}
	if def.FinalStep < 1 {
		return nil, fmt.Errorf("preset final_step must be at least 1")
	}

	t := &Tree{
		opening:   def.Opening,
		stages:    make(map[int][]*Node),
		finalStep: def.FinalStep,
		endings:   make(map[string]*Ending),
		scenes:    make(map[string]*Scene),
	}

	if err := t.addScene(&t.opening); err != nil {
		return nil, err
	}

	t.interlude = def.Interlude
	if t.interlude.ID == "" {
		t.interlude = defaultInterlude()
	}
	if err := t.addScene(&t.interlude); err != nil {
		return nil, err
	}

	for _, st := range def.Stages {
		if st.Step < 1 || st.Step >= def.FinalStep {
			return nil, fmt.Errorf("stage %d outside 1..%d", st.Step, def.FinalStep-1)
		}
		for _, node := range st.Nodes {
			if err := t.addNode(node); err != nil {
				return nil, err
			}
			t.stages[st.Step] = append(t.stages[st.Step], node)
		}
	}

	for kind, ending := range def.Endings {
		effects, err := parseTags(ending.EffectTags)
		if err != nil {
			return nil, fmt.Errorf("ending %s: %w", kind, err)
		}
		ending.effects = effects
		if ending.ID == "" {
			ending.ID = "ending_" + kind
		}
		t.endings[kind] = ending
	}

	return t, nil
}

func (t *Tree) addScene(s *Scene) error {
	if s.ID == "" {
		return fmt.Errorf("scene without id")
	}
	if _, exists := t.scenes[s.ID]; exists {
		return fmt.Errorf("scene %s already exists", s.ID)
	}
	for i := range s.Options {
		ev, err := events.Parse(s.Options[i].Event)
		if err != nil {
			return fmt.Errorf("scene %s option %d: %w", s.ID, i+1, err)
		}
		s.Options[i].event = ev
	}
	t.scenes[s.ID] = s
	return nil
}

func (t *Tree) addNode(node *Node) error {
	if err := t.addScene(&node.Scene); err != nil {
		return err
	}

	if node.Condition != "" {
		program, err := expr.Compile(node.Condition, expr.AsBool())
		if err != nil {
			return fmt.Errorf("invalid condition for node %s: %w", node.ID, err)
		}
		node.compiledProgram = program
	}

	effects, err := parseTags(node.EffectTags)
	if err != nil {
		return fmt.Errorf("node %s: %w", node.ID, err)
	}
	node.effects = effects
	return nil
}

// Opening returns the first scene of a new game
func (t *Tree) Opening() Scene {
	return t.opening
}

// Interlude is the stand-in scene used past the authored stages
func (t *Tree) Interlude() Scene {
	return t.interlude
}

// HasStage reports whether step has authored nodes
func (t *Tree) HasStage(step int) bool {
	_, ok := t.stages[step]
	return ok
}

// IsTerminal reports whether reaching step ends the story
func (t *Tree) IsTerminal(step int) bool {
	return step >= t.finalStep
}

// Ending returns the closing scene for an ending type
func (t *Tree) Ending(kind string) (*Ending, bool) {
	e, ok := t.endings[kind]
	return e, ok
}

// SceneOptionEvents returns the option events of an authored scene
func (t *Tree) SceneOptionEvents(sceneID string) ([]events.Event, bool) {
	s, ok := t.scenes[sceneID]
	if !ok {
		return nil, false
	}
	return s.OptionEvents(), true
}

// Resolve picks the first node of env.Step whose condition holds
func (t *Tree) Resolve(env Env) (*Node, error) {
	nodes, ok := t.stages[env.Step]
	if !ok {
		return nil, fmt.Errorf("%w: step %d has no stage", ErrNoMatch, env.Step)
	}

	state := env.toMap()
	for _, node := range nodes {
		matched, err := checkCondition(node, state)
		if err != nil {
			return nil, err
		}
		if matched {
			return node, nil
		}
	}
	return nil, fmt.Errorf("%w: step %d action %q", ErrNoMatch, env.Step, env.Action)
}

// checkCondition evaluates a node's condition under a timeout
func checkCondition(node *Node, state map[string]interface{}) (bool, error) {
	if node.compiledProgram == nil {
		return true, nil // no condition = always true
	}

	ctx, cancel := context.WithTimeout(context.Background(), conditionTimeout)
	defer cancel()

	resultChan := make(chan interface{}, 1)
	errChan := make(chan error, 1)

	go func() {
		result, err := vm.Run(node.compiledProgram, state)
		if err != nil {
			errChan <- err
		} else {
			resultChan <- result
		}
	}()

	select {
	case <-ctx.Done():
		return false, fmt.Errorf("condition for node %s timed out", node.ID)
	case err := <-errChan:
		return false, fmt.Errorf("condition evaluation error for node %s: %w", node.ID, err)
	case result := <-resultChan:
		boolResult, ok := result.(bool)
		if !ok {
			return false, fmt.Errorf("condition for node %s did not evaluate to boolean", node.ID)
		}
		return boolResult, nil
	}
}

func defaultInterlude() Scene {
	return Scene{
		ID:          "interlude",
		Description: "一阵迷雾包围了你，当雾气散去时，周围的景象似乎发生了变化……",
		Options: []Option{
			{Text: "继续前进"},
			{Text: "观察周围"},
			{Text: "原地休息", Event: "heal:5"},
		},
	}
}

func parseTags(tags []string) ([]events.Event, error) {
	out := make([]events.Event, 0, len(tags))
	for _, tag := range tags {
		ev, err := events.Parse(tag)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}
