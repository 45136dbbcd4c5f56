package game

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/width"

	"github.com/1882952/llm-game-adventure/internal/agents"
	"github.com/1882952/llm-game-adventure/internal/ending"
	"github.com/1882952/llm-game-adventure/internal/events"
	"github.com/1882952/llm-game-adventure/internal/parser"
	"github.com/1882952/llm-game-adventure/internal/story"
)

// Mode selects where the next scene comes from
type Mode string

const (
	ModePreset    Mode = "preset"
	ModeGenerated Mode = "generated"
)

// ParseMode accepts "preset" or "generated"; empty means preset
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModePreset:
		return ModePreset, nil
	case ModeGenerated:
		return ModeGenerated, nil
	default:
		return "", fmt.Errorf("unknown mode %q", s)
	}
}

const (
	DefaultMaxGeneratedSteps   = 10
	DefaultSupplementaryChance = 0.3
	DefaultGeneratorTimeout    = 45 * time.Second

	contextEntries  = 5
	maxContextRunes = 1500
)

var (
	ErrNoGame      = errors.New("no game in progress")
	ErrStoryEnded  = errors.New("story has ended")
	ErrEmptyAction = errors.New("action is empty")
	ErrNoGenerator = errors.New("generated mode needs a generator")
	ErrNoHistory   = errors.New("no previous scene")
)

// Generator produces the raw text of the next scene
type Generator interface {
	GenerateScene(ctx context.Context, req agents.SceneRequest) (string, error)
}

// Option configures an Engine
type Option func(*Engine)

// WithGenerator sets the scene generator used in generated mode
func WithGenerator(g Generator) Option {
	return func(e *Engine) { e.generator = g }
}

// WithMode sets the starting mode
func WithMode(m Mode) Option {
	return func(e *Engine) { e.mode = m }
}

// WithTree replaces the built-in preset story
func WithTree(t *story.Tree) Option {
	return func(e *Engine) { e.tree = t }
}

// WithRules replaces the ending rules
func WithRules(r *ending.Rules) Option {
	return func(e *Engine) { e.rules = r }
}

// WithRand sets the source for random rewards
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) { e.rng = r }
}

// WithMaxGeneratedSteps sets the step ceiling in generated mode
func WithMaxGeneratedSteps(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxGeneratedSteps = n
		}
	}
}

// WithSupplementaryChance sets the probability of a random bonus per generated turn
func WithSupplementaryChance(p float64) Option {
	return func(e *Engine) {
		if p >= 0 && p <= 1 {
			e.supplementaryChance = p
		}
	}
}

// WithGeneratorTimeout bounds each generator call
func WithGeneratorTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.generatorTimeout = d
		}
	}
}

// Engine runs one play session. Turns are serialized.
type Engine struct {
	ID string

	player       *Player
	story        *StoryState
	metadata     Metadata
	optionEvents []events.Event
	storyStep    int
	resumedAt    time.Time

	mode                Mode
	tree                *story.Tree
	rules               *ending.Rules
	generator           Generator
	rng                 *rand.Rand
	notices             *NoticeQueue
	maxGeneratedSteps   int
	supplementaryChance float64
	generatorTimeout    time.Duration

	mu sync.RWMutex
}

// NewEngine creates an engine with no game loaded; call NewGame or Restore
func NewEngine(id string, opts ...Option) (*Engine, error) {
	e := &Engine{
		ID:                  id,
		mode:                ModePreset,
		notices:             NewNoticeQueue(),
		maxGeneratedSteps:   DefaultMaxGeneratedSteps,
		supplementaryChance: DefaultSupplementaryChance,
		generatorTimeout:    DefaultGeneratorTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.tree == nil {
		tree, err := story.Default()
		if err != nil {
			return nil, err
		}
		e.tree = tree
	}
	if e.rules == nil {
		e.rules = ending.NewRules("")
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewSource(newSeed()))
	}
	if e.mode != ModePreset && e.mode != ModeGenerated {
		return nil, fmt.Errorf("unknown mode %q", e.mode)
	}
	if e.mode == ModeGenerated && e.generator == nil {
		return nil, ErrNoGenerator
	}

	return e, nil
}

// newSeed reads a seed from crypto/rand, falling back to the clock
func newSeed() int64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return time.Now().UnixNano()
	}
	return int64(binary.LittleEndian.Uint64(b[:]))
}

// NewGame starts a fresh session at the opening scene
func (e *Engine) NewGame(playerName string) View {
	e.mu.Lock()
	defer e.mu.Unlock()

	opening := e.tree.Opening()
	e.player = NewPlayer(playerName)
	e.story = NewStoryState()
	e.story.SetScene(opening.ID, opening.Description, opening.OptionTexts())
	e.optionEvents = opening.OptionEvents()
	e.storyStep = 0
	e.metadata = NewMetadata()
	e.resumedAt = time.Now()
	e.notices.Drain()

	log.Printf("[engine] %s: new game for %q in %s mode", e.ID, e.player.Name, e.mode)
	return e.viewLocked()
}

// Mode returns the current mode
func (e *Engine) Mode() Mode {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.mode
}

// SetMode switches between preset and generated mode
func (e *Engine) SetMode(m Mode) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch m {
	case ModePreset:
	case ModeGenerated:
		if e.generator == nil {
			return ErrNoGenerator
		}
	default:
		return fmt.Errorf("unknown mode %q", m)
	}
	e.mode = m
	return nil
}

// StoryStep returns the number of turns taken
func (e *Engine) StoryStep() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.storyStep
}

// Player returns a copy of the player
func (e *Engine) Player() *Player {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.player == nil {
		return nil
	}
	return e.player.Clone()
}

// Story returns a copy of the story state
func (e *Engine) Story() *StoryState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.story == nil {
		return nil
	}
	return e.story.Clone()
}

// OptionEvents returns the canonical event tags of the current options
func (e *Engine) OptionEvents() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return events.Tags(e.optionEvents)
}

// Notices drains notices produced since the last call
func (e *Engine) Notices() []Notice {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.notices.Drain()
}

// View returns the presentation payload for the current scene
func (e *Engine) View() (View, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.player == nil {
		return View{}, ErrNoGame
	}
	return e.viewLocked(), nil
}

// GoBack returns to the previous scene. Player changes are kept.
func (e *Engine) GoBack() (View, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.player == nil {
		return View{}, ErrNoGame
	}
	if !e.story.GoBack() {
		return View{}, ErrNoHistory
	}
	if e.storyStep > 0 {
		e.storyStep--
	}
	e.optionEvents = e.lookupOptionEvents(e.story.CurrentSceneID, len(e.story.CurrentOptions))
	e.metadata.LastUpdated = Now()
	return e.viewLocked(), nil
}

// Snapshot returns a deep copy of the session for saving
func (e *Engine) Snapshot() (Snapshot, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.player == nil {
		return Snapshot{}, ErrNoGame
	}

	meta := e.metadata
	meta.PlayTime += int64(time.Since(e.resumedAt) / time.Second)
	return Snapshot{
		Player:   e.player.Clone(),
		Story:    e.story.Clone(),
		Metadata: meta,
	}, nil
}

// Restore replaces the whole session with snap
func (e *Engine) Restore(snap Snapshot) error {
	if snap.Player == nil || snap.Story == nil {
		return ErrInvalidDocument
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	c := snap.Clone()
	e.player = c.Player
	e.story = c.Story
	e.metadata = c.Metadata
	e.storyStep = len(e.story.History)
	e.optionEvents = e.lookupOptionEvents(e.story.CurrentSceneID, len(e.story.CurrentOptions))
	e.resumedAt = time.Now()
	e.notices.Drain()
	return nil
}

// lookupOptionEvents recovers option events for authored scenes
func (e *Engine) lookupOptionEvents(sceneID string, n int) []events.Event {
	if evs, ok := e.tree.SceneOptionEvents(sceneID); ok && len(evs) == n {
		return evs
	}
	evs := make([]events.Event, n)
	for i := range evs {
		evs[i] = events.None{}
	}
	return evs
}

// TurnResult reports what a turn did
type TurnResult struct {
	Choice   string         `json:"choice"`
	Mode     Mode           `json:"mode"`
	Tier     string         `json:"tier,omitempty"`
	FellBack bool           `json:"fell_back"`
	Notices  []Notice       `json:"notices"`
	Ending   ending.Outcome `json:"ending"`
	View     View           `json:"view"`
}

// sceneDraft is the next scene before it is committed
type sceneDraft struct {
	id          string
	description string
	options     []string
	events      []events.Event
	terminal    bool
}

// turn collects side output while a turn resolves
type turn struct {
	player  *Player
	exec    *events.Executor
	notices []Notice
}

func (t *turn) notice(kind, msg string) {
	if msg != "" {
		t.notices = append(t.notices, Notice{Kind: kind, Message: msg})
	}
}

func (t *turn) apply(kind string, evs ...events.Event) {
	for _, out := range t.exec.ApplyAll(evs) {
		t.notice(kind, out.Message)
		if out.LevelsGained > 0 {
			t.notice("level", fmt.Sprintf("恭喜！你升到了 %d 级！", t.player.Level))
		}
	}
}

// Step resolves one player action. On error the session is left exactly as
// it was before the call.
func (e *Engine) Step(ctx context.Context, action string) (*TurnResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.player == nil {
		return nil, ErrNoGame
	}
	if e.story.IsEnded {
		return nil, ErrStoryEnded
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return nil, ErrEmptyAction
	}

	savedPlayer := e.player.Clone()
	savedStory := e.story.Clone()
	savedEvents := append([]events.Event(nil), e.optionEvents...)
	savedStep := e.storyStep

	result, err := e.resolveTurn(ctx, action)
	if err != nil {
		e.player = savedPlayer
		e.story = savedStory
		e.optionEvents = savedEvents
		e.storyStep = savedStep
		log.Printf("[engine] %s: turn rolled back: %v", e.ID, err)
		return nil, err
	}
	return result, nil
}

func (e *Engine) resolveTurn(ctx context.Context, action string) (*TurnResult, error) {
	choice, idx := e.matchOption(action)
	t := &turn{player: e.player, exec: events.NewExecutor(e.player)}
	result := &TurnResult{Choice: choice, Mode: e.mode}

	// the chosen option's own event applies in every mode
	if idx >= 0 && idx < len(e.optionEvents) {
		t.apply("event", e.optionEvents[idx])
	}

	e.storyStep++

	var draft sceneDraft
	resolved := false
	if e.mode == ModeGenerated && e.generator != nil {
		d, tier, err := e.generateScene(ctx, choice)
		if err != nil {
			log.Printf("[engine] %s: generator failed at step %d, using preset: %v", e.ID, e.storyStep, err)
			result.FellBack = true
			result.Mode = ModePreset
		} else {
			draft = d
			result.Tier = tier.String()
			resolved = true
			e.progress(draft.description, t)
			e.supplementaryBonus(t)
		}
	}

	if !resolved {
		d, err := e.presetScene(choice, t, result.FellBack)
		if err != nil {
			return nil, err
		}
		draft = d
	}

	outcome := e.rules.Check(endingState{p: e.player, s: e.story}, draft.terminal)
	if outcome.Ended {
		draft = e.closeScene(draft, outcome.Type, t)
	}

	// commit
	e.story.Advance(draft.id, draft.description, draft.options)
	e.story.RecordChoice(choice)
	e.optionEvents = draft.events
	if outcome.Ended {
		e.story.End(outcome.Type)
		e.optionEvents = nil
		log.Printf("[engine] %s: story ended (%s) at step %d", e.ID, outcome.Type, e.storyStep)
	}
	e.metadata.LastUpdated = Now()

	for _, n := range t.notices {
		e.notices.Push(n.Kind, n.Message)
	}
	result.Notices = t.notices
	result.Ending = outcome
	result.View = e.viewLocked()
	return result, nil
}

// matchOption maps an option label or a 1-based index to the option text.
// Anything else is a free-form action with no option event.
func (e *Engine) matchOption(action string) (string, int) {
	for i, opt := range e.story.CurrentOptions {
		if opt == action {
			return opt, i
		}
	}

	if n, err := strconv.Atoi(width.Narrow.String(action)); err == nil {
		if n >= 1 && n <= len(e.story.CurrentOptions) {
			return e.story.CurrentOptions[n-1], n - 1
		}
	}
	return action, -1
}

// presetScene resolves the next scene from the preset tree. When standing in
// for a failed generator past the authored stages, the interlude scene is used
// and the generated step ceiling decides termination.
func (e *Engine) presetScene(choice string, t *turn, standIn bool) (sceneDraft, error) {
	if standIn {
		if e.storyStep >= e.maxGeneratedSteps {
			return sceneDraft{terminal: true}, nil
		}
		if !e.tree.HasStage(e.storyStep) {
			s := e.tree.Interlude()
			return sceneDraft{
				id:          s.ID,
				description: s.Description,
				options:     s.OptionTexts(),
				events:      s.OptionEvents(),
			}, nil
		}
	} else if e.tree.IsTerminal(e.storyStep) {
		return sceneDraft{terminal: true}, nil
	}

	node, err := e.tree.Resolve(story.Env{
		Step:      e.storyStep,
		Action:    choice,
		Flags:     e.story.StoryFlags,
		Inventory: e.player.Inventory,
		Health:    e.player.Health,
		Level:     e.player.Level,
	})
	if err != nil {
		return sceneDraft{}, fmt.Errorf("resolve preset scene: %w", err)
	}

	t.apply("event", node.Effects()...)
	for k, v := range node.SetFlags {
		e.story.SetFlag(k, v)
	}

	return sceneDraft{
		id:          node.ID,
		description: node.Description,
		options:     node.OptionTexts(),
		events:      node.OptionEvents(),
	}, nil
}

// generateScene asks the generator for the next scene. It changes nothing.
func (e *Engine) generateScene(ctx context.Context, choice string) (draft sceneDraft, tier parser.Tier, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("generator panic: %v", r)
		}
	}()

	terminal := e.storyStep >= e.maxGeneratedSteps
	sceneType := agents.SceneContinuation
	if terminal {
		sceneType = agents.SceneEnding
	}

	ctx, cancel := context.WithTimeout(ctx, e.generatorTimeout)
	defer cancel()

	reply, err := e.generator.GenerateScene(ctx, agents.SceneRequest{
		StoryContext: e.storyContext(),
		PlayerAction: choice,
		SceneType:    sceneType,
	})
	if err != nil {
		return sceneDraft{}, 0, err
	}
	if strings.TrimSpace(reply) == "" {
		return sceneDraft{}, 0, agents.ErrEmptyReply
	}

	parsed := parser.Parse(reply)
	if strings.TrimSpace(parsed.Scene.Description) == "" {
		return sceneDraft{}, 0, fmt.Errorf("generated scene has no description")
	}

	evs, perr := events.ParseAll(parsed.Scene.OptionEvents)
	if perr != nil {
		log.Printf("[engine] %s: ignoring malformed option events: %v", e.ID, perr)
	}

	return sceneDraft{
		id:          fmt.Sprintf("scene_%d", e.storyStep),
		description: parsed.Scene.Description,
		options:     parsed.Scene.Options,
		events:      evs,
		terminal:    terminal,
	}, parsed.Tier, nil
}

// storyContext is the bounded history text sent to the generator
func (e *Engine) storyContext() string {
	ctx := []rune(e.story.Context(contextEntries))
	if len(ctx) > maxContextRunes {
		ctx = ctx[len(ctx)-maxContextRunes:]
	}
	return string(ctx)
}

// closeScene turns a draft into the closing scene for an ending type
func (e *Engine) closeScene(draft sceneDraft, endingType string, t *turn) sceneDraft {
	closing := sceneDraft{
		id:          "ending_" + endingType,
		description: draft.description,
	}

	if end, ok := e.tree.Ending(endingType); ok {
		closing.id = end.ID
		switch {
		case closing.description == "":
			closing.description = end.Description
		case end.Description != "":
			closing.description += "\n\n" + end.Description
		}
		// rewards only for surviving
		if endingType != ending.TypeDead {
			t.apply("event", end.Effects()...)
		}
	}
	return closing
}

// endingState adapts the engine state to ending.State
type endingState struct {
	p *Player
	s *StoryState
}

func (st endingState) IsAlive() bool { return st.p.IsAlive() }

func (st endingState) Flag(key string) (interface{}, bool) { return st.s.Flag(key) }

// viewLocked builds a View; the caller holds the lock
func (e *Engine) viewLocked() View {
	v := View{
		SceneID:     e.story.CurrentSceneID,
		Description: e.story.CurrentDescription,
		Options:     append([]string{}, e.story.CurrentOptions...),
		Player: PlayerStatus{
			Name:       e.player.Name,
			Level:      e.player.Level,
			Health:     e.player.Health,
			MaxHealth:  e.player.MaxHealth,
			Experience: e.player.Experience,
			Inventory:  append([]string{}, e.player.Inventory...),
		},
		IsEnded:   e.story.IsEnded,
		CanGoBack: e.story.CanGoBack(),
		Mode:      e.mode,
		Step:      e.storyStep,
	}
	if e.story.EndingType != nil {
		v.EndingType = *e.story.EndingType
	}
	return v
}
