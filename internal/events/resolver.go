package events

import (
	"fmt"
	"log"
)

// PlayerUpdater is the part of a player an event can change
type PlayerUpdater interface {
	Heal(amount int)
	TakeDamage(amount int)
	AddItem(item string)
	RemoveItem(item string) bool
	AddExperience(amount int) int
}

// Outcome describes what applying one event did
type Outcome struct {
	Event        Event
	Message      string // empty when nothing visible happened
	LevelsGained int
}

// Executor applies events to a player
type Executor struct {
	player PlayerUpdater
}

// NewExecutor creates a new executor
func NewExecutor(player PlayerUpdater) *Executor {
	return &Executor{player: player}
}

// Apply applies a single parsed event
func (e *Executor) Apply(ev Event) Outcome {
	out := Outcome{Event: ev}
	switch ev := ev.(type) {
	case Heal:
		e.player.Heal(ev.Amount)
		out.Message = fmt.Sprintf("你恢复了 %d 点生命值！", ev.Amount)
	case Damage:
		e.player.TakeDamage(ev.Amount)
		out.Message = fmt.Sprintf("你受到了 %d 点伤害！", ev.Amount)
	case AddItem:
		e.player.AddItem(ev.Name)
		out.Message = fmt.Sprintf("你获得了物品：%s", ev.Name)
	case RemoveItem:
		// an absent item is not an error
		if e.player.RemoveItem(ev.Name) {
			out.Message = fmt.Sprintf("你失去了物品：%s", ev.Name)
		}
	case AddExperience:
		out.LevelsGained = e.player.AddExperience(ev.Amount)
		out.Message = fmt.Sprintf("你获得了 %d 点经验值！", ev.Amount)
	default:
		out.Event = None{}
	}
	return out
}

// ApplyAll applies events in order
func (e *Executor) ApplyAll(evs []Event) []Outcome {
	outcomes := make([]Outcome, 0, len(evs))
	for _, ev := range evs {
		if ev == nil {
			continue
		}
		outcomes = append(outcomes, e.Apply(ev))
	}
	return outcomes
}

// ApplyTag parses and applies one raw tag. A malformed tag changes nothing.
func (e *Executor) ApplyTag(tag string) (Outcome, error) {
	ev, err := Parse(tag)
	if err != nil {
		return Outcome{Event: None{}}, err
	}
	return e.Apply(ev), nil
}

// ApplyTags applies raw tags one by one. Malformed tags are logged and
// skipped; the remaining tags still apply.
func (e *Executor) ApplyTags(tags []string) []Outcome {
	outcomes := make([]Outcome, 0, len(tags))
	for _, tag := range tags {
		out, err := e.ApplyTag(tag)
		if err != nil {
			log.Printf("[events] skipping tag: %v", err)
			continue
		}
		outcomes = append(outcomes, out)
	}
	return outcomes
}
