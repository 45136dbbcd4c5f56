// Package parser turns free-form generator replies into scenes.
//
// Three tiers are tried in order and the first success wins: a JSON object
// with description and options, a labeled description followed by an
// enumerated list, and finally the raw text with placeholder options.
// Parse never fails.
package parser

import "strings"

// Tier identifies which strategy produced a Result
type Tier int

const (
	TierStructured Tier = iota + 1
	TierLabeled
	TierDefault
)

func (t Tier) String() string {
	switch t {
	case TierStructured:
		return "structured"
	case TierLabeled:
		return "labeled"
	case TierDefault:
		return "default"
	default:
		return "unknown"
	}
}

// NoEvent is the tag used when an option carries no event
const NoEvent = "none"

// MaxLabeledOptions caps how many enumerated items the labeled tier keeps
const MaxLabeledOptions = 3

// DefaultOptions are offered when nothing better could be extracted
var DefaultOptions = []string{"继续", "查看周围", "思考"}

// Scene is a description plus options; OptionEvents[i] belongs to Options[i]
type Scene struct {
	Description  string   `json:"description"`
	Options      []string `json:"options"`
	OptionEvents []string `json:"option_events"`
}

// Result is the outcome of Parse
type Result struct {
	Scene Scene  `json:"scene"`
	Tier  Tier   `json:"tier"`
	Raw   string `json:"raw"`
}

// tierFunc is one parsing strategy
type tierFunc func(text string) (Scene, bool)

var tiers = []struct {
	tier  Tier
	parse tierFunc
}{
	{TierStructured, ParseStructured},
	{TierLabeled, ParseLabeled},
}

// Parse runs the tiers in order
func Parse(text string) Result {
	for _, t := range tiers {
		if scene, ok := t.parse(text); ok {
			return Result{Scene: scene, Tier: t.tier, Raw: text}
		}
	}
	return Result{Scene: ParseDefault(text), Tier: TierDefault, Raw: text}
}

// ParseDefault keeps the raw text verbatim and offers placeholder options
func ParseDefault(text string) Scene {
	return Scene{
		Description:  text,
		Options:      append([]string(nil), DefaultOptions...),
		OptionEvents: noEvents(len(DefaultOptions)),
	}
}

func noEvents(n int) []string {
	evs := make([]string, n)
	for i := range evs {
		evs[i] = NoEvent
	}
	return evs
}

func normalizeEvent(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return NoEvent
	}
	return tag
}
