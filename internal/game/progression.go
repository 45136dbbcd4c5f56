package game

import (
	"strings"

	"github.com/1882952/llm-game-adventure/internal/events"
)

// rewardItems are handed out by keyword progression and random bonuses
var rewardItems = []string{"神秘药水", "古老钥匙", "破旧地图", "银色护符", "火把"}

// progressionRule fires at most once per generated scene when any keyword appears
type progressionRule struct {
	keywords []string
	fire     func(e *Engine, t *turn)
}

var progressionRules = []progressionRule{
	{
		keywords: []string{"获得", "发现"},
		fire: func(e *Engine, t *turn) {
			t.apply("event", events.AddItem{Name: e.randomItem()})
		},
	},
	{
		keywords: []string{"经验", "学习"},
		fire: func(e *Engine, t *turn) {
			t.apply("event", events.AddExperience{Amount: e.randomBetween(5, 20)})
		},
	},
	{
		keywords: []string{"受伤"},
		fire: func(e *Engine, t *turn) {
			t.apply("event", events.Damage{Amount: e.randomBetween(5, 15)})
		},
	},
	{
		keywords: []string{"治疗"},
		fire: func(e *Engine, t *turn) {
			t.apply("event", events.Heal{Amount: e.randomBetween(10, 20)})
		},
	},
	{
		keywords: []string{"日记", "线索"},
		fire: func(e *Engine, t *turn) {
			if _, ok := e.story.Flag(e.rules.Flag()); !ok {
				e.story.SetFlag(e.rules.Flag(), true)
				t.notice("event", "你发现了重要线索！")
			}
		},
	},
}

// progress applies keyword-driven effects for a generated description
func (e *Engine) progress(description string, t *turn) {
	for _, rule := range progressionRules {
		for _, kw := range rule.keywords {
			if strings.Contains(description, kw) {
				rule.fire(e, t)
				break
			}
		}
	}
}

// supplementaryBonus grants one random reward with the configured probability
func (e *Engine) supplementaryBonus(t *turn) {
	if e.supplementaryChance <= 0 || e.rng.Float64() >= e.supplementaryChance {
		return
	}

	switch e.rng.Intn(3) {
	case 0:
		t.apply("bonus", events.AddExperience{Amount: e.randomBetween(10, 30)})
	case 1:
		t.apply("bonus", events.AddItem{Name: e.randomItem()})
	default:
		t.apply("bonus", events.Heal{Amount: e.randomBetween(5, 15)})
	}
}

// randomBetween returns an int in [lo, hi]
func (e *Engine) randomBetween(lo, hi int) int {
	return lo + e.rng.Intn(hi-lo+1)
}

func (e *Engine) randomItem() string {
	return rewardItems[e.rng.Intn(len(rewardItems))]
}
