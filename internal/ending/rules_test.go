package ending

import "testing"

type fakeState struct {
	alive bool
	flags map[string]interface{}
}

func (s fakeState) IsAlive() bool { return s.alive }

func (s fakeState) Flag(key string) (interface{}, bool) {
	v, ok := s.flags[key]
	return v, ok
}

// TestCheckPrecedence tests dead > terminal > active
func TestCheckPrecedence(t *testing.T) {
	rules := NewRules("")

	dead := fakeState{alive: false, flags: map[string]interface{}{DefaultFlag: true}}
	if out := rules.Check(dead, true); !out.Ended || out.Type != TypeDead {
		t.Errorf("Expected dead ending, got %+v", out)
	}
	if out := rules.Check(dead, false); !out.Ended || out.Type != TypeDead {
		t.Errorf("Expected dead ending without terminal, got %+v", out)
	}

	alive := fakeState{alive: true, flags: map[string]interface{}{}}
	if out := rules.Check(alive, false); out.Ended {
		t.Errorf("Expected active story, got %+v", out)
	}
	if out := rules.Check(alive, true); out.Type != TypeNeutral {
		t.Errorf("Expected neutral ending, got %+v", out)
	}

	alive.flags[DefaultFlag] = true
	if out := rules.Check(alive, true); out.Type != TypeGood {
		t.Errorf("Expected good ending, got %+v", out)
	}
}

// TestChooseTruthiness tests flag values as they come back from JSON
func TestChooseTruthiness(t *testing.T) {
	rules := NewRules("found")

	tests := []struct {
		value interface{}
		want  string
	}{
		{true, TypeGood},
		{false, TypeNeutral},
		{float64(1), TypeGood},
		{float64(0), TypeNeutral},
		{"yes", TypeGood},
		{"", TypeNeutral},
		{nil, TypeNeutral},
	}

	for _, tt := range tests {
		s := fakeState{alive: true, flags: map[string]interface{}{"found": tt.value}}
		if got := rules.Choose(s); got != tt.want {
			t.Errorf("Choose(%v): expected %s, got %s", tt.value, tt.want, got)
		}
	}

	if rules.Flag() != "found" {
		t.Errorf("Expected flag 'found', got '%s'", rules.Flag())
	}
}
