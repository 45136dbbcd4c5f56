package ending

// Ending types
const (
	TypeDead    = "dead"
	TypeGood    = "good"
	TypeNeutral = "neutral"
)

// DefaultFlag is the narrative flag that earns the good ending
const DefaultFlag = "read_diary"

// State is what the rules need to know about a session
type State interface {
	IsAlive() bool
	Flag(key string) (interface{}, bool)
}

// Outcome is the result of an ending check
type Outcome struct {
	Ended bool   `json:"ended"`
	Type  string `json:"type,omitempty"`
}

// Rules decides whether and how a story ends
type Rules struct {
	flag string
}

// NewRules creates rules keyed on flag; empty means DefaultFlag
func NewRules(flag string) *Rules {
	if flag == "" {
		flag = DefaultFlag
	}
	return &Rules{flag: flag}
}

// Flag returns the tracked flag name
func (r *Rules) Flag() string {
	return r.flag
}

// Check applies the precedence dead > terminal > active. terminal is true
// when the story reached its last preset node or the step ceiling.
func (r *Rules) Check(s State, terminal bool) Outcome {
	if !s.IsAlive() {
		return Outcome{Ended: true, Type: TypeDead}
	}
	if terminal {
		return Outcome{Ended: true, Type: r.Choose(s)}
	}
	return Outcome{}
}

// Choose picks good or neutral by the tracked flag alone
func (r *Rules) Choose(s State) string {
	v, ok := s.Flag(r.flag)
	if ok && truthy(v) {
		return TypeGood
	}
	return TypeNeutral
}

// truthy follows JSON semantics: false, 0, "", null and empty containers are false
func truthy(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case float64:
		return val != 0
	case int:
		return val != 0
	case []interface{}:
		return len(val) > 0
	case map[string]interface{}:
		return len(val) > 0
	default:
		return true
	}
}
