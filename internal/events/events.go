package events

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies the verb of an event tag
type Kind string

const (
	KindNone          Kind = "none"
	KindHeal          Kind = "heal"
	KindDamage        Kind = "damage"
	KindAddItem       Kind = "add_item"
	KindRemoveItem    Kind = "remove_item"
	KindAddExperience Kind = "add_experience"
)

var (
	// ErrUnknownVerb is returned for tags whose verb is not a known Kind
	ErrUnknownVerb = errors.New("unknown event verb")
	// ErrBadArgument is returned when a tag's argument is missing or malformed
	ErrBadArgument = errors.New("bad event argument")
)

// Event is a parsed event tag. The set of implementations is closed.
type Event interface {
	Kind() Kind
	String() string
	isEvent()
}

// None does nothing
type None struct{}

// Heal restores health
type Heal struct {
	Amount int
}

// Damage reduces health
type Damage struct {
	Amount int
}

// AddItem puts an item in the inventory
type AddItem struct {
	Name string
}

// RemoveItem takes the first matching item out of the inventory
type RemoveItem struct {
	Name string
}

// AddExperience grants experience and may level the player up
type AddExperience struct {
	Amount int
}

func (None) Kind() Kind          { return KindNone }
func (Heal) Kind() Kind          { return KindHeal }
func (Damage) Kind() Kind        { return KindDamage }
func (AddItem) Kind() Kind       { return KindAddItem }
func (RemoveItem) Kind() Kind    { return KindRemoveItem }
func (AddExperience) Kind() Kind { return KindAddExperience }

func (None) String() string            { return string(KindNone) }
func (e Heal) String() string          { return fmt.Sprintf("%s:%d", KindHeal, e.Amount) }
func (e Damage) String() string        { return fmt.Sprintf("%s:%d", KindDamage, e.Amount) }
func (e AddItem) String() string       { return fmt.Sprintf("%s:%s", KindAddItem, e.Name) }
func (e RemoveItem) String() string    { return fmt.Sprintf("%s:%s", KindRemoveItem, e.Name) }
func (e AddExperience) String() string { return fmt.Sprintf("%s:%d", KindAddExperience, e.Amount) }

func (None) isEvent()          {}
func (Heal) isEvent()          {}
func (Damage) isEvent()        {}
func (AddItem) isEvent()       {}
func (RemoveItem) isEvent()    {}
func (AddExperience) isEvent() {}

// Parse turns a tag such as "heal:10" into an Event. An empty tag or "none"
// yields None. On error the returned Event is None, so callers may apply it
// unconditionally.
func Parse(tag string) (Event, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" || strings.EqualFold(tag, string(KindNone)) {
		return None{}, nil
	}

	verb, arg, _ := strings.Cut(tag, ":")
	verb = strings.ToLower(strings.TrimSpace(verb))
	arg = strings.TrimSpace(arg)

	switch Kind(verb) {
	case KindHeal:
		n, err := parseAmount(tag, arg)
		if err != nil {
			return None{}, err
		}
		return Heal{Amount: n}, nil
	case KindDamage:
		n, err := parseAmount(tag, arg)
		if err != nil {
			return None{}, err
		}
		return Damage{Amount: n}, nil
	case KindAddExperience:
		n, err := parseAmount(tag, arg)
		if err != nil {
			return None{}, err
		}
		return AddExperience{Amount: n}, nil
	case KindAddItem:
		if arg == "" {
			return None{}, fmt.Errorf("%w: %q needs an item name", ErrBadArgument, tag)
		}
		return AddItem{Name: arg}, nil
	case KindRemoveItem:
		if arg == "" {
			return None{}, fmt.Errorf("%w: %q needs an item name", ErrBadArgument, tag)
		}
		return RemoveItem{Name: arg}, nil
	case KindNone:
		return None{}, nil
	default:
		return None{}, fmt.Errorf("%w: %q", ErrUnknownVerb, tag)
	}
}

// ParseAll parses every tag. Malformed tags become None and their errors
// are joined into the returned error.
func ParseAll(tags []string) ([]Event, error) {
	out := make([]Event, len(tags))
	var errs []error
	for i, tag := range tags {
		ev, err := Parse(tag)
		if err != nil {
			errs = append(errs, err)
		}
		out[i] = ev
	}
	return out, errors.Join(errs...)
}

// Tags renders events back to their canonical tag strings
func Tags(evs []Event) []string {
	out := make([]string, len(evs))
	for i, ev := range evs {
		if ev == nil {
			ev = None{}
		}
		out[i] = ev.String()
	}
	return out
}

// parseAmount accepts non-negative integers only
func parseAmount(tag, arg string) (int, error) {
	if arg == "" {
		return 0, fmt.Errorf("%w: %q needs an amount", ErrBadArgument, tag)
	}
	n, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("%w: %q amount is not an integer", ErrBadArgument, tag)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: %q amount is negative", ErrBadArgument, tag)
	}
	return n, nil
}
