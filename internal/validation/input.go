package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	maxSlotNameLen   = 64
	maxPlayerNameLen = 32
	maxActionLen     = 200
)

var slotNamePattern = regexp.MustCompile(`^[\p{L}\p{N}_-]+$`)

// ValidateSlotName validates a save slot name. Letters in any script,
// digits, hyphens and underscores are allowed.
func ValidateSlotName(name string) error {
	if n := utf8.RuneCountInString(name); n == 0 || n > maxSlotNameLen {
		return fmt.Errorf("slot name must be 1-%d characters", maxSlotNameLen)
	}

	if !slotNamePattern.MatchString(name) {
		return fmt.Errorf("slot name can only contain letters, digits, hyphens, and underscores")
	}

	return nil
}

// ValidateSessionID validates session ID format
func ValidateSessionID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("session ID must be a UUID")
	}
	return nil
}

// ValidatePlayerName validates a player name; empty means the default name
func ValidatePlayerName(name string) error {
	if utf8.RuneCountInString(name) > maxPlayerNameLen {
		return fmt.Errorf("player name must be at most %d characters", maxPlayerNameLen)
	}
	if strings.IndexFunc(name, unicode.IsControl) >= 0 {
		return fmt.Errorf("player name cannot contain control characters")
	}
	return nil
}

// ValidateAction validates a player action
func ValidateAction(action string) error {
	action = strings.TrimSpace(action)
	if action == "" {
		return fmt.Errorf("action is required")
	}
	if utf8.RuneCountInString(action) > maxActionLen {
		return fmt.Errorf("action must be at most %d characters", maxActionLen)
	}
	return nil
}
