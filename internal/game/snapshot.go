package game

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SaveVersion is written into every save document
const SaveVersion = "1.0"

// timestampLayout matches the ISO form older save files were written in
const timestampLayout = "2006-01-02T15:04:05.000000"

var timestampLayouts = []string{
	timestampLayout,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ErrInvalidDocument is returned when a save document is missing a required section
var ErrInvalidDocument = errors.New("invalid save document")

// Timestamp is a time that round-trips through the save document's ISO format
type Timestamp struct {
	time.Time
}

// Now returns the current time at the precision the save format keeps,
// without a monotonic reading, so a saved value loads back Equal
func Now() Timestamp {
	return Timestamp{Time: time.Now().Truncate(time.Microsecond).Round(0)}
}

// MarshalJSON writes local time without a zone
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Local().Format(timestampLayout))
}

// UnmarshalJSON accepts the layouts listed in timestampLayouts
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		t.Time = time.Time{}
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}

	for _, layout := range timestampLayouts {
		parsed, err := time.ParseInLocation(layout, raw, time.Local)
		if err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("timestamp: unrecognized format %q", raw)
}

// Metadata is bookkeeping stored next to the player and story
type Metadata struct {
	CreatedAt   Timestamp `json:"created_at"`
	LastUpdated Timestamp `json:"last_updated"`
	PlayTime    int64     `json:"play_time"` // seconds
	Version     string    `json:"version"`
}

// NewMetadata stamps both times with now
func NewMetadata() Metadata {
	now := Now()
	return Metadata{
		CreatedAt:   now,
		LastUpdated: now,
		PlayTime:    0,
		Version:     SaveVersion,
	}
}

// Snapshot is the complete persisted form of a session
type Snapshot struct {
	Player   *Player     `json:"player"`
	Story    *StoryState `json:"story"`
	Metadata Metadata    `json:"metadata"`
}

// Clone returns a deep copy
func (s Snapshot) Clone() Snapshot {
	c := Snapshot{Metadata: s.Metadata}
	if s.Player != nil {
		c.Player = s.Player.Clone()
	}
	if s.Story != nil {
		c.Story = s.Story.Clone()
	}
	return c
}

// Encode renders the snapshot as an indented save document
func (s Snapshot) Encode() ([]byte, error) {
	if s.Player == nil || s.Story == nil {
		return nil, ErrInvalidDocument
	}
	return json.MarshalIndent(s, "", "  ")
}

// DecodeSnapshot parses a save document. Nothing is returned unless the
// whole document parses and both player and story sections are present.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if snap.Player == nil {
		return Snapshot{}, fmt.Errorf("%w: missing player", ErrInvalidDocument)
	}
	if snap.Story == nil {
		return Snapshot{}, fmt.Errorf("%w: missing story", ErrInvalidDocument)
	}

	snap.Player.normalize()
	snap.Story.normalize()
	if snap.Metadata.Version == "" {
		snap.Metadata.Version = SaveVersion
	}
	return snap, nil
}
