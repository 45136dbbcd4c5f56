// Package store persists play sessions in named save slots.
//
// A Store validates slot names and encodes snapshots; a Backend only moves
// whole documents. Loading never touches an engine until the document has
// decoded cleanly.
package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/1882952/llm-game-adventure/internal/game"
	"github.com/1882952/llm-game-adventure/internal/validation"
)

var (
	ErrSlotNotFound = errors.New("save slot not found")
	ErrInvalidSlot  = errors.New("invalid save slot name")
	ErrCorruptSlot  = errors.New("save slot is corrupt")
)

// SlotInfo is one entry of a slot listing
type SlotInfo struct {
	Name      string    `json:"name"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Backend stores raw save documents by slot name. Get and Delete return
// ErrSlotNotFound for unknown slots.
type Backend interface {
	Put(ctx context.Context, name string, doc []byte, updatedAt time.Time) error
	Get(ctx context.Context, name string) ([]byte, error)
	List(ctx context.Context) ([]SlotInfo, error)
	Delete(ctx context.Context, name string) error
	Close() error
}

// Summary describes a slot without loading it into an engine
type Summary struct {
	Slot        string         `json:"slot"`
	PlayerName  string         `json:"player_name"`
	Level       int            `json:"level"`
	SceneID     string         `json:"current_scene"`
	IsEnded     bool           `json:"is_ended"`
	CreatedAt   game.Timestamp `json:"created_at"`
	LastUpdated game.Timestamp `json:"last_updated"`
	PlayTime    int64          `json:"play_time"`
}

// Store reads and writes snapshots through a Backend
type Store struct {
	backend Backend
}

// New creates a store over backend
func New(backend Backend) *Store {
	return &Store{backend: backend}
}

// Close releases the backend
func (s *Store) Close() error {
	return s.backend.Close()
}

func checkSlot(name string) error {
	if err := validation.ValidateSlotName(name); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSlot, err)
	}
	return nil
}

// Save writes snap to slot, replacing what was there
func (s *Store) Save(ctx context.Context, slot string, snap game.Snapshot) error {
	if err := checkSlot(slot); err != nil {
		return err
	}

	doc := snap.Clone()
	doc.Metadata.LastUpdated = game.Now()
	if doc.Metadata.CreatedAt.IsZero() {
		doc.Metadata.CreatedAt = doc.Metadata.LastUpdated
	}
	doc.Metadata.Version = game.SaveVersion

	data, err := doc.Encode()
	if err != nil {
		return fmt.Errorf("encode slot %s: %w", slot, err)
	}

	if err := s.backend.Put(ctx, slot, data, doc.Metadata.LastUpdated.Time); err != nil {
		return fmt.Errorf("save slot %s: %w", slot, err)
	}

	log.Printf("[store] saved slot %s (%d bytes)", slot, len(data))
	return nil
}

// Load reads and decodes slot
func (s *Store) Load(ctx context.Context, slot string) (game.Snapshot, error) {
	if err := checkSlot(slot); err != nil {
		return game.Snapshot{}, err
	}

	data, err := s.backend.Get(ctx, slot)
	if err != nil {
		return game.Snapshot{}, fmt.Errorf("load slot %s: %w", slot, err)
	}

	snap, err := game.DecodeSnapshot(data)
	if err != nil {
		return game.Snapshot{}, fmt.Errorf("%w: %s: %v", ErrCorruptSlot, slot, err)
	}
	return snap, nil
}

// List returns all slots, newest first
func (s *Store) List(ctx context.Context) ([]SlotInfo, error) {
	slots, err := s.backend.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}

	sort.SliceStable(slots, func(i, j int) bool {
		if !slots[i].UpdatedAt.Equal(slots[j].UpdatedAt) {
			return slots[i].UpdatedAt.After(slots[j].UpdatedAt)
		}
		return slots[i].Name < slots[j].Name
	})
	return slots, nil
}

// Inspect summarizes slot
func (s *Store) Inspect(ctx context.Context, slot string) (Summary, error) {
	snap, err := s.Load(ctx, slot)
	if err != nil {
		return Summary{}, err
	}

	return Summary{
		Slot:        slot,
		PlayerName:  snap.Player.Name,
		Level:       snap.Player.Level,
		SceneID:     snap.Story.CurrentSceneID,
		IsEnded:     snap.Story.IsEnded,
		CreatedAt:   snap.Metadata.CreatedAt,
		LastUpdated: snap.Metadata.LastUpdated,
		PlayTime:    snap.Metadata.PlayTime,
	}, nil
}

// Delete removes slot
func (s *Store) Delete(ctx context.Context, slot string) error {
	if err := checkSlot(slot); err != nil {
		return err
	}
	if err := s.backend.Delete(ctx, slot); err != nil {
		return fmt.Errorf("delete slot %s: %w", slot, err)
	}

	log.Printf("[store] deleted slot %s", slot)
	return nil
}

// SaveEngine saves the engine's current session to slot
func (s *Store) SaveEngine(ctx context.Context, slot string, e *game.Engine) error {
	snap, err := e.Snapshot()
	if err != nil {
		return err
	}
	return s.Save(ctx, slot, snap)
}

// LoadInto restores slot into e. On any error e is left as it was.
func (s *Store) LoadInto(ctx context.Context, slot string, e *game.Engine) error {
	snap, err := s.Load(ctx, slot)
	if err != nil {
		return err
	}
	return e.Restore(snap)
}
