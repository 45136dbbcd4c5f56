package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const slotExt = ".json"

// FileBackend keeps one JSON file per slot in a directory
type FileBackend struct {
	dir string
}

// NewFileBackend creates dir if needed
func NewFileBackend(dir string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create save dir: %w", err)
	}
	return &FileBackend{dir: dir}, nil
}

func (b *FileBackend) path(name string) string {
	return filepath.Join(b.dir, name+slotExt)
}

// Put writes a temp file, syncs it and renames it over the slot
func (b *FileBackend) Put(ctx context.Context, name string, doc []byte, updatedAt time.Time) error {
	tmp, err := os.CreateTemp(b.dir, "."+name+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(doc); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmpName, b.path(name)); err != nil {
		return err
	}
	return os.Chtimes(b.path(name), updatedAt, updatedAt)
}

// Get reads a slot file
func (b *FileBackend) Get(ctx context.Context, name string) ([]byte, error) {
	data, err := os.ReadFile(b.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrSlotNotFound
	}
	return data, err
}

// List returns slot files with their modification times
func (b *FileBackend) List(ctx context.Context) ([]SlotInfo, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, err
	}

	slots := make([]SlotInfo, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, slotExt) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue // removed while listing
		}
		slots = append(slots, SlotInfo{
			Name:      strings.TrimSuffix(name, slotExt),
			UpdatedAt: info.ModTime(),
		})
	}
	return slots, nil
}

// Delete removes a slot file
func (b *FileBackend) Delete(ctx context.Context, name string) error {
	err := os.Remove(b.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrSlotNotFound
	}
	return err
}

// Close does nothing
func (b *FileBackend) Close() error {
	return nil
}
