package upload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Journal persists sagas that failed so they can be resumed later, possibly
// by another process.
type Journal interface {
	// Save stores saga, replacing any earlier entry with the same id. payload
	// is written only when non-nil; an existing payload is kept otherwise.
	Save(ctx context.Context, saga Saga, payload []byte) error
	// List returns every pending saga, oldest first.
	List(ctx context.Context) ([]Saga, error)
	// Payload returns the spooled payload of a saga.
	Payload(ctx context.Context, id string) ([]byte, error)
	// Remove deletes a saga and its payload.
	Remove(ctx context.Context, id string) error
}

// FileJournal stores each saga as <id>.json next to its payload <id>.audio.
type FileJournal struct {
	dir string
}

var _ Journal = (*FileJournal)(nil)

func NewFileJournal(dir string) *FileJournal {
	return &FileJournal{dir: dir}
}

func (j *FileJournal) Save(ctx context.Context, saga Saga, payload []byte) error {
	if err := os.MkdirAll(j.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create journal dir: %w", err)
	}

	if payload != nil {
		if err := writeAtomic(j.payloadPath(saga.ID), payload); err != nil {
			return fmt.Errorf("failed to spool payload: %w", err)
		}
	}

	data, err := json.MarshalIndent(saga, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode saga: %w", err)
	}

	if err := writeAtomic(j.sagaPath(saga.ID), data); err != nil {
		return fmt.Errorf("failed to write saga: %w", err)
	}

	if !saga.NeedsPayload() {
		if err := os.Remove(j.payloadPath(saga.ID)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to drop spooled payload: %w", err)
		}
	}

	return nil
}

func (j *FileJournal) List(ctx context.Context) ([]Saga, error) {
	entries, err := os.ReadDir(j.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read journal dir: %w", err)
	}

	var sagas []Saga
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(j.dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read saga %s: %w", e.Name(), err)
		}

		var s Saga
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("failed to decode saga %s: %w", e.Name(), err)
		}
		sagas = append(sagas, s)
	}

	slices.SortFunc(sagas, func(a, b Saga) int { return a.CreatedAt.Compare(b.CreatedAt) })

	return sagas, nil
}

func (j *FileJournal) Payload(ctx context.Context, id string) ([]byte, error) {
	data, err := os.ReadFile(j.payloadPath(id))
	if err != nil {
		return nil, fmt.Errorf("failed to read spooled payload: %w", err)
	}

	return data, nil
}

func (j *FileJournal) Remove(ctx context.Context, id string) error {
	var errs []error
	for _, p := range []string{j.sagaPath(id), j.payloadPath(id)} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (j *FileJournal) sagaPath(id string) string {
	return filepath.Join(j.dir, id+".json")
}

func (j *FileJournal) payloadPath(id string) string {
	return filepath.Join(j.dir, id+".audio")
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}

	return os.Rename(tmp, path)
}
