package state

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Store is the on-disk cursor table, keyed by device identifier. The whole
// table is loaded once at construction and rewritten on every Put. Two
// processes sharing one file race last-writer-wins; the store does not lock.
type Store struct {
	path    string
	log     *slog.Logger
	cursors map[string]Cursor
	now     func() time.Time
}

// Open loads the cursor table at path. A missing or corrupt file yields an
// empty table: lost novelty state is recoverable, a dead pipeline is not.
func Open(path string, log *slog.Logger) (*Store, error) {
	s := &Store{
		path:    path,
		log:     log,
		cursors: make(map[string]Cursor),
		now:     time.Now,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info("no previous state found, starting fresh", "path", path)
			return s, nil
		}
		return nil, fmt.Errorf("read state: %w", err)
	}

	if err := json.Unmarshal(data, &s.cursors); err != nil {
		log.Warn("state file corrupt, starting fresh", "path", path, "error", err)
		s.cursors = make(map[string]Cursor)
		return s, nil
	}

	log.Info("loaded state", "path", path, "devices", len(s.cursors))
	return s, nil
}

// Cursor returns the stored cursor for a device.
func (s *Store) Cursor(deviceID string) (Cursor, bool) {
	cursor, ok := s.cursors[deviceID]
	return cursor, ok
}

// Devices returns the identifiers present in the table.
func (s *Store) Devices() []string {
	ids := make([]string, 0, len(s.cursors))
	for id := range s.cursors {
		ids = append(ids, id)
	}
	return ids
}

// Put overwrites the cursor for a device, stamps it, and rewrites the whole
// table to disk.
func (s *Store) Put(deviceID string, cursor Cursor) error {
	cursor.UpdatedAt = s.now()
	s.cursors[deviceID] = cursor
	return s.save()
}

func (s *Store) save() error {
	data, err := json.MarshalIndent(s.cursors, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir state dir: %w", err)
	}

	// Temp file in the same directory so the rename is atomic.
	tmp, err := os.CreateTemp(dir, "cursors-*.json.tmp")
	if err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}

// Bytes returns the current serialized table, for mirroring.
func (s *Store) Bytes() ([]byte, error) {
	return json.MarshalIndent(s.cursors, "", "  ")
}

// Replace swaps the in-memory table for one decoded from data and rewrites
// the local file. Used when restoring from a mirror.
func (s *Store) Replace(data []byte) error {
	cursors := make(map[string]Cursor)
	if err := json.Unmarshal(data, &cursors); err != nil {
		return fmt.Errorf("decode state: %w", err)
	}
	s.cursors = cursors
	return s.save()
}
