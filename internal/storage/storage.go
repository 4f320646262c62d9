package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/maltedev/spa-slots/internal/appointment"
)

var ErrNoSnapshot = errors.New("no snapshot available")

// SnapshotStore keeps the latest snapshot in memory and mirrors it to a JSON
// file that doubles as the static fallback for the front ends.
type SnapshotStore struct {
	mu       sync.RWMutex
	current  *appointment.Snapshot
	raw      []byte
	filename string
}

func NewSnapshotStore(filename string) (*SnapshotStore, error) {
	s := &SnapshotStore{filename: filename}

	// Load existing data if file exists
	if err := s.Load(); err != nil && !errors.Is(err, ErrNoSnapshot) {
		return nil, err
	}

	return s, nil
}

func (s *SnapshotStore) Path() string {
	return s.filename
}

// Save replaces the current snapshot and writes it to disk.
func (s *SnapshotStore) Save(snap *appointment.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("snapshot is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := WriteJSON(s.filename, snap)
	if err != nil {
		return err
	}

	s.current = cloneSnapshot(snap)
	s.raw = data
	return nil
}

// Load reads the snapshot file into memory.
func (s *SnapshotStore) Load() error {
	var snap appointment.Snapshot
	data, err := ReadJSON(s.filename, &snap)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNoSnapshot
		}
		return err
	}
	if snap.Appointments == nil {
		snap.Appointments = []appointment.Appointment{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = &snap
	s.raw = data
	return nil
}

// Current returns a copy of the latest snapshot.
func (s *SnapshotStore) Current() (*appointment.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return nil, ErrNoSnapshot
	}
	return cloneSnapshot(s.current), nil
}

// Raw returns the bytes last written to or read from disk.
func (s *SnapshotStore) Raw() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.raw == nil {
		return nil, ErrNoSnapshot
	}
	out := make([]byte, len(s.raw))
	copy(out, s.raw)
	return out, nil
}

func cloneSnapshot(snap *appointment.Snapshot) *appointment.Snapshot {
	out := *snap
	out.Appointments = make([]appointment.Appointment, len(snap.Appointments))
	copy(out.Appointments, snap.Appointments)
	if snap.LastUpdated != nil {
		ts := *snap.LastUpdated
		out.LastUpdated = &ts
	}
	return &out
}

// WriteJSON marshals v with indentation and replaces filename atomically,
// creating parent directories as needed. It returns the written bytes.
func WriteJSON(filename string, v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", filename, err)
	}

	if dir := filepath.Dir(filename); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	// Write to temp file first for atomicity
	tmpFile := filename + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", tmpFile, err)
	}

	if err := os.Rename(tmpFile, filename); err != nil {
		os.Remove(tmpFile)
		return nil, fmt.Errorf("failed to replace %s: %w", filename, err)
	}
	return data, nil
}

// ReadJSON decodes filename into v. Missing files surface as os.ErrNotExist.
func ReadJSON(filename string, v any) ([]byte, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filename, err)
	}
	return data, nil
}
