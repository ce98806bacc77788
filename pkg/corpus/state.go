package corpus

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// State is the snapshot of the corpus as of the last successful sync:
// every indexed document key mapped to the ETag it was indexed at.
type State struct {
	UpdatedAt time.Time         `json:"updated_at"`
	Documents map[string]string `json:"documents"`
}

// StateStore persists sync state as a JSON file. The file is an
// optimization: when it is missing or unreadable the syncer rebuilds
// the previous state from the document index itself.
type StateStore struct {
	path string
}

// NewStateStore creates a state store at the given file path.
func NewStateStore(path string) *StateStore {
	return &StateStore{path: path}
}

// Load reads the last snapshot. A missing file returns (nil, nil).
func (s *StateStore) Load() (*State, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sync state %s: %w", s.path, err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse sync state %s: %w", s.path, err)
	}
	if state.Documents == nil {
		state.Documents = make(map[string]string)
	}
	return &state, nil
}

// Save writes a snapshot. The data goes to a temp file in the same
// directory and renames over the old snapshot, so a crash mid-write
// can never leave a torn state file behind.
func (s *StateStore) Save(state *State) error {
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = time.Now().UTC()
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal sync state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write sync state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp state file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace sync state %s: %w", s.path, err)
	}
	return nil
}

// Path returns the snapshot file location.
func (s *StateStore) Path() string {
	return s.path
}
