// Package session persists the operator's last selected event between runs.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
)

type state struct {
	EventID string `json:"event_id"`
}

// FileStore is a one-key JSON file used to restore the event selection at
// startup. It is per-client state, not part of the shared store.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a store backed by the given path. The file is created
// lazily on the first save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the persisted event identifier. The second return value is false
// when no selection has been saved yet.
func (s *FileStore) Load() (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read session file: %w", err)
	}

	var st state
	if err := json.Unmarshal(data, &st); err != nil {
		return "", false, fmt.Errorf("failed to parse session file: %w", err)
	}
	if st.EventID == "" {
		return "", false, nil
	}
	return st.EventID, true, nil
}

// Save writes the event identifier, replacing any previous selection.
func (s *FileStore) Save(eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(state{EventID: eventID})
	if err != nil {
		return fmt.Errorf("failed to encode session state: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}
