package memory

import (
	"context"
	"sync"
)

// PreferenceStore is the in-memory PreferenceRepository.
type PreferenceStore struct {
	mu      sync.RWMutex
	records map[string][]byte
}

func NewPreferenceStore() *PreferenceStore {
	return &PreferenceStore{records: make(map[string][]byte)}
}

func (s *PreferenceStore) Load(_ context.Context, userID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[userID]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), record...), nil
}

func (s *PreferenceStore) Save(_ context.Context, userID string, record []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[userID] = append([]byte(nil), record...)
	return nil
}

func (s *PreferenceStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, userID)
	return nil
}
