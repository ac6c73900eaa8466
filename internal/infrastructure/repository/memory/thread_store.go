package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/telarian/switchboard/internal/core/domain"
)

// ThreadStore is the in-memory ThreadRepository. It backs the degraded mode
// when postgres is unreachable, and the adapter tests.
type ThreadStore struct {
	mu      sync.RWMutex
	threads map[string]*domain.ConversationThread
}

func NewThreadStore() *ThreadStore {
	return &ThreadStore{threads: make(map[string]*domain.ConversationThread)}
}

func (s *ThreadStore) Get(_ context.Context, userID, threadID string) (*domain.ConversationThread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	thread, ok := s.threads[threadID]
	if !ok || thread.UserID != userID {
		return nil, domain.WrapError(domain.ErrThreadNotFound, "get thread", fmt.Errorf("id %s", threadID))
	}
	return thread.Clone(), nil
}

func (s *ThreadStore) List(_ context.Context, userID string) ([]domain.ConversationThread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.ConversationThread, 0, len(s.threads))
	for _, thread := range s.threads {
		if thread.UserID == userID {
			out = append(out, *thread.Clone())
		}
	}
	return out, nil
}

func (s *ThreadStore) Save(_ context.Context, thread *domain.ConversationThread) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.threads[thread.ID] = thread.Clone()
	return nil
}
