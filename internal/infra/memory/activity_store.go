package memory

import (
	"context"
	"sync"

	"elearn-progress-service/internal/domain"
)

// ActivityStore is an append-only in-memory timeline.
type ActivityStore struct {
	mu         sync.RWMutex
	activities []domain.Activity
}

func NewActivityStore() *ActivityStore {
	return &ActivityStore{}
}

func (s *ActivityStore) Append(_ context.Context, activity domain.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activities = append(s.activities, activity)
	return nil
}

// ListByUser returns the user's newest activities first.
func (s *ActivityStore) ListByUser(_ context.Context, userID string, limit int) ([]domain.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Activity, 0)
	for i := len(s.activities) - 1; i >= 0; i-- {
		if s.activities[i].UserID != userID {
			continue
		}
		out = append(out, s.activities[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
