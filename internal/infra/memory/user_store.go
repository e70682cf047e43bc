package memory

import (
	"context"
	"sync"
)

// UserStore holds earned achievements and review counts per user.
type UserStore struct {
	mu      sync.RWMutex
	earned  map[string][]string
	reviews map[string]int
}

func NewUserStore() *UserStore {
	return &UserStore{
		earned:  make(map[string][]string),
		reviews: make(map[string]int),
	}
}

func (s *UserStore) EarnedAchievements(_ context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.earned[userID]...), nil
}

func (s *UserStore) AddEarnedAchievements(_ context.Context, userID string, achievementIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	have := make(map[string]struct{}, len(s.earned[userID]))
	for _, id := range s.earned[userID] {
		have[id] = struct{}{}
	}
	for _, id := range achievementIDs {
		if _, ok := have[id]; ok {
			continue
		}
		have[id] = struct{}{}
		s.earned[userID] = append(s.earned[userID], id)
	}
	return nil
}

func (s *UserStore) IncrementReviewCount(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reviews[userID]++
	return s.reviews[userID], nil
}

func (s *UserStore) ReviewCount(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reviews[userID], nil
}
