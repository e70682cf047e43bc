package memory

import (
	"context"
	"sync"
	"sync/atomic"

	"elearn-progress-service/internal/domain"
)

// QuizStats keeps per-quiz attempt counters with atomic increments.
type QuizStats struct {
	mu    sync.Mutex
	stats map[string]*quizCounters
}

type quizCounters struct {
	attempts atomic.Int64
	passed   atomic.Int64
}

func NewQuizStats() *QuizStats {
	return &QuizStats{stats: make(map[string]*quizCounters)}
}

func (s *QuizStats) RecordAttempt(_ context.Context, quizID string, passed bool) error {
	c := s.counters(quizID)
	c.attempts.Add(1)
	if passed {
		c.passed.Add(1)
	}
	return nil
}

func (s *QuizStats) Stats(_ context.Context, quizID string) (domain.QuizAnalytics, error) {
	c := s.counters(quizID)
	return domain.NewQuizAnalytics(quizID, c.attempts.Load(), c.passed.Load()), nil
}

func (s *QuizStats) counters(quizID string) *quizCounters {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.stats[quizID]
	if !ok {
		c = &quizCounters{}
		s.stats[quizID] = c
	}
	return c
}
