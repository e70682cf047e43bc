package memory

import (
	"context"
	"sync"

	"elearn-progress-service/internal/domain"
)

// AttemptGate is an in-memory app.AttemptGate for a single process.
type AttemptGate struct {
	mu     sync.Mutex
	counts map[string]int
}

func NewAttemptGate() *AttemptGate {
	return &AttemptGate{counts: make(map[string]int)}
}

func (g *AttemptGate) Acquire(_ context.Context, quizID, enrollmentID string, limit, recorded int) (func(), error) {
	if limit <= 0 {
		return func() {}, nil
	}
	key := quizID + ":" + enrollmentID

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.counts[key] < recorded {
		g.counts[key] = recorded
	}
	if g.counts[key] >= limit {
		return nil, domain.ErrAttemptLimitReached
	}
	g.counts[key]++

	var once sync.Once
	release := func() {
		once.Do(func() {
			g.mu.Lock()
			defer g.mu.Unlock()
			if g.counts[key] > 0 {
				g.counts[key]--
			}
		})
	}
	return release, nil
}
