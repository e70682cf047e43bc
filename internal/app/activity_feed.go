package app

import (
	"context"
	"sync"
	"time"

	"elearn-progress-service/internal/domain"
	"github.com/google/uuid"
)

// ActivityFeed appends activities to the timeline and fans them out to live subscribers of the
// activity's user.
type ActivityFeed struct {
	repo ActivityRepository
	now  func() time.Time

	mu          sync.RWMutex
	subscribers map[string]map[chan domain.Activity]struct{}
}

func NewActivityFeed(repo ActivityRepository) *ActivityFeed {
	return NewActivityFeedWithClock(repo, time.Now)
}

// NewActivityFeedWithClock is test-only for deterministic timestamps.
func NewActivityFeedWithClock(repo ActivityRepository, now func() time.Time) *ActivityFeed {
	return &ActivityFeed{
		repo:        repo,
		now:         now,
		subscribers: make(map[string]map[chan domain.Activity]struct{}),
	}
}

// Append stores an activity, filling in id and timestamp, then broadcasts it.
func (f *ActivityFeed) Append(ctx context.Context, activity domain.Activity) (domain.Activity, error) {
	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = f.now()
	}
	if err := f.repo.Append(ctx, activity); err != nil {
		return domain.Activity{}, err
	}
	f.broadcast(activity)
	return activity, nil
}

// List returns the newest activities of a user first.
func (f *ActivityFeed) List(ctx context.Context, userID string, limit int) ([]domain.Activity, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return f.repo.ListByUser(ctx, userID, limit)
}

// Subscribe returns a channel that receives the user's new activities.
// The caller must invoke the returned cancel function to avoid leaks.
func (f *ActivityFeed) Subscribe(userID string) (<-chan domain.Activity, func()) {
	ch := make(chan domain.Activity, 8)

	f.mu.Lock()
	subs, ok := f.subscribers[userID]
	if !ok {
		subs = make(map[chan domain.Activity]struct{})
		f.subscribers[userID] = subs
	}
	subs[ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		subs, ok := f.subscribers[userID]
		if !ok {
			return
		}
		if _, ok := subs[ch]; ok {
			delete(subs, ch)
			close(ch)
		}
		if len(subs) == 0 {
			delete(f.subscribers, userID)
		}
	}
	return ch, cancel
}

func (f *ActivityFeed) broadcast(activity domain.Activity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subscribers[activity.UserID] {
		select {
		case ch <- activity:
		default:
			// Slow subscriber: drop the oldest queued entry so the newest one fits.
			select {
			case <-ch:
			default:
			}
			ch <- activity
		}
	}
}
