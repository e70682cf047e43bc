package postgres

import (
	"context"
	"fmt"

	"elearn-progress-service/internal/domain"
)

// ActivityStore adapts Store to the activity timeline.
type ActivityStore struct {
	s *Store
}

func (s *Store) Activities() *ActivityStore {
	return &ActivityStore{s: s}
}

func (a *ActivityStore) Append(ctx context.Context, activity domain.Activity) error {
	_, err := a.s.db.NewInsert().Model(&activityModel{
		ID:        activity.ID,
		UserID:    activity.UserID,
		Type:      string(activity.Type),
		Message:   activity.Message,
		CourseID:  activity.CourseID,
		LessonID:  activity.LessonID,
		QuizID:    activity.QuizID,
		CreatedAt: activity.CreatedAt,
	}).Exec(ctx)
	if err != nil {
		return fmt.Errorf("append activity: %w", err)
	}
	return nil
}

func (a *ActivityStore) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Activity, error) {
	var models []activityModel
	q := a.s.db.NewSelect().Model(&models).Where("user_id = ?", userID).Order("created_at DESC", "id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	out := make([]domain.Activity, 0, len(models))
	for _, m := range models {
		out = append(out, domain.Activity{
			ID:        m.ID,
			UserID:    m.UserID,
			Type:      domain.ActivityType(m.Type),
			Message:   m.Message,
			CourseID:  m.CourseID,
			LessonID:  m.LessonID,
			QuizID:    m.QuizID,
			CreatedAt: m.CreatedAt,
		})
	}
	return out, nil
}
