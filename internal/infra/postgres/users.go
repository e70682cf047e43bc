package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

func (s *Store) EarnedAchievements(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := s.db.NewSelect().
		Model((*userAchievementModel)(nil)).
		Column("achievement_id").
		Where("user_id = ?", userID).
		Order("earned_at ASC", "achievement_id ASC").
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("load achievements: %w", err)
	}
	return ids, nil
}

func (s *Store) AddEarnedAchievements(ctx context.Context, userID string, achievementIDs []string) error {
	if len(achievementIDs) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := make([]userAchievementModel, 0, len(achievementIDs))
	for _, id := range achievementIDs {
		rows = append(rows, userAchievementModel{UserID: userID, AchievementID: id, EarnedAt: now})
	}
	_, err := s.db.NewInsert().Model(&rows).On("CONFLICT (user_id, achievement_id) DO NOTHING").Exec(ctx)
	if err != nil {
		return fmt.Errorf("add achievements: %w", err)
	}
	return nil
}

func (s *Store) IncrementReviewCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.NewRaw(`
		INSERT INTO user_stats (user_id, review_count) VALUES (?, 1)
		ON CONFLICT (user_id) DO UPDATE SET review_count = user_stats.review_count + 1
		RETURNING review_count`, userID).Scan(ctx, &count)
	if err != nil {
		return 0, fmt.Errorf("increment review count: %w", err)
	}
	return count, nil
}

func (s *Store) ReviewCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.NewRaw(`SELECT review_count FROM user_stats WHERE user_id = ?`, userID).Scan(ctx, &count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load review count: %w", err)
	}
	return count, nil
}
