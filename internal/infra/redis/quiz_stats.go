package redis

import (
	"context"
	"strconv"

	"elearn-progress-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// QuizStats keeps quiz analytics counters in a hash: HINCRBY quiz:{quizID}:stats attempts|passed 1
type QuizStats struct {
	client *redis.Client
}

func NewQuizStats(client *redis.Client) *QuizStats {
	return &QuizStats{client: client}
}

func (s *QuizStats) RecordAttempt(ctx context.Context, quizID string, passed bool) error {
	key := s.key(quizID)
	pipe := s.client.TxPipeline()
	pipe.HIncrBy(ctx, key, "attempts", 1)
	if passed {
		pipe.HIncrBy(ctx, key, "passed", 1)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *QuizStats) Stats(ctx context.Context, quizID string) (domain.QuizAnalytics, error) {
	values, err := s.client.HGetAll(ctx, s.key(quizID)).Result()
	if err != nil {
		return domain.QuizAnalytics{}, err
	}
	attempts, _ := strconv.ParseInt(values["attempts"], 10, 64)
	passed, _ := strconv.ParseInt(values["passed"], 10, 64)
	return domain.NewQuizAnalytics(quizID, attempts, passed), nil
}

func (s *QuizStats) key(quizID string) string {
	return "quiz:" + quizID + ":stats"
}
