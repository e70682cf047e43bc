package app

import (
	"context"
	"fmt"

	"elearn-progress-service/internal/domain"
)

// DefaultAchievements is the built-in badge catalog used when configuration supplies none.
func DefaultAchievements() []domain.Achievement {
	return []domain.Achievement{
		{ID: "first-enrollment", Name: "First Steps", Description: "Enrolled in a first course", Family: domain.TriggerEnrollment, Threshold: 1},
		{ID: "five-enrollments", Name: "Explorer", Description: "Enrolled in five courses", Family: domain.TriggerEnrollment, Threshold: 5},
		{ID: "first-lesson", Name: "Getting Started", Description: "Completed a first lesson", Family: domain.TriggerLessonCount, Threshold: 1},
		{ID: "ten-lessons", Name: "Dedicated Learner", Description: "Completed ten lessons", Family: domain.TriggerLessonCount, Threshold: 10},
		{ID: "fifty-lessons", Name: "Knowledge Seeker", Description: "Completed fifty lessons", Family: domain.TriggerLessonCount, Threshold: 50},
		{ID: "first-course", Name: "Graduate", Description: "Completed a first course", Family: domain.TriggerCourseCompletion, Threshold: 1},
		{ID: "five-courses", Name: "Scholar", Description: "Completed five courses", Family: domain.TriggerCourseCompletion, Threshold: 5},
		{ID: "perfect-score", Name: "Perfectionist", Description: "Scored 100% on a quiz", Family: domain.TriggerQuizScore, Threshold: 100},
		{ID: "first-quiz-pass", Name: "Quiz Taker", Description: "Passed a first quiz", Family: domain.TriggerQuizPass, Threshold: 1},
		{ID: "ten-quiz-passes", Name: "Quiz Master", Description: "Passed ten quizzes", Family: domain.TriggerQuizPass, Threshold: 10},
		{ID: "first-review", Name: "Critic", Description: "Reviewed a first course", Family: domain.TriggerReview, Threshold: 1},
		{ID: "first-certificate", Name: "Certified", Description: "Earned a first certificate", Family: domain.TriggerCertificate, Threshold: 1},
	}
}

// EvaluateAchievements returns the achievements of family that are satisfied by counters (or, for
// quiz-score rules, by the triggering attempt's percentage) and are not in earned.
func EvaluateAchievements(catalog []domain.Achievement, family domain.TriggerFamily, counters domain.Counters, percentage int, earned []string) []domain.Achievement {
	have := make(map[string]struct{}, len(earned))
	for _, id := range earned {
		have[id] = struct{}{}
	}

	var value int
	switch family {
	case domain.TriggerEnrollment:
		value = counters.Enrollments
	case domain.TriggerLessonCount:
		value = counters.LessonsCompleted
	case domain.TriggerCourseCompletion:
		value = counters.CoursesCompleted
	case domain.TriggerQuizScore:
		value = percentage
	case domain.TriggerQuizPass:
		value = counters.QuizzesPassed
	case domain.TriggerReview:
		value = counters.Reviews
	case domain.TriggerCertificate:
		value = counters.Certificates
	default:
		return nil
	}

	var out []domain.Achievement
	for _, a := range catalog {
		if a.Family != family {
			continue
		}
		if _, ok := have[a.ID]; ok {
			continue
		}
		if value >= a.Threshold {
			out = append(out, a)
			have[a.ID] = struct{}{}
		}
	}
	return out
}

// AchievementChecker loads a user's counters and earned set and evaluates one trigger family.
// It never persists; callers record newly earned achievements.
type AchievementChecker struct {
	catalog     []domain.Achievement
	enrollments EnrollmentRepository
	users       UserRepository
}

func NewAchievementChecker(catalog []domain.Achievement, enrollments EnrollmentRepository, users UserRepository) *AchievementChecker {
	if len(catalog) == 0 {
		catalog = DefaultAchievements()
	}
	return &AchievementChecker{catalog: catalog, enrollments: enrollments, users: users}
}

func (c *AchievementChecker) CheckEnrollment(ctx context.Context, userID string) ([]domain.Achievement, error) {
	return c.check(ctx, userID, domain.TriggerEnrollment, 0)
}

func (c *AchievementChecker) CheckLessonCount(ctx context.Context, userID string) ([]domain.Achievement, error) {
	return c.check(ctx, userID, domain.TriggerLessonCount, 0)
}

func (c *AchievementChecker) CheckCourseCompletion(ctx context.Context, userID string) ([]domain.Achievement, error) {
	return c.check(ctx, userID, domain.TriggerCourseCompletion, 0)
}

func (c *AchievementChecker) CheckQuizScore(ctx context.Context, userID string, percentage int) ([]domain.Achievement, error) {
	return c.check(ctx, userID, domain.TriggerQuizScore, percentage)
}

func (c *AchievementChecker) CheckQuizPass(ctx context.Context, userID string) ([]domain.Achievement, error) {
	return c.check(ctx, userID, domain.TriggerQuizPass, 0)
}

func (c *AchievementChecker) CheckReview(ctx context.Context, userID string) ([]domain.Achievement, error) {
	return c.check(ctx, userID, domain.TriggerReview, 0)
}

func (c *AchievementChecker) CheckCertificate(ctx context.Context, userID string) ([]domain.Achievement, error) {
	return c.check(ctx, userID, domain.TriggerCertificate, 0)
}

func (c *AchievementChecker) check(ctx context.Context, userID string, family domain.TriggerFamily, percentage int) ([]domain.Achievement, error) {
	counters, err := c.enrollments.Counters(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load counters: %w", err)
	}
	if family == domain.TriggerReview {
		reviews, err := c.users.ReviewCount(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("load review count: %w", err)
		}
		counters.Reviews = reviews
	}
	earned, err := c.users.EarnedAchievements(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load earned achievements: %w", err)
	}
	return EvaluateAchievements(c.catalog, family, counters, percentage, earned), nil
}
