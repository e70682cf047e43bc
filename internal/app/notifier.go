package app

import (
	"context"
	"errors"
	"fmt"

	"elearn-progress-service/internal/domain"
)

// ProgressNotifier turns progress events into timeline entries and achievement awards.
type ProgressNotifier struct {
	feed    *ActivityFeed
	checker *AchievementChecker
	users   UserRepository
}

func NewProgressNotifier(feed *ActivityFeed, checker *AchievementChecker, users UserRepository) *ProgressNotifier {
	return &ProgressNotifier{feed: feed, checker: checker, users: users}
}

// Handle logs the event's activity, evaluates the achievement families it can trigger, records
// newly earned achievements, and logs one activity per award. It keeps going after individual
// failures and reports them together.
func (n *ProgressNotifier) Handle(ctx context.Context, event domain.Event) error {
	var errs []error

	if _, err := n.feed.Append(ctx, activityFor(event)); err != nil {
		errs = append(errs, fmt.Errorf("append activity: %w", err))
	}

	earned, err := n.evaluate(ctx, event)
	if err != nil {
		errs = append(errs, fmt.Errorf("evaluate achievements: %w", err))
	}
	if len(earned) > 0 {
		ids := make([]string, 0, len(earned))
		for _, a := range earned {
			ids = append(ids, a.ID)
		}
		if err := n.users.AddEarnedAchievements(ctx, event.UserID, ids); err != nil {
			// Nothing was recorded, so no achievement activity either.
			return errors.Join(append(errs, fmt.Errorf("record achievements: %w", err))...)
		}
		for _, a := range earned {
			_, err := n.feed.Append(ctx, domain.Activity{
				UserID:   event.UserID,
				Type:     domain.ActivityAchievementEarned,
				Message:  fmt.Sprintf("Earned achievement %q", a.Name),
				CourseID: event.CourseID,
			})
			if err != nil {
				errs = append(errs, fmt.Errorf("append achievement activity: %w", err))
			}
		}
	}
	return errors.Join(errs...)
}

func (n *ProgressNotifier) evaluate(ctx context.Context, event domain.Event) ([]domain.Achievement, error) {
	switch event.Type {
	case domain.EventEnrollmentCreated:
		return n.checker.CheckEnrollment(ctx, event.UserID)
	case domain.EventLessonCompleted:
		return n.checker.CheckLessonCount(ctx, event.UserID)
	case domain.EventCourseCompleted:
		return n.checker.CheckCourseCompletion(ctx, event.UserID)
	case domain.EventQuizAttempted:
		earned, err := n.checker.CheckQuizScore(ctx, event.UserID, event.Percentage)
		if err != nil || !event.FirstPass {
			return earned, err
		}
		passes, err := n.checker.CheckQuizPass(ctx, event.UserID)
		return append(earned, passes...), err
	case domain.EventReviewPosted:
		return n.checker.CheckReview(ctx, event.UserID)
	case domain.EventCertificateIssued:
		return n.checker.CheckCertificate(ctx, event.UserID)
	}
	return nil, nil
}

func activityFor(event domain.Event) domain.Activity {
	a := domain.Activity{
		UserID:    event.UserID,
		CourseID:  event.CourseID,
		LessonID:  event.LessonID,
		QuizID:    event.QuizID,
		CreatedAt: event.OccurredAt,
	}
	switch event.Type {
	case domain.EventEnrollmentCreated:
		a.Type = domain.ActivityEnrolled
		a.Message = "Enrolled in course"
	case domain.EventLessonCompleted:
		a.Type = domain.ActivityLessonCompleted
		a.Message = "Completed a lesson"
	case domain.EventCourseCompleted:
		a.Type = domain.ActivityCourseCompleted
		a.Message = "Completed the course"
	case domain.EventQuizAttempted:
		if event.Passed {
			a.Type = domain.ActivityQuizPassed
			a.Message = fmt.Sprintf("Passed a quiz with %d%%", event.Percentage)
		} else {
			a.Type = domain.ActivityQuizAttempted
			a.Message = fmt.Sprintf("Attempted a quiz and scored %d%%", event.Percentage)
		}
	case domain.EventAssignmentSubmitted:
		a.Type = domain.ActivityAssignmentSubmitted
		a.Message = "Submitted an assignment"
	case domain.EventAssignmentGraded:
		a.Type = domain.ActivityAssignmentGraded
		if event.Grade == domain.GradePass {
			a.Message = "Assignment graded: pass"
		} else {
			a.Message = "Assignment graded: needs resubmission"
		}
	case domain.EventReviewPosted:
		a.Type = domain.ActivityReviewPosted
		a.Message = "Reviewed a course"
	case domain.EventCertificateIssued:
		a.Type = domain.ActivityCertificateIssued
		a.Message = "Earned a course certificate"
	default:
		a.Type = domain.ActivityType(event.Type)
		a.Message = string(event.Type)
	}
	return a
}
