package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"elearn-progress-service/internal/domain"
	"elearn-progress-service/internal/logger"
	"github.com/google/uuid"
)

// AssignmentService stores assignment submissions and their manual grades.
// Submitting marks the lesson complete; grading never takes completion away.
type AssignmentService struct {
	submissions SubmissionRepository
	catalog     CatalogRepository
	enrollments EnrollmentRepository
	progress    *EnrollmentService
	events      Publisher
	log         *logger.Logger
	now         func() time.Time
}

func NewAssignmentService(submissions SubmissionRepository, catalog CatalogRepository, enrollments EnrollmentRepository, progress *EnrollmentService, events Publisher, log *logger.Logger) *AssignmentService {
	return &AssignmentService{
		submissions: submissions,
		catalog:     catalog,
		enrollments: enrollments,
		progress:    progress,
		events:      events,
		log:         log,
		now:         time.Now,
	}
}

// WithClock is test-only for deterministic timestamps.
func (s *AssignmentService) WithClock(now func() time.Time) *AssignmentService {
	s.now = now
	return s
}

// Submit upserts the student's submission for an assignment lesson. A resubmission overwrites
// the content and returns the submission to the submitted state, even after a passing grade.
func (s *AssignmentService) Submit(ctx context.Context, lessonID, courseID, studentID, content string) (domain.AssignmentSubmission, error) {
	fields := map[string]string{}
	if strings.TrimSpace(lessonID) == "" {
		fields["lessonId"] = "required"
	}
	if strings.TrimSpace(courseID) == "" {
		fields["courseId"] = "required"
	}
	if strings.TrimSpace(studentID) == "" {
		fields["studentId"] = "required"
	}
	if strings.TrimSpace(content) == "" {
		fields["content"] = "required"
	}
	if len(fields) > 0 {
		return domain.AssignmentSubmission{}, domain.NewValidationError(fields)
	}

	lesson, err := s.catalog.GetLesson(ctx, lessonID)
	if err != nil {
		return domain.AssignmentSubmission{}, err
	}
	if lesson.CourseID != courseID {
		return domain.AssignmentSubmission{}, domain.ErrLessonNotFound
	}
	if lesson.Type() != domain.LessonAssignment {
		return domain.AssignmentSubmission{}, domain.ErrNotAssignmentLesson
	}

	enrollment, err := s.enrollments.FindByStudentCourse(ctx, studentID, courseID)
	if errors.Is(err, domain.ErrEnrollmentNotFound) {
		return domain.AssignmentSubmission{}, domain.ErrNotEnrolled
	}
	if err != nil {
		return domain.AssignmentSubmission{}, err
	}

	existing, found, err := s.submissions.Get(ctx, lessonID, studentID)
	if err != nil {
		return domain.AssignmentSubmission{}, err
	}
	submission := domain.AssignmentSubmission{
		ID:          uuid.NewString(),
		LessonID:    lessonID,
		CourseID:    courseID,
		StudentID:   studentID,
		Content:     content,
		Status:      domain.SubmissionSubmitted,
		SubmittedAt: s.now(),
	}
	if found {
		submission.ID = existing.ID
		submission.Feedback = existing.Feedback
	}
	saved, err := s.submissions.Upsert(ctx, submission)
	if err != nil {
		return domain.AssignmentSubmission{}, fmt.Errorf("store submission: %w", err)
	}

	if !enrollment.HasCompleted(lessonID) {
		if _, err := s.progress.CompleteLesson(ctx, studentID, enrollment.ID, lessonID, 0); err != nil {
			return domain.AssignmentSubmission{}, fmt.Errorf("complete assignment lesson: %w", err)
		}
	}

	s.events.Publish(domain.Event{
		Type:       domain.EventAssignmentSubmitted,
		UserID:     studentID,
		CourseID:   courseID,
		LessonID:   lessonID,
		OccurredAt: saved.SubmittedAt,
	})
	return saved, nil
}

// GetSubmission returns the student's submission for a lesson, or nil when there is none.
func (s *AssignmentService) GetSubmission(ctx context.Context, lessonID, studentID string) (*domain.AssignmentSubmission, error) {
	submission, found, err := s.submissions.Get(ctx, lessonID, studentID)
	if err != nil || !found {
		return nil, err
	}
	return &submission, nil
}

// Grade records the instructor's pass/fail decision. A fail reopens the submission; lesson
// completion is left untouched either way.
func (s *AssignmentService) Grade(ctx context.Context, lessonID, studentID, graderID string, grade int, feedback string) (domain.AssignmentSubmission, error) {
	if grade != domain.GradePass && grade != domain.GradeFail {
		return domain.AssignmentSubmission{}, domain.NewValidationError(map[string]string{"grade": "must be 0 or 1"})
	}

	lesson, err := s.catalog.GetLesson(ctx, lessonID)
	if err != nil {
		return domain.AssignmentSubmission{}, err
	}
	course, err := s.catalog.GetCourse(ctx, lesson.CourseID)
	if err != nil {
		return domain.AssignmentSubmission{}, err
	}
	if course.InstructorID != graderID {
		return domain.AssignmentSubmission{}, domain.ErrNotInstructor
	}

	graded, err := s.submissions.SetGrade(ctx, lessonID, studentID, grade, feedback)
	if err != nil {
		return domain.AssignmentSubmission{}, err
	}

	s.events.Publish(domain.Event{
		Type:       domain.EventAssignmentGraded,
		UserID:     studentID,
		CourseID:   course.ID,
		LessonID:   lessonID,
		Passed:     grade == domain.GradePass,
		Grade:      grade,
		OccurredAt: s.now(),
	})
	return graded, nil
}
