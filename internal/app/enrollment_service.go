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

// EnrollmentService owns the enrollment ledger and progress recomputation.
type EnrollmentService struct {
	enrollments EnrollmentRepository
	catalog     CatalogRepository
	users       UserRepository
	events      Publisher
	log         *logger.Logger
	now         func() time.Time
}

func NewEnrollmentService(enrollments EnrollmentRepository, catalog CatalogRepository, users UserRepository, events Publisher, log *logger.Logger) *EnrollmentService {
	return &EnrollmentService{
		enrollments: enrollments,
		catalog:     catalog,
		users:       users,
		events:      events,
		log:         log,
		now:         time.Now,
	}
}

// WithClock is test-only for deterministic timestamps.
func (s *EnrollmentService) WithClock(now func() time.Time) *EnrollmentService {
	s.now = now
	return s
}

// LessonProgress is the fully reconciled result of a completion or progress read.
type LessonProgress struct {
	Enrollment   domain.Enrollment `json:"enrollment"`
	TotalLessons int               `json:"totalLessons"`
}

// Enroll creates an enrollment for a published course. Paid courses need the payment
// confirmation reference issued by the payment collaborator.
func (s *EnrollmentService) Enroll(ctx context.Context, studentID, courseID, paymentRef string) (domain.Enrollment, error) {
	fields := map[string]string{}
	if strings.TrimSpace(studentID) == "" {
		fields["studentId"] = "required"
	}
	if strings.TrimSpace(courseID) == "" {
		fields["courseId"] = "required"
	}
	if len(fields) > 0 {
		return domain.Enrollment{}, domain.NewValidationError(fields)
	}

	course, err := s.catalog.GetCourse(ctx, courseID)
	if err != nil {
		return domain.Enrollment{}, err
	}
	if !course.Published {
		return domain.Enrollment{}, domain.ErrCourseNotPublished
	}

	enrollmentType := domain.EnrollmentFree
	if course.IsPaid() {
		if strings.TrimSpace(paymentRef) == "" {
			return domain.Enrollment{}, domain.ErrPaymentRequired
		}
		enrollmentType = domain.EnrollmentPaid
	} else {
		paymentRef = ""
	}

	enrollment := domain.Enrollment{
		ID:         uuid.NewString(),
		StudentID:  studentID,
		CourseID:   courseID,
		Status:     domain.EnrollmentActive,
		Type:       enrollmentType,
		PaymentRef: paymentRef,
		EnrolledAt: s.now(),
	}
	if err := s.enrollments.Create(ctx, enrollment); err != nil {
		return domain.Enrollment{}, err
	}
	if err := s.catalog.IncrementEnrollmentCount(ctx, courseID, 1); err != nil {
		s.log.Warn("failed to bump enrollment count", "course_id", courseID, "error", err)
	}

	s.publish(domain.Event{Type: domain.EventEnrollmentCreated, UserID: studentID, CourseID: courseID})
	return enrollment, nil
}

// CompleteLesson adds a lesson to the enrollment's completion set and returns the reconciled
// enrollment. Repeated calls for the same lesson are no-ops apart from reconciliation.
func (s *EnrollmentService) CompleteLesson(ctx context.Context, callerID, enrollmentID, lessonID string, timeSpent int) (LessonProgress, error) {
	enrollment, err := s.enrollments.Get(ctx, enrollmentID)
	if err != nil {
		return LessonProgress{}, err
	}
	if enrollment.StudentID != callerID {
		return LessonProgress{}, domain.ErrNotEnrollmentOwner
	}

	lesson, err := s.catalog.GetLesson(ctx, lessonID)
	if err != nil {
		return LessonProgress{}, err
	}
	if lesson.CourseID != enrollment.CourseID {
		return LessonProgress{}, domain.ErrLessonNotFound
	}

	if timeSpent < 0 {
		timeSpent = 0
	}
	added, err := s.enrollments.AddCompletedLesson(ctx, enrollment.ID, domain.CompletedLesson{
		LessonID:    lessonID,
		CompletedAt: s.now(),
		TimeSpent:   timeSpent,
	})
	if err != nil {
		return LessonProgress{}, fmt.Errorf("add completed lesson: %w", err)
	}

	progress, completedNow, err := s.recompute(ctx, enrollment.ID)
	if err != nil {
		return LessonProgress{}, err
	}

	if added {
		s.publish(domain.Event{Type: domain.EventLessonCompleted, UserID: callerID, CourseID: enrollment.CourseID, LessonID: lessonID})
	}
	if completedNow {
		s.publish(domain.Event{Type: domain.EventCourseCompleted, UserID: callerID, CourseID: enrollment.CourseID})
	}
	return progress, nil
}

// GetProgress reconciles and returns the caller's enrollment.
func (s *EnrollmentService) GetProgress(ctx context.Context, callerID, enrollmentID string) (LessonProgress, error) {
	enrollment, err := s.enrollments.Get(ctx, enrollmentID)
	if err != nil {
		return LessonProgress{}, err
	}
	if enrollment.StudentID != callerID {
		return LessonProgress{}, domain.ErrNotEnrollmentOwner
	}
	progress, completedNow, err := s.recompute(ctx, enrollmentID)
	if err != nil {
		return LessonProgress{}, err
	}
	if completedNow {
		s.publish(domain.Event{Type: domain.EventCourseCompleted, UserID: enrollment.StudentID, CourseID: enrollment.CourseID})
	}
	return progress, nil
}

// RecomputeProgress is the single progress reconciliation step, run after every mutation that
// can change completion or lesson count.
func (s *EnrollmentService) RecomputeProgress(ctx context.Context, enrollmentID string) (LessonProgress, error) {
	progress, completedNow, err := s.recompute(ctx, enrollmentID)
	if err != nil {
		return LessonProgress{}, err
	}
	if completedNow {
		e := progress.Enrollment
		s.publish(domain.Event{Type: domain.EventCourseCompleted, UserID: e.StudentID, CourseID: e.CourseID})
	}
	return progress, nil
}

// ReconcileCourse recomputes every enrollment of a course after its lessons changed.
// It returns how many enrollments were reconciled.
func (s *EnrollmentService) ReconcileCourse(ctx context.Context, courseID string) (int, error) {
	enrollments, err := s.enrollments.ListByCourse(ctx, courseID)
	if err != nil {
		return 0, err
	}
	for _, e := range enrollments {
		if _, err := s.RecomputeProgress(ctx, e.ID); err != nil {
			return 0, fmt.Errorf("reconcile enrollment %s: %w", e.ID, err)
		}
	}
	return len(enrollments), nil
}

// recompute re-reads the enrollment after the completion write, counts the course's live lessons,
// refreshes the course's cached count, and applies status transitions in both directions.
func (s *EnrollmentService) recompute(ctx context.Context, enrollmentID string) (LessonProgress, bool, error) {
	enrollment, err := s.enrollments.Get(ctx, enrollmentID)
	if err != nil {
		return LessonProgress{}, false, err
	}
	lessonIDs, err := s.catalog.LessonIDs(ctx, enrollment.CourseID)
	if err != nil {
		return LessonProgress{}, false, fmt.Errorf("count lessons: %w", err)
	}
	total := len(lessonIDs)
	if err := s.catalog.SetTotalLessons(ctx, enrollment.CourseID, total); err != nil {
		s.log.Warn("failed to refresh cached lesson count", "course_id", enrollment.CourseID, "error", err)
	}

	inCourse := make(map[string]struct{}, total)
	for _, id := range lessonIDs {
		inCourse[id] = struct{}{}
	}
	done := 0
	for _, l := range enrollment.CompletedLessons {
		if _, ok := inCourse[l.LessonID]; ok {
			done++
		}
	}

	update := domain.ProgressUpdate{
		PercentageComplete: Percentage(done, total),
		Status:             enrollment.Status,
		CompletedAt:        enrollment.CompletedAt,
	}
	switch {
	case total > 0 && done >= total && enrollment.Status != domain.EnrollmentCompleted:
		now := s.now()
		update.Status = domain.EnrollmentCompleted
		update.CompletedAt = &now
	case enrollment.Status == domain.EnrollmentCompleted && (total == 0 || done < total):
		update.Status = domain.EnrollmentActive
		update.CompletedAt = nil
	}

	completedNow := false
	if update.PercentageComplete != enrollment.PercentageComplete || update.Status != enrollment.Status {
		changed, err := s.enrollments.UpdateProgress(ctx, enrollment.ID, update)
		if err != nil {
			return LessonProgress{}, false, fmt.Errorf("update progress: %w", err)
		}
		completedNow = changed && update.Status == domain.EnrollmentCompleted
	}

	fresh, err := s.enrollments.Get(ctx, enrollment.ID)
	if err != nil {
		return LessonProgress{}, false, err
	}
	return LessonProgress{Enrollment: fresh, TotalLessons: total}, completedNow, nil
}

// Percentage is 100*done/total floored and clamped to [0,100]; it is 0 for an empty course.
func Percentage(done, total int) int {
	if total <= 0 || done <= 0 {
		return 0
	}
	if done >= total {
		return 100
	}
	return 100 * done / total
}

// IssueCertificate issues the course certificate for a completed enrollment. Issuing twice
// returns the existing certificate.
func (s *EnrollmentService) IssueCertificate(ctx context.Context, callerID, enrollmentID string) (domain.Enrollment, error) {
	progress, err := s.GetProgress(ctx, callerID, enrollmentID)
	if err != nil {
		return domain.Enrollment{}, err
	}
	enrollment := progress.Enrollment
	if enrollment.Certificate.Issued {
		return enrollment, nil
	}
	if enrollment.Status != domain.EnrollmentCompleted {
		return domain.Enrollment{}, domain.ErrCourseNotCompleted
	}

	now := s.now()
	issued, err := s.enrollments.IssueCertificate(ctx, enrollmentID, domain.Certificate{
		Issued:        true,
		CertificateID: "CERT-" + strings.ToUpper(uuid.NewString()[:8]),
		IssuedAt:      &now,
	})
	if err != nil {
		return domain.Enrollment{}, fmt.Errorf("issue certificate: %w", err)
	}
	if issued {
		s.publish(domain.Event{Type: domain.EventCertificateIssued, UserID: enrollment.StudentID, CourseID: enrollment.CourseID})
	}
	return s.enrollments.Get(ctx, enrollmentID)
}

// DeleteEnrollment removes an enrollment (admin only) and decrements the course's enrollment count.
func (s *EnrollmentService) DeleteEnrollment(ctx context.Context, isAdmin bool, enrollmentID string) error {
	if !isAdmin {
		return domain.ErrAdminOnly
	}
	enrollment, err := s.enrollments.Get(ctx, enrollmentID)
	if err != nil {
		return err
	}
	if err := s.enrollments.Delete(ctx, enrollmentID); err != nil {
		return err
	}
	if err := s.catalog.IncrementEnrollmentCount(ctx, enrollment.CourseID, -1); err != nil {
		s.log.Warn("failed to decrement enrollment count", "course_id", enrollment.CourseID, "error", err)
	}
	return nil
}

// RecordReview counts a course review toward the student's review achievements.
func (s *EnrollmentService) RecordReview(ctx context.Context, studentID, courseID string) (int, error) {
	if _, err := s.enrollments.FindByStudentCourse(ctx, studentID, courseID); err != nil {
		if errors.Is(err, domain.ErrEnrollmentNotFound) {
			return 0, domain.ErrNotEnrolled
		}
		return 0, err
	}
	count, err := s.users.IncrementReviewCount(ctx, studentID)
	if err != nil {
		return 0, fmt.Errorf("increment review count: %w", err)
	}
	s.publish(domain.Event{Type: domain.EventReviewPosted, UserID: studentID, CourseID: courseID})
	return count, nil
}

func (s *EnrollmentService) publish(event domain.Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}
	s.events.Publish(event)
}
