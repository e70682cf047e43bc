package app

import (
	"context"

	"elearn-progress-service/internal/domain"
)

// CatalogRepository is the read side of the course-authoring collaborator plus the two cached
// course fields the pipeline maintains.
type CatalogRepository interface {
	GetCourse(ctx context.Context, courseID string) (domain.Course, error)
	GetLesson(ctx context.Context, lessonID string) (domain.Lesson, error)
	// LessonIDs lists the lessons currently in the course, read from the authoritative collection.
	LessonIDs(ctx context.Context, courseID string) ([]string, error)
	SetTotalLessons(ctx context.Context, courseID string, total int) error
	IncrementEnrollmentCount(ctx context.Context, courseID string, delta int) error
}

// QuizRepository loads and stores quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	SaveQuiz(ctx context.Context, quiz domain.Quiz) error
	DeleteQuiz(ctx context.Context, quizID string) error
}

// EnrollmentRepository owns enrollment documents. Mutations that must not race are expressed as
// single storage operations rather than read-modify-write in the service.
type EnrollmentRepository interface {
	// Create stores a new enrollment; it returns domain.ErrAlreadyEnrolled for a duplicate pair.
	Create(ctx context.Context, enrollment domain.Enrollment) error
	Get(ctx context.Context, enrollmentID string) (domain.Enrollment, error)
	FindByStudentCourse(ctx context.Context, studentID, courseID string) (domain.Enrollment, error)
	ListByCourse(ctx context.Context, courseID string) ([]domain.Enrollment, error)
	// AddCompletedLesson adds the lesson if absent and, only then, accumulates its time spent.
	// It reports whether the lesson was newly added.
	AddCompletedLesson(ctx context.Context, enrollmentID string, lesson domain.CompletedLesson) (bool, error)
	// UpdateProgress writes the percentage and, if the stored status differs from update.Status,
	// the status transition. It reports whether the status changed.
	UpdateProgress(ctx context.Context, enrollmentID string, update domain.ProgressUpdate) (bool, error)
	// AppendQuizAttempt appends the attempt and folds it into bestScore/passed, returning the
	// updated record.
	AppendQuizAttempt(ctx context.Context, enrollmentID, quizID string, attempt domain.Attempt) (domain.QuizAttempts, error)
	// IssueCertificate stamps the certificate unless one is already issued; it reports whether it did.
	IssueCertificate(ctx context.Context, enrollmentID string, cert domain.Certificate) (bool, error)
	Delete(ctx context.Context, enrollmentID string) error
	HasQuizAttempts(ctx context.Context, quizID string) (bool, error)
	// Counters computes the enrollment-derived achievement counters for a student.
	Counters(ctx context.Context, studentID string) (domain.Counters, error)
}

// SubmissionRepository stores assignment submissions keyed by (lesson, student).
type SubmissionRepository interface {
	Upsert(ctx context.Context, submission domain.AssignmentSubmission) (domain.AssignmentSubmission, error)
	Get(ctx context.Context, lessonID, studentID string) (domain.AssignmentSubmission, bool, error)
	SetGrade(ctx context.Context, lessonID, studentID string, grade int, feedback string) (domain.AssignmentSubmission, error)
}

// ActivityRepository is the append-only activity timeline.
type ActivityRepository interface {
	Append(ctx context.Context, activity domain.Activity) error
	ListByUser(ctx context.Context, userID string, limit int) ([]domain.Activity, error)
}

// UserRepository holds per-user achievement state.
type UserRepository interface {
	EarnedAchievements(ctx context.Context, userID string) ([]string, error)
	// AddEarnedAchievements is a set-union; ids already earned are ignored.
	AddEarnedAchievements(ctx context.Context, userID string, achievementIDs []string) error
	IncrementReviewCount(ctx context.Context, userID string) (int, error)
	ReviewCount(ctx context.Context, userID string) (int, error)
}

// AttemptGate is an atomic increment-and-check on an enrollment's attempt counter for a quiz.
// Counters are scoped to the enrollment, so a fresh enrollment starts from zero.
type AttemptGate interface {
	// Acquire reserves an attempt slot. recorded is the attempt count already persisted, used to
	// seed the counter. The returned release func gives the slot back when the attempt is not stored.
	Acquire(ctx context.Context, quizID, enrollmentID string, limit, recorded int) (release func(), err error)
}

// QuizStatsRepository keeps atomic quiz-level analytics counters.
type QuizStatsRepository interface {
	RecordAttempt(ctx context.Context, quizID string, passed bool) error
	Stats(ctx context.Context, quizID string) (domain.QuizAnalytics, error)
}

// Publisher is implemented by the event bus; Publish must never block the caller.
type Publisher interface {
	Publish(event domain.Event)
}
