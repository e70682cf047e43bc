package domain

import "time"

// EventType identifies a progress event emitted after a primary mutation commits.
type EventType string

const (
	EventEnrollmentCreated   EventType = "enrollment.created"
	EventLessonCompleted     EventType = "lesson.completed"
	EventCourseCompleted     EventType = "course.completed"
	EventQuizAttempted       EventType = "quiz.attempted"
	EventAssignmentSubmitted EventType = "assignment.submitted"
	EventAssignmentGraded    EventType = "assignment.graded"
	EventReviewPosted        EventType = "review.posted"
	EventCertificateIssued   EventType = "certificate.issued"
)

// Event is a notification from the primary path to the notifier. Fields irrelevant to Type are empty.
type Event struct {
	Type       EventType
	UserID     string
	CourseID   string
	LessonID   string
	QuizID     string
	Percentage int
	Passed     bool
	FirstPass  bool
	Grade      int
	OccurredAt time.Time
}
