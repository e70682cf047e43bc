package domain

import "time"

// EnrollmentStatus tracks whether a student has finished a course.
type EnrollmentStatus string

const (
	EnrollmentActive    EnrollmentStatus = "active"
	EnrollmentCompleted EnrollmentStatus = "completed"
)

// EnrollmentType records how access to the course was granted.
type EnrollmentType string

const (
	EnrollmentFree EnrollmentType = "free"
	EnrollmentPaid EnrollmentType = "paid"
)

// CompletedLesson is one member of an enrollment's lesson-completion set.
type CompletedLesson struct {
	LessonID    string    `json:"lessonId"`
	CompletedAt time.Time `json:"completedAt"`
	TimeSpent   int       `json:"timeSpent"`
}

// Certificate is the certificate sub-state of an enrollment.
type Certificate struct {
	Issued        bool       `json:"issued"`
	CertificateID string     `json:"certificateId,omitempty"`
	IssuedAt      *time.Time `json:"issuedAt,omitempty"`
}

// Enrollment is one student's access to and progress within one course.
type Enrollment struct {
	ID                 string            `json:"id"`
	StudentID          string            `json:"studentId"`
	CourseID           string            `json:"courseId"`
	Status             EnrollmentStatus  `json:"status"`
	Type               EnrollmentType    `json:"enrollmentType"`
	PaymentRef         string            `json:"paymentRef,omitempty"`
	CompletedLessons   []CompletedLesson `json:"completedLessons"`
	PercentageComplete int               `json:"percentageComplete"`
	TotalTimeSpent     int               `json:"totalTimeSpent"`
	QuizAttempts       []QuizAttempts    `json:"quizAttempts"`
	Certificate        Certificate       `json:"certificate"`
	EnrolledAt         time.Time         `json:"enrolledAt"`
	CompletedAt        *time.Time        `json:"completedAt,omitempty"`
}

// HasCompleted reports whether lessonID is in the completion set.
func (e Enrollment) HasCompleted(lessonID string) bool {
	for _, l := range e.CompletedLessons {
		if l.LessonID == lessonID {
			return true
		}
	}
	return false
}

// AttemptsFor returns the attempt record for a quiz, or false if the student never attempted it.
func (e Enrollment) AttemptsFor(quizID string) (QuizAttempts, bool) {
	for _, qa := range e.QuizAttempts {
		if qa.QuizID == quizID {
			return qa, true
		}
	}
	return QuizAttempts{}, false
}

// ProgressUpdate carries the derived fields written by progress recomputation.
type ProgressUpdate struct {
	PercentageComplete int
	Status             EnrollmentStatus
	CompletedAt        *time.Time
}

// Counters are the per-user totals achievement rules are evaluated against.
type Counters struct {
	Enrollments      int
	LessonsCompleted int
	CoursesCompleted int
	QuizzesPassed    int
	Certificates     int
	Reviews          int
}

// Course is the catalog view of a course the pipeline needs.
type Course struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	InstructorID    string `json:"instructorId"`
	Published       bool   `json:"published"`
	PriceCents      int64  `json:"priceCents"`
	TotalLessons    int    `json:"totalLessons"`
	EnrollmentCount int    `json:"enrollmentCount"`
}

// IsPaid reports whether enrollment requires a payment confirmation.
func (c Course) IsPaid() bool {
	return c.PriceCents > 0
}

// SubmissionStatus is the grading state of an assignment submission.
type SubmissionStatus string

const (
	SubmissionSubmitted SubmissionStatus = "submitted"
	SubmissionGraded    SubmissionStatus = "graded"
)

const (
	GradeFail = 0
	GradePass = 1
)

// AssignmentSubmission is one student's work for an assignment lesson, keyed by (lesson, student).
type AssignmentSubmission struct {
	ID          string           `json:"id"`
	LessonID    string           `json:"lessonId"`
	CourseID    string           `json:"courseId"`
	StudentID   string           `json:"studentId"`
	Content     string           `json:"content"`
	Status      SubmissionStatus `json:"status"`
	Grade       *int             `json:"grade,omitempty"`
	Feedback    string           `json:"feedback,omitempty"`
	SubmittedAt time.Time        `json:"submittedAt"`
	GradedAt    *time.Time       `json:"gradedAt,omitempty"`
}

// Passed reports whether an instructor graded the submission as a pass.
func (s AssignmentSubmission) Passed() bool {
	return s.Status == SubmissionGraded && s.Grade != nil && *s.Grade == GradePass
}

// Reopened reports whether a failing grade allows the student to resubmit.
func (s AssignmentSubmission) Reopened() bool {
	return s.Status == SubmissionGraded && s.Grade != nil && *s.Grade == GradeFail
}

// ActivityType classifies timeline entries.
type ActivityType string

const (
	ActivityEnrolled            ActivityType = "enrollment"
	ActivityLessonCompleted     ActivityType = "lesson_completed"
	ActivityCourseCompleted     ActivityType = "course_completed"
	ActivityQuizPassed          ActivityType = "quiz_passed"
	ActivityQuizAttempted       ActivityType = "quiz_attempted"
	ActivityAssignmentSubmitted ActivityType = "assignment_submitted"
	ActivityAssignmentGraded    ActivityType = "assignment_graded"
	ActivityReviewPosted        ActivityType = "review_posted"
	ActivityCertificateIssued   ActivityType = "certificate_issued"
	ActivityAchievementEarned   ActivityType = "achievement_earned"
)

// Activity is an append-only timeline entry.
type Activity struct {
	ID        string       `json:"id"`
	UserID    string       `json:"userId"`
	Type      ActivityType `json:"type"`
	Message   string       `json:"message"`
	CourseID  string       `json:"courseId,omitempty"`
	LessonID  string       `json:"lessonId,omitempty"`
	QuizID    string       `json:"quizId,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
}

// TriggerFamily groups achievement rules by the kind of event that can satisfy them.
type TriggerFamily string

const (
	TriggerEnrollment       TriggerFamily = "enrollment"
	TriggerLessonCount      TriggerFamily = "lesson_count"
	TriggerCourseCompletion TriggerFamily = "course_completion"
	TriggerQuizScore        TriggerFamily = "quiz_score"
	TriggerQuizPass         TriggerFamily = "quiz_pass"
	TriggerReview           TriggerFamily = "review"
	TriggerCertificate      TriggerFamily = "certificate"
)

// Achievement is a badge earned when a counter reaches Threshold. For TriggerQuizScore the
// threshold is the attempt percentage instead of a count.
type Achievement struct {
	ID          string        `json:"id" yaml:"id"`
	Name        string        `json:"name" yaml:"name"`
	Description string        `json:"description" yaml:"description"`
	Family      TriggerFamily `json:"family" yaml:"family"`
	Threshold   int           `json:"threshold" yaml:"threshold"`
}
