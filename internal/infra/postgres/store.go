package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"elearn-progress-service/internal/domain"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// Store is the bun-backed home of the catalog, enrollment ledger, submissions, activity timeline
// and per-user achievement state.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

// OpenDB opens a bun handle over the pgdriver connector.
func OpenDB(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

type courseModel struct {
	bun.BaseModel `bun:"table:courses"`

	ID              string `bun:"id,pk"`
	Title           string `bun:"title"`
	InstructorID    string `bun:"instructor_id"`
	Published       bool   `bun:"published"`
	PriceCents      int64  `bun:"price_cents"`
	TotalLessons    int    `bun:"total_lessons"`
	EnrollmentCount int    `bun:"enrollment_count"`
}

type lessonModel struct {
	bun.BaseModel `bun:"table:lessons"`

	ID       string          `bun:"id,pk"`
	CourseID string          `bun:"course_id"`
	Title    string          `bun:"title"`
	Position int             `bun:"position"`
	Type     string          `bun:"type"`
	Content  json.RawMessage `bun:"content,type:jsonb"`
}

type enrollmentModel struct {
	bun.BaseModel `bun:"table:enrollments"`

	ID                  string     `bun:"id,pk"`
	StudentID           string     `bun:"student_id"`
	CourseID            string     `bun:"course_id"`
	Status              string     `bun:"status"`
	EnrollmentType      string     `bun:"enrollment_type"`
	PaymentRef          string     `bun:"payment_ref"`
	PercentageComplete  int        `bun:"percentage_complete"`
	TotalTimeSpent      int        `bun:"total_time_spent"`
	CertificateIssued   bool       `bun:"certificate_issued"`
	CertificateID       string     `bun:"certificate_id"`
	CertificateIssuedAt *time.Time `bun:"certificate_issued_at"`
	EnrolledAt          time.Time  `bun:"enrolled_at"`
	CompletedAt         *time.Time `bun:"completed_at"`
}

type enrollmentLessonModel struct {
	bun.BaseModel `bun:"table:enrollment_lessons"`

	EnrollmentID string    `bun:"enrollment_id,pk"`
	LessonID     string    `bun:"lesson_id,pk"`
	CompletedAt  time.Time `bun:"completed_at"`
	TimeSpent    int       `bun:"time_spent"`
}

type enrollmentQuizModel struct {
	bun.BaseModel `bun:"table:enrollment_quizzes"`

	EnrollmentID   string `bun:"enrollment_id,pk"`
	QuizID         string `bun:"quiz_id,pk"`
	BestScore      int    `bun:"best_score"`
	BestPercentage int    `bun:"best_percentage"`
	Passed         bool   `bun:"passed"`
}

type quizAttemptModel struct {
	bun.BaseModel `bun:"table:quiz_attempts"`

	ID           int64                 `bun:"id,pk,autoincrement"`
	EnrollmentID string                `bun:"enrollment_id"`
	QuizID       string                `bun:"quiz_id"`
	Score        int                   `bun:"score"`
	TotalPoints  int                   `bun:"total_points"`
	Percentage   int                   `bun:"percentage"`
	Passed       bool                  `bun:"passed"`
	Answers      []domain.GradedAnswer `bun:"answers,type:jsonb"`
	TimeSpent    int                   `bun:"time_spent"`
	AttemptedAt  time.Time             `bun:"attempted_at"`
}

type submissionModel struct {
	bun.BaseModel `bun:"table:assignment_submissions"`

	ID          string     `bun:"id,pk"`
	LessonID    string     `bun:"lesson_id"`
	CourseID    string     `bun:"course_id"`
	StudentID   string     `bun:"student_id"`
	Content     string     `bun:"content"`
	Status      string     `bun:"status"`
	Grade       *int       `bun:"grade"`
	Feedback    string     `bun:"feedback"`
	SubmittedAt time.Time  `bun:"submitted_at"`
	GradedAt    *time.Time `bun:"graded_at"`
}

type activityModel struct {
	bun.BaseModel `bun:"table:activities"`

	ID        string    `bun:"id,pk"`
	UserID    string    `bun:"user_id"`
	Type      string    `bun:"type"`
	Message   string    `bun:"message"`
	CourseID  string    `bun:"course_id"`
	LessonID  string    `bun:"lesson_id"`
	QuizID    string    `bun:"quiz_id"`
	CreatedAt time.Time `bun:"created_at"`
}

type userAchievementModel struct {
	bun.BaseModel `bun:"table:user_achievements"`

	UserID        string    `bun:"user_id,pk"`
	AchievementID string    `bun:"achievement_id,pk"`
	EarnedAt      time.Time `bun:"earned_at"`
}

func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.Field('C') == "23505"
}

func rowsAffected(res sql.Result) int64 {
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return n
}

// Ping verifies the connection at startup.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
