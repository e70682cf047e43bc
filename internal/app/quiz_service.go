package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"elearn-progress-service/internal/domain"
	"elearn-progress-service/internal/logger"
	"github.com/google/uuid"
)

// QuizService contains the quiz grading use cases.
type QuizService struct {
	quizzes     QuizRepository
	enrollments EnrollmentRepository
	gate        AttemptGate
	stats       QuizStatsRepository
	progress    *EnrollmentService
	events      Publisher
	log         *logger.Logger
	now         func() time.Time
}

func NewQuizService(quizzes QuizRepository, enrollments EnrollmentRepository, gate AttemptGate, stats QuizStatsRepository, progress *EnrollmentService, events Publisher, log *logger.Logger) *QuizService {
	return &QuizService{
		quizzes:     quizzes,
		enrollments: enrollments,
		gate:        gate,
		stats:       stats,
		progress:    progress,
		events:      events,
		log:         log,
		now:         time.Now,
	}
}

// WithClock is test-only for deterministic timestamps.
func (s *QuizService) WithClock(now func() time.Time) *QuizService {
	s.now = now
	return s
}

// AttemptRequest is one quiz submission from a student.
type AttemptRequest struct {
	QuizID    string
	StudentID string
	Answers   map[string]string
	TimeSpent int
}

// AttemptResult is what the student gets back; Answers is gated by the quiz's result policy.
type AttemptResult struct {
	QuizID            string                `json:"quizId"`
	AttemptNumber     int                   `json:"attemptNumber"`
	Score             int                   `json:"score"`
	TotalPoints       int                   `json:"totalPoints"`
	Percentage        int                   `json:"percentage"`
	Passed            bool                  `json:"passed"`
	PendingReview     bool                  `json:"pendingReview"`
	BestScore         int                   `json:"bestScore"`
	BestPercentage    int                   `json:"bestPercentage"`
	QuizPassed        bool                  `json:"quizPassed"`
	AttemptsRemaining *int                  `json:"attemptsRemaining,omitempty"`
	Answers           []domain.GradedAnswer `json:"answers,omitempty"`
}

// AttemptHistory is the read-only view of a student's attempts at a quiz.
type AttemptHistory struct {
	QuizID         string           `json:"quizId"`
	Attempts       []domain.Attempt `json:"attempts"`
	BestScore      int              `json:"bestScore"`
	BestPercentage int              `json:"bestPercentage"`
	Passed         bool             `json:"passed"`
}

// SubmitAttempt enforces the attempt limit, grades the answers, stores the attempt, and emits a
// QuizAttempted event. A first-time pass also completes the quiz's lesson.
func (s *QuizService) SubmitAttempt(ctx context.Context, req AttemptRequest) (AttemptResult, error) {
	fields := map[string]string{}
	if strings.TrimSpace(req.QuizID) == "" {
		fields["quizId"] = "required"
	}
	if strings.TrimSpace(req.StudentID) == "" {
		fields["studentId"] = "required"
	}
	if len(fields) > 0 {
		return AttemptResult{}, domain.NewValidationError(fields)
	}

	quiz, err := s.quizzes.GetQuiz(ctx, req.QuizID)
	if err != nil {
		return AttemptResult{}, err
	}
	enrollment, err := s.enrollmentFor(ctx, req.StudentID, quiz.CourseID)
	if err != nil {
		return AttemptResult{}, err
	}

	previous, _ := enrollment.AttemptsFor(quiz.ID)
	limit := quiz.Settings.Attempts
	if limit > 0 && len(previous.Attempts) >= limit {
		return AttemptResult{}, domain.ErrAttemptLimitReached
	}
	release, err := s.gate.Acquire(ctx, quiz.ID, enrollment.ID, limit, len(previous.Attempts))
	if err != nil {
		return AttemptResult{}, err
	}

	graded := GradeAttempt(quiz, req.Answers)
	timeSpent := req.TimeSpent
	if timeSpent < 0 {
		timeSpent = 0
	}
	attempt := domain.Attempt{
		Score:       graded.Score,
		TotalPoints: graded.TotalPoints,
		Percentage:  graded.Percentage,
		Passed:      graded.Passed,
		Answers:     graded.Answers,
		TimeSpent:   timeSpent,
		AttemptedAt: s.now(),
	}
	record, err := s.enrollments.AppendQuizAttempt(ctx, enrollment.ID, quiz.ID, attempt)
	if err != nil {
		release()
		return AttemptResult{}, fmt.Errorf("store attempt: %w", err)
	}

	if err := s.stats.RecordAttempt(ctx, quiz.ID, graded.Passed); err != nil {
		s.log.Warn("failed to record quiz analytics", "quiz_id", quiz.ID, "error", err)
	}

	firstPass := record.Passed && !previous.Passed
	if firstPass && quiz.LessonID != "" {
		if _, err := s.progress.CompleteLesson(ctx, req.StudentID, enrollment.ID, quiz.LessonID, timeSpent); err != nil {
			s.log.Warn("failed to complete quiz lesson", "quiz_id", quiz.ID, "lesson_id", quiz.LessonID, "error", err)
		}
	}

	s.events.Publish(domain.Event{
		Type:       domain.EventQuizAttempted,
		UserID:     req.StudentID,
		CourseID:   quiz.CourseID,
		LessonID:   quiz.LessonID,
		QuizID:     quiz.ID,
		Percentage: graded.Percentage,
		Passed:     graded.Passed,
		FirstPass:  firstPass,
		OccurredAt: attempt.AttemptedAt,
	})

	result := AttemptResult{
		QuizID:         quiz.ID,
		AttemptNumber:  len(record.Attempts),
		Score:          graded.Score,
		TotalPoints:    graded.TotalPoints,
		Percentage:     graded.Percentage,
		Passed:         graded.Passed,
		PendingReview:  graded.HasEssay,
		BestScore:      record.BestScore,
		BestPercentage: record.BestPercentage,
		QuizPassed:     record.Passed,
		Answers:        visibleAnswers(quiz.Settings, graded.Answers),
	}
	if limit > 0 {
		remaining := limit - len(record.Attempts)
		if remaining < 0 {
			remaining = 0
		}
		result.AttemptsRemaining = &remaining
	}
	return result, nil
}

// AttemptHistory returns a student's attempts, filtered by the quiz's result policy.
func (s *QuizService) AttemptHistory(ctx context.Context, quizID, studentID string) (AttemptHistory, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return AttemptHistory{}, err
	}
	enrollment, err := s.enrollmentFor(ctx, studentID, quiz.CourseID)
	if err != nil {
		return AttemptHistory{}, err
	}
	record, _ := enrollment.AttemptsFor(quiz.ID)
	history := AttemptHistory{
		QuizID:         quiz.ID,
		Attempts:       make([]domain.Attempt, 0, len(record.Attempts)),
		BestScore:      record.BestScore,
		BestPercentage: record.BestPercentage,
		Passed:         record.Passed,
	}
	for _, a := range record.Attempts {
		a.Answers = visibleAnswers(quiz.Settings, a.Answers)
		history.Attempts = append(history.Attempts, a)
	}
	return history, nil
}

// Present returns the quiz as a student should see it: answer keys stripped and, when the quiz
// asks for it, questions and options shuffled.
func (s *QuizService) Present(ctx context.Context, quizID, studentID string) (domain.Quiz, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	if _, err := s.enrollmentFor(ctx, studentID, quiz.CourseID); err != nil {
		return domain.Quiz{}, err
	}

	rnd := rand.New(rand.NewSource(s.now().UnixNano()))
	questions := make([]domain.Question, len(quiz.Questions))
	for i, q := range quiz.Questions {
		q.CorrectAnswer = ""
		options := make([]domain.Option, len(q.Options))
		for j, opt := range q.Options {
			opt.Correct = false
			options[j] = opt
		}
		if quiz.Settings.ShuffleOptions {
			rnd.Shuffle(len(options), func(a, b int) { options[a], options[b] = options[b], options[a] })
		}
		q.Options = options
		questions[i] = q
	}
	if quiz.Settings.ShuffleQuestions {
		rnd.Shuffle(len(questions), func(a, b int) { questions[a], questions[b] = questions[b], questions[a] })
	}
	quiz.Questions = questions
	return quiz, nil
}

// SaveQuiz validates and upserts a quiz; a missing id creates a new quiz.
func (s *QuizService) SaveQuiz(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	normalized, err := normalizeQuiz(quiz)
	if err != nil {
		return domain.Quiz{}, err
	}
	if err := s.quizzes.SaveQuiz(ctx, normalized); err != nil {
		return domain.Quiz{}, fmt.Errorf("save quiz: %w", err)
	}
	return normalized, nil
}

// DeleteQuiz removes a quiz nobody has attempted yet.
func (s *QuizService) DeleteQuiz(ctx context.Context, quizID string) error {
	if _, err := s.quizzes.GetQuiz(ctx, quizID); err != nil {
		return err
	}
	attempted, err := s.enrollments.HasQuizAttempts(ctx, quizID)
	if err != nil {
		return err
	}
	if attempted {
		return domain.ErrQuizHasAttempts
	}
	return s.quizzes.DeleteQuiz(ctx, quizID)
}

// Analytics returns aggregate attempt counters for a quiz.
func (s *QuizService) Analytics(ctx context.Context, quizID string) (domain.QuizAnalytics, error) {
	if _, err := s.quizzes.GetQuiz(ctx, quizID); err != nil {
		return domain.QuizAnalytics{}, err
	}
	return s.stats.Stats(ctx, quizID)
}

func (s *QuizService) enrollmentFor(ctx context.Context, studentID, courseID string) (domain.Enrollment, error) {
	enrollment, err := s.enrollments.FindByStudentCourse(ctx, studentID, courseID)
	if errors.Is(err, domain.ErrEnrollmentNotFound) {
		return domain.Enrollment{}, domain.ErrNotEnrolled
	}
	return enrollment, err
}

func normalizeQuiz(quiz domain.Quiz) (domain.Quiz, error) {
	fields := map[string]string{}
	if strings.TrimSpace(quiz.CourseID) == "" {
		fields["courseId"] = "required"
	}
	if strings.TrimSpace(quiz.LessonID) == "" {
		fields["lessonId"] = "required"
	}
	if len(quiz.Questions) == 0 {
		fields["questions"] = "at least one question is required"
	}
	if quiz.Settings.PassingScore < 0 || quiz.Settings.PassingScore > 100 {
		fields["settings.passingScore"] = "must be between 0 and 100"
	}
	if quiz.Settings.Attempts < 0 {
		fields["settings.attempts"] = "must not be negative"
	}
	switch quiz.Settings.ShowResults {
	case "":
		quiz.Settings.ShowResults = domain.ShowImmediately
	case domain.ShowImmediately, domain.ShowAfterSubmission, domain.ShowNever:
	default:
		fields["settings.showResults"] = "must be immediately, after-submission or never"
	}

	if quiz.ID == "" {
		quiz.ID = uuid.NewString()
	}

	questions := make([]domain.Question, len(quiz.Questions))
	seen := make(map[string]struct{}, len(quiz.Questions))
	for i, q := range quiz.Questions {
		key := "questions[" + strconv.Itoa(i) + "]"
		if q.ID == "" {
			q.ID = uuid.NewString()
		}
		if _, dup := seen[q.ID]; dup {
			fields[key+".id"] = "duplicate question id"
		}
		seen[q.ID] = struct{}{}

		if q.Points < 0 {
			fields[key+".points"] = "must not be negative"
		}
		if q.Points == 0 {
			q.Points = 1
		}

		switch q.Type {
		case domain.QuestionTrueFalse:
			if len(q.Options) == 0 {
				q.Options = trueFalseOptions(q.CorrectAnswer)
				q.CorrectAnswer = ""
			}
			if msg := checkOptions(q.Options); msg != "" {
				fields[key+".options"] = msg
			}
		case domain.QuestionMultipleChoice:
			for j := range q.Options {
				if q.Options[j].ID == "" {
					q.Options[j].ID = uuid.NewString()
				}
			}
			if msg := checkOptions(q.Options); msg != "" {
				fields[key+".options"] = msg
			}
		case domain.QuestionShortAnswer:
			if strings.TrimSpace(q.CorrectAnswer) == "" {
				fields[key+".correctAnswer"] = "required for short-answer questions"
			}
		case domain.QuestionEssay:
		default:
			fields[key+".type"] = "unknown question type"
		}
		questions[i] = q
	}
	quiz.Questions = questions

	if len(fields) > 0 {
		return domain.Quiz{}, domain.NewValidationError(fields)
	}
	return quiz, nil
}

// trueFalseOptions builds the two canonical options from a "true"/"false" answer key.
func trueFalseOptions(answer string) []domain.Option {
	correct := strings.ToLower(strings.TrimSpace(answer))
	if correct != "true" && correct != "false" {
		return nil
	}
	return []domain.Option{
		{ID: "true", Text: "True", Correct: correct == "true"},
		{ID: "false", Text: "False", Correct: correct == "false"},
	}
}

func checkOptions(options []domain.Option) string {
	if len(options) < 2 {
		return "at least two options are required"
	}
	ids := make(map[string]struct{}, len(options))
	correct := 0
	for _, opt := range options {
		if opt.ID == "" {
			return "option ids are required"
		}
		if _, dup := ids[opt.ID]; dup {
			return "option ids must be unique"
		}
		ids[opt.ID] = struct{}{}
		if opt.Correct {
			correct++
		}
	}
	if correct != 1 {
		return "exactly one option must be marked correct"
	}
	return ""
}
