package domain

import "time"

// QuestionType selects how a question is graded.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple-choice"
	QuestionTrueFalse      QuestionType = "true-false"
	QuestionShortAnswer    QuestionType = "short-answer"
	QuestionEssay          QuestionType = "essay"
)

// ResultsPolicy controls what a student sees after submitting an attempt.
type ResultsPolicy string

const (
	ShowImmediately     ResultsPolicy = "immediately"
	ShowAfterSubmission ResultsPolicy = "after-submission"
	ShowNever           ResultsPolicy = "never"
)

// Option represents a possible answer for a choice question.
type Option struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"isCorrect"`
}

// Question is one entry of a quiz. Options are used by choice types, CorrectAnswer by short-answer.
type Question struct {
	ID            string       `json:"id"`
	Type          QuestionType `json:"type"`
	Prompt        string       `json:"prompt"`
	Options       []Option     `json:"options,omitempty"`
	CorrectAnswer string       `json:"correctAnswer,omitempty"`
	Points        int          `json:"points"` // defaults to 1 if zero
}

// CorrectOptionID returns the id of the option flagged correct.
func (q Question) CorrectOptionID() string {
	for _, opt := range q.Options {
		if opt.Correct {
			return opt.ID
		}
	}
	return ""
}

// QuizSettings are the author-controlled grading and presentation knobs.
type QuizSettings struct {
	Attempts           int           `json:"attempts"` // 0 = unlimited
	PassingScore       int           `json:"passingScore"`
	ShowResults        ResultsPolicy `json:"showResults"`
	ShowCorrectAnswers bool          `json:"showCorrectAnswers"`
	ShuffleQuestions   bool          `json:"shuffleQuestions"`
	ShuffleOptions     bool          `json:"shuffleOptions"`
	TimeLimitMinutes   int           `json:"timeLimitMinutes,omitempty"`
}

// Quiz is a graded assessment attached to exactly one lesson.
type Quiz struct {
	ID        string       `json:"id"`
	CourseID  string       `json:"courseId"`
	LessonID  string       `json:"lessonId"`
	Title     string       `json:"title"`
	Questions []Question   `json:"questions"`
	Settings  QuizSettings `json:"settings"`
}

// GradedAnswer is the per-question outcome of an attempt.
type GradedAnswer struct {
	QuestionID    string `json:"questionId"`
	Answer        string `json:"answer"`
	Correct       bool   `json:"correct"`
	PointsAwarded int    `json:"pointsAwarded"`
	PendingReview bool   `json:"pendingReview,omitempty"`
	CorrectAnswer string `json:"correctAnswer,omitempty"`
}

// GradeResult is the output of grading one attempt.
type GradeResult struct {
	Score       int            `json:"score"`
	TotalPoints int            `json:"totalPoints"`
	Percentage  int            `json:"percentage"`
	Passed      bool           `json:"passed"`
	HasEssay    bool           `json:"hasEssay"`
	Answers     []GradedAnswer `json:"answers"`
}

// Attempt is one stored, graded submission of a quiz.
type Attempt struct {
	Score       int            `json:"score"`
	TotalPoints int            `json:"totalPoints"`
	Percentage  int            `json:"percentage"`
	Passed      bool           `json:"passed"`
	Answers     []GradedAnswer `json:"answers,omitempty"`
	TimeSpent   int            `json:"timeSpent"`
	AttemptedAt time.Time      `json:"attemptedAt"`
}

// QuizAttempts is the per-quiz attempt record kept on an enrollment.
type QuizAttempts struct {
	QuizID         string    `json:"quizId"`
	Attempts       []Attempt `json:"attempts"`
	BestScore      int       `json:"bestScore"`
	BestPercentage int       `json:"bestPercentage"`
	Passed         bool      `json:"passed"`
}

// QuizAnalytics aggregates attempts across all students of a quiz.
type QuizAnalytics struct {
	QuizID   string  `json:"quizId"`
	Attempts int64   `json:"attempts"`
	Passed   int64   `json:"passed"`
	PassRate float64 `json:"passRate"`
}

// NewQuizAnalytics derives the pass rate from raw counters.
func NewQuizAnalytics(quizID string, attempts, passed int64) QuizAnalytics {
	a := QuizAnalytics{QuizID: quizID, Attempts: attempts, Passed: passed}
	if attempts > 0 {
		a.PassRate = float64(passed) / float64(attempts)
	}
	return a
}
