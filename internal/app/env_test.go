package app_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"elearn-progress-service/internal/app"
	"elearn-progress-service/internal/domain"
	"elearn-progress-service/internal/infra/memory"
	"elearn-progress-service/internal/logger"
)

var ctxBG = context.Background()

var fixedNow = time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

// recordingPublisher captures events synchronously so tests can assert on them.
type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (p *recordingPublisher) Publish(event domain.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) count(eventType domain.EventType) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

func (p *recordingPublisher) last(eventType domain.EventType) (domain.Event, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.events) - 1; i >= 0; i-- {
		if p.events[i].Type == eventType {
			return p.events[i], true
		}
	}
	return domain.Event{}, false
}

type testEnv struct {
	catalog     *memory.Catalog
	quizzes     *memory.QuizRepository
	enrollments *memory.EnrollmentStore
	submissions *memory.SubmissionStore
	activities  *memory.ActivityStore
	users       *memory.UserStore
	stats       *memory.QuizStats
	events      *recordingPublisher

	enrollment *app.EnrollmentService
	quiz       *app.QuizService
	assignment *app.AssignmentService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		catalog:     memory.NewCatalog(),
		enrollments: memory.NewEnrollmentStore(),
		submissions: memory.NewSubmissionStore(),
		activities:  memory.NewActivityStore(),
		users:       memory.NewUserStore(),
		stats:       memory.NewQuizStats(),
		events:      &recordingPublisher{},
	}
	env.quizzes = memory.NewQuizRepository(memory.NewStaticQuizStore(map[string]domain.Quiz{
		"quiz-1":     capitalsQuiz(),
		"quiz-essay": essayQuiz(),
	}), 5*time.Minute)

	env.catalog.AddCourse(domain.Course{ID: "course-1", Title: "Geography", InstructorID: "inst-1", Published: true})
	env.catalog.AddCourse(domain.Course{ID: "course-paid", Title: "Advanced Geography", InstructorID: "inst-1", Published: true, PriceCents: 4900})
	env.catalog.AddCourse(domain.Course{ID: "course-draft", Title: "Draft", InstructorID: "inst-1"})
	env.catalog.AddLesson(domain.Lesson{ID: "lesson-text", CourseID: "course-1", Position: 1, Content: domain.TextContent{Body: "Intro"}})
	env.catalog.AddLesson(domain.Lesson{ID: "lesson-video", CourseID: "course-1", Position: 2, Content: domain.VideoContent{URL: "https://cdn.example.com/v.mp4", DurationSeconds: 300}})
	env.catalog.AddLesson(domain.Lesson{ID: "lesson-quiz", CourseID: "course-1", Position: 3, Content: domain.QuizContent{QuizID: "quiz-1"}})
	env.catalog.AddLesson(domain.Lesson{ID: "lesson-assignment", CourseID: "course-1", Position: 4, Content: domain.AssignmentContent{Instructions: "Draw a map"}})
	env.catalog.AddLesson(domain.Lesson{ID: "lesson-paid", CourseID: "course-paid", Position: 1, Content: domain.TextContent{Body: "Paid"}})

	log := logger.Nop()
	env.enrollment = app.NewEnrollmentService(env.enrollments, env.catalog, env.users, env.events, log).WithClock(clock)
	env.quiz = app.NewQuizService(env.quizzes, env.enrollments, memory.NewAttemptGate(), env.stats, env.enrollment, env.events, log).WithClock(clock)
	env.assignment = app.NewAssignmentService(env.submissions, env.catalog, env.enrollments, env.enrollment, env.events, log).WithClock(clock)
	return env
}

func capitalsQuiz() domain.Quiz {
	return domain.Quiz{
		ID:       "quiz-1",
		CourseID: "course-1",
		LessonID: "lesson-quiz",
		Title:    "Capitals",
		Questions: []domain.Question{
			{
				ID:     "q1",
				Type:   domain.QuestionMultipleChoice,
				Prompt: "Capital of Italy?",
				Options: []domain.Option{
					{ID: "o1", Text: "Milan"},
					{ID: "o2", Text: "Rome", Correct: true},
				},
				Points: 1,
			},
			{
				ID:            "q2",
				Type:          domain.QuestionShortAnswer,
				Prompt:        "Capital of France?",
				CorrectAnswer: "Paris",
				Points:        1,
			},
		},
		Settings: domain.QuizSettings{
			Attempts:           2,
			PassingScore:       50,
			ShowResults:        domain.ShowImmediately,
			ShowCorrectAnswers: true,
		},
	}
}

func essayQuiz() domain.Quiz {
	return domain.Quiz{
		ID:       "quiz-essay",
		CourseID: "course-1",
		LessonID: "lesson-quiz",
		Title:    "Essay",
		Questions: []domain.Question{
			{
				ID:   "q1",
				Type: domain.QuestionTrueFalse,
				Options: []domain.Option{
					{ID: "true", Text: "True", Correct: true},
					{ID: "false", Text: "False"},
				},
				Points: 2,
			},
			{ID: "q2", Type: domain.QuestionEssay, Prompt: "Explain plate tectonics", Points: 5},
		},
		Settings: domain.QuizSettings{PassingScore: 50, ShowResults: domain.ShowImmediately},
	}
}

func mustEnroll(t *testing.T, env *testEnv, studentID, courseID string) domain.Enrollment {
	t.Helper()
	e, err := env.enrollment.Enroll(ctxBG, studentID, courseID, "")
	if err != nil {
		t.Fatalf("enroll %s in %s: %v", studentID, courseID, err)
	}
	return e
}
