package app_test

import (
	"errors"
	"testing"

	"elearn-progress-service/internal/app"
	"elearn-progress-service/internal/domain"
)

func TestSubmitAttemptGradesAndStores(t *testing.T) {
	env := newTestEnv(t)
	e := mustEnroll(t, env, "s1", "course-1")

	result, err := env.quiz.SubmitAttempt(ctxBG, app.AttemptRequest{
		QuizID:    "quiz-1",
		StudentID: "s1",
		Answers:   map[string]string{"q1": "o2", "q2": " paris "},
		TimeSpent: 90,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Percentage != 100 || !result.Passed || result.AttemptNumber != 1 || result.BestScore != 2 || result.BestPercentage != 100 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.AttemptsRemaining == nil || *result.AttemptsRemaining != 1 {
		t.Fatalf("expected one attempt remaining, got %v", result.AttemptsRemaining)
	}
	if len(result.Answers) != 2 || result.Answers[0].CorrectAnswer != "o2" {
		t.Fatalf("expected answers with reveal, got %+v", result.Answers)
	}

	stored, _ := env.enrollments.Get(ctxBG, e.ID)
	record, ok := stored.AttemptsFor("quiz-1")
	if !ok || len(record.Attempts) != 1 || !record.Passed {
		t.Fatalf("attempt not stored: %+v", record)
	}
	if !stored.HasCompleted("lesson-quiz") {
		t.Fatalf("first pass should complete the quiz lesson")
	}
	if stored.TotalTimeSpent != 90 {
		t.Fatalf("expected quiz time credited to the lesson, got %d", stored.TotalTimeSpent)
	}

	event, ok := env.events.last(domain.EventQuizAttempted)
	if !ok || !event.FirstPass || event.Percentage != 100 {
		t.Fatalf("unexpected quiz event: %+v", event)
	}
}

func TestSubmitAttemptEnforcesLimit(t *testing.T) {
	env := newTestEnv(t)
	e := mustEnroll(t, env, "s1", "course-1")
	req := app.AttemptRequest{QuizID: "quiz-1", StudentID: "s1", Answers: map[string]string{"q1": "o1"}}

	for i := 0; i < 2; i++ {
		if _, err := env.quiz.SubmitAttempt(ctxBG, req); err != nil {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
	}
	_, err := env.quiz.SubmitAttempt(ctxBG, req)
	if !errors.Is(err, domain.ErrAttemptLimitReached) || domain.KindOf(err) != domain.KindInvalidState {
		t.Fatalf("expected attempt limit error, got %v", err)
	}

	stored, _ := env.enrollments.Get(ctxBG, e.ID)
	record, _ := stored.AttemptsFor("quiz-1")
	if len(record.Attempts) != 2 || record.BestScore != 0 || record.BestPercentage != 0 {
		t.Fatalf("rejected attempt must not change the record: %+v", record)
	}
	analytics, _ := env.quiz.Analytics(ctxBG, "quiz-1")
	if analytics.Attempts != 2 {
		t.Fatalf("rejected attempt must not be counted, got %d", analytics.Attempts)
	}
}

func TestReenrollmentStartsFreshAttemptCount(t *testing.T) {
	env := newTestEnv(t)
	first := mustEnroll(t, env, "s1", "course-1")
	req := app.AttemptRequest{QuizID: "quiz-1", StudentID: "s1", Answers: map[string]string{"q1": "o1"}}

	for i := 0; i < 2; i++ {
		if _, err := env.quiz.SubmitAttempt(ctxBG, req); err != nil {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
	}
	if err := env.enrollment.DeleteEnrollment(ctxBG, true, first.ID); err != nil {
		t.Fatalf("delete enrollment: %v", err)
	}
	second := mustEnroll(t, env, "s1", "course-1")

	result, err := env.quiz.SubmitAttempt(ctxBG, req)
	if err != nil {
		t.Fatalf("attempt after re-enrolling: %v", err)
	}
	if result.AttemptNumber != 1 || result.AttemptsRemaining == nil || *result.AttemptsRemaining != 1 {
		t.Fatalf("expected a fresh attempt count, got %+v", result)
	}
	stored, _ := env.enrollments.Get(ctxBG, second.ID)
	record, _ := stored.AttemptsFor("quiz-1")
	if len(record.Attempts) != 1 {
		t.Fatalf("expected one attempt on the new enrollment, got %d", len(record.Attempts))
	}
}

func TestLaterAttemptCannotUnpass(t *testing.T) {
	env := newTestEnv(t)
	mustEnroll(t, env, "s1", "course-1")

	if _, err := env.quiz.SubmitAttempt(ctxBG, app.AttemptRequest{QuizID: "quiz-1", StudentID: "s1", Answers: map[string]string{"q1": "o2"}}); err != nil {
		t.Fatalf("first attempt: %v", err)
	}
	result, err := env.quiz.SubmitAttempt(ctxBG, app.AttemptRequest{QuizID: "quiz-1", StudentID: "s1"})
	if err != nil {
		t.Fatalf("second attempt: %v", err)
	}
	if result.Passed || !result.QuizPassed || result.BestScore != 1 || result.BestPercentage != 50 {
		t.Fatalf("unexpected result: %+v", result)
	}
	event, _ := env.events.last(domain.EventQuizAttempted)
	if event.FirstPass {
		t.Fatalf("a failed attempt after a pass is not a first pass")
	}
}

func TestSubmitAttemptRequiresEnrollment(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.quiz.SubmitAttempt(ctxBG, app.AttemptRequest{QuizID: "quiz-1", StudentID: "stranger"})
	if !errors.Is(err, domain.ErrNotEnrolled) {
		t.Fatalf("expected not enrolled, got %v", err)
	}
	_, err = env.quiz.SubmitAttempt(ctxBG, app.AttemptRequest{QuizID: "quiz-missing", StudentID: "s1"})
	if !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected quiz not found, got %v", err)
	}
	_, err = env.quiz.SubmitAttempt(ctxBG, app.AttemptRequest{})
	if domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSubmitAttemptEssayPendsReview(t *testing.T) {
	env := newTestEnv(t)
	e := mustEnroll(t, env, "s1", "course-1")

	result, err := env.quiz.SubmitAttempt(ctxBG, app.AttemptRequest{
		QuizID:    "quiz-essay",
		StudentID: "s1",
		Answers:   map[string]string{"q1": "true", "q2": "Convection"},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Passed || !result.PendingReview || result.Percentage != 100 {
		t.Fatalf("essay quiz must not pass yet: %+v", result)
	}
	if result.AttemptsRemaining != nil {
		t.Fatalf("unlimited quiz has no remaining count")
	}
	stored, _ := env.enrollments.Get(ctxBG, e.ID)
	if stored.HasCompleted("lesson-quiz") {
		t.Fatalf("lesson must not complete without a pass")
	}
}

func TestResultVisibilityPolicies(t *testing.T) {
	cases := []struct {
		name        string
		policy      domain.ResultsPolicy
		reveal      bool
		wantAnswers bool
		wantKey     bool
	}{
		{name: "never", policy: domain.ShowNever, reveal: true, wantAnswers: false},
		{name: "after submission", policy: domain.ShowAfterSubmission, reveal: true, wantAnswers: true, wantKey: false},
		{name: "immediately without reveal", policy: domain.ShowImmediately, reveal: false, wantAnswers: true, wantKey: false},
		{name: "immediately with reveal", policy: domain.ShowImmediately, reveal: true, wantAnswers: true, wantKey: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			mustEnroll(t, env, "s1", "course-1")

			quiz := capitalsQuiz()
			quiz.Settings.ShowResults = tc.policy
			quiz.Settings.ShowCorrectAnswers = tc.reveal
			if _, err := env.quiz.SaveQuiz(ctxBG, quiz); err != nil {
				t.Fatalf("save quiz: %v", err)
			}

			result, err := env.quiz.SubmitAttempt(ctxBG, app.AttemptRequest{QuizID: "quiz-1", StudentID: "s1", Answers: map[string]string{"q1": "o1"}})
			if err != nil {
				t.Fatalf("submit: %v", err)
			}
			if (len(result.Answers) > 0) != tc.wantAnswers {
				t.Fatalf("answers shown = %v, want %v", len(result.Answers) > 0, tc.wantAnswers)
			}
			if tc.wantAnswers && (result.Answers[0].CorrectAnswer != "") != tc.wantKey {
				t.Fatalf("answer key shown = %v, want %v", result.Answers[0].CorrectAnswer != "", tc.wantKey)
			}

			history, err := env.quiz.AttemptHistory(ctxBG, "quiz-1", "s1")
			if err != nil {
				t.Fatalf("history: %v", err)
			}
			if len(history.Attempts) != 1 {
				t.Fatalf("expected one attempt in history, got %d", len(history.Attempts))
			}
			if (len(history.Attempts[0].Answers) > 0) != tc.wantAnswers {
				t.Fatalf("history must apply the same policy")
			}
		})
	}
}

func TestAttemptHistoryEmpty(t *testing.T) {
	env := newTestEnv(t)
	mustEnroll(t, env, "s1", "course-1")

	history, err := env.quiz.AttemptHistory(ctxBG, "quiz-1", "s1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if history.Attempts == nil || len(history.Attempts) != 0 || history.Passed {
		t.Fatalf("unexpected history: %+v", history)
	}
}

func TestSaveQuizValidation(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.quiz.SaveQuiz(ctxBG, domain.Quiz{
		CourseID: "course-1",
		LessonID: "lesson-quiz",
		Questions: []domain.Question{
			{ID: "q1", Type: domain.QuestionMultipleChoice, Options: []domain.Option{{ID: "a", Correct: true}, {ID: "b", Correct: true}}},
			{ID: "q2", Type: domain.QuestionShortAnswer},
			{ID: "q3", Type: "matching"},
		},
		Settings: domain.QuizSettings{PassingScore: 120},
	})
	var verr *domain.Error
	if !errors.As(err, &verr) || verr.Kind != domain.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	for _, field := range []string{"questions[0].options", "questions[1].correctAnswer", "questions[2].type", "settings.passingScore"} {
		if _, ok := verr.Fields[field]; !ok {
			t.Fatalf("expected field %s in %v", field, verr.Fields)
		}
	}
}

func TestSaveQuizNormalizes(t *testing.T) {
	env := newTestEnv(t)

	saved, err := env.quiz.SaveQuiz(ctxBG, domain.Quiz{
		CourseID: "course-1",
		LessonID: "lesson-quiz",
		Title:    "Quick check",
		Questions: []domain.Question{
			{Type: domain.QuestionTrueFalse, Prompt: "The earth is round", CorrectAnswer: "TRUE"},
		},
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.ID == "" || saved.Questions[0].ID == "" {
		t.Fatalf("expected generated ids, got %+v", saved)
	}
	q := saved.Questions[0]
	if q.Points != 1 || len(q.Options) != 2 || q.CorrectOptionID() != "true" {
		t.Fatalf("unexpected normalized question: %+v", q)
	}
	if saved.Settings.ShowResults != domain.ShowImmediately {
		t.Fatalf("expected default result policy, got %q", saved.Settings.ShowResults)
	}

	loaded, err := env.quizzes.GetQuiz(ctxBG, saved.ID)
	if err != nil || loaded.Title != "Quick check" {
		t.Fatalf("saved quiz not readable: %+v (%v)", loaded, err)
	}
}

func TestDeleteQuizBlockedByAttempts(t *testing.T) {
	env := newTestEnv(t)
	mustEnroll(t, env, "s1", "course-1")

	if _, err := env.quiz.SubmitAttempt(ctxBG, app.AttemptRequest{QuizID: "quiz-1", StudentID: "s1"}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := env.quiz.DeleteQuiz(ctxBG, "quiz-1"); !errors.Is(err, domain.ErrQuizHasAttempts) {
		t.Fatalf("expected delete blocked, got %v", err)
	}
	if err := env.quiz.DeleteQuiz(ctxBG, "quiz-essay"); err != nil {
		t.Fatalf("delete unattempted quiz: %v", err)
	}
	if _, err := env.quizzes.GetQuiz(ctxBG, "quiz-essay"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected deleted quiz gone, got %v", err)
	}
}

func TestAnalyticsPassRate(t *testing.T) {
	env := newTestEnv(t)
	mustEnroll(t, env, "s1", "course-1")
	mustEnroll(t, env, "s2", "course-1")

	_, _ = env.quiz.SubmitAttempt(ctxBG, app.AttemptRequest{QuizID: "quiz-1", StudentID: "s1", Answers: map[string]string{"q1": "o2"}})
	_, _ = env.quiz.SubmitAttempt(ctxBG, app.AttemptRequest{QuizID: "quiz-1", StudentID: "s2"})
	_, _ = env.quiz.SubmitAttempt(ctxBG, app.AttemptRequest{QuizID: "quiz-1", StudentID: "s2"})

	analytics, err := env.quiz.Analytics(ctxBG, "quiz-1")
	if err != nil {
		t.Fatalf("analytics: %v", err)
	}
	if analytics.Attempts != 3 || analytics.Passed != 1 {
		t.Fatalf("unexpected counters: %+v", analytics)
	}
	if analytics.PassRate < 0.333 || analytics.PassRate > 0.334 {
		t.Fatalf("expected pass rate 1/3, got %f", analytics.PassRate)
	}
}

func TestPresentHidesAnswerKey(t *testing.T) {
	env := newTestEnv(t)
	mustEnroll(t, env, "s1", "course-1")

	quiz, err := env.quiz.Present(ctxBG, "quiz-1", "s1")
	if err != nil {
		t.Fatalf("present: %v", err)
	}
	for _, q := range quiz.Questions {
		if q.CorrectAnswer != "" {
			t.Fatalf("short answer key leaked: %+v", q)
		}
		for _, o := range q.Options {
			if o.Correct {
				t.Fatalf("option key leaked: %+v", o)
			}
		}
	}
	if _, err := env.quiz.Present(ctxBG, "quiz-1", "stranger"); !errors.Is(err, domain.ErrNotEnrolled) {
		t.Fatalf("expected not enrolled, got %v", err)
	}
}
