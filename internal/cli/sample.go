package cli

import (
	"elearn-progress-service/internal/domain"
	"elearn-progress-service/internal/infra/memory"
)

// seedSampleCourse gives the in-memory mode something to enroll in.
func seedSampleCourse(catalog *memory.Catalog) {
	catalog.AddCourse(domain.Course{ID: "course-1", Title: "Go Basics", InstructorID: "instructor-1", Published: true})
	catalog.AddLesson(domain.Lesson{ID: "lesson-1", CourseID: "course-1", Title: "Welcome", Position: 1, Content: domain.TextContent{Body: "Welcome to Go Basics."}})
	catalog.AddLesson(domain.Lesson{ID: "lesson-2", CourseID: "course-1", Title: "Tour", Position: 2, Content: domain.VideoContent{URL: "https://cdn.example.com/go-tour.mp4", DurationSeconds: 600}})
	catalog.AddLesson(domain.Lesson{ID: "lesson-3", CourseID: "course-1", Title: "Checkpoint", Position: 3, Content: domain.QuizContent{QuizID: "quiz-1"}})
	catalog.AddLesson(domain.Lesson{ID: "lesson-4", CourseID: "course-1", Title: "Build a CLI", Position: 4, Content: domain.AssignmentContent{Instructions: "Write a small CLI with cobra."}})
}

func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:       "quiz-1",
			CourseID: "course-1",
			LessonID: "lesson-3",
			Title:    "Checkpoint",
			Questions: []domain.Question{
				{
					ID:     "q1",
					Type:   domain.QuestionMultipleChoice,
					Prompt: "What is 2 + 2?",
					Options: []domain.Option{
						{ID: "o1", Text: "3", Correct: false},
						{ID: "o2", Text: "4", Correct: true},
						{ID: "o3", Text: "5", Correct: false},
					},
					Points: 1,
				},
				{
					ID:     "q2",
					Type:   domain.QuestionTrueFalse,
					Prompt: "Go has generics.",
					Options: []domain.Option{
						{ID: "true", Text: "True", Correct: true},
						{ID: "false", Text: "False"},
					},
					Points: 1,
				},
				{
					ID:            "q3",
					Type:          domain.QuestionShortAnswer,
					Prompt:        "Which keyword starts a goroutine?",
					CorrectAnswer: "go",
					Points:        1,
				},
			},
			Settings: domain.QuizSettings{Attempts: 3, PassingScore: 70, ShowResults: domain.ShowImmediately, ShowCorrectAnswers: true},
		},
	}
}
