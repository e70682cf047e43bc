package app

import (
	"math"
	"strings"

	"elearn-progress-service/internal/domain"
)

// GradeAttempt scores submitted answers (question id -> raw answer) against a quiz.
// Unanswered questions score zero. Essay questions are never auto-graded, do not count toward
// totalPoints, and force passed=false until a human grades them.
func GradeAttempt(quiz domain.Quiz, answers map[string]string) domain.GradeResult {
	result := domain.GradeResult{
		Answers: make([]domain.GradedAnswer, 0, len(quiz.Questions)),
	}

	for _, question := range quiz.Questions {
		answer, answered := answers[question.ID]
		graded := domain.GradedAnswer{QuestionID: question.ID, Answer: answer}

		points := question.Points
		if points == 0 {
			points = 1
		}

		switch question.Type {
		case domain.QuestionMultipleChoice, domain.QuestionTrueFalse:
			correctID := question.CorrectOptionID()
			graded.CorrectAnswer = correctID
			graded.Correct = answered && correctID != "" && answer == correctID
			result.TotalPoints += points
		case domain.QuestionShortAnswer:
			graded.CorrectAnswer = question.CorrectAnswer
			graded.Correct = answered && normalizeShortAnswer(answer) == normalizeShortAnswer(question.CorrectAnswer)
			result.TotalPoints += points
		case domain.QuestionEssay:
			result.HasEssay = true
			graded.PendingReview = true
		}

		if graded.Correct {
			graded.PointsAwarded = points
			result.Score += points
		}
		result.Answers = append(result.Answers, graded)
	}

	if result.TotalPoints > 0 {
		result.Percentage = int(math.Round(100 * float64(result.Score) / float64(result.TotalPoints)))
	}
	result.Passed = !result.HasEssay && result.Percentage >= quiz.Settings.PassingScore
	return result
}

func normalizeShortAnswer(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// visibleAnswers applies the quiz's result policy to graded answers before they leave the service.
func visibleAnswers(settings domain.QuizSettings, answers []domain.GradedAnswer) []domain.GradedAnswer {
	if settings.ShowResults == domain.ShowNever {
		return nil
	}
	reveal := settings.ShowResults == domain.ShowImmediately && settings.ShowCorrectAnswers
	out := make([]domain.GradedAnswer, len(answers))
	copy(out, answers)
	if !reveal {
		for i := range out {
			out[i].CorrectAnswer = ""
		}
	}
	return out
}
