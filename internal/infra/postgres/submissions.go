package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"elearn-progress-service/internal/domain"
)

// SubmissionStore adapts Store to assignment submissions; Get is keyed by (lesson, student)
// rather than by enrollment id.
type SubmissionStore struct {
	s *Store
}

func (s *Store) Submissions() *SubmissionStore {
	return &SubmissionStore{s: s}
}

func (st *SubmissionStore) Upsert(ctx context.Context, sub domain.AssignmentSubmission) (domain.AssignmentSubmission, error) {
	m := toSubmissionModel(sub)
	_, err := st.s.db.NewInsert().
		Model(&m).
		On("CONFLICT (lesson_id, student_id) DO UPDATE").
		Set("content = EXCLUDED.content").
		Set("status = EXCLUDED.status").
		Set("grade = EXCLUDED.grade").
		Set("feedback = EXCLUDED.feedback").
		Set("submitted_at = EXCLUDED.submitted_at").
		Set("graded_at = EXCLUDED.graded_at").
		Returning("*").
		Exec(ctx)
	if err != nil {
		return domain.AssignmentSubmission{}, fmt.Errorf("upsert submission: %w", err)
	}
	return fromSubmissionModel(m), nil
}

func (st *SubmissionStore) Get(ctx context.Context, lessonID, studentID string) (domain.AssignmentSubmission, bool, error) {
	var m submissionModel
	err := st.s.db.NewSelect().Model(&m).
		Where("lesson_id = ?", lessonID).
		Where("student_id = ?", studentID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.AssignmentSubmission{}, false, nil
	}
	if err != nil {
		return domain.AssignmentSubmission{}, false, fmt.Errorf("get submission: %w", err)
	}
	return fromSubmissionModel(m), true, nil
}

func (st *SubmissionStore) SetGrade(ctx context.Context, lessonID, studentID string, grade int, feedback string) (domain.AssignmentSubmission, error) {
	var m submissionModel
	res, err := st.s.db.NewUpdate().
		Model(&m).
		Set("grade = ?", grade).
		Set("feedback = ?", feedback).
		Set("status = ?", string(domain.SubmissionGraded)).
		Set("graded_at = ?", time.Now().UTC()).
		Where("lesson_id = ?", lessonID).
		Where("student_id = ?", studentID).
		Returning("*").
		Exec(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.AssignmentSubmission{}, domain.ErrSubmissionNotFound
	}
	if err != nil {
		return domain.AssignmentSubmission{}, fmt.Errorf("grade submission: %w", err)
	}
	if rowsAffected(res) == 0 {
		return domain.AssignmentSubmission{}, domain.ErrSubmissionNotFound
	}
	return fromSubmissionModel(m), nil
}

func toSubmissionModel(sub domain.AssignmentSubmission) submissionModel {
	return submissionModel{
		ID:          sub.ID,
		LessonID:    sub.LessonID,
		CourseID:    sub.CourseID,
		StudentID:   sub.StudentID,
		Content:     sub.Content,
		Status:      string(sub.Status),
		Grade:       sub.Grade,
		Feedback:    sub.Feedback,
		SubmittedAt: sub.SubmittedAt,
		GradedAt:    sub.GradedAt,
	}
}

func fromSubmissionModel(m submissionModel) domain.AssignmentSubmission {
	return domain.AssignmentSubmission{
		ID:          m.ID,
		LessonID:    m.LessonID,
		CourseID:    m.CourseID,
		StudentID:   m.StudentID,
		Content:     m.Content,
		Status:      domain.SubmissionStatus(m.Status),
		Grade:       m.Grade,
		Feedback:    m.Feedback,
		SubmittedAt: m.SubmittedAt,
		GradedAt:    m.GradedAt,
	}
}
