package memory

import (
	"context"
	"sync"
	"time"

	"elearn-progress-service/internal/domain"
)

// SubmissionStore keeps assignment submissions keyed by (lesson, student).
type SubmissionStore struct {
	mu          sync.RWMutex
	now         func() time.Time
	submissions map[submissionKey]domain.AssignmentSubmission
}

type submissionKey struct {
	lesson  string
	student string
}

func NewSubmissionStore() *SubmissionStore {
	return &SubmissionStore{
		now:         time.Now,
		submissions: make(map[submissionKey]domain.AssignmentSubmission),
	}
}

// Upsert overwrites any previous submission for the same key, keeping its id.
func (s *SubmissionStore) Upsert(_ context.Context, submission domain.AssignmentSubmission) (domain.AssignmentSubmission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := submissionKey{lesson: submission.LessonID, student: submission.StudentID}
	if prev, ok := s.submissions[key]; ok {
		submission.ID = prev.ID
	}
	s.submissions[key] = submission
	return cloneSubmission(submission), nil
}

func (s *SubmissionStore) Get(_ context.Context, lessonID, studentID string) (domain.AssignmentSubmission, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.submissions[submissionKey{lesson: lessonID, student: studentID}]
	if !ok {
		return domain.AssignmentSubmission{}, false, nil
	}
	return cloneSubmission(sub), true, nil
}

func (s *SubmissionStore) SetGrade(_ context.Context, lessonID, studentID string, grade int, feedback string) (domain.AssignmentSubmission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := submissionKey{lesson: lessonID, student: studentID}
	sub, ok := s.submissions[key]
	if !ok {
		return domain.AssignmentSubmission{}, domain.ErrSubmissionNotFound
	}
	now := s.now()
	g := grade
	sub.Grade = &g
	sub.Feedback = feedback
	sub.Status = domain.SubmissionGraded
	sub.GradedAt = &now
	s.submissions[key] = sub
	return cloneSubmission(sub), nil
}

func cloneSubmission(sub domain.AssignmentSubmission) domain.AssignmentSubmission {
	if sub.Grade != nil {
		g := *sub.Grade
		sub.Grade = &g
	}
	sub.GradedAt = copyTime(sub.GradedAt)
	return sub
}
