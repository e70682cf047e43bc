package memory

import (
	"context"
	"sync"
	"time"

	"elearn-progress-service/internal/domain"
)

// EnrollmentStore keeps enrollments in memory. Every mutation runs under one lock, which gives
// the add-if-absent and compare-and-set semantics the ledger relies on.
type EnrollmentStore struct {
	mu          sync.RWMutex
	enrollments map[string]*domain.Enrollment
	byPair      map[pairKey]string
}

type pairKey struct {
	student string
	course  string
}

func NewEnrollmentStore() *EnrollmentStore {
	return &EnrollmentStore{
		enrollments: make(map[string]*domain.Enrollment),
		byPair:      make(map[pairKey]string),
	}
}

func (s *EnrollmentStore) Create(_ context.Context, enrollment domain.Enrollment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey{student: enrollment.StudentID, course: enrollment.CourseID}
	if _, ok := s.byPair[key]; ok {
		return domain.ErrAlreadyEnrolled
	}
	e := cloneEnrollment(enrollment)
	s.enrollments[e.ID] = &e
	s.byPair[key] = e.ID
	return nil
}

func (s *EnrollmentStore) Get(_ context.Context, enrollmentID string) (domain.Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.enrollments[enrollmentID]
	if !ok {
		return domain.Enrollment{}, domain.ErrEnrollmentNotFound
	}
	return cloneEnrollment(*e), nil
}

func (s *EnrollmentStore) FindByStudentCourse(_ context.Context, studentID, courseID string) (domain.Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byPair[pairKey{student: studentID, course: courseID}]
	if !ok {
		return domain.Enrollment{}, domain.ErrEnrollmentNotFound
	}
	return cloneEnrollment(*s.enrollments[id]), nil
}

func (s *EnrollmentStore) ListByCourse(_ context.Context, courseID string) ([]domain.Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Enrollment
	for _, e := range s.enrollments {
		if e.CourseID == courseID {
			out = append(out, cloneEnrollment(*e))
		}
	}
	return out, nil
}

func (s *EnrollmentStore) AddCompletedLesson(_ context.Context, enrollmentID string, lesson domain.CompletedLesson) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.enrollments[enrollmentID]
	if !ok {
		return false, domain.ErrEnrollmentNotFound
	}
	if e.HasCompleted(lesson.LessonID) {
		return false, nil
	}
	e.CompletedLessons = append(e.CompletedLessons, lesson)
	e.TotalTimeSpent += lesson.TimeSpent
	return true, nil
}

func (s *EnrollmentStore) UpdateProgress(_ context.Context, enrollmentID string, update domain.ProgressUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.enrollments[enrollmentID]
	if !ok {
		return false, domain.ErrEnrollmentNotFound
	}
	e.PercentageComplete = update.PercentageComplete
	if e.Status == update.Status {
		return false, nil
	}
	e.Status = update.Status
	e.CompletedAt = copyTime(update.CompletedAt)
	return true, nil
}

func (s *EnrollmentStore) AppendQuizAttempt(_ context.Context, enrollmentID, quizID string, attempt domain.Attempt) (domain.QuizAttempts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.enrollments[enrollmentID]
	if !ok {
		return domain.QuizAttempts{}, domain.ErrEnrollmentNotFound
	}
	idx := -1
	for i := range e.QuizAttempts {
		if e.QuizAttempts[i].QuizID == quizID {
			idx = i
			break
		}
	}
	if idx < 0 {
		e.QuizAttempts = append(e.QuizAttempts, domain.QuizAttempts{QuizID: quizID})
		idx = len(e.QuizAttempts) - 1
	}
	record := &e.QuizAttempts[idx]
	record.Attempts = append(record.Attempts, attempt)
	if attempt.Score > record.BestScore {
		record.BestScore = attempt.Score
	}
	if attempt.Percentage > record.BestPercentage {
		record.BestPercentage = attempt.Percentage
	}
	record.Passed = record.Passed || attempt.Passed
	return cloneQuizAttempts(*record), nil
}

func (s *EnrollmentStore) IssueCertificate(_ context.Context, enrollmentID string, cert domain.Certificate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.enrollments[enrollmentID]
	if !ok {
		return false, domain.ErrEnrollmentNotFound
	}
	if e.Certificate.Issued {
		return false, nil
	}
	e.Certificate = cert
	e.Certificate.IssuedAt = copyTime(cert.IssuedAt)
	return true, nil
}

func (s *EnrollmentStore) Delete(_ context.Context, enrollmentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.enrollments[enrollmentID]
	if !ok {
		return domain.ErrEnrollmentNotFound
	}
	delete(s.byPair, pairKey{student: e.StudentID, course: e.CourseID})
	delete(s.enrollments, enrollmentID)
	return nil
}

func (s *EnrollmentStore) HasQuizAttempts(_ context.Context, quizID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.enrollments {
		if qa, ok := e.AttemptsFor(quizID); ok && len(qa.Attempts) > 0 {
			return true, nil
		}
	}
	return false, nil
}

func (s *EnrollmentStore) Counters(_ context.Context, studentID string) (domain.Counters, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var c domain.Counters
	for _, e := range s.enrollments {
		if e.StudentID != studentID {
			continue
		}
		c.Enrollments++
		c.LessonsCompleted += len(e.CompletedLessons)
		if e.Status == domain.EnrollmentCompleted {
			c.CoursesCompleted++
		}
		if e.Certificate.Issued {
			c.Certificates++
		}
		for _, qa := range e.QuizAttempts {
			if qa.Passed {
				c.QuizzesPassed++
			}
		}
	}
	return c, nil
}

func cloneEnrollment(e domain.Enrollment) domain.Enrollment {
	out := e
	out.CompletedLessons = append([]domain.CompletedLesson(nil), e.CompletedLessons...)
	out.QuizAttempts = make([]domain.QuizAttempts, len(e.QuizAttempts))
	for i, qa := range e.QuizAttempts {
		out.QuizAttempts[i] = cloneQuizAttempts(qa)
	}
	out.CompletedAt = copyTime(e.CompletedAt)
	out.Certificate.IssuedAt = copyTime(e.Certificate.IssuedAt)
	return out
}

func cloneQuizAttempts(qa domain.QuizAttempts) domain.QuizAttempts {
	out := qa
	out.Attempts = make([]domain.Attempt, len(qa.Attempts))
	for i, a := range qa.Attempts {
		a.Answers = append([]domain.GradedAnswer(nil), a.Answers...)
		out.Attempts[i] = a
	}
	return out
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
