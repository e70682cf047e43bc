package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"elearn-progress-service/internal/domain"
	"github.com/uptrace/bun"
)

func (s *Store) Create(ctx context.Context, e domain.Enrollment) error {
	m := enrollmentModel{
		ID:                 e.ID,
		StudentID:          e.StudentID,
		CourseID:           e.CourseID,
		Status:             string(e.Status),
		EnrollmentType:     string(e.Type),
		PaymentRef:         e.PaymentRef,
		PercentageComplete: e.PercentageComplete,
		TotalTimeSpent:     e.TotalTimeSpent,
		EnrolledAt:         e.EnrolledAt,
		CompletedAt:        e.CompletedAt,
	}
	_, err := s.db.NewInsert().Model(&m).Exec(ctx)
	if isUniqueViolation(err) {
		return domain.ErrAlreadyEnrolled
	}
	if err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, enrollmentID string) (domain.Enrollment, error) {
	var m enrollmentModel
	err := s.db.NewSelect().Model(&m).Where("id = ?", enrollmentID).Scan(ctx)
	return s.hydrate(ctx, m, err)
}

func (s *Store) FindByStudentCourse(ctx context.Context, studentID, courseID string) (domain.Enrollment, error) {
	var m enrollmentModel
	err := s.db.NewSelect().Model(&m).
		Where("student_id = ?", studentID).
		Where("course_id = ?", courseID).
		Scan(ctx)
	return s.hydrate(ctx, m, err)
}

func (s *Store) ListByCourse(ctx context.Context, courseID string) ([]domain.Enrollment, error) {
	var models []enrollmentModel
	if err := s.db.NewSelect().Model(&models).Where("course_id = ?", courseID).Order("enrolled_at ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	out := make([]domain.Enrollment, 0, len(models))
	for _, m := range models {
		e, err := s.hydrate(ctx, m, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// AddCompletedLesson relies on the (enrollment_id, lesson_id) primary key for add-if-absent; time
// is accumulated in the same transaction only when the row was inserted.
func (s *Store) AddCompletedLesson(ctx context.Context, enrollmentID string, lesson domain.CompletedLesson) (bool, error) {
	added := false
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().Model((*enrollmentModel)(nil)).Where("id = ?", enrollmentID).Exists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrEnrollmentNotFound
		}

		res, err := tx.NewInsert().
			Model(&enrollmentLessonModel{
				EnrollmentID: enrollmentID,
				LessonID:     lesson.LessonID,
				CompletedAt:  lesson.CompletedAt,
				TimeSpent:    lesson.TimeSpent,
			}).
			On("CONFLICT (enrollment_id, lesson_id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return err
		}
		if rowsAffected(res) == 0 {
			return nil
		}
		added = true
		_, err = tx.NewUpdate().
			Model((*enrollmentModel)(nil)).
			Set("total_time_spent = total_time_spent + ?", lesson.TimeSpent).
			Where("id = ?", enrollmentID).
			Exec(ctx)
		return err
	})
	if err != nil {
		return false, err
	}
	return added, nil
}

// UpdateProgress writes the status with a compare-and-set so only one writer observes the transition.
func (s *Store) UpdateProgress(ctx context.Context, enrollmentID string, update domain.ProgressUpdate) (bool, error) {
	changed := false
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*enrollmentModel)(nil)).
			Set("percentage_complete = ?", update.PercentageComplete).
			Where("id = ?", enrollmentID).
			Exec(ctx)
		if err != nil {
			return err
		}
		if rowsAffected(res) == 0 {
			return domain.ErrEnrollmentNotFound
		}

		res, err = tx.NewUpdate().
			Model((*enrollmentModel)(nil)).
			Set("status = ?", string(update.Status)).
			Set("completed_at = ?", update.CompletedAt).
			Where("id = ?", enrollmentID).
			Where("status <> ?", string(update.Status)).
			Exec(ctx)
		if err != nil {
			return err
		}
		changed = rowsAffected(res) == 1
		return nil
	})
	if err != nil {
		return false, err
	}
	return changed, nil
}

func (s *Store) AppendQuizAttempt(ctx context.Context, enrollmentID, quizID string, attempt domain.Attempt) (domain.QuizAttempts, error) {
	var record domain.QuizAttempts
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().Model(&quizAttemptModel{
			EnrollmentID: enrollmentID,
			QuizID:       quizID,
			Score:        attempt.Score,
			TotalPoints:  attempt.TotalPoints,
			Percentage:   attempt.Percentage,
			Passed:       attempt.Passed,
			Answers:      attempt.Answers,
			TimeSpent:    attempt.TimeSpent,
			AttemptedAt:  attempt.AttemptedAt,
		}).Exec(ctx)
		if err != nil {
			return err
		}

		_, err = tx.NewInsert().
			Model(&enrollmentQuizModel{
				EnrollmentID:   enrollmentID,
				QuizID:         quizID,
				BestScore:      attempt.Score,
				BestPercentage: attempt.Percentage,
				Passed:         attempt.Passed,
			}).
			On("CONFLICT (enrollment_id, quiz_id) DO UPDATE").
			Set("best_score = GREATEST(enrollment_quizzes.best_score, EXCLUDED.best_score)").
			Set("best_percentage = GREATEST(enrollment_quizzes.best_percentage, EXCLUDED.best_percentage)").
			Set("passed = enrollment_quizzes.passed OR EXCLUDED.passed").
			Exec(ctx)
		if err != nil {
			return err
		}

		records, err := loadQuizAttempts(ctx, tx, enrollmentID, quizID)
		if err != nil {
			return err
		}
		if len(records) > 0 {
			record = records[0]
		}
		return nil
	})
	if err != nil {
		return domain.QuizAttempts{}, fmt.Errorf("append quiz attempt: %w", err)
	}
	return record, nil
}

func (s *Store) IssueCertificate(ctx context.Context, enrollmentID string, cert domain.Certificate) (bool, error) {
	res, err := s.db.NewUpdate().
		Model((*enrollmentModel)(nil)).
		Set("certificate_issued = TRUE").
		Set("certificate_id = ?", cert.CertificateID).
		Set("certificate_issued_at = ?", cert.IssuedAt).
		Where("id = ?", enrollmentID).
		Where("NOT certificate_issued").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("issue certificate: %w", err)
	}
	if rowsAffected(res) == 1 {
		return true, nil
	}
	exists, err := s.db.NewSelect().Model((*enrollmentModel)(nil)).Where("id = ?", enrollmentID).Exists(ctx)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, domain.ErrEnrollmentNotFound
	}
	return false, nil
}

func (s *Store) Delete(ctx context.Context, enrollmentID string) error {
	res, err := s.db.NewDelete().Model((*enrollmentModel)(nil)).Where("id = ?", enrollmentID).Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	if rowsAffected(res) == 0 {
		return domain.ErrEnrollmentNotFound
	}
	return nil
}

func (s *Store) HasQuizAttempts(ctx context.Context, quizID string) (bool, error) {
	return s.db.NewSelect().Model((*quizAttemptModel)(nil)).Where("quiz_id = ?", quizID).Exists(ctx)
}

func (s *Store) Counters(ctx context.Context, studentID string) (domain.Counters, error) {
	var c domain.Counters
	err := s.db.NewRaw(`
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE certificate_issued),
			(SELECT COUNT(*) FROM enrollment_lessons el JOIN enrollments e ON e.id = el.enrollment_id WHERE e.student_id = ?),
			(SELECT COUNT(*) FROM enrollment_quizzes eq JOIN enrollments e ON e.id = eq.enrollment_id WHERE e.student_id = ? AND eq.passed)
		FROM enrollments WHERE student_id = ?`,
		studentID, studentID, studentID,
	).Scan(ctx, &c.Enrollments, &c.CoursesCompleted, &c.Certificates, &c.LessonsCompleted, &c.QuizzesPassed)
	if err != nil {
		return domain.Counters{}, fmt.Errorf("load counters: %w", err)
	}
	return c, nil
}

func (s *Store) hydrate(ctx context.Context, m enrollmentModel, err error) (domain.Enrollment, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Enrollment{}, domain.ErrEnrollmentNotFound
	}
	if err != nil {
		return domain.Enrollment{}, fmt.Errorf("get enrollment: %w", err)
	}

	e := domain.Enrollment{
		ID:                 m.ID,
		StudentID:          m.StudentID,
		CourseID:           m.CourseID,
		Status:             domain.EnrollmentStatus(m.Status),
		Type:               domain.EnrollmentType(m.EnrollmentType),
		PaymentRef:         m.PaymentRef,
		PercentageComplete: m.PercentageComplete,
		TotalTimeSpent:     m.TotalTimeSpent,
		Certificate: domain.Certificate{
			Issued:        m.CertificateIssued,
			CertificateID: m.CertificateID,
			IssuedAt:      m.CertificateIssuedAt,
		},
		EnrolledAt:  m.EnrolledAt,
		CompletedAt: m.CompletedAt,
	}

	var lessons []enrollmentLessonModel
	if err := s.db.NewSelect().Model(&lessons).Where("enrollment_id = ?", m.ID).Order("completed_at ASC").Scan(ctx); err != nil {
		return domain.Enrollment{}, fmt.Errorf("load completed lessons: %w", err)
	}
	e.CompletedLessons = make([]domain.CompletedLesson, 0, len(lessons))
	for _, l := range lessons {
		e.CompletedLessons = append(e.CompletedLessons, domain.CompletedLesson{LessonID: l.LessonID, CompletedAt: l.CompletedAt, TimeSpent: l.TimeSpent})
	}

	e.QuizAttempts, err = loadQuizAttempts(ctx, s.db, m.ID, "")
	if err != nil {
		return domain.Enrollment{}, err
	}
	return e, nil
}

// loadQuizAttempts reads per-quiz records with their attempts; an empty quizID loads all quizzes.
func loadQuizAttempts(ctx context.Context, db bun.IDB, enrollmentID, quizID string) ([]domain.QuizAttempts, error) {
	var quizzes []enrollmentQuizModel
	q := db.NewSelect().Model(&quizzes).Where("enrollment_id = ?", enrollmentID).Order("quiz_id ASC")
	if quizID != "" {
		q = q.Where("quiz_id = ?", quizID)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("load quiz records: %w", err)
	}

	var attempts []quizAttemptModel
	aq := db.NewSelect().Model(&attempts).Where("enrollment_id = ?", enrollmentID).Order("id ASC")
	if quizID != "" {
		aq = aq.Where("quiz_id = ?", quizID)
	}
	if err := aq.Scan(ctx); err != nil {
		return nil, fmt.Errorf("load quiz attempts: %w", err)
	}

	byQuiz := make(map[string][]domain.Attempt, len(quizzes))
	for _, a := range attempts {
		byQuiz[a.QuizID] = append(byQuiz[a.QuizID], domain.Attempt{
			Score:       a.Score,
			TotalPoints: a.TotalPoints,
			Percentage:  a.Percentage,
			Passed:      a.Passed,
			Answers:     a.Answers,
			TimeSpent:   a.TimeSpent,
			AttemptedAt: a.AttemptedAt,
		})
	}

	out := make([]domain.QuizAttempts, 0, len(quizzes))
	for _, qm := range quizzes {
		out = append(out, domain.QuizAttempts{
			QuizID:         qm.QuizID,
			Attempts:       byQuiz[qm.QuizID],
			BestScore:      qm.BestScore,
			BestPercentage: qm.BestPercentage,
			Passed:         qm.Passed,
		})
	}
	return out, nil
}
