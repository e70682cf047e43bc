package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"elearn-progress-service/internal/domain"
)

func (s *Store) GetCourse(ctx context.Context, courseID string) (domain.Course, error) {
	var m courseModel
	err := s.db.NewSelect().Model(&m).Where("id = ?", courseID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Course{}, domain.ErrCourseNotFound
	}
	if err != nil {
		return domain.Course{}, fmt.Errorf("get course: %w", err)
	}
	return domain.Course{
		ID:              m.ID,
		Title:           m.Title,
		InstructorID:    m.InstructorID,
		Published:       m.Published,
		PriceCents:      m.PriceCents,
		TotalLessons:    m.TotalLessons,
		EnrollmentCount: m.EnrollmentCount,
	}, nil
}

func (s *Store) GetLesson(ctx context.Context, lessonID string) (domain.Lesson, error) {
	var m lessonModel
	err := s.db.NewSelect().Model(&m).Where("id = ?", lessonID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Lesson{}, domain.ErrLessonNotFound
	}
	if err != nil {
		return domain.Lesson{}, fmt.Errorf("get lesson: %w", err)
	}
	content, err := domain.DecodeLessonContent(domain.LessonType(m.Type), m.Content)
	if err != nil {
		return domain.Lesson{}, err
	}
	return domain.Lesson{ID: m.ID, CourseID: m.CourseID, Title: m.Title, Position: m.Position, Content: content}, nil
}

func (s *Store) LessonIDs(ctx context.Context, courseID string) ([]string, error) {
	var ids []string
	err := s.db.NewSelect().
		Model((*lessonModel)(nil)).
		Column("id").
		Where("course_id = ?", courseID).
		Order("position ASC", "id ASC").
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}
	return ids, nil
}

func (s *Store) SetTotalLessons(ctx context.Context, courseID string, total int) error {
	res, err := s.db.NewUpdate().
		Model((*courseModel)(nil)).
		Set("total_lessons = ?", total).
		Where("id = ?", courseID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("set total lessons: %w", err)
	}
	if rowsAffected(res) == 0 {
		return domain.ErrCourseNotFound
	}
	return nil
}

func (s *Store) IncrementEnrollmentCount(ctx context.Context, courseID string, delta int) error {
	res, err := s.db.NewUpdate().
		Model((*courseModel)(nil)).
		Set("enrollment_count = GREATEST(enrollment_count + ?, 0)", delta).
		Where("id = ?", courseID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("increment enrollment count: %w", err)
	}
	if rowsAffected(res) == 0 {
		return domain.ErrCourseNotFound
	}
	return nil
}

// SaveCourse upserts a course row; the course-authoring side owns these records.
func (s *Store) SaveCourse(ctx context.Context, course domain.Course) error {
	m := courseModel{
		ID:              course.ID,
		Title:           course.Title,
		InstructorID:    course.InstructorID,
		Published:       course.Published,
		PriceCents:      course.PriceCents,
		TotalLessons:    course.TotalLessons,
		EnrollmentCount: course.EnrollmentCount,
	}
	_, err := s.db.NewInsert().
		Model(&m).
		On("CONFLICT (id) DO UPDATE").
		Set("title = EXCLUDED.title").
		Set("instructor_id = EXCLUDED.instructor_id").
		Set("published = EXCLUDED.published").
		Set("price_cents = EXCLUDED.price_cents").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("save course: %w", err)
	}
	return nil
}

func (s *Store) SaveLesson(ctx context.Context, lesson domain.Lesson) error {
	m := lessonModel{
		ID:       lesson.ID,
		CourseID: lesson.CourseID,
		Title:    lesson.Title,
		Position: lesson.Position,
		Type:     string(lesson.Type()),
	}
	if lesson.Content != nil {
		raw, err := json.Marshal(lesson.Content)
		if err != nil {
			return fmt.Errorf("marshal lesson content: %w", err)
		}
		m.Content = raw
	}
	_, err := s.db.NewInsert().
		Model(&m).
		On("CONFLICT (id) DO UPDATE").
		Set("course_id = EXCLUDED.course_id").
		Set("title = EXCLUDED.title").
		Set("position = EXCLUDED.position").
		Set("type = EXCLUDED.type").
		Set("content = EXCLUDED.content").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("save lesson: %w", err)
	}
	return nil
}

func (s *Store) DeleteLesson(ctx context.Context, lessonID string) error {
	_, err := s.db.NewDelete().Model((*lessonModel)(nil)).Where("id = ?", lessonID).Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete lesson: %w", err)
	}
	return nil
}
