package memory

import (
	"context"
	"sort"
	"sync"

	"elearn-progress-service/internal/domain"
)

// Catalog is an in-memory course/lesson catalog.
type Catalog struct {
	mu      sync.RWMutex
	courses map[string]domain.Course
	lessons map[string]domain.Lesson
}

func NewCatalog() *Catalog {
	return &Catalog{
		courses: make(map[string]domain.Course),
		lessons: make(map[string]domain.Lesson),
	}
}

// AddCourse upserts a course.
func (c *Catalog) AddCourse(course domain.Course) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.courses[course.ID] = course
}

// AddLesson upserts a lesson. Progress of existing enrollments is not touched; callers reconcile.
func (c *Catalog) AddLesson(lesson domain.Lesson) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lessons[lesson.ID] = lesson
}

func (c *Catalog) RemoveLesson(lessonID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.lessons, lessonID)
}

func (c *Catalog) GetCourse(_ context.Context, courseID string) (domain.Course, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	course, ok := c.courses[courseID]
	if !ok {
		return domain.Course{}, domain.ErrCourseNotFound
	}
	return course, nil
}

func (c *Catalog) GetLesson(_ context.Context, lessonID string) (domain.Lesson, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	lesson, ok := c.lessons[lessonID]
	if !ok {
		return domain.Lesson{}, domain.ErrLessonNotFound
	}
	return lesson, nil
}

// LessonIDs returns the course's lessons ordered by position.
func (c *Catalog) LessonIDs(_ context.Context, courseID string) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var lessons []domain.Lesson
	for _, l := range c.lessons {
		if l.CourseID == courseID {
			lessons = append(lessons, l)
		}
	}
	sort.Slice(lessons, func(i, j int) bool {
		if lessons[i].Position != lessons[j].Position {
			return lessons[i].Position < lessons[j].Position
		}
		return lessons[i].ID < lessons[j].ID
	})
	ids := make([]string, 0, len(lessons))
	for _, l := range lessons {
		ids = append(ids, l.ID)
	}
	return ids, nil
}

func (c *Catalog) SetTotalLessons(_ context.Context, courseID string, total int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	course, ok := c.courses[courseID]
	if !ok {
		return domain.ErrCourseNotFound
	}
	course.TotalLessons = total
	c.courses[courseID] = course
	return nil
}

func (c *Catalog) IncrementEnrollmentCount(_ context.Context, courseID string, delta int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	course, ok := c.courses[courseID]
	if !ok {
		return domain.ErrCourseNotFound
	}
	course.EnrollmentCount += delta
	if course.EnrollmentCount < 0 {
		course.EnrollmentCount = 0
	}
	c.courses[courseID] = course
	return nil
}
