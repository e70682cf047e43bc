package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// LessonType names the variant held in Lesson.Content.
type LessonType string

const (
	LessonVideo      LessonType = "video"
	LessonText       LessonType = "text"
	LessonQuiz       LessonType = "quiz"
	LessonAssignment LessonType = "assignment"
	LessonDownload   LessonType = "download"
	LessonLive       LessonType = "live"
)

// LessonContent is the per-type payload of a lesson. Each variant carries only its own fields.
type LessonContent interface {
	LessonType() LessonType
}

type VideoContent struct {
	URL             string `json:"url"`
	DurationSeconds int    `json:"durationSeconds"`
}

type TextContent struct {
	Body string `json:"body"`
}

type QuizContent struct {
	QuizID string `json:"quizId"`
}

type AssignmentContent struct {
	Instructions string `json:"instructions"`
}

type DownloadContent struct {
	URL      string `json:"url"`
	FileName string `json:"fileName"`
}

type LiveContent struct {
	JoinURL  string    `json:"joinUrl"`
	StartsAt time.Time `json:"startsAt"`
}

func (VideoContent) LessonType() LessonType      { return LessonVideo }
func (TextContent) LessonType() LessonType       { return LessonText }
func (QuizContent) LessonType() LessonType       { return LessonQuiz }
func (AssignmentContent) LessonType() LessonType { return LessonAssignment }
func (DownloadContent) LessonType() LessonType   { return LessonDownload }
func (LiveContent) LessonType() LessonType       { return LessonLive }

// Lesson is the catalog view of a lesson.
type Lesson struct {
	ID       string
	CourseID string
	Title    string
	Position int
	Content  LessonContent
}

// Type returns the lesson's type, derived from its content variant.
func (l Lesson) Type() LessonType {
	if l.Content == nil {
		return ""
	}
	return l.Content.LessonType()
}

type lessonJSON struct {
	ID       string          `json:"id"`
	CourseID string          `json:"courseId"`
	Title    string          `json:"title"`
	Position int             `json:"position"`
	Type     LessonType      `json:"type"`
	Content  json.RawMessage `json:"content,omitempty"`
}

func (l Lesson) MarshalJSON() ([]byte, error) {
	out := lessonJSON{ID: l.ID, CourseID: l.CourseID, Title: l.Title, Position: l.Position, Type: l.Type()}
	if l.Content != nil {
		raw, err := json.Marshal(l.Content)
		if err != nil {
			return nil, err
		}
		out.Content = raw
	}
	return json.Marshal(out)
}

func (l *Lesson) UnmarshalJSON(data []byte) error {
	var in lessonJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	content, err := DecodeLessonContent(in.Type, in.Content)
	if err != nil {
		return err
	}
	*l = Lesson{ID: in.ID, CourseID: in.CourseID, Title: in.Title, Position: in.Position, Content: content}
	return nil
}

// DecodeLessonContent builds the content variant for lessonType from its JSON payload.
func DecodeLessonContent(lessonType LessonType, raw []byte) (LessonContent, error) {
	var content LessonContent
	switch lessonType {
	case LessonVideo:
		content = &VideoContent{}
	case LessonText:
		content = &TextContent{}
	case LessonQuiz:
		content = &QuizContent{}
	case LessonAssignment:
		content = &AssignmentContent{}
	case LessonDownload:
		content = &DownloadContent{}
	case LessonLive:
		content = &LiveContent{}
	default:
		return nil, fmt.Errorf("unknown lesson type %q", lessonType)
	}
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, content); err != nil {
			return nil, fmt.Errorf("decode %s content: %w", lessonType, err)
		}
	}
	return deref(content), nil
}

func deref(c LessonContent) LessonContent {
	switch v := c.(type) {
	case *VideoContent:
		return *v
	case *TextContent:
		return *v
	case *QuizContent:
		return *v
	case *AssignmentContent:
		return *v
	case *DownloadContent:
		return *v
	case *LiveContent:
		return *v
	}
	return c
}
