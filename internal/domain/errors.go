package domain

import (
	"errors"
	"sort"
	"strings"
)

// Kind classifies failures so every layer can react without string matching.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindForbidden
	KindInvalidState
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindInvalidState:
		return "invalid_state"
	case KindValidation:
		return "validation"
	default:
		return "internal"
	}
}

// Error is the structured error returned by the core operations.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+": "+e.Fields[k])
		}
		msg += " (" + strings.Join(parts, "; ") + ")"
	}
	if e.Err != nil {
		if msg == "" {
			return e.Err.Error()
		}
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// NewValidationError reports field-level problems with an input payload.
func NewValidationError(fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: "invalid input", Fields: fields}
}

// InvalidState wraps a descriptive reason as an InvalidState error.
func InvalidState(reason string) *Error {
	return newError(KindInvalidState, reason)
}

var (
	// ErrEnrollmentNotFound is returned when an enrollment reference does not resolve.
	ErrEnrollmentNotFound = newError(KindNotFound, "enrollment not found")
	// ErrCourseNotFound indicates the course is missing from the catalog.
	ErrCourseNotFound = newError(KindNotFound, "course not found")
	// ErrLessonNotFound covers unknown lessons and lessons outside the enrollment's course.
	ErrLessonNotFound = newError(KindNotFound, "lesson not found")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = newError(KindNotFound, "quiz not found")
	// ErrSubmissionNotFound is returned when grading a submission that does not exist.
	ErrSubmissionNotFound = newError(KindNotFound, "submission not found")

	// ErrNotEnrollmentOwner is returned when a caller acts on someone else's enrollment.
	ErrNotEnrollmentOwner = newError(KindForbidden, "enrollment belongs to another student")
	// ErrNotEnrolled is returned when a student acts on a course they are not enrolled in.
	ErrNotEnrolled = newError(KindForbidden, "student is not enrolled in this course")
	// ErrNotInstructor is returned when someone other than the course instructor grades work.
	ErrNotInstructor = newError(KindForbidden, "only the course instructor can grade submissions")
	// ErrAdminOnly guards administrative operations.
	ErrAdminOnly = newError(KindForbidden, "admin role required")

	ErrCourseNotPublished  = newError(KindInvalidState, "course is not published")
	ErrAlreadyEnrolled     = newError(KindInvalidState, "student is already enrolled in this course")
	ErrPaymentRequired     = newError(KindInvalidState, "paid course requires a payment confirmation")
	ErrAttemptLimitReached = newError(KindInvalidState, "attempt limit reached for this quiz")
	ErrQuizHasAttempts     = newError(KindInvalidState, "quiz cannot be deleted once students have attempted it")
	ErrNotAssignmentLesson = newError(KindInvalidState, "lesson is not an assignment")
	ErrCourseNotCompleted  = newError(KindInvalidState, "course is not completed")
)
