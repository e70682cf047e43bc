package http

import (
	"net/http"
	"strconv"
	"time"

	"elearn-progress-service/internal/app"
	"elearn-progress-service/internal/domain"
	"elearn-progress-service/internal/logger"
	"github.com/go-playground/validator/v10"
	"github.com/rs/cors"
)

const (
	headerUserID = "X-User-ID"
	headerRole   = "X-User-Role"
	roleAdmin    = "admin"
)

var errForeignTimeline = &domain.Error{Kind: domain.KindForbidden, Message: "activity timeline belongs to another user"}

// Services groups the use cases exposed over HTTP.
type Services struct {
	Enrollments *app.EnrollmentService
	Quizzes     *app.QuizService
	Assignments *app.AssignmentService
	Feed        *app.ActivityFeed
}

// Handler serves the REST surface of the progress pipeline.
type Handler struct {
	svc      Services
	log      *logger.Logger
	validate *validator.Validate
}

func NewHandler(svc Services, log *logger.Logger) *Handler {
	return &Handler{svc: svc, log: log, validate: newValidator()}
}

// Routes registers every endpoint, including the activity websocket, behind CORS and access logging.
func (h *Handler) Routes(allowedOrigins []string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("POST /api/courses/{courseId}/enroll", h.enroll)
	mux.HandleFunc("POST /api/courses/{courseId}/reviews", h.postReview)
	mux.HandleFunc("POST /api/courses/{courseId}/reconcile", h.reconcileCourse)

	mux.HandleFunc("GET /api/enrollments/{id}/progress", h.getProgress)
	mux.HandleFunc("DELETE /api/enrollments/{id}", h.deleteEnrollment)
	mux.HandleFunc("POST /api/enrollments/{id}/lessons/{lessonId}/complete", h.completeLesson)
	mux.HandleFunc("POST /api/enrollments/{id}/certificate", h.issueCertificate)

	mux.HandleFunc("PUT /api/quizzes", h.saveQuiz)
	mux.HandleFunc("GET /api/quizzes/{id}", h.getQuiz)
	mux.HandleFunc("DELETE /api/quizzes/{id}", h.deleteQuiz)
	mux.HandleFunc("POST /api/quizzes/{id}/attempts", h.submitAttempt)
	mux.HandleFunc("GET /api/quizzes/{id}/attempts", h.attemptHistory)
	mux.HandleFunc("GET /api/quizzes/{id}/analytics", h.quizAnalytics)

	mux.HandleFunc("POST /api/lessons/{lessonId}/submission", h.submitAssignment)
	mux.HandleFunc("GET /api/lessons/{lessonId}/submission", h.getSubmission)
	mux.HandleFunc("POST /api/lessons/{lessonId}/submissions/{studentId}/grade", h.gradeSubmission)

	mux.HandleFunc("GET /api/users/{userId}/activities", h.listActivities)
	mux.Handle("GET /ws/activity", NewWSHandler(h.svc.Feed, allowedOrigins, h.log))

	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type", headerUserID, headerRole},
	})
	return c.Handler(h.accessLog(mux))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ws/activity" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		h.log.Debug("http request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
	})
}

// caller returns the X-User-ID identity, writing 401 when it is missing.
func caller(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.Header.Get(headerUserID)
	if id == "" {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: errorDetail{Kind: "unauthenticated", Message: "missing " + headerUserID + " header"}})
		return "", false
	}
	return id, true
}

func isAdmin(r *http.Request) bool {
	return r.Header.Get(headerRole) == roleAdmin
}

func (h *Handler) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	if _, ok := caller(w, r); !ok {
		return false
	}
	if !isAdmin(r) {
		writeError(w, h.log, r, domain.ErrAdminOnly)
		return false
	}
	return true
}

type enrollRequest struct {
	PaymentRef string `json:"paymentRef"`
}

func (h *Handler) enroll(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	var req enrollRequest
	if err := decode(r, h.validate, &req); err != nil {
		writeError(w, h.log, r, err)
		return
	}
	enrollment, err := h.svc.Enrollments.Enroll(r.Context(), userID, r.PathValue("courseId"), req.PaymentRef)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, enrollment)
}

func (h *Handler) postReview(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	count, err := h.svc.Enrollments.RecordReview(r.Context(), userID, r.PathValue("courseId"))
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"reviewCount": count})
}

func (h *Handler) reconcileCourse(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	n, err := h.svc.Enrollments.ReconcileCourse(r.Context(), r.PathValue("courseId"))
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"reconciled": n})
}

func (h *Handler) getProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	progress, err := h.svc.Enrollments.GetProgress(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (h *Handler) deleteEnrollment(w http.ResponseWriter, r *http.Request) {
	if _, ok := caller(w, r); !ok {
		return
	}
	if err := h.svc.Enrollments.DeleteEnrollment(r.Context(), isAdmin(r), r.PathValue("id")); err != nil {
		writeError(w, h.log, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type completeLessonRequest struct {
	TimeSpent int `json:"timeSpent" validate:"gte=0"`
}

func (h *Handler) completeLesson(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	var req completeLessonRequest
	if err := decode(r, h.validate, &req); err != nil {
		writeError(w, h.log, r, err)
		return
	}
	progress, err := h.svc.Enrollments.CompleteLesson(r.Context(), userID, r.PathValue("id"), r.PathValue("lessonId"), req.TimeSpent)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (h *Handler) issueCertificate(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	enrollment, err := h.svc.Enrollments.IssueCertificate(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, enrollment)
}

func (h *Handler) saveQuiz(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	var quiz domain.Quiz
	if err := decode(r, h.validate, &quiz); err != nil {
		writeError(w, h.log, r, err)
		return
	}
	saved, err := h.svc.Quizzes.SaveQuiz(r.Context(), quiz)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (h *Handler) getQuiz(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	quiz, err := h.svc.Quizzes.Present(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (h *Handler) deleteQuiz(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	if err := h.svc.Quizzes.DeleteQuiz(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, h.log, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type attemptRequest struct {
	Answers   map[string]string `json:"answers" validate:"required"`
	TimeSpent int               `json:"timeSpent" validate:"gte=0"`
}

func (h *Handler) submitAttempt(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	var req attemptRequest
	if err := decode(r, h.validate, &req); err != nil {
		writeError(w, h.log, r, err)
		return
	}
	result, err := h.svc.Quizzes.SubmitAttempt(r.Context(), app.AttemptRequest{
		QuizID:    r.PathValue("id"),
		StudentID: userID,
		Answers:   req.Answers,
		TimeSpent: req.TimeSpent,
	})
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) attemptHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	history, err := h.svc.Quizzes.AttemptHistory(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (h *Handler) quizAnalytics(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	stats, err := h.svc.Quizzes.Analytics(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type submissionRequest struct {
	CourseID string `json:"courseId" validate:"required"`
	Content  string `json:"content" validate:"required"`
}

func (h *Handler) submitAssignment(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	var req submissionRequest
	if err := decode(r, h.validate, &req); err != nil {
		writeError(w, h.log, r, err)
		return
	}
	submission, err := h.svc.Assignments.Submit(r.Context(), r.PathValue("lessonId"), req.CourseID, userID, req.Content)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, submission)
}

func (h *Handler) getSubmission(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	submission, err := h.svc.Assignments.GetSubmission(r.Context(), r.PathValue("lessonId"), userID)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]*domain.AssignmentSubmission{"submission": submission})
}

type gradeRequest struct {
	Grade    *int   `json:"grade" validate:"required,oneof=0 1"`
	Feedback string `json:"feedback"`
}

func (h *Handler) gradeSubmission(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	var req gradeRequest
	if err := decode(r, h.validate, &req); err != nil {
		writeError(w, h.log, r, err)
		return
	}
	graded, err := h.svc.Assignments.Grade(r.Context(), r.PathValue("lessonId"), r.PathValue("studentId"), userID, *req.Grade, req.Feedback)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, graded)
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	callerID, ok := caller(w, r)
	if !ok {
		return
	}
	userID := r.PathValue("userId")
	if callerID != userID && !isAdmin(r) {
		writeError(w, h.log, r, errForeignTimeline)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	activities, err := h.svc.Feed.List(r.Context(), userID, limit)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	if activities == nil {
		activities = []domain.Activity{}
	}
	writeJSON(w, http.StatusOK, activities)
}
