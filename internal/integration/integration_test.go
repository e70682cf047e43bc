package integration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"elearn-progress-service/internal/app"
	"elearn-progress-service/internal/domain"
	pgstore "elearn-progress-service/internal/infra/postgres"
	pgmigrations "elearn-progress-service/internal/infra/postgres/migrations"
	infraredis "elearn-progress-service/internal/infra/redis"
	"elearn-progress-service/internal/logger"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun/migrate"
)

func TestCourseProgressEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	db := pgstore.OpenDB(pgURL)
	defer db.Close()
	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	store := pgstore.NewStore(db)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()
	quizStore := pgstore.NewQuizStore(pool)

	seedCourse(t, ctx, store, quizStore)

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	log := logger.Nop()
	feed := app.NewActivityFeed(store.Activities())
	checker := app.NewAchievementChecker(app.DefaultAchievements(), store, store)
	bus := app.NewEventBus(app.NewProgressNotifier(feed, checker, store), log, 64, 2)
	defer bus.Close()

	stats := infraredis.NewQuizStats(redisClient)
	progress := app.NewEnrollmentService(store, store, store, bus, log)
	quizzes := app.NewQuizService(
		infraredis.NewQuizRepository(redisClient, quizStore, 5*time.Minute),
		store,
		infraredis.NewAttemptGate(redisClient, 5*time.Minute),
		stats,
		progress,
		bus,
		log,
	)
	assignments := app.NewAssignmentService(store.Submissions(), store, store, progress, bus, log)

	enrollment, err := progress.Enroll(ctx, "student-1", "course-1", "")
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}
	if _, err := progress.Enroll(ctx, "student-1", "course-1", ""); !errors.Is(err, domain.ErrAlreadyEnrolled) {
		t.Fatalf("expected duplicate enrollment to fail, got %v", err)
	}

	got, err := progress.CompleteLesson(ctx, "student-1", enrollment.ID, "lesson-text", 60)
	if err != nil {
		t.Fatalf("complete lesson: %v", err)
	}
	if got.TotalLessons != 3 || got.Enrollment.PercentageComplete != 33 {
		t.Fatalf("expected 33%% of 3 lessons, got %d%% of %d", got.Enrollment.PercentageComplete, got.TotalLessons)
	}

	failed, err := quizzes.SubmitAttempt(ctx, app.AttemptRequest{QuizID: "quiz-1", StudentID: "student-1", Answers: map[string]string{"q1": "o1"}})
	if err != nil {
		t.Fatalf("first attempt: %v", err)
	}
	if failed.Passed || failed.AttemptNumber != 1 {
		t.Fatalf("expected failed first attempt, got %+v", failed)
	}
	passed, err := quizzes.SubmitAttempt(ctx, app.AttemptRequest{QuizID: "quiz-1", StudentID: "student-1", Answers: map[string]string{"q1": "o2"}, TimeSpent: 45})
	if err != nil {
		t.Fatalf("second attempt: %v", err)
	}
	if !passed.Passed || !passed.QuizPassed || passed.BestScore != 1 || passed.BestPercentage != 100 {
		t.Fatalf("expected passing second attempt, got %+v", passed)
	}
	if _, err := quizzes.SubmitAttempt(ctx, app.AttemptRequest{QuizID: "quiz-1", StudentID: "student-1", Answers: map[string]string{"q1": "o2"}}); !errors.Is(err, domain.ErrAttemptLimitReached) {
		t.Fatalf("expected attempt limit, got %v", err)
	}

	analytics, err := quizzes.Analytics(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("analytics: %v", err)
	}
	if analytics.Attempts != 2 || analytics.Passed != 1 {
		t.Fatalf("expected 2 attempts and 1 pass, got %+v", analytics)
	}

	if _, err := assignments.Submit(ctx, "lesson-assignment", "course-1", "student-1", "my project"); err != nil {
		t.Fatalf("submit assignment: %v", err)
	}
	final, err := progress.GetProgress(ctx, "student-1", enrollment.ID)
	if err != nil {
		t.Fatalf("get progress: %v", err)
	}
	if final.Enrollment.Status != domain.EnrollmentCompleted || final.Enrollment.PercentageComplete != 100 {
		t.Fatalf("expected completed enrollment, got status=%s pct=%d", final.Enrollment.Status, final.Enrollment.PercentageComplete)
	}
	if final.Enrollment.TotalTimeSpent != 105 {
		t.Fatalf("expected 105s total time, got %d", final.Enrollment.TotalTimeSpent)
	}

	graded, err := assignments.Grade(ctx, "lesson-assignment", "student-1", "inst-1", domain.GradeFail, "add tests")
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	if !graded.Reopened() {
		t.Fatalf("expected failing grade to reopen submission, got %+v", graded)
	}

	certified, err := progress.IssueCertificate(ctx, "student-1", enrollment.ID)
	if err != nil {
		t.Fatalf("issue certificate: %v", err)
	}
	if !certified.Certificate.Issued || certified.Certificate.CertificateID == "" {
		t.Fatalf("expected certificate, got %+v", certified.Certificate)
	}

	bonus := domain.Lesson{ID: "lesson-bonus", CourseID: "course-1", Title: "Bonus", Position: 4, Content: domain.TextContent{Body: "Extra"}}
	if err := store.SaveLesson(ctx, bonus); err != nil {
		t.Fatalf("save bonus lesson: %v", err)
	}
	if n, err := progress.ReconcileCourse(ctx, "course-1"); err != nil || n != 1 {
		t.Fatalf("reconcile after add: n=%d err=%v", n, err)
	}
	reopened, err := progress.GetProgress(ctx, "student-1", enrollment.ID)
	if err != nil {
		t.Fatalf("get progress after add: %v", err)
	}
	if reopened.Enrollment.Status != domain.EnrollmentActive || reopened.Enrollment.PercentageComplete != 75 {
		t.Fatalf("expected active at 75%%, got status=%s pct=%d", reopened.Enrollment.Status, reopened.Enrollment.PercentageComplete)
	}
	if err := store.DeleteLesson(ctx, bonus.ID); err != nil {
		t.Fatalf("delete bonus lesson: %v", err)
	}
	if _, err := progress.ReconcileCourse(ctx, "course-1"); err != nil {
		t.Fatalf("reconcile after delete: %v", err)
	}
	restored, err := progress.GetProgress(ctx, "student-1", enrollment.ID)
	if err != nil {
		t.Fatalf("get progress after delete: %v", err)
	}
	if restored.Enrollment.Status != domain.EnrollmentCompleted {
		t.Fatalf("expected completed again, got %s", restored.Enrollment.Status)
	}

	waitFor(t, func() bool {
		earned, err := store.EarnedAchievements(ctx, "student-1")
		if err != nil {
			return false
		}
		return containsAll(earned, "first-enrollment", "first-lesson", "first-course", "perfect-score", "first-quiz-pass", "first-certificate")
	})
	waitFor(t, func() bool {
		activities, err := feed.List(ctx, "student-1", 100)
		return err == nil && len(activities) > 0 && activities[0].UserID == "student-1"
	})
}

func seedCourse(t *testing.T, ctx context.Context, store *pgstore.Store, quizStore *pgstore.QuizStore) {
	t.Helper()
	if err := store.SaveCourse(ctx, domain.Course{ID: "course-1", Title: "Geography", InstructorID: "inst-1", Published: true}); err != nil {
		t.Fatalf("save course: %v", err)
	}
	lessons := []domain.Lesson{
		{ID: "lesson-text", CourseID: "course-1", Title: "Intro", Position: 1, Content: domain.TextContent{Body: "Maps"}},
		{ID: "lesson-quiz", CourseID: "course-1", Title: "Checkpoint", Position: 2, Content: domain.QuizContent{QuizID: "quiz-1"}},
		{ID: "lesson-assignment", CourseID: "course-1", Title: "Project", Position: 3, Content: domain.AssignmentContent{Instructions: "Draw a map"}},
	}
	for _, l := range lessons {
		if err := store.SaveLesson(ctx, l); err != nil {
			t.Fatalf("save lesson %s: %v", l.ID, err)
		}
	}
	err := quizStore.SaveQuiz(ctx, domain.Quiz{
		ID:       "quiz-1",
		CourseID: "course-1",
		LessonID: "lesson-quiz",
		Title:    "Capitals",
		Questions: []domain.Question{{
			ID:     "q1",
			Type:   domain.QuestionMultipleChoice,
			Prompt: "Capital of Italy?",
			Options: []domain.Option{
				{ID: "o1", Text: "Milan"},
				{ID: "o2", Text: "Rome", Correct: true},
			},
			Points: 1,
		}},
		Settings: domain.QuizSettings{Attempts: 2, PassingScore: 50, ShowResults: domain.ShowImmediately},
	})
	if err != nil {
		t.Fatalf("save quiz: %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func containsAll(have []string, want ...string) bool {
	set := make(map[string]bool, len(have))
	for _, h := range have {
		set[h] = true
	}
	for _, w := range want {
		if !set[w] {
			return false
		}
	}
	return true
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "elearn", "POSTGRES_PASSWORD": "elearnpass", "POSTGRES_DB": "elearn"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://elearn:elearnpass@%s:%s/elearn?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
