package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"elearn-progress-service/internal/app"
	"elearn-progress-service/internal/config"
	"elearn-progress-service/internal/infra/memory"
	pgstore "elearn-progress-service/internal/infra/postgres"
	rediscache "elearn-progress-service/internal/infra/redis"
	"elearn-progress-service/internal/logger"
	transport "elearn-progress-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the progress service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// backends is the set of repositories the services run on.
type backends struct {
	catalog     app.CatalogRepository
	quizStore   memory.QuizStore
	enrollments app.EnrollmentRepository
	submissions app.SubmissionRepository
	activities  app.ActivityRepository
	users       app.UserRepository

	quizzes app.QuizRepository
	gate    app.AttemptGate
	stats   app.QuizStatsRepository

	closers []func()
}

func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
	}

	b, err := openBackends(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.close()

	feed := app.NewActivityFeed(b.activities)
	checker := app.NewAchievementChecker(cfg.AchievementCatalog(app.DefaultAchievements()), b.enrollments, b.users)
	bus := app.NewEventBus(app.NewProgressNotifier(feed, checker, b.users), log.With("component", "event_bus"), cfg.Notifier.Buffer, cfg.Notifier.Workers)

	progress := app.NewEnrollmentService(b.enrollments, b.catalog, b.users, bus, log)
	handler := transport.NewHandler(transport.Services{
		Enrollments: progress,
		Quizzes:     app.NewQuizService(b.quizzes, b.enrollments, b.gate, b.stats, progress, bus, log),
		Assignments: app.NewAssignmentService(b.submissions, b.catalog, b.enrollments, progress, bus, log),
		Feed:        feed,
	}, log.With("component", "http"))

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      handler.Routes(cfg.Server.AllowedOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	// The bus outlives the HTTP server so events published by in-flight requests still drain.
	busCtx, stopBus := context.WithCancel(context.Background())
	defer stopBus()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return bus.Run(busCtx)
	})
	g.Go(func() error {
		log.Info("starting progress service", "port", finalPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		stopBus()
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}
	if n := bus.Dropped(); n > 0 {
		log.Warn("progress events dropped during run", "count", n)
	}
	return nil
}

func openBackends(ctx context.Context, cfg config.Config, log *logger.Logger) (*backends, error) {
	b := &backends{}

	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		b.closers = append(b.closers, pool.Close)

		db := pgstore.OpenDB(cfg.Postgres.URL)
		b.closers = append(b.closers, func() { _ = db.Close() })
		store := pgstore.NewStore(db)
		if err := store.Ping(ctx); err != nil {
			b.close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}

		b.catalog = store
		b.quizStore = pgstore.NewQuizStore(pool)
		b.enrollments = store
		b.submissions = store.Submissions()
		b.activities = store.Activities()
		b.users = store
	} else {
		log.Warn("postgres not configured, using in-memory stores with a sample course")
		catalog := memory.NewCatalog()
		seedSampleCourse(catalog)
		b.catalog = catalog
		b.quizStore = memory.NewStaticQuizStore(sampleQuizzes())
		b.enrollments = memory.NewEnrollmentStore()
		b.submissions = memory.NewSubmissionStore()
		b.activities = memory.NewActivityStore()
		b.users = memory.NewUserStore()
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		b.closers = append(b.closers, func() { _ = client.Close() })
		if err := client.Ping(ctx).Err(); err != nil {
			b.close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)
		b.quizzes = rediscache.NewQuizRepository(client, b.quizStore, quizTTL)
		b.gate = rediscache.NewAttemptGate(client, redisTTL)
		b.stats = rediscache.NewQuizStats(client)
	} else {
		b.quizzes = memory.NewQuizRepository(b.quizStore, quizTTL)
		b.gate = memory.NewAttemptGate()
		b.stats = memory.NewQuizStats()
	}
	return b, nil
}
