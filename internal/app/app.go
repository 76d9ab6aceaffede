package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"labelflow/features/job"
	"labelflow/features/session"
	"labelflow/features/stats"
	"labelflow/features/task"
	"labelflow/features/templates"
	"labelflow/features/workforce"
	"labelflow/internal/adapter/completion"
	"labelflow/internal/adapter/gemini"
	"labelflow/internal/audit"
	"labelflow/internal/config"
	"labelflow/internal/generation"
	"labelflow/internal/middleware"
	"labelflow/internal/settings"
	"labelflow/internal/worker"
)

type TaskPublisher interface {
	Publish(topic string, body []byte) error
}

// Options overrides collaborators, mainly for tests.
type Options struct {
	Completer generation.Completer
	Clock     func() time.Time
}

type App struct {
	Handler            http.Handler
	Sessions           *session.Registry
	SessionService     *session.Service
	AssignmentConsumer *worker.AssignmentConsumer

	cfg     *config.Config
	closers []func() error
}

func New(
	cfg *config.Config,
	db *sql.DB,
	cache *redis.Client,
	taskPub TaskPublisher,
	logger *slog.Logger,
	opts *Options,
) (*App, error) {
	if opts == nil {
		opts = &Options{}
	}
	a := &App{cfg: cfg}

	// Feature: Settings
	settingsRepo := settings.NewPostgresRepo(db)
	settingsService := settings.NewService(settingsRepo)
	seedProviderKeys(context.Background(), cfg, settingsService)
	settingsHandler := settings.NewHandler(settingsService)

	// Feature: Templates
	templateRepo := templates.NewPostgresRepo(db)
	templateService := templates.NewService(templateRepo)
	templateHandler := templates.NewHandler(templateService)

	// Feature: Workforce
	workerRepo := workforce.NewPostgresRepo(db)
	var workerService *workforce.Service
	if cache != nil {
		workerService = workforce.NewService(workerRepo, workforce.NewRedisCache(cache, cfg.WorkerPoolCacheTTL))
	} else {
		workerService = workforce.NewService(workerRepo, nil)
	}
	workerHandler := workforce.NewHandler(workerService)

	// Feature: Tasks
	taskRepo := task.NewPostgresRepo(db)
	taskService := task.NewService(taskRepo, taskPub)
	taskHandler := task.NewHandler(taskService)

	// Feature: Job
	jobRepo := job.NewPostgresRepo(db)
	jobService := job.NewService(jobRepo, taskPub, logger)
	jobHandler := job.NewHandler(jobService)

	// Generation
	completer := opts.Completer
	if completer == nil {
		geminiGenerator := gemini.NewGenerator(cfg.DefaultModel)
		a.closers = append(a.closers, geminiGenerator.Close)
		completer = generation.NewRouter().
			Register(settings.ProviderGemini, geminiGenerator).
			Register(settings.ProviderOpenAI, completion.NewClient(settings.ProviderOpenAI, cfg.CompletionTimeout)).
			Register(settings.ProviderCohere, completion.NewClient(settings.ProviderCohere, cfg.CompletionTimeout))
	}
	auditLog, err := audit.NewFileLogger(cfg.GenerationLogPath)
	if err != nil {
		slog.Warn("failed to create generation log, falling back to stdout", "error", err)
		auditLog = audit.NewLogger(os.Stdout)
	}
	generationService := generation.NewService(completer, settingsService, auditLog, cfg.DefaultProvider, cfg.DefaultModel)

	// Feature: Sessions
	a.Sessions = session.NewRegistry(cfg.SessionTTL, opts.Clock)
	a.SessionService = session.NewService(a.Sessions, templateService, workerService, generationService, taskService)
	sessionHandler := session.NewHandler(a.SessionService, cfg.MaxCSVSizeMB<<20)

	// Feature: Stats
	statsHandler := stats.NewHandler(templateService, taskService, workerService, jobService, a.Sessions)

	// Worker (Assignment Consumer)
	a.AssignmentConsumer = worker.NewAssignmentConsumer(taskService, jobRepo, cfg.AssignmentMaxAttempts)

	// Routes
	cors := middleware.CORS(cfg.CORSAllowedOrigins)
	route := func(h http.HandlerFunc) http.Handler {
		return middleware.CorrelationID(cors(h))
	}
	mux := http.NewServeMux()

	mux.Handle("POST /templates", route(templateHandler.Create))
	mux.Handle("GET /templates", route(templateHandler.List))
	mux.Handle("GET /templates/{id}", route(templateHandler.Get))
	mux.Handle("GET /templates/{id}/placeholders", route(templateHandler.Placeholders))

	mux.Handle("POST /sessions", route(sessionHandler.Open))
	mux.Handle("GET /sessions/{id}", route(sessionHandler.Get))
	mux.Handle("DELETE /sessions/{id}", route(sessionHandler.Close))
	mux.Handle("POST /sessions/{id}/tasks", route(sessionHandler.AddTask))
	mux.Handle("DELETE /sessions/{id}/tasks/{taskID}", route(sessionHandler.RemoveTask))
	mux.Handle("PUT /sessions/{id}/tasks/{taskID}/values/{index}", route(sessionHandler.SetValue))
	mux.Handle("PUT /sessions/{id}/tasks/{taskID}/file-types/{index}", route(sessionHandler.SetFileType))
	mux.Handle("GET /sessions/{id}/tasks/{taskID}/preview", route(sessionHandler.Preview))
	mux.Handle("POST /sessions/{id}/import", route(sessionHandler.ImportCSV))
	mux.Handle("POST /sessions/{id}/generate", route(sessionHandler.Generate))
	mux.Handle("PUT /sessions/{id}/assignment", route(sessionHandler.SetAssignment))
	mux.Handle("POST /sessions/{id}/commit", route(sessionHandler.Commit))

	mux.Handle("GET /workers", route(workerHandler.List))
	mux.Handle("POST /workers", route(workerHandler.Save))
	mux.Handle("DELETE /workers/{id}", route(workerHandler.Delete))

	mux.Handle("GET /tasks", route(taskHandler.List))

	mux.Handle("GET /settings", route(settingsHandler.GetSettings))
	mux.Handle("PUT /settings", route(settingsHandler.UpdateSettings))

	mux.Handle("GET /jobs/failed", route(jobHandler.List))
	mux.Handle("POST /jobs/{id}/retry", route(jobHandler.Retry))

	mux.Handle("GET /stats", route(statsHandler.GetStats))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.Handle("OPTIONS /", route(func(w http.ResponseWriter, r *http.Request) {}))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	a.Handler = mux
	return a, nil
}

// Run serves HTTP and sweeps idle sessions until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	go a.Sessions.Run(ctx, a.cfg.SessionSweepInterval)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.ServerPort),
		Handler:           a.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.cfg.ServerPort)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close releases provider clients.
func (a *App) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			slog.Warn("failed to close client", "error", err)
		}
	}
}

// seedProviderKeys copies keys from the environment into settings that
// have none stored yet.
func seedProviderKeys(ctx context.Context, cfg *config.Config, svc *settings.Service) {
	if cfg.GeminiAPIKey == "" && cfg.OpenAIAPIKey == "" && cfg.CohereAPIKey == "" {
		return
	}
	set, err := svc.Get(ctx)
	if err != nil {
		slog.Warn("failed to fetch settings for seeding", "error", err)
		return
	}

	changed := false
	seed := func(dst *string, v string) {
		if *dst == "" && v != "" {
			*dst = v
			changed = true
		}
	}
	seed(&set.GeminiAPIKey, cfg.GeminiAPIKey)
	seed(&set.OpenAIAPIKey, cfg.OpenAIAPIKey)
	seed(&set.CohereAPIKey, cfg.CohereAPIKey)
	if !changed {
		return
	}
	if err := svc.Update(ctx, set); err != nil {
		slog.Warn("failed to seed provider api keys", "error", err)
		return
	}
	slog.Info("seeded provider api keys from environment")
}
