package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/telarian/switchboard/internal/config"
	"github.com/telarian/switchboard/internal/core/ports"
	"github.com/telarian/switchboard/internal/core/usecase"
	"github.com/telarian/switchboard/internal/infrastructure/export/excel"
	"github.com/telarian/switchboard/internal/infrastructure/queue/nats"
	"github.com/telarian/switchboard/internal/infrastructure/repository/memory"
	"github.com/telarian/switchboard/internal/infrastructure/repository/postgres"
	"github.com/telarian/switchboard/internal/infrastructure/resilience"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue ports.MessageQueue

	RoutingUC     ports.QueryRouter
	AttributionUC ports.MessageAttributor
	DirectoryUC   ports.ThreadDirectory
	PreferenceUC  ports.PreferenceService

	// Degraded is true when postgres was unreachable at startup and the
	// in-memory stores back the service instead.
	Degraded bool

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	threads, prefs, closeRepos, degraded := openRepositories(ctx, cfg, logger)

	executor := resilience.NewExecutor(resilience.DefaultConfig())
	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		closeRepos()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	matrix := usecase.LoadRelevanceMatrix(cfg.RelevanceMatrixPath, logger)
	locks := usecase.NewThreadLocks()

	return &App{
		Config: cfg,
		Logger: logger,
		Queue:  queue,

		RoutingUC:     usecase.NewRoutingUseCase(matrix),
		AttributionUC: usecase.NewAttributionUseCase(threads, locks),
		DirectoryUC:   usecase.NewThreadDirectoryUseCase(threads, excel.NewReportWriter(), locks),
		PreferenceUC:  usecase.NewPreferenceUseCase(prefs, logger),

		Degraded: degraded,

		closeFn: func() {
			queue.Close()
			closeRepos()
		},
	}, nil
}

// openRepositories prefers postgres and degrades to the in-memory stores
// when it is unreachable. Routing must stay available even when the
// participation history cannot be persisted.
func openRepositories(ctx context.Context, cfg config.Config, logger *slog.Logger) (ports.ThreadRepository, ports.PreferenceRepository, func(), bool) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err == nil {
		threadRepo := postgres.NewThreadRepository(db)
		prefRepo := postgres.NewPreferenceRepository(db)
		err = ensureSchemas(ctx, threadRepo, prefRepo)
		if err == nil {
			return threadRepo, prefRepo, func() { _ = db.Close() }, false
		}
		_ = db.Close()
	}

	logger.Warn("postgres_unavailable_degraded_mode", "error", err)
	return memory.NewThreadStore(), memory.NewPreferenceStore(), func() {}, true
}

func ensureSchemas(ctx context.Context, threads *postgres.ThreadRepository, prefs *postgres.PreferenceRepository) error {
	if err := threads.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure thread schema: %w", err)
	}
	if err := prefs.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure preference schema: %w", err)
	}
	return nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
