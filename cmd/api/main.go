package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"feedrelay/internal/config"
	hhttp "feedrelay/internal/handler/http"
	hfeed "feedrelay/internal/handler/http/feed"
	"feedrelay/internal/handler/http/requestid"
	"feedrelay/internal/infra/adapter/persistence/postgres"
	"feedrelay/internal/infra/adapter/persistence/postgrest"
	"feedrelay/internal/infra/cache"
	"feedrelay/internal/infra/db"
	"feedrelay/internal/infra/fetcher"
	"feedrelay/internal/infra/refresher"
	"feedrelay/internal/infra/worker"
	"feedrelay/internal/observability/logging"
	"feedrelay/internal/observability/tracing"
	"feedrelay/internal/repository"
	feedUC "feedrelay/internal/usecase/feed"
	"feedrelay/internal/usecase/fulltext"
	"feedrelay/internal/usecase/refresh"
	pkgconfig "feedrelay/pkg/config"
)

const (
	backendPostgres  = "postgres"
	backendPostgREST = "postgrest"
)

func main() {
	loadDotEnv()
	logger := logging.NewLogger()
	slog.SetDefault(logger)

	shutdownTracing := tracing.Setup(tracing.SampleRatioFromEnv())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend := strings.ToLower(pkgconfig.GetEnvString("DATABASE_BACKEND", backendPostgres))
	store, breakers, closeStore, err := initStore(ctx, backend)
	if err != nil {
		logger.Error("failed to initialize store", slog.String("backend", backend), slog.Any("error", err))
		os.Exit(1)
	}
	defer closeStore()
	logger.Info("store initialized", slog.String("backend", backend))

	seedSources(ctx, logger, store)

	app, err := setupApp(logger, store)
	if err != nil {
		logger.Error("failed to initialize services", slog.Any("error", err))
		os.Exit(1)
	}
	breakers = append(breakers, app.breakers...)

	if app.scheduler != nil {
		go func() {
			if err := app.scheduler.Run(ctx); err != nil {
				logger.Error("scheduler stopped", slog.Any("error", err))
			}
		}()
	}

	mux := http.NewServeMux()
	hfeed.Register(mux, app.feeds, app.refresh, logger)
	mux.Handle("GET /health", &hhttp.HealthHandler{
		Store:    store,
		Backend:  backend,
		Version:  getVersion(),
		Breakers: breakers,
		Logger:   logger,
	})
	mux.Handle("GET /health/ready", &hhttp.ReadyHandler{Store: store})
	mux.Handle("GET /health/live", hhttp.LiveHandler{})
	mux.Handle("GET /metrics", hhttp.MetricsHandler())

	handler := hhttp.Chain(mux,
		requestid.Middleware,
		tracing.Middleware,
		hhttp.Recover(logger),
		hhttp.Logging(logger),
		hhttp.MetricsMiddleware,
	)

	runServer(ctx, logger, handler)

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownTracing(flushCtx); err != nil {
		logger.Warn("tracer provider shutdown failed", slog.Any("error", err))
	}
}

// loadDotEnv loads .env.local then .env; variables already set win.
func loadDotEnv() {
	for _, f := range []string{".env.local", ".env"} {
		if _, err := os.Stat(f); err == nil {
			_ = godotenv.Load(f)
		}
	}
}

// initStore selects the persistence backend once for the process.
func initStore(ctx context.Context, backend string) (repository.Store, []hhttp.BreakerState, func(), error) {
	switch backend {
	case backendPostgres:
		database, err := db.Open(ctx, os.Getenv("DATABASE_URL"), db.ConnectionConfigFromEnv())
		if err != nil {
			return nil, nil, nil, err
		}
		if err := db.MigrateUp(ctx, database); err != nil {
			_ = database.Close()
			return nil, nil, nil, fmt.Errorf("migrate: %w", err)
		}
		closeFn := func() {
			if err := database.Close(); err != nil {
				slog.Error("failed to close database", slog.Any("error", err))
			}
		}
		return postgres.NewStore(database), nil, closeFn, nil

	case backendPostgREST:
		cfg, err := postgrest.LoadConfigFromEnv()
		if err != nil {
			return nil, nil, nil, err
		}
		client := postgrest.NewClient(cfg, nil)
		return postgrest.NewStore(client), []hhttp.BreakerState{client.CircuitBreaker()}, func() {}, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown DATABASE_BACKEND %q (want %s or %s)", backend, backendPostgres, backendPostgREST)
	}
}

// seedSources applies SOURCES_SEED_FILE when set. Failures are logged and
// do not stop the process.
func seedSources(ctx context.Context, logger *slog.Logger, store repository.SourceRepository) {
	path := os.Getenv("SOURCES_SEED_FILE")
	if path == "" {
		return
	}
	seed, err := config.LoadSourcesSeed(path)
	if err != nil {
		logger.Error("failed to load sources seed", slog.String("path", path), slog.Any("error", err))
		return
	}
	created, err := seed.Apply(ctx, store)
	if err != nil {
		logger.Error("failed to apply sources seed", slog.String("path", path), slog.Any("error", err))
		return
	}
	logger.Info("sources seed applied",
		slog.Int("sources", len(seed.Sources)),
		slog.Int("created", created))
}

type app struct {
	feeds     *feedUC.Service
	refresh   hfeed.Refresher
	scheduler *worker.Scheduler
	breakers  []hhttp.BreakerState
}

// setupApp wires the content pipeline, the feed builder and, when an
// upstream is configured, the refresh service and its scheduler.
func setupApp(logger *slog.Logger, store repository.Store) (*app, error) {
	feedCfg, err := feedUC.LoadConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("feed config: %w", err)
	}

	fetchCfg, err := fetcher.LoadConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("fetcher config: %w", err)
	}
	htmlFetcher := fetcher.NewHTMLFetcher(fetchCfg)

	contentCache, err := cache.NewContentCache(pkgconfig.GetEnvInt("CONTENT_CACHE_SIZE", 5000))
	if err != nil {
		return nil, fmt.Errorf("content cache: %w", err)
	}

	fullText := fulltext.NewService(contentCache, htmlFetcher, feedCfg.ArticleBaseURL, logger)
	a := &app{
		feeds:    feedUC.NewService(store, store, fullText, feedCfg, logger),
		breakers: []hhttp.BreakerState{htmlFetcher.CircuitBreaker()},
	}

	upstreamCfg, err := refresher.LoadConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("upstream config: %w", err)
	}
	if !upstreamCfg.Enabled() {
		logger.Warn("UPSTREAM_FEED_URL not set; refresh endpoint and scheduler disabled")
		return a, nil
	}
	feedRefresher := refresher.New(upstreamCfg, store, nil, logger)
	a.breakers = append(a.breakers, feedRefresher.CircuitBreaker())

	workerMetrics := worker.NewWorkerMetrics(prometheus.DefaultRegisterer)
	workerCfg := worker.LoadConfigFromEnv(logger, workerMetrics)

	refreshSvc := refresh.NewService(store, feedRefresher,
		refresh.WithUpdateDelay(workerCfg.UpdateDelay),
		refresh.WithLogger(logger),
	)
	a.refresh = refreshSvc

	if !workerCfg.Enabled {
		logger.Info("scheduled refresh disabled (CRON_ENABLED=false)")
		return a, nil
	}
	job := func(ctx context.Context) (int, error) {
		stats, err := refreshSvc.RefreshAll(ctx)
		if stats == nil {
			return 0, err
		}
		return stats.Sources, err
	}
	a.scheduler, err = worker.NewScheduler(*workerCfg, job, workerMetrics, logger)
	if err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}
	return a, nil
}

// getVersion returns the application version from environment or default.
func getVersion() string {
	return pkgconfig.GetEnvString("VERSION", "dev")
}

func runServer(ctx context.Context, logger *slog.Logger, handler http.Handler) {
	addr := ":" + pkgconfig.GetEnvString("PORT", "8080")
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		logger.Info("server starting",
			slog.String("addr", addr),
			slog.String("version", getVersion()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", slog.Any("error", err))
	}
	logger.Info("server stopped")
}
