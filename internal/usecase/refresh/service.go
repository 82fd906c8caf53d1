package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"feedrelay/internal/domain/entity"
	"feedrelay/internal/observability/metrics"
	"feedrelay/internal/observability/tracing"
	"feedrelay/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// DefaultCooldown is the pause after every source, whatever the outcome.
const DefaultCooldown = 30 * time.Second

// Refresher pulls the latest articles of one source into the store.
type Refresher interface {
	Refresh(ctx context.Context, sourceID string) error
}

// Stats summarizes one walk over the active sources.
type Stats struct {
	Sources   int
	Refreshed int
	Failed    int
	Duration  time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithUpdateDelay sets the pause after a successful source refresh.
func WithUpdateDelay(d time.Duration) Option {
	return func(s *Service) { s.updateDelay = d }
}

// WithCooldown overrides DefaultCooldown.
func WithCooldown(d time.Duration) Option {
	return func(s *Service) { s.cooldown = d }
}

// WithLogger sets the logger used for per-source outcomes.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithSleep replaces the context-aware sleep, mainly for tests.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Service) { s.sleep = fn }
}

type Service struct {
	sources     repository.SourceRepository
	refresher   Refresher
	updateDelay time.Duration
	cooldown    time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
	logger      *slog.Logger
	running     atomic.Bool
}

func NewService(sources repository.SourceRepository, refresher Refresher, opts ...Option) *Service {
	s := &Service{
		sources:   sources,
		refresher: refresher,
		cooldown:  DefaultCooldown,
		sleep:     sleepContext,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RefreshAll refreshes every active source in turn. A failing source is
// logged and counted; the walk continues with the next one. Only a listing
// error or cancellation of ctx ends the walk early.
func (s *Service) RefreshAll(ctx context.Context) (*Stats, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRunning
	}
	defer s.running.Store(false)

	start := time.Now()
	stats := &Stats{}

	sources, err := s.sources.ListSources(ctx, entity.SourceActive)
	if err != nil {
		return nil, fmt.Errorf("RefreshAll: list sources: %w", err)
	}
	stats.Sources = len(sources)

	for _, src := range sources {
		if err := s.refreshSource(ctx, src.ID); err != nil {
			stats.Failed++
			s.logger.Error("source refresh failed",
				slog.String("source_id", src.ID),
				slog.String("source_name", src.Name),
				slog.Any("error", err))
		} else {
			stats.Refreshed++
			s.logger.Info("source refreshed",
				slog.String("source_id", src.ID),
				slog.String("source_name", src.Name))
			if err := s.sleep(ctx, s.updateDelay); err != nil {
				stats.Duration = time.Since(start)
				return stats, fmt.Errorf("RefreshAll: %w", err)
			}
		}

		if err := s.sleep(ctx, s.cooldown); err != nil {
			stats.Duration = time.Since(start)
			return stats, fmt.Errorf("RefreshAll: %w", err)
		}
	}

	stats.Duration = time.Since(start)
	s.logger.Info("refresh walk completed",
		slog.Int("sources", stats.Sources),
		slog.Int("refreshed", stats.Refreshed),
		slog.Int("failed", stats.Failed),
		slog.Duration("duration", stats.Duration))
	return stats, nil
}

// RefreshOne refreshes a single source immediately, without pacing.
func (s *Service) RefreshOne(ctx context.Context, id string) error {
	if _, err := s.sources.GetSource(ctx, id); err != nil {
		return fmt.Errorf("RefreshOne: %w", err)
	}
	if err := s.refreshSource(ctx, id); err != nil {
		return fmt.Errorf("RefreshOne: %w", err)
	}
	return nil
}

func (s *Service) refreshSource(ctx context.Context, id string) (err error) {
	ctx, span := tracing.StartSpan(ctx, "refresh.source", attribute.String("source.id", id))
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrRefreshPanic, r)
		}
		metrics.RecordSourceRefresh(err == nil, time.Since(start))
		tracing.EndSpan(span, err)
	}()

	return s.refresher.Refresh(ctx, id)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
