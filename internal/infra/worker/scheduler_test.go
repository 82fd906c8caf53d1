package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// everySchedule fires at a fixed sub-second interval, below cron's one-second floor.
type everySchedule time.Duration

func (e everySchedule) Next(t time.Time) time.Time { return t.Add(time.Duration(e)) }

func testConfig(schedule string) WorkerConfig {
	cfg := DefaultConfig()
	cfg.CronSchedule = schedule
	cfg.Timezone = "UTC"
	cfg.RunTimeout = time.Minute
	return cfg
}

func TestScheduler_Next_UsesTimezone(t *testing.T) {
	cfg := DefaultConfig()
	s, err := NewScheduler(cfg, func(context.Context) (int, error) { return 0, nil },
		NewWorkerMetrics(prometheus.NewRegistry()), nil)
	require.NoError(t, err)

	// 2024-01-01 00:00 UTC is 08:00 in Shanghai; next run is 17:35 local.
	next := s.Next(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 1, 1, 9, 35, 0, 0, time.UTC), next.UTC())

	next = s.Next(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 1, 1, 21, 35, 0, 0, time.UTC), next.UTC())
}

func TestScheduler_RunsUntilCancelled(t *testing.T) {
	var runs atomic.Int32
	m := NewWorkerMetrics(prometheus.NewRegistry())
	s, err := NewScheduler(testConfig("@every 1h"), func(context.Context) (int, error) {
		runs.Add(1)
		return 2, nil
	}, m, nil)
	require.NoError(t, err)
	s.schedule = everySchedule(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return runs.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.GreaterOrEqual(t, testutil.ToFloat64(m.RunsTotal.WithLabelValues("success")), 2.0)
	assert.GreaterOrEqual(t, testutil.ToFloat64(m.SourcesProcessed), 4.0)
}

func TestScheduler_RunOnStart(t *testing.T) {
	var runs atomic.Int32
	cfg := testConfig("0 0 1 1 *")
	cfg.RunOnStart = true
	s, err := NewScheduler(cfg, func(context.Context) (int, error) {
		runs.Add(1)
		return 0, nil
	}, NewWorkerMetrics(prometheus.NewRegistry()), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestScheduler_RunOnce_RecordsFailureAndPanic(t *testing.T) {
	m := NewWorkerMetrics(prometheus.NewRegistry())
	boom := errors.New("boom")

	s, err := NewScheduler(testConfig("@every 1h"), func(context.Context) (int, error) { return 1, boom }, m, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, s.RunOnce(context.Background()), boom)

	s.job = func(context.Context) (int, error) { panic("bad") }
	assert.Error(t, s.RunOnce(context.Background()))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("failure")))
	assert.Zero(t, testutil.ToFloat64(m.LastSuccessTimestamp))
}

func TestScheduler_RunOnce_AppliesTimeout(t *testing.T) {
	cfg := testConfig("@every 1h")
	s, err := NewScheduler(cfg, func(ctx context.Context) (int, error) {
		deadline, ok := ctx.Deadline()
		if !ok {
			return 0, errors.New("no deadline")
		}
		if time.Until(deadline) > cfg.RunTimeout {
			return 0, errors.New("deadline too far")
		}
		return 0, nil
	}, NewWorkerMetrics(prometheus.NewRegistry()), nil)
	require.NoError(t, err)
	assert.NoError(t, s.RunOnce(context.Background()))
}

func TestNewScheduler_InvalidConfig(t *testing.T) {
	_, err := NewScheduler(testConfig("bogus"), nil, NewWorkerMetrics(prometheus.NewRegistry()), nil)
	assert.Error(t, err)
}
