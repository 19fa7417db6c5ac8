package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-api/pkg/jobs"
	"github.com/noah-isme/sma-attendance-api/pkg/schoolcal"
)

const refreshJobType = "completeness.refresh"

type completenessWarmer interface {
	CurrentMonth() schoolcal.Month
	Warm(ctx context.Context, month schoolcal.Month) (*CompletenessReport, error)
}

// RefresherConfig configures the background completeness refresh.
type RefresherConfig struct {
	Interval   time.Duration
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

// MonitoringRefresher keeps the current month's report warm by
// recomputing it on a fixed interval through a worker queue.
type MonitoringRefresher struct {
	warmer   completenessWarmer
	queue    *jobs.Queue
	interval time.Duration
	metrics  *MetricsService
	logger   *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewMonitoringRefresher constructs the refresher.
func NewMonitoringRefresher(warmer completenessWarmer, cfg RefresherConfig, metrics *MetricsService, logger *zap.Logger) *MonitoringRefresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	r := &MonitoringRefresher{warmer: warmer, interval: cfg.Interval, metrics: metrics, logger: logger}
	r.queue = jobs.NewQueue("completeness-refresh", r.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return r
}

// Start launches the workers and the ticker. The current month is
// refreshed immediately.
func (r *MonitoringRefresher) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	r.queue.Start(ctx)

	go func() {
		defer close(r.done)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		r.enqueueCurrent()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.enqueueCurrent()
			}
		}
	}()
}

// Stop halts the ticker and waits for running jobs.
func (r *MonitoringRefresher) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel = nil
	r.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	r.queue.Stop()
}

// Trigger schedules a refresh of month. Requests for a month that is
// already pending are collapsed.
func (r *MonitoringRefresher) Trigger(month schoolcal.Month) error {
	err := r.queue.Enqueue(jobs.Job{Key: month.String(), Type: refreshJobType, Payload: month})
	if errors.Is(err, jobs.ErrDuplicate) {
		return nil
	}
	return err
}

func (r *MonitoringRefresher) enqueueCurrent() {
	month := r.warmer.CurrentMonth()
	if err := r.Trigger(month); err != nil {
		r.logger.Warn("completeness refresh not scheduled", zap.String("month", month.String()), zap.Error(err))
	}
}

func (r *MonitoringRefresher) handle(ctx context.Context, job jobs.Job) error {
	month, ok := job.Payload.(schoolcal.Month)
	if !ok {
		r.logger.Error("unexpected refresh payload", zap.String("key", job.Key))
		return nil
	}
	report, err := r.warmer.Warm(ctx, month)
	r.metrics.RecordRefresh(err)
	if err != nil {
		return err
	}
	r.logger.Info("completeness refreshed",
		zap.String("month", month.String()),
		zap.Int("expected", report.Expected),
		zap.Int("missing", report.Missing),
	)
	return nil
}
