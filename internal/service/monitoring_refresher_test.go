package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-api/pkg/schoolcal"
)

type warmerStub struct {
	mu     sync.Mutex
	months []string
	fail   int
}

func (w *warmerStub) CurrentMonth() schoolcal.Month {
	month, _ := schoolcal.ParseMonth("2025-01")
	return month
}

func (w *warmerStub) Warm(ctx context.Context, month schoolcal.Month) (*CompletenessReport, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.months = append(w.months, month.String())
	if w.fail > 0 {
		w.fail--
		return nil, errors.New("database unavailable")
	}
	return &CompletenessReport{Month: month.String()}, nil
}

func (w *warmerStub) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.months)
}

func TestMonitoringRefresherWarmsCurrentMonthOnStart(t *testing.T) {
	warmer := &warmerStub{}
	metrics := NewMetricsService()
	refresher := NewMonitoringRefresher(warmer, RefresherConfig{Interval: time.Hour, Workers: 1}, metrics, zap.NewNop())

	refresher.Start(context.Background())
	require.Eventually(t, func() bool { return warmer.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	refresher.Stop()

	assert.Equal(t, []string{"2025-01"}, warmer.months)
	assert.Equal(t, 1.0, gatheredValue(t, metrics, "completeness_refresh_runs_total", map[string]string{"outcome": "success"}))
}

func TestMonitoringRefresherRetriesAndTriggers(t *testing.T) {
	warmer := &warmerStub{fail: 1}
	metrics := NewMetricsService()
	refresher := NewMonitoringRefresher(warmer, RefresherConfig{Interval: time.Hour, MaxRetries: 2, RetryDelay: 5 * time.Millisecond}, metrics, zap.NewNop())

	refresher.Start(context.Background())
	defer refresher.Stop()
	require.Eventually(t, func() bool { return warmer.count() == 2 }, 2*time.Second, 10*time.Millisecond)

	december, err := schoolcal.ParseMonth("2024-12")
	require.NoError(t, err)
	require.NoError(t, refresher.Trigger(december))
	require.Eventually(t, func() bool { return warmer.count() == 3 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1.0, gatheredValue(t, metrics, "completeness_refresh_runs_total", map[string]string{"outcome": "failure"}))
}
