// Package monitor provides read-only operational aggregation over the
// transaction log. It has no correctness obligations; the numbers feed
// dashboards and alerting thresholds.
package monitor

import (
	"context"
	"fmt"
	"time"

	"creditledger/internal/repositories"
)

// ActivityReader is the single query the monitor needs.
type ActivityReader interface {
	GetActivityStats(ctx context.Context, start, end time.Time) (*repositories.ActivityStats, error)
}

// ActivitySummary aggregates spend activity for a trailing window.
type ActivitySummary struct {
	Window              time.Duration
	TransactionCount    int64
	SpendTotal          int64
	AvgSpend            float64
	LastTransactionTime *time.Time
}

// Service aggregates short-window metrics from the transaction log.
type Service struct {
	reader ActivityReader
}

// NewService creates the monitor.
func NewService(reader ActivityReader) *Service {
	if reader == nil {
		panic("activity reader is required")
	}
	return &Service{reader: reader}
}

// RecentActivity summarizes the trailing window ending now.
func (s *Service) RecentActivity(ctx context.Context, window time.Duration) (*ActivitySummary, error) {
	if window <= 0 {
		window = time.Hour
	}
	now := time.Now().UTC()
	stats, err := s.reader.GetActivityStats(ctx, now.Add(-window), now)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate recent activity: %w", err)
	}
	return &ActivitySummary{
		Window:              window,
		TransactionCount:    stats.TransactionCount,
		SpendTotal:          stats.SpendTotal,
		AvgSpend:            stats.AvgSpend,
		LastTransactionTime: stats.LastTransactionAt,
	}, nil
}
