package service

import (
	"context"
	"fmt"
	"time"

	"github.com/vogiaan1904/ticketbottle-gate/internal/metrics"
	"github.com/vogiaan1904/ticketbottle-gate/internal/models"
	repo "github.com/vogiaan1904/ticketbottle-gate/internal/repository/redis"
)

// countingStore records every store round-trip of one request into stats
// and the process metrics. Errors come back wrapped in ErrStoreUnavailable.
type countingStore struct {
	next  repo.QueueStateRepository
	stats *models.RequestStats
	m     *metrics.Metrics
}

func newCountingStore(next repo.QueueStateRepository, stats *models.RequestStats, m *metrics.Metrics) repo.QueueStateRepository {
	return &countingStore{next: next, stats: stats, m: m}
}

func (s *countingStore) observe(op string, start time.Time, err error) error {
	d := time.Since(start)
	s.stats.Observe(d)
	s.m.ObserveStoreOp(op, d, err)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
	}
	return nil
}

func (s *countingStore) GetCursor(ctx context.Context, queue string) (int64, error) {
	start := time.Now()
	v, err := s.next.GetCursor(ctx, queue)
	return v, s.observe("get_cursor", start, err)
}

func (s *countingStore) IncrCursor(ctx context.Context, queue string, amt int64) (int64, error) {
	if amt == 0 {
		return 0, nil
	}
	start := time.Now()
	v, err := s.next.IncrCursor(ctx, queue, amt)
	return v, s.observe("incr_cursor", start, err)
}

func (s *countingStore) GetLength(ctx context.Context, queue string) (int64, error) {
	start := time.Now()
	v, err := s.next.GetLength(ctx, queue)
	return v, s.observe("get_length", start, err)
}

func (s *countingStore) IncrLength(ctx context.Context, queue string) (int64, error) {
	start := time.Now()
	v, err := s.next.IncrLength(ctx, queue)
	return v, s.observe("incr_length", start, err)
}

func (s *countingStore) ReserveIfAbsent(ctx context.Context, key string, position int64, ttl time.Duration) (bool, error) {
	start := time.Now()
	ok, err := s.next.ReserveIfAbsent(ctx, key, position, ttl)
	return ok, s.observe("reserve", start, err)
}

func (s *countingStore) GetReservation(ctx context.Context, key string) (int64, bool, error) {
	start := time.Now()
	v, ok, err := s.next.GetReservation(ctx, key)
	return v, ok, s.observe("get_reservation", start, err)
}

func (s *countingStore) RefreshTTL(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	start := time.Now()
	ok, err := s.next.RefreshTTL(ctx, key, ttl)
	return ok, s.observe("refresh_ttl", start, err)
}

func (s *countingStore) IncrPeriodCounter(ctx context.Context, queue string) (int64, error) {
	start := time.Now()
	v, err := s.next.IncrPeriodCounter(ctx, queue)
	return v, s.observe("incr_period", start, err)
}

func (s *countingStore) ExpireAfter(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	start := time.Now()
	ok, err := s.next.ExpireAfter(ctx, key, ttl)
	return ok, s.observe("expire", start, err)
}
