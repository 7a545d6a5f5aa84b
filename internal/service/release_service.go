package service

import (
	"context"

	"github.com/vogiaan1904/ticketbottle-gate/internal/metrics"
	"github.com/vogiaan1904/ticketbottle-gate/internal/models"
	repo "github.com/vogiaan1904/ticketbottle-gate/internal/repository/redis"
	pkgLog "github.com/vogiaan1904/ticketbottle-gate/pkg/logger"
)

type releaseService struct {
	m *metrics.Metrics
	l pkgLog.Logger
}

func NewReleaseService(m *metrics.Metrics, l pkgLog.Logger) ReleaseService {
	return &releaseService{
		m: m,
		l: l,
	}
}

// Tick implements release without a background timer. The period counter
// expires after cfg.Automatic, so the first request after that sees 1 and is
// the only caller that advances the cursor for the new period. Requests that
// raced it read the old cursor and pick up the bump on their next poll.
func (s *releaseService) Tick(ctx context.Context, cfg *models.QueueConfig, store repo.QueueStateRepository) (int64, bool, error) {
	if !cfg.AutomaticEnabled() {
		return 0, false, nil
	}

	n, err := store.IncrPeriodCounter(ctx, cfg.QueueName)
	if err != nil {
		s.l.Errorf(ctx, "service.releaseService.Tick: %v", err)
		return 0, false, err
	}
	if n != 1 {
		return 0, false, nil
	}

	if _, err := store.ExpireAfter(ctx, repo.PeriodKey(cfg.QueueName), cfg.Automatic); err != nil {
		// The counter keeps growing without a TTL until an operator clears it.
		s.l.Errorf(ctx, "service.releaseService.Tick: %v", err)
		return 0, false, err
	}

	cursor, err := store.IncrCursor(ctx, cfg.QueueName, cfg.AutomaticQuantity)
	if err != nil {
		s.l.Errorf(ctx, "service.releaseService.Tick: %v", err)
		return 0, false, err
	}

	if s.m != nil {
		s.m.AutoPeriods.WithLabelValues(cfg.QueueName).Inc()
		s.m.ReleasedTotal.WithLabelValues(cfg.QueueName).Add(float64(cfg.AutomaticQuantity))
	}
	s.l.Debugf(ctx, "Automatic release queue=%s quantity=%d cursor=%d", cfg.QueueName, cfg.AutomaticQuantity, cursor)

	return cursor, cfg.AutomaticQuantity != 0, nil
}
