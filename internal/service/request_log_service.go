package service

import (
	"context"
	"time"

	"github.com/vogiaan1904/ticketbottle-gate/internal/metrics"
	"github.com/vogiaan1904/ticketbottle-gate/internal/models"
	pkgLog "github.com/vogiaan1904/ticketbottle-gate/pkg/logger"
)

const defaultRequestLogBuffer = 1024

type requestLogService struct {
	sinks   map[string]RequestLogPublisher
	entries chan models.RequestLogEntry
	m       *metrics.Metrics
	l       pkgLog.Logger
}

// NewRequestLogService fans entries out to sinks, keyed by a name used in
// logs and metrics. Entries are dropped when the buffer is full.
func NewRequestLogService(sinks map[string]RequestLogPublisher, buffer int, m *metrics.Metrics, l pkgLog.Logger) RequestLogService {
	if buffer <= 0 {
		buffer = defaultRequestLogBuffer
	}
	return &requestLogService{
		sinks:   sinks,
		entries: make(chan models.RequestLogEntry, buffer),
		m:       m,
		l:       l,
	}
}

func (s *requestLogService) Log(ctx context.Context, e models.RequestLogEntry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	s.l.Infof(ctx, "request client=%s method=%s url=%s referer=%q ua=%q geo=%s queue=%s decision=%s reason=%s permitted=%v status=%d cursor=%d position=%d store_ops=%d",
		e.ClientAddress, e.RequestMethod, e.RequestURL, e.RequestReferer, e.RequestUserAgent, e.ClientGeoCountry,
		e.QueueName, e.Decision, e.BypassReason, e.Permitted, e.ResponseStatus, e.QueueCursor, e.VisitorPosition, e.StoreOps)

	if len(s.sinks) == 0 {
		return
	}

	select {
	case s.entries <- e:
	default:
		s.failed("buffer")
		s.l.Warnf(ctx, "service.requestLogService.Log: buffer full, entry dropped")
	}
}

func (s *requestLogService) Run(ctx context.Context) error {
	for {
		select {
		case e := <-s.entries:
			s.publish(ctx, e)
		case <-ctx.Done():
			s.drain()
			return nil
		}
	}
}

// drain flushes what is already buffered after shutdown was requested.
func (s *requestLogService) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for {
		select {
		case e := <-s.entries:
			s.publish(ctx, e)
		default:
			return
		}
	}
}

func (s *requestLogService) publish(ctx context.Context, e models.RequestLogEntry) {
	for name, sink := range s.sinks {
		if err := sink.PublishRequestLog(ctx, e); err != nil {
			s.failed(name)
			s.l.Errorf(ctx, "service.requestLogService.publish: %s: %v", name, err)
		}
	}
}

func (s *requestLogService) failed(sink string) {
	if s.m != nil {
		s.m.PublishFailures.WithLabelValues(sink).Inc()
	}
}
