package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vogiaan1904/ticketbottle-gate/internal/delivery/kafka"
	"github.com/vogiaan1904/ticketbottle-gate/internal/delivery/kafka/producer"
	"github.com/vogiaan1904/ticketbottle-gate/internal/metrics"
	"github.com/vogiaan1904/ticketbottle-gate/internal/models"
	pkgLog "github.com/vogiaan1904/ticketbottle-gate/pkg/logger"
)

type adminService struct {
	cfgSvc ConfigService
	stores StoreProvider
	prod   producer.Producer
	m      *metrics.Metrics
	l      pkgLog.Logger
}

func NewAdminService(
	cfgSvc ConfigService,
	stores StoreProvider,
	prod producer.Producer,
	m *metrics.Metrics,
	l pkgLog.Logger,
) AdminService {
	return &adminService{
		cfgSvc: cfgSvc,
		stores: stores,
		prod:   prod,
		m:      m,
		l:      l,
	}
}

// Release admits the next in.Amount visitors in position order by advancing
// the cursor.
func (s *adminService) Release(ctx context.Context, in ReleaseInput) (*ReleaseOutput, error) {
	if in.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	cfg, err := s.queueConfig(ctx, in.QueueName)
	if err != nil {
		return nil, err
	}

	store, err := s.stores.Store(ctx, cfg)
	if err != nil {
		s.l.Errorf(ctx, "service.adminService.Release: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	cursor, err := store.IncrCursor(ctx, cfg.QueueName, in.Amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	out := &ReleaseOutput{
		QueueName:  cfg.QueueName,
		Amount:     in.Amount,
		Cursor:     cursor,
		ReleasedAt: time.Now(),
	}

	if s.m != nil {
		s.m.ManualReleases.WithLabelValues(cfg.QueueName, in.Source).Inc()
		s.m.ReleasedTotal.WithLabelValues(cfg.QueueName).Add(float64(in.Amount))
	}
	s.l.Infof(ctx, "Admin released %d visitors queue=%s cursor=%d source=%s by=%s",
		in.Amount, cfg.QueueName, cursor, in.Source, in.RequestedBy)

	if err := s.prod.PublishQueueReleased(ctx, kafka.QueueReleasedEvent{
		QueueName:   out.QueueName,
		Amount:      out.Amount,
		Cursor:      out.Cursor,
		Source:      in.Source,
		RequestedBy: in.RequestedBy,
		ReleasedAt:  out.ReleasedAt,
	}); err != nil {
		s.l.Errorf(ctx, "service.adminService.Release: %v", err)
	}

	return out, nil
}

func (s *adminService) Stats(ctx context.Context, queue string) (*models.QueueStats, error) {
	cfg, err := s.queueConfig(ctx, queue)
	if err != nil {
		return nil, err
	}

	store, err := s.stores.Store(ctx, cfg)
	if err != nil {
		s.l.Errorf(ctx, "service.adminService.Stats: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	cursor, err := store.GetCursor(ctx, cfg.QueueName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	length, err := store.GetLength(ctx, cfg.QueueName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return &models.QueueStats{
		QueueName:       cfg.QueueName,
		Cursor:          cursor,
		Length:          length,
		VisitorsWaiting: max(length-cursor, 0),
	}, nil
}

func (s *adminService) GlobalConfig(ctx context.Context) (*models.GlobalConfig, error) {
	return s.cfgSvc.EnsureGlobalConfig(ctx)
}

// UpdateGlobalConfig applies form-style field updates to a copy of the
// global record and writes it back.
func (s *adminService) UpdateGlobalConfig(ctx context.Context, patch map[string]string) (*models.GlobalConfig, error) {
	cur, err := s.cfgSvc.EnsureGlobalConfig(ctx)
	if err != nil {
		return nil, err
	}

	next := *cur
	if err := ApplyGlobalPatch(&next, patch); err != nil {
		return nil, err
	}

	if err := s.cfgSvc.WriteGlobalConfig(ctx, &next); err != nil {
		return nil, err
	}
	s.l.Infof(ctx, "Global config updated fields=%d", len(patch))

	return &next, nil
}

func (s *adminService) queueConfig(ctx context.Context, name string) (*models.QueueConfig, error) {
	global, err := s.cfgSvc.GlobalConfig(ctx)
	if err != nil {
		return nil, err
	}
	return s.cfgSvc.ResolveQueue(ctx, global, name)
}

// ApplyGlobalPatch sets global config fields by their JSON names. Booleans
// accept checkbox values ("1", "on", "true"); queues and whitelist take JSON.
func ApplyGlobalPatch(cfg *models.GlobalConfig, patch map[string]string) error {
	for key, raw := range patch {
		val := strings.TrimSpace(raw)

		var err error
		switch key {
		case "adminPath":
			cfg.AdminPath = val
		case "adminPassword":
			cfg.AdminPassword = val
		case "expires":
			cfg.Expires = val
		case "cookieName":
			cfg.CookieName = val
		case "redisUrl":
			cfg.RedisURL = val
		case "redisToken":
			cfg.RedisToken = val
		case "queuePage":
			cfg.QueuePage = val
		case "adminPage":
			cfg.AdminPage = val
		case "privateKey":
			cfg.PrivateKey = val
		case "publicKey":
			cfg.PublicKey = val
		case "forceDebug":
			cfg.ForceDebug, err = parseFlag(val)
		case "active":
			cfg.Active, err = parseFlag(val)
		case "refreshInterval":
			cfg.RefreshInterval, err = parseNonNegative(val)
		case "cookieExpiry":
			cfg.CookieExpiry, err = parseNonNegative(val)
		case "automatic":
			cfg.Automatic, err = parseNonNegative(val)
		case "automaticQuantity":
			cfg.AutomaticQuantity, err = parseNonNegative(val)
		case "queues":
			var queues []models.RouteEntry
			err = json.Unmarshal([]byte(val), &queues)
			cfg.Queues = queues
		case "whitelist":
			var paths []string
			err = json.Unmarshal([]byte(val), &paths)
			cfg.Whitelist = paths
		default:
			return fmt.Errorf("%w: unknown field %q", ErrInvalidConfig, key)
		}

		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
		}
	}

	return nil
}

func parseFlag(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "1", "on", "true", "yes":
		return true, nil
	case "", "0", "off", "false", "no":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean: %q", v)
}

func parseNonNegative(v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("must not be negative: %d", n)
	}
	return n, nil
}
