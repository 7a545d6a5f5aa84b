package service

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/vogiaan1904/ticketbottle-gate/internal/models"
	repo "github.com/vogiaan1904/ticketbottle-gate/internal/repository/redis"
	"github.com/vogiaan1904/ticketbottle-gate/internal/ticket"
	pkgLog "github.com/vogiaan1904/ticketbottle-gate/pkg/logger"
	"github.com/vogiaan1904/ticketbottle-gate/pkg/util"
)

const (
	RoutingLastMatch  = "last"
	RoutingFirstMatch = "first"
)

const globalLoadTimeout = 5 * time.Second

type configService struct {
	repo   repo.ConfigRepository
	keys   *ticket.KeyCache
	policy string
	l      pkgLog.Logger

	sf singleflight.Group

	mu       sync.RWMutex
	patterns map[string]*regexp.Regexp // nil value marks an invalid pattern
}

// NewConfigService resolves routing with policy RoutingLastMatch (each
// matching entry replaces the previous candidate) or RoutingFirstMatch.
func NewConfigService(r repo.ConfigRepository, keys *ticket.KeyCache, policy string, l pkgLog.Logger) ConfigService {
	if policy != RoutingFirstMatch {
		policy = RoutingLastMatch
	}
	return &configService{
		repo:     r,
		keys:     keys,
		policy:   policy,
		l:        l,
		patterns: make(map[string]*regexp.Regexp),
	}
}

// GlobalConfig collapses concurrent loads into one store read. The read runs
// detached from the caller that started it; each caller stops waiting on its
// own cancellation. The returned record is shared and must not be modified.
func (s *configService) GlobalConfig(ctx context.Context) (*models.GlobalConfig, error) {
	ch := s.sf.DoChan("global", func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), globalLoadTimeout)
		defer cancel()
		return s.repo.GetGlobal(lctx)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, s.mapRepoErr(ctx, "GlobalConfig", res.Err)
		}
		return res.Val.(*models.GlobalConfig), nil
	}
}

func (s *configService) EnsureGlobalConfig(ctx context.Context) (*models.GlobalConfig, error) {
	cfg, err := s.GlobalConfig(ctx)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, ErrConfigNotFound) {
		return nil, err
	}

	def := models.DefaultGlobalConfig()
	if err := s.WriteGlobalConfig(ctx, &def); err != nil {
		return nil, err
	}
	s.l.Infof(ctx, "Global config initialised with defaults")

	return &def, nil
}

func (s *configService) RouteQueue(ctx context.Context, global *models.GlobalConfig, path string) (string, bool) {
	var (
		name    string
		matched bool
	)

	for _, e := range global.Queues {
		re := s.compile(ctx, e.Pattern)
		if re == nil || !re.MatchString(path) {
			continue
		}

		s.l.Debugf(ctx, "Path %s matches queue %s with pattern %s", path, e.QueueName, e.Pattern)
		name, matched = e.QueueName, true
		if s.policy == RoutingFirstMatch {
			break
		}
	}

	return name, matched
}

func (s *configService) IsWhitelisted(global *models.GlobalConfig, path string) bool {
	return slices.Contains(global.Whitelist, path)
}

func (s *configService) ResolveQueue(ctx context.Context, global *models.GlobalConfig, name string) (*models.QueueConfig, error) {
	rec, err := s.repo.GetQueue(ctx, name)
	if err != nil {
		return nil, s.mapRepoErr(ctx, "ResolveQueue", err)
	}

	cfg := s.merge(ctx, global, rec)

	if cfg.PrivateKey, err = s.privateKey(ctx, inherit(rec.PrivateKey, global.PrivateKey)); err != nil {
		return nil, err
	}
	if cfg.PublicKey, err = s.publicKey(ctx, inherit(rec.PublicKey, global.PublicKey)); err != nil {
		return nil, err
	}
	if cfg.RedisToken, err = s.optional(ctx, "secret", inherit(rec.RedisToken, global.RedisToken), s.repo.GetSecret); err != nil {
		return nil, err
	}
	if cfg.WaitingRoomPage, err = s.optional(ctx, "page", inherit(rec.QueuePage, global.QueuePage), s.repo.GetPage); err != nil {
		return nil, err
	}
	if cfg.AdminPage, err = s.optional(ctx, "page", inherit(rec.AdminPage, global.AdminPage), s.repo.GetPage); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (s *configService) QueueRecord(ctx context.Context, name string) (*models.QueueRecord, error) {
	rec, err := s.repo.GetQueue(ctx, name)
	if err != nil {
		return nil, s.mapRepoErr(ctx, "QueueRecord", err)
	}
	return rec, nil
}

func (s *configService) WriteGlobalConfig(ctx context.Context, cfg *models.GlobalConfig) error {
	if err := s.repo.SetGlobal(ctx, cfg); err != nil {
		s.l.Errorf(ctx, "service.configService.WriteGlobalConfig: %v", err)
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *configService) WriteQueueRecord(ctx context.Context, rec *models.QueueRecord) error {
	if err := s.repo.SetQueue(ctx, rec); err != nil {
		s.l.Errorf(ctx, "service.configService.WriteQueueRecord: %v", err)
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// merge copies every field the queue record leaves unset from the global
// record. Neither input is modified.
func (s *configService) merge(ctx context.Context, global *models.GlobalConfig, rec *models.QueueRecord) *models.QueueConfig {
	cfg := &models.QueueConfig{
		QueueName:         rec.QueueName,
		Active:            global.Active,
		Geocodes:          slices.Clone(rec.Geocodes),
		CookieName:        inherit(rec.CookieName, global.CookieName),
		CookieExpiry:      s.seconds(ctx, "cookieExpiry", inheritInt(rec.CookieExpiry, global.CookieExpiry)),
		RefreshInterval:   s.seconds(ctx, "refreshInterval", inheritInt(rec.RefreshInterval, global.RefreshInterval)),
		Automatic:         s.seconds(ctx, "automatic", inheritInt(rec.Automatic, global.Automatic)),
		AutomaticQuantity: int64(max(inheritInt(rec.AutomaticQuantity, global.AutomaticQuantity), 0)),
		RedisURL:          inherit(rec.RedisURL, global.RedisURL),
		AdminPath:         inherit(rec.AdminPath, global.AdminPath),
		AdminPassword:     inherit(rec.AdminPassword, global.AdminPassword),
	}

	if rec.Active != nil {
		cfg.Active = *rec.Active
	}

	if raw := inherit(rec.Expires, global.Expires); raw != "" {
		t, err := parseExpires(raw)
		if err != nil {
			s.l.Warnf(ctx, "service.configService.merge: queue %s has unparseable expires %q: %v", rec.QueueName, raw, err)
		} else {
			cfg.Expires = &t
		}
	}

	return cfg
}

func (s *configService) seconds(ctx context.Context, field string, v int) time.Duration {
	if v < 0 {
		s.l.Warnf(ctx, "service.configService.merge: negative %s %d treated as 0", field, v)
		return 0
	}
	return time.Duration(v) * time.Second
}

func (s *configService) privateKey(ctx context.Context, name string) (*rsa.PrivateKey, error) {
	pem, err := s.optional(ctx, "secret", name, s.repo.GetSecret)
	if err != nil || pem == "" {
		return nil, err
	}

	key, err := s.keys.PrivateKey([]byte(pem))
	if err != nil {
		// Tickets cannot be minted; visitors are still counted.
		s.l.Errorf(ctx, "service.configService.privateKey: %s: %v", name, err)
		return nil, nil
	}
	return key, nil
}

func (s *configService) publicKey(ctx context.Context, name string) (*rsa.PublicKey, error) {
	pem, err := s.optional(ctx, "secret", name, s.repo.GetSecret)
	if err != nil || pem == "" {
		return nil, err
	}

	key, err := s.keys.PublicKey([]byte(pem))
	if err != nil {
		s.l.Errorf(ctx, "service.configService.publicKey: %s: %v", name, err)
		return nil, nil
	}
	return key, nil
}

// optional loads a named secret or page. An empty name or a missing record
// yields "" so the queue still resolves.
func (s *configService) optional(ctx context.Context, kind, name string, get func(context.Context, string) (string, error)) (string, error) {
	if name == "" {
		return "", nil
	}

	v, err := get(ctx, name)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			s.l.Warnf(ctx, "service.configService.ResolveQueue: %s %q not found", kind, name)
			return "", nil
		}
		return "", s.mapRepoErr(ctx, "ResolveQueue", err)
	}

	return v, nil
}

func (s *configService) compile(ctx context.Context, pattern string) *regexp.Regexp {
	s.mu.RLock()
	re, ok := s.patterns[pattern]
	s.mu.RUnlock()
	if ok {
		return re
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		s.l.Warnf(ctx, "service.configService.RouteQueue: skipping invalid pattern %q: %v", pattern, err)
		re = nil
	}

	s.mu.Lock()
	s.patterns[pattern] = re
	s.mu.Unlock()

	return re
}

func (s *configService) mapRepoErr(ctx context.Context, method string, err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrConfigNotFound, err)
	}

	s.l.Errorf(ctx, "service.configService.%s: %v", method, err)
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func inherit(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func inheritInt(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func parseExpires(raw string) (time.Time, error) {
	if t, err := util.ParseISO8601(raw); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, raw)
}
