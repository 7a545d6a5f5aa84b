package redis

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/vogiaan1904/ticketbottle-gate/config"
	"github.com/vogiaan1904/ticketbottle-gate/internal/models"
	repo "github.com/vogiaan1904/ticketbottle-gate/internal/repository/redis"
	pkgLog "github.com/vogiaan1904/ticketbottle-gate/pkg/logger"
	pkgRedis "github.com/vogiaan1904/ticketbottle-gate/pkg/redis"
)

type poolEntry struct {
	cli  *redis.Client
	repo repo.QueueStateRepository
}

// ClientPool hands each queue the store its redisUrl and redisToken point at.
// Queues without a redisUrl share the default client. Clients are created
// lazily and kept for the life of the process.
type ClientPool struct {
	def  repo.QueueStateRepository
	opts config.RedisConfig
	l    pkgLog.Logger

	mu      sync.Mutex
	entries map[string]poolEntry
}

func NewClientPool(def *redis.Client, opts config.RedisConfig, l pkgLog.Logger) *ClientPool {
	return &ClientPool{
		def:     repo.NewRedisQueueStateRepository(def, l),
		opts:    opts,
		l:       l,
		entries: make(map[string]poolEntry),
	}
}

func (p *ClientPool) Store(ctx context.Context, cfg *models.QueueConfig) (repo.QueueStateRepository, error) {
	if cfg.RedisURL == "" {
		return p.def, nil
	}

	key := cfg.RedisURL + "\x00" + cfg.RedisToken

	p.mu.Lock()
	defer p.mu.Unlock()

	if e, ok := p.entries[key]; ok {
		return e.repo, nil
	}

	cli, err := pkgRedis.NewClientFromURL(cfg.RedisURL, cfg.RedisToken, p.opts)
	if err != nil {
		p.l.Errorf(ctx, "infra.redis.ClientPool.Store: queue=%s: %v", cfg.QueueName, err)
		return nil, err
	}

	e := poolEntry{cli: cli, repo: repo.NewRedisQueueStateRepository(cli, p.l)}
	p.entries[key] = e
	p.l.Infof(ctx, "Redis client created for queue=%s addr=%s", cfg.QueueName, cli.Options().Addr)

	return e.repo, nil
}

// Close closes the per-queue clients. The default client belongs to the caller.
func (p *ClientPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var first error
	for key, e := range p.entries {
		if err := e.cli.Close(); err != nil && first == nil {
			first = err
		}
		delete(p.entries, key)
	}

	return first
}
