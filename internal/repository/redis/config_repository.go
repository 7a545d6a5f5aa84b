package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/vogiaan1904/ticketbottle-gate/internal/models"
	"github.com/vogiaan1904/ticketbottle-gate/pkg/logger"
)

type redisConfigRepository struct {
	cli    redis.Cmdable
	l      logger.Logger
	prefix string
}

// NewRedisConfigRepository stores records under "<prefix>:config:*",
// "<prefix>:secret:*" and "<prefix>:page:*".
func NewRedisConfigRepository(cli redis.Cmdable, l logger.Logger, prefix string) ConfigRepository {
	return &redisConfigRepository{
		cli:    cli,
		l:      l,
		prefix: prefix,
	}
}

func (r *redisConfigRepository) GetGlobal(ctx context.Context) (*models.GlobalConfig, error) {
	var cfg models.GlobalConfig
	if err := r.getJSON(ctx, r.globalKey(), &cfg); err != nil {
		if !errors.Is(err, ErrNotFound) {
			r.l.Errorf(ctx, "redisConfigRepository.GetGlobal: %v", err)
		}
		return nil, err
	}

	return &cfg, nil
}

func (r *redisConfigRepository) SetGlobal(ctx context.Context, cfg *models.GlobalConfig) error {
	if err := r.setJSON(ctx, r.globalKey(), cfg); err != nil {
		r.l.Errorf(ctx, "redisConfigRepository.SetGlobal: %v", err)
		return err
	}

	r.l.Debugf(ctx, "Global config written")

	return nil
}

func (r *redisConfigRepository) GetQueue(ctx context.Context, name string) (*models.QueueRecord, error) {
	var rec models.QueueRecord
	if err := r.getJSON(ctx, r.queueKey(name), &rec); err != nil {
		if !errors.Is(err, ErrNotFound) {
			r.l.Errorf(ctx, "redisConfigRepository.GetQueue: %v", err)
		}
		return nil, err
	}

	if rec.QueueName == "" {
		rec.QueueName = name
	}

	return &rec, nil
}

func (r *redisConfigRepository) SetQueue(ctx context.Context, rec *models.QueueRecord) error {
	if rec.QueueName == "" {
		return fmt.Errorf("queue record has no name")
	}

	if err := r.setJSON(ctx, r.queueKey(rec.QueueName), rec); err != nil {
		r.l.Errorf(ctx, "redisConfigRepository.SetQueue: %v", err)
		return err
	}

	r.l.Debugf(ctx, "Queue config written queue=%s", rec.QueueName)

	return nil
}

func (r *redisConfigRepository) GetSecret(ctx context.Context, name string) (string, error) {
	v, err := r.getString(ctx, r.secretKey(name))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			r.l.Errorf(ctx, "redisConfigRepository.GetSecret: %v", err)
		}
		return "", err
	}

	return v, nil
}

func (r *redisConfigRepository) SetSecret(ctx context.Context, name, value string) error {
	if err := r.cli.Set(ctx, r.secretKey(name), value, 0).Err(); err != nil {
		r.l.Errorf(ctx, "redisConfigRepository.SetSecret: %v", err)
		return err
	}

	return nil
}

func (r *redisConfigRepository) GetPage(ctx context.Context, name string) (string, error) {
	v, err := r.getString(ctx, r.pageKey(name))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			r.l.Errorf(ctx, "redisConfigRepository.GetPage: %v", err)
		}
		return "", err
	}

	return v, nil
}

func (r *redisConfigRepository) SetPage(ctx context.Context, name, body string) error {
	if err := r.cli.Set(ctx, r.pageKey(name), body, 0).Err(); err != nil {
		r.l.Errorf(ctx, "redisConfigRepository.SetPage: %v", err)
		return err
	}

	return nil
}

func (r *redisConfigRepository) getString(ctx context.Context, key string) (string, error) {
	v, err := r.cli.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return "", err
	}

	return v, nil
}

func (r *redisConfigRepository) getJSON(ctx context.Context, key string, dst any) error {
	data, err := r.getString(ctx, key)
	if err != nil {
		return err
	}

	if err := json.Unmarshal([]byte(data), dst); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnexpectedValue, key, err)
	}

	return nil
}

func (r *redisConfigRepository) setJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}

	return r.cli.Set(ctx, key, data, 0).Err()
}

func (r *redisConfigRepository) globalKey() string {
	return fmt.Sprintf("%s:config:global", r.prefix)
}

func (r *redisConfigRepository) queueKey(name string) string {
	return fmt.Sprintf("%s:config:queue:%s", r.prefix, name)
}

func (r *redisConfigRepository) secretKey(name string) string {
	return fmt.Sprintf("%s:secret:%s", r.prefix, name)
}

func (r *redisConfigRepository) pageKey(name string) string {
	return fmt.Sprintf("%s:page:%s", r.prefix, name)
}
