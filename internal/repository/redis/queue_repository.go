package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vogiaan1904/ticketbottle-gate/pkg/logger"
)

type redisQueueStateRepository struct {
	cli redis.Cmdable
	l   logger.Logger
}

func NewRedisQueueStateRepository(cli redis.Cmdable, l logger.Logger) QueueStateRepository {
	return &redisQueueStateRepository{
		cli: cli,
		l:   l,
	}
}

func (r *redisQueueStateRepository) GetCursor(ctx context.Context, queue string) (int64, error) {
	v, _, err := r.getInt(ctx, CursorKey(queue))
	if err != nil {
		r.l.Errorf(ctx, "redisQueueStateRepository.GetCursor: %v", err)
		return 0, err
	}

	return v, nil
}

func (r *redisQueueStateRepository) IncrCursor(ctx context.Context, queue string, amt int64) (int64, error) {
	if amt == 0 {
		return 0, nil
	}

	v, err := r.cli.IncrBy(ctx, CursorKey(queue), amt).Result()
	if err != nil {
		r.l.Errorf(ctx, "redisQueueStateRepository.IncrCursor: %v", err)
		return 0, err
	}

	r.l.Debugf(ctx, "Cursor advanced queue=%s amt=%d cursor=%d", queue, amt, v)

	return v, nil
}

func (r *redisQueueStateRepository) GetLength(ctx context.Context, queue string) (int64, error) {
	v, _, err := r.getInt(ctx, LengthKey(queue))
	if err != nil {
		r.l.Errorf(ctx, "redisQueueStateRepository.GetLength: %v", err)
		return 0, err
	}

	return v, nil
}

func (r *redisQueueStateRepository) IncrLength(ctx context.Context, queue string) (int64, error) {
	v, err := r.cli.Incr(ctx, LengthKey(queue)).Result()
	if err != nil {
		r.l.Errorf(ctx, "redisQueueStateRepository.IncrLength: %v", err)
		return 0, err
	}

	return v, nil
}

func (r *redisQueueStateRepository) ReserveIfAbsent(ctx context.Context, key string, position int64, ttl time.Duration) (bool, error) {
	ok, err := r.cli.SetNX(ctx, key, position, ttl).Result()
	if err != nil {
		r.l.Errorf(ctx, "redisQueueStateRepository.ReserveIfAbsent: %v", err)
		return false, err
	}

	return ok, nil
}

func (r *redisQueueStateRepository) GetReservation(ctx context.Context, key string) (int64, bool, error) {
	v, ok, err := r.getInt(ctx, key)
	if err != nil {
		r.l.Errorf(ctx, "redisQueueStateRepository.GetReservation: %v", err)
		return 0, false, err
	}

	return v, ok, nil
}

func (r *redisQueueStateRepository) RefreshTTL(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := r.cli.PExpire(ctx, key, ttl).Result()
	if err != nil {
		r.l.Errorf(ctx, "redisQueueStateRepository.RefreshTTL: %v", err)
		return false, err
	}

	return ok, nil
}

func (r *redisQueueStateRepository) IncrPeriodCounter(ctx context.Context, queue string) (int64, error) {
	v, err := r.cli.Incr(ctx, PeriodKey(queue)).Result()
	if err != nil {
		r.l.Errorf(ctx, "redisQueueStateRepository.IncrPeriodCounter: %v", err)
		return 0, err
	}

	return v, nil
}

func (r *redisQueueStateRepository) ExpireAfter(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := r.cli.Expire(ctx, key, ttl).Result()
	if err != nil {
		r.l.Errorf(ctx, "redisQueueStateRepository.ExpireAfter: %v", err)
		return false, err
	}

	return ok, nil
}

// getInt reads an integer key. A missing key reads as (0, false).
func (r *redisQueueStateRepository) getInt(ctx context.Context, key string) (int64, bool, error) {
	s, err := r.cli.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, err
	}

	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%w: key %s holds %q", ErrUnexpectedValue, key, s)
	}

	return v, true, nil
}
