// Package memory provides process-local repositories for development and
// tests. They honour the same atomicity and expiry semantics as the Redis
// repositories but share nothing across processes.
package memory

import (
	"context"
	"sync"
	"time"

	repo "github.com/vogiaan1904/ticketbottle-gate/internal/repository/redis"
)

type Option func(*queueStateRepository)

// WithClock overrides the time source used for key expiry.
func WithClock(now func() time.Time) Option {
	return func(r *queueStateRepository) {
		r.now = now
	}
}

type entry struct {
	value     int64
	expiresAt time.Time // zero means no expiry
}

type queueStateRepository struct {
	mu   sync.Mutex
	now  func() time.Time
	data map[string]entry
}

func NewQueueStateRepository(opts ...Option) repo.QueueStateRepository {
	r := &queueStateRepository{
		now:  time.Now,
		data: make(map[string]entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *queueStateRepository) GetCursor(ctx context.Context, queue string) (int64, error) {
	return r.get(repo.CursorKey(queue)), nil
}

func (r *queueStateRepository) IncrCursor(ctx context.Context, queue string, amt int64) (int64, error) {
	if amt == 0 {
		return 0, nil
	}
	return r.incrBy(repo.CursorKey(queue), amt), nil
}

func (r *queueStateRepository) GetLength(ctx context.Context, queue string) (int64, error) {
	return r.get(repo.LengthKey(queue)), nil
}

func (r *queueStateRepository) IncrLength(ctx context.Context, queue string) (int64, error) {
	return r.incrBy(repo.LengthKey(queue), 1), nil
}

func (r *queueStateRepository) ReserveIfAbsent(ctx context.Context, key string, position int64, ttl time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.load(key); ok {
		return false, nil
	}

	r.data[key] = entry{value: position, expiresAt: r.deadline(ttl)}
	return true, nil
}

func (r *queueStateRepository) GetReservation(ctx context.Context, key string) (int64, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.load(key)
	return e.value, ok, nil
}

func (r *queueStateRepository) RefreshTTL(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return r.expire(key, ttl), nil
}

func (r *queueStateRepository) IncrPeriodCounter(ctx context.Context, queue string) (int64, error) {
	return r.incrBy(repo.PeriodKey(queue), 1), nil
}

func (r *queueStateRepository) ExpireAfter(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return r.expire(key, ttl), nil
}

func (r *queueStateRepository) get(key string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, _ := r.load(key)
	return e.value
}

// incrBy keeps an existing expiry, like INCRBY.
func (r *queueStateRepository) incrBy(key string, amt int64) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, _ := r.load(key)
	e.value += amt
	r.data[key] = e
	return e.value
}

// expire behaves like PEXPIRE: false for a missing key, and a non-positive
// ttl deletes the key.
func (r *queueStateRepository) expire(key string, ttl time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.load(key)
	if !ok {
		return false
	}

	if ttl <= 0 {
		delete(r.data, key)
		return true
	}

	e.expiresAt = r.now().Add(ttl)
	r.data[key] = e
	return true
}

// load must be called with mu held. Expired keys are evicted on access.
func (r *queueStateRepository) load(key string) (entry, bool) {
	e, ok := r.data[key]
	if !ok {
		return entry{}, false
	}

	if !e.expiresAt.IsZero() && !r.now().Before(e.expiresAt) {
		delete(r.data, key)
		return entry{}, false
	}

	return e, true
}

func (r *queueStateRepository) deadline(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return r.now().Add(ttl)
}
