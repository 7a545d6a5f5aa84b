package service

import (
	"context"
	"crypto/rsa"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vogiaan1904/ticketbottle-gate/internal/models"
	"github.com/vogiaan1904/ticketbottle-gate/internal/repository/memory"
	repo "github.com/vogiaan1904/ticketbottle-gate/internal/repository/redis"
	"github.com/vogiaan1904/ticketbottle-gate/internal/ticket"
	pkgLog "github.com/vogiaan1904/ticketbottle-gate/pkg/logger"
)

var errBoom = errors.New("boom")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type keyPair struct {
	privPEM, pubPEM []byte
	priv            *rsa.PrivateKey
	pub             *rsa.PublicKey
}

var (
	keysOnce sync.Once
	keys     [2]keyPair
)

// testKeys returns two distinct key pairs, generated once per test binary.
func testKeys(t *testing.T) [2]keyPair {
	t.Helper()

	keysOnce.Do(func() {
		for i := range keys {
			privPEM, pubPEM, err := ticket.GenerateKeyPair(2048)
			if err != nil {
				t.Fatalf("GenerateKeyPair: %v", err)
			}
			priv, _ := ticket.ParsePrivateKey(privPEM)
			pub, _ := ticket.ParsePublicKey(pubPEM)
			keys[i] = keyPair{privPEM: privPEM, pubPEM: pubPEM, priv: priv, pub: pub}
		}
	})

	return keys
}

func testQueue(t *testing.T) *models.QueueConfig {
	k := testKeys(t)[0]
	return &models.QueueConfig{
		QueueName:         "shop",
		Active:            true,
		CookieName:        "shop",
		CookieExpiry:      86400 * time.Second,
		RefreshInterval:   15 * time.Second,
		AutomaticQuantity: 1,
		PrivateKey:        k.priv,
		PublicKey:         k.pub,
	}
}

type engine struct {
	svc   AdmissionService
	store repo.QueueStateRepository
	codec ticket.Codec
	clock *fakeClock
}

func newEngine(t *testing.T) *engine {
	t.Helper()

	l := pkgLog.InitializeTestZapLogger()
	clock := newFakeClock()
	codec := ticket.NewCodec(ticket.WithClock(clock.Now))

	return &engine{
		svc:   NewAdmissionService(codec, NewReleaseService(nil, l), nil, l, WithAdmissionClock(clock.Now)),
		store: memory.NewQueueStateRepository(memory.WithClock(clock.Now)),
		codec: codec,
		clock: clock,
	}
}

func (e *engine) admit(cfg *models.QueueConfig, token string) *models.GateDecision {
	return e.svc.Admit(context.Background(), AdmitInput{Queue: cfg, Store: e.store, Token: token})
}

// faultyStore fails the named operation and records refresh TTLs.
type faultyStore struct {
	repo.QueueStateRepository
	failOn     string
	refreshTTL time.Duration
}

func (f *faultyStore) IncrLength(ctx context.Context, queue string) (int64, error) {
	if f.failOn == "IncrLength" {
		return 0, errBoom
	}
	return f.QueueStateRepository.IncrLength(ctx, queue)
}

func (f *faultyStore) GetCursor(ctx context.Context, queue string) (int64, error) {
	if f.failOn == "GetCursor" {
		return 0, errBoom
	}
	return f.QueueStateRepository.GetCursor(ctx, queue)
}

func (f *faultyStore) GetReservation(ctx context.Context, key string) (int64, bool, error) {
	if f.failOn == "GetReservation" {
		return 0, false, errBoom
	}
	return f.QueueStateRepository.GetReservation(ctx, key)
}

func (f *faultyStore) IncrPeriodCounter(ctx context.Context, queue string) (int64, error) {
	if f.failOn == "IncrPeriodCounter" {
		return 0, errBoom
	}
	return f.QueueStateRepository.IncrPeriodCounter(ctx, queue)
}

func (f *faultyStore) RefreshTTL(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	f.refreshTTL = ttl
	if f.failOn == "RefreshTTL" {
		return false, errBoom
	}
	return f.QueueStateRepository.RefreshTTL(ctx, key, ttl)
}
