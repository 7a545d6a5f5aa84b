package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vogiaan1904/ticketbottle-gate/internal/models"
)

var (
	// ErrNotFound is returned when a config, secret or page record is absent.
	ErrNotFound = errors.New("record not found")
	// ErrUnexpectedValue is returned when a stored value cannot be decoded.
	ErrUnexpectedValue = errors.New("unexpected stored value")
)

// QueueStateRepository holds the per-queue counters and reservations. Every
// method is a single atomic store operation; callers never combine them into
// transactions.
type QueueStateRepository interface {
	GetCursor(ctx context.Context, queue string) (int64, error)
	// IncrCursor adds amt to the cursor and returns the new value. An amt of
	// zero returns 0 without touching the store.
	IncrCursor(ctx context.Context, queue string, amt int64) (int64, error)
	GetLength(ctx context.Context, queue string) (int64, error)
	IncrLength(ctx context.Context, queue string) (int64, error)

	// ReserveIfAbsent stores position under key only if key does not exist.
	ReserveIfAbsent(ctx context.Context, key string, position int64, ttl time.Duration) (bool, error)
	// GetReservation returns the stored position and false when the key is absent.
	GetReservation(ctx context.Context, key string) (int64, bool, error)
	// RefreshTTL resets the expiry of an existing key. It returns false when the key is absent.
	RefreshTTL(ctx context.Context, key string, ttl time.Duration) (bool, error)

	IncrPeriodCounter(ctx context.Context, queue string) (int64, error)
	ExpireAfter(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// ConfigRepository stores the global record, per-queue overrides, secrets
// (signing keys, store tokens) and page templates.
type ConfigRepository interface {
	GetGlobal(ctx context.Context) (*models.GlobalConfig, error)
	SetGlobal(ctx context.Context, cfg *models.GlobalConfig) error
	GetQueue(ctx context.Context, name string) (*models.QueueRecord, error)
	SetQueue(ctx context.Context, rec *models.QueueRecord) error
	GetSecret(ctx context.Context, name string) (string, error)
	SetSecret(ctx context.Context, name, value string) error
	GetPage(ctx context.Context, name string) (string, error)
	SetPage(ctx context.Context, name, body string) error
}

func CursorKey(queue string) string {
	return fmt.Sprintf("%s:cursor", queue)
}

func LengthKey(queue string) string {
	return fmt.Sprintf("%s:length", queue)
}

func PeriodKey(queue string) string {
	return fmt.Sprintf("%s:auto", queue)
}

func ReservationKey(queue, visitorID string) string {
	return fmt.Sprintf("%s:QP:%s", queue, visitorID)
}
