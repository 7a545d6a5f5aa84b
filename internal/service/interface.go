package service

import (
	"context"

	"github.com/vogiaan1904/ticketbottle-gate/internal/models"
	repo "github.com/vogiaan1904/ticketbottle-gate/internal/repository/redis"
)

// AdmissionService evaluates one request against one queue.
type AdmissionService interface {
	Admit(ctx context.Context, in AdmitInput) *models.GateDecision
}

// ReleaseService runs the automatic release step.
type ReleaseService interface {
	// Tick counts the request in the current period. The request that opens a
	// period advances the cursor by the queue's quantity and gets advanced=true
	// with the new cursor.
	Tick(ctx context.Context, cfg *models.QueueConfig, store repo.QueueStateRepository) (cursor int64, advanced bool, err error)
}

type ConfigService interface {
	GlobalConfig(ctx context.Context) (*models.GlobalConfig, error)
	// EnsureGlobalConfig returns the global record, writing the defaults first
	// when none exists.
	EnsureGlobalConfig(ctx context.Context) (*models.GlobalConfig, error)
	RouteQueue(ctx context.Context, global *models.GlobalConfig, path string) (string, bool)
	IsWhitelisted(global *models.GlobalConfig, path string) bool
	ResolveQueue(ctx context.Context, global *models.GlobalConfig, name string) (*models.QueueConfig, error)
	WriteGlobalConfig(ctx context.Context, cfg *models.GlobalConfig) error
	WriteQueueRecord(ctx context.Context, rec *models.QueueRecord) error
	QueueRecord(ctx context.Context, name string) (*models.QueueRecord, error)
}

type AdminService interface {
	Release(ctx context.Context, in ReleaseInput) (*ReleaseOutput, error)
	Stats(ctx context.Context, queue string) (*models.QueueStats, error)
	GlobalConfig(ctx context.Context) (*models.GlobalConfig, error)
	UpdateGlobalConfig(ctx context.Context, patch map[string]string) (*models.GlobalConfig, error)
}

type RequestLogService interface {
	// Log records the entry and queues it for the configured sinks. It never blocks on a sink.
	Log(ctx context.Context, entry models.RequestLogEntry)
	// Run drains queued entries to the sinks until ctx is done.
	Run(ctx context.Context) error
}

// StoreProvider returns the queue state store a queue's config points at.
type StoreProvider interface {
	Store(ctx context.Context, cfg *models.QueueConfig) (repo.QueueStateRepository, error)
}

// RequestLogPublisher is one request log sink.
type RequestLogPublisher interface {
	PublishRequestLog(ctx context.Context, entry models.RequestLogEntry) error
}
