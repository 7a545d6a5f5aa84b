package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/vogiaan1904/ticketbottle-gate/internal/models"
	repo "github.com/vogiaan1904/ticketbottle-gate/internal/repository/redis"
)

// configRepository keeps records JSON-encoded so callers never share
// mutable state with the store.
type configRepository struct {
	mu      sync.RWMutex
	global  []byte
	queues  map[string][]byte
	secrets map[string]string
	pages   map[string]string
}

func NewConfigRepository() repo.ConfigRepository {
	return &configRepository{
		queues:  make(map[string][]byte),
		secrets: make(map[string]string),
		pages:   make(map[string]string),
	}
}

func (r *configRepository) GetGlobal(ctx context.Context) (*models.GlobalConfig, error) {
	r.mu.RLock()
	data := r.global
	r.mu.RUnlock()

	if data == nil {
		return nil, fmt.Errorf("%w: global config", repo.ErrNotFound)
	}

	var cfg models.GlobalConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", repo.ErrUnexpectedValue, err)
	}

	return &cfg, nil
}

func (r *configRepository) SetGlobal(ctx context.Context, cfg *models.GlobalConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal global config: %w", err)
	}

	r.mu.Lock()
	r.global = data
	r.mu.Unlock()
	return nil
}

func (r *configRepository) GetQueue(ctx context.Context, name string) (*models.QueueRecord, error) {
	r.mu.RLock()
	data, ok := r.queues[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: queue %s", repo.ErrNotFound, name)
	}

	var rec models.QueueRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", repo.ErrUnexpectedValue, err)
	}
	if rec.QueueName == "" {
		rec.QueueName = name
	}

	return &rec, nil
}

func (r *configRepository) SetQueue(ctx context.Context, rec *models.QueueRecord) error {
	if rec.QueueName == "" {
		return fmt.Errorf("queue record has no name")
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal queue config: %w", err)
	}

	r.mu.Lock()
	r.queues[rec.QueueName] = data
	r.mu.Unlock()
	return nil
}

func (r *configRepository) GetSecret(ctx context.Context, name string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.secrets[name]
	if !ok {
		return "", fmt.Errorf("%w: secret %s", repo.ErrNotFound, name)
	}
	return v, nil
}

func (r *configRepository) SetSecret(ctx context.Context, name, value string) error {
	r.mu.Lock()
	r.secrets[name] = value
	r.mu.Unlock()
	return nil
}

func (r *configRepository) GetPage(ctx context.Context, name string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.pages[name]
	if !ok {
		return "", fmt.Errorf("%w: page %s", repo.ErrNotFound, name)
	}
	return v, nil
}

func (r *configRepository) SetPage(ctx context.Context, name, body string) error {
	r.mu.Lock()
	r.pages[name] = body
	r.mu.Unlock()
	return nil
}
