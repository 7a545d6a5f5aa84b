package service

import (
	"context"
	"time"

	"github.com/vogiaan1904/ticketbottle-gate/internal/models"
	repo "github.com/vogiaan1904/ticketbottle-gate/internal/repository/redis"
)

type AdmitInput struct {
	Queue *models.QueueConfig
	Store repo.QueueStateRepository
	// Token is the raw ticket cookie value, empty when none was presented.
	Token   string
	Country string
}

type ReleaseInput struct {
	QueueName   string
	Amount      int64
	Source      string
	RequestedBy string
}

type ReleaseOutput struct {
	QueueName  string    `json:"queue_name"`
	Amount     int64     `json:"amount"`
	Cursor     int64     `json:"cursor"`
	ReleasedAt time.Time `json:"released_at"`
}

// StaticStoreProvider serves every queue from the same store.
type StaticStoreProvider struct {
	Repo repo.QueueStateRepository
}

func (p StaticStoreProvider) Store(context.Context, *models.QueueConfig) (repo.QueueStateRepository, error) {
	return p.Repo, nil
}
