package kafka

import "time"

// Events published BY the gate

type QueueReleasedEvent struct {
	QueueName   string    `json:"queue_name"`
	Amount      int64     `json:"amount"`
	Cursor      int64     `json:"cursor"`
	Source      string    `json:"source"` // http, grpc, kafka
	RequestedBy string    `json:"requested_by,omitempty"`
	ReleasedAt  time.Time `json:"released_at"`
	Timestamp   time.Time `json:"timestamp"`
}

// Commands consumed BY the gate

type QueueReleaseCommand struct {
	QueueName   string    `json:"queue_name"`
	Amount      int64     `json:"amount"`
	RequestedBy string    `json:"requested_by"`
	Timestamp   time.Time `json:"timestamp"`
}
