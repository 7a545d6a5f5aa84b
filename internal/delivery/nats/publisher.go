package nats

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"
	"github.com/vogiaan1904/ticketbottle-gate/internal/models"
	"github.com/vogiaan1904/ticketbottle-gate/pkg/logger"
)

// Conn is the part of *nats.Conn the publisher needs.
type Conn interface {
	PublishMsg(m *nats.Msg) error
}

type Publisher struct {
	conn    Conn
	subject string
	l       logger.Logger
}

func NewPublisher(conn Conn, subject string, l logger.Logger) *Publisher {
	return &Publisher{
		conn:    conn,
		subject: subject,
		l:       l,
	}
}

// PublishRequestLog sends the entry on "<subject>.<queue>", or on the bare
// subject for requests that matched no queue.
func (p *Publisher) PublishRequestLog(ctx context.Context, e models.RequestLogEntry) error {
	data, err := json.Marshal(e)
	if err != nil {
		p.l.Errorf(ctx, "delivery.nats.Publisher.PublishRequestLog: %v", err)
		return err
	}

	subject := p.subject
	if e.QueueName != "" {
		subject += "." + e.QueueName
	}

	msg := nats.NewMsg(subject)
	msg.Data = data
	msg.Header.Set("decision", string(e.Decision))

	if err := p.conn.PublishMsg(msg); err != nil {
		p.l.Errorf(ctx, "delivery.nats.Publisher.PublishRequestLog: %v", err)
		return err
	}

	return nil
}
