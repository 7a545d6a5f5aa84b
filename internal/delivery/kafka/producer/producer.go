package producer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	kafka "github.com/vogiaan1904/ticketbottle-gate/internal/delivery/kafka"
	"github.com/vogiaan1904/ticketbottle-gate/internal/models"
	"github.com/vogiaan1904/ticketbottle-gate/pkg/logger"
)

type Producer interface {
	PublishRequestLog(ctx context.Context, entry models.RequestLogEntry) error
	PublishQueueReleased(ctx context.Context, event kafka.QueueReleasedEvent) error
	Close() error
}

type Topics struct {
	RequestLog    string
	QueueReleased string
}

func DefaultTopics() Topics {
	return Topics{
		RequestLog:    kafka.TopicRequestLog,
		QueueReleased: kafka.TopicQueueReleased,
	}
}

type implProducer struct {
	l      logger.Logger
	prod   sarama.SyncProducer
	topics Topics
}

func NewProducer(prod sarama.SyncProducer, topics Topics, l logger.Logger) Producer {
	return &implProducer{
		l:      l,
		prod:   prod,
		topics: topics,
	}
}

func (p *implProducer) PublishRequestLog(ctx context.Context, entry models.RequestLogEntry) error {
	val, err := json.Marshal(entry)
	if err != nil {
		p.l.Errorf(ctx, "delivery.kafka.producer.PublishRequestLog: %v", err)
		return err
	}

	return p.send(p.topics.RequestLog, entry.QueueName, val)
}

func (p *implProducer) PublishQueueReleased(ctx context.Context, event kafka.QueueReleasedEvent) error {
	event.Timestamp = time.Now()
	val, err := json.Marshal(event)
	if err != nil {
		p.l.Errorf(ctx, "delivery.kafka.producer.PublishQueueReleased: %v", err)
		return err
	}

	return p.send(p.topics.QueueReleased, event.QueueName, val)
}

// send partitions by queue name so events for one queue stay ordered.
func (p *implProducer) send(topic, key string, val []byte) error {
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(val),
		Headers: []sarama.RecordHeader{
			{
				Key:   []byte("timestamp"),
				Value: []byte(time.Now().Format(time.RFC3339)),
			},
		},
	}

	_, _, err := p.prod.SendMessage(msg)
	return err
}

func (p *implProducer) Close() error {
	if err := p.prod.Close(); err != nil {
		return err
	}

	return nil
}

type noopProducer struct{}

// NewNoopProducer is used when Kafka is disabled.
func NewNoopProducer() Producer {
	return noopProducer{}
}

func (noopProducer) PublishRequestLog(context.Context, models.RequestLogEntry) error { return nil }

func (noopProducer) PublishQueueReleased(context.Context, kafka.QueueReleasedEvent) error {
	return nil
}

func (noopProducer) Close() error { return nil }
