package consumer

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/IBM/sarama"
	"github.com/vogiaan1904/ticketbottle-gate/internal/delivery/kafka"
	"github.com/vogiaan1904/ticketbottle-gate/internal/service"
)

// HandleQueueRelease applies one release command. Commands that can never
// succeed (bad payload, unknown queue, bad amount) are logged and acknowledged.
func (c *Consumer) HandleQueueRelease(ctx context.Context, message *sarama.ConsumerMessage) error {
	c.l.Info(ctx, "HandleQueueRelease consumed")

	var cmd kafka.QueueReleaseCommand
	if err := json.Unmarshal(message.Value, &cmd); err != nil {
		c.l.Errorf(ctx, "delivery.kafka.consumer.handlers.HandleQueueRelease: %v", err)
		return nil
	}

	if cmd.QueueName == "" && len(message.Key) > 0 {
		cmd.QueueName = string(message.Key)
	}

	out, err := c.adminSvc.Release(ctx, service.ReleaseInput{
		QueueName:   cmd.QueueName,
		Amount:      cmd.Amount,
		Source:      kafka.ReleaseSourceKafka,
		RequestedBy: cmd.RequestedBy,
	})
	if err != nil {
		c.l.Errorf(ctx, "delivery.kafka.consumer.handlers.HandleQueueRelease: %v", err)
		if errors.Is(err, service.ErrInvalidAmount) || errors.Is(err, service.ErrConfigNotFound) {
			return nil
		}
		return err
	}

	c.l.Infof(ctx, "Released %d visitors from queue=%s cursor=%d", out.Amount, out.QueueName, out.Cursor)

	return nil
}
