package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ms-booking/internal/logger"
	"ms-booking/internal/models"

	"github.com/segmentio/kafka-go"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader messageReader
	topic  string
	logger *logger.Logger
}

// NewConsumer creates a new Kafka consumer for the given topic and group
func NewConsumer(brokers []string, topic, groupID string, log *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{reader: reader, topic: topic, logger: log}
}

// Start reads notifications until ctx is cancelled. Every message is
// committed once handled, including ones that fail to decode or whose
// handler errors, so a poison message cannot stall the group.
func (c *Consumer) Start(ctx context.Context, handler func(ctx context.Context, n models.Notification) error) error {
	c.logger.LogKafka("CONSUMER_START", c.topic, "consuming notifications")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			c.logger.LogKafka("READ_FAILED", c.topic, err.Error())
			return fmt.Errorf("fetch from %s: %w", c.topic, err)
		}

		var n models.Notification
		if err := json.Unmarshal(msg.Value, &n); err != nil {
			c.logger.LogKafka("DECODE_FAILED", c.topic, fmt.Sprintf("offset=%d: %v", msg.Offset, err))
		} else if err := handler(ctx, n); err != nil {
			c.logger.LogKafka("HANDLER_FAILED", c.topic, fmt.Sprintf("%s for %s: %v", n.Kind, n.UserID, err))
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.LogKafka("COMMIT_FAILED", c.topic, err.Error())
		}
	}
}

// Close gracefully shuts down the Kafka reader
func (c *Consumer) Close() error {
	return c.reader.Close()
}
