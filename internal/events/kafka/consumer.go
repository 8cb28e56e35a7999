package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sheikh-saqib/till-ledger/internal/models/events"
	"go.uber.org/zap"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// OrderEventHandler applies one inbound event. Permanent reports whether a
// failure will never succeed on redelivery.
type OrderEventHandler interface {
	Handle(ctx context.Context, event events.OrderEvent) error
	Permanent(err error) bool
}

// Consumer reads order events and hands them to a handler. Offsets are
// committed only after the handler is done with a message, so delivery is at
// least once. Transient failures are retried before moving on.
type Consumer struct {
	reader  messageReader
	handler OrderEventHandler
	logger  *zap.Logger

	retryDelay time.Duration
}

func NewConsumer(brokers []string, topic, groupID string, handler OrderEventHandler, logger *zap.Logger) *Consumer {
	return newConsumer(kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	}), handler, logger)
}

func newConsumer(reader messageReader, handler OrderEventHandler, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{reader: reader, handler: handler, logger: logger, retryDelay: time.Second}
}

// Run consumes until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		// a later commit would cover this offset too, so retry in place
		for !c.process(ctx, msg) {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.retryDelay):
			}
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("failed to commit offset",
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
		}
	}
}

// process reports whether the message is finished with and its offset may be
// committed.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) bool {
	var event events.OrderEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		c.logger.Warn("dropping malformed order event",
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
		return true
	}

	err := c.handler.Handle(ctx, event)
	if err == nil {
		return true
	}
	if c.handler.Permanent(err) {
		c.logger.Warn("order event rejected",
			zap.String("event_id", event.ID),
			zap.String("type", event.Type),
			zap.Error(err),
		)
		return true
	}
	c.logger.Error("order event failed, retrying",
		zap.String("event_id", event.ID),
		zap.String("type", event.Type),
		zap.Error(err),
	)
	return false
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
