package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"mailroom/pkg/metrics"
	"mailroom/pkg/util"
)

type MessageHandler func(ctx context.Context, data json.RawMessage) error

// permanentError is implemented by errors that must not be redelivered
// (e.g. malformed payloads). Such deliveries go to the DLQ instead of
// being requeued.
type permanentError interface {
	Permanent() bool
}

const (
	prefetchCount   = 50
	maxRedeliveries = 5
)

type Consumer struct {
	channel    *amqp091.Channel
	queue      amqp091.Queue
	routingKey string
	handler    MessageHandler
	conn       *amqp091.Connection
	dlq        *Publisher
	retries    *util.RetryCounter
	logger     *zap.Logger
}

// NewConsumer creates a consumer for a specific queue bound to a routing key.
// The retry counter is optional; without it transient failures are requeued
// indefinitely and redelivery capping is left to the broker.
func NewConsumer(url, queueName, routingKey string, retries *util.RetryCounter, logger *zap.Logger) (*Consumer, error) {
	conn, err := NewConnection(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := DeclareExchange(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	// 限制未确认消息数量（有界并发）
	if err := ch.Qos(prefetchCount, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	q, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	err = ch.QueueBind(
		q.Name,
		routingKey,
		ExchangeName,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to bind queue: %w", err)
	}

	dlq, err := NewPublisher(url)
	if err != nil {
		return nil, fmt.Errorf("failed to init DLQ publisher: %w", err)
	}
	if err := DeclareDLQExchange(dlq.channel); err != nil {
		return nil, fmt.Errorf("failed to declare DLQ exchange: %w", err)
	}
	if _, err := DeclareDLQQueue(dlq.channel, routingKey); err != nil {
		return nil, err
	}

	logger.Info("Consumer initialized",
		zap.String("routing_key", routingKey),
		zap.String("queue", queueName),
		zap.String("exchange", ExchangeName),
	)

	return &Consumer{
		conn:       conn,
		channel:    ch,
		queue:      q,
		routingKey: routingKey,
		dlq:        dlq,
		retries:    retries,
		logger:     logger,
	}, nil
}

func (c *Consumer) SetHandler(h MessageHandler) {
	c.handler = h
}

func (c *Consumer) IsConnected() bool {
	return c.conn != nil && !c.conn.IsClosed()
}

func (c *Consumer) Close() {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
	if c.dlq != nil {
		c.dlq.Close()
	}
}

// StartConsuming starts consuming messages. This method blocks and should be
// called in a goroutine.
func (c *Consumer) StartConsuming() error {
	if c.handler == nil {
		return fmt.Errorf("consumer handler not set")
	}

	deliveries, err := c.channel.Consume(
		c.queue.Name,
		"mailroom",
		false, // 手动ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("Consumer started consuming messages",
		zap.String("routing_key", c.routingKey),
		zap.String("queue", c.queue.Name),
	)

	// 最安全的消费模型：保证每条消息都会被 ack 或 nack
	for msg := range deliveries {
		c.consumeOne(msg)
	}

	return nil
}

func (c *Consumer) consumeOne(msg amqp091.Delivery) {
	ctx := context.Background()
	start := time.Now()

	// Panic 恢复：确保即使 handler panic 也能正确处理消息
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Handler panic recovered",
				zap.String("routing_key", c.routingKey),
				zap.String("queue", c.queue.Name),
				zap.Any("panic", r),
			)
			if err := msg.Nack(false, true); err != nil {
				c.logger.Error("Failed to nack message after panic",
					zap.String("routing_key", c.routingKey),
					zap.Error(err),
				)
			}
		}
	}()

	err := c.handler(ctx, msg.Body)
	metrics.RecordMQConsumeLatency(c.routingKey, c.queue.Name, time.Since(start))

	if err == nil {
		if err := msg.Ack(false); err != nil {
			c.logger.Error("Failed to ack message",
				zap.String("routing_key", c.routingKey),
				zap.Error(err),
			)
		}
		return
	}

	var perm permanentError
	if errors.As(err, &perm) && perm.Permanent() {
		// 不可重试 → 进 DLQ，拒绝且不重新入队
		c.logger.Error("Handler rejected message (non-retryable, sending to DLQ)",
			zap.String("routing_key", c.routingKey),
			zap.String("queue", c.queue.Name),
			zap.Error(err),
		)
		c.deadLetter(ctx, msg, err)
		return
	}

	// 可重试：有界重投
	if c.retries != nil {
		key := util.RetryKeyForPayload(c.queue.Name, msg.Body)
		count, cntErr := c.retries.IncrementAndGet(ctx, key)
		if cntErr == nil && count > maxRedeliveries {
			c.logger.Warn("Max redeliveries exceeded, sending to DLQ",
				zap.String("routing_key", c.routingKey),
				zap.Int64("redeliveries", count),
				zap.Error(err),
			)
			c.deadLetter(ctx, msg, err)
			_ = c.retries.Reset(ctx, key)
			return
		}
	}

	c.logger.Error("Handler error, requeueing",
		zap.String("routing_key", c.routingKey),
		zap.String("queue", c.queue.Name),
		zap.Error(err),
	)
	if err := msg.Nack(false, true); err != nil {
		c.logger.Error("Failed to nack message",
			zap.String("routing_key", c.routingKey),
			zap.Error(err),
		)
	}
}

func (c *Consumer) deadLetter(ctx context.Context, msg amqp091.Delivery, cause error) {
	if err := c.dlq.PublishToDLQ(ctx, c.routingKey, msg.Body, cause.Error()); err != nil {
		c.logger.Error("Failed to publish to DLQ",
			zap.String("routing_key", c.routingKey),
			zap.Error(err),
		)
	}
	if err := msg.Nack(false, false); err != nil {
		c.logger.Error("Failed to nack message",
			zap.String("routing_key", c.routingKey),
			zap.Error(err),
		)
	}
}
