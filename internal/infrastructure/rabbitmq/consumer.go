package rabbitmq

import (
	"context"
	"fmt"

	"ev-marketplace/internal/domain"
	"ev-marketplace/pkg/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	deadLetterExchange = "user.events.dlx"
	deadLetterQueue    = "user.events.dlq"
)

// MessageHandler processes one delivery body and decides its fate.
type MessageHandler func(ctx context.Context, body []byte) domain.SyncDecision

// Consumer runs a long-lived subscription on a durable queue bound to the
// user events exchange. Deliveries are acknowledged manually, only after
// the handler returns; the loop exits when the context is cancelled,
// leaving unacked messages for redelivery.
type Consumer struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
	log   logger.Logger
}

func NewConsumer(url, queue string, prefetch int, log logger.Logger) (*Consumer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declareTopology(ch, queue); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	if err := ch.Qos(prefetch, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}

	return &Consumer{conn: conn, ch: ch, queue: queue, log: log}, nil
}

func declareTopology(ch *amqp.Channel, queue string) error {
	if err := ch.ExchangeDeclare(userEventsExchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", userEventsExchange, err)
	}

	// Dead-letter destination for payloads that can never be applied.
	if err := ch.ExchangeDeclare(deadLetterExchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", deadLetterExchange, err)
	}
	if _, err := ch.QueueDeclare(deadLetterQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", deadLetterQueue, err)
	}
	if err := ch.QueueBind(deadLetterQueue, "#", deadLetterExchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", deadLetterQueue, err)
	}

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}
	if err := ch.QueueBind(queue, balanceUpdatedRoutingKey, userEventsExchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", queue, err)
	}

	return nil
}

func (c *Consumer) Start(ctx context.Context, handler MessageHandler) error {
	deliveries, err := c.ch.Consume(
		c.queue,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}

	c.log.Info("Consuming balance facts", "queue", c.queue)

	for {
		select {
		case <-ctx.Done():
			c.log.Info("Consumer stopped")
			return ctx.Err()

		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			c.settle(ctx, d, handler(ctx, d.Body))
		}
	}
}

func (c *Consumer) settle(ctx context.Context, d amqp.Delivery, decision domain.SyncDecision) {
	var err error

	switch decision {
	case domain.SyncAck:
		err = d.Ack(false)

	case domain.SyncRequeue:
		err = d.Nack(false, true)

	case domain.SyncDeadLetter:
		err = c.ch.PublishWithContext(ctx,
			deadLetterExchange, d.RoutingKey, false, false,
			amqp.Publishing{
				ContentType:  d.ContentType,
				DeliveryMode: amqp.Persistent,
				Body:         d.Body,
			})
		if err == nil {
			err = d.Ack(false)
		}

	default:
		err = d.Nack(false, true)
	}

	if err != nil {
		c.log.Error("Failed to settle delivery", "decision", decision.String(), "error", err)
	}
}

func (c *Consumer) Close() error {
	if err := c.ch.Close(); err != nil {
		return err
	}
	return c.conn.Close()
}
