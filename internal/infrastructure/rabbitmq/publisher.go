package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	"ev-marketplace/internal/domain"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	userEventsExchange       = "user.events"
	balanceUpdatedRoutingKey = "user.balance.updated.v1"
)

// Publisher emits domain facts to a durable topic exchange with persistent
// delivery. It keeps one connection and one channel for the process.
type Publisher struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewPublisher(url string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		userEventsExchange, // name
		"topic",            // kind
		true,               // durable
		false,              // auto-delete
		false,              // internal
		false,              // no-wait
		nil,                // args
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", userEventsExchange, err)
	}

	return &Publisher{conn: conn, ch: ch}, nil
}

func (p *Publisher) PublishUserBalanceUpdated(ctx context.Context, fact *domain.UserBalanceUpdated) error {
	body, err := json.Marshal(fact)
	if err != nil {
		return fmt.Errorf("marshal balance fact: %w", err)
	}

	err = p.ch.PublishWithContext(ctx,
		userEventsExchange,
		balanceUpdatedRoutingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("publish %s: %w", balanceUpdatedRoutingKey, err)
	}

	return nil
}

func (p *Publisher) Close() error {
	if err := p.ch.Close(); err != nil {
		return err
	}
	return p.conn.Close()
}
