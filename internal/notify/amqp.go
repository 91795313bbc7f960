package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"dispatch-service/internal/model"
)

const assignmentRoutingPrefix = "driver.assignment."

// AMQPPublisher pushes offers onto a topic exchange, one routing key per driver.
type AMQPPublisher struct {
	conn     *amqp091.Connection
	exchange string
	log      zerolog.Logger
}

// DialAMQP connects to the broker and declares the exchange.
func DialAMQP(url, exchange string, log zerolog.Logger) (*AMQPPublisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	log.Info().Str("exchange", exchange).Msg("connected to RabbitMQ")
	return &AMQPPublisher{conn: conn, exchange: exchange, log: log}, nil
}

func (p *AMQPPublisher) NotifyAssignment(ctx context.Context, n model.AssignmentNotification) error {
	routingKey, msg, err := buildPublishing(n, time.Now().UTC())
	if err != nil {
		return err
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	p.log.Debug().
		Str("routing_key", routingKey).
		Str("assignment_id", n.AssignmentID.String()).
		Msg("assignment published")
	return nil
}

func (p *AMQPPublisher) Close() error {
	return p.conn.Close()
}

func buildPublishing(n model.AssignmentNotification, now time.Time) (string, amqp091.Publishing, error) {
	body, err := json.Marshal(n)
	if err != nil {
		return "", amqp091.Publishing{}, fmt.Errorf("failed to marshal message: %w", err)
	}
	msg := amqp091.Publishing{
		ContentType:  "application/json",
		MessageId:    n.AssignmentID.String(),
		Body:         body,
		Timestamp:    now,
		DeliveryMode: amqp091.Persistent,
	}
	if !n.ExpiresAt.IsZero() && n.ExpiresAt.After(now) {
		// the offer is worthless once it can no longer be accepted
		msg.Expiration = strconv.FormatInt(n.ExpiresAt.Sub(now).Milliseconds(), 10)
	}
	return assignmentRoutingPrefix + n.DriverID.String(), msg, nil
}
