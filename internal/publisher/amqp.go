package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/signalfx/sfx-forwarder-app/internal/metrics"
	"github.com/signalfx/sfx-forwarder-app/pkg/eventbus"
	"github.com/signalfx/sfx-forwarder-app/pkg/model"
)

// DefaultExchange is the topic exchange settings envelopes are published to;
// the routing key is the event type.
const DefaultExchange = "sfx.settings"

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher publishes settings envelopes to RabbitMQ.
type AMQPPublisher struct {
	conn     *amqp.Connection
	channel  amqpChannel
	exchange string
	logger   *zap.Logger
}

// NewAMQP dials url and declares the durable topic exchange.
func NewAMQP(url, exchange string, logger *zap.Logger) (*AMQPPublisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	p := newAMQP(channel, exchange, logger)
	p.conn = conn
	return p, nil
}

func newAMQP(channel amqpChannel, exchange string, logger *zap.Logger) *AMQPPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AMQPPublisher{channel: channel, exchange: exchange, logger: logger}
}

// Attach publishes every bus envelope.
func (p *AMQPPublisher) Attach(bus *eventbus.EventBus) {
	bus.Subscribe(eventbus.AllEvents, func(ctx context.Context, env *model.Envelope) {
		_ = p.PublishEnvelope(ctx, env)
	})
}

func (p *AMQPPublisher) PublishEnvelope(ctx context.Context, env *model.Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		p.logger.Error("amqp.marshal_failed", zap.Error(err))
		metrics.IncPublishError("amqp")
		return err
	}

	err = p.channel.PublishWithContext(
		ctx,
		p.exchange,
		env.EventType, // routing key
		false,         // mandatory
		false,         // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    env.ID.String(),
			Timestamp:    env.OccurredAt,
			Type:         env.EventType,
			Body:         body,
		},
	)
	if err != nil {
		p.logger.Error("amqp.publish_failed",
			zap.String("exchange", p.exchange),
			zap.String("event_type", env.EventType),
			zap.Error(err))
		metrics.IncPublishError("amqp")
		return err
	}

	p.logger.Debug("amqp.published", zap.String("exchange", p.exchange), zap.String("event_type", env.EventType))
	return nil
}

// Close closes the publisher
func (p *AMQPPublisher) Close() error {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
