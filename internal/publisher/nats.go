package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/signalfx/sfx-forwarder-app/internal/metrics"
	"github.com/signalfx/sfx-forwarder-app/pkg/eventbus"
	"github.com/signalfx/sfx-forwarder-app/pkg/model"
)

// DefaultSubject carries every settings envelope.
const DefaultSubject = "evt.sfx.settings"

// Header names set on every published message.
const (
	HeaderEventType = "event_type"
	HeaderInstance  = "instance"
	HeaderService   = "service"
)

// jetStream is the part of nats.JetStreamContext the publisher uses.
type jetStream interface {
	PublishMsg(msg *nats.Msg, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// NATSPublisher sends settings envelopes to JetStream.
type NATSPublisher struct {
	nc       *nats.Conn
	js       jetStream
	subject  string
	service  string
	instance string
	logger   *zap.Logger
}

// NewNATS creates a publisher with JetStream enabled.
func NewNATS(nc *nats.Conn, subject, service, instance string, logger *zap.Logger) (*NATSPublisher, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, err
	}
	p := newNATS(js, subject, service, instance, logger)
	p.nc = nc
	return p, nil
}

func newNATS(js jetStream, subject, service, instance string, logger *zap.Logger) *NATSPublisher {
	if subject == "" {
		subject = DefaultSubject
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NATSPublisher{js: js, subject: subject, service: service, instance: instance, logger: logger}
}

// Attach publishes every bus envelope.
func (p *NATSPublisher) Attach(bus *eventbus.EventBus) {
	bus.Subscribe(eventbus.AllEvents, func(ctx context.Context, env *model.Envelope) {
		_ = p.PublishEnvelope(ctx, env)
	})
}

// PublishEnvelope serializes env and publishes it on the settings subject.
func (p *NATSPublisher) PublishEnvelope(_ context.Context, env *model.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		p.logger.Error("publisher.marshal_failed", zap.String("event_type", env.EventType), zap.Error(err))
		metrics.IncPublishError("nats")
		return err
	}

	msg := &nats.Msg{
		Subject: p.subject,
		Data:    data,
		Header: nats.Header{
			HeaderEventType: []string{env.EventType},
			HeaderInstance:  []string{p.instance},
			HeaderService:   []string{p.service},
			"content_type":  []string{"application/json"},
			nats.MsgIdHdr:   []string{env.ID.String()},
		},
	}

	start := time.Now()
	if _, err := p.js.PublishMsg(msg); err != nil {
		p.logger.Error("publisher.publish_failed",
			zap.String("subject", p.subject),
			zap.String("event_type", env.EventType),
			zap.Error(err))
		metrics.IncPublishError("nats")
		return err
	}

	p.logger.Info("publisher.publish_success",
		zap.String("subject", p.subject),
		zap.String("event_type", env.EventType),
		zap.Duration("latency", time.Since(start)))
	return nil
}

// SubscribeInvalidations calls invalidate whenever another instance reports
// a saved settings change.
func (p *NATSPublisher) SubscribeInvalidations(invalidate func()) (*nats.Subscription, error) {
	return p.nc.Subscribe(p.subject, invalidationHandler(p.instance, invalidate, p.logger))
}

func invalidationHandler(instance string, invalidate func(), logger *zap.Logger) nats.MsgHandler {
	return func(msg *nats.Msg) {
		if msg.Header.Get(HeaderEventType) != model.EventSettingsSaved {
			return
		}
		if msg.Header.Get(HeaderInstance) == instance {
			return
		}
		logger.Info("publisher.remote_settings_saved",
			zap.String("from", msg.Header.Get(HeaderInstance)))
		invalidate()
	}
}

// Close closes the NATS connection.
func (p *NATSPublisher) Close() {
	if p.nc != nil && p.nc.IsConnected() {
		p.nc.Close()
	}
}
