package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"
)

// SubjectPrefix is prepended to the event type to form the NATS subject.
const SubjectPrefix = "railtrace.components."

// NATSConfig NATS 连接配置
type NATSConfig struct {
	URL    string `mapstructure:"url"`
	Stream string `mapstructure:"stream"`
}

// NATSPublisher publishes lifecycle events to a JetStream stream.
type NATSPublisher struct {
	js     jetstream.JetStream
	stream string
}

func NewNATSPublisher(js jetstream.JetStream, stream string) *NATSPublisher {
	return &NATSPublisher{js: js, stream: stream}
}

// ConnectNATS dials NATS, ensures the stream exists and returns a publisher.
func ConnectNATS(ctx context.Context, cfg NATSConfig, logger *zap.Logger) (*NATSPublisher, *nats.Conn, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name("railtrace"),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("connect nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("create jetstream context: %w", err)
	}

	if _, err := js.Stream(ctx, cfg.Stream); err != nil {
		_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
			Name:     cfg.Stream,
			Subjects: []string{SubjectPrefix + ">"},
		})
		if err != nil {
			nc.Close()
			return nil, nil, fmt.Errorf("create or get stream %s: %w", cfg.Stream, err)
		}
	}

	return NewNATSPublisher(js, cfg.Stream), nc, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", e.Type, err)
	}
	if _, err := p.js.Publish(ctx, SubjectPrefix+e.Type, data, jetstream.WithMsgID(e.ID), jetstream.WithExpectStream(p.stream)); err != nil {
		return fmt.Errorf("publish %s event: %w", e.Type, err)
	}
	return nil
}
