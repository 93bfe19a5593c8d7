package eventbus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	nc "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// EventBus fans change notifications and module events out to subscribers.
type EventBus interface {
	Publish(ctx context.Context, topic string, msg *message.Message) error
	Subscribe(ctx context.Context, topic string, handler func(ctx context.Context, msg *message.Message) error) error

	// CreateStream ensures the broker stream covering subject exists.
	// Call it before the first Subscribe on any of the stream's topics.
	CreateStream(ctx context.Context, streamName string, subject string) error

	Close() error
}

var (
	_ EventBus = (*natsEventBus)(nil)
	_ EventBus = (*inProcessBus)(nil)
)

// natsEventBus implements EventBus on NATS JetStream.
type natsEventBus struct {
	publisher      message.Publisher
	subscriber     message.Subscriber
	js             jetstream.JetStream
	natsConn       *nc.Conn
	logger         *slog.Logger
	createdStreams map[string]bool
	streamMutex    sync.Mutex
}

// NewEventBus creates and returns an EventBus with a connection to NATS JetStream.
func NewEventBus(ctx context.Context, natsURL string, logger *slog.Logger) (EventBus, error) {
	natsConn, err := nc.Connect(natsURL)
	if err != nil {
		logger.Error("Failed to connect to NATS", slog.Any("error", err))
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(natsConn)
	if err != nil {
		natsConn.Close()
		logger.Error("Failed to initialize JetStream", slog.Any("error", err))
		return nil, fmt.Errorf("failed to initialize JetStream: %w", err)
	}

	// Create a Watermill logger that wraps slog
	watermillLogger := watermill.NewSlogLogger(logger)

	marshaller := &nats.NATSMarshaler{}

	publisher, err := nats.NewPublisher(
		nats.PublisherConfig{
			URL:       natsURL,
			Marshaler: marshaller,
			NatsOptions: []nc.Option{
				nc.RetryOnFailedConnect(true),
			},
		},
		watermillLogger,
	)
	if err != nil {
		natsConn.Close()
		logger.Error("Failed to create Watermill publisher", slog.Any("error", err))
		return nil, fmt.Errorf("failed to create Watermill publisher: %w", err)
	}

	subscriber, err := nats.NewSubscriber(
		nats.SubscriberConfig{
			URL:         natsURL,
			Unmarshaler: marshaller,
			NatsOptions: []nc.Option{
				nc.RetryOnFailedConnect(true),
			},
		},
		watermillLogger,
	)
	if err != nil {
		natsConn.Close()
		publisher.Close()
		logger.Error("Failed to create Watermill subscriber", slog.Any("error", err))
		return nil, fmt.Errorf("failed to create Watermill subscriber: %w", err)
	}

	return &natsEventBus{
		publisher:      publisher,
		subscriber:     subscriber,
		js:             js,
		natsConn:       natsConn,
		logger:         logger,
		createdStreams: make(map[string]bool),
	}, nil
}

func (eb *natsEventBus) Publish(ctx context.Context, topic string, msg *message.Message) error {
	if msg.UUID == "" {
		msg.UUID = watermill.NewUUID()
	}

	eb.logger.Debug("Publishing message",
		slog.String("topic", topic),
		slog.String("payload", string(msg.Payload)),
	)

	if err := eb.publisher.Publish(topic, msg); err != nil {
		eb.logger.Error("Failed to publish message",
			slog.String("topic", topic),
			slog.Any("error", err),
		)
		return fmt.Errorf("failed to publish message to %s: %w", topic, err)
	}

	return nil
}

func (eb *natsEventBus) Subscribe(ctx context.Context, topic string, handler func(ctx context.Context, msg *message.Message) error) error {
	eb.logger.Info("Subscribing to topic", slog.String("topic", topic))

	messages, err := eb.subscriber.Subscribe(ctx, topic)
	if err != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", topic, err)
	}

	go func() {
		for msg := range messages {
			if err := handler(ctx, msg); err != nil {
				eb.logger.Error("Handler error", slog.String("topic", topic), slog.Any("error", err))
				msg.Nack()
				continue
			}
			msg.Ack()
		}
	}()

	return nil
}

// CreateStream ensures a JetStream stream exists covering subject.
func (eb *natsEventBus) CreateStream(ctx context.Context, streamName string, subject string) error {
	eb.streamMutex.Lock()
	defer eb.streamMutex.Unlock()

	// Check if the stream was already created in this process
	if eb.createdStreams[streamName] {
		return nil
	}

	stream, err := eb.js.Stream(ctx, streamName)
	if err != nil && err != jetstream.ErrStreamNotFound {
		return fmt.Errorf("failed to check if stream exists: %w", err)
	}

	if err == jetstream.ErrStreamNotFound {
		_, err = eb.js.CreateStream(ctx, jetstream.StreamConfig{
			Name:     streamName,
			Subjects: []string{subject},
		})
		if err != nil {
			return fmt.Errorf("failed to create stream: %w", err)
		}
		eb.logger.Info("Stream created", slog.String("stream_name", streamName), slog.String("subject", subject))
	} else {
		streamInfo, err := stream.Info(ctx)
		if err != nil {
			return fmt.Errorf("failed to get stream info: %w", err)
		}

		found := false
		for _, existingSubject := range streamInfo.Config.Subjects {
			if existingSubject == subject {
				found = true
				break
			}
		}

		if !found {
			streamInfo.Config.Subjects = append(streamInfo.Config.Subjects, subject)
			_, err = eb.js.UpdateStream(ctx, streamInfo.Config)
			if err != nil {
				return fmt.Errorf("failed to update stream with new subject: %w", err)
			}
			eb.logger.Info("Stream updated with new subject", slog.String("stream_name", streamName), slog.String("subject", subject))
		}
	}

	eb.createdStreams[streamName] = true
	return nil
}

// Close closes all NATS and Watermill resources.
func (eb *natsEventBus) Close() error {
	if eb.publisher != nil {
		if err := eb.publisher.Close(); err != nil {
			eb.logger.Error("Error closing NATS publisher", slog.Any("error", err))
		}
	}
	if eb.subscriber != nil {
		if err := eb.subscriber.Close(); err != nil {
			eb.logger.Error("Error closing NATS subscriber", slog.Any("error", err))
		}
	}

	if eb.natsConn != nil {
		eb.natsConn.Close()
	}

	return nil
}

// inProcessBus implements EventBus on watermill's gochannel pubsub. Used
// by tests and single-process deployments.
type inProcessBus struct {
	pubsub *gochannel.GoChannel
	logger *slog.Logger
}

// NewInProcessBus returns an EventBus backed by an in-memory channel.
func NewInProcessBus(logger *slog.Logger) EventBus {
	return &inProcessBus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{}, watermill.NewSlogLogger(logger)),
		logger: logger,
	}
}

func (b *inProcessBus) Publish(ctx context.Context, topic string, msg *message.Message) error {
	if msg.UUID == "" {
		msg.UUID = watermill.NewUUID()
	}
	return b.pubsub.Publish(topic, msg)
}

func (b *inProcessBus) Subscribe(ctx context.Context, topic string, handler func(ctx context.Context, msg *message.Message) error) error {
	messages, err := b.pubsub.Subscribe(ctx, topic)
	if err != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", topic, err)
	}

	go func() {
		for msg := range messages {
			if err := handler(ctx, msg); err != nil {
				b.logger.Error("Handler error", slog.String("topic", topic), slog.Any("error", err))
				msg.Nack()
				continue
			}
			msg.Ack()
		}
	}()

	return nil
}

// CreateStream is a no-op: the in-memory channel has no broker streams.
func (b *inProcessBus) CreateStream(ctx context.Context, streamName string, subject string) error {
	return nil
}

func (b *inProcessBus) Close() error {
	return b.pubsub.Close()
}
