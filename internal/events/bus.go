// Package events carries identity lifecycle deliveries from the webhook
// endpoint to the identity service through an in-process message router.
package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"wanderfeed/internal/middleware"
	"wanderfeed/internal/models"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	wmmiddleware "github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
)

// TopicIdentity carries identity lifecycle events.
const TopicIdentity = "identity.events"

// IdentityHandler applies identity lifecycle events.
type IdentityHandler interface {
	HandleIdentityEvent(ctx context.Context, ev models.IdentityEvent) error
}

// BusConfig tunes retry and deduplication.
type BusConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	DedupWindow     time.Duration
	BufferSize      int64
}

// DefaultBusConfig returns production defaults.
func DefaultBusConfig() BusConfig {
	return BusConfig{
		MaxRetries:      3,
		InitialInterval: 200 * time.Millisecond,
		DedupWindow:     10 * time.Minute,
		BufferSize:      256,
	}
}

// Bus is an in-memory pub/sub with one consuming router.
type Bus struct {
	pubsub *gochannel.GoChannel
	router *message.Router
}

// NewBus builds the pub/sub and router and registers handler on
// TopicIdentity. Call Run to start consuming.
func NewBus(cfg BusConfig, handler IdentityHandler) (*Bus, error) {
	logger := watermill.NewSlogLogger(middleware.Logger)

	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: cfg.BufferSize,
	}, logger)

	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: 10 * time.Second}, logger)
	if err != nil {
		return nil, fmt.Errorf("create router: %w", err)
	}

	router.AddMiddleware(wmmiddleware.Recoverer)
	if cfg.DedupWindow > 0 {
		repo, err := wmmiddleware.NewMapExpiringKeyRepository(cfg.DedupWindow)
		if err != nil {
			return nil, fmt.Errorf("create dedup repository: %w", err)
		}
		dedup := wmmiddleware.Deduplicator{
			KeyFactory: func(msg *message.Message) (string, error) { return msg.UUID, nil },
			Repository: repo,
		}
		router.AddMiddleware(dedup.Middleware)
	}

	// Retries sit inside deduplication so a retried attempt is not dropped.
	retry := wmmiddleware.Retry{
		MaxRetries:      cfg.MaxRetries,
		InitialInterval: cfg.InitialInterval,
		MaxInterval:     5 * time.Second,
		Multiplier:      2,
		Logger:          logger,
	}
	router.AddMiddleware(retry.Middleware)

	router.AddConsumerHandler("identity-events", TopicIdentity, pubsub, identityConsumer(handler))

	return &Bus{pubsub: pubsub, router: router}, nil
}

// identityConsumer decodes and applies one event. Payloads that can never
// succeed are acknowledged so they are not retried.
func identityConsumer(handler IdentityHandler) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		ctx := msg.Context()
		var ev models.IdentityEvent
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			middleware.Logger.WarnContext(ctx, "dropping malformed identity event",
				slog.String("message_id", msg.UUID),
				slog.String("error", err.Error()),
			)
			return nil
		}
		err := handler.HandleIdentityEvent(ctx, ev)
		if models.ErrorCode(err) == models.CodeValidation {
			middleware.Logger.WarnContext(ctx, "dropping invalid identity event",
				slog.String("message_id", msg.UUID),
				slog.String("type", ev.Type),
				slog.String("error", err.Error()),
			)
			return nil
		}
		return err
	}
}

// PublishIdentityEvent enqueues a raw event body. deliveryID deduplicates
// provider retries; an empty id gets a fresh one.
func (b *Bus) PublishIdentityEvent(ctx context.Context, deliveryID string, payload []byte) error {
	if deliveryID == "" {
		deliveryID = watermill.NewUUID()
	}
	msg := message.NewMessage(deliveryID, payload)
	if rid, ok := ctx.Value(middleware.RequestIDKey).(string); ok {
		msg.Metadata.Set("request_id", rid)
	}
	return b.pubsub.Publish(TopicIdentity, msg)
}

// Run consumes until ctx is cancelled or Close is called.
func (b *Bus) Run(ctx context.Context) error {
	return b.router.Run(ctx)
}

// Running is closed once the router is consuming.
func (b *Bus) Running() chan struct{} {
	return b.router.Running()
}

// Close stops the router and the pub/sub.
func (b *Bus) Close() error {
	return errors.Join(b.router.Close(), b.pubsub.Close())
}
