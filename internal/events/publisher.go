package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/amar74/n-be-sub001/internal/logger"
)

// asyncPublishTimeout is the context timeout for async publish operations.
const asyncPublishTimeout = 5 * time.Second

// Publisher publishes pipeline events to Redis Streams. A nil Publisher is a
// no-op, so callers never branch on whether events are configured.
type Publisher struct {
	client *redis.Client
	log    logger.Logger
}

// NewPublisher creates an event publisher. Returns nil if client is nil.
func NewPublisher(client *redis.Client, log logger.Logger) *Publisher {
	if client == nil {
		return nil
	}
	return &Publisher{
		client: client,
		log:    log,
	}
}

// Publish sends an event to the stream, filling EventID and Timestamp when
// empty.
func (p *Publisher) Publish(ctx context.Context, event Event) error {
	if p == nil || p.client == nil {
		return nil
	}

	if event.EventID == uuid.Nil {
		event.EventID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	result := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamName,
		Values: map[string]any{
			"event": string(payload),
		},
	})

	if publishErr := result.Err(); publishErr != nil {
		p.log.Error("event publish failed",
			logger.String("event_type", string(event.EventType)),
			logger.String("org_id", event.OrgID),
			logger.Error(publishErr),
		)
		return fmt.Errorf("publish to stream: %w", publishErr)
	}

	p.log.Debug("event published",
		logger.String("event_type", string(event.EventType)),
		logger.String("org_id", event.OrgID),
		logger.String("stream_id", result.Val()),
	)

	return nil
}

// PublishAsync publishes without blocking the caller. Errors are logged,
// never returned; losing an event never fails pipeline work.
func (p *Publisher) PublishAsync(event Event) {
	if p == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), asyncPublishTimeout)
		defer cancel()

		if err := p.Publish(ctx, event); err != nil {
			p.log.Error("async event publish failed",
				logger.String("event_type", string(event.EventType)),
				logger.Error(err),
			)
		}
	}()
}
