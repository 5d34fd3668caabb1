// Package reload keeps a running searcher in step with the indexer: it reads
// index-ready events from Kafka, reloads the snapshot and drops cached
// results that belonged to the previous index.
package reload

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/internal/indexer/snapshot"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/pkg/kafka"
)

// Reloader is satisfied by executor.Executor.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Invalidator is satisfied by cache.QueryCache.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Consumer wraps a Kafka consumer on the index-ready topic.
type Consumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

func New(kafkaConsumer *kafka.Consumer) *Consumer {
	return &Consumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "reload-consumer"),
	}
}

// Start blocks until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("reload consumer starting")
	return c.consumer.Start(ctx)
}

// HandleMessage returns a MessageHandler that reloads on every index-ready
// event. Partial builds are skipped unless allowPartial is set; the executor
// would refuse them anyway. inv may be nil.
func HandleMessage(r Reloader, inv Invalidator, allowPartial bool) kafka.MessageHandler {
	logger := slog.Default().With("component", "reload-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[snapshot.ReadyEvent](value)
		if err != nil {
			logger.Error("failed to decode index-ready event",
				"error", err,
				"key", string(key),
			)
			return nil
		}
		if !event.Complete && !allowPartial {
			logger.Info("ignoring partial snapshot", "location", event.Location)
			return nil
		}
		logger.Info("index-ready event received",
			"location", event.Location,
			"entities", event.Entities,
			"built_at", event.BuiltAt,
		)
		if err := r.Reload(ctx); err != nil {
			return fmt.Errorf("reloading snapshot %s: %w", event.Location, err)
		}
		if inv != nil {
			if err := inv.Invalidate(ctx); err != nil {
				logger.Warn("cache invalidation after reload failed", "error", err)
			}
		}
		return nil
	}
}
