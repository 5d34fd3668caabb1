package source

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/pkg/kafka"
)

const (
	defaultIdleTimeout = 10 * time.Second
	// joinGrace is added to the first fetch to cover the consumer group join.
	joinGrace = 10 * time.Second
)

type messageFetcher interface {
	FetchWithin(ctx context.Context, idle time.Duration) (kafka.Message, error)
	Close() error
}

// Kafka drains Article events from the document-ingest topic. The topic is
// unbounded, so the walk ends once no message arrives within the idle
// timeout or after max documents.
//
// A build indexes the whole corpus, so the walk replays the topic from the
// first offset and never commits: the consumer it is given must not resume
// from offsets stored by an earlier build. A document id seen twice in one
// walk is indexed once.
type Kafka struct {
	consumer messageFetcher
	idle     time.Duration
	max      int
	logger   *slog.Logger
}

func NewKafka(consumer messageFetcher, idle time.Duration, maxDocuments int) *Kafka {
	if idle <= 0 {
		idle = defaultIdleTimeout
	}
	return &Kafka{
		consumer: consumer,
		idle:     idle,
		max:      maxDocuments,
		logger:   slog.Default().With("component", "kafka-source"),
	}
}

func (s *Kafka) Name() string { return "kafka" }

func (s *Kafka) Close() error { return s.consumer.Close() }

func (s *Kafka) Walk(ctx context.Context, fn func(Document) error) error {
	n := 0
	seen := make(map[string]struct{})
	wait := s.idle + joinGrace
	for s.max <= 0 || n < s.max {
		msg, err := s.consumer.FetchWithin(ctx, wait)
		wait = s.idle
		if errors.Is(err, kafka.ErrIdle) {
			s.logger.Info("document topic idle, ending walk", "documents", n)
			return nil
		}
		if err != nil {
			return err
		}

		if t := kafka.EventType(msg); t != "" && t != ArticleEventType {
			s.logger.Debug("skipping non-article event", "type", t, "offset", msg.Offset)
			continue
		}

		a, err := kafka.DecodeJSON[Article](msg.Value)
		if err != nil || a.ID == "" {
			s.logger.Warn("skipping malformed document event",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
			continue
		}
		if _, dup := seen[a.ID]; dup {
			s.logger.Debug("skipping repeated document", "doc_id", a.ID, "offset", msg.Offset)
			continue
		}
		seen[a.ID] = struct{}{}

		if err := fn(Document{ID: a.ID, Text: a.Text()}); err != nil {
			return stopped(err)
		}
		n++
	}
	return nil
}
