// Package source supplies the documents an index build consumes. A Source
// yields a finite sequence of (id, plain text) pairs; structured article
// content is flattened to text here, before any extractor sees it.
package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/pkg/kafka"
)

// ErrStop may be returned by a Walk callback to end the walk early without
// an error.
var ErrStop = errors.New("stop walk")

// Document is one unit of indexing work.
type Document struct {
	ID   string
	Text string
}

// Source enumerates documents. Walk calls fn once per document, in source
// order, from a single goroutine, and returns the first error fn returns
// (other than ErrStop).
type Source interface {
	Name() string
	Walk(ctx context.Context, fn func(Document) error) error
	Close() error
}

// New builds the source named by cfg.Source.Kind. db is required for the
// postgres kind and ignored otherwise.
func New(cfg *config.Config, db *sql.DB) (Source, error) {
	sc := cfg.Source
	switch sc.Kind {
	case "", "fs":
		return NewFS(sc.Root, sc.Extensions), nil
	case "postgres":
		if db == nil {
			return nil, fmt.Errorf("postgres source requires a database connection")
		}
		return NewPostgres(db, sc.Query), nil
	case "kafka":
		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.DocumentIngest, nil,
			kafka.Replay(cfg.Kafka.ConsumerGroup))
		return NewKafka(consumer, sc.IdleTimeout, sc.MaxDocuments), nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", sc.Kind)
	}
}

// Collect drains src into a slice. Intended for tests and small corpora.
func Collect(ctx context.Context, src Source) ([]Document, error) {
	var docs []Document
	err := src.Walk(ctx, func(d Document) error {
		docs = append(docs, d)
		return nil
	})
	return docs, err
}

func stopped(err error) error {
	if errors.Is(err, ErrStop) {
		return nil
	}
	return err
}
