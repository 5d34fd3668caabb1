// Package publisher persists articles to PostgreSQL and announces them on the
// document-ingest topic, where the Kafka document source picks them up for
// the next build. Article ids default to a content hash so that resubmitting
// the same article is a no-op.
package publisher

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/internal/indexer/source"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/pkg/postgres"
)

// Schema creates the articles table read by the postgres document source.
const Schema = `CREATE TABLE IF NOT EXISTS articles (
	id          TEXT PRIMARY KEY,
	subject     TEXT,
	summary     TEXT,
	content     TEXT NOT NULL,
	ingested_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// DocumentStore persists articles. Insert reports created=false when an
// article with the same id already exists.
type DocumentStore interface {
	Insert(ctx context.Context, a source.Article) (created bool, err error)
}

// PostgresStore is the DocumentStore backed by the articles table.
type PostgresStore struct {
	db *postgres.Client
}

func NewPostgresStore(db *postgres.Client) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the articles table if missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	return s.db.EnsureSchema(ctx, Schema)
}

func (s *PostgresStore) Insert(ctx context.Context, a source.Article) (bool, error) {
	var created bool
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO articles (id, subject, summary, content)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING`, a.ID, a.Subject, a.Summary, a.Content)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		created = n == 1
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("inserting article: %w", err)
	}
	return created, nil
}

// Publisher coordinates article persistence and event production.
type Publisher struct {
	store    DocumentStore
	producer kafka.Publisher
	logger   *slog.Logger
}

// New creates a Publisher. producer may be nil when Kafka is disabled; the
// article is then only stored.
func New(store DocumentStore, producer kafka.Publisher) *Publisher {
	return &Publisher{
		store:    store,
		producer: producer,
		logger:   slog.Default().With("component", "publisher"),
	}
}

// Ingest stores the article and publishes it keyed by id. Duplicates are
// reported without republishing. A publish failure is logged but does not
// fail the request: the article is in PostgreSQL and the next postgres-sourced
// build will see it.
func (p *Publisher) Ingest(ctx context.Context, req *ingestion.IngestRequest) (*ingestion.IngestResponse, error) {
	a := source.Article{
		ID:      req.ID,
		Subject: req.Subject,
		Summary: req.Summary,
		Content: req.Content,
	}
	if a.ID == "" {
		a.ID = ContentID(a)
	}

	created, err := p.store.Insert(ctx, a)
	if err != nil {
		return nil, err
	}
	if !created {
		p.logger.Info("duplicate article", "doc_id", a.ID)
		return &ingestion.IngestResponse{DocumentID: a.ID, Status: ingestion.StatusDuplicate}, nil
	}

	if p.producer != nil {
		if err := p.producer.Publish(ctx, kafka.Event{Key: a.ID, Type: source.ArticleEventType, Value: a}); err != nil {
			p.logger.Error("failed to publish article, it will only reach postgres-sourced builds",
				"doc_id", a.ID,
				"error", err,
			)
		}
	}
	return &ingestion.IngestResponse{DocumentID: a.ID, Status: ingestion.StatusAccepted}, nil
}

// ContentID derives a stable id from the article text.
func ContentID(a source.Article) string {
	sum := sha256.Sum256([]byte(a.Text()))
	return fmt.Sprintf("%x", sum[:16])
}
