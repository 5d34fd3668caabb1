package source

import (
	"context"
	"database/sql"
	"fmt"
)

// Postgres yields one document per row of a query returning
// (id, subject, summary, content). NULL text columns read as empty.
type Postgres struct {
	db    *sql.DB
	query string
}

func NewPostgres(db *sql.DB, query string) *Postgres {
	return &Postgres{db: db, query: query}
}

func (s *Postgres) Name() string { return "postgres" }

func (s *Postgres) Close() error { return nil }

func (s *Postgres) Walk(ctx context.Context, fn func(Document) error) error {
	rows, err := s.db.QueryContext(ctx, s.query)
	if err != nil {
		return fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id                        string
			subject, summary, content sql.NullString
		)
		if err := rows.Scan(&id, &subject, &summary, &content); err != nil {
			return fmt.Errorf("scanning document row: %w", err)
		}
		a := Article{ID: id, Subject: subject.String, Summary: summary.String, Content: content.String}
		if err := fn(Document{ID: id, Text: a.Text()}); err != nil {
			return stopped(err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating document rows: %w", err)
	}
	return nil
}
