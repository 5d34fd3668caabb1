// Package ledger records index builds in PostgreSQL so operators can see
// when the current snapshot was produced, from what, and how many documents
// failed along the way.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/pkg/postgres"
)

const (
	StatusRunning   = "RUNNING"
	StatusCompleted = "COMPLETED"
	StatusPartial   = "PARTIAL"
	StatusFailed    = "FAILED"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS index_builds (
		id          BIGSERIAL PRIMARY KEY,
		backend     TEXT        NOT NULL,
		source      TEXT        NOT NULL,
		status      TEXT        NOT NULL,
		started_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		finished_at TIMESTAMPTZ,
		documents   INTEGER     NOT NULL DEFAULT 0,
		failed      INTEGER     NOT NULL DEFAULT 0,
		flagged     INTEGER     NOT NULL DEFAULT 0,
		entities    INTEGER     NOT NULL DEFAULT 0,
		location    TEXT,
		error       TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_index_builds_started ON index_builds (started_at DESC)`,
}

// Build is one row of the ledger.
type Build struct {
	ID         int64
	Backend    string
	Source     string
	Status     string
	StartedAt  time.Time
	FinishedAt *time.Time
	Documents  int
	Failed     int
	Flagged    int
	Entities   int
	Location   string
	Error      string
}

// Outcome is what Finish records about a build.
type Outcome struct {
	Status    string
	Documents int
	Failed    int
	Flagged   int
	Entities  int
	Location  string
	Err       error
}

type Ledger struct {
	db *sql.DB
}

func New(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// EnsureSchema creates the ledger table if it does not exist.
func (l *Ledger) EnsureSchema(ctx context.Context) error {
	return postgres.InTx(ctx, l.db, func(tx *sql.Tx) error {
		for _, stmt := range schema {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("creating ledger schema: %w", err)
			}
		}
		return nil
	})
}

// Start inserts a RUNNING row and returns its id.
func (l *Ledger) Start(ctx context.Context, backend, source string) (int64, error) {
	var id int64
	err := l.db.QueryRowContext(ctx,
		`INSERT INTO index_builds (backend, source, status) VALUES ($1, $2, $3) RETURNING id`,
		backend, source, StatusRunning,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("recording build start: %w", err)
	}
	return id, nil
}

// Finish closes the row opened by Start.
func (l *Ledger) Finish(ctx context.Context, id int64, o Outcome) error {
	var errText sql.NullString
	if o.Err != nil {
		errText = sql.NullString{String: o.Err.Error(), Valid: true}
	}
	res, err := l.db.ExecContext(ctx,
		`UPDATE index_builds
		SET status = $1, finished_at = NOW(), documents = $2, failed = $3,
			flagged = $4, entities = $5, location = $6, error = $7
		WHERE id = $8`,
		o.Status, o.Documents, o.Failed, o.Flagged, o.Entities,
		sql.NullString{String: o.Location, Valid: o.Location != ""}, errText, id,
	)
	if err != nil {
		return fmt.Errorf("recording build finish: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("build %d not found in ledger", id)
	}
	return nil
}

// Latest returns the most recently started build, or nil if there is none.
func (l *Ledger) Latest(ctx context.Context) (*Build, error) {
	var (
		b          Build
		finishedAt sql.NullTime
		location   sql.NullString
		errText    sql.NullString
	)
	err := l.db.QueryRowContext(ctx,
		`SELECT id, backend, source, status, started_at, finished_at,
			documents, failed, flagged, entities, location, error
		FROM index_builds ORDER BY started_at DESC, id DESC LIMIT 1`,
	).Scan(&b.ID, &b.Backend, &b.Source, &b.Status, &b.StartedAt, &finishedAt,
		&b.Documents, &b.Failed, &b.Flagged, &b.Entities, &location, &errText)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest build: %w", err)
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		b.FinishedAt = &t
	}
	b.Location = location.String
	b.Error = errText.String
	return &b, nil
}

// StatusFor picks the ledger status for a build result.
func StatusFor(complete bool, err error) string {
	switch {
	case err != nil:
		return StatusFailed
	case !complete:
		return StatusPartial
	default:
		return StatusCompleted
	}
}
