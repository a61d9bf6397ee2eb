package eventlog

import (
	"context"
	"database/sql"
	"time"
)

// Event types appended by the attempt flow.
const (
	TypeAttemptSubmitted    = "attempt_submitted"
	TypeAttemptEvaluated    = "attempt_evaluated"
	TypeRankingRecalculated = "ranking_recalculated"
)

type Event struct {
	Offset    int64
	Type      string
	Key       string // natural key: attempt or exam id
	DataJSON  string
	CreatedAt int64
}

// Repo appends domain events to the append-only event_log table.
type Repo struct{ db *sql.DB }

func NewRepo(db *sql.DB) *Repo { return &Repo{db: db} }

func (r *Repo) Append(ctx context.Context, e Event) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO event_log (typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4)`,
		e.Type, e.Key, e.DataJSON, time.Now().Unix())
	return err
}
