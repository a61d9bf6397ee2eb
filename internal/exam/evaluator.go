package exam

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type Clock func() time.Time

// Evaluator finalizes one completed attempt: per-answer correctness and
// marks, the clamped total, question statistics, and a fresh leaderboard
// for the owning exam. It is safe to re-run: an attempt already holding
// an evaluated-at stamp skips scoring and only refreshes the ranking,
// and the store rejects a concurrent duplicate finalize inside its
// transaction.
type Evaluator struct {
	store  Store
	ranker *Recalculator
	now    Clock
}

func NewEvaluator(store Store, ranker *Recalculator, now Clock) *Evaluator {
	if now == nil {
		now = time.Now
	}
	return &Evaluator{store: store, ranker: ranker, now: now}
}

// Evaluate scores the attempt and refreshes the exam's ranking. The
// ranking runs inside the same logical operation: evaluation is not
// complete until the leaderboard reflects this attempt.
func (e *Evaluator) Evaluate(ctx context.Context, attemptID string) error {
	g, err := e.store.LoadAttemptGraph(ctx, attemptID)
	if err != nil {
		return fmt.Errorf("load attempt %s: %w", attemptID, err)
	}
	if !g.Attempt.Completed {
		return fmt.Errorf("attempt %s: %w", attemptID, ErrAttemptNotCompleted)
	}
	if g.Attempt.EvaluatedAt != 0 {
		// Retried task after a prior finalize; statistics must not be
		// double-counted. The earlier run may have died before the
		// ranking refresh, so that part still runs (it is idempotent).
		if _, err := e.ranker.Recalculate(ctx, g.Attempt.ExamID); err != nil {
			return fmt.Errorf("recalculate exam %s: %w", g.Attempt.ExamID, err)
		}
		return nil
	}
	if len(g.Answers) == 0 {
		return fmt.Errorf("attempt %s: %w", attemptID, ErrNoAnswers)
	}

	ev := Score(g)
	switch err := e.store.FinalizeEvaluation(ctx, ev, e.now().Unix()); {
	case err == nil:
	case errors.Is(err, ErrAlreadyEvaluated):
		// Lost the race to another worker; its result stands. Still
		// refresh the ranking in case the winner has not yet.
		if _, err := e.ranker.Recalculate(ctx, g.Attempt.ExamID); err != nil {
			return fmt.Errorf("recalculate exam %s: %w", g.Attempt.ExamID, err)
		}
		return nil
	default:
		return fmt.Errorf("finalize attempt %s: %w", attemptID, err)
	}

	if _, err := e.ranker.Recalculate(ctx, g.Attempt.ExamID); err != nil {
		return fmt.Errorf("recalculate exam %s: %w", g.Attempt.ExamID, err)
	}
	return nil
}
