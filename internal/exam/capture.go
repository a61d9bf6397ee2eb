package exam

import (
	"context"
	"fmt"
)

// Capture is the answer write-path used while an attempt is in progress.
// It records a single selected option per question and nothing else;
// correctness and marks stay untouched until the evaluator runs.
type Capture struct {
	store Store
}

func NewCapture(store Store) *Capture {
	return &Capture{store: store}
}

// Record upserts the answer for (attemptID, questionID). Rejections:
// ErrNotOwner / ErrAttemptCompleted when the caller may not write, and
// ErrQuestionNotInExam / ErrOptionNotInQuestion on referential mismatch.
// Calling it twice with the same inputs leaves one row with that option;
// a later call with a different option overwrites (last write wins).
func (c *Capture) Record(ctx context.Context, userID, attemptID, questionID, optionID string) error {
	a, err := c.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return fmt.Errorf("attempt %s: %w", attemptID, err)
	}
	if a.UserID != userID {
		return ErrNotOwner
	}
	if a.Completed {
		return ErrAttemptCompleted
	}

	e, err := c.store.GetExam(ctx, a.ExamID)
	if err != nil {
		return fmt.Errorf("exam %s: %w", a.ExamID, err)
	}
	var q *Question
	for i := range e.Questions {
		if e.Questions[i].ID == questionID {
			q = &e.Questions[i]
			break
		}
	}
	if q == nil {
		return ErrQuestionNotInExam
	}
	found := false
	for _, opt := range q.Options {
		if opt.ID == optionID {
			found = true
			break
		}
	}
	if !found {
		return ErrOptionNotInQuestion
	}

	return c.store.UpsertAnswer(ctx, attemptID, questionID, optionID)
}
