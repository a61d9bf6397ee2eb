package exam

import "context"

// Store is the persistence boundary of the attempt core. Implementations
// must make FinalizeEvaluation a single atomic unit: answer updates, the
// attempt's score and the stat increments commit together or not at all.
type Store interface {
	PutExam(ctx context.Context, e Exam) error
	// GetExam returns the exam with its full question/option graph,
	// including correctness flags. Callers serving students must strip
	// IsCorrect before responding.
	GetExam(ctx context.Context, id string) (Exam, error)

	NewAttempt(ctx context.Context, examID, userID string) (Attempt, error)
	GetAttempt(ctx context.Context, id string) (Attempt, error)

	// UpsertAnswer writes the selected option for (attemptID, questionID),
	// creating the row on first write. It never touches is_correct or
	// marks_awarded.
	UpsertAnswer(ctx context.Context, attemptID, questionID, optionID string) error

	// CompleteAttempt transitions the attempt to completed with the given
	// end time. The transition happens at most once; a second call is a
	// no-op reporting transitioned=false.
	CompleteAttempt(ctx context.Context, attemptID string, endedAt int64) (a Attempt, transitioned bool, err error)

	// LoadAttemptGraph returns the attempt with every answer joined to its
	// question and selected option. A dangling question or option
	// reference yields ErrCorruptAttempt.
	LoadAttemptGraph(ctx context.Context, attemptID string) (AttemptGraph, error)

	// FinalizeEvaluation persists an evaluation atomically: per-answer
	// is_correct/marks_awarded, the attempt's total score and evaluated-at
	// stamp, and one increment-or-create per question stat. Returns
	// ErrAlreadyEvaluated without side effects if the attempt was already
	// finalized.
	FinalizeEvaluation(ctx context.Context, ev Evaluation, evaluatedAt int64) error

	ListCompletedAttempts(ctx context.Context, examID string) ([]Attempt, error)
	// ReplaceRankings upserts the given rows keyed by (exam_id, user_id).
	ReplaceRankings(ctx context.Context, examID string, rows []Ranking) error
	ListRankings(ctx context.Context, examID string) ([]Ranking, error)

	GetQuestionStats(ctx context.Context, questionIDs []string) ([]QuestionStat, error)

	// ListExpiredAttempts returns in-progress attempts whose deadline has
	// passed, for the expiry sweeper.
	ListExpiredAttempts(ctx context.Context, now int64) ([]Attempt, error)

	MarkEvalPending(ctx context.Context, attemptID string) error
	MarkEvalOK(ctx context.Context, attemptID string) error
	MarkEvalFailed(ctx context.Context, attemptID, lastErr string) error
}
