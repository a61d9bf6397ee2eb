package exam

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// Authorization class: rejected outright, never retried.
	ErrNotOwner         = errors.New("attempt belongs to another user")
	ErrAttemptCompleted = errors.New("attempt already completed")

	// Validation class: referential mismatch in a capture call.
	ErrQuestionNotInExam   = errors.New("question does not belong to the attempt's exam")
	ErrOptionNotInQuestion = errors.New("option does not belong to the question")

	// Evaluation preconditions.
	ErrAttemptNotCompleted = errors.New("attempt not completed")
	ErrAlreadyEvaluated    = errors.New("attempt already evaluated")

	// Data-integrity class: fatal for the attempt, surfaced to an
	// operator instead of silently scoring zero.
	ErrNoAnswers      = errors.New("attempt has no answers")
	ErrCorruptAttempt = errors.New("attempt references missing question or option")
)

// Fatal reports whether err must not be retried by the evaluation queue.
func Fatal(err error) bool {
	return errors.Is(err, ErrNoAnswers) ||
		errors.Is(err, ErrCorruptAttempt) ||
		errors.Is(err, ErrAttemptNotCompleted) ||
		errors.Is(err, ErrNotFound)
}
