package exam

// Option is one selectable choice of a question.
type Option struct {
	ID         string `json:"id"`
	QuestionID string `json:"question_id"`
	IsCorrect  bool   `json:"is_correct,omitempty"`
}

// Question is a gradable item. Marks and NegativeMarks are both
// non-negative; the sign of a penalty is applied at scoring time.
type Question struct {
	ID            string   `json:"id"`
	Marks         float64  `json:"marks"`
	NegativeMarks float64  `json:"negative_marks"`
	Active        bool     `json:"active"`
	Options       []Option `json:"options,omitempty"`
}

type Exam struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	NegativeMarking bool       `json:"negative_marking"`
	TotalMarks      float64    `json:"total_marks"`
	PassMarks       float64    `json:"pass_marks"`
	TimeLimitSec    int        `json:"time_limit_sec"`
	Questions       []Question `json:"questions,omitempty"`

	CreatedAt int64 `json:"created_at,omitempty"`
}

// Evaluation status of an attempt, tracked so a completed-but-unscored
// attempt is observable and retryable.
const (
	EvalNone    = ""
	EvalPending = "pending"
	EvalOK      = "ok"
	EvalFailed  = "failed"
)

// Attempt is one student's timed run of one exam. EndsAt is the deadline
// fixed at creation; EndedAt is set exactly once on completion to
// min(EndsAt, submission time) and is what ranking ties break on.
type Attempt struct {
	ID          string  `json:"id"`
	ExamID      string  `json:"exam_id"`
	UserID      string  `json:"user_id"`
	StartedAt   int64   `json:"started_at"`
	EndsAt      int64   `json:"ends_at"`
	EndedAt     int64   `json:"ended_at,omitempty"`
	Completed   bool    `json:"completed"`
	TotalScore  float64 `json:"total_score"`
	EvaluatedAt int64   `json:"evaluated_at,omitempty"`

	EvalStatus  string `json:"eval_status,omitempty"`
	EvalRetries int    `json:"eval_retries,omitempty"`
	EvalError   string `json:"eval_error,omitempty"`
}

// Answer is the single row per (attempt, question). SelectedOptionID is
// empty while the student has not picked anything. IsCorrect stays nil
// until the evaluator finalizes the attempt.
type Answer struct {
	AttemptID        string  `json:"attempt_id"`
	QuestionID       string  `json:"question_id"`
	SelectedOptionID string  `json:"selected_option_id,omitempty"`
	IsCorrect        *bool   `json:"is_correct,omitempty"`
	MarksAwarded     float64 `json:"marks_awarded"`
}

// QuestionStat aggregates lifetime counters across all evaluated
// attempts. Never reset, never decremented.
type QuestionStat struct {
	QuestionID     string `json:"question_id"`
	TimesAttempted int64  `json:"times_attempted"`
	TimesCorrect   int64  `json:"times_correct"`
}

// Ranking is one leaderboard row, unique per (exam, user).
type Ranking struct {
	ExamID     string  `json:"exam_id"`
	UserID     string  `json:"user_id"`
	Rank       int     `json:"rank"`
	TotalScore float64 `json:"total_score"`
}

// AnswerRow is an answer joined with its question and, when the student
// selected one, the option row. Loaded as a unit so the evaluator never
// fetches relations itself.
type AnswerRow struct {
	Answer         Answer
	Question       Question
	SelectedOption *Option
}

// AttemptGraph is the fully populated input to the evaluator.
type AttemptGraph struct {
	Attempt Attempt
	Exam    Exam
	Answers []AnswerRow
}
