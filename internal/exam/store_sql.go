package exam

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SQLStore persists the attempt core over database/sql. It works against
// both supported drivers ("sqlite" and "postgres"); every upsert uses
// ON CONFLICT, which both accept.
type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

func (s *SQLStore) PutExam(ctx context.Context, e Exam) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().Unix()
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO exams (id,title,negative_marking,total_marks,pass_marks,time_limit_sec,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, negative_marking=EXCLUDED.negative_marking,
			total_marks=EXCLUDED.total_marks, pass_marks=EXCLUDED.pass_marks, time_limit_sec=EXCLUDED.time_limit_sec`,
		e.ID, e.Title, e.NegativeMarking, e.TotalMarks, e.PassMarks, e.TimeLimitSec, e.CreatedAt)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM exam_questions WHERE exam_id=$1`, e.ID); err != nil {
		return err
	}
	for i, q := range e.Questions {
		if _, err := tx.ExecContext(ctx, `INSERT INTO questions (id,marks,negative_marks,active)
			VALUES ($1,$2,$3,$4)
			ON CONFLICT (id) DO UPDATE SET marks=EXCLUDED.marks, negative_marks=EXCLUDED.negative_marks, active=EXCLUDED.active`,
			q.ID, q.Marks, q.NegativeMarks, q.Active); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO exam_questions (exam_id,question_id,position) VALUES ($1,$2,$3)`,
			e.ID, q.ID, i); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM options WHERE question_id=$1`, q.ID); err != nil {
			return err
		}
		for _, o := range q.Options {
			if _, err := tx.ExecContext(ctx, `INSERT INTO options (id,question_id,is_correct) VALUES ($1,$2,$3)`,
				o.ID, q.ID, o.IsCorrect); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

func (s *SQLStore) GetExam(ctx context.Context, id string) (Exam, error) {
	var e Exam
	err := s.db.QueryRowContext(ctx,
		`SELECT id,title,negative_marking,total_marks,pass_marks,time_limit_sec,created_at FROM exams WHERE id=$1`, id).
		Scan(&e.ID, &e.Title, &e.NegativeMarking, &e.TotalMarks, &e.PassMarks, &e.TimeLimitSec, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Exam{}, ErrNotFound
	}
	if err != nil {
		return Exam{}, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT q.id, q.marks, q.negative_marks, q.active
		 FROM exam_questions eq JOIN questions q ON q.id=eq.question_id
		 WHERE eq.exam_id=$1 ORDER BY eq.position`, id)
	if err != nil {
		return Exam{}, err
	}
	defer rows.Close()
	idx := map[string]int{}
	for rows.Next() {
		var q Question
		if err := rows.Scan(&q.ID, &q.Marks, &q.NegativeMarks, &q.Active); err != nil {
			return Exam{}, err
		}
		idx[q.ID] = len(e.Questions)
		e.Questions = append(e.Questions, q)
	}
	if err := rows.Err(); err != nil {
		return Exam{}, err
	}

	orows, err := s.db.QueryContext(ctx,
		`SELECT o.id, o.question_id, o.is_correct
		 FROM options o JOIN exam_questions eq ON eq.question_id=o.question_id
		 WHERE eq.exam_id=$1`, id)
	if err != nil {
		return Exam{}, err
	}
	defer orows.Close()
	for orows.Next() {
		var o Option
		if err := orows.Scan(&o.ID, &o.QuestionID, &o.IsCorrect); err != nil {
			return Exam{}, err
		}
		if i, ok := idx[o.QuestionID]; ok {
			e.Questions[i].Options = append(e.Questions[i].Options, o)
		}
	}
	return e, orows.Err()
}

func (s *SQLStore) NewAttempt(ctx context.Context, examID, userID string) (Attempt, error) {
	var limit int
	err := s.db.QueryRowContext(ctx, `SELECT time_limit_sec FROM exams WHERE id=$1`, examID).Scan(&limit)
	if errors.Is(err, sql.ErrNoRows) {
		return Attempt{}, ErrNotFound
	}
	if err != nil {
		return Attempt{}, err
	}
	now := time.Now().Unix()
	a := Attempt{
		ID:        uuid.NewString(),
		ExamID:    examID,
		UserID:    userID,
		StartedAt: now,
		EndsAt:    now + int64(limit),
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO attempts (id,exam_id,user_id,started_at,ends_at,completed,total_score)
		VALUES ($1,$2,$3,$4,$5,$6,0)`,
		a.ID, a.ExamID, a.UserID, a.StartedAt, a.EndsAt, false)
	if err != nil {
		return Attempt{}, err
	}
	return a, nil
}

const attemptCols = `id,exam_id,user_id,started_at,ends_at,COALESCE(ended_at,0),completed,total_score,
	COALESCE(evaluated_at,0),COALESCE(eval_status,''),COALESCE(eval_retries,0),COALESCE(eval_error,'')`

func scanAttempt(row interface{ Scan(...any) error }) (Attempt, error) {
	var a Attempt
	err := row.Scan(&a.ID, &a.ExamID, &a.UserID, &a.StartedAt, &a.EndsAt, &a.EndedAt, &a.Completed,
		&a.TotalScore, &a.EvaluatedAt, &a.EvalStatus, &a.EvalRetries, &a.EvalError)
	return a, err
}

func (s *SQLStore) GetAttempt(ctx context.Context, id string) (Attempt, error) {
	a, err := scanAttempt(s.db.QueryRowContext(ctx, `SELECT `+attemptCols+` FROM attempts WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Attempt{}, ErrNotFound
	}
	if err != nil {
		return Attempt{}, err
	}
	return a, nil
}

func (s *SQLStore) UpsertAnswer(ctx context.Context, attemptID, questionID, optionID string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO answers (attempt_id,question_id,selected_option_id)
		VALUES ($1,$2,NULLIF($3,''))
		ON CONFLICT (attempt_id,question_id) DO UPDATE SET selected_option_id=EXCLUDED.selected_option_id`,
		attemptID, questionID, optionID)
	return err
}

func (s *SQLStore) CompleteAttempt(ctx context.Context, attemptID string, endedAt int64) (Attempt, bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE attempts SET completed=$1, ended_at=$2 WHERE id=$3 AND completed=$4`,
		true, endedAt, attemptID, false)
	if err != nil {
		return Attempt{}, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Attempt{}, false, err
	}
	a, err := s.GetAttempt(ctx, attemptID)
	if err != nil {
		return Attempt{}, false, err
	}
	return a, n > 0, nil
}

func (s *SQLStore) LoadAttemptGraph(ctx context.Context, attemptID string) (AttemptGraph, error) {
	a, err := s.GetAttempt(ctx, attemptID)
	if err != nil {
		return AttemptGraph{}, err
	}
	e, err := s.GetExam(ctx, a.ExamID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return AttemptGraph{}, fmt.Errorf("attempt %s: exam %s: %w", attemptID, a.ExamID, ErrCorruptAttempt)
		}
		return AttemptGraph{}, err
	}
	g := AttemptGraph{Attempt: a, Exam: e}

	rows, err := s.db.QueryContext(ctx,
		`SELECT ans.question_id, COALESCE(ans.selected_option_id,''), ans.is_correct, ans.marks_awarded,
		        q.id, q.marks, q.negative_marks, q.active,
		        o.id, o.question_id, o.is_correct
		 FROM answers ans
		 LEFT JOIN questions q ON q.id = ans.question_id
		 LEFT JOIN options o ON o.id = ans.selected_option_id
		 WHERE ans.attempt_id=$1`, attemptID)
	if err != nil {
		return AttemptGraph{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			row        AnswerRow
			isCorrect  sql.NullBool
			qid        sql.NullString
			qMarks     sql.NullFloat64
			qNeg       sql.NullFloat64
			qActive    sql.NullBool
			oid        sql.NullString
			oQid       sql.NullString
			oIsCorrect sql.NullBool
		)
		if err := rows.Scan(&row.Answer.QuestionID, &row.Answer.SelectedOptionID, &isCorrect, &row.Answer.MarksAwarded,
			&qid, &qMarks, &qNeg, &qActive,
			&oid, &oQid, &oIsCorrect); err != nil {
			return AttemptGraph{}, err
		}
		row.Answer.AttemptID = attemptID
		if isCorrect.Valid {
			v := isCorrect.Bool
			row.Answer.IsCorrect = &v
		}
		if !qid.Valid {
			return AttemptGraph{}, fmt.Errorf("attempt %s: question %s: %w", attemptID, row.Answer.QuestionID, ErrCorruptAttempt)
		}
		row.Question = Question{ID: qid.String, Marks: qMarks.Float64, NegativeMarks: qNeg.Float64, Active: qActive.Bool}
		if row.Answer.SelectedOptionID != "" {
			if !oid.Valid || oQid.String != row.Question.ID {
				return AttemptGraph{}, fmt.Errorf("attempt %s: option %s: %w", attemptID, row.Answer.SelectedOptionID, ErrCorruptAttempt)
			}
			row.SelectedOption = &Option{ID: oid.String, QuestionID: oQid.String, IsCorrect: oIsCorrect.Bool}
		}
		g.Answers = append(g.Answers, row)
	}
	return g, rows.Err()
}

func (s *SQLStore) FinalizeEvaluation(ctx context.Context, ev Evaluation, evaluatedAt int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Guard against a concurrent or retried finalize inside the same
	// transaction that applies its effects.
	guard := `SELECT COALESCE(evaluated_at,0) FROM attempts WHERE id=$1`
	if s.driver == "postgres" {
		guard += ` FOR UPDATE`
	}
	var already int64
	if err := tx.QueryRowContext(ctx, guard, ev.AttemptID).Scan(&already); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if already != 0 {
		return ErrAlreadyEvaluated
	}

	for _, r := range ev.Answers {
		res, err := tx.ExecContext(ctx,
			`UPDATE answers SET is_correct=$1, marks_awarded=$2 WHERE attempt_id=$3 AND question_id=$4`,
			r.IsCorrect, r.MarksAwarded, ev.AttemptID, r.QuestionID)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("attempt %s: answer for question %s vanished: %w", ev.AttemptID, r.QuestionID, ErrCorruptAttempt)
		}
		correctInc := int64(0)
		if r.IsCorrect {
			correctInc = 1
		}
		// Single atomic increment-or-create; no find/create window for
		// concurrent evaluators to race through.
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO question_stats (question_id,times_attempted,times_correct)
			 VALUES ($1,1,$2)
			 ON CONFLICT (question_id) DO UPDATE SET
			   times_attempted = question_stats.times_attempted + 1,
			   times_correct   = question_stats.times_correct + EXCLUDED.times_correct`,
			r.QuestionID, correctInc); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE attempts SET total_score=$1, completed=$2, evaluated_at=$3 WHERE id=$4`,
		ev.TotalScore, true, evaluatedAt, ev.AttemptID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLStore) ListCompletedAttempts(ctx context.Context, examID string) ([]Attempt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+attemptCols+` FROM attempts WHERE exam_id=$1 AND completed=$2`, examID, true)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) ReplaceRankings(ctx context.Context, examID string, rowsIn []Ranking) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, r := range rowsIn {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO exam_rankings (exam_id,user_id,rank,total_score)
			 VALUES ($1,$2,$3,$4)
			 ON CONFLICT (exam_id,user_id) DO UPDATE SET rank=EXCLUDED.rank, total_score=EXCLUDED.total_score`,
			examID, r.UserID, r.Rank, r.TotalScore); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLStore) ListRankings(ctx context.Context, examID string) ([]Ranking, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT exam_id,user_id,rank,total_score FROM exam_rankings WHERE exam_id=$1 ORDER BY rank`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Ranking
	for rows.Next() {
		var r Ranking
		if err := rows.Scan(&r.ExamID, &r.UserID, &r.Rank, &r.TotalScore); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLStore) GetQuestionStats(ctx context.Context, questionIDs []string) ([]QuestionStat, error) {
	if len(questionIDs) == 0 {
		return nil, nil
	}
	ph := make([]string, len(questionIDs))
	args := make([]any, len(questionIDs))
	for i, id := range questionIDs {
		ph[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT question_id,times_attempted,times_correct FROM question_stats WHERE question_id IN (`+strings.Join(ph, ",")+`)`,
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []QuestionStat
	for rows.Next() {
		var st QuestionStat
		if err := rows.Scan(&st.QuestionID, &st.TimesAttempted, &st.TimesCorrect); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *SQLStore) ListExpiredAttempts(ctx context.Context, now int64) ([]Attempt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+attemptCols+` FROM attempts WHERE completed=$1 AND ends_at <= $2`, false, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) MarkEvalPending(ctx context.Context, attemptID string) error {
	return s.setEval(ctx, `UPDATE attempts SET eval_status=$1, eval_error='' WHERE id=$2`, EvalPending, attemptID)
}

func (s *SQLStore) MarkEvalOK(ctx context.Context, attemptID string) error {
	return s.setEval(ctx, `UPDATE attempts SET eval_status=$1, eval_error='' WHERE id=$2`, EvalOK, attemptID)
}

func (s *SQLStore) MarkEvalFailed(ctx context.Context, attemptID, lastErr string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE attempts SET eval_status=$1, eval_error=$2, eval_retries=COALESCE(eval_retries,0)+1 WHERE id=$3`,
		EvalFailed, lastErr, attemptID)
	return err
}

func (s *SQLStore) setEval(ctx context.Context, q, status, attemptID string) error {
	_, err := s.db.ExecContext(ctx, q, status, attemptID)
	return err
}
