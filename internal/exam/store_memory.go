package exam

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memoryStore backs tests and offline single-process runs. It mirrors the
// SQL store's semantics, including the in-transaction evaluation guard.
type memoryStore struct {
	mu       sync.RWMutex
	exams    map[string]Exam
	attempts map[string]Attempt
	answers  map[string]map[string]Answer // attemptID -> questionID -> Answer
	stats    map[string]QuestionStat
	rankings map[string]map[string]Ranking // examID -> userID -> Ranking
}

func NewInMemoryStore() Store {
	return &memoryStore{
		exams:    map[string]Exam{},
		attempts: map[string]Attempt{},
		answers:  map[string]map[string]Answer{},
		stats:    map[string]QuestionStat{},
		rankings: map[string]map[string]Ranking{},
	}
}

func (m *memoryStore) PutExam(_ context.Context, e Exam) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().Unix()
	}
	m.exams[e.ID] = e
	return nil
}

func (m *memoryStore) GetExam(_ context.Context, id string) (Exam, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.exams[id]
	if !ok {
		return Exam{}, ErrNotFound
	}
	return e, nil
}

func (m *memoryStore) NewAttempt(_ context.Context, examID, userID string) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.exams[examID]
	if !ok {
		return Attempt{}, ErrNotFound
	}
	now := time.Now().Unix()
	a := Attempt{
		ID:        uuid.NewString(),
		ExamID:    examID,
		UserID:    userID,
		StartedAt: now,
		EndsAt:    now + int64(e.TimeLimitSec),
	}
	m.attempts[a.ID] = a
	m.answers[a.ID] = map[string]Answer{}
	return a, nil
}

func (m *memoryStore) GetAttempt(_ context.Context, id string) (Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.attempts[id]
	if !ok {
		return Attempt{}, ErrNotFound
	}
	return a, nil
}

func (m *memoryStore) UpsertAnswer(_ context.Context, attemptID, questionID, optionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.attempts[attemptID]; !ok {
		return ErrNotFound
	}
	byQ := m.answers[attemptID]
	if byQ == nil {
		byQ = map[string]Answer{}
		m.answers[attemptID] = byQ
	}
	ans := byQ[questionID]
	ans.AttemptID = attemptID
	ans.QuestionID = questionID
	ans.SelectedOptionID = optionID
	byQ[questionID] = ans
	return nil
}

func (m *memoryStore) CompleteAttempt(_ context.Context, attemptID string, endedAt int64) (Attempt, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[attemptID]
	if !ok {
		return Attempt{}, false, ErrNotFound
	}
	if a.Completed {
		return a, false, nil
	}
	a.Completed = true
	a.EndedAt = endedAt
	m.attempts[attemptID] = a
	return a, true, nil
}

func (m *memoryStore) LoadAttemptGraph(_ context.Context, attemptID string) (AttemptGraph, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.attempts[attemptID]
	if !ok {
		return AttemptGraph{}, ErrNotFound
	}
	e, ok := m.exams[a.ExamID]
	if !ok {
		return AttemptGraph{}, ErrCorruptAttempt
	}
	questions := map[string]Question{}
	options := map[string]*Option{}
	for _, q := range e.Questions {
		questions[q.ID] = q
		for i := range q.Options {
			options[q.Options[i].ID] = &q.Options[i]
		}
	}
	g := AttemptGraph{Attempt: a, Exam: e}
	for _, ans := range m.answers[attemptID] {
		row := AnswerRow{Answer: ans}
		q, ok := questions[ans.QuestionID]
		if !ok {
			return AttemptGraph{}, ErrCorruptAttempt
		}
		row.Question = q
		if ans.SelectedOptionID != "" {
			opt, ok := options[ans.SelectedOptionID]
			if !ok {
				return AttemptGraph{}, ErrCorruptAttempt
			}
			row.SelectedOption = opt
		}
		g.Answers = append(g.Answers, row)
	}
	return g, nil
}

func (m *memoryStore) FinalizeEvaluation(_ context.Context, ev Evaluation, evaluatedAt int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[ev.AttemptID]
	if !ok {
		return ErrNotFound
	}
	if a.EvaluatedAt != 0 {
		return ErrAlreadyEvaluated
	}
	byQ := m.answers[ev.AttemptID]
	for _, r := range ev.Answers {
		ans, ok := byQ[r.QuestionID]
		if !ok {
			return ErrCorruptAttempt
		}
		correct := r.IsCorrect
		ans.IsCorrect = &correct
		ans.MarksAwarded = r.MarksAwarded
		byQ[r.QuestionID] = ans

		st := m.stats[r.QuestionID]
		st.QuestionID = r.QuestionID
		st.TimesAttempted++
		if r.IsCorrect {
			st.TimesCorrect++
		}
		m.stats[r.QuestionID] = st
	}
	a.TotalScore = ev.TotalScore
	a.Completed = true
	a.EvaluatedAt = evaluatedAt
	m.attempts[ev.AttemptID] = a
	return nil
}

func (m *memoryStore) ListCompletedAttempts(_ context.Context, examID string) ([]Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Attempt
	for _, a := range m.attempts {
		if a.ExamID == examID && a.Completed {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memoryStore) ReplaceRankings(_ context.Context, examID string, rows []Ranking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byUser := m.rankings[examID]
	if byUser == nil {
		byUser = map[string]Ranking{}
		m.rankings[examID] = byUser
	}
	for _, r := range rows {
		byUser[r.UserID] = r
	}
	return nil
}

func (m *memoryStore) ListRankings(_ context.Context, examID string) ([]Ranking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Ranking, 0, len(m.rankings[examID]))
	for _, r := range m.rankings[examID] {
		out = append(out, r)
	}
	sortRankings(out)
	return out, nil
}

func (m *memoryStore) GetQuestionStats(_ context.Context, questionIDs []string) ([]QuestionStat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]QuestionStat, 0, len(questionIDs))
	for _, id := range questionIDs {
		if st, ok := m.stats[id]; ok {
			out = append(out, st)
		}
	}
	return out, nil
}

func (m *memoryStore) ListExpiredAttempts(_ context.Context, now int64) ([]Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Attempt
	for _, a := range m.attempts {
		if !a.Completed && a.EndsAt <= now {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memoryStore) MarkEvalPending(_ context.Context, attemptID string) error {
	return m.setEval(attemptID, EvalPending, "", false)
}

func (m *memoryStore) MarkEvalOK(_ context.Context, attemptID string) error {
	return m.setEval(attemptID, EvalOK, "", false)
}

func (m *memoryStore) MarkEvalFailed(_ context.Context, attemptID, lastErr string) error {
	return m.setEval(attemptID, EvalFailed, lastErr, true)
}

func (m *memoryStore) setEval(attemptID, status, lastErr string, bumpRetries bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[attemptID]
	if !ok {
		return ErrNotFound
	}
	a.EvalStatus = status
	a.EvalError = lastErr
	if bumpRetries {
		a.EvalRetries++
	}
	m.attempts[attemptID] = a
	return nil
}
