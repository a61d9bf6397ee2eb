package exam

import (
	"context"
	"sort"
	"sync"
)

// Recalculator re-derives the full leaderboard of an exam from its
// completed attempts. Every run is a complete recompute, so it is
// idempotent and never needs a stale-row cleanup. Runs for the same exam
// are serialized so a slow recompute can never overwrite a newer one
// with a snapshot that misses a just-completed attempt.
type Recalculator struct {
	store Store

	mu    sync.Mutex
	locks map[string]*sync.Mutex // examID -> lock
}

func NewRecalculator(store Store) *Recalculator {
	return &Recalculator{store: store, locks: map[string]*sync.Mutex{}}
}

func (r *Recalculator) examLock(examID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[examID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[examID] = l
	}
	return l
}

// RankAttempts orders completed attempts by total score descending, then
// earlier end time, then attempt id as the deterministic residual
// tie-break, and assigns dense 1-based ranks. The input slice is not
// mutated.
func RankAttempts(attempts []Attempt) []Ranking {
	sorted := append([]Attempt(nil), attempts...)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.TotalScore != b.TotalScore {
			return a.TotalScore > b.TotalScore
		}
		if a.EndedAt != b.EndedAt {
			return a.EndedAt < b.EndedAt
		}
		return a.ID < b.ID
	})
	rows := make([]Ranking, 0, len(sorted))
	for i, a := range sorted {
		rows = append(rows, Ranking{
			ExamID:     a.ExamID,
			UserID:     a.UserID,
			Rank:       i + 1,
			TotalScore: a.TotalScore,
		})
	}
	return rows
}

// Recalculate reads the current set of completed attempts and upserts one
// ranking row per (exam, user). The read happens under the exam's lock,
// so every run sees all attempts completed before it started writing.
func (r *Recalculator) Recalculate(ctx context.Context, examID string) ([]Ranking, error) {
	l := r.examLock(examID)
	l.Lock()
	defer l.Unlock()

	attempts, err := r.store.ListCompletedAttempts(ctx, examID)
	if err != nil {
		return nil, err
	}
	rows := RankAttempts(attempts)
	if err := r.store.ReplaceRankings(ctx, examID, rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func sortRankings(rows []Ranking) {
	sort.Slice(rows, func(i, j int) bool { return rows[i].Rank < rows[j].Rank })
}
