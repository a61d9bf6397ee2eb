package exam

import (
	"context"
	"reflect"
	"testing"
)

func TestRankAttemptsOrdering(t *testing.T) {
	attempts := []Attempt{
		{ID: "a1", ExamID: "e1", UserID: "u1", Completed: true, TotalScore: 7, EndedAt: 300},
		{ID: "a2", ExamID: "e1", UserID: "u2", Completed: true, TotalScore: 9, EndedAt: 500},
		{ID: "a3", ExamID: "e1", UserID: "u3", Completed: true, TotalScore: 7, EndedAt: 200},
		{ID: "a4", ExamID: "e1", UserID: "u4", Completed: true, TotalScore: 7, EndedAt: 200},
	}

	rows := RankAttempts(attempts)
	wantOrder := []string{"u2", "u3", "u4", "u1"} // 9 first; 7s by end time, then id
	for i, r := range rows {
		if r.UserID != wantOrder[i] {
			t.Fatalf("rows[%d].UserID = %s, want %s (rows=%+v)", i, r.UserID, wantOrder[i], rows)
		}
		if r.Rank != i+1 {
			t.Errorf("rows[%d].Rank = %d, want %d", i, r.Rank, i+1)
		}
	}

	// Dense ranking: no duplicate rank numbers even among ties.
	seen := map[int]bool{}
	for _, r := range rows {
		if seen[r.Rank] {
			t.Fatalf("duplicate rank %d", r.Rank)
		}
		seen[r.Rank] = true
	}
}

// Same score on the same exam: the attempt that ended earlier outranks.
func TestEarlierFinishWinsTie(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	e := seedExam(t, store, "e1", false)
	ev := newTestEvaluator(store)

	// Both answer q1 correctly; A takes 50 minutes, B takes 40.
	a := submitAttempt(t, store, e.ID, "userA", map[string]string{"e1-q1": "e1-q1-right"}, 3000)
	b := submitAttempt(t, store, e.ID, "userB", map[string]string{"e1-q1": "e1-q1-right"}, 2400)
	if err := ev.Evaluate(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	if err := ev.Evaluate(ctx, b.ID); err != nil {
		t.Fatal(err)
	}

	rows, err := store.ListRankings(ctx, e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("rankings = %+v, want 2 rows", rows)
	}
	if rows[0].UserID != "userB" || rows[0].Rank != 1 {
		t.Errorf("rank 1 = %+v, want userB", rows[0])
	}
	if rows[1].UserID != "userA" || rows[1].Rank != 2 {
		t.Errorf("rank 2 = %+v, want userA", rows[1])
	}
}

func TestRecalculateIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	e := seedExam(t, store, "e1", true)
	ev := newTestEvaluator(store)

	for i, user := range []string{"u1", "u2", "u3"} {
		a := submitAttempt(t, store, e.ID, user, map[string]string{"e1-q1": "e1-q1-right"}, int64(1000+i*10))
		if err := ev.Evaluate(ctx, a.ID); err != nil {
			t.Fatal(err)
		}
	}

	ranker := NewRecalculator(store)
	first, err := ranker.Recalculate(ctx, e.ID)
	if err != nil {
		t.Fatal(err)
	}
	second, err := ranker.Recalculate(ctx, e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("recalculate not idempotent:\nfirst  = %+v\nsecond = %+v", first, second)
	}

	persisted, err := store.ListRankings(ctx, e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(persisted, second) {
		t.Errorf("persisted rows differ from computed: %+v vs %+v", persisted, second)
	}
}

// Higher score always takes the numerically lower rank regardless of who
// finished first.
func TestHigherScoreBeatsEarlierFinish(t *testing.T) {
	attempts := []Attempt{
		{ID: "a1", ExamID: "e1", UserID: "slow-high", Completed: true, TotalScore: 10, EndedAt: 900},
		{ID: "a2", ExamID: "e1", UserID: "fast-low", Completed: true, TotalScore: 3, EndedAt: 100},
	}
	rows := RankAttempts(attempts)
	if rows[0].UserID != "slow-high" {
		t.Fatalf("rank 1 = %+v, want slow-high", rows[0])
	}
}
