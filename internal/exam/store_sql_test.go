package exam

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/solymanHossen/online-exam-sub000/internal/db"
)

func newSQLiteStore(t *testing.T) *SQLStore {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "examcore_test.db") + "?cache=shared&_pragma=busy_timeout(5000)"
	dbh, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = dbh.Close() })
	return NewSQLStore(dbh, "sqlite")
}

func TestSQLStoreExamRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)
	want := seedExam(t, store, "e1", true)

	got, err := store.GetExam(ctx, "e1")
	if err != nil {
		t.Fatalf("get exam: %v", err)
	}
	if got.Title != want.Title || !got.NegativeMarking || got.TimeLimitSec != want.TimeLimitSec {
		t.Errorf("exam = %+v", got)
	}
	if len(got.Questions) != 3 {
		t.Fatalf("questions = %d, want 3 in order", len(got.Questions))
	}
	for i, q := range got.Questions {
		if q.ID != want.Questions[i].ID {
			t.Errorf("question order: [%d] = %s, want %s", i, q.ID, want.Questions[i].ID)
		}
		if len(q.Options) != 2 {
			t.Errorf("%s: options = %d, want 2", q.ID, len(q.Options))
		}
	}

	if _, err := store.GetExam(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing exam: err = %v, want ErrNotFound", err)
	}
}

func TestSQLStoreAnswerUpsertKeepsOneRow(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)
	e := seedExam(t, store, "e1", true)

	a, err := store.NewAttempt(ctx, e.ID, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if err := store.UpsertAnswer(ctx, a.ID, "e1-q1", "e1-q1-wrong"); err != nil {
		t.Fatal(err)
	}
	if err := store.UpsertAnswer(ctx, a.ID, "e1-q1", "e1-q1-right"); err != nil {
		t.Fatal(err)
	}

	g, err := store.LoadAttemptGraph(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(g.Answers) != 1 {
		t.Fatalf("answers = %d, want 1", len(g.Answers))
	}
	if g.Answers[0].Answer.SelectedOptionID != "e1-q1-right" {
		t.Errorf("selected = %s", g.Answers[0].Answer.SelectedOptionID)
	}
	if g.Answers[0].SelectedOption == nil || !g.Answers[0].SelectedOption.IsCorrect {
		t.Errorf("selected option not joined: %+v", g.Answers[0].SelectedOption)
	}
}

func TestSQLStoreFinalizeEvaluation(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)
	e := seedExam(t, store, "e1", true)
	ev := newTestEvaluator(store)

	a := submitAttempt(t, store, e.ID, "alice", map[string]string{
		"e1-q1": "e1-q1-right",
		"e1-q2": "e1-q2-wrong",
	}, 1000)

	if err := ev.Evaluate(ctx, a.ID); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	got, err := store.GetAttempt(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !almostEqual(got.TotalScore, 4) {
		t.Errorf("TotalScore = %v, want 4", got.TotalScore)
	}
	if got.EvaluatedAt == 0 {
		t.Error("EvaluatedAt not stamped")
	}

	// Direct second finalize is rejected without touching counters.
	err = store.FinalizeEvaluation(ctx, Evaluation{AttemptID: a.ID, ExamID: e.ID, UserID: "alice"}, 42)
	if !errors.Is(err, ErrAlreadyEvaluated) {
		t.Fatalf("err = %v, want ErrAlreadyEvaluated", err)
	}
	if st := statFor(t, store, "e1-q1"); st.TimesAttempted != 1 || st.TimesCorrect != 1 {
		t.Errorf("stats = %+v, want 1/1", st)
	}

	rows, err := store.ListRankings(ctx, e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Rank != 1 {
		t.Errorf("rankings = %+v", rows)
	}
}

func TestSQLStoreStatIncrementOrCreate(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)
	e := seedExam(t, store, "e1", true)
	ev := newTestEvaluator(store)

	for i, user := range []string{"u1", "u2", "u3"} {
		answer := "e1-q1-right"
		if user == "u3" {
			answer = "e1-q1-wrong"
		}
		a := submitAttempt(t, store, e.ID, user, map[string]string{"e1-q1": answer}, int64(1000+i))
		if err := ev.Evaluate(ctx, a.ID); err != nil {
			t.Fatal(err)
		}
	}

	if st := statFor(t, store, "e1-q1"); st.TimesAttempted != 3 || st.TimesCorrect != 2 {
		t.Errorf("stats = %+v, want 3/2", st)
	}
}

func TestSQLStoreRankingReplace(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)
	e := seedExam(t, store, "e1", true)

	if err := store.ReplaceRankings(ctx, e.ID, []Ranking{
		{ExamID: e.ID, UserID: "u1", Rank: 1, TotalScore: 9},
		{ExamID: e.ID, UserID: "u2", Rank: 2, TotalScore: 5},
	}); err != nil {
		t.Fatal(err)
	}
	// Second run flips the order; rows are upserted, not appended.
	if err := store.ReplaceRankings(ctx, e.ID, []Ranking{
		{ExamID: e.ID, UserID: "u2", Rank: 1, TotalScore: 11},
		{ExamID: e.ID, UserID: "u1", Rank: 2, TotalScore: 9},
	}); err != nil {
		t.Fatal(err)
	}

	rows, err := store.ListRankings(ctx, e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %+v, want 2", rows)
	}
	if rows[0].UserID != "u2" || rows[1].UserID != "u1" {
		t.Errorf("order = %+v", rows)
	}
}

func TestSQLStoreExpiredAttempts(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)
	e := seedExam(t, store, "e1", true)

	a, err := store.NewAttempt(ctx, e.ID, "alice")
	if err != nil {
		t.Fatal(err)
	}

	expired, err := store.ListExpiredAttempts(ctx, a.EndsAt+1)
	if err != nil {
		t.Fatal(err)
	}
	if len(expired) != 1 || expired[0].ID != a.ID {
		t.Fatalf("expired = %+v, want the open attempt", expired)
	}

	if _, _, err := store.CompleteAttempt(ctx, a.ID, a.EndsAt); err != nil {
		t.Fatal(err)
	}
	expired, err = store.ListExpiredAttempts(ctx, a.EndsAt+1)
	if err != nil {
		t.Fatal(err)
	}
	if len(expired) != 0 {
		t.Fatalf("completed attempts must not expire again: %+v", expired)
	}
}

func TestSQLStoreEvalStatus(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)
	e := seedExam(t, store, "e1", true)

	a, err := store.NewAttempt(ctx, e.ID, "alice")
	if err != nil {
		t.Fatal(err)
	}

	if err := store.MarkEvalPending(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	got, _ := store.GetAttempt(ctx, a.ID)
	if got.EvalStatus != EvalPending {
		t.Errorf("status = %q, want pending", got.EvalStatus)
	}

	if err := store.MarkEvalFailed(ctx, a.ID, "boom"); err != nil {
		t.Fatal(err)
	}
	if err := store.MarkEvalFailed(ctx, a.ID, "boom again"); err != nil {
		t.Fatal(err)
	}
	got, _ = store.GetAttempt(ctx, a.ID)
	if got.EvalStatus != EvalFailed || got.EvalRetries != 2 || got.EvalError != "boom again" {
		t.Errorf("attempt = %+v", got)
	}

	if err := store.MarkEvalOK(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	got, _ = store.GetAttempt(ctx, a.ID)
	if got.EvalStatus != EvalOK || got.EvalError != "" {
		t.Errorf("attempt = %+v", got)
	}
}
