package exam

import (
	"context"
	"testing"
	"time"
)

func TestSweeperCompletesExpiredAttempts(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	e := seedExam(t, store, "e1", true)

	a, err := store.NewAttempt(ctx, e.ID, "alice")
	if err != nil {
		t.Fatal(err)
	}

	var enqueued []string
	sweep := NewSweeper(store, func(id string) { enqueued = append(enqueued, id) },
		time.Second, fixedClock(a.EndsAt+60))

	n, err := sweep.SweepOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 || len(enqueued) != 1 || enqueued[0] != a.ID {
		t.Fatalf("sweep: n=%d enqueued=%v", n, enqueued)
	}

	got, err := store.GetAttempt(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Completed {
		t.Error("attempt not completed by sweeper")
	}
	if got.EndedAt != a.EndsAt {
		t.Errorf("EndedAt = %d, want the original deadline %d", got.EndedAt, a.EndsAt)
	}

	// A second sweep finds nothing; the enqueue happened exactly once.
	n, err = sweep.SweepOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 || len(enqueued) != 1 {
		t.Fatalf("second sweep: n=%d enqueued=%v", n, enqueued)
	}
}

func TestSweeperSkipsOpenAttempts(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	e := seedExam(t, store, "e1", true)

	a, err := store.NewAttempt(ctx, e.ID, "alice")
	if err != nil {
		t.Fatal(err)
	}

	sweep := NewSweeper(store, func(string) { t.Error("nothing should be enqueued") },
		time.Second, fixedClock(a.EndsAt-60))
	n, err := sweep.SweepOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("n = %d, want 0", n)
	}
	got, _ := store.GetAttempt(ctx, a.ID)
	if got.Completed {
		t.Error("attempt completed before its deadline")
	}
}
