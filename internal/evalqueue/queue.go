package evalqueue

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/solymanHossen/online-exam-sub000/internal/exam"
)

// Queue runs attempt evaluations in the background with at-least-once
// semantics: a task that fails transiently is re-enqueued with backoff up
// to MaxRetries, then left in the failed state its eval status records.
// Tasks for the same attempt never run concurrently.
type Queue struct {
	store     exam.Store
	evaluator *exam.Evaluator

	tasks     chan task
	workers   int
	maxRetry  int
	baseDelay time.Duration

	perAttempt *keyedMutex

	// OnEvaluated, when set, runs after a successful evaluation. Used to
	// append domain events without coupling the queue to storage.
	OnEvaluated func(attemptID string)
}

type task struct {
	attemptID string
	retries   int
}

type Options struct {
	Workers    int
	Buffer     int
	MaxRetries int
	BaseDelay  time.Duration
}

func New(store exam.Store, evaluator *exam.Evaluator, opts Options) *Queue {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 1024
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 5
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 500 * time.Millisecond
	}
	return &Queue{
		store:      store,
		evaluator:  evaluator,
		tasks:      make(chan task, opts.Buffer),
		workers:    opts.Workers,
		maxRetry:   opts.MaxRetries,
		baseDelay:  opts.BaseDelay,
		perAttempt: newKeyedMutex(),
	}
}

// Enqueue schedules one evaluation task for the attempt. Blocks only
// when the buffer is full (backpressure on the submit path).
func (q *Queue) Enqueue(attemptID string) {
	q.tasks <- task{attemptID: attemptID}
}

// Run processes tasks until ctx is canceled.
func (q *Queue) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < q.workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case t := <-q.tasks:
					q.process(ctx, t)
				}
			}
		})
	}
	return g.Wait()
}

func (q *Queue) process(ctx context.Context, t task) {
	q.perAttempt.Lock(t.attemptID)
	defer q.perAttempt.Unlock(t.attemptID)

	if err := q.store.MarkEvalPending(ctx, t.attemptID); err != nil {
		log.Printf("evalqueue: mark pending %s: %v", t.attemptID, err)
	}

	err := q.evaluator.Evaluate(ctx, t.attemptID)
	if err == nil {
		if err := q.store.MarkEvalOK(ctx, t.attemptID); err != nil {
			log.Printf("evalqueue: mark ok %s: %v", t.attemptID, err)
		}
		if q.OnEvaluated != nil {
			q.OnEvaluated(t.attemptID)
		}
		return
	}

	if markErr := q.store.MarkEvalFailed(ctx, t.attemptID, err.Error()); markErr != nil {
		log.Printf("evalqueue: mark failed %s: %v", t.attemptID, markErr)
	}
	if exam.Fatal(err) {
		// Data-integrity class: retrying cannot help; an operator has to
		// look at the attempt.
		log.Printf("evalqueue: attempt %s unrecoverable: %v", t.attemptID, err)
		return
	}
	if t.retries >= q.maxRetry {
		log.Printf("evalqueue: attempt %s failed after %d retries: %v", t.attemptID, t.retries, err)
		return
	}
	q.requeue(ctx, task{attemptID: t.attemptID, retries: t.retries + 1})
}

func (q *Queue) requeue(ctx context.Context, t task) {
	delay := q.baseDelay << uint(t.retries-1)
	if max := 30 * time.Second; delay > max {
		delay = max
	}
	go func() {
		select {
		case <-ctx.Done():
		case <-time.After(delay):
			select {
			case <-ctx.Done():
			case q.tasks <- t:
			}
		}
	}()
}
