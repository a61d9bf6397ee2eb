package exam

import (
	"context"
	"log"
	"time"
)

// Sweeper completes in-progress attempts whose deadline has passed and
// hands them to the given enqueue func for evaluation. It is the
// server-side twin of explicit submission; the end time is the original
// deadline, never the sweep time.
type Sweeper struct {
	store    Store
	enqueue  func(attemptID string)
	interval time.Duration
	now      Clock
}

func NewSweeper(store Store, enqueue func(attemptID string), interval time.Duration, now Clock) *Sweeper {
	if now == nil {
		now = time.Now
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Sweeper{store: store, enqueue: enqueue, interval: interval, now: now}
}

// SweepOnce runs a single expiry pass and returns how many attempts it
// completed.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	expired, err := s.store.ListExpiredAttempts(ctx, s.now().Unix())
	if err != nil {
		return 0, err
	}
	n := 0
	for _, a := range expired {
		_, transitioned, err := s.store.CompleteAttempt(ctx, a.ID, a.EndsAt)
		if err != nil {
			log.Printf("sweeper: complete attempt %s: %v", a.ID, err)
			continue
		}
		if !transitioned {
			// Submitted between the list and the transition; the submit
			// path already enqueued it.
			continue
		}
		s.enqueue(a.ID)
		n++
	}
	return n, nil
}

// Run sweeps on the configured interval until ctx is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := s.SweepOnce(ctx); err != nil {
				log.Printf("sweeper: %v", err)
			}
		}
	}
}
