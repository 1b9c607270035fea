package cmd

import (
	"context"
	"sync"
	"testing"
	"time"

	"meetup-backend/internal/models"
	"meetup-backend/internal/services"
)

type steppedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *steppedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *steppedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type resolvedStore struct {
	mu       sync.Mutex
	outcomes []models.Outcome
}

func (s *resolvedStore) Create(ctx context.Context, rec *models.PairRecord) error {
	return nil
}

func (s *resolvedStore) Resolve(ctx context.Context, rec *models.PairRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, *rec.Outcome)
	return nil
}

func TestWorkersStopFlushesFinalSweep(t *testing.T) {
	store := &resolvedStore{}
	writer := services.NewHistoryWriter(store, 16, nil)
	clock := &steppedClock{now: time.Unix(1_700_000_000, 0)}
	svc := services.NewMatchmakingService(services.Options{
		PairTTL:       time.Minute,
		EnforceExpiry: true,
		Clock:         clock,
		History:       writer,
	})

	var bg workers
	bg.startHistory(writer)
	// The interval is long enough that only the shutdown sweep can run.
	bg.startSweeper(svc, time.Hour)

	for _, id := range []string{"A", "B"} {
		if _, err := svc.ReportPresence(context.Background(), id, 1.5, 1.5); err != nil {
			t.Fatalf("ReportPresence(%s): %v", id, err)
		}
	}
	clock.Advance(2 * time.Minute)

	done := make(chan struct{})
	go func() {
		bg.stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("workers did not stop")
	}

	if _, _, pairs := svc.Stats(); pairs != 0 {
		t.Errorf("live pairs after shutdown = %d, want 0", pairs)
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.outcomes) != 1 || store.outcomes[0] != models.OutcomeExpired {
		t.Errorf("resolved history = %v, want one EXPIRED record", store.outcomes)
	}
}

func TestWorkersStopWithoutHistory(t *testing.T) {
	var bg workers
	bg.startSweeper(services.NewMatchmakingService(services.Options{}), time.Hour)
	bg.stop()
}
