package cmd

import (
	"context"
	"sync"
	"time"

	"meetup-backend/internal/services"
)

// workers owns the background goroutines. The sweeper feeds the history
// writer, so it is stopped and drained first.
type workers struct {
	stopSweeper context.CancelFunc
	sweeper     sync.WaitGroup

	stopHistory context.CancelFunc
	history     sync.WaitGroup
}

func (w *workers) startHistory(writer *services.HistoryWriter) {
	ctx, cancel := context.WithCancel(context.Background())
	w.stopHistory = cancel

	w.history.Add(1)
	go func() {
		defer w.history.Done()
		writer.Run(ctx)
	}()
}

func (w *workers) startSweeper(svc *services.MatchmakingService, interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	w.stopSweeper = cancel

	w.sweeper.Add(1)
	go func() {
		defer w.sweeper.Done()
		services.RunSweeper(ctx, svc, interval)
	}()
}

// stop waits for the sweeper to exit before flushing the history writer
func (w *workers) stop() {
	if w.stopSweeper != nil {
		w.stopSweeper()
	}
	w.sweeper.Wait()

	if w.stopHistory != nil {
		w.stopHistory()
	}
	w.history.Wait()
}
